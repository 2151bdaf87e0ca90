package analyze

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagucloud/azpipe/internal/core/yamlnode"
)

const stagesPipeline = `
resources:
  repositories:
  - repository: tools
    type: git
    name: org/tools
    ref: refs/heads/main
  containers:
  - container: linux
    image: ubuntu:22.04
stages:
- stage: Build
  jobs:
  - job: compile
    steps:
    - script: make
    - script: make test
  - job: lint
    dependsOn: compile
- stage: Test
  dependsOn: Build
  jobs:
  - template: jobs/test.yml@tools
- stage: Release
  displayName: Ship it
  dependsOn:
  - Test
  - Build
  jobs:
  - deployment: publish
    steps:
    - template: steps/publish.yml
    - template: steps/publish.yml
`

func TestAnalyzeText_Extraction(t *testing.T) {
	t.Parallel()

	a := AnalyzeText(stagesPipeline)
	require.Empty(t, a.Error)

	require.Len(t, a.Stages, 3)
	assert.Equal(t, Stage{Name: "Build", DependsOn: []string{}, Jobs: []string{"compile", "lint"}}, a.Stages[0])
	assert.Equal(t, []string{"Build"}, a.Stages[1].DependsOn)
	assert.Equal(t, "Ship it", a.Stages[2].DisplayName)
	assert.Equal(t, []string{"Test", "Build"}, a.Stages[2].DependsOn)

	require.Len(t, a.Jobs, 3)
	assert.Equal(t, Job{Name: "compile", Stage: "Build", DependsOn: []string{}, Steps: 2}, a.Jobs[0])
	assert.Equal(t, []string{"compile"}, a.Jobs[1].DependsOn)
	assert.True(t, a.Jobs[2].Deployment)

	assert.Equal(t, []Edge{
		{From: "lint", To: "compile", Kind: KindJob, Stage: "Build"},
		{From: "Test", To: "Build", Kind: KindStage},
		{From: "Release", To: "Test", Kind: KindStage},
		{From: "Release", To: "Build", Kind: KindStage},
	}, a.DependencyGraph)

	require.Len(t, a.Templates, 3)
	assert.Equal(t, TemplateUsage{Path: "jobs/test.yml@tools", Usage: []string{"stages", "[1]", "jobs", "[0]"}}, a.Templates[0])
	assert.Equal(t, "stages[2].jobs[0].steps[1]", a.Templates[2].Location())

	assert.Equal(t, []Resource{
		{Type: "repository", Name: "tools", Ref: "refs/heads/main", Properties: map[string]any{"type": "git", "name": "org/tools"}},
		{Type: "container", Name: "linux", Properties: map[string]any{"image": "ubuntu:22.04"}},
	}, a.Resources)

	assert.Equal(t, []string{"Build", "Test", "Release"}, a.CriticalPath)
}

func TestAnalyzeText_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
	}{
		{name: "InvalidYAML", text: "stages: [\n"},
		{name: "NotMapping", text: "- a\n- b\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a := AnalyzeText(tt.text)
			assert.NotEmpty(t, a.Error)
			assert.Empty(t, a.Stages)
			assert.NotNil(t, a.Stages)
			assert.NotNil(t, a.DependencyGraph)
			assert.NotNil(t, a.CriticalPath)
		})
	}
}

func TestAnalyze_EmptyDocument(t *testing.T) {
	t.Parallel()

	a := Analyze(&yamlnode.Document{Root: yamlnode.NewNull()})
	assert.Empty(t, a.Error)
	assert.Empty(t, a.CriticalPath)

	a = Analyze(nil)
	assert.Empty(t, a.Error)
}

func TestCriticalPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "Chain",
			text: "stages:\n- stage: A\n- stage: B\n  dependsOn: A\n- stage: C\n  dependsOn: B\n",
			want: []string{"A", "B", "C"},
		},
		{
			name: "EqualChainsPickSmallestTerminus",
			text: "stages:\n- stage: Y1\n- stage: Y2\n  dependsOn: Y1\n- stage: X1\n- stage: X2\n  dependsOn: X1\n",
			want: []string{"X1", "X2"},
		},
		{
			name: "FirstMaximalDependency",
			text: "stages:\n- stage: A\n- stage: B\n- stage: C\n  dependsOn: [B, A]\n",
			want: []string{"B", "C"},
		},
		{
			name: "LongestBranch",
			text: "stages:\n- stage: A\n- stage: B\n  dependsOn: A\n- stage: D\n  dependsOn: [A, B]\n",
			want: []string{"A", "B", "D"},
		},
		{
			name: "JobsWithoutStages",
			text: "jobs:\n- job: build\n- job: test\n  dependsOn: build\n- job: lint\n",
			want: []string{"build", "test"},
		},
		{
			name: "UnknownDependencyIgnored",
			text: "stages:\n- stage: A\n  dependsOn: Missing\n",
			want: []string{"A"},
		},
		{
			name: "Cycle",
			text: "stages:\n- stage: A\n  dependsOn: B\n- stage: B\n  dependsOn: A\n",
			want: []string{"B", "A"},
		},
		{
			name: "Empty",
			text: "trigger: none\n",
			want: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a := AnalyzeText(tt.text)
			require.Empty(t, a.Error)
			assert.Equal(t, tt.want, a.CriticalPath)
		})
	}
}

func TestCategory(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"Configure_Env":  "configure",
		"LintSources":    "lint",
		"build":          "build",
		"UnitTests":      "test",
		"SignBinaries":   "sign",
		"Package":        "package",
		"ReleaseToProd":  "release",
		"SecurityScan":   "scan",
		"deploy":         "build",
		"build_and_test": "build",
	}
	for name, want := range tests {
		assert.Equal(t, want, Category(name), name)
	}
}

func TestRenderDiagram(t *testing.T) {
	t.Parallel()

	a := AnalyzeText(`
stages:
- stage: Build
  jobs:
  - job: compile
- stage: Test
  dependsOn: Build
- stage: Docs
- stage: Release
  displayName: Release "v1"
  dependsOn: [Test, Docs]
`)
	require.Empty(t, a.Error)
	require.Equal(t, []string{"Build", "Test", "Release"}, a.CriticalPath)

	out := RenderDiagram(a, WithDirection("tb"))
	assert.True(t, strings.HasPrefix(out, "flowchart TB\n"), out)
	assert.Contains(t, out, "  classDef release ")
	assert.Contains(t, out, `  stage_Build["Build"]:::build`)
	assert.Contains(t, out, `  stage_Release["Release #quot;v1#quot;"]:::release`)
	assert.Contains(t, out, "  subgraph stage_Build_jobs [\"Build jobs\"]\n    job_Build_compile[\"compile\"]:::build\n  end\n")
	assert.Contains(t, out, "  stage_Build ==> stage_Test\n")
	assert.Contains(t, out, "  stage_Test ==> stage_Release\n")
	assert.Contains(t, out, "  stage_Docs --> stage_Release\n")
	assert.Contains(t, out, "  style stage_Build "+criticalStyle)
	assert.NotContains(t, out, "style stage_Docs")
	assert.Contains(t, out, "  linkStyle 0 "+criticalStyle)
	assert.Contains(t, out, "  linkStyle 1 "+criticalStyle)
	assert.NotContains(t, out, "linkStyle 2")
}

func TestRenderDiagram_Jobs(t *testing.T) {
	t.Parallel()

	a := AnalyzeText("jobs:\n- job: build-linux\n- job: test\n  dependsOn: build-linux\n")
	out := RenderDiagram(a)
	assert.True(t, strings.HasPrefix(out, "flowchart LR\n"))
	assert.Contains(t, out, `  job__build_linux["build-linux"]:::build`)
	assert.Contains(t, out, "  job__build_linux ==> job__test\n")
	assert.Contains(t, out, "  style job__test "+criticalStyle)
}

func TestRenderReport(t *testing.T) {
	t.Parallel()

	out := RenderReport(AnalyzeText(stagesPipeline))
	assert.Contains(t, out, "Critical path ->\nBuild -> Test -> Release (3)\n")
	assert.Contains(t, out, "Stages ->")
	assert.Contains(t, out, "Jobs ->")
	assert.Contains(t, out, "Resources ->")
	assert.Contains(t, out, "ref=refs/heads/main")
	// duplicate template usages are listed once with a count
	assert.Equal(t, 1, strings.Count(out, "steps/publish.yml"))
	assert.Contains(t, out, "stages[1].jobs[0]")

	out = RenderReport(AnalyzeText("- a\n"))
	assert.Contains(t, out, "Analysis error:")
	assert.Contains(t, out, "(none)")
}
