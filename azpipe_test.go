package azpipe_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagucloud/azpipe"
	"github.com/dagucloud/azpipe/internal/core/diag"
)

func TestExpandToText(t *testing.T) {
	t.Parallel()

	text, err := azpipe.ExpandToText(context.Background(), `
parameters:
- name: targets
  type: object
  default: [linux, windows]
steps:
- ${{ each t in parameters.targets }}:
  - script: build ${{ t }}
`, azpipe.Options{})
	require.NoError(t, err)
	assert.Contains(t, text, "script: build linux")
	assert.Contains(t, text, "script: build windows")
	assert.NotContains(t, text, "${{")
}

func TestExpandFile_Templates(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "templates"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "azure-pipelines.yml"),
		[]byte("jobs:\n- template: templates/job.yml\n  parameters:\n    name: build\n"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "templates", "job.yml"),
		[]byte("parameters:\n- name: name\n  type: string\njobs:\n- job: ${{ parameters.name }}\n  steps:\n  - bash: make\n"), 0600))

	doc, err := azpipe.ExpandFile(context.Background(), filepath.Join(dir, "azure-pipelines.yml"), azpipe.Options{})
	require.NoError(t, err)
	text, err := azpipe.EncodeDocument(doc, false)
	require.NoError(t, err)
	assert.Contains(t, text, "job: build")
	assert.Contains(t, text, "task: Bash@3")
}

func TestExpand_ErrorCarriesStack(t *testing.T) {
	t.Parallel()

	_, err := azpipe.Expand(context.Background(), "steps:\n- template: missing.yml\n", azpipe.Options{
		FileName: "pipeline.yml",
		BaseDir:  t.TempDir(),
	})
	require.Error(t, err)
	var aerr *azpipe.Error
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, diag.TemplateFileNotFound, aerr.Kind)
	assert.Contains(t, err.Error(), "Template call stack:")
}

func TestEvaluateFunction(t *testing.T) {
	t.Parallel()

	v, err := azpipe.EvaluateFunction("format", []any{"{0}-{1}", "a", 1})
	require.NoError(t, err)
	assert.Equal(t, "a-1", v)

	v, err = azpipe.EvaluateFunction("upper", []any{"abc"})
	require.NoError(t, err)
	assert.Equal(t, "ABC", v)

	_, err = azpipe.EvaluateFunction("nosuch", nil)
	require.Error(t, err)
}

func TestParseDocument_Strict(t *testing.T) {
	t.Parallel()

	src := "${{ if true }}:\n  a: 1\n${{ if true }}:\n  b: 2\n"
	_, err := azpipe.ParseDocument(src, "p.yml", false)
	require.NoError(t, err)
	_, err = azpipe.ParseDocument(src, "p.yml", true)
	require.Error(t, err)
}

func TestAnalyzeDependencies(t *testing.T) {
	t.Parallel()

	a := azpipe.AnalyzeDependencies(`
stages:
- stage: Build
- stage: Test
  dependsOn: Build
- stage: Release
  dependsOn: Test
`)
	require.Empty(t, a.Error)
	assert.Equal(t, []string{"Build", "Test", "Release"}, a.CriticalPath)

	diagram := azpipe.RenderDiagram(a, azpipe.WithDirection("TB"))
	assert.True(t, strings.HasPrefix(diagram, "flowchart TB\n"))
	assert.Contains(t, azpipe.RenderReport(a), "Build -> Test -> Release (3)")

	bad := azpipe.AnalyzeDependencies("stages: [\n")
	assert.NotEmpty(t, bad.Error)
	assert.Empty(t, bad.CriticalPath)
}
