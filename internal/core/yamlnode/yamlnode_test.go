package yamlnode

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_ScalarFidelity(t *testing.T) {
	t.Parallel()

	doc, err := Parse(`count: 17
quoted: "17"
version: 17.0
enabled: true
missing: ~
name: build
script: |
  echo one
  echo two
`, "azure-pipelines.yml", true)
	require.NoError(t, err)

	root, ok := doc.Root.(*Mapping)
	require.True(t, ok)
	assert.Equal(t, []string{"count", "quoted", "version", "enabled", "missing", "name", "script"}, root.Keys())

	tests := []struct {
		key  string
		kind ScalarKind
		text string
	}{
		{key: "count", kind: NumberKind, text: "17"},
		{key: "quoted", kind: StringKind, text: "17"},
		{key: "version", kind: NumberKind, text: "17"},
		{key: "enabled", kind: BoolKind, text: "true"},
		{key: "missing", kind: NullKind, text: ""},
		{key: "name", kind: StringKind, text: "build"},
		{key: "script", kind: StringKind, text: "echo one\necho two\n"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			s, ok := root.Get(tt.key).(*Scalar)
			require.True(t, ok)
			assert.Equal(t, tt.kind, s.Kind)
			assert.Equal(t, tt.text, s.String())
		})
	}
	assert.Equal(t, "17.0", root.Get("version").(*Scalar).Text)
}

func TestParse_Positions(t *testing.T) {
	t.Parallel()

	doc, err := Parse("trigger: none\nsteps:\n  - script: echo hi\n", "p.yml", true)
	require.NoError(t, err)

	root := doc.Root.(*Mapping)
	assert.Equal(t, 1, root.Entry("trigger").KeyPos.Line)
	assert.Equal(t, 2, root.Entry("steps").KeyPos.Line)

	steps := root.Get("steps").(*Sequence)
	require.Len(t, steps.Items, 1)
	step := steps.Items[0].(*Mapping)
	assert.Equal(t, 3, step.Entry("script").KeyPos.Line)
}

func TestParse_DuplicateKeys(t *testing.T) {
	t.Parallel()

	t.Run("StrictRejectsDuplicateSections", func(t *testing.T) {
		_, err := Parse("variables:\n  a: 1\nvariables:\n  b: 2\n", "p.yml", true)
		require.ErrorIs(t, err, ErrDuplicateKey)

		var perr *ParseError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "p.yml", perr.FileName)
		assert.Equal(t, 3, perr.Pos.Line)
	})

	t.Run("RelaxedStillRejectsPlainDuplicates", func(t *testing.T) {
		_, err := Parse("variables:\n  a: 1\nvariables:\n  b: 2\n", "p.yml", false)
		require.ErrorIs(t, err, ErrDuplicateKey)
	})

	t.Run("RelaxedKeepsInsertDirectives", func(t *testing.T) {
		src := "variables:\n  ${{ insert }}: {a: 1}\n  ${{ insert }}: {b: 2}\n"
		doc, err := Parse(src, "p.yml", false)
		require.NoError(t, err)
		vars := doc.Root.(*Mapping).Get("variables").(*Mapping)
		assert.Equal(t, 2, vars.Len())

		_, err = Parse(src, "p.yml", true)
		require.ErrorIs(t, err, ErrDuplicateKey)
	})
}

func TestParse_Rejects(t *testing.T) {
	t.Parallel()

	_, err := Parse("base: &b\n  a: 1\nother: *b\n", "p.yml", true)
	require.Error(t, err)

	_, err = Parse("key: [unterminated\n", "p.yml", true)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
}

func TestParse_Empty(t *testing.T) {
	t.Parallel()

	doc, err := Parse("", "empty.yml", true)
	require.NoError(t, err)
	assert.True(t, IsNull(doc.Root))

	doc, err = Parse("# only a comment\n", "empty.yml", true)
	require.NoError(t, err)
	assert.True(t, IsNull(doc.Root))
}

func TestCanonicalNumber(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"17.0":  "17",
		"3.10":  "3.1",
		"1.50":  "1.5",
		"19.99": "19.99",
		"100":   "100",
		"10.0":  "10",
		"0.0":   "0",
		"-2.50": "-2.5",
		"1e10":  "1e10",
		"0x1F":  "0x1F",
	}
	for in, want := range tests {
		assert.Equal(t, want, CanonicalNumber(in), in)
	}
}

func TestEncode(t *testing.T) {
	t.Parallel()

	doc, err := Parse(`price: 19.99
version: 17.0
minor: 3.10
quoted: "17"
enabled: true
`, "p.yml", true)
	require.NoError(t, err)

	out, err := Encode(doc.Root, EncodeOptions{})
	require.NoError(t, err)
	assert.Contains(t, out, "price: 19.99\n")
	assert.Contains(t, out, "version: 17\n")
	assert.Contains(t, out, "minor: 3.1\n")
	assert.Contains(t, out, "enabled: true\n")
	assert.NotContains(t, out, "quoted: 17\n")

	reparsed, err := Parse(out, "out.yml", true)
	require.NoError(t, err)
	assert.Equal(t, StringKind, reparsed.Root.(*Mapping).Get("quoted").(*Scalar).Kind)
}

func TestEncode_RoundTrip(t *testing.T) {
	t.Parallel()

	src := `trigger:
  - main
stages:
  - stage: Build
    jobs:
      - job: Compile
        pool:
          name: default
        steps:
          - task: CmdLine@2
            inputs:
              script: |-
                make
                make test
`
	doc, err := Parse(src, "p.yml", true)
	require.NoError(t, err)

	out, err := Encode(doc.Root, EncodeOptions{})
	require.NoError(t, err)

	again, err := Parse(out, "p.yml", true)
	require.NoError(t, err)
	assert.Equal(t, ToValue(doc.Root), ToValue(again.Root))
}

func TestEncode_AzureCompatible(t *testing.T) {
	t.Parallel()

	doc, err := Parse("trigger: none\npool:\n  name: default\nsteps:\n  - script: echo\n", "p.yml", true)
	require.NoError(t, err)

	out, err := Encode(doc.Root, EncodeOptions{AzureCompatible: true})
	require.NoError(t, err)
	assert.Contains(t, out, "trigger: none\n\npool:")
	assert.Contains(t, out, "\n\nsteps:")

	plain, err := Encode(doc.Root, EncodeOptions{})
	require.NoError(t, err)
	assert.NotContains(t, plain, "\n\n")
}

func TestToJSON_KeepsOrder(t *testing.T) {
	t.Parallel()

	doc, err := Parse("zeta: 1.50\nalpha: [a, true, null]\n", "p.yml", true)
	require.NoError(t, err)

	data, err := ToJSON(doc.Root)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"zeta\": 1.5,\n  \"alpha\": [\n    \"a\",\n    true,\n    null\n  ]\n}", string(data))
	assert.True(t, json.Valid(data))
}

type orderedPair struct{}

func (orderedPair) Keys() []string { return []string{"key", "value"} }
func (orderedPair) Value(k string) any {
	if k == "key" {
		return "name"
	}
	return 2.5
}

func TestFromValue(t *testing.T) {
	t.Parallel()

	n, err := FromValue(map[string]any{"b": []any{1, "x", nil}, "a": true})
	require.NoError(t, err)
	m := n.(*Mapping)
	assert.Equal(t, []string{"a", "b"}, m.Keys())
	assert.Equal(t, map[string]any{"a": true, "b": []any{1, "x", nil}}, ToValue(m))

	n, err = FromValue(orderedPair{})
	require.NoError(t, err)
	assert.Equal(t, []string{"key", "value"}, n.(*Mapping).Keys())
	assert.Equal(t, "2.5", n.(*Mapping).Get("value").(*Scalar).Text)

	n, err = FromValue([]string{"x", "y"})
	require.NoError(t, err)
	assert.Len(t, n.(*Sequence).Items, 2)

	_, err = FromValue(struct{}{})
	require.Error(t, err)
}

func TestMappingHelpers(t *testing.T) {
	t.Parallel()

	m := NewMapping()
	m.Set("a", NewString("1"))
	m.Set("b", NewBool(true))
	m.Set("a", NewString("2"))
	assert.Equal(t, []string{"a", "b"}, m.Keys())
	assert.Equal(t, "2", m.Get("a").(*Scalar).Text)

	c := Clone(m).(*Mapping)
	c.Set("c", NewNull())
	assert.Equal(t, []string{"a", "b"}, m.Keys())
	assert.Equal(t, []string{"a", "b", "c"}, c.Keys())
	assert.Equal(t, "mapping", KindOf(c))
	assert.True(t, IsNull(c.Get("c")))
}
