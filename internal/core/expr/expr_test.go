package expr

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateFunction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		fn   string
		args []any
		want any
	}{
		{name: "EqNumbers", fn: "eq", args: []any{5, 5}, want: true},
		{name: "EqNumericStrings", fn: "eq", args: []any{"5.0", 5}, want: true},
		{name: "EqCaseSensitive", fn: "eq", args: []any{"abc", "ABC"}, want: false},
		{name: "EqBoolAndString", fn: "eq", args: []any{true, "True"}, want: true},
		{name: "EqBoolAndBool", fn: "eq", args: []any{false, false}, want: true},
		{name: "EqNullAndEmpty", fn: "eq", args: []any{nil, ""}, want: true},
		{name: "Ne", fn: "ne", args: []any{"a", "b"}, want: true},
		{name: "GtNumeric", fn: "gt", args: []any{"10", 9}, want: true},
		{name: "GeEqual", fn: "ge", args: []any{3, 3}, want: true},
		{name: "LtString", fn: "lt", args: []any{"abc", "abd"}, want: true},
		{name: "Le", fn: "le", args: []any{4, 3}, want: false},
		{name: "And", fn: "and", args: []any{true, "x", 1}, want: true},
		{name: "AndFalse", fn: "and", args: []any{true, ""}, want: false},
		{name: "Or", fn: "or", args: []any{false, 0, "yes"}, want: true},
		{name: "Not", fn: "not", args: []any{""}, want: true},
		{name: "Xor", fn: "xor", args: []any{true, false}, want: true},
		{name: "If", fn: "if", args: []any{true, "a", "b"}, want: "a"},
		{name: "Iif", fn: "iif", args: []any{false, "a", "b"}, want: "b"},
		{name: "ElseIf", fn: "elseif", args: []any{1, "x", "y"}, want: "x"},
		{name: "Coalesce", fn: "coalesce", args: []any{nil, "", "first", "second"}, want: "first"},
		{name: "CoalesceNone", fn: "coalesce", args: []any{nil, ""}, want: nil},
		{name: "ContainsString", fn: "contains", args: []any{"Hello World", "WORLD"}, want: true},
		{name: "ContainsArray", fn: "contains", args: []any{[]any{"a", "b"}, "b"}, want: true},
		{name: "ContainsKey", fn: "contains", args: []any{map[string]any{"debug": true}, "debug"}, want: true},
		{name: "ContainsValue", fn: "containsValue", args: []any{map[string]any{"k": "v"}, "v"}, want: true},
		{name: "ContainsValueMissing", fn: "containsValue", args: []any{[]any{1, 2}, 3}, want: false},
		{name: "In", fn: "in", args: []any{"b", "a", "b", "c"}, want: true},
		{name: "NotIn", fn: "notIn", args: []any{"z", "a", "b"}, want: true},
		{name: "Upper", fn: "upper", args: []any{"azure"}, want: "AZURE"},
		{name: "Lower", fn: "lower", args: []any{"AzUrE"}, want: "azure"},
		{name: "Trim", fn: "trim", args: []any{"  x  "}, want: "x"},
		{name: "StartsWith", fn: "startsWith", args: []any{"refs/heads/main", "REFS/"}, want: true},
		{name: "EndsWith", fn: "endsWith", args: []any{"file.yml", ".YML"}, want: true},
		{name: "Replace", fn: "replace", args: []any{"a-b-c", "-", "_"}, want: "a_b_c"},
		{name: "Split", fn: "split", args: []any{"a,b,c", ","}, want: []any{"a", "b", "c"}},
		{name: "Join", fn: "join", args: []any{",", []any{"a", "b", "c"}}, want: "a,b,c"},
		{name: "Format", fn: "format", args: []any{"Hello {0}, you are {1} years old", "Alice", 30}, want: "Hello Alice, you are 30 years old"},
		{name: "FormatEscapes", fn: "format", args: []any{"{{literal}} {0}", "x"}, want: "{literal} x"},
		{name: "LengthString", fn: "length", args: []any{"héllo"}, want: float64(5)},
		{name: "LengthArray", fn: "length", args: []any{[]any{1, 2, 3}}, want: float64(3)},
		{name: "LengthNull", fn: "length", args: []any{nil}, want: float64(0)},
		{name: "Always", fn: "always", want: true},
		{name: "Succeeded", fn: "succeeded", want: true},
		{name: "SucceededWithArgs", fn: "succeeded", args: []any{"Build"}, want: true},
		{name: "Failed", fn: "failed", want: false},
		{name: "Canceled", fn: "canceled", want: false},
		{name: "SucceededOrFailed", fn: "succeededOrFailed", want: true},
		{name: "CaseInsensitiveName", fn: "UPPER", args: []any{"x"}, want: "X"},
		{name: "ConvertToJson", fn: "convertToJson", args: []any{map[string]any{"a": 1, "b": []any{"x"}}}, want: "{\n  \"a\": 1,\n  \"b\": [\n    \"x\"\n  ]\n}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := EvaluateFunction(tt.fn, tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateFunction_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		fn   string
		args []any
		err  error
	}{
		{name: "Unknown", fn: "nope", err: ErrUnknownFunction},
		{name: "TooFewArgs", fn: "eq", args: []any{1}, err: ErrArgumentCount},
		{name: "TooManyArgs", fn: "not", args: []any{1, 2}, err: ErrArgumentCount},
		{name: "AndNeedsTwo", fn: "and", args: []any{true}, err: ErrArgumentCount},
		{name: "LengthOfNumber", fn: "length", args: []any{4}, err: ErrInvalidArgument},
		{name: "FormatMissingArg", fn: "format", args: []any{"{1}", "a"}, err: ErrInvalidArgument},
		{name: "FormatUnclosed", fn: "format", args: []any{"{0", "a"}, err: ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := EvaluateFunction(tt.fn, tt.args)
			require.ErrorIs(t, err, tt.err)
			var eerr *Error
			require.ErrorAs(t, err, &eerr)
		})
	}
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	params := NewObject()
	params.Set("os", "linux")
	params.Set("count", float64(3))
	params.Set("list", []any{"a", "b"})
	vars := NewObject()
	vars.Set("Build.Reason", "PullRequest")
	env := Env{Resolver: MapResolver{"parameters": params, "variables": vars, "item": "x"}}

	tests := []struct {
		name string
		src  string
		want any
	}{
		{name: "DottedAccess", src: "parameters.os", want: "linux"},
		{name: "BracketAccess", src: "variables['Build.Reason']", want: "PullRequest"},
		{name: "CaseInsensitiveKey", src: "variables['build.reason']", want: "PullRequest"},
		{name: "IndexAccess", src: "parameters.list[1]", want: "b"},
		{name: "IndexOutOfRange", src: "parameters.list[5]", want: nil},
		{name: "MissingVariable", src: "variables.undefined", want: nil},
		{name: "NestedCalls", src: "and(eq(parameters.os, 'linux'), gt(parameters.count, 2))", want: true},
		{name: "QuotedEscape", src: "format('It''s {0}', item)", want: "It's x"},
		{name: "NegativeNumber", src: "lt(-1.5, 0)", want: true},
		{name: "Literals", src: "coalesce(null, False)", want: false},
		{name: "CallResultIndex", src: "split('a,b', ',')[0]", want: "a"},
		{name: "ShortCircuit", src: "or(true, nosuchfunction())", want: true},
		{name: "LoopVariable", src: "upper(item)", want: "X"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Evaluate(tt.src, env)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluate_Errors(t *testing.T) {
	t.Parallel()

	env := Env{Resolver: MapResolver{"parameters": NewObject()}}

	tests := []struct {
		name   string
		src    string
		syntax bool
	}{
		{name: "UndeclaredParameter", src: "parameters.missing"},
		{name: "UnknownRoot", src: "pipeline.name"},
		{name: "Unbalanced", src: "eq(1, 2", syntax: true},
		{name: "UnterminatedString", src: "eq('a, 'b')", syntax: true},
		{name: "Empty", src: "  ", syntax: true},
		{name: "TrailingTokens", src: "eq(1,1) x", syntax: true},
		{name: "BadCharacter", src: "eq(1 == 1)", syntax: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Evaluate(tt.src, env)
			require.Error(t, err)
			assert.Equal(t, tt.syntax, IsSyntax(err))
		})
	}
}

func TestInterpolate(t *testing.T) {
	t.Parallel()

	params := NewObject()
	params.Set("debug", true)
	params.Set("name", "api")
	env := Env{Resolver: MapResolver{"parameters": params}}

	v, err := Interpolate("${{ parameters.debug }}", env)
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = Interpolate("build-${{ parameters.name }}-${{ parameters.debug }}", env)
	require.NoError(t, err)
	assert.Equal(t, "build-api-true", v)

	v, err = Interpolate("echo $(Build.BuildId) $[ variables.x ]", env)
	require.NoError(t, err)
	assert.Equal(t, "echo $(Build.BuildId) $[ variables.x ]", v)

	v, err = Interpolate("${{ format('{0}}}', 'x') }}", env)
	require.NoError(t, err)
	assert.Equal(t, "x}", v)

	_, err = Interpolate("${{ parameters.name ", env)
	assert.True(t, IsSyntax(err))
}

func TestCheckSyntax(t *testing.T) {
	t.Parallel()

	require.NoError(t, CheckSyntax("ok ${{ eq(1, 1) }} and $[ variables.a ]"))
	assert.Error(t, CheckSyntax("${{ eq(1, }}"))
	assert.Error(t, CheckSyntax("runtime $[ variables.a"))
	assert.Error(t, CheckSyntax("${{ open"))
}

func TestCounter(t *testing.T) {
	t.Parallel()

	store := NewCounters()
	env := Env{Counters: store}
	for i, want := range []any{float64(100), float64(101), float64(102)} {
		got, err := Evaluate("counter('build', 100)", env)
		require.NoError(t, err, i)
		assert.Equal(t, want, got)
	}
	got, err := Evaluate("counter('other', 0)", env)
	require.NoError(t, err)
	assert.Equal(t, float64(0), got)
}

func TestCounters_Concurrent(t *testing.T) {
	t.Parallel()

	store := NewCounters()
	var wg sync.WaitGroup
	seen := make([]int, 50)
	for i := range seen {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen[i] = store.Next("k", 0)
		}()
	}
	wg.Wait()
	assert.ElementsMatch(t, func() []int {
		out := make([]int, 50)
		for i := range out {
			out[i] = i
		}
		return out
	}(), seen)
}

func TestTruthyAndToString(t *testing.T) {
	t.Parallel()

	assert.True(t, Truthy(true))
	assert.True(t, Truthy(float64(2)))
	assert.True(t, Truthy("false"))
	assert.True(t, Truthy([]any{}))
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy(float64(0)))
	assert.False(t, Truthy(""))

	assert.Equal(t, "1.5", ToString(1.5))
	assert.Equal(t, "100", ToString(float64(100)))
	assert.Equal(t, `["a",1]`, ToString([]any{"a", float64(1)}))
}

func TestNumberLiteralText(t *testing.T) {
	t.Parallel()

	big := json.Number("12345678901234567891")
	assert.Equal(t, "12345678901234567891", ToString(big))
	assert.Equal(t, "3.1", ToString(json.Number("3.10")))
	assert.Equal(t, "1e3", ToString(json.Number("1e3")))
	assert.True(t, Truthy(json.Number("0.5")))
	assert.False(t, Truthy(json.Number("0.0")))

	assert.True(t, Equal(json.Number("3.10"), "3.1"))
	assert.True(t, Equal(json.Number("17"), float64(17)))
	assert.True(t, Equal(big, json.Number("12345678901234567891")))
	assert.Equal(t, 1, Compare(json.Number("10"), float64(9)))

	v, err := EvaluateFunction("format", []any{"n={0}", big})
	require.NoError(t, err)
	assert.Equal(t, "n=12345678901234567891", v)

	v, err = EvaluateFunction("convertToJson", []any{big})
	require.NoError(t, err)
	assert.Equal(t, "12345678901234567891", v)
}
