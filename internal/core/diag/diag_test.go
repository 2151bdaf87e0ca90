package diag

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStack_PushIsCopyOnWrite(t *testing.T) {
	t.Parallel()

	root := Stack{{File: "azure-pipelines.yml"}}
	a := root.Push(Frame{File: "a.yml", Template: "a.yml", Line: 3})
	b := root.Push(Frame{File: "b.yml", Template: "b.yml", Line: 4})

	assert.Len(t, root, 1)
	assert.Equal(t, "a.yml", a.Current().File)
	assert.Equal(t, "b.yml", b.Current().File)
	assert.True(t, a.Contains("azure-pipelines.yml"))
	assert.False(t, a.Contains("b.yml"))
	assert.Equal(t, Frame{}, Stack(nil).Current())
}

func TestRenderStack(t *testing.T) {
	t.Parallel()

	s := Stack{
		{File: "azure-pipelines.yml"},
		{File: "templates/stages.yml", Template: "templates/stages.yml", Line: 12},
		{File: "jobs/build.yml", Template: "jobs/build.yml@tools", Line: 8},
	}
	want := "Template call stack:\n" +
		"azure-pipelines.yml\n" +
		"└─ templates/stages.yml (azure-pipelines.yml:12)\n" +
		"   └─ jobs/build.yml@tools (templates/stages.yml:8)"
	assert.Equal(t, want, RenderStack(s))
}

func TestError(t *testing.T) {
	t.Parallel()

	stack := Stack{{File: "azure-pipelines.yml"}, {File: "steps.yml", Template: "steps.yml", Line: 5}}
	err := New(UnknownParameter, stack, "unknown parameter for template %s", "steps.yml")
	err.Issues = []string{"parameter 'colour' is not declared", "did you mean 'color'?"}

	msg := err.Error()
	assert.Contains(t, msg, "unknown parameter for template steps.yml\n\nPotential issues:\n  - parameter 'colour' is not declared\n  - did you mean 'color'?")
	assert.Contains(t, msg, "Template call stack:\nazure-pipelines.yml\n└─ steps.yml (azure-pipelines.yml:5)")

	var wrapped error = fmt.Errorf("expand: %w", err)
	assert.ErrorIs(t, wrapped, UnknownParameter)
	assert.NotErrorIs(t, wrapped, MissingRequiredParameter)

	kind, ok := KindOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, UnknownParameter, kind)
}

func TestWrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("no such file")
	err := Wrap(TemplateFileNotFound, nil, cause, "template %q not found", "x.yml")
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, TemplateFileNotFound)
	assert.Equal(t, `template "x.yml" not found`, err.Error())
}

func TestErrorList(t *testing.T) {
	t.Parallel()

	var list ErrorList
	require.NoError(t, list.ErrOrNil())

	list = append(list, &FileError{File: "a.yml", Err: New(DuplicateKey, nil, "duplicate key 'pool'")})
	list = append(list, errors.New("second"))
	assert.Equal(t, "a.yml: duplicate key 'pool'\n\nsecond", list.Error())
	assert.ErrorIs(t, list.ErrOrNil(), DuplicateKey)
	assert.Equal(t, []string{"a.yml: duplicate key 'pool'", "second"}, list.ToStringList())
}
