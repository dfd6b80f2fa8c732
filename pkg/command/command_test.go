package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() *CommandNode {
	return &CommandNode{
		Name: "root",
		Kind: KindGroup,
		Options: []OptionSpec{
			{Name: "verbose", Type: TypeBoolean},
		},
		Children: []*CommandNode{
			{
				Name:       "greet",
				Kind:       KindCommand,
				Aliases:    []string{"hi"},
				HandlerRef: "greet",
				Options: []OptionSpec{
					{Name: "name", Type: TypeString, Required: true},
				},
			},
			{
				Name: "profile",
				Kind: KindGroup,
				Children: []*CommandNode{
					{Name: "list", Kind: KindCommand, HandlerRef: "profile.list"},
				},
			},
		},
	}
}

func TestPrepareIsIdempotent(t *testing.T) {
	root := sampleTree()
	require.NoError(t, Prepare(root))
	require.NoError(t, Prepare(root))

	greet, ok := root.Resolve("greet")
	require.True(t, ok)
	assert.Equal(t, "greet", greet.Name)

	byAlias, ok := root.Resolve("hi")
	require.True(t, ok)
	assert.Same(t, greet, byAlias)
}

func TestPrepareInheritsOptions(t *testing.T) {
	root := sampleTree()
	require.NoError(t, Prepare(root))

	greet, _ := root.Resolve("greet")
	_, hasVerbose := greet.OptionByName("verbose")
	assert.True(t, hasVerbose, "child should inherit group option")

	_, hasName := greet.OptionByName("name")
	assert.True(t, hasName, "local option must survive inheritance merge")
}

func TestResolvePathNested(t *testing.T) {
	root := sampleTree()
	require.NoError(t, Prepare(root))

	n, err := root.ResolvePath([]string{"profile", "list"})
	require.NoError(t, err)
	assert.Equal(t, "list", n.Name)

	_, err = root.ResolvePath([]string{"profile", "missing"})
	assert.Error(t, err)
}

func TestValidateRejectsBothHandlerShapes(t *testing.T) {
	n := &CommandNode{
		Name:            "bad",
		Kind:            KindCommand,
		HandlerRef:      "x",
		ChainedHandlers: []ChainedStep{{HandlerRef: "y"}},
	}
	assert.Error(t, n.Validate())
}

func TestValidateRejectsGroupWithHandler(t *testing.T) {
	n := &CommandNode{
		Name:       "bad",
		Kind:       KindGroup,
		HandlerRef: "x",
		Children:   []*CommandNode{{Name: "c", Kind: KindCommand, HandlerRef: "z"}},
	}
	assert.Error(t, n.Validate())
}

func TestValidateRejectsDuplicateSiblingNames(t *testing.T) {
	root := &CommandNode{
		Name: "root",
		Kind: KindGroup,
		Children: []*CommandNode{
			{Name: "a", Kind: KindCommand, HandlerRef: "a"},
			{Name: "b", Kind: KindCommand, HandlerRef: "b", Aliases: []string{"a"}},
		},
	}
	assert.Error(t, Prepare(root))
}

func TestArgumentsCloneIsIndependent(t *testing.T) {
	a := NewArguments()
	a.Named["x"] = 1
	b := a.Clone()
	b.Named["x"] = 2
	assert.Equal(t, 1, a.Named["x"])
	assert.Equal(t, 2, b.Named["x"])
}

func TestSchemaMarksRequired(t *testing.T) {
	root := sampleTree()
	require.NoError(t, Prepare(root))
	greet, _ := root.Resolve("greet")

	s, err := greet.Schema()
	require.NoError(t, err)
	assert.Contains(t, s.Required, "name")
}
