package chainlink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tmellor/forge/pkg/command"
)

func TestBuildStepArgumentsBindsFromPriorData(t *testing.T) {
	step := command.ChainedStep{
		HandlerRef: "h2",
		ArgMapping: []command.ArgMapping{
			{FromPriorStepIndex: 0, JSONPath: "token", ToArg: "auth"},
		},
	}
	top := command.NewArguments()
	prior := []any{map[string]any{"token": "T"}}

	args := BuildStepArguments(step, top, prior)
	assert.Equal(t, "T", args.Named["auth"])
}

func TestBuildStepArgumentsMissingPathBindsNil(t *testing.T) {
	step := command.ChainedStep{
		ArgMapping: []command.ArgMapping{
			{FromPriorStepIndex: 0, JSONPath: "missing.path", ToArg: "x"},
		},
	}
	top := command.NewArguments()
	prior := []any{map[string]any{"token": "T"}}

	args := BuildStepArguments(step, top, prior)
	v, ok := args.Get("x")
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestBuildStepArgumentsArrayIndex(t *testing.T) {
	step := command.ChainedStep{
		ArgMapping: []command.ArgMapping{
			{FromPriorStepIndex: 0, JSONPath: "items.1.id", ToArg: "itemID"},
		},
	}
	top := command.NewArguments()
	prior := []any{map[string]any{
		"items": []any{
			map[string]any{"id": "a"},
			map[string]any{"id": "b"},
		},
	}}

	args := BuildStepArguments(step, top, prior)
	assert.Equal(t, "b", args.Named["itemID"])
}

func TestBuildStepArgumentsStartsFromTopLevelCopy(t *testing.T) {
	top := command.NewArguments()
	top.Named["preset"] = "keep-me"
	step := command.ChainedStep{}

	args := BuildStepArguments(step, top, nil)
	assert.Equal(t, "keep-me", args.Named["preset"])

	args.Named["preset"] = "mutated"
	assert.Equal(t, "keep-me", top.Named["preset"], "must not mutate the caller's top-level Arguments")
}

func TestBuildStepArgumentsOverridesExistingBinding(t *testing.T) {
	top := command.NewArguments()
	top.Named["auth"] = "stale"
	step := command.ChainedStep{
		ArgMapping: []command.ArgMapping{
			{FromPriorStepIndex: 0, JSONPath: "token", ToArg: "auth"},
		},
	}
	prior := []any{map[string]any{"token": "fresh"}}

	args := BuildStepArguments(step, top, prior)
	assert.Equal(t, "fresh", args.Named["auth"])
}

func TestBuildStepArgumentsOutOfRangeStepIndexBindsNil(t *testing.T) {
	step := command.ChainedStep{
		ArgMapping: []command.ArgMapping{
			{FromPriorStepIndex: 5, JSONPath: "token", ToArg: "auth"},
		},
	}
	args := BuildStepArguments(step, command.NewArguments(), nil)
	v, ok := args.Get("auth")
	assert.True(t, ok)
	assert.Nil(t, v)
}
