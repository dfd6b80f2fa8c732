package processor

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmellor/forge/internal/profilestore"
	"github.com/tmellor/forge/pkg/command"
	"github.com/tmellor/forge/pkg/handler"
	"github.com/tmellor/forge/pkg/response"
)

func greetNode() *command.CommandNode {
	return &command.CommandNode{
		Name:       "greet",
		Kind:       command.KindCommand,
		HandlerRef: "greet",
		Options: []command.OptionSpec{
			{Name: "name", Type: command.TypeString, Required: true},
		},
	}
}

type nullResolver struct{}

func (nullResolver) NewResolution() *profilestore.Resolution { return (&profilestore.Manager{}).NewResolution() }
func (nullResolver) ResolveInto(ctx context.Context, res *profilestore.Resolution, pm *profilestore.ProfileMap, rootType, rootName string) error {
	return nil
}

func newTestProcessor(t *testing.T, node *command.CommandNode, registry *handler.Registry) *Processor {
	root := &command.CommandNode{Name: "forge", Kind: command.KindGroup, Children: []*command.CommandNode{node}}
	require.NoError(t, command.Prepare(root))
	return New(Config{
		Node:     node,
		Root:     root,
		RootName: "forge",
		Profiles: nullResolver{},
		Handlers: registry,
	})
}

func TestInvokeSingleSuccessfulCommand(t *testing.T) {
	registry := handler.NewRegistry()
	registry.Register("greet", func() handler.Handler {
		return handler.HandlerFunc(func(p handler.Params) error {
			p.Response.SetData(map[string]any{"greeting": "hello " + p.Arguments.Named["name"].(string)})
			p.Response.Succeeded()
			return nil
		})
	})
	proc := newTestProcessor(t, greetNode(), registry)

	args := command.NewArguments()
	args.Named["name"] = "ada"

	snap := proc.Invoke(InvokeParams{Arguments: args})
	assert.True(t, snap.Success)
	assert.Equal(t, response.ExitSuccess, snap.ExitCode)
	assert.Nil(t, snap.Error)
}

func TestInvokeSyntaxFailure(t *testing.T) {
	registry := handler.NewRegistry()
	registry.Register("greet", func() handler.Handler {
		return handler.HandlerFunc(func(p handler.Params) error { return nil })
	})
	proc := newTestProcessor(t, greetNode(), registry)

	snap := proc.Invoke(InvokeParams{Arguments: command.NewArguments()})
	require.False(t, snap.Success)
	require.NotNil(t, snap.Error)
	assert.Equal(t, "Command syntax invalid", snap.Message)
	assert.Equal(t, response.ExitFailure, snap.ExitCode)
	assert.Contains(t, snap.Stderr, "name", "stderr must report the missing option")
	assert.Contains(t, snap.Stderr, `"forge greet --help"`, "stderr must carry the help hint")
}

func TestInvokeRejectsUnknownFormat(t *testing.T) {
	proc := newTestProcessor(t, greetNode(), handler.NewRegistry())

	snap := proc.Invoke(InvokeParams{Arguments: command.NewArguments(), Format: response.Format("yaml")})
	require.False(t, snap.Success)
	require.NotNil(t, snap.Error)
	assert.Contains(t, snap.Error.Msg, "unsupported response format")
}

func TestInvokeRejectsNilArguments(t *testing.T) {
	proc := newTestProcessor(t, greetNode(), handler.NewRegistry())

	snap := proc.Invoke(InvokeParams{})
	require.False(t, snap.Success)
	require.NotNil(t, snap.Error)
}

func TestInvokeJSONFormatWritesSnapshotToWriter(t *testing.T) {
	registry := handler.NewRegistry()
	registry.Register("greet", func() handler.Handler {
		return handler.HandlerFunc(func(p handler.Params) error {
			p.Response.Succeeded()
			return nil
		})
	})
	node := greetNode()
	root := &command.CommandNode{Name: "forge", Kind: command.KindGroup, Children: []*command.CommandNode{node}}
	require.NoError(t, command.Prepare(root))

	var buf bytes.Buffer
	proc := New(Config{
		Node:       node,
		Root:       root,
		RootName:   "forge",
		Profiles:   nullResolver{},
		Handlers:   registry,
		JSONWriter: &buf,
	})

	args := command.NewArguments()
	args.Named["name"] = "ada"
	snap := proc.Invoke(InvokeParams{Arguments: args, Format: response.FormatJSON})

	require.True(t, snap.Success)
	assert.Contains(t, buf.String(), `"success":true`)
}

func TestCommandPathWalksNestedGroups(t *testing.T) {
	leaf := &command.CommandNode{Name: "ls", Kind: command.KindCommand, HandlerRef: "ls"}
	root := &command.CommandNode{
		Name: "forge",
		Kind: command.KindGroup,
		Children: []*command.CommandNode{
			{Name: "aws", Kind: command.KindGroup, Children: []*command.CommandNode{
				{Name: "s3", Kind: command.KindGroup, Children: []*command.CommandNode{leaf}},
			}},
		},
	}
	require.NoError(t, command.Prepare(root))

	proc := New(Config{Node: leaf, Root: root, RootName: "forge", Profiles: nullResolver{}, Handlers: handler.NewRegistry()})
	assert.Equal(t, "forge aws s3 ls", proc.commandPath())
}

func TestInvokeHandlerImperativeError(t *testing.T) {
	registry := handler.NewRegistry()
	registry.Register("greet", func() handler.Handler {
		return handler.HandlerFunc(func(p handler.Params) error {
			return &handler.ImperativeError{Message: "profile missing region", AdditionalDetails: "detail"}
		})
	})
	proc := newTestProcessor(t, greetNode(), registry)

	args := command.NewArguments()
	args.Named["name"] = "ada"
	snap := proc.Invoke(InvokeParams{Arguments: args})

	require.False(t, snap.Success)
	require.NotNil(t, snap.Error)
	assert.Equal(t, "profile missing region", snap.Error.Msg)
}

func TestInvokeHandlerStringReject(t *testing.T) {
	registry := handler.NewRegistry()
	registry.Register("greet", func() handler.Handler {
		return handler.HandlerFunc(func(p handler.Params) error {
			return handler.StringRejectError("nope")
		})
	})
	proc := newTestProcessor(t, greetNode(), registry)

	args := command.NewArguments()
	args.Named["name"] = "ada"
	snap := proc.Invoke(InvokeParams{Arguments: args})

	require.False(t, snap.Success)
	require.NotNil(t, snap.Error)
	assert.Equal(t, "nope", snap.Error.Msg)
}

func TestInvokeHandlerUnknownErrorTypeIsUnhandled(t *testing.T) {
	registry := handler.NewRegistry()
	registry.Register("greet", func() handler.Handler {
		return handler.HandlerFunc(func(p handler.Params) error {
			return errors.New("boom")
		})
	})
	proc := newTestProcessor(t, greetNode(), registry)

	args := command.NewArguments()
	args.Named["name"] = "ada"
	snap := proc.Invoke(InvokeParams{Arguments: args})

	require.False(t, snap.Success)
	require.NotNil(t, snap.Error)
	assert.Contains(t, snap.Error.Msg, "Unexpected Command Error")
}

func TestInvokeHandlerInstantiationFailureIsInternal(t *testing.T) {
	registry := handler.NewRegistry() // nothing registered
	proc := newTestProcessor(t, greetNode(), registry)

	args := command.NewArguments()
	args.Named["name"] = "ada"
	snap := proc.Invoke(InvokeParams{Arguments: args})

	require.False(t, snap.Success)
	require.NotNil(t, snap.Error)
	assert.Equal(t, "Handler Instantiation Failed", snap.Error.Msg)
}

func chainedNode() *command.CommandNode {
	return &command.CommandNode{
		Name: "pipeline",
		Kind: command.KindCommand,
		ChainedHandlers: []command.ChainedStep{
			{HandlerRef: "step1"},
			{HandlerRef: "step2", ArgMapping: []command.ArgMapping{
				{FromPriorStepIndex: 0, JSONPath: "id", ToArg: "sourceID"},
			}},
		},
	}
}

func TestInvokeChainedHandlersPassData(t *testing.T) {
	registry := handler.NewRegistry()
	registry.Register("step1", func() handler.Handler {
		return handler.HandlerFunc(func(p handler.Params) error {
			p.Response.SetData(map[string]any{"id": "abc"})
			p.Response.Succeeded()
			return nil
		})
	})
	var observedID any
	registry.Register("step2", func() handler.Handler {
		return handler.HandlerFunc(func(p handler.Params) error {
			observedID = p.Arguments.Named["sourceID"]
			p.Response.Succeeded()
			return nil
		})
	})
	proc := newTestProcessor(t, chainedNode(), registry)

	snap := proc.Invoke(InvokeParams{Arguments: command.NewArguments()})
	require.True(t, snap.Success)
	assert.Equal(t, "abc", observedID)
}

func TestInvokeChainStopsAtFirstFailure(t *testing.T) {
	registry := handler.NewRegistry()
	registry.Register("step1", func() handler.Handler {
		return handler.HandlerFunc(func(p handler.Params) error {
			return &handler.ImperativeError{Message: "step1 failed"}
		})
	})
	step2Called := false
	registry.Register("step2", func() handler.Handler {
		return handler.HandlerFunc(func(p handler.Params) error {
			step2Called = true
			p.Response.Succeeded()
			return nil
		})
	})
	proc := newTestProcessor(t, chainedNode(), registry)

	snap := proc.Invoke(InvokeParams{Arguments: command.NewArguments()})
	require.False(t, snap.Success)
	assert.False(t, step2Called)
	assert.Equal(t, "step1 failed", snap.Error.Msg)
}

// TestInvokeChainPreservesFailedStepErrorKind checks that the parent
// Response's ErrorRecord carries the failed step's actual kind
// (response.ErrorRecord, not the wire-facing Snapshot, is the only place
// Kind survives), not a kind hardcoded regardless of what the step
// actually raised.
func TestInvokeChainPreservesFailedStepErrorKind(t *testing.T) {
	cases := []struct {
		name     string
		step1Err error
		wantKind response.ErrorKind
		wantMsg  string
	}{
		{
			name:     "string reject",
			step1Err: handler.StringRejectError("nope"),
			wantKind: response.KindHandlerStringReject,
			wantMsg:  "nope",
		},
		{
			name:     "unhandled generic error",
			step1Err: errors.New("boom"),
			wantKind: response.KindHandlerUnhandled,
		},
		{
			name:     "imperative error",
			step1Err: &handler.ImperativeError{Message: "bad input"},
			wantKind: response.KindHandlerImperative,
			wantMsg:  "bad input",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			registry := handler.NewRegistry()
			registry.Register("step1", func() handler.Handler {
				return handler.HandlerFunc(func(p handler.Params) error {
					return tc.step1Err
				})
			})
			registry.Register("step2", func() handler.Handler {
				return handler.HandlerFunc(func(p handler.Params) error {
					p.Response.Succeeded()
					return nil
				})
			})
			proc := newTestProcessor(t, chainedNode(), registry)

			resp := response.New()
			proc.execute(context.Background(), nil, resp, command.NewArguments(), profilestore.NewProfileMap())

			rec := resp.ErrorRecord()
			require.NotNil(t, rec)
			assert.Equal(t, tc.wantKind, rec.Kind)
			if tc.wantMsg != "" {
				assert.Equal(t, tc.wantMsg, rec.Message)
			}
		})
	}
}

// TestInvokeChainPreservesHandlerInstantiationFailure covers the scenario
// called out in review: an unregistered handler reference inside a chain
// must surface as Internal/HandlerInstantiation on the parent Response, not
// get relabeled HandlerImperative.
func TestInvokeChainPreservesHandlerInstantiationFailure(t *testing.T) {
	registry := handler.NewRegistry()
	registry.Register("step2", func() handler.Handler {
		return handler.HandlerFunc(func(p handler.Params) error {
			p.Response.Succeeded()
			return nil
		})
	})
	proc := newTestProcessor(t, chainedNode(), registry)

	resp := response.New()
	proc.execute(context.Background(), nil, resp, command.NewArguments(), profilestore.NewProfileMap())

	rec := resp.ErrorRecord()
	require.NotNil(t, rec)
	assert.Equal(t, response.KindInternal, rec.Kind)
	assert.Equal(t, response.SubkindHandlerInstantiation, rec.Subkind)
}

func TestInvokeCancelledMidChainStopsBeforeNextStep(t *testing.T) {
	cancel := make(chan struct{})

	registry := handler.NewRegistry()
	registry.Register("step1", func() handler.Handler {
		return handler.HandlerFunc(func(p handler.Params) error {
			close(cancel) // signalled while step1 is running
			p.Response.Succeeded()
			return nil
		})
	})
	step2Called := false
	registry.Register("step2", func() handler.Handler {
		return handler.HandlerFunc(func(p handler.Params) error {
			step2Called = true
			p.Response.Succeeded()
			return nil
		})
	})
	proc := newTestProcessor(t, chainedNode(), registry)

	snap := proc.Invoke(InvokeParams{Arguments: command.NewArguments(), Cancelled: cancel})
	require.False(t, snap.Success)
	assert.False(t, step2Called, "cancellation at the step boundary must stop the chain")
	require.NotNil(t, snap.Error)
	assert.Contains(t, snap.Error.Msg, "cancelled")
}

func TestHelpRendersThroughResponse(t *testing.T) {
	proc := newTestProcessor(t, greetNode(), handler.NewRegistry())

	resp := response.New()
	proc.Help(resp)
	snap := resp.Finalize()

	assert.True(t, snap.Success)
	assert.Contains(t, snap.Stdout, "greet")
}

func TestInvokeCancelledBeforeValidation(t *testing.T) {
	registry := handler.NewRegistry()
	proc := newTestProcessor(t, greetNode(), registry)

	cancelled := make(chan struct{})
	close(cancelled)

	snap := proc.Invoke(InvokeParams{Arguments: command.NewArguments(), Cancelled: cancelled})
	require.False(t, snap.Success)
	require.NotNil(t, snap.Error)
	assert.Contains(t, snap.Error.Msg, "cancelled")
}
