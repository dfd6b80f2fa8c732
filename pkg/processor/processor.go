// Package processor implements the command processor: the pipeline that
// orchestrates help/validate/prepare/invoke/finish for a resolved command
// node. It is the single place that sequences validation, profile
// resolution, handler execution, and output rendering for every command.
package processor

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tmellor/forge/internal/credential"
	"github.com/tmellor/forge/internal/forgelog"
	"github.com/tmellor/forge/internal/profilestore"
	"github.com/tmellor/forge/internal/syntax"
	"github.com/tmellor/forge/pkg/command"
	"github.com/tmellor/forge/pkg/handler"
	"github.com/tmellor/forge/pkg/response"
)

// HelpGenerator renders help text for a node. Injected so the processor
// never prescribes a concrete help-rendering implementation; that is the
// host's concern.
type HelpGenerator func(node, root *command.CommandNode) string

// StdinReader supplies stdin content for commands that declare
// ReadsStdin. Injected for testability; the default implementation reads
// os.Stdin.
type StdinReader func(ctx context.Context) (string, error)

// StdinArgKey is the conventional Arguments key stdin content is bound to
// when a command declares ReadsStdin.
const StdinArgKey = "_stdin"

// ProfileResolver is the subset of profilestore.Manager the Processor
// depends on, so tests can substitute a fake without constructing a real
// Manager.
type ProfileResolver interface {
	NewResolution() *profilestore.Resolution
	ResolveInto(ctx context.Context, res *profilestore.Resolution, pm *profilestore.ProfileMap, rootType, rootName string) error
}

// Processor orchestrates the pipeline for one CommandNode. It is
// constructed per node; one Processor serves one concurrent invocation at
// a time.
type Processor struct {
	node     *command.CommandNode
	root     *command.CommandNode
	rootName string

	profiles    ProfileResolver
	credentials credential.Backend
	handlers    *handler.Registry
	help        HelpGenerator
	readStdin   StdinReader
	jsonWriter  io.Writer

	metrics *Metrics
}

// Config bundles a Processor's construction-time dependencies.
type Config struct {
	Node        *command.CommandNode
	Root        *command.CommandNode
	RootName    string
	Profiles    ProfileResolver
	Credentials credential.Backend
	Handlers    *handler.Registry
	Help        HelpGenerator
	ReadStdin   StdinReader
	Metrics     *Metrics

	// JSONWriter receives the finalized snapshot, encoded as JSON, for
	// every invocation made with Format == response.FormatJSON and
	// Silent == false. cmd/forge wires os.Stdout here; a nil JSONWriter
	// simply skips that emission, which is useful for tests and for
	// chained sub-invocations that already got their own Response.
	JSONWriter io.Writer
}

// New constructs a Processor from cfg.
func New(cfg Config) *Processor {
	if cfg.Help == nil {
		cfg.Help = defaultHelp
	}
	if cfg.ReadStdin == nil {
		cfg.ReadStdin = readOSStdin
	}
	return &Processor{
		node:        cfg.Node,
		root:        cfg.Root,
		rootName:    cfg.RootName,
		profiles:    cfg.Profiles,
		credentials: cfg.Credentials,
		handlers:    cfg.Handlers,
		help:        cfg.Help,
		readStdin:   cfg.ReadStdin,
		jsonWriter:  cfg.JSONWriter,
		metrics:     cfg.Metrics,
	}
}

func defaultHelp(node, root *command.CommandNode) string {
	return fmt.Sprintf("usage: %s %s [options]", root.Name, node.Name)
}

func readOSStdin(ctx context.Context) (string, error) {
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Help renders help text for the Processor's node through resp.
func (p *Processor) Help(resp *response.Response) {
	resp.Stdout(p.help(p.node, p.root))
	resp.Succeeded()
}

// Validate defers to the Syntax Validator verbatim; it never mutates resp
// (the caller decides what a failed validation means for the Response).
func (p *Processor) Validate(args command.Arguments) syntax.Result {
	return syntax.Validate(p.node, args)
}

// InvokeParams is the argument to Invoke.
type InvokeParams struct {
	Ctx       context.Context
	Arguments command.Arguments
	Silent    bool
	Format    response.Format
	Cancelled <-chan struct{}
}

// Invoke runs the full pipeline and returns the finalized snapshot.
func (p *Processor) Invoke(params InvokeParams) *response.Snapshot {
	if params.Ctx == nil {
		params.Ctx = context.Background()
	}
	format := params.Format
	if format == "" {
		format = response.FormatDefault
	}
	if format != response.FormatDefault && format != response.FormatJSON {
		resp := response.New(response.WithSilent(params.Silent))
		return p.fail(params.Ctx, resp, response.KindInternal, response.SubkindBadFormat,
			fmt.Sprintf("unsupported response format %q", format), "")
	}

	if p.node == nil {
		resp := response.New(response.WithFormat(format), response.WithSilent(params.Silent))
		return p.fail(params.Ctx, resp, response.KindInternal, response.SubkindUnknown, "Invalid processor construction", "")
	}
	if params.Arguments.Named == nil {
		resp := response.New(response.WithFormat(format), response.WithSilent(params.Silent))
		return p.fail(params.Ctx, resp, response.KindInternal, response.SubkindUnknown, "Invocation arguments must be provided", "")
	}
	hasSingle := p.node.HandlerRef != ""
	hasChain := len(p.node.ChainedHandlers) > 0
	if p.node.Kind == command.KindCommand && hasSingle == hasChain {
		resp := response.New(response.WithFormat(format), response.WithSilent(params.Silent))
		return p.fail(params.Ctx, resp, response.KindInternal, response.SubkindUnknown, "Command node has no runnable handler", "")
	}

	resp := response.New(response.WithFormat(format), response.WithSilent(params.Silent))
	ctx := forgelog.WithContext(params.Ctx,
		forgelog.NewInvocationContext(resp.ID(), p.commandPath()))
	if p.metrics != nil {
		stop := p.metrics.startInvocation(p.commandPath())
		defer stop(resp)
	}

	if cancelled(params.Cancelled) {
		return p.fail(ctx, resp, response.KindInternal, response.SubkindCancelled, "invocation cancelled", "")
	}

	ctx = p.advance(ctx, resp, response.StateValidating)
	result, verr := p.safeValidate(params.Arguments)
	if verr != nil {
		resp.SetError(&response.ErrorRecord{
			Kind:    response.KindSyntax,
			Message: "Unexpected syntax validation error",
			CauseChain: []*response.ErrorRecord{
				{Kind: response.KindSyntax, Message: verr.Error()},
			},
		})
		return p.finish(ctx, resp)
	}
	if !result.Valid {
		hint := fmt.Sprintf("Use %q for usage", p.commandPath()+" --help")
		resp.SetMessage("Command syntax invalid")
		resp.Stderr(renderIssues(result.Issues) + "\n" + hint + "\n")
		resp.SetError(&response.ErrorRecord{
			Kind:    response.KindSyntax,
			Message: "Command syntax invalid",
		})
		return p.finish(ctx, resp)
	}

	if cancelled(params.Cancelled) {
		return p.fail(ctx, resp, response.KindInternal, response.SubkindCancelled, "invocation cancelled", "")
	}

	ctx = p.advance(ctx, resp, response.StatePreparing)
	args, profiles, err := p.prepare(ctx, params.Arguments)
	if err != nil {
		rec := prepareErrorRecord(err)
		resp.SetError(rec)
		return p.finish(ctx, resp)
	}

	if cancelled(params.Cancelled) {
		return p.fail(ctx, resp, response.KindInternal, response.SubkindCancelled, "invocation cancelled", "")
	}

	ctx = p.advance(ctx, resp, response.StateExecuting)
	p.execute(ctx, params.Cancelled, resp, args, profiles)

	return p.finish(ctx, resp)
}

// advance moves resp to the next pipeline stage and rebinds the logging
// context so subsequent log lines carry the new state.
func (p *Processor) advance(ctx context.Context, resp *response.Response, s response.State) context.Context {
	resp.SetState(s)
	ctx = forgelog.WithContext(ctx, forgelog.FromContext(ctx).WithState(string(s)))
	forgelog.DebugCtx(ctx, "pipeline stage entered")
	return ctx
}

func cancelled(ch <-chan struct{}) bool {
	if ch == nil {
		return false
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// safeValidate runs the Syntax Validator, converting a validator panic
// into an error so the pipeline can report it as a Syntax failure instead
// of crashing the invocation.
func (p *Processor) safeValidate(args command.Arguments) (result syntax.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return p.Validate(args), nil
}

// commandPath renders the full invocation path from the tree root to the
// Processor's node, e.g. "forge aws s3 ls", for help hints and metrics
// labels.
func (p *Processor) commandPath() string {
	if p.root != nil {
		if segs := pathTo(p.root, p.node); segs != nil {
			return strings.TrimSpace(p.rootName + " " + strings.Join(segs, " "))
		}
	}
	return strings.TrimSpace(p.rootName + " " + p.node.Name)
}

func pathTo(from, target *command.CommandNode) []string {
	if from == target {
		return []string{}
	}
	for _, c := range from.Children {
		if sub := pathTo(c, target); sub != nil {
			return append([]string{c.Name}, sub...)
		}
	}
	return nil
}

func renderIssues(issues []syntax.Issue) string {
	var b strings.Builder
	for _, is := range issues {
		fmt.Fprintf(&b, "%s: %s (%s)\n", is.OptionOrPositional, is.Message, is.Reason)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (p *Processor) fail(ctx context.Context, resp *response.Response, kind response.ErrorKind, subkind, message, details string) *response.Snapshot {
	resp.SetError(&response.ErrorRecord{Kind: kind, Subkind: subkind, Message: message, AdditionalDetails: details})
	return p.finish(ctx, resp)
}

// finish applies step 6 of the pipeline: finalize the Response, write the
// JSON snapshot to the configured JSONWriter when format is json and not
// silent, then return the snapshot.
func (p *Processor) finish(ctx context.Context, resp *response.Response) *response.Snapshot {
	snap := resp.Finalize()
	if p.jsonWriter != nil && resp.Format() == response.FormatJSON && !resp.Silent() {
		if err := resp.WriteJSON(p.jsonWriter); err != nil {
			forgelog.WarnCtx(ctx, "failed to write JSON snapshot", forgelog.KeyError, err.Error())
		}
	}
	forgelog.DebugCtx(ctx, "invocation finished",
		"success", snap.Success,
		forgelog.KeyExitCode, snap.ExitCode,
		forgelog.KeyDurationMs, forgelog.FromContext(ctx).DurationMs())
	return snap
}

// prepare runs pipeline stage 4: optional stdin drain, then profile
// resolution for every type the node declares (required and optional).
func (p *Processor) prepare(ctx context.Context, args command.Arguments) (command.Arguments, *profilestore.ProfileMap, error) {
	if p.node.ReadsStdin && p.readStdin != nil {
		content, err := p.readStdin(ctx)
		if err != nil {
			return args, nil, &prepareError{subkind: response.SubkindStdinFailed, message: "failed to read stdin", cause: err}
		}
		args = args.Clone()
		args.Named[StdinArgKey] = content
	}

	pm, err := p.loadProfiles(ctx, args)
	if err != nil {
		return args, nil, err
	}
	return args, pm, nil
}

func (p *Processor) loadProfiles(ctx context.Context, args command.Arguments) (*profilestore.ProfileMap, error) {
	pm := profilestore.NewProfileMap()
	if p.node.Profile == nil || p.profiles == nil {
		return pm, nil
	}

	res := p.profiles.NewResolution()

	for _, t := range p.node.Profile.Required {
		name := profileNameArg(args, t)
		if err := p.profiles.ResolveInto(ctx, res, pm, t, name); err != nil {
			return nil, translateProfileError(err)
		}
	}
	for _, t := range p.node.Profile.Optional {
		name, present := args.Get(t + "Profile")
		if !present {
			continue
		}
		nameStr, _ := name.(string)
		if err := p.profiles.ResolveInto(ctx, res, pm, t, nameStr); err != nil {
			return nil, translateProfileError(err)
		}
	}

	return pm, nil
}

func profileNameArg(args command.Arguments, profileType string) string {
	v, ok := args.Get(profileType + "Profile")
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
