package processor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tmellor/forge/internal/chainlink"
	"github.com/tmellor/forge/internal/forgelog"
	"github.com/tmellor/forge/internal/profilestore"
	"github.com/tmellor/forge/pkg/command"
	"github.com/tmellor/forge/pkg/handler"
	"github.com/tmellor/forge/pkg/response"
)

// execute runs the pipeline's execution stage: either a single handler,
// or a chain of handlers each fed by chainlink.BuildStepArguments from
// the prior steps' structured data, stopping at the first failing step.
func (p *Processor) execute(ctx context.Context, cancel <-chan struct{}, resp *response.Response, args command.Arguments, profiles *profilestore.ProfileMap) {
	if p.node.HandlerRef != "" {
		p.runOne(ctx, resp, p.node.HandlerRef, args, profiles, false)
		return
	}
	p.runChain(ctx, cancel, resp, args, profiles)
}

// runOne resolves and runs a single handler against resp, applying the
// handler-error mapping table to whatever it returns.
func (p *Processor) runOne(ctx context.Context, resp *response.Response, handlerRef string, args command.Arguments, profiles *profilestore.ProfileMap, isChained bool) {
	h, err := p.handlers.Resolve(handlerRef)
	if err != nil {
		forgelog.ErrorCtx(ctx, "handler load failed",
			forgelog.KeyHandlerRef, handlerRef,
			forgelog.KeyError, err.Error())
		resp.SetError(&response.ErrorRecord{
			Kind:              response.KindInternal,
			Subkind:           response.SubkindHandlerInstantiation,
			Message:           "Handler Instantiation Failed",
			AdditionalDetails: handlerRef,
		})
		return
	}

	err = h.Process(handler.Params{
		Ctx:        ctx,
		Response:   resp,
		Profiles:   profiles,
		Arguments:  args,
		Definition: p.node,
		FullTree:   p.root,
		IsChained:  isChained,
	})

	applyHandlerOutcome(resp, err)
}

// applyHandlerOutcome implements the handler-error mapping table: a
// handler that returns nil relies on having already called
// Response.Succeeded/Failed itself (a bare nil return with no terminal
// state set is treated as success); any returned error is classified by
// type into the matching error kind.
func applyHandlerOutcome(resp *response.Response, err error) {
	if err == nil {
		if !resp.IsTerminal() {
			resp.Succeeded()
		}
		return
	}

	switch e := err.(type) {
	case *handler.ImperativeError:
		rec := &response.ErrorRecord{
			Kind:              response.KindHandlerImperative,
			Message:           e.Message,
			AdditionalDetails: e.AdditionalDetails,
		}
		for _, c := range e.CauseErrors {
			rec.CauseChain = append(rec.CauseChain, &response.ErrorRecord{
				Kind:    response.KindHandlerImperative,
				Message: c.Error(),
			})
		}
		resp.SetError(rec)
	case *handler.UnhandledError:
		resp.SetError(&response.ErrorRecord{
			Kind:              response.KindHandlerUnhandled,
			Message:           fmt.Sprintf("Unexpected Command Error: %s", e.Message),
			AdditionalDetails: e.Stack,
			Stack:             e.Stack,
		})
	case handler.StringRejectError:
		resp.SetError(&response.ErrorRecord{
			Kind:    response.KindHandlerStringReject,
			Message: string(e),
		})
	default:
		resp.SetError(&response.ErrorRecord{
			Kind:              response.KindHandlerUnhandled,
			Message:           fmt.Sprintf("Unexpected Command Error: %s", err.Error()),
			AdditionalDetails: jsonStringify(err.Error()),
		})
	}
}

func jsonStringify(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// runChain executes each chained step in order, building that step's
// Response seeded with the cumulative prior output (a chain shares one
// growing output buffer but each step gets a fresh terminal state),
// stopping at the first step whose Response ends in failure.
func (p *Processor) runChain(ctx context.Context, cancel <-chan struct{}, resp *response.Response, top command.Arguments, profiles *profilestore.ProfileMap) {
	var priorData []any
	stdout, stderr := "", ""

	for _, step := range p.node.ChainedHandlers {
		if cancelled(cancel) {
			resp.SeedOutput(stdout, stderr)
			resp.SetError(&response.ErrorRecord{
				Kind:    response.KindInternal,
				Subkind: response.SubkindCancelled,
				Message: "invocation cancelled",
			})
			return
		}

		stepArgs := chainlink.BuildStepArguments(step, top, priorData)

		stepResp := response.New(
			response.WithFormat(resp.Format()),
			response.WithSilent(step.Silent || resp.Silent()),
			response.WithID(resp.ID()),
		)
		stepResp.SeedOutput(stdout, stderr)

		p.runOne(ctx, stepResp, step.HandlerRef, stepArgs, profiles, true)
		rec := stepResp.ErrorRecord()
		snap := stepResp.Finalize()

		stdout, stderr = snap.Stdout, snap.Stderr
		priorData = append(priorData, snap.Data)

		if !snap.Success {
			resp.SeedOutput(stdout, stderr)
			resp.SetData(snap.Data)
			resp.SetMessage(snap.Message)
			if rec != nil {
				resp.SetError(rec)
			} else {
				resp.Failed()
			}
			return
		}
	}

	resp.SeedOutput(stdout, stderr)
	resp.SetData(lastOrNil(priorData))
	resp.Succeeded()
}

func lastOrNil(data []any) any {
	if len(data) == 0 {
		return nil
	}
	return data[len(data)-1]
}
