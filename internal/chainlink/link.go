// Package chainlink computes a chained-handler step's Arguments from the
// top-level invocation Arguments and the structured data produced by prior
// steps, via a deliberately trivial path language: dotted field access and
// numeric array indices. Anything more expressive is a handler's concern,
// not this package's.
package chainlink

import (
	"strconv"
	"strings"

	"github.com/tmellor/forge/pkg/command"
)

// BuildStepArguments produces the Arguments for one chain step, given that
// step's mapping definitions, the top-level invocation Arguments, and the
// structured data (Response.data at finalize) of every prior step in
// order, indexed 0..stepIndex-1. It is deterministic and pure: the result
// is a function only of (top, step, priorData).
func BuildStepArguments(step command.ChainedStep, top command.Arguments, priorData []any) command.Arguments {
	args := top.Clone()

	for _, m := range step.ArgMapping {
		var source any
		if m.FromPriorStepIndex >= 0 && m.FromPriorStepIndex < len(priorData) {
			source = priorData[m.FromPriorStepIndex]
		}

		val, found := evalPath(source, m.JSONPath)
		if !found {
			args.Named[m.ToArg] = nil
			continue
		}
		args.Named[m.ToArg] = val
	}

	return args
}

// evalPath walks a dotted/indexed path ("token", "items.0.id") against an
// arbitrary decoded JSON-like value (map[string]any, []any, or scalar).
// Missing paths report found=false so callers can bind an explicit
// undefined/null rather than erroring.
func evalPath(root any, path string) (any, bool) {
	if path == "" {
		return root, root != nil
	}

	cur := root
	for _, seg := range strings.Split(path, ".") {
		if cur == nil {
			return nil, false
		}

		if idx, err := strconv.Atoi(seg); err == nil {
			arr, ok := cur.([]any)
			if !ok || idx < 0 || idx >= len(arr) {
				return nil, false
			}
			cur = arr[idx]
			continue
		}

		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, exists := m[seg]
		if !exists {
			return nil, false
		}
		cur = v
	}

	return cur, true
}
