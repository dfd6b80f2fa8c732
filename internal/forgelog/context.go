package forgelog

import (
	"context"
	"time"
)

type contextKey struct{}

var invocationContextKey = contextKey{}

// InvocationContext holds invocation-scoped logging fields, bound to a
// context once per invocation and injected by the *Ctx log functions.
type InvocationContext struct {
	InvocationID string
	CommandPath  string
	State        string
	StartTime    time.Time
}

// WithContext returns a new context carrying ic.
func WithContext(ctx context.Context, ic *InvocationContext) context.Context {
	return context.WithValue(ctx, invocationContextKey, ic)
}

// FromContext retrieves the InvocationContext from ctx, or nil.
func FromContext(ctx context.Context) *InvocationContext {
	if ctx == nil {
		return nil
	}
	ic, _ := ctx.Value(invocationContextKey).(*InvocationContext)
	return ic
}

// NewInvocationContext creates an InvocationContext for a fresh invocation.
func NewInvocationContext(invocationID, commandPath string) *InvocationContext {
	return &InvocationContext{InvocationID: invocationID, CommandPath: commandPath, StartTime: time.Now()}
}

// Clone returns a copy of ic.
func (ic *InvocationContext) Clone() *InvocationContext {
	if ic == nil {
		return nil
	}
	clone := *ic
	return &clone
}

// WithState returns a copy with State set, used as the pipeline advances.
func (ic *InvocationContext) WithState(state string) *InvocationContext {
	clone := ic.Clone()
	if clone != nil {
		clone.State = state
	}
	return clone
}

// DurationMs returns the elapsed milliseconds since StartTime.
func (ic *InvocationContext) DurationMs() float64 {
	if ic == nil || ic.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(ic.StartTime).Microseconds()) / 1000.0
}
