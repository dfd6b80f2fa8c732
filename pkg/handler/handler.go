// Package handler defines the contract host-supplied command handlers
// implement, and a name→factory registry that resolves handlerRef values
// without reflective or filesystem-directed dynamic loading.
package handler

import (
	"context"
	"fmt"
	"sync"

	"github.com/tmellor/forge/internal/profilestore"
	"github.com/tmellor/forge/pkg/command"
	"github.com/tmellor/forge/pkg/response"
)

// Params is the invocation context handed to a handler's Process method:
// response, profiles, arguments, and both the resolved command's
// definition and the full tree root, plus whether this invocation is one
// step of a chain.
type Params struct {
	Ctx        context.Context
	Response   *response.Response
	Profiles   *profilestore.ProfileMap
	Arguments  command.Arguments
	Definition *command.CommandNode
	FullTree   *command.CommandNode
	IsChained  bool
}

// Handler is the contract a host's registered entry point implements.
// Completion is signalled by a normal return (success, unless the handler
// already called Response.Failed()), or by returning an error matching the
// shape discriminated in pkg/processor's handler-error mapping.
type Handler interface {
	Process(p Params) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(p Params) error

func (f HandlerFunc) Process(p Params) error { return f(p) }

// Factory constructs a Handler instance. Factories are invoked once per
// resolution, not cached, so a handler may hold per-invocation state
// safely.
type Factory func() Handler

// ErrHandlerNotRegistered is returned by Registry.Resolve when no factory
// is registered under the requested handlerRef.
var ErrHandlerNotRegistered = fmt.Errorf("handler: no factory registered for that reference")

// Registry is a name→factory map populated at host startup, standing in
// for filesystem-directed dynamic module loading.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register binds handlerRef to factory. Registering the same ref twice
// overwrites the prior binding, matching "only one implementation active
// per process" for a given name.
func (r *Registry) Register(handlerRef string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[handlerRef] = factory
}

// Resolve instantiates the Handler bound to handlerRef.
func (r *Registry) Resolve(handlerRef string) (Handler, error) {
	r.mu.RLock()
	factory, ok := r.factories[handlerRef]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrHandlerNotRegistered, handlerRef)
	}
	h := factory()
	if h == nil {
		return nil, fmt.Errorf("handler: factory for %q returned a nil handler", handlerRef)
	}
	return h, nil
}
