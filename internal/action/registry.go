package action

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dshills/keymapper/internal/logging"
	"github.com/dshills/keymapper/internal/mapping"
)

// Handler performs actions of one type.
type Handler interface {
	Handle(ctx context.Context, a mapping.Action) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, a mapping.Action) error

// Handle calls f(ctx, a).
func (f HandlerFunc) Handle(ctx context.Context, a mapping.Action) error {
	return f(ctx, a)
}

// Registry dispatches actions to handlers by type.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	log      *logging.Logger
}

// NewRegistry creates an empty registry. log may be nil.
func NewRegistry(log *logging.Logger) *Registry {
	if log == nil {
		log = logging.Nop()
	}
	return &Registry{
		handlers: make(map[string]Handler),
		log:      log,
	}
}

// Register adds the handler for an action type.
func (r *Registry) Register(actionType string, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handlers[actionType]; ok {
		return fmt.Errorf("%w: %s", ErrHandlerExists, actionType)
	}
	r.handlers[actionType] = h
	return nil
}

// Unregister removes the handler for an action type.
func (r *Registry) Unregister(actionType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, actionType)
}

// Get returns the handler for an action type, or nil.
func (r *Registry) Get(actionType string) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[actionType]
}

// Types returns the registered action types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Perform runs the handler registered for a.Type.
func (r *Registry) Perform(ctx context.Context, a mapping.Action) error {
	h := r.Get(a.Type)
	if h == nil {
		return fmt.Errorf("%w: %q", ErrUnknownType, a.Type)
	}

	r.log.Debug("performing %s", a)
	if err := h.Handle(ctx, a); err != nil {
		return fmt.Errorf("action %s: %w", a, err)
	}
	return nil
}
