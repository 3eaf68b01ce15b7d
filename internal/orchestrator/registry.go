package orchestrator

import (
	"sort"
	"sync"

	"github.com/meshguard/backend-go/internal/domain"
)

// HandlerRegistry maps action types to their injected handlers. Unknown
// types are a configuration error surfaced at execution, never a panic.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[domain.RecoveryActionType]domain.ActionHandler
}

// NewHandlerRegistry creates an empty registry
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		handlers: make(map[domain.RecoveryActionType]domain.ActionHandler),
	}
}

// Register installs the handler for an action type, replacing any previous one
func (r *HandlerRegistry) Register(t domain.RecoveryActionType, h domain.ActionHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[t] = h
}

// RegisterFunc installs a plain function as the handler for an action type
func (r *HandlerRegistry) RegisterFunc(t domain.RecoveryActionType, fn domain.ActionHandlerFunc) {
	r.Register(t, fn)
}

// Get returns the handler for an action type
func (r *HandlerRegistry) Get(t domain.RecoveryActionType) (domain.ActionHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[t]
	return h, ok
}

// Types lists the registered action types, sorted
func (r *HandlerRegistry) Types() []domain.RecoveryActionType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]domain.RecoveryActionType, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
