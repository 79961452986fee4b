// internal/delivery/registry.go
package delivery

import (
	"fmt"
	"strings"
	"sync"

	"github.com/user/graphchef/internal/types"
)

// Handler delivers an answer to the channel that owns the thread key.
type Handler func(key types.ThreadKey, message string) error

// Registry routes answers to the appropriate delivery handler based on
// thread key prefix (e.g. "telegram:", "task:").
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty delivery registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler for thread keys starting with prefix.
func (r *Registry) Register(prefix string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[prefix] = handler
}

// Deliver finds the handler matching the thread key prefix and calls it.
// Returns an error if no handler is registered for the prefix.
func (r *Registry) Deliver(key types.ThreadKey, message string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for prefix, handler := range r.handlers {
		if strings.HasPrefix(string(key), prefix) {
			return handler(key, message)
		}
	}
	return fmt.Errorf("no delivery handler for thread key: %s", key)
}
