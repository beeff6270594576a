// Package hooks manages global lifecycle hooks and executes them together
// with entity-local hooks.
package hooks

import (
	"fmt"
	"sync"

	"github.com/conduit-lang/memdb/internal/orm/schema"
)

type entry struct {
	id   int
	hook *schema.Hook
}

// Registry holds global hooks. Each registry is independent; construct one
// per database and Reset it on teardown.
type Registry struct {
	mu     sync.RWMutex
	hooks  map[schema.HookType][]*entry
	lastID int
}

// NewRegistry creates a new hook registry
func NewRegistry() *Registry {
	return &Registry{
		hooks: make(map[schema.HookType][]*entry),
	}
}

func (r *Registry) register(hook *schema.Hook) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastID++
	r.hooks[hook.Type] = append(r.hooks[hook.Type], &entry{id: r.lastID, hook: hook})
	return r.lastID
}

// OnMutation registers a global mutation hook and returns its id
func (r *Registry) OnMutation(hookType schema.HookType, fn schema.MutationHook) int {
	return r.register(&schema.Hook{Type: hookType, Mutation: fn})
}

// OnSelect registers a global select hook and returns its id
func (r *Registry) OnSelect(hookType schema.HookType, fn schema.SelectHook) int {
	return r.register(&schema.Hook{Type: hookType, Select: fn})
}

// On registers a hook by event name. fn must be a mutation hook for
// mutation events and a select hook for select events.
func (r *Registry) On(event string, fn interface{}) (int, error) {
	hookType, ok := schema.ParseHookType(event)
	if !ok {
		return 0, fmt.Errorf("unknown hook event: %s", event)
	}

	if hookType.IsSelect() {
		switch f := fn.(type) {
		case schema.SelectHook:
			return r.OnSelect(hookType, f), nil
		case func([]*schema.Model, string) []*schema.Model:
			return r.OnSelect(hookType, f), nil
		}
		return 0, fmt.Errorf("hook %s expects a select callback, got %T", event, fn)
	}

	switch f := fn.(type) {
	case schema.MutationHook:
		return r.OnMutation(hookType, f), nil
	case func(*schema.Model, string) bool:
		return r.OnMutation(hookType, f), nil
	}
	return 0, fmt.Errorf("hook %s expects a mutation callback, got %T", event, fn)
}

// Off removes the hook with the given id. It reports whether a hook was
// removed.
func (r *Registry) Off(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for hookType, entries := range r.hooks {
		for i, e := range entries {
			if e.id != id {
				continue
			}
			r.hooks[hookType] = append(entries[:i:i], entries[i+1:]...)
			return true
		}
	}
	return false
}

// GetHooks returns a snapshot of the global hooks for a type, in
// registration order
func (r *Registry) GetHooks(hookType schema.HookType) []*schema.Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.hooks[hookType]
	out := make([]*schema.Hook, len(entries))
	for i, e := range entries {
		out[i] = e.hook
	}
	return out
}

// HasHooks returns true if there are any hooks registered for the given type
func (r *Registry) HasHooks(hookType schema.HookType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hooks[hookType]) > 0
}

// Count returns the number of registered hooks
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, entries := range r.hooks {
		n += len(entries)
	}
	return n
}

// Reset removes every hook. Ids keep increasing across resets.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = make(map[schema.HookType][]*entry)
}
