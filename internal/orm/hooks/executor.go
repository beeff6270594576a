package hooks

import (
	"github.com/conduit-lang/memdb/internal/orm/schema"
	"go.uber.org/zap"
)

// Executor runs global hooks followed by the entity's local hook
type Executor struct {
	registry *Registry
	logger   *zap.Logger
}

// NewExecutor creates a new hook executor
func NewExecutor(registry *Registry, logger *zap.Logger) *Executor {
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{registry: registry, logger: logger}
}

// Registry returns the global hook registry
func (e *Executor) Registry() *Registry {
	return e.registry
}

// Build returns the hooks to run for an entity: global hooks first, then the
// entity's local hook
func (e *Executor) Build(hookType schema.HookType, entity *schema.Entity) []*schema.Hook {
	hooks := e.registry.GetHooks(hookType)
	if entity != nil {
		if local := entity.Hook(hookType); local != nil {
			hooks = append(hooks, local)
		}
	}
	return hooks
}

// Allows runs the mutation hooks for one model and reports whether it may
// proceed. Only vetoing hook types can exclude a model; evaluation stops at
// the first veto.
func (e *Executor) Allows(hookType schema.HookType, entity *schema.Entity, m *schema.Model) bool {
	for _, hook := range e.Build(hookType, entity) {
		if hook.Mutation == nil {
			continue
		}
		if !hook.Mutation(m, entity.Name) && hookType.CanVeto() {
			e.logger.Debug("hook vetoed record",
				zap.String("hook", hookType.String()),
				zap.String("entity", entity.Name))
			return false
		}
	}
	return true
}

// ExecuteMutation runs the mutation hooks for each model and returns the
// models that were not vetoed
func (e *Executor) ExecuteMutation(hookType schema.HookType, entity *schema.Entity, models []*schema.Model) []*schema.Model {
	hooks := e.Build(hookType, entity)
	if len(hooks) == 0 {
		return models
	}

	kept := make([]*schema.Model, 0, len(models))
	for _, m := range models {
		if e.Allows(hookType, entity, m) {
			kept = append(kept, m)
		}
	}
	return kept
}

// ExecuteSelect chains the select hooks: each receives the collection the
// previous one returned
func (e *Executor) ExecuteSelect(hookType schema.HookType, entity *schema.Entity, models []*schema.Model) []*schema.Model {
	for _, hook := range e.Build(hookType, entity) {
		if hook.Select == nil {
			continue
		}
		models = hook.Select(models, entity.Name)
	}
	return models
}
