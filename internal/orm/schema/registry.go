package schema

import (
	"fmt"
	"sync"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"
)

// Registry maps entity names to their definitions and tracks base/derived
// relationships for inheritance
type Registry struct {
	entities map[string]*Entity
	order    []string
	started  bool
	logger   *zap.Logger
	mu       sync.RWMutex
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithLogger sets the registry logger
func WithLogger(logger *zap.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates a new entity registry
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		entities: make(map[string]*Entity),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds entity definitions. Relations may refer to entities that
// are registered later; they are resolved by Start.
func (r *Registry) Register(entities ...*Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range entities {
		if e.Name == "" {
			return fmt.Errorf("entity name cannot be empty")
		}
		if _, exists := r.entities[e.Name]; exists {
			return fmt.Errorf("%s: %w", e.Name, ErrDuplicateEntity)
		}
		if e.Fields == nil {
			e.Fields = make(map[string]*Field)
		}
		if e.Hooks == nil {
			e.Hooks = make(map[HookType]*Hook)
		}
		if e.TypeKey == "" {
			e.TypeKey = "type"
		}
		if e.PrimaryKey == "" && !e.IsComposite() {
			e.PrimaryKey = "id"
		}
		for name, f := range e.Fields {
			f.Name = name
		}
		e.registry = r
		r.entities[e.Name] = e
		r.order = append(r.order, e.Name)
	}

	r.started = false
	return nil
}

// Start resolves inheritance and relation defaults and validates the
// relation graph. It must be called after all entities are registered.
func (r *Registry) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.order {
		e := r.entities[name]
		if e.own == nil {
			e.own = make(map[string]*Field, len(e.Fields))
			for k, f := range e.Fields {
				e.own[k] = f
			}
		}
	}

	for _, name := range r.order {
		if err := r.inherit(r.entities[name]); err != nil {
			return err
		}
	}

	for _, name := range r.order {
		e := r.entities[name]
		for _, fieldName := range e.RelationNames() {
			r.resolveDefaults(e, e.Fields[fieldName].Relation)
		}
	}

	graph := NewRelationGraph(r.entities)
	if err := graph.Validate(); err != nil {
		return err
	}

	for _, name := range r.order {
		r.checkTypeMapping(r.entities[name])
	}

	r.started = true
	return nil
}

// Started reports whether Start completed since the last registration
func (r *Registry) Started() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.started
}

// inherit merges the base entity's fields and key into a derived entity
func (r *Registry) inherit(e *Entity) error {
	if !e.IsDerived() {
		return nil
	}
	base, ok := r.entities[e.Base]
	if !ok {
		return fmt.Errorf("entity %s extends %w", e.Name, &UnknownEntityError{Name: e.Base})
	}
	if base.IsDerived() {
		return fmt.Errorf("entity %s extends %s which is itself derived", e.Name, base.Name)
	}

	merged := make(map[string]*Field, len(base.own)+len(e.own))
	for k, f := range base.own {
		merged[k] = f
	}
	for k, f := range e.own {
		merged[k] = f
	}
	e.Fields = merged
	e.PrimaryKey = base.PrimaryKey
	e.CompositeKey = base.CompositeKey
	e.TypeKey = base.TypeKey
	return nil
}

// resolveDefaults fills key names the declaration left empty
func (r *Registry) resolveDefaults(owner *Entity, rel *Relation) {
	related := r.entities[rel.Related]
	localKey := func(e *Entity) string {
		if e == nil {
			return "id"
		}
		return e.LocalKey()
	}
	fk := func(name string) string {
		return inflection.Singular(name) + "_id"
	}

	switch rel.Type {
	case RelationHasOne, RelationHasMany:
		if rel.ForeignKey == "" {
			rel.ForeignKey = fk(owner.BaseName())
		}
		if rel.LocalKey == "" {
			rel.LocalKey = localKey(owner)
		}
	case RelationBelongsTo:
		if rel.ForeignKey == "" {
			rel.ForeignKey = fk(rel.Related)
		}
		if rel.OwnerKey == "" {
			rel.OwnerKey = localKey(related)
		}
	case RelationHasManyBy:
		if rel.ForeignKey == "" {
			rel.ForeignKey = fk(rel.Related) + "s"
		}
		if rel.OwnerKey == "" {
			rel.OwnerKey = localKey(related)
		}
	case RelationHasManyThrough:
		if rel.FirstKey == "" {
			rel.FirstKey = fk(owner.BaseName())
		}
		if rel.SecondKey == "" {
			rel.SecondKey = fk(rel.Through)
		}
		if rel.LocalKey == "" {
			rel.LocalKey = localKey(owner)
		}
		if rel.SecondLocalKey == "" {
			rel.SecondLocalKey = localKey(r.entities[rel.Through])
		}
	case RelationBelongsToMany:
		if rel.ForeignPivotKey == "" {
			rel.ForeignPivotKey = fk(owner.BaseName())
		}
		if rel.RelatedPivotKey == "" {
			rel.RelatedPivotKey = fk(rel.Related)
		}
		fallthrough
	case RelationMorphToMany, RelationMorphedByMany:
		if rel.ParentKey == "" {
			rel.ParentKey = localKey(owner)
		}
		if rel.RelatedKey == "" {
			rel.RelatedKey = localKey(related)
		}
		if rel.PivotAccessor == "" {
			rel.PivotAccessor = "pivot"
		}
	case RelationMorphOne, RelationMorphMany:
		if rel.LocalKey == "" {
			rel.LocalKey = localKey(owner)
		}
	}
}

// checkTypeMapping warns about derived entities whose base declares no
// discriminator mapping
func (r *Registry) checkTypeMapping(e *Entity) {
	if !e.IsDerived() {
		return
	}
	base := r.entities[e.Base]
	if base != nil && len(base.Types) == 0 {
		r.logger.Warn("derived entity extends a base without type mapping; type dispatch is unavailable",
			zap.String("entity", e.Name),
			zap.String("base", base.Name))
	}
}

func (r *Registry) lookup(name string) (*Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[name]
	return e, ok
}

// Entity returns the definition registered under name
func (r *Registry) Entity(name string) (*Entity, error) {
	e, ok := r.lookup(name)
	if !ok {
		return nil, &UnknownEntityError{Name: name}
	}
	return e, nil
}

// BaseEntity returns the entity whose table holds name's records
func (r *Registry) BaseEntity(name string) (*Entity, error) {
	e, err := r.Entity(name)
	if err != nil {
		return nil, err
	}
	if !e.IsDerived() {
		return e, nil
	}
	return r.Entity(e.Base)
}

// Entities returns all entities in registration order
func (r *Registry) Entities() []*Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Entity, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entities[name])
	}
	return out
}

// Names returns all entity names in registration order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Exists checks if an entity is registered
func (r *Registry) Exists(name string) bool {
	_, ok := r.lookup(name)
	return ok
}

// Count returns the number of registered entities
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}

// DependencyOrder returns entity names with belongs-to targets first
func (r *Registry) DependencyOrder() ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return NewRelationGraph(r.entities).TopologicalSort()
}

// Clear removes all registered entities (useful for testing)
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities = make(map[string]*Entity)
	r.order = nil
	r.started = false
}
