package schema

import (
	"sort"
)

// HookType represents the type of lifecycle hook
type HookType int

const (
	BeforeCreate HookType = iota
	AfterCreate
	BeforeUpdate
	AfterUpdate
	BeforeDelete
	AfterDelete
	BeforeSelect
	AfterWhere
	AfterOrderBy
	AfterLimit
)

// String returns the string representation of the hook type
func (h HookType) String() string {
	switch h {
	case BeforeCreate:
		return "beforeCreate"
	case AfterCreate:
		return "afterCreate"
	case BeforeUpdate:
		return "beforeUpdate"
	case AfterUpdate:
		return "afterUpdate"
	case BeforeDelete:
		return "beforeDelete"
	case AfterDelete:
		return "afterDelete"
	case BeforeSelect:
		return "beforeSelect"
	case AfterWhere:
		return "afterWhere"
	case AfterOrderBy:
		return "afterOrderBy"
	case AfterLimit:
		return "afterLimit"
	default:
		return "unknown"
	}
}

// IsSelect reports whether the hook intercepts the select pipeline
func (h HookType) IsSelect() bool {
	return h >= BeforeSelect
}

// CanVeto reports whether a false return from the hook excludes a record
func (h HookType) CanVeto() bool {
	return h == BeforeUpdate || h == BeforeDelete
}

// ParseHookType converts an event name to a HookType
func ParseHookType(s string) (HookType, bool) {
	for h := BeforeCreate; h <= AfterLimit; h++ {
		if h.String() == s {
			return h, true
		}
	}
	return 0, false
}

// MutationHook runs for each model affected by a mutation. Returning false
// from a vetoing hook excludes the model; other hooks ignore the result.
type MutationHook func(m *Model, entity string) bool

// SelectHook receives the collection at a select stage and returns the
// collection passed to the next stage.
type SelectHook func(models []*Model, entity string) []*Model

// Hook is a lifecycle callback. Exactly one of Mutation and Select is set,
// matching Type.
type Hook struct {
	Type     HookType
	Mutation MutationHook
	Select   SelectHook
}

// Entity describes a named record type
type Entity struct {
	Name string

	// Base names the entity whose table this one shares
	Base string

	PrimaryKey   string
	CompositeKey []string

	// TypeKey is the discriminator field; Types maps discriminator values
	// to entity names
	TypeKey string
	Types   map[string]string

	Fields map[string]*Field
	Hooks  map[HookType]*Hook

	registry *Registry
	own      map[string]*Field
}

// NewEntity creates an entity with the default "id" key and "type"
// discriminator
func NewEntity(name string) *Entity {
	return &Entity{
		Name:       name,
		PrimaryKey: "id",
		TypeKey:    "type",
		Fields:     make(map[string]*Field),
		Hooks:      make(map[HookType]*Hook),
	}
}

// Field adds a field declaration
func (e *Entity) Field(name string, f *Field) *Entity {
	f.Name = name
	e.Fields[name] = f
	return e
}

// Key sets a single primary key field
func (e *Entity) Key(name string) *Entity {
	e.PrimaryKey = name
	e.CompositeKey = nil
	return e
}

// CompositeKeys sets an ordered composite primary key
func (e *Entity) CompositeKeys(names ...string) *Entity {
	e.CompositeKey = append([]string(nil), names...)
	return e
}

// Extends marks the entity as derived from base
func (e *Entity) Extends(base string) *Entity {
	e.Base = base
	return e
}

// Discriminator sets the type key and the discriminator mapping
func (e *Entity) Discriminator(typeKey string, types map[string]string) *Entity {
	if typeKey != "" {
		e.TypeKey = typeKey
	}
	e.Types = types
	return e
}

// OnMutation attaches a local mutation hook
func (e *Entity) OnMutation(t HookType, fn MutationHook) *Entity {
	e.Hooks[t] = &Hook{Type: t, Mutation: fn}
	return e
}

// OnSelect attaches a local select hook
func (e *Entity) OnSelect(t HookType, fn SelectHook) *Entity {
	e.Hooks[t] = &Hook{Type: t, Select: fn}
	return e
}

// IsComposite reports whether the primary key has several components
func (e *Entity) IsComposite() bool {
	return len(e.CompositeKey) > 0
}

// Keys returns the primary key fields in declared order
func (e *Entity) Keys() []string {
	if e.IsComposite() {
		return e.CompositeKey
	}
	return []string{e.PrimaryKey}
}

// LocalKey returns the key relations default to
func (e *Entity) LocalKey() string {
	if e.IsComposite() || e.PrimaryKey == "" {
		return "id"
	}
	return e.PrimaryKey
}

// IsDerived reports whether the entity shares a base entity's table
func (e *Entity) IsDerived() bool {
	return e.Base != "" && e.Base != e.Name
}

// BaseName returns the entity whose table holds this entity's records
func (e *Entity) BaseName() string {
	if e.IsDerived() {
		return e.Base
	}
	return e.Name
}

// Registry returns the registry the entity belongs to
func (e *Entity) Registry() *Registry {
	return e.registry
}

// TypeMap returns the discriminator mapping, inherited from the base entity
// when none is declared
func (e *Entity) TypeMap() map[string]string {
	if len(e.Types) > 0 || !e.IsDerived() || e.registry == nil {
		return e.Types
	}
	base, ok := e.registry.lookup(e.Base)
	if !ok {
		return nil
	}
	return base.Types
}

// TypeValue returns the discriminator value that maps to this entity
func (e *Entity) TypeValue() (string, bool) {
	for _, value := range sortedKeys(e.TypeMap()) {
		if e.TypeMap()[value] == e.Name {
			return value, true
		}
	}
	return "", false
}

// LookupType resolves the entity a record's discriminator value maps to. It
// reports false when the record carries no mapped discriminator.
func (e *Entity) LookupType(record Record) (*Entity, bool) {
	types := e.TypeMap()
	if len(types) == 0 || e.registry == nil {
		return nil, false
	}
	raw, ok := record[e.TypeKey]
	if !ok || raw == nil {
		return nil, false
	}
	name, ok := types[FormatValue(raw)]
	if !ok {
		return nil, false
	}
	return e.registry.lookup(name)
}

// ModelFor resolves the concrete entity for a record from its discriminator,
// falling back to e
func (e *Entity) ModelFor(record Record) *Entity {
	if concrete, ok := e.LookupType(record); ok {
		return concrete
	}
	return e
}

// FieldNames returns all field names sorted
func (e *Entity) FieldNames() []string {
	return sortedKeys(e.Fields)
}

// RelationNames returns the relation field names sorted
func (e *Entity) RelationNames() []string {
	var names []string
	for _, name := range e.FieldNames() {
		if e.Fields[name].IsRelation() {
			names = append(names, name)
		}
	}
	return names
}

// RelationField returns the relation declared under name
func (e *Entity) RelationField(name string) (*Field, bool) {
	f, ok := e.Fields[name]
	if !ok || !f.IsRelation() {
		return nil, false
	}
	return f, true
}

// PivotFields returns the many-to-many relation fields
func (e *Entity) PivotFields() []*Field {
	var out []*Field
	for _, name := range e.RelationNames() {
		if f := e.Fields[name]; f.Relation.Type.UsesPivot() {
			out = append(out, f)
		}
	}
	return out
}

// Hook returns the local hook of type t
func (e *Entity) Hook(t HookType) *Hook {
	return e.Hooks[t]
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
