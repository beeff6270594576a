package schema

import (
	"encoding/json"

	"github.com/mitchellh/mapstructure"
)

// Model is a hydrated record of a concrete entity. Relation fields hold
// *Model, []*Model or nil.
type Model struct {
	entity *Entity
	attrs  map[string]interface{}
}

// NewModel hydrates record into a model of entity. Absent fields take their
// defaults and relation values are materialized.
func NewModel(entity *Entity, record Record) *Model {
	m := &Model{
		entity: entity,
		attrs:  make(map[string]interface{}, len(entity.Fields)+1),
	}
	m.Fill(record)
	return m
}

// Fill replaces the model's attributes from record
func (m *Model) Fill(record Record) {
	for name, f := range m.entity.Fields {
		value, present := record[name]
		if f.IsRelation() {
			m.attrs[name] = materialize(m.entity, f, value, record)
			continue
		}
		m.attrs[name] = f.Make(value, present)
	}
	if id, ok := record[IndexIDField].(string); ok {
		m.attrs[IndexIDField] = id
	} else {
		m.attrs[IndexIDField] = nil
	}
}

// Entity returns the concrete entity of the model
func (m *Model) Entity() *Entity {
	return m.entity
}

// EntityName returns the concrete entity name
func (m *Model) EntityName() string {
	return m.entity.Name
}

// Get returns an attribute value
func (m *Model) Get(field string) interface{} {
	return m.attrs[field]
}

// Set assigns an attribute value
func (m *Model) Set(field string, value interface{}) {
	m.attrs[field] = value
}

// IndexID returns the model's index id
func (m *Model) IndexID() (string, bool) {
	id, ok := m.attrs[IndexIDField].(string)
	return id, ok
}

// SetIndexID stamps a new index id
func (m *Model) SetIndexID(id string) {
	m.attrs[IndexIDField] = id
}

// Related returns a loaded single relation
func (m *Model) Related(field string) *Model {
	related, _ := m.attrs[field].(*Model)
	return related
}

// RelatedMany returns a loaded collection relation
func (m *Model) RelatedMany(field string) []*Model {
	related, _ := m.attrs[field].([]*Model)
	return related
}

// Clone returns a shallow copy of the model
func (m *Model) Clone() *Model {
	attrs := make(map[string]interface{}, len(m.attrs))
	for k, v := range m.attrs {
		attrs[k] = v
	}
	return &Model{entity: m.entity, attrs: attrs}
}

// Attributes returns the stored shape of the model: scalars copied,
// relation fields emptied.
func (m *Model) Attributes() Record {
	out := make(Record, len(m.entity.Fields)+1)
	for name, f := range m.entity.Fields {
		if f.IsRelation() {
			if f.Relation.Type.IsMany() {
				out[name] = []interface{}{}
			} else {
				out[name] = nil
			}
			continue
		}
		out[name] = CloneValue(m.attrs[name])
	}
	out[IndexIDField] = m.attrs[IndexIDField]
	return out
}

// ToJSON serializes the model including loaded relations
func (m *Model) ToJSON() map[string]interface{} {
	out := make(map[string]interface{}, len(m.entity.Fields)+1)
	for name, f := range m.entity.Fields {
		value := m.attrs[name]
		if !f.IsRelation() {
			out[name] = CloneValue(value)
			continue
		}
		switch related := value.(type) {
		case *Model:
			if related == nil {
				out[name] = nil
				continue
			}
			out[name] = related.ToJSON()
		case []*Model:
			list := make([]interface{}, len(related))
			for i, r := range related {
				list[i] = r.ToJSON()
			}
			out[name] = list
		default:
			if f.Relation.Type.IsMany() {
				out[name] = []interface{}{}
			} else {
				out[name] = nil
			}
		}
	}
	out[IndexIDField] = m.attrs[IndexIDField]
	return out
}

// MarshalJSON implements json.Marshaler
func (m *Model) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.ToJSON())
}

// Decode copies the model's serialized form into out, typically a pointer to
// a struct with mapstructure or json tags.
func (m *Model) Decode(out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(m.ToJSON())
}

// materialize converts a raw relation value into models of the related
// entity, dispatching on the related entity's discriminator.
func materialize(owner *Entity, f *Field, value interface{}, parent Record) interface{} {
	rel := f.Relation
	if rel.Type == RelationMorphTo {
		return materializeMorphTo(owner, rel, value, parent)
	}

	var related *Entity
	if owner.registry != nil {
		related, _ = owner.registry.lookup(rel.Related)
	}

	if rel.Type.IsMany() {
		return makeMany(related, value)
	}
	if m := makeOne(related, value); m != nil {
		return m
	}
	return nil
}

func materializeMorphTo(owner *Entity, rel *Relation, value interface{}, parent Record) interface{} {
	if owner.registry == nil {
		return nil
	}
	name, ok := parent[rel.MorphType].(string)
	if !ok {
		return nil
	}
	related, ok := owner.registry.lookup(name)
	if !ok {
		return nil
	}
	if m := makeOne(related, value); m != nil {
		return m
	}
	return nil
}

func makeOne(related *Entity, value interface{}) *Model {
	switch v := value.(type) {
	case *Model:
		return v
	case Record:
		if related == nil {
			return nil
		}
		return NewModel(related.ModelFor(v), v)
	default:
		return nil
	}
}

func makeMany(related *Entity, value interface{}) []*Model {
	if models, ok := value.([]*Model); ok {
		return models
	}
	out := []*Model{}
	items, ok := ToSlice(value)
	if !ok {
		return out
	}
	for _, item := range items {
		if m := makeOne(related, item); m != nil {
			out = append(out, m)
		}
	}
	return out
}
