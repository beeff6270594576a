package relationships

import (
	"github.com/conduit-lang/memdb/internal/orm/schema"
)

// getKeys collects the distinct non-null values of key across models, in
// first-seen order
func getKeys(models []*schema.Model, key string) []interface{} {
	seen := make(map[string]bool, len(models))
	keys := make([]interface{}, 0, len(models))
	for _, m := range models {
		v := m.Get(key)
		k, ok := schema.KeyString(v)
		if !ok || seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, v)
	}
	return keys
}

// getKeysFromArrays collects distinct values from array-valued key fields
func getKeysFromArrays(models []*schema.Model, key string) []interface{} {
	seen := make(map[string]bool)
	var keys []interface{}
	for _, m := range models {
		items, ok := schema.ToSlice(m.Get(key))
		if !ok {
			continue
		}
		for _, v := range items {
			k, ok := schema.KeyString(v)
			if !ok || seen[k] {
				continue
			}
			seen[k] = true
			keys = append(keys, v)
		}
	}
	return keys
}

// relationMap groups models by a key value and remembers the order in which
// key values were first seen
type relationMap struct {
	keys  []string
	items map[string][]*schema.Model
}

func newRelationMap() *relationMap {
	return &relationMap{items: make(map[string][]*schema.Model)}
}

func (r *relationMap) add(key string, m *schema.Model) {
	if _, ok := r.items[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.items[key] = append(r.items[key], m)
}

func (r *relationMap) get(v interface{}) []*schema.Model {
	k, ok := schema.KeyString(v)
	if !ok {
		return nil
	}
	return r.items[k]
}

// mapSingleRelations indexes models by key, keeping the first model per key
func mapSingleRelations(models []*schema.Model, key string) map[string]*schema.Model {
	out := make(map[string]*schema.Model, len(models))
	for _, m := range models {
		k, ok := schema.KeyString(m.Get(key))
		if !ok {
			continue
		}
		if _, exists := out[k]; !exists {
			out[k] = m
		}
	}
	return out
}

// mapManyRelations groups models by key
func mapManyRelations(models []*schema.Model, key string) *relationMap {
	out := newRelationMap()
	for _, m := range models {
		k, ok := schema.KeyString(m.Get(key))
		if !ok {
			continue
		}
		out.add(k, m)
	}
	return out
}

// lookupSingle finds the model indexed under v
func lookupSingle(relations map[string]*schema.Model, v interface{}) *schema.Model {
	k, ok := schema.KeyString(v)
	if !ok {
		return nil
	}
	return relations[k]
}

// joinedRelation describes how join rows connect owners to related models
type joinedRelation struct {
	ownerColumn   string
	relatedColumn string
	relatedKey    string
	accessor      string
}

// mapJoinedRelations connects owners to related models through join rows
// (pivot or through records). When ordered, the related results are walked
// first so each owner's collection follows the related query's order.
func mapJoinedRelations(joins, related []*schema.Model, spec joinedRelation, ordered bool) map[string][]*schema.Model {
	relations := mapManyRelations(related, spec.relatedKey)
	out := make(map[string][]*schema.Model)

	appendFor := func(join *schema.Model, models []*schema.Model) {
		owner, ok := schema.KeyString(join.Get(spec.ownerColumn))
		if !ok {
			return
		}
		if _, exists := out[owner]; !exists {
			out[owner] = []*schema.Model{}
		}
		for _, m := range models {
			out[owner] = append(out[owner], withPivot(m, spec.accessor, join))
		}
	}

	if ordered {
		for _, key := range relations.keys {
			for _, join := range joins {
				if k, ok := schema.KeyString(join.Get(spec.relatedColumn)); ok && k == key {
					appendFor(join, relations.items[key])
				}
			}
		}
		return out
	}

	for _, join := range joins {
		appendFor(join, relations.get(join.Get(spec.relatedColumn)))
	}
	return out
}

// withPivot returns m carrying its join row under accessor. Each owner gets
// its own copy so pivot data is not shared.
func withPivot(m *schema.Model, accessor string, pivot *schema.Model) *schema.Model {
	if accessor == "" {
		return m
	}
	c := m.Clone()
	c.Set(accessor, pivot)
	return c
}

// isMissing reports whether a record lacks a value for field
func isMissing(record schema.Record, field string) bool {
	v, ok := record[field]
	return !ok || v == nil
}
