package normalize

import (
	"sort"

	"github.com/conduit-lang/memdb/internal/orm/relationships"
	"github.com/conduit-lang/memdb/internal/orm/schema"
)

// Result holds normalized tables and the order in which their entities were
// first produced
type Result struct {
	Entities schema.Entities
	Order    []string
}

// IsEmpty reports whether normalization produced no records
func (r *Result) IsEmpty() bool {
	return r == nil || len(r.Entities) == 0
}

// Table returns the normalized records of an entity
func (r *Result) Table(entity string) schema.Records {
	return r.Entities[entity]
}

func (r *Result) bucket(entity string) schema.Records {
	table, ok := r.Entities[entity]
	if !ok {
		table = make(schema.Records)
		r.Entities[entity] = table
		r.Order = append(r.Order, entity)
	}
	return table
}

// Normalizer flattens nested payloads using the builder's schema nodes
type Normalizer struct {
	builder *Builder
}

// New creates a normalizer
func New(builder *Builder) *Normalizer {
	return &Normalizer{builder: builder}
}

// Builder returns the schema builder
func (n *Normalizer) Builder() *Builder {
	return n.builder
}

// Normalize flattens payload, a record or a list of records of entity, into
// per-entity tables. Inline relation values are replaced by index ids, the
// foreign keys implied by nesting are attached and pivot records are
// synthesized. The payload is not modified.
func (n *Normalizer) Normalize(entity string, payload interface{}) (*Result, error) {
	result := &Result{Entities: make(schema.Entities)}
	if isEmpty(payload) {
		return result, nil
	}

	node, err := n.builder.Schema(entity)
	if err != nil {
		return nil, err
	}

	var root Node = node
	if schema.IsSlice(payload) {
		root = &ArrayNode{Of: node}
	}

	visit(schema.CloneValue(payload), root, nil, result)

	n.attach(result)
	if err := n.createPivots(result); err != nil {
		return nil, err
	}
	return result, nil
}

// visit normalizes value with node and returns what the parent record keeps
// in place of it: an index id, a list of index ids, or nil
func visit(value interface{}, node Node, parent schema.Record, result *Result) interface{} {
	switch n := node.(type) {
	case *EntityNode:
		return visitEntity(value, n, result)

	case *ArrayNode:
		items, ok := schema.ToSlice(value)
		if !ok {
			if _, isRecord := value.(schema.Record); !isRecord {
				return nil
			}
			items = []interface{}{value}
		}
		out := make([]interface{}, 0, len(items))
		for _, item := range items {
			if id := visit(item, n.Of, parent, result); id != nil {
				out = append(out, id)
			}
		}
		return out

	case *UnionNode:
		resolved, ok := n.Resolve(parent)
		if !ok {
			return nil
		}
		return visitEntity(value, resolved, result)
	}
	return nil
}

func visitEntity(value interface{}, node *EntityNode, result *Result) interface{} {
	record, ok := value.(schema.Record)
	if !ok {
		return nil
	}

	id, ok := node.Entity.GenerateKeys(record)
	if !ok {
		return nil
	}

	for _, name := range sortedNames(node.Relations) {
		v, present := record[name]
		if !present || v == nil {
			continue
		}
		record[name] = visit(v, node.Relations[name], record, result)
	}

	table := result.bucket(node.Entity.Name)
	if existing, ok := table[id]; ok {
		merged := make(schema.Record, len(existing)+len(record))
		for k, v := range existing {
			merged[k] = v
		}
		for k, v := range record {
			merged[k] = v
		}
		record = merged
	}
	table[id] = record
	return id
}

// attach back-fills foreign keys for every relation value in the result
func (n *Normalizer) attach(result *Result) {
	for _, name := range result.Order {
		owner, err := n.builder.registry.Entity(name)
		if err != nil {
			continue
		}
		relations := owner.RelationNames()
		if len(relations) == 0 {
			continue
		}
		table := result.Entities[name]
		for _, id := range sortedIDs(table) {
			record := table[id]
			for _, fieldName := range relations {
				value, ok := record[fieldName]
				if !ok || value == nil {
					continue
				}
				relationships.Attach(owner, owner.Fields[fieldName].Relation, value, record, result.Entities)
			}
		}
	}
}

// createPivots synthesizes pivot records for many-to-many relation values
func (n *Normalizer) createPivots(result *Result) error {
	for _, name := range append([]string(nil), result.Order...) {
		owner, err := n.builder.registry.Entity(name)
		if err != nil {
			continue
		}
		fields := owner.PivotFields()
		if len(fields) == 0 {
			continue
		}
		table := result.Entities[name]
		for _, id := range sortedIDs(table) {
			for _, field := range fields {
				if err := relationships.CreatePivots(owner, field, table[id], result.Entities); err != nil {
					return err
				}
			}
		}
	}

	seen := make(map[string]bool, len(result.Order))
	for _, name := range result.Order {
		seen[name] = true
	}
	for _, name := range sortedIDs(result.Entities) {
		if !seen[name] {
			result.Order = append(result.Order, name)
		}
	}
	return nil
}

func sortedNames(m map[string]Node) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedIDs[V any](table map[string]V) []string {
	ids := make([]string, 0, len(table))
	for id := range table {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func isEmpty(payload interface{}) bool {
	if payload == nil {
		return true
	}
	if record, ok := payload.(schema.Record); ok {
		return len(record) == 0
	}
	if items, ok := schema.ToSlice(payload); ok {
		return len(items) == 0
	}
	return false
}
