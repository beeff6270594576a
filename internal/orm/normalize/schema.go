// Package normalize flattens nested payloads into per-entity tables and
// back-fills the foreign keys and pivot records the nesting implies.
package normalize

import (
	"sync"

	"github.com/conduit-lang/memdb/internal/orm/schema"
)

// Node is a normalization schema node
type Node interface {
	isNode()
}

// EntityNode normalizes one record of an entity. Relations maps each
// relation field to the node its value is normalized with.
type EntityNode struct {
	Entity    *schema.Entity
	Relations map[string]Node
}

// ArrayNode normalizes a list of values with a single element node
type ArrayNode struct {
	Of Node
}

// UnionNode picks the entity of a value from a discriminator field on the
// parent record
type UnionNode struct {
	TypeField string

	builder *Builder
}

func (*EntityNode) isNode() {}
func (*ArrayNode) isNode()  {}
func (*UnionNode) isNode()  {}

// Resolve returns the entity node for the parent's discriminator value
func (u *UnionNode) Resolve(parent schema.Record) (*EntityNode, bool) {
	name, ok := parent[u.TypeField].(string)
	if !ok || name == "" {
		return nil, false
	}
	node, err := u.builder.Schema(name)
	if err != nil {
		return nil, false
	}
	return node, true
}

// Builder converts entity declarations into schema nodes and caches one
// node per entity. Self-referencing and mutually-referencing entities share
// cached nodes.
type Builder struct {
	registry *schema.Registry
	cache    map[string]*EntityNode
	mu       sync.Mutex
}

// NewBuilder creates a schema builder over a started registry
func NewBuilder(registry *schema.Registry) *Builder {
	return &Builder{
		registry: registry,
		cache:    make(map[string]*EntityNode),
	}
}

// Schema returns the node for an entity
func (b *Builder) Schema(entity string) (*EntityNode, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.build(entity)
}

// Reset drops every cached node
func (b *Builder) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cache = make(map[string]*EntityNode)
}

func (b *Builder) build(name string) (*EntityNode, error) {
	if node, ok := b.cache[name]; ok {
		return node, nil
	}

	e, err := b.registry.Entity(name)
	if err != nil {
		return nil, err
	}

	node := &EntityNode{Entity: e, Relations: make(map[string]Node)}
	b.cache[name] = node

	for _, fieldName := range e.RelationNames() {
		child, err := b.relationNode(e.Fields[fieldName].Relation)
		if err != nil {
			delete(b.cache, name)
			return nil, err
		}
		node.Relations[fieldName] = child
	}
	return node, nil
}

func (b *Builder) relationNode(rel *schema.Relation) (Node, error) {
	if rel.Type == schema.RelationMorphTo {
		return &UnionNode{TypeField: rel.MorphType, builder: b}, nil
	}

	related, err := b.build(rel.Related)
	if err != nil {
		return nil, err
	}
	if rel.Type.IsMany() {
		return &ArrayNode{Of: related}, nil
	}
	return related, nil
}
