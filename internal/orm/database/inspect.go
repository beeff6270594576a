package database

import (
	"context"

	"github.com/conduit-lang/memdb/internal/orm/schema"
)

// EntityInfo summarizes a registered entity and its record count
type EntityInfo struct {
	Name       string                  `json:"name"`
	Base       string                  `json:"base,omitempty"`
	PrimaryKey []string                `json:"primary_key"`
	TypeKey    string                  `json:"type_key,omitempty"`
	Types      map[string]string       `json:"types,omitempty"`
	Fields     []FieldInfo             `json:"fields"`
	Relations  map[string]RelationInfo `json:"relations,omitempty"`
	Records    int                     `json:"records"`
}

// FieldInfo describes a scalar field
type FieldInfo struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Nullable bool   `json:"nullable,omitempty"`
}

// RelationInfo describes a relation edge and its resolved keys
type RelationInfo struct {
	Type    string            `json:"type"`
	Targets []string          `json:"targets"`
	Keys    map[string]string `json:"keys,omitempty"`
}

// Describe summarizes every registered entity in registration order
func (d *Database) Describe(ctx context.Context) ([]EntityInfo, error) {
	entities := d.registry.Entities()
	out := make([]EntityInfo, 0, len(entities))
	for _, e := range entities {
		info, err := d.describe(ctx, e)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, nil
}

// DescribeEntity summarizes one entity
func (d *Database) DescribeEntity(ctx context.Context, name string) (EntityInfo, error) {
	e, err := d.registry.Entity(name)
	if err != nil {
		return EntityInfo{}, err
	}
	return d.describe(ctx, e)
}

func (d *Database) describe(ctx context.Context, e *schema.Entity) (EntityInfo, error) {
	count, err := d.Count(ctx, e.Name)
	if err != nil {
		return EntityInfo{}, err
	}

	info := EntityInfo{
		Name:       e.Name,
		Base:       e.Base,
		PrimaryKey: e.Keys(),
		Types:      e.TypeMap(),
		Fields:     []FieldInfo{},
		Records:    count,
	}
	if len(info.Types) > 0 {
		info.TypeKey = e.TypeKey
	}

	for _, name := range e.FieldNames() {
		f := e.Fields[name]
		if !f.IsRelation() {
			info.Fields = append(info.Fields, FieldInfo{Name: name, Kind: f.Kind.String(), Nullable: f.Nullable})
			continue
		}
		if info.Relations == nil {
			info.Relations = make(map[string]RelationInfo)
		}
		info.Relations[name] = RelationInfo{
			Type:    f.Relation.Type.String(),
			Targets: f.Relation.Targets(),
			Keys:    relationKeys(f.Relation),
		}
	}
	return info, nil
}

func relationKeys(r *schema.Relation) map[string]string {
	keys := map[string]string{
		"foreign_key":       r.ForeignKey,
		"local_key":         r.LocalKey,
		"owner_key":         r.OwnerKey,
		"first_key":         r.FirstKey,
		"second_key":        r.SecondKey,
		"second_local_key":  r.SecondLocalKey,
		"foreign_pivot_key": r.ForeignPivotKey,
		"related_pivot_key": r.RelatedPivotKey,
		"parent_key":        r.ParentKey,
		"related_key":       r.RelatedKey,
		"as":                r.PivotAccessor,
		"morph_id":          r.MorphID,
		"morph_type":        r.MorphType,
		"related_id":        r.RelatedID,
	}
	for k, v := range keys {
		if v == "" {
			delete(keys, k)
		}
	}
	return keys
}
