package relationships

import (
	"fmt"

	"github.com/conduit-lang/memdb/internal/orm/schema"
)

// Attach back-fills foreign keys implied by a normalized relation value.
// value is the related index id (single kinds) or a list of them. Kinds with
// no single foreign key to assign are no-ops.
func Attach(owner *schema.Entity, rel *schema.Relation, value interface{}, record schema.Record, data schema.Entities) {
	if value == nil {
		return
	}

	switch rel.Type {
	case schema.RelationHasOne:
		if related := relatedRecord(data, rel.Related, value); related != nil && isMissing(related, rel.ForeignKey) {
			related[rel.ForeignKey] = record[rel.LocalKey]
		}

	case schema.RelationBelongsTo:
		if !isMissing(record, rel.ForeignKey) {
			return
		}
		if parent := relatedRecord(data, rel.Related, value); parent != nil && !isMissing(parent, rel.OwnerKey) {
			record[rel.ForeignKey] = parent[rel.OwnerKey]
			return
		}
		record[rel.ForeignKey] = value

	case schema.RelationHasMany:
		for _, id := range ids(value) {
			if related := relatedRecord(data, rel.Related, id); related != nil && isMissing(related, rel.ForeignKey) {
				related[rel.ForeignKey] = record[rel.LocalKey]
			}
		}

	case schema.RelationHasManyBy:
		list := ids(value)
		if len(list) == 0 || !isMissing(record, rel.ForeignKey) {
			return
		}
		keys := make([]interface{}, 0, len(list))
		for _, id := range list {
			if parent := relatedRecord(data, rel.Related, id); parent != nil && !isMissing(parent, rel.OwnerKey) {
				keys = append(keys, parent[rel.OwnerKey])
				continue
			}
			keys = append(keys, id)
		}
		record[rel.ForeignKey] = keys

	case schema.RelationMorphOne, schema.RelationMorphMany:
		list := []interface{}{value}
		if rel.Type == schema.RelationMorphMany {
			list = ids(value)
		}
		for _, id := range list {
			related := relatedRecord(data, rel.Related, id)
			if related == nil {
				continue
			}
			if isMissing(related, rel.MorphID) {
				related[rel.MorphID] = record[rel.LocalKey]
			}
			if isMissing(related, rel.MorphType) {
				related[rel.MorphType] = owner.Name
			}
		}

	default:
		// HasManyThrough, BelongsToMany, MorphTo, MorphToMany and
		// MorphedByMany carry no foreign key on either record.
	}
}

// CreatePivots synthesizes pivot records for a many-to-many relation field
// of record. It only runs when the pivot entity has a composite primary key.
func CreatePivots(owner *schema.Entity, field *schema.Field, record schema.Record, data schema.Entities) error {
	rel := field.Relation
	if owner.Registry() == nil {
		return nil
	}
	pivot, err := owner.Registry().Entity(rel.Pivot)
	if err != nil {
		return fmt.Errorf("relation %s.%s: %w", owner.Name, field.Name, ErrMissingPivot)
	}
	if !pivot.IsComposite() {
		return nil
	}

	parentID := record[rel.ParentKey]
	for _, id := range ids(record[field.Name]) {
		related := relatedRecord(data, rel.Related, id)
		if related == nil {
			continue
		}

		keys := pivotKeys(owner, rel, parentID, related[rel.RelatedKey])
		pivotID, ok := pivot.IndexIDOf(keys)
		if !ok {
			continue
		}

		table, ok := data[pivot.Name]
		if !ok {
			table = make(schema.Records)
			data[pivot.Name] = table
		}

		merged := make(schema.Record)
		for k, v := range table[pivotID] {
			merged[k] = v
		}
		if inline, ok := related[rel.PivotAccessor].(schema.Record); ok {
			for k, v := range inline {
				merged[k] = v
			}
		}
		for k, v := range keys {
			merged[k] = v
		}
		merged[schema.IndexIDField] = pivotID
		table[pivotID] = merged
	}
	return nil
}

// pivotKeys returns the pivot columns linking parentID to relatedID
func pivotKeys(owner *schema.Entity, rel *schema.Relation, parentID, relatedID interface{}) schema.Record {
	switch rel.Type {
	case schema.RelationMorphToMany:
		return schema.Record{
			rel.RelatedID: relatedID,
			rel.MorphID:   parentID,
			rel.MorphType: owner.Name,
		}
	case schema.RelationMorphedByMany:
		return schema.Record{
			rel.RelatedID: parentID,
			rel.MorphID:   relatedID,
			rel.MorphType: rel.Related,
		}
	default:
		return schema.Record{
			rel.ForeignPivotKey: parentID,
			rel.RelatedPivotKey: relatedID,
		}
	}
}

func relatedRecord(data schema.Entities, entity string, id interface{}) schema.Record {
	key, ok := id.(string)
	if !ok {
		key, ok = schema.KeyString(id)
		if !ok {
			return nil
		}
	}
	table, ok := data[entity]
	if !ok {
		return nil
	}
	return table[key]
}

func ids(value interface{}) []interface{} {
	list, ok := schema.ToSlice(value)
	if !ok {
		return nil
	}
	return list
}
