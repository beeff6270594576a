package relationships

import (
	"fmt"

	"github.com/conduit-lang/memdb/internal/orm/schema"
	"go.uber.org/zap"
)

// Load populates field name on every model of collection by running the
// sub-queries the relation kind needs. parent is the query that produced
// collection.
func Load[Q Querier[Q]](parent Q, collection []*schema.Model, name string, rel *schema.Relation, constraints []Constraint[Q]) error {
	if len(collection) == 0 {
		return nil
	}

	switch rel.Type {
	case schema.RelationHasOne:
		return loadHasOne(parent, collection, name, rel, constraints)
	case schema.RelationBelongsTo:
		return loadBelongsTo(parent, collection, name, rel, constraints)
	case schema.RelationHasMany:
		return loadHasMany(parent, collection, name, rel, constraints)
	case schema.RelationHasManyBy:
		return loadHasManyBy(parent, collection, name, rel, constraints)
	case schema.RelationHasManyThrough:
		return loadHasManyThrough(parent, collection, name, rel, constraints)
	case schema.RelationBelongsToMany, schema.RelationMorphToMany, schema.RelationMorphedByMany:
		return loadPivot(parent, collection, name, rel, constraints)
	case schema.RelationMorphTo:
		return loadMorphTo(parent, collection, name, rel, constraints)
	case schema.RelationMorphOne, schema.RelationMorphMany:
		return loadMorphOneOrMany(parent, collection, name, rel, constraints)
	default:
		return fmt.Errorf("relation %s: %w", name, ErrInvalidRelationType)
	}
}

func setOne(m *schema.Model, name string, related *schema.Model) {
	if related == nil {
		m.Set(name, nil)
		return
	}
	m.Set(name, related)
}

func setMany(m *schema.Model, name string, related []*schema.Model) {
	if related == nil {
		related = []*schema.Model{}
	}
	m.Set(name, related)
}

func loadHasOne[Q Querier[Q]](parent Q, collection []*schema.Model, name string, rel *schema.Relation, constraints []Constraint[Q]) error {
	q := getRelation(parent, rel.Related, constraints)
	q.WhereFk(rel.ForeignKey, getKeys(collection, rel.LocalKey))

	results, err := q.Get()
	if err != nil {
		return err
	}

	relations := mapSingleRelations(results, rel.ForeignKey)
	for _, m := range collection {
		setOne(m, name, lookupSingle(relations, m.Get(rel.LocalKey)))
	}
	return nil
}

func loadBelongsTo[Q Querier[Q]](parent Q, collection []*schema.Model, name string, rel *schema.Relation, constraints []Constraint[Q]) error {
	q := getRelation(parent, rel.Related, constraints)
	q.WhereFk(rel.OwnerKey, getKeys(collection, rel.ForeignKey))

	results, err := q.Get()
	if err != nil {
		return err
	}

	relations := mapSingleRelations(results, rel.OwnerKey)
	for _, m := range collection {
		setOne(m, name, lookupSingle(relations, m.Get(rel.ForeignKey)))
	}
	return nil
}

func loadHasMany[Q Querier[Q]](parent Q, collection []*schema.Model, name string, rel *schema.Relation, constraints []Constraint[Q]) error {
	q := getRelation(parent, rel.Related, constraints)
	q.WhereFk(rel.ForeignKey, getKeys(collection, rel.LocalKey))

	results, err := q.Get()
	if err != nil {
		return err
	}

	relations := mapManyRelations(results, rel.ForeignKey)
	for _, m := range collection {
		setMany(m, name, relations.get(m.Get(rel.LocalKey)))
	}
	return nil
}

func loadHasManyBy[Q Querier[Q]](parent Q, collection []*schema.Model, name string, rel *schema.Relation, constraints []Constraint[Q]) error {
	q := getRelation(parent, rel.Related, constraints)
	q.WhereFk(rel.OwnerKey, getKeysFromArrays(collection, rel.ForeignKey))

	results, err := q.Get()
	if err != nil {
		return err
	}

	relations := mapSingleRelations(results, rel.OwnerKey)
	for _, m := range collection {
		related := []*schema.Model{}
		keys, _ := schema.ToSlice(m.Get(rel.ForeignKey))
		for _, key := range keys {
			if r := lookupSingle(relations, key); r != nil {
				related = append(related, r)
			}
		}
		setMany(m, name, related)
	}
	return nil
}

func loadHasManyThrough[Q Querier[Q]](parent Q, collection []*schema.Model, name string, rel *schema.Relation, constraints []Constraint[Q]) error {
	throughQuery := parent.NewQuery(rel.Through)
	throughQuery.WhereFk(rel.FirstKey, getKeys(collection, rel.LocalKey))

	throughs, err := throughQuery.Get()
	if err != nil {
		return err
	}

	q := getRelation(parent, rel.Related, constraints)
	q.WhereFk(rel.SecondKey, getKeys(throughs, rel.SecondLocalKey))

	results, err := q.Get()
	if err != nil {
		return err
	}

	relations := mapJoinedRelations(throughs, results, joinedRelation{
		ownerColumn:   rel.FirstKey,
		relatedColumn: rel.SecondLocalKey,
		relatedKey:    rel.SecondKey,
	}, q.HasOrders())

	for _, m := range collection {
		k, _ := schema.KeyString(m.Get(rel.LocalKey))
		setMany(m, name, relations[k])
	}
	return nil
}

// loadPivot handles BelongsToMany, MorphToMany and MorphedByMany
func loadPivot[Q Querier[Q]](parent Q, collection []*schema.Model, name string, rel *schema.Relation, constraints []Constraint[Q]) error {
	spec := joinedRelation{relatedKey: rel.RelatedKey, accessor: rel.PivotAccessor}

	pivotQuery := parent.NewQuery(rel.Pivot)
	switch rel.Type {
	case schema.RelationMorphToMany:
		pivotQuery.Where(rel.MorphType, parent.Entity().Name)
		pivotQuery.WhereFk(rel.MorphID, getKeys(collection, rel.ParentKey))
		spec.ownerColumn, spec.relatedColumn = rel.MorphID, rel.RelatedID
	case schema.RelationMorphedByMany:
		pivotQuery.Where(rel.MorphType, rel.Related)
		pivotQuery.WhereFk(rel.RelatedID, getKeys(collection, rel.ParentKey))
		spec.ownerColumn, spec.relatedColumn = rel.RelatedID, rel.MorphID
	default:
		pivotQuery.WhereFk(rel.ForeignPivotKey, getKeys(collection, rel.ParentKey))
		spec.ownerColumn, spec.relatedColumn = rel.ForeignPivotKey, rel.RelatedPivotKey
	}

	pivots, err := pivotQuery.Get()
	if err != nil {
		return err
	}

	q := getRelation(parent, rel.Related, constraints)
	q.WhereFk(rel.RelatedKey, getKeys(pivots, spec.relatedColumn))

	results, err := q.Get()
	if err != nil {
		return err
	}

	relations := mapJoinedRelations(pivots, results, spec, q.HasOrders())
	for _, m := range collection {
		k, _ := schema.KeyString(m.Get(rel.ParentKey))
		setMany(m, name, relations[k])
	}
	return nil
}

func loadMorphTo[Q Querier[Q]](parent Q, collection []*schema.Model, name string, rel *schema.Relation, constraints []Constraint[Q]) error {
	var types []string
	idsByType := make(map[string][]interface{})
	for _, m := range collection {
		typ, ok := m.Get(rel.MorphType).(string)
		if !ok {
			continue
		}
		if _, seen := idsByType[typ]; !seen {
			types = append(types, typ)
			idsByType[typ] = []interface{}{}
		}
		if id, ok := schema.KeyString(m.Get(rel.MorphID)); ok {
			idsByType[typ] = append(idsByType[typ], id)
		}
	}

	registry := parent.Entity().Registry()
	relations := make(map[string]map[string]*schema.Model, len(types))
	for _, typ := range types {
		if registry == nil || !registry.Exists(typ) {
			parent.Logger().Debug("morph target is not registered",
				zap.String("relation", name),
				zap.String("type", typ))
			continue
		}

		q := getRelation(parent, typ, constraints)
		q.Where(schema.IndexIDField, idsByType[typ])

		results, err := q.Get()
		if err != nil {
			return err
		}
		relations[typ] = mapSingleRelations(results, schema.IndexIDField)
	}

	for _, m := range collection {
		typ, _ := m.Get(rel.MorphType).(string)
		setOne(m, name, lookupSingle(relations[typ], m.Get(rel.MorphID)))
	}
	return nil
}

func loadMorphOneOrMany[Q Querier[Q]](parent Q, collection []*schema.Model, name string, rel *schema.Relation, constraints []Constraint[Q]) error {
	q := getRelation(parent, rel.Related, constraints)
	q.Where(rel.MorphType, parent.Entity().Name)
	q.WhereFk(rel.MorphID, getKeys(collection, rel.LocalKey))

	results, err := q.Get()
	if err != nil {
		return err
	}

	if rel.Type == schema.RelationMorphOne {
		relations := mapSingleRelations(results, rel.MorphID)
		for _, m := range collection {
			setOne(m, name, lookupSingle(relations, m.Get(rel.LocalKey)))
		}
		return nil
	}

	relations := mapManyRelations(results, rel.MorphID)
	for _, m := range collection {
		setMany(m, name, relations.get(m.Get(rel.LocalKey)))
	}
	return nil
}
