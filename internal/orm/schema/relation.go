package schema

import "fmt"

// RelationType represents the kind of a relation edge
type RelationType int

const (
	RelationHasOne RelationType = iota
	RelationBelongsTo
	RelationHasMany
	RelationHasManyBy
	RelationHasManyThrough
	RelationBelongsToMany
	RelationMorphTo
	RelationMorphOne
	RelationMorphMany
	RelationMorphToMany
	RelationMorphedByMany
)

// String returns the string representation of the relation type
func (r RelationType) String() string {
	switch r {
	case RelationHasOne:
		return "has_one"
	case RelationBelongsTo:
		return "belongs_to"
	case RelationHasMany:
		return "has_many"
	case RelationHasManyBy:
		return "has_many_by"
	case RelationHasManyThrough:
		return "has_many_through"
	case RelationBelongsToMany:
		return "belongs_to_many"
	case RelationMorphTo:
		return "morph_to"
	case RelationMorphOne:
		return "morph_one"
	case RelationMorphMany:
		return "morph_many"
	case RelationMorphToMany:
		return "morph_to_many"
	case RelationMorphedByMany:
		return "morphed_by_many"
	default:
		return "unknown"
	}
}

// ParseRelationType converts a string to a RelationType
func ParseRelationType(s string) (RelationType, error) {
	for r := RelationHasOne; r <= RelationMorphedByMany; r++ {
		if r.String() == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown relation type: %s", s)
}

// IsMany reports whether the relation materializes to a collection
func (r RelationType) IsMany() bool {
	switch r {
	case RelationHasOne, RelationBelongsTo, RelationMorphTo, RelationMorphOne:
		return false
	default:
		return true
	}
}

// UsesPivot reports whether the relation is joined through a pivot entity
func (r RelationType) UsesPivot() bool {
	switch r {
	case RelationBelongsToMany, RelationMorphToMany, RelationMorphedByMany:
		return true
	default:
		return false
	}
}

// Relation is a directional relation edge declared on an owning entity.
// Which key fields are meaningful depends on Type.
type Relation struct {
	Type RelationType

	// Related is the target entity; empty for MorphTo
	Related string

	ForeignKey string
	LocalKey   string
	OwnerKey   string

	// HasManyThrough
	Through        string
	FirstKey       string
	SecondKey      string
	SecondLocalKey string

	// BelongsToMany, MorphToMany, MorphedByMany
	Pivot           string
	ForeignPivotKey string
	RelatedPivotKey string
	ParentKey       string
	RelatedKey      string
	PivotAccessor   string

	// Morph relations
	MorphID   string
	MorphType string
	RelatedID string
}

// Targets returns every entity the relation refers to
func (r *Relation) Targets() []string {
	var out []string
	for _, name := range []string{r.Related, r.Through, r.Pivot} {
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

func relationField(rel *Relation) *Field {
	return &Field{Kind: KindRelation, Relation: rel}
}

func optionalKey(keys []string, i int) string {
	if i < len(keys) {
		return keys[i]
	}
	return ""
}

// HasOne declares a one-to-one relation whose foreign key lives on the
// related entity. Optional: localKey.
func HasOne(related, foreignKey string, localKey ...string) *Field {
	return relationField(&Relation{
		Type:       RelationHasOne,
		Related:    related,
		ForeignKey: foreignKey,
		LocalKey:   optionalKey(localKey, 0),
	})
}

// BelongsTo declares the inverse of HasOne/HasMany. Optional: ownerKey.
func BelongsTo(parent, foreignKey string, ownerKey ...string) *Field {
	return relationField(&Relation{
		Type:       RelationBelongsTo,
		Related:    parent,
		ForeignKey: foreignKey,
		OwnerKey:   optionalKey(ownerKey, 0),
	})
}

// HasMany declares a one-to-many relation. Optional: localKey.
func HasMany(related, foreignKey string, localKey ...string) *Field {
	return relationField(&Relation{
		Type:       RelationHasMany,
		Related:    related,
		ForeignKey: foreignKey,
		LocalKey:   optionalKey(localKey, 0),
	})
}

// HasManyBy declares a relation whose owner holds an array of parent keys
// in foreignKey. Optional: ownerKey.
func HasManyBy(parent, foreignKey string, ownerKey ...string) *Field {
	return relationField(&Relation{
		Type:       RelationHasManyBy,
		Related:    parent,
		ForeignKey: foreignKey,
		OwnerKey:   optionalKey(ownerKey, 0),
	})
}

// HasManyThrough declares a distant one-to-many relation through an
// intermediate entity. Optional: localKey, secondLocalKey.
func HasManyThrough(related, through, firstKey, secondKey string, keys ...string) *Field {
	return relationField(&Relation{
		Type:           RelationHasManyThrough,
		Related:        related,
		Through:        through,
		FirstKey:       firstKey,
		SecondKey:      secondKey,
		LocalKey:       optionalKey(keys, 0),
		SecondLocalKey: optionalKey(keys, 1),
	})
}

// BelongsToMany declares a many-to-many relation joined by a pivot entity.
// Optional: parentKey, relatedKey.
func BelongsToMany(related, pivot, foreignPivotKey, relatedPivotKey string, keys ...string) *Field {
	return relationField(&Relation{
		Type:            RelationBelongsToMany,
		Related:         related,
		Pivot:           pivot,
		ForeignPivotKey: foreignPivotKey,
		RelatedPivotKey: relatedPivotKey,
		ParentKey:       optionalKey(keys, 0),
		RelatedKey:      optionalKey(keys, 1),
	})
}

// MorphTo declares a polymorphic inverse relation resolved from the id and
// type fields of the owning record.
func MorphTo(id, typ string) *Field {
	return relationField(&Relation{
		Type:      RelationMorphTo,
		MorphID:   id,
		MorphType: typ,
	})
}

// MorphOne declares a polymorphic one-to-one relation. Optional: localKey.
func MorphOne(related, id, typ string, localKey ...string) *Field {
	return relationField(&Relation{
		Type:      RelationMorphOne,
		Related:   related,
		MorphID:   id,
		MorphType: typ,
		LocalKey:  optionalKey(localKey, 0),
	})
}

// MorphMany declares a polymorphic one-to-many relation. Optional: localKey.
func MorphMany(related, id, typ string, localKey ...string) *Field {
	return relationField(&Relation{
		Type:      RelationMorphMany,
		Related:   related,
		MorphID:   id,
		MorphType: typ,
		LocalKey:  optionalKey(localKey, 0),
	})
}

// MorphToMany declares a polymorphic many-to-many relation. relatedID is
// the pivot column holding the related key, id and typ hold the owner.
// Optional: parentKey, relatedKey.
func MorphToMany(related, pivot, relatedID, id, typ string, keys ...string) *Field {
	return relationField(&Relation{
		Type:       RelationMorphToMany,
		Related:    related,
		Pivot:      pivot,
		RelatedID:  relatedID,
		MorphID:    id,
		MorphType:  typ,
		ParentKey:  optionalKey(keys, 0),
		RelatedKey: optionalKey(keys, 1),
	})
}

// MorphedByMany declares the inverse of MorphToMany. relatedID is the pivot
// column holding the owner key, id and typ hold the related record.
// Optional: parentKey, relatedKey.
func MorphedByMany(related, pivot, relatedID, id, typ string, keys ...string) *Field {
	return relationField(&Relation{
		Type:       RelationMorphedByMany,
		Related:    related,
		Pivot:      pivot,
		RelatedID:  relatedID,
		MorphID:    id,
		MorphType:  typ,
		ParentKey:  optionalKey(keys, 0),
		RelatedKey: optionalKey(keys, 1),
	})
}
