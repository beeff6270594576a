// Package fixture loads entity declarations and seed data from YAML, so a
// database can be described entirely as data.
package fixture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/conduit-lang/memdb/internal/orm/database"
	"github.com/conduit-lang/memdb/internal/orm/identity"
	"github.com/conduit-lang/memdb/internal/orm/schema"
	"gopkg.in/yaml.v3"
)

// ErrInvalidFixture is returned for declarations that cannot be built
var ErrInvalidFixture = errors.New("invalid fixture")

// Fixture is a parsed fixture file
type Fixture struct {
	Entities []EntitySpec `yaml:"entities"`
	Data     []Seed       `yaml:"data"`
}

// EntitySpec declares one entity
type EntitySpec struct {
	Name    string               `yaml:"name"`
	Key     string               `yaml:"key"`
	Keys    []string             `yaml:"keys"`
	Extends string               `yaml:"extends"`
	TypeKey string               `yaml:"type_key"`
	Types   map[string]string    `yaml:"types"`
	Fields  map[string]FieldSpec `yaml:"fields"`
}

// FieldSpec declares an attribute or, when Relation is set, a relation
type FieldSpec struct {
	Kind      string      `yaml:"kind"`
	Default   interface{} `yaml:"default"`
	Nullable  bool        `yaml:"nullable"`
	Generator string      `yaml:"generator"`

	Relation       string `yaml:"relation"`
	Related        string `yaml:"related"`
	ForeignKey     string `yaml:"foreign_key"`
	LocalKey       string `yaml:"local_key"`
	OwnerKey       string `yaml:"owner_key"`
	Through        string `yaml:"through"`
	FirstKey       string `yaml:"first_key"`
	SecondKey      string `yaml:"second_key"`
	SecondLocalKey string `yaml:"second_local_key"`
	Pivot          string `yaml:"pivot"`
	ForeignPivot   string `yaml:"foreign_pivot_key"`
	RelatedPivot   string `yaml:"related_pivot_key"`
	ParentKey      string `yaml:"parent_key"`
	RelatedKey     string `yaml:"related_key"`
	As             string `yaml:"as"`
	MorphID        string `yaml:"morph_id"`
	MorphType      string `yaml:"morph_type"`
	RelatedID      string `yaml:"related_id"`
}

// Seed is a batch of records inserted into one entity
type Seed struct {
	Entity  string          `yaml:"entity"`
	Method  string          `yaml:"method"`
	Records []schema.Record `yaml:"records"`
}

// Parse decodes a fixture document
func Parse(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	return &f, nil
}

// Load reads and parses a fixture file
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture %s: %w", path, err)
	}
	return Parse(data)
}

// Build converts the declarations into entities ready for registration
func (f *Fixture) Build() ([]*schema.Entity, error) {
	entities := make([]*schema.Entity, 0, len(f.Entities))
	for _, spec := range f.Entities {
		e, err := spec.build()
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, nil
}

// Seed inserts the fixture data into db in declaration order. Seeding runs
// in one transaction, so a failing seed leaves db unchanged.
func (f *Fixture) Seed(ctx context.Context, db *database.Database) error {
	return db.Transaction(ctx, func(ctx context.Context) error {
		for _, seed := range f.Data {
			if err := seed.apply(ctx, db); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s Seed) apply(ctx context.Context, db *database.Database) error {
	payload := make([]interface{}, len(s.Records))
	for i, r := range s.Records {
		payload[i] = r
	}

	var err error
	switch strings.ToLower(s.Method) {
	case "", "insert":
		_, err = db.Insert(ctx, s.Entity, payload)
	case "create":
		_, err = db.Create(ctx, s.Entity, payload)
	case "insert_or_update", "insertorupdate":
		_, err = db.InsertOrUpdate(ctx, s.Entity, payload)
	default:
		err = fmt.Errorf("seed %s: unknown method %q: %w", s.Entity, s.Method, ErrInvalidFixture)
	}
	return err
}

// Open builds a started database from a fixture file and seeds it
func Open(ctx context.Context, path string, opts ...database.Option) (*database.Database, error) {
	f, err := Load(path)
	if err != nil {
		return nil, err
	}
	entities, err := f.Build()
	if err != nil {
		return nil, err
	}

	db := database.New(opts...)
	if err := db.Register(entities...); err != nil {
		return nil, err
	}
	if err := db.Start(); err != nil {
		return nil, err
	}
	if err := f.Seed(ctx, db); err != nil {
		return nil, err
	}
	return db, nil
}

func (s EntitySpec) build() (*schema.Entity, error) {
	if s.Name == "" {
		return nil, fmt.Errorf("entity without name: %w", ErrInvalidFixture)
	}

	e := schema.NewEntity(s.Name)
	switch {
	case len(s.Keys) > 0:
		e.CompositeKeys(s.Keys...)
	case s.Key != "":
		e.Key(s.Key)
	}
	if s.Extends != "" {
		e.Extends(s.Extends)
	}
	if len(s.Types) > 0 || s.TypeKey != "" {
		typeKey := s.TypeKey
		if typeKey == "" {
			typeKey = e.TypeKey
		}
		e.Discriminator(typeKey, s.Types)
	}

	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		f, err := s.Fields[name].build()
		if err != nil {
			return nil, fmt.Errorf("entity %s field %s: %w", s.Name, name, err)
		}
		e.Field(name, f)
	}
	return e, nil
}

func (s FieldSpec) build() (*schema.Field, error) {
	if s.Relation != "" {
		return s.buildRelation()
	}

	kind, err := schema.ParseFieldKind(s.Kind)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidFixture)
	}

	var f *schema.Field
	switch kind {
	case schema.KindString:
		f = schema.String(s.Default)
	case schema.KindNumber:
		f = schema.Number(s.Default)
	case schema.KindBoolean:
		f = schema.Boolean(s.Default)
	case schema.KindUid:
		var gen identity.Generator
		if s.Generator != "" {
			gen, err = identity.FromStrategy(s.Generator)
			if err != nil {
				return nil, fmt.Errorf("%v: %w", err, ErrInvalidFixture)
			}
		}
		f = schema.Uid(gen)
	default:
		f = schema.Attr(s.Default)
	}
	if s.Nullable {
		f.NullableField()
	}
	return f, nil
}

func (s FieldSpec) buildRelation() (*schema.Field, error) {
	typ, err := schema.ParseRelationType(snakeCase(s.Relation))
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidFixture)
	}
	if typ != schema.RelationMorphTo && s.Related == "" {
		return nil, fmt.Errorf("relation %s needs a related entity: %w", typ, ErrInvalidFixture)
	}

	var f *schema.Field
	switch typ {
	case schema.RelationHasOne:
		f = schema.HasOne(s.Related, s.ForeignKey, s.LocalKey)
	case schema.RelationBelongsTo:
		f = schema.BelongsTo(s.Related, s.ForeignKey, s.OwnerKey)
	case schema.RelationHasMany:
		f = schema.HasMany(s.Related, s.ForeignKey, s.LocalKey)
	case schema.RelationHasManyBy:
		f = schema.HasManyBy(s.Related, s.ForeignKey, s.OwnerKey)
	case schema.RelationHasManyThrough:
		f = schema.HasManyThrough(s.Related, s.Through, s.FirstKey, s.SecondKey, s.LocalKey, s.SecondLocalKey)
	case schema.RelationBelongsToMany:
		f = schema.BelongsToMany(s.Related, s.Pivot, s.ForeignPivot, s.RelatedPivot, s.ParentKey, s.RelatedKey)
	case schema.RelationMorphTo:
		f = schema.MorphTo(s.MorphID, s.MorphType)
	case schema.RelationMorphOne:
		f = schema.MorphOne(s.Related, s.MorphID, s.MorphType, s.LocalKey)
	case schema.RelationMorphMany:
		f = schema.MorphMany(s.Related, s.MorphID, s.MorphType, s.LocalKey)
	case schema.RelationMorphToMany:
		f = schema.MorphToMany(s.Related, s.Pivot, s.RelatedID, s.MorphID, s.MorphType, s.ParentKey, s.RelatedKey)
	case schema.RelationMorphedByMany:
		f = schema.MorphedByMany(s.Related, s.Pivot, s.RelatedID, s.MorphID, s.MorphType, s.ParentKey, s.RelatedKey)
	}
	return f.As(s.As), nil
}

// snakeCase accepts both "hasMany" and "has_many" relation names
func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
