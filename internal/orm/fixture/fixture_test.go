package fixture

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/conduit-lang/memdb/internal/orm/database"
	"github.com/conduit-lang/memdb/internal/orm/query"
	"github.com/conduit-lang/memdb/internal/orm/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openBlog(t *testing.T) *database.Database {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join("testdata", "blog.yaml"))
	require.NoError(t, err)
	return db
}

func TestBuild_Declarations(t *testing.T) {
	f, err := Load(filepath.Join("testdata", "blog.yaml"))
	require.NoError(t, err)

	entities, err := f.Build()
	require.NoError(t, err)
	require.Len(t, entities, 7)

	users := entities[0]
	assert.Equal(t, "users", users.Name)
	assert.Equal(t, schema.KindBoolean, users.Fields["active"].Kind)
	assert.Equal(t, schema.RelationHasMany, users.Fields["posts"].Relation.Type)
	assert.Equal(t, "membership", users.Fields["roles"].Relation.PivotAccessor)

	pivot := entities[4]
	assert.True(t, pivot.IsComposite())
	assert.Equal(t, []string{"user_id", "role_id"}, pivot.Keys())
	assert.True(t, pivot.Fields["level"].Nullable)

	people := entities[5]
	assert.Equal(t, "adults", people.Types["ADULT"])
	assert.Equal(t, "people", entities[6].Base)
}

func TestOpen_SeedsData(t *testing.T) {
	ctx := context.Background()
	db := openBlog(t)

	users, err := db.Get(ctx, "users", func(q *query.Query) {
		q.With("posts.comments").With("roles")
	})
	require.NoError(t, err)
	require.Len(t, users, 2)

	ann := users[0]
	assert.Equal(t, true, ann.Get("active"))
	assert.Equal(t, false, users[1].Get("active"))

	posts := ann.RelatedMany("posts")
	require.Len(t, posts, 1)
	assert.Equal(t, float64(4), posts[0].Get("score"))

	comments := posts[0].RelatedMany("comments")
	require.Len(t, comments, 1)
	assert.Equal(t, "first", comments[0].Get("body"))
	assert.NotEmpty(t, comments[0].Get("id"))

	roles := ann.RelatedMany("roles")
	require.Len(t, roles, 1)
	membership, ok := roles[0].Get("membership").(*schema.Model)
	require.True(t, ok)
	assert.Equal(t, 2, membership.Get("level"))
}

func TestOpen_Inheritance(t *testing.T) {
	db := openBlog(t)

	adults, err := db.All(context.Background(), "adults")
	require.NoError(t, err)
	require.Len(t, adults, 1)
	assert.Equal(t, "dev", adults[0].Get("job"))
	assert.Equal(t, "ada", adults[0].Get("name"))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unnamed entity", "entities:\n  - fields: {}\n"},
		{"unknown kind", "entities:\n  - name: a\n    fields:\n      x: {kind: blob}\n"},
		{"unknown relation", "entities:\n  - name: a\n    fields:\n      x: {relation: hasSome, related: b}\n"},
		{"relation without target", "entities:\n  - name: a\n    fields:\n      x: {relation: hasMany}\n"},
		{"unknown generator", "entities:\n  - name: a\n    fields:\n      id: {kind: uid, generator: snowflake}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse([]byte(tt.doc))
			require.NoError(t, err)

			_, err = f.Build()
			assert.ErrorIs(t, err, ErrInvalidFixture)
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte("entities: ["))
	assert.Error(t, err)

	_, err = Load(filepath.Join("testdata", "missing.yaml"))
	assert.Error(t, err)
}

func TestSeed_UnknownMethod(t *testing.T) {
	f, err := Parse([]byte(`
entities:
  - name: tags
    fields:
      id: {kind: attr}
data:
  - entity: tags
    method: upsert
    records:
      - {id: 1}
`))
	require.NoError(t, err)

	entities, err := f.Build()
	require.NoError(t, err)

	db := database.New()
	require.NoError(t, db.Register(entities...))
	require.NoError(t, db.Start())

	err = f.Seed(context.Background(), db)
	assert.ErrorIs(t, err, ErrInvalidFixture)
}

func TestSeed_RollsBackOnFailure(t *testing.T) {
	f, err := Parse([]byte(`
entities:
  - name: tags
    fields:
      id: {kind: attr}
data:
  - entity: tags
    records:
      - {id: 1}
      - {id: 2}
  - entity: tags
    method: upsert
    records:
      - {id: 3}
`))
	require.NoError(t, err)

	entities, err := f.Build()
	require.NoError(t, err)

	db := database.New()
	require.NoError(t, db.Register(entities...))
	require.NoError(t, db.Start())

	require.Error(t, f.Seed(context.Background(), db))
	assert.Empty(t, db.Snapshot()["tags"])
}

func TestSnakeCase(t *testing.T) {
	assert.Equal(t, "has_many_through", snakeCase("hasManyThrough"))
	assert.Equal(t, "morph_to", snakeCase("morph_to"))
	assert.Equal(t, "belongs_to", snakeCase("BelongsTo"))
}
