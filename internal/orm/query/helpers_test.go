package query

import (
	"testing"

	"github.com/conduit-lang/memdb/internal/orm/schema"
	"github.com/conduit-lang/memdb/internal/orm/store"
	"github.com/stretchr/testify/require"
)

func testEntities() []*schema.Entity {
	return []*schema.Entity{
		schema.NewEntity("users").
			Field("id", schema.Attr(nil)).
			Field("name", schema.String("")).
			Field("age", schema.Attr(nil)).
			Field("country_id", schema.Attr(nil)).
			Field("profile", schema.HasOne("profiles", "user_id")).
			Field("posts", schema.HasMany("posts", "user_id")).
			Field("roles", schema.BelongsToMany("roles", "role_user", "user_id", "role_id")),
		schema.NewEntity("profiles").
			Field("id", schema.Attr(nil)).
			Field("user_id", schema.Attr(nil)).
			Field("bio", schema.String("")),
		schema.NewEntity("posts").
			Field("id", schema.Attr(nil)).
			Field("user_id", schema.Attr(nil)).
			Field("title", schema.String("")).
			Field("author", schema.BelongsTo("users", "user_id")).
			Field("comments", schema.MorphMany("comments", "commentable_id", "commentable_type")).
			Field("cover", schema.MorphOne("images", "imageable_id", "imageable_type")).
			Field("tags", schema.MorphToMany("tags", "taggables", "tag_id", "taggable_id", "taggable_type")),
		schema.NewEntity("comments").
			Field("id", schema.Attr(nil)).
			Field("body", schema.String("")).
			Field("commentable_id", schema.Attr(nil)).
			Field("commentable_type", schema.Attr(nil)).
			Field("commentable", schema.MorphTo("commentable_id", "commentable_type")),
		schema.NewEntity("images").
			Field("id", schema.Attr(nil)).
			Field("url", schema.String("")).
			Field("imageable_id", schema.Attr(nil)).
			Field("imageable_type", schema.Attr(nil)),
		schema.NewEntity("roles").
			Field("id", schema.Attr(nil)).
			Field("name", schema.String("")),
		schema.NewEntity("role_user").
			CompositeKeys("user_id", "role_id").
			Field("user_id", schema.Attr(nil)).
			Field("role_id", schema.Attr(nil)).
			Field("level", schema.Attr(nil)),
		schema.NewEntity("tags").
			Field("id", schema.Attr(nil)).
			Field("name", schema.String("")).
			Field("posts", schema.MorphedByMany("posts", "taggables", "tag_id", "taggable_id", "taggable_type")),
		schema.NewEntity("taggables").
			CompositeKeys("tag_id", "taggable_id", "taggable_type").
			Field("tag_id", schema.Attr(nil)).
			Field("taggable_id", schema.Attr(nil)).
			Field("taggable_type", schema.Attr(nil)),
		schema.NewEntity("countries").
			Field("id", schema.Attr(nil)).
			Field("name", schema.String("")).
			Field("posts", schema.HasManyThrough("posts", "users", "country_id", "user_id")),
		schema.NewEntity("clusters").
			Field("id", schema.Attr(nil)).
			Field("node_ids", schema.Attr(nil)).
			Field("nodes", schema.HasManyBy("nodes", "node_ids")),
		schema.NewEntity("nodes").
			Field("id", schema.Attr(nil)).
			Field("name", schema.String("")),
		schema.NewEntity("people").
			Field("id", schema.Attr(nil)).
			Field("name", schema.String("")).
			Field("type", schema.Attr(nil)).
			Discriminator("type", map[string]string{
				"PERSON": "people",
				"ADULT":  "adults",
				"CHILD":  "children",
			}),
		schema.NewEntity("adults").
			Extends("people").
			Field("job", schema.String("")).
			Field("company_id", schema.Attr(nil)).
			Field("company", schema.BelongsTo("companies", "company_id")),
		schema.NewEntity("children").
			Extends("people"),
		schema.NewEntity("companies").
			Field("id", schema.Attr(nil)).
			Field("name", schema.String("")),
	}
}

func newTestConnection(t *testing.T, opts ...Option) *Connection {
	t.Helper()
	r := schema.NewRegistry()
	require.NoError(t, r.Register(testEntities()...))
	require.NoError(t, r.Start())
	return NewConnection(r, store.NewMemory(), opts...)
}

// seed inserts records directly into the base table of entity
func seed(t *testing.T, conn *Connection, entity string, records ...schema.Record) {
	t.Helper()
	e, err := conn.Registry().BaseEntity(entity)
	require.NoError(t, err)

	table := make(schema.Records, len(records))
	for _, r := range records {
		id, ok := e.GenerateKeys(r)
		require.True(t, ok)
		table[id] = r
	}
	conn.Container().Commit(e.Name, store.InsertMany(table))
}

func ids(models []*schema.Model) []interface{} {
	out := make([]interface{}, len(models))
	for i, m := range models {
		out[i] = m.Get("id")
	}
	return out
}
