package database

import (
	"context"
	"testing"

	"github.com/conduit-lang/memdb/internal/orm/query"
	"github.com/conduit-lang/memdb/internal/orm/schema"
	"github.com/conduit-lang/memdb/internal/orm/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func blogEntities() []*schema.Entity {
	return []*schema.Entity{
		schema.NewEntity("users").
			Field("id", schema.Attr(nil)).
			Field("name", schema.String("")).
			Field("posts", schema.HasMany("posts", "user_id")),
		schema.NewEntity("posts").
			Field("id", schema.Attr(nil)).
			Field("user_id", schema.Attr(nil)).
			Field("title", schema.String("")).
			Field("author", schema.BelongsTo("users", "user_id")),
	}
}

func newTestDatabase(t *testing.T, opts ...Option) *Database {
	t.Helper()
	db := New(opts...)
	require.NoError(t, db.Register(blogEntities()...))
	require.NoError(t, db.Start())
	return db
}

func TestDatabase_NotStarted(t *testing.T) {
	db := New()
	require.NoError(t, db.Register(blogEntities()...))

	_, err := db.All(context.Background(), "users")
	assert.True(t, IsNotStarted(err))

	_, err = db.Query("users")
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestDatabase_RegisterAfterStart(t *testing.T) {
	db := newTestDatabase(t)

	err := db.Register(schema.NewEntity("tags"))
	assert.ErrorIs(t, err, ErrAlreadyStarted)
	assert.NoError(t, db.Start(), "start is idempotent")
}

func TestDatabase_StartValidatesRelations(t *testing.T) {
	db := New()
	require.NoError(t, db.Register(
		schema.NewEntity("posts").Field("author", schema.BelongsTo("users", "user_id")),
	))

	err := db.Start()
	assert.ErrorIs(t, err, schema.ErrInvalidRelation)
}

func TestDatabase_Actions(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)

	collections, err := db.Insert(ctx, "users", schema.Record{
		"id":    1,
		"name":  "ann",
		"posts": []interface{}{schema.Record{"id": 10, "title": "hello"}},
	})
	require.NoError(t, err)
	assert.Len(t, collections["users"], 1)
	assert.Len(t, collections["posts"], 1)

	user, err := db.Find(ctx, "users", 1)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "ann", user.Get("name"))

	_, err = db.Update(ctx, "users", schema.Record{"name": "bea"}, 1)
	require.NoError(t, err)

	posts, err := db.Get(ctx, "posts", func(q *query.Query) {
		q.With("author")
	})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "bea", posts[0].Related("author").Get("name"))

	_, err = db.InsertOrUpdate(ctx, "users", []interface{}{
		schema.Record{"id": 1, "name": "cat"},
		schema.Record{"id": 2, "name": "dan"},
	})
	require.NoError(t, err)

	users, err := db.FindIn(ctx, "users", []interface{}{2, 1})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "dan", users[0].Get("name"))
	assert.Equal(t, "cat", users[1].Get("name"))

	n, err := db.Count(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	deleted, err := db.Delete(ctx, "users", 2)
	require.NoError(t, err)
	assert.Len(t, deleted, 1)

	_, err = db.Create(ctx, "posts", []interface{}{schema.Record{"id": 20, "user_id": 1}})
	require.NoError(t, err)

	all, err := db.All(ctx, "posts")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 20, all[0].Get("id"))
}

func TestDatabase_LoadAll(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t, WithRecursiveDepth(1))
	assert.Equal(t, 1, db.RecursiveDepth())

	_, err := db.Insert(ctx, "users", schema.Record{
		"id":    1,
		"posts": []interface{}{schema.Record{"id": 10}},
	})
	require.NoError(t, err)

	users, err := db.LoadAll(ctx, "users")
	require.NoError(t, err)
	require.Len(t, users, 1)
	posts := users[0].RelatedMany("posts")
	require.Len(t, posts, 1)
	require.NotNil(t, posts[0].Related("author"))
}

func TestDatabase_DeleteAll(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)

	_, err := db.Insert(ctx, "users", schema.Record{
		"id":    1,
		"posts": []interface{}{schema.Record{"id": 10}, schema.Record{"id": 11}},
	})
	require.NoError(t, err)

	out, err := db.DeleteAll(ctx, "posts")
	require.NoError(t, err)
	assert.Len(t, out["posts"], 2)
	assert.NotContains(t, out, "users")

	out, err = db.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Len(t, out["users"], 1)

	snapshot := db.Snapshot()
	assert.Empty(t, snapshot["users"])
	assert.Empty(t, snapshot["posts"])
}

func TestDatabase_New(t *testing.T) {
	db := newTestDatabase(t)

	m, err := db.New(context.Background(), "users")
	require.NoError(t, err)
	assert.NotEmpty(t, m.Get("id"))
	assert.Equal(t, "", m.Get("name"))
}

func TestDatabase_CancelledContext(t *testing.T) {
	db := newTestDatabase(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := db.Insert(ctx, "users", schema.Record{"id": 1})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = db.All(ctx, "users")
	assert.ErrorIs(t, err, context.Canceled)

	assert.Empty(t, db.Snapshot()["users"])
}

func TestDatabase_SnapshotRestore(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)

	_, err := db.Insert(ctx, "users", schema.Record{"id": 1, "name": "ann"})
	require.NoError(t, err)

	data, err := store.MarshalSnapshot(db.Snapshot())
	require.NoError(t, err)

	other := newTestDatabase(t)
	snapshot, err := store.UnmarshalSnapshot(data)
	require.NoError(t, err)
	other.Restore(snapshot)

	user, err := other.Find(ctx, "users", 1)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "ann", user.Get("name"))
}

func TestDatabase_SharedStore(t *testing.T) {
	s := store.NewMemory()
	db := newTestDatabase(t, WithStore(s))
	assert.Same(t, s, db.Store())

	_, err := db.Insert(context.Background(), "users", schema.Record{"id": 1})
	require.NoError(t, err)
	assert.Len(t, s.Table("users"), 1)
}

func TestDatabase_LogsMutations(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	db := newTestDatabase(t, WithLogger(zap.New(core)))

	_, err := db.Insert(context.Background(), "users", schema.Record{"id": 1})
	require.NoError(t, err)

	entries := logs.FilterMessage("mutation applied").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "insert", entries[0].ContextMap()["method"])
	assert.Equal(t, int64(1), entries[0].ContextMap()["users"])
}

func TestDatabase_Describe(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)

	_, err := db.Insert(ctx, "users", schema.Record{
		"id":    1,
		"posts": []interface{}{schema.Record{"id": 10}, schema.Record{"id": 11}},
	})
	require.NoError(t, err)

	infos, err := db.Describe(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "users", infos[0].Name)
	assert.Equal(t, 1, infos[0].Records)
	assert.Equal(t, 2, infos[1].Records)

	posts, err := db.DescribeEntity(ctx, "posts")
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, posts.PrimaryKey)
	assert.Equal(t, []FieldInfo{
		{Name: "id", Kind: "attr"},
		{Name: "title", Kind: "string"},
		{Name: "user_id", Kind: "attr"},
	}, posts.Fields)

	author := posts.Relations["author"]
	assert.Equal(t, "belongs_to", author.Type)
	assert.Equal(t, []string{"users"}, author.Targets)
	assert.Equal(t, "user_id", author.Keys["foreign_key"])
	assert.Equal(t, "id", author.Keys["owner_key"])

	_, err = db.DescribeEntity(ctx, "nope")
	assert.True(t, schema.IsUnknownEntity(err))
}
