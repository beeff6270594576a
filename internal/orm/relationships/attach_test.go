package relationships

import (
	"testing"

	"github.com/conduit-lang/memdb/internal/orm/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T, entities ...*schema.Entity) *schema.Registry {
	t.Helper()
	r := schema.NewRegistry()
	require.NoError(t, r.Register(entities...))
	require.NoError(t, r.Start())
	return r
}

func relationOf(t *testing.T, r *schema.Registry, entity, field string) (*schema.Entity, *schema.Field) {
	t.Helper()
	e, err := r.Entity(entity)
	require.NoError(t, err)
	f, ok := e.RelationField(field)
	require.True(t, ok)
	return e, f
}

func TestAttach_HasMany(t *testing.T) {
	r := newRegistry(t,
		schema.NewEntity("users").Field("posts", schema.HasMany("posts", "user_id")),
		schema.NewEntity("posts").Field("user_id", schema.Attr(nil)),
	)
	users, f := relationOf(t, r, "users", "posts")

	data := schema.Entities{
		"users": {"1": {"id": 1, "posts": []interface{}{"10", "11"}}},
		"posts": {
			"10": {"id": 10},
			"11": {"id": 11, "user_id": 99},
		},
	}
	record := data["users"]["1"]
	Attach(users, f.Relation, record["posts"], record, data)

	assert.Equal(t, 1, data["posts"]["10"]["user_id"])
	assert.Equal(t, 99, data["posts"]["11"]["user_id"])
}

func TestAttach_HasOne(t *testing.T) {
	r := newRegistry(t,
		schema.NewEntity("users").Field("profile", schema.HasOne("profiles", "user_id")),
		schema.NewEntity("profiles"),
	)
	users, f := relationOf(t, r, "users", "profile")

	data := schema.Entities{
		"users":    {"1": {"id": 1, "profile": "5"}},
		"profiles": {"5": {"id": 5}},
	}
	record := data["users"]["1"]
	Attach(users, f.Relation, record["profile"], record, data)

	assert.Equal(t, 1, data["profiles"]["5"]["user_id"])
}

func TestAttach_BelongsTo(t *testing.T) {
	r := newRegistry(t,
		schema.NewEntity("posts").Field("author", schema.BelongsTo("users", "user_id")),
		schema.NewEntity("users"),
	)
	posts, f := relationOf(t, r, "posts", "author")

	data := schema.Entities{
		"posts": {
			"1": {"id": 1, "author": "7"},
			"2": {"id": 2, "author": "7", "user_id": 3},
			"3": {"id": 3, "author": "8"},
		},
		"users": {"7": {"id": 7}},
	}
	for _, id := range []string{"1", "2", "3"} {
		record := data["posts"][id]
		Attach(posts, f.Relation, record["author"], record, data)
	}

	assert.Equal(t, 7, data["posts"]["1"]["user_id"])
	assert.Equal(t, 3, data["posts"]["2"]["user_id"])
	assert.Equal(t, "8", data["posts"]["3"]["user_id"])
}

func TestAttach_HasManyBy(t *testing.T) {
	r := newRegistry(t,
		schema.NewEntity("clusters").Field("nodes", schema.HasManyBy("nodes", "node_ids")),
		schema.NewEntity("nodes"),
	)
	clusters, f := relationOf(t, r, "clusters", "nodes")

	data := schema.Entities{
		"clusters": {"1": {"id": 1, "nodes": []interface{}{"1", "2"}}},
		"nodes":    {"1": {"id": 1}, "2": {"id": 2}},
	}
	record := data["clusters"]["1"]
	Attach(clusters, f.Relation, record["nodes"], record, data)

	assert.Equal(t, []interface{}{1, 2}, record["node_ids"])
}

func TestAttach_MorphMany(t *testing.T) {
	r := newRegistry(t,
		schema.NewEntity("posts").Field("comments", schema.MorphMany("comments", "commentable_id", "commentable_type")),
		schema.NewEntity("comments"),
	)
	posts, f := relationOf(t, r, "posts", "comments")

	data := schema.Entities{
		"posts":    {"1": {"id": 1, "comments": []interface{}{"3"}}},
		"comments": {"3": {"id": 3}},
	}
	record := data["posts"]["1"]
	Attach(posts, f.Relation, record["comments"], record, data)

	assert.Equal(t, 1, data["comments"]["3"]["commentable_id"])
	assert.Equal(t, "posts", data["comments"]["3"]["commentable_type"])
}

func TestAttach_NoOpKinds(t *testing.T) {
	r := newRegistry(t,
		schema.NewEntity("users").Field("roles", schema.BelongsToMany("roles", "role_user", "user_id", "role_id")),
		schema.NewEntity("roles"),
		schema.NewEntity("role_user").CompositeKeys("user_id", "role_id"),
		schema.NewEntity("comments").Field("commentable", schema.MorphTo("commentable_id", "commentable_type")),
	)

	data := schema.Entities{
		"users": {"1": {"id": 1, "roles": []interface{}{"2"}}},
		"roles": {"2": {"id": 2}},
	}
	users, roles := relationOf(t, r, "users", "roles")
	Attach(users, roles.Relation, data["users"]["1"]["roles"], data["users"]["1"], data)
	assert.Equal(t, schema.Record{"id": 2}, data["roles"]["2"])

	comments, morph := relationOf(t, r, "comments", "commentable")
	record := schema.Record{"id": 1, "commentable": "2"}
	Attach(comments, morph.Relation, record["commentable"], record, data)
	assert.Equal(t, schema.Record{"id": 1, "commentable": "2"}, record)

	Attach(users, roles.Relation, nil, data["users"]["1"], data)
}

func TestCreatePivots_CompositeKey(t *testing.T) {
	r := newRegistry(t,
		schema.NewEntity("users").Field("roles", schema.BelongsToMany("roles", "role_user", "user_id", "role_id")),
		schema.NewEntity("roles"),
		schema.NewEntity("role_user").CompositeKeys("user_id", "role_id"),
	)
	users, f := relationOf(t, r, "users", "roles")

	data := schema.Entities{
		"users": {"5": {"id": 5, "roles": []interface{}{"10", "11"}}},
		"roles": {
			"10": {"id": 10, "pivot": schema.Record{"level": "admin"}},
			"11": {"id": 11},
		},
	}
	require.NoError(t, CreatePivots(users, f, data["users"]["5"], data))

	pivots := data["role_user"]
	require.Len(t, pivots, 2)
	assert.Equal(t, schema.Record{"user_id": 5, "role_id": 10, "level": "admin", "$id": "[5,10]"}, pivots["[5,10]"])
	assert.Equal(t, schema.Record{"user_id": 5, "role_id": 11, "$id": "[5,11]"}, pivots["[5,11]"])
}

func TestCreatePivots_DeclaredKeyOrder(t *testing.T) {
	r := newRegistry(t,
		schema.NewEntity("users").Field("roles", schema.BelongsToMany("roles", "role_user", "user_id", "role_id")),
		schema.NewEntity("roles"),
		schema.NewEntity("role_user").CompositeKeys("role_id", "user_id"),
	)
	users, f := relationOf(t, r, "users", "roles")

	data := schema.Entities{
		"users": {"5": {"id": 5, "roles": []interface{}{"10"}}},
		"roles": {"10": {"id": 10}},
	}
	require.NoError(t, CreatePivots(users, f, data["users"]["5"], data))
	assert.Contains(t, data["role_user"], "[10,5]")
}

func TestCreatePivots_SingleKeyPivotSkipped(t *testing.T) {
	r := newRegistry(t,
		schema.NewEntity("users").Field("roles", schema.BelongsToMany("roles", "role_user", "user_id", "role_id")),
		schema.NewEntity("roles"),
		schema.NewEntity("role_user"),
	)
	users, f := relationOf(t, r, "users", "roles")

	data := schema.Entities{
		"users": {"5": {"id": 5, "roles": []interface{}{"10"}}},
		"roles": {"10": {"id": 10}},
	}
	require.NoError(t, CreatePivots(users, f, data["users"]["5"], data))
	assert.NotContains(t, data, "role_user")
}

func TestCreatePivots_MorphToMany(t *testing.T) {
	r := newRegistry(t,
		schema.NewEntity("posts").Field("tags", schema.MorphToMany("tags", "taggables", "tag_id", "taggable_id", "taggable_type")),
		schema.NewEntity("tags"),
		schema.NewEntity("taggables").CompositeKeys("tag_id", "taggable_id", "taggable_type"),
	)
	posts, f := relationOf(t, r, "posts", "tags")

	data := schema.Entities{
		"posts": {"1": {"id": 1, "tags": []interface{}{"3"}}},
		"tags":  {"3": {"id": 3}},
	}
	require.NoError(t, CreatePivots(posts, f, data["posts"]["1"], data))
	assert.Equal(t, schema.Record{
		"tag_id":        3,
		"taggable_id":   1,
		"taggable_type": "posts",
		"$id":           `[3,1,"posts"]`,
	}, data["taggables"][`[3,1,"posts"]`])
}

func TestMapJoinedRelations_Ordered(t *testing.T) {
	r := newRegistry(t,
		schema.NewEntity("pivots").CompositeKeys("owner", "related").
			Field("owner", schema.Attr(nil)).
			Field("related", schema.Attr(nil)),
		schema.NewEntity("roles").Field("id", schema.Attr(nil)),
	)
	pivotEntity, _ := r.Entity("pivots")
	roles, _ := r.Entity("roles")

	joins := []*schema.Model{
		schema.NewModel(pivotEntity, schema.Record{"owner": 1, "related": 10}),
		schema.NewModel(pivotEntity, schema.Record{"owner": 1, "related": 11}),
	}
	related := []*schema.Model{
		schema.NewModel(roles, schema.Record{"id": 11}),
		schema.NewModel(roles, schema.Record{"id": 10}),
	}
	spec := joinedRelation{ownerColumn: "owner", relatedColumn: "related", relatedKey: "id", accessor: "pivot"}

	unordered := mapJoinedRelations(joins, related, spec, false)["1"]
	require.Len(t, unordered, 2)
	assert.Equal(t, 10, unordered[0].Get("id"))

	ordered := mapJoinedRelations(joins, related, spec, true)["1"]
	require.Len(t, ordered, 2)
	assert.Equal(t, 11, ordered[0].Get("id"))
	assert.Equal(t, 11, ordered[0].Related("pivot").Get("related"))
	assert.Nil(t, related[0].Get("pivot"))
}

func TestGetKeys(t *testing.T) {
	r := newRegistry(t, schema.NewEntity("posts").Field("user_id", schema.Attr(nil)))
	posts, _ := r.Entity("posts")

	models := []*schema.Model{
		schema.NewModel(posts, schema.Record{"user_id": 1}),
		schema.NewModel(posts, schema.Record{"user_id": nil}),
		schema.NewModel(posts, schema.Record{"user_id": float64(1)}),
		schema.NewModel(posts, schema.Record{"user_id": 2}),
	}
	assert.Equal(t, []interface{}{1, 2}, getKeys(models, "user_id"))
}
