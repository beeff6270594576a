package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/conduit-lang/memdb/internal/orm/database"
	"github.com/conduit-lang/memdb/internal/orm/metrics"
	"github.com/conduit-lang/memdb/internal/orm/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newExplorerDatabase(t *testing.T) *database.Database {
	t.Helper()
	db := database.New()
	require.NoError(t, db.Register(
		schema.NewEntity("users").
			Field("id", schema.Number(nil)).
			Field("name", schema.String("")).
			Field("posts", schema.HasMany("posts", "user_id")).
			Field("roles", schema.BelongsToMany("roles", "role_user", "user_id", "role_id")),
		schema.NewEntity("posts").
			Field("id", schema.Number(nil)).
			Field("user_id", schema.Number(nil)).
			Field("title", schema.String("")),
		schema.NewEntity("roles").
			Field("id", schema.Number(nil)).
			Field("name", schema.String("")),
		schema.NewEntity("role_user").
			CompositeKeys("user_id", "role_id").
			Field("user_id", schema.Number(nil)).
			Field("role_id", schema.Number(nil)),
	))
	require.NoError(t, db.Start())

	_, err := db.Insert(context.Background(), "users", []interface{}{
		map[string]interface{}{
			"id": 1, "name": "ann",
			"posts": []interface{}{map[string]interface{}{"id": 10, "title": "hello"}},
			"roles": []interface{}{map[string]interface{}{"id": 5, "name": "admin"}},
		},
		map[string]interface{}{"id": 2, "name": "bob"},
	})
	require.NoError(t, err)
	return db
}

func get(t *testing.T, h http.Handler, target string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	var body map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestExplorer_Healthz(t *testing.T) {
	h := NewExplorer(newExplorerDatabase(t))

	rec, body := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestExplorer_ListEntities(t *testing.T) {
	h := NewExplorer(newExplorerDatabase(t))

	rec, body := get(t, h, "/entities")
	require.Equal(t, http.StatusOK, rec.Code)

	data := body["data"].([]interface{})
	require.Len(t, data, 4)

	users := data[0].(map[string]interface{})
	assert.Equal(t, "users", users["name"])
	assert.Equal(t, float64(2), users["records"])
	assert.Equal(t, []interface{}{
		map[string]interface{}{"name": "id", "kind": "number"},
		map[string]interface{}{"name": "name", "kind": "string"},
	}, users["fields"])

	roles := users["relations"].(map[string]interface{})["roles"].(map[string]interface{})
	assert.Equal(t, "belongs_to_many", roles["type"])
	assert.Equal(t, []interface{}{"roles", "role_user"}, roles["targets"])

	pivot := data[3].(map[string]interface{})
	assert.Equal(t, []interface{}{"user_id", "role_id"}, pivot["primary_key"])
	assert.Equal(t, float64(1), pivot["records"])
}

func TestExplorer_ListRecords(t *testing.T) {
	h := NewExplorer(newExplorerDatabase(t))

	rec, body := get(t, h, "/entities/users?sort=-name&include=posts")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["count"])

	data := body["data"].([]interface{})
	assert.Equal(t, "bob", data[0].(map[string]interface{})["name"])
	ann := data[1].(map[string]interface{})
	require.Len(t, ann["posts"], 1)

	rec, body = get(t, h, "/entities/users?filter[name]=bob")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["count"])

	rec, body = get(t, h, "/entities/users?has=roles")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["count"])
}

func TestExplorer_ShowRecord(t *testing.T) {
	h := NewExplorer(newExplorerDatabase(t))

	rec, body := get(t, h, "/entities/users/1?include=roles")
	require.Equal(t, http.StatusOK, rec.Code)
	user := body["data"].(map[string]interface{})
	assert.Equal(t, "ann", user["name"])

	roles := user["roles"].([]interface{})
	require.Len(t, roles, 1)
	assert.Equal(t, "admin", roles[0].(map[string]interface{})["name"])

	rec, body = get(t, h, "/entities/role_user/[1,5]")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[1,5]", body["data"].(map[string]interface{})["$id"])
}

func TestExplorer_Errors(t *testing.T) {
	h := NewExplorer(newExplorerDatabase(t))

	tests := []struct {
		name   string
		target string
		status int
		code   string
	}{
		{"unknown entity", "/entities/usr", http.StatusNotFound, "unknown_entity"},
		{"unknown entity record", "/entities/usr/1", http.StatusNotFound, "unknown_entity"},
		{"missing record", "/entities/users/99", http.StatusNotFound, "not_found"},
		{"unknown relation", "/entities/users?include=comments", http.StatusBadRequest, "unknown_relation"},
		{"undeclared filter", "/entities/users?filter[email]=x", http.StatusBadRequest, "bad_request"},
		{"bad limit", "/entities/users?limit=x", http.StatusBadRequest, "bad_request"},
		{"composite key shape", "/entities/role_user/1", http.StatusBadRequest, "bad_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := get(t, h, tt.target)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, body["code"])
		})
	}
}

func TestExplorer_Metrics(t *testing.T) {
	db := newExplorerDatabase(t)
	collector := metrics.New(db.Hooks(), db)
	defer collector.Close()

	h := NewExplorer(db, WithMetrics(collector.Handler()))
	get(t, h, "/entities/users")

	rec, _ := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `memdb_selects_total{entity="users"} 1`)
	assert.Contains(t, rec.Body.String(), `memdb_table_records{table="users"} 2`)
}

func TestExplorer_NoMetricsRoute(t *testing.T) {
	h := NewExplorer(newExplorerDatabase(t))

	rec, _ := get(t, h, "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExplorer_LogsRequests(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	h := NewExplorer(newExplorerDatabase(t), WithLogger(zap.New(core)))

	get(t, h, "/entities/users")

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/entities/users", fields["path"])
	assert.Equal(t, int64(http.StatusOK), fields["status"])
}
