package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/conduit-lang/memdb/internal/orm/database"
	"github.com/conduit-lang/memdb/internal/orm/query"
	"github.com/conduit-lang/memdb/internal/orm/schema"
	"github.com/conduit-lang/memdb/internal/web/params"
)

type explorer struct {
	db      *database.Database
	metrics http.Handler
	logger  *zap.Logger
}

// ExplorerOption configures the explorer handler
type ExplorerOption func(*explorer)

// WithMetrics mounts h on /metrics
func WithMetrics(h http.Handler) ExplorerOption {
	return func(e *explorer) {
		e.metrics = h
	}
}

// WithLogger logs every request at debug level
func WithLogger(logger *zap.Logger) ExplorerOption {
	return func(e *explorer) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExplorer returns the read-only HTTP surface over db:
//
//	GET /healthz
//	GET /entities
//	GET /entities/{name}?filter[field]=v&sort=-field&include=rel&has=rel&offset=n&limit=n
//	GET /entities/{name}/{id}?include=rel
//	GET /metrics
func NewExplorer(db *database.Database, opts ...ExplorerOption) http.Handler {
	e := &explorer{db: db, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(e.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		renderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/entities", func(r chi.Router) {
		r.Get("/", e.listEntities)
		r.Get("/{name}", e.listRecords)
		r.Get("/{name}/{id}", e.showRecord)
	})
	if e.metrics != nil {
		r.Method(http.MethodGet, "/metrics", e.metrics)
	}
	return r
}

func (e *explorer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		e.logger.Debug("request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (e *explorer) listEntities(w http.ResponseWriter, r *http.Request) {
	entities, err := e.db.Describe(r.Context())
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]interface{}{"data": entities})
}

func (e *explorer) listRecords(w http.ResponseWriter, r *http.Request) {
	entity, err := e.db.Registry().Entity(chi.URLParam(r, "name"))
	if err != nil {
		renderError(w, err)
		return
	}

	spec, err := params.FromRequest(r)
	if err != nil {
		renderError(w, err)
		return
	}
	if err := spec.Validate(entity); err != nil {
		renderError(w, err)
		return
	}

	models, err := e.db.Get(r.Context(), entity.Name, func(q *query.Query) {
		spec.Apply(q)
	})
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]interface{}{
		"data":  serialize(models),
		"count": len(models),
	})
}

func (e *explorer) showRecord(w http.ResponseWriter, r *http.Request) {
	name, id := chi.URLParam(r, "name"), chi.URLParam(r, "id")
	if _, err := e.db.Registry().Entity(name); err != nil {
		renderError(w, err)
		return
	}

	include := params.ParseList(r.URL.Query().Get("include"))
	models, err := e.db.Get(r.Context(), name, func(q *query.Query) {
		q.WhereID(params.ParseValue(id))
		for _, path := range include {
			q.With(path)
		}
	})
	if err != nil {
		renderError(w, err)
		return
	}
	if len(models) == 0 {
		renderError(w, fmt.Errorf("%s %s: %w", name, id, errRecordNotFound))
		return
	}
	renderJSON(w, http.StatusOK, map[string]interface{}{"data": models[0].ToJSON()})
}

func serialize(models []*schema.Model) []map[string]interface{} {
	out := make([]map[string]interface{}, len(models))
	for i, m := range models {
		out[i] = m.ToJSON()
	}
	return out
}

func renderJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
