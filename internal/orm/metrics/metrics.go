// Package metrics exports store activity as Prometheus metrics. Counters
// are fed by global hooks, table sizes are read from the store on scrape.
package metrics

import (
	"net/http"
	"sort"
	"sync"

	"github.com/conduit-lang/memdb/internal/orm/hooks"
	"github.com/conduit-lang/memdb/internal/orm/schema"
	"github.com/conduit-lang/memdb/internal/orm/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "memdb"

// TableSource provides the tables whose sizes are exported
type TableSource interface {
	Snapshot() store.Snapshot
}

// Collector owns a Prometheus registry with the store metrics
type Collector struct {
	registry *prometheus.Registry
	hooks    *hooks.Registry

	mutations *prometheus.CounterVec
	selects   *prometheus.CounterVec
	returned  *prometheus.CounterVec

	mu      sync.Mutex
	hookIDs []int
}

// New creates a collector and subscribes it to the global hooks. tables
// may be nil, in which case table sizes are not exported.
func New(h *hooks.Registry, tables TableSource) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		hooks:    h,
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Records committed by mutations, by entity and event.",
		}, []string{"entity", "event"}),
		selects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selects_total",
			Help:      "Select queries run, by entity.",
		}, []string{"entity"}),
		returned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selected_records_total",
			Help:      "Records returned by select queries, by entity.",
		}, []string{"entity"}),
	}

	c.registry.MustRegister(c.mutations, c.selects, c.returned)
	if tables != nil {
		c.registry.MustRegister(newTableCollector(tables))
	}

	c.subscribe()
	return c
}

func (c *Collector) subscribe() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, event := range []struct {
		hook  schema.HookType
		label string
	}{
		{schema.AfterCreate, "create"},
		{schema.AfterUpdate, "update"},
		{schema.AfterDelete, "delete"},
	} {
		counter := c.mutations
		label := event.label
		c.hookIDs = append(c.hookIDs, c.hooks.OnMutation(event.hook, func(_ *schema.Model, entity string) bool {
			counter.WithLabelValues(entity, label).Inc()
			return true
		}))
	}

	c.hookIDs = append(c.hookIDs, c.hooks.OnSelect(schema.AfterLimit, func(models []*schema.Model, entity string) []*schema.Model {
		c.selects.WithLabelValues(entity).Inc()
		c.returned.WithLabelValues(entity).Add(float64(len(models)))
		return models
	}))
}

// Close unsubscribes the collector from the hooks
func (c *Collector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range c.hookIDs {
		c.hooks.Off(id)
	}
	c.hookIDs = nil
}

// Registry returns the Prometheus registry holding the metrics
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the metrics in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// tableCollector reports the record count of every table at scrape time
type tableCollector struct {
	source TableSource
	desc   *prometheus.Desc
}

func newTableCollector(source TableSource) *tableCollector {
	return &tableCollector{
		source: source,
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "table_records"),
			"Records currently stored, by table.",
			[]string{"table"}, nil),
	}
}

// Describe implements prometheus.Collector
func (t *tableCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- t.desc
}

// Collect implements prometheus.Collector
func (t *tableCollector) Collect(ch chan<- prometheus.Metric) {
	snapshot := t.source.Snapshot()
	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ch <- prometheus.MustNewConstMetric(t.desc, prometheus.GaugeValue, float64(len(snapshot[name])), name)
	}
}
