// Package store holds entity tables in memory. Every commit replaces an
// entity's table with a new map, so a table obtained earlier never changes.
package store

import (
	"sort"
	"sync"

	"github.com/conduit-lang/memdb/internal/orm/schema"
	"go.uber.org/zap"
)

// Diff describes one table replacement: ids to drop and records to insert
// under their index id. Deletes apply before inserts.
type Diff struct {
	Insert schema.Records
	Delete []string
}

// InsertOne inserts a single record keyed by its index id
func InsertOne(record schema.Record) Diff {
	id, _ := record[schema.IndexIDField].(string)
	return Diff{Insert: schema.Records{id: record}}
}

// InsertMany inserts records keyed by index id
func InsertMany(records schema.Records) Diff {
	return Diff{Insert: records}
}

// DeleteByIDs removes the given index ids
func DeleteByIDs(ids ...string) Diff {
	return Diff{Delete: ids}
}

// Replace removes ids and inserts records in a single replacement
func Replace(ids []string, records schema.Records) Diff {
	return Diff{Insert: records, Delete: ids}
}

// IsEmpty reports whether the diff changes nothing
func (d Diff) IsEmpty() bool {
	return len(d.Insert) == 0 && len(d.Delete) == 0
}

// Container is the host contract the query engine reads from and commits to
type Container interface {
	// Table returns the current table of entity. Callers must not mutate it.
	Table(entity string) schema.Records

	// Commit atomically replaces the table of entity
	Commit(entity string, diff Diff)
}

// Snapshot is a point-in-time view of every table
type Snapshot map[string]schema.Records

// Memory is the in-memory Container
type Memory struct {
	mu      sync.RWMutex
	tables  map[string]schema.Records
	version uint64
	logger  *zap.Logger
}

// Option configures a Memory store
type Option func(*Memory)

// WithLogger sets the store logger
func WithLogger(logger *zap.Logger) Option {
	return func(m *Memory) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMemory creates an empty in-memory store
func NewMemory(opts ...Option) *Memory {
	m := &Memory{
		tables: make(map[string]schema.Records),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Table returns the current table of entity, or an empty table
func (m *Memory) Table(entity string) schema.Records {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if table, ok := m.tables[entity]; ok {
		return table
	}
	return schema.Records{}
}

// Commit builds a new table from the current one and the diff, then swaps it
// in. The previous table is left untouched.
func (m *Memory) Commit(entity string, diff Diff) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.tables[entity]
	next := make(schema.Records, len(current)+len(diff.Insert))
	for id, record := range current {
		next[id] = record
	}
	for _, id := range diff.Delete {
		delete(next, id)
	}
	for id, record := range diff.Insert {
		next[id] = record
	}

	m.tables[entity] = next
	m.version++

	m.logger.Debug("table committed",
		zap.String("entity", entity),
		zap.Int("inserted", len(diff.Insert)),
		zap.Int("deleted", len(diff.Delete)),
		zap.Int("size", len(next)))
}

// Version returns the number of commits applied so far
func (m *Memory) Version() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

// Entities returns the names of all tables, sorted
func (m *Memory) Entities() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.tables))
	for name := range m.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns the current tables. Tables are never mutated after a
// commit, so the snapshot stays consistent.
func (m *Memory) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(Snapshot, len(m.tables))
	for name, table := range m.tables {
		out[name] = table
	}
	return out
}

// Restore replaces every table with the snapshot's
func (m *Memory) Restore(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tables = make(map[string]schema.Records, len(s))
	for name, table := range s {
		m.tables[name] = table
	}
	m.version++
}
