// Package database is the entry point of the store: it owns the entity
// registry, the table container and the global hooks, and exposes
// action-style operations over them.
package database

import (
	"context"
	"fmt"
	"sync"

	"github.com/conduit-lang/memdb/internal/orm/hooks"
	"github.com/conduit-lang/memdb/internal/orm/query"
	"github.com/conduit-lang/memdb/internal/orm/schema"
	"github.com/conduit-lang/memdb/internal/orm/store"
	"github.com/conduit-lang/memdb/internal/orm/transaction"
	"go.uber.org/zap"
)

// Database holds registered entities and their tables
type Database struct {
	mu sync.RWMutex

	registry *schema.Registry
	store    *store.Memory
	hooks    *hooks.Registry
	conn     *query.Connection
	logger   *zap.Logger

	recursiveDepth int
}

// Option configures a Database
type Option func(*Database)

// WithLogger sets the logger used by every layer
func WithLogger(logger *zap.Logger) Option {
	return func(d *Database) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithStore uses an existing store instead of an empty one
func WithStore(s *store.Memory) Option {
	return func(d *Database) {
		if s != nil {
			d.store = s
		}
	}
}

// WithHooks shares a global hook registry
func WithHooks(h *hooks.Registry) Option {
	return func(d *Database) {
		if h != nil {
			d.hooks = h
		}
	}
}

// WithRecursiveDepth sets the depth used by LoadAll
func WithRecursiveDepth(depth int) Option {
	return func(d *Database) {
		if depth >= 0 {
			d.recursiveDepth = depth
		}
	}
}

// New creates an empty database
func New(opts ...Option) *Database {
	d := &Database{
		logger:         zap.NewNop(),
		hooks:          hooks.NewRegistry(),
		recursiveDepth: query.DefaultRecursiveDepth,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.store == nil {
		d.store = store.NewMemory(store.WithLogger(d.logger))
	}
	d.registry = schema.NewRegistry(schema.WithLogger(d.logger))
	return d
}

// Register adds entity declarations. Entities must be registered before
// Start.
func (d *Database) Register(entities ...*schema.Entity) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn != nil {
		return ErrAlreadyStarted
	}
	return d.registry.Register(entities...)
}

// Start resolves the registered entities and opens the query connection
func (d *Database) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn != nil {
		return nil
	}
	if err := d.registry.Start(); err != nil {
		return fmt.Errorf("failed to start database: %w", err)
	}
	d.conn = query.NewConnection(d.registry, d.store,
		query.WithLogger(d.logger),
		query.WithHooks(d.hooks))

	d.logger.Info("database started", zap.Strings("entities", d.registry.Names()))
	return nil
}

// Registry returns the entity registry
func (d *Database) Registry() *schema.Registry {
	return d.registry
}

// Store returns the table container
func (d *Database) Store() *store.Memory {
	return d.store
}

// Hooks returns the global hook registry
func (d *Database) Hooks() *hooks.Registry {
	return d.hooks
}

// Logger returns the database logger
func (d *Database) Logger() *zap.Logger {
	return d.logger
}

// RecursiveDepth returns the depth LoadAll uses
func (d *Database) RecursiveDepth() int {
	return d.recursiveDepth
}

// Snapshot returns a consistent view of every table
func (d *Database) Snapshot() store.Snapshot {
	return d.store.Snapshot()
}

// Restore replaces every table with the snapshot's
func (d *Database) Restore(s store.Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.store.Restore(s)
}

func (d *Database) connection() (*query.Connection, error) {
	if d.conn == nil {
		return nil, ErrNotStarted
	}
	return d.conn, nil
}

// read runs fn under the read lock after checking ctx. A ctx carrying an
// active transaction already holds the write lock.
func (d *Database) read(ctx context.Context, fn func(*query.Connection) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !transaction.Active(ctx, d.store) {
		d.mu.RLock()
		defer d.mu.RUnlock()
	}

	conn, err := d.connection()
	if err != nil {
		return err
	}
	return fn(conn)
}

// write runs fn under the write lock after checking ctx. Mutations are
// serialized so a nested payload commits as a unit with respect to other
// writers.
func (d *Database) write(ctx context.Context, fn func(*query.Connection) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !transaction.Active(ctx, d.store) {
		d.mu.Lock()
		defer d.mu.Unlock()
	}

	conn, err := d.connection()
	if err != nil {
		return err
	}
	return fn(conn)
}

// Transaction runs fn so that every action it performs with the context it
// receives commits or rolls back together. Other readers and writers wait
// until fn returns. A Transaction started from inside fn runs in a savepoint.
//
// Query, Register and Restore take the lock themselves and must not be
// called from fn.
func (d *Database) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if transaction.Active(ctx, d.store) {
		tx, _ := transaction.FromContext(ctx)
		return tx.Nested(ctx, fn)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.connection(); err != nil {
		return err
	}
	if err := transaction.Run(ctx, d.store, fn); err != nil {
		d.logger.Debug("transaction rolled back", zap.Error(err))
		return err
	}
	return nil
}

// Query starts a query on entity. The query reads the tables current when
// its terminal operation runs.
func (d *Database) Query(entity string) (*query.Query, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	conn, err := d.connection()
	if err != nil {
		return nil, err
	}
	return conn.Query(entity), nil
}
