package query

import (
	"github.com/conduit-lang/memdb/internal/orm/hooks"
	"github.com/conduit-lang/memdb/internal/orm/normalize"
	"github.com/conduit-lang/memdb/internal/orm/schema"
	"github.com/conduit-lang/memdb/internal/orm/store"
	"go.uber.org/zap"
)

// Connection binds queries to a registry, the container holding the
// tables, and the hook registry
type Connection struct {
	registry   *schema.Registry
	container  store.Container
	normalizer *normalize.Normalizer
	hooks      *hooks.Executor
	logger     *zap.Logger
}

// Option configures a Connection
type Option func(*Connection)

// WithLogger sets the connection logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Connection) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHooks sets the global hook registry
func WithHooks(registry *hooks.Registry) Option {
	return func(c *Connection) {
		if registry != nil {
			c.hooks = hooks.NewExecutor(registry, nil)
		}
	}
}

// NewConnection creates a connection over a started registry
func NewConnection(registry *schema.Registry, container store.Container, opts ...Option) *Connection {
	c := &Connection{
		registry:   registry,
		container:  container,
		normalizer: normalize.New(normalize.NewBuilder(registry)),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.hooks == nil {
		c.hooks = hooks.NewExecutor(hooks.NewRegistry(), c.logger)
	} else {
		c.hooks = hooks.NewExecutor(c.hooks.Registry(), c.logger)
	}
	return c
}

// Registry returns the entity registry
func (c *Connection) Registry() *schema.Registry {
	return c.registry
}

// Container returns the table container
func (c *Connection) Container() store.Container {
	return c.container
}

// Hooks returns the global hook registry
func (c *Connection) Hooks() *hooks.Registry {
	return c.hooks.Registry()
}

// Normalizer returns the payload normalizer
func (c *Connection) Normalizer() *normalize.Normalizer {
	return c.normalizer
}

// Logger returns the connection logger
func (c *Connection) Logger() *zap.Logger {
	return c.logger
}

// Query starts a query on entity
func (c *Connection) Query(entity string) *Query {
	return New(c, entity)
}

// DeleteAll removes the records of every registered base entity, running
// delete hooks for each record
func (c *Connection) DeleteAll() (Collections, error) {
	out := make(Collections)
	for _, e := range c.registry.Entities() {
		if e.IsDerived() {
			continue
		}
		deleted, err := c.Query(e.Name).DeleteAll()
		if err != nil {
			return nil, err
		}
		if len(deleted) > 0 {
			out[e.Name] = deleted
		}
	}
	return out, nil
}
