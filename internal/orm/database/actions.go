package database

import (
	"context"

	"github.com/conduit-lang/memdb/internal/orm/query"
	"github.com/conduit-lang/memdb/internal/orm/schema"
	"go.uber.org/zap"
)

// Create replaces the records of entity with data
func (d *Database) Create(ctx context.Context, entity string, data interface{}, opts ...query.PersistOptions) (query.Collections, error) {
	return d.persist(ctx, query.MethodCreate, entity, data, opts)
}

// Insert adds data to entity, replacing records with the same key
func (d *Database) Insert(ctx context.Context, entity string, data interface{}, opts ...query.PersistOptions) (query.Collections, error) {
	return d.persist(ctx, query.MethodInsert, entity, data, opts)
}

// InsertOrUpdate merges data onto existing records and inserts the rest
func (d *Database) InsertOrUpdate(ctx context.Context, entity string, data interface{}, opts ...query.PersistOptions) (query.Collections, error) {
	return d.persist(ctx, query.MethodInsertOrUpdate, entity, data, opts)
}

func (d *Database) persist(ctx context.Context, method query.Method, entity string, data interface{}, opts []query.PersistOptions) (query.Collections, error) {
	var out query.Collections
	err := d.write(ctx, func(conn *query.Connection) error {
		q := conn.Query(entity)

		var err error
		switch method {
		case query.MethodCreate:
			out, err = q.Create(data, opts...)
		case query.MethodInsertOrUpdate:
			out, err = q.InsertOrUpdate(data, opts...)
		default:
			out, err = q.Insert(data, opts...)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	d.logMutation(method.String(), entity, out)
	return out, nil
}

// Update modifies existing records of entity. See query.Query.Update for
// the accepted data and condition shapes.
func (d *Database) Update(ctx context.Context, entity string, data, condition interface{}, opts ...query.PersistOptions) (query.Collections, error) {
	var out query.Collections
	err := d.write(ctx, func(conn *query.Connection) error {
		var err error
		out, err = conn.Query(entity).Update(data, condition, opts...)
		return err
	})
	if err != nil {
		return nil, err
	}
	d.logMutation(query.MethodUpdate.String(), entity, out)
	return out, nil
}

// Delete removes the record with primary key condition, or every record a
// query.MatchFunc selects
func (d *Database) Delete(ctx context.Context, entity string, condition interface{}) ([]*schema.Model, error) {
	var out []*schema.Model
	err := d.write(ctx, func(conn *query.Connection) error {
		var err error
		out, err = conn.Query(entity).Delete(condition)
		return err
	})
	return out, err
}

// DeleteAll removes every record of the named entities, or of every
// registered entity when none is named
func (d *Database) DeleteAll(ctx context.Context, entities ...string) (query.Collections, error) {
	out := make(query.Collections)
	err := d.write(ctx, func(conn *query.Connection) error {
		if len(entities) == 0 {
			var err error
			out, err = conn.DeleteAll()
			return err
		}
		for _, name := range entities {
			deleted, err := conn.Query(name).DeleteAll()
			if err != nil {
				return err
			}
			if len(deleted) > 0 {
				out[name] = deleted
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// New stores a record of entity filled with defaults and generated keys
func (d *Database) New(ctx context.Context, entity string) (*schema.Model, error) {
	var out *schema.Model
	err := d.write(ctx, func(conn *query.Connection) error {
		var err error
		out, err = conn.Query(entity).New()
		return err
	})
	return out, err
}

// All returns every record of entity
func (d *Database) All(ctx context.Context, entity string) ([]*schema.Model, error) {
	var out []*schema.Model
	err := d.read(ctx, func(conn *query.Connection) error {
		var err error
		out, err = conn.Query(entity).All()
		return err
	})
	return out, err
}

// Count returns the number of records of entity. Derived entities count
// only their own subtype.
func (d *Database) Count(ctx context.Context, entity string) (int, error) {
	var n int
	err := d.read(ctx, func(conn *query.Connection) error {
		var err error
		n, err = conn.Query(entity).Count()
		return err
	})
	return n, err
}

// Find looks a record up by primary key; nil when absent
func (d *Database) Find(ctx context.Context, entity string, id interface{}) (*schema.Model, error) {
	var out *schema.Model
	err := d.read(ctx, func(conn *query.Connection) error {
		var err error
		out, err = conn.Query(entity).Find(id)
		return err
	})
	return out, err
}

// FindIn looks up several records by primary key
func (d *Database) FindIn(ctx context.Context, entity string, ids []interface{}) ([]*schema.Model, error) {
	var out []*schema.Model
	err := d.read(ctx, func(conn *query.Connection) error {
		var err error
		out, err = conn.Query(entity).FindIn(ids)
		return err
	})
	return out, err
}

// Get runs a query built by fn under the read lock
func (d *Database) Get(ctx context.Context, entity string, fn func(q *query.Query)) ([]*schema.Model, error) {
	var out []*schema.Model
	err := d.read(ctx, func(conn *query.Connection) error {
		q := conn.Query(entity)
		if fn != nil {
			fn(q)
		}
		var err error
		out, err = q.Get()
		return err
	})
	return out, err
}

// LoadAll returns every record of entity with relations loaded to the
// configured recursive depth
func (d *Database) LoadAll(ctx context.Context, entity string) ([]*schema.Model, error) {
	return d.Get(ctx, entity, func(q *query.Query) {
		q.WithAllRecursive(d.recursiveDepth)
	})
}

func (d *Database) logMutation(method, entity string, out query.Collections) {
	ce := d.logger.Check(zap.DebugLevel, "mutation applied")
	if ce == nil {
		return
	}
	fields := []zap.Field{zap.String("method", method), zap.String("entity", entity)}
	for name, models := range out {
		fields = append(fields, zap.Int(name, len(models)))
	}
	ce.Write(fields...)
}
