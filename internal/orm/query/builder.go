// Package query provides the fluent query builder, eager loading and the
// mutation pipeline over in-memory entity tables
package query

import (
	"fmt"
	"strings"

	"github.com/conduit-lang/memdb/internal/orm/relationships"
	"github.com/conduit-lang/memdb/internal/orm/schema"
	"go.uber.org/zap"
)

// Constraint customizes the query of an eager-loaded relation
type Constraint = relationships.Constraint[*Query]

// Direction is a sort direction
type Direction int

const (
	Asc Direction = iota
	Desc
)

// String returns the string representation of the direction
func (d Direction) String() string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}

// Order is one sort key. Key is used when set, otherwise Field.
type Order struct {
	Field     string
	Key       func(m *schema.Model) interface{}
	Direction Direction
}

// Query is a fluent query over one entity. Builder methods record errors
// which are returned by the terminal operation.
type Query struct {
	conn *Connection

	entity        *schema.Entity
	base          *schema.Entity
	appliedOnBase bool

	wheres []*Condition
	have   []*hasConstraint
	orders []*Order
	offset int
	limit  int

	load      map[string][]Constraint
	loadOrder []string

	idFilter       *idSet
	joinedIDFilter *idSet
	cancelIDFilter bool

	err error
}

// New creates a query on entity. An unknown entity is reported by the
// terminal operation.
func New(conn *Connection, entity string) *Query {
	q := &Query{
		conn:          conn,
		appliedOnBase: true,
		limit:         -1,
		load:          make(map[string][]Constraint),
	}

	e, err := conn.registry.Entity(entity)
	if err != nil {
		q.err = err
		q.entity = schema.NewEntity(entity)
		q.base = q.entity
		return q
	}
	base, err := conn.registry.BaseEntity(entity)
	if err != nil {
		q.err = err
		base = e
	}

	q.entity = e
	q.base = base
	q.appliedOnBase = base.Name == e.Name
	return q
}

// NewQuery starts an independent query on another entity over the same
// connection
func (q *Query) NewQuery(entity string) *Query {
	if entity == "" {
		entity = q.entity.Name
	}
	return New(q.conn, entity)
}

// Entity returns the queried entity
func (q *Query) Entity() *schema.Entity {
	return q.entity
}

// Logger returns the connection logger
func (q *Query) Logger() *zap.Logger {
	return q.conn.logger
}

// Err returns the first error recorded by a builder method
func (q *Query) Err() error {
	return q.err
}

// HasOrders reports whether the query declares a sort order
func (q *Query) HasOrders() bool {
	return len(q.orders) > 0
}

func (q *Query) fail(err error) *Query {
	if q.err == nil {
		q.err = err
	}
	return q
}

// Where adds an AND condition. value may be a scalar (equality), a slice
// (membership) or a ValueFilter. Conditions on the primary key or $id
// narrow the index lookup.
func (q *Query) Where(field string, value interface{}) *Query {
	if q.isIDFilterable(field) && !isFilterFunc(value) {
		q.setIDFilter(value)
	}
	q.wheres = append(q.wheres, &Condition{Field: field, Value: value})
	return q
}

// OrWhere adds an OR condition. Any OR condition forces a full scan.
func (q *Query) OrWhere(field string, value interface{}) *Query {
	q.cancelIDFilter = true
	q.wheres = append(q.wheres, &Condition{Field: field, Value: value, Or: true})
	return q
}

// WhereFunc adds an AND condition evaluated against the whole record
func (q *Query) WhereFunc(fn RecordFilter) *Query {
	q.wheres = append(q.wheres, &Condition{Record: fn})
	return q
}

// OrWhereFunc adds an OR condition evaluated against the whole record
func (q *Query) OrWhereFunc(fn RecordFilter) *Query {
	q.cancelIDFilter = true
	q.wheres = append(q.wheres, &Condition{Record: fn, Or: true})
	return q
}

// WhereSub adds an AND condition that matches the records selected by the
// sub-query fn builds
func (q *Query) WhereSub(fn SubQueryFilter) *Query {
	q.wheres = append(q.wheres, &Condition{SubQuery: fn})
	return q
}

// OrWhereSub is the OR form of WhereSub
func (q *Query) OrWhereSub(fn SubQueryFilter) *Query {
	q.cancelIDFilter = true
	q.wheres = append(q.wheres, &Condition{SubQuery: fn, Or: true})
	return q
}

// WhereID filters by primary key. Composite keys take a slice in declared
// key order.
func (q *Query) WhereID(value interface{}) *Query {
	if !q.entity.IsComposite() {
		return q.Where(q.entity.PrimaryKey, value)
	}
	id, err := q.entity.NormalizeIndexID(value)
	if err != nil {
		return q.fail(err)
	}
	return q.Where(schema.IndexIDField, id)
}

// WhereIDIn filters by a list of primary keys
func (q *Query) WhereIDIn(values []interface{}) *Query {
	if !q.entity.IsComposite() {
		return q.Where(q.entity.PrimaryKey, values)
	}
	ids := make([]interface{}, 0, len(values))
	for _, v := range values {
		id, err := q.entity.NormalizeIndexID(v)
		if err != nil {
			return q.fail(err)
		}
		ids = append(ids, id)
	}
	return q.Where(schema.IndexIDField, ids)
}

// WhereFk constrains field to values. Foreign keys pointing at the primary
// key use the index lookup directly and are never cancelled by OR.
func (q *Query) WhereFk(field string, values []interface{}) *Query {
	if !q.entity.IsComposite() && field == q.entity.PrimaryKey {
		q.setJoinedIDFilter(values)
		return q
	}
	return q.Where(field, values)
}

// OrderBy adds a sort key. direction is "asc" (default) or "desc".
func (q *Query) OrderBy(field string, direction ...string) *Query {
	q.orders = append(q.orders, &Order{Field: field, Direction: parseDirection(direction)})
	return q
}

// OrderByFunc adds a computed sort key
func (q *Query) OrderByFunc(key func(m *schema.Model) interface{}, direction ...string) *Query {
	q.orders = append(q.orders, &Order{Key: key, Direction: parseDirection(direction)})
	return q
}

func isFilterFunc(value interface{}) bool {
	switch value.(type) {
	case ValueFilter, func(interface{}) bool:
		return true
	}
	return false
}

func parseDirection(direction []string) Direction {
	if len(direction) > 0 && strings.EqualFold(direction[0], "desc") {
		return Desc
	}
	return Asc
}

// Offset skips the first n results
func (q *Query) Offset(n int) *Query {
	if n < 0 {
		n = 0
	}
	q.offset = n
	return q
}

// Limit caps the number of results. A negative limit removes the cap.
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// String describes the query for logs
func (q *Query) String() string {
	return fmt.Sprintf("query(%s wheres=%d orders=%d offset=%d limit=%d with=%v)",
		q.entity.Name, len(q.wheres), len(q.orders), q.offset, q.limit, q.loadOrder)
}
