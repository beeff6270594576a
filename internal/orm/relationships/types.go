// Package relationships implements foreign-key attachment, pivot synthesis
// and eager loading for every relation kind.
package relationships

import (
	"github.com/conduit-lang/memdb/internal/orm/schema"
	"go.uber.org/zap"
)

// Querier is the query surface relation loading needs. The query package
// implements it; keeping it here avoids an import cycle.
type Querier[Q any] interface {
	// NewQuery starts an independent query on another entity
	NewQuery(entity string) Q

	// Where adds an AND predicate
	Where(field string, value interface{}) Q

	// WhereFk constrains field to one of values
	WhereFk(field string, values []interface{}) Q

	// Get runs the query
	Get() ([]*schema.Model, error)

	// HasOrders reports whether the query declares a sort order
	HasOrders() bool

	// Entity returns the queried entity
	Entity() *schema.Entity

	// Logger returns the query logger
	Logger() *zap.Logger
}

// Constraint customizes a relation sub-query
type Constraint[Q any] func(Q)

// getRelation starts the sub-query for entity and applies the eager-load
// constraints to it
func getRelation[Q Querier[Q]](parent Q, entity string, constraints []Constraint[Q]) Q {
	q := parent.NewQuery(entity)
	for _, c := range constraints {
		if c != nil {
			c(q)
		}
	}
	return q
}
