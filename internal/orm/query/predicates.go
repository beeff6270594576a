package query

import (
	"fmt"

	"github.com/conduit-lang/memdb/internal/orm/schema"
)

// ValueFilter matches a record by the value of one field
type ValueFilter func(value interface{}) bool

// RecordFilter matches a whole record. q is a fresh query on the same
// entity the filter may use for correlated lookups.
type RecordFilter func(m *schema.Model, q *Query) bool

// SubQueryFilter builds a sub-query on q; a record matches when that
// sub-query selects it
type SubQueryFilter func(m *schema.Model, q *Query)

// Condition is one where predicate. Exactly one of Record, SubQuery or
// Field is meaningful.
type Condition struct {
	Field    string
	Value    interface{}
	Record   RecordFilter
	SubQuery SubQueryFilter
	Or       bool
}

// Operator is a count comparison used by has constraints
type Operator int

const (
	OpEqual Operator = iota
	OpNotEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpLessThan
	OpLessThanOrEqual
)

// String returns the string representation of the operator
func (o Operator) String() string {
	switch o {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "!="
	case OpGreaterThan:
		return ">"
	case OpGreaterThanOrEqual:
		return ">="
	case OpLessThan:
		return "<"
	case OpLessThanOrEqual:
		return "<="
	default:
		return "UNKNOWN"
	}
}

// ParseOperator converts a comparison symbol to an Operator
func ParseOperator(s string) (Operator, error) {
	switch s {
	case "=", "==":
		return OpEqual, nil
	case "!=", "<>":
		return OpNotEqual, nil
	case ">":
		return OpGreaterThan, nil
	case ">=":
		return OpGreaterThanOrEqual, nil
	case "<":
		return OpLessThan, nil
	case "<=":
		return OpLessThanOrEqual, nil
	default:
		return 0, fmt.Errorf("%q: %w", s, ErrInvalidOperator)
	}
}

// Compare applies the operator to a and b
func (o Operator) Compare(a, b int) bool {
	switch o {
	case OpEqual:
		return a == b
	case OpNotEqual:
		return a != b
	case OpGreaterThan:
		return a > b
	case OpGreaterThanOrEqual:
		return a >= b
	case OpLessThan:
		return a < b
	case OpLessThanOrEqual:
		return a <= b
	default:
		return false
	}
}

// filterWhere keeps the models that satisfy the where conditions. The AND
// group requires every condition, the OR group any; a model passes when
// either existing group does.
func (q *Query) filterWhere(models []*schema.Model) []*schema.Model {
	if len(q.wheres) == 0 {
		return models
	}

	var and, or []*Condition
	for _, c := range q.wheres {
		if c.Or {
			or = append(or, c)
		} else {
			and = append(and, c)
		}
	}

	out := make([]*schema.Model, 0, len(models))
	for _, m := range models {
		if (len(and) > 0 && q.matchesAll(m, and)) || (len(or) > 0 && q.matchesAny(m, or)) {
			out = append(out, m)
		}
	}
	return out
}

func (q *Query) matchesAll(m *schema.Model, conds []*Condition) bool {
	for _, c := range conds {
		if !q.matches(m, c) {
			return false
		}
	}
	return true
}

func (q *Query) matchesAny(m *schema.Model, conds []*Condition) bool {
	for _, c := range conds {
		if q.matches(m, c) {
			return true
		}
	}
	return false
}

// matches evaluates one condition against a model
func (q *Query) matches(m *schema.Model, c *Condition) bool {
	switch {
	case c.Record != nil:
		return c.Record(m, q.NewQuery(q.entity.Name))

	case c.SubQuery != nil:
		sub := q.NewQuery(q.entity.Name)
		c.SubQuery(m, sub)
		selected, err := sub.Get()
		if err != nil {
			return false
		}
		id, _ := m.IndexID()
		for _, s := range selected {
			if sid, _ := s.IndexID(); sid == id {
				return true
			}
		}
		return false
	}

	value := m.Get(c.Field)
	switch expected := c.Value.(type) {
	case ValueFilter:
		return expected(value)
	case func(interface{}) bool:
		return expected(value)
	}

	if items, ok := schema.ToSlice(c.Value); ok {
		for _, item := range items {
			if schema.ValuesEqual(value, item) {
				return true
			}
		}
		return false
	}
	return schema.ValuesEqual(value, c.Value)
}
