package query

import (
	"fmt"
	"strings"

	"github.com/conduit-lang/memdb/internal/orm/schema"
)

// hasConstraint filters records by how many related records they have
type hasConstraint struct {
	relation   string
	exists     bool
	operator   Operator
	count      int
	constraint Constraint
}

// Has keeps records whose relation has related records. args is an
// optional count, or an operator followed by an optional count; the
// default is ">= 1". Nested relations are separated by ".".
func (q *Query) Has(relation string, args ...interface{}) *Query {
	return q.setHas(relation, true, args, nil)
}

// HasNot keeps records for which the Has condition does not hold
func (q *Query) HasNot(relation string, args ...interface{}) *Query {
	return q.setHas(relation, false, args, nil)
}

// WhereHas keeps records with related records matching constraint
func (q *Query) WhereHas(relation string, constraint Constraint) *Query {
	return q.setHas(relation, true, nil, constraint)
}

// WhereHasNot keeps records without related records matching constraint
func (q *Query) WhereHasNot(relation string, constraint Constraint) *Query {
	return q.setHas(relation, false, nil, constraint)
}

func (q *Query) setHas(relation string, exists bool, args []interface{}, constraint Constraint) *Query {
	h := &hasConstraint{
		relation:   relation,
		exists:     exists,
		operator:   OpGreaterThanOrEqual,
		count:      1,
		constraint: constraint,
	}

	for i, arg := range args {
		switch v := arg.(type) {
		case int:
			h.count = v
		case string:
			if i > 0 {
				return q.fail(fmt.Errorf("has(%s): count must be an int: %w", relation, ErrInvalidOperator))
			}
			op, err := ParseOperator(v)
			if err != nil {
				return q.fail(err)
			}
			h.operator = op
		default:
			return q.fail(fmt.Errorf("has(%s): unsupported argument %v: %w", relation, arg, ErrInvalidOperator))
		}
	}

	q.have = append(q.have, h)
	return q
}

// applyHasConstraints loads the constrained relations on a copy of the
// query's entity and narrows this query to the records that satisfy
// every count comparison
func (q *Query) applyHasConstraints() error {
	if len(q.have) == 0 {
		return nil
	}
	have := q.have
	q.have = nil

	sub := q.NewQuery(q.entity.Name)
	for _, h := range have {
		if h.constraint != nil {
			sub.With(h.relation, h.constraint)
		} else {
			sub.With(h.relation)
		}
	}

	collection, err := sub.Get()
	if err != nil {
		return err
	}

	ids := make([]interface{}, 0, len(collection))
	for _, m := range collection {
		if !satisfiesAll(m, have) {
			continue
		}
		if id, ok := m.IndexID(); ok {
			ids = append(ids, id)
		}
	}
	q.Where(schema.IndexIDField, ids)
	return nil
}

func satisfiesAll(m *schema.Model, have []*hasConstraint) bool {
	for _, h := range have {
		matched := h.operator.Compare(relationCount(m, strings.Split(h.relation, ".")), h.count)
		if matched != h.exists {
			return false
		}
	}
	return true
}

// relationCount counts the records loaded at the end of path
func relationCount(m *schema.Model, path []string) int {
	switch related := m.Get(path[0]).(type) {
	case []*schema.Model:
		if len(path) == 1 {
			return len(related)
		}
		total := 0
		for _, r := range related {
			total += relationCount(r, path[1:])
		}
		return total
	case *schema.Model:
		if related == nil {
			return 0
		}
		if len(path) == 1 {
			return 1
		}
		return relationCount(related, path[1:])
	}
	return 0
}
