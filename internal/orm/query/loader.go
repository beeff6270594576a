package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/conduit-lang/memdb/internal/orm/relationships"
	"github.com/conduit-lang/memdb/internal/orm/schema"
)

// DefaultRecursiveDepth is the depth WithAllRecursive uses when none is
// given
const DefaultRecursiveDepth = 3

// With eager loads a relation. path may be "*" for every relation,
// alternatives separated by "|" and nested relations separated by ".".
// Constraints apply to the query of the last relation in the path.
func (q *Query) With(path string, constraints ...Constraint) *Query {
	q.with(path, combine(constraints))
	return q
}

// WithAll eager loads every relation of the entity
func (q *Query) WithAll() *Query {
	q.withAll(nil)
	return q
}

// WithAllRecursive eager loads every relation and, depth levels deep, the
// relations of the loaded records
func (q *Query) WithAllRecursive(depth ...int) *Query {
	d := DefaultRecursiveDepth
	if len(depth) > 0 {
		d = depth[0]
	}
	q.withAll(func(sub *Query) {
		if d > 0 {
			sub.WithAllRecursive(d - 1)
		}
	})
	return q
}

func (q *Query) with(path string, constraint Constraint) {
	if path == "*" {
		q.withAll(nil)
		return
	}
	q.parseWith(strings.Split(path, "."), constraint)
}

func (q *Query) withAll(constraint Constraint) {
	for _, name := range q.entity.RelationNames() {
		q.with(name, constraint)
	}
}

func (q *Query) parseWith(relations []string, constraint Constraint) {
	for _, name := range strings.Split(relations[0], "|") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if len(relations) == 1 {
			q.addLoad(name, constraint)
			continue
		}
		rest := strings.Join(relations[1:], ".")
		q.addLoad(name, func(sub *Query) {
			sub.with(rest, constraint)
		})
	}
}

func (q *Query) addLoad(name string, constraint Constraint) {
	if _, ok := q.load[name]; !ok {
		q.load[name] = nil
		q.loadOrder = append(q.loadOrder, name)
	}
	if constraint != nil {
		q.load[name] = append(q.load[name], constraint)
	}
}

func combine(constraints []Constraint) Constraint {
	var set []Constraint
	for _, c := range constraints {
		if c != nil {
			set = append(set, c)
		}
	}
	switch len(set) {
	case 0:
		return nil
	case 1:
		return set[0]
	}
	return func(sub *Query) {
		for _, c := range set {
			c(sub)
		}
	}
}

// eagerLoad resolves every requested relation onto models. Relations
// declared only on subtypes load onto the models of that subtype.
func (q *Query) eagerLoad(models []*schema.Model) error {
	for _, name := range q.loadOrder {
		constraints := q.load[name]

		if f, ok := q.entity.RelationField(name); ok {
			if err := relationships.Load(q, models, name, f.Relation, constraints); err != nil {
				return fmt.Errorf("loading %s.%s: %w", q.entity.Name, name, err)
			}
			continue
		}

		found := false
		for _, sub := range q.subtypes() {
			f, ok := sub.RelationField(name)
			if !ok {
				continue
			}
			found = true

			var matching []*schema.Model
			for _, m := range models {
				if m.Entity().Name == sub.Name {
					matching = append(matching, m)
				}
			}
			if err := relationships.Load(q.NewQuery(sub.Name), matching, name, f.Relation, constraints); err != nil {
				return fmt.Errorf("loading %s.%s: %w", sub.Name, name, err)
			}
		}
		if !found {
			return fmt.Errorf("%s.%s: %w", q.entity.Name, name, ErrUnknownRelation)
		}
	}
	return nil
}

// subtypes returns the entities the discriminator mapping dispatches to,
// excluding the queried entity
func (q *Query) subtypes() []*schema.Entity {
	seen := make(map[string]bool)
	var names []string
	for _, name := range q.entity.TypeMap() {
		if name == q.entity.Name || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*schema.Entity, 0, len(names))
	for _, name := range names {
		if e, err := q.conn.registry.Entity(name); err == nil {
			out = append(out, e)
		}
	}
	return out
}
