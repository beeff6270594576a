package query

import (
	"sort"
	"strconv"

	"github.com/conduit-lang/memdb/internal/orm/schema"
)

// idSet is an insertion-ordered set of index ids that remembers the value
// each id was given as
type idSet struct {
	keys   []string
	values map[string]interface{}
}

func newIDSet(values []interface{}) *idSet {
	s := &idSet{values: make(map[string]interface{}, len(values))}
	for _, v := range values {
		key := schema.FormatValue(v)
		if _, exists := s.values[key]; exists {
			continue
		}
		s.keys = append(s.keys, key)
		s.values[key] = v
	}
	return s
}

func (s *idSet) has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// intersect keeps the ids of s that also appear in values
func (s *idSet) intersect(values []interface{}) *idSet {
	other := newIDSet(values)
	out := &idSet{values: make(map[string]interface{})}
	for _, key := range s.keys {
		if other.has(key) {
			out.keys = append(out.keys, key)
			out.values[key] = s.values[key]
		}
	}
	return out
}

// isIDFilterable reports whether a where on field can seed the id lookup
func (q *Query) isIDFilterable(field string) bool {
	if q.cancelIDFilter {
		return false
	}
	if field == schema.IndexIDField {
		return true
	}
	return !q.entity.IsComposite() && field == q.entity.PrimaryKey
}

// setIDFilter seeds or intersects the id lookup set. Chained AND
// conditions on the key narrow it further.
func (q *Query) setIDFilter(value interface{}) {
	values := asList(value)
	if q.idFilter == nil {
		q.idFilter = newIDSet(values)
		return
	}
	q.idFilter = q.idFilter.intersect(values)
}

// setJoinedIDFilter seeds or intersects the id set used by relation
// loading. OR conditions never cancel it.
func (q *Query) setJoinedIDFilter(values []interface{}) {
	if q.joinedIDFilter == nil {
		q.joinedIDFilter = newIDSet(values)
		return
	}
	q.joinedIDFilter = q.joinedIDFilter.intersect(values)
}

// finalizeIDFilter turns a cancelled id lookup back into a where on the
// index id so the full scan still honors it
func (q *Query) finalizeIDFilter() {
	if !q.cancelIDFilter || q.idFilter == nil {
		return
	}
	keys := make([]interface{}, len(q.idFilter.keys))
	for i, key := range q.idFilter.keys {
		keys[i] = key
	}
	q.wheres = append(q.wheres, &Condition{Field: schema.IndexIDField, Value: keys})
	q.idFilter = nil
}

// idsToLookup returns the index ids to read: the id filters when set, or
// every id of the table
func (q *Query) idsToLookup(table schema.Records) []string {
	switch {
	case q.idFilter != nil && q.joinedIDFilter != nil:
		var out []string
		for _, key := range q.idFilter.keys {
			if q.joinedIDFilter.has(key) {
				out = append(out, key)
			}
		}
		return out
	case q.idFilter != nil:
		return q.idFilter.keys
	case q.joinedIDFilter != nil:
		return q.joinedIDFilter.keys
	}
	return tableIDs(table)
}

// tableIDs returns the ids of a table in scan order: integer ids ascending,
// then the rest lexically
func tableIDs(table schema.Records) []string {
	ids := make([]string, 0, len(table))
	for id := range table {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

func sortIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		a, aErr := strconv.ParseInt(ids[i], 10, 64)
		b, bErr := strconv.ParseInt(ids[j], 10, 64)
		switch {
		case aErr == nil && bErr == nil && a != b:
			return a < b
		case aErr == nil && bErr == nil:
			return ids[i] < ids[j]
		case aErr == nil:
			return true
		case bErr == nil:
			return false
		}
		return ids[i] < ids[j]
	})
}

func asList(value interface{}) []interface{} {
	if items, ok := schema.ToSlice(value); ok {
		return items
	}
	return []interface{}{value}
}
