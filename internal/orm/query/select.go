package query

import (
	"sort"

	"github.com/conduit-lang/memdb/internal/orm/schema"
)

// table returns the current table holding the entity's records
func (q *Query) table() schema.Records {
	return q.conn.container.Table(q.base.Name)
}

// hydrate converts a stored record into a model of its concrete entity.
// force, when set, overrides discriminator dispatch.
func (q *Query) hydrate(record schema.Record, force *schema.Entity) *schema.Model {
	if force != nil {
		return schema.NewModel(force, record)
	}
	if concrete, ok := q.entity.LookupType(record); ok {
		return schema.NewModel(concrete, record)
	}
	if !q.appliedOnBase {
		if v, ok := record[q.entity.TypeKey]; !ok || v == nil {
			if value, ok := q.entity.TypeValue(); ok {
				record = schema.CloneRecord(record)
				record[q.entity.TypeKey] = value
			}
			return schema.NewModel(q.entity, record)
		}
	}
	return schema.NewModel(q.base, record)
}

// records reads the candidate records through the id lookup or a full
// scan. On a full scan, subtype queries drop records of other concrete
// entities; an explicit id lookup returns what it finds.
func (q *Query) records() []*schema.Model {
	q.finalizeIDFilter()
	scan := q.idFilter == nil && q.joinedIDFilter == nil

	table := q.table()
	ids := q.idsToLookup(table)
	models := make([]*schema.Model, 0, len(ids))
	for _, id := range ids {
		record, ok := table[id]
		if !ok {
			continue
		}
		m := q.hydrate(record, nil)
		if scan && !q.appliedOnBase && m.Entity().Name != q.entity.Name {
			continue
		}
		models = append(models, m)
	}
	return models
}

// selectModels runs the select pipeline with its hook stages
func (q *Query) selectModels() ([]*schema.Model, error) {
	if q.err != nil {
		return nil, q.err
	}
	if err := q.applyHasConstraints(); err != nil {
		return nil, err
	}

	models := q.records()
	models = q.conn.hooks.ExecuteSelect(schema.BeforeSelect, q.entity, models)
	models = q.filterWhere(models)
	models = q.conn.hooks.ExecuteSelect(schema.AfterWhere, q.entity, models)
	models = q.filterOrderBy(models)
	models = q.conn.hooks.ExecuteSelect(schema.AfterOrderBy, q.entity, models)
	models = q.filterLimit(models)
	models = q.conn.hooks.ExecuteSelect(schema.AfterLimit, q.entity, models)
	return models, nil
}

// filterOrderBy sorts by every order key. The sort is stable.
func (q *Query) filterOrderBy(models []*schema.Model) []*schema.Model {
	if len(q.orders) == 0 {
		return models
	}
	sort.SliceStable(models, func(i, j int) bool {
		for _, o := range q.orders {
			c := compareValues(o.value(models[i]), o.value(models[j]))
			if c == 0 {
				continue
			}
			if o.Direction == Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return models
}

func (o *Order) value(m *schema.Model) interface{} {
	if o.Key != nil {
		return o.Key(m)
	}
	return m.Get(o.Field)
}

// compareValues orders numbers numerically and everything else by its
// string form. nil sorts before any value.
func compareValues(a, b interface{}) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	if fa, ok := schema.ToFloat64(a); ok {
		if fb, ok := schema.ToFloat64(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}

	sa, sb := schema.FormatValue(a), schema.FormatValue(b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	}
	return 0
}

// filterLimit applies offset then limit
func (q *Query) filterLimit(models []*schema.Model) []*schema.Model {
	if q.offset >= len(models) {
		return []*schema.Model{}
	}
	models = models[q.offset:]
	if q.limit >= 0 && q.limit < len(models) {
		models = models[:q.limit]
	}
	return models
}

// Get runs the query and eager loads the requested relations
func (q *Query) Get() ([]*schema.Model, error) {
	models, err := q.selectModels()
	if err != nil {
		return nil, err
	}
	return q.collect(models)
}

// All is an alias of Get
func (q *Query) All() ([]*schema.Model, error) {
	return q.Get()
}

// First returns the first result or nil
func (q *Query) First() (*schema.Model, error) {
	models, err := q.selectModels()
	if err != nil || len(models) == 0 {
		return nil, err
	}
	return q.item(models[0])
}

// Last returns the last result or nil
func (q *Query) Last() (*schema.Model, error) {
	models, err := q.selectModels()
	if err != nil || len(models) == 0 {
		return nil, err
	}
	return q.item(models[len(models)-1])
}

// Find looks a record up by primary key. Composite keys take a slice in
// declared key order. A missing record yields nil.
func (q *Query) Find(value interface{}) (*schema.Model, error) {
	if q.err != nil {
		return nil, q.err
	}
	id, err := q.entity.NormalizeIndexID(value)
	if err != nil {
		return nil, err
	}
	record, ok := q.table()[id]
	if !ok {
		return nil, nil
	}
	return q.item(q.hydrate(record, nil))
}

// FindIn looks up several records by primary key, in the given order
func (q *Query) FindIn(values []interface{}) ([]*schema.Model, error) {
	if q.err != nil {
		return nil, q.err
	}
	table := q.table()
	models := make([]*schema.Model, 0, len(values))
	for _, v := range values {
		id, err := q.entity.NormalizeIndexID(v)
		if err != nil {
			return nil, err
		}
		if record, ok := table[id]; ok {
			models = append(models, q.hydrate(record, nil))
		}
	}
	return q.collect(models)
}

// Exists reports whether the query selects any record
func (q *Query) Exists() (bool, error) {
	models, err := q.selectModels()
	if err != nil {
		return false, err
	}
	return len(models) > 0, nil
}

// Count returns the number of results
func (q *Query) Count() (int, error) {
	models, err := q.Get()
	if err != nil {
		return 0, err
	}
	return len(models), nil
}

// Max returns the largest numeric value of field, or 0
func (q *Query) Max(field string) (float64, error) {
	numbers, err := q.numbers(field)
	if err != nil || len(numbers) == 0 {
		return 0, err
	}
	largest := numbers[0]
	for _, n := range numbers[1:] {
		if n > largest {
			largest = n
		}
	}
	return largest, nil
}

// Min returns the smallest numeric value of field, or 0
func (q *Query) Min(field string) (float64, error) {
	numbers, err := q.numbers(field)
	if err != nil || len(numbers) == 0 {
		return 0, err
	}
	smallest := numbers[0]
	for _, n := range numbers[1:] {
		if n < smallest {
			smallest = n
		}
	}
	return smallest, nil
}

// Sum adds up the numeric values of field
func (q *Query) Sum(field string) (float64, error) {
	numbers, err := q.numbers(field)
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, n := range numbers {
		sum += n
	}
	return sum, nil
}

// numbers collects the numeric values of field; other values are skipped
func (q *Query) numbers(field string) ([]float64, error) {
	models, err := q.Get()
	if err != nil {
		return nil, err
	}
	var out []float64
	for _, m := range models {
		if n, ok := schema.ToFloat64(m.Get(field)); ok {
			out = append(out, n)
		}
	}
	return out, nil
}

func (q *Query) item(m *schema.Model) (*schema.Model, error) {
	if len(q.loadOrder) > 0 {
		if err := q.eagerLoad([]*schema.Model{m}); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (q *Query) collect(models []*schema.Model) ([]*schema.Model, error) {
	if len(models) == 0 {
		return []*schema.Model{}, nil
	}
	if len(q.loadOrder) > 0 {
		if err := q.eagerLoad(models); err != nil {
			return nil, err
		}
	}
	return models, nil
}
