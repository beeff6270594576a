package query

import (
	"fmt"

	"github.com/conduit-lang/memdb/internal/orm/schema"
	"github.com/conduit-lang/memdb/internal/orm/store"
	"github.com/conduit-lang/memdb/internal/orm/tracking"
	"go.uber.org/zap"
)

// Method is a persistence method applied to normalized records
type Method int

const (
	MethodCreate Method = iota
	MethodInsert
	MethodUpdate
	MethodInsertOrUpdate
)

// String returns the string representation of the method
func (m Method) String() string {
	switch m {
	case MethodCreate:
		return "create"
	case MethodInsert:
		return "insert"
	case MethodUpdate:
		return "update"
	case MethodInsertOrUpdate:
		return "insertOrUpdate"
	default:
		return "unknown"
	}
}

// PersistOptions forces a persistence method for the named entities of a
// nested payload, e.g. creating the root while only inserting children
type PersistOptions struct {
	Create         []string
	Insert         []string
	Update         []string
	InsertOrUpdate []string
}

// methodFor returns the method to use for entity, falling back to fallback
func (o PersistOptions) methodFor(entity string, fallback Method) Method {
	switch {
	case contains(o.Create, entity):
		return MethodCreate
	case contains(o.Insert, entity):
		return MethodInsert
	case contains(o.Update, entity):
		return MethodUpdate
	case contains(o.InsertOrUpdate, entity):
		return MethodInsertOrUpdate
	}
	return fallback
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// Collections groups affected models by entity name
type Collections map[string][]*schema.Model

// UpdateFunc modifies a model in place during an update
type UpdateFunc func(m *schema.Model)

// MatchFunc selects the models an update or delete applies to
type MatchFunc func(m *schema.Model) bool

// New creates a record filled with defaults and generated keys and stores
// it
func (q *Query) New() (*schema.Model, error) {
	if q.err != nil {
		return nil, q.err
	}

	record := schema.Record{}
	if !q.appliedOnBase {
		if value, ok := q.entity.TypeValue(); ok {
			record[q.entity.TypeKey] = value
		}
	}
	if _, ok := q.entity.GenerateKeys(record); !ok {
		return nil, fmt.Errorf("entity %s: %w", q.entity.Name, schema.ErrInvalidKeyShape)
	}

	m := schema.NewModel(q.entity, record)
	q.commit(store.InsertOne(m.Attributes()))
	return m, nil
}

// Create replaces the entity's records with data. Nested related records
// are persisted with the same method unless opts override it.
func (q *Query) Create(data interface{}, opts ...PersistOptions) (Collections, error) {
	return q.persist(MethodCreate, data, mergeOptions(opts))
}

// Insert adds data, replacing records with the same primary key
func (q *Query) Insert(data interface{}, opts ...PersistOptions) (Collections, error) {
	return q.persist(MethodInsert, data, mergeOptions(opts))
}

// InsertOrUpdate merges data onto existing records and inserts the rest
func (q *Query) InsertOrUpdate(data interface{}, opts ...PersistOptions) (Collections, error) {
	return q.persist(MethodInsertOrUpdate, data, mergeOptions(opts))
}

// Update modifies existing records. data may be:
//   - a list of records, merged onto the stored records with the same key
//   - a record with a nil condition, merged the same way; the payload must
//     carry its primary key
//   - a record or an UpdateFunc with a condition, applied to the record
//     whose key is condition or to every record a MatchFunc selects
//
// Records that do not exist are never inserted.
func (q *Query) Update(data interface{}, condition interface{}, opts ...PersistOptions) (Collections, error) {
	if q.err != nil {
		return nil, q.err
	}

	if fn, ok := asUpdateFunc(data); ok {
		if condition == nil {
			return nil, fmt.Errorf("%s: %w", q.entity.Name, ErrMissingUpdateCondition)
		}
		if match, ok := asMatchFunc(condition); ok {
			return q.updateByCondition(fn, nil, match)
		}
		return q.updateByID(fn, nil, condition)
	}

	if schema.IsSlice(data) {
		return q.persist(MethodUpdate, data, mergeOptions(opts))
	}

	patch, ok := data.(schema.Record)
	if !ok {
		return nil, fmt.Errorf("update %s with %T: %w", q.entity.Name, data, ErrUnsupportedPayload)
	}
	if match, ok := asMatchFunc(condition); ok {
		return q.updateByCondition(nil, patch, match)
	}
	if condition == nil {
		if _, ok := q.entity.IndexIDOf(patch); !ok {
			return nil, fmt.Errorf("%s: payload has no primary key: %w", q.entity.Name, ErrMissingUpdateCondition)
		}
		return q.persist(MethodUpdate, patch, mergeOptions(opts))
	}
	return q.updateByID(nil, patch, condition)
}

func asUpdateFunc(v interface{}) (UpdateFunc, bool) {
	switch fn := v.(type) {
	case UpdateFunc:
		return fn, true
	case func(*schema.Model):
		return fn, true
	}
	return nil, false
}

func asMatchFunc(v interface{}) (MatchFunc, bool) {
	switch fn := v.(type) {
	case MatchFunc:
		return fn, true
	case func(*schema.Model) bool:
		return fn, true
	}
	return nil, false
}

func mergeOptions(opts []PersistOptions) PersistOptions {
	var out PersistOptions
	for _, o := range opts {
		out.Create = append(out.Create, o.Create...)
		out.Insert = append(out.Insert, o.Insert...)
		out.Update = append(out.Update, o.Update...)
		out.InsertOrUpdate = append(out.InsertOrUpdate, o.InsertOrUpdate...)
	}
	return out
}

// persist normalizes data and persists each produced entity table with the
// method for that entity
func (q *Query) persist(method Method, data interface{}, opts PersistOptions) (Collections, error) {
	if q.err != nil {
		return nil, q.err
	}

	result, err := q.conn.normalizer.Normalize(q.entity.Name, data)
	if err != nil {
		return nil, err
	}

	collections := make(Collections)
	if result.IsEmpty() {
		if method == MethodCreate {
			if _, err := q.DeleteAll(); err != nil {
				return nil, err
			}
		}
		return collections, nil
	}

	for _, name := range result.Order {
		nq := q.NewQuery(name)
		if nq.err != nil {
			return nil, nq.err
		}
		models := nq.persistRecords(opts.methodFor(name, method), result.Table(name))
		if len(models) > 0 {
			collections[name] = models
		}
	}
	return collections, nil
}

func (q *Query) persistRecords(method Method, records schema.Records) []*schema.Model {
	switch method {
	case MethodCreate:
		return q.createRecords(records)
	case MethodUpdate:
		return q.updateRecords(records)
	case MethodInsertOrUpdate:
		return q.insertOrUpdateRecords(records)
	default:
		return q.insertRecords(records)
	}
}

func (q *Query) createRecords(records schema.Records) []*schema.Model {
	q.deleteByCondition(q.deleteAllCondition())
	return q.insertRecords(records)
}

// insertRecords hydrates the records, runs the create hooks and commits
// them in one table replacement
func (q *Query) insertRecords(records schema.Records) []*schema.Model {
	if len(records) == 0 {
		return nil
	}

	ids := recordIDs(records)
	models := make([]*schema.Model, 0, len(ids))
	for _, id := range ids {
		models = append(models, q.hydrate(records[id], nil))
	}

	models = q.conn.hooks.ExecuteMutation(schema.BeforeCreate, q.entity, models)

	insert := make(schema.Records, len(models))
	for _, m := range models {
		if id, ok := m.IndexID(); ok {
			insert[id] = m.Attributes()
		}
	}
	q.commit(store.InsertMany(insert))

	q.conn.hooks.ExecuteMutation(schema.AfterCreate, q.entity, models)
	return models
}

// pendingUpdate is a model awaiting commit together with the slot it was
// read from
type pendingUpdate struct {
	key      string
	original schema.Record
	model    *schema.Model
}

// updateRecords merges records onto the stored records with the same id.
// Records without a stored counterpart are skipped.
func (q *Query) updateRecords(records schema.Records) []*schema.Model {
	table := q.table()
	var pending []*pendingUpdate
	for _, id := range recordIDs(records) {
		stored, ok := table[id]
		if !ok {
			continue
		}
		merged := schema.CloneRecord(stored)
		for k, v := range records[id] {
			merged[k] = v
		}
		var force *schema.Entity
		if concrete, ok := q.entity.LookupType(stored); ok {
			force = concrete
		}
		pending = append(pending, &pendingUpdate{key: id, original: stored, model: q.hydrate(merged, force)})
	}
	return q.performUpdate(pending)
}

// updateByID applies fn or patch to the record stored under id
func (q *Query) updateByID(fn UpdateFunc, patch schema.Record, id interface{}) (Collections, error) {
	key, err := q.entity.NormalizeIndexID(id)
	if err != nil {
		return nil, err
	}

	collections := make(Collections)
	stored, ok := q.table()[key]
	if !ok {
		return collections, nil
	}

	m := q.processUpdate(fn, patch, q.hydrate(stored, nil))
	updated := q.performUpdate([]*pendingUpdate{{key: key, original: stored, model: m}})
	if len(updated) > 0 {
		collections[q.entity.Name] = updated
	}
	return collections, nil
}

// updateByCondition applies fn or patch to every record match selects
func (q *Query) updateByCondition(fn UpdateFunc, patch schema.Record, match MatchFunc) (Collections, error) {
	table := q.table()
	var pending []*pendingUpdate
	for _, id := range tableIDs(table) {
		m := q.hydrate(table[id], nil)
		if !q.appliedOnBase && m.Entity().Name != q.entity.Name {
			continue
		}
		if !match(m) {
			continue
		}
		pending = append(pending, &pendingUpdate{key: id, original: table[id], model: q.processUpdate(fn, patch, m)})
	}

	collections := make(Collections)
	if updated := q.performUpdate(pending); len(updated) > 0 {
		collections[q.entity.Name] = updated
	}
	return collections, nil
}

// processUpdate applies fn in place, or merges patch onto the model's
// attributes
func (q *Query) processUpdate(fn UpdateFunc, patch schema.Record, m *schema.Model) *schema.Model {
	if fn != nil {
		fn(m)
		return m
	}

	merged := m.Attributes()
	for k, v := range schema.CloneRecord(patch) {
		merged[k] = v
	}
	if m.Entity() != q.entity {
		return q.hydrate(merged, m.Entity())
	}
	return q.hydrate(merged, nil)
}

// performUpdate re-keys models whose primary key changed, runs the update
// hooks and commits the survivors in one table replacement
func (q *Query) performUpdate(pending []*pendingUpdate) []*schema.Model {
	if len(pending) == 0 {
		return nil
	}

	var (
		deletes []string
		updated []*schema.Model
	)
	inserts := make(schema.Records, len(pending))

	for _, p := range pending {
		attrs := p.model.Attributes()
		id := p.key
		if newID, ok := p.model.Entity().IndexIDOf(attrs); ok && newID != p.key {
			id = newID
			p.model.SetIndexID(id)
			attrs[schema.IndexIDField] = id
		}

		if !q.conn.hooks.Allows(schema.BeforeUpdate, q.entity, p.model) {
			continue
		}

		attrs = p.model.Attributes()
		if id != p.key {
			deletes = append(deletes, p.key)
			q.logRekey(p, id, attrs)
		}
		inserts[id] = attrs
		updated = append(updated, p.model)
	}

	if len(updated) == 0 {
		return nil
	}
	q.commit(store.Replace(deletes, inserts))

	for _, m := range updated {
		q.conn.hooks.Allows(schema.AfterUpdate, q.entity, m)
	}
	return updated
}

func (q *Query) logRekey(p *pendingUpdate, id string, attrs schema.Record) {
	ce := q.conn.logger.Check(zap.DebugLevel, "record re-keyed")
	if ce == nil {
		return
	}
	tracker := tracking.NewChangeTracker(p.original, attrs)
	ce.Write(
		zap.String("entity", q.entity.Name),
		zap.String("from", p.key),
		zap.String("to", id),
		zap.Strings("changed", tracker.ChangedFields()))
}

// insertOrUpdateRecords updates the records already stored and inserts
// the others
func (q *Query) insertOrUpdateRecords(records schema.Records) []*schema.Model {
	table := q.table()
	toInsert := make(schema.Records)
	toUpdate := make(schema.Records)
	for id, record := range records {
		if _, ok := table[id]; ok {
			toUpdate[id] = record
			continue
		}
		toInsert[id] = record
	}

	inserted := q.insertRecords(toInsert)
	updated := q.updateRecords(toUpdate)
	return append(inserted, updated...)
}

// Delete removes the record with primary key condition, or every record a
// MatchFunc selects. beforeDelete hooks may veto single records.
func (q *Query) Delete(condition interface{}) ([]*schema.Model, error) {
	if q.err != nil {
		return nil, q.err
	}
	if match, ok := asMatchFunc(condition); ok {
		return q.deleteByCondition(match), nil
	}

	item, err := q.Find(condition)
	if err != nil || item == nil {
		return nil, err
	}
	target, _ := item.IndexID()
	return q.deleteByCondition(func(m *schema.Model) bool {
		id, _ := m.IndexID()
		return id == target
	}), nil
}

// DeleteAll removes every record of the entity. Subtype queries only
// remove records of that subtype.
func (q *Query) DeleteAll() ([]*schema.Model, error) {
	if q.err != nil {
		return nil, q.err
	}
	return q.deleteByCondition(q.deleteAllCondition()), nil
}

func (q *Query) deleteAllCondition() MatchFunc {
	if q.appliedOnBase {
		return func(*schema.Model) bool { return true }
	}
	return func(m *schema.Model) bool {
		return m.Entity().Name == q.entity.Name
	}
}

func (q *Query) deleteByCondition(match MatchFunc) []*schema.Model {
	table := q.table()
	var collection []*schema.Model
	for _, id := range tableIDs(table) {
		m := q.hydrate(table[id], nil)
		if match(m) {
			collection = append(collection, m)
		}
	}

	collection = q.conn.hooks.ExecuteMutation(schema.BeforeDelete, q.entity, collection)
	if len(collection) == 0 {
		return []*schema.Model{}
	}

	ids := make([]string, 0, len(collection))
	for _, m := range collection {
		if id, ok := m.IndexID(); ok {
			ids = append(ids, id)
		}
	}
	q.commit(store.DeleteByIDs(ids...))

	q.conn.hooks.ExecuteMutation(schema.AfterDelete, q.entity, collection)
	return collection
}

func (q *Query) commit(diff store.Diff) {
	if diff.IsEmpty() {
		return
	}
	q.conn.container.Commit(q.base.Name, diff)
}

// recordIDs returns the ids of normalized records in scan order
func recordIDs(records schema.Records) []string {
	return tableIDs(records)
}
