// Package tracking detects field-level changes between a stored record and
// its updated version.
package tracking

import (
	"sort"

	"github.com/conduit-lang/memdb/internal/orm/schema"
)

// FieldChange represents a change to a single field
type FieldChange struct {
	Field    string
	OldValue interface{}
	NewValue interface{}
}

// ChangeTracker holds the changes between two versions of a record
type ChangeTracker struct {
	original schema.Record
	current  schema.Record
	changes  map[string]*FieldChange
}

// NewChangeTracker compares original with current. Both records are copied.
func NewChangeTracker(original, current schema.Record) *ChangeTracker {
	ct := &ChangeTracker{
		original: schema.CloneRecord(original),
		current:  schema.CloneRecord(current),
		changes:  make(map[string]*FieldChange),
	}
	if ct.original == nil {
		ct.original = schema.Record{}
	}
	if ct.current == nil {
		ct.current = schema.Record{}
	}
	ct.computeChanges()
	return ct
}

func (ct *ChangeTracker) computeChanges() {
	for field, newValue := range ct.current {
		oldValue, hadOldValue := ct.original[field]
		if !hadOldValue || !schema.ValuesEqual(oldValue, newValue) {
			ct.changes[field] = &FieldChange{Field: field, OldValue: oldValue, NewValue: newValue}
		}
	}

	for field, oldValue := range ct.original {
		if _, exists := ct.current[field]; !exists {
			ct.changes[field] = &FieldChange{Field: field, OldValue: oldValue}
		}
	}
}

// Changed returns true if the specified field has changed
func (ct *ChangeTracker) Changed(field string) bool {
	_, ok := ct.changes[field]
	return ok
}

// ChangedFields returns the changed field names, sorted
func (ct *ChangeTracker) ChangedFields() []string {
	fields := make([]string, 0, len(ct.changes))
	for field := range ct.changes {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// GetChange returns the change for a field, or nil
func (ct *ChangeTracker) GetChange(field string) *FieldChange {
	return ct.changes[field]
}

// HasChanges returns true if any field changed
func (ct *ChangeTracker) HasChanges() bool {
	return len(ct.changes) > 0
}

// KeyChanged reports whether any primary key component of entity changed
func (ct *ChangeTracker) KeyChanged(entity *schema.Entity) bool {
	for _, key := range entity.Keys() {
		if ct.Changed(key) {
			return true
		}
	}
	return false
}

// ChangedTo reports whether field changed to value
func (ct *ChangeTracker) ChangedTo(field string, value interface{}) bool {
	change, ok := ct.changes[field]
	return ok && schema.ValuesEqual(change.NewValue, value)
}

// ChangedFrom reports whether field changed from value
func (ct *ChangeTracker) ChangedFrom(field string, value interface{}) bool {
	change, ok := ct.changes[field]
	return ok && schema.ValuesEqual(change.OldValue, value)
}
