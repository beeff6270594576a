package schema

import (
	"encoding/json"
	"fmt"
)

// ComponentValue validates a primary key component. Only non-empty strings
// and numbers are accepted.
func ComponentValue(v interface{}) (interface{}, bool) {
	if s, ok := v.(string); ok {
		return s, s != ""
	}
	if IsNumber(v) {
		return v, true
	}
	return nil, false
}

// encodeComposite serializes key components as a JSON array in declared
// order. Lookups and generation must both go through here.
func encodeComposite(values []interface{}) (string, error) {
	b, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// IndexIDOf computes the canonical index id of a record. It reports false
// when a key component is missing or invalid.
func (e *Entity) IndexIDOf(record Record) (string, bool) {
	if !e.IsComposite() {
		v, ok := ComponentValue(record[e.PrimaryKey])
		if !ok {
			return "", false
		}
		return FormatValue(v), true
	}

	values := make([]interface{}, 0, len(e.CompositeKey))
	for _, key := range e.CompositeKey {
		v, ok := ComponentValue(record[key])
		if !ok {
			return "", false
		}
		values = append(values, v)
	}
	id, err := encodeComposite(values)
	if err != nil {
		return "", false
	}
	return id, true
}

// NormalizeIndexID converts a lookup value to an index id. Composite keys
// require an array in declared key order.
func (e *Entity) NormalizeIndexID(value interface{}) (string, error) {
	if e.IsComposite() {
		values, ok := ToSlice(value)
		if !ok {
			return "", fmt.Errorf("entity %s expects an array value but instead received %v: %w",
				e.Name, value, ErrInvalidKeyShape)
		}
		id, err := encodeComposite(values)
		if err != nil {
			return "", fmt.Errorf("entity %s: %w", e.Name, err)
		}
		return id, nil
	}

	if IsSlice(value) {
		return "", fmt.Errorf("entity %s expects a single value but instead received %v: %w",
			e.Name, value, ErrInvalidKeyShape)
	}
	return FormatValue(value), nil
}

// GenerateKeys fills missing primary key components and stamps the index
// id on the record. Components are generated with the key field's own
// generator when it declares one.
func (e *Entity) GenerateKeys(record Record) (string, bool) {
	for _, key := range e.Keys() {
		if v, ok := record[key]; ok && v != nil {
			continue
		}
		if f, ok := e.Fields[key]; ok {
			record[key] = f.NewValue()
		} else {
			record[key] = (&Field{}).NewValue()
		}
	}

	id, ok := e.IndexIDOf(record)
	if !ok {
		record[IndexIDField] = nil
		return "", false
	}
	record[IndexIDField] = id
	return id, true
}
