package store

import (
	"bytes"
	"fmt"

	"github.com/conduit-lang/memdb/internal/orm/schema"
	"github.com/vmihailenco/msgpack/v5"
)

// MarshalSnapshot encodes a snapshot as msgpack with sorted map keys
func MarshalSnapshot(s Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(map[string]schema.Records(s)); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalSnapshot decodes a msgpack snapshot. Integers decode as int64 or
// uint64 and floats as float64.
func UnmarshalSnapshot(data []byte) (Snapshot, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)

	var raw map[string]map[string]map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	out := make(Snapshot, len(raw))
	for entity, table := range raw {
		records := make(schema.Records, len(table))
		for id, record := range table {
			records[id] = normalizeDecoded(record).(schema.Record)
		}
		out[entity] = records
	}
	return out, nil
}

// normalizeDecoded converts nested maps decoded as map[string]interface{}
// and slices into the shapes the query engine expects
func normalizeDecoded(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(schema.Record, len(val))
		for k, item := range val {
			out[k] = normalizeDecoded(item)
		}
		return out
	case map[interface{}]interface{}:
		out := make(schema.Record, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalizeDecoded(item)
		}
		return out
	case []interface{}:
		for i, item := range val {
			val[i] = normalizeDecoded(item)
		}
		return val
	default:
		return v
	}
}
