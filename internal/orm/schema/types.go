// Package schema defines entity declarations, relation edges, model
// instances, index identifiers and the entity registry.
package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/conduit-lang/memdb/internal/orm/identity"
)

// Record is a flat mapping of field name to value
type Record = map[string]interface{}

// Records is an entity table: index id to record
type Records = map[string]Record

// Entities groups tables by entity name
type Entities = map[string]Records

// IndexIDField is the synthesized field holding a record's index id
const IndexIDField = "$id"

// FieldKind represents the kind of a field declaration
type FieldKind int

const (
	KindAttr FieldKind = iota
	KindString
	KindNumber
	KindBoolean
	KindUid
	KindRelation
)

// String returns the string representation of the field kind
func (k FieldKind) String() string {
	switch k {
	case KindAttr:
		return "attr"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindUid:
		return "uid"
	case KindRelation:
		return "relation"
	default:
		return "unknown"
	}
}

// ParseFieldKind converts a string to a FieldKind
func ParseFieldKind(s string) (FieldKind, error) {
	switch strings.ToLower(s) {
	case "attr", "":
		return KindAttr, nil
	case "string":
		return KindString, nil
	case "number":
		return KindNumber, nil
	case "boolean", "bool":
		return KindBoolean, nil
	case "uid":
		return KindUid, nil
	default:
		return 0, fmt.Errorf("unknown field kind: %s", s)
	}
}

// Mutator transforms a coerced value before it is stored on a model
type Mutator func(value interface{}) interface{}

// Field is a single attribute declaration. Declarations are data; only
// Mutator and Generator carry user code.
type Field struct {
	Name      string
	Kind      FieldKind
	Default   interface{}
	Nullable  bool
	Mutator   Mutator
	Generator identity.Generator
	Relation  *Relation
}

// Attr declares an untyped attribute. A default of type func() interface{}
// is called for every new value.
func Attr(def interface{}) *Field {
	return &Field{Kind: KindAttr, Default: def}
}

// String declares a string attribute
func String(def interface{}) *Field {
	return &Field{Kind: KindString, Default: def}
}

// Number declares a numeric attribute
func Number(def interface{}) *Field {
	return &Field{Kind: KindNumber, Default: def}
}

// Boolean declares a boolean attribute
func Boolean(def interface{}) *Field {
	return &Field{Kind: KindBoolean, Default: def}
}

// Uid declares an attribute that generates a unique value when absent. A nil
// generator falls back to the process-wide identity generator.
func Uid(gen identity.Generator) *Field {
	return &Field{Kind: KindUid, Generator: gen}
}

// NullableField marks the field as accepting explicit nil values
func (f *Field) NullableField() *Field {
	f.Nullable = true
	return f
}

// WithMutator attaches a mutator to the field
func (f *Field) WithMutator(m Mutator) *Field {
	f.Mutator = m
	return f
}

// As sets the pivot accessor name of a many-to-many relation field
func (f *Field) As(accessor string) *Field {
	if f.Relation != nil && accessor != "" {
		f.Relation.PivotAccessor = accessor
	}
	return f
}

// IsRelation reports whether the field declares a relation edge
func (f *Field) IsRelation() bool {
	return f.Kind == KindRelation && f.Relation != nil
}

// NewValue generates a fresh key value for this field
func (f *Field) NewValue() string {
	if f.Kind == KindUid && f.Generator != nil {
		return f.Generator.Next()
	}
	return identity.Make()
}

// defaultValue returns a private copy of the field default
func (f *Field) defaultValue() interface{} {
	if fn, ok := f.Default.(func() interface{}); ok {
		return fn()
	}
	return CloneValue(f.Default)
}

// Make coerces a raw value for a scalar field. present reports whether the
// key existed in the source record.
func (f *Field) Make(value interface{}, present bool) interface{} {
	var out interface{}
	switch {
	case !present:
		if f.Kind == KindUid {
			out = f.NewValue()
		} else {
			out = f.defaultValue()
		}
	case value == nil:
		if f.Nullable || f.Kind == KindAttr {
			out = nil
		} else if f.Kind == KindUid {
			out = f.NewValue()
		} else {
			out = f.defaultValue()
		}
	default:
		out = f.coerce(value)
	}

	if f.Mutator != nil {
		return f.Mutator(out)
	}
	return out
}

func (f *Field) coerce(value interface{}) interface{} {
	switch f.Kind {
	case KindString:
		if s, ok := value.(string); ok {
			return s
		}
		return FormatValue(value)
	case KindNumber:
		return coerceNumber(value)
	case KindBoolean:
		return coerceBoolean(value)
	case KindUid:
		if _, ok := ComponentValue(value); ok {
			return value
		}
		return f.NewValue()
	default:
		return value
	}
}

func coerceNumber(value interface{}) interface{} {
	if IsNumber(value) {
		return value
	}
	switch v := value.(type) {
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return float64(0)
		}
		return n
	case bool:
		if v {
			return float64(1)
		}
		return float64(0)
	default:
		return float64(0)
	}
}

func coerceBoolean(value interface{}) interface{} {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		if v == "" {
			return false
		}
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n != 0
		}
		return true
	default:
		if f, ok := ToFloat64(value); ok {
			return f != 0
		}
		return false
	}
}
