package schema

import (
	"strings"
	"testing"

	"github.com/conduit-lang/memdb/internal/orm/identity"
	"github.com/stretchr/testify/assert"
)

func TestFieldKind_String(t *testing.T) {
	tests := []struct {
		kind FieldKind
		want string
	}{
		{KindAttr, "attr"},
		{KindString, "string"},
		{KindNumber, "number"},
		{KindBoolean, "boolean"},
		{KindUid, "uid"},
		{KindRelation, "relation"},
		{FieldKind(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("FieldKind.String() = %v, want %v", got, tt.want)
		}
	}
}

func TestParseFieldKind(t *testing.T) {
	k, err := ParseFieldKind("bool")
	assert.NoError(t, err)
	assert.Equal(t, KindBoolean, k)

	_, err = ParseFieldKind("date")
	assert.Error(t, err)
}

func TestField_Make_Defaults(t *testing.T) {
	assert.Equal(t, "John", String("John").Make(nil, false))
	assert.Equal(t, "John", String("John").Make(nil, true))
	assert.Nil(t, String("John").NullableField().Make(nil, true))
	assert.Nil(t, Attr("x").Make(nil, true))
	assert.Equal(t, "x", Attr("x").Make(nil, false))
}

func TestField_Make_DefaultFunc(t *testing.T) {
	calls := 0
	f := Attr(func() interface{} {
		calls++
		return []interface{}{}
	})

	f.Make(nil, false)
	f.Make(nil, false)
	assert.Equal(t, 2, calls)
}

func TestField_Make_DefaultIsCopied(t *testing.T) {
	f := Attr(map[string]interface{}{"a": 1})
	v := f.Make(nil, false).(map[string]interface{})
	v["a"] = 2

	again := f.Make(nil, false).(map[string]interface{})
	assert.Equal(t, 1, again["a"])
}

func TestField_Make_String(t *testing.T) {
	f := String("")
	assert.Equal(t, "abc", f.Make("abc", true))
	assert.Equal(t, "1", f.Make(1, true))
	assert.Equal(t, "1.5", f.Make(1.5, true))
	assert.Equal(t, "true", f.Make(true, true))
}

func TestField_Make_Number(t *testing.T) {
	f := Number(0)
	tests := []struct {
		in   interface{}
		want interface{}
	}{
		{42, 42},
		{float64(1.5), float64(1.5)},
		{"3.25", float64(3.25)},
		{"abc", float64(0)},
		{true, float64(1)},
		{false, float64(0)},
		{[]int{1}, float64(0)},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, f.Make(tt.in, true), "input %v", tt.in)
	}
}

func TestField_Make_Boolean(t *testing.T) {
	f := Boolean(false)
	tests := []struct {
		in   interface{}
		want bool
	}{
		{true, true},
		{"", false},
		{"0", false},
		{"false", false},
		{"1", true},
		{"yes", true},
		{0, false},
		{2.5, true},
		{[]int{}, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, f.Make(tt.in, true), "input %v", tt.in)
	}
}

func TestField_Make_Uid(t *testing.T) {
	gen := identity.NewCountingGenerator("u")
	f := Uid(gen)

	assert.Equal(t, "u1", f.Make(nil, false))
	assert.Equal(t, "u2", f.Make(nil, true))
	assert.Equal(t, "given", f.Make("given", true))
	assert.Equal(t, 7, f.Make(7, true))
}

func TestField_Make_Mutator(t *testing.T) {
	f := String("").WithMutator(func(v interface{}) interface{} {
		return strings.ToUpper(v.(string))
	})
	assert.Equal(t, "JOHN", f.Make("john", true))
}

func TestRelationType_Roundtrip(t *testing.T) {
	for r := RelationHasOne; r <= RelationMorphedByMany; r++ {
		parsed, err := ParseRelationType(r.String())
		assert.NoError(t, err)
		assert.Equal(t, r, parsed)
	}

	_, err := ParseRelationType("has_some")
	assert.Error(t, err)
}

func TestRelationType_Shape(t *testing.T) {
	assert.False(t, RelationHasOne.IsMany())
	assert.False(t, RelationMorphTo.IsMany())
	assert.True(t, RelationHasManyBy.IsMany())
	assert.True(t, RelationMorphedByMany.IsMany())

	assert.True(t, RelationBelongsToMany.UsesPivot())
	assert.True(t, RelationMorphToMany.UsesPivot())
	assert.False(t, RelationHasManyThrough.UsesPivot())
}

func TestHookType(t *testing.T) {
	h, ok := ParseHookType("beforeDelete")
	assert.True(t, ok)
	assert.Equal(t, BeforeDelete, h)
	assert.True(t, h.CanVeto())
	assert.False(t, BeforeCreate.CanVeto())
	assert.True(t, AfterLimit.IsSelect())
	assert.False(t, AfterDelete.IsSelect())

	_, ok = ParseHookType("beforeSave")
	assert.False(t, ok)
}

func TestValuesEqual(t *testing.T) {
	assert.True(t, ValuesEqual(1, float64(1)))
	assert.True(t, ValuesEqual("a", "a"))
	assert.False(t, ValuesEqual(1, "1"))
	assert.True(t, ValuesEqual(nil, nil))
	assert.False(t, ValuesEqual(nil, 0))
	assert.True(t, ValuesEqual([]interface{}{1}, []interface{}{1}))
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "1", FormatValue(float64(1)))
	assert.Equal(t, "1.5", FormatValue(1.5))
	assert.Equal(t, "12", FormatValue(int64(12)))
	assert.Equal(t, "7", FormatValue(uint8(7)))
	assert.Equal(t, "null", FormatValue(nil))
}

func TestCloneValue(t *testing.T) {
	original := Record{
		"tags":  []string{"a", "b"},
		"inner": map[string]interface{}{"x": []interface{}{1}},
	}

	cloned := CloneRecord(original)
	cloned["inner"].(Record)["x"].([]interface{})[0] = 2

	assert.Equal(t, []interface{}{"a", "b"}, cloned["tags"])
	assert.Equal(t, 1, original["inner"].(map[string]interface{})["x"].([]interface{})[0])
}
