// Package params turns explorer query strings and CLI flags into query
// builder calls.
package params

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/conduit-lang/memdb/internal/orm/query"
	"github.com/conduit-lang/memdb/internal/orm/schema"
)

// ErrInvalidParam is returned for a malformed or undeclared parameter
var ErrInvalidParam = errors.New("invalid parameter")

// filterPattern matches query parameters like filter[key]
var filterPattern = regexp.MustCompile(`^filter\[([^\]]+)\]$`)

// Spec is a parsed read request
type Spec struct {
	Include []string
	Filter  map[string]string
	Sort    []string
	Has     []string
	Offset  int
	Limit   int
}

// FromRequest parses include, filter[field], sort, has, offset and limit
func FromRequest(r *http.Request) (*Spec, error) {
	values := r.URL.Query()
	spec := &Spec{
		Include: ParseList(values.Get("include")),
		Filter:  ParseFilter(r),
		Sort:    ParseList(values.Get("sort")),
		Has:     ParseList(values.Get("has")),
	}

	var err error
	if spec.Offset, err = parseCount(values.Get("offset"), "offset"); err != nil {
		return nil, err
	}
	if spec.Limit, err = parseCount(values.Get("limit"), "limit"); err != nil {
		return nil, err
	}
	return spec, nil
}

// ParseList splits a comma separated parameter, dropping blank items.
// Example: "author, comments.author" returns ["author", "comments.author"]
func ParseList(raw string) []string {
	result := []string{}
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// ParseFilter collects filter[key]=value parameters
func ParseFilter(r *http.Request) map[string]string {
	result := make(map[string]string)
	for key, values := range r.URL.Query() {
		matches := filterPattern.FindStringSubmatch(key)
		if len(matches) == 2 && len(values) > 0 {
			result[matches[1]] = values[0]
		}
	}
	return result
}

// ParseAssignments reads field=value pairs as given on the command line
func ParseAssignments(pairs []string) (map[string]string, error) {
	result := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		field, value, ok := strings.Cut(pair, "=")
		field = strings.TrimSpace(field)
		if !ok || field == "" {
			return nil, fmt.Errorf("%q is not field=value: %w", pair, ErrInvalidParam)
		}
		result[field] = value
	}
	return result, nil
}

// ParseValue decodes a parameter value as JSON, falling back to the raw
// string. "3" is a number, "[1,2]" a membership list, "null" matches nil.
func ParseValue(raw string) interface{} {
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

func parseCount(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q: %w", name, raw, ErrInvalidParam)
	}
	return n, nil
}

// Validate checks that filter and sort fields are declared scalar fields of
// entity or the index id
func (s *Spec) Validate(entity *schema.Entity) error {
	var invalid []string
	check := func(field string) {
		if field == schema.IndexIDField {
			return
		}
		if f, ok := entity.Fields[field]; !ok || f.IsRelation() {
			invalid = append(invalid, field)
		}
	}

	for field := range s.Filter {
		check(field)
	}
	for _, key := range s.Sort {
		check(strings.TrimPrefix(key, "-"))
	}

	if len(invalid) > 0 {
		sort.Strings(invalid)
		return fmt.Errorf("unknown fields for %s: %s: %w", entity.Name, strings.Join(invalid, ", "), ErrInvalidParam)
	}
	return nil
}

// Apply adds s to q. Filters apply in field name order; sort keys
// prefixed with "-" sort descending.
func (s *Spec) Apply(q *query.Query) *query.Query {
	fields := make([]string, 0, len(s.Filter))
	for field := range s.Filter {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		q.Where(field, ParseValue(s.Filter[field]))
	}

	for _, relation := range s.Has {
		q.Has(relation)
	}

	for _, key := range s.Sort {
		if field, desc := strings.CutPrefix(key, "-"); desc {
			q.OrderBy(field, "desc")
		} else {
			q.OrderBy(field)
		}
	}

	if s.Offset > 0 {
		q.Offset(s.Offset)
	}
	if s.Limit > 0 {
		q.Limit(s.Limit)
	}

	for _, path := range s.Include {
		q.With(path)
	}
	return q
}
