package ui

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/conduit-lang/memdb/internal/orm/schema"
)

// Table renders rows of cells under a bold header
type Table struct {
	writer  io.Writer
	headers []string
	rows    [][]string
	noColor bool
}

// TableOptions configures table behavior
type TableOptions struct {
	NoColor bool
}

// NewTable creates a new table with the given headers
func NewTable(w io.Writer, headers []string, opts *TableOptions) *Table {
	t := &Table{writer: w, headers: headers}
	if opts != nil {
		t.noColor = opts.NoColor
	}
	return t
}

// AddRow adds a row to the table
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.rows)
}

// Render writes the table. A table without headers renders nothing.
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, header := range t.headers {
		widths[i] = width(header)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && width(cell) > widths[i] {
				widths[i] = width(cell)
			}
		}
	}

	head := t.color(color.Bold, color.FgCyan)
	for i, header := range t.headers {
		head.Fprint(t.writer, padRight(header, widths[i]))
		t.gap(i, len(t.headers))
	}
	fmt.Fprintln(t.writer)

	rule := t.color(color.FgHiBlack)
	for i, w := range widths {
		rule.Fprint(t.writer, strings.Repeat("─", w))
		t.gap(i, len(widths))
	}
	fmt.Fprintln(t.writer)

	for _, row := range t.rows {
		for i := range widths {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			if i == len(widths)-1 {
				fmt.Fprint(t.writer, cell)
				continue
			}
			fmt.Fprint(t.writer, padRight(cell, widths[i]))
			t.gap(i, len(widths))
		}
		fmt.Fprintln(t.writer)
	}
}

func (t *Table) gap(i, n int) {
	if i < n-1 {
		fmt.Fprint(t.writer, "  ")
	}
}

func (t *Table) color(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if t.noColor {
		c.DisableColor()
	}
	return c
}

func width(s string) int {
	return utf8.RuneCountInString(s)
}

// padRight pads a string with spaces on the right to reach the target width
func padRight(s string, w int) string {
	if width(s) >= w {
		return s
	}
	return s + strings.Repeat(" ", w-width(s))
}

// ModelTable renders query results: the index id followed by every field
// of the models' entities. Loaded relations print as a summary.
func ModelTable(w io.Writer, models []*schema.Model, noColor bool) *Table {
	columns := []string{schema.IndexIDField}
	seen := map[string]bool{schema.IndexIDField: true}
	for _, m := range models {
		for _, name := range m.Entity().FieldNames() {
			if !seen[name] {
				seen[name] = true
				columns = append(columns, name)
			}
		}
	}

	t := NewTable(w, columns, &TableOptions{NoColor: noColor})
	for _, m := range models {
		cells := make([]string, len(columns))
		for i, name := range columns {
			cells[i] = FormatCell(m, name)
		}
		t.AddRow(cells...)
	}
	return t
}

// FormatCell renders one model attribute for a table cell
func FormatCell(m *schema.Model, field string) string {
	if field != schema.IndexIDField {
		if _, declared := m.Entity().Fields[field]; !declared {
			return ""
		}
	}

	switch v := m.Get(field).(type) {
	case nil:
		return "-"
	case *schema.Model:
		if v == nil {
			return "-"
		}
		id, _ := v.IndexID()
		return v.EntityName() + "#" + id
	case []*schema.Model:
		return fmt.Sprintf("[%d %s]", len(v), plural(len(v)))
	case []interface{}:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = schema.FormatValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return schema.FormatValue(v)
	}
}

func plural(n int) string {
	if n == 1 {
		return "record"
	}
	return "records"
}

// KeyValueTable renders aligned key/value pairs
type KeyValueTable struct {
	writer  io.Writer
	rows    [][2]string
	noColor bool
}

// NewKeyValueTable creates a new key-value table
func NewKeyValueTable(w io.Writer, noColor bool) *KeyValueTable {
	return &KeyValueTable{writer: w, noColor: noColor}
}

// AddRow adds a key-value pair to the table
func (t *KeyValueTable) AddRow(key, value string) {
	t.rows = append(t.rows, [2]string{key, value})
}

// Render renders the key-value table
func (t *KeyValueTable) Render() {
	keyWidth := 0
	for _, row := range t.rows {
		keyWidth = max(keyWidth, width(row[0])+1)
	}

	cyan := color.New(color.FgCyan)
	if t.noColor {
		cyan.DisableColor()
	}
	for _, row := range t.rows {
		cyan.Fprint(t.writer, padRight(row[0]+":", keyWidth))
		fmt.Fprintf(t.writer, " %s\n", row[1])
	}
}

// Header renders a styled title followed by a rule of the same width
func Header(w io.Writer, title string, noColor bool) {
	bold := color.New(color.Bold, color.FgCyan)
	gray := color.New(color.FgHiBlack)
	if noColor {
		bold.DisableColor()
		gray.DisableColor()
	}
	bold.Fprintln(w, title)
	gray.Fprintln(w, strings.Repeat("─", width(title)))
}
