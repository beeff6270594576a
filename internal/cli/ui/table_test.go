package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/conduit-lang/memdb/internal/orm/schema"
)

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, []string{"Name", "Kind", "Target"}, &TableOptions{NoColor: true})

	table.AddRow("id", "number", "")
	table.AddRow("posts", "has_many", "posts")
	table.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, separator and 2 rows, got %d lines:\n%s", len(lines), buf.String())
	}

	if !strings.HasPrefix(lines[0], "Name   Kind") {
		t.Errorf("expected padded header, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "─") {
		t.Errorf("expected separator, got %q", lines[1])
	}
	if lines[3] != "posts  has_many  posts" {
		t.Errorf("unexpected row rendering: %q", lines[3])
	}
	if table.Len() != 2 {
		t.Errorf("expected 2 rows, got %d", table.Len())
	}
}

func TestTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	NewTable(&buf, nil, nil).Render()

	if buf.Len() != 0 {
		t.Errorf("expected empty output for table with no headers, got: %q", buf.String())
	}
}

func TestPadRight(t *testing.T) {
	tests := []struct {
		in   string
		w    int
		want string
	}{
		{"ab", 4, "ab  "},
		{"abcd", 2, "abcd"},
		{"─", 3, "─  "},
	}
	for _, tt := range tests {
		if got := padRight(tt.in, tt.w); got != tt.want {
			t.Errorf("padRight(%q, %d) = %q; want %q", tt.in, tt.w, got, tt.want)
		}
	}
}

func testUsers(t *testing.T) *schema.Entity {
	t.Helper()
	registry := schema.NewRegistry()
	err := registry.Register(
		schema.NewEntity("users").
			Field("id", schema.Number(nil)).
			Field("name", schema.String("")).
			Field("tags", schema.Attr(nil)).
			Field("posts", schema.HasMany("posts", "user_id")),
		schema.NewEntity("posts").
			Field("id", schema.Number(nil)).
			Field("user_id", schema.Number(nil)),
	)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	users, err := registry.Entity("users")
	if err != nil {
		t.Fatalf("entity: %v", err)
	}
	return users
}

func TestModelTable(t *testing.T) {
	users := testUsers(t)
	posts, _ := users.Registry().Entity("posts")

	alice := schema.NewModel(users, schema.Record{"id": 1, "name": "alice", "tags": []interface{}{"a", 2}, "$id": "1"})
	alice.Set("posts", []*schema.Model{
		schema.NewModel(posts, schema.Record{"id": 10, "user_id": 1, "$id": "10"}),
	})
	bob := schema.NewModel(users, schema.Record{"id": 2, "$id": "2"})
	bob.Set("posts", []*schema.Model{})

	var buf bytes.Buffer
	ModelTable(&buf, []*schema.Model{alice, bob}, true).Render()
	output := buf.String()

	for _, want := range []string{"$id", "name", "posts", "alice", "[1 record]", "[0 records]", "[a, 2]"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
}

func TestFormatCell(t *testing.T) {
	users := testUsers(t)
	posts, _ := users.Registry().Entity("posts")

	post := schema.NewModel(posts, schema.Record{"id": 10, "user_id": nil, "$id": "10"})
	if got := FormatCell(post, "user_id"); got != "-" {
		t.Errorf("expected nil to render as '-', got %q", got)
	}
	if got := FormatCell(post, "undeclared"); got != "" {
		t.Errorf("expected undeclared field to render empty, got %q", got)
	}
	if got := FormatCell(post, "id"); got != "10" {
		t.Errorf("expected '10', got %q", got)
	}

	post.Set("user_id", schema.NewModel(users, schema.Record{"id": 1, "$id": "1"}))
	if got := FormatCell(post, "user_id"); got != "users#1" {
		t.Errorf("expected related model reference, got %q", got)
	}
}

func TestKeyValueTable(t *testing.T) {
	var buf bytes.Buffer
	kv := NewKeyValueTable(&buf, true)
	kv.AddRow("Entity", "users")
	kv.AddRow("Primary key", "id")
	kv.Render()

	want := "Entity:      users\nPrimary key: id\n"
	if buf.String() != want {
		t.Errorf("unexpected output:\n%q\nwant:\n%q", buf.String(), want)
	}
}

func TestHeader(t *testing.T) {
	var buf bytes.Buffer
	Header(&buf, "users", true)

	if buf.String() != "users\n─────\n" {
		t.Errorf("unexpected header: %q", buf.String())
	}
}
