package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestFormatError(t *testing.T) {
	output := FormatError(ErrorOptions{
		Context:      "unknown entity",
		Problem:      "Entity 'usr' is not declared.",
		Consequence:  "Nothing was queried.",
		Suggestions:  []string{"users"},
		HelpCommands: []string{"List entities: memdb inspect"},
		NoColor:      true,
	})

	expected := []string{
		"❌ UNKNOWN ENTITY",
		"   Entity 'usr' is not declared.",
		"   Nothing was queried.",
		"   Did you mean: users?",
		"   → List entities: memdb inspect",
	}
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
}

func TestFormatErrorLevels(t *testing.T) {
	tests := []struct {
		name   string
		output string
		symbol string
	}{
		{"warning", Warning("careful", true), "⚠️ careful"},
		{"info", Info("note", true), "ℹ️ note"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.HasPrefix(tt.output, tt.symbol) {
				t.Errorf("expected prefix %q, got %q", tt.symbol, tt.output)
			}
		})
	}
}

func TestUnknownEntityError(t *testing.T) {
	output := UnknownEntityError("usr", []string{"users", "posts", "comments"}, true)

	if !strings.Contains(output, "Did you mean: users?") {
		t.Errorf("expected suggestion for users, got:\n%s", output)
	}
	if strings.Contains(output, "posts?") {
		t.Errorf("did not expect posts to be suggested:\n%s", output)
	}
}

func TestUnknownRelationError(t *testing.T) {
	output := UnknownRelationError("users", "post", []string{"posts", "profile"}, true)

	if !strings.Contains(output, "has no relation 'post'") {
		t.Errorf("unexpected problem line:\n%s", output)
	}
	if !strings.Contains(output, "memdb inspect users") {
		t.Errorf("expected inspect hint:\n%s", output)
	}
}

func TestFixtureError(t *testing.T) {
	output := FixtureError("blog.yaml", errors.New("boom"), true)

	if !strings.Contains(output, "Cannot load 'blog.yaml': boom") {
		t.Errorf("unexpected output:\n%s", output)
	}
}

func TestConfigError(t *testing.T) {
	output := ConfigError("log.format must be console or json", true)

	if !strings.Contains(output, "CONFIGURATION ERROR") || !strings.Contains(output, "cat memdb.yaml") {
		t.Errorf("unexpected output:\n%s", output)
	}
}

func TestWriteSuccess(t *testing.T) {
	var buf bytes.Buffer
	WriteSuccess(&buf, "dumped 3 tables", true)

	if buf.String() != "✓ dumped 3 tables\n" {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestWriteError(t *testing.T) {
	var buf bytes.Buffer
	WriteError(&buf, ErrorOptions{Problem: "failed", NoColor: true})

	if buf.String() != "❌ failed\n" {
		t.Errorf("unexpected output: %q", buf.String())
	}
}
