package ui

import (
	"reflect"
	"testing"
)

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		s1       string
		s2       string
		expected int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"abc", "abc", 0},
		{"kitten", "sitting", 3},
		{"saturday", "sunday", 3},
		{"usr", "users", 2},
		{"usr", "posts", 4},
		{"naïve", "naive", 1},
	}

	for _, tt := range tests {
		t.Run(tt.s1+"_"+tt.s2, func(t *testing.T) {
			result := LevenshteinDistance(tt.s1, tt.s2)
			if result != tt.expected {
				t.Errorf("LevenshteinDistance(%q, %q) = %d; want %d", tt.s1, tt.s2, result, tt.expected)
			}
		})
	}
}

func TestFindSimilar(t *testing.T) {
	candidates := []string{"users", "posts", "comments", "roles", "role_user"}

	tests := []struct {
		name     string
		target   string
		opts     *FuzzyMatchOptions
		expected []string
	}{
		{"exact match first", "posts", nil, []string{"posts", "roles"}},
		{"typo", "usr", nil, []string{"users"}},
		{"case insensitive", "POSTS", nil, []string{"posts", "roles"}},
		{"case sensitive", "POSTS", &FuzzyMatchOptions{CaseSensitive: true}, []string{}},
		{"missing letter", "role", nil, []string{"roles"}},
		{"limited", "posts", &FuzzyMatchOptions{MaxSuggestions: 1}, []string{"posts"}},
		{"no match", "xyzzy", nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FindSimilar(tt.target, candidates, tt.opts)
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("FindSimilar(%q) = %v; want %v", tt.target, result, tt.expected)
			}
		})
	}
}
