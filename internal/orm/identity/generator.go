// Package identity generates unique values for primary-key components that a
// payload leaves out.
package identity

import (
	"fmt"
	"io"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Generator produces a fresh unique value on every call
type Generator interface {
	Next() string
}

// GeneratorFunc adapts a plain function to the Generator interface
type GeneratorFunc func() string

// Next calls f
func (f GeneratorFunc) Next() string {
	return f()
}

// UUIDGenerator returns random version 4 UUIDs
type UUIDGenerator struct{}

// Next returns a new UUID string
func (UUIDGenerator) Next() string {
	return uuid.NewString()
}

// ULIDGenerator returns lexically sortable, monotonic ULIDs
type ULIDGenerator struct {
	mu      sync.Mutex
	entropy io.Reader
}

// NewULIDGenerator creates a ULID generator seeded from the current time
func NewULIDGenerator() *ULIDGenerator {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &ULIDGenerator{entropy: ulid.Monotonic(src, 0)}
}

// Next returns a new ULID string
func (g *ULIDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy).String()
}

// CountingGenerator returns Prefix followed by an increasing counter.
// It is deterministic and meant for tests and fixtures.
type CountingGenerator struct {
	Prefix string
	n      atomic.Int64
}

// NewCountingGenerator creates a counting generator. An empty prefix
// defaults to "$uid".
func NewCountingGenerator(prefix string) *CountingGenerator {
	if prefix == "" {
		prefix = "$uid"
	}
	return &CountingGenerator{Prefix: prefix}
}

// Next returns the next value in the sequence
func (g *CountingGenerator) Next() string {
	return fmt.Sprintf("%s%d", g.Prefix, g.n.Add(1))
}

// Reset restarts the sequence at 1
func (g *CountingGenerator) Reset() {
	g.n.Store(0)
}

type holder struct {
	gen Generator
}

var current atomic.Pointer[holder]

func init() {
	current.Store(&holder{gen: UUIDGenerator{}})
}

// Default returns the process-wide generator
func Default() Generator {
	return current.Load().gen
}

// SetDefault replaces the process-wide generator and returns a function that
// restores the previous one.
func SetDefault(g Generator) (restore func()) {
	if g == nil {
		g = UUIDGenerator{}
	}
	prev := current.Swap(&holder{gen: g})
	return func() {
		current.Store(prev)
	}
}

// Make returns the next value of the process-wide generator
func Make() string {
	return Default().Next()
}

// FromStrategy builds a generator by name: "uuid", "ulid" or "counter".
func FromStrategy(name string) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "uuid":
		return UUIDGenerator{}, nil
	case "ulid":
		return NewULIDGenerator(), nil
	case "counter", "counting":
		return NewCountingGenerator(""), nil
	default:
		return nil, fmt.Errorf("unknown identity strategy: %s", name)
	}
}
