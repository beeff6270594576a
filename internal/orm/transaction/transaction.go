// Package transaction groups several mutations so they commit or roll back
// together. Tables are copy-on-write, so a transaction is a snapshot of the
// table container taken at Begin and restored on Rollback.
package transaction

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/conduit-lang/memdb/internal/orm/store"
)

var (
	// ErrTransactionAborted is returned when a transaction is explicitly aborted
	ErrTransactionAborted = errors.New("transaction aborted")
	// ErrTransactionTimeout is returned when a transaction times out
	ErrTransactionTimeout = errors.New("transaction timeout")
	// ErrTransactionDone is returned when a finished transaction is committed or rolled back again
	ErrTransactionDone = errors.New("transaction already finished")
)

// Target is the table container a transaction protects
type Target interface {
	Snapshot() store.Snapshot
	Restore(store.Snapshot)
}

// Transaction represents a pending group of mutations with support for nesting
type Transaction struct {
	target     Target
	savepoint  store.Snapshot
	level      int // Nesting level (0 = top-level, 1+ = savepoint)
	committed  atomic.Bool
	rolledBack atomic.Bool
	cancelFunc context.CancelFunc // Optional cancel function for timeout/deadline
}

// Begin starts a transaction on target
func Begin(target Target) *Transaction {
	return &Transaction{
		target:    target,
		savepoint: target.Snapshot(),
	}
}

// Run executes fn within a transaction on target.
// Commits when fn succeeds and rolls back when it fails or panics.
func Run(ctx context.Context, target Target, fn func(ctx context.Context) error) error {
	tx := Begin(target)
	return tx.run(ctx, fn)
}

func (t *Transaction) run(ctx context.Context, fn func(ctx context.Context) error) error {
	defer func() {
		if p := recover(); p != nil {
			t.Rollback()
			panic(p) // Re-throw panic after rollback
		}
	}()

	if err := fn(WithContext(ctx, t)); err != nil {
		if rbErr := t.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %w, rollback failed: %v", err, rbErr)
		}
		return err
	}
	return t.Commit()
}

// Target returns the table container the transaction protects
func (t *Transaction) Target() Target {
	return t.target
}

// Level returns the nesting level of the transaction
func (t *Transaction) Level() int {
	return t.level
}

// Commit keeps every change made since Begin
func (t *Transaction) Commit() error {
	if t.cancelFunc != nil {
		defer t.cancelFunc()
	}

	if t.committed.Load() || t.rolledBack.Load() {
		return ErrTransactionDone
	}
	t.committed.Store(true)
	t.savepoint = nil
	return nil
}

// Rollback restores the tables to their state at Begin
func (t *Transaction) Rollback() error {
	if t.cancelFunc != nil {
		defer t.cancelFunc()
	}

	if t.committed.Load() {
		return ErrTransactionDone
	}
	if t.rolledBack.Load() {
		return nil // Already rolled back, no-op
	}

	t.target.Restore(t.savepoint)
	t.rolledBack.Store(true)
	t.savepoint = nil
	return nil
}

// BeginNested creates a savepoint inside t. Rolling the nested transaction
// back restores the tables to the savepoint only.
func (t *Transaction) BeginNested() (*Transaction, error) {
	if t.committed.Load() || t.rolledBack.Load() {
		return nil, ErrTransactionDone
	}
	return &Transaction{
		target:    t.target,
		savepoint: t.target.Snapshot(),
		level:     t.level + 1,
	}, nil
}

// Nested runs fn in a savepoint of t
func (t *Transaction) Nested(ctx context.Context, fn func(ctx context.Context) error) error {
	nested, err := t.BeginNested()
	if err != nil {
		return err
	}
	return nested.run(ctx, fn)
}

// IsCommitted returns true if the transaction has been committed
func (t *Transaction) IsCommitted() bool {
	return t.committed.Load()
}

// IsRolledBack returns true if the transaction has been rolled back
func (t *Transaction) IsRolledBack() bool {
	return t.rolledBack.Load()
}
