// Package transaction runs the multi-statement writes of the persistence
// layer (cascading deletes, migrations) inside one database transaction.
package transaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrTransactionDone is returned when finishing a transaction twice
var ErrTransactionDone = errors.New("transaction already finished")

const (
	stateActive int32 = iota
	stateCommitted
	stateRolledBack
)

// Transaction is a top-level database transaction
type Transaction struct {
	tx    *sql.Tx
	state atomic.Int32
}

// Manager starts transactions on a database
type Manager struct {
	db *sql.DB
}

// NewManager creates a transaction manager. Transactions use the driver's
// default isolation level.
func NewManager(db *sql.DB) *Manager {
	return &Manager{db: db}
}

// Begin starts a transaction
func (m *Manager) Begin(ctx context.Context) (*Transaction, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Transaction{tx: tx}, nil
}

// WithTransaction runs fn in a transaction, committing when it returns nil
// and rolling back when it fails or panics. When ctx already carries a
// transaction fn joins it, and the outermost caller commits.
func (m *Manager) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	if outer, ok := FromContext(ctx); ok {
		return fn(ctx, outer.tx)
	}

	t, err := m.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = t.Rollback()
			panic(p)
		}
	}()

	if err := fn(WithContext(ctx, t), t.tx); err != nil {
		if rbErr := t.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %w, rollback failed: %v", err, rbErr)
		}
		return err
	}

	return t.Commit()
}

// Tx returns the underlying sql.Tx
func (t *Transaction) Tx() *sql.Tx {
	return t.tx
}

// Commit commits the transaction
func (t *Transaction) Commit() error {
	if !t.state.CompareAndSwap(stateActive, stateCommitted) {
		return ErrTransactionDone
	}
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback rolls back the transaction. A second rollback is a no-op; a
// rollback after commit fails.
func (t *Transaction) Rollback() error {
	if t.state.CompareAndSwap(stateActive, stateRolledBack) {
		if err := t.tx.Rollback(); err != nil {
			return fmt.Errorf("failed to rollback transaction: %w", err)
		}
		return nil
	}
	if t.state.Load() == stateCommitted {
		return ErrTransactionDone
	}
	return nil
}

// Done reports whether the transaction was committed or rolled back
func (t *Transaction) Done() bool {
	return t.state.Load() != stateActive
}
