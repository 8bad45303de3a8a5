package crud

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/zcapi-go/zcapi/internal/orm/schema"
	"github.com/zcapi-go/zcapi/internal/orm/transaction"
)

// Operation represents a CRUD operation type
type Operation int

const (
	// OperationCreate represents a create operation
	OperationCreate Operation = iota
	// OperationRead represents a read operation
	OperationRead
	// OperationUpdate represents an update operation
	OperationUpdate
	// OperationDelete represents a delete operation
	OperationDelete
)

// String returns the string representation of the operation
func (o Operation) String() string {
	switch o {
	case OperationCreate:
		return "create"
	case OperationRead:
		return "read"
	case OperationUpdate:
		return "update"
	case OperationDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Querier is satisfied by *sql.DB and *sql.Tx
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// TransactionManager runs writes inside a transaction
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error
}

// Store opens per-model operations on one database
type Store struct {
	db        *sql.DB
	dialect   Dialect
	txManager TransactionManager
}

// NewStore creates a store. Writes run in transactions from txManager, or
// from a plain transaction manager on db when txManager is nil.
func NewStore(db *sql.DB, dialect Dialect, txManager TransactionManager) *Store {
	if txManager == nil {
		txManager = transaction.NewManager(db)
	}
	return &Store{db: db, dialect: dialect, txManager: txManager}
}

// For returns the operations of a model
func (s *Store) For(m *schema.Model) *Operations {
	return NewOperations(m, s.db, s.dialect, s.txManager)
}

// DB returns the database connection
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the SQL dialect
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Operations provides CRUD operations for a model
type Operations struct {
	model     *schema.Model
	db        *sql.DB
	dialect   Dialect
	txManager TransactionManager
}

// NewOperations creates a new Operations instance
func NewOperations(
	model *schema.Model,
	db *sql.DB,
	dialect Dialect,
	txManager TransactionManager,
) *Operations {
	return &Operations{
		model:     model,
		db:        db,
		dialect:   dialect,
		txManager: txManager,
	}
}

// Model returns the model descriptor
func (o *Operations) Model() *schema.Model {
	return o.model
}

// New returns a transient record of the model
func (o *Operations) New() *Record {
	return NewRecord(o.model)
}

// querier returns the transaction carried by ctx, or the database
func (o *Operations) querier(ctx context.Context) Querier {
	if tx, ok := transaction.FromContext(ctx); ok {
		return tx.Tx()
	}
	return o.db
}

func (o *Operations) table() string {
	return o.dialect.QuoteIdentifier(o.model.Table)
}

func (o *Operations) primaryKey() (*schema.Field, error) {
	pk, err := o.model.PrimaryKey()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", o.model.Name, err)
	}
	return pk, nil
}
