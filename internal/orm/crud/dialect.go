package crud

import (
	"fmt"
	"strconv"

	"github.com/lib/pq"
)

// Dialect captures the SQL differences between the supported databases
type Dialect interface {
	// Name returns the dialect name ("sqlite" or "postgres")
	Name() string
	// Placeholder returns the bind parameter for the n-th argument (1-based)
	Placeholder(n int) string
	// QuoteIdentifier quotes a table or column name
	QuoteIdentifier(name string) string
}

// SQLite is the dialect of github.com/mattn/go-sqlite3
type SQLite struct{}

// Name implements Dialect
func (SQLite) Name() string { return "sqlite" }

// Placeholder implements Dialect
func (SQLite) Placeholder(int) string { return "?" }

// QuoteIdentifier implements Dialect
func (SQLite) QuoteIdentifier(name string) string { return pq.QuoteIdentifier(name) }

// Postgres is the dialect of github.com/lib/pq and pgx's database/sql driver
type Postgres struct{}

// Name implements Dialect
func (Postgres) Name() string { return "postgres" }

// Placeholder implements Dialect
func (Postgres) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

// QuoteIdentifier implements Dialect
func (Postgres) QuoteIdentifier(name string) string { return pq.QuoteIdentifier(name) }

// DialectFor returns the dialect for a database/sql driver name
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "sqlite3", "sqlite":
		return SQLite{}, nil
	case "postgres", "pgx":
		return Postgres{}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}
