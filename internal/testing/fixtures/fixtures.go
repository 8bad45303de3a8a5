// Package fixtures provides the models and seeded databases shared by tests
package fixtures

import (
	"bytes"
	"context"
	"database/sql"
	_ "embed"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/zcapi-go/zcapi/internal/orm/codegen"
	"github.com/zcapi-go/zcapi/internal/orm/crud"
	"github.com/zcapi-go/zcapi/internal/orm/migrate"
	"github.com/zcapi-go/zcapi/internal/orm/schema"
)

//go:embed testdata/testapp.yml
var testappSchema []byte

//go:embed testdata/cycles.yml
var cyclesSchema []byte

// Registry returns a frozen registry with the testapp and library apps
func Registry(t testing.TB) *schema.Registry {
	t.Helper()
	return load(t, testappSchema)
}

// CycleRegistry returns a frozen registry whose belongs_to relations form
// the cycle A -> B -> C -> A plus a self-referencing Node model
func CycleRegistry(t testing.TB) *schema.Registry {
	t.Helper()
	return load(t, cyclesSchema)
}

// TestappSchema returns the YAML document behind Registry
func TestappSchema() []byte {
	return testappSchema
}

func load(t testing.TB, doc []byte) *schema.Registry {
	t.Helper()
	reg := schema.NewRegistry()
	require.NoError(t, schema.Load(bytes.NewReader(doc), reg))
	require.NoError(t, reg.Freeze())
	return reg
}

// OpenDB opens a private in-memory SQLite database with foreign keys
// enforced and the registry's tables created
func OpenDB(t testing.TB, reg *schema.Registry) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	// one connection keeps the in-memory database alive and shared
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	gen, err := codegen.NewDDLGenerator(codegen.DialectSQLite)
	require.NoError(t, err)
	require.NoError(t, migrate.NewRunner(db, gen, nil).Up(context.Background(), reg))

	return db
}

// Store returns a SQLite store over db
func Store(db *sql.DB) *crud.Store {
	return crud.NewStore(db, crud.SQLite{}, nil)
}

// Model returns a registered model or fails the test
func Model(t testing.TB, reg *schema.Registry, app, name string) *schema.Model {
	t.Helper()
	m, ok := reg.Get(app, name)
	require.True(t, ok, "model %s.%s not registered", app, name)
	return m
}

// Create saves a new record with the given scalar values
func Create(t testing.TB, store *crud.Store, m *schema.Model, values map[string]interface{}) *crud.Record {
	t.Helper()
	record := crud.NewRecord(m)
	for k, v := range values {
		require.NoError(t, record.Set(k, v))
	}
	require.NoError(t, store.For(m).Save(context.Background(), record))
	return record
}

// Movies is the seeded actor/movie/role graph
type Movies struct {
	Tom, Ian        *crud.Record
	Big, Code, Rich *crud.Record
	Roles           []*crud.Record
}

// SeedMovies inserts two actors, three movies and the four roles linking them:
// Tom in Big and The Da Vinci Code, Ian in The Da Vinci Code and Richard III
func SeedMovies(t testing.TB, reg *schema.Registry, store *crud.Store) *Movies {
	t.Helper()

	actor := Model(t, reg, "testapp", "actor")
	movie := Model(t, reg, "testapp", "movie")
	role := Model(t, reg, "testapp", "role")

	s := &Movies{
		Tom:  Create(t, store, actor, map[string]interface{}{"name": "Tom Hanks"}),
		Ian:  Create(t, store, actor, map[string]interface{}{"name": "Ian McKellen"}),
		Big:  Create(t, store, movie, map[string]interface{}{"title": "Big"}),
		Code: Create(t, store, movie, map[string]interface{}{"title": "The Da Vinci Code"}),
		Rich: Create(t, store, movie, map[string]interface{}{"title": "Richard III"}),
	}

	for _, pair := range [][2]*crud.Record{
		{s.Tom, s.Big}, {s.Tom, s.Code}, {s.Ian, s.Code}, {s.Ian, s.Rich},
	} {
		r := crud.NewRecord(role)
		require.NoError(t, r.Link("actor", pair[0]))
		require.NoError(t, r.Link("movie", pair[1]))
		require.NoError(t, store.For(role).Save(context.Background(), r))
		s.Roles = append(s.Roles, r)
	}

	return s
}
