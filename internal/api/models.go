// Package api exposes registered models through a generic read/write/delete
// surface: the model façade, the graph serializer, the payload binder and
// the request dispatcher.
package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/zcapi-go/zcapi/internal/orm/crud"
	"github.com/zcapi-go/zcapi/internal/orm/relationships"
	"github.com/zcapi-go/zcapi/internal/orm/schema"
)

// GraphSource is what the serializer reads records through
type GraphSource interface {
	FetchAll(ctx context.Context, m *schema.Model) ([]*crud.Record, error)
	Related(ctx context.Context, record *crud.Record, rel *schema.Relation) (*crud.Record, error)
	RelatedSet(ctx context.Context, record *crud.Record, rel *schema.Relation) ([]*crud.Record, error)
}

// Models is a thin façade over the registry and the store. Lookups of
// unknown models or records return ErrNotFound.
type Models struct {
	registry *schema.Registry
	store    *crud.Store
	loader   *relationships.Loader
}

// NewModels creates the façade. The registry should be frozen.
func NewModels(registry *schema.Registry, store *crud.Store) *Models {
	return &Models{
		registry: registry,
		store:    store,
		loader:   relationships.NewLoader(store.DB(), store),
	}
}

// Registry returns the model registry
func (m *Models) Registry() *schema.Registry {
	return m.registry
}

// Resolve finds a model by app and model name, ignoring case
func (m *Models) Resolve(app, name string) (*schema.Model, error) {
	model, ok := m.registry.Get(app, name)
	if !ok {
		return nil, fmt.Errorf("%w: model %s.%s", ErrNotFound, app, name)
	}
	return model, nil
}

// FetchAll returns every record of the model in primary key order
func (m *Models) FetchAll(ctx context.Context, model *schema.Model) ([]*crud.Record, error) {
	return m.store.For(model).FindAll(ctx)
}

// FetchOne returns the record with the given identifier. An identifier that
// does not parse as the model's primary key is not found.
func (m *Models) FetchOne(ctx context.Context, model *schema.Model, id string) (*crud.Record, error) {
	key, err := crud.ParseID(model, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q: %v", ErrNotFound, model.Name, id, err)
	}

	record, err := m.store.For(model).Find(ctx, key)
	if crud.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s %q", ErrNotFound, model.Name, id)
	}
	return record, err
}

// Create returns a new unsaved record
func (m *Models) Create(model *schema.Model) *crud.Record {
	return crud.NewRecord(model)
}

// Save inserts or updates the record
func (m *Models) Save(ctx context.Context, record *crud.Record) error {
	return m.store.For(record.Model()).Save(ctx, record)
}

// DeleteOne deletes the record
func (m *Models) DeleteOne(ctx context.Context, record *crud.Record) error {
	err := m.store.For(record.Model()).Delete(ctx, record)
	if errors.Is(err, crud.ErrNotFound) {
		return fmt.Errorf("%w: %s %v", ErrNotFound, record.Model().Name, record.PrimaryKey())
	}
	return err
}

// DeleteAll deletes every record of the model and returns how many were removed
func (m *Models) DeleteAll(ctx context.Context, model *schema.Model) (int, error) {
	return m.store.For(model).DeleteAll(ctx)
}

// Related returns the record a to-one relation points at, or nil
func (m *Models) Related(ctx context.Context, record *crud.Record, rel *schema.Relation) (*crud.Record, error) {
	return m.loader.LoadOne(ctx, record, rel)
}

// RelatedSet returns the members of a to-many relation
func (m *Models) RelatedSet(ctx context.Context, record *crud.Record, rel *schema.Relation) ([]*crud.Record, error) {
	return m.loader.LoadMany(ctx, record, rel)
}
