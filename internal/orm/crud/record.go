package crud

import (
	"fmt"

	"github.com/zcapi-go/zcapi/internal/orm/schema"
)

// Record is one instance of a model: scalar values keyed by field name and
// foreign key values keyed by belongs_to relation name.
type Record struct {
	model  *schema.Model
	values map[string]interface{}
	refs   map[string]interface{}
	loaded interface{} // primary key as stored; nil until saved or fetched
}

// NewRecord creates a transient record of the model
func NewRecord(m *schema.Model) *Record {
	return &Record{
		model:  m,
		values: make(map[string]interface{}),
		refs:   make(map[string]interface{}),
	}
}

// Model returns the record's model
func (r *Record) Model() *schema.Model {
	return r.model
}

// Get returns the value of a scalar field; unset fields read as nil
func (r *Record) Get(field string) interface{} {
	return r.values[field]
}

// Has reports whether a scalar field has been assigned
func (r *Record) Has(field string) bool {
	_, ok := r.values[field]
	return ok
}

// Set assigns a scalar field
func (r *Record) Set(field string, value interface{}) error {
	if !r.model.HasField(field) {
		return fmt.Errorf("%s.%s: %w", r.model.Name, field, ErrUnknownField)
	}
	r.values[field] = value
	return nil
}

// Ref returns the foreign key held by a belongs_to relation
func (r *Record) Ref(relation string) interface{} {
	return r.refs[relation]
}

// SetRef assigns the foreign key of a belongs_to relation
func (r *Record) SetRef(relation string, value interface{}) error {
	rel, ok := r.model.Relation(relation)
	if !ok || rel.Type != schema.RelationshipBelongsTo {
		return fmt.Errorf("%s.%s: %w", r.model.Name, relation, ErrUnknownField)
	}
	r.refs[relation] = value
	return nil
}

// Link points a belongs_to relation at another record
func (r *Record) Link(relation string, target *Record) error {
	if target == nil {
		return r.SetRef(relation, nil)
	}
	return r.SetRef(relation, target.PrimaryKey())
}

// Persisted reports whether the record was read from or written to the store
func (r *Record) Persisted() bool {
	return r.loaded != nil
}

// PrimaryKey returns the current primary key value
func (r *Record) PrimaryKey() interface{} {
	pk, err := r.model.PrimaryKey()
	if err != nil {
		return nil
	}
	if v, ok := r.values[pk.Name]; ok && v != nil {
		return v
	}
	return r.loaded
}

// Values returns a copy of the scalar values
func (r *Record) Values() map[string]interface{} {
	out := make(map[string]interface{}, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

func (r *Record) markLoaded() {
	if pk, err := r.model.PrimaryKey(); err == nil {
		r.loaded = r.values[pk.Name]
	}
}
