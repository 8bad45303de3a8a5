package schema

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrFrozen is returned when registering into a frozen registry
var ErrFrozen = errors.New("registry is frozen")

// Registry holds every model known to the process, keyed by app and model
// name. It is populated at start-up and read-only after Freeze.
type Registry struct {
	models    map[string]*Model
	order     []*Model
	validator *SchemaValidator
	frozen    bool
	mu        sync.RWMutex
}

// NewRegistry creates a new model registry
func NewRegistry() *Registry {
	return &Registry{
		models:    make(map[string]*Model),
		order:     make([]*Model, 0),
		validator: NewSchemaValidator(),
	}
}

// Register registers a model. A model without a primary key receives an
// implicit auto-incrementing "id" field.
func (r *Registry) Register(m *Model) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("register %s.%s: %w", m.App, m.Name, ErrFrozen)
	}

	key := m.Key()
	if _, exists := r.models[key]; exists {
		return fmt.Errorf("model %s.%s is already registered", m.App, m.Name)
	}

	if _, err := m.PrimaryKey(); err != nil && !m.HasField("id") {
		implicit := &Field{Name: "id", Type: TypeSerial, Primary: true, Auto: true}
		m.Fields = append([]*Field{implicit}, m.Fields...)
		m.fields["id"] = implicit
	}

	if err := r.validator.ValidateStructural(m); err != nil {
		return fmt.Errorf("model %s.%s: %w", m.App, m.Name, err)
	}

	r.models[key] = m
	r.order = append(r.order, m)
	return nil
}

// Freeze resolves every relation against the registered models, validates
// them and makes the registry read-only
func (r *Registry) Freeze() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return nil
	}

	for _, m := range r.order {
		for _, rel := range m.Relations {
			rel.target = r.resolve(m.App, rel.Target)
			if rel.Through != "" {
				rel.through = r.resolve(m.App, rel.Through)
			}
			if rel.Origin != "" {
				rel.origin = r.resolve(m.App, rel.Origin)
			}
		}
	}

	var msgs []string
	for _, m := range r.order {
		if err := r.validator.ValidateRelations(m); err != nil {
			msgs = append(msgs, fmt.Sprintf("%s.%s: %v", m.App, m.Name, err))
		}
	}
	if len(msgs) > 0 {
		return fmt.Errorf("relation validation failed:\n%s", strings.Join(msgs, "\n"))
	}

	r.frozen = true
	return nil
}

// resolve finds a model referenced as "Model" (within app) or "app.Model"
func (r *Registry) resolve(app, ref string) *Model {
	if i := strings.Index(ref, "."); i >= 0 {
		return r.models[modelKey(ref[:i], ref[i+1:])]
	}
	return r.models[modelKey(app, ref)]
}

// Frozen reports whether Freeze has completed
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.frozen
}

// Get retrieves a model by app and model name, ignoring case
func (r *Registry) Get(app, name string) (*Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, exists := r.models[modelKey(app, name)]
	return m, exists
}

// Lookup retrieves a model by "app.Model" reference, ignoring case
func (r *Registry) Lookup(ref string) (*Model, bool) {
	i := strings.Index(ref, ".")
	if i < 0 {
		return nil, false
	}
	return r.Get(ref[:i], ref[i+1:])
}

// All returns the registered models in registration order
func (r *Registry) All() []*Model {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Model, len(r.order))
	copy(result, r.order)
	return result
}

// Apps returns the distinct app names in registration order
func (r *Registry) Apps() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var apps []string
	for _, m := range r.order {
		if !seen[m.App] {
			seen[m.App] = true
			apps = append(apps, m.App)
		}
	}
	return apps
}

// Count returns the number of registered models
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.order)
}

// Exists checks if a model is registered
func (r *Registry) Exists(app, name string) bool {
	_, exists := r.Get(app, name)
	return exists
}

// DependencyOrder returns the models ordered so that every model follows the
// models its belongs_to relations reference (safe for table creation)
func (r *Registry) DependencyOrder() ([]*Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys, err := NewRelationshipGraph(r.order).TopologicalSort()
	if err != nil {
		return nil, err
	}

	result := make([]*Model, len(keys))
	for i, key := range keys {
		result[i] = r.models[key]
	}
	return result, nil
}
