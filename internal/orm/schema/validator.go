package schema

import (
	"fmt"
	"strings"
)

// ValidationError represents a schema validation error with context
type ValidationError struct {
	Model   string
	Field   string
	Message string
	Hint    string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	var b strings.Builder

	if e.Model != "" {
		b.WriteString(e.Model)
		if e.Field != "" {
			b.WriteString(".")
			b.WriteString(e.Field)
		}
		b.WriteString(": ")
	}

	b.WriteString(e.Message)

	if e.Hint != "" {
		b.WriteString("\n  hint: ")
		b.WriteString(e.Hint)
	}

	return b.String()
}

// SchemaValidator validates model descriptors
type SchemaValidator struct {
	errors []*ValidationError
}

// NewSchemaValidator creates a new schema validator
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{
		errors: make([]*ValidationError, 0),
	}
}

// ValidateStructural validates a single model without cross-model checks.
// Used during registration so relations may reference models registered later.
func (v *SchemaValidator) ValidateStructural(m *Model) error {
	v.errors = make([]*ValidationError, 0)

	if m.App == "" {
		v.addError(m.Name, "", "model has no app", "declare the model under an app")
	}
	if m.Name == "" {
		v.addError("", "", "model has no name", "")
	}
	if m.Table == "" {
		v.addError(m.Name, "", "model has no table", "")
	}

	v.validatePrimaryKey(m)
	v.validateFields(m)
	v.validateRelationsStructural(m)

	return v.result()
}

// ValidateRelations validates the resolved relations of a model. Freeze must
// have resolved targets before this runs.
func (v *SchemaValidator) ValidateRelations(m *Model) error {
	v.errors = make([]*ValidationError, 0)

	for _, rel := range m.Relations {
		if rel.target == nil {
			v.addError(m.Name, rel.Name,
				fmt.Sprintf("relation target %s is not registered", rel.Target),
				"register the target model or use the app.Model form")
			continue
		}

		switch rel.Type {
		case RelationshipHasMany:
			if !hasBelongsToColumn(rel.target, rel.ForeignKeyColumn(), m) {
				v.addError(m.Name, rel.Name,
					fmt.Sprintf("%s has no belongs_to relation to %s with column %s",
						rel.target.Name, m.Name, rel.ForeignKeyColumn()),
					"declare the belongs_to side or set foreign_key")
			}
		case RelationshipHasManyThrough:
			if rel.through == nil {
				v.addError(m.Name, rel.Name,
					fmt.Sprintf("join model %s is not registered", rel.Through), "")
				continue
			}
			v.validateThroughSide(m, rel, rel.ThroughSource, m)
			v.validateThroughSide(m, rel, rel.ThroughTarget, rel.target)
		}

		if rel.Origin != "" && rel.origin == nil {
			v.addError(m.Name, rel.Name,
				fmt.Sprintf("origin model %s is not registered", rel.Origin), "")
		}
	}

	return v.result()
}

func (v *SchemaValidator) validateThroughSide(m *Model, rel *Relation, name string, want *Model) {
	side, ok := rel.through.Relation(name)
	if !ok || side.Type != RelationshipBelongsTo {
		v.addError(m.Name, rel.Name,
			fmt.Sprintf("join model %s has no belongs_to relation %q", rel.through.Name, name), "")
		return
	}
	if side.target != want {
		v.addError(m.Name, rel.Name,
			fmt.Sprintf("%s.%s does not point at %s", rel.through.Name, name, want.Name), "")
	}
}

func (v *SchemaValidator) validatePrimaryKey(m *Model) {
	var primaries []string
	for _, f := range m.Fields {
		if f.Primary {
			primaries = append(primaries, f.Name)
		}
	}

	switch {
	case len(primaries) == 0:
		v.addError(m.Name, "", "model has no primary key", "mark one field with primary: true")
	case len(primaries) > 1:
		v.addError(m.Name, "",
			fmt.Sprintf("multiple primary keys: %s", strings.Join(primaries, ", ")),
			"composite primary keys are not supported")
	default:
		pk, _ := m.PrimaryKey()
		if pk.Nullable {
			v.addError(m.Name, pk.Name, "primary key cannot be nullable", "")
		}
	}
}

func (v *SchemaValidator) validateFields(m *Model) {
	columns := make(map[string]string)
	for _, f := range m.Fields {
		if f.Name == "" {
			v.addError(m.Name, "", "field has no name", "")
			continue
		}
		if f.Type == TypeSerial && !f.Primary {
			v.addError(m.Name, f.Name, "serial fields must be the primary key", "")
		}
		if f.AutoUpdate && f.Type.Kind() != KindTemporal {
			v.addError(m.Name, f.Name, "auto_update requires a timestamp, date or time field", "")
		}
		if f.Length != nil && *f.Length <= 0 {
			v.addError(m.Name, f.Name, "length must be positive", "")
		}
		if f.Scale != nil && f.Precision != nil && *f.Scale > *f.Precision {
			v.addError(m.Name, f.Name, "scale cannot exceed precision", "")
		}
		v.claimColumn(m, columns, f.ColumnName(), f.Name)
	}
	for _, rel := range m.BelongsTo() {
		v.claimColumn(m, columns, rel.ForeignKeyColumn(), rel.Name)
	}
}

func (v *SchemaValidator) claimColumn(m *Model, columns map[string]string, column, owner string) {
	if other, taken := columns[column]; taken {
		v.addError(m.Name, owner,
			fmt.Sprintf("column %s is already used by %s", column, other), "")
		return
	}
	columns[column] = owner
}

func (v *SchemaValidator) validateRelationsStructural(m *Model) {
	for _, rel := range m.Relations {
		if rel.Name == "" {
			v.addError(m.Name, "", "relation has no name", "")
			continue
		}
		if rel.Target == "" {
			v.addError(m.Name, rel.Name, "relation has no target", "")
		}
		if rel.OnDelete == CascadeSetNull && !rel.Nullable {
			v.addError(m.Name, rel.Name,
				"on_delete set_null requires a nullable relation", "add nullable: true")
		}
		if rel.Type == RelationshipHasManyThrough {
			if rel.Through == "" || rel.ThroughSource == "" || rel.ThroughTarget == "" {
				v.addError(m.Name, rel.Name,
					"has_many_through requires through, through_source and through_target", "")
			}
		} else if rel.Through != "" {
			v.addError(m.Name, rel.Name,
				fmt.Sprintf("through is only valid on has_many_through, not %s", rel.Type), "")
		}
	}
}

func hasBelongsToColumn(target *Model, column string, owner *Model) bool {
	for _, rel := range target.BelongsTo() {
		if rel.ForeignKeyColumn() == column && rel.target == owner {
			return true
		}
	}
	return false
}

func (v *SchemaValidator) addError(model, field, message, hint string) {
	v.errors = append(v.errors, &ValidationError{
		Model:   model,
		Field:   field,
		Message: message,
		Hint:    hint,
	})
}

func (v *SchemaValidator) result() error {
	if len(v.errors) == 0 {
		return nil
	}
	msgs := make([]string, len(v.errors))
	for i, e := range v.errors {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("schema validation failed with %d errors:\n%s",
		len(v.errors), strings.Join(msgs, "\n"))
}

// Errors returns the errors collected by the last validation
func (v *SchemaValidator) Errors() []*ValidationError {
	return v.errors
}
