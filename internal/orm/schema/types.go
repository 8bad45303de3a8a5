// Package schema provides the model descriptors exposed by the API: typed
// scalar fields, relations between models, and a process-wide registry of
// every model grouped by app.
package schema

import (
	"fmt"
	"strings"
)

// PrimitiveType represents the storage type of a scalar field
type PrimitiveType int

const (
	// Text types
	TypeString PrimitiveType = iota
	TypeText
	TypeEmail
	TypeURL
	TypeSlug
	TypeIPAddress

	// Numeric types
	TypeInt
	TypeBigInt
	TypeFloat
	TypeDecimal

	// Boolean
	TypeBool

	// Time types
	TypeTimestamp
	TypeDate
	TypeTime

	// Identifiers
	TypeSerial
	TypeUUID
)

// String returns the string representation of the primitive type
func (p PrimitiveType) String() string {
	switch p {
	case TypeString:
		return "string"
	case TypeText:
		return "text"
	case TypeEmail:
		return "email"
	case TypeURL:
		return "url"
	case TypeSlug:
		return "slug"
	case TypeIPAddress:
		return "ip"
	case TypeInt:
		return "int"
	case TypeBigInt:
		return "bigint"
	case TypeFloat:
		return "float"
	case TypeDecimal:
		return "decimal"
	case TypeBool:
		return "bool"
	case TypeTimestamp:
		return "timestamp"
	case TypeDate:
		return "date"
	case TypeTime:
		return "time"
	case TypeSerial:
		return "serial"
	case TypeUUID:
		return "uuid"
	default:
		return "unknown"
	}
}

// ParsePrimitiveType converts a string to a PrimitiveType
func ParsePrimitiveType(s string) (PrimitiveType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string", "char":
		return TypeString, nil
	case "text":
		return TypeText, nil
	case "email":
		return TypeEmail, nil
	case "url":
		return TypeURL, nil
	case "slug":
		return TypeSlug, nil
	case "ip", "ip_address":
		return TypeIPAddress, nil
	case "int", "integer":
		return TypeInt, nil
	case "bigint":
		return TypeBigInt, nil
	case "float":
		return TypeFloat, nil
	case "decimal":
		return TypeDecimal, nil
	case "bool", "boolean":
		return TypeBool, nil
	case "timestamp", "datetime":
		return TypeTimestamp, nil
	case "date":
		return TypeDate, nil
	case "time":
		return TypeTime, nil
	case "serial":
		return TypeSerial, nil
	case "uuid":
		return TypeUUID, nil
	default:
		return 0, fmt.Errorf("unknown primitive type: %s", s)
	}
}

// Kind returns the value kind of the type
func (p PrimitiveType) Kind() ValueKind {
	switch p {
	case TypeInt, TypeBigInt, TypeFloat, TypeDecimal:
		return KindNumeric
	case TypeBool:
		return KindBoolean
	case TypeTimestamp, TypeDate, TypeTime:
		return KindTemporal
	case TypeSerial, TypeUUID:
		return KindIdentifier
	default:
		return KindText
	}
}

// ValueKind groups primitive types by how their values are rendered as text
type ValueKind int

const (
	KindText ValueKind = iota
	KindNumeric
	KindBoolean
	KindTemporal
	KindIdentifier
)

// String returns the string representation of the value kind
func (k ValueKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumeric:
		return "numeric"
	case KindBoolean:
		return "boolean"
	case KindTemporal:
		return "temporal"
	case KindIdentifier:
		return "identifier"
	default:
		return "unknown"
	}
}

// Field represents a scalar (non-relational) field of a model
type Field struct {
	Name       string
	Type       PrimitiveType
	Column     string // defaults to Name
	Nullable   bool
	Primary    bool
	Auto       bool // generated on insert: serial/uuid keys, creation timestamps
	AutoUpdate bool // timestamp refreshed on every save

	// Type parameters (e.g., string(50), decimal(10,2))
	Length    *int
	Precision *int
	Scale     *int
}

// ColumnName returns the database column backing the field
func (f *Field) ColumnName() string {
	if f.Column != "" {
		return f.Column
	}
	return f.Name
}

// Kind returns the value kind of the field
func (f *Field) Kind() ValueKind {
	return f.Type.Kind()
}

// IsText returns true if values of the field are stored verbatim as text
func (f *Field) IsText() bool {
	return f.Type.Kind() == KindText
}

// RelationType represents the type of relationship
type RelationType int

const (
	RelationshipBelongsTo RelationType = iota
	RelationshipHasMany
	RelationshipHasManyThrough
)

// String returns the string representation of the relationship type
func (r RelationType) String() string {
	switch r {
	case RelationshipBelongsTo:
		return "belongs_to"
	case RelationshipHasMany:
		return "has_many"
	case RelationshipHasManyThrough:
		return "has_many_through"
	default:
		return "unknown"
	}
}

// ParseRelationType converts a string to a RelationType
func ParseRelationType(s string) (RelationType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "belongs_to", "to_one", "foreign_key":
		return RelationshipBelongsTo, nil
	case "has_many", "to_many":
		return RelationshipHasMany, nil
	case "has_many_through", "many_to_many":
		return RelationshipHasManyThrough, nil
	default:
		return 0, fmt.Errorf("unknown relationship type: %s", s)
	}
}

// Cardinality tells whether a relation resolves to one record or a set
type Cardinality int

const (
	ToOne Cardinality = iota
	ToMany
)

// String returns the string representation of the cardinality
func (c Cardinality) String() string {
	if c == ToOne {
		return "to_one"
	}
	return "to_many"
}

// CascadeAction represents cascade actions for foreign keys
type CascadeAction int

const (
	CascadeCascade CascadeAction = iota
	CascadeRestrict
	CascadeSetNull
	CascadeNoAction
)

// String returns the string representation of the cascade action
func (c CascadeAction) String() string {
	switch c {
	case CascadeRestrict:
		return "restrict"
	case CascadeCascade:
		return "cascade"
	case CascadeSetNull:
		return "set_null"
	case CascadeNoAction:
		return "no_action"
	default:
		return "unknown"
	}
}

// SQL returns the referential action clause for the cascade action
func (c CascadeAction) SQL() string {
	switch c {
	case CascadeRestrict:
		return "RESTRICT"
	case CascadeSetNull:
		return "SET NULL"
	case CascadeNoAction:
		return "NO ACTION"
	default:
		return "CASCADE"
	}
}

// ParseCascadeAction converts a string to a CascadeAction. The empty string
// maps to cascade.
func ParseCascadeAction(s string) (CascadeAction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cascade":
		return CascadeCascade, nil
	case "restrict":
		return CascadeRestrict, nil
	case "set_null":
		return CascadeSetNull, nil
	case "no_action":
		return CascadeNoAction, nil
	default:
		return 0, fmt.Errorf("unknown cascade action: %s", s)
	}
}

// Relation represents a relation from one model to another
type Relation struct {
	Name   string
	Type   RelationType
	Target string // "Model" within the same app, or "app.Model"

	// belongs_to: column on the owning model; has_many: column on the target
	ForeignKey string
	Nullable   bool
	OnDelete   CascadeAction

	// has_many_through: the join model and the belongs_to relations on it
	// pointing back at the owner (source) and at the target
	Through       string
	ThroughSource string
	ThroughTarget string

	// Origin overrides the model compared against the origin record when
	// deciding whether a to-many relation walks back the edge just taken.
	// Defaults to Target.
	Origin string

	owner   *Model
	target  *Model
	through *Model
	origin  *Model
}

// Cardinality returns whether the relation yields one record or a set
func (r *Relation) Cardinality() Cardinality {
	if r.Type == RelationshipBelongsTo {
		return ToOne
	}
	return ToMany
}

// Owner returns the model declaring the relation
func (r *Relation) Owner() *Model {
	return r.owner
}

// TargetModel returns the resolved target model (nil before Freeze)
func (r *Relation) TargetModel() *Model {
	return r.target
}

// ThroughModel returns the resolved join model of a has_many_through relation
func (r *Relation) ThroughModel() *Model {
	return r.through
}

// OriginModel returns the model used for back-edge suppression
func (r *Relation) OriginModel() *Model {
	if r.origin != nil {
		return r.origin
	}
	return r.target
}

// ForeignKeyColumn returns the foreign key column of a belongs_to or
// has_many relation
func (r *Relation) ForeignKeyColumn() string {
	if r.ForeignKey != "" {
		return r.ForeignKey
	}
	switch r.Type {
	case RelationshipBelongsTo:
		return toSnakeCase(r.Name) + "_id"
	case RelationshipHasMany:
		if r.owner != nil {
			return toSnakeCase(r.owner.Name) + "_id"
		}
	}
	return ""
}

// SourceRelation returns the belongs_to relation on the join model that
// points at the owner of a has_many_through relation
func (r *Relation) SourceRelation() *Relation {
	if r.through == nil {
		return nil
	}
	rel, _ := r.through.Relation(r.ThroughSource)
	return rel
}

// TargetRelation returns the belongs_to relation on the join model that
// points at the target of a has_many_through relation
func (r *Relation) TargetRelation() *Relation {
	if r.through == nil {
		return nil
	}
	rel, _ := r.through.Relation(r.ThroughTarget)
	return rel
}

// Model is the descriptor of one registered entity type
type Model struct {
	App       string
	Name      string
	Table     string
	Fields    []*Field
	Relations []*Relation

	fields    map[string]*Field
	relations map[string]*Relation
}

// NewModel creates an empty model descriptor. The table defaults to
// app_model in lower case.
func NewModel(app, name string) *Model {
	return &Model{
		App:       app,
		Name:      name,
		Table:     strings.ToLower(app) + "_" + strings.ToLower(name),
		Fields:    make([]*Field, 0),
		Relations: make([]*Relation, 0),
		fields:    make(map[string]*Field),
		relations: make(map[string]*Relation),
	}
}

// AddField appends a scalar field
func (m *Model) AddField(field *Field) error {
	if m.HasField(field.Name) || m.HasRelation(field.Name) {
		return fmt.Errorf("model %s: duplicate field %s", m.Name, field.Name)
	}
	m.Fields = append(m.Fields, field)
	m.fields[field.Name] = field
	return nil
}

// AddRelation appends a relation
func (m *Model) AddRelation(rel *Relation) error {
	if m.HasField(rel.Name) || m.HasRelation(rel.Name) {
		return fmt.Errorf("model %s: duplicate field %s", m.Name, rel.Name)
	}
	rel.owner = m
	m.Relations = append(m.Relations, rel)
	m.relations[rel.Name] = rel
	return nil
}

// MustField is AddField for static model definitions; it panics on duplicates
func (m *Model) MustField(field *Field) *Model {
	if err := m.AddField(field); err != nil {
		panic(err)
	}
	return m
}

// MustRelation is AddRelation for static model definitions; it panics on duplicates
func (m *Model) MustRelation(rel *Relation) *Model {
	if err := m.AddRelation(rel); err != nil {
		panic(err)
	}
	return m
}

// Key returns the registry key of the model ("app.model", lower case)
func (m *Model) Key() string {
	return modelKey(m.App, m.Name)
}

// Field returns the scalar field with the given name
func (m *Model) Field(name string) (*Field, bool) {
	f, ok := m.fields[name]
	return f, ok
}

// HasField returns true if the model has a scalar field with the given name
func (m *Model) HasField(name string) bool {
	_, exists := m.fields[name]
	return exists
}

// FieldNames returns the scalar field names in declaration order
func (m *Model) FieldNames() []string {
	names := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		names[i] = f.Name
	}
	return names
}

// Relation returns the relation with the given name
func (m *Model) Relation(name string) (*Relation, bool) {
	r, ok := m.relations[name]
	return r, ok
}

// HasRelation returns true if the model has a relation with the given name
func (m *Model) HasRelation(name string) bool {
	_, exists := m.relations[name]
	return exists
}

// BelongsTo returns the to-one relations, which own a foreign key column
func (m *Model) BelongsTo() []*Relation {
	var rels []*Relation
	for _, rel := range m.Relations {
		if rel.Type == RelationshipBelongsTo {
			rels = append(rels, rel)
		}
	}
	return rels
}

// PrimaryKey returns the primary key field
func (m *Model) PrimaryKey() (*Field, error) {
	for _, field := range m.Fields {
		if field.Primary {
			return field, nil
		}
	}
	return nil, fmt.Errorf("model %s has no primary key", m.Name)
}

func modelKey(app, name string) string {
	return strings.ToLower(app) + "." + strings.ToLower(name)
}

// toSnakeCase converts a string to snake_case
func toSnakeCase(s string) string {
	var result []rune
	runes := []rune(s)

	for i, r := range runes {
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := runes[i-1]
			if prev >= 'a' && prev <= 'z' {
				result = append(result, '_')
			} else if i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z' && prev != '_' {
				result = append(result, '_')
			}
		}
		if r >= 'A' && r <= 'Z' {
			result = append(result, r+('a'-'A'))
		} else {
			result = append(result, r)
		}
	}
	return string(result)
}
