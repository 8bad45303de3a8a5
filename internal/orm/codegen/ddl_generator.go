package codegen

import (
	"fmt"
	"strings"

	"github.com/zcapi-go/zcapi/internal/orm/schema"
)

// DDLGenerator generates DDL statements from model descriptors
type DDLGenerator struct {
	dialect    string
	typeMapper *TypeMapper
}

// NewDDLGenerator creates a new DDL generator for the dialect
func NewDDLGenerator(dialect string) (*DDLGenerator, error) {
	tm, err := NewTypeMapper(dialect)
	if err != nil {
		return nil, err
	}
	return &DDLGenerator{dialect: dialect, typeMapper: tm}, nil
}

// Dialect returns the generator's dialect
func (g *DDLGenerator) Dialect() string {
	return g.dialect
}

// GenerateCreateTable generates a CREATE TABLE statement for a model.
// Relations must be resolved (Registry.Freeze) so foreign keys can be typed.
func (g *DDLGenerator) GenerateCreateTable(m *schema.Model) (string, error) {
	if m == nil {
		return "", fmt.Errorf("model cannot be nil")
	}

	var columnDefs []string
	for _, field := range m.Fields {
		def, err := g.generateColumnDefinition(field)
		if err != nil {
			return "", fmt.Errorf("%s.%s: %w", m.Name, field.Name, err)
		}
		columnDefs = append(columnDefs, def)
	}

	for _, rel := range m.BelongsTo() {
		def, err := g.generateForeignKey(rel)
		if err != nil {
			return "", fmt.Errorf("%s.%s: %w", m.Name, rel.Name, err)
		}
		columnDefs = append(columnDefs, def)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n", QuoteIdentifier(m.Table)))
	for i, def := range columnDefs {
		b.WriteString("  ")
		b.WriteString(def)
		if i < len(columnDefs)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(");")

	return b.String(), nil
}

func (g *DDLGenerator) generateColumnDefinition(field *schema.Field) (string, error) {
	name := QuoteIdentifier(field.ColumnName())

	if field.Primary {
		tail, err := g.typeMapper.MapPrimaryKey(field)
		if err != nil {
			return "", err
		}
		return name + " " + tail, nil
	}

	colType, err := g.typeMapper.MapType(field)
	if err != nil {
		return "", err
	}

	parts := []string{name, colType, g.typeMapper.MapNullability(field.Nullable)}
	if def := g.typeMapper.MapDefault(field); def != "" {
		parts = append(parts, def)
	}

	return strings.Join(parts, " "), nil
}

func (g *DDLGenerator) generateForeignKey(rel *schema.Relation) (string, error) {
	target := rel.TargetModel()
	if target == nil {
		return "", fmt.Errorf("relation target %s is not resolved", rel.Target)
	}

	pk, err := target.PrimaryKey()
	if err != nil {
		return "", err
	}

	colType, err := g.typeMapper.MapType(pk)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s %s %s REFERENCES %s (%s) ON DELETE %s",
		QuoteIdentifier(rel.ForeignKeyColumn()),
		colType,
		g.typeMapper.MapNullability(rel.Nullable),
		QuoteIdentifier(target.Table),
		QuoteIdentifier(pk.ColumnName()),
		rel.OnDelete.SQL(),
	), nil
}

// GenerateDropTable generates a DROP TABLE statement
func (g *DDLGenerator) GenerateDropTable(m *schema.Model) string {
	if g.dialect == DialectPostgres {
		return fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE;", QuoteIdentifier(m.Table))
	}
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", QuoteIdentifier(m.Table))
}
