package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/zcapi-go/zcapi/internal/orm/schema"
)

// RenderModels prints each model with its fields and relations
func RenderModels(w io.Writer, models []*schema.Model, noColor bool) {
	for i, m := range models {
		if i > 0 {
			fmt.Fprintln(w)
		}
		RenderModel(w, m, noColor)
	}
}

// RenderModel prints one model's fields and relations
func RenderModel(w io.Writer, m *schema.Model, noColor bool) {
	Header(w, fmt.Sprintf("%s.%s (%s)", m.App, m.Name, m.Table), noColor)

	fields := NewTable(w, []string{"FIELD", "TYPE", "COLUMN", "FLAGS"}, noColor)
	for _, f := range m.Fields {
		fields.AddRow(f.Name, fieldType(f), f.ColumnName(), strings.Join(fieldFlags(f), ","))
	}
	fields.Render()

	if len(m.Relations) == 0 {
		return
	}

	fmt.Fprintln(w)
	relations := NewTable(w, []string{"RELATION", "TYPE", "TARGET", "DETAILS"}, noColor)
	for _, r := range m.Relations {
		relations.AddRow(r.Name, r.Type.String(), relationTarget(r), relationDetails(r))
	}
	relations.Render()
}

// ModelNames returns "app.Model" for each model
func ModelNames(models []*schema.Model) []string {
	names := make([]string, len(models))
	for i, m := range models {
		names[i] = m.App + "." + m.Name
	}
	return names
}

func fieldType(f *schema.Field) string {
	switch {
	case f.Precision != nil && f.Scale != nil:
		return fmt.Sprintf("%s(%d,%d)", f.Type, *f.Precision, *f.Scale)
	case f.Length != nil:
		return fmt.Sprintf("%s(%d)", f.Type, *f.Length)
	}
	return f.Type.String()
}

func fieldFlags(f *schema.Field) []string {
	var flags []string
	if f.Primary {
		flags = append(flags, "primary")
	}
	if f.Nullable {
		flags = append(flags, "null")
	}
	if f.Auto {
		flags = append(flags, "auto")
	}
	if f.AutoUpdate {
		flags = append(flags, "auto_update")
	}
	return flags
}

func relationTarget(r *schema.Relation) string {
	if t := r.TargetModel(); t != nil {
		return t.App + "." + t.Name
	}
	return r.Target
}

func relationDetails(r *schema.Relation) string {
	switch r.Type {
	case schema.RelationshipBelongsTo:
		details := "fk " + r.ForeignKeyColumn() + ", on delete " + r.OnDelete.String()
		if r.Nullable {
			details += ", null"
		}
		return details
	case schema.RelationshipHasMany:
		return "fk " + r.ForeignKeyColumn()
	case schema.RelationshipHasManyThrough:
		return fmt.Sprintf("through %s (%s -> %s)", r.Through, r.ThroughSource, r.ThroughTarget)
	}
	return ""
}
