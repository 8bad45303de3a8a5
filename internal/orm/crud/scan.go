package crud

import (
	"database/sql"
	"strings"

	"github.com/zcapi-go/zcapi/internal/orm/schema"
)

// column is one selected column and where its value lands on a Record
type column struct {
	name     string
	field    *schema.Field    // scalar column
	relation *schema.Relation // belongs_to foreign key column
}

// columnsOf returns the stored columns of a model: scalar fields in declared
// order followed by belongs_to foreign keys
func columnsOf(m *schema.Model) []column {
	cols := make([]column, 0, len(m.Fields)+len(m.Relations))
	for _, f := range m.Fields {
		cols = append(cols, column{name: f.ColumnName(), field: f})
	}
	for _, rel := range m.BelongsTo() {
		cols = append(cols, column{name: rel.ForeignKeyColumn(), relation: rel})
	}
	return cols
}

// SelectList returns the quoted column list of a model, qualified by alias
// when one is given
func SelectList(d Dialect, m *schema.Model, alias string) string {
	cols := columnsOf(m)
	parts := make([]string, len(cols))
	for i, c := range cols {
		if alias != "" {
			parts[i] = alias + "." + d.QuoteIdentifier(c.name)
		} else {
			parts[i] = d.QuoteIdentifier(c.name)
		}
	}
	return strings.Join(parts, ", ")
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanRecord scans a row selected with SelectList into a persisted Record
func scanRecord(row scanner, m *schema.Model) (*Record, error) {
	cols := columnsOf(m)
	values := make([]interface{}, len(cols))
	valuePtrs := make([]interface{}, len(cols))
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	if err := row.Scan(valuePtrs...); err != nil {
		return nil, err
	}

	record := NewRecord(m)
	for i, c := range cols {
		if c.field != nil {
			record.values[c.field.Name] = normalize(c.field, values[i])
			continue
		}
		record.refs[c.relation.Name] = normalizeRef(c.relation, values[i])
	}
	record.markLoaded()

	return record, nil
}

// ScanRecords reads every row selected with SelectList into records. The
// rows are fully consumed and closed before returning.
func ScanRecords(rows *sql.Rows, m *schema.Model) ([]*Record, error) {
	defer rows.Close()

	records := make([]*Record, 0)
	for rows.Next() {
		record, err := scanRecord(rows, m)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// normalizeRef converts a scanned foreign key to the type of the referenced
// primary key
func normalizeRef(rel *schema.Relation, value interface{}) interface{} {
	if target := rel.TargetModel(); target != nil {
		if pk, err := target.PrimaryKey(); err == nil {
			return normalize(pk, value)
		}
	}
	if b, ok := value.([]byte); ok {
		return string(b)
	}
	return value
}
