// Package codegen generates CREATE TABLE statements for registered models.
// SQLite and PostgreSQL are supported.
package codegen

import (
	"fmt"
	"strings"

	"github.com/zcapi-go/zcapi/internal/orm/schema"
)

// Dialect names understood by the generator
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// TypeMapper maps field types to column types of one SQL dialect
type TypeMapper struct {
	dialect string
}

// NewTypeMapper creates a new TypeMapper
func NewTypeMapper(dialect string) (*TypeMapper, error) {
	switch dialect {
	case DialectSQLite, DialectPostgres:
		return &TypeMapper{dialect: dialect}, nil
	default:
		return nil, fmt.Errorf("unsupported dialect: %s", dialect)
	}
}

// MapType returns the column type of a field
func (tm *TypeMapper) MapType(field *schema.Field) (string, error) {
	if tm.dialect == DialectSQLite {
		return tm.mapSQLite(field)
	}
	return tm.mapPostgres(field)
}

func (tm *TypeMapper) mapSQLite(field *schema.Field) (string, error) {
	switch field.Type {
	case schema.TypeString:
		return varchar(field, 255), nil
	case schema.TypeEmail, schema.TypeURL:
		return varchar(field, 255), nil
	case schema.TypeSlug:
		return varchar(field, 50), nil
	case schema.TypeIPAddress:
		return varchar(field, 45), nil
	case schema.TypeText:
		return "TEXT", nil
	case schema.TypeInt, schema.TypeBigInt:
		return "INTEGER", nil
	case schema.TypeFloat:
		return "REAL", nil
	case schema.TypeDecimal:
		// stored as text so values keep their exact digits
		return "TEXT", nil
	case schema.TypeBool:
		return "BOOLEAN", nil
	case schema.TypeTimestamp:
		return "TIMESTAMP", nil
	case schema.TypeDate:
		return "DATE", nil
	case schema.TypeTime:
		return "TIME", nil
	case schema.TypeSerial:
		return "INTEGER", nil
	case schema.TypeUUID:
		return "TEXT", nil
	default:
		return "", fmt.Errorf("unsupported type: %s", field.Type)
	}
}

func (tm *TypeMapper) mapPostgres(field *schema.Field) (string, error) {
	switch field.Type {
	case schema.TypeString:
		return varchar(field, 255), nil
	case schema.TypeEmail, schema.TypeURL:
		return varchar(field, 255), nil
	case schema.TypeSlug:
		return varchar(field, 50), nil
	case schema.TypeIPAddress:
		return varchar(field, 45), nil
	case schema.TypeText:
		return "TEXT", nil
	case schema.TypeInt:
		return "INTEGER", nil
	case schema.TypeBigInt:
		return "BIGINT", nil
	case schema.TypeFloat:
		return "DOUBLE PRECISION", nil
	case schema.TypeDecimal:
		if field.Precision != nil && field.Scale != nil {
			return fmt.Sprintf("NUMERIC(%d,%d)", *field.Precision, *field.Scale), nil
		}
		if field.Precision != nil {
			return fmt.Sprintf("NUMERIC(%d)", *field.Precision), nil
		}
		return "NUMERIC", nil
	case schema.TypeBool:
		return "BOOLEAN", nil
	case schema.TypeTimestamp:
		return "TIMESTAMP WITH TIME ZONE", nil
	case schema.TypeDate:
		return "DATE", nil
	case schema.TypeTime:
		return "TIME", nil
	case schema.TypeSerial:
		return "BIGINT", nil
	case schema.TypeUUID:
		return "UUID", nil
	default:
		return "", fmt.Errorf("unsupported type: %s", field.Type)
	}
}

// MapPrimaryKey returns the full column definition tail of a primary key,
// after the column name
func (tm *TypeMapper) MapPrimaryKey(field *schema.Field) (string, error) {
	if field.Type == schema.TypeSerial {
		if tm.dialect == DialectSQLite {
			return "INTEGER PRIMARY KEY AUTOINCREMENT", nil
		}
		return "BIGSERIAL PRIMARY KEY", nil
	}

	colType, err := tm.MapType(field)
	if err != nil {
		return "", err
	}
	if field.Type == schema.TypeUUID && field.Auto && tm.dialect == DialectPostgres {
		return colType + " NOT NULL DEFAULT gen_random_uuid() PRIMARY KEY", nil
	}
	return colType + " NOT NULL PRIMARY KEY", nil
}

// MapNullability returns the NULL/NOT NULL constraint
func (tm *TypeMapper) MapNullability(nullable bool) string {
	if nullable {
		return "NULL"
	}
	return "NOT NULL"
}

// MapDefault returns the DEFAULT clause of a field, or ""
func (tm *TypeMapper) MapDefault(field *schema.Field) string {
	if field.Auto && field.Type == schema.TypeTimestamp {
		return "DEFAULT CURRENT_TIMESTAMP"
	}
	return ""
}

func varchar(field *schema.Field, fallback int) string {
	if field.Length != nil {
		return fmt.Sprintf("VARCHAR(%d)", *field.Length)
	}
	return fmt.Sprintf("VARCHAR(%d)", fallback)
}

// QuoteIdentifier quotes a table or column name for both dialects
func QuoteIdentifier(identifier string) string {
	escaped := strings.ReplaceAll(identifier, `"`, `""`)
	return fmt.Sprintf(`"%s"`, escaped)
}
