package codegen

import (
	"testing"

	"github.com/zcapi-go/zcapi/internal/orm/schema"
)

func intPtr(i int) *int { return &i }

func TestTypeMapper_MapType(t *testing.T) {
	tests := []struct {
		name     string
		field    *schema.Field
		sqlite   string
		postgres string
	}{
		{"string default", &schema.Field{Type: schema.TypeString}, "VARCHAR(255)", "VARCHAR(255)"},
		{"string length", &schema.Field{Type: schema.TypeString, Length: intPtr(200)}, "VARCHAR(200)", "VARCHAR(200)"},
		{"text", &schema.Field{Type: schema.TypeText}, "TEXT", "TEXT"},
		{"slug", &schema.Field{Type: schema.TypeSlug}, "VARCHAR(50)", "VARCHAR(50)"},
		{"ip", &schema.Field{Type: schema.TypeIPAddress}, "VARCHAR(45)", "VARCHAR(45)"},
		{"int", &schema.Field{Type: schema.TypeInt}, "INTEGER", "INTEGER"},
		{"bigint", &schema.Field{Type: schema.TypeBigInt}, "INTEGER", "BIGINT"},
		{"float", &schema.Field{Type: schema.TypeFloat}, "REAL", "DOUBLE PRECISION"},
		{"decimal", &schema.Field{Type: schema.TypeDecimal}, "TEXT", "NUMERIC"},
		{"decimal precision", &schema.Field{Type: schema.TypeDecimal, Precision: intPtr(5)}, "TEXT", "NUMERIC(5)"},
		{"bool", &schema.Field{Type: schema.TypeBool}, "BOOLEAN", "BOOLEAN"},
		{"timestamp", &schema.Field{Type: schema.TypeTimestamp}, "TIMESTAMP", "TIMESTAMP WITH TIME ZONE"},
		{"date", &schema.Field{Type: schema.TypeDate}, "DATE", "DATE"},
		{"time", &schema.Field{Type: schema.TypeTime}, "TIME", "TIME"},
		{"uuid", &schema.Field{Type: schema.TypeUUID}, "TEXT", "UUID"},
	}

	sqlite, _ := NewTypeMapper(DialectSQLite)
	pg, _ := NewTypeMapper(DialectPostgres)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, err := sqlite.MapType(tt.field); err != nil || got != tt.sqlite {
				t.Errorf("sqlite MapType() = %q, %v; want %q", got, err, tt.sqlite)
			}
			if got, err := pg.MapType(tt.field); err != nil || got != tt.postgres {
				t.Errorf("postgres MapType() = %q, %v; want %q", got, err, tt.postgres)
			}
		})
	}
}

func TestTypeMapper_MapPrimaryKey(t *testing.T) {
	sqlite, _ := NewTypeMapper(DialectSQLite)
	pg, _ := NewTypeMapper(DialectPostgres)

	serial := &schema.Field{Name: "id", Type: schema.TypeSerial, Primary: true}
	if got, _ := sqlite.MapPrimaryKey(serial); got != "INTEGER PRIMARY KEY AUTOINCREMENT" {
		t.Errorf("sqlite serial = %q", got)
	}
	if got, _ := pg.MapPrimaryKey(serial); got != "BIGSERIAL PRIMARY KEY" {
		t.Errorf("postgres serial = %q", got)
	}

	code := &schema.Field{Name: "code", Type: schema.TypeString, Length: intPtr(8), Primary: true}
	if got, _ := sqlite.MapPrimaryKey(code); got != "VARCHAR(8) NOT NULL PRIMARY KEY" {
		t.Errorf("sqlite string key = %q", got)
	}
}

func TestQuoteIdentifier(t *testing.T) {
	if got := QuoteIdentifier(`we"ird`); got != `"we""ird"` {
		t.Errorf("QuoteIdentifier() = %q", got)
	}
}
