package api

import (
	"github.com/zcapi-go/zcapi/internal/orm/crud"
)

// Bind copies the payload entries whose keys are scalar field names of the
// record's model onto the record and returns the names it set, in field
// order. Relation names and unknown keys are ignored. Values are stored as
// given; the store coerces them on save.
func Bind(record *crud.Record, payload map[string]string) []string {
	var bound []string
	for _, field := range record.Model().Fields {
		value, ok := payload[field.Name]
		if !ok {
			continue
		}
		if err := record.Set(field.Name, value); err != nil {
			continue
		}
		bound = append(bound, field.Name)
	}
	return bound
}
