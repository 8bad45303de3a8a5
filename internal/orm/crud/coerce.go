package crud

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/zcapi-go/zcapi/internal/orm/schema"
)

// TimeOfDayLayout is the canonical layout of time-of-day values
const TimeOfDayLayout = "15:04:05.999999999"

// DateLayout is the canonical layout of date values
const DateLayout = "2006-01-02"

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	DateLayout,
}

var timeOfDayLayouts = []string{
	TimeOfDayLayout,
	"15:04",
	"15:04:05.999999999Z07:00",
}

// Coerce converts a value to the driver value stored for the field. Strings
// are parsed according to the field type; an empty string stores NULL for
// every non-text field.
func Coerce(field *schema.Field, value interface{}) (interface{}, error) {
	if value == nil {
		return nil, nil
	}

	if s, ok := value.(string); ok {
		if field.IsText() {
			return s, nil
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		v, err := parseString(field, s)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q is not a valid %s", ErrInvalidValue, field.Name, s, field.Type)
		}
		return v, nil
	}

	v, err := convertTyped(field, value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidValue, field.Name, err)
	}
	return v, nil
}

// ParseID parses a textual identifier into the model's primary key type
func ParseID(m *schema.Model, raw string) (interface{}, error) {
	pk, err := m.PrimaryKey()
	if err != nil {
		return nil, err
	}
	id, err := Coerce(pk, raw)
	if err != nil {
		return nil, err
	}
	if id == nil {
		return nil, fmt.Errorf("%w: empty identifier", ErrInvalidValue)
	}
	return id, nil
}

func parseString(field *schema.Field, s string) (interface{}, error) {
	switch field.Type {
	case schema.TypeInt, schema.TypeBigInt, schema.TypeSerial:
		return strconv.ParseInt(s, 10, 64)
	case schema.TypeFloat:
		return strconv.ParseFloat(s, 64)
	case schema.TypeDecimal:
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return nil, err
		}
		return s, nil
	case schema.TypeBool:
		return strconv.ParseBool(s)
	case schema.TypeTimestamp:
		return parseTimestamp(s)
	case schema.TypeDate:
		t, err := parseTimestamp(s)
		if err != nil {
			return nil, err
		}
		return truncateDay(t), nil
	case schema.TypeTime:
		t, err := parseTimeOfDay(s)
		if err != nil {
			return nil, err
		}
		return t.Format(TimeOfDayLayout), nil
	case schema.TypeUUID:
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		return id.String(), nil
	default:
		return s, nil
	}
}

func convertTyped(field *schema.Field, value interface{}) (interface{}, error) {
	switch field.Type.Kind() {
	case schema.KindText:
		return fmt.Sprint(value), nil
	case schema.KindBoolean:
		if b, ok := value.(bool); ok {
			return b, nil
		}
		if n, ok := toInt64(value); ok {
			return n != 0, nil
		}
	case schema.KindTemporal:
		if t, ok := value.(time.Time); ok {
			switch field.Type {
			case schema.TypeDate:
				return truncateDay(t), nil
			case schema.TypeTime:
				return t.Format(TimeOfDayLayout), nil
			}
			return t.UTC(), nil
		}
	}

	switch field.Type {
	case schema.TypeInt, schema.TypeBigInt, schema.TypeSerial:
		if n, ok := toInt64(value); ok {
			return n, nil
		}
	case schema.TypeFloat:
		if n, ok := toInt64(value); ok {
			return float64(n), nil
		}
		if f, ok := toFloat64(value); ok {
			return f, nil
		}
	case schema.TypeDecimal:
		if n, ok := toInt64(value); ok {
			return strconv.FormatInt(n, 10), nil
		}
		if f, ok := toFloat64(value); ok {
			return strconv.FormatFloat(f, 'f', -1, 64), nil
		}
	case schema.TypeUUID:
		switch v := value.(type) {
		case uuid.UUID:
			return v.String(), nil
		case [16]byte:
			return uuid.UUID(v).String(), nil
		}
	}

	return nil, fmt.Errorf("cannot use %T as %s", value, field.Type)
}

// normalize converts a scanned driver value to the canonical Go type of the
// field: int64, float64, bool, string (text, decimal, time of day, uuid) or
// time.Time (timestamp, date)
func normalize(field *schema.Field, value interface{}) interface{} {
	if b, ok := value.([]byte); ok {
		value = string(b)
	}
	if value == nil {
		return nil
	}

	switch field.Type.Kind() {
	case schema.KindText:
		if s, ok := value.(string); ok {
			return s
		}
		return fmt.Sprint(value)
	case schema.KindBoolean:
		switch v := value.(type) {
		case bool:
			return v
		case string:
			if b, err := strconv.ParseBool(v); err == nil {
				return b
			}
		}
		if n, ok := toInt64(value); ok {
			return n != 0
		}
		return value
	}

	switch field.Type {
	case schema.TypeTimestamp, schema.TypeDate:
		if s, ok := value.(string); ok {
			if t, err := parseStoredTime(s); err == nil {
				return t
			}
		}
		return value
	case schema.TypeTime:
		if t, ok := value.(time.Time); ok {
			return t.Format(TimeOfDayLayout)
		}
		return value
	case schema.TypeUUID:
		switch v := value.(type) {
		case [16]byte:
			return uuid.UUID(v).String()
		case uuid.UUID:
			return v.String()
		}
		return value
	case schema.TypeDecimal:
		if s, ok := value.(string); ok {
			return s
		}
		if n, ok := toInt64(value); ok {
			return strconv.FormatInt(n, 10)
		}
		if f, ok := toFloat64(value); ok {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return value
	case schema.TypeFloat:
		if s, ok := value.(string); ok {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f
			}
		}
		if n, ok := value.(int64); ok {
			return float64(n)
		}
		return value
	default: // int, bigint, serial
		if s, ok := value.(string); ok {
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return n
			}
		}
		if n, ok := toInt64(value); ok {
			return n
		}
		return value
	}
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// parseStoredTime parses timestamps as drivers without a native time type
// return them
func parseStoredTime(s string) (time.Time, error) {
	for _, layout := range sqlite3.SQLiteTimestampFormats {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return parseTimestamp(s)
}

func parseTimeOfDay(s string) (time.Time, error) {
	for _, layout := range timeOfDayLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func toInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), true
	}
	return 0, false
}

func toFloat64(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}
