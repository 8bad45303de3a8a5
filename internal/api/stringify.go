package api

import (
	"fmt"
	"strconv"
	"time"

	"github.com/zcapi-go/zcapi/internal/orm/crud"
	"github.com/zcapi-go/zcapi/internal/orm/schema"
)

// Stringify renders a field value in its canonical text form. nil renders
// as the empty string.
func Stringify(field *schema.Field, value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return formatTime(field, v)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case fmt.Stringer:
		return v.String()
	}

	if n, ok := asInt64(value); ok {
		// drivers without a boolean type hand back 0/1
		if field != nil && field.Kind() == schema.KindBoolean {
			return strconv.FormatBool(n != 0)
		}
		return strconv.FormatInt(n, 10)
	}

	return fmt.Sprint(value)
}

func formatTime(field *schema.Field, t time.Time) string {
	if field != nil {
		switch field.Type {
		case schema.TypeDate:
			return t.Format(crud.DateLayout)
		case schema.TypeTime:
			return t.Format(crud.TimeOfDayLayout)
		}
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func asInt64(value interface{}) (int64, bool) {
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
