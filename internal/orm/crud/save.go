package crud

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zcapi-go/zcapi/internal/orm/schema"
)

// Save writes the record inside a transaction. A record carrying a primary
// key is updated in place; when no row has that key, or the record has no
// key yet, it is inserted. On success the record holds the stored row.
func (o *Operations) Save(ctx context.Context, record *Record) error {
	if record.Model() != o.model {
		return fmt.Errorf("cannot save %s record with %s operations", record.Model().Name, o.model.Name)
	}

	return o.txManager.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return o.saveInTx(ctx, tx, record)
	})
}

func (o *Operations) saveInTx(ctx context.Context, tx *sql.Tx, record *Record) error {
	pk, err := o.primaryKey()
	if err != nil {
		return err
	}

	values, err := o.coerceValues(record)
	if err != nil {
		return err
	}
	refs, err := o.coerceRefs(record)
	if err != nil {
		return err
	}

	key := values[pk.Name]
	if key == nil && record.loaded != nil {
		key = record.loaded
	}

	var saved *Record
	if key != nil {
		o.populateAutoFields(values, OperationUpdate)
		saved, err = o.updateRecord(ctx, tx, pk, key, values, refs)
		if errors.Is(err, sql.ErrNoRows) {
			values[pk.Name] = key
			o.populateAutoFields(values, OperationCreate)
			saved, err = o.insertRecord(ctx, tx, pk, values, refs)
		}
	} else {
		o.populateAutoFields(values, OperationCreate)
		saved, err = o.insertRecord(ctx, tx, pk, values, refs)
	}
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", o.model.Name, ConvertDBError(err))
	}

	record.values = saved.values
	record.refs = saved.refs
	record.loaded = saved.loaded
	return nil
}

func (o *Operations) coerceValues(record *Record) (map[string]interface{}, error) {
	values := make(map[string]interface{}, len(record.values))
	for _, field := range o.model.Fields {
		raw, ok := record.values[field.Name]
		if !ok {
			continue
		}
		v, err := Coerce(field, raw)
		if err != nil {
			return nil, err
		}
		values[field.Name] = v
	}
	return values, nil
}

func (o *Operations) coerceRefs(record *Record) (map[string]interface{}, error) {
	refs := make(map[string]interface{}, len(record.refs))
	for _, rel := range o.model.BelongsTo() {
		raw, ok := record.refs[rel.Name]
		if !ok {
			continue
		}
		if target := rel.TargetModel(); target != nil {
			if pk, err := target.PrimaryKey(); err == nil {
				v, err := Coerce(pk, raw)
				if err != nil {
					return nil, err
				}
				raw = v
			}
		}
		refs[rel.Name] = raw
	}
	return refs, nil
}

// insertRecord inserts the assigned columns and returns the stored row
func (o *Operations) insertRecord(
	ctx context.Context,
	tx *sql.Tx,
	pk *schema.Field,
	values map[string]interface{},
	refs map[string]interface{},
) (*Record, error) {
	var columns []string
	var placeholders []string
	var args []interface{}

	for _, field := range o.model.Fields {
		v, ok := values[field.Name]
		if !ok || (field == pk && v == nil) {
			continue
		}
		columns = append(columns, o.dialect.QuoteIdentifier(field.ColumnName()))
		args = append(args, v)
		placeholders = append(placeholders, o.dialect.Placeholder(len(args)))
	}
	for _, rel := range o.model.BelongsTo() {
		v, ok := refs[rel.Name]
		if !ok {
			continue
		}
		columns = append(columns, o.dialect.QuoteIdentifier(rel.ForeignKeyColumn()))
		args = append(args, v)
		placeholders = append(placeholders, o.dialect.Placeholder(len(args)))
	}

	var query string
	if len(columns) == 0 {
		query = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING %s",
			o.table(),
			SelectList(o.dialect, o.model, ""))
	} else {
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
			o.table(),
			strings.Join(columns, ", "),
			strings.Join(placeholders, ", "),
			SelectList(o.dialect, o.model, ""))
	}

	return scanRecord(tx.QueryRowContext(ctx, query, args...), o.model)
}

// updateRecord updates the row with the given key and returns the stored
// row. sql.ErrNoRows means no row has the key.
func (o *Operations) updateRecord(
	ctx context.Context,
	tx *sql.Tx,
	pk *schema.Field,
	key interface{},
	values map[string]interface{},
	refs map[string]interface{},
) (*Record, error) {
	var sets []string
	var args []interface{}

	for _, field := range o.model.Fields {
		v, ok := values[field.Name]
		if !ok || (field == pk && v == nil) {
			continue
		}
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = %s",
			o.dialect.QuoteIdentifier(field.ColumnName()),
			o.dialect.Placeholder(len(args))))
	}
	for _, rel := range o.model.BelongsTo() {
		v, ok := refs[rel.Name]
		if !ok {
			continue
		}
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = %s",
			o.dialect.QuoteIdentifier(rel.ForeignKeyColumn()),
			o.dialect.Placeholder(len(args))))
	}

	pkColumn := o.dialect.QuoteIdentifier(pk.ColumnName())
	if len(sets) == 0 {
		sets = append(sets, fmt.Sprintf("%s = %s", pkColumn, pkColumn))
	}

	args = append(args, key)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s RETURNING %s",
		o.table(),
		strings.Join(sets, ", "),
		pkColumn,
		o.dialect.Placeholder(len(args)),
		SelectList(o.dialect, o.model, ""))

	return scanRecord(tx.QueryRowContext(ctx, query, args...), o.model)
}

// populateAutoFields fills generated uuid keys and auto timestamps
func (o *Operations) populateAutoFields(values map[string]interface{}, operation Operation) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	for _, field := range o.model.Fields {
		if field.Primary && field.Auto && field.Type == schema.TypeUUID && operation == OperationCreate {
			if v, ok := values[field.Name]; !ok || v == nil {
				values[field.Name] = uuid.New().String()
			}
			continue
		}

		if field.Type.Kind() != schema.KindTemporal {
			continue
		}

		refresh := field.AutoUpdate
		if operation == OperationCreate && field.Auto {
			if v, ok := values[field.Name]; !ok || v == nil {
				refresh = true
			}
		}
		if !refresh {
			continue
		}

		switch field.Type {
		case schema.TypeDate:
			values[field.Name] = truncateDay(now)
		case schema.TypeTime:
			values[field.Name] = now.Format(TimeOfDayLayout)
		default:
			values[field.Name] = now
		}
	}
}
