package crud

import (
	"context"
	"fmt"
)

// Find retrieves a record by its primary key
func (o *Operations) Find(
	ctx context.Context,
	id interface{},
) (*Record, error) {
	pk, err := o.primaryKey()
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		SelectList(o.dialect, o.model, ""),
		o.table(),
		o.dialect.QuoteIdentifier(pk.ColumnName()),
		o.dialect.Placeholder(1))

	record, err := scanRecord(o.querier(ctx).QueryRowContext(ctx, query, id), o.model)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s: %w", o.model.Name, ConvertDBError(err))
	}

	return record, nil
}

// FindAll retrieves every record of the model in primary key order
func (o *Operations) FindAll(ctx context.Context) ([]*Record, error) {
	pk, err := o.primaryKey()
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		SelectList(o.dialect, o.model, ""),
		o.table(),
		o.dialect.QuoteIdentifier(pk.ColumnName()))

	rows, err := o.querier(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", o.model.Name, ConvertDBError(err))
	}

	records, err := ScanRecords(rows, o.model)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", o.model.Name, ConvertDBError(err))
	}

	return records, nil
}

// Exists checks if a record exists by its primary key
func (o *Operations) Exists(
	ctx context.Context,
	id interface{},
) (bool, error) {
	pk, err := o.primaryKey()
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = %s",
		o.table(),
		o.dialect.QuoteIdentifier(pk.ColumnName()),
		o.dialect.Placeholder(1))

	var count int
	if err := o.querier(ctx).QueryRowContext(ctx, query, id).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check if record exists: %w", ConvertDBError(err))
	}

	return count > 0, nil
}

// Count returns the number of records of the model
func (o *Operations) Count(ctx context.Context) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", o.table())

	var count int
	if err := o.querier(ctx).QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", ConvertDBError(err))
	}

	return count, nil
}
