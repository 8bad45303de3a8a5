package crud

import (
	"context"
	"database/sql"
	"fmt"
)

// Delete removes the record's row. Rows referencing it follow their
// foreign key's on_delete action.
func (o *Operations) Delete(ctx context.Context, record *Record) error {
	key := record.loaded
	if key == nil {
		key = record.PrimaryKey()
	}
	if key == nil {
		return fmt.Errorf("failed to delete %s: %w", o.model.Name, ErrUnsaved)
	}

	pk, err := o.primaryKey()
	if err != nil {
		return err
	}

	return o.txManager.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		query := fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
			o.table(),
			o.dialect.QuoteIdentifier(pk.ColumnName()),
			o.dialect.Placeholder(1))

		result, err := tx.ExecContext(ctx, query, key)
		if err != nil {
			return fmt.Errorf("failed to delete %s: %w", o.model.Name, ConvertDBError(err))
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		if affected == 0 {
			return ErrNotFound
		}

		record.loaded = nil
		return nil
	})
}

// DeleteAll removes every row of the model and returns how many were removed
func (o *Operations) DeleteAll(ctx context.Context) (int, error) {
	var count int

	err := o.txManager.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		query := fmt.Sprintf("DELETE FROM %s", o.table())

		result, err := tx.ExecContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to delete %s records: %w", o.model.Name, ConvertDBError(err))
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		count = int(affected)
		return nil
	})

	return count, err
}
