// Package relationships loads the records on the far side of a relation
package relationships

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/zcapi-go/zcapi/internal/orm/crud"
	"github.com/zcapi-go/zcapi/internal/orm/schema"
	"github.com/zcapi-go/zcapi/internal/orm/transaction"
)

// Querier is an interface for executing SQL queries, allowing for testing and instrumentation
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Loader resolves relations of single records. Related sets are read in
// full before returning so callers may issue further queries while
// iterating them.
type Loader struct {
	db      Querier
	store   *crud.Store
	dialect crud.Dialect
}

// NewLoader creates a new relationship loader. Queries run on db; to-one
// lookups go through the store's operations.
func NewLoader(db Querier, store *crud.Store) *Loader {
	return &Loader{
		db:      db,
		store:   store,
		dialect: store.Dialect(),
	}
}

// LoadOne returns the related record of a to-one relation, or nil when the
// foreign key is unset or dangling
func (l *Loader) LoadOne(ctx context.Context, record *crud.Record, rel *schema.Relation) (*crud.Record, error) {
	if rel.Type != schema.RelationshipBelongsTo {
		return nil, fmt.Errorf("%s.%s is %s: %w", rel.Owner().Name, rel.Name, rel.Type, ErrInvalidRelationType)
	}
	target := rel.TargetModel()
	if target == nil {
		return nil, fmt.Errorf("%s.%s: %w", rel.Owner().Name, rel.Name, ErrUnresolved)
	}

	id := record.Ref(rel.Name)
	if id == nil {
		return nil, nil
	}

	related, err := l.store.For(target).Find(ctx, id)
	if errors.Is(err, crud.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s.%s: %w", rel.Owner().Name, rel.Name, err)
	}
	return related, nil
}

// LoadMany returns the members of a to-many relation in the target's
// primary key order (join row order for has_many_through). A record that
// was never saved has no members.
func (l *Loader) LoadMany(ctx context.Context, record *crud.Record, rel *schema.Relation) ([]*crud.Record, error) {
	if rel.Cardinality() != schema.ToMany {
		return nil, fmt.Errorf("%s.%s is %s: %w", rel.Owner().Name, rel.Name, rel.Type, ErrInvalidRelationType)
	}
	if rel.TargetModel() == nil {
		return nil, fmt.Errorf("%s.%s: %w", rel.Owner().Name, rel.Name, ErrUnresolved)
	}

	id := record.PrimaryKey()
	if id == nil || !record.Persisted() {
		return []*crud.Record{}, nil
	}

	var query string
	var err error
	switch rel.Type {
	case schema.RelationshipHasMany:
		query, err = l.hasManyQuery(rel)
	case schema.RelationshipHasManyThrough:
		query, err = l.throughQuery(rel)
	default:
		return nil, fmt.Errorf("%s.%s: %w", rel.Owner().Name, rel.Name, ErrInvalidRelationType)
	}
	if err != nil {
		return nil, err
	}

	rows, err := l.querier(ctx).QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s relationship %s: %w", rel.Type, rel.Name, crud.ConvertDBError(err))
	}

	related, err := crud.ScanRecords(rows, rel.TargetModel())
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s records: %w", rel.Name, err)
	}
	return related, nil
}

func (l *Loader) querier(ctx context.Context) Querier {
	if tx, ok := transaction.FromContext(ctx); ok {
		return tx.Tx()
	}
	return l.db
}

// hasManyQuery selects target rows whose foreign key points at the owner
//
//	SELECT ... FROM comments WHERE post_id = $1 ORDER BY id
func (l *Loader) hasManyQuery(rel *schema.Relation) (string, error) {
	target := rel.TargetModel()
	pk, err := target.PrimaryKey()
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s ORDER BY %s",
		crud.SelectList(l.dialect, target, ""),
		l.dialect.QuoteIdentifier(target.Table),
		l.dialect.QuoteIdentifier(rel.ForeignKeyColumn()),
		l.dialect.Placeholder(1),
		l.dialect.QuoteIdentifier(pk.ColumnName()),
	), nil
}

// throughQuery selects target rows joined through the join model
//
//	SELECT t.* FROM movies t INNER JOIN roles j ON t.id = j.movie_id
//	WHERE j.actor_id = $1 ORDER BY j.id
func (l *Loader) throughQuery(rel *schema.Relation) (string, error) {
	target := rel.TargetModel()
	join := rel.ThroughModel()
	source := rel.SourceRelation()
	toTarget := rel.TargetRelation()
	if join == nil || source == nil || toTarget == nil {
		return "", fmt.Errorf("%s.%s: %w", rel.Owner().Name, rel.Name, ErrUnresolved)
	}

	targetPK, err := target.PrimaryKey()
	if err != nil {
		return "", err
	}
	joinPK, err := join.PrimaryKey()
	if err != nil {
		return "", err
	}

	q := l.dialect.QuoteIdentifier
	return fmt.Sprintf("SELECT %s FROM %s t INNER JOIN %s j ON t.%s = j.%s WHERE j.%s = %s ORDER BY j.%s",
		crud.SelectList(l.dialect, target, "t"),
		q(target.Table),
		q(join.Table),
		q(targetPK.ColumnName()),
		q(toTarget.ForeignKeyColumn()),
		q(source.ForeignKeyColumn()),
		l.dialect.Placeholder(1),
		q(joinPK.ColumnName()),
	), nil
}
