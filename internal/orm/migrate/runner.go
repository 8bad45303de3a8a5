// Package migrate creates and drops the tables of registered models
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/zcapi-go/zcapi/internal/orm/codegen"
	"github.com/zcapi-go/zcapi/internal/orm/schema"
	"github.com/zcapi-go/zcapi/internal/orm/transaction"
)

// Statement is one DDL statement and the model it belongs to
type Statement struct {
	Model *schema.Model
	SQL   string
}

// Runner applies generated DDL in dependency order
type Runner struct {
	db        *sql.DB
	generator *codegen.DDLGenerator
	txManager *transaction.Manager
	logger    *zap.Logger
}

// NewRunner creates a new migration runner
func NewRunner(db *sql.DB, generator *codegen.DDLGenerator, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		db:        db,
		generator: generator,
		txManager: transaction.NewManager(db),
		logger:    logger,
	}
}

// order returns the models in creation order. SQLite accepts forward
// references, so circular belongs_to chains fall back to registration order
// there.
func (r *Runner) order(registry *schema.Registry) ([]*schema.Model, error) {
	models, err := registry.DependencyOrder()
	if err == nil {
		return models, nil
	}

	var cycleErr *schema.CycleError
	if errors.As(err, &cycleErr) && r.generator.Dialect() == codegen.DialectSQLite {
		r.logger.Warn("circular foreign keys, creating tables in registration order",
			zap.Error(err))
		return registry.All(), nil
	}
	return nil, fmt.Errorf("failed to order models: %w", err)
}

// Plan returns the CREATE TABLE statements for every registered model
func (r *Runner) Plan(registry *schema.Registry) ([]Statement, error) {
	models, err := r.order(registry)
	if err != nil {
		return nil, err
	}

	statements := make([]Statement, 0, len(models))
	for _, m := range models {
		ddl, err := r.generator.GenerateCreateTable(m)
		if err != nil {
			return nil, fmt.Errorf("failed to generate DDL: %w", err)
		}
		statements = append(statements, Statement{Model: m, SQL: ddl})
	}
	return statements, nil
}

// PlanDown returns the DROP TABLE statements in reverse creation order
func (r *Runner) PlanDown(registry *schema.Registry) ([]Statement, error) {
	models, err := r.order(registry)
	if err != nil {
		return nil, err
	}

	statements := make([]Statement, 0, len(models))
	for i := len(models) - 1; i >= 0; i-- {
		statements = append(statements, Statement{
			Model: models[i],
			SQL:   r.generator.GenerateDropTable(models[i]),
		})
	}
	return statements, nil
}

// Up creates every missing table in a single transaction
func (r *Runner) Up(ctx context.Context, registry *schema.Registry) error {
	statements, err := r.Plan(registry)
	if err != nil {
		return err
	}
	return r.apply(ctx, statements, "created")
}

// Down drops every table of the registered models
func (r *Runner) Down(ctx context.Context, registry *schema.Registry) error {
	statements, err := r.PlanDown(registry)
	if err != nil {
		return err
	}
	return r.apply(ctx, statements, "dropped")
}

func (r *Runner) apply(ctx context.Context, statements []Statement, verb string) error {
	err := r.txManager.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt.SQL); err != nil {
				return fmt.Errorf("%s.%s: %w", stmt.Model.App, stmt.Model.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	for _, stmt := range statements {
		r.logger.Info("table "+verb,
			zap.String("app", stmt.Model.App),
			zap.String("model", stmt.Model.Name),
			zap.String("table", stmt.Model.Table))
	}
	return nil
}
