package commands

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zcapi-go/zcapi/internal/app"
	"github.com/zcapi-go/zcapi/internal/cli/config"
	"github.com/zcapi-go/zcapi/internal/cli/logging"
	"github.com/zcapi-go/zcapi/internal/cli/ui"
	"github.com/zcapi-go/zcapi/internal/orm/codegen"
	"github.com/zcapi-go/zcapi/internal/orm/crud"
	"github.com/zcapi-go/zcapi/internal/orm/migrate"
	"github.com/zcapi-go/zcapi/internal/orm/schema"
)

type migrateOptions struct {
	*rootOptions
	dryRun bool
}

func newMigrateCommand(root *rootOptions) *cobra.Command {
	opts := &migrateOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the tables of all registered models",
		Long: `Create a table for every model in the schema file, in foreign key
dependency order. Existing tables are left untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, false)
		},
	}
	cmd.PersistentFlags().BoolVar(&opts.dryRun, "dry-run", false, "print the SQL without executing it")

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Drop the tables of all registered models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, true)
		},
	})

	return cmd
}

func (o *migrateOptions) run(cmd *cobra.Command, down bool) error {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return err
	}

	registry, err := app.LoadRegistry(cfg.Schema.Path)
	if err != nil {
		return err
	}

	if o.dryRun {
		runner, err := newRunner(cfg, nil, nil)
		if err != nil {
			return err
		}
		return printPlan(cmd, runner, registry, down)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, _, err := app.OpenDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	runner, err := newRunner(cfg, db, logger)
	if err != nil {
		return err
	}

	verb := "created"
	if down {
		verb = "dropped"
		err = runner.Down(ctx, registry)
	} else {
		err = runner.Up(ctx, registry)
	}
	if err != nil {
		return err
	}

	ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("%s %d tables", verb, registry.Count()), o.noColor)
	return nil
}

func newRunner(cfg *config.Config, db *sql.DB, logger *zap.Logger) (*migrate.Runner, error) {
	dialect, err := crud.DialectFor(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}
	gen, err := codegen.NewDDLGenerator(dialect.Name())
	if err != nil {
		return nil, err
	}
	return migrate.NewRunner(db, gen, logger), nil
}

// printPlan writes the statements a migration would execute
func printPlan(cmd *cobra.Command, runner *migrate.Runner, registry *schema.Registry, down bool) error {
	plan := runner.Plan
	if down {
		plan = runner.PlanDown
	}

	statements, err := plan(registry)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, stmt := range statements {
		fmt.Fprintf(out, "-- %s.%s\n%s\n\n", stmt.Model.App, stmt.Model.Name, stmt.SQL)
	}
	return nil
}
