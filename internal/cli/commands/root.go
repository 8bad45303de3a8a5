// Package commands implements the zcapi command line
package commands

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/zcapi-go/zcapi/internal/cli/config"
	"github.com/zcapi-go/zcapi/internal/cli/ui"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

type rootOptions struct {
	configFile string
	noColor    bool
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "zcapi",
		Short: "Zero-configuration JSON API over registered models",
		Long: color.CyanString(`zcapi - zero-configuration model API

zcapi reads model definitions from a schema file and serves every model
at /api/{app}/{model}/ and /api/{app}/{model}/{id}/:
  GET lists or reads, POST creates or updates from form fields,
  DELETE removes one record or all of them.`),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file (default ./zcapi.yml)")
	rootCmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(newServeCommand(opts))
	rootCmd.AddCommand(newMigrateCommand(opts))
	rootCmd.AddCommand(newModelsCommand(opts))
	rootCmd.AddCommand(newVersionCommand(opts))

	return rootCmd
}

// loadConfig reads the configuration, printing a formatted error on failure
func (o *rootOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		cmd.PrintErr(ui.ConfigError(err, o.noColor))
		return nil, err
	}
	return cfg, nil
}
