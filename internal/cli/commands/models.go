package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zcapi-go/zcapi/internal/app"
	"github.com/zcapi-go/zcapi/internal/cli/ui"
	"github.com/zcapi-go/zcapi/internal/orm/schema"
)

func newModelsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "models [app.Model...]",
		Short: "List registered models with their fields and relations",
		Long: `List every model in the schema file, or only the named ones. Names are
matched case-insensitively as app.Model.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}

			registry, err := app.LoadRegistry(cfg.Schema.Path)
			if err != nil {
				return err
			}

			models, err := selectModels(cmd, registry, args, opts.noColor)
			if err != nil {
				return err
			}

			ui.RenderModels(cmd.OutOrStdout(), models, opts.noColor)
			return nil
		},
	}
}

func selectModels(cmd *cobra.Command, registry *schema.Registry, refs []string, noColor bool) ([]*schema.Model, error) {
	if len(refs) == 0 {
		return registry.All(), nil
	}

	models := make([]*schema.Model, 0, len(refs))
	for _, ref := range refs {
		m, ok := registry.Lookup(ref)
		if !ok {
			suggestions := ui.FindSimilar(ref, ui.ModelNames(registry.All()))
			cmd.PrintErr(ui.ModelNotFoundError(ref, suggestions, noColor))
			return nil, fmt.Errorf("model %s is not registered", ref)
		}
		models = append(models, m)
	}
	return models, nil
}
