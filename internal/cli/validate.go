package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ghalamif/PourFlow/internal/adapters/catalog"
	"github.com/ghalamif/PourFlow/internal/app/menu"
	"github.com/ghalamif/PourFlow/internal/domain"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the config, catalog and binding without touching any pump",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return WrapExitError(ExitCommandError, "load catalog", err)
	}
	out := cmd.OutOrStdout()

	if len(cfg.Binding) == 0 {
		fmt.Fprintf(out, "config %s looks good (%d recipes, no binding)\n", configName(opts), len(cat.Recipes()))
		return nil
	}
	b, err := domain.Bind(cfg.Binding)
	if err != nil {
		return WrapExitError(ExitCommandError, "binding", err)
	}
	if err := menu.ValidateKnownIngredients(b, cat); err != nil {
		return WrapExitError(ExitCommandError, "binding", err)
	}

	available := menu.Available(b, cat).Sorted()
	fmt.Fprintf(out, "config %s looks good (%d recipes, %d available)\n", configName(opts), len(cat.Recipes()), len(available))
	return nil
}

func configName(opts *RootOptions) string {
	if opts.ConfigPath == "" {
		return "<built-in>"
	}
	return opts.ConfigPath
}
