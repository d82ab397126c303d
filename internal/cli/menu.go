package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ghalamif/PourFlow/internal/adapters/catalog"
	"github.com/ghalamif/PourFlow/internal/app/menu"
	"github.com/ghalamif/PourFlow/internal/domain"
	"github.com/ghalamif/PourFlow/pkg/pourflow"
)

// NewAvailableCommand creates the available command.
func NewAvailableCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "available [ingredient...]",
		Short: "List the drinks a set of ingredients can make",
		Long: `List the drinks a set of ingredients can make. Up to eight ingredients
may be given; without arguments the configured binding is used.`,
		Example: `  pourflow available Gin "Dry Vermouth" Vodka`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAvailable(rootOpts, cmd, args)
		},
	}
}

func runAvailable(opts *RootOptions, cmd *cobra.Command, args []string) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return WrapExitError(ExitCommandError, "load catalog", err)
	}
	names := cfg.Binding
	if len(args) > 0 {
		names = args
	}
	b, err := domain.PadBinding(names)
	if err != nil {
		return WrapExitError(ExitCommandError, "binding", err)
	}

	out := cmd.OutOrStdout()
	available := menu.Available(b, cat).Sorted()
	if len(available) == 0 {
		fmt.Fprintln(out, "No cocktails for those ingredients")
		return nil
	}
	for _, name := range available {
		fmt.Fprintln(out, name)
	}
	return nil
}

// NewDrinksCommand creates the drinks command.
func NewDrinksCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "drinks",
		Short: "List every recipe in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			cat, err := catalog.Load(cfg.Catalog.Path)
			if err != nil {
				return WrapExitError(ExitCommandError, "load catalog", err)
			}
			out := cmd.OutOrStdout()
			for _, r := range cat.Recipes() {
				printRecipe(out, r)
			}
			return nil
		},
	}
}

func printRecipe(w io.Writer, r domain.Recipe) {
	parts := make([]string, 0, len(r.Steps))
	for _, s := range r.Steps {
		parts = append(parts, fmt.Sprintf("%g ml %s", s.Volume, s.Ingredient))
	}
	fmt.Fprintf(w, "%s: %s\n", r.Name, strings.Join(parts, ", "))
	if r.Note != "" {
		fmt.Fprintf(w, "    %s\n", r.Note)
	}
}

// NewIngredientsCommand creates the ingredients command.
func NewIngredientsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ingredients",
		Short: "List every ingredient with the number of recipes using it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			cat, err := catalog.Load(cfg.Catalog.Path)
			if err != nil {
				return WrapExitError(ExitCommandError, "load catalog", err)
			}
			out := cmd.OutOrStdout()
			for _, u := range menu.IngredientUsage(cat) {
				fmt.Fprintf(out, "%3d  %s\n", u.Recipes, u.Ingredient)
			}
			return nil
		},
	}
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	var scale float64
	cmd := &cobra.Command{
		Use:   "plan <recipe>",
		Short: "Show which channel pours what, and for how long",
		Args:  cobra.ExactArgs(1),
		Example: `  pourflow plan "DRY MARTINI" --config ./data/config.yaml
  pourflow plan VESPER --scale 2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(rootOpts, cmd, args[0], scale)
		},
	}
	cmd.Flags().Float64Var(&scale, "scale", 0, "multiply every volume (default: dispense.scale)")
	return cmd
}

func runPlan(opts *RootOptions, cmd *cobra.Command, name string, scale float64) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	// planning never pours
	cfg.Hardware.Driver = pourflow.DriverSim
	cfg.Metrics.Addr = "off"
	cfg.Journal.Dir = pourflow.JournalOff
	if scale > 0 {
		cfg.Dispense.Scale = scale
	}

	rt, err := newRuntime(opts, cmd, cfg, pourflow.WithAnnouncer(pourflow.NewCallbackAnnouncer(nil)))
	if err != nil {
		return err
	}
	defer rt.Shutdown(cmd.Context())

	recipe, planned, err := rt.Plan(name)
	if err != nil {
		return classify(err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, recipe.Name)
	for _, pt := range planned {
		fmt.Fprintf(out, "  channel %d  %-20s %6.1f ml  %s\n", pt.Channel, pt.Ingredient, pt.Volume, pt.Duration)
	}
	if recipe.Note != "" {
		fmt.Fprintf(out, "  %s\n", recipe.Note)
	}
	return nil
}
