package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ghalamif/PourFlow/internal/adapters/console"
	"github.com/ghalamif/PourFlow/pkg/pourflow"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [ingredient x8]",
		Short: "Start the dispenser and read commands from stdin",
		Long: `Start the dispenser with the configured binding, or with the eight
ingredients given as arguments (use "" for an empty channel).

Commands are read one per line:
  mix <recipe>        pour a recipe
  pour <ingredient>   pour a single measure
  stop                close every pump
  menu                list the drinks the binding can make
  flush [duration]    run every pump to rinse the lines`,
		Example: `  pourflow run Gin "Dry Vermouth" Vodka "" "" "" "" ""
  pourflow run --config ./data/config.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(rootOpts, cmd, args)
		},
	}
	return cmd
}

func runRun(opts *RootOptions, cmd *cobra.Command, args []string) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	bindArgs(cfg, args)

	src := console.NewSource(cmd.InOrStdin())
	rt, err := newRuntime(opts, cmd, cfg, pourflow.WithCommandSource(src))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rt.Run(ctx); err != nil && err != context.Canceled {
		return WrapExitError(ExitFailure, "runtime exited", err)
	}
	return nil
}
