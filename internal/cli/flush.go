package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ghalamif/PourFlow/pkg/pourflow"
)

// NewFlushCommand creates the flush command.
func NewFlushCommand(rootOpts *RootOptions) *cobra.Command {
	var duration time.Duration
	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Run every pump to rinse the lines, then exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFlush(rootOpts, cmd, duration)
		},
	}
	cmd.Flags().DurationVarP(&duration, "duration", "d", 0, "how long to run the pumps (default: dispense.flush_duration)")
	return cmd
}

func runFlush(opts *RootOptions, cmd *cobra.Command, d time.Duration) error {
	if d < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("flush duration must be positive, got %s", d))
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	// the binding is irrelevant for a flush
	if len(cfg.Binding) == 0 {
		cfg.Binding = make([]string, pourflow.ChannelCount)
	}
	cfg.Metrics.Addr = "off"

	rt, err := newRuntime(opts, cmd, cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h, err := rt.Flush(d)
	if err != nil {
		_ = rt.Shutdown(context.Background())
		return WrapExitError(ExitCommandError, "flush", err)
	}

	res, waitErr := h.Wait(ctx)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// Shutdown closes every pump, including after an interrupt
	if err := rt.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "shutdown", err)
	}
	if waitErr != nil {
		return nil
	}
	if len(res.Faults) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d channel(s) failed during flush", len(res.Faults)))
	}
	return nil
}
