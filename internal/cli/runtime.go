package cli

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/ghalamif/PourFlow/internal/adapters/announce"
	"github.com/ghalamif/PourFlow/internal/adapters/gpio"
	"github.com/ghalamif/PourFlow/pkg/pourflow"
)

// bindArgs overrides the configured binding when ingredients are given on
// the command line.
func bindArgs(cfg *pourflow.Config, args []string) {
	if len(args) > 0 {
		cfg.Binding = append([]string(nil), args...)
	}
}

// newRuntime builds a runtime that announces on the command's stdout. In
// simulate mode every pump command is echoed as well.
func newRuntime(opts *RootOptions, cmd *cobra.Command, cfg *pourflow.Config, extra ...pourflow.RuntimeOption) (*pourflow.Runtime, error) {
	errOut := &lockedWriter{w: cmd.ErrOrStderr()}
	rtOpts := []pourflow.RuntimeOption{
		pourflow.WithAnnouncer(announce.NewWriter(cmd.OutOrStdout())),
		pourflow.WithLogger(opts.logger(errOut)),
	}
	if cfg.Hardware.Driver == pourflow.DriverSim {
		sim := gpio.NewSimDriver()
		if opts.Simulate || opts.Verbose {
			sim.OnSet(func(c gpio.LevelChange) {
				state := "off"
				if c.Flowing {
					state = "on"
				}
				fmt.Fprintf(errOut, "[sim] channel %d %s\n", c.Channel, state)
			})
		}
		rtOpts = append(rtOpts, pourflow.WithDriver(sim))
	}

	rt, err := pourflow.NewRuntime(cfg, append(rtOpts, extra...)...)
	if err != nil {
		return nil, classify(err)
	}
	return rt, nil
}

// classify maps setup failures to exit codes: operator mistakes are command
// errors, anything else (hardware, journal) is a failure.
func classify(err error) error {
	var (
		binding *pourflow.InvalidBindingError
		ingr    *pourflow.UnknownIngredientError
		recipe  *pourflow.UnknownRecipeError
		missing *pourflow.MissingIngredientError
		chans   *pourflow.InvalidChannelConfigError
	)
	switch {
	case errors.As(err, &binding), errors.As(err, &ingr), errors.As(err, &recipe),
		errors.As(err, &missing), errors.As(err, &chans):
		return WrapExitError(ExitCommandError, "invalid setup", err)
	default:
		return WrapExitError(ExitFailure, "start runtime", err)
	}
}

// lockedWriter serializes writes from pump goroutines and the logger.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
