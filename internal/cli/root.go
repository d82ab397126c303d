package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ghalamif/PourFlow/pkg/pourflow"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	EnvFile    string
	Simulate   bool
	Verbose    bool
}

// NewRootCommand creates the root command for the PourFlow CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "pourflow",
		Short: "PourFlow - eight channel pump dispenser",
		Long: `Drive an eight channel pump dispenser: bind ingredients to channels,
see which drinks they make, and pour recipes from the console.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnv(opts.EnvFile)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to config file (default: built-in simulated setup)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file loaded before the config")
	cmd.PersistentFlags().BoolVar(&opts.Simulate, "simulate", false, "use the simulated pump driver regardless of config")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewAvailableCommand(opts))
	cmd.AddCommand(NewDrinksCommand(opts))
	cmd.AddCommand(NewIngredientsCommand(opts))
	cmd.AddCommand(NewPlanCommand(opts))
	cmd.AddCommand(NewFlushCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))

	return cmd
}

// loadEnv reads a dotenv file if it exists; variables already set win.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return WrapExitError(ExitCommandError, fmt.Sprintf("load %s", path), err)
	}
	return nil
}

func (o *RootOptions) loadConfig() (*pourflow.Config, error) {
	var cfg *pourflow.Config
	if o.ConfigPath == "" {
		cfg = pourflow.DefaultConfig()
	} else {
		var err error
		if cfg, err = pourflow.LoadConfig(o.ConfigPath); err != nil {
			return nil, WrapExitError(ExitCommandError, "load config", err)
		}
	}
	if o.Simulate {
		cfg.Hardware.Driver = pourflow.DriverSim
	}
	return cfg, nil
}

func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
