package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"capsolve/internal/config"
	"capsolve/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app holds the state shared by every command of one invocation.
type app struct {
	// Global flags
	configPath string
	verbose    bool

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "capsolve",
		Short: "capsolve - capability goal resolution",
		Long: `capsolve decides whether a type satisfies a capability.

A world file declares capabilities, implementations, structs and enums, and a list of
goals. Each goal is proven, ambiguous, overflowed or has no solution; goals may declare
the outcome they expect.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.Sync()
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "capsolve.yaml", "Config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")

	root.AddCommand(a.solveCmd())
	root.AddCommand(a.candidatesCmd())
	root.AddCommand(a.factsCmd())
	root.AddCommand(a.watchCmd())
	root.AddCommand(a.configCmd())
	return root
}

// setup loads the config and initializes logging.
func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.verbose {
		cfg.Logging.DebugMode = true
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", a.configPath, err)
	}
	if err := logging.Initialize(cfg.Logging.Settings()); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	a.cfg = cfg

	logging.Get(logging.CategoryBoot).Debug("config loaded",
		zap.String("path", a.configPath),
		zap.Int("overflow_depth", cfg.Solver.OverflowDepth),
		zap.Int("parallelism", cfg.Solver.Parallelism))
	return nil
}

// worldPath returns the world file argument, or the configured one.
func (a *app) worldPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return a.cfg.World.Path
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
