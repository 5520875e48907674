// Package cmd defines and implements the CLI commands for the gamecatalog executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/gamecatalog/internal/app"
	"github.com/JakeFAU/gamecatalog/internal/catalog"
	"github.com/JakeFAU/gamecatalog/internal/config"
)

// Exit codes returned by Execute.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitNoTargets = 2
)

// newApp is the application factory. It's a variable so tests can swap in
// their own wiring.
var newApp = app.New

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gamecatalog",
		Short: "Captures game catalog pages into a local dataset.",
		Long: `gamecatalog visits game detail pages politely (rate limited, retried, and
robots.txt aware), resolves their metadata from structured data and page
markup, downloads cover images, and merges the results into a dataset keyed
by slug.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "config file (yaml, json or toml)")

	cmd.AddCommand(newCaptureCmd())

	return cmd
}

// Execute is the main entry point. It returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return run(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}
	_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
	if errors.Is(err, catalog.ErrNoTargets) {
		_, _ = fmt.Fprintln(stderr, "supply targets as arguments or with --input-file")
		return ExitNoTargets
	}
	return ExitFailure
}

// loadConfig resolves configuration for cmd, honoring --config and any
// flags the command defines.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, fmt.Errorf("read --config: %w", err)
	}
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func syncLogger(logger *zap.Logger) {
	// Syncing stderr fails on some platforms; nothing useful can be done about it.
	_ = logger.Sync()
}
