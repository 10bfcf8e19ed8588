package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"choirsync/internal/roster"
)

// connectivityProbeInterval is how often the live remote is pinged to
// detect online transitions.
const connectivityProbeInterval = 15 * time.Second

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Local bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the sync engine",
		Long: `Start the sync engine: load the local mirror, reconcile it with the
remote document store, and keep draining queued writes in the background
until interrupted.

Example:
  choirsync run --config ./choirsync.yaml
  choirsync run --local --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Local, "local", false, "run against an in-memory remote (no network)")

	return cmd
}

func runSync(opts *RunOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	mode := remoteLive
	if opts.Local {
		mode = remoteLocal
	}
	app, err := openApp(cfg, mode)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start", err)
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()
	defer app.Close(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	app.State.Start(ctx)

	// A blank installation gets its roster from the seed file.
	if len(app.State.Members()) == 0 && cfg.Roster != "" {
		members, err := roster.Load(cfg.Roster, cfg.IDPrefix)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load roster seed", err)
		}
		slog.Info("seeding roster", "file", cfg.Roster, "members", len(members))
		app.State.SeedRoster(ctx, members)
	}

	if app.Live() {
		go app.Mongo().WatchConnectivity(ctx, connectivityProbeInterval, app.Engine.NotifyOnline)
	}

	slog.Info("sync engine starting", "mirror", cfg.Mirror, "live", app.Live())
	fmt.Fprintln(cmd.OutOrStdout(), "Sync engine started. Queued writes drain automatically.")
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	if err := app.Engine.Run(ctx); err != nil && err != context.Canceled && err != context.DeadlineExceeded {
		return WrapExitError(ExitFailure, "engine error", err)
	}

	slog.Info("sync engine stopped gracefully")
	return nil
}
