package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"choirsync/internal/roster"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	Local bool
	Force bool
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed <roster.json>",
		Short: "Validate and upload a roster seed file",
		Long: `Validate a roster seed file against the roster schema and upload it as
the members_list document. Refuses to overwrite an existing roster
unless --force is given.

Example:
  choirsync seed ./infos.json
  choirsync seed ./infos.json --force`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(opts, cmd, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Local, "local", false, "run against an in-memory remote (no network)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "replace an existing roster")

	return cmd
}

func runSeed(opts *SeedOptions, cmd *cobra.Command, path string) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	members, err := roster.Load(path, cfg.IDPrefix)
	if err != nil {
		return WrapExitError(ExitFailure, "roster validation failed", err)
	}
	formatter.VerboseLog("roster valid: %d members", len(members))

	mode := remoteLive
	if opts.Local {
		mode = remoteLocal
	}
	app, err := openApp(cfg, mode)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start", err)
	}
	ctx := context.Background()
	defer app.Close(ctx)

	app.State.Start(ctx)
	if len(app.State.Members()) > 0 && !opts.Force {
		return NewExitError(ExitCommandError, "roster already exists; use --force to replace it")
	}

	app.State.SeedRoster(ctx, members)
	app.Engine.ProcessPending(ctx)

	if opts.Format == "json" {
		return formatter.Success(map[string]interface{}{
			"members": len(members),
			"queued":  app.Queue.Len(),
		})
	}
	msg := fmt.Sprintf("Seeded %d members.", len(members))
	if app.Queue.Len() > 0 {
		msg += " Upload queued until the remote is reachable."
	}
	return formatter.Success(msg)
}
