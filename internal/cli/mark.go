package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"choirsync/internal/domain"
)

// MarkOptions holds flags for the mark command.
type MarkOptions struct {
	*RootOptions
	Local bool
	All   bool
	Title string
}

// NewMarkCommand creates the mark command.
func NewMarkCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MarkOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "mark <date> [member-id...]",
		Short: "Record attendance for a date",
		Long: `Record attendance for a session date. The listed member IDs replace the
date's present set; an empty set deletes the record. The write lands in
the local mirror immediately and reaches the remote store when
connectivity allows.

Example:
  choirsync mark 2025-06-01 ASC-001 ASC-002 --title "Sunday Service"
  choirsync mark 2025-06-07 --all
  choirsync mark 2025-06-01`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMark(opts, cmd, args)
		},
	}

	cmd.Flags().BoolVar(&opts.Local, "local", false, "run against an in-memory remote (no network)")
	cmd.Flags().BoolVar(&opts.All, "all", false, "mark every non-exempt member present")
	cmd.Flags().StringVar(&opts.Title, "title", "", "session title for the date")

	return cmd
}

func runMark(opts *MarkOptions, cmd *cobra.Command, args []string) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	date, err := time.ParseInLocation("2006-01-02", args[0], time.Local)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("invalid date %q", args[0]), err)
	}
	ids := args[1:]
	if opts.All && len(ids) > 0 {
		return NewExitError(ExitCommandError, "--all and explicit member IDs are mutually exclusive")
	}

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
	ctx := context.Background()
	defer app.Close(ctx)

	app.State.Start(ctx)
	if len(app.State.Members()) == 0 {
		return NewExitError(ExitCommandError, "no roster loaded; run seed first")
	}

	app.State.SetDate(date)
	switch {
	case opts.All:
		app.State.SelectAll()
	default:
		app.State.SetPresent(ids)
	}
	if opts.Title != "" {
		app.State.SetTitle(opts.Title)
	}
	app.State.SaveAttendance(ctx)
	app.Engine.ProcessPending(ctx)

	present := app.State.CurrentPresentIDs()
	key := domain.DateKey(date)
	queued := app.Queue.Len()

	if opts.Format == "json" {
		return formatter.Success(map[string]interface{}{
			"date":        key,
			"present_ids": present,
			"queued":      queued,
		})
	}
	if len(present) == 0 {
		return formatter.Success(fmt.Sprintf("Cleared attendance record for %s.", key))
	}
	msg := fmt.Sprintf("Recorded %d present for %s.", len(present), key)
	if queued > 0 {
		msg += fmt.Sprintf(" %d write(s) queued for retry.", queued)
	}
	return formatter.Success(msg)
}
