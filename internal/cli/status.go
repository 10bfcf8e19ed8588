package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show cached state and pending writes",
		Long: `Show the locally cached roster with attendance counters, the cached
record count, and any writes still queued for the remote store. Reads
only the local mirror; works fully offline.

Example:
  choirsync status
  choirsync status --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, cmd)
		},
	}
	return cmd
}

func runStatus(opts *RootOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	app, err := openApp(cfg, remoteNone)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open mirror", err)
	}
	ctx := context.Background()
	defer app.Close(ctx)

	app.State.Start(ctx)

	if opts.Format == "json" {
		pending := make([]map[string]interface{}, 0, app.Queue.Len())
		for _, entry := range app.Queue.Entries() {
			pending = append(pending, map[string]interface{}{
				"collection": entry.Collection,
				"id":         entry.DocID,
				"timestamp":  entry.EnqueuedAt,
			})
		}
		return formatter.Success(map[string]interface{}{
			"members": len(app.State.Members()),
			"records": len(app.State.Records()),
			"pending": pending,
		})
	}

	out := app.State.Report()
	if n := app.Queue.Len(); n > 0 {
		out += fmt.Sprintf("\n%d write(s) queued for the remote store:\n", n)
		for _, entry := range app.Queue.Entries() {
			out += fmt.Sprintf("  %s/%s\n", entry.Collection, entry.DocID)
		}
	} else {
		out += "\nNo writes queued.\n"
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}
