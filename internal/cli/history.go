package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/toolbox/internal/engine"
)

// NewHistoryCommand creates the history command and its subcommands.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List and restore past cart snapshots",
	}

	cmd.AddCommand(newHistoryListCommand(rootOpts))
	cmd.AddCommand(newHistoryRestoreCommand(rootOpts))

	return cmd
}

func newHistoryListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List snapshots, most recent first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, cmd, func(a *app) error {
				f := opts.formatter(cmd)
				history := a.engine.ListHistory(cmd.Context())
				if f.Format == "json" {
					return f.Success(history)
				}

				if len(history) == 0 {
					fmt.Fprintln(f.Writer, "No history.")
					return nil
				}
				for _, entry := range history {
					fmt.Fprintf(f.Writer, "%s  %s  %d item(s) in %d line(s)\n",
						entry.SessionID,
						entry.ArchivedAt.Format(time.RFC3339),
						entry.TotalItems,
						len(entry.Items),
					)
				}
				return nil
			})
		},
	}
}

func newHistoryRestoreCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <history-id>",
		Short: "Make a snapshot the active cart",
		Long: `Replace the active cart with a history snapshot. The restored cart gets
a new session id; the snapshot itself stays in history.

Example:
  toolbox history list
  toolbox history restore history_session_1768471200000_3f2a9c1b7e44_1768474800000`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, cmd, func(a *app) error {
				f := opts.formatter(cmd)
				ctx := cmd.Context()
				if !a.engine.RestoreFromHistory(ctx, args[0]) {
					return resultError(f, engine.Result{Error: engine.MsgHistoryNotFound})
				}

				state := a.engine.LoadCart(ctx)
				if f.Format == "json" {
					return f.Success(state)
				}
				fmt.Fprintf(f.Writer, "Restored %s.\n", args[0])
				printCart(f.Writer, state)
				return nil
			})
		},
	}
}
