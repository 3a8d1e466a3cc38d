package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/toolbox/internal/catalog"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Reconcile the cart whenever the catalog changes",
		Long: `Watch the catalog file and reconcile the active cart after every
change: line item details are refreshed and lines above the new balance
are reported. Runs until interrupted.

Example:
  toolbox watch --catalog ./catalog.cue`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(a *app) error {
				file, err := a.catalog()
				if err != nil {
					return err
				}
				watcher, err := newReconcileWatcher(a, file)
				if err != nil {
					return err
				}
				defer watcher.Close()

				ctx, cancel := signalContext(cmd, a.logger)
				defer cancel()

				// Bring the cart up to date before waiting for changes.
				f := rootOpts.formatter(cmd)
				if err := reportReconcile(f, a.engine.Reconcile(ctx, file)); err != nil {
					return err
				}

				// Cancellation is the normal way to stop.
				if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
					return WrapExitError(ExitCommandError, "catalog watcher stopped", err)
				}
				return nil
			})
		},
	}
}

// newReconcileWatcher watches file and reconciles the cart after each
// reload, logging lines the new balances no longer cover.
func newReconcileWatcher(a *app, file *catalog.File) (*catalog.Watcher, error) {
	watcher, err := catalog.NewWatcher(file, func(ctx context.Context) {
		report := a.engine.Reconcile(ctx, file)
		if !report.Success {
			a.logger.Warn("reconcile failed", "error", report.Error)
			return
		}
		a.logger.Info("cart reconciled",
			"refreshed", report.Refreshed,
			"changed", report.Changed,
			"missing", len(report.Missing),
			"over_balance", len(report.OverBalance),
		)
		for _, issue := range report.OverBalance {
			a.logger.Warn("line exceeds balance",
				"item_id", issue.ID,
				"quantity", issue.Quantity,
				"max_available", issue.MaxAvailable,
			)
		}
	}, a.logger)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to watch %s", file.Path()), err)
	}
	return watcher, nil
}
