package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/toolbox/internal/catalog"
	"github.com/roach88/toolbox/internal/httpapi"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr  string
	Watch bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the cart over HTTP",
		Long: `Serve the cart API for browser and kiosk front-ends.

Routes cover the cart, history, backups and the catalog; Prometheus
metrics are exposed on /metrics. With --watch, catalog file changes
trigger a reconciliation of the active cart.

Example:
  toolbox serve --catalog ./catalog.yaml --addr :8080
  toolbox serve --backend badger --db ./cart-data --watch`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "reconcile the cart when the catalog file changes")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	return withApp(opts.RootOptions, cmd, func(a *app) error {
		ctx, cancel := signalContext(cmd, a.logger)
		defer cancel()

		var lookup catalog.Lookup = catalog.NewStatic()
		if a.config.Catalog.Path != "" {
			file, err := a.catalog()
			if err != nil {
				return err
			}
			lookup = file

			if opts.Watch {
				watcher, err := newReconcileWatcher(a, file)
				if err != nil {
					return err
				}
				defer watcher.Close()
				go func() {
					if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
						a.logger.Error("catalog watcher stopped", "error", err)
					}
				}()
			}
		} else if opts.Watch {
			return NewExitError(ExitCommandError, "--watch requires a catalog: pass --catalog or set catalog.path")
		}

		addr := a.config.Server.Addr
		if opts.Addr != "" {
			addr = opts.Addr
		}

		server := httpapi.NewServer(a.engine, lookup, a.registry, a.logger)
		if err := server.ListenAndServe(ctx, addr); err != nil {
			return WrapExitError(ExitCommandError, "server error", err)
		}
		a.logger.Info("server stopped")
		return nil
	})
}
