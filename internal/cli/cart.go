package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/toolbox/internal/catalog"
	"github.com/roach88/toolbox/internal/engine"
	"github.com/roach88/toolbox/internal/ir"
)

// CartAddOptions holds flags for the cart add command.
type CartAddOptions struct {
	*RootOptions
	Quantity int
	Notes    string
}

// CartContextOptions holds flags for the cart context command.
type CartContextOptions struct {
	*RootOptions
	EmployeeID string
	Location   string
}

// mutationOutput is the JSON payload of a successful cart mutation.
type mutationOutput struct {
	Result engine.Result `json:"result"`
	Cart   *ir.CartState `json:"cart"`
}

// NewCartCommand creates the cart command and its subcommands.
func NewCartCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Inspect and change the active cart",
	}

	cmd.AddCommand(newCartShowCommand(rootOpts))
	cmd.AddCommand(newCartAddCommand(rootOpts))
	cmd.AddCommand(newCartUpdateCommand(rootOpts))
	cmd.AddCommand(newCartRemoveCommand(rootOpts))
	cmd.AddCommand(newCartClearCommand(rootOpts))
	cmd.AddCommand(newCartCheckoutCommand(rootOpts))
	cmd.AddCommand(newCartContextCommand(rootOpts))
	cmd.AddCommand(newCartReconcileCommand(rootOpts))

	return cmd
}

func newCartShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show",
		Short:         "Print the active cart",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, cmd, func(a *app) error {
				f := opts.formatter(cmd)
				state := a.engine.LoadCart(cmd.Context())
				if f.Format == "json" {
					return f.Success(state)
				}
				printCart(f.Writer, state)
				return nil
			})
		},
	}
}

func newCartAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CartAddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add <item-id>",
		Short: "Add an item from the catalog",
		Long: `Add units of a catalog item to the cart.

The item is looked up in the configured catalog and checked against its
balance. If the cart already holds some of the item and the balance cannot
cover the whole request, only the remainder is added and a warning is shown.

Example:
  toolbox cart add --catalog ./catalog.yaml A --quantity 3
  toolbox cart add A -q 2 --notes "for bay 4"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCartAdd(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Quantity, "quantity", "q", 1, "units to add")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "line notes")

	return cmd
}

func runCartAdd(opts *CartAddOptions, id string, cmd *cobra.Command) error {
	return withApp(opts.RootOptions, cmd, func(a *app) error {
		cat, err := a.catalog()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		item, err := lookupItem(ctx, cat, id)
		if err != nil {
			return err
		}

		r := a.engine.AddItem(ctx, item, opts.Quantity, opts.Notes)
		return reportMutation(ctx, opts.formatter(cmd), a, r,
			fmt.Sprintf("%s: %d in cart", id, r.Quantity))
	})
}

// lookupItem returns nil for ids the catalog does not know, which the
// engine rejects as "Item not found".
func lookupItem(ctx context.Context, lookup catalog.Lookup, id string) (*ir.CatalogItem, error) {
	item, err := lookup.Get(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, engine.MsgLookupFailed, err)
	}
	return &item, nil
}

func newCartUpdateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "update <item-id> <quantity>",
		Short: "Set a line's quantity",
		Long: `Set the quantity of a cart line. A quantity of zero or less removes
the line. Updating an item that is not in the cart changes nothing.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			quantity, err := strconv.Atoi(args[1])
			if err != nil {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid quantity %q", args[1]))
			}
			return withApp(opts, cmd, func(a *app) error {
				ctx := cmd.Context()
				r := a.engine.UpdateQuantity(ctx, args[0], quantity)
				text := fmt.Sprintf("%s: %d in cart", args[0], r.Quantity)
				if quantity <= 0 {
					text = fmt.Sprintf("%s: removed", args[0])
				}
				return reportMutation(ctx, opts.formatter(cmd), a, r, text)
			})
		},
	}
}

func newCartRemoveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "remove <item-id>",
		Short:         "Remove a line from the cart",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, cmd, func(a *app) error {
				ctx := cmd.Context()
				r := a.engine.RemoveItem(ctx, args[0])
				return reportMutation(ctx, opts.formatter(cmd), a, r, fmt.Sprintf("%s: removed", args[0]))
			})
		},
	}
}

func newCartClearCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "clear",
		Short:         "Remove every line, keeping the session",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, cmd, func(a *app) error {
				ctx := cmd.Context()
				return reportMutation(ctx, opts.formatter(cmd), a, a.engine.Clear(ctx), "Cart cleared.")
			})
		},
	}
}

func newCartCheckoutCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "checkout",
		Short: "Complete checkout and end the cart",
		Long: `Mark the active cart as checked out. The cart and its metadata are
removed; its last snapshot stays in history and can be restored.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, cmd, func(a *app) error {
				ctx := cmd.Context()
				return reportMutation(ctx, opts.formatter(cmd), a, a.engine.CompleteCheckout(ctx), "Checkout complete.")
			})
		},
	}
}

func newCartContextCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CartContextOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "context",
		Short:         "Record the employee and location building the cart",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts.RootOptions, cmd, func(a *app) error {
				ctx := cmd.Context()
				r := a.engine.SetContext(ctx, opts.EmployeeID, opts.Location)
				return reportMutation(ctx, opts.formatter(cmd), a, r, "Cart context updated.")
			})
		},
	}

	cmd.Flags().StringVar(&opts.EmployeeID, "employee", "", "employee id")
	cmd.Flags().StringVar(&opts.Location, "location", "", "location")

	return cmd
}

func newCartReconcileCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Refresh line items from the catalog",
		Long: `Refresh every line's item details from the catalog and report lines
whose quantity the current balance no longer covers. Quantities are not
changed.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, cmd, func(a *app) error {
				cat, err := a.catalog()
				if err != nil {
					return err
				}
				report := a.engine.Reconcile(cmd.Context(), cat)
				return reportReconcile(opts.formatter(cmd), report)
			})
		},
	}
}

// reportMutation prints a successful result (with any warning) or converts
// a failed one to an ExitFailure.
func reportMutation(ctx context.Context, f *OutputFormatter, a *app, r engine.Result, text string) error {
	if !r.Success {
		return resultError(f, r)
	}
	if f.Format == "json" {
		return f.Success(mutationOutput{Result: r, Cart: a.engine.LoadCart(ctx)})
	}
	fmt.Fprintln(f.Writer, text)
	if r.Warning != "" {
		fmt.Fprintf(f.Writer, "Warning: %s\n", r.Warning)
	}
	return nil
}

func reportReconcile(f *OutputFormatter, report engine.ReconcileReport) error {
	if !report.Success {
		return resultError(f, report.Result)
	}
	if f.Format == "json" {
		return f.Success(report)
	}

	fmt.Fprintf(f.Writer, "Refreshed %d line(s), %d changed.\n", report.Refreshed, report.Changed)
	if len(report.Missing) > 0 {
		fmt.Fprintf(f.Writer, "Not in catalog: %s\n", strings.Join(report.Missing, ", "))
	}
	for _, issue := range report.OverBalance {
		fmt.Fprintf(f.Writer, "Over balance: %s has %d, %d available (%s)\n",
			issue.ID, issue.Quantity, issue.MaxAvailable, issue.Reason)
	}
	return nil
}

// printCart writes a human-readable cart listing.
func printCart(w io.Writer, state *ir.CartState) {
	if state == nil {
		fmt.Fprintln(w, "No active cart.")
		return
	}

	fmt.Fprintf(w, "Session %s (updated %s)\n", state.SessionID, state.LastUpdated.Format(time.RFC3339))
	if state.EmployeeID != "" || state.Location != "" {
		fmt.Fprintf(w, "Employee: %s  Location: %s\n", state.EmployeeID, state.Location)
	}
	if len(state.Items) == 0 {
		fmt.Fprintln(w, "Cart is empty.")
		return
	}
	for _, line := range state.Items {
		fmt.Fprintf(w, "  %-12s %4d  %s", line.ID, line.Quantity, line.Item.Name)
		if line.Notes != "" {
			fmt.Fprintf(w, "  (%s)", line.Notes)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Total: %d item(s) in %d line(s)\n", state.TotalItems, len(state.Items))
}
