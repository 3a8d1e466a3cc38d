package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCatalogCommand creates the catalog command and its subcommands.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the inventory catalog",
	}

	cmd.AddCommand(newCatalogListCommand(rootOpts))

	return cmd
}

func newCatalogListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List catalog items and balances",
		Long: `List the items in the catalog file given by --catalog or catalog.path.
YAML (.yaml, .yml) and CUE (.cue) catalogs are supported.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			f := opts.formatter(cmd)
			f.VerboseLog("Loading catalog %s", cfg.Catalog.Path)
			cat, err := loadCatalog(cfg.Catalog.Path)
			if err != nil {
				if f.Format == "json" {
					_ = f.Error(ErrCodeCatalog, err.Error(), nil)
				}
				return err
			}

			items := cat.List()
			if f.Format == "json" {
				return f.Success(items)
			}
			for _, item := range items {
				balance := "-"
				if n, known := item.BalanceValue(); known {
					balance = fmt.Sprint(n)
				}
				fmt.Fprintf(f.Writer, "  %-12s %6s  %-14s %s\n", item.ID, balance, item.Status, item.Name)
			}
			fmt.Fprintf(f.Writer, "%d item(s)\n", len(items))
			return nil
		},
	}
}
