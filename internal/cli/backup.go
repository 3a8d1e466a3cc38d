package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/toolbox/internal/engine"
)

// BackupExportOptions holds flags for the backup export command.
type BackupExportOptions struct {
	*RootOptions
	Output string
}

// NewBackupCommand creates the backup command and its subcommands.
func NewBackupCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export and import cart backups",
	}

	cmd.AddCommand(newBackupExportCommand(rootOpts))
	cmd.AddCommand(newBackupImportCommand(rootOpts))

	return cmd
}

func newBackupExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BackupExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the cart, metadata and history as a JSON bundle",
		Long: `Write the active cart, its metadata and the history as a JSON bundle
with a checksum. The bundle goes to stdout unless --output is given.

Example:
  toolbox backup export -o cart-backup.json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts.RootOptions, cmd, func(a *app) error {
				f := opts.formatter(cmd)
				data, ok := a.engine.ExportBackup(cmd.Context())
				if !ok {
					return resultError(f, engine.Result{Error: engine.MsgStorageUnavailable})
				}

				if opts.Output == "" {
					if f.Format == "json" {
						return f.Success(json.RawMessage(data))
					}
					_, err := fmt.Fprintln(f.Writer, data)
					return err
				}
				if err := os.WriteFile(opts.Output, []byte(data), 0600); err != nil {
					if f.Format == "json" {
						_ = f.Error(ErrCodeWriteFailed, "failed to write backup", err.Error())
					}
					return WrapExitError(ExitCommandError, "failed to write backup", err)
				}
				if f.Format == "json" {
					return f.Success(map[string]string{"output": opts.Output})
				}
				fmt.Fprintf(f.Writer, "Backup written to %s\n", opts.Output)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (default: stdout)")

	return cmd
}

func newBackupImportCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Restore the cart from a backup bundle",
		Long: `Restore the active cart from a bundle written by "backup export".
A bundle whose checksum does not match is rejected. Use "-" to read stdin.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read backup", err)
			}

			return withApp(opts, cmd, func(a *app) error {
				f := opts.formatter(cmd)
				ctx := cmd.Context()
				if !a.engine.ImportBackup(ctx, string(data)) {
					return resultError(f, engine.Result{Error: engine.MsgInvalidBackup})
				}

				state := a.engine.LoadCart(ctx)
				if f.Format == "json" {
					return f.Success(state)
				}
				fmt.Fprintln(f.Writer, "Backup imported.")
				printCart(f.Writer, state)
				return nil
			})
		},
	}
}

// readInput reads path, or the command's stdin for "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}
