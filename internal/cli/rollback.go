package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/safeedit/safeedit/pkg/color"
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback <file>",
	Short: "Restore a file from its latest backup",
	Long: `Restore a file from the backup taken before its most recent logged rewrite.

Backups recorded in the operation log are tried newest first; entries whose
backup file was deleted are skipped. Without a usable backup the file is left
untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := openClient()
		if err != nil {
			return err
		}
		defer client.Close()

		out := client.Rollback(cmd.Context(), argPath(client.Root(), args[0]))
		if jsonOutput {
			if err := outputJSON(cmd.OutOrStdout(), out); err != nil {
				return err
			}
		} else if out.Success {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", color.Success("✓"), color.Path(out.FilePath), out.Message)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", color.Error("✗"), color.Path(out.FilePath), out.Message)
		}
		if !out.Success {
			return errFailed
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rollbackCmd)
}
