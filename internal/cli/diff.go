package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/safeedit/safeedit/pkg/color"
)

var diffStatOnly bool

var diffCmd = &cobra.Command{
	Use:   "diff <file>",
	Short: "Show changes since the latest backup",
	Long: `Show a unified diff between the latest backup of a file and its current
content. The latest backup is the one referenced by the newest operation log
entry when it still exists, otherwise the newest backup file on disk.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := openClient()
		if err != nil {
			return err
		}
		defer client.Close()

		result, err := client.Diff(argPath(client.Root(), args[0]))
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if jsonOutput {
			return outputJSON(w, result)
		}
		if diffStatOnly {
			fmt.Fprintf(w, "Added: %d, Removed: %d, Hunks: %d\n",
				result.LinesAdded, result.LinesRemoved, result.Hunks)
			return nil
		}
		fmt.Fprintf(w, "backup: %s\n", color.Dim(result.BackupPath))
		fmt.Fprint(w, color.Diff(result.FormatHuman()))
		return nil
	},
}

func init() {
	diffCmd.Flags().BoolVar(&diffStatOnly, "stat", false, "show summary only")
	rootCmd.AddCommand(diffCmd)
}
