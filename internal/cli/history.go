package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/safeedit/safeedit/pkg/color"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [file]",
	Short: "Show the operation log",
	Long: `Show rewrites recorded in the operation log, newest first.

Examples:
  safeedit history                # All files
  safeedit history js/auth.js     # One file
  safeedit history -n 5           # Last 5 entries`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := openClient()
		if err != nil {
			return err
		}
		defer client.Close()

		path := ""
		if len(args) == 1 {
			path = argPath(client.Root(), args[0])
		}
		entries, err := client.History(path)
		if err != nil {
			return err
		}
		if historyLimit > 0 && len(entries) > historyLimit {
			entries = entries[:historyLimit]
		}

		w := cmd.OutOrStdout()
		if jsonOutput {
			return outputJSON(w, entries)
		}
		if len(entries) == 0 {
			fmt.Fprintln(w, "No operations recorded.")
			return nil
		}
		for _, e := range entries {
			fmt.Fprintf(w, "%s  %s  %s  %s\n",
				color.OperationID(shortID(e.OperationID)),
				e.Timestamp.Local().Format("2006-01-02 15:04:05"),
				color.Path(e.FilePath),
				e.ImprovementKind)
			fmt.Fprintf(w, "  +%d -%d  change %.1f%%  model %s\n",
				e.LinesAdded, e.LinesRemoved, e.ChangeRatio*100, e.ModelIdentifier)
			fmt.Fprintf(w, "  backup %s\n", color.Dim(e.BackupPath))
		}
		return nil
	},
}

var backupsCmd = &cobra.Command{
	Use:   "backups [file]",
	Short: "List backup files",
	Long:  "List backup files on disk, newest first, optionally for one file.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := openClient()
		if err != nil {
			return err
		}
		defer client.Close()

		path := ""
		if len(args) == 1 {
			path = argPath(client.Root(), args[0])
		}
		list, err := client.Backups(path)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if jsonOutput {
			return outputJSON(w, list)
		}
		if len(list) == 0 {
			fmt.Fprintln(w, "No backups found.")
			return nil
		}
		for _, b := range list {
			fmt.Fprintf(w, "%s  %-30s  %8d bytes  %s\n",
				b.Timestamp.Format("2006-01-02 15:04:05"), color.Path(b.Source), b.Size, color.Dim(b.Path))
		}
		return nil
	},
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "limit number of entries shown")
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(backupsCmd)
}
