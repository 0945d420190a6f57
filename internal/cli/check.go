package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/safeedit/safeedit/internal/safety"
	"github.com/safeedit/safeedit/pkg/color"
)

var checkCmd = &cobra.Command{
	Use:   "check <file>...",
	Short: "Run the safety and syntax checks on current content",
	Long: `Run the safety validator and the syntax checker on the current content of
files without generating anything. Exits non-zero when a dangerous pattern is
found or the syntax check fails.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := openClient()
		if err != nil {
			return err
		}
		defer client.Close()

		w := cmd.OutOrStdout()
		failed := false
		var reports []any
		for _, a := range args {
			report, err := client.Check(cmd.Context(), argPath(client.Root(), a))
			if err != nil {
				failed = true
				if jsonOutput {
					reports = append(reports, map[string]string{"filepath": a, "error": err.Error()})
				} else {
					fmt.Fprintf(w, "%s %s: %v\n", color.Error("✗"), color.Path(a), err)
				}
				continue
			}

			blocking := len(safety.Blocking(report.Issues)) > 0
			if blocking || !report.Syntax.Passed {
				failed = true
			}

			if jsonOutput {
				reports = append(reports, report)
				continue
			}
			mark := color.Success("✓")
			if blocking || !report.Syntax.Passed {
				mark = color.Error("✗")
			}
			fmt.Fprintf(w, "%s %s\n", mark, color.Path(report.FilePath))
			for _, issue := range report.Issues {
				fmt.Fprintf(w, "  %s %s\n", color.Warning(string(issue.Kind)), issue.Detail)
			}
			fmt.Fprintf(w, "  syntax: %s\n", report.Syntax.Message)
		}

		if jsonOutput {
			if err := outputJSON(w, reports); err != nil {
				return err
			}
		}
		if failed {
			return errFailed
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
