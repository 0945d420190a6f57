package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/safeedit/safeedit/pkg/color"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check workspace health",
	Long: `Check workspace health.

Verifies the configuration, the API key, that every configured syntax checker
is on PATH, that the backup directory is writable and that the operation log
can be parsed. Exits non-zero when a critical or error finding is reported.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := openClient()
		if err != nil {
			return err
		}
		defer client.Close()

		result := client.Doctor()
		w := cmd.OutOrStdout()
		if jsonOutput {
			if err := outputJSON(w, result); err != nil {
				return err
			}
		} else if len(result.Findings) == 0 {
			fmt.Fprintln(w, color.Success("Workspace is healthy."))
		} else {
			fmt.Fprintln(w, color.Header(fmt.Sprintf("Findings (%d):", len(result.Findings))))
			for _, f := range result.Findings {
				fmt.Fprintf(w, "  [%s] %s: %s\n", severity(f.Severity), f.Category, f.Description)
			}
		}

		if !result.Healthy {
			return errFailed
		}
		return nil
	},
}

func severity(s string) string {
	switch s {
	case "critical", "error":
		return color.Error(s)
	case "warning":
		return color.Warning(s)
	default:
		return color.Info(s)
	}
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
