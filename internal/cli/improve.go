package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/safeedit/safeedit/pkg/color"
	"github.com/safeedit/safeedit/pkg/model"
	"github.com/safeedit/safeedit/pkg/progress"
	"github.com/safeedit/safeedit/pkg/safeedit"
)

var (
	improveKind   string
	improveDryRun bool
)

var improveCmd = &cobra.Command{
	Use:   "improve [files...]",
	Short: "Rewrite files through the language model",
	Long: `Rewrite files through the language model, one at a time.

Each file is backed up, then the generated content must pass the dangerous
pattern denylist and the syntax checker configured for its extension before it
replaces the original. Files are processed in order; a failure never stops the
files after it.

Without arguments the configured targets are used. Arguments may be ** globs.

Examples:
  safeedit improve                       # Improve configured targets
  safeedit improve js/auth.js --kind security
  safeedit improve 'js/**/*.js' --dry-run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := openClient()
		if err != nil {
			return err
		}
		defer client.Close()

		paths := make([]string, 0, len(args))
		for _, a := range args {
			paths = append(paths, argPath(client.Root(), a))
		}

		var cb progress.Callback
		if !jsonOutput && isTerminal(os.Stderr) {
			cb = progress.NewTerminal("improve", 0, true).Callback()
		}

		outcomes, err := client.ImproveAll(cmd.Context(), paths, safeedit.ImproveOptions{
			Kind:   improveKind,
			DryRun: improveDryRun,
		}, cb)
		if err != nil {
			return err
		}

		summary := safeedit.Summarize(outcomes)
		if jsonOutput {
			if err := outputJSON(cmd.OutOrStdout(), map[string]any{
				"outcomes": outcomes,
				"summary":  summary,
			}); err != nil {
				return err
			}
		} else {
			printOutcomes(cmd.OutOrStdout(), outcomes, improveDryRun)
			line := color.Successf
			if summary.Failed > 0 {
				line = color.Warningf
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", line("%d file(s): %d improved, %d unchanged, %d failed",
				summary.Total, summary.Succeeded, summary.Unchanged, summary.Failed))
		}

		if summary.Failed > 0 {
			return errFailed
		}
		return nil
	},
}

func printOutcomes(w io.Writer, outcomes []model.RewriteOutcome, showDiff bool) {
	for _, out := range outcomes {
		switch {
		case !out.Success:
			fmt.Fprintf(w, "%s %s: %s\n", color.Error("✗"), color.Path(out.FilePath), out.Message)
			if out.Code != "" {
				fmt.Fprintf(w, "  %s\n", color.Dim(out.Code))
			}
		case out.Changed:
			fmt.Fprintf(w, "%s %s: %s\n", color.Success("✓"), color.Path(out.FilePath), out.Message)
			if out.BackupPath != "" {
				fmt.Fprintf(w, "  backup: %s\n", color.Dim(out.BackupPath))
			}
			if showDiff && out.Diff != "" {
				fmt.Fprintln(w, color.Diff(out.Diff))
			}
		default:
			fmt.Fprintf(w, "%s %s: %s\n", color.Dim("="), color.Path(out.FilePath), out.Message)
		}
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func init() {
	improveCmd.Flags().StringVarP(&improveKind, "kind", "k", model.DefaultImprovementKind, "improvement type passed to the model")
	improveCmd.Flags().BoolVar(&improveDryRun, "dry-run", false, "show the diff without writing or logging")
	rootCmd.AddCommand(improveCmd)
}
