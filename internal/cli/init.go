package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/safeedit/safeedit/internal/workspace"
	"github.com/safeedit/safeedit/pkg/color"
	"github.com/safeedit/safeedit/pkg/config"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Initialize a safeedit workspace",
	Long: `Initialize a safeedit workspace in dir (default: current directory).

This creates:
  - .safeedit/config.yaml with the default configuration
  - .safeedit/backups/ for pre-rewrite backups
  - .safeedit/format_version

Running init again keeps an existing configuration.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}

		w, err := workspace.Init(dir)
		if err != nil {
			return fmt.Errorf("failed to initialize workspace: %w", err)
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return outputJSON(out, map[string]any{
				"root":           w.Root,
				"format_version": w.FormatVersion,
				"config":         config.Path(w.Root),
			})
		}
		fmt.Fprintf(out, "Initialized safeedit workspace in %s\n", color.Success(w.Root))
		fmt.Fprintf(out, "  Config: %s\n", color.Path(config.Path(w.Root)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
