package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for safeedit.

To load completions for your shell:

Bash:
  # To load completions for each session, execute once:
  # Linux:
  safeedit completion bash > /etc/bash_completion.d/safeedit
  # macOS:
  safeedit completion bash > /usr/local/etc/bash_completion.d/safeedit

  # Or add to your ~/.bashrc or ~/.bash_profile:
  source <(safeedit completion bash)

Zsh:
  # To load completions for each session, execute once:
  safeedit completion zsh > "${fpath[1]}/_safeedit"

  # Or add to your ~/.zshrc:
  source <(safeedit completion zsh)

  # You may need to force rebuild the completion cache:
  rm -f ~/.zcompdump
  compinit

Fish:
  # To load completions for each session, execute once:
  safeedit completion fish > ~/.config/fish/completions/safeedit.fish

  # Or add to your ~/.config/fish/config.fish:
  safeedit completion fish | source

PowerShell:
  # To load completions for each session, run:
  safeedit completion powershell | Out-String | Invoke-Expression

  # Or add to your PowerShell profile:
  # (Microsoft.PowerShell_profile.ps1 or profile.ps1)
  safeedit completion powershell | Out-String | Invoke-Expression`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.ExactValidArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch shell := args[0]; shell {
		case "bash":
			return cmd.Root().GenBashCompletion(out)
		case "zsh":
			return cmd.Root().GenZshCompletion(out)
		case "fish":
			return cmd.Root().GenFishCompletion(out, true)
		case "powershell":
			return cmd.Root().GenPowerShellCompletionWithDesc(out)
		default:
			return fmt.Errorf("unsupported shell type: %s", shell)
		}
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
