package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/safeedit/safeedit/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config <command>",
	Short: "Manage safeedit configuration",
	Long: `Manage safeedit configuration stored in .safeedit/config.yaml
(or the file given with --config).

Available commands:
  show              - Show current configuration
  set <key> <value> - Set a configuration value
  get <key>         - Get a configuration value
  keys              - List settable keys

List values (targets, safety.protected_files, safety.dangerous_patterns) are
given comma separated.`,
	DisableFlagsInUseLine: true,
}

// loadConfig returns the effective configuration and the file it lives in.
func loadConfig() (*config.Config, string, error) {
	w, err := requireWorkspace()
	if err != nil {
		return nil, "", err
	}
	cfg, err := w.LoadConfig(configPath)
	if err != nil {
		return nil, "", fmt.Errorf("load config: %w", err)
	}
	path := configPath
	if path == "" {
		path = config.Path(w.Root)
	}
	return cfg, path, nil
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if jsonOutput {
			return outputJSON(w, cfg)
		}

		shown := *cfg
		shown.Webhooks.Hooks = make([]config.HookConfig, len(cfg.Webhooks.Hooks))
		for i, h := range cfg.Webhooks.Hooks {
			if h.Secret != "" {
				h.Secret = "********"
			}
			shown.Webhooks.Hooks[i] = h
		}
		data, err := yaml.Marshal(&shown)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		fmt.Fprintln(w, "# safeedit configuration")
		fmt.Fprintf(w, "# Location: %s\n\n", path)
		fmt.Fprint(w, string(data))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value. The result is validated before it is saved.

Examples:
  safeedit config set generation.model gpt-4o
  safeedit config set targets "js/**/*.js,css/*.css"
  safeedit config set safety.large_change_threshold 0.4`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}

		key, value := args[0], args[1]
		if err := cfg.Set(key, value); err != nil {
			if hint := suggestConfigKeys(key); hint != "" {
				return fmt.Errorf("set config: %w\n  %s", err, hint)
			}
			return fmt.Errorf("set config: %w", err)
		}
		if err := config.SaveFile(path, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		key := args[0]
		value, err := cfg.Get(key)
		if err != nil {
			if hint := suggestConfigKeys(key); hint != "" {
				return fmt.Errorf("get config: %w\n  %s", err, hint)
			}
			return fmt.Errorf("get config: %w", err)
		}

		if value == "" {
			fmt.Fprintf(cmd.OutOrStdout(), "%s (not set)\n", key)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(value, "\n"))
		}
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List settable configuration keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput {
			return outputJSON(cmd.OutOrStdout(), config.Keys())
		}
		for _, k := range config.Keys() {
			fmt.Fprintln(cmd.OutOrStdout(), k)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configKeysCmd)
	rootCmd.AddCommand(configCmd)
}
