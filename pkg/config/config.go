// Package config provides configuration file support for safeedit.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/safeedit/safeedit/pkg/errclass"
)

const (
	// DirName is the per-workspace metadata directory.
	DirName = ".safeedit"
	// FileName is the config file inside DirName.
	FileName = "config.yaml"
)

// Duration is a time.Duration that reads and writes as a Go duration string ("10s").
type Duration time.Duration

// UnmarshalYAML accepts "10s" style strings and plain integer seconds.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	if secs, err := strconv.Atoi(s); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// MarshalJSON writes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(time.Duration(d).String())), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config represents the safeedit configuration.
type Config struct {
	Generation  GenerationConfig `yaml:"generation" json:"generation"`
	Safety      SafetyConfig     `yaml:"safety" json:"safety"`
	Syntax      SyntaxConfig     `yaml:"syntax" json:"syntax"`
	Storage     StorageConfig    `yaml:"storage" json:"storage"`
	Targets     []string         `yaml:"targets" json:"targets" validate:"dive,required"`
	Logging     LoggingConfig    `yaml:"logging" json:"logging"`
	MetricsFile string           `yaml:"metrics_file,omitempty" json:"metrics_file,omitempty"`
	Webhooks    WebhooksConfig   `yaml:"webhooks" json:"webhooks"`

	apiKey string
}

// GenerationConfig configures the external generation call.
type GenerationConfig struct {
	Provider          string   `yaml:"provider" json:"provider" validate:"oneof=openai"`
	Model             string   `yaml:"model" json:"model" validate:"required"`
	APIKeyEnv         string   `yaml:"api_key_env" json:"api_key_env" validate:"required"`
	APIKeyFile        string   `yaml:"api_key_file,omitempty" json:"api_key_file,omitempty"`
	BaseURL           string   `yaml:"base_url,omitempty" json:"base_url,omitempty" validate:"omitempty,url"`
	Temperature       float32  `yaml:"temperature" json:"temperature" validate:"gte=0,lte=2"`
	MaxTokens         int      `yaml:"max_tokens" json:"max_tokens" validate:"gt=0"`
	Timeout           Duration `yaml:"timeout" json:"timeout" validate:"gte=0"`
	RequestsPerMinute int      `yaml:"requests_per_minute" json:"requests_per_minute" validate:"gte=0"`
}

// SafetyConfig configures the content validator and the change gate.
type SafetyConfig struct {
	MaxFileSize            int      `yaml:"max_file_size" json:"max_file_size" validate:"gt=0"`
	ProtectedFiles         []string `yaml:"protected_files" json:"protected_files" validate:"dive,required"`
	DangerousPatterns      []string `yaml:"dangerous_patterns" json:"dangerous_patterns" validate:"dive,required"`
	ExtraDangerousPatterns []string `yaml:"extra_dangerous_patterns,omitempty" json:"extra_dangerous_patterns,omitempty" validate:"dive,required"`
	LargeChangeThreshold   float64  `yaml:"large_change_threshold" json:"large_change_threshold" validate:"gte=0,lte=1"`
	// RequireConfirmationAbove blocks writes whose change ratio exceeds it. 0 disables the gate.
	RequireConfirmationAbove float64 `yaml:"require_confirmation_above" json:"require_confirmation_above" validate:"gte=0,lte=1"`
}

// Patterns returns the effective dangerous-pattern rule set.
func (s SafetyConfig) Patterns() []string {
	out := make([]string, 0, len(s.DangerousPatterns)+len(s.ExtraDangerousPatterns))
	out = append(out, s.DangerousPatterns...)
	return append(out, s.ExtraDangerousPatterns...)
}

// SyntaxConfig maps file extensions to checker commands.
type SyntaxConfig struct {
	Timeout  Duration            `yaml:"timeout" json:"timeout" validate:"gt=0"`
	Checkers map[string][]string `yaml:"checkers" json:"checkers" validate:"dive,keys,startswith=.,endkeys,min=1,dive,required"`
}

// StorageConfig locates backups and the operation log, relative to the workspace root.
type StorageConfig struct {
	BackupDir string `yaml:"backup_dir" json:"backup_dir" validate:"required"`
	LogPath   string `yaml:"log_path" json:"log_path" validate:"required"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `yaml:"format" json:"format" validate:"omitempty,oneof=json text"`
}

// WebhooksConfig configures outcome notifications.
type WebhooksConfig struct {
	Enabled    bool         `yaml:"enabled" json:"enabled"`
	MaxRetries int          `yaml:"max_retries" json:"max_retries" validate:"gte=0,lte=10"`
	RetryDelay Duration     `yaml:"retry_delay" json:"retry_delay" validate:"gte=0"`
	Hooks      []HookConfig `yaml:"hooks" json:"hooks" validate:"dive"`
}

// HookConfig is a single webhook endpoint.
type HookConfig struct {
	URL     string   `yaml:"url" json:"url" validate:"required,url"`
	Secret  string   `yaml:"secret,omitempty" json:"-"`
	Events  []string `yaml:"events" json:"events" validate:"min=1,dive,required"`
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Enabled bool     `yaml:"enabled" json:"enabled"`
}

// DefaultDangerousPatterns is the built-in denylist.
func DefaultDangerousPatterns() []string {
	return []string{
		"rm -rf", "sudo", "exec(", "eval(",
		"document.write", "innerHTML =", "localStorage.clear",
		"window.location =", "fetch('http",
	}
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Generation: GenerationConfig{
			Provider:    "openai",
			Model:       "gpt-4",
			APIKeyEnv:   "OPENAI_API_KEY",
			Temperature: 0.1,
			MaxTokens:   4000,
			Timeout:     Duration(2 * time.Minute),
		},
		Safety: SafetyConfig{
			MaxFileSize:          50000,
			ProtectedFiles:       []string{"package.json", "CNAME", "README.md"},
			DangerousPatterns:    DefaultDangerousPatterns(),
			LargeChangeThreshold: 0.5,
		},
		Syntax: SyntaxConfig{
			Timeout: Duration(10 * time.Second),
			Checkers: map[string][]string{
				".js": {"node", "--check"},
			},
		},
		Storage: StorageConfig{
			BackupDir: filepath.Join(DirName, "backups"),
			LogPath:   filepath.Join(DirName, "oplog.json"),
		},
		Targets: []string{"js/auth.js", "js/main.js", "js/chat.js", "js/components.js"},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "json",
		},
		Webhooks: WebhooksConfig{
			MaxRetries: 3,
			RetryDelay: Duration(5 * time.Second),
		},
	}
}

// Path returns the config file location for a workspace root.
func Path(root string) string {
	return filepath.Join(root, DirName, FileName)
}

// Load loads configuration from <root>/.safeedit/config.yaml.
// Returns default config if file doesn't exist.
func Load(root string) (*Config, error) {
	cfg, err := LoadFile(Path(root))
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil // No config file is OK, use defaults
	}
	return cfg, err
}

// LoadFile loads configuration from an explicit path, layered over the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errclass.ErrConfigInvalid.WithMessagef("parse %s: %v", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes configuration to <root>/.safeedit/config.yaml.
func Save(root string, cfg *Config) error {
	return SaveFile(Path(root), cfg)
}

// SaveFile writes configuration to an explicit path.
func SaveFile(cfgPath string, cfg *Config) error {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(cfgPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and returns ErrConfigInvalid describing
// every violated field.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errclass.ErrConfigInvalid.WithMessage(err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag()))
	}
	return errclass.ErrConfigInvalid.WithMessage(strings.Join(msgs, "; "))
}

// BackupDir returns the absolute backup directory for a workspace root.
func (c *Config) BackupDir(root string) string {
	return resolve(root, c.Storage.BackupDir)
}

// LogPath returns the absolute operation log path for a workspace root.
func (c *Config) LogPath(root string) string {
	return resolve(root, c.Storage.LogPath)
}

func resolve(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

// ResolveAPIKey reads the generation credential once, from the configured
// environment variable or, failing that, from APIKeyFile.
func (c *Config) ResolveAPIKey(getenv func(string) string) error {
	if key := strings.TrimSpace(getenv(c.Generation.APIKeyEnv)); key != "" {
		c.apiKey = key
		return nil
	}
	if c.Generation.APIKeyFile != "" {
		data, err := os.ReadFile(c.Generation.APIKeyFile)
		if err == nil && strings.TrimSpace(string(data)) != "" {
			c.apiKey = strings.TrimSpace(string(data))
			return nil
		}
	}
	return errclass.ErrConfigInvalid.WithMessagef("%s is not set", c.Generation.APIKeyEnv)
}

// APIKey returns the credential resolved by ResolveAPIKey.
func (c *Config) APIKey() string {
	return c.apiKey
}
