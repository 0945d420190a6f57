package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/safeedit/safeedit/pkg/errclass"
)

type accessor struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func listGet(l []string) string {
	if len(l) == 0 {
		return "[]"
	}
	return "[" + strings.Join(l, ", ") + "]"
}

// listSet accepts a YAML flow list ("[a, b]") or a single bare value.
func listSet(dst *[]string, v string) error {
	var out []string
	if err := yaml.Unmarshal([]byte(v), &out); err != nil {
		out = []string{v}
	}
	*dst = out
	return nil
}

func durationSet(dst *Duration, v string) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", v, err)
	}
	*dst = Duration(d)
	return nil
}

func intSet(dst *int, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid integer %q", v)
	}
	*dst = n
	return nil
}

func floatSet(dst *float64, v string) error {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", v)
	}
	*dst = f
	return nil
}

var accessors = map[string]accessor{
	"generation.model": {
		get: func(c *Config) string { return c.Generation.Model },
		set: func(c *Config, v string) error { c.Generation.Model = v; return nil },
	},
	"generation.api_key_env": {
		get: func(c *Config) string { return c.Generation.APIKeyEnv },
		set: func(c *Config, v string) error { c.Generation.APIKeyEnv = v; return nil },
	},
	"generation.base_url": {
		get: func(c *Config) string { return c.Generation.BaseURL },
		set: func(c *Config, v string) error { c.Generation.BaseURL = v; return nil },
	},
	"generation.temperature": {
		get: func(c *Config) string { return strconv.FormatFloat(float64(c.Generation.Temperature), 'f', -1, 32) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 32)
			if err != nil {
				return fmt.Errorf("invalid number %q", v)
			}
			c.Generation.Temperature = float32(f)
			return nil
		},
	},
	"generation.max_tokens": {
		get: func(c *Config) string { return strconv.Itoa(c.Generation.MaxTokens) },
		set: func(c *Config, v string) error { return intSet(&c.Generation.MaxTokens, v) },
	},
	"generation.timeout": {
		get: func(c *Config) string { return c.Generation.Timeout.Std().String() },
		set: func(c *Config, v string) error { return durationSet(&c.Generation.Timeout, v) },
	},
	"generation.requests_per_minute": {
		get: func(c *Config) string { return strconv.Itoa(c.Generation.RequestsPerMinute) },
		set: func(c *Config, v string) error { return intSet(&c.Generation.RequestsPerMinute, v) },
	},
	"safety.max_file_size": {
		get: func(c *Config) string { return strconv.Itoa(c.Safety.MaxFileSize) },
		set: func(c *Config, v string) error { return intSet(&c.Safety.MaxFileSize, v) },
	},
	"safety.protected_files": {
		get: func(c *Config) string { return listGet(c.Safety.ProtectedFiles) },
		set: func(c *Config, v string) error { return listSet(&c.Safety.ProtectedFiles, v) },
	},
	"safety.dangerous_patterns": {
		get: func(c *Config) string { return listGet(c.Safety.DangerousPatterns) },
		set: func(c *Config, v string) error { return listSet(&c.Safety.DangerousPatterns, v) },
	},
	"safety.large_change_threshold": {
		get: func(c *Config) string { return strconv.FormatFloat(c.Safety.LargeChangeThreshold, 'f', -1, 64) },
		set: func(c *Config, v string) error { return floatSet(&c.Safety.LargeChangeThreshold, v) },
	},
	"safety.require_confirmation_above": {
		get: func(c *Config) string { return strconv.FormatFloat(c.Safety.RequireConfirmationAbove, 'f', -1, 64) },
		set: func(c *Config, v string) error { return floatSet(&c.Safety.RequireConfirmationAbove, v) },
	},
	"syntax.timeout": {
		get: func(c *Config) string { return c.Syntax.Timeout.Std().String() },
		set: func(c *Config, v string) error { return durationSet(&c.Syntax.Timeout, v) },
	},
	"storage.backup_dir": {
		get: func(c *Config) string { return c.Storage.BackupDir },
		set: func(c *Config, v string) error { c.Storage.BackupDir = v; return nil },
	},
	"storage.log_path": {
		get: func(c *Config) string { return c.Storage.LogPath },
		set: func(c *Config, v string) error { c.Storage.LogPath = v; return nil },
	},
	"targets": {
		get: func(c *Config) string { return listGet(c.Targets) },
		set: func(c *Config, v string) error { return listSet(&c.Targets, v) },
	},
	"logging.level": {
		get: func(c *Config) string { return c.Logging.Level },
		set: func(c *Config, v string) error { c.Logging.Level = v; return nil },
	},
	"logging.format": {
		get: func(c *Config) string { return c.Logging.Format },
		set: func(c *Config, v string) error { c.Logging.Format = v; return nil },
	},
	"metrics_file": {
		get: func(c *Config) string { return c.MetricsFile },
		set: func(c *Config, v string) error { c.MetricsFile = v; return nil },
	},
}

// Keys lists the settable configuration keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(accessors))
	for k := range accessors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the string form of a dotted configuration key.
func (c *Config) Get(key string) (string, error) {
	a, ok := accessors[key]
	if !ok {
		return "", errclass.ErrConfigInvalid.WithMessagef("unknown key %q", key)
	}
	return a.get(c), nil
}

// Set assigns a dotted configuration key and re-validates the result.
// On validation failure the previous value is restored.
func (c *Config) Set(key, value string) error {
	a, ok := accessors[key]
	if !ok {
		return errclass.ErrConfigInvalid.WithMessagef("unknown key %q", key)
	}
	prev := *c
	if err := a.set(c, value); err != nil {
		return errclass.ErrConfigInvalid.WithMessagef("%s: %v", key, err)
	}
	if err := c.Validate(); err != nil {
		*c = prev
		return err
	}
	return nil
}
