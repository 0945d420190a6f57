// Package safety implements the heuristic content checks run before and after
// generation. It is a best-effort gate, not a security boundary.
package safety

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/text/cases"

	"github.com/safeedit/safeedit/pkg/config"
	"github.com/safeedit/safeedit/pkg/model"
)

// Validator checks file content against size, protected-file and pattern rules.
type Validator struct {
	maxSize   int
	protected []string
	patterns  []string
}

// New creates a validator from the safety section of the config.
func New(cfg config.SafetyConfig) *Validator {
	return &Validator{
		maxSize:   cfg.MaxFileSize,
		protected: cfg.ProtectedFiles,
		patterns:  cfg.Patterns(),
	}
}

// Validate runs every check and returns all findings. key is the
// workspace-relative slash path of the file.
func (v *Validator) Validate(key string, content []byte) []model.SafetyIssue {
	var issues []model.SafetyIssue

	// The limit is in bytes, not characters.
	if v.maxSize > 0 && len(content) > v.maxSize {
		issues = append(issues, model.SafetyIssue{
			Kind:   model.IssueSizeExceeded,
			Detail: fmt.Sprintf("file too large: %d bytes", len(content)),
		})
	}

	if v.Protected(key) {
		issues = append(issues, model.SafetyIssue{
			Kind:   model.IssueProtectedFile,
			Detail: "critical file, extra caution required",
		})
	}

	// Caser is stateful; one per call.
	fold := cases.Fold()
	text := fold.String(string(content))
	for _, p := range v.patterns {
		if strings.Contains(text, fold.String(p)) {
			issues = append(issues, model.SafetyIssue{
				Kind:   model.IssueDangerousPattern,
				Detail: "potentially dangerous pattern: " + p,
			})
		}
	}
	return issues
}

// Protected reports whether key or its base name matches a protected pattern.
func (v *Validator) Protected(key string) bool {
	base := path.Base(key)
	for _, pattern := range v.protected {
		if ok, _ := doublestar.Match(pattern, key); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

// Blocking filters issues down to those that reject generated content.
// Protected-file findings are informational only.
func Blocking(issues []model.SafetyIssue) []model.SafetyIssue {
	var out []model.SafetyIssue
	for _, i := range issues {
		if i.Kind != model.IssueProtectedFile {
			out = append(out, i)
		}
	}
	return out
}

// Describe joins issue details into one message.
func Describe(issues []model.SafetyIssue) string {
	parts := make([]string, len(issues))
	for i, issue := range issues {
		parts[i] = issue.Detail
	}
	return strings.Join(parts, "; ")
}
