package cli

import (
	"fmt"
	"strings"

	"github.com/safeedit/safeedit/pkg/color"
	"github.com/safeedit/safeedit/pkg/config"
)

// suggestConfigKeys returns a "Did you mean" hint for an unknown config key,
// or "" when the key is valid.
func suggestConfigKeys(key string) string {
	keys := config.Keys()
	for _, k := range keys {
		if k == key {
			return ""
		}
	}

	query := strings.ToLower(key)
	var matches []string
	for _, k := range keys {
		if strings.HasPrefix(k, query) {
			matches = append(matches, color.Code(k))
		}
	}
	// Fall back to the last dotted segment, so "model" finds generation.model.
	if len(matches) == 0 {
		if i := strings.LastIndex(query, "."); i >= 0 {
			query = query[i+1:]
		}
		for _, k := range keys {
			if strings.Contains(k, query) {
				matches = append(matches, color.Code(k))
			}
		}
	}

	if len(matches) > 0 {
		hint := "Did you mean"
		if len(matches) > 1 {
			hint += " one of"
		}
		return fmt.Sprintf("%s: %s?", hint, strings.Join(matches, ", "))
	}
	return fmt.Sprintf("Run %s to see available keys.", color.Code("safeedit config keys"))
}

// suggestInit provides a suggestion to initialize a workspace.
func suggestInit() string {
	return fmt.Sprintf("Run %s to create a new workspace.", color.Code("safeedit init"))
}

// formatNotInWorkspaceError formats an error when not in a safeedit workspace.
func formatNotInWorkspaceError() string {
	var sb strings.Builder

	sb.WriteString(color.Error("not a safeedit workspace (or any parent)"))
	sb.WriteString("\n")
	sb.WriteString(color.Dim("  " + suggestInit()))

	return sb.String()
}
