package rewrite

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/safeedit/safeedit/pkg/model"
	"github.com/safeedit/safeedit/pkg/progress"
)

// Run improves paths strictly one after another. A failure never stops the
// files after it; every path gets exactly one outcome, in input order.
func (o *Orchestrator) Run(ctx context.Context, paths []string, opts Options, cb progress.Callback) []model.RewriteOutcome {
	p := progress.New("improve", len(paths), cb)
	outcomes := make([]model.RewriteOutcome, 0, len(paths))
	for _, path := range paths {
		out := o.Improve(ctx, path, opts)
		outcomes = append(outcomes, out)
		p.Increment(out.FilePath)
	}
	return outcomes
}

// ExpandTargets resolves target patterns relative to root. Patterns without
// glob metacharacters are kept as-is even when the file does not exist, so a
// missing target still yields a "file not found" outcome.
func ExpandTargets(root string, patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	fsys := os.DirFS(root)
	for _, pattern := range patterns {
		pattern = filepath.ToSlash(pattern)
		if !hasMeta(pattern) {
			add(pattern)
			continue
		}
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, err
		}
		sort.Strings(matches)
		for _, m := range matches {
			add(m)
		}
	}
	return out, nil
}

func hasMeta(p string) bool {
	for _, c := range p {
		switch c {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}

// Summary counts outcomes.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

// Summarize tallies outcomes.
func Summarize(outcomes []model.RewriteOutcome) Summary {
	s := Summary{Total: len(outcomes)}
	for _, out := range outcomes {
		switch {
		case !out.Success:
			s.Failed++
		case out.Changed:
			s.Succeeded++
		default:
			s.Unchanged++
		}
	}
	return s
}
