// Package diff renders unified diffs between a file and its rewrite.
package diff

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	godiff "github.com/sourcegraph/go-diff/diff"
)

// DefaultContext is the number of context lines around each hunk.
const DefaultContext = 3

// Result is the difference between two versions of one file.
type Result struct {
	Path         string `json:"path"`
	Unified      string `json:"unified"`
	LinesAdded   int    `json:"lines_added"`
	LinesRemoved int    `json:"lines_removed"`
	Hunks        int    `json:"hunks"`
}

// Changed reports whether the two versions differ.
func (r *Result) Changed() bool {
	return r.Unified != ""
}

// Differ computes unified diffs.
type Differ struct {
	context int
}

// NewDiffer creates a Differ with the given number of context lines.
// A negative value selects DefaultContext.
func NewDiffer(context int) *Differ {
	if context < 0 {
		context = DefaultContext
	}
	return &Differ{context: context}
}

// Diff compares from and to, labelling both sides with path.
func (d *Differ) Diff(path string, from, to []byte) (*Result, error) {
	unified, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(from)),
		B:        difflib.SplitLines(string(to)),
		FromFile: "a/" + path,
		ToFile:   "b/" + path,
		Context:  d.context,
	})
	if err != nil {
		return nil, fmt.Errorf("unified diff: %w", err)
	}

	res := &Result{Path: path, Unified: unified}
	if unified == "" {
		return res, nil
	}
	if err := res.countLines(); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *Result) countLines() error {
	fds, err := godiff.ParseMultiFileDiff([]byte(r.Unified))
	if err != nil {
		return fmt.Errorf("parse unified diff: %w", err)
	}
	for _, fd := range fds {
		r.Hunks += len(fd.Hunks)
		for _, hunk := range fd.Hunks {
			for _, line := range strings.Split(string(hunk.Body), "\n") {
				switch {
				case strings.HasPrefix(line, "+"):
					r.LinesAdded++
				case strings.HasPrefix(line, "-"):
					r.LinesRemoved++
				}
			}
		}
	}
	return nil
}

// FormatHuman returns a short summary followed by the unified diff.
func (r *Result) FormatHuman() string {
	if !r.Changed() {
		return fmt.Sprintf("%s: no changes.\n", r.Path)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: +%d -%d in %d hunk(s)\n\n", r.Path, r.LinesAdded, r.LinesRemoved, r.Hunks)
	sb.WriteString(r.Unified)
	return sb.String()
}
