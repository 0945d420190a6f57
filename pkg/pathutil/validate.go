// Package pathutil provides path validation and naming utilities for safeedit.
package pathutil

import (
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/safeedit/safeedit/pkg/errclass"
)

// ValidatePathSafety verifies target path does not escape the workspace root.
func ValidatePathSafety(root, targetPath string) error {
	// Resolve root symlinks
	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return errclass.ErrPathEscape.WithMessagef("cannot resolve workspace root: %v", err)
	}

	// Try resolving target; if it doesn't exist, resolve closest ancestor
	resolvedTarget, err := filepath.EvalSymlinks(targetPath)
	if err != nil {
		if os.IsNotExist(err) {
			resolvedTarget = resolveClosestAncestor(targetPath)
		} else {
			return errclass.ErrPathEscape.WithMessagef("cannot resolve target: %v", err)
		}
	}

	// Ensure resolved target is under resolved root
	if !strings.HasPrefix(resolvedTarget+"/", resolvedRoot+"/") &&
		resolvedTarget != resolvedRoot {
		return errclass.ErrPathEscape.WithMessagef("path escapes workspace root: %s", targetPath)
	}

	return nil
}

// Resolve maps path (absolute, or relative to root) to its absolute form and
// its workspace key: the slash-separated path relative to root. Operation log
// entries and backup names are keyed by the workspace key.
func Resolve(root, path string) (abs, key string, err error) {
	abs = path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(root, abs)
	}
	abs, err = filepath.Abs(abs)
	if err != nil {
		return "", "", errclass.ErrPathEscape.WithMessagef("cannot resolve %s: %v", path, err)
	}

	if err := ValidatePathSafety(root, abs); err != nil {
		return "", "", err
	}

	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", "", errclass.ErrPathEscape.WithMessagef("cannot resolve workspace root: %v", err)
	}
	rel, err := filepath.Rel(rootAbs, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", "", errclass.ErrPathEscape.WithMessagef("path escapes workspace root: %s", path)
	}
	return abs, filepath.ToSlash(rel), nil
}

// SanitizeBackupName turns a workspace key into a flat file name: NFC
// normalized, path separators replaced by '_', control characters dropped.
func SanitizeBackupName(key string) string {
	key = norm.NFC.String(key)
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range key {
		switch {
		case r == '/' || r == '\\':
			b.WriteByte('_')
		case unicode.IsControl(r):
		default:
			b.WriteRune(r)
		}
	}
	name := strings.TrimLeft(b.String(), ".")
	if name == "" {
		name = "_"
	}
	return name
}

// resolveClosestAncestor walks up from path to find the closest existing
// ancestor, resolves it, then appends the remaining components.
func resolveClosestAncestor(path string) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		if os.IsNotExist(err) {
			// Recurse up
			resolved = resolveClosestAncestor(dir)
		} else {
			return filepath.Clean(path)
		}
	}
	return filepath.Join(resolved, base)
}
