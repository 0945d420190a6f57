// Package integrity fingerprints file content and measures how much a rewrite
// changes it.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/safeedit/safeedit/pkg/model"
)

// DefaultLargeChangeThreshold is the ratio above which a rewrite is flagged.
const DefaultLargeChangeThreshold = 0.5

// Fingerprint computes the SHA-256 hex digest of content.
func Fingerprint(content []byte) model.Fingerprint {
	sum := sha256.Sum256(content)
	return model.Fingerprint(hex.EncodeToString(sum[:]))
}

// NoChangeDetected reports whether two fingerprints are identical.
func NoChangeDetected(a, b model.Fingerprint) bool {
	return a == b
}

// ChangeRatio returns the number of distinct whitespace-delimited tokens of
// original missing from improved, divided by the token count of original.
// The result is in [0, 1]; an original with no tokens yields 0.
func ChangeRatio(original, improved []byte) float64 {
	orig := strings.Fields(string(original))
	if len(orig) == 0 {
		return 0
	}

	kept := make(map[string]struct{})
	for _, tok := range strings.Fields(string(improved)) {
		kept[tok] = struct{}{}
	}

	removed := make(map[string]struct{})
	for _, tok := range orig {
		if _, ok := kept[tok]; !ok {
			removed[tok] = struct{}{}
		}
	}
	return float64(len(removed)) / float64(len(orig))
}

// LargeChange reports whether ratio exceeds threshold. A non-positive
// threshold falls back to DefaultLargeChangeThreshold.
func LargeChange(ratio, threshold float64) bool {
	if threshold <= 0 {
		threshold = DefaultLargeChangeThreshold
	}
	return ratio > threshold
}
