package integrity_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/safeedit/safeedit/internal/integrity"
)

func TestFingerprint_Deterministic(t *testing.T) {
	a := integrity.Fingerprint([]byte("const x = 1;"))
	b := integrity.Fingerprint([]byte("const x = 1;"))
	assert.Equal(t, a, b, "fingerprint must be deterministic")
	assert.Len(t, string(a), 64)
}

func TestFingerprint_KnownValue(t *testing.T) {
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		string(integrity.Fingerprint(nil)))
}

func TestNoChangeDetected(t *testing.T) {
	a := integrity.Fingerprint([]byte("a"))
	b := integrity.Fingerprint([]byte("a "))
	assert.True(t, integrity.NoChangeDetected(a, a))
	assert.False(t, integrity.NoChangeDetected(a, b))
}

func TestChangeRatio(t *testing.T) {
	tests := []struct {
		name     string
		original string
		improved string
		want     float64
	}{
		{"identical", "a b c d", "a b c d", 0},
		{"reordered", "a b c d", "d c b a", 0},
		{"whitespace only", "a  b\n\tc", "a b c", 0},
		{"half removed", "a b c d", "a b x y", 0.5},
		{"all removed", "a b", "x", 1},
		{"empty original", "", "anything", 0},
		{"whitespace original", " \n\t", "x", 0},
		{"duplicates in original", "a a a b", "a", 0.25},
		{"emptied", "a b c", "", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, integrity.ChangeRatio([]byte(tt.original), []byte(tt.improved)), 1e-9)
		})
	}
}

func TestChangeRatio_Bounded(t *testing.T) {
	original := []byte(strings.Repeat("x y z ", 100))
	for _, improved := range []string{"", "x", "p q r s t u v w", strings.Repeat("n ", 1000)} {
		r := integrity.ChangeRatio(original, []byte(improved))
		assert.GreaterOrEqual(t, r, 0.0)
		assert.LessOrEqual(t, r, 1.0)
	}
}

func TestLargeChange(t *testing.T) {
	assert.False(t, integrity.LargeChange(0.5, 0.5))
	assert.True(t, integrity.LargeChange(0.51, 0.5))
	assert.True(t, integrity.LargeChange(0.6, 0))
	assert.False(t, integrity.LargeChange(0.2, 0.3))
}
