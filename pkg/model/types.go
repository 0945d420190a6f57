package model

// Fingerprint is a SHA-256 digest of file content stored as hex string.
// It is used for change detection only.
type Fingerprint string

// Short returns the first 12 characters of the fingerprint.
func (f Fingerprint) Short() string {
	if len(f) <= 12 {
		return string(f)
	}
	return string(f[:12])
}

// DefaultImprovementKind is used when no improvement kind is given.
const DefaultImprovementKind = "general"
