package model

import "fmt"

// IssueKind classifies a safety finding.
type IssueKind string

const (
	IssueSizeExceeded     IssueKind = "size_exceeded"
	IssueProtectedFile    IssueKind = "protected_file"
	IssueDangerousPattern IssueKind = "dangerous_pattern"
)

// SafetyIssue is a single finding of the safety validator.
type SafetyIssue struct {
	Kind   IssueKind `json:"kind"`
	Detail string    `json:"detail"`
}

func (i SafetyIssue) String() string {
	return fmt.Sprintf("%s: %s", i.Kind, i.Detail)
}

// SyntaxResult is the verdict of an external syntax checker.
type SyntaxResult struct {
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
}
