package errclass

import (
	"errors"
	"fmt"
)

// Error is a stable, machine-readable error class.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

// WithMessage returns a new Error with the same Code but a specific message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Code: e.Code, Message: msg}
}

// WithMessagef returns a new Error with a formatted message.
func (e *Error) WithMessagef(format string, args ...any) *Error {
	return &Error{Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

// Stable error classes. Codes are surfaced in --json output and must not change.
var (
	ErrBackup          = &Error{Code: "E_BACKUP"}
	ErrSafetyViolation = &Error{Code: "E_SAFETY_VIOLATION"}
	ErrGeneration      = &Error{Code: "E_GENERATION"}
	ErrSyntax          = &Error{Code: "E_SYNTAX"}
	ErrWrite           = &Error{Code: "E_WRITE"}
	ErrRestore         = &Error{Code: "E_RESTORE"}
	ErrLog             = &Error{Code: "E_LOG"}
	ErrNoBackup        = &Error{Code: "E_NO_BACKUP"}
	ErrFileNotFound    = &Error{Code: "E_FILE_NOT_FOUND"}
	ErrPathEscape      = &Error{Code: "E_PATH_ESCAPE"}
	ErrConfigInvalid   = &Error{Code: "E_CONFIG_INVALID"}
	ErrLargeChange     = &Error{Code: "E_LARGE_CHANGE"}
)

// Code returns the class code carried by err, or "" when err has no class.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Message returns the detail text of err without the class code.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}
