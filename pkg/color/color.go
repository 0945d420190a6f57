// Package color provides terminal color output for safeedit.
// It respects the NO_COLOR environment variable (https://no-color.org/).
package color

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

var state struct {
	once       sync.Once
	enabled    atomic.Bool
	overridden atomic.Bool
}

// Init sets up color support from the environment and the --no-color flag.
// Only the first call inspects the environment.
func Init(noColorFlag bool) {
	state.once.Do(func() {
		enabled := true
		if _, ok := os.LookupEnv("NO_COLOR"); ok {
			enabled = false
		}
		if os.Getenv("TERM") == "dumb" {
			enabled = false
		}
		if !state.overridden.Load() {
			state.enabled.Store(enabled)
		}
	})
	if noColorFlag {
		Disable()
	}
}

// Enabled returns true if color output is enabled.
func Enabled() bool {
	Init(false)
	return state.enabled.Load()
}

// Disable turns off color output.
func Disable() {
	state.overridden.Store(true)
	state.enabled.Store(false)
}

// ANSI codes
const (
	Reset   = "\033[0m"
	Bold    = "\033[1m"
	DimCode = "\033[2m"

	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Cyan   = "\033[36m"
	Gray   = "\033[90m"
)

func wrap(codes ...string) func(string) string {
	code := strings.Join(codes, "")
	return func(s string) string {
		if !Enabled() {
			return s
		}
		return code + s + Reset
	}
}

var (
	Redf    = wrap(Red)
	Greenf  = wrap(Green)
	Yellowf = wrap(Yellow)
	Bluef   = wrap(Blue)
	Cyanf   = wrap(Cyan)
	Grayf   = wrap(Gray)
	Boldf   = wrap(Bold)
	Dimf    = wrap(DimCode)
)

// Success formats a success message in green.
func Success(s string) string { return Greenf(s) }

// Successf formats a success message with printf-style arguments.
func Successf(format string, args ...any) string { return Greenf(fmt.Sprintf(format, args...)) }

// Error formats an error message in red.
func Error(s string) string { return Redf(s) }

// Errorf formats an error message with printf-style arguments.
func Errorf(format string, args ...any) string { return Redf(fmt.Sprintf(format, args...)) }

// Warning formats a warning in yellow.
func Warning(s string) string { return Yellowf(s) }

// Warningf formats a warning with printf-style arguments.
func Warningf(format string, args ...any) string { return Yellowf(fmt.Sprintf(format, args...)) }

// Info formats an informational message in cyan.
func Info(s string) string { return Cyanf(s) }

// OperationID formats an operation id in cyan.
func OperationID(s string) string { return Cyanf(s) }

// Path formats a file path in blue.
func Path(s string) string { return Bluef(s) }

// Header formats a header in bold.
func Header(s string) string { return Boldf(s) }

// Dim formats secondary information.
func Dim(s string) string { return Dimf(s) }

// Code formats commands and config keys (bold + dim).
func Code(s string) string {
	if !Enabled() {
		return s
	}
	return Bold + DimCode + s + Reset
}

// DiffLine colors one line of unified diff output.
func DiffLine(line string) string {
	switch {
	case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		return Boldf(line)
	case strings.HasPrefix(line, "@@"):
		return Cyanf(line)
	case strings.HasPrefix(line, "+"):
		return Greenf(line)
	case strings.HasPrefix(line, "-"):
		return Redf(line)
	default:
		return line
	}
}

// Diff colors every line of a unified diff.
func Diff(text string) string {
	if !Enabled() || text == "" {
		return text
	}
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = DiffLine(l)
	}
	return strings.Join(lines, "\n")
}
