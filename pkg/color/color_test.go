package color

import (
	"strings"
	"testing"
)

func saveState(t *testing.T) {
	t.Helper()
	enabled := state.enabled.Load()
	overridden := state.overridden.Load()
	t.Cleanup(func() {
		state.enabled.Store(enabled)
		state.overridden.Store(overridden)
	})
}

func TestEnableDisable(t *testing.T) {
	saveState(t)

	enable()
	if !Enabled() {
		t.Error("expected colors to be enabled after enable()")
	}

	Disable()
	if Enabled() {
		t.Error("expected colors to be disabled after Disable()")
	}
}

func TestInit_NoColorFlag(t *testing.T) {
	saveState(t)
	enable()

	Init(true)
	if Enabled() {
		t.Error("expected --no-color to disable colors")
	}
}

func TestColorFuncs(t *testing.T) {
	saveState(t)
	enable()

	tests := []struct {
		name string
		fn   func(string) string
		code string
	}{
		{"Redf", Redf, Red},
		{"Greenf", Greenf, Green},
		{"Yellowf", Yellowf, Yellow},
		{"Bluef", Bluef, Blue},
		{"Cyanf", Cyanf, Cyan},
		{"Boldf", Boldf, Bold},
		{"Dimf", Dimf, DimCode},
		{"Path", Path, Blue},
		{"OperationID", OperationID, Cyan},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.fn("x")
			if got != tt.code+"x"+Reset {
				t.Errorf("%s(%q) = %q", tt.name, "x", got)
			}
		})
	}
}

func TestColorFuncsDisabled(t *testing.T) {
	saveState(t)
	Disable()

	for _, fn := range []func(string) string{Success, Error, Warning, Info, Header, Dim, Code, DiffLine} {
		if got := fn("plain"); got != "plain" {
			t.Errorf("expected plain text, got %q", got)
		}
	}
	if got := Errorf("%d files", 2); got != "2 files" {
		t.Errorf("Errorf = %q", got)
	}
}

func TestDiffLine(t *testing.T) {
	saveState(t)
	enable()

	tests := []struct {
		line string
		code string
	}{
		{"+added", Green},
		{"-removed", Red},
		{"@@ -1,2 +1,2 @@", Cyan},
		{"--- a/js/main.js", Bold},
		{"+++ b/js/main.js", Bold},
	}
	for _, tt := range tests {
		if got := DiffLine(tt.line); !strings.HasPrefix(got, tt.code) {
			t.Errorf("DiffLine(%q) = %q, want prefix %q", tt.line, got, tt.code)
		}
	}
	if got := DiffLine(" context"); got != " context" {
		t.Errorf("context line should be unchanged, got %q", got)
	}
}

func TestDiff(t *testing.T) {
	saveState(t)
	enable()

	out := Diff("-a\n+b")
	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0] != Red+"-a"+Reset || lines[1] != Green+"+b"+Reset {
		t.Errorf("unexpected diff coloring: %q", out)
	}
}

func enable() {
	state.overridden.Store(true)
	state.enabled.Store(true)
}

func TestFormattedHelpers(t *testing.T) {
	saveState(t)

	enable()
	got := Successf("%d improved", 2)
	if !strings.HasPrefix(got, Green) || !strings.Contains(got, "2 improved") {
		t.Errorf("Successf = %q", got)
	}
	if got := Warningf("%d failed", 1); !strings.HasPrefix(got, Yellow) {
		t.Errorf("Warningf = %q", got)
	}

	Disable()
	if got := Warningf("%d failed", 1); got != "1 failed" {
		t.Errorf("Warningf without color = %q", got)
	}
}
