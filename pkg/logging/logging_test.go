package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	line := strings.TrimSpace(buf.String())
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("invalid JSON log line %q: %v", line, err)
	}
	return entry
}

func TestNewLogger(t *testing.T) {
	logger := NewLogger(LevelInfo)
	if logger.Level() != LevelInfo {
		t.Errorf("expected level %s, got %s", LevelInfo, logger.Level())
	}
}

func TestLogger_Debug(t *testing.T) {
	var buf bytes.Buffer
	logger := New(LevelDebug, FormatJSON, &buf)

	logger.Debug("test message", map[string]any{"key": "value"})

	entry := decodeLine(t, &buf)
	if entry["level"] != "debug" {
		t.Errorf("expected debug level, got %v", entry["level"])
	}
	if entry["message"] != "test message" {
		t.Errorf("expected message, got %v", entry["message"])
	}
	if entry["key"] != "value" {
		t.Errorf("expected field key=value, got %v", entry["key"])
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Error("expected timestamp field")
	}
}

func TestLogger_DebugFiltered(t *testing.T) {
	var buf bytes.Buffer
	logger := New(LevelInfo, FormatJSON, &buf)

	logger.Debug("test message")

	if buf.Len() > 0 {
		t.Errorf("expected no output for debug when level is info, got: %s", buf.String())
	}
}

func TestLogger_WarnFilteredAtError(t *testing.T) {
	var buf bytes.Buffer
	logger := New(LevelError, FormatJSON, &buf)

	logger.Warn("large change")
	if buf.Len() > 0 {
		t.Errorf("expected warn to be filtered, got: %s", buf.String())
	}

	logger.Error("write failed")
	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Errorf("expected error level in output, got: %s", buf.String())
	}
}

func TestLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	base := New(LevelInfo, FormatJSON, &buf)
	child := base.WithFields(map[string]any{"file": "js/auth.js"})

	child.Info("backup created", map[string]any{"stage": "backed_up"})

	entry := decodeLine(t, &buf)
	if entry["file"] != "js/auth.js" || entry["stage"] != "backed_up" {
		t.Errorf("expected merged fields, got %v", entry)
	}

	buf.Reset()
	base.Info("no fields")
	if strings.Contains(buf.String(), "js/auth.js") {
		t.Errorf("parent logger must not inherit child fields: %s", buf.String())
	}
}

func TestLogger_ErrorErr(t *testing.T) {
	var buf bytes.Buffer
	logger := New(LevelInfo, FormatJSON, &buf)

	logger.ErrorErr("restore failed", errors.New("backup missing"), map[string]any{"file": "a.js"})

	entry := decodeLine(t, &buf)
	if entry["error"] != "backup missing" {
		t.Errorf("expected error field, got %v", entry["error"])
	}
	if entry["file"] != "a.js" {
		t.Errorf("expected file field, got %v", entry["file"])
	}
}

func TestLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(LevelInfo, FormatText, &buf)

	logger.Info("rewrite done", map[string]any{"file": "main.js"})

	out := buf.String()
	if !strings.Contains(out, "level=info") || !strings.Contains(out, "message=\"rewrite done\"") {
		t.Errorf("unexpected text output: %s", out)
	}
	if !strings.Contains(out, "file=main.js") {
		t.Errorf("expected field in text output: %s", out)
	}
}

func TestLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(LevelError, FormatJSON, &buf)
	logger.SetLevel(LevelDebug)

	logger.Debug("now visible")
	if buf.Len() == 0 {
		t.Error("expected debug output after SetLevel")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"":        LevelInfo,
		"DEBUG":   LevelDebug,
		"info":    LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil {
			t.Errorf("ParseLevel(%q) error: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	old := Global()
	t.Cleanup(func() { SetGlobal(old) })

	SetGlobal(New(LevelInfo, FormatJSON, &buf))
	WithFields(map[string]any{"op": "rollback"}).Info("restored")

	if !strings.Contains(buf.String(), `"op":"rollback"`) {
		t.Errorf("expected global logger output, got: %s", buf.String())
	}
}
