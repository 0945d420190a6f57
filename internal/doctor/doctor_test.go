package doctor_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safeedit/safeedit/internal/doctor"
	"github.com/safeedit/safeedit/internal/workspace"
	"github.com/safeedit/safeedit/pkg/config"
)

func setupWorkspace(t *testing.T) (string, *config.Config) {
	dir := t.TempDir()
	_, err := workspace.Init(dir)
	require.NoError(t, err)
	cfg := config.Default()
	cfg.Targets = []string{"js/*.js"}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "js"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "js", "main.js"), []byte("let a;\n"), 0644))
	return dir, cfg
}

func withKey(string) string { return "sk-test" }

func found(string) (string, error) { return "/usr/bin/node", nil }

func findings(r *doctor.Result, category string) []doctor.Finding {
	var out []doctor.Finding
	for _, f := range r.Findings {
		if f.Category == category {
			out = append(out, f)
		}
	}
	return out
}

func TestDoctor_Check_Healthy(t *testing.T) {
	dir, cfg := setupWorkspace(t)

	result := doctor.NewDoctor(dir, cfg, doctor.WithGetenv(withKey), doctor.WithLookPath(found)).Check()
	assert.True(t, result.Healthy)
	assert.Empty(t, result.Findings)
}

func TestDoctor_Check_MissingAPIKey(t *testing.T) {
	dir, cfg := setupWorkspace(t)

	result := doctor.NewDoctor(dir, cfg,
		doctor.WithGetenv(func(string) string { return "" }),
		doctor.WithLookPath(found)).Check()

	assert.False(t, result.Healthy)
	f := findings(result, "generation")
	require.Len(t, f, 1)
	assert.Contains(t, f[0].Description, "OPENAI_API_KEY")
}

func TestDoctor_Check_MissingChecker(t *testing.T) {
	dir, cfg := setupWorkspace(t)

	result := doctor.NewDoctor(dir, cfg,
		doctor.WithGetenv(withKey),
		doctor.WithLookPath(func(string) (string, error) { return "", errors.New("not found") })).Check()

	// A missing checker only fails files of that type.
	assert.True(t, result.Healthy)
	f := findings(result, "syntax")
	require.Len(t, f, 1)
	assert.Equal(t, "warning", f[0].Severity)
	assert.Contains(t, f[0].Description, "node")
}

func TestDoctor_Check_CorruptLog(t *testing.T) {
	dir, cfg := setupWorkspace(t)
	require.NoError(t, os.WriteFile(cfg.LogPath(dir), []byte("{not json"), 0644))

	result := doctor.NewDoctor(dir, cfg, doctor.WithGetenv(withKey), doctor.WithLookPath(found)).Check()
	assert.False(t, result.Healthy)
	f := findings(result, "log")
	require.Len(t, f, 1)
	assert.Equal(t, "critical", f[0].Severity)
}

func TestDoctor_Check_BackupDirNotDirectory(t *testing.T) {
	dir, cfg := setupWorkspace(t)
	require.NoError(t, os.RemoveAll(cfg.BackupDir(dir)))
	require.NoError(t, os.WriteFile(cfg.BackupDir(dir), []byte("x"), 0644))

	result := doctor.NewDoctor(dir, cfg, doctor.WithGetenv(withKey), doctor.WithLookPath(found)).Check()
	assert.False(t, result.Healthy)
	assert.Len(t, findings(result, "backup"), 1)
}

func TestDoctor_Check_InvalidConfig(t *testing.T) {
	dir, cfg := setupWorkspace(t)
	cfg.Safety.LargeChangeThreshold = 3

	result := doctor.NewDoctor(dir, cfg, doctor.WithGetenv(withKey), doctor.WithLookPath(found)).Check()
	assert.False(t, result.Healthy)
	f := findings(result, "config")
	require.Len(t, f, 1)
	assert.Contains(t, f[0].Description, "LargeChangeThreshold")
}

func TestDoctor_Check_UnmatchedTarget(t *testing.T) {
	dir, cfg := setupWorkspace(t)
	cfg.Targets = []string{"js/*.js", "css/*.css", "js/missing.js"}

	result := doctor.NewDoctor(dir, cfg, doctor.WithGetenv(withKey), doctor.WithLookPath(found)).Check()
	assert.True(t, result.Healthy)
	f := findings(result, "targets")
	require.Len(t, f, 2)
	assert.Equal(t, "info", f[0].Severity)
}

func TestDoctor_Check_OrphanTmp(t *testing.T) {
	dir, cfg := setupWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "js", ".safeedit-tmp-123"), []byte("x"), 0644))

	result := doctor.NewDoctor(dir, cfg, doctor.WithGetenv(withKey), doctor.WithLookPath(found)).Check()
	assert.True(t, result.Healthy)
	f := findings(result, "tmp")
	require.Len(t, f, 1)
	assert.Contains(t, f[0].Description, ".safeedit-tmp-123")
}

func TestDoctor_Check_NewerFormat(t *testing.T) {
	dir, cfg := setupWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".safeedit", "format_version"), []byte("9\n"), 0644))

	result := doctor.NewDoctor(dir, cfg, doctor.WithGetenv(withKey), doctor.WithLookPath(found)).Check()
	assert.False(t, result.Healthy)
	assert.Len(t, findings(result, "format"), 1)
}
