package workspace_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safeedit/safeedit/internal/workspace"
	"github.com/safeedit/safeedit/pkg/config"
	"github.com/safeedit/safeedit/pkg/errclass"
)

func TestInit_CreatesLayout(t *testing.T) {
	dir := t.TempDir()

	w, err := workspace.Init(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, w.Root)
	assert.Equal(t, workspace.FormatVersion, w.FormatVersion)

	assert.DirExists(t, filepath.Join(dir, ".safeedit"))
	assert.DirExists(t, filepath.Join(dir, ".safeedit", "backups"))
	assert.FileExists(t, filepath.Join(dir, ".safeedit", "config.yaml"))

	content, err := os.ReadFile(filepath.Join(dir, ".safeedit", "format_version"))
	require.NoError(t, err)
	assert.Equal(t, "1\n", string(content))
}

func TestInit_KeepsExistingConfig(t *testing.T) {
	dir := t.TempDir()
	_, err := workspace.Init(dir)
	require.NoError(t, err)

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	cfg.Generation.Model = "gpt-4o-mini"
	require.NoError(t, config.Save(dir, cfg))

	_, err = workspace.Init(dir)
	require.NoError(t, err)

	cfg, err = config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", cfg.Generation.Model)
}

func TestDiscover_FromSubdirectory(t *testing.T) {
	dir := t.TempDir()
	_, err := workspace.Init(dir)
	require.NoError(t, err)

	sub := filepath.Join(dir, "js", "lib")
	require.NoError(t, os.MkdirAll(sub, 0755))

	w, err := workspace.Discover(sub)
	require.NoError(t, err)
	assert.Equal(t, dir, w.Root)
}

func TestDiscover_NotFound(t *testing.T) {
	_, err := workspace.Discover(t.TempDir())
	assert.ErrorIs(t, err, workspace.ErrNotFound)
}

func TestDiscover_BareDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".safeedit"), 0755))

	w, err := workspace.Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, w.FormatVersion)
}

func TestDiscover_NewerFormatRejected(t *testing.T) {
	dir := t.TempDir()
	_, err := workspace.Init(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".safeedit", "format_version"), []byte("2\n"), 0644))

	_, err = workspace.Discover(dir)
	assert.ErrorIs(t, err, errclass.ErrConfigInvalid)
}

func TestLoadConfig_Override(t *testing.T) {
	dir := t.TempDir()
	w, err := workspace.Init(dir)
	require.NoError(t, err)

	override := filepath.Join(t.TempDir(), "alt.yaml")
	require.NoError(t, os.WriteFile(override, []byte("generation:\n  model: local-model\n"), 0644))

	cfg, err := w.LoadConfig(override)
	require.NoError(t, err)
	assert.Equal(t, "local-model", cfg.Generation.Model)

	cfg, err = w.LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4", cfg.Generation.Model)
}
