package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safeedit/safeedit/pkg/config"
	"github.com/safeedit/safeedit/pkg/model"
)

// executeCommand runs the real root command with fresh flag values.
func executeCommand(args ...string) (stdout string, err error) {
	resetFlags(rootCmd)
	shutdownTracing = nil

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs(append([]string{"--no-color"}, args...))
	err = rootCmd.Execute()
	if terr := teardown(); err == nil {
		err = terr
	}
	return buf.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func setupTestDir(t *testing.T) string {
	dir := t.TempDir()
	originalWd, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		os.Chdir(originalWd)
	})
	return dir
}

// fakeModel serves chat completions, answering every request with reply.
func fakeModel(t *testing.T, reply string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

// setupWorkspace initializes a workspace in a temp CWD with one text file,
// wired to a fake model that replies with reply.
func setupWorkspace(t *testing.T, reply string) (string, *atomic.Int32) {
	t.Helper()
	dir := setupTestDir(t)
	_, err := executeCommand("init")
	require.NoError(t, err)

	srv, calls := fakeModel(t, reply)
	cfg, err := config.Load(dir)
	require.NoError(t, err)
	cfg.Generation.BaseURL = srv.URL + "/v1"
	cfg.Targets = []string{"notes/*.txt"}
	require.NoError(t, config.Save(dir, cfg))
	t.Setenv("OPENAI_API_KEY", "sk-test")

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "notes"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes", "a.txt"), []byte("first draft\n"), 0644))
	return dir, calls
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRootCommand_Help(t *testing.T) {
	stdout, err := executeCommand("--help")
	require.NoError(t, err)
	assert.Contains(t, stdout, "file-safety pipeline")
}

func TestRootCommand_JSONFlag(t *testing.T) {
	_, err := executeCommand("--json", "--help")
	require.NoError(t, err)
	assert.True(t, jsonOutput)
}

func TestVersionCommand(t *testing.T) {
	stdout, err := executeCommand("version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "safeedit dev")
}

func TestCompletionCommand(t *testing.T) {
	stdout, err := executeCommand("completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, stdout, "safeedit")

	_, err = executeCommand("completion", "tcsh")
	assert.Error(t, err)
}

func TestInitCommand_CreatesWorkspace(t *testing.T) {
	dir := setupTestDir(t)
	stdout, err := executeCommand("init")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Initialized safeedit workspace")
	assert.DirExists(t, filepath.Join(dir, ".safeedit", "backups"))
	assert.FileExists(t, filepath.Join(dir, ".safeedit", "config.yaml"))
}

func TestInitCommand_Subdirectory(t *testing.T) {
	dir := setupTestDir(t)
	_, err := executeCommand("--json", "init", "project")
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(dir, "project", ".safeedit"))
}

func TestCommands_OutsideWorkspace(t *testing.T) {
	setupTestDir(t)
	for _, args := range [][]string{{"history"}, {"rollback", "a.js"}, {"improve"}, {"config", "show"}} {
		_, err := executeCommand(args...)
		require.Error(t, err, args)
		assert.Contains(t, err.Error(), "not a safeedit workspace")
	}
}

func TestImproveCommand_Success(t *testing.T) {
	dir, calls := setupWorkspace(t, "final draft")

	stdout, err := executeCommand("improve", "notes/a.txt")
	require.NoError(t, err)
	assert.Contains(t, stdout, "notes/a.txt: success")
	assert.Contains(t, stdout, "1 file(s): 1 improved, 0 unchanged, 0 failed")
	assert.Equal(t, int32(1), calls.Load())

	// The trailing newline of the original is kept.
	assert.Equal(t, "final draft\n", readFile(t, filepath.Join(dir, "notes", "a.txt")))
}

func TestImproveCommand_Unchanged(t *testing.T) {
	dir, _ := setupWorkspace(t, "```\nfirst draft\n```")

	stdout, err := executeCommand("improve", "notes/a.txt")
	require.NoError(t, err)
	assert.Contains(t, stdout, "no changes required")
	assert.NoFileExists(t, filepath.Join(dir, ".safeedit", "oplog.json"))
}

func TestImproveCommand_DefaultTargets(t *testing.T) {
	dir, calls := setupWorkspace(t, "rewritten")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes", "b.txt"), []byte("second\n"), 0644))

	stdout, err := executeCommand("--json", "improve")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())

	var result struct {
		Outcomes []model.RewriteOutcome `json:"outcomes"`
		Summary  map[string]int         `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	require.Len(t, result.Outcomes, 2)
	assert.Equal(t, "notes/a.txt", result.Outcomes[0].FilePath)
	assert.Equal(t, "notes/b.txt", result.Outcomes[1].FilePath)
	assert.Equal(t, 2, result.Summary["succeeded"])
}

func TestImproveCommand_DangerousOutputRejected(t *testing.T) {
	dir, _ := setupWorkspace(t, "run: sudo rm -rf /")

	stdout, err := executeCommand("improve", "notes/a.txt", "notes/missing.txt")
	require.ErrorIs(t, err, errFailed)
	assert.Contains(t, stdout, "potentially dangerous pattern: rm -rf")
	assert.Contains(t, stdout, "notes/missing.txt: file not found")
	assert.Contains(t, stdout, "2 failed")
	assert.Equal(t, "first draft\n", readFile(t, filepath.Join(dir, "notes", "a.txt")))
}

func TestImproveCommand_DryRun(t *testing.T) {
	dir, _ := setupWorkspace(t, "final draft")

	stdout, err := executeCommand("improve", "--dry-run", "notes/a.txt")
	require.NoError(t, err)
	assert.Contains(t, stdout, "-first draft")
	assert.Contains(t, stdout, "+final draft")
	assert.Equal(t, "first draft\n", readFile(t, filepath.Join(dir, "notes", "a.txt")))
}

func TestImproveCommand_MissingAPIKey(t *testing.T) {
	setupWorkspace(t, "x")
	t.Setenv("OPENAI_API_KEY", "")

	stdout, err := executeCommand("improve", "notes/a.txt")
	require.ErrorIs(t, err, errFailed)
	assert.Contains(t, stdout, "OPENAI_API_KEY is not set")
}

func TestImproveCommand_FromSubdirectory(t *testing.T) {
	dir, _ := setupWorkspace(t, "final draft")
	require.NoError(t, os.Chdir(filepath.Join(dir, "notes")))

	stdout, err := executeCommand("improve", "a.txt")
	require.NoError(t, err)
	assert.Contains(t, stdout, "notes/a.txt: success")
}

func TestRollbackCommand(t *testing.T) {
	dir, _ := setupWorkspace(t, "final draft")

	_, err := executeCommand("improve", "notes/a.txt")
	require.NoError(t, err)

	stdout, err := executeCommand("history")
	require.NoError(t, err)
	assert.Contains(t, stdout, "notes/a.txt")
	assert.Contains(t, stdout, "general")

	stdout, err = executeCommand("backups", "notes/a.txt")
	require.NoError(t, err)
	assert.Contains(t, stdout, ".backup")

	stdout, err = executeCommand("diff", "--stat", "notes/a.txt")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Added: 1, Removed: 1")

	stdout, err = executeCommand("rollback", "notes/a.txt")
	require.NoError(t, err)
	assert.Contains(t, stdout, "restored from")
	assert.Equal(t, "first draft\n", readFile(t, filepath.Join(dir, "notes", "a.txt")))
}

func TestRollbackCommand_NoBackup(t *testing.T) {
	setupWorkspace(t, "x")

	stdout, err := executeCommand("--json", "rollback", "notes/a.txt")
	require.ErrorIs(t, err, errFailed)

	var out model.RewriteOutcome
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, "no backup found for notes/a.txt", out.Message)
	assert.Equal(t, "E_NO_BACKUP", out.Code)
}

func TestHistoryCommand_Empty(t *testing.T) {
	setupWorkspace(t, "x")
	stdout, err := executeCommand("history")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No operations recorded.")
}

func TestCheckCommand(t *testing.T) {
	dir, _ := setupWorkspace(t, "x")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes", "bad.txt"), []byte("eval(input)"), 0644))

	stdout, err := executeCommand("check", "notes/a.txt")
	require.NoError(t, err)
	assert.Contains(t, stdout, "no syntax checker for .txt")

	stdout, err = executeCommand("check", "notes/bad.txt")
	require.ErrorIs(t, err, errFailed)
	assert.Contains(t, stdout, "potentially dangerous pattern: eval(")
}

func TestConfigCommands(t *testing.T) {
	setupWorkspace(t, "x")

	stdout, err := executeCommand("config", "set", "generation.model", "gpt-4o")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Set generation.model = gpt-4o")

	stdout, err = executeCommand("config", "get", "generation.model")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o\n", stdout)

	stdout, err = executeCommand("config", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, "model: gpt-4o")

	_, err = executeCommand("config", "set", "safety.large_change_threshold", "7")
	assert.Error(t, err)

	_, err = executeCommand("config", "get", "generation.modle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Did you mean")

	stdout, err = executeCommand("config", "keys")
	require.NoError(t, err)
	assert.Contains(t, stdout, "safety.require_confirmation_above")
}

func TestDoctorCommand(t *testing.T) {
	setupWorkspace(t, "x")

	stdout, err := executeCommand("--json", "doctor")
	var result struct {
		Healthy bool `json:"healthy"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	if result.Healthy {
		assert.NoError(t, err)
	} else {
		// node may be missing on the test machine.
		assert.ErrorIs(t, err, errFailed)
	}
}

func TestMetricsAndTraceFiles(t *testing.T) {
	dir, _ := setupWorkspace(t, "final draft")
	metricsPath := filepath.Join(dir, "metrics.prom")
	tracePath := filepath.Join(dir, "trace.json")

	_, err := executeCommand("--metrics-file", metricsPath, "--trace", tracePath, "improve", "notes/a.txt")
	require.NoError(t, err)

	assert.Contains(t, readFile(t, metricsPath), "safeedit_rewrites_total")
	assert.True(t, strings.Contains(readFile(t, tracePath), "rewrite.Improve"))
}
