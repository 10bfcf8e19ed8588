package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEnv is a config file plus roster seed file shared by a sequence of
// command invocations against the same mirror.
type testEnv struct {
	configPath string
	rosterPath string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	configPath := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf("mirror: %s\n", filepath.Join(dir, "mirror.db"))
	require.NoError(t, os.WriteFile(configPath, []byte(body), 0o644))

	rosterPath := filepath.Join(dir, "roster.json")
	rosterJSON := `[
		{"name": "Maria Santos - Leader", "voice_type": "Soprano"},
		{"name": "Jose Cruz", "voice_type": "Tenor"},
		{"name": "Ana Reyes", "voice_type": "Alto"}
	]`
	require.NoError(t, os.WriteFile(rosterPath, []byte(rosterJSON), 0o644))

	return &testEnv{configPath: configPath, rosterPath: rosterPath}
}

func (e *testEnv) exec(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func TestSeedMarkStatus_EndToEnd(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.exec(t, "seed", env.rosterPath, "--local")
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded 3 members")

	out, err = env.exec(t, "mark", "2025-06-01", "ASC-001", "ASC-002", "--local", "--title", "Sunday Service")
	require.NoError(t, err)
	assert.Contains(t, out, "Recorded 2 present for 2025-06-01")

	out, err = env.exec(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Maria Santos (leader)")
	assert.Contains(t, out, "Jose Cruz")
}

func TestSeed_RefusesOverwriteWithoutForce(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.exec(t, "seed", env.rosterPath, "--local")
	require.NoError(t, err)

	_, err = env.exec(t, "seed", env.rosterPath, "--local")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = env.exec(t, "seed", env.rosterPath, "--local", "--force")
	assert.NoError(t, err)
}

func TestSeed_InvalidRosterFails(t *testing.T) {
	env := newTestEnv(t)
	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[{"voice_type": "Alto"}]`), 0o644))

	_, err := env.exec(t, "seed", bad, "--local")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestMark_EmptySelectionClearsRecord(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.exec(t, "seed", env.rosterPath, "--local")
	require.NoError(t, err)

	_, err = env.exec(t, "mark", "2025-06-01", "ASC-001", "--local")
	require.NoError(t, err)

	out, err := env.exec(t, "mark", "2025-06-01", "--local")
	require.NoError(t, err)
	assert.Contains(t, out, "Cleared attendance record for 2025-06-01")

	out, err = env.exec(t, "status", "--format", "json")
	require.NoError(t, err)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(0), data["records"])
}

func TestMark_WithoutRosterFails(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.exec(t, "mark", "2025-06-01", "ASC-001", "--local")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no roster")
}

func TestMark_InvalidDateFails(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.exec(t, "mark", "June 1st", "--local")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestMark_AllAndExplicitIDsConflict(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.exec(t, "mark", "2025-06-01", "ASC-001", "--all", "--local")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestStatus_JSONListsPendingWrites(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.exec(t, "seed", env.rosterPath, "--local")
	require.NoError(t, err)

	out, err := env.exec(t, "status", "--format", "json")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(3), data["members"])
}
