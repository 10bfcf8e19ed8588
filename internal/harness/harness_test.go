package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return scenario
}

func TestScenarios_Golden(t *testing.T) {
	names := []string{
		"offline_edit_syncs",
		"remote_push_updates_view",
		"remote_deletion_resets",
	}

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			RunWithGolden(t, loadTestScenario(t, name))
		})
	}
}

func TestRun_ReportsAssertionFailures(t *testing.T) {
	scenario := loadTestScenario(t, "offline_edit_syncs")
	scenario.Assertions = []Assertion{
		{Type: AssertQueueLen, Count: 7},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "queue_len")
}

func TestRun_FreshMirrorPerRun(t *testing.T) {
	scenario := loadTestScenario(t, "offline_edit_syncs")

	// Running twice must not leak queue state between runs.
	for i := 0; i < 2; i++ {
		result, err := Run(scenario)
		require.NoError(t, err)
		assert.True(t, result.Pass, "run %d: %v", i, result.Errors)
	}
}

func TestRun_UnknownStepActionFails(t *testing.T) {
	scenario := loadTestScenario(t, "offline_edit_syncs")
	scenario.Steps = append(scenario.Steps, Step{Action: "explode"})

	_, err := Run(scenario)
	assert.Error(t, err)
}
