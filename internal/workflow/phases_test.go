package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPhasesCatalog(t *testing.T) {
	phases := DefaultPhases()
	require.Len(t, phases, 4)

	keys := map[string]Phase{}
	for i, phase := range phases {
		assert.Equal(t, i+1, phase.Order)
		assert.NotEmpty(t, phase.Scans)
		assert.NotEmpty(t, phase.Recommendations)
		keys[phase.Key] = phase
	}

	assert.Empty(t, keys["reconnaissance"].Dependencies)
	assert.Equal(t, []string{"reconnaissance"}, keys["attack_surface"].Dependencies)
	assert.Equal(t, []string{"attack_surface"}, keys["vulnerability_assessment"].Dependencies)
	assert.Equal(t, []string{"vulnerability_assessment"}, keys["exploitation"].Dependencies)

	// Every dependency names an earlier phase
	for _, phase := range phases {
		for _, dep := range phase.Dependencies {
			depPhase, ok := keys[dep]
			require.True(t, ok, "dependency %q of %q is undefined", dep, phase.Key)
			assert.Less(t, depPhase.Order, phase.Order)
		}
	}
}

func TestLoadPhasesMissingFileFallsBack(t *testing.T) {
	phases, err := LoadPhases(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DefaultPhases(), phases)
}

func TestLoadPhasesFromYAML(t *testing.T) {
	dir := t.TempDir()
	catalog := `phases:
  - key: assessment
    name: Assessment
    order: 2
    scans: [vulnerability_scan]
    dependencies: [discovery]
  - key: discovery
    name: Discovery
    order: 1
    scans: [subdomain_scan, live_hosts_scan]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "workflow.yaml"), []byte(catalog), 0o644))

	phases, err := LoadPhases(dir)
	require.NoError(t, err)
	require.Len(t, phases, 2)

	// Sorted by order regardless of file order
	assert.Equal(t, "discovery", phases[0].Key)
	assert.Equal(t, []string{"subdomain_scan", "live_hosts_scan"}, phases[0].Scans)
	assert.Equal(t, "assessment", phases[1].Key)
	assert.Equal(t, []string{"discovery"}, phases[1].Dependencies)
}

func TestLoadPhasesRejectsInvalidCatalog(t *testing.T) {
	dir := t.TempDir()
	catalog := `phases:
  - name: No Key
    order: 1
    scans: [subdomain_scan]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "workflow.yaml"), []byte(catalog), 0o644))

	_, err := LoadPhases(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key, positive order and at least one scan are required")
}
