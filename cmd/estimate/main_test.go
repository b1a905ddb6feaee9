package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeGraphFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.json")
	contents := `{
		"nodes": [
			{"id": "document", "kind": "network", "connectionId": "c1", "transferSize": 5000, "ssl": true}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestRun_PrintsPredictedLoadTime(t *testing.T) {
	graphPath := writeGraphFixture(t)
	out := &bytes.Buffer{}

	err := run(out, []string{"-graph", graphPath})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "predicted page load time")
}

func TestRun_RequiresGraphFlag(t *testing.T) {
	out := &bytes.Buffer{}
	err := run(out, []string{})
	assert.Error(t, err)
}

func TestRun_AppliesNamedProfile(t *testing.T) {
	graphPath := writeGraphFixture(t)
	dir := filepath.Dir(graphPath)
	profilesPath := filepath.Join(dir, "profiles.hcl")
	require.NoError(t, os.WriteFile(profilesPath, []byte(`
profile "slow" {
  rtt = 1000
}
`), 0o644))

	out := &bytes.Buffer{}
	err := run(out, []string{"-graph", graphPath, "-profiles", profilesPath, "-profile", "slow"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "predicted page load time")
}

func TestRun_UnknownProfileIsRejected(t *testing.T) {
	graphPath := writeGraphFixture(t)
	dir := filepath.Dir(graphPath)
	profilesPath := filepath.Join(dir, "profiles.hcl")
	require.NoError(t, os.WriteFile(profilesPath, []byte(`
profile "slow" {
  rtt = 1000
}
`), 0o644))

	out := &bytes.Buffer{}
	err := run(out, []string{"-graph", graphPath, "-profiles", profilesPath, "-profile", "nonexistent"})
	assert.Error(t, err)
}
