package actions

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/crmqa/crm-e2e/internal/config"
	"github.com/crmqa/crm-e2e/internal/state"
	"github.com/crmqa/crm-e2e/internal/testing/metrics"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{APIVersion: "v61.0", ArtifactsDir: t.TempDir()}
}

func TestShowConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Token = "secret"

	var out bytes.Buffer
	require.NoError(t, ShowConfig(&out, cfg))
	assert.Contains(t, out.String(), "Current Configuration")
	assert.NotContains(t, out.String(), "secret")
}

func TestPrepareAndClean(t *testing.T) {
	cfg := testConfig(t)

	var out bytes.Buffer
	require.NoError(t, Prepare(&out, cfg))
	require.NoError(t, Prepare(&out, cfg))
	for _, dir := range config.ArtifactDirs {
		assert.DirExists(t, cfg.Path(dir))
	}

	contacts := state.NewContactStore(cfg.Path(config.LastContactFile))
	require.NoError(t, contacts.Save(state.NewContact("Ana", "Silva")))

	out.Reset()
	require.NoError(t, Clean(&out, cfg, false))
	assert.Contains(t, out.String(), cfg.Path(config.TracesDir))
	assert.DirExists(t, cfg.Path(config.TracesDir))

	require.NoError(t, Clean(&out, cfg, true))
	for _, dir := range cleanTargets {
		assert.NoDirExists(t, cfg.Path(dir))
	}
	assert.True(t, contacts.Exists())
}

func TestReport(t *testing.T) {
	cfg := testConfig(t)
	log, _ := test.NewNullLogger()

	elapsed := 150.0
	summary, ok := metrics.Summarize("run-7", []metrics.CallMetric{
		{Endpoint: "/services/data/v61.0/limits", Method: "GET", Status: 200, ElapsedMS: &elapsed, Success: true},
	})
	require.True(t, ok)

	jsonPath, _, err := metrics.WriteReports(cfg.Path(config.ReportsDir), summary)
	require.NoError(t, err)
	assert.Equal(t, ReportPath(cfg), jsonPath)

	var out bytes.Buffer
	require.NoError(t, Report(&out, log, jsonPath))
	assert.Contains(t, out.String(), "run-7")
	assert.Contains(t, out.String(), "GET /services/data/v61.0/limits")

	err = Report(&out, log, filepath.Join(cfg.ArtifactsDir, "missing.json"))
	require.Error(t, err)
}

func TestShowAndClearState(t *testing.T) {
	cfg := testConfig(t)

	var out bytes.Buffer
	require.NoError(t, ShowState(&out, cfg))
	assert.Contains(t, out.String(), "Auth state:      (not found)")
	assert.Contains(t, out.String(), "Last contact:    (not found)")

	auth := state.NewAuthStore(cfg.Path(config.AuthStateFile))
	require.NoError(t, auth.Save(&state.StorageState{Cookies: []state.Cookie{{Name: "sid"}}}))
	contacts := state.NewContactStore(cfg.Path(config.LastContactFile))
	require.NoError(t, contacts.Save(state.NextEdit(state.NewContact("Ana", "Silva"))))

	out.Reset()
	require.NoError(t, ShowState(&out, cfg))
	assert.Contains(t, out.String(), "(1 cookies, 0 origins)")
	assert.Contains(t, out.String(), "Ana EDITADO 1 Silva (edits: 1)")

	require.NoError(t, ClearState(&out, cfg, StateContact))
	assert.False(t, contacts.Exists())
	assert.True(t, auth.Exists())

	require.NoError(t, ClearState(&out, cfg, StateAll))
	assert.False(t, auth.Exists())

	assert.ErrorIs(t, ClearState(&out, cfg, "cookies"), ErrUnknownStateTarget)
}
