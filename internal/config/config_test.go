package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{
		"SF_URL", "SF_USERNAME", "SF_PASSWORD", "SF_TOKEN", "SF_API_BASE_URL",
		"SF_API_VERSION", "HEADLESS", "LOG_LEVEL", "LOG_MAX_PREVIEW", "API_TIMEOUT",
		"API_INJECT_REQUEST_ID", "ARTIFACTS_DIR",
	} {
		t.Setenv(key, "")
	}

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "https://login.salesforce.com", cfg.LoginURL)
	assert.Equal(t, "v61.0", cfg.APIVersion)
	assert.True(t, cfg.Headless)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, DefaultMaxPreview, cfg.MaxPreview)
	assert.Equal(t, 30*time.Second, cfg.APITimeout)
	assert.True(t, cfg.InjectRequest)
	assert.Equal(t, "auth-state.json", cfg.Path(AuthStateFile))
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("SF_API_BASE_URL", "https://example.my.salesforce.com/")
	t.Setenv("SF_API_VERSION", "v60.0")
	t.Setenv("HEADLESS", "false")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_MAX_PREVIEW", "128")
	t.Setenv("ARTIFACTS_DIR", "/tmp/run")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.False(t, cfg.Headless)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 128, cfg.MaxPreview)
	assert.Equal(t, "/services/data/v60.0/limits", cfg.APILimitsPath())
	assert.Equal(t, "https://example.my.salesforce.com/services/data/v60.0/limits", cfg.APILimitsEndpoint())
	assert.Equal(t, "/tmp/run/reports", cfg.Path(ReportsDir))
}

func TestFromEnv_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "headless", key: "HEADLESS", value: "maybe"},
		{name: "preview not a number", key: "LOG_MAX_PREVIEW", value: "lots"},
		{name: "preview negative", key: "LOG_MAX_PREVIEW", value: "-1"},
		{name: "timeout", key: "API_TIMEOUT", value: "soon"},
		{name: "inject", key: "API_INJECT_REQUEST_ID", value: "perhaps"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestRequireHelpers(t *testing.T) {
	cfg := &Config{}

	assert.True(t, errors.Is(cfg.RequireAPI(), ErrMissingCredentials))
	assert.True(t, errors.Is(cfg.RequireLogin(), ErrMissingCredentials))

	cfg.APIBaseURL = "https://api"
	cfg.Token = "t"
	cfg.Username = "u"
	cfg.Password = "p"

	assert.NoError(t, cfg.RequireAPI())
	assert.NoError(t, cfg.RequireLogin())
}

func TestString_MasksSecrets(t *testing.T) {
	cfg := &Config{Username: "ana@example.com", Password: "hunter2", Token: "00Dxx!secret"}

	out := cfg.String()
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "00Dxx!secret")
	assert.Contains(t, out, "********")
}
