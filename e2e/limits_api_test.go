package e2e

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimitsAPI_DailyRequests(t *testing.T) {
	f := suite.Fixture(t)
	client := f.APIClient()

	f.Log.Step("reading org limits", map[string]any{"path": client.LimitsPath()})

	limits, resp, err := client.Limits(context.Background())
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	daily, ok := limits["DailyApiRequests"]
	require.True(t, ok, "DailyApiRequests missing from limits")
	assert.Positive(t, daily.Max)

	f.Log.Info("daily API requests", map[string]any{"max": daily.Max, "remaining": daily.Remaining})
}

func TestLimitsAPI_Contract(t *testing.T) {
	f := suite.Fixture(t)
	client := f.APIClient()

	limits, resp, err := client.Limits(context.Background())
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	for _, key := range []string{"DailyApiRequests", "DataStorageMB", "FileStorageMB"} {
		assert.Contains(t, limits, key)
	}
	assert.True(t, limits.Has("DailyApiRequests", "DataStorageMB", "FileStorageMB"))
}
