package browser

import (
	"archive/zip"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/crmqa/crm-e2e/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCookieParams(t *testing.T) {
	params := cookieParams([]state.Cookie{
		{Name: "sid", Value: "abc", Domain: ".crm.test", Path: "/", Expires: 1700000000.5, HTTPOnly: true, Secure: true, SameSite: "Lax"},
		{Name: "session", Value: "x", Domain: "crm.test", Path: "/", Expires: -1},
	})
	require.Len(t, params, 2)

	assert.Equal(t, "sid", params[0].Name)
	assert.True(t, params[0].HTTPOnly)
	assert.Equal(t, network.CookieSameSiteLax, params[0].SameSite)
	require.NotNil(t, params[0].Expires)
	assert.Equal(t, int64(1700000000), params[0].Expires.Time().Unix())
	assert.Equal(t, 500*time.Millisecond, time.Duration(params[0].Expires.Time().Nanosecond()))

	assert.Nil(t, params[1].Expires)
	assert.Empty(t, params[1].SameSite)
}

func TestLocalStorageInitScript(t *testing.T) {
	script, err := localStorageInitScript([]state.Origin{
		{Origin: "https://crm.test", LocalStorage: []state.NameValue{{Name: "theme", Value: `dark "mode"`}}},
	})
	require.NoError(t, err)

	start := strings.Index(script, "var saved = ") + len("var saved = ")
	end := strings.Index(script, ";\n")
	require.Positive(t, start)
	require.Greater(t, end, start)

	var saved map[string]map[string]string
	require.NoError(t, json.Unmarshal([]byte(script[start:end]), &saved))
	assert.Equal(t, map[string]map[string]string{"https://crm.test": {"theme": `dark "mode"`}}, saved)
}

func TestWriteTraceZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces", "TestUI.zip")

	events := []json.RawMessage{json.RawMessage(`{"name":"a"}`), json.RawMessage(`{"name":"b"}`)}
	require.NoError(t, writeTraceZip(path, events, "<html></html>"))

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"trace.json", "snapshot.html"}, names)

	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	defer rc.Close()

	var trace struct {
		TraceEvents []map[string]string `json:"traceEvents"`
	}
	require.NoError(t, json.NewDecoder(rc).Decode(&trace))
	assert.Equal(t, []map[string]string{{"name": "a"}, {"name": "b"}}, trace.TraceEvents)
}
