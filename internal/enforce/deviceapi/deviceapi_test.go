package deviceapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"focuslock/internal/enforce"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDriver(handler http.HandlerFunc) (*Driver, *httptest.Server) {
	server := httptest.NewServer(handler)
	driver := NewDriver(Config{BaseURL: server.URL, APIKey: "test-key"})
	return driver, server
}

func TestDriver_StartBlocking(t *testing.T) {
	var gotPath, gotMethod, gotKey string
	var gotBody enforce.StartConfig

	driver, server := newTestDriver(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		gotKey = r.Header.Get("x-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	})
	defer server.Close()

	endsAt := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	cfg := enforce.StartConfig{
		Mode:           "specific",
		SelectedApps:   []string{"com.example.game"},
		StrictMode:     true,
		LockEndEpochMs: endsAt.UnixMilli(),
		PresetID:       "p1",
		PresetName:     "Focus",
	}

	err := driver.StartBlocking(context.Background(), "u1", cfg)
	require.NoError(t, err)

	assert.Equal(t, "/api/devices/u1/enforcement", gotPath)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "specific", gotBody.Mode)
	assert.Equal(t, endsAt.UnixMilli(), gotBody.LockEndEpochMs)
	assert.True(t, gotBody.StrictMode)
}

func TestDriver_StartBlocking_ErrorStatus(t *testing.T) {
	driver, server := newTestDriver(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "engine busy", http.StatusServiceUnavailable)
	})
	defer server.Close()

	err := driver.StartBlocking(context.Background(), "u1", enforce.StartConfig{Mode: "all"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestDriver_ForceUnlock(t *testing.T) {
	var gotMethod string
	driver, server := newTestDriver(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusNoContent)
	})
	defer server.Close()

	err := driver.ForceUnlock(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, gotMethod)
}

func TestDriver_GetSessionInfo(t *testing.T) {
	driver, server := newTestDriver(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"is_active":     true,
			"remaining_ms":  90_000,
			"no_time_limit": false,
		})
	})
	defer server.Close()

	info, err := driver.GetSessionInfo(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.True(t, info.IsActive)
	assert.Equal(t, 90*time.Second, info.Remaining)
	assert.False(t, info.NoTimeLimit)
}

func TestDriver_GetSessionInfo_NotFound(t *testing.T) {
	driver, server := newTestDriver(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	defer server.Close()

	// 404 means the engine has nothing to report, not an error
	info, err := driver.GetSessionInfo(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestDriver_ScheduleAndCancelAlarm(t *testing.T) {
	type call struct {
		method string
		path   string
		body   map[string]int64
	}
	var calls []call

	driver, server := newTestDriver(func(w http.ResponseWriter, r *http.Request) {
		c := call{method: r.Method, path: r.URL.Path}
		if r.Method == http.MethodPut {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&c.body))
		}
		calls = append(calls, c)
		w.WriteHeader(http.StatusOK)
	})
	defer server.Close()

	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	require.NoError(t, driver.ScheduleAlarm(context.Background(), "u1", "p1", at))
	require.NoError(t, driver.CancelAlarm(context.Background(), "u1", "p1"))

	require.Len(t, calls, 2)
	assert.Equal(t, http.MethodPut, calls[0].method)
	assert.Equal(t, "/api/devices/u1/alarms/p1", calls[0].path)
	assert.Equal(t, at.UnixMilli(), calls[0].body["firing_time_epoch_ms"])
	assert.Equal(t, http.MethodDelete, calls[1].method)
}

func TestDriver_Name(t *testing.T) {
	assert.Equal(t, DriverName, NewDriver(Config{}).Name())
}
