package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaintenanceHandler(t *testing.T) {
	api := newTestAPIHandler(NewMapBookStorage())

	w := httptest.NewRecorder()
	api.Maintenance(w, httptest.NewRequest(http.MethodGet, "/ops/maintenance?status=enable&msg=upgrade", nil), nil)
	status, m := readResponse(t, w)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Maintenance mode enabled successfully.", m["message"])
	assert.Equal(t, "upgrade", m["maintenance.message"])
	assert.Equal(t, api.clock.Now().Format(time.RFC1123), m["maintenance.started"])
	assert.True(t, api.mode.enabled.Load())

	w = httptest.NewRecorder()
	api.Maintenance(w, httptest.NewRequest(http.MethodGet, "/ops/maintenance?status=disable", nil), nil)
	status, m = readResponse(t, w)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Maintenance mode disabled successfully.", m["message"])
	assert.False(t, api.mode.enabled.Load())

	w = httptest.NewRecorder()
	api.Maintenance(w, httptest.NewRequest(http.MethodGet, "/ops/maintenance?status=maybe", nil), nil)
	status, m = readResponse(t, w)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "status must be enable or disable.", m["message"])
}

func TestGetStatisticsHandler(t *testing.T) {
	api := newTestAPIHandler(NewMapBookStorage())
	api.stats.version = "v1.0.0"
	api.stats.called = 3
	api.stats.status[http.StatusCreated] = 2

	w := httptest.NewRecorder()
	api.GetStatistics(w, httptest.NewRequest(http.MethodGet, "/ops/stats", nil), nil)
	status, m := readResponse(t, w)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "v1.0.0", m["app.version"])
	assert.Equal(t, float64(2), m["called"])
	assert.Equal(t, "0 mins", m["uptime"])
	assert.Equal(t, map[string]interface{}{"201": float64(2)}, m["status"])
	maintenance, ok := m["maintenance"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, false, maintenance["enabled"])
}

func TestGetConfigsHandler(t *testing.T) {
	api := newTestAPIHandler(NewMapBookStorage())
	api.config.Database = DatabaseConfig{Driver: DriverSQLite, DSN: "file:secret.db"}
	api.config.Redis.Password = "secret"

	w := httptest.NewRecorder()
	api.GetConfigs(w, httptest.NewRequest(http.MethodGet, "/ops/configs", nil), nil)
	res := w.Result()
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.NotContains(t, w.Body.String(), "secret")
	assert.Contains(t, w.Body.String(), DriverSQLite)
}

func TestGetMemStatsHandler(t *testing.T) {
	w := httptest.NewRecorder()
	GetMemStats(w, httptest.NewRequest(http.MethodGet, "/ops/debug/vars", nil), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"goroutines"`)
	assert.Contains(t, w.Body.String(), `"memstats"`)
}

func TestRunRuntimeTaskHandler(t *testing.T) {
	api := newTestAPIHandler(NewMapBookStorage())
	testCases := []struct {
		task   string
		status int
		called string
	}{
		{"gc", http.StatusOK, "go runtime.GC()"},
		{"fos", http.StatusOK, "go debug.FreeOSMemory()"},
		{"stw", http.StatusBadRequest, "unknown task stw"},
	}
	for _, tc := range testCases {
		t.Run(tc.task, func(t *testing.T) {
			w := httptest.NewRecorder()
			api.RunRuntimeTask(w, httptest.NewRequest(http.MethodGet, "/ops/debug/runtime/"+tc.task, nil),
				httprouter.Params{{Key: "task", Value: tc.task}})
			status, m := readResponse(t, w)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.called, m["called"])
		})
	}
}
