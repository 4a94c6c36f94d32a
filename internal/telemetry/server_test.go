package telemetry

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testState() StateSnapshot {
	return StateSnapshot{
		Session:    "authenticated",
		Selection:  "sales_db",
		Databases:  map[string]string{"sales_db": "full", "hr_db": "name_only"},
		UploadBusy: true,
	}
}

func newTestServer(t *testing.T, m *Metrics) *Server {
	t.Helper()
	s, err := NewServer("localhost", 0, m, testState, nil)
	require.NoError(t, err)
	return s
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, NewMetrics())

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
}

func TestStateEndpoint(t *testing.T) {
	s := newTestServer(t, NewMetrics())

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/state", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var snap StateSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "sales_db", snap.Selection)
	assert.True(t, snap.UploadBusy)
	assert.Equal(t, "name_only", snap.Databases["hr_db"])
}

func TestMetricsEndpoint(t *testing.T) {
	m := NewMetrics()
	m.ObserveFetch("success", 120*time.Millisecond)
	m.ObserveFetch("error", 10*time.Millisecond)
	m.ObserveUpload("success")
	m.SetDatabaseCount(3)

	s := newTestServer(t, m)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `dbstudio_detail_fetches_total{status="success"} 1`), body)
	assert.True(t, strings.Contains(body, `dbstudio_detail_fetches_total{status="error"} 1`), body)
	assert.True(t, strings.Contains(body, `dbstudio_uploads_total{status="success"} 1`), body)
	assert.True(t, strings.Contains(body, "dbstudio_databases 3"), body)
}

func TestNewServerRequiresState(t *testing.T) {
	_, err := NewServer("localhost", 0, NewMetrics(), nil, nil)
	assert.Error(t, err)
}
