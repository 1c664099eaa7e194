package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iiadata/treaty-crawler/internal/progress"
)

func TestHealthz(t *testing.T) {
	t.Parallel()
	s := NewServer(progress.NewTracker("run-1"), nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ok", string(body))
}

func TestProgressEndpoint(t *testing.T) {
	t.Parallel()
	tracker := progress.NewTracker("run-2")
	tracker.SetPhase(progress.PhaseCrawling)
	tracker.SetTotals(226, 4, 120)

	s := NewServer(tracker, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/progress")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var snap progress.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, "run-2", snap.RunID)
	assert.Equal(t, progress.PhaseCrawling, snap.Phase)
	assert.Equal(t, 226, snap.AnchorsTotal)
	assert.Equal(t, 4, snap.AnchorsDone)
	assert.Equal(t, 120, snap.RawItems)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	s := NewServer(progress.NewTracker("run-3"), nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUnknownRoute(t *testing.T) {
	t.Parallel()
	s := NewServer(progress.NewTracker("run-4"), nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestShutdownWithoutStart(t *testing.T) {
	t.Parallel()
	s := NewServer(progress.NewTracker("run-5"), nil)
	assert.NoError(t, s.Shutdown(context.Background()))
}
