package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/alem-hub/adaptive-engine/internal/infrastructure/metrics"
	"github.com/alem-hub/adaptive-engine/internal/infrastructure/scheduler"
	"github.com/alem-hub/adaptive-engine/internal/interface/http/handlers"
	"github.com/alem-hub/adaptive-engine/pkg/logger"
)

type staticJobs []scheduler.JobInfo

func (s staticJobs) ListJobs() []scheduler.JobInfo { return s }

// toggles records enable/disable calls for known job names.
type toggles struct {
	known   map[string]bool
	enabled map[string]bool
}

func (c *toggles) set(name string, on bool) error {
	if !c.known[name] {
		return fmt.Errorf("%w: %s", scheduler.ErrJobNotFound, name)
	}
	c.enabled[name] = on
	return nil
}

func (c *toggles) EnableJob(name string) error  { return c.set(name, true) }
func (c *toggles) DisableJob(name string) error { return c.set(name, false) }

func serve(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthzReflectsChecks(t *testing.T) {
	hc := handlers.NewCompositeHealthChecker("test")
	hc.AddCheck("postgres", func(context.Context) error { return nil })
	s := NewServer(DefaultConfig(), Dependencies{HealthChecker: hc})

	rec := serve(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	hc.AddCheck("redis", func(context.Context) error { return errors.New("connection refused") })
	rec = serve(t, s, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var status handlers.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.Healthy)
	assert.Equal(t, "connection refused", status.Checks["redis"].Message)
	assert.True(t, status.Checks["postgres"].Healthy)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New()
	require.NoError(t, m.Register(reg))
	m.InsightOutcome("created", 0.8)

	s := NewServer(DefaultConfig(), Dependencies{Gatherer: reg})
	rec := serve(t, s, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `adaptive_engine_insight_candidates_total{outcome="created"} 1`)
}

func TestOptionalEndpointsAreDisabled(t *testing.T) {
	s := NewServer(DefaultConfig(), Dependencies{})

	assert.Equal(t, http.StatusOK, serve(t, s, "/healthz").Code)
	assert.Equal(t, http.StatusNotFound, serve(t, s, "/metrics").Code)
	assert.Equal(t, http.StatusNotFound, serve(t, s, "/jobs").Code)
}

func TestJobsEndpoint(t *testing.T) {
	next := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	jobs := staticJobs{{
		Name:      "lifecycle_cleanup",
		Schedule:  "@every 1h0m0s",
		Enabled:   true,
		NextRun:   next,
		RunCount:  3,
		FailCount: 1,
		LastRun:   next.Add(-time.Hour),
		LastResult: &scheduler.JobResult{
			Error: errors.New("storage unavailable"),
		},
	}}
	s := NewServer(DefaultConfig(), Dependencies{Jobs: jobs})

	rec := serve(t, s, "/jobs")
	require.Equal(t, http.StatusOK, rec.Code)

	var out []jobView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "lifecycle_cleanup", out[0].Name)
	assert.Equal(t, "storage unavailable", out[0].LastError)
	assert.Equal(t, int64(3), out[0].RunCount)
}

func TestRequestIDIsPropagated(t *testing.T) {
	s := NewServer(DefaultConfig(), Dependencies{})
	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))
}

func TestJobToggleEndpoints(t *testing.T) {
	ctl := &toggles{
		known:   map[string]bool{"lifecycle_cleanup": true},
		enabled: map[string]bool{"lifecycle_cleanup": true},
	}
	core, logs := observer.New(zapcore.InfoLevel)
	s := NewServer(DefaultConfig(), Dependencies{
		Logger:     logger.FromZap(zap.New(core)),
		JobControl: ctl,
	})

	post := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set("X-Request-ID", "req-7")
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		return rec
	}

	rec := post("/jobs/lifecycle_cleanup/disable")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, ctl.enabled["lifecycle_cleanup"])

	rec = post("/jobs/lifecycle_cleanup/enable")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, ctl.enabled["lifecycle_cleanup"])

	assert.Equal(t, http.StatusNotFound, post("/jobs/nope/enable").Code)

	entries := logs.FilterMessage("job toggled via ops endpoint").All()
	require.Len(t, entries, 2)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-7", fields["request_id"])
	assert.Equal(t, "lifecycle_cleanup", fields["job"])
	assert.Equal(t, false, fields["enabled"])
}

func TestJobToggleRequiresController(t *testing.T) {
	s := NewServer(DefaultConfig(), Dependencies{Jobs: staticJobs{}})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/lifecycle_cleanup/disable", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
