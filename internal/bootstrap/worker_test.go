package bootstrap

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/adaptive-engine/internal/infrastructure/lock"
	"github.com/alem-hub/adaptive-engine/internal/infrastructure/metrics"
	"github.com/alem-hub/adaptive-engine/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/adaptive-engine/pkg/logger"
)

func TestNewSchedulerRegistersJobs(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Scheduler.CleanupSchedule = "0 3 * * *"

	st := NewMemoryStorage(memory.NewStore())
	eng, err := NewEngine(st, lock.NewKeyedMutex(), nil, nil, cfg.Engine, logger.Nop())
	require.NoError(t, err)

	m := metrics.New()
	require.NoError(t, m.Register(prometheus.NewRegistry()))

	sched, err := NewScheduler(cfg, eng, st, m, logger.Nop())
	require.NoError(t, err)

	infos := sched.ListJobs()
	require.Len(t, infos, 2)
	assert.Equal(t, "batch_generation", infos[0].Name)
	assert.Equal(t, "@every 24h0m0s", infos[0].Schedule)
	assert.Equal(t, "lifecycle_cleanup", infos[1].Name)
	assert.Equal(t, "0 3 * * *", infos[1].Schedule)

	res, err := sched.RunNow(context.Background(), "lifecycle_cleanup")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, testutil.CollectAndCount(m.JobDuration))
	assert.Equal(t, 1, testutil.CollectAndCount(m.JobsRunning), "started jobs are tracked")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.JobsRunning.WithLabelValues("lifecycle_cleanup")))
}

func TestNewSchedulerRejectsBadSchedule(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Scheduler.BatchGenerationSchedule = "@every -1m"

	st := NewMemoryStorage(memory.NewStore())
	eng, err := NewEngine(st, lock.NewKeyedMutex(), nil, nil, cfg.Engine, logger.Nop())
	require.NoError(t, err)

	_, err = NewScheduler(cfg, eng, st, nil, logger.Nop())
	assert.ErrorContains(t, err, "scheduler.batch_generation_schedule")
}

func TestHealthCheckerForMemoryStorage(t *testing.T) {
	cfg := memoryConfig(t)
	hc := NewHealthChecker(cfg, NewMemoryStorage(memory.NewStore()), nil)

	status := hc.Check(context.Background())
	assert.True(t, status.Healthy)
	assert.Empty(t, status.Checks)
}
