package bootstrap

import (
	"fmt"

	"github.com/alem-hub/adaptive-engine/config"
	"github.com/alem-hub/adaptive-engine/internal/infrastructure/metrics"
	"github.com/alem-hub/adaptive-engine/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/adaptive-engine/internal/infrastructure/scheduler"
	"github.com/alem-hub/adaptive-engine/internal/infrastructure/scheduler/jobs"
	"github.com/alem-hub/adaptive-engine/internal/interface/http/handlers"
	"github.com/alem-hub/adaptive-engine/pkg/logger"
)

// NewScheduler builds the scheduler with the cleanup and batch generation
// jobs registered. Job durations and failures are reported to m.
func NewScheduler(
	cfg *config.Config,
	eng *Engine,
	st *Storage,
	m *metrics.Metrics,
	log *logger.Logger,
) (*scheduler.Scheduler, error) {
	cleanupSchedule, err := scheduler.ParseSchedule(cfg.Scheduler.CleanupSchedule)
	if err != nil {
		return nil, fmt.Errorf("scheduler.cleanup_schedule: %w", err)
	}
	batchSchedule, err := scheduler.ParseSchedule(cfg.Scheduler.BatchGenerationSchedule)
	if err != nil {
		return nil, fmt.Errorf("scheduler.batch_generation_schedule: %w", err)
	}

	schedCfg := scheduler.DefaultSchedulerConfig()
	schedCfg.Logger = log
	if cfg.App.Location != nil {
		schedCfg.Timezone = cfg.App.Location
	}
	sched := scheduler.NewScheduler(schedCfg)

	cleanup := jobs.NewLifecycleCleanupJob(eng.Cleanup, log, jobs.DefaultLifecycleCleanupConfig())
	if err := sched.Register(cleanup, cleanupSchedule); err != nil {
		return nil, err
	}

	var gauges jobs.GaugeSink
	if m != nil {
		gauges = m
	}
	batch := jobs.NewBatchGenerationJob(st.Profiles, eng.GenerateFromBehavior, eng.Feedback, gauges, log,
		jobs.BatchGenerationConfig{
			Concurrency: cfg.Scheduler.BatchConcurrency,
			PageSize:    cfg.Scheduler.BatchPageSize,
			Timeout:     cfg.Scheduler.JobTimeout,
		},
	)
	if err := sched.Register(batch, batchSchedule); err != nil {
		return nil, err
	}

	if m != nil {
		sched.OnJobStart(m.JobStarted)
		sched.OnJobComplete(func(r scheduler.JobResult) {
			m.JobFinished(r.JobName, r.Duration, r.Error)
		})
	}
	return sched, nil
}

// NewHealthChecker checks the storage and lock backends that are in use.
func NewHealthChecker(cfg *config.Config, st *Storage, rc *redis.Client) *handlers.CompositeHealthChecker {
	hc := handlers.NewCompositeHealthChecker(cfg.App.Version)
	if st.DB != nil {
		hc.AddCheck("postgres", st.DB.HealthCheck)
	}
	if rc != nil {
		hc.AddCheck("redis", handlers.PingCheck(rc))
	}
	return hc
}
