// Package jobs contains the engine's scheduled jobs.
package jobs

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/alem-hub/adaptive-engine/internal/application/command"
	"github.com/alem-hub/adaptive-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE CLEANUP JOB
// Runs the cleanup sweep on a schedule. The sweep is idempotent, so a run cut
// short by shutdown is finished by the next one.
// ══════════════════════════════════════════════════════════════════════════════

// CleanupRunner runs one sweep. Implemented by command.CleanupHandler.
type CleanupRunner interface {
	Handle(ctx context.Context) (*command.CleanupResult, error)
}

// LifecycleCleanupConfig contains configuration for the cleanup job.
type LifecycleCleanupConfig struct {
	// Timeout bounds one sweep.
	Timeout time.Duration
}

// DefaultLifecycleCleanupConfig returns sensible defaults.
func DefaultLifecycleCleanupConfig() LifecycleCleanupConfig {
	return LifecycleCleanupConfig{
		Timeout: 15 * time.Minute,
	}
}

// LifecycleCleanupJob expires due items and deletes stale insights.
type LifecycleCleanupJob struct {
	runner CleanupRunner
	log    *logger.Logger
	config LifecycleCleanupConfig

	lastResult atomic.Pointer[command.CleanupResult]
}

// NewLifecycleCleanupJob creates a new cleanup job.
func NewLifecycleCleanupJob(runner CleanupRunner, log *logger.Logger, config LifecycleCleanupConfig) *LifecycleCleanupJob {
	if log == nil {
		log = logger.Nop()
	}
	return &LifecycleCleanupJob{
		runner: runner,
		log:    log.With(logger.Component("lifecycle_cleanup")),
		config: config,
	}
}

// Name returns the job name.
func (j *LifecycleCleanupJob) Name() string {
	return "lifecycle_cleanup"
}

// Description returns a human-readable description.
func (j *LifecycleCleanupJob) Description() string {
	return "Expires due insights and recommendations and deletes stale insights"
}

// Run executes one sweep.
func (j *LifecycleCleanupJob) Run(ctx context.Context) error {
	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	res, err := j.runner.Handle(ctx)
	if res != nil {
		j.lastResult.Store(res)
	}
	if err != nil {
		j.log.Warn("cleanup sweep interrupted", logger.Err(err))
		return err
	}
	return nil
}

// LastResult returns the totals of the most recent sweep, or nil.
func (j *LifecycleCleanupJob) LastResult() *command.CleanupResult {
	return j.lastResult.Load()
}
