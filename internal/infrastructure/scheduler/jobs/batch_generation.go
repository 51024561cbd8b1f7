package jobs

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alem-hub/adaptive-engine/internal/application/command"
	"github.com/alem-hub/adaptive-engine/internal/application/query"
	"github.com/alem-hub/adaptive-engine/internal/domain/feedback"
	"github.com/alem-hub/adaptive-engine/internal/domain/insight"
	"github.com/alem-hub/adaptive-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// BATCH GENERATION JOB
// Walks every profiled user page by page and generates insights from
// behavioral aggregates. Users are processed concurrently; the per-user lock
// inside the generator keeps overlapping runs from duplicating rows.
// After the walk the feedback gauges are refreshed.
// ══════════════════════════════════════════════════════════════════════════════

// UserLister pages through users with profiles. Implemented by profile.Repository.
type UserLister interface {
	ListUserIDs(ctx context.Context, afterUserID string, limit int) ([]string, error)
}

// UserGenerator generates insights for one user.
// Implemented by command.GenerateFromBehaviorHandler.
type UserGenerator interface {
	Handle(ctx context.Context, userID string) (*command.GenerateInsightsResult, error)
}

// FeedbackSource reads the summaries published as gauges.
// Implemented by query.FeedbackHandler.
type FeedbackSource interface {
	AcceptanceRate(ctx context.Context, q query.AcceptanceRateQuery) (feedback.Rate, error)
	EffectivenessAll(ctx context.Context) ([]feedback.Effectiveness, error)
}

// GaugeSink receives the refreshed summaries. Implemented by metrics.Metrics.
type GaugeSink interface {
	SetAcceptance(subject string, value float64, defined bool)
	SetMeanRating(version string, value float64, defined bool)
}

// BatchGenerationConfig contains configuration for the batch job.
type BatchGenerationConfig struct {
	// Concurrency is the number of users processed in parallel.
	Concurrency int

	// PageSize is the number of user ids fetched per page.
	PageSize int

	// Timeout bounds the entire run.
	Timeout time.Duration

	// MaxFailureRate fails the run when exceeded (0..1).
	MaxFailureRate float64
}

// DefaultBatchGenerationConfig returns sensible defaults.
func DefaultBatchGenerationConfig() BatchGenerationConfig {
	return BatchGenerationConfig{
		Concurrency:    8,
		PageSize:       500,
		Timeout:        2 * time.Hour,
		MaxFailureRate: 0.5,
	}
}

// BatchStats contains statistics from a batch run.
type BatchStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Users       int
	Failed      int
	Created     int
	Duplicates  int
	BelowFloor  int
}

func (s *BatchStats) add(res *command.GenerateInsightsResult) {
	s.Created += len(res.Created)
	for _, c := range res.Candidates {
		switch c.Outcome {
		case insight.OutcomeDuplicate:
			s.Duplicates++
		case insight.OutcomeBelowFloor:
			s.BelowFloor++
		}
	}
}

// BatchGenerationJob generates insights for all users.
type BatchGenerationJob struct {
	users     UserLister
	generator UserGenerator
	feedback  FeedbackSource
	gauges    GaugeSink
	log       *logger.Logger
	config    BatchGenerationConfig

	lastStats atomic.Pointer[BatchStats]
}

// NewBatchGenerationJob creates a new batch job. stats and gauges may be
// nil, in which case the gauge refresh is skipped.
func NewBatchGenerationJob(
	users UserLister,
	generator UserGenerator,
	stats FeedbackSource,
	gauges GaugeSink,
	log *logger.Logger,
	config BatchGenerationConfig,
) *BatchGenerationJob {
	def := DefaultBatchGenerationConfig()
	if config.Concurrency <= 0 {
		config.Concurrency = def.Concurrency
	}
	if config.PageSize <= 0 {
		config.PageSize = def.PageSize
	}
	if config.MaxFailureRate <= 0 {
		config.MaxFailureRate = def.MaxFailureRate
	}
	if log == nil {
		log = logger.Nop()
	}
	return &BatchGenerationJob{
		users:     users,
		generator: generator,
		feedback:  stats,
		gauges:    gauges,
		log:       log.With(logger.Component("batch_generation")),
		config:    config,
	}
}

// Name returns the job name.
func (j *BatchGenerationJob) Name() string {
	return "batch_generation"
}

// Description returns a human-readable description.
func (j *BatchGenerationJob) Description() string {
	return "Generates insights for every profiled user and refreshes feedback gauges"
}

// Run executes the batch.
func (j *BatchGenerationJob) Run(ctx context.Context) error {
	stats := &BatchStats{StartedAt: time.Now()}
	defer func() {
		stats.CompletedAt = time.Now()
		stats.Duration = stats.CompletedAt.Sub(stats.StartedAt)
		j.lastStats.Store(stats)
	}()

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	j.log.Info("batch generation started")

	after := ""
	for {
		page, err := j.users.ListUserIDs(ctx, after, j.config.PageSize)
		if err != nil {
			return fmt.Errorf("batch_generation: list users: %w", err)
		}
		if err := j.generatePage(ctx, page, stats); err != nil {
			return err
		}
		if len(page) < j.config.PageSize {
			break
		}
		after = page[len(page)-1]
	}

	j.refreshGauges(ctx)

	j.log.Info("batch generation completed",
		logger.Int("users", stats.Users),
		logger.Int("failed", stats.Failed),
		logger.Int("created", stats.Created),
		logger.Int("duplicates", stats.Duplicates),
		logger.Int("below_floor", stats.BelowFloor),
		logger.Latency(time.Since(stats.StartedAt)),
	)

	if stats.Users > 0 {
		rate := float64(stats.Failed) / float64(stats.Users)
		if rate > j.config.MaxFailureRate {
			return fmt.Errorf("batch_generation: failed for %d of %d users", stats.Failed, stats.Users)
		}
	}
	return nil
}

// generatePage fans out one page. Per-user failures are counted and logged;
// only cancellation aborts the page.
func (j *BatchGenerationJob) generatePage(ctx context.Context, userIDs []string, stats *BatchStats) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.config.Concurrency)

	var mu sync.Mutex
	for _, id := range userIDs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := j.generator.Handle(gctx, id)

			mu.Lock()
			defer mu.Unlock()
			stats.Users++
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				stats.Failed++
				j.log.Warn("user generation failed", logger.UserID(id), logger.Err(err))
				return nil
			}
			stats.add(res)
			return nil
		})
	}
	return g.Wait()
}

func (j *BatchGenerationJob) refreshGauges(ctx context.Context) {
	if j.feedback == nil || j.gauges == nil {
		return
	}
	for _, subject := range []feedback.Subject{feedback.SubjectInsights, feedback.SubjectRecommendations} {
		rate, err := j.feedback.AcceptanceRate(ctx, query.AcceptanceRateQuery{Subject: subject})
		if err != nil {
			j.log.Warn("acceptance refresh failed", logger.String("subject", string(subject)), logger.Err(err))
			continue
		}
		j.gauges.SetAcceptance(string(subject), rate.Value, rate.Defined)
	}

	versions, err := j.feedback.EffectivenessAll(ctx)
	if err != nil {
		j.log.Warn("effectiveness refresh failed", logger.Err(err))
		return
	}
	for _, v := range versions {
		j.gauges.SetMeanRating(v.AlgorithmVersion, v.MeanRating, v.MeanDefined)
	}
}

// LastStats returns statistics of the most recent run, or nil.
func (j *BatchGenerationJob) LastStats() *BatchStats {
	return j.lastStats.Load()
}
