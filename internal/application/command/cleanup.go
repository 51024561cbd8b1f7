package command

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/adaptive-engine/internal/domain/insight"
	"github.com/alem-hub/adaptive-engine/internal/domain/lifecycle"
	"github.com/alem-hub/adaptive-engine/internal/domain/recommendation"
	"github.com/alem-hub/adaptive-engine/pkg/logger"
	"github.com/alem-hub/adaptive-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLEANUP SWEEP
// Expires due recommendations and insights, then deletes stale insights.
// Each batch is independent, so an interrupted sweep resumes by running again.
// Per-item failures are logged and counted, never abort the sweep.
// ══════════════════════════════════════════════════════════════════════════════

// CleanupResult contains the totals of one sweep.
type CleanupResult struct {
	ExpiredRecommendations int
	ExpiredInsights        int
	DeletedInsights        int
	DeletedByReason        map[lifecycle.CleanupReason]int
	Failures               int
	Duration               time.Duration
}

// CleanupConfig contains configuration for the sweep.
type CleanupConfig struct {
	Policy    lifecycle.CleanupPolicy
	BatchSize int
}

// DefaultCleanupConfig returns default configuration.
func DefaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		Policy:    lifecycle.DefaultCleanupPolicy(),
		BatchSize: 200,
	}
}

// CleanupHandler runs the lifecycle sweep.
type CleanupHandler struct {
	insights insight.Repository
	recs     recommendation.Repository
	clock    timeutil.Clock
	recorder Recorder
	log      *logger.Logger
	config   CleanupConfig
}

// NewCleanupHandler creates a new CleanupHandler.
func NewCleanupHandler(
	insights insight.Repository,
	recs recommendation.Repository,
	clock timeutil.Clock,
	recorder Recorder,
	log *logger.Logger,
	config CleanupConfig,
) *CleanupHandler {
	def := DefaultCleanupConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.Policy == (lifecycle.CleanupPolicy{}) {
		config.Policy = def.Policy
	}
	return &CleanupHandler{
		insights: insights,
		recs:     recs,
		clock:    orSystemClock(clock),
		recorder: orNopRecorder(recorder),
		log:      log.Named("cleanup"),
		config:   config,
	}
}

// Handle runs one sweep. It returns a non-nil error only when ctx is done;
// the partial result is returned alongside it.
func (h *CleanupHandler) Handle(ctx context.Context) (*CleanupResult, error) {
	start := time.Now()
	now := h.clock.Now()
	res := &CleanupResult{DeletedByReason: make(map[lifecycle.CleanupReason]int)}

	defer func() {
		res.Duration = timed(start)
		h.recorder.Cleanup(res.ExpiredRecommendations, res.ExpiredInsights, res.DeletedInsights, res.Failures)
	}()

	// 1. Recommendations past their TTL
	n, err := h.expireAll(ctx, "recommendations", func(ctx context.Context) (int, error) {
		return h.recs.ExpireDue(ctx, now, h.config.BatchSize)
	}, res)
	res.ExpiredRecommendations = n
	if err != nil {
		return res, err
	}

	// 2. Insights with an explicit deadline
	n, err = h.expireAll(ctx, "insights", func(ctx context.Context) (int, error) {
		return h.insights.ExpireDue(ctx, now, h.config.BatchSize)
	}, res)
	res.ExpiredInsights = n
	if err != nil {
		return res, err
	}

	// 3-4. Rejected, ignored and unanswered insights
	if err := h.deleteStale(ctx, h.config.Policy.Cutoffs(now), res); err != nil {
		return res, err
	}

	h.log.Info("cleanup sweep finished",
		logger.Int("expired_recommendations", res.ExpiredRecommendations),
		logger.Int("expired_insights", res.ExpiredInsights),
		logger.Int("deleted_insights", res.DeletedInsights),
		logger.Int("failures", res.Failures),
		logger.Latency(timed(start)),
	)
	return res, nil
}

// expireAll repeats a batch expiry until a short batch. A failed batch is
// logged and counted, and the step ends there.
func (h *CleanupHandler) expireAll(ctx context.Context, what string, batch func(context.Context) (int, error), res *CleanupResult) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := batch(ctx)
		if err != nil {
			res.Failures++
			h.log.Error("expire batch failed", logger.String("subject", what), logger.Err(err))
			return total, nil
		}
		total += n
		if n < h.config.BatchSize {
			return total, nil
		}
	}
}

func (h *CleanupHandler) deleteStale(ctx context.Context, cutoffs lifecycle.Cutoffs, res *CleanupResult) error {
	cursor := uuid.Nil
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := h.insights.ListCleanupCandidates(ctx, cutoffs, cursor, h.config.BatchSize)
		if err != nil {
			res.Failures++
			h.log.Error("list cleanup candidates failed", logger.Err(err))
			return nil
		}

		for _, in := range batch {
			reason, _ := cutoffs.Eligible(in.Status)
			deleted, err := h.insights.DeleteIfEligible(ctx, in.ID, cutoffs)
			if err != nil {
				res.Failures++
				h.log.Warn("insight delete failed, continuing",
					logger.ItemID(in.ID.String()),
					logger.UserID(in.UserID),
					logger.Err(err),
				)
				continue
			}
			if deleted {
				res.DeletedInsights++
				res.DeletedByReason[reason]++
			}
		}

		if len(batch) < h.config.BatchSize {
			return nil
		}
		cursor = batch[len(batch)-1].ID
	}
}
