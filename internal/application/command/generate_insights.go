package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/adaptive-engine/internal/domain/insight"
	"github.com/alem-hub/adaptive-engine/internal/domain/profile"
	"github.com/alem-hub/adaptive-engine/internal/domain/shared"
	"github.com/alem-hub/adaptive-engine/pkg/logger"
	"github.com/alem-hub/adaptive-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GENERATE INSIGHTS COMMAND
// Admits signal candidates as insights: confidence floor first, then the
// (user, type, title) recency dedup, checked atomically with the insert.
// ══════════════════════════════════════════════════════════════════════════════

// GenerateInsightsCommand contains the candidate signals for one user.
type GenerateInsightsCommand struct {
	UserID  string
	Signals []insight.Signal
}

// CandidateResult reports what happened to one signal.
type CandidateResult struct {
	Signal    insight.Signal
	Outcome   insight.Outcome
	InsightID uuid.UUID
}

// GenerateInsightsResult contains stored insights and per-candidate outcomes.
type GenerateInsightsResult struct {
	Created    []*insight.Insight
	Candidates []CandidateResult
}

// GenerateInsightsConfig contains configuration for the handler.
type GenerateInsightsConfig struct {
	ConfidenceFloor float64
	DedupWindow     time.Duration
}

// DefaultGenerateInsightsConfig returns default configuration.
func DefaultGenerateInsightsConfig() GenerateInsightsConfig {
	return GenerateInsightsConfig{
		ConfidenceFloor: 0.5,
		DedupWindow:     timeutil.Days(7),
	}
}

// GenerateInsightsHandler handles GenerateInsightsCommand.
type GenerateInsightsHandler struct {
	profiles profile.Repository
	insights insight.Repository
	locker   UserLocker
	clock    timeutil.Clock
	recorder Recorder
	log      *logger.Logger
	config   GenerateInsightsConfig
}

// NewGenerateInsightsHandler creates a new GenerateInsightsHandler.
func NewGenerateInsightsHandler(
	profiles profile.Repository,
	insights insight.Repository,
	locker UserLocker,
	clock timeutil.Clock,
	recorder Recorder,
	log *logger.Logger,
	config GenerateInsightsConfig,
) *GenerateInsightsHandler {
	if config.DedupWindow == 0 {
		config = DefaultGenerateInsightsConfig()
	}
	return &GenerateInsightsHandler{
		profiles: profiles,
		insights: insights,
		locker:   locker,
		clock:    orSystemClock(clock),
		recorder: orNopRecorder(recorder),
		log:      log.Named("generate_insights"),
		config:   config,
	}
}

// Handle generates insights. Any invalid signal rejects the whole call
// before anything is written. A failed insert stops the call: the insights
// stored before it are returned with the error, and the candidates after it
// keep an empty Outcome.
func (h *GenerateInsightsHandler) Handle(ctx context.Context, cmd GenerateInsightsCommand) (*GenerateInsightsResult, error) {
	userID, err := shared.RequireUserID("insight", "Generate", cmd.UserID)
	if err != nil {
		return nil, err
	}
	for _, s := range cmd.Signals {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}

	if _, err := h.profiles.Get(ctx, userID); err != nil {
		return nil, fmt.Errorf("generate_insights: %w", err)
	}

	now := h.clock.Now()
	result := &GenerateInsightsResult{
		Created:    make([]*insight.Insight, 0),
		Candidates: make([]CandidateResult, len(cmd.Signals)),
	}

	// Computation is done before the lock: only inserts are serialized.
	type pending struct {
		idx int
		in  *insight.Insight
	}
	admitted := make([]pending, 0, len(cmd.Signals))
	for i, s := range cmd.Signals {
		result.Candidates[i].Signal = s
		if !shared.Confidence(s.Confidence).AtLeast(h.config.ConfidenceFloor) {
			result.Candidates[i].Outcome = insight.OutcomeBelowFloor
			h.recorder.InsightOutcome(string(insight.OutcomeBelowFloor), s.Confidence)
			continue
		}
		admitted = append(admitted, pending{idx: i, in: insight.New(userID, s, now)})
	}
	if len(admitted) == 0 {
		return result, nil
	}

	release, err := h.locker.Acquire(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("generate_insights: acquire lock: %w", err)
	}
	defer release()

	windowStart := now.Add(-h.config.DedupWindow)
	for n, p := range admitted {
		inserted, err := h.insights.InsertIfNoRecent(ctx, p.in, windowStart)
		if err != nil {
			h.log.Error("insight insert failed",
				logger.UserID(userID),
				logger.String("type", string(p.in.Type)),
				logger.Int("inserted_before_failure", len(result.Created)),
				logger.Int("remaining", len(admitted)-n),
				logger.Err(err),
			)
			return result, fmt.Errorf("generate_insights: %w", err)
		}

		c := &result.Candidates[p.idx]
		if !inserted {
			c.Outcome = insight.OutcomeDuplicate
			h.recorder.InsightOutcome(string(insight.OutcomeDuplicate), p.in.Confidence.Float64())
			continue
		}
		c.Outcome = insight.OutcomeCreated
		c.InsightID = p.in.ID
		result.Created = append(result.Created, p.in)
		h.recorder.InsightOutcome(string(insight.OutcomeCreated), p.in.Confidence.Float64())
	}

	h.log.Debug("insights generated",
		logger.UserID(userID),
		logger.Int("signals", len(cmd.Signals)),
		logger.Int("created", len(result.Created)),
	)
	return result, nil
}
