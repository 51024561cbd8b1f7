package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alem-hub/adaptive-engine/internal/domain/profile"
	"github.com/alem-hub/adaptive-engine/internal/domain/recommendation"
	"github.com/alem-hub/adaptive-engine/internal/domain/shared"
	"github.com/alem-hub/adaptive-engine/pkg/logger"
	"github.com/alem-hub/adaptive-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCORE RECOMMENDATIONS COMMAND
// Scores candidate content for a student and stores those above the floor.
// All reads and scoring happen first; only the retract-then-insert
// sequence runs under the per-user lock.
// ══════════════════════════════════════════════════════════════════════════════

// ScoreRecommendationsCommand contains the student and candidate content ids.
type ScoreRecommendationsCommand struct {
	StudentID  string
	ContentIDs []string
}

// ScoreRecommendationsResult contains the created recommendations, ranked.
type ScoreRecommendationsResult struct {
	Created    []*recommendation.Recommendation
	Unknown    []string
	BelowFloor []string
	Retracted  int
}

// ScoreRecommendationsConfig contains configuration for the handler.
type ScoreRecommendationsConfig struct {
	ConfidenceFloor  float64
	TTL              time.Duration
	Weights          recommendation.Weights
	AlgorithmVersion string

	// Compatibility and Decay are pluggable; nil selects the defaults.
	Compatibility recommendation.CompatibilityFunc
	Decay         recommendation.DecayFunc
}

// DefaultScoreRecommendationsConfig returns default configuration.
func DefaultScoreRecommendationsConfig() ScoreRecommendationsConfig {
	return ScoreRecommendationsConfig{
		ConfidenceFloor:  0.5,
		TTL:              timeutil.Days(30),
		Weights:          recommendation.DefaultWeights(),
		AlgorithmVersion: "rules-v1",
		Compatibility:    recommendation.CompatibilityScore,
		Decay:            recommendation.HalfLifeDecay(timeutil.Days(14)),
	}
}

// ScoreRecommendationsHandler handles ScoreRecommendationsCommand.
type ScoreRecommendationsHandler struct {
	profiles     profile.Repository
	recs         recommendation.Repository
	catalog      recommendation.ContentCatalog
	interactions recommendation.InteractionSource
	needs        recommendation.NeedSource
	locker       UserLocker
	clock        timeutil.Clock
	recorder     Recorder
	log          *logger.Logger
	config       ScoreRecommendationsConfig
}

// NewScoreRecommendationsHandler creates a new ScoreRecommendationsHandler.
func NewScoreRecommendationsHandler(
	profiles profile.Repository,
	recs recommendation.Repository,
	catalog recommendation.ContentCatalog,
	interactions recommendation.InteractionSource,
	needs recommendation.NeedSource,
	locker UserLocker,
	clock timeutil.Clock,
	recorder Recorder,
	log *logger.Logger,
	config ScoreRecommendationsConfig,
) *ScoreRecommendationsHandler {
	def := DefaultScoreRecommendationsConfig()
	if config.TTL == 0 {
		config.TTL = def.TTL
	}
	if config.Weights == (recommendation.Weights{}) {
		config.Weights = def.Weights
	}
	if config.AlgorithmVersion == "" {
		config.AlgorithmVersion = def.AlgorithmVersion
	}
	if config.Compatibility == nil {
		config.Compatibility = def.Compatibility
	}
	if config.Decay == nil {
		config.Decay = def.Decay
	}
	return &ScoreRecommendationsHandler{
		profiles:     profiles,
		recs:         recs,
		catalog:      catalog,
		interactions: interactions,
		needs:        needs,
		locker:       locker,
		clock:        orSystemClock(clock),
		recorder:     orNopRecorder(recorder),
		log:          log.Named("score_recommendations"),
		config:       config,
	}
}

// Handle scores and stores recommendations. A failed insert stops the call
// and the recommendations stored before it are returned with the error.
func (h *ScoreRecommendationsHandler) Handle(ctx context.Context, cmd ScoreRecommendationsCommand) (*ScoreRecommendationsResult, error) {
	studentID, err := shared.RequireUserID("recommendation", "Score", cmd.StudentID)
	if err != nil {
		return nil, err
	}
	ids := uniqueIDs(cmd.ContentIDs)

	p, err := h.profiles.Get(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("score_recommendations: %w", err)
	}

	result := &ScoreRecommendationsResult{Created: make([]*recommendation.Recommendation, 0)}
	if len(ids) == 0 {
		return result, nil
	}

	scored, err := h.score(ctx, p, ids, result)
	if err != nil {
		return nil, err
	}
	if len(scored) == 0 {
		return result, nil
	}

	release, err := h.locker.Acquire(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("score_recommendations: acquire lock: %w", err)
	}
	defer release()

	now := h.clock.Now()
	for _, s := range scored {
		rec := recommendation.New(studentID, s, h.config.AlgorithmVersion, now, h.config.TTL)
		retracted, err := h.recs.ReplaceActive(ctx, rec, now)
		if err != nil {
			h.log.Error("recommendation insert failed",
				logger.UserID(studentID),
				logger.String("content_id", s.ContentID),
				logger.Int("inserted_before_failure", len(result.Created)),
				logger.Err(err),
			)
			return result, fmt.Errorf("score_recommendations: %w", err)
		}
		result.Created = append(result.Created, rec)
		result.Retracted += retracted
		h.recorder.RecommendationCreated(string(rec.Type), string(rec.Priority), rec.Confidence.Float64(), retracted)
	}

	h.log.Debug("recommendations scored",
		logger.UserID(studentID),
		logger.Int("candidates", len(ids)),
		logger.Int("created", len(result.Created)),
		logger.Int("retracted", result.Retracted),
		logger.AlgorithmVersion(h.config.AlgorithmVersion),
	)
	return result, nil
}

// score reads collaborator data and computes ranked results above the floor.
func (h *ScoreRecommendationsHandler) score(
	ctx context.Context,
	p *profile.Profile,
	ids []string,
	result *ScoreRecommendationsResult,
) ([]recommendation.Scored, error) {
	contents, err := h.catalog.Contents(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("score_recommendations: catalog: %w", err)
	}
	history, err := h.interactions.Interactions(ctx, p.UserID, ids)
	if err != nil {
		return nil, fmt.Errorf("score_recommendations: interactions: %w", err)
	}
	unmet, err := h.needs.UnmetNeeds(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("score_recommendations: unmet needs: %w", err)
	}
	presented, err := h.recs.LastPresented(ctx, p.UserID, ids)
	if err != nil {
		return nil, fmt.Errorf("score_recommendations: last presented: %w", err)
	}

	now := h.clock.Now()
	needs := recommendation.NeedsFromProfile(p)
	out := make([]recommendation.Scored, 0, len(ids))

	for _, id := range ids {
		content, ok := contents[id]
		if !ok {
			result.Unknown = append(result.Unknown, id)
			h.log.Warn("unknown content skipped", logger.UserID(p.UserID), logger.String("content_id", id))
			continue
		}

		stats, seen := history[id]
		var last *time.Time
		if t, ok := presented[id]; ok {
			last = &t
		}

		c := recommendation.Components{
			Compatibility: clamp01(h.config.Compatibility(needs, content.AccessibilityTags)),
			Interaction:   recommendation.InteractionSignal(stats, seen),
			Recency:       clamp01(h.config.Decay(last, now)),
		}
		conf, typ := recommendation.Blend(c, h.config.Weights)
		if !conf.AtLeast(h.config.ConfidenceFloor) {
			result.BelowFloor = append(result.BelowFloor, id)
			continue
		}

		out = append(out, recommendation.Scored{
			ContentID:  id,
			Type:       typ,
			Confidence: conf,
			Priority:   recommendation.DerivePriority(conf, recommendation.AddressesUnmetNeed(unmet, content.AccessibilityTags)),
			Components: c,
		})
	}

	recommendation.Rank(out)
	return out, nil
}

func clamp01(v float64) float64 {
	return shared.ClampConfidence(v).Float64()
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
