package command

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/alem-hub/adaptive-engine/internal/domain/insight"
	"github.com/alem-hub/adaptive-engine/internal/domain/lifecycle"
	"github.com/alem-hub/adaptive-engine/internal/domain/recommendation"
	"github.com/alem-hub/adaptive-engine/pkg/logger"
	"github.com/alem-hub/adaptive-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE TRANSITIONS
// present / respond / expire for insights and recommendations. Every call is
// a single-row compare-and-set; Outcome.Applied=false means "already done".
// ══════════════════════════════════════════════════════════════════════════════

const (
	subjectInsight        = "insight"
	subjectRecommendation = "recommendation"
)

// LifecycleHandler applies lifecycle transitions.
type LifecycleHandler struct {
	insights insight.Repository
	recs     recommendation.Repository
	clock    timeutil.Clock
	recorder Recorder
	log      *logger.Logger
}

// NewLifecycleHandler creates a new LifecycleHandler.
func NewLifecycleHandler(
	insights insight.Repository,
	recs recommendation.Repository,
	clock timeutil.Clock,
	recorder Recorder,
	log *logger.Logger,
) *LifecycleHandler {
	return &LifecycleHandler{
		insights: insights,
		recs:     recs,
		clock:    orSystemClock(clock),
		recorder: orNopRecorder(recorder),
		log:      log.Named("lifecycle"),
	}
}

// PresentInsight marks an insight as shown.
func (h *LifecycleHandler) PresentInsight(ctx context.Context, id uuid.UUID) (lifecycle.Outcome, error) {
	return h.insight(ctx, id, "present", lifecycle.Present(h.clock.Now()))
}

// RespondInsight records the user's response to an insight.
func (h *LifecycleHandler) RespondInsight(ctx context.Context, id uuid.UUID, response string) (lifecycle.Outcome, error) {
	r, err := lifecycle.ParseResponse(response)
	if err != nil {
		return lifecycle.Outcome{}, err
	}
	return h.insight(ctx, id, "respond", lifecycle.Respond(r, h.clock.Now()))
}

// ExpireInsight expires an insight if its explicit deadline passed.
func (h *LifecycleHandler) ExpireInsight(ctx context.Context, id uuid.UUID) (lifecycle.Outcome, error) {
	return h.insight(ctx, id, "expire", lifecycle.Expire(h.clock.Now()))
}

// PresentRecommendation marks a recommendation as shown.
func (h *LifecycleHandler) PresentRecommendation(ctx context.Context, id uuid.UUID) (lifecycle.Outcome, error) {
	return h.recommendation(ctx, id, "present", lifecycle.Present(h.clock.Now()), nil)
}

// RespondRecommendation records the response and an optional 1-5 rating.
func (h *LifecycleHandler) RespondRecommendation(ctx context.Context, id uuid.UUID, response string, rating *int) (lifecycle.Outcome, error) {
	r, err := lifecycle.ParseResponse(response)
	if err != nil {
		return lifecycle.Outcome{}, err
	}
	if err := recommendation.ValidateRating(rating); err != nil {
		return lifecycle.Outcome{}, err
	}
	return h.recommendation(ctx, id, "respond", lifecycle.Respond(r, h.clock.Now()), rating)
}

// ExpireRecommendation expires a recommendation past its TTL.
func (h *LifecycleHandler) ExpireRecommendation(ctx context.Context, id uuid.UUID) (lifecycle.Outcome, error) {
	return h.recommendation(ctx, id, "expire", lifecycle.Expire(h.clock.Now()), nil)
}

func (h *LifecycleHandler) insight(ctx context.Context, id uuid.UUID, name string, fn lifecycle.TransitionFunc) (lifecycle.Outcome, error) {
	out, err := h.insights.Transition(ctx, id, fn)
	if err != nil {
		return out, fmt.Errorf("%s %s: %w", name, subjectInsight, err)
	}
	h.recorded(subjectInsight, name, id, out)
	return out, nil
}

func (h *LifecycleHandler) recommendation(ctx context.Context, id uuid.UUID, name string, fn lifecycle.TransitionFunc, rating *int) (lifecycle.Outcome, error) {
	out, err := h.recs.Transition(ctx, id, fn, rating)
	if err != nil {
		return out, fmt.Errorf("%s %s: %w", name, subjectRecommendation, err)
	}
	h.recorded(subjectRecommendation, name, id, out)
	return out, nil
}

func (h *LifecycleHandler) recorded(subject, name string, id uuid.UUID, out lifecycle.Outcome) {
	h.recorder.Transition(subject, name, out.Applied)
	h.log.Debug("transition",
		logger.String("subject", subject),
		logger.Operation(name),
		logger.ItemID(id.String()),
		logger.String("state", string(out.Status.State)),
		logger.Bool("applied", out.Applied),
	)
}
