package query_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/adaptive-engine/internal/application/query"
	"github.com/alem-hub/adaptive-engine/internal/domain/feedback"
	"github.com/alem-hub/adaptive-engine/internal/domain/lifecycle"
	"github.com/alem-hub/adaptive-engine/internal/domain/recommendation"
	"github.com/alem-hub/adaptive-engine/internal/domain/shared"
	"github.com/alem-hub/adaptive-engine/internal/infrastructure/persistence/memory"
)

func seedResponse(t *testing.T, store *memory.Store, contentID, version, response string, rating *int) {
	t.Helper()
	ctx := context.Background()
	repo := store.Recommendations()

	rec := recommendation.New("s1", recommendation.Scored{
		ContentID:  contentID,
		Type:       recommendation.TypeAccessibilityMatch,
		Confidence: 0.8,
		Priority:   shared.PriorityHigh,
	}, version, now, 30*24*time.Hour)
	_, err := repo.ReplaceActive(ctx, rec, now)
	require.NoError(t, err)

	_, err = repo.Transition(ctx, rec.ID, lifecycle.Present(now), nil)
	require.NoError(t, err)
	r, err := lifecycle.ParseResponse(response)
	require.NoError(t, err)
	_, err = repo.Transition(ctx, rec.ID, lifecycle.Respond(r, now), rating)
	require.NoError(t, err)
}

func rating(v int) *int { return &v }

func TestAcceptanceRate(t *testing.T) {
	store := memory.NewStore()
	h := query.NewFeedbackHandler(store.Feedback())
	ctx := context.Background()

	rate, err := h.AcceptanceRate(ctx, query.AcceptanceRateQuery{Subject: feedback.SubjectRecommendations})
	require.NoError(t, err)
	assert.False(t, rate.Defined, "no responses means undefined, not zero")

	seedResponse(t, store, "c1", "rules-v1", "accepted", nil)
	seedResponse(t, store, "c2", "rules-v1", "rejected", nil)
	seedResponse(t, store, "c3", "rules-v1", "accepted", nil)
	seedResponse(t, store, "c4", "rules-v1", "ignored", nil)

	rate, err = h.AcceptanceRate(ctx, query.AcceptanceRateQuery{Subject: feedback.SubjectRecommendations, UserID: "s1"})
	require.NoError(t, err)
	assert.True(t, rate.Defined)
	assert.Equal(t, 2, rate.Accepted)
	assert.Equal(t, 4, rate.Total)
	assert.InDelta(t, 0.5, rate.Value, 1e-9)

	rate, err = h.AcceptanceRate(ctx, query.AcceptanceRateQuery{Subject: feedback.SubjectInsights})
	require.NoError(t, err)
	assert.False(t, rate.Defined)

	_, err = h.AcceptanceRate(ctx, query.AcceptanceRateQuery{Subject: "events"})
	assert.True(t, shared.IsValidation(err))
}

func TestEffectiveness(t *testing.T) {
	store := memory.NewStore()
	h := query.NewFeedbackHandler(store.Feedback())
	ctx := context.Background()

	seedResponse(t, store, "c1", "rules-v1", "accepted", rating(5))
	seedResponse(t, store, "c2", "rules-v1", "rejected", rating(2))
	seedResponse(t, store, "c3", "rules-v2", "accepted", nil)

	v1, err := h.Effectiveness(ctx, "rules-v1")
	require.NoError(t, err)
	assert.Equal(t, 2, v1.Recommendations)
	assert.True(t, v1.MeanDefined)
	assert.InDelta(t, 3.5, v1.MeanRating, 1e-9)

	v2, err := h.Effectiveness(ctx, "rules-v2")
	require.NoError(t, err)
	assert.False(t, v2.MeanDefined)
	assert.True(t, v2.Acceptance.Defined)

	missing, err := h.Effectiveness(ctx, "rules-v9")
	require.NoError(t, err)
	assert.Zero(t, missing.Recommendations)
	assert.Equal(t, "rules-v9", missing.AlgorithmVersion)

	all, err := h.EffectivenessAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "rules-v1", all[0].AlgorithmVersion)
}
