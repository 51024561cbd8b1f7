package command_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/adaptive-engine/internal/application/command"
	"github.com/alem-hub/adaptive-engine/internal/domain/lifecycle"
	"github.com/alem-hub/adaptive-engine/internal/domain/recommendation"
	"github.com/alem-hub/adaptive-engine/internal/domain/shared"
	"github.com/alem-hub/adaptive-engine/pkg/logger"
	"github.com/alem-hub/adaptive-engine/pkg/timeutil"
)

func (f *fixture) givenCatalog() {
	src := f.store.Sources()
	src.PutContent(recommendation.Content{ID: "c1", Title: "Quiet reading", AccessibilityTags: []string{"low_stimulus"}})
	src.PutContent(recommendation.Content{ID: "c2", Title: "Busy video"})
}

func TestScoreRecommendations_SkipsUnknownAndBelowFloor(t *testing.T) {
	f := newFixture(t)
	f.givenProfile(t, "s1", traits(50, 50, 80, 50, 50, 50))
	f.givenCatalog()

	res, err := f.score.Handle(context.Background(), command.ScoreRecommendationsCommand{
		StudentID:  "s1",
		ContentIDs: []string{"c1", "c9", "c2", "c1"},
	})
	require.NoError(t, err)

	require.Len(t, res.Created, 1)
	rec := res.Created[0]
	assert.Equal(t, "c1", rec.ContentID)
	assert.Equal(t, recommendation.TypeAccessibilityMatch, rec.Type)
	assert.InDelta(t, 0.85, rec.Confidence.Float64(), 1e-9)
	assert.Equal(t, shared.PriorityHigh, rec.Priority)
	assert.Equal(t, "rules-v1", rec.AlgorithmVersion)
	assert.Equal(t, []string{"c9"}, res.Unknown)
	assert.Equal(t, []string{"c2"}, res.BelowFloor)
}

func TestScoreRecommendations_UnmetNeedIsUrgent(t *testing.T) {
	f := newFixture(t)
	f.givenProfile(t, "s1", traits(50, 50, 80, 50, 50, 50))
	f.givenCatalog()
	f.store.Sources().PutUnmetNeeds("s1", []string{"low_stimulus"})

	res, err := f.score.Handle(context.Background(), command.ScoreRecommendationsCommand{StudentID: "s1", ContentIDs: []string{"c1"}})
	require.NoError(t, err)
	require.Len(t, res.Created, 1)
	assert.Equal(t, shared.PriorityUrgent, res.Created[0].Priority)
}

func TestScoreRecommendations_NewerRetractsOlder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.givenProfile(t, "s1", traits(50, 50, 80, 50, 50, 50))
	f.givenCatalog()

	first, err := f.score.Handle(ctx, command.ScoreRecommendationsCommand{StudentID: "s1", ContentIDs: []string{"c1"}})
	require.NoError(t, err)
	require.Len(t, first.Created, 1)

	f.clock.Advance(timeutil.Day)
	second, err := f.score.Handle(ctx, command.ScoreRecommendationsCommand{StudentID: "s1", ContentIDs: []string{"c1"}})
	require.NoError(t, err)
	require.Len(t, second.Created, 1)
	assert.Equal(t, 1, second.Retracted)

	old, err := f.store.Recommendations().Get(ctx, first.Created[0].ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateRetracted, old.Status.State)

	active, err := f.store.Recommendations().ListActive(ctx, "s1", f.clock.Now(), 0)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.Created[0].ID, active[0].ID)
}

func TestScoreRecommendations_PresentedContentLosesFreshness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.givenProfile(t, "s1", traits(50, 50, 80, 50, 50, 50))
	f.givenCatalog()

	first, err := f.score.Handle(ctx, command.ScoreRecommendationsCommand{StudentID: "s1", ContentIDs: []string{"c1"}})
	require.NoError(t, err)
	_, err = f.lifecycle.PresentRecommendation(ctx, first.Created[0].ID)
	require.NoError(t, err)

	f.clock.Advance(timeutil.Day)
	second, err := f.score.Handle(ctx, command.ScoreRecommendationsCommand{StudentID: "s1", ContentIDs: []string{"c1"}})
	require.NoError(t, err)
	require.Len(t, second.Created, 1)
	assert.Less(t, second.Created[0].Confidence.Float64(), first.Created[0].Confidence.Float64())
}

func TestScoreRecommendations_RequiresProfile(t *testing.T) {
	f := newFixture(t)

	_, err := f.score.Handle(context.Background(), command.ScoreRecommendationsCommand{StudentID: "ghost", ContentIDs: []string{"c1"}})
	assert.True(t, shared.IsNotFound(err))
}

// failingReplace fails the failOn-th ReplaceActive call.
type failingReplace struct {
	recommendation.Repository
	failOn int
	calls  int
}

func (r *failingReplace) ReplaceActive(ctx context.Context, rec *recommendation.Recommendation, now time.Time) (int, error) {
	r.calls++
	if r.calls == r.failOn {
		return 0, shared.StorageError("recommendation", "ReplaceActive", errors.New("connection reset"))
	}
	return r.Repository.ReplaceActive(ctx, rec, now)
}

func TestScoreRecommendations_InsertFailureReturnsPartialResult(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.givenProfile(t, "s1", traits(50, 50, 80, 50, 50, 50))
	f.givenCatalog()
	f.store.Sources().PutContent(recommendation.Content{ID: "c3", Title: "Quiet podcast", AccessibilityTags: []string{"low_stimulus"}})

	src := f.store.Sources()
	score := command.NewScoreRecommendationsHandler(
		f.store.Profiles(), &failingReplace{Repository: f.store.Recommendations(), failOn: 2},
		src, src, src, f.locker, f.clock, nil, logger.Nop(), command.DefaultScoreRecommendationsConfig(),
	)
	res, err := score.Handle(ctx, command.ScoreRecommendationsCommand{StudentID: "s1", ContentIDs: []string{"c1", "c3"}})
	require.Error(t, err)
	assert.True(t, shared.IsStorageUnavailable(err))

	require.NotNil(t, res)
	require.Len(t, res.Created, 1)
	stored, err := f.store.Recommendations().Get(ctx, res.Created[0].ID)
	require.NoError(t, err)
	assert.Equal(t, res.Created[0].ContentID, stored.ContentID)
}
