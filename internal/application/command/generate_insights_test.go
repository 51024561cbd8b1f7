package command_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/adaptive-engine/internal/application/command"
	"github.com/alem-hub/adaptive-engine/internal/application/query"
	"github.com/alem-hub/adaptive-engine/internal/domain/insight"
	"github.com/alem-hub/adaptive-engine/internal/domain/shared"
	"github.com/alem-hub/adaptive-engine/pkg/logger"
	"github.com/alem-hub/adaptive-engine/pkg/timeutil"
)

func drop(title string, conf float64) insight.Signal {
	return insight.Signal{
		Type:       insight.TypeEngagementDrop,
		Title:      title,
		Evidence:   "aggregates:14d",
		Confidence: conf,
		Priority:   shared.PriorityHigh,
	}
}

func TestGenerateInsights_DedupWithinWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.givenProfile(t, "u1", traits(50, 50, 50, 50, 50, 50))

	first, err := f.generate.Handle(ctx, command.GenerateInsightsCommand{UserID: "u1", Signals: []insight.Signal{drop("Engagement has dropped", 0.7)}})
	require.NoError(t, err)
	require.Len(t, first.Created, 1)

	f.clock.Advance(3 * timeutil.Day)
	second, err := f.generate.Handle(ctx, command.GenerateInsightsCommand{UserID: "u1", Signals: []insight.Signal{drop("Engagement has dropped", 0.9)}})
	require.NoError(t, err)
	assert.Empty(t, second.Created)
	assert.Equal(t, insight.OutcomeDuplicate, second.Candidates[0].Outcome)

	all, err := f.store.Insights().ListByUser(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	f.clock.Advance(5 * timeutil.Day)
	third, err := f.generate.Handle(ctx, command.GenerateInsightsCommand{UserID: "u1", Signals: []insight.Signal{drop("Engagement has dropped", 0.9)}})
	require.NoError(t, err)
	assert.Len(t, third.Created, 1, "after the window a new insight is accepted")
}

func TestGenerateInsights_FloorAndOrder(t *testing.T) {
	f := newFixture(t)
	f.givenProfile(t, "u1", traits(50, 50, 50, 50, 50, 50))

	res, err := f.generate.Handle(context.Background(), command.GenerateInsightsCommand{
		UserID: "u1",
		Signals: []insight.Signal{
			drop("a", 0.49),
			drop("b", 0.5),
			drop("b", 0.8),
		},
	})
	require.NoError(t, err)

	require.Len(t, res.Candidates, 3)
	assert.Equal(t, insight.OutcomeBelowFloor, res.Candidates[0].Outcome)
	assert.Equal(t, insight.OutcomeCreated, res.Candidates[1].Outcome)
	assert.Equal(t, insight.OutcomeDuplicate, res.Candidates[2].Outcome)
	assert.Equal(t, res.Created[0].ID, res.Candidates[1].InsightID)
}

func TestGenerateInsights_InvalidSignalRejectsWholeCall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.givenProfile(t, "u1", traits(50, 50, 50, 50, 50, 50))

	_, err := f.generate.Handle(ctx, command.GenerateInsightsCommand{
		UserID:  "u1",
		Signals: []insight.Signal{drop("ok", 0.9), drop("bad", 1.5)},
	})
	assert.True(t, shared.IsValidation(err))

	all, _ := f.store.Insights().ListByUser(ctx, "u1", 0)
	assert.Empty(t, all, "nothing is persisted")
}

// failingInserts fails the failOn-th insert.
type failingInserts struct {
	insight.Repository
	failOn int
	calls  int
}

func (r *failingInserts) InsertIfNoRecent(ctx context.Context, in *insight.Insight, windowStart time.Time) (bool, error) {
	r.calls++
	if r.calls == r.failOn {
		return false, shared.StorageError("insight", "Insert", errors.New("connection reset"))
	}
	return r.Repository.InsertIfNoRecent(ctx, in, windowStart)
}

func TestGenerateInsights_InsertFailureReturnsPartialResult(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.givenProfile(t, "u1", traits(50, 50, 50, 50, 50, 50))

	gen := command.NewGenerateInsightsHandler(
		f.store.Profiles(), &failingInserts{Repository: f.store.Insights(), failOn: 2},
		f.locker, f.clock, nil, logger.Nop(), command.DefaultGenerateInsightsConfig(),
	)
	res, err := gen.Handle(ctx, command.GenerateInsightsCommand{
		UserID:  "u1",
		Signals: []insight.Signal{drop("a", 0.9), drop("b", 0.9), drop("c", 0.9)},
	})
	require.Error(t, err)
	assert.True(t, shared.IsStorageUnavailable(err))

	require.NotNil(t, res)
	require.Len(t, res.Created, 1)
	assert.Equal(t, insight.OutcomeCreated, res.Candidates[0].Outcome)
	assert.Empty(t, res.Candidates[1].Outcome)
	assert.Empty(t, res.Candidates[2].Outcome)

	stored, err := f.store.Insights().Get(ctx, res.Created[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "a", stored.Title)
}

func TestGenerateInsights_RequiresProfile(t *testing.T) {
	f := newFixture(t)

	_, err := f.generate.Handle(context.Background(), command.GenerateInsightsCommand{
		UserID:  "nobody",
		Signals: []insight.Signal{drop("x", 0.9)},
	})
	assert.True(t, shared.IsNotFound(err))
}

func TestGenerateInsights_ConcurrentCallsDoNotDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.givenProfile(t, "u1", traits(50, 50, 50, 50, 50, 50))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.generate.Handle(ctx, command.GenerateInsightsCommand{
				UserID:  "u1",
				Signals: []insight.Signal{drop("Engagement has dropped", 0.8), drop("Second", 0.8)},
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	all, err := f.store.Insights().ListByUser(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestGenerateInsights_LockTimeout(t *testing.T) {
	f := newFixture(t)
	f.givenProfile(t, "u1", traits(50, 50, 50, 50, 50, 50))

	release, err := f.locker.Acquire(context.Background(), "u1")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = f.generate.Handle(ctx, command.GenerateInsightsCommand{UserID: "u1", Signals: []insight.Signal{drop("x", 0.9)}})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGenerateFromBehavior(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.givenProfile(t, "u1", traits(50, 50, 50, 50, 50, 50))
	f.store.Sources().PutAggregates(insight.Aggregates{
		UserID:           "u1",
		WindowDays:       14,
		SessionCount:     12,
		AvgEngagement:    0.2,
		AvgComprehension: 0.9,
		BarrierFlags:     []string{"no_captions"},
	})

	peers := query.NewFindSimilarHandler(f.store.Profiles(), query.DefaultFindSimilarConfig())
	h := command.NewGenerateFromBehaviorHandler(f.store.Sources(), peers, insight.NewProducer(insight.DefaultRules()), f.generate)

	res, err := h.Handle(ctx, "u1")
	require.NoError(t, err)

	types := make([]insight.Type, 0, len(res.Created))
	for _, in := range res.Created {
		types = append(types, in.Type)
	}
	assert.Equal(t, []insight.Type{insight.TypeAccessibilityBarrier, insight.TypeEngagementDrop}, types)
}
