package command_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/alem-hub/adaptive-engine/internal/application/command"
	"github.com/alem-hub/adaptive-engine/internal/domain/profile"
	"github.com/alem-hub/adaptive-engine/internal/infrastructure/lock"
	"github.com/alem-hub/adaptive-engine/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/adaptive-engine/pkg/logger"
	"github.com/alem-hub/adaptive-engine/pkg/timeutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store     *memory.Store
	clock     *timeutil.FixedClock
	locker    *lock.KeyedMutex
	upsert    *command.UpsertProfileHandler
	generate  *command.GenerateInsightsHandler
	score     *command.ScoreRecommendationsHandler
	lifecycle *command.LifecycleHandler
	cleanup   *command.CleanupHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	clock := timeutil.NewFixedClock(epoch)
	locker := lock.NewKeyedMutex()
	log := logger.Nop()

	return &fixture{
		store:  store,
		clock:  clock,
		locker: locker,
		upsert: command.NewUpsertProfileHandler(store.Profiles(), clock, log),
		generate: command.NewGenerateInsightsHandler(
			store.Profiles(), store.Insights(), locker, clock, nil, log,
			command.DefaultGenerateInsightsConfig(),
		),
		score: command.NewScoreRecommendationsHandler(
			store.Profiles(), store.Recommendations(), store.Sources(), store.Sources(), store.Sources(),
			locker, clock, nil, log, command.DefaultScoreRecommendationsConfig(),
		),
		lifecycle: command.NewLifecycleHandler(store.Insights(), store.Recommendations(), clock, nil, log),
		cleanup: command.NewCleanupHandler(
			store.Insights(), store.Recommendations(), clock, nil, log,
			command.CleanupConfig{BatchSize: 2},
		),
	}
}

func traits(h, f, s, e, r, st int) profile.TraitVector {
	return profile.TraitVector{
		profile.TraitHyperfocusIntensity:  h,
		profile.TraitAttentionFlexibility: f,
		profile.TraitSensoryProcessing:    s,
		profile.TraitExecutiveFunction:    e,
		profile.TraitEmotionalRegulation:  r,
		profile.TraitStructurePreference:  st,
	}
}

func (f *fixture) givenProfile(t *testing.T, userID string, v profile.TraitVector) {
	t.Helper()
	_, err := f.upsert.Handle(context.Background(), command.UpsertProfileCommand{UserID: userID, Traits: v})
	require.NoError(t, err)
}
