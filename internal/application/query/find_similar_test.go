package query_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/adaptive-engine/internal/application/query"
	"github.com/alem-hub/adaptive-engine/internal/domain/profile"
	"github.com/alem-hub/adaptive-engine/internal/domain/shared"
	"github.com/alem-hub/adaptive-engine/internal/infrastructure/persistence/memory"
)

var now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func uniform(v int) profile.TraitVector {
	out := make(profile.TraitVector)
	for _, t := range profile.AllTraits() {
		out[t] = v
	}
	return out
}

func seedProfiles(t *testing.T, store *memory.Store, vectors map[string]profile.TraitVector) {
	t.Helper()
	for id, v := range vectors {
		p, err := profile.NewProfile(id, v, profile.Preferences{}, now)
		require.NoError(t, err)
		_, err = store.Profiles().Save(context.Background(), p)
		require.NoError(t, err)
	}
}

func TestFindSimilar(t *testing.T) {
	store := memory.NewStore()
	seedProfiles(t, store, map[string]profile.TraitVector{
		"self": uniform(50),
		"a":    uniform(55),
		"b":    uniform(45),
		"c":    uniform(58),
		"far":  uniform(80),
	})
	h := query.NewFindSimilarHandler(store.Profiles(), query.DefaultFindSimilarConfig())

	res, err := h.Handle(context.Background(), query.FindSimilarQuery{UserID: "self"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, res.UserIDs())
	assert.Equal(t, 5, res[0].Distance)

	tight := 5
	res, err = h.Handle(context.Background(), query.FindSimilarQuery{UserID: "self", MaxDistance: &tight, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, res.UserIDs())
}

func TestFindSimilar_DimensionSubset(t *testing.T) {
	store := memory.NewStore()
	other := uniform(90)
	other[profile.TraitSensoryProcessing] = 52
	seedProfiles(t, store, map[string]profile.TraitVector{
		"self":  uniform(50),
		"other": other,
	})
	h := query.NewFindSimilarHandler(store.Profiles(), query.DefaultFindSimilarConfig())

	res, err := h.Handle(context.Background(), query.FindSimilarQuery{
		UserID:     "self",
		Dimensions: []string{"sensory_processing"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"other"}, res.UserIDs())
}

func TestFindSimilar_Validation(t *testing.T) {
	store := memory.NewStore()
	seedProfiles(t, store, map[string]profile.TraitVector{"self": uniform(50)})
	h := query.NewFindSimilarHandler(store.Profiles(), query.DefaultFindSimilarConfig())
	ctx := context.Background()

	negative := -1
	_, err := h.Handle(ctx, query.FindSimilarQuery{UserID: "self", MaxDistance: &negative})
	assert.Equal(t, "max_distance", shared.ValidationField(err))

	_, err = h.Handle(ctx, query.FindSimilarQuery{UserID: "self", Dimensions: []string{"charisma"}})
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(ctx, query.FindSimilarQuery{UserID: "ghost"})
	assert.True(t, shared.IsNotFound(err))

	res, err := h.Handle(ctx, query.FindSimilarQuery{UserID: "self"})
	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Empty(t, res)
}

// gatedProfiles holds ListCandidates until released or until its ctx ends.
type gatedProfiles struct {
	profile.Repository
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedProfiles) ListCandidates(ctx context.Context, filter profile.CandidateFilter) ([]*profile.Profile, error) {
	g.once.Do(func() { close(g.entered) })
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.Repository.ListCandidates(ctx, filter)
}

func TestFindSimilar_CancelledCallerDoesNotFailSharedLoad(t *testing.T) {
	store := memory.NewStore()
	seedProfiles(t, store, map[string]profile.TraitVector{
		"self": uniform(50),
		"peer": uniform(52),
	})
	repo := &gatedProfiles{
		Repository: store.Profiles(),
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	h := query.NewFindSimilarHandler(repo, query.DefaultFindSimilarConfig())

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := h.Handle(firstCtx, query.FindSimilarQuery{UserID: "self"})
		firstErr <- err
	}()
	<-repo.entered

	type outcome struct {
		ids []string
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		res, err := h.Handle(context.Background(), query.FindSimilarQuery{UserID: "self"})
		second <- outcome{ids: res.UserIDs(), err: err}
	}()
	// Let the second call join the in-flight load.
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(repo.release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, []string{"peer"}, got.ids)
}
