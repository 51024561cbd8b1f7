package command_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/adaptive-engine/internal/application/command"
	"github.com/alem-hub/adaptive-engine/internal/domain/profile"
	"github.com/alem-hub/adaptive-engine/internal/domain/shared"
)

func TestUpsertProfile_RoundTripAndVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	vectors := []profile.TraitVector{
		traits(80, 50, 30, 40, 60, 70),
		traits(0, 100, 0, 100, 0, 100),
		traits(55, 55, 55, 55, 55, 55),
	}
	for i, v := range vectors {
		res, err := f.upsert.Handle(ctx, command.UpsertProfileCommand{UserID: "u1", Traits: v})
		require.NoError(t, err)
		assert.Equal(t, i+1, res.Profile.Version)

		got, err := f.store.Profiles().Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, v, got.Traits)
		assert.Equal(t, i+1, got.Version)
	}
}

func TestUpsertProfile_InvalidLeavesPriorUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.givenProfile(t, "u1", traits(80, 50, 30, 40, 60, 70))

	_, err := f.upsert.Handle(ctx, command.UpsertProfileCommand{
		UserID: "u1",
		Traits: traits(80, 50, 130, 40, 60, 70),
	})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
	assert.Equal(t, "sensory_processing", shared.ValidationField(err))

	got, err := f.store.Profiles().Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 30, got.Traits[profile.TraitSensoryProcessing])
	assert.Equal(t, 1, got.Version)
}

func TestGetProfile_MissingIsNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.store.Profiles().Get(context.Background(), "ghost")
	assert.True(t, shared.IsNotFound(err))
}
