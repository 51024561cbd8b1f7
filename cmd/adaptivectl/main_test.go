package main

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/adaptive-engine/internal/domain/profile"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestProfileSetPrintsStoredProfile(t *testing.T) {
	out, err := execute(t, "--storage", "memory", "profile", "set", "u1",
		"--traits", "hyperfocus_intensity=70,attention_flexibility=40,sensory_processing=55,"+
			"executive_function=30,emotional_regulation=60,structure_preference=80",
		"--rhythm", "evening",
	)
	require.NoError(t, err)
	assert.Contains(t, out, `"UserID": "u1"`)
	assert.Contains(t, out, `"Version": 1`)
	assert.Contains(t, out, `"NaturalRhythm": "evening"`)
}

func TestProfileSetRejectsIncompleteTraits(t *testing.T) {
	_, err := execute(t, "--storage", "memory", "profile", "set", "u1",
		"--traits", "hyperfocus_intensity=70",
	)
	assert.Error(t, err)

	_, err = execute(t, "--storage", "memory", "profile", "set", "u1", "--traits", "hyperfocus_intensity")
	assert.ErrorContains(t, err, "name=value")
}

func TestParseTraitScores(t *testing.T) {
	v, err := parseTraitScores(" sensory_processing=55, executive_function = 30 ,")
	require.NoError(t, err)
	assert.Equal(t, 55, v[profile.TraitSensoryProcessing])
	assert.Len(t, v, 2)

	_, err = parseTraitScores("sensory_processing=high")
	assert.Error(t, err)
}

func TestAcceptanceWithoutResponsesIsUndefined(t *testing.T) {
	out, err := execute(t, "--storage", "memory", "stats", "acceptance", "--subject", "insights")
	require.NoError(t, err)
	assert.Contains(t, out, `"Defined": false`)
}

func TestAcceptanceRejectsUnknownSubject(t *testing.T) {
	_, err := execute(t, "--storage", "memory", "stats", "acceptance", "--subject", "students")
	assert.ErrorContains(t, err, "subject")
}

func TestTransitionRejectsMalformedID(t *testing.T) {
	_, err := execute(t, "--storage", "memory", "insights", "present", "not-a-uuid")
	assert.ErrorContains(t, err, "invalid id")
}

func TestMigrateNeedsPostgres(t *testing.T) {
	_, err := execute(t, "--storage", "memory", "migrate")
	assert.ErrorIs(t, err, errNeedsPostgres)
}

func TestUnknownStorageIsRejected(t *testing.T) {
	_, err := execute(t, "--storage", "sqlite", "cleanup")
	assert.ErrorContains(t, err, "app.storage must be postgres or memory")
}

func TestCleanupOnEmptyStore(t *testing.T) {
	out, err := execute(t, "--storage", "memory", "cleanup")
	require.NoError(t, err)
	assert.Contains(t, out, `"ExpiredRecommendations": 0`)
}
