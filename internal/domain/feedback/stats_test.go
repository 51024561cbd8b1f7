package feedback

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alem-hub/adaptive-engine/internal/domain/shared"
)

func TestRateOf_ZeroResponsesIsUndefined(t *testing.T) {
	r := RateOf(Counts{})

	assert.False(t, r.Defined)
	assert.Zero(t, r.Total)
}

func TestRateOf(t *testing.T) {
	r := RateOf(Counts{Accepted: 3, Rejected: 1, Ignored: 0})
	assert.True(t, r.Defined)
	assert.Equal(t, 4, r.Total)
	assert.InDelta(t, 0.75, r.Value, 1e-9)

	r = RateOf(Counts{Rejected: 2})
	assert.True(t, r.Defined, "0% is a defined rate")
	assert.Zero(t, r.Value)
}

func TestEffectivenessOf(t *testing.T) {
	e := EffectivenessOf(VersionStats{
		AlgorithmVersion: "rules-v1",
		Recommendations:  10,
		Rated:            4,
		RatingSum:        14,
		Responses:        Counts{Accepted: 2, Ignored: 2},
	})
	assert.True(t, e.MeanDefined)
	assert.InDelta(t, 3.5, e.MeanRating, 1e-9)
	assert.InDelta(t, 0.5, e.Acceptance.Value, 1e-9)

	e = EffectivenessOf(VersionStats{AlgorithmVersion: "rules-v2", Recommendations: 3})
	assert.False(t, e.MeanDefined)
	assert.False(t, e.Acceptance.Defined)
}

func TestCompare(t *testing.T) {
	items := []Effectiveness{
		{AlgorithmVersion: "none"},
		{AlgorithmVersion: "b", MeanRating: 3, MeanDefined: true},
		{AlgorithmVersion: "a", MeanRating: 4.5, MeanDefined: true},
		{AlgorithmVersion: "c", MeanRating: 3, MeanDefined: true},
	}
	Compare(items)

	got := make([]string, len(items))
	for i, it := range items {
		got[i] = it.AlgorithmVersion
	}
	assert.Equal(t, []string{"a", "b", "c", "none"}, got)
}

func TestParseSubject(t *testing.T) {
	s, err := ParseSubject("insights")
	assert.NoError(t, err)
	assert.Equal(t, SubjectInsights, s)

	_, err = ParseSubject("users")
	assert.True(t, shared.IsValidation(err))
}
