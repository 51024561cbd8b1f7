package recommendation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/adaptive-engine/internal/domain/profile"
	"github.com/alem-hub/adaptive-engine/internal/domain/shared"
)

func neutralProfile() *profile.Profile {
	return &profile.Profile{
		UserID: "s1",
		Traits: profile.TraitVector{
			profile.TraitHyperfocusIntensity:  50,
			profile.TraitAttentionFlexibility: 50,
			profile.TraitSensoryProcessing:    50,
			profile.TraitExecutiveFunction:    50,
			profile.TraitEmotionalRegulation:  50,
			profile.TraitStructurePreference:  50,
		},
	}
}

func TestNeedsFromProfile(t *testing.T) {
	p := neutralProfile()
	assert.Empty(t, NeedsFromProfile(p))

	p.Traits[profile.TraitSensoryProcessing] = 85
	p.Traits[profile.TraitAttentionFlexibility] = 20
	p.Traits[profile.TraitStructurePreference] = 90
	p.Traits[profile.TraitExecutiveFunction] = 10
	p.Preferences.LearningStyle = profile.StyleAuditory

	assert.Equal(t, []Need{NeedAudioNarration, NeedChunked, NeedLowStimulus, NeedStructuredOutline}, NeedsFromProfile(p))
}

func TestCompatibilityScore_Contract(t *testing.T) {
	needs := []Need{NeedChunked, NeedLowStimulus, NeedVisualSupports}
	cases := [][]string{
		nil,
		{"chunked"},
		{"chunked", "LOW_STIMULUS"},
		{"chunked", "low_stimulus", "visual_supports", "captions"},
	}

	prev := -1.0
	for _, tags := range cases {
		s := CompatibilityScore(needs, tags)
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
		assert.Greater(t, s, prev, "more matched needs never lowers compatibility")
		prev = s
	}
	assert.Equal(t, 1.0, prev)
	assert.Equal(t, 0.5, CompatibilityScore(nil, []string{"chunked"}))
}

func TestAddressesUnmetNeed(t *testing.T) {
	assert.True(t, AddressesUnmetNeed([]string{"Captions"}, []string{"captions", "chunked"}))
	assert.False(t, AddressesUnmetNeed([]string{"captions"}, []string{"chunked"}))
	assert.False(t, AddressesUnmetNeed(nil, []string{"chunked"}))
}

func TestInteractionSignal(t *testing.T) {
	assert.Equal(t, 0.5, InteractionSignal(InteractionStats{}, false))
	assert.Equal(t, 0.5, InteractionSignal(InteractionStats{Count: 0, Engagement: 1}, true))
	assert.InDelta(t, 0.6, InteractionSignal(InteractionStats{Count: 4, Engagement: 0.9, Completion: 0.3, Helpfulness: 0.6}, true), 1e-9)
}

func TestHalfLifeDecay_Contract(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	halfLife := 14 * 24 * time.Hour
	decay := HalfLifeDecay(halfLife)

	assert.Equal(t, 1.0, decay(nil, now), "never presented content is freshest")

	just := now
	assert.Equal(t, 0.0, decay(&just, now))

	half := now.Add(-halfLife)
	assert.InDelta(t, 0.5, decay(&half, now), 1e-9)

	prev := -1.0
	for days := 0; days <= 120; days += 5 {
		at := now.Add(-time.Duration(days) * 24 * time.Hour)
		v := decay(&at, now)
		assert.GreaterOrEqual(t, v, prev, "freshness is non-decreasing with age")
		assert.LessOrEqual(t, v, 1.0)
		prev = v
	}
}

func TestBlend(t *testing.T) {
	conf, typ := Blend(Components{Compatibility: 1, Interaction: 0.5, Recency: 1}, DefaultWeights())
	assert.InDelta(t, 0.85, conf.Float64(), 1e-9)
	assert.Equal(t, TypeAccessibilityMatch, typ)

	conf, typ = Blend(Components{Compatibility: 0, Interaction: 0.9, Recency: 1}, DefaultWeights())
	assert.InDelta(t, 0.47, conf.Float64(), 1e-9)
	assert.Equal(t, TypePeerSuccess, typ)

	_, typ = Blend(Components{Compatibility: 0, Interaction: 0, Recency: 1}, DefaultWeights())
	assert.Equal(t, TypeFreshContent, typ)

	conf, _ = Blend(Components{Compatibility: 1, Interaction: 1, Recency: 1}, Weights{Compatibility: 2, Interaction: 2, Recency: 1})
	assert.InDelta(t, 1.0, conf.Float64(), 1e-9, "weights are normalized")
}

func TestDerivePriority(t *testing.T) {
	assert.Equal(t, shared.PriorityUrgent, DerivePriority(0.1, true))
	assert.Equal(t, shared.PriorityHigh, DerivePriority(0.8, false))
	assert.Equal(t, shared.PriorityMedium, DerivePriority(0.65, false))
	assert.Equal(t, shared.PriorityLow, DerivePriority(0.64, false))
}

func TestWeights_Validate(t *testing.T) {
	assert.NoError(t, DefaultWeights().Validate())
	assert.True(t, shared.IsValidation(Weights{}.Validate()))
	assert.True(t, shared.IsValidation(Weights{Compatibility: -1, Recency: 2}.Validate()))
}

func TestRank(t *testing.T) {
	items := []Scored{
		{ContentID: "b", Confidence: 0.7, Priority: shared.PriorityMedium},
		{ContentID: "a", Confidence: 0.7, Priority: shared.PriorityMedium},
		{ContentID: "c", Confidence: 0.55, Priority: shared.PriorityUrgent},
		{ContentID: "d", Confidence: 0.9, Priority: shared.PriorityHigh},
	}
	Rank(items)

	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ContentID
	}
	assert.Equal(t, []string{"c", "d", "a", "b"}, ids)
}

func TestValidateRating(t *testing.T) {
	ok, low, high := 3, 0, 6
	require.NoError(t, ValidateRating(nil))
	require.NoError(t, ValidateRating(&ok))
	assert.Equal(t, "rating", shared.ValidationField(ValidateRating(&low)))
	assert.Equal(t, "rating", shared.ValidationField(ValidateRating(&high)))
}
