// Package memory implements the engine's repositories in process memory.
// Used by tests and by `--storage=memory` runs. Every write happens under
// the store's write mutex, which makes conditional inserts and transitions atomic.
package memory

import (
	"sync"

	"github.com/google/uuid"

	"github.com/alem-hub/adaptive-engine/internal/domain/feedback"
	"github.com/alem-hub/adaptive-engine/internal/domain/insight"
	"github.com/alem-hub/adaptive-engine/internal/domain/profile"
	"github.com/alem-hub/adaptive-engine/internal/domain/recommendation"
)

// Store holds all in-memory state shared by the repositories.
type Store struct {
	mu sync.RWMutex

	profiles        map[string]*profile.Profile
	insights        map[uuid.UUID]*insight.Insight
	recommendations map[uuid.UUID]*recommendation.Recommendation

	// responses of insights removed by cleanup, per (user, type)
	insightTally map[tallyKey]feedback.Counts

	// collaborator-owned data
	contents     map[string]recommendation.Content
	interactions map[string]map[string]recommendation.InteractionStats
	aggregates   map[string]insight.Aggregates
	unmetNeeds   map[string][]string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		profiles:        make(map[string]*profile.Profile),
		insights:        make(map[uuid.UUID]*insight.Insight),
		recommendations: make(map[uuid.UUID]*recommendation.Recommendation),
		insightTally:    make(map[tallyKey]feedback.Counts),
		contents:        make(map[string]recommendation.Content),
		interactions:    make(map[string]map[string]recommendation.InteractionStats),
		aggregates:      make(map[string]insight.Aggregates),
		unmetNeeds:      make(map[string][]string),
	}
}

type tallyKey struct {
	userID string
	typ    insight.Type
}

// Profiles returns the profile repository.
func (s *Store) Profiles() *ProfileRepository { return &ProfileRepository{s: s} }

// Insights returns the insight repository.
func (s *Store) Insights() *InsightRepository { return &InsightRepository{s: s} }

// Recommendations returns the recommendation repository.
func (s *Store) Recommendations() *RecommendationRepository { return &RecommendationRepository{s: s} }

// Feedback returns the read-only feedback repository.
func (s *Store) Feedback() *FeedbackRepository { return &FeedbackRepository{s: s} }

// Sources returns the collaborator data sources.
func (s *Store) Sources() *Sources { return &Sources{s: s} }

func cloneProfile(p *profile.Profile) *profile.Profile {
	c := *p
	c.Traits = p.Traits.Clone()
	return &c
}

func cloneInsight(in *insight.Insight) *insight.Insight {
	c := *in
	return &c
}

func cloneRecommendation(r *recommendation.Recommendation) *recommendation.Recommendation {
	c := *r
	if r.Rating != nil {
		v := *r.Rating
		c.Rating = &v
	}
	return &c
}
