package memory

import (
	"context"

	"github.com/alem-hub/adaptive-engine/internal/domain/insight"
	"github.com/alem-hub/adaptive-engine/internal/domain/recommendation"
)

// Sources serves collaborator-owned data (catalog, interactions, aggregates).
// Seed methods stand in for the collaborators in tests and demo runs.
type Sources struct {
	s *Store
}

var (
	_ recommendation.ContentCatalog    = (*Sources)(nil)
	_ recommendation.InteractionSource = (*Sources)(nil)
	_ recommendation.NeedSource        = (*Sources)(nil)
	_ insight.BehaviorSource           = (*Sources)(nil)
)

// PutContent adds or replaces a catalog item.
func (src *Sources) PutContent(c recommendation.Content) {
	src.s.mu.Lock()
	src.s.contents[c.ID] = c
	src.s.mu.Unlock()
}

// PutInteractions sets interaction stats for a student and content item.
func (src *Sources) PutInteractions(studentID, contentID string, st recommendation.InteractionStats) {
	src.s.mu.Lock()
	defer src.s.mu.Unlock()
	m, ok := src.s.interactions[studentID]
	if !ok {
		m = make(map[string]recommendation.InteractionStats)
		src.s.interactions[studentID] = m
	}
	m[contentID] = st
}

// PutAggregates sets behavioral aggregates for a user.
func (src *Sources) PutAggregates(a insight.Aggregates) {
	src.s.mu.Lock()
	src.s.aggregates[a.UserID] = a
	src.s.mu.Unlock()
}

// PutUnmetNeeds sets flagged unmet accessibility needs for a student.
func (src *Sources) PutUnmetNeeds(studentID string, needs []string) {
	src.s.mu.Lock()
	src.s.unmetNeeds[studentID] = append([]string(nil), needs...)
	src.s.mu.Unlock()
}

// Contents returns the known subset of ids.
func (src *Sources) Contents(_ context.Context, ids []string) (map[string]recommendation.Content, error) {
	src.s.mu.RLock()
	defer src.s.mu.RUnlock()

	out := make(map[string]recommendation.Content, len(ids))
	for _, id := range ids {
		if c, ok := src.s.contents[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

// Interactions returns stats for the requested content ids.
func (src *Sources) Interactions(_ context.Context, studentID string, contentIDs []string) (map[string]recommendation.InteractionStats, error) {
	src.s.mu.RLock()
	defer src.s.mu.RUnlock()

	out := make(map[string]recommendation.InteractionStats)
	for _, id := range contentIDs {
		if st, ok := src.s.interactions[studentID][id]; ok {
			out[id] = st
		}
	}
	return out, nil
}

// UnmetNeeds returns flagged needs for the student.
func (src *Sources) UnmetNeeds(_ context.Context, studentID string) ([]string, error) {
	src.s.mu.RLock()
	defer src.s.mu.RUnlock()
	return append([]string(nil), src.s.unmetNeeds[studentID]...), nil
}

// Aggregates returns behavioral aggregates; unknown users get zero values.
func (src *Sources) Aggregates(_ context.Context, userID string) (insight.Aggregates, error) {
	src.s.mu.RLock()
	defer src.s.mu.RUnlock()

	a, ok := src.s.aggregates[userID]
	if !ok {
		return insight.Aggregates{UserID: userID}, nil
	}
	a.BarrierFlags = append([]string(nil), a.BarrierFlags...)
	return a, nil
}
