package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/adaptive-engine/internal/domain/lifecycle"
	"github.com/alem-hub/adaptive-engine/internal/domain/recommendation"
	"github.com/alem-hub/adaptive-engine/internal/domain/shared"
)

// RecommendationRepository implements recommendation.Repository.
type RecommendationRepository struct {
	s *Store
}

var _ recommendation.Repository = (*RecommendationRepository)(nil)

// ReplaceActive retracts open rows with the same key and inserts r.
func (rr *RecommendationRepository) ReplaceActive(_ context.Context, r *recommendation.Recommendation, now time.Time) (int, error) {
	rr.s.mu.Lock()
	defer rr.s.mu.Unlock()

	retracted := 0
	key := r.Key()
	for _, ex := range rr.s.recommendations {
		if ex.Key() != key {
			continue
		}
		if next, applied, _ := lifecycle.Retract()(ex.Status); applied {
			at := now
			ex.Status = next
			ex.RetractedAt = &at
			retracted++
		}
	}
	rr.s.recommendations[r.ID] = cloneRecommendation(r)
	return retracted, nil
}

// Get returns a copy of the recommendation.
func (rr *RecommendationRepository) Get(_ context.Context, id uuid.UUID) (*recommendation.Recommendation, error) {
	rr.s.mu.RLock()
	defer rr.s.mu.RUnlock()

	r, ok := rr.s.recommendations[id]
	if !ok {
		return nil, shared.ErrRecommendationNotFound
	}
	return cloneRecommendation(r), nil
}

// ListActive returns the student's active recommendations.
func (rr *RecommendationRepository) ListActive(_ context.Context, studentID string, now time.Time, limit int) ([]*recommendation.Recommendation, error) {
	rr.s.mu.RLock()
	out := make([]*recommendation.Recommendation, 0)
	for _, r := range rr.s.recommendations {
		if r.StudentID == studentID && r.IsActive(now) {
			out = append(out, cloneRecommendation(r))
		}
	}
	rr.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() > b.Priority.Rank()
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.ContentID < b.ContentID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Transition applies fn and stores rating together with an applied response.
func (rr *RecommendationRepository) Transition(_ context.Context, id uuid.UUID, fn lifecycle.TransitionFunc, rating *int) (lifecycle.Outcome, error) {
	rr.s.mu.Lock()
	defer rr.s.mu.Unlock()

	r, ok := rr.s.recommendations[id]
	if !ok {
		return lifecycle.Outcome{}, shared.ErrRecommendationNotFound
	}
	next, applied, err := fn(r.Status)
	if err != nil {
		return lifecycle.Outcome{Status: r.Status}, err
	}
	if applied {
		if rating != nil && next.HasResponse() && !r.Status.HasResponse() {
			v := *rating
			r.Rating = &v
		}
		r.Status = next
	}
	return lifecycle.Outcome{Status: r.Status, Applied: applied}, nil
}

// ExpireDue expires open recommendations past their deadline.
func (rr *RecommendationRepository) ExpireDue(_ context.Context, now time.Time, limit int) (int, error) {
	rr.s.mu.Lock()
	defer rr.s.mu.Unlock()

	n := 0
	for _, r := range rr.s.recommendations {
		if limit > 0 && n >= limit {
			break
		}
		if next, applied, _ := lifecycle.Expire(now)(r.Status); applied {
			r.Status = next
			n++
		}
	}
	return n, nil
}

// LastPresented returns the latest presentation time per content id.
func (rr *RecommendationRepository) LastPresented(_ context.Context, studentID string, contentIDs []string) (map[string]time.Time, error) {
	want := make(map[string]bool, len(contentIDs))
	for _, id := range contentIDs {
		want[id] = true
	}

	rr.s.mu.RLock()
	defer rr.s.mu.RUnlock()

	out := make(map[string]time.Time)
	for _, r := range rr.s.recommendations {
		if r.StudentID != studentID || !want[r.ContentID] || r.Status.PresentedAt == nil {
			continue
		}
		if last, ok := out[r.ContentID]; !ok || r.Status.PresentedAt.After(last) {
			out[r.ContentID] = *r.Status.PresentedAt
		}
	}
	return out, nil
}
