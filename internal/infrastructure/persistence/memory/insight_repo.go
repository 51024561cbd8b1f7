package memory

import (
	"bytes"
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/adaptive-engine/internal/domain/insight"
	"github.com/alem-hub/adaptive-engine/internal/domain/lifecycle"
	"github.com/alem-hub/adaptive-engine/internal/domain/shared"
)

// InsightRepository implements insight.Repository.
type InsightRepository struct {
	s *Store
}

var _ insight.Repository = (*InsightRepository)(nil)

// InsertIfNoRecent checks the dedup window and inserts under one write lock.
func (r *InsightRepository) InsertIfNoRecent(_ context.Context, in *insight.Insight, windowStart time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, ex := range r.s.insights {
		if ex.UserID == in.UserID && ex.Type == in.Type && ex.Title == in.Title &&
			!ex.Status.CreatedAt.Before(windowStart) {
			return false, nil
		}
	}
	r.s.insights[in.ID] = cloneInsight(in)
	return true, nil
}

// Get returns a copy of the insight.
func (r *InsightRepository) Get(_ context.Context, id uuid.UUID) (*insight.Insight, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	in, ok := r.s.insights[id]
	if !ok {
		return nil, shared.ErrInsightNotFound
	}
	return cloneInsight(in), nil
}

// ListByUser returns the user's insights, newest first.
func (r *InsightRepository) ListByUser(_ context.Context, userID string, limit int) ([]*insight.Insight, error) {
	r.s.mu.RLock()
	out := make([]*insight.Insight, 0)
	for _, in := range r.s.insights {
		if in.UserID == userID {
			out = append(out, cloneInsight(in))
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Status.CreatedAt.Equal(out[j].Status.CreatedAt) {
			return out[i].Status.CreatedAt.After(out[j].Status.CreatedAt)
		}
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Transition applies fn to the stored status under the write lock.
func (r *InsightRepository) Transition(_ context.Context, id uuid.UUID, fn lifecycle.TransitionFunc) (lifecycle.Outcome, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	in, ok := r.s.insights[id]
	if !ok {
		return lifecycle.Outcome{}, shared.ErrInsightNotFound
	}
	next, applied, err := fn(in.Status)
	if err != nil {
		return lifecycle.Outcome{Status: in.Status}, err
	}
	if applied {
		in.Status = next
	}
	return lifecycle.Outcome{Status: in.Status, Applied: applied}, nil
}

// ExpireDue expires open insights whose explicit deadline passed.
func (r *InsightRepository) ExpireDue(_ context.Context, now time.Time, limit int) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := 0
	for _, in := range r.s.insights {
		if limit > 0 && n >= limit {
			break
		}
		if next, applied, _ := lifecycle.Expire(now)(in.Status); applied {
			in.Status = next
			n++
		}
	}
	return n, nil
}

// ListCleanupCandidates returns eligible insights with id > after.
func (r *InsightRepository) ListCleanupCandidates(_ context.Context, c lifecycle.Cutoffs, after uuid.UUID, limit int) ([]*insight.Insight, error) {
	r.s.mu.RLock()
	out := make([]*insight.Insight, 0)
	for _, in := range r.s.insights {
		if bytes.Compare(in.ID[:], after[:]) <= 0 {
			continue
		}
		if _, ok := c.Eligible(in.Status); ok {
			out = append(out, cloneInsight(in))
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0 })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteIfEligible re-checks eligibility and deletes in one critical section.
// A recorded response moves into the per-(user, type) tally.
func (r *InsightRepository) DeleteIfEligible(_ context.Context, id uuid.UUID, c lifecycle.Cutoffs) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	in, ok := r.s.insights[id]
	if !ok {
		return false, nil
	}
	if _, ok := c.Eligible(in.Status); !ok {
		return false, nil
	}
	if in.Status.HasResponse() {
		key := tallyKey{userID: in.UserID, typ: in.Type}
		t := r.s.insightTally[key]
		count(&t, in.Status.Response)
		r.s.insightTally[key] = t
	}
	delete(r.s.insights, id)
	return true, nil
}
