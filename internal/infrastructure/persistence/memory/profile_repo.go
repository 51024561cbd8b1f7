package memory

import (
	"context"
	"sort"

	"github.com/alem-hub/adaptive-engine/internal/domain/profile"
	"github.com/alem-hub/adaptive-engine/internal/domain/shared"
)

// ProfileRepository implements profile.Repository.
type ProfileRepository struct {
	s *Store
}

var _ profile.Repository = (*ProfileRepository)(nil)

// Get returns a copy of the stored profile.
func (r *ProfileRepository) Get(_ context.Context, userID string) (*profile.Profile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.profiles[userID]
	if !ok {
		return nil, shared.ErrProfileNotFound
	}
	return cloneProfile(p), nil
}

// Save replaces the profile and bumps its version.
func (r *ProfileRepository) Save(_ context.Context, p *profile.Profile) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	version := 1
	if prev, ok := r.s.profiles[p.UserID]; ok {
		version = prev.Version + 1
	}
	c := cloneProfile(p)
	c.Version = version
	r.s.profiles[p.UserID] = c
	return version, nil
}

// ListCandidates scans all profiles through the filter predicate.
func (r *ProfileRepository) ListCandidates(_ context.Context, f profile.CandidateFilter) ([]*profile.Profile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*profile.Profile, 0)
	for _, p := range r.s.profiles {
		if f.Matches(p) {
			out = append(out, cloneProfile(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// ListUserIDs returns user ids greater than after, ascending.
func (r *ProfileRepository) ListUserIDs(_ context.Context, after string, limit int) ([]string, error) {
	r.s.mu.RLock()
	ids := make([]string, 0, len(r.s.profiles))
	for id := range r.s.profiles {
		if id > after {
			ids = append(ids, id)
		}
	}
	r.s.mu.RUnlock()

	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}
