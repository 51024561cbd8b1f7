package memory

import (
	"context"
	"sort"

	"github.com/alem-hub/adaptive-engine/internal/domain/feedback"
	"github.com/alem-hub/adaptive-engine/internal/domain/lifecycle"
)

// FeedbackRepository implements feedback.Repository over the store.
type FeedbackRepository struct {
	s *Store
}

var _ feedback.Repository = (*FeedbackRepository)(nil)

func count(c *feedback.Counts, r lifecycle.Response) {
	switch r {
	case lifecycle.ResponseAccepted:
		c.Accepted++
	case lifecycle.ResponseRejected:
		c.Rejected++
	case lifecycle.ResponseIgnored:
		c.Ignored++
	}
}

// ResponseCounts counts recorded responses matching the filter. Insight
// counts include responses of insights already removed by cleanup.
func (f *FeedbackRepository) ResponseCounts(_ context.Context, flt feedback.Filter) (feedback.Counts, error) {
	f.s.mu.RLock()
	defer f.s.mu.RUnlock()

	var c feedback.Counts
	switch flt.Subject {
	case feedback.SubjectInsights:
		for _, in := range f.s.insights {
			if (flt.UserID == "" || in.UserID == flt.UserID) && (flt.Type == "" || string(in.Type) == flt.Type) {
				count(&c, in.Status.Response)
			}
		}
		for key, t := range f.s.insightTally {
			if (flt.UserID == "" || key.userID == flt.UserID) && (flt.Type == "" || string(key.typ) == flt.Type) {
				c.Accepted += t.Accepted
				c.Rejected += t.Rejected
				c.Ignored += t.Ignored
			}
		}
	case feedback.SubjectRecommendations:
		for _, r := range f.s.recommendations {
			if (flt.UserID == "" || r.StudentID == flt.UserID) && (flt.Type == "" || string(r.Type) == flt.Type) {
				count(&c, r.Status.Response)
			}
		}
	}
	return c, nil
}

// VersionStats aggregates one algorithm version.
func (f *FeedbackRepository) VersionStats(_ context.Context, version string) (feedback.VersionStats, error) {
	f.s.mu.RLock()
	defer f.s.mu.RUnlock()

	return f.statsLocked()[version], nil
}

// ListVersionStats aggregates every algorithm version, ordered by name.
func (f *FeedbackRepository) ListVersionStats(_ context.Context) ([]feedback.VersionStats, error) {
	f.s.mu.RLock()
	byVersion := f.statsLocked()
	f.s.mu.RUnlock()

	out := make([]feedback.VersionStats, 0, len(byVersion))
	for _, s := range byVersion {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AlgorithmVersion < out[j].AlgorithmVersion })
	return out, nil
}

func (f *FeedbackRepository) statsLocked() map[string]feedback.VersionStats {
	out := make(map[string]feedback.VersionStats)
	for _, r := range f.s.recommendations {
		s := out[r.AlgorithmVersion]
		s.AlgorithmVersion = r.AlgorithmVersion
		s.Recommendations++
		if r.Rating != nil {
			s.Rated++
			s.RatingSum += *r.Rating
		}
		count(&s.Responses, r.Status.Response)
		out[r.AlgorithmVersion] = s
	}
	return out
}
