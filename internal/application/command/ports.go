// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"time"

	"github.com/alem-hub/adaptive-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// Ports shared by the command handlers. Implementations live in infrastructure.
// ══════════════════════════════════════════════════════════════════════════════

// UserLocker serializes generate-then-insert sequences per user.
// Implementations: lock.KeyedMutex (in-process), redis.UserLock (multi-process).
type UserLocker interface {
	// Acquire blocks until the user's lock is held or ctx is done.
	Acquire(ctx context.Context, userID string) (release func(), err error)
}

// Recorder receives engine metrics. A nil Recorder is replaced by NopRecorder.
type Recorder interface {
	InsightOutcome(outcome string, confidence float64)
	RecommendationCreated(typ, priority string, confidence float64, retracted int)
	Transition(subject, transition string, applied bool)
	Cleanup(expiredRecommendations, expiredInsights, deleted, failures int)
}

// NopRecorder discards metrics.
type NopRecorder struct{}

func (NopRecorder) InsightOutcome(string, float64)                      {}
func (NopRecorder) RecommendationCreated(string, string, float64, int) {}
func (NopRecorder) Transition(string, string, bool)                     {}
func (NopRecorder) Cleanup(int, int, int, int)                          {}

func orNopRecorder(r Recorder) Recorder {
	if r == nil {
		return NopRecorder{}
	}
	return r
}

func orSystemClock(c timeutil.Clock) timeutil.Clock {
	if c == nil {
		return timeutil.SystemClock{}
	}
	return c
}

// timed returns the elapsed time since start, for log fields.
func timed(start time.Time) time.Duration {
	return time.Since(start)
}
