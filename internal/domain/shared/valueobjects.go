// Package shared contains common domain types, errors, and value objects
// that are used across all domain packages.
package shared

import (
	"math"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// Confidence Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Confidence expresses the engine's certainty that an insight or
// recommendation is relevant. Valid values are in [0.0, 1.0].
type Confidence float64

// IsValid checks if the confidence is within [0, 1].
func (c Confidence) IsValid() bool {
	f := float64(c)
	return !math.IsNaN(f) && f >= 0 && f <= 1
}

// Float64 returns the underlying value.
func (c Confidence) Float64() float64 {
	return float64(c)
}

// AtLeast reports whether the confidence reaches the given floor.
func (c Confidence) AtLeast(floor float64) bool {
	return float64(c) >= floor
}

// NewConfidence creates a Confidence with validation.
func NewConfidence(domain, op string, v float64) (Confidence, error) {
	c := Confidence(v)
	if !c.IsValid() {
		return 0, NewValidationError(domain, op, "confidence", "must be within [0, 1]")
	}
	return c, nil
}

// ClampConfidence clamps an arbitrary score into [0, 1]. NaN becomes 0.
func ClampConfidence(v float64) Confidence {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return Confidence(v)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Priority Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Priority is the presentation priority of an insight or recommendation.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// IsValid checks if the priority is a known level.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

// Rank returns a numeric rank for ordering (urgent is highest).
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

// ParsePriority parses a priority level, case-insensitively.
func ParsePriority(s string) (Priority, bool) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	return p, p.IsValid()
}

// ═══════════════════════════════════════════════════════════════════════════
// User ID
// ═══════════════════════════════════════════════════════════════════════════

// NormalizeUserID trims an external user identifier. User ids are opaque
// strings owned by the platform's user collaborator.
func NormalizeUserID(id string) string {
	return strings.TrimSpace(id)
}

// RequireUserID validates that a user id is present.
func RequireUserID(domain, op, id string) (string, error) {
	id = NormalizeUserID(id)
	if id == "" {
		return "", NewValidationError(domain, op, "user_id", "cannot be empty")
	}
	return id, nil
}
