// Package recommendation содержит доменную модель рекомендаций контента
// и детерминированный скоринг (совместимость, взаимодействия, свежесть).
package recommendation

import (
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/adaptive-engine/internal/domain/lifecycle"
	"github.com/alem-hub/adaptive-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REASON CODES
// ══════════════════════════════════════════════════════════════════════════════

// Type - код причины рекомендации (доминирующая компонента скоринга).
type Type string

const (
	TypeAccessibilityMatch Type = "accessibility_match"
	TypePeerSuccess        Type = "peer_success"
	TypeFreshContent       Type = "fresh_content"
)

// IsValid проверяет код причины.
func (t Type) IsValid() bool {
	switch t {
	case TypeAccessibilityMatch, TypePeerSuccess, TypeFreshContent:
		return true
	default:
		return false
	}
}

const (
	MinRating = 1
	MaxRating = 5
)

// ValidateRating проверяет оценку (nil - оценки нет).
func ValidateRating(r *int) error {
	if r != nil && (*r < MinRating || *r > MaxRating) {
		return shared.NewValidationError("recommendation", "Respond", "rating", "must be within [1, 5]")
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Recommendation - пара (ученик, контент) с оценкой уверенности.
// Рекомендации никогда не удаляются, только истекают или отзываются.
type Recommendation struct {
	ID               uuid.UUID
	StudentID        string
	ContentID        string
	Type             Type
	Confidence       shared.Confidence
	Priority         shared.Priority
	Status           lifecycle.Status
	Rating           *int
	AlgorithmVersion string
	RetractedAt      *time.Time
}

// New создаёт рекомендацию со сроком now+ttl.
func New(studentID string, s Scored, algorithmVersion string, now time.Time, ttl time.Duration) *Recommendation {
	expires := now.Add(ttl)
	return &Recommendation{
		ID:               uuid.New(),
		StudentID:        studentID,
		ContentID:        s.ContentID,
		Type:             s.Type,
		Confidence:       s.Confidence,
		Priority:         s.Priority,
		Status:           lifecycle.NewStatus(now, &expires),
		AlgorithmVersion: algorithmVersion,
	}
}

// Key - кортеж уникальности активной рекомендации.
type Key struct {
	StudentID string
	ContentID string
	Type      Type
}

// Key возвращает кортеж уникальности.
func (r *Recommendation) Key() Key {
	return Key{StudentID: r.StudentID, ContentID: r.ContentID, Type: r.Type}
}

// IsActive - не истекла, не отозвана и ещё может быть показана.
func (r *Recommendation) IsActive(now time.Time) bool {
	return r.Status.IsActive(now)
}
