// Package insight содержит доменную модель адаптивных инсайтов:
// наблюдений о поведении ученика с оценкой уверенности и приоритетом.
package insight

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/adaptive-engine/internal/domain/lifecycle"
	"github.com/alem-hub/adaptive-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TYPES
// ══════════════════════════════════════════════════════════════════════════════

// Type - тип инсайта. Множество открытое: продюсеры сигналов могут
// вводить собственные типы.
type Type string

const (
	TypeHyperfocusPattern    Type = "hyperfocus_pattern"
	TypePeerStrategy         Type = "peer_strategy"
	TypeAccessibilityBarrier Type = "accessibility_barrier"
	TypeEngagementDrop       Type = "engagement_drop"
	TypeComprehensionGap     Type = "comprehension_gap"
)

// ══════════════════════════════════════════════════════════════════════════════
// SIGNAL
// ══════════════════════════════════════════════════════════════════════════════

// Signal - кандидат в инсайт, подготовленный продюсером сигналов.
// Калибровка уверенности - ответственность продюсера.
type Signal struct {
	Type       Type
	Title      string
	Evidence   string
	Confidence float64
	Priority   shared.Priority
}

// Validate проверяет сигнал. Пустой приоритет трактуется как low.
func (s Signal) Validate() error {
	if strings.TrimSpace(string(s.Type)) == "" {
		return shared.NewValidationError("insight", "Generate", "type", "cannot be empty")
	}
	if strings.TrimSpace(s.Title) == "" {
		return shared.NewValidationError("insight", "Generate", "title", "cannot be empty")
	}
	if _, err := shared.NewConfidence("insight", "Generate", s.Confidence); err != nil {
		return err
	}
	if s.Priority != "" && !s.Priority.IsValid() {
		return shared.NewValidationError("insight", "Generate", "priority", "must be one of low, medium, high, urgent")
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// INSIGHT ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Insight - одно наблюдение о пользователе.
type Insight struct {
	ID         uuid.UUID
	UserID     string
	Type       Type
	Title      string
	Evidence   string
	Confidence shared.Confidence
	Priority   shared.Priority
	Status     lifecycle.Status
}

// New создаёт инсайт из проверенного сигнала.
// У инсайтов нет жёсткого TTL, поэтому ExpiresAt не выставляется.
func New(userID string, s Signal, now time.Time) *Insight {
	p := s.Priority
	if p == "" {
		p = shared.PriorityLow
	}
	return &Insight{
		ID:         uuid.New(),
		UserID:     userID,
		Type:       Type(strings.TrimSpace(string(s.Type))),
		Title:      strings.TrimSpace(s.Title),
		Evidence:   s.Evidence,
		Confidence: shared.Confidence(s.Confidence),
		Priority:   p,
		Status:     lifecycle.NewStatus(now, nil),
	}
}

// DedupKey возвращает ключ дедупликации (user, type, title).
func (i *Insight) DedupKey() string {
	return DedupKey(i.UserID, i.Type, i.Title)
}

// DedupKey строит ключ дедупликации.
func DedupKey(userID string, t Type, title string) string {
	return userID + "\x1f" + string(t) + "\x1f" + title
}

// Outcome - что произошло с кандидатом при генерации.
type Outcome string

const (
	OutcomeCreated    Outcome = "created"
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeBelowFloor Outcome = "below_floor"
)
