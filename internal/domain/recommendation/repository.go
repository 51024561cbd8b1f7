package recommendation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/adaptive-engine/internal/domain/lifecycle"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции хранилища рекомендаций.
type Repository interface {
	// ReplaceActive атомарно отзывает открытые рекомендации с тем же
	// (student, content, type) и вставляет новую. Возвращает число отозванных.
	ReplaceActive(ctx context.Context, r *Recommendation, now time.Time) (int, error)

	// Get возвращает рекомендацию или shared.ErrRecommendationNotFound.
	Get(ctx context.Context, id uuid.UUID) (*Recommendation, error)

	// ListActive возвращает активные рекомендации ученика по убыванию приоритета и уверенности.
	ListActive(ctx context.Context, studentID string, now time.Time, limit int) ([]*Recommendation, error)

	// Transition атомарно применяет переход. rating записывается только
	// вместе с применённым ответом.
	Transition(ctx context.Context, id uuid.UUID, fn lifecycle.TransitionFunc, rating *int) (lifecycle.Outcome, error)

	// ExpireDue переводит в expired до limit открытых просроченных рекомендаций.
	ExpireDue(ctx context.Context, now time.Time, limit int) (int, error)

	// LastPresented возвращает время последнего показа контента ученику.
	LastPresented(ctx context.Context, studentID string, contentIDs []string) (map[string]time.Time, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// COLLABORATOR SOURCES
// ══════════════════════════════════════════════════════════════════════════════

// Content - метаданные контента из каталога.
type Content struct {
	ID                string
	Title             string
	AccessibilityTags []string
}

// ContentCatalog - каталог контента.
type ContentCatalog interface {
	// Contents возвращает известный контент; неизвестные id пропускаются.
	Contents(ctx context.Context, ids []string) (map[string]Content, error)
}

// InteractionStats - агрегированная история взаимодействий с контентом, [0,1].
type InteractionStats struct {
	Count       int
	Engagement  float64
	Completion  float64
	Helpfulness float64
}

// InteractionSource - история взаимодействий ученика с контентом.
type InteractionSource interface {
	Interactions(ctx context.Context, studentID string, contentIDs []string) (map[string]InteractionStats, error)
}

// NeedSource - неудовлетворённые потребности доступности, отмеченные аналитикой.
type NeedSource interface {
	UnmetNeeds(ctx context.Context, studentID string) ([]string, error)
}
