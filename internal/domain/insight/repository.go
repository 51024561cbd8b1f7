package insight

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/adaptive-engine/internal/domain/lifecycle"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции хранилища инсайтов.
type Repository interface {
	// InsertIfNoRecent атомарно вставляет инсайт, если с тем же
	// (user, type, title) не было инсайта, созданного не раньше windowStart.
	// Возвращает false, если кандидат подавлен как дубликат.
	InsertIfNoRecent(ctx context.Context, in *Insight, windowStart time.Time) (bool, error)

	// Get возвращает инсайт по ID или shared.ErrInsightNotFound.
	Get(ctx context.Context, id uuid.UUID) (*Insight, error)

	// ListByUser возвращает инсайты пользователя, новые первыми.
	ListByUser(ctx context.Context, userID string, limit int) ([]*Insight, error)

	// Transition атомарно применяет переход к одному инсайту (compare-and-set).
	Transition(ctx context.Context, id uuid.UUID, fn lifecycle.TransitionFunc) (lifecycle.Outcome, error)

	// ExpireDue переводит в expired до limit открытых инсайтов с истёкшим expires_at.
	ExpireDue(ctx context.Context, now time.Time, limit int) (int, error)

	// ListCleanupCandidates возвращает кандидатов на удаление с id > after
	// в порядке возрастания id.
	ListCleanupCandidates(ctx context.Context, c lifecycle.Cutoffs, after uuid.UUID, limit int) ([]*Insight, error)

	// DeleteIfEligible удаляет инсайт, только если он всё ещё подходит под
	// cutoffs в момент удаления. Возвращает false, если состояние изменилось.
	// Записанный ответ удалённого инсайта остаётся в счётчиках обратной связи.
	DeleteIfEligible(ctx context.Context, id uuid.UUID, c lifecycle.Cutoffs) (bool, error)
}

// Aggregates - поведенческие агрегаты, которые считает аналитика.
type Aggregates struct {
	UserID           string
	WindowDays       int
	SessionCount     int
	AvgEngagement    float64 // [0,1]
	AvgComprehension float64 // [0,1]
	HyperfocusShare  float64 // доля сессий в гиперфокусе, [0,1]
	BarrierFlags     []string
}

// BehaviorSource поставляет поведенческие агрегаты.
type BehaviorSource interface {
	// Aggregates возвращает агрегаты пользователя.
	// Отсутствие данных - нулевые агрегаты, не ошибка.
	Aggregates(ctx context.Context, userID string) (Aggregates, error)
}
