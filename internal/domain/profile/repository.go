package profile

import "context"

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Контракт хранилища профилей. Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции хранилища профилей.
type Repository interface {
	// Get возвращает профиль пользователя.
	// Возвращает shared.ErrProfileNotFound, если профиля нет.
	Get(ctx context.Context, userID string) (*Profile, error)

	// Save полностью заменяет профиль (replace-on-write) и атомарно
	// увеличивает версию. Возвращает новую версию.
	Save(ctx context.Context, p *Profile) (int, error)

	// ListCandidates возвращает профили внутри окна по измерениям фильтра.
	// Реализации могут вынести окно в запрос; точную дистанцию считает matcher.
	ListCandidates(ctx context.Context, filter CandidateFilter) ([]*Profile, error)

	// ListUserIDs возвращает id пользователей с профилями (keyset-пагинация по id).
	ListUserIDs(ctx context.Context, afterUserID string, limit int) ([]string, error)
}

// Bound - допустимый интервал значений одной черты.
type Bound struct {
	Trait Trait
	Min   int
	Max   int
}

// Contains проверяет, попадает ли значение в интервал.
func (b Bound) Contains(score int) bool {
	return score >= b.Min && score <= b.Max
}

// CandidateFilter - предварительный фильтр кандидатов для поиска похожих.
type CandidateFilter struct {
	// ExcludeUserID - пользователь, для которого ищем (никогда не возвращается).
	ExcludeUserID string

	// Bounds - окна по выбранным измерениям.
	Bounds []Bound
}

// WindowAround строит окна ±maxDistance вокруг значений центра (с учётом шкалы).
func WindowAround(center TraitVector, dims []Trait, maxDistance int) []Bound {
	bounds := make([]Bound, 0, len(dims))
	for _, d := range dims {
		c := center[d]
		bounds = append(bounds, Bound{
			Trait: d,
			Min:   max(MinScore, c-maxDistance),
			Max:   min(MaxScore, c+maxDistance),
		})
	}
	return bounds
}

// WithinWindow - именованный предикат: каждая черта из bounds попадает в своё окно.
func WithinWindow(v TraitVector, bounds []Bound) bool {
	for _, b := range bounds {
		s, ok := v[b.Trait]
		if !ok || !b.Contains(s) {
			return false
		}
	}
	return true
}

// Matches проверяет, что профиль не исключён и попадает во все окна.
func (f CandidateFilter) Matches(p *Profile) bool {
	return p.UserID != f.ExcludeUserID && WithinWindow(p.Traits, f.Bounds)
}
