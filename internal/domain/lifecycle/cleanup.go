package lifecycle

import "time"

// CleanupReason - почему инсайт подлежит удалению.
type CleanupReason string

const (
	CleanupRejected   CleanupReason = "rejected"
	CleanupUnanswered CleanupReason = "unanswered"
	CleanupIgnored    CleanupReason = "ignored"
	CleanupExpired    CleanupReason = "expired"
)

// CleanupPolicy задаёт пороги удаления инсайтов.
type CleanupPolicy struct {
	// IgnoreThreshold - сколько живёт показанный без ответа (или ignored) инсайт,
	// а также истёкший без ответа инсайт после своего expires_at.
	IgnoreThreshold time.Duration

	// CleanupThreshold - сколько живёт отклонённый инсайт.
	CleanupThreshold time.Duration
}

// DefaultCleanupPolicy возвращает пороги по умолчанию: 14 и 30 дней.
func DefaultCleanupPolicy() CleanupPolicy {
	return CleanupPolicy{
		IgnoreThreshold:  14 * 24 * time.Hour,
		CleanupThreshold: 30 * 24 * time.Hour,
	}
}

// Cutoffs - граничные моменты времени для выборки кандидатов в хранилище.
type Cutoffs struct {
	IgnoredBefore  time.Time
	RejectedBefore time.Time
}

// Cutoffs вычисляет границы относительно now.
func (p CleanupPolicy) Cutoffs(now time.Time) Cutoffs {
	return Cutoffs{
		IgnoredBefore:  now.Add(-p.IgnoreThreshold),
		RejectedBefore: now.Add(-p.CleanupThreshold),
	}
}

// Eligible проверяет, можно ли удалить инсайт с данным статусом.
// Хранилище обязано повторить эту проверку атомарно непосредственно перед удалением.
func (c Cutoffs) Eligible(s Status) (CleanupReason, bool) {
	switch {
	case s.Response == ResponseRejected && s.RespondedAt != nil && s.RespondedAt.Before(c.RejectedBefore):
		return CleanupRejected, true
	case s.Response == ResponseIgnored && s.RespondedAt != nil && s.RespondedAt.Before(c.IgnoredBefore):
		return CleanupIgnored, true
	case s.State == StatePresented && !s.HasResponse() && s.PresentedAt != nil && s.PresentedAt.Before(c.IgnoredBefore):
		return CleanupUnanswered, true
	case s.State == StateExpired && !s.HasResponse() && s.ExpiresAt != nil && s.ExpiresAt.Before(c.IgnoredBefore):
		// Поздний ответ принимается до порога; после него инсайт удаляется.
		return CleanupExpired, true
	default:
		return "", false
	}
}
