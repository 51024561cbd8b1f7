// Package lifecycle описывает общий конечный автомат для инсайтов и рекомендаций:
// generated → presented → responded, а также expired/retracted.
//
// Все переходы - чистые функции над Status. Хранилище применяет их как
// single-row compare-and-set, поэтому повторное применение перехода
// безопасно и возвращает Applied=false вместо ошибки.
package lifecycle

import (
	"strings"
	"time"

	"github.com/alem-hub/adaptive-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATES
// ══════════════════════════════════════════════════════════════════════════════

// State - состояние элемента в жизненном цикле.
type State string

const (
	// StateGenerated - создан, ещё не показан.
	StateGenerated State = "generated"

	// StatePresented - показан пользователю.
	StatePresented State = "presented"

	// StateResponded - пользователь ответил (accepted/rejected/ignored).
	StateResponded State = "responded"

	// StateExpired - истёк до ответа.
	StateExpired State = "expired"

	// StateRetracted - отозван генератором (только рекомендации).
	StateRetracted State = "retracted"
)

// IsValid проверяет корректность состояния.
func (s State) IsValid() bool {
	switch s {
	case StateGenerated, StatePresented, StateResponded, StateExpired, StateRetracted:
		return true
	default:
		return false
	}
}

// IsOpen возвращает true, пока элемент может быть показан или получить ответ.
func (s State) IsOpen() bool {
	return s == StateGenerated || s == StatePresented
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSES
// ══════════════════════════════════════════════════════════════════════════════

// Response - ответ пользователя.
type Response string

const (
	ResponseNone     Response = ""
	ResponseAccepted Response = "accepted"
	ResponseRejected Response = "rejected"
	ResponseIgnored  Response = "ignored"
)

// IsValid проверяет корректность ответа (пустой ответ невалиден).
func (r Response) IsValid() bool {
	switch r {
	case ResponseAccepted, ResponseRejected, ResponseIgnored:
		return true
	default:
		return false
	}
}

// ParseResponse разбирает ответ из внешнего ввода.
func ParseResponse(s string) (Response, error) {
	r := Response(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return ResponseNone, shared.NewValidationError("lifecycle", "ParseResponse", "response",
			"must be one of accepted, rejected, ignored")
	}
	return r, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status - снимок жизненного цикла одного элемента.
type Status struct {
	State       State
	CreatedAt   time.Time
	PresentedAt *time.Time
	Response    Response
	RespondedAt *time.Time
	ExpiresAt   *time.Time
}

// NewStatus создаёт статус только что сгенерированного элемента.
func NewStatus(createdAt time.Time, expiresAt *time.Time) Status {
	return Status{
		State:     StateGenerated,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}
}

// IsDue возвращает true, если открытый элемент прошёл срок истечения.
func (s Status) IsDue(now time.Time) bool {
	return s.State.IsOpen() && s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// IsActive - элемент не истёк, не отозван и ещё может быть показан.
func (s Status) IsActive(now time.Time) bool {
	return s.State.IsOpen() && !s.IsDue(now)
}

// HasResponse возвращает true, если ответ уже записан.
func (s Status) HasResponse() bool {
	return s.Response != ResponseNone
}

// Outcome - результат применения перехода.
// Applied=false означает "уже сделано" или "неприменимо", это не ошибка.
type Outcome struct {
	Status  Status
	Applied bool
}

// TransitionFunc - чистая функция перехода, которую хранилище применяет атомарно.
type TransitionFunc func(current Status) (next Status, applied bool, err error)

// ══════════════════════════════════════════════════════════════════════════════
// TRANSITIONS
// ══════════════════════════════════════════════════════════════════════════════

// Present переводит generated → presented. Повторный показ - no-op.
// Просроченный элемент не показывается: его истечение - дело Expire/Cleanup.
func Present(now time.Time) TransitionFunc {
	return func(s Status) (Status, bool, error) {
		if s.State != StateGenerated || s.IsDue(now) {
			return s, false, nil
		}
		t := now
		s.State = StatePresented
		s.PresentedAt = &t
		return s, true, nil
	}
}

// Respond записывает ответ пользователя.
//
//   - presented → responded;
//   - expired/retracted без ответа: ответ записывается, состояние не меняется;
//   - уже есть ответ: no-op, сохраняются первый ответ и его время;
//   - generated: конфликт, элемент ни разу не показывали.
func Respond(r Response, now time.Time) TransitionFunc {
	return func(s Status) (Status, bool, error) {
		if !r.IsValid() {
			return s, false, shared.NewValidationError("lifecycle", "Respond", "response",
				"must be one of accepted, rejected, ignored")
		}
		if s.HasResponse() {
			return s, false, nil
		}

		t := now
		switch s.State {
		case StatePresented:
			s.State = StateResponded
		case StateExpired, StateRetracted:
			// состояние не меняется
		case StateGenerated:
			return s, false, shared.ErrNotPresented
		default:
			return s, false, nil
		}
		s.Response = r
		s.RespondedAt = &t
		return s, true, nil
	}
}

// Expire переводит generated/presented → expired, если срок прошёл.
func Expire(now time.Time) TransitionFunc {
	return func(s Status) (Status, bool, error) {
		if !s.IsDue(now) {
			return s, false, nil
		}
		s.State = StateExpired
		return s, true, nil
	}
}

// Retract отзывает открытый элемент (используется при замене рекомендации).
func Retract() TransitionFunc {
	return func(s Status) (Status, bool, error) {
		if !s.State.IsOpen() {
			return s, false, nil
		}
		s.State = StateRetracted
		return s, true, nil
	}
}
