package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/alem-hub/adaptive-engine/internal/domain/feedback"
)

// ══════════════════════════════════════════════════════════════════════════════
// FEEDBACK QUERIES
// Доля принятых и эффективность версий алгоритма. Только чтение,
// безопасно параллельно с генерацией.
// ══════════════════════════════════════════════════════════════════════════════

// AcceptanceRateQuery содержит параметры расчёта доли принятых.
type AcceptanceRateQuery struct {
	Subject feedback.Subject

	// UserID - пусто = по всем пользователям.
	UserID string

	// Type - тип инсайта или код причины рекомендации; пусто = все.
	Type string
}

// FeedbackHandler обрабатывает запросы статистики.
type FeedbackHandler struct {
	repo feedback.Repository
}

// NewFeedbackHandler создаёт обработчик.
func NewFeedbackHandler(repo feedback.Repository) *FeedbackHandler {
	return &FeedbackHandler{repo: repo}
}

// AcceptanceRate = accepted / responded. Без ответов Rate.Defined=false.
func (h *FeedbackHandler) AcceptanceRate(ctx context.Context, q AcceptanceRateQuery) (feedback.Rate, error) {
	subject, err := feedback.ParseSubject(string(q.Subject))
	if err != nil {
		return feedback.Rate{}, err
	}

	counts, err := h.repo.ResponseCounts(ctx, feedback.Filter{
		Subject: subject,
		UserID:  strings.TrimSpace(q.UserID),
		Type:    strings.TrimSpace(q.Type),
	})
	if err != nil {
		return feedback.Rate{}, fmt.Errorf("acceptance_rate: %w", err)
	}
	return feedback.RateOf(counts), nil
}

// Effectiveness возвращает сводку по одной версии алгоритма.
func (h *FeedbackHandler) Effectiveness(ctx context.Context, algorithmVersion string) (feedback.Effectiveness, error) {
	stats, err := h.repo.VersionStats(ctx, algorithmVersion)
	if err != nil {
		return feedback.Effectiveness{}, fmt.Errorf("effectiveness: %w", err)
	}
	stats.AlgorithmVersion = algorithmVersion
	return feedback.EffectivenessOf(stats), nil
}

// EffectivenessAll возвращает сводки по всем версиям, лучшие первыми.
func (h *FeedbackHandler) EffectivenessAll(ctx context.Context) ([]feedback.Effectiveness, error) {
	all, err := h.repo.ListVersionStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("effectiveness: %w", err)
	}
	out := make([]feedback.Effectiveness, 0, len(all))
	for _, s := range all {
		out = append(out, feedback.EffectivenessOf(s))
	}
	feedback.Compare(out)
	return out, nil
}
