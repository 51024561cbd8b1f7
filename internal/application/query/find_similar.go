// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/alem-hub/adaptive-engine/internal/domain/profile"
	"github.com/alem-hub/adaptive-engine/internal/domain/shared"
	"github.com/alem-hub/adaptive-engine/internal/domain/similarity"
)

// ══════════════════════════════════════════════════════════════════════════════
// FIND SIMILAR QUERY
// Подбирает учеников с близким профилем черт (расстояние Чебышёва).
// Запрос не берёт пользовательских блокировок и может выполняться
// параллельно с генерацией.
// ══════════════════════════════════════════════════════════════════════════════

// FindSimilarQuery содержит параметры подбора.
type FindSimilarQuery struct {
	UserID string

	// MaxDistance - порог; nil = значение из конфигурации.
	MaxDistance *int

	// Dimensions - имена черт; пусто = набор из конфигурации.
	Dimensions []string

	// Limit - 0 = лимит по умолчанию, больше максимума обрезается.
	Limit int
}

// FindSimilarConfig - значения по умолчанию для подбора.
type FindSimilarConfig struct {
	MaxDistance  int
	Dimensions   []profile.Trait
	DefaultLimit int
	MaxLimit     int

	// LoadTimeout ограничивает общую выборку кандидатов. Выборка не
	// зависит от отмены контекста отдельного вызывающего.
	LoadTimeout time.Duration
}

// DefaultFindSimilarConfig возвращает конфигурацию по умолчанию.
func DefaultFindSimilarConfig() FindSimilarConfig {
	return FindSimilarConfig{
		MaxDistance:  10,
		Dimensions:   profile.AllTraits(),
		DefaultLimit: 20,
		MaxLimit:     100,
		LoadTimeout:  10 * time.Second,
	}
}

// FindSimilarHandler обрабатывает FindSimilarQuery.
type FindSimilarHandler struct {
	profiles profile.Repository
	config   FindSimilarConfig

	// loads объединяет одинаковые параллельные выборки кандидатов.
	loads singleflight.Group
}

// NewFindSimilarHandler создаёт обработчик.
func NewFindSimilarHandler(profiles profile.Repository, config FindSimilarConfig) *FindSimilarHandler {
	def := DefaultFindSimilarConfig()
	if len(config.Dimensions) == 0 {
		config.Dimensions = def.Dimensions
	}
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = def.DefaultLimit
	}
	if config.MaxLimit <= 0 {
		config.MaxLimit = def.MaxLimit
	}
	if config.LoadTimeout <= 0 {
		config.LoadTimeout = def.LoadTimeout
	}
	if config.DefaultLimit > config.MaxLimit {
		config.DefaultLimit = config.MaxLimit
	}
	return &FindSimilarHandler{profiles: profiles, config: config}
}

// Handle выполняет подбор.
func (h *FindSimilarHandler) Handle(ctx context.Context, q FindSimilarQuery) (similarity.Result, error) {
	userID, err := shared.RequireUserID("similarity", "FindSimilar", q.UserID)
	if err != nil {
		return nil, err
	}

	maxDistance := h.config.MaxDistance
	if q.MaxDistance != nil {
		maxDistance = *q.MaxDistance
	}
	if maxDistance < 0 {
		return nil, shared.NewValidationError("similarity", "FindSimilar", "max_distance", "cannot be negative")
	}

	dims, err := profile.ParseTraits(q.Dimensions)
	if err != nil {
		return nil, err
	}
	if len(dims) == 0 {
		dims = h.config.Dimensions
	}

	limit := q.Limit
	if limit <= 0 {
		limit = h.config.DefaultLimit
	}
	if limit > h.config.MaxLimit {
		limit = h.config.MaxLimit
	}

	self, err := h.profiles.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find_similar: %w", err)
	}

	filter := profile.CandidateFilter{
		ExcludeUserID: userID,
		Bounds:        profile.WindowAround(self.Traits, dims, maxDistance),
	}
	candidates, err := h.loadCandidates(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find_similar: candidates: %w", err)
	}

	return similarity.Rank(self, candidates, similarity.Criteria{
		MaxDistance: maxDistance,
		Dimensions:  dims,
		Limit:       limit,
	}), nil
}

// FindPeers - подбор с параметрами по умолчанию (для генерации инсайтов).
func (h *FindSimilarHandler) FindPeers(ctx context.Context, userID string) (similarity.Result, error) {
	return h.Handle(ctx, FindSimilarQuery{UserID: userID})
}

// loadCandidates объединяет одинаковые параллельные выборки. Общая выборка
// идёт на отвязанном контексте с собственным таймаутом, а каждый вызывающий
// ждёт её только до отмены своего ctx.
func (h *FindSimilarHandler) loadCandidates(ctx context.Context, filter profile.CandidateFilter) ([]*profile.Profile, error) {
	ch := h.loads.DoChan(filterKey(filter), func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.config.LoadTimeout)
		defer cancel()
		return h.profiles.ListCandidates(loadCtx, filter)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]*profile.Profile), nil
	}
}

func filterKey(f profile.CandidateFilter) string {
	var b strings.Builder
	b.WriteString(f.ExcludeUserID)
	for _, bound := range f.Bounds {
		b.WriteByte('|')
		b.WriteString(string(bound.Trait))
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(bound.Min))
		b.WriteByte('-')
		b.WriteString(strconv.Itoa(bound.Max))
	}
	return b.String()
}
