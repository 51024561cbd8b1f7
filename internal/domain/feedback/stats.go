// Package feedback содержит чистые агрегаты по ответам пользователей:
// долю принятых и эффективность версий алгоритма.
package feedback

import (
	"context"
	"sort"

	"github.com/alem-hub/adaptive-engine/internal/domain/shared"
)

// Subject - по каким записям считать статистику.
type Subject string

const (
	SubjectInsights        Subject = "insights"
	SubjectRecommendations Subject = "recommendations"
)

// ParseSubject разбирает subject из внешнего ввода.
func ParseSubject(s string) (Subject, error) {
	switch Subject(s) {
	case SubjectInsights, SubjectRecommendations:
		return Subject(s), nil
	default:
		return "", shared.NewValidationError("feedback", "ParseSubject", "subject", "must be insights or recommendations")
	}
}

// Filter - фильтр выборки ответов. Пустые поля не фильтруют.
type Filter struct {
	Subject Subject
	UserID  string
	Type    string
}

// Counts - количество ответов по видам.
type Counts struct {
	Accepted int
	Rejected int
	Ignored  int
}

// Total - всего ответов.
func (c Counts) Total() int {
	return c.Accepted + c.Rejected + c.Ignored
}

// Rate - доля принятых. Defined=false, если ответов не было (это не 0%).
type Rate struct {
	Accepted int
	Total    int
	Value    float64
	Defined  bool
}

// RateOf вычисляет долю принятых.
func RateOf(c Counts) Rate {
	total := c.Total()
	if total == 0 {
		return Rate{}
	}
	return Rate{
		Accepted: c.Accepted,
		Total:    total,
		Value:    float64(c.Accepted) / float64(total),
		Defined:  true,
	}
}

// VersionStats - сырые агрегаты по версии алгоритма из хранилища.
type VersionStats struct {
	AlgorithmVersion string
	Recommendations  int
	Rated            int
	RatingSum        int
	Responses        Counts
}

// Effectiveness - сводка эффективности версии алгоритма.
type Effectiveness struct {
	AlgorithmVersion string
	Recommendations  int
	Rated            int
	MeanRating       float64
	MeanDefined      bool
	Acceptance       Rate
}

// EffectivenessOf строит сводку. Без оценок средняя не определена.
func EffectivenessOf(s VersionStats) Effectiveness {
	e := Effectiveness{
		AlgorithmVersion: s.AlgorithmVersion,
		Recommendations:  s.Recommendations,
		Rated:            s.Rated,
		Acceptance:       RateOf(s.Responses),
	}
	if s.Rated > 0 {
		e.MeanRating = float64(s.RatingSum) / float64(s.Rated)
		e.MeanDefined = true
	}
	return e
}

// Compare упорядочивает сводки: определённая средняя выше, затем по убыванию
// средней, затем по имени версии.
func Compare(items []Effectiveness) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.MeanDefined != b.MeanDefined {
			return a.MeanDefined
		}
		if a.MeanRating != b.MeanRating {
			return a.MeanRating > b.MeanRating
		}
		return a.AlgorithmVersion < b.AlgorithmVersion
	})
}

// Repository - только чтение записей об ответах.
type Repository interface {
	ResponseCounts(ctx context.Context, f Filter) (Counts, error)
	VersionStats(ctx context.Context, algorithmVersion string) (VersionStats, error)
	ListVersionStats(ctx context.Context) ([]VersionStats, error)
}
