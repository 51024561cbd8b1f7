// Package similarity реализует подбор похожих учеников по профилю черт.
//
// Похожесть - это близость КАЖДОЙ выбранной черты, а не средняя:
// используется расстояние Чебышёва (максимум модулей разностей по измерениям).
// Профиль с одной сильно отличающейся чертой не считается похожим,
// даже если остальные совпадают.
package similarity

import (
	"sort"

	"github.com/alem-hub/adaptive-engine/internal/domain/profile"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Match - один похожий ученик.
type Match struct {
	UserID   string
	Distance int
}

// Result - ранжированный список похожих учеников. Не сохраняется.
type Result []Match

// UserIDs возвращает id в порядке ранжирования.
func (r Result) UserIDs() []string {
	ids := make([]string, len(r))
	for i, m := range r {
		ids[i] = m.UserID
	}
	return ids
}

// Criteria - параметры подбора.
type Criteria struct {
	MaxDistance int
	Dimensions  []profile.Trait
	Limit       int
}

// ══════════════════════════════════════════════════════════════════════════════
// DISTANCE
// ══════════════════════════════════════════════════════════════════════════════

// Distance вычисляет расстояние Чебышёва между двумя векторами по измерениям dims.
// Отсутствующая черта трактуется как максимально далёкая.
func Distance(a, b profile.TraitVector, dims []profile.Trait) int {
	worst := 0
	for _, d := range dims {
		av, aok := a[d]
		bv, bok := b[d]
		if !aok || !bok {
			return profile.MaxScore - profile.MinScore + 1
		}
		diff := av - bv
		if diff < 0 {
			diff = -diff
		}
		if diff > worst {
			worst = diff
		}
	}
	return worst
}

// Within - именованный предикат: все выбранные черты отличаются не более чем на maxDistance.
func Within(a, b profile.TraitVector, dims []profile.Trait, maxDistance int) bool {
	return Distance(a, b, dims) <= maxDistance
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKING
// ══════════════════════════════════════════════════════════════════════════════

// Rank отбирает кандидатов в пределах порога и ранжирует их:
// по возрастанию расстояния, затем по возрастанию user id.
// Сам пользователь (selfID) исключается всегда.
func Rank(self *profile.Profile, candidates []*profile.Profile, c Criteria) Result {
	out := make(Result, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, cand := range candidates {
		if cand == nil || cand.UserID == self.UserID || seen[cand.UserID] {
			continue
		}
		d := Distance(self.Traits, cand.Traits, c.Dimensions)
		if d > c.MaxDistance {
			continue
		}
		seen[cand.UserID] = true
		out = append(out, Match{UserID: cand.UserID, Distance: d})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].UserID < out[j].UserID
	})

	if c.Limit > 0 && len(out) > c.Limit {
		out = out[:c.Limit]
	}
	return out
}
