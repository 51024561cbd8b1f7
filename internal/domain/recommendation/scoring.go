package recommendation

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/alem-hub/adaptive-engine/internal/domain/profile"
	"github.com/alem-hub/adaptive-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// NEEDS
// Потребности доступности, которые следуют из профиля черт.
// ══════════════════════════════════════════════════════════════════════════════

// Need - тег потребности. Совпадает со словарём тегов доступности каталога.
type Need string

const (
	NeedLowStimulus       Need = "low_stimulus"
	NeedChunked           Need = "chunked"
	NeedStructuredOutline Need = "structured_outline"
	NeedBreakReminders    Need = "break_reminders"
	NeedFlexiblePacing    Need = "flexible_pacing"
	NeedVisualSupports    Need = "visual_supports"
	NeedAudioNarration    Need = "audio_narration"
	NeedInteractive       Need = "interactive"
	NeedTextAlternative   Need = "text_alternative"
)

const (
	highTrait = 70
	lowTrait  = 35
)

// NeedsFromProfile выводит потребности из порогов черт и стиля обучения.
// Результат отсортирован и без повторов.
func NeedsFromProfile(p *profile.Profile) []Need {
	set := make(map[Need]bool)
	t := p.Traits

	if t[profile.TraitSensoryProcessing] >= highTrait {
		set[NeedLowStimulus] = true
	}
	if t[profile.TraitAttentionFlexibility] <= lowTrait {
		set[NeedChunked] = true
	}
	if t[profile.TraitExecutiveFunction] <= lowTrait || t[profile.TraitStructurePreference] >= highTrait {
		set[NeedStructuredOutline] = true
	}
	if t[profile.TraitHyperfocusIntensity] >= 75 {
		set[NeedBreakReminders] = true
	}
	if t[profile.TraitEmotionalRegulation] <= lowTrait {
		set[NeedFlexiblePacing] = true
	}

	switch p.Preferences.LearningStyle {
	case profile.StyleVisual:
		set[NeedVisualSupports] = true
	case profile.StyleAuditory:
		set[NeedAudioNarration] = true
	case profile.StyleKinesthetic:
		set[NeedInteractive] = true
	case profile.StyleReadingWriting:
		set[NeedTextAlternative] = true
	}

	out := make([]Need, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// NAMED PREDICATES
// ══════════════════════════════════════════════════════════════════════════════

// CompatibilityFunc оценивает совместимость тегов контента с потребностями, [0,1].
type CompatibilityFunc func(needs []Need, tags []string) float64

// CompatibilityScore - доля потребностей, закрытых тегами контента.
// Без потребностей совместимость нейтральна (0.5).
func CompatibilityScore(needs []Need, tags []string) float64 {
	if len(needs) == 0 {
		return 0.5
	}
	tagSet := normalizeTags(tags)
	hit := 0
	for _, n := range needs {
		if tagSet[string(n)] {
			hit++
		}
	}
	return float64(hit) / float64(len(needs))
}

// AddressesUnmetNeed - контент закрывает хотя бы одну отмеченную потребность.
func AddressesUnmetNeed(unmet []string, tags []string) bool {
	tagSet := normalizeTags(tags)
	for _, n := range unmet {
		if tagSet[strings.ToLower(strings.TrimSpace(n))] {
			return true
		}
	}
	return false
}

func normalizeTags(tags []string) map[string]bool {
	set := make(map[string]bool, len(tags))
	for _, t := range tags {
		set[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return set
}

// ══════════════════════════════════════════════════════════════════════════════
// INTERACTION AND RECENCY SIGNALS
// ══════════════════════════════════════════════════════════════════════════════

// InteractionSignal - среднее вовлечённости, завершения и полезности.
// Без истории сигнал нейтрален (0.5).
func InteractionSignal(s InteractionStats, ok bool) float64 {
	if !ok || s.Count == 0 {
		return 0.5
	}
	return shared.ClampConfidence((s.Engagement + s.Completion + s.Helpfulness) / 3).Float64()
}

// DecayFunc оценивает свежесть контента для ученика, [0,1].
// lastPresented == nil означает, что контент ещё не показывали.
type DecayFunc func(lastPresented *time.Time, now time.Time) float64

// HalfLifeDecay возвращает экспоненциальное восстановление свежести:
// сразу после показа 0, через halfLife 0.5, никогда не показанный контент 1.
func HalfLifeDecay(halfLife time.Duration) DecayFunc {
	return func(lastPresented *time.Time, now time.Time) float64 {
		if lastPresented == nil || halfLife <= 0 {
			return 1
		}
		age := now.Sub(*lastPresented)
		if age <= 0 {
			return 0
		}
		return 1 - math.Exp2(-float64(age)/float64(halfLife))
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// BLEND
// ══════════════════════════════════════════════════════════════════════════════

// Weights - веса компонент скоринга.
type Weights struct {
	Compatibility float64
	Interaction   float64
	Recency       float64
}

// DefaultWeights возвращает 0.5/0.3/0.2.
func DefaultWeights() Weights {
	return Weights{Compatibility: 0.5, Interaction: 0.3, Recency: 0.2}
}

// Validate проверяет, что веса неотрицательны и не все нулевые.
func (w Weights) Validate() error {
	if w.Compatibility < 0 || w.Interaction < 0 || w.Recency < 0 {
		return shared.NewValidationError("recommendation", "Weights", "weights", "must be non-negative")
	}
	if w.Compatibility+w.Interaction+w.Recency == 0 {
		return shared.NewValidationError("recommendation", "Weights", "weights", "at least one weight must be positive")
	}
	return nil
}

// Components - значения компонент для одного контента, каждая в [0,1].
type Components struct {
	Compatibility float64
	Interaction   float64
	Recency       float64
}

// Scored - результат скоринга одного контента до сохранения.
type Scored struct {
	ContentID  string
	Type       Type
	Confidence shared.Confidence
	Priority   shared.Priority
	Components Components
}

// Blend считает уверенность как нормированную взвешенную сумму и
// выбирает код причины по доминирующей взвешенной компоненте.
// При равенстве порядок: accessibility_match, peer_success, fresh_content.
func Blend(c Components, w Weights) (shared.Confidence, Type) {
	wc := w.Compatibility * c.Compatibility
	wi := w.Interaction * c.Interaction
	wr := w.Recency * c.Recency

	total := w.Compatibility + w.Interaction + w.Recency
	conf := shared.ClampConfidence((wc + wi + wr) / total)

	t := TypeAccessibilityMatch
	best := wc
	if wi > best {
		t, best = TypePeerSuccess, wi
	}
	if wr > best {
		t = TypeFreshContent
	}
	return conf, t
}

// DerivePriority - детерминированный приоритет: отмеченная неудовлетворённая
// потребность повышает до urgent независимо от уверенности.
func DerivePriority(c shared.Confidence, urgent bool) shared.Priority {
	switch {
	case urgent:
		return shared.PriorityUrgent
	case c.AtLeast(0.8):
		return shared.PriorityHigh
	case c.AtLeast(0.65):
		return shared.PriorityMedium
	default:
		return shared.PriorityLow
	}
}

// Rank сортирует результаты: приоритет, уверенность по убыванию, затем content id.
func Rank(items []Scored) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() > b.Priority.Rank()
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.ContentID < b.ContentID
	})
}
