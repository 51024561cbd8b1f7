// Package profile содержит доменную модель профиля черт (trait profile) ученика.
// Профиль - версионированная запись "replace-on-write": каждое обновление
// полностью заменяет предыдущие значения, история не хранится.
package profile

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alem-hub/adaptive-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TRAITS
// ══════════════════════════════════════════════════════════════════════════════

// Trait - имя измерения профиля.
type Trait string

const (
	TraitHyperfocusIntensity  Trait = "hyperfocus_intensity"
	TraitAttentionFlexibility Trait = "attention_flexibility"
	TraitSensoryProcessing    Trait = "sensory_processing"
	TraitExecutiveFunction    Trait = "executive_function"
	TraitEmotionalRegulation  Trait = "emotional_regulation"
	TraitStructurePreference  Trait = "structure_preference"
)

const (
	// MinScore и MaxScore - допустимый диапазон значения черты.
	MinScore = 0
	MaxScore = 100
)

// allTraits - фиксированная схема профиля, в порядке хранения.
var allTraits = []Trait{
	TraitHyperfocusIntensity,
	TraitAttentionFlexibility,
	TraitSensoryProcessing,
	TraitExecutiveFunction,
	TraitEmotionalRegulation,
	TraitStructurePreference,
}

// AllTraits возвращает копию фиксированного набора черт.
func AllTraits() []Trait {
	out := make([]Trait, len(allTraits))
	copy(out, allTraits)
	return out
}

// IsKnown проверяет, что черта входит в схему.
func (t Trait) IsKnown() bool {
	for _, k := range allTraits {
		if k == t {
			return true
		}
	}
	return false
}

// ParseTraits разбирает список измерений (например, из конфигурации или CLI).
// Пустой список возвращается как nil; дубликаты удаляются.
func ParseTraits(names []string) ([]Trait, error) {
	if len(names) == 0 {
		return nil, nil
	}
	seen := make(map[Trait]bool, len(names))
	out := make([]Trait, 0, len(names))
	for _, n := range names {
		t := Trait(strings.ToLower(strings.TrimSpace(n)))
		if t == "" {
			continue
		}
		if !t.IsKnown() {
			return nil, shared.NewValidationError("profile", "ParseTraits", "dimensions",
				fmt.Sprintf("unknown trait %q", n))
		}
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out, nil
}

// TraitVector - значения всех черт профиля.
type TraitVector map[Trait]int

// Validate проверяет, что заданы ровно все черты схемы и каждая в [0,100].
// Ошибка называет первое (в порядке схемы) некорректное поле.
func (v TraitVector) Validate() error {
	for _, t := range allTraits {
		score, ok := v[t]
		if !ok {
			return shared.NewValidationError("profile", "Validate", string(t), "score is required")
		}
		if score < MinScore || score > MaxScore {
			return shared.NewValidationError("profile", "Validate", string(t),
				fmt.Sprintf("score %d out of range [%d, %d]", score, MinScore, MaxScore))
		}
	}
	if len(v) != len(allTraits) {
		unknown := make([]string, 0)
		for t := range v {
			if !t.IsKnown() {
				unknown = append(unknown, string(t))
			}
		}
		sort.Strings(unknown)
		if len(unknown) > 0 {
			return shared.NewValidationError("profile", "Validate", unknown[0], "unknown trait")
		}
	}
	return nil
}

// Clone возвращает независимую копию вектора.
func (v TraitVector) Clone() TraitVector {
	out := make(TraitVector, len(v))
	for k, s := range v {
		out[k] = s
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// CATEGORICAL PREFERENCES
// ══════════════════════════════════════════════════════════════════════════════

// Rhythm - естественный ритм ученика.
type Rhythm string

const (
	RhythmUnspecified Rhythm = ""
	RhythmMorning     Rhythm = "morning"
	RhythmAfternoon   Rhythm = "afternoon"
	RhythmEvening     Rhythm = "evening"
	RhythmNight       Rhythm = "night"
	RhythmVariable    Rhythm = "variable"
)

// IsValid проверяет корректность ритма (пустое значение допустимо).
func (r Rhythm) IsValid() bool {
	switch r {
	case RhythmUnspecified, RhythmMorning, RhythmAfternoon, RhythmEvening, RhythmNight, RhythmVariable:
		return true
	default:
		return false
	}
}

// LearningStyle - основной стиль обучения.
type LearningStyle string

const (
	StyleUnspecified    LearningStyle = ""
	StyleVisual         LearningStyle = "visual"
	StyleAuditory       LearningStyle = "auditory"
	StyleKinesthetic    LearningStyle = "kinesthetic"
	StyleReadingWriting LearningStyle = "reading_writing"
	StyleMultimodal     LearningStyle = "multimodal"
)

// IsValid проверяет корректность стиля (пустое значение допустимо).
func (s LearningStyle) IsValid() bool {
	switch s {
	case StyleUnspecified, StyleVisual, StyleAuditory, StyleKinesthetic, StyleReadingWriting, StyleMultimodal:
		return true
	default:
		return false
	}
}

const (
	MinSessionMinutes = 5
	MaxSessionMinutes = 240
)

// Preferences - категориальные предпочтения профиля.
type Preferences struct {
	NaturalRhythm     Rhythm
	LearningStyle     LearningStyle
	SessionMinMinutes int // 0 и 0 - диапазон не задан
	SessionMaxMinutes int
}

// Validate проверяет предпочтения.
func (p Preferences) Validate() error {
	if !p.NaturalRhythm.IsValid() {
		return shared.NewValidationError("profile", "Validate", "natural_rhythm", "unknown rhythm")
	}
	if !p.LearningStyle.IsValid() {
		return shared.NewValidationError("profile", "Validate", "primary_learning_style", "unknown learning style")
	}
	if p.SessionMinMinutes == 0 && p.SessionMaxMinutes == 0 {
		return nil
	}
	if p.SessionMinMinutes < MinSessionMinutes || p.SessionMinMinutes > MaxSessionMinutes {
		return shared.NewValidationError("profile", "Validate", "session_min_minutes",
			fmt.Sprintf("must be within [%d, %d]", MinSessionMinutes, MaxSessionMinutes))
	}
	if p.SessionMaxMinutes < p.SessionMinMinutes || p.SessionMaxMinutes > MaxSessionMinutes {
		return shared.NewValidationError("profile", "Validate", "session_max_minutes",
			fmt.Sprintf("must be within [session_min_minutes, %d]", MaxSessionMinutes))
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Profile - профиль черт ученика. Ровно один на пользователя.
type Profile struct {
	UserID      string
	Traits      TraitVector
	Preferences Preferences

	// Version увеличивается при каждом успешном upsert (аудит), история не хранится.
	Version   int
	UpdatedAt time.Time
}

// NewProfile создаёт профиль с проверкой всех полей.
// Version выставляет хранилище при сохранении.
func NewProfile(userID string, traits TraitVector, prefs Preferences, now time.Time) (*Profile, error) {
	id, err := shared.RequireUserID("profile", "NewProfile", userID)
	if err != nil {
		return nil, err
	}
	if err := traits.Validate(); err != nil {
		return nil, err
	}
	if err := prefs.Validate(); err != nil {
		return nil, err
	}
	return &Profile{
		UserID:      id,
		Traits:      traits.Clone(),
		Preferences: prefs,
		UpdatedAt:   now.UTC(),
	}, nil
}

// Score возвращает значение черты и признак её наличия.
func (p *Profile) Score(t Trait) (int, bool) {
	s, ok := p.Traits[t]
	return s, ok
}
