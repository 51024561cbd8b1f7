package insight

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alem-hub/adaptive-engine/internal/domain/shared"
	"github.com/alem-hub/adaptive-engine/internal/domain/similarity"
)

// ══════════════════════════════════════════════════════════════════════════════
// RULE-BASED SIGNAL PRODUCER
// Превращает поведенческие агрегаты и результаты подбора похожих
// учеников в сигналы. Пороги фиксированы и покрыты тестами.
// ══════════════════════════════════════════════════════════════════════════════

// Rules - пороги продюсера сигналов.
type Rules struct {
	// MinSessions - минимум сессий, чтобы делать выводы о паттернах.
	MinSessions int

	// FullSampleSessions - при таком числе сессий выборка считается полной.
	FullSampleSessions int

	// HyperfocusShare - доля сессий в гиперфокусе, начиная с которой есть паттерн.
	HyperfocusShare float64

	// LowEngagement и LowComprehension - ниже этих средних фиксируется проблема.
	LowEngagement    float64
	LowComprehension float64

	// MinPeers - сколько похожих учеников нужно для peer_strategy.
	MinPeers int

	// MaxEvidencePeers - сколько peer id попадает в evidence.
	MaxEvidencePeers int
}

// DefaultRules возвращает пороги по умолчанию.
func DefaultRules() Rules {
	return Rules{
		MinSessions:        3,
		FullSampleSessions: 10,
		HyperfocusShare:    0.4,
		LowEngagement:      0.4,
		LowComprehension:   0.5,
		MinPeers:           3,
		MaxEvidencePeers:   5,
	}
}

// Producer строит сигналы по правилам.
type Producer struct {
	rules Rules
}

// NewProducer создаёт продюсер. Нулевые правила заменяются значениями по умолчанию.
func NewProducer(rules Rules) *Producer {
	if rules == (Rules{}) {
		rules = DefaultRules()
	}
	return &Producer{rules: rules}
}

// Produce возвращает сигналы в детерминированном порядке.
// Уверенность может оказаться ниже порога генератора: отсев - его задача.
func (p *Producer) Produce(agg Aggregates, peers similarity.Result) []Signal {
	var out []Signal
	r := p.rules
	evidence := fmt.Sprintf("aggregates:%dd:sessions=%d", agg.WindowDays, agg.SessionCount)

	// Барьеры доступности не зависят от объёма выборки.
	seen := make(map[string]bool, len(agg.BarrierFlags))
	flags := make([]string, 0, len(agg.BarrierFlags))
	for _, f := range agg.BarrierFlags {
		f = strings.TrimSpace(f)
		if f != "" && !seen[f] {
			seen[f] = true
			flags = append(flags, f)
		}
	}
	sort.Strings(flags)
	for _, f := range flags {
		out = append(out, Signal{
			Type:       TypeAccessibilityBarrier,
			Title:      "Accessibility barrier: " + f,
			Evidence:   "barrier:" + f,
			Confidence: 0.8,
			Priority:   shared.PriorityUrgent,
		})
	}

	if agg.SessionCount >= r.MinSessions {
		sample := float64(agg.SessionCount) / float64(r.FullSampleSessions)
		if sample > 1 {
			sample = 1
		}

		if agg.HyperfocusShare >= r.HyperfocusShare {
			out = append(out, Signal{
				Type:       TypeHyperfocusPattern,
				Title:      "Long focused sessions detected",
				Evidence:   evidence,
				Confidence: shared.ClampConfidence(0.4 + 0.6*agg.HyperfocusShare*sample).Float64(),
				Priority:   shared.PriorityMedium,
			})
		}

		if agg.AvgEngagement < r.LowEngagement {
			out = append(out, Signal{
				Type:       TypeEngagementDrop,
				Title:      "Engagement has dropped",
				Evidence:   evidence,
				Confidence: shared.ClampConfidence(0.5 + (r.LowEngagement-agg.AvgEngagement)*1.25*sample).Float64(),
				Priority:   shared.PriorityHigh,
			})
		}

		if agg.AvgComprehension < r.LowComprehension {
			out = append(out, Signal{
				Type:       TypeComprehensionGap,
				Title:      "Material may need another format",
				Evidence:   evidence,
				Confidence: shared.ClampConfidence(0.5 + (r.LowComprehension-agg.AvgComprehension)*sample).Float64(),
				Priority:   shared.PriorityMedium,
			})
		}
	}

	if len(peers) >= r.MinPeers {
		ids := peers.UserIDs()
		if len(ids) > r.MaxEvidencePeers {
			ids = ids[:r.MaxEvidencePeers]
		}
		out = append(out, Signal{
			Type:       TypePeerStrategy,
			Title:      "Learners with a similar profile",
			Evidence:   "peers:" + strings.Join(ids, ","),
			Confidence: shared.ClampConfidence(0.5 + 0.05*float64(len(peers))).Float64() * 0.9,
			Priority:   shared.PriorityLow,
		})
	}

	return out
}
