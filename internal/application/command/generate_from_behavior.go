package command

import (
	"context"
	"fmt"

	"github.com/alem-hub/adaptive-engine/internal/domain/insight"
	"github.com/alem-hub/adaptive-engine/internal/domain/similarity"
)

// ══════════════════════════════════════════════════════════════════════════════
// GENERATE FROM BEHAVIOR
// Collects signals from behavioral aggregates and similar peers, then runs
// the regular insight admission. Used by the batch generation job.
// ══════════════════════════════════════════════════════════════════════════════

// PeerFinder returns similar peers with the configured defaults.
type PeerFinder interface {
	FindPeers(ctx context.Context, userID string) (similarity.Result, error)
}

// GenerateFromBehaviorHandler produces signals and admits them.
type GenerateFromBehaviorHandler struct {
	behavior  insight.BehaviorSource
	peers     PeerFinder
	producer  *insight.Producer
	generator *GenerateInsightsHandler
}

// NewGenerateFromBehaviorHandler creates a new GenerateFromBehaviorHandler.
func NewGenerateFromBehaviorHandler(
	behavior insight.BehaviorSource,
	peers PeerFinder,
	producer *insight.Producer,
	generator *GenerateInsightsHandler,
) *GenerateFromBehaviorHandler {
	return &GenerateFromBehaviorHandler{
		behavior:  behavior,
		peers:     peers,
		producer:  producer,
		generator: generator,
	}
}

// Handle generates insights for one user from collaborator data.
func (h *GenerateFromBehaviorHandler) Handle(ctx context.Context, userID string) (*GenerateInsightsResult, error) {
	agg, err := h.behavior.Aggregates(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("generate_from_behavior: aggregates: %w", err)
	}

	peers, err := h.peers.FindPeers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("generate_from_behavior: %w", err)
	}

	return h.generator.Handle(ctx, GenerateInsightsCommand{
		UserID:  userID,
		Signals: h.producer.Produce(agg, peers),
	})
}
