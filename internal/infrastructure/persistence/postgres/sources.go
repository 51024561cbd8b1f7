package postgres

import (
	"context"

	"github.com/alem-hub/adaptive-engine/internal/domain/insight"
	"github.com/alem-hub/adaptive-engine/internal/domain/recommendation"
)

// ══════════════════════════════════════════════════════════════════════════════
// COLLABORATOR SOURCES
// Reads tables owned by analytics and the content catalog.
// ══════════════════════════════════════════════════════════════════════════════

// Sources implements the read-only collaborator ports.
type Sources struct {
	conn *Connection
}

var (
	_ recommendation.ContentCatalog    = (*Sources)(nil)
	_ recommendation.InteractionSource = (*Sources)(nil)
	_ recommendation.NeedSource        = (*Sources)(nil)
	_ insight.BehaviorSource           = (*Sources)(nil)
)

// NewSources creates a new Sources adapter.
func NewSources(conn *Connection) *Sources {
	return &Sources{conn: conn}
}

// Contents returns catalog entries for the known ids.
func (s *Sources) Contents(ctx context.Context, ids []string) (map[string]recommendation.Content, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT id, title, accessibility_tags FROM content_items WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, storageErr("sources.Contents", err)
	}
	defer rows.Close()

	out := make(map[string]recommendation.Content, len(ids))
	for rows.Next() {
		var c recommendation.Content
		if err := rows.Scan(&c.ID, &c.Title, &c.AccessibilityTags); err != nil {
			return nil, storageErr("sources.Contents", err)
		}
		out[c.ID] = c
	}
	return out, storageErr("sources.Contents", rows.Err())
}

// Interactions returns aggregated interaction history per content id.
func (s *Sources) Interactions(ctx context.Context, studentID string, contentIDs []string) (map[string]recommendation.InteractionStats, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT content_id, interaction_count, engagement, completion, helpfulness
		FROM content_interactions
		WHERE student_id = $1 AND content_id = ANY($2) AND interaction_count > 0`,
		studentID, contentIDs)
	if err != nil {
		return nil, storageErr("sources.Interactions", err)
	}
	defer rows.Close()

	out := make(map[string]recommendation.InteractionStats)
	for rows.Next() {
		var (
			id string
			st recommendation.InteractionStats
		)
		if err := rows.Scan(&id, &st.Count, &st.Engagement, &st.Completion, &st.Helpfulness); err != nil {
			return nil, storageErr("sources.Interactions", err)
		}
		out[id] = st
	}
	return out, storageErr("sources.Interactions", rows.Err())
}

// UnmetNeeds returns the needs flagged by analytics for the student.
func (s *Sources) UnmetNeeds(ctx context.Context, studentID string) ([]string, error) {
	var needs []string
	err := s.conn.QueryRow(ctx,
		`SELECT unmet_needs FROM learner_aggregates WHERE user_id = $1`, studentID,
	).Scan(&needs)
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, storageErr("sources.UnmetNeeds", err)
	}
	return needs, nil
}

// Aggregates returns behavioral aggregates; a missing row yields zero values.
func (s *Sources) Aggregates(ctx context.Context, userID string) (insight.Aggregates, error) {
	agg := insight.Aggregates{UserID: userID}
	err := s.conn.QueryRow(ctx, `
		SELECT window_days, session_count, avg_engagement, avg_comprehension, hyperfocus_share, barrier_flags
		FROM learner_aggregates WHERE user_id = $1`, userID,
	).Scan(&agg.WindowDays, &agg.SessionCount, &agg.AvgEngagement, &agg.AvgComprehension, &agg.HyperfocusShare, &agg.BarrierFlags)
	if err != nil {
		if IsNoRows(err) {
			return insight.Aggregates{UserID: userID}, nil
		}
		return insight.Aggregates{}, storageErr("sources.Aggregates", err)
	}
	return agg, nil
}
