package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/adaptive-engine/internal/domain/lifecycle"
	"github.com/alem-hub/adaptive-engine/internal/domain/recommendation"
	"github.com/alem-hub/adaptive-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOMMENDATION REPOSITORY
// The partial unique index uq_recommendations_open guarantees a single open
// row per (student, content, type); ReplaceActive retracts before inserting.
// ══════════════════════════════════════════════════════════════════════════════

// RecommendationRepository implements recommendation.Repository for PostgreSQL.
type RecommendationRepository struct {
	conn *Connection
}

var _ recommendation.Repository = (*RecommendationRepository)(nil)

// NewRecommendationRepository creates a new RecommendationRepository.
func NewRecommendationRepository(conn *Connection) *RecommendationRepository {
	return &RecommendationRepository{conn: conn}
}

const recommendationColumns = `id, student_id, content_id, type, confidence, priority,
	state, created_at, presented_at, response, responded_at, expires_at,
	retracted_at, rating, algorithm_version`

const priorityRank = `CASE priority WHEN 'urgent' THEN 3 WHEN 'high' THEN 2 WHEN 'medium' THEN 1 ELSE 0 END`

// ReplaceActive retracts open rows with the same key and inserts r.
func (rr *RecommendationRepository) ReplaceActive(ctx context.Context, r *recommendation.Recommendation, now time.Time) (int, error) {
	retracted := 0
	err := rr.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE recommendations SET state = 'retracted', retracted_at = $4
			WHERE student_id = $1 AND content_id = $2 AND type = $3
			  AND state IN ('generated', 'presented')`,
			r.StudentID, r.ContentID, string(r.Type), now,
		)
		if err != nil {
			return err
		}
		retracted = int(tag.RowsAffected())

		_, err = tx.Exec(ctx, `
			INSERT INTO recommendations (`+recommendationColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			r.ID, r.StudentID, r.ContentID, string(r.Type), r.Confidence.Float64(), string(r.Priority),
			string(r.Status.State), r.Status.CreatedAt, r.Status.PresentedAt,
			string(r.Status.Response), r.Status.RespondedAt, r.Status.ExpiresAt,
			r.RetractedAt, r.Rating, r.AlgorithmVersion,
		)
		return err
	})
	if err != nil {
		if IsUniqueViolation(err) {
			return 0, shared.ErrDuplicateActive
		}
		return 0, storageErr("recommendation.ReplaceActive", err)
	}
	return retracted, nil
}

// Get returns a recommendation by id.
func (rr *RecommendationRepository) Get(ctx context.Context, id uuid.UUID) (*recommendation.Recommendation, error) {
	r, err := scanRecommendation(rr.conn.QueryRow(ctx,
		`SELECT `+recommendationColumns+` FROM recommendations WHERE id = $1`, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrRecommendationNotFound
		}
		return nil, storageErr("recommendation.Get", err)
	}
	return r, nil
}

// ListActive returns open, unexpired recommendations ordered for display.
func (rr *RecommendationRepository) ListActive(ctx context.Context, studentID string, now time.Time, limit int) ([]*recommendation.Recommendation, error) {
	query := `SELECT ` + recommendationColumns + ` FROM recommendations
		WHERE student_id = $1 AND state IN ('generated', 'presented') AND expires_at > $2
		ORDER BY ` + priorityRank + ` DESC, confidence DESC, content_id`
	args := []any{studentID, now}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := rr.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr("recommendation.ListActive", err)
	}
	defer rows.Close()

	out := make([]*recommendation.Recommendation, 0)
	for rows.Next() {
		r, err := scanRecommendation(rows)
		if err != nil {
			return nil, storageErr("recommendation.ListActive", err)
		}
		out = append(out, r)
	}
	return out, storageErr("recommendation.ListActive", rows.Err())
}

// Transition locks the row, applies fn and stores rating with a first response.
func (rr *RecommendationRepository) Transition(ctx context.Context, id uuid.UUID, fn lifecycle.TransitionFunc, rating *int) (lifecycle.Outcome, error) {
	var out lifecycle.Outcome
	err := rr.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		r, err := scanRecommendation(tx.QueryRow(ctx,
			`SELECT `+recommendationColumns+` FROM recommendations WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if IsNoRows(err) {
				return shared.ErrRecommendationNotFound
			}
			return err
		}

		next, applied, err := fn(r.Status)
		out = lifecycle.Outcome{Status: r.Status}
		if err != nil || !applied {
			return err
		}

		stored := r.Rating
		if rating != nil && next.HasResponse() && !r.Status.HasResponse() {
			stored = rating
		}

		_, err = tx.Exec(ctx, `
			UPDATE recommendations
			SET state = $2, presented_at = $3, response = $4, responded_at = $5, rating = $6
			WHERE id = $1`,
			id, string(next.State), next.PresentedAt, string(next.Response), next.RespondedAt, stored,
		)
		if err != nil {
			return err
		}
		out = lifecycle.Outcome{Status: next, Applied: true}
		return nil
	})
	if err != nil {
		return out, storageErr("recommendation.Transition", err)
	}
	return out, nil
}

// ExpireDue expires up to limit open recommendations past their TTL.
func (rr *RecommendationRepository) ExpireDue(ctx context.Context, now time.Time, limit int) (int, error) {
	tag, err := rr.conn.Exec(ctx, `
		UPDATE recommendations SET state = 'expired'
		WHERE id IN (
			SELECT id FROM recommendations
			WHERE state IN ('generated', 'presented') AND expires_at <= $1
			ORDER BY expires_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)`, now, limit)
	if err != nil {
		return 0, storageErr("recommendation.ExpireDue", err)
	}
	return int(tag.RowsAffected()), nil
}

// LastPresented returns the latest presentation time per content id.
func (rr *RecommendationRepository) LastPresented(ctx context.Context, studentID string, contentIDs []string) (map[string]time.Time, error) {
	rows, err := rr.conn.Query(ctx, `
		SELECT content_id, MAX(presented_at)
		FROM recommendations
		WHERE student_id = $1 AND content_id = ANY($2) AND presented_at IS NOT NULL
		GROUP BY content_id`, studentID, contentIDs)
	if err != nil {
		return nil, storageErr("recommendation.LastPresented", err)
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var (
			id string
			at time.Time
		)
		if err := rows.Scan(&id, &at); err != nil {
			return nil, storageErr("recommendation.LastPresented", err)
		}
		out[id] = at.UTC()
	}
	return out, storageErr("recommendation.LastPresented", rows.Err())
}

func scanRecommendation(row pgx.Row) (*recommendation.Recommendation, error) {
	var (
		r                              recommendation.Recommendation
		typ, priority, state, response string
		confidence                     float64
		rating                         *int16
	)
	err := row.Scan(
		&r.ID, &r.StudentID, &r.ContentID, &typ, &confidence, &priority,
		&state, &r.Status.CreatedAt, &r.Status.PresentedAt, &response, &r.Status.RespondedAt, &r.Status.ExpiresAt,
		&r.RetractedAt, &rating, &r.AlgorithmVersion,
	)
	if err != nil {
		return nil, err
	}
	r.Type = recommendation.Type(typ)
	r.Confidence = shared.Confidence(confidence)
	r.Priority = shared.Priority(priority)
	r.Status.State = lifecycle.State(state)
	r.Status.Response = lifecycle.Response(response)
	if rating != nil {
		v := int(*rating)
		r.Rating = &v
	}
	return &r, nil
}
