package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/adaptive-engine/internal/domain/insight"
	"github.com/alem-hub/adaptive-engine/internal/domain/lifecycle"
	"github.com/alem-hub/adaptive-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// INSIGHT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// InsightRepository implements insight.Repository for PostgreSQL.
type InsightRepository struct {
	conn *Connection
}

var _ insight.Repository = (*InsightRepository)(nil)

// NewInsightRepository creates a new InsightRepository.
func NewInsightRepository(conn *Connection) *InsightRepository {
	return &InsightRepository{conn: conn}
}

const insightColumns = `id, user_id, type, title, evidence, confidence, priority,
	state, created_at, presented_at, response, responded_at, expires_at`

// cleanupPredicate mirrors lifecycle.Cutoffs.Eligible; $1 is the rejected
// cutoff and $2 the ignored cutoff.
const cleanupPredicate = `(
	(response = 'rejected' AND responded_at < $1)
	OR (response = 'ignored' AND responded_at < $2)
	OR (state = 'presented' AND response = '' AND presented_at < $2)
	OR (state = 'expired' AND response = '' AND expires_at < $2)
)`

// InsertIfNoRecent takes a transaction-scoped advisory lock on the dedup key,
// so concurrent writers of the same (user, type, title) queue up even across
// processes.
func (r *InsightRepository) InsertIfNoRecent(ctx context.Context, in *insight.Insight, windowStart time.Time) (bool, error) {
	inserted := false
	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, in.DedupKey()); err != nil {
			return err
		}

		var exists bool
		err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM insights
				WHERE user_id = $1 AND type = $2 AND title = $3 AND created_at >= $4
			)`, in.UserID, string(in.Type), in.Title, windowStart,
		).Scan(&exists)
		if err != nil || exists {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO insights (`+insightColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			in.ID, in.UserID, string(in.Type), in.Title, in.Evidence,
			in.Confidence.Float64(), string(in.Priority),
			string(in.Status.State), in.Status.CreatedAt, in.Status.PresentedAt,
			string(in.Status.Response), in.Status.RespondedAt, in.Status.ExpiresAt,
		)
		if err != nil {
			return err
		}
		inserted = true
		return nil
	})
	if err != nil {
		return false, storageErr("insight.InsertIfNoRecent", err)
	}
	return inserted, nil
}

// Get returns an insight by id.
func (r *InsightRepository) Get(ctx context.Context, id uuid.UUID) (*insight.Insight, error) {
	in, err := scanInsight(r.conn.QueryRow(ctx, `SELECT `+insightColumns+` FROM insights WHERE id = $1`, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrInsightNotFound
		}
		return nil, storageErr("insight.Get", err)
	}
	return in, nil
}

// ListByUser returns a user's insights, newest first. limit <= 0 means all.
func (r *InsightRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*insight.Insight, error) {
	query := `SELECT ` + insightColumns + ` FROM insights WHERE user_id = $1 ORDER BY created_at DESC, id`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return r.list(ctx, "insight.ListByUser", query, args...)
}

// Transition locks the row, applies fn and writes the result back.
func (r *InsightRepository) Transition(ctx context.Context, id uuid.UUID, fn lifecycle.TransitionFunc) (lifecycle.Outcome, error) {
	var out lifecycle.Outcome
	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		in, err := scanInsight(tx.QueryRow(ctx, `SELECT `+insightColumns+` FROM insights WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if IsNoRows(err) {
				return shared.ErrInsightNotFound
			}
			return err
		}

		next, applied, err := fn(in.Status)
		out = lifecycle.Outcome{Status: in.Status}
		if err != nil || !applied {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE insights
			SET state = $2, presented_at = $3, response = $4, responded_at = $5
			WHERE id = $1`,
			id, string(next.State), next.PresentedAt, string(next.Response), next.RespondedAt,
		)
		if err != nil {
			return err
		}
		out = lifecycle.Outcome{Status: next, Applied: true}
		return nil
	})
	if err != nil {
		return out, storageErr("insight.Transition", err)
	}
	return out, nil
}

// ExpireDue expires up to limit open insights whose deadline passed.
func (r *InsightRepository) ExpireDue(ctx context.Context, now time.Time, limit int) (int, error) {
	tag, err := r.conn.Exec(ctx, `
		UPDATE insights SET state = 'expired'
		WHERE id IN (
			SELECT id FROM insights
			WHERE state IN ('generated', 'presented') AND expires_at IS NOT NULL AND expires_at <= $1
			ORDER BY expires_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)`, now, limit)
	if err != nil {
		return 0, storageErr("insight.ExpireDue", err)
	}
	return int(tag.RowsAffected()), nil
}

// ListCleanupCandidates returns eligible insights with id > after, ordered by id.
func (r *InsightRepository) ListCleanupCandidates(ctx context.Context, c lifecycle.Cutoffs, after uuid.UUID, limit int) ([]*insight.Insight, error) {
	query := `SELECT ` + insightColumns + ` FROM insights
		WHERE ` + cleanupPredicate + ` AND id > $3
		ORDER BY id
		LIMIT $4`
	return r.list(ctx, "insight.ListCleanupCandidates", query, c.RejectedBefore, c.IgnoredBefore, after, limit)
}

// DeleteIfEligible deletes the insight only if it still matches the cutoffs.
// A recorded response is added to insight_response_tally in the same transaction.
func (r *InsightRepository) DeleteIfEligible(ctx context.Context, id uuid.UUID, c lifecycle.Cutoffs) (bool, error) {
	deleted := false
	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		var userID, typ, response string
		err := tx.QueryRow(ctx,
			`DELETE FROM insights WHERE `+cleanupPredicate+` AND id = $3 RETURNING user_id, type, response`,
			c.RejectedBefore, c.IgnoredBefore, id,
		).Scan(&userID, &typ, &response)
		if err != nil {
			if IsNoRows(err) {
				return nil
			}
			return err
		}
		deleted = true
		if response == "" {
			return nil
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO insight_response_tally (user_id, type, accepted, rejected, ignored)
			VALUES ($1, $2,
				CASE WHEN $3::text = 'accepted' THEN 1 ELSE 0 END,
				CASE WHEN $3::text = 'rejected' THEN 1 ELSE 0 END,
				CASE WHEN $3::text = 'ignored' THEN 1 ELSE 0 END)
			ON CONFLICT (user_id, type) DO UPDATE SET
				accepted = insight_response_tally.accepted + EXCLUDED.accepted,
				rejected = insight_response_tally.rejected + EXCLUDED.rejected,
				ignored = insight_response_tally.ignored + EXCLUDED.ignored`,
			userID, typ, response,
		)
		return err
	})
	if err != nil {
		return false, storageErr("insight.DeleteIfEligible", err)
	}
	return deleted, nil
}

func (r *InsightRepository) list(ctx context.Context, op, query string, args ...any) ([]*insight.Insight, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	out := make([]*insight.Insight, 0)
	for rows.Next() {
		in, err := scanInsight(rows)
		if err != nil {
			return nil, storageErr(op, err)
		}
		out = append(out, in)
	}
	return out, storageErr(op, rows.Err())
}

func scanInsight(row pgx.Row) (*insight.Insight, error) {
	var (
		in                             insight.Insight
		typ, priority, state, response string
		confidence                     float64
	)
	err := row.Scan(
		&in.ID, &in.UserID, &typ, &in.Title, &in.Evidence, &confidence, &priority,
		&state, &in.Status.CreatedAt, &in.Status.PresentedAt, &response, &in.Status.RespondedAt, &in.Status.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	in.Type = insight.Type(typ)
	in.Confidence = shared.Confidence(confidence)
	in.Priority = shared.Priority(priority)
	in.Status.State = lifecycle.State(state)
	in.Status.Response = lifecycle.Response(response)
	return &in, nil
}
