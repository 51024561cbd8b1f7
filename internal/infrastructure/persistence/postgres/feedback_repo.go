package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/adaptive-engine/internal/domain/feedback"
)

// ══════════════════════════════════════════════════════════════════════════════
// FEEDBACK REPOSITORY
// Read-only aggregation over insights and recommendations. Every query runs
// in a read-only transaction.
// ══════════════════════════════════════════════════════════════════════════════

// FeedbackRepository implements feedback.Repository for PostgreSQL.
type FeedbackRepository struct {
	conn *Connection
}

var _ feedback.Repository = (*FeedbackRepository)(nil)

// NewFeedbackRepository creates a new FeedbackRepository.
func NewFeedbackRepository(conn *Connection) *FeedbackRepository {
	return &FeedbackRepository{conn: conn}
}

const responseCounts = `
	COUNT(*) FILTER (WHERE response = 'accepted'),
	COUNT(*) FILTER (WHERE response = 'rejected'),
	COUNT(*) FILTER (WHERE response = 'ignored')`

// insightCountsQuery adds the tally of insights already removed by cleanup.
const insightCountsQuery = `
	SELECT COALESCE(SUM(accepted), 0)::bigint, COALESCE(SUM(rejected), 0)::bigint, COALESCE(SUM(ignored), 0)::bigint
	FROM (
		SELECT ` + responseCounts + `
		FROM insights
		WHERE ($1 = '' OR user_id = $1) AND ($2 = '' OR type = $2)
		UNION ALL
		SELECT accepted, rejected, ignored
		FROM insight_response_tally
		WHERE ($1 = '' OR user_id = $1) AND ($2 = '' OR type = $2)
	) AS counts(accepted, rejected, ignored)`

const recommendationCountsQuery = `SELECT ` + responseCounts + ` FROM recommendations
	WHERE ($1 = '' OR student_id = $1) AND ($2 = '' OR type = $2)`

// ResponseCounts counts recorded responses matching the filter.
func (f *FeedbackRepository) ResponseCounts(ctx context.Context, flt feedback.Filter) (feedback.Counts, error) {
	query := insightCountsQuery
	if flt.Subject == feedback.SubjectRecommendations {
		query = recommendationCountsQuery
	}

	var c feedback.Counts
	err := f.conn.WithTx(ctx, ReadOnlyTxOptions(), func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, query, flt.UserID, flt.Type).Scan(&c.Accepted, &c.Rejected, &c.Ignored)
	})
	if err != nil {
		return feedback.Counts{}, storageErr("feedback.ResponseCounts", err)
	}
	return c, nil
}

const versionStatsQuery = `
	SELECT algorithm_version,
		COUNT(*),
		COUNT(rating),
		COALESCE(SUM(rating), 0),` + responseCounts + `
	FROM recommendations`

// VersionStats aggregates one algorithm version.
func (f *FeedbackRepository) VersionStats(ctx context.Context, version string) (feedback.VersionStats, error) {
	all, err := f.query(ctx, versionStatsQuery+` WHERE algorithm_version = $1 GROUP BY algorithm_version`, version)
	if err != nil || len(all) == 0 {
		return feedback.VersionStats{AlgorithmVersion: version}, err
	}
	return all[0], nil
}

// ListVersionStats aggregates every algorithm version, ordered by name.
func (f *FeedbackRepository) ListVersionStats(ctx context.Context) ([]feedback.VersionStats, error) {
	return f.query(ctx, versionStatsQuery+` GROUP BY algorithm_version ORDER BY algorithm_version`)
}

func (f *FeedbackRepository) query(ctx context.Context, query string, args ...any) ([]feedback.VersionStats, error) {
	out := make([]feedback.VersionStats, 0)
	err := f.conn.WithTx(ctx, ReadOnlyTxOptions(), func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var s feedback.VersionStats
			if err := rows.Scan(
				&s.AlgorithmVersion, &s.Recommendations, &s.Rated, &s.RatingSum,
				&s.Responses.Accepted, &s.Responses.Rejected, &s.Responses.Ignored,
			); err != nil {
				return err
			}
			out = append(out, s)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, storageErr("feedback.VersionStats", err)
	}
	return out, nil
}
