package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION SUPPORT
// ══════════════════════════════════════════════════════════════════════════════

// Migration represents a database migration.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator handles database migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a new migrator with embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: GetMigrations(),
		tableName:  "schema_migrations",
	}
}

// EnsureMigrationTable creates the migration tracking table if it doesn't exist.
func (m *Migrator) EnsureMigrationTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, m.tableName)

	if _, err := m.conn.Exec(ctx, query); err != nil {
		return storageErr("migrate", fmt.Errorf("failed to create migrations table: %w", err))
	}
	return nil
}

// GetAppliedMigrations returns all applied migrations.
func (m *Migrator) GetAppliedMigrations(ctx context.Context) (map[int]time.Time, error) {
	query := fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName)

	rows, err := m.conn.Query(ctx, query)
	if err != nil {
		return nil, storageErr("migrate", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt time.Time
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, storageErr("migrate", err)
		}
		applied[version] = appliedAt
	}

	return applied, storageErr("migrate", rows.Err())
}

// Migrate applies all pending migrations and returns how many were applied.
func (m *Migrator) Migrate(ctx context.Context) (int, error) {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return 0, err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, mig := range m.migrations {
		if _, isApplied := applied[mig.Version]; isApplied {
			continue
		}

		if mig.UpSQL == "" {
			return n, fmt.Errorf("%w: missing up SQL for migration %d", ErrMigrationFailed, mig.Version)
		}

		err := m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", mig.Version, err)
			}
			insertQuery := fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName)
			_, err := tx.Exec(ctx, insertQuery, mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return n, fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
		n++
	}

	return n, nil
}

// Rollback rolls back the last applied migration.
func (m *Migrator) Rollback(ctx context.Context) error {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	var lastVersion int
	for v := range applied {
		if v > lastVersion {
			lastVersion = v
		}
	}
	if lastVersion == 0 {
		return nil
	}

	var migration *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == lastVersion {
			migration = &m.migrations[i]
			break
		}
	}
	if migration == nil || migration.DownSQL == "" {
		return fmt.Errorf("%w: missing down SQL for migration %d", ErrMigrationFailed, lastVersion)
	}

	return m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, migration.DownSQL); err != nil {
			return fmt.Errorf("failed to rollback migration %d: %w", lastVersion, err)
		}
		deleteQuery := fmt.Sprintf("DELETE FROM %s WHERE version = $1", m.tableName)
		_, err := tx.Exec(ctx, deleteQuery, lastVersion)
		return err
	})
}

// Status returns the migration status.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return nil, err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]Migration, len(m.migrations))
	copy(result, m.migrations)

	for i := range result {
		if appliedAt, ok := applied[result[i].Version]; ok {
			result[i].IsApplied = true
			result[i].AppliedAt = appliedAt
		}
	}

	return result, nil
}

// GetMigrations returns all embedded migrations in version order.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_trait_profiles", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_insights_and_recommendations", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_collaborator_tables", UpSQL: migration003Up, DownSQL: migration003Down},
		{Version: 4, Name: "create_insight_response_tally", UpSQL: migration004Up, DownSQL: migration004Down},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: TRAIT PROFILES
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS trait_profiles (
    user_id TEXT PRIMARY KEY,
    hyperfocus_intensity SMALLINT NOT NULL,
    attention_flexibility SMALLINT NOT NULL,
    sensory_processing SMALLINT NOT NULL,
    executive_function SMALLINT NOT NULL,
    emotional_regulation SMALLINT NOT NULL,
    structure_preference SMALLINT NOT NULL,
    natural_rhythm TEXT NOT NULL DEFAULT '',
    primary_learning_style TEXT NOT NULL DEFAULT '',
    session_min_minutes INTEGER NOT NULL DEFAULT 0,
    session_max_minutes INTEGER NOT NULL DEFAULT 0,
    version INTEGER NOT NULL DEFAULT 1,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_hyperfocus CHECK (hyperfocus_intensity BETWEEN 0 AND 100),
    CONSTRAINT valid_flexibility CHECK (attention_flexibility BETWEEN 0 AND 100),
    CONSTRAINT valid_sensory CHECK (sensory_processing BETWEEN 0 AND 100),
    CONSTRAINT valid_executive CHECK (executive_function BETWEEN 0 AND 100),
    CONSTRAINT valid_emotional CHECK (emotional_regulation BETWEEN 0 AND 100),
    CONSTRAINT valid_structure CHECK (structure_preference BETWEEN 0 AND 100),
    CONSTRAINT valid_version CHECK (version >= 1)
);

CREATE INDEX IF NOT EXISTS idx_trait_profiles_hyperfocus ON trait_profiles(hyperfocus_intensity);
CREATE INDEX IF NOT EXISTS idx_trait_profiles_sensory ON trait_profiles(sensory_processing);
CREATE INDEX IF NOT EXISTS idx_trait_profiles_executive ON trait_profiles(executive_function);
`

const migration001Down = `
DROP TABLE IF EXISTS trait_profiles;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: INSIGHTS AND RECOMMENDATIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS insights (
    id UUID PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES trait_profiles(user_id) ON DELETE CASCADE,
    type TEXT NOT NULL,
    title TEXT NOT NULL,
    evidence TEXT NOT NULL DEFAULT '',
    confidence DOUBLE PRECISION NOT NULL,
    priority TEXT NOT NULL,
    state TEXT NOT NULL DEFAULT 'generated',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL,
    presented_at TIMESTAMP WITH TIME ZONE,
    response TEXT NOT NULL DEFAULT '',
    responded_at TIMESTAMP WITH TIME ZONE,
    expires_at TIMESTAMP WITH TIME ZONE,

    CONSTRAINT valid_insight_confidence CHECK (confidence >= 0 AND confidence <= 1),
    CONSTRAINT valid_insight_priority CHECK (priority IN ('low', 'medium', 'high', 'urgent')),
    CONSTRAINT valid_insight_state CHECK (state IN ('generated', 'presented', 'responded', 'expired')),
    CONSTRAINT valid_insight_response CHECK (response IN ('', 'accepted', 'rejected', 'ignored'))
);

CREATE INDEX IF NOT EXISTS idx_insights_dedup ON insights(user_id, type, title, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_insights_user_created ON insights(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_insights_due ON insights(expires_at) WHERE state IN ('generated', 'presented') AND expires_at IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_insights_responded ON insights(responded_at) WHERE response IN ('rejected', 'ignored');
CREATE INDEX IF NOT EXISTS idx_insights_unanswered ON insights(presented_at) WHERE state = 'presented' AND response = '';

CREATE TABLE IF NOT EXISTS recommendations (
    id UUID PRIMARY KEY,
    student_id TEXT NOT NULL REFERENCES trait_profiles(user_id) ON DELETE CASCADE,
    content_id TEXT NOT NULL,
    type TEXT NOT NULL,
    confidence DOUBLE PRECISION NOT NULL,
    priority TEXT NOT NULL,
    state TEXT NOT NULL DEFAULT 'generated',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL,
    presented_at TIMESTAMP WITH TIME ZONE,
    response TEXT NOT NULL DEFAULT '',
    responded_at TIMESTAMP WITH TIME ZONE,
    expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
    retracted_at TIMESTAMP WITH TIME ZONE,
    rating SMALLINT,
    algorithm_version TEXT NOT NULL,

    CONSTRAINT valid_rec_confidence CHECK (confidence >= 0 AND confidence <= 1),
    CONSTRAINT valid_rec_type CHECK (type IN ('accessibility_match', 'peer_success', 'fresh_content')),
    CONSTRAINT valid_rec_priority CHECK (priority IN ('low', 'medium', 'high', 'urgent')),
    CONSTRAINT valid_rec_state CHECK (state IN ('generated', 'presented', 'responded', 'expired', 'retracted')),
    CONSTRAINT valid_rec_response CHECK (response IN ('', 'accepted', 'rejected', 'ignored')),
    CONSTRAINT valid_rec_rating CHECK (rating IS NULL OR rating BETWEEN 1 AND 5)
);

-- At most one open recommendation per (student, content, reason).
CREATE UNIQUE INDEX IF NOT EXISTS uq_recommendations_open
    ON recommendations(student_id, content_id, type)
    WHERE state IN ('generated', 'presented');

CREATE INDEX IF NOT EXISTS idx_recommendations_due ON recommendations(expires_at) WHERE state IN ('generated', 'presented');
CREATE INDEX IF NOT EXISTS idx_recommendations_presented ON recommendations(student_id, content_id, presented_at DESC) WHERE presented_at IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_recommendations_version ON recommendations(algorithm_version);
`

const migration002Down = `
DROP TABLE IF EXISTS recommendations;
DROP TABLE IF EXISTS insights;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: COLLABORATOR TABLES
// Owned by analytics and the content catalog; the engine only reads them.
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS learner_aggregates (
    user_id TEXT PRIMARY KEY,
    window_days INTEGER NOT NULL DEFAULT 14,
    session_count INTEGER NOT NULL DEFAULT 0,
    avg_engagement DOUBLE PRECISION NOT NULL DEFAULT 0,
    avg_comprehension DOUBLE PRECISION NOT NULL DEFAULT 0,
    hyperfocus_share DOUBLE PRECISION NOT NULL DEFAULT 0,
    barrier_flags TEXT[] NOT NULL DEFAULT '{}',
    unmet_needs TEXT[] NOT NULL DEFAULT '{}',
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS content_items (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    accessibility_tags TEXT[] NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS content_interactions (
    student_id TEXT NOT NULL,
    content_id TEXT NOT NULL,
    interaction_count INTEGER NOT NULL DEFAULT 0,
    engagement DOUBLE PRECISION NOT NULL DEFAULT 0,
    completion DOUBLE PRECISION NOT NULL DEFAULT 0,
    helpfulness DOUBLE PRECISION NOT NULL DEFAULT 0,

    PRIMARY KEY (student_id, content_id)
);
`

const migration003Down = `
DROP TABLE IF EXISTS content_interactions;
DROP TABLE IF EXISTS content_items;
DROP TABLE IF EXISTS learner_aggregates;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: INSIGHT RESPONSE TALLY
// Responses of insights deleted by cleanup, so acceptance rates stay stable.
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
CREATE TABLE IF NOT EXISTS insight_response_tally (
    user_id TEXT NOT NULL,
    type TEXT NOT NULL,
    accepted BIGINT NOT NULL DEFAULT 0,
    rejected BIGINT NOT NULL DEFAULT 0,
    ignored BIGINT NOT NULL DEFAULT 0,

    PRIMARY KEY (user_id, type)
);

CREATE INDEX IF NOT EXISTS idx_insights_expired_unanswered ON insights(expires_at) WHERE state = 'expired' AND response = '';
`

const migration004Down = `
DROP INDEX IF EXISTS idx_insights_expired_unanswered;
DROP TABLE IF EXISTS insight_response_tally;
`
