package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/adaptive-engine/internal/domain/profile"
	"github.com/alem-hub/adaptive-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TRAIT PROFILE REPOSITORY
// Each trait is its own SMALLINT column named after the trait, so candidate
// windows become plain range predicates.
// ══════════════════════════════════════════════════════════════════════════════

// ProfileRepository implements profile.Repository for PostgreSQL.
type ProfileRepository struct {
	conn *Connection
}

var _ profile.Repository = (*ProfileRepository)(nil)

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(conn *Connection) *ProfileRepository {
	return &ProfileRepository{conn: conn}
}

const profileColumns = `user_id,
	hyperfocus_intensity, attention_flexibility, sensory_processing,
	executive_function, emotional_regulation, structure_preference,
	natural_rhythm, primary_learning_style, session_min_minutes, session_max_minutes,
	version, updated_at`

// Get returns the profile of a user.
func (r *ProfileRepository) Get(ctx context.Context, userID string) (*profile.Profile, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+profileColumns+` FROM trait_profiles WHERE user_id = $1`, userID)
	p, err := scanProfile(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrProfileNotFound
		}
		return nil, storageErr("profile.Get", err)
	}
	return p, nil
}

// Save replaces the profile and bumps its version in one statement.
func (r *ProfileRepository) Save(ctx context.Context, p *profile.Profile) (int, error) {
	query := `
		INSERT INTO trait_profiles (` + profileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1, $12)
		ON CONFLICT (user_id) DO UPDATE SET
			hyperfocus_intensity = EXCLUDED.hyperfocus_intensity,
			attention_flexibility = EXCLUDED.attention_flexibility,
			sensory_processing = EXCLUDED.sensory_processing,
			executive_function = EXCLUDED.executive_function,
			emotional_regulation = EXCLUDED.emotional_regulation,
			structure_preference = EXCLUDED.structure_preference,
			natural_rhythm = EXCLUDED.natural_rhythm,
			primary_learning_style = EXCLUDED.primary_learning_style,
			session_min_minutes = EXCLUDED.session_min_minutes,
			session_max_minutes = EXCLUDED.session_max_minutes,
			version = trait_profiles.version + 1,
			updated_at = EXCLUDED.updated_at
		RETURNING version
	`

	t := p.Traits
	var version int
	err := r.conn.QueryRow(ctx, query,
		p.UserID,
		t[profile.TraitHyperfocusIntensity],
		t[profile.TraitAttentionFlexibility],
		t[profile.TraitSensoryProcessing],
		t[profile.TraitExecutiveFunction],
		t[profile.TraitEmotionalRegulation],
		t[profile.TraitStructurePreference],
		string(p.Preferences.NaturalRhythm),
		string(p.Preferences.LearningStyle),
		p.Preferences.SessionMinMinutes,
		p.Preferences.SessionMaxMinutes,
		p.UpdatedAt,
	).Scan(&version)
	if err != nil {
		if IsCheckViolation(err) {
			return 0, shared.WrapError("profile", "Save", shared.ErrValidation, "trait score out of range", err)
		}
		return 0, storageErr("profile.Save", err)
	}
	return version, nil
}

// ListCandidates pushes the trait window into the WHERE clause.
func (r *ProfileRepository) ListCandidates(ctx context.Context, f profile.CandidateFilter) ([]*profile.Profile, error) {
	var (
		where = []string{"user_id <> $1"}
		args  = []any{f.ExcludeUserID}
	)
	for _, b := range f.Bounds {
		// Column names come from the fixed trait set only.
		if !b.Trait.IsKnown() {
			return nil, shared.NewValidationError("profile", "ListCandidates", "dimensions", "unknown trait "+string(b.Trait))
		}
		args = append(args, b.Min, b.Max)
		where = append(where, fmt.Sprintf("%s BETWEEN $%d AND $%d", b.Trait, len(args)-1, len(args)))
	}

	query := `SELECT ` + profileColumns + ` FROM trait_profiles WHERE ` + strings.Join(where, " AND ") + ` ORDER BY user_id`
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr("profile.ListCandidates", err)
	}
	defer rows.Close()

	out := make([]*profile.Profile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, storageErr("profile.ListCandidates", err)
		}
		out = append(out, p)
	}
	return out, storageErr("profile.ListCandidates", rows.Err())
}

// ListUserIDs pages through profile owners ordered by id.
func (r *ProfileRepository) ListUserIDs(ctx context.Context, after string, limit int) ([]string, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT user_id FROM trait_profiles WHERE user_id > $1 ORDER BY user_id LIMIT $2`,
		after, limit,
	)
	if err != nil {
		return nil, storageErr("profile.ListUserIDs", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, storageErr("profile.ListUserIDs", err)
	}
	return ids, nil
}

func scanProfile(row pgx.Row) (*profile.Profile, error) {
	var (
		p                                  profile.Profile
		hyper, flex, sens, exec, emo, strc int16
		rhythm, style                      string
	)
	err := row.Scan(
		&p.UserID,
		&hyper, &flex, &sens, &exec, &emo, &strc,
		&rhythm, &style, &p.Preferences.SessionMinMinutes, &p.Preferences.SessionMaxMinutes,
		&p.Version, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Traits = profile.TraitVector{
		profile.TraitHyperfocusIntensity:  int(hyper),
		profile.TraitAttentionFlexibility: int(flex),
		profile.TraitSensoryProcessing:    int(sens),
		profile.TraitExecutiveFunction:    int(exec),
		profile.TraitEmotionalRegulation:  int(emo),
		profile.TraitStructurePreference:  int(strc),
	}
	p.Preferences.NaturalRhythm = profile.Rhythm(rhythm)
	p.Preferences.LearningStyle = profile.LearningStyle(style)
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}
