package command

import (
	"context"
	"fmt"

	"github.com/alem-hub/adaptive-engine/internal/domain/profile"
	"github.com/alem-hub/adaptive-engine/pkg/logger"
	"github.com/alem-hub/adaptive-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPSERT PROFILE COMMAND
// Replaces a learner's trait profile wholesale. Validation happens before
// any write, so an invalid vector leaves the previous profile untouched.
// ══════════════════════════════════════════════════════════════════════════════

// UpsertProfileCommand contains the new profile values.
type UpsertProfileCommand struct {
	UserID      string
	Traits      profile.TraitVector
	Preferences profile.Preferences
}

// UpsertProfileResult contains the stored profile.
type UpsertProfileResult struct {
	Profile *profile.Profile
}

// UpsertProfileHandler handles UpsertProfileCommand.
type UpsertProfileHandler struct {
	profiles profile.Repository
	clock    timeutil.Clock
	log      *logger.Logger
}

// NewUpsertProfileHandler creates a new UpsertProfileHandler.
func NewUpsertProfileHandler(profiles profile.Repository, clock timeutil.Clock, log *logger.Logger) *UpsertProfileHandler {
	return &UpsertProfileHandler{
		profiles: profiles,
		clock:    orSystemClock(clock),
		log:      log.Named("upsert_profile"),
	}
}

// Handle validates and stores the profile, returning it with its new version.
func (h *UpsertProfileHandler) Handle(ctx context.Context, cmd UpsertProfileCommand) (*UpsertProfileResult, error) {
	p, err := profile.NewProfile(cmd.UserID, cmd.Traits, cmd.Preferences, h.clock.Now())
	if err != nil {
		return nil, err
	}

	version, err := h.profiles.Save(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("upsert_profile: %w", err)
	}
	p.Version = version

	h.log.Debug("profile replaced", logger.UserID(p.UserID), logger.Int("version", version))
	return &UpsertProfileResult{Profile: p}, nil
}
