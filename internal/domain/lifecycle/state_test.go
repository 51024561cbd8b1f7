package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/adaptive-engine/internal/domain/shared"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func TestPresent_OnlyFromGenerated(t *testing.T) {
	s := NewStatus(t0, nil)

	next, applied, err := Present(t0.Add(time.Hour))(s)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, StatePresented, next.State)
	require.NotNil(t, next.PresentedAt)
	assert.Equal(t, t0.Add(time.Hour), *next.PresentedAt)

	again, applied, err := Present(t0.Add(2 * time.Hour))(next)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, t0.Add(time.Hour), *again.PresentedAt)
}

func TestPresent_DueItemIsNotShown(t *testing.T) {
	exp := t0.Add(time.Hour)
	s := NewStatus(t0, &exp)

	next, applied, err := Present(t0.Add(2 * time.Hour))(s)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, StateGenerated, next.State)
}

func TestRespond_IsIdempotent(t *testing.T) {
	s := NewStatus(t0, nil)
	s, _, _ = Present(t0)(s)

	first, applied, err := Respond(ResponseAccepted, t0.Add(time.Minute))(s)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, StateResponded, first.State)

	second, applied, err := Respond(ResponseRejected, t0.Add(time.Hour))(first)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, ResponseAccepted, second.Response)
	assert.Equal(t, t0.Add(time.Minute), *second.RespondedAt)
}

func TestRespond_LateResponseOnExpiredItem(t *testing.T) {
	exp := t0.Add(time.Hour)
	s := NewStatus(t0, &exp)
	s, _, _ = Present(t0)(s)
	s, applied, _ := Expire(t0.Add(2 * time.Hour))(s)
	require.True(t, applied)

	next, applied, err := Respond(ResponseIgnored, t0.Add(3*time.Hour))(s)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, StateExpired, next.State, "late response must not revive the item")
	assert.Equal(t, ResponseIgnored, next.Response)
}

func TestRespond_NeverPresentedIsConflict(t *testing.T) {
	_, applied, err := Respond(ResponseAccepted, t0)(NewStatus(t0, nil))
	assert.False(t, applied)
	assert.True(t, shared.IsConflict(err))
}

func TestRespond_MalformedResponse(t *testing.T) {
	s := NewStatus(t0, nil)
	s, _, _ = Present(t0)(s)

	_, _, err := Respond(Response("maybe"), t0)(s)
	assert.True(t, shared.IsValidation(err))
	assert.Equal(t, "response", shared.ValidationField(err))
}

func TestExpire_OnlyWhenDue(t *testing.T) {
	exp := t0.Add(24 * time.Hour)
	s := NewStatus(t0, &exp)

	_, applied, _ := Expire(t0.Add(time.Hour))(s)
	assert.False(t, applied)

	next, applied, _ := Expire(exp)(s)
	assert.True(t, applied)
	assert.Equal(t, StateExpired, next.State)

	_, applied, _ = Expire(exp.Add(time.Hour))(next)
	assert.False(t, applied)
}

func TestExpire_NoDeadlineNeverExpires(t *testing.T) {
	_, applied, _ := Expire(t0.Add(365 * 24 * time.Hour))(NewStatus(t0, nil))
	assert.False(t, applied)
}

func TestParseResponse(t *testing.T) {
	r, err := ParseResponse(" Accepted ")
	require.NoError(t, err)
	assert.Equal(t, ResponseAccepted, r)

	_, err = ParseResponse("")
	assert.True(t, shared.IsValidation(err))
}

func TestCleanupCutoffs_Eligible(t *testing.T) {
	now := t0.Add(60 * 24 * time.Hour)
	c := DefaultCleanupPolicy().Cutoffs(now)

	old := now.Add(-40 * 24 * time.Hour)
	recent := now.Add(-3 * 24 * time.Hour)
	mid := now.Add(-20 * 24 * time.Hour)

	rejectedOld := Status{State: StateResponded, Response: ResponseRejected, RespondedAt: &old}
	reason, ok := c.Eligible(rejectedOld)
	assert.True(t, ok)
	assert.Equal(t, CleanupRejected, reason)

	rejectedMid := Status{State: StateResponded, Response: ResponseRejected, RespondedAt: &mid}
	_, ok = c.Eligible(rejectedMid)
	assert.False(t, ok, "rejected insight younger than cleanup threshold stays")

	unanswered := Status{State: StatePresented, PresentedAt: &mid}
	reason, ok = c.Eligible(unanswered)
	assert.True(t, ok)
	assert.Equal(t, CleanupUnanswered, reason)

	fresh := Status{State: StatePresented, PresentedAt: &recent}
	_, ok = c.Eligible(fresh)
	assert.False(t, ok)

	accepted := Status{State: StateResponded, Response: ResponseAccepted, RespondedAt: &old}
	_, ok = c.Eligible(accepted)
	assert.False(t, ok, "accepted insights are kept")
}

func TestCleanupCutoffs_ExpiredUnanswered(t *testing.T) {
	now := t0.Add(60 * 24 * time.Hour)
	c := DefaultCleanupPolicy().Cutoffs(now)

	presented := now.Add(-30 * 24 * time.Hour)
	expiredLongAgo := now.Add(-20 * 24 * time.Hour)
	expiredRecently := now.Add(-2 * 24 * time.Hour)

	stale := Status{State: StateExpired, PresentedAt: &presented, ExpiresAt: &expiredLongAgo}
	reason, ok := c.Eligible(stale)
	assert.True(t, ok)
	assert.Equal(t, CleanupExpired, reason)

	grace := Status{State: StateExpired, PresentedAt: &presented, ExpiresAt: &expiredRecently}
	_, ok = c.Eligible(grace)
	assert.False(t, ok, "late responses are still accepted within the ignore threshold")

	lateAccepted := Status{
		State: StateExpired, PresentedAt: &presented, ExpiresAt: &expiredLongAgo,
		Response: ResponseAccepted, RespondedAt: &expiredRecently,
	}
	_, ok = c.Eligible(lateAccepted)
	assert.False(t, ok)
}
