package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"levelup-backend-go/internal/models"
)

func TestStartSessionReturnsActiveSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.study.StartSession(ctx, "ana", "Math")
	require.NoError(t, err)
	second, err := env.study.StartSession(ctx, "ana", "History")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	active, err := env.study.GetActiveSession(ctx, "ana")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, first, active.ID)
	assert.Equal(t, "Math", active.Subject)
	assert.True(t, active.StartTime.Equal(env.clock.Now()))

	other, err := env.study.StartSession(ctx, "bo", "Math")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestStartSessionValidation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.study.StartSession(context.Background(), "ana", "  ")
	assert.True(t, IsKind(err, KindInvalidInput))
	_, err = env.study.StartSession(context.Background(), "", "Math")
	assert.True(t, IsKind(err, KindInvalidInput))
}

func TestEndSessionAwardsXP(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.study.StartSession(ctx, "ana", "Math")
	require.NoError(t, err)
	env.clock.Advance(90 * time.Minute)

	ended, err := env.study.EndSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1.5, ended.Hours)
	assert.Equal(t, 7, ended.XPAwarded)
	require.NotNil(t, ended.Award)
	assert.Equal(t, 7, ended.Award.XP)

	active, err := env.study.GetActiveSession(ctx, "ana")
	require.NoError(t, err)
	assert.Nil(t, active)
	assert.Contains(t, env.notifier.types(), EventSessionEnded)
}

func TestEndSessionRoundsHoursButNotXP(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.study.StartSession(ctx, "ana", "Math")
	require.NoError(t, err)
	env.clock.Advance(20 * time.Minute)

	ended, err := env.study.EndSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0.33, ended.Hours)
	assert.Equal(t, 1, ended.XPAwarded)
}

func TestEndSessionTwice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.study.StartSession(ctx, "ana", "Math")
	require.NoError(t, err)
	env.clock.Advance(time.Hour)
	_, err = env.study.EndSession(ctx, id)
	require.NoError(t, err)

	env.clock.Advance(time.Hour)
	_, err = env.study.EndSession(ctx, id)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindAlreadyTerminal))
	assert.Equal(t, "session already ended", err.Error())

	logs, err := env.study.ListSessions(ctx, "ana")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, 1.0, logs[0].Hours)
	xp, err := env.leveling.GetXP(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, 5, xp)
}

func TestEndSessionErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.study.EndSession(ctx, 0)
	assert.True(t, IsKind(err, KindInvalidInput))
	assert.Equal(t, "missing session id", err.Error())

	_, err = env.study.EndSession(ctx, 4242)
	assert.True(t, IsKind(err, KindNotFound))
	assert.Equal(t, "session not found", err.Error())

	id, err := env.store.Repos().Sessions.Create(ctx, models.AcademicLog{Username: "cy", Subject: "Art", Date: env.clock.Now()})
	require.NoError(t, err)
	_, err = env.study.EndSession(ctx, id)
	assert.True(t, IsKind(err, KindInvalidInput))
	assert.Equal(t, "session has no start time", err.Error())
}

func TestEndOwnedSessionChecksOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.study.StartSession(ctx, "ana", "Math")
	require.NoError(t, err)
	_, err = env.study.EndOwnedSession(ctx, "bo", id)
	assert.True(t, IsKind(err, KindForbidden))

	env.clock.Advance(2 * time.Hour)
	ended, err := env.study.EndOwnedSession(ctx, "ana", id)
	require.NoError(t, err)
	assert.Equal(t, 10, ended.XPAwarded)
}

func TestEndSessionSurvivesAwardFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	study := NewStudy(env.store, brokenLeveling(t, env), env.clock, env.log, env.metrics)

	id, err := study.StartSession(ctx, "ana", "Math")
	require.NoError(t, err)
	env.clock.Advance(time.Hour)
	ended, err := study.EndSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 5, ended.XPAwarded)
	assert.Nil(t, ended.Award)

	active, err := study.GetActiveSession(ctx, "ana")
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestLogHours(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	logged, err := env.study.LogHours(ctx, "ana", "Physics", 2.5)
	require.NoError(t, err)
	assert.Equal(t, 2.5, logged.Hours)
	assert.Equal(t, 12, logged.XPAwarded)

	active, err := env.study.GetActiveSession(ctx, "ana")
	require.NoError(t, err)
	assert.Nil(t, active, "logged hours never leave an active session")

	for _, hours := range []float64{0, -1, 25} {
		_, err := env.study.LogHours(ctx, "ana", "Physics", hours)
		assert.True(t, IsKind(err, KindInvalidInput), "hours=%v", hours)
	}
}

func TestListSessionsNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.study.LogHours(ctx, "ana", "Math", 1)
	require.NoError(t, err)
	env.clock.Advance(time.Hour)
	_, err = env.study.LogHours(ctx, "ana", "Art", 1)
	require.NoError(t, err)

	logs, err := env.study.ListSessions(ctx, "ana")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "Art", logs[0].Subject)
	assert.Equal(t, "Math", logs[1].Subject)
}
