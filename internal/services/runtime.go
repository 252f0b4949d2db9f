package services

import (
	"context"
	"sync"
	"time"

	"levelup-backend-go/internal/store"
)

// Clock supplies the current time. Timer checks read it at call time.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// ProgressEvent is pushed to a user's live progress feed.
type ProgressEvent struct {
	Type         string    `json:"type"`
	Username     string    `json:"username"`
	XP           int       `json:"xp"`
	Level        int       `json:"level"`
	Delta        int       `json:"delta,omitempty"`
	LevelsGained int       `json:"levelsGained,omitempty"`
	Source       string    `json:"source,omitempty"`
	At           time.Time `json:"at"`
}

const (
	EventXPAwarded      = "xp_awarded"
	EventLevelUp        = "level_up"
	EventQuestCompleted = "quest_completed"
	EventSessionEnded   = "session_ended"
	EventTaskCompleted  = "task_completed"
	EventPlayerReset    = "player_reset"
)

// fillProgress copies the award into event. Without an award it falls back to the stored
// record so subscribers never see a zeroed player.
func fillProgress(ctx context.Context, s *store.Store, event *ProgressEvent, award *AwardResult) {
	if award != nil {
		event.XP = award.XP
		event.Level = award.Level
		event.Delta = award.Granted
		return
	}
	player, err := s.Repos().Players.Find(ctx, event.Username)
	if err != nil || player == nil {
		return
	}
	event.XP = player.XP
	event.Level = player.Level
}

// Notifier receives progress events after the state change has committed.
type Notifier interface {
	Publish(event ProgressEvent)
}

type nopNotifier struct{}

func (nopNotifier) Publish(ProgressEvent) {}

// Scoreboard mirrors player XP into a ranking.
type Scoreboard interface {
	Record(ctx context.Context, username string, xp int) error
}

type nopScoreboard struct{}

func (nopScoreboard) Record(context.Context, string, int) error { return nil }

// userLocks serializes work per username inside this process.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: map[string]*userLock{}}
}

func (l *userLocks) lock(username string) func() {
	l.mu.Lock()
	entry, ok := l.locks[username]
	if !ok {
		entry = &userLock{}
		l.locks[username] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, username)
		}
		l.mu.Unlock()
	}
}
