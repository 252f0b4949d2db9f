package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"levelup-backend-go/internal/db"
	"levelup-backend-go/internal/migrations"
	"levelup-backend-go/internal/store"
	"levelup-backend-go/internal/telemetry"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (n *recordingNotifier) Publish(event ProgressEvent) {
	n.mu.Lock()
	n.events = append(n.events, event)
	n.mu.Unlock()
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Type)
	}
	return out
}

type recordingBoard struct {
	mu     sync.Mutex
	scores map[string]int
}

func (b *recordingBoard) Record(_ context.Context, username string, xp int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.scores == nil {
		b.scores = map[string]int{}
	}
	b.scores[username] = xp
	return nil
}

type testEnv struct {
	store    *store.Store
	clock    *fakeClock
	log      *logrus.Logger
	hook     *logtest.Hook
	notifier *recordingNotifier
	board    *recordingBoard
	metrics  *telemetry.Metrics
	leveling *Leveling
	quests   *Quests
	study    *Study
	tasks    *Tasks
}

func openTestStore(t *testing.T, name string) *store.Store {
	t.Helper()
	conn, err := db.Open("sqlite://" + filepath.Join(t.TempDir(), name))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_, err = migrations.Apply(conn)
	require.NoError(t, err)
	return store.New(conn)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:    openTestStore(t, "levelup.db"),
		clock:    newFakeClock(),
		notifier: &recordingNotifier{},
		board:    &recordingBoard{},
		metrics:  telemetry.NewMetrics(),
	}
	env.log, env.hook = logtest.NewNullLogger()
	env.leveling = NewLeveling(env.store, env.clock, env.log,
		WithNotifier(env.notifier), WithScoreboard(env.board), WithMetrics(env.metrics))
	env.quests = NewQuests(env.store, env.leveling, env.clock, env.log, env.metrics)
	env.study = NewStudy(env.store, env.leveling, env.clock, env.log, env.metrics)
	env.tasks = NewTasks(env.store, env.leveling, env.clock, env.log, env.metrics, TaskRewards{CreateXP: 10, DailyCap: 100})
	return env
}

// brokenLeveling returns a Leveling whose database is closed, so every award fails.
func brokenLeveling(t *testing.T, env *testEnv) *Leveling {
	t.Helper()
	broken := openTestStore(t, "broken.db")
	require.NoError(t, broken.DB().Close())
	return NewLeveling(broken, env.clock, env.log, WithNotifier(env.notifier))
}

func intPtr(v int) *int {
	return &v
}
