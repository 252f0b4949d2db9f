package services

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"levelup-backend-go/internal/models"
	"levelup-backend-go/internal/store"
	"levelup-backend-go/internal/telemetry"
)

const xpPerLevel = 100

// MaxXP is the lifetime XP ceiling. It matches the INTEGER xp column.
const MaxXP = math.MaxInt32

// RequiredXPFor is the cumulative XP a player at level must reach to advance.
func RequiredXPFor(level int) int {
	return (level + 1) * xpPerLevel
}

// ApplyXP adds amount to p and raises level and stats for every threshold crossed.
// It returns the number of levels gained. Non-positive amounts leave p unchanged and
// xp saturates at MaxXP.
func ApplyXP(p *models.PlayerStats, amount int) int {
	if amount <= 0 {
		return 0
	}
	if amount > MaxXP-p.XP {
		amount = MaxXP - p.XP
	}
	p.XP += amount
	gained := LevelForXP(p.XP) - p.Level
	if gained <= 0 {
		return 0
	}
	p.Level += gained
	p.Strength += gained
	p.Memory += gained
	p.Stamina += gained
	return gained
}

// LevelForXP returns the level a player with a cumulative total of xp has reached.
func LevelForXP(xp int) int {
	if xp <= 0 {
		return 0
	}
	return xp / xpPerLevel
}

type AwardResult struct {
	XP           int `json:"xp"`
	Level        int `json:"level"`
	LevelsGained int `json:"levelsGained"`
	Granted      int `json:"granted"`
	Strength     int `json:"strength"`
	Memory       int `json:"memory"`
	Stamina      int `json:"stamina"`
}

func resultFrom(p *models.PlayerStats, granted, gained int) AwardResult {
	return AwardResult{
		XP:           p.XP,
		Level:        p.Level,
		LevelsGained: gained,
		Granted:      granted,
		Strength:     p.Strength,
		Memory:       p.Memory,
		Stamina:      p.Stamina,
	}
}

// Leveling owns every mutation of player records.
type Leveling struct {
	store   *store.Store
	clock   Clock
	log     logrus.FieldLogger
	notify  Notifier
	board   Scoreboard
	metrics *telemetry.Metrics
	locks   *userLocks
}

type LevelingOption func(*Leveling)

func WithNotifier(n Notifier) LevelingOption {
	return func(l *Leveling) {
		if n != nil {
			l.notify = n
		}
	}
}

func WithScoreboard(b Scoreboard) LevelingOption {
	return func(l *Leveling) {
		if b != nil {
			l.board = b
		}
	}
}

func WithMetrics(m *telemetry.Metrics) LevelingOption {
	return func(l *Leveling) {
		l.metrics = m
	}
}

func NewLeveling(s *store.Store, clock Clock, log logrus.FieldLogger, opts ...LevelingOption) *Leveling {
	if clock == nil {
		clock = SystemClock{}
	}
	l := &Leveling{
		store:  s,
		clock:  clock,
		log:    log,
		notify: nopNotifier{},
		board:  nopScoreboard{},
		locks:  newUserLocks(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AwardXP grants amount to username, creating the record on first use. The level-up cascade
// is persisted in one transaction.
func (l *Leveling) AwardXP(ctx context.Context, username string, amount int) (AwardResult, error) {
	return l.award(ctx, username, amount, 0, "")
}

// AwardCapped grants at most limit minus what username already received today (UTC).
// A limit of zero or less disables the cap.
func (l *Leveling) AwardCapped(ctx context.Context, username string, amount, limit int) (AwardResult, error) {
	return l.award(ctx, username, amount, limit, "capped")
}

func (l *Leveling) award(ctx context.Context, username string, amount, limit int, source string) (AwardResult, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return AwardResult{}, ErrBadRequest("username is required")
	}
	unlock := l.locks.lock(username)
	defer unlock()

	now := l.clock.Now().UTC()
	day := now.Format("2006-01-02")
	var result AwardResult
	err := l.store.WithTx(ctx, func(r store.Repos) error {
		player, err := r.Players.Find(ctx, username)
		if err != nil {
			return err
		}
		if player == nil {
			player, err = r.Players.CreateDefault(ctx, username, now)
			if err != nil {
				return err
			}
		}
		grant := amount
		if limit > 0 && grant > 0 {
			already, err := r.DailyXP.Awarded(ctx, username, day)
			if err != nil {
				return err
			}
			grant = min(grant, limit-already)
		}
		if grant <= 0 {
			result = resultFrom(player, 0, 0)
			return nil
		}
		if grant > MaxXP-player.XP {
			return ErrBadRequest("award would exceed the xp ceiling")
		}
		gained := ApplyXP(player, grant)
		player.UpdatedAt = now
		if err := r.Players.Save(ctx, player); err != nil {
			return err
		}
		if limit > 0 {
			if err := r.DailyXP.Add(ctx, username, day, grant); err != nil {
				return err
			}
		}
		result = resultFrom(player, grant, gained)
		return nil
	})
	if err != nil {
		return AwardResult{}, ErrPersistence("could not award xp", err)
	}
	if result.Granted > 0 {
		l.afterAward(ctx, username, result, source, now)
	}
	return result, nil
}

func (l *Leveling) afterAward(ctx context.Context, username string, result AwardResult, source string, now time.Time) {
	l.metrics.ObserveAward(result.Granted, result.LevelsGained)
	if err := l.board.Record(ctx, username, result.XP); err != nil {
		l.log.WithError(err).WithField("username", username).Warn("leaderboard update failed")
	}
	event := ProgressEvent{
		Type:     EventXPAwarded,
		Username: username,
		XP:       result.XP,
		Level:    result.Level,
		Delta:    result.Granted,
		Source:   source,
		At:       now,
	}
	l.notify.Publish(event)
	if result.LevelsGained > 0 {
		event.Type = EventLevelUp
		event.LevelsGained = result.LevelsGained
		l.notify.Publish(event)
		l.log.WithFields(logrus.Fields{
			"username": username,
			"level":    result.Level,
			"gained":   result.LevelsGained,
		}).Info("level up")
	}
}

// GetPlayer returns the stored record, or an unsaved default when none exists.
func (l *Leveling) GetPlayer(ctx context.Context, username string) (models.PlayerStats, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return models.PlayerStats{}, ErrBadRequest("username is required")
	}
	player, err := l.store.Repos().Players.Find(ctx, username)
	if err != nil {
		return models.PlayerStats{}, ErrPersistence("could not load player", err)
	}
	if player == nil {
		return models.NewPlayerStats(username), nil
	}
	return *player, nil
}

// GetXP returns 0 for unknown players without creating a record.
func (l *Leveling) GetXP(ctx context.Context, username string) (int, error) {
	player, err := l.GetPlayer(ctx, username)
	if err != nil {
		return 0, err
	}
	return player.XP, nil
}

// GetLevel returns 0 for unknown players without creating a record.
func (l *Leveling) GetLevel(ctx context.Context, username string) (int, error) {
	player, err := l.GetPlayer(ctx, username)
	if err != nil {
		return 0, err
	}
	return player.Level, nil
}

// ResetPlayer puts an existing record back to its starting values.
func (l *Leveling) ResetPlayer(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrBadRequest("username is required")
	}
	unlock := l.locks.lock(username)
	defer unlock()

	now := l.clock.Now().UTC()
	var reset *models.PlayerStats
	err := l.store.WithTx(ctx, func(r store.Repos) error {
		player, err := r.Players.Find(ctx, username)
		if err != nil {
			return err
		}
		if player == nil {
			return ErrNotFound("player not found")
		}
		fresh := models.NewPlayerStats(username)
		fresh.ID = player.ID
		fresh.UpdatedAt = now
		if err := r.Players.Save(ctx, &fresh); err != nil {
			return err
		}
		reset = &fresh
		return nil
	})
	if err != nil {
		return ErrPersistence("could not reset player", err)
	}
	if err := l.board.Record(ctx, username, reset.XP); err != nil {
		l.log.WithError(err).WithField("username", username).Warn("leaderboard update failed")
	}
	l.notify.Publish(ProgressEvent{Type: EventPlayerReset, Username: username, At: now})
	return nil
}
