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

const (
	DefaultQuestReward = 20
	MaxQuestReward     = 10000
	maxQuestSeconds    = math.MaxInt32
)

var sampleQuests = []models.Quest{
	{Title: "Study for 1 hour", Description: "Focus on any subject for 60 minutes", RewardXP: 50},
	{Title: "Complete Python module", Description: "Finish one lesson of your Python course", RewardXP: 50},
}

// QuestView is a quest with its remaining timer evaluated at read time.
type QuestView struct {
	models.Quest
	RemainingSeconds *int
}

type QuestCompletion struct {
	QuestID  int64
	RewardXP int
	// Award is nil when the reward could not be granted.
	Award *AwardResult
}

type Quests struct {
	store    *store.Store
	leveling *Leveling
	clock    Clock
	log      logrus.FieldLogger
	metrics  *telemetry.Metrics
}

func NewQuests(s *store.Store, leveling *Leveling, clock Clock, log logrus.FieldLogger, metrics *telemetry.Metrics) *Quests {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Quests{store: s, leveling: leveling, clock: clock, log: log, metrics: metrics}
}

// CreateQuest stores a new quest. rewardXP nil means the default reward.
func (q *Quests) CreateQuest(ctx context.Context, username, title, description string, rewardXP *int) (int64, error) {
	username = strings.TrimSpace(username)
	title = strings.TrimSpace(title)
	if username == "" || title == "" {
		return 0, ErrBadRequest("username and title are required")
	}
	reward := DefaultQuestReward
	if rewardXP != nil {
		reward = *rewardXP
	}
	if reward <= 0 {
		return 0, ErrBadRequest("reward must be positive")
	}
	if reward > MaxQuestReward {
		return 0, ErrBadRequest("reward is too large")
	}
	id, err := q.store.Repos().Quests.Create(ctx, models.Quest{
		Username:    username,
		Title:       title,
		Description: strings.TrimSpace(description),
		RewardXP:    reward,
		CreatedAt:   q.clock.Now().UTC(),
	})
	if err != nil {
		return 0, ErrPersistence("could not create quest", err)
	}
	return id, nil
}

// StartQuest sets the quest timer. Restarting a running quest replaces its timer.
func (q *Quests) StartQuest(ctx context.Context, username string, questID int64, durationMinutes float64) error {
	if math.IsNaN(durationMinutes) || math.IsInf(durationMinutes, 0) {
		return ErrBadRequest("duration must be a number")
	}
	seconds := math.Floor(durationMinutes * 60)
	if seconds < 1 {
		return ErrBadRequest("duration must be at least one second")
	}
	if seconds > maxQuestSeconds {
		return ErrBadRequest("duration is too long")
	}
	now := q.clock.Now().UTC()
	err := q.store.WithTx(ctx, func(r store.Repos) error {
		quest, err := ownedQuest(ctx, r, username, questID)
		if err != nil {
			return err
		}
		if quest.Completed {
			return ErrAlreadyTerminal("quest already completed")
		}
		ok, err := r.Quests.SetTimer(ctx, questID, now, int(seconds))
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyTerminal("quest already completed")
		}
		return nil
	})
	if err != nil {
		return ErrPersistence("could not start quest", err)
	}
	return nil
}

// CompleteQuest moves a quest to completed once its timer has elapsed, then grants the reward.
// The reward is best effort: a failed award is logged and the completion stands.
func (q *Quests) CompleteQuest(ctx context.Context, username string, questID int64) (QuestCompletion, error) {
	now := q.clock.Now().UTC()
	var quest *models.Quest
	err := q.store.WithTx(ctx, func(r store.Repos) error {
		var err error
		quest, err = ownedQuest(ctx, r, username, questID)
		if err != nil {
			return err
		}
		if quest.Completed {
			return ErrAlreadyTerminal("quest already completed")
		}
		if quest.HasTimer() {
			required := time.Duration(*quest.DurationSeconds) * time.Second
			if now.Sub(*quest.StartTime) < required {
				return ErrTimerNotElapsed("quest timer has not finished")
			}
		}
		ok, err := r.Quests.MarkCompleted(ctx, questID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyTerminal("quest already completed")
		}
		return nil
	})
	if err != nil {
		return QuestCompletion{}, ErrPersistence("could not complete quest", err)
	}
	q.metrics.QuestCompleted()

	done := QuestCompletion{QuestID: questID, RewardXP: quest.RewardXP}
	award, err := q.leveling.AwardXP(ctx, quest.Username, quest.RewardXP)
	if err != nil {
		q.log.WithError(err).WithFields(logrus.Fields{
			"username": quest.Username,
			"quest_id": questID,
		}).Warn("quest reward not granted")
	} else {
		done.Award = &award
	}
	event := ProgressEvent{
		Type:     EventQuestCompleted,
		Username: quest.Username,
		Source:   quest.Title,
		At:       now,
	}
	fillProgress(ctx, q.store, &event, done.Award)
	q.leveling.notify.Publish(event)
	return done, nil
}

// RemainingSeconds returns nil when the quest has no timer.
func (q *Quests) RemainingSeconds(ctx context.Context, username string, questID int64) (*int, error) {
	quest, err := ownedQuest(ctx, q.store.Repos(), username, questID)
	if err != nil {
		return nil, ErrPersistence("could not load quest", err)
	}
	return remainingSeconds(*quest, q.clock.Now()), nil
}

// ListQuests returns the user's quests, most recently created first.
func (q *Quests) ListQuests(ctx context.Context, username string) ([]QuestView, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrBadRequest("username is required")
	}
	quests, err := q.store.Repos().Quests.ListByUser(ctx, username)
	if err != nil {
		return nil, ErrPersistence("could not list quests", err)
	}
	now := q.clock.Now()
	items := make([]QuestView, 0, len(quests))
	for _, quest := range quests {
		items = append(items, QuestView{Quest: quest, RemainingSeconds: remainingSeconds(quest, now)})
	}
	return items, nil
}

// SeedSampleQuests gives username the starter quests it does not already have.
func (q *Quests) SeedSampleQuests(ctx context.Context, username string) (int, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return 0, ErrBadRequest("username is required")
	}
	created := 0
	err := q.store.WithTx(ctx, func(r store.Repos) error {
		var err error
		created, err = seedSampleQuests(ctx, r, username, q.clock.Now().UTC())
		return err
	})
	if err != nil {
		return 0, ErrPersistence("could not seed quests", err)
	}
	return created, nil
}

func seedSampleQuests(ctx context.Context, r store.Repos, username string, now time.Time) (int, error) {
	created := 0
	for _, sample := range sampleQuests {
		exists, err := r.Quests.ExistsByTitle(ctx, username, sample.Title)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}
		quest := sample
		quest.Username = username
		quest.CreatedAt = now
		if _, err := r.Quests.Create(ctx, quest); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

func ownedQuest(ctx context.Context, r store.Repos, username string, questID int64) (*models.Quest, error) {
	if strings.TrimSpace(username) == "" {
		return nil, ErrBadRequest("username is required")
	}
	if questID <= 0 {
		return nil, ErrBadRequest("missing quest id")
	}
	quest, err := r.Quests.Get(ctx, questID)
	if err != nil {
		return nil, err
	}
	if quest == nil {
		return nil, ErrNotFound("quest not found")
	}
	if quest.Username != strings.TrimSpace(username) {
		return nil, ErrForbidden("quest belongs to another user")
	}
	return quest, nil
}

func remainingSeconds(quest models.Quest, now time.Time) *int {
	if !quest.HasTimer() {
		return nil
	}
	left := float64(*quest.DurationSeconds) - now.Sub(*quest.StartTime).Seconds()
	value := 0
	if left > 0 {
		value = int(left)
	}
	return &value
}
