package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"levelup-backend-go/internal/models"
	"levelup-backend-go/internal/store"
	"levelup-backend-go/internal/telemetry"
)

const DefaultTaskXP = 10

type TaskRewards struct {
	// CreateXP is granted when a task is added.
	CreateXP int
	// DailyCap limits capped XP per user per UTC day. Zero disables it.
	DailyCap int
}

type TaskResult struct {
	Task  models.Task
	Award *AwardResult
}

type Tasks struct {
	store    *store.Store
	leveling *Leveling
	clock    Clock
	log      logrus.FieldLogger
	metrics  *telemetry.Metrics
	rewards  TaskRewards
}

func NewTasks(s *store.Store, leveling *Leveling, clock Clock, log logrus.FieldLogger, metrics *telemetry.Metrics, rewards TaskRewards) *Tasks {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Tasks{store: s, leveling: leveling, clock: clock, log: log, metrics: metrics, rewards: rewards}
}

func (t *Tasks) AddTask(ctx context.Context, username, title, description string) (TaskResult, error) {
	username = strings.TrimSpace(username)
	title = strings.TrimSpace(title)
	if username == "" || title == "" {
		return TaskResult{}, ErrBadRequest("username and title are required")
	}
	task := models.Task{
		Username:    username,
		Title:       title,
		Description: strings.TrimSpace(description),
		XP:          DefaultTaskXP,
		CreatedAt:   t.clock.Now().UTC(),
	}
	id, err := t.store.Repos().Tasks.Create(ctx, task)
	if err != nil {
		return TaskResult{}, ErrPersistence("could not add task", err)
	}
	task.ID = id
	result := TaskResult{Task: task}
	if t.rewards.CreateXP > 0 {
		result.Award = t.grant(ctx, username, t.rewards.CreateXP, id)
	}
	return result, nil
}

// CompleteTask marks the task done, then grants its XP subject to the daily cap.
func (t *Tasks) CompleteTask(ctx context.Context, username string, taskID int64) (TaskResult, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return TaskResult{}, ErrBadRequest("username is required")
	}
	if taskID <= 0 {
		return TaskResult{}, ErrBadRequest("missing task id")
	}
	var task *models.Task
	err := t.store.WithTx(ctx, func(r store.Repos) error {
		var err error
		task, err = r.Tasks.Get(ctx, taskID)
		if err != nil {
			return err
		}
		if task == nil {
			return ErrNotFound("task not found")
		}
		if task.Username != username {
			return ErrForbidden("task belongs to another user")
		}
		if task.IsDone {
			return ErrAlreadyTerminal("task already completed")
		}
		ok, err := r.Tasks.MarkDone(ctx, taskID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyTerminal("task already completed")
		}
		return nil
	})
	if err != nil {
		return TaskResult{}, ErrPersistence("could not complete task", err)
	}
	task.IsDone = true
	t.metrics.TaskCompleted()
	result := TaskResult{Task: *task, Award: t.grant(ctx, username, task.XP, taskID)}
	event := ProgressEvent{Type: EventTaskCompleted, Username: username, Source: task.Title, At: t.clock.Now().UTC()}
	fillProgress(ctx, t.store, &event, result.Award)
	t.leveling.notify.Publish(event)
	return result, nil
}

func (t *Tasks) ListTasks(ctx context.Context, username string) ([]models.Task, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrBadRequest("username is required")
	}
	tasks, err := t.store.Repos().Tasks.ListByUser(ctx, username)
	if err != nil {
		return nil, ErrPersistence("could not list tasks", err)
	}
	return tasks, nil
}

func (t *Tasks) grant(ctx context.Context, username string, amount int, taskID int64) *AwardResult {
	award, err := t.leveling.AwardCapped(ctx, username, amount, t.rewards.DailyCap)
	if err != nil {
		t.log.WithError(err).WithFields(logrus.Fields{
			"username": username,
			"task_id":  taskID,
		}).Warn("task xp not granted")
		return nil
	}
	return &award
}
