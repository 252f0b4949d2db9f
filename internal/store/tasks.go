package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"levelup-backend-go/internal/models"
)

const taskColumns = `id, username, title, description, is_done, xp, created_at`

type TaskRepo struct {
	q sqlx.ExtContext
}

func (r TaskRepo) Create(ctx context.Context, task models.Task) (int64, error) {
	id, err := insertReturningID(ctx, r.q, `
INSERT INTO tasks (username, title, description, is_done, xp, created_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		task.Username, task.Title, task.Description, false, task.XP, task.CreatedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("create task: %w", err)
	}
	return id, nil
}

// Get returns the task with id, or nil when it does not exist.
func (r TaskRepo) Get(ctx context.Context, id int64) (*models.Task, error) {
	task, err := getOne[models.Task](ctx, r.q, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	return task, nil
}

func (r TaskRepo) ListByUser(ctx context.Context, username string) ([]models.Task, error) {
	tasks := []models.Task{}
	err := sqlx.SelectContext(ctx, r.q, &tasks, r.q.Rebind(`
SELECT `+taskColumns+`
FROM tasks
WHERE username = ?
ORDER BY created_at DESC, id DESC`), username)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// MarkDone flips is_done to true. It reports false when the task was already done.
func (r TaskRepo) MarkDone(ctx context.Context, id int64) (bool, error) {
	ok, err := execOne(ctx, r.q, `UPDATE tasks SET is_done = ? WHERE id = ? AND is_done = ?`, true, id, false)
	if err != nil {
		return false, fmt.Errorf("complete task %d: %w", id, err)
	}
	return ok, nil
}
