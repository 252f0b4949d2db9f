package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"levelup-backend-go/internal/models"
)

const questColumns = `id, username, title, description, reward_xp, completed, created_at, start_time, duration_seconds`

type QuestRepo struct {
	q sqlx.ExtContext
}

func (r QuestRepo) Create(ctx context.Context, quest models.Quest) (int64, error) {
	id, err := insertReturningID(ctx, r.q, `
INSERT INTO quests (username, title, description, reward_xp, completed, created_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		quest.Username, quest.Title, quest.Description, quest.RewardXP, false, quest.CreatedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("create quest: %w", err)
	}
	return id, nil
}

// Get returns the quest with id, or nil when it does not exist.
func (r QuestRepo) Get(ctx context.Context, id int64) (*models.Quest, error) {
	quest, err := getOne[models.Quest](ctx, r.q, `SELECT `+questColumns+` FROM quests WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get quest %d: %w", id, err)
	}
	return quest, nil
}

// ListByUser returns the user's quests, most recently created first.
func (r QuestRepo) ListByUser(ctx context.Context, username string) ([]models.Quest, error) {
	quests := []models.Quest{}
	err := sqlx.SelectContext(ctx, r.q, &quests, r.q.Rebind(`
SELECT `+questColumns+`
FROM quests
WHERE username = ?
ORDER BY created_at DESC, id DESC`), username)
	if err != nil {
		return nil, fmt.Errorf("list quests: %w", err)
	}
	return quests, nil
}

func (r QuestRepo) ExistsByTitle(ctx context.Context, username, title string) (bool, error) {
	var count int
	err := sqlx.GetContext(ctx, r.q, &count, r.q.Rebind(`SELECT COUNT(*) FROM quests WHERE username = ? AND title = ?`), username, title)
	if err != nil {
		return false, fmt.Errorf("find quest by title: %w", err)
	}
	return count > 0, nil
}

// SetTimer stores start and duration on a quest that is not completed.
// It reports false when the quest is missing or already completed.
func (r QuestRepo) SetTimer(ctx context.Context, id int64, start time.Time, seconds int) (bool, error) {
	ok, err := execOne(ctx, r.q, `
UPDATE quests SET start_time = ?, duration_seconds = ?
WHERE id = ? AND completed = ?`, start.UTC(), seconds, id, false)
	if err != nil {
		return false, fmt.Errorf("start quest %d: %w", id, err)
	}
	return ok, nil
}

// MarkCompleted flips completed to true. It reports false when the quest was already completed.
func (r QuestRepo) MarkCompleted(ctx context.Context, id int64) (bool, error) {
	ok, err := execOne(ctx, r.q, `UPDATE quests SET completed = ? WHERE id = ? AND completed = ?`, true, id, false)
	if err != nil {
		return false, fmt.Errorf("complete quest %d: %w", id, err)
	}
	return ok, nil
}
