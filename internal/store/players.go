package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"levelup-backend-go/internal/models"
)

const playerColumns = `id, username, xp, level, strength, memory, stamina, updated_at`

type PlayerRepo struct {
	q sqlx.ExtContext
}

// Find returns the record for username, or nil when none exists.
func (r PlayerRepo) Find(ctx context.Context, username string) (*models.PlayerStats, error) {
	player, err := getOne[models.PlayerStats](ctx, r.q,
		`SELECT `+playerColumns+` FROM player_stats WHERE username = ?`, username)
	if err != nil {
		return nil, fmt.Errorf("find player %q: %w", username, err)
	}
	return player, nil
}

// CreateDefault inserts the default record if none exists and returns the stored row.
func (r PlayerRepo) CreateDefault(ctx context.Context, username string, now time.Time) (*models.PlayerStats, error) {
	def := models.NewPlayerStats(username)
	_, err := r.q.ExecContext(ctx, r.q.Rebind(`
INSERT INTO player_stats (username, xp, level, strength, memory, stamina, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (username) DO NOTHING`),
		def.Username, def.XP, def.Level, def.Strength, def.Memory, def.Stamina, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("create player %q: %w", username, err)
	}
	player, err := r.Find(ctx, username)
	if err != nil {
		return nil, err
	}
	if player == nil {
		return nil, fmt.Errorf("create player %q: %w", username, ErrNoRowsAffected)
	}
	return player, nil
}

// Save writes xp, level and stats for the record's username.
func (r PlayerRepo) Save(ctx context.Context, p *models.PlayerStats) error {
	ok, err := execOne(ctx, r.q, `
UPDATE player_stats
SET xp = ?, level = ?, strength = ?, memory = ?, stamina = ?, updated_at = ?
WHERE username = ?`,
		p.XP, p.Level, p.Strength, p.Memory, p.Stamina, p.UpdatedAt.UTC(), p.Username)
	if err != nil {
		return fmt.Errorf("save player %q: %w", p.Username, err)
	}
	if !ok {
		return fmt.Errorf("save player %q: %w", p.Username, ErrNoRowsAffected)
	}
	return nil
}

// Top returns up to limit records ordered by xp, highest first.
func (r PlayerRepo) Top(ctx context.Context, limit int) ([]models.PlayerStats, error) {
	players := []models.PlayerStats{}
	err := sqlx.SelectContext(ctx, r.q, &players, r.q.Rebind(`
SELECT `+playerColumns+`
FROM player_stats
ORDER BY xp DESC, username ASC
LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("top players: %w", err)
	}
	return players, nil
}
