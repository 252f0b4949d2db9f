package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type DailyXPRepo struct {
	q sqlx.ExtContext
}

// Awarded returns how much capped XP username has received on day (YYYY-MM-DD).
func (r DailyXPRepo) Awarded(ctx context.Context, username, day string) (int, error) {
	var awarded int
	err := sqlx.GetContext(ctx, r.q, &awarded, r.q.Rebind(`
SELECT COALESCE(SUM(awarded), 0) FROM daily_xp WHERE username = ? AND day = ?`), username, day)
	if err != nil {
		return 0, fmt.Errorf("daily xp: %w", err)
	}
	return awarded, nil
}

func (r DailyXPRepo) Add(ctx context.Context, username, day string, amount int) error {
	_, err := r.q.ExecContext(ctx, r.q.Rebind(`
INSERT INTO daily_xp (username, day, awarded)
VALUES (?, ?, ?)
ON CONFLICT (username, day) DO UPDATE SET awarded = daily_xp.awarded + excluded.awarded`),
		username, day, amount)
	if err != nil {
		return fmt.Errorf("record daily xp: %w", err)
	}
	return nil
}
