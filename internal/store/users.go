package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"levelup-backend-go/internal/models"
)

type UserRepo struct {
	q sqlx.ExtContext
}

func (r UserRepo) Create(ctx context.Context, username, passwordHash string, now time.Time) (int64, error) {
	id, err := insertReturningID(ctx, r.q, `
INSERT INTO users (username, password_hash, created_at)
VALUES (?, ?, ?)`, username, passwordHash, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// FindByUsername returns the account for username, or nil.
func (r UserRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := getOne[models.User](ctx, r.q, `
SELECT id, username, password_hash, created_at, last_login_at
FROM users
WHERE username = ?`, username)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

func (r UserRepo) SetLastLogin(ctx context.Context, username string, now time.Time) error {
	_, err := r.q.ExecContext(ctx, r.q.Rebind(`UPDATE users SET last_login_at = ? WHERE username = ?`), now.UTC(), username)
	if err != nil {
		return fmt.Errorf("set last login: %w", err)
	}
	return nil
}
