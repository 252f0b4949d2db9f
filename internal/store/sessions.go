package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"levelup-backend-go/internal/models"
)

const sessionColumns = `id, username, subject, hours, date, start_time, end_time`

type SessionRepo struct {
	q sqlx.ExtContext
}

// Active returns the user's session that has not ended, or nil.
func (r SessionRepo) Active(ctx context.Context, username string) (*models.AcademicLog, error) {
	log, err := getOne[models.AcademicLog](ctx, r.q, `
SELECT `+sessionColumns+`
FROM academic_logs
WHERE username = ? AND end_time IS NULL
ORDER BY id DESC
LIMIT 1`, username)
	if err != nil {
		return nil, fmt.Errorf("active session: %w", err)
	}
	return log, nil
}

func (r SessionRepo) Create(ctx context.Context, log models.AcademicLog) (int64, error) {
	var end interface{}
	if log.EndTime != nil {
		end = log.EndTime.UTC()
	}
	var start interface{}
	if log.StartTime != nil {
		start = log.StartTime.UTC()
	}
	id, err := insertReturningID(ctx, r.q, `
INSERT INTO academic_logs (username, subject, hours, date, start_time, end_time)
VALUES (?, ?, ?, ?, ?, ?)`,
		log.Username, log.Subject, log.Hours, log.Date.UTC(), start, end)
	if err != nil {
		return 0, fmt.Errorf("create session: %w", err)
	}
	return id, nil
}

// Get returns the session with id, or nil when it does not exist.
func (r SessionRepo) Get(ctx context.Context, id int64) (*models.AcademicLog, error) {
	log, err := getOne[models.AcademicLog](ctx, r.q, `SELECT `+sessionColumns+` FROM academic_logs WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get session %d: %w", id, err)
	}
	return log, nil
}

// End records end time and hours on a running session. It reports false when the session
// has already ended.
func (r SessionRepo) End(ctx context.Context, id int64, end time.Time, hours float64) (bool, error) {
	ok, err := execOne(ctx, r.q, `
UPDATE academic_logs SET end_time = ?, hours = ?
WHERE id = ? AND end_time IS NULL`, end.UTC(), hours, id)
	if err != nil {
		return false, fmt.Errorf("end session %d: %w", id, err)
	}
	return ok, nil
}

// ListByUser returns the user's sessions, newest first.
func (r SessionRepo) ListByUser(ctx context.Context, username string) ([]models.AcademicLog, error) {
	logs := []models.AcademicLog{}
	err := sqlx.SelectContext(ctx, r.q, &logs, r.q.Rebind(`
SELECT `+sessionColumns+`
FROM academic_logs
WHERE username = ?
ORDER BY date DESC, id DESC`), username)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return logs, nil
}
