package models

import "time"

type User struct {
	ID           int64      `db:"id"`
	Username     string     `db:"username"`
	PasswordHash string     `db:"password_hash"`
	CreatedAt    time.Time  `db:"created_at"`
	LastLoginAt  *time.Time `db:"last_login_at"`
}

// PlayerStats is the per-user progression record. Stats start at 1 and grow by one per level.
type PlayerStats struct {
	ID        int64     `db:"id"`
	Username  string    `db:"username"`
	XP        int       `db:"xp"`
	Level     int       `db:"level"`
	Strength  int       `db:"strength"`
	Memory    int       `db:"memory"`
	Stamina   int       `db:"stamina"`
	UpdatedAt time.Time `db:"updated_at"`
}

// NewPlayerStats returns the unsaved default record for username.
func NewPlayerStats(username string) PlayerStats {
	return PlayerStats{
		Username: username,
		Strength: 1,
		Memory:   1,
		Stamina:  1,
	}
}

type Quest struct {
	ID              int64      `db:"id"`
	Username        string     `db:"username"`
	Title           string     `db:"title"`
	Description     string     `db:"description"`
	RewardXP        int        `db:"reward_xp"`
	Completed       bool       `db:"completed"`
	CreatedAt       time.Time  `db:"created_at"`
	StartTime       *time.Time `db:"start_time"`
	DurationSeconds *int       `db:"duration_seconds"`
}

// HasTimer reports whether the quest has been started.
func (q Quest) HasTimer() bool {
	return q.StartTime != nil && q.DurationSeconds != nil
}

type AcademicLog struct {
	ID        int64      `db:"id"`
	Username  string     `db:"username"`
	Subject   string     `db:"subject"`
	Hours     float64    `db:"hours"`
	Date      time.Time  `db:"date"`
	StartTime *time.Time `db:"start_time"`
	EndTime   *time.Time `db:"end_time"`
}

// Active reports whether the session is still running.
func (l AcademicLog) Active() bool {
	return l.EndTime == nil
}

type Task struct {
	ID          int64     `db:"id"`
	Username    string    `db:"username"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	IsDone      bool      `db:"is_done"`
	XP          int       `db:"xp"`
	CreatedAt   time.Time `db:"created_at"`
}

type DailyXP struct {
	Username string `db:"username"`
	Day      string `db:"day"`
	Awarded  int    `db:"awarded"`
}
