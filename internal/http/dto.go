package httpapi

import (
	"time"

	"levelup-backend-go/internal/models"
	"levelup-backend-go/internal/services"
)

type RegisterRequest struct {
	Username string `json:"username" validate:"required,notblank,max=100"`
	Password string `json:"password" validate:"required,min=6,max=200"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required,notblank"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    int64  `json:"expiresAt"`
	Username     string `json:"username,omitempty"`
}

func tokenResponse(pair services.TokenPair, username string) TokenResponse {
	return TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
		Username:     username,
	}
}

type PlayerDTO struct {
	Username    string `json:"username"`
	XP          int    `json:"xp"`
	Level       int    `json:"level"`
	NextLevelXP int    `json:"nextLevelXp"`
	Strength    int    `json:"strength"`
	Memory      int    `json:"memory"`
	Stamina     int    `json:"stamina"`
}

func playerDTO(p models.PlayerStats) PlayerDTO {
	return PlayerDTO{
		Username:    p.Username,
		XP:          p.XP,
		Level:       p.Level,
		NextLevelXP: services.RequiredXPFor(p.Level),
		Strength:    p.Strength,
		Memory:      p.Memory,
		Stamina:     p.Stamina,
	}
}

type CreateQuestRequest struct {
	Title       string `json:"title" validate:"required,notblank,max=200"`
	Description string `json:"description" validate:"max=2000"`
	RewardXP    *int   `json:"rewardXp" validate:"omitempty,min=1,max=10000"`
}

type StartQuestRequest struct {
	DurationMinutes *float64 `json:"durationMinutes" validate:"required"`
}

type QuestDTO struct {
	ID               int64      `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	RewardXP         int        `json:"rewardXp"`
	Completed        bool       `json:"completed"`
	CreatedAt        time.Time  `json:"createdAt"`
	StartTime        *time.Time `json:"startTime"`
	DurationSeconds  *int       `json:"durationSeconds"`
	RemainingSeconds *int       `json:"remainingSeconds"`
}

func questDTO(q services.QuestView) QuestDTO {
	return QuestDTO{
		ID:               q.ID,
		Title:            q.Title,
		Description:      q.Description,
		RewardXP:         q.RewardXP,
		Completed:        q.Completed,
		CreatedAt:        q.CreatedAt,
		StartTime:        q.StartTime,
		DurationSeconds:  q.DurationSeconds,
		RemainingSeconds: q.RemainingSeconds,
	}
}

type QuestCompletionDTO struct {
	QuestID  int64                 `json:"questId"`
	RewardXP int                   `json:"rewardXp"`
	Award    *services.AwardResult `json:"award"`
}

type StartSessionRequest struct {
	Subject string `json:"subject" validate:"required,notblank,max=200"`
}

type LogHoursRequest struct {
	Subject string   `json:"subject" validate:"required,notblank,max=200"`
	Hours   *float64 `json:"hours" validate:"required"`
}

type SessionDTO struct {
	ID        int64      `json:"id"`
	Subject   string     `json:"subject"`
	Hours     float64    `json:"hours"`
	Date      time.Time  `json:"date"`
	StartTime *time.Time `json:"startTime"`
	EndTime   *time.Time `json:"endTime"`
	Active    bool       `json:"active"`
}

func sessionDTO(l models.AcademicLog) SessionDTO {
	return SessionDTO{
		ID:        l.ID,
		Subject:   l.Subject,
		Hours:     l.Hours,
		Date:      l.Date,
		StartTime: l.StartTime,
		EndTime:   l.EndTime,
		Active:    l.Active(),
	}
}

type ActiveSessionDTO struct {
	ID        int64     `json:"id"`
	Subject   string    `json:"subject"`
	StartTime time.Time `json:"startTime"`
}

type SessionEndDTO struct {
	ID        int64                 `json:"id"`
	Subject   string                `json:"subject"`
	Hours     float64               `json:"hours"`
	XPAwarded int                   `json:"xpAwarded"`
	Award     *services.AwardResult `json:"award"`
}

func sessionEndDTO(e services.SessionEnd) SessionEndDTO {
	return SessionEndDTO{
		ID:        e.ID,
		Subject:   e.Subject,
		Hours:     e.Hours,
		XPAwarded: e.XPAwarded,
		Award:     e.Award,
	}
}

type CreateTaskRequest struct {
	Title       string `json:"title" validate:"required,notblank,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

type TaskDTO struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	IsDone      bool      `json:"isDone"`
	XP          int       `json:"xp"`
	CreatedAt   time.Time `json:"createdAt"`
}

func taskDTO(t models.Task) TaskDTO {
	return TaskDTO{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		IsDone:      t.IsDone,
		XP:          t.XP,
		CreatedAt:   t.CreatedAt,
	}
}

type TaskResultDTO struct {
	Task  TaskDTO               `json:"task"`
	Award *services.AwardResult `json:"award"`
}

type IDResponse struct {
	ID int64 `json:"id"`
}

type ItemsResponse[T any] struct {
	Items []T `json:"items"`
}
