package services

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"levelup-backend-go/internal/models"
	"levelup-backend-go/internal/store"
	"levelup-backend-go/internal/telemetry"
)

// StudyXPPerHour is the XP rate for study time.
const StudyXPPerHour = 5

type ActiveSession struct {
	ID        int64
	Subject   string
	StartTime time.Time
}

type SessionEnd struct {
	ID        int64
	Username  string
	Subject   string
	Hours     float64
	XPAwarded int
	// Award is nil when no XP was due or the award failed.
	Award *AwardResult
}

type Study struct {
	store    *store.Store
	leveling *Leveling
	clock    Clock
	log      logrus.FieldLogger
	metrics  *telemetry.Metrics
	locks    *userLocks
}

func NewStudy(s *store.Store, leveling *Leveling, clock Clock, log logrus.FieldLogger, metrics *telemetry.Metrics) *Study {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Study{store: s, leveling: leveling, clock: clock, log: log, metrics: metrics, locks: newUserLocks()}
}

// StartSession opens a session for subject. If the user already has an active session,
// of any subject, its id is returned instead.
func (s *Study) StartSession(ctx context.Context, username, subject string) (int64, error) {
	username = strings.TrimSpace(username)
	subject = strings.TrimSpace(subject)
	if username == "" || subject == "" {
		return 0, ErrBadRequest("username and subject are required")
	}
	unlock := s.locks.lock(username)
	defer unlock()

	now := s.clock.Now().UTC()
	var id int64
	err := s.store.WithTx(ctx, func(r store.Repos) error {
		active, err := r.Sessions.Active(ctx, username)
		if err != nil {
			return err
		}
		if active != nil {
			id = active.ID
			return nil
		}
		id, err = r.Sessions.Create(ctx, models.AcademicLog{
			Username:  username,
			Subject:   subject,
			Date:      now,
			StartTime: &now,
		})
		return err
	})
	if err != nil && store.IsUniqueViolation(err) {
		// another process opened a session first
		active, lookupErr := s.store.Repos().Sessions.Active(ctx, username)
		if lookupErr == nil && active != nil {
			return active.ID, nil
		}
	}
	if err != nil {
		return 0, ErrPersistence("could not start session", err)
	}
	return id, nil
}

// EndSession closes a running session and grants XP for its duration.
func (s *Study) EndSession(ctx context.Context, sessionID int64) (SessionEnd, error) {
	return s.endSession(ctx, "", sessionID)
}

// EndOwnedSession is EndSession restricted to sessions owned by username.
func (s *Study) EndOwnedSession(ctx context.Context, username string, sessionID int64) (SessionEnd, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return SessionEnd{}, ErrBadRequest("username is required")
	}
	return s.endSession(ctx, username, sessionID)
}

func (s *Study) endSession(ctx context.Context, owner string, sessionID int64) (SessionEnd, error) {
	if sessionID <= 0 {
		return SessionEnd{}, ErrBadRequest("missing session id")
	}
	now := s.clock.Now().UTC()
	var (
		ended    SessionEnd
		rawHours float64
	)
	err := s.store.WithTx(ctx, func(r store.Repos) error {
		session, err := r.Sessions.Get(ctx, sessionID)
		if err != nil {
			return err
		}
		if session == nil {
			return ErrNotFound("session not found")
		}
		if owner != "" && session.Username != owner {
			return ErrForbidden("session belongs to another user")
		}
		if !session.Active() {
			return ErrAlreadyTerminal("session already ended")
		}
		if session.StartTime == nil {
			return ErrBadRequest("session has no start time")
		}
		rawHours = math.Max(0, now.Sub(*session.StartTime).Hours())
		hours := roundHours(rawHours)
		ok, err := r.Sessions.End(ctx, sessionID, now, hours)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyTerminal("session already ended")
		}
		ended = SessionEnd{
			ID:        sessionID,
			Username:  session.Username,
			Subject:   session.Subject,
			Hours:     hours,
			XPAwarded: studyXP(rawHours),
		}
		return nil
	})
	if err != nil {
		return SessionEnd{}, ErrPersistence("could not end session", err)
	}
	s.finish(ctx, &ended, now)
	return ended, nil
}

// LogHours records a finished study block of the given length and grants XP for it.
func (s *Study) LogHours(ctx context.Context, username, subject string, hours float64) (SessionEnd, error) {
	username = strings.TrimSpace(username)
	subject = strings.TrimSpace(subject)
	if username == "" || subject == "" {
		return SessionEnd{}, ErrBadRequest("username and subject are required")
	}
	if math.IsNaN(hours) || math.IsInf(hours, 0) || hours <= 0 {
		return SessionEnd{}, ErrBadRequest("hours must be positive")
	}
	if hours > 24 {
		return SessionEnd{}, ErrBadRequest("hours cannot exceed 24")
	}
	now := s.clock.Now().UTC()
	start := now.Add(-time.Duration(hours * float64(time.Hour)))
	rounded := roundHours(hours)
	id, err := s.store.Repos().Sessions.Create(ctx, models.AcademicLog{
		Username:  username,
		Subject:   subject,
		Hours:     rounded,
		Date:      now,
		StartTime: &start,
		EndTime:   &now,
	})
	if err != nil {
		return SessionEnd{}, ErrPersistence("could not log hours", err)
	}
	logged := SessionEnd{
		ID:        id,
		Username:  username,
		Subject:   subject,
		Hours:     rounded,
		XPAwarded: studyXP(hours),
	}
	s.finish(ctx, &logged, now)
	return logged, nil
}

func (s *Study) finish(ctx context.Context, ended *SessionEnd, now time.Time) {
	s.metrics.SessionEnded(ended.Hours)
	if ended.XPAwarded > 0 {
		award, err := s.leveling.AwardXP(ctx, ended.Username, ended.XPAwarded)
		if err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"username":   ended.Username,
				"session_id": ended.ID,
			}).Warn("study xp not granted")
		} else {
			ended.Award = &award
		}
	}
	event := ProgressEvent{
		Type:     EventSessionEnded,
		Username: ended.Username,
		Delta:    ended.XPAwarded,
		Source:   ended.Subject,
		At:       now,
	}
	fillProgress(ctx, s.store, &event, ended.Award)
	event.Delta = ended.XPAwarded
	s.leveling.notify.Publish(event)
}

// ListSessions returns the user's sessions, newest first.
func (s *Study) ListSessions(ctx context.Context, username string) ([]models.AcademicLog, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrBadRequest("username is required")
	}
	logs, err := s.store.Repos().Sessions.ListByUser(ctx, username)
	if err != nil {
		return nil, ErrPersistence("could not list sessions", err)
	}
	return logs, nil
}

// GetActiveSession returns nil when the user has no running session.
func (s *Study) GetActiveSession(ctx context.Context, username string) (*ActiveSession, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrBadRequest("username is required")
	}
	active, err := s.store.Repos().Sessions.Active(ctx, username)
	if err != nil {
		return nil, ErrPersistence("could not load active session", err)
	}
	if active == nil {
		return nil, nil
	}
	session := &ActiveSession{ID: active.ID, Subject: active.Subject}
	if active.StartTime != nil {
		session.StartTime = *active.StartTime
	}
	return session, nil
}

func roundHours(hours float64) float64 {
	return decimal.NewFromFloat(hours).Round(2).InexactFloat64()
}

// studyXP uses the unrounded hours.
func studyXP(hours float64) int {
	xp := math.Floor(hours * StudyXPPerHour)
	if xp < 0 {
		return 0
	}
	return int(xp)
}
