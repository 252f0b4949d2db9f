package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"levelup-backend-go/internal/store"
)

const (
	maxUsernameLength = 100
	minPasswordLength = 6
)

type Accounts struct {
	store  *store.Store
	tokens TokenService
	clock  Clock
	log    logrus.FieldLogger
}

func NewAccounts(s *store.Store, tokens TokenService, clock Clock, log logrus.FieldLogger) *Accounts {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Accounts{store: s, tokens: tokens, clock: clock, log: log}
}

// Register creates the account, its player record and the starter quests in one transaction.
func (a *Accounts) Register(ctx context.Context, username, password string) (TokenPair, error) {
	username = strings.TrimSpace(username)
	if username == "" || strings.TrimSpace(password) == "" {
		return TokenPair{}, ErrBadRequest("username and password are required")
	}
	if utf8.RuneCountInString(username) > maxUsernameLength {
		return TokenPair{}, ErrBadRequest("username is too long")
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return TokenPair{}, ErrBadRequest("password is too short")
	}
	hash, err := a.tokens.HashPassword(password)
	if err != nil {
		return TokenPair{}, ErrPersistence("could not hash password", err)
	}
	now := a.clock.Now().UTC()
	err = a.store.WithTx(ctx, func(r store.Repos) error {
		existing, err := r.Users.FindByUsername(ctx, username)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrConflict("username already taken")
		}
		if _, err := r.Users.Create(ctx, username, hash, now); err != nil {
			if store.IsUniqueViolation(err) {
				return ErrConflict("username already taken")
			}
			return err
		}
		if _, err := r.Players.CreateDefault(ctx, username, now); err != nil {
			return err
		}
		_, err = seedSampleQuests(ctx, r, username, now)
		return WrapError(err, "seed quests")
	})
	if err != nil {
		return TokenPair{}, ErrPersistence("could not register", err)
	}
	a.log.WithField("username", username).Info("user registered")
	return a.issue(username)
}

func (a *Accounts) Login(ctx context.Context, username, password string) (TokenPair, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return TokenPair{}, ErrUnauthorized("Authentication failed")
	}
	user, err := a.store.Repos().Users.FindByUsername(ctx, username)
	if err != nil {
		return TokenPair{}, ErrPersistence("could not load user", err)
	}
	if user == nil || !a.tokens.VerifyPassword(password, user.PasswordHash) {
		return TokenPair{}, ErrUnauthorized("Authentication failed")
	}
	if err := a.store.Repos().Users.SetLastLogin(ctx, user.Username, a.clock.Now()); err != nil {
		a.log.WithError(err).WithField("username", user.Username).Warn("last login not recorded")
	}
	return a.issue(user.Username)
}

// Refresh exchanges a valid refresh token for a new pair.
func (a *Accounts) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	username, err := a.tokens.Subject(refreshToken, TokenTypeRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	user, err := a.store.Repos().Users.FindByUsername(ctx, username)
	if err != nil {
		return TokenPair{}, ErrPersistence("could not load user", err)
	}
	if user == nil {
		return TokenPair{}, ErrUnauthorized("Authentication failed")
	}
	return a.issue(username)
}

// Authenticate resolves an access token to its username.
func (a *Accounts) Authenticate(accessToken string) (string, error) {
	return a.tokens.Subject(accessToken, TokenTypeAccess)
}

func (a *Accounts) issue(username string) (TokenPair, error) {
	pair, err := a.tokens.IssuePair(username)
	if err != nil {
		return TokenPair{}, ErrPersistence("could not issue tokens", err)
	}
	return pair, nil
}
