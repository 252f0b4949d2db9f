// Package leaderboard ranks players by lifetime XP. RedisBoard keeps a sorted set that is
// updated after every award; SQLBoard reads the player table directly.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"levelup-backend-go/internal/services"
	"levelup-backend-go/internal/store"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

var ErrUsernameEmpty = errors.New("username is required")

type Entry struct {
	Rank     int    `json:"rank"`
	Username string `json:"username"`
	XP       int    `json:"xp"`
	Level    int    `json:"level"`
}

// Board is a ranking that can be updated and read.
type Board interface {
	Record(ctx context.Context, username string, xp int) error
	Top(ctx context.Context, limit int) ([]Entry, error)
}

// ClampLimit keeps limit within 1..MaxLimit, using DefaultLimit for non-positive values.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

type RedisBoard struct {
	client *redis.Client
	key    string
}

func NewRedisBoard(client *redis.Client, key string) *RedisBoard {
	if strings.TrimSpace(key) == "" {
		key = "levelup:leaderboard"
	}
	return &RedisBoard{client: client, key: key}
}

// Connect parses url, pings the server and returns a board using key.
func Connect(ctx context.Context, url, key string) (*RedisBoard, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisBoard(client, key), nil
}

func (b *RedisBoard) Record(ctx context.Context, username string, xp int) error {
	if username == "" {
		return ErrUsernameEmpty
	}
	return b.client.ZAdd(ctx, b.key, redis.Z{
		Score:  float64(xp),
		Member: username,
	}).Err()
}

func (b *RedisBoard) Top(ctx context.Context, limit int) ([]Entry, error) {
	limit = ClampLimit(limit)
	members, err := b.client.ZRevRangeWithScores(ctx, b.key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(members))
	for i, member := range members {
		username, _ := member.Member.(string)
		xp := int(member.Score)
		entries = append(entries, Entry{
			Rank:     i + 1,
			Username: username,
			XP:       xp,
			Level:    services.LevelForXP(xp),
		})
	}
	return entries, nil
}

// Warm copies the top players from the database into the sorted set.
func (b *RedisBoard) Warm(ctx context.Context, s *store.Store, limit int) (int, error) {
	players, err := s.Repos().Players.Top(ctx, limit)
	if err != nil {
		return 0, err
	}
	if len(players) == 0 {
		return 0, nil
	}
	members := make([]redis.Z, 0, len(players))
	for _, p := range players {
		members = append(members, redis.Z{Score: float64(p.XP), Member: p.Username})
	}
	if err := b.client.ZAdd(ctx, b.key, members...).Err(); err != nil {
		return 0, err
	}
	return len(members), nil
}

func (b *RedisBoard) Close() error {
	return b.client.Close()
}

// SQLBoard ranks straight from player_stats. Record is a no-op since awards already
// write the table.
type SQLBoard struct {
	store *store.Store
}

func NewSQLBoard(s *store.Store) *SQLBoard {
	return &SQLBoard{store: s}
}

func (b *SQLBoard) Record(context.Context, string, int) error {
	return nil
}

func (b *SQLBoard) Top(ctx context.Context, limit int) ([]Entry, error) {
	players, err := b.store.Repos().Players.Top(ctx, ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(players))
	for i, p := range players {
		entries = append(entries, Entry{Rank: i + 1, Username: p.Username, XP: p.XP, Level: p.Level})
	}
	return entries, nil
}
