// Package store holds the SQL repositories for players, quests, study sessions, tasks,
// accounts and the daily XP ledger. Queries are written with ? placeholders and rebound
// for the connection's driver.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// ErrNoRowsAffected is returned by writes that expected to touch exactly one row.
var ErrNoRowsAffected = errors.New("no rows affected")

type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Repos bundles the repositories bound to one executor, either the pool or a transaction.
type Repos struct {
	Players  PlayerRepo
	Quests   QuestRepo
	Sessions SessionRepo
	Tasks    TaskRepo
	Users    UserRepo
	DailyXP  DailyXPRepo
}

func newRepos(q sqlx.ExtContext) Repos {
	return Repos{
		Players:  PlayerRepo{q: q},
		Quests:   QuestRepo{q: q},
		Sessions: SessionRepo{q: q},
		Tasks:    TaskRepo{q: q},
		Users:    UserRepo{q: q},
		DailyXP:  DailyXPRepo{q: q},
	}
}

// Repos returns repositories that run outside any transaction.
// With SQLite the pool holds a single connection, so do not call these while a WithTx is open.
func (s *Store) Repos() Repos {
	return newRepos(s.db)
}

// WithTx runs fn inside a transaction. The transaction commits when fn returns nil and
// rolls back otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(Repos) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(newRepos(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

// IsUniqueViolation reports whether err comes from a unique or primary key constraint.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func getOne[T any](ctx context.Context, q sqlx.ExtContext, query string, args ...interface{}) (*T, error) {
	var item T
	err := sqlx.GetContext(ctx, q, &item, q.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func execOne(ctx context.Context, q sqlx.ExtContext, query string, args ...interface{}) (bool, error) {
	res, err := q.ExecContext(ctx, q.Rebind(query), args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func insertReturningID(ctx context.Context, q sqlx.ExtContext, query string, args ...interface{}) (int64, error) {
	var id int64
	if err := sqlx.GetContext(ctx, q, &id, q.Rebind(query+" RETURNING id"), args...); err != nil {
		return 0, err
	}
	return id, nil
}
