package db

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

func init() {
	// modernc registers as "sqlite", which sqlx does not know; it takes ? placeholders.
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Open connects to the database named by dsn. postgres:// and postgresql:// URLs use pgx,
// sqlite:// URLs (or sqlite:path) use the embedded SQLite driver.
func Open(dsn string) (*sqlx.DB, error) {
	driver, source, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(driver, source)
	if err != nil {
		return nil, err
	}
	switch driver {
	case DriverSQLite:
		db.SetMaxOpenConns(1)
	default:
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ParseDSN resolves the driver name and driver-specific source for a database URL.
func ParseDSN(dsn string) (string, string, error) {
	raw := strings.TrimSpace(dsn)
	if raw == "" {
		return "", "", errors.New("database url is required")
	}
	lower := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DriverPostgres, raw, nil
	case strings.HasPrefix(lower, "sqlite://"):
		return DriverSQLite, sqliteSource(raw[len("sqlite://"):]), nil
	case strings.HasPrefix(lower, "sqlite:"):
		return DriverSQLite, sqliteSource(raw[len("sqlite:"):]), nil
	default:
		return "", "", fmt.Errorf("unsupported database url scheme: %q", schemeOf(raw))
	}
}

func sqliteSource(path string) string {
	params := url.Values{}
	params.Add("_pragma", "busy_timeout(5000)")
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_time_format", "sqlite")
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + params.Encode()
}

func schemeOf(raw string) string {
	if idx := strings.Index(raw, ":"); idx > 0 {
		return raw[:idx]
	}
	return raw
}
