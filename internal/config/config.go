package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config holds runtime configuration loaded from environment variables.
type Config struct {
	Port                 string   `env:"PORT" envDefault:"8080"`
	DatabaseURL          string   `env:"DATABASE_URL,required,notEmpty"`
	JWTSecret            string   `env:"JWT_SECRET,required,notEmpty"`
	JWTIssuer            string   `env:"JWT_ISSUER" envDefault:"levelup"`
	AccessTTLSeconds     int64    `env:"ACCESS_TTL_SECONDS" envDefault:"14400"`
	RefreshTTLSeconds    int64    `env:"REFRESH_TTL_SECONDS" envDefault:"1209600"`
	CorsOrigins          []string `env:"CORS_ORIGINS" envSeparator:","`
	LogDir               string   `env:"LOG_DIR" envDefault:"storage/logs"`
	LogLevel             string   `env:"LOG_LEVEL" envDefault:"info"`
	LogRetentionDays     int      `env:"LOG_RETENTION_DAYS" envDefault:"7"`
	DailyXPCap           int      `env:"DAILY_XP_CAP" envDefault:"100"`
	TaskCreateXP         int      `env:"TASK_CREATE_XP" envDefault:"10"`
	MetricsSampleSeconds int      `env:"METRICS_SAMPLE_INTERVAL" envDefault:"15"`
	MetricsDiskPath      string   `env:"METRICS_DISK_PATH" envDefault:"/"`
	RedisURL             string   `env:"REDIS_URL"`
	LeaderboardKey       string   `env:"LEADERBOARD_KEY" envDefault:"levelup:leaderboard"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.CorsOrigins = cleanList(cfg.CorsOrigins)
	if cfg.LogRetentionDays <= 0 || cfg.LogRetentionDays > 7 {
		cfg.LogRetentionDays = 7
	}
	if cfg.MetricsSampleSeconds <= 0 {
		cfg.MetricsSampleSeconds = 15
	}
	if cfg.TaskCreateXP < 0 {
		cfg.TaskCreateXP = 0
	}
	return cfg, nil
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + strings.TrimPrefix(strings.TrimSpace(c.Port), ":")
}

func cleanList(raw []string) []string {
	if len(raw) == 0 {
		return nil
	}
	items := make([]string, 0, len(raw))
	for _, part := range raw {
		value := strings.TrimSpace(part)
		if value != "" {
			items = append(items, value)
		}
	}
	if len(items) == 0 {
		return nil
	}
	return items
}
