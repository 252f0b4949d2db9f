package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"levelup-backend-go/internal/config"
	"levelup-backend-go/internal/db"
	httpapi "levelup-backend-go/internal/http"
	"levelup-backend-go/internal/leaderboard"
	"levelup-backend-go/internal/logging"
	"levelup-backend-go/internal/migrations"
	"levelup-backend-go/internal/services"
	"levelup-backend-go/internal/store"
	"levelup-backend-go/internal/telemetry"
)

const leaderboardWarmSize = 1000

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config")
	}

	log, closeLogs, err := logging.Setup(cfg.LogLevel, cfg.LogDir, cfg.LogRetentionDays)
	defer closeLogs()
	if err != nil {
		log.WithError(err).Warn("log file setup failed, logging to stdout only")
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("db")
	}
	defer database.Close()
	applied, err := migrations.Apply(database)
	if err != nil {
		log.WithError(err).Fatal("migrations")
	}
	for _, name := range applied {
		log.WithField("migration", name).Info("migration applied")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := store.New(database)
	metrics := telemetry.NewMetrics()
	board := openLeaderboard(ctx, cfg, st, log)

	hub := services.NewProgressHub(log)
	go hub.Run(ctx)

	clock := services.SystemClock{}
	tokens := services.TokenService{
		Secret:     []byte(cfg.JWTSecret),
		Issuer:     cfg.JWTIssuer,
		AccessTTL:  time.Duration(cfg.AccessTTLSeconds) * time.Second,
		RefreshTTL: time.Duration(cfg.RefreshTTLSeconds) * time.Second,
	}
	leveling := services.NewLeveling(st, clock, log,
		services.WithNotifier(hub),
		services.WithScoreboard(board),
		services.WithMetrics(metrics),
	)

	server := httpapi.NewServer(cfg, log)
	server.Accounts = services.NewAccounts(st, tokens, clock, log)
	server.Leveling = leveling
	server.Quests = services.NewQuests(st, leveling, clock, log, metrics)
	server.Study = services.NewStudy(st, leveling, clock, log, metrics)
	server.Tasks = services.NewTasks(st, leveling, clock, log, metrics, services.TaskRewards{
		CreateXP: cfg.TaskCreateXP,
		DailyCap: cfg.DailyXPCap,
	})
	server.Board = board
	server.Hub = hub
	server.Metrics = metrics
	server.DB = database

	go metricsLoop(ctx, cfg, database, metrics, log)

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.Addr()).Info("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	cancel()
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(ctxShutdown)
	if closer, ok := board.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	log.Info("shutdown complete")
}

// openLeaderboard prefers Redis when configured and falls back to reading player_stats.
func openLeaderboard(ctx context.Context, cfg config.Config, st *store.Store, log logrus.FieldLogger) leaderboard.Board {
	if cfg.RedisURL == "" {
		return leaderboard.NewSQLBoard(st)
	}
	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	board, err := leaderboard.Connect(connectCtx, cfg.RedisURL, cfg.LeaderboardKey)
	if err != nil {
		log.WithError(err).Warn("redis unavailable, leaderboard reads from the database")
		return leaderboard.NewSQLBoard(st)
	}
	warmed, err := board.Warm(ctx, st, leaderboardWarmSize)
	if err != nil {
		log.WithError(err).Warn("leaderboard warm-up failed")
	} else {
		log.WithField("players", warmed).Info("leaderboard warmed")
	}
	return board
}

func metricsLoop(ctx context.Context, cfg config.Config, database *sqlx.DB, metrics *telemetry.Metrics, log logrus.FieldLogger) {
	ticker := time.NewTicker(time.Duration(cfg.MetricsSampleSeconds) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			sample := telemetry.SampleProcess(cfg.MetricsDiskPath)
			metrics.RecordSample(sample)
			metrics.RecordDBPoolStats(database.Stats())
			log.WithFields(logrus.Fields{
				"rss_bytes":   sample.ProcessRSSBytes,
				"process_cpu": sample.ProcessCPULoad,
			}).Debug("process sample")
		case <-ctx.Done():
			return
		}
	}
}
