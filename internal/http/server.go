package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"levelup-backend-go/internal/config"
	"levelup-backend-go/internal/leaderboard"
	"levelup-backend-go/internal/services"
	"levelup-backend-go/internal/telemetry"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Server struct {
	Config   config.Config
	Accounts *services.Accounts
	Leveling *services.Leveling
	Quests   *services.Quests
	Study    *services.Study
	Tasks    *services.Tasks
	Board    leaderboard.Board
	Hub      *services.ProgressHub
	Metrics  *telemetry.Metrics
	DB       Pinger
	Log      logrus.FieldLogger

	validate *validator.Validate
}

func NewServer(cfg config.Config, log logrus.FieldLogger) *Server {
	return &Server{
		Config:   cfg,
		Log:      log,
		validate: newValidator(),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(RequestLogger(s.Log))
	r.Use(middleware.Recoverer)
	r.Use(RequestMetrics(s.Metrics))
	if len(s.Config.CorsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.Config.CorsOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{RequestIDHeader},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", s.Health)
	r.Handle("/metrics", s.Metrics.Handler())
	r.Get("/ws/progress", s.ProgressSocket)

	r.Route("/api", func(api chi.Router) {
		api.Post("/auth/register", s.Register)
		api.Post("/auth/login", s.Login)
		api.Post("/auth/refresh", s.Refresh)
		api.Post("/auth/logout", s.Logout)

		api.Group(func(authed chi.Router) {
			authed.Use(WithAuth(s.Accounts))

			authed.Route("/me", func(me chi.Router) {
				me.Get("/stats", s.MyStats)
				me.Post("/stats/reset", s.ResetMyStats)
			})

			authed.Route("/quests", func(quests chi.Router) {
				quests.Get("/", s.ListQuests)
				quests.Post("/", s.CreateQuest)
				quests.Post("/{questId}/start", s.StartQuest)
				quests.Post("/{questId}/complete", s.CompleteQuest)
				quests.Get("/{questId}/remaining", s.QuestRemaining)
			})

			authed.Route("/study", func(study chi.Router) {
				study.Get("/sessions", s.ListSessions)
				study.Post("/sessions", s.StartSession)
				study.Get("/sessions/active", s.ActiveSession)
				study.Post("/sessions/{sessionId}/end", s.EndSession)
				study.Post("/logs", s.LogStudyHours)
			})

			authed.Route("/tasks", func(tasks chi.Router) {
				tasks.Get("/", s.ListTasks)
				tasks.Post("/", s.AddTask)
				tasks.Post("/{taskId}/complete", s.CompleteTask)
			})

			authed.Get("/leaderboard", s.Leaderboard)
		})
	})
	return r
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	if s.DB != nil {
		if err := s.DB.PingContext(r.Context()); err != nil {
			s.Log.WithError(err).Warn("health check failed")
			WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
