package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/vetdesk/waiting-room/internal/waitingroom"
)

type RouterConfig struct {
	Engine  *waitingroom.Authorized
	Metrics *waitingroom.Metrics
	Search  *waitingroom.Search
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(CapabilityMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Waiting-room entries
	r.Post("/entries", admitHandler(cfg.Engine))
	r.Get("/entries/{id}", getEntryHandler(cfg.Engine))
	r.Post("/entries/{id}/start", startHandler(cfg.Engine))
	r.Post("/entries/{id}/complete", completeHandler(cfg.Engine))
	r.Post("/entries/{id}/cancel", cancelHandler(cfg.Engine))
	r.Patch("/entries/{id}/priority", setPriorityHandler(cfg.Engine))
	r.Post("/entries/{id}/notes", appendNoteHandler(cfg.Engine))
	r.Delete("/entries/{id}", deleteEntryHandler(cfg.Engine))
	r.Get("/queue", queueHandler(cfg.Engine))

	// Dashboard metrics
	r.Get("/metrics/status-counts", statusCountsHandler(cfg.Metrics))
	r.Get("/metrics/average-wait", averageWaitHandler(cfg.Metrics))

	// Read-only views
	r.Get("/search", searchHandler(cfg.Search))
	r.Get("/history", historyHandler(cfg.Search))

	return r
}
