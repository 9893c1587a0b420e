package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/medgrid/opd-token-queue/internal/token"
)

type RouterConfig struct {
	Service        *token.Service
	PgPool         *pgxpool.Pool
	Redis          *redis.Client
	Log            zerolog.Logger
	Env            string
	Version        string
	RateLimitRPS   float64
	RateLimitBurst int
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))
	r.Use(RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/doctors", createDoctorHandler(cfg.Service))

	r.Post("/slots", createSlotHandler(cfg.Service))
	r.Get("/slots/{id}/queue", queueHandler(cfg.Service))
	r.Get("/slots/{id}/capacity-release", capacityReleaseHandler(cfg.Service))
	r.Post("/slots/{id}/complete", completeSlotHandler(cfg.Service))
	r.Post("/slots/{id}/delay", delaySlotHandler(cfg.Service))

	r.Post("/tokens", allocateTokenHandler(cfg.Service))
	r.Post("/tokens/{id}/cancel", cancelTokenHandler(cfg.Service))
	r.Post("/tokens/{id}/no-show", noShowTokenHandler(cfg.Service))

	return r
}
