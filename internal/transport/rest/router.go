package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/elik56a/orderflow/internal/obsmetrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RouterDeps struct {
	Handler *Handler
	DBPool  *pgxpool.Pool
}

// NewRouter wires the HTTP surface: request-id and structured-logging
// middleware, panic recovery, health/readiness/metrics endpoints, and the
// order-intake API. Rate limiting and auth sit outside this service's
// scope and are intentionally not mounted here.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(HTTPLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", handleHealthz)
	r.Get("/readyz", handleReadyz(deps.DBPool))
	r.Get("/metrics", obsmetrics.Handler().ServeHTTP)

	r.Route("/api/v1", func(api chi.Router) {
		api.Post("/orders", deps.Handler.CreateOrder)
	})

	return r
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz reports whether the database dependency is reachable.
func handleReadyz(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{"database": "ok"}
		status := http.StatusOK

		if pool != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := pool.Ping(ctx); err != nil {
				checks["database"] = "unreachable"
				status = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(status)
		body := `{"checks":{"database":"` + checks["database"] + `"}}`
		_, _ = w.Write([]byte(body))
	}
}
