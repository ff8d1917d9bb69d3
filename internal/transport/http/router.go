// Package httptransport assembles the HTTP surface: the shared middleware
// chain, public ops endpoints and the authenticated module routes.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"

	"zimmet/internal/platform/metrics"
	latency "zimmet/internal/platform/middleware"
	"zimmet/pkg/platform/httputil"
	"zimmet/pkg/platform/middleware/auth"
	"zimmet/pkg/platform/middleware/device"
	"zimmet/pkg/platform/middleware/metadata"
	request "zimmet/pkg/platform/middleware/request"
	"zimmet/pkg/platform/middleware/requesttime"
)

// Registrar is implemented by every module handler.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck reports whether one backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Deps are the collaborators the router needs.
type Deps struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	Tokens         auth.TokenValidator
	Principals     auth.PrincipalResolver
	AllowedOrigins []string
	HealthChecks   map[string]HealthCheck
	// WebSocket is mounted at /ws behind authentication when set.
	WebSocket http.Handler
	Modules   []Registrar
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(request.RequestID)
	r.Use(request.Recovery(d.Logger))
	r.Use(request.Logger(d.Logger))
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(device.Middleware)
	r.Use(latency.Latency(d.Metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", request.HeaderRequestID},
		ExposedHeaders: []string{request.HeaderRequestID},
		MaxAge:         300,
	}))

	r.Get("/healthz", healthz(d.HealthChecks))
	if d.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(d.Gatherer))
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(d.Tokens, d.Principals, d.Logger))
		for _, m := range d.Modules {
			m.Register(r)
		}
		if d.WebSocket != nil {
			r.Handle("/ws", d.WebSocket)
		}
	})
	return r
}

func healthz(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		report := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				report["status"] = "degraded"
				report[name] = "unavailable"
				continue
			}
			report[name] = "ok"
		}
		httputil.WriteJSON(w, status, report)
	}
}
