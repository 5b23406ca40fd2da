package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"minex/internal/config"
	"minex/internal/models"
	"minex/internal/monitoring"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var log = config.InitLogger()

type Pinger interface {
	Ping(ctx context.Context) error
}

type StatusProvider interface {
	Status(ctx context.Context) (*models.SchedulerStatus, error)
}

// NewOpsRouter serves health, metrics and scheduler status. db may be nil for the in-memory store.
func NewOpsRouter(db Pinger, scheduler StatusProvider) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(countRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				log.Error("Health check failed: ", err)
				writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": "database unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/scheduler/status", func(w http.ResponseWriter, r *http.Request) {
		status, err := scheduler.Status(r.Context())
		if err != nil {
			log.Error("Scheduler status: ", err)
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "status unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, status)
	})

	return r
}

func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		monitoring.HttpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(ww.Status())).Inc()
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Error writing response: ", err)
	}
}
