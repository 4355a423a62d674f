package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/example/uidcheckbot/auditlog"
	"github.com/example/uidcheckbot/config"
	"github.com/example/uidcheckbot/db"
	"github.com/example/uidcheckbot/logger"
)

// Start serves the operational HTTP endpoints: liveness, verification
// statistics and the recent audit trail.
func Start(cfg *config.Config, database *db.DB, audit *auditlog.DB) error {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := database.PingContext(req.Context()); err != nil {
			http.Error(w, "db unreachable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})

	r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
		stats, err := database.Stats(req.Context(), cfg.MinBalance)
		if err != nil {
			logger.Log.Errorw("stats endpoint", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	})

	r.Get("/events", func(w http.ResponseWriter, req *http.Request) {
		entries, err := audit.Recent(req.Context(), 50)
		if err != nil {
			logger.Log.Errorw("events endpoint", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entries)
	})

	logger.Log.Infow("http server listening", "addr", cfg.HTTPAddress)
	return http.ListenAndServe(cfg.HTTPAddress, r)
}
