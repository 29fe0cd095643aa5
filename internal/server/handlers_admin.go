package server

import (
	"net/http"

	"github.com/sobersavings/sobersavings/internal/store"
)

// handleHealthz is a liveness probe.
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz is a readiness probe checking database connectivity.
func handleReadyz(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := st.Ping(); err != nil {
			respondError(w, http.StatusServiceUnavailable, "database not ready")
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// handleStatus reports version and per-plan user counts.
func handleStatus(st *store.Store, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := st.CountByPlan()
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to load status")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"version": version,
			"users":   counts,
		})
	}
}
