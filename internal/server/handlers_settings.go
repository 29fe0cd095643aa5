package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sobersavings/sobersavings/internal/store"
)

type settingsRequest struct {
	DailyTarget int64     `json:"daily_target"`
	StartDate   time.Time `json:"start_date"`
	Currency    string    `json:"currency"`
}

// handleSettings serves and updates the user's sobriety-tracking settings.
func handleSettings(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())

		switch r.Method {
		case http.MethodGet:
			settings, err := st.GetSettings(user.ID)
			if err != nil {
				log.Error().Err(err).Int64("user_id", user.ID).Msg("load settings failed")
				respondError(w, http.StatusInternalServerError, "failed to load settings")
				return
			}
			respondJSON(w, http.StatusOK, settings)

		case http.MethodPut:
			r.Body = http.MaxBytesReader(w, r.Body, loginRequestBodyLimit)
			var req settingsRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				respondError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			if req.DailyTarget < 0 {
				respondError(w, http.StatusBadRequest, "daily_target must not be negative")
				return
			}
			if req.StartDate.IsZero() {
				respondError(w, http.StatusBadRequest, "start_date is required")
				return
			}
			currency := strings.TrimSpace(req.Currency)
			if currency == "" {
				currency = "¥"
			}

			settings, err := st.UpdateSettings(user.ID, req.DailyTarget, req.StartDate, currency)
			if err != nil {
				log.Error().Err(err).Int64("user_id", user.ID).Msg("update settings failed")
				respondError(w, http.StatusInternalServerError, "failed to update settings")
				return
			}
			respondJSON(w, http.StatusOK, settings)

		default:
			methodNotAllowed(w)
		}
	}
}
