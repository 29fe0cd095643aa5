package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/sobersavings/sobersavings/internal/savings"
	"github.com/sobersavings/sobersavings/internal/store"
)

type savingsSummary struct {
	DaysSober    int              `json:"days_sober"`
	DailyTarget  int64            `json:"daily_target"`
	Currency     string           `json:"currency"`
	Total        int64            `json:"total"`
	ActiveGoal   *store.Goal      `json:"active_goal,omitempty"`
	GoalProgress *decimal.Decimal `json:"goal_progress,omitempty"`
}

type savingsEntryRequest struct {
	Amount int64     `json:"amount"`
	Date   time.Time `json:"date"`
	Note   string    `json:"note"`
}

// handleSavingsSummary reports the derived savings figures: sober days, the
// automatic total (daily target × days) plus manual entries, and progress
// toward the active goal.
func handleSavingsSummary(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		user := UserFromContext(r.Context())

		settings, err := st.GetSettings(user.ID)
		if err != nil {
			log.Error().Err(err).Int64("user_id", user.ID).Msg("load settings failed")
			respondError(w, http.StatusInternalServerError, "failed to load savings")
			return
		}

		days := savings.DaysSober(settings.StartDate, time.Now())
		total := savings.Total(settings.DailyTarget, days)

		manual, err := st.SumSavingsEntries(user.ID)
		if err != nil {
			log.Error().Err(err).Int64("user_id", user.ID).Msg("sum savings entries failed")
			respondError(w, http.StatusInternalServerError, "failed to load savings")
			return
		}
		total += manual

		summary := savingsSummary{
			DaysSober:   days,
			DailyTarget: settings.DailyTarget,
			Currency:    settings.Currency,
			Total:       total,
		}

		goals, err := st.ListGoals(user.ID)
		if err != nil {
			log.Error().Err(err).Int64("user_id", user.ID).Msg("list goals failed")
			respondError(w, http.StatusInternalServerError, "failed to load savings")
			return
		}
		for i := range goals {
			if goals[i].IsActive {
				g := goals[i]
				progress := savings.GoalProgress(total, g.TargetAmount)
				summary.ActiveGoal = &g
				summary.GoalProgress = &progress
				break
			}
		}

		respondJSON(w, http.StatusOK, summary)
	}
}

const (
	defaultEntryLimit = 30
	maxEntryLimit     = 100
)

// entryLimit parses the ?limit= query parameter, clamped to maxEntryLimit.
func entryLimit(r *http.Request) int {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return defaultEntryLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultEntryLimit
	}
	if n > maxEntryLimit {
		return maxEntryLimit
	}
	return n
}

// handleSavingsEntries lists and records manual savings additions.
func handleSavingsEntries(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())

		switch r.Method {
		case http.MethodGet:
			entries, err := st.ListSavingsEntries(user.ID, entryLimit(r))
			if err != nil {
				log.Error().Err(err).Int64("user_id", user.ID).Msg("list savings entries failed")
				respondError(w, http.StatusInternalServerError, "failed to load entries")
				return
			}
			if entries == nil {
				entries = []store.SavingsEntry{}
			}
			respondJSON(w, http.StatusOK, entries)

		case http.MethodPost:
			r.Body = http.MaxBytesReader(w, r.Body, loginRequestBodyLimit)
			var req savingsEntryRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				respondError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			if req.Amount <= 0 {
				respondError(w, http.StatusBadRequest, "amount must be positive")
				return
			}

			entry, err := st.AddSavingsEntry(user.ID, req.Amount, req.Date, strings.TrimSpace(req.Note))
			if err != nil {
				log.Error().Err(err).Int64("user_id", user.ID).Msg("add savings entry failed")
				respondError(w, http.StatusInternalServerError, "failed to add entry")
				return
			}
			respondJSON(w, http.StatusCreated, entry)

		default:
			methodNotAllowed(w)
		}
	}
}
