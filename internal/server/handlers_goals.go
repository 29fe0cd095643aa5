package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sobersavings/sobersavings/internal/products"
	"github.com/sobersavings/sobersavings/internal/store"
)

type goalRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	TargetAmount int64  `json:"target_amount"`
	Image        string `json:"image"`
}

// handleGoals lists and creates savings goals. Creation is gated by the
// plan's goal cap.
func handleGoals(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())

		switch r.Method {
		case http.MethodGet:
			goals, err := st.ListGoals(user.ID)
			if err != nil {
				log.Error().Err(err).Int64("user_id", user.ID).Msg("list goals failed")
				respondError(w, http.StatusInternalServerError, "failed to load goals")
				return
			}
			if goals == nil {
				goals = []store.Goal{}
			}
			respondJSON(w, http.StatusOK, goals)

		case http.MethodPost:
			r.Body = http.MaxBytesReader(w, r.Body, loginRequestBodyLimit)
			var req goalRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				respondError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			if strings.TrimSpace(req.Title) == "" {
				respondError(w, http.StatusBadRequest, "title is required")
				return
			}
			if req.TargetAmount <= 0 {
				respondError(w, http.StatusBadRequest, "target_amount must be positive")
				return
			}

			count, err := st.CountGoals(user.ID)
			if err != nil {
				log.Error().Err(err).Int64("user_id", user.ID).Msg("count goals failed")
				respondError(w, http.StatusInternalServerError, "failed to create goal")
				return
			}
			limits := products.LimitsFor(string(user.Plan))
			if !limits.AllowsGoalCount(count + 1) {
				respondError(w, http.StatusForbidden, "goal limit reached; upgrade to Pro for unlimited goals")
				return
			}

			goal, err := st.CreateGoal(user.ID, strings.TrimSpace(req.Title), strings.TrimSpace(req.Description), req.TargetAmount, strings.TrimSpace(req.Image), false)
			if err != nil {
				log.Error().Err(err).Int64("user_id", user.ID).Msg("create goal failed")
				respondError(w, http.StatusInternalServerError, "failed to create goal")
				return
			}
			respondJSON(w, http.StatusCreated, goal)

		default:
			methodNotAllowed(w)
		}
	}
}

// handleGoal activates or deletes one goal, identified by path value.
func handleGoal(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())

		goalID, err := strconv.ParseInt(r.PathValue("goal_id"), 10, 64)
		if err != nil || goalID <= 0 {
			respondError(w, http.StatusBadRequest, "invalid goal id")
			return
		}

		switch r.Method {
		case http.MethodDelete:
			deleted, err := st.DeleteGoal(user.ID, goalID)
			if err != nil {
				log.Error().Err(err).Int64("user_id", user.ID).Int64("goal_id", goalID).Msg("delete goal failed")
				respondError(w, http.StatusInternalServerError, "failed to delete goal")
				return
			}
			if !deleted {
				respondError(w, http.StatusNotFound, "goal not found")
				return
			}
			respondJSON(w, http.StatusOK, map[string]bool{"success": true})

		default:
			methodNotAllowed(w)
		}
	}
}

// handleGoalActivate marks a goal as the user's single active goal.
func handleGoalActivate(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		user := UserFromContext(r.Context())

		goalID, err := strconv.ParseInt(r.PathValue("goal_id"), 10, 64)
		if err != nil || goalID <= 0 {
			respondError(w, http.StatusBadRequest, "invalid goal id")
			return
		}

		goal, err := st.SetActiveGoal(user.ID, goalID)
		if err != nil {
			log.Error().Err(err).Int64("user_id", user.ID).Int64("goal_id", goalID).Msg("activate goal failed")
			respondError(w, http.StatusInternalServerError, "failed to activate goal")
			return
		}
		if goal == nil {
			respondError(w, http.StatusNotFound, "goal not found")
			return
		}
		respondJSON(w, http.StatusOK, goal)
	}
}
