package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sobersavings/sobersavings/internal/products"
	"github.com/sobersavings/sobersavings/internal/store"
)

type coachMessageRequest struct {
	Content string `json:"content"`
}

// coachReplies are rotated per conversation turn. A connected model can
// replace this once one is wired up; the store schema already carries full
// conversations.
var coachReplies = []string{
	"よく頑張っていますね。一日一日の積み重ねが大きな変化につながります。",
	"つらい時は、なぜ禁酒を始めたのか思い出してみましょう。目標はすぐそこです。",
	"飲みたい気持ちは数分で過ぎ去ります。水を一杯飲んで、深呼吸してみてください。",
	"貯金の伸びを見てみましょう。あなたの努力は数字にも表れています。",
}

// handleCoachMessages serves the Pro-only AI coach conversation.
func handleCoachMessages(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())

		if !products.LimitsFor(string(user.Plan)).AICoachEnabled {
			respondError(w, http.StatusForbidden, "AI coach requires a Pro subscription")
			return
		}

		switch r.Method {
		case http.MethodGet:
			msgs, err := st.ListCoachMessages(user.ID)
			if err != nil {
				log.Error().Err(err).Int64("user_id", user.ID).Msg("list coach messages failed")
				respondError(w, http.StatusInternalServerError, "failed to load conversation")
				return
			}
			if msgs == nil {
				msgs = []store.CoachMessage{}
			}
			respondJSON(w, http.StatusOK, msgs)

		case http.MethodPost:
			r.Body = http.MaxBytesReader(w, r.Body, loginRequestBodyLimit)
			var req coachMessageRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				respondError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			content := strings.TrimSpace(req.Content)
			if content == "" {
				respondError(w, http.StatusBadRequest, "content is required")
				return
			}

			if _, err := st.AddCoachMessage(user.ID, store.CoachRoleUser, content); err != nil {
				log.Error().Err(err).Int64("user_id", user.ID).Msg("store coach message failed")
				respondError(w, http.StatusInternalServerError, "failed to send message")
				return
			}

			count, err := st.CountCoachMessages(user.ID)
			if err != nil {
				log.Error().Err(err).Int64("user_id", user.ID).Msg("count coach messages failed")
				respondError(w, http.StatusInternalServerError, "failed to send message")
				return
			}
			reply, err := st.AddCoachMessage(user.ID, store.CoachRoleAssistant, coachReplies[count%len(coachReplies)])
			if err != nil {
				log.Error().Err(err).Int64("user_id", user.ID).Msg("store coach reply failed")
				respondError(w, http.StatusInternalServerError, "failed to send message")
				return
			}
			respondJSON(w, http.StatusCreated, reply)

		default:
			methodNotAllowed(w)
		}
	}
}
