package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sobersavings/sobersavings/internal/auth"
	"github.com/sobersavings/sobersavings/internal/store"
)

const loginRequestBodyLimit = 16 * 1024

// authGatewayHeader carries the shared secret proving the request came from
// the identity gateway, which has already verified the user's identity.
const authGatewayHeader = "X-Auth-Gateway-Secret"

type loginRequest struct {
	OpenID string `json:"open_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  *store.User `json:"user"`
}

// handleLogin exchanges a gateway-verified identity for a session.
func handleLogin(cfg *Config, st *store.Store, sessions *auth.SessionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}

		secret := strings.TrimSpace(r.Header.Get(authGatewayHeader))
		if secret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(cfg.AuthGatewaySecret)) != 1 {
			respondError(w, http.StatusUnauthorized, "invalid gateway secret")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, loginRequestBodyLimit)
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if strings.TrimSpace(req.OpenID) == "" {
			respondError(w, http.StatusBadRequest, "open_id is required")
			return
		}

		user, err := st.UpsertUserByOpenID(req.OpenID, strings.TrimSpace(req.Name), strings.TrimSpace(req.Email))
		if err != nil {
			log.Error().Err(err).Msg("login: upsert user failed")
			respondError(w, http.StatusInternalServerError, "failed to sign in")
			return
		}

		token, err := sessions.Create(user.ID, auth.DefaultSessionTTL)
		if err != nil {
			log.Error().Err(err).Int64("user_id", user.ID).Msg("login: create session failed")
			respondError(w, http.StatusInternalServerError, "failed to sign in")
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookieName,
			Value:    token,
			Path:     "/",
			HttpOnly: true,
			Secure:   strings.HasPrefix(cfg.BaseURL, "https://"),
			SameSite: http.SameSiteLaxMode,
			MaxAge:   int(auth.DefaultSessionTTL.Seconds()),
		})
		respondJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
	}
}

// handleLogout revokes the current session.
func handleLogout(sessions *auth.SessionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}

		if token := sessionToken(r); token != "" {
			if err := sessions.Revoke(token); err != nil {
				log.Warn().Err(err).Msg("logout: revoke session failed")
			}
		}
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookieName,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			MaxAge:   -1,
		})
		respondJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// handleMe returns the authenticated user.
func handleMe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		respondJSON(w, http.StatusOK, UserFromContext(r.Context()))
	}
}
