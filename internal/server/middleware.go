package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/sobersavings/sobersavings/internal/auth"
	"github.com/sobersavings/sobersavings/internal/logging"
	"github.com/sobersavings/sobersavings/internal/store"
)

// SessionCookieName is the browser cookie carrying the session token.
const SessionCookieName = "ss_session"

type contextKey string

const userContextKey contextKey = "user"

// UserFromContext returns the authenticated user set by requireSession.
func UserFromContext(ctx context.Context) *store.User {
	u, _ := ctx.Value(userContextKey).(*store.User)
	return u
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// requestID tags every request (and its response) with a request ID,
// honoring one supplied by an upstream proxy.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, id := logging.WithRequestID(r.Context(), r.Header.Get("X-Request-ID"))
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionToken pulls the raw token from the cookie or the Authorization
// header (Bearer scheme).
func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(SessionCookieName); err == nil && strings.TrimSpace(c.Value) != "" {
		return strings.TrimSpace(c.Value)
	}
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	}
	return ""
}

// requireSession authenticates the request and loads the user into the
// request context.
func requireSession(sessions *auth.SessionStore, st *store.Store, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		userID, err := sessions.Validate(token, time.Now())
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid or expired session")
			return
		}

		user, err := st.GetUser(userID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to load user")
			return
		}
		if user == nil {
			respondError(w, http.StatusUnauthorized, "invalid or expired session")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userContextKey, user)))
	})
}
