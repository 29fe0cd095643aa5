package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sobersavings/sobersavings/internal/auth"
	"github.com/sobersavings/sobersavings/internal/billing"
	"github.com/sobersavings/sobersavings/internal/store"
)

// Deps holds shared dependencies injected into HTTP handlers.
type Deps struct {
	Config   *Config
	Store    *store.Store
	Sessions *auth.SessionStore
	Issuer   *billing.SessionIssuer
	Version  string
}

// RegisterRoutes wires all HTTP handlers onto the given ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps *Deps) {
	sessionAuth := func(next http.Handler) http.Handler {
		return requireSession(deps.Sessions, deps.Store, next)
	}

	// Health / readiness are unauthenticated liveness/readiness probes.
	mux.HandleFunc("/healthz", handleHealthz)
	mux.HandleFunc("/readyz", handleReadyz(deps.Store))
	mux.HandleFunc("/status", handleStatus(deps.Store, deps.Version))

	metricsHandler := promhttp.Handler()
	if deps.Config.PublicMetrics {
		mux.Handle("/metrics", metricsHandler)
	} else {
		mux.Handle("/metrics", sessionAuth(metricsHandler))
	}

	// Stripe webhook (signature-authenticated)
	issuer := deps.Issuer
	if issuer == nil {
		issuer = billing.NewSessionIssuer(deps.Config.StripeAPIKey, deps.Config.BaseURL)
	}
	webhookHandler := billing.NewWebhookHandler(deps.Config.StripeWebhookSecret, billing.NewReconciler(deps.Store))
	webhookLimiter := NewRateLimiter(120, time.Minute)
	mux.Handle("/webhook", webhookLimiter.Middleware(webhookHandler))

	// Auth (gateway-secret authenticated login, session-authenticated rest)
	loginLimiter := NewRateLimiter(30, time.Minute)
	mux.Handle("/api/auth/login", loginLimiter.Middleware(handleLogin(deps.Config, deps.Store, deps.Sessions)))
	mux.Handle("/api/auth/logout", handleLogout(deps.Sessions))
	mux.Handle("/api/auth/me", sessionAuth(handleMe()))

	// Catalog (public)
	mux.Handle("/api/products", handleListProducts())

	// Billing (session-authenticated)
	mux.Handle("/api/billing/checkout", sessionAuth(handleCreateCheckout(issuer)))
	mux.Handle("/api/billing/portal", sessionAuth(handleCreatePortal(issuer)))
	mux.Handle("/api/billing/subscription", sessionAuth(handleSubscription()))

	// Settings, goals, savings, coach (session-authenticated)
	mux.Handle("/api/settings", sessionAuth(handleSettings(deps.Store)))
	mux.Handle("/api/goals", sessionAuth(handleGoals(deps.Store)))
	mux.Handle("/api/goals/{goal_id}", sessionAuth(handleGoal(deps.Store)))
	mux.Handle("/api/goals/{goal_id}/activate", sessionAuth(handleGoalActivate(deps.Store)))
	mux.Handle("/api/savings", sessionAuth(handleSavingsSummary(deps.Store)))
	mux.Handle("/api/savings/entries", sessionAuth(handleSavingsEntries(deps.Store)))
	mux.Handle("/api/coach/messages", sessionAuth(handleCoachMessages(deps.Store)))
}
