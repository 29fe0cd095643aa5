package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sobersavings/sobersavings/internal/billing"
	"github.com/sobersavings/sobersavings/internal/metrics"
	"github.com/sobersavings/sobersavings/internal/products"
	"github.com/sobersavings/sobersavings/internal/store"
)

const billingRequestBodyLimit = 16 * 1024

type checkoutRequest struct {
	ProductID string `json:"product_id"`
}

type checkoutResponse struct {
	URL string `json:"url"`
}

type subscriptionResponse struct {
	Plan               store.Plan          `json:"plan"`
	SubscriptionStatus string              `json:"subscription_status"`
	PeriodEnd          *time.Time          `json:"period_end,omitempty"`
	IsPro              bool                `json:"is_pro"`
	Limits             products.PlanLimits `json:"limits"`
}

// handleCreateCheckout issues a Stripe checkout session for the requested
// product.
func handleCreateCheckout(issuer *billing.SessionIssuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		user := UserFromContext(r.Context())

		r.Body = http.MaxBytesReader(w, r.Body, billingRequestBodyLimit)
		var req checkoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		url, err := issuer.CreateCheckout(user, strings.TrimSpace(req.ProductID))
		if err != nil {
			if errors.Is(err, billing.ErrUnknownProduct) {
				metrics.CheckoutSessionsTotal.WithLabelValues("unknown_product").Inc()
				respondError(w, http.StatusBadRequest, "unknown product")
				return
			}
			metrics.CheckoutSessionsTotal.WithLabelValues("error").Inc()
			log.Error().Err(err).Int64("user_id", user.ID).Msg("checkout session creation failed")
			respondError(w, http.StatusBadGateway, "unable to create checkout session")
			return
		}

		metrics.CheckoutSessionsTotal.WithLabelValues("success").Inc()
		respondJSON(w, http.StatusCreated, checkoutResponse{URL: url})
	}
}

// handleCreatePortal issues a Stripe customer-portal session.
func handleCreatePortal(issuer *billing.SessionIssuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		user := UserFromContext(r.Context())

		url, err := issuer.CreatePortal(user)
		if err != nil {
			if errors.Is(err, billing.ErrNoBillingCustomer) {
				metrics.PortalSessionsTotal.WithLabelValues("no_customer").Inc()
				respondError(w, http.StatusBadRequest, "no billing account; complete a checkout first")
				return
			}
			metrics.PortalSessionsTotal.WithLabelValues("error").Inc()
			log.Error().Err(err).Int64("user_id", user.ID).Msg("portal session creation failed")
			respondError(w, http.StatusBadGateway, "unable to create portal session")
			return
		}

		metrics.PortalSessionsTotal.WithLabelValues("success").Inc()
		respondJSON(w, http.StatusCreated, checkoutResponse{URL: url})
	}
}

// handleSubscription reports the user's current entitlement.
func handleSubscription() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		user := UserFromContext(r.Context())

		respondJSON(w, http.StatusOK, subscriptionResponse{
			Plan:               user.Plan,
			SubscriptionStatus: user.SubscriptionStatus,
			PeriodEnd:          user.SubscriptionEndDate,
			IsPro:              user.IsPro(),
			Limits:             products.LimitsFor(string(user.Plan)),
		})
	}
}

// handleListProducts returns the purchasable catalog plus free-tier features.
func handleListProducts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"products":      products.All(),
			"free_features": products.FreePlanFeatures,
		})
	}
}
