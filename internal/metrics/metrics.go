package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookRequestsTotal counts Stripe webhook requests by event type and status.
	WebhookRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sobersavings",
		Subsystem: "billing",
		Name:      "webhook_requests_total",
		Help:      "Total Stripe webhook requests by event type and HTTP status.",
	}, []string{"event_type", "status"})

	// WebhookDuration tracks Stripe webhook processing latency.
	WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sobersavings",
		Subsystem: "billing",
		Name:      "webhook_duration_seconds",
		Help:      "Stripe webhook processing duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event_type"})

	// CheckoutSessionsTotal counts checkout session creation attempts by outcome.
	CheckoutSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sobersavings",
		Subsystem: "billing",
		Name:      "checkout_sessions_total",
		Help:      "Total checkout session creation attempts by outcome.",
	}, []string{"outcome"})

	// PortalSessionsTotal counts billing portal session creation attempts by outcome.
	PortalSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sobersavings",
		Subsystem: "billing",
		Name:      "portal_sessions_total",
		Help:      "Total billing portal session creation attempts by outcome.",
	}, []string{"outcome"})

	// UsersByPlan tracks the number of users on each plan.
	UsersByPlan = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "sobersavings",
		Subsystem: "api",
		Name:      "users_by_plan",
		Help:      "Number of users by entitlement plan.",
	}, []string{"plan"})
)
