package billing

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sobersavings/sobersavings/internal/store"
)

// EntitlementStore is the slice of the user store the reconciler writes
// entitlements through.
type EntitlementStore interface {
	GetUser(id int64) (*store.User, error)
	GetUserByStripeCustomerID(customerID string) (*store.User, error)
	ApplyCheckoutCompleted(userID int64, customerID, subscriptionID string, eventTS time.Time) error
	ApplySubscriptionStatus(customerID string, plan store.Plan, status string, periodEnd *time.Time, eventTS time.Time) (bool, error)
}

// Reconciler folds Stripe webhook events into the entitlement store. Every
// apply is a last-write-wins set guarded by the event timestamp, so redelivered
// and out-of-order deliveries converge on the newest state.
type Reconciler struct {
	store EntitlementStore
}

// NewReconciler creates a Reconciler.
func NewReconciler(st EntitlementStore) *Reconciler {
	return &Reconciler{store: st}
}

// HandleCheckoutCompleted attaches the Stripe customer and subscription to the
// user named in the session metadata and grants pro. A session without a
// usable user_id is dropped with a warning; retrying it would never succeed.
func (rc *Reconciler) HandleCheckoutCompleted(ctx context.Context, session CheckoutSession, eventTS time.Time) error {
	customerID := strings.TrimSpace(session.Customer)
	if customerID == "" {
		log.Warn().Str("session_id", session.ID).Msg("checkout.session.completed missing customer, dropping")
		return nil
	}
	if !IsSafeStripeID(customerID) {
		return fmt.Errorf("invalid stripe customer id: %s", customerID)
	}

	userID, err := strconv.ParseInt(strings.TrimSpace(session.Metadata["user_id"]), 10, 64)
	if err != nil || userID <= 0 {
		log.Warn().
			Str("session_id", session.ID).
			Str("customer_id", customerID).
			Msg("checkout.session.completed without usable user_id metadata, dropping")
		return nil
	}

	user, err := rc.store.GetUser(userID)
	if err != nil {
		return fmt.Errorf("lookup user %d: %w", userID, err)
	}
	if user == nil {
		log.Warn().
			Int64("user_id", userID).
			Str("customer_id", customerID).
			Msg("checkout.session.completed for unknown user, dropping")
		return nil
	}

	subscriptionID := strings.TrimSpace(session.Subscription)
	if err := rc.store.ApplyCheckoutCompleted(userID, customerID, subscriptionID, eventTS); err != nil {
		return fmt.Errorf("apply checkout: %w", err)
	}

	log.Info().
		Int64("user_id", userID).
		Str("customer_id", customerID).
		Str("subscription_id", subscriptionID).
		Msg("Checkout completed, pro entitlement granted")
	return nil
}

// HandleSubscriptionChange syncs the user's plan with the subscription's
// status. Covers created, updated, and deleted lifecycle events; the status
// on the payload decides the plan, so a deleted event (status canceled)
// downgrades to free.
func (rc *Reconciler) HandleSubscriptionChange(ctx context.Context, sub Subscription, eventTS time.Time) error {
	customerID := strings.TrimSpace(sub.Customer)
	if customerID == "" {
		return fmt.Errorf("subscription event missing customer")
	}

	user, err := rc.store.GetUserByStripeCustomerID(customerID)
	if err != nil {
		return fmt.Errorf("lookup user by customer: %w", err)
	}
	if user == nil {
		log.Warn().Str("customer_id", customerID).Msg("subscription event for unknown customer, dropping")
		return nil
	}

	status := strings.ToLower(strings.TrimSpace(sub.Status))
	plan := PlanForStatus(status)

	// The period end is whatever the event reports, independent of status; a
	// lapsed subscription still shows when the paid period ran out.
	var periodEnd *time.Time
	if ts := sub.CurrentPeriodEnd(); ts > 0 {
		t := time.Unix(ts, 0).UTC()
		periodEnd = &t
	}

	applied, err := rc.store.ApplySubscriptionStatus(customerID, plan, status, periodEnd, eventTS)
	if err != nil {
		return fmt.Errorf("apply subscription status: %w", err)
	}
	if !applied {
		log.Info().
			Str("customer_id", customerID).
			Str("status", status).
			Time("event_ts", eventTS).
			Msg("Stale subscription event skipped")
		return nil
	}

	log.Info().
		Int64("user_id", user.ID).
		Str("customer_id", customerID).
		Str("status", status).
		Str("plan", string(plan)).
		Msg("Subscription state reconciled")
	return nil
}

// HandleInvoicePaid records a successful renewal payment. Entitlement state
// follows the subscription lifecycle events, not invoices, so this is
// informational only.
func (rc *Reconciler) HandleInvoicePaid(ctx context.Context, invoice Invoice, eventTS time.Time) error {
	log.Info().
		Str("invoice_id", invoice.ID).
		Str("customer_id", strings.TrimSpace(invoice.Customer)).
		Str("subscription_id", strings.TrimSpace(invoice.Subscription)).
		Msg("Invoice paid")
	return nil
}
