// Package billing reconciles Stripe subscription state into user
// entitlements and issues checkout and customer-portal sessions.
package billing

import (
	"strings"

	"github.com/sobersavings/sobersavings/internal/store"
)

// IsActiveStatus reports whether a Stripe subscription status grants the pro
// entitlement. Unknown statuses fail closed.
func IsActiveStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "active", "trialing":
		return true
	default:
		return false
	}
}

// PlanForStatus maps a Stripe subscription status to the entitlement plan.
func PlanForStatus(status string) store.Plan {
	if IsActiveStatus(status) {
		return store.PlanPro
	}
	return store.PlanFree
}

// IsSafeStripeID validates that a Stripe ID (cus_..., sub_...) is safe for
// use as a lookup key.
func IsSafeStripeID(stripeID string) bool {
	if len(stripeID) < 5 || len(stripeID) > 128 {
		return false
	}
	for i := 0; i < len(stripeID); i++ {
		c := stripeID[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == '-' {
			continue
		}
		return false
	}
	return true
}
