package billing

import (
	"testing"

	"github.com/sobersavings/sobersavings/internal/store"
)

func TestIsActiveStatus(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{"active", true},
		{"trialing", true},
		{"  Active  ", true},
		{"canceled", false},
		{"past_due", false},
		{"unpaid", false},
		{"incomplete", false},
		{"incomplete_expired", false},
		{"paused", false},
		{"", false},
		{"something_new", false},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			if got := IsActiveStatus(tt.status); got != tt.want {
				t.Errorf("IsActiveStatus(%q) = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestPlanForStatus(t *testing.T) {
	if got := PlanForStatus("trialing"); got != store.PlanPro {
		t.Errorf("PlanForStatus(trialing) = %q", got)
	}
	if got := PlanForStatus("past_due"); got != store.PlanFree {
		t.Errorf("PlanForStatus(past_due) = %q", got)
	}
}

func TestIsSafeStripeID(t *testing.T) {
	tests := []struct {
		name     string
		stripeID string
		want     bool
	}{
		{"valid customer id", "cus_ABC123xyz", true},
		{"valid subscription id", "sub_1MowQVLkdIwHu7ixeRlqHVzs", true},
		{"too short", "cus", false},
		{"path traversal", "cus_../../../etc", false},
		{"spaces", "cus_abc def", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSafeStripeID(tt.stripeID); got != tt.want {
				t.Errorf("IsSafeStripeID(%q) = %v, want %v", tt.stripeID, got, tt.want)
			}
		})
	}
}
