package store

import "time"

// Plan is a user's effective entitlement tier.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// User is one account row, including its billing entitlement fields.
type User struct {
	ID                   int64      `json:"id"`
	OpenID               string     `json:"open_id"`
	Name                 string     `json:"name"`
	Email                string     `json:"email"`
	Plan                 Plan       `json:"plan"`
	StripeCustomerID     string     `json:"stripe_customer_id"`
	StripeSubscriptionID string     `json:"stripe_subscription_id"`
	SubscriptionStatus   string     `json:"subscription_status"`
	SubscriptionEndDate  *time.Time `json:"subscription_end_date,omitempty"`
	SubscriptionEventTS  time.Time  `json:"-"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
	LastSignedIn         time.Time  `json:"last_signed_in"`
}

// IsPro reports whether the user currently holds the pro entitlement.
func (u *User) IsPro() bool {
	return u != nil && u.Plan == PlanPro
}

// Settings holds a user's sobriety-tracking preferences.
type Settings struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	DailyTarget int64     `json:"daily_target"`
	StartDate   time.Time `json:"start_date"`
	Currency    string    `json:"currency"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Goal is a user-defined savings goal.
type Goal struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	TargetAmount int64     `json:"target_amount"`
	Image        string    `json:"image"`
	IsActive     bool      `json:"is_active"`
	IsPreset     bool      `json:"is_preset"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SavingsEntry is one manual savings addition.
type SavingsEntry struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Amount    int64     `json:"amount"`
	Date      time.Time `json:"date"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

// Coach message roles.
const (
	CoachRoleUser      = "user"
	CoachRoleAssistant = "assistant"
)

// CoachMessage is one turn of an AI-coach conversation.
type CoachMessage struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
