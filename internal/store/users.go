package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const userColumns = `
	id, open_id, name, email, plan,
	stripe_customer_id, stripe_subscription_id, subscription_status,
	subscription_end_date, subscription_event_ts,
	created_at, updated_at, last_signed_in`

// UpsertUserByOpenID creates the user row on first sign-in (plan=free, empty
// billing fields) or refreshes name/email/last_signed_in on a repeat sign-in.
func (s *Store) UpsertUserByOpenID(openID, name, email string) (*User, error) {
	openID = strings.TrimSpace(openID)
	if openID == "" {
		return nil, fmt.Errorf("open id is required")
	}
	now := time.Now().UTC().Unix()

	_, err := s.db.Exec(`
		INSERT INTO users (open_id, name, email, created_at, updated_at, last_signed_in)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(open_id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			updated_at = excluded.updated_at,
			last_signed_in = excluded.last_signed_in`,
		openID, name, email, now, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return s.GetUserByOpenID(openID)
}

// GetUser retrieves a user by ID. Returns nil when not found.
func (s *Store) GetUser(id int64) (*User, error) {
	row := s.db.QueryRow(`SELECT`+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByOpenID retrieves a user by identity-provider subject. Returns nil
// when not found.
func (s *Store) GetUserByOpenID(openID string) (*User, error) {
	row := s.db.QueryRow(`SELECT`+userColumns+` FROM users WHERE open_id = ?`, openID)
	return scanUser(row)
}

// GetUserByStripeCustomerID retrieves a user by billing customer identity.
// Returns nil when no user carries that customer ID.
func (s *Store) GetUserByStripeCustomerID(customerID string) (*User, error) {
	row := s.db.QueryRow(`SELECT`+userColumns+` FROM users WHERE stripe_customer_id = ?`, customerID)
	return scanUser(row)
}

// ApplyCheckoutCompleted records a completed first checkout: the user becomes
// pro with an active status and the billing identities attached. All fields
// are last-write-wins sets, so redelivery of the same event is a no-op.
func (s *Store) ApplyCheckoutCompleted(userID int64, customerID, subscriptionID string, eventTS time.Time) error {
	res, err := s.db.Exec(`
		UPDATE users SET
			plan = ?, stripe_customer_id = ?, stripe_subscription_id = ?,
			subscription_status = 'active', subscription_event_ts = ?, updated_at = ?
		WHERE id = ?`,
		string(PlanPro), customerID, subscriptionID,
		eventTS.UTC().Unix(), time.Now().UTC().Unix(),
		userID,
	)
	if err != nil {
		return fmt.Errorf("apply checkout for user %d: %w", userID, err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("user %d not found", userID)
	}
	return nil
}

// ApplySubscriptionStatus applies a subscription lifecycle change for the user
// holding customerID. The write is guarded by the event timestamp: a delivery
// older than the most recently applied one is skipped (returns false) so a
// stale redelivery cannot resurrect an outdated status. A delivery with an
// equal timestamp re-applies the same values, keeping redelivery idempotent.
func (s *Store) ApplySubscriptionStatus(customerID string, plan Plan, status string, periodEnd *time.Time, eventTS time.Time) (bool, error) {
	res, err := s.db.Exec(`
		UPDATE users SET
			plan = ?, subscription_status = ?, subscription_end_date = ?,
			subscription_event_ts = ?, updated_at = ?
		WHERE stripe_customer_id = ? AND subscription_event_ts <= ?`,
		string(plan), status, nullableTimeUnix(periodEnd),
		eventTS.UTC().Unix(), time.Now().UTC().Unix(),
		customerID, eventTS.UTC().Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("apply subscription status for customer %s: %w", customerID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("apply subscription status rows affected: %w", err)
	}
	return affected > 0, nil
}

// CountByPlan returns a map of plan -> user count.
func (s *Store) CountByPlan() (map[Plan]int, error) {
	rows, err := s.db.Query(`SELECT plan, COUNT(*) FROM users GROUP BY plan`)
	if err != nil {
		return nil, fmt.Errorf("count users by plan: %w", err)
	}
	defer rows.Close()

	counts := make(map[Plan]int)
	for rows.Next() {
		var plan string
		var count int
		if err := rows.Scan(&plan, &count); err != nil {
			return nil, fmt.Errorf("scan plan count: %w", err)
		}
		counts[Plan(plan)] = count
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var u User
	var plan string
	var endDate sql.NullInt64
	var eventTS, createdAt, updatedAt, lastSignedIn int64

	err := row.Scan(
		&u.ID, &u.OpenID, &u.Name, &u.Email, &plan,
		&u.StripeCustomerID, &u.StripeSubscriptionID, &u.SubscriptionStatus,
		&endDate, &eventTS,
		&createdAt, &updatedAt, &lastSignedIn,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}

	u.Plan = Plan(plan)
	if endDate.Valid {
		t := time.Unix(endDate.Int64, 0).UTC()
		u.SubscriptionEndDate = &t
	}
	if eventTS > 0 {
		u.SubscriptionEventTS = time.Unix(eventTS, 0).UTC()
	}
	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	u.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	u.LastSignedIn = time.Unix(lastSignedIn, 0).UTC()
	return &u, nil
}
