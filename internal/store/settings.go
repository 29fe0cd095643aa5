package store

import (
	"fmt"
	"time"
)

const defaultDailyTarget = 1000

// GetSettings retrieves a user's settings, creating the default row on first
// access so every signed-in user always has one.
func (s *Store) GetSettings(userID int64) (*Settings, error) {
	settings, err := s.getSettings(userID)
	if err != nil {
		return nil, err
	}
	if settings != nil {
		return settings, nil
	}

	now := time.Now().UTC()
	_, err = s.db.Exec(`
		INSERT INTO user_settings (user_id, daily_target, start_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING`,
		userID, defaultDailyTarget, now.Unix(), now.Unix(), now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("create default settings for user %d: %w", userID, err)
	}
	return s.getSettings(userID)
}

// UpdateSettings overwrites a user's daily target, start date, and currency.
func (s *Store) UpdateSettings(userID, dailyTarget int64, startDate time.Time, currency string) (*Settings, error) {
	if dailyTarget < 0 {
		return nil, fmt.Errorf("daily target must not be negative")
	}
	if _, err := s.GetSettings(userID); err != nil {
		return nil, err
	}

	_, err := s.db.Exec(`
		UPDATE user_settings SET daily_target = ?, start_date = ?, currency = ?, updated_at = ?
		WHERE user_id = ?`,
		dailyTarget, startDate.UTC().Unix(), currency, time.Now().UTC().Unix(), userID,
	)
	if err != nil {
		return nil, fmt.Errorf("update settings for user %d: %w", userID, err)
	}
	return s.getSettings(userID)
}

func (s *Store) getSettings(userID int64) (*Settings, error) {
	row := s.db.QueryRow(`
		SELECT id, user_id, daily_target, start_date, currency, created_at, updated_at
		FROM user_settings WHERE user_id = ?`, userID)

	var st Settings
	var startDate, createdAt, updatedAt int64
	err := row.Scan(&st.ID, &st.UserID, &st.DailyTarget, &startDate, &st.Currency, &createdAt, &updatedAt)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan settings: %w", err)
	}
	st.StartDate = time.Unix(startDate, 0).UTC()
	st.CreatedAt = time.Unix(createdAt, 0).UTC()
	st.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &st, nil
}
