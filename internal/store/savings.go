package store

import (
	"fmt"
	"time"
)

// AddSavingsEntry records one manual savings addition.
func (s *Store) AddSavingsEntry(userID, amount int64, date time.Time, note string) (*SavingsEntry, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("savings amount must be positive")
	}
	if date.IsZero() {
		date = time.Now().UTC()
	}
	now := time.Now().UTC().Unix()

	res, err := s.db.Exec(`
		INSERT INTO savings_entries (user_id, amount, date, note, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		userID, amount, date.UTC().Unix(), note, now,
	)
	if err != nil {
		return nil, fmt.Errorf("add savings entry for user %d: %w", userID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("savings entry id: %w", err)
	}

	return &SavingsEntry{
		ID:        id,
		UserID:    userID,
		Amount:    amount,
		Date:      date.UTC().Truncate(time.Second),
		Note:      note,
		CreatedAt: time.Unix(now, 0).UTC(),
	}, nil
}

// ListSavingsEntries returns up to limit of a user's manual savings
// additions, newest first.
func (s *Store) ListSavingsEntries(userID int64, limit int) ([]SavingsEntry, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("savings entry limit must be positive")
	}
	rows, err := s.db.Query(`
		SELECT id, user_id, amount, date, note, created_at
		FROM savings_entries WHERE user_id = ?
		ORDER BY date DESC, id DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list savings entries for user %d: %w", userID, err)
	}
	defer rows.Close()

	var entries []SavingsEntry
	for rows.Next() {
		var e SavingsEntry
		var date, createdAt int64
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &date, &e.Note, &createdAt); err != nil {
			return nil, fmt.Errorf("scan savings entry: %w", err)
		}
		e.Date = time.Unix(date, 0).UTC()
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SumSavingsEntries returns the total of a user's manual savings additions.
func (s *Store) SumSavingsEntries(userID int64) (int64, error) {
	var total int64
	err := s.db.QueryRow(`
		SELECT COALESCE(SUM(amount), 0) FROM savings_entries WHERE user_id = ?`, userID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum savings entries for user %d: %w", userID, err)
	}
	return total, nil
}
