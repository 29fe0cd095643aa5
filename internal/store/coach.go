package store

import (
	"fmt"
	"time"
)

// AddCoachMessage appends one turn to a user's coach conversation.
func (s *Store) AddCoachMessage(userID int64, role, content string) (*CoachMessage, error) {
	if role != CoachRoleUser && role != CoachRoleAssistant {
		return nil, fmt.Errorf("invalid coach message role %q", role)
	}
	if content == "" {
		return nil, fmt.Errorf("coach message content is required")
	}
	now := time.Now().UTC().Unix()

	res, err := s.db.Exec(`
		INSERT INTO coach_messages (user_id, role, content, created_at)
		VALUES (?, ?, ?, ?)`,
		userID, role, content, now,
	)
	if err != nil {
		return nil, fmt.Errorf("add coach message for user %d: %w", userID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("coach message id: %w", err)
	}

	return &CoachMessage{
		ID:        id,
		UserID:    userID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Unix(now, 0).UTC(),
	}, nil
}

// ListCoachMessages returns a user's coach conversation in insertion order.
func (s *Store) ListCoachMessages(userID int64) ([]CoachMessage, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, role, content, created_at
		FROM coach_messages WHERE user_id = ?
		ORDER BY id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list coach messages for user %d: %w", userID, err)
	}
	defer rows.Close()

	var msgs []CoachMessage
	for rows.Next() {
		var m CoachMessage
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.UserID, &m.Role, &m.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan coach message: %w", err)
		}
		m.CreatedAt = time.Unix(createdAt, 0).UTC()
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// CountCoachMessages returns how many turns a user's conversation holds.
func (s *Store) CountCoachMessages(userID int64) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM coach_messages WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count coach messages for user %d: %w", userID, err)
	}
	return count, nil
}
