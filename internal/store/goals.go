package store

import (
	"fmt"
	"time"
)

// ListGoals returns a user's goals, active goal first, newest first within
// each group.
func (s *Store) ListGoals(userID int64) ([]Goal, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, title, description, target_amount, image, is_active, is_preset, created_at, updated_at
		FROM user_goals WHERE user_id = ?
		ORDER BY is_active DESC, created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list goals for user %d: %w", userID, err)
	}
	defer rows.Close()

	var goals []Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, *g)
	}
	return goals, rows.Err()
}

// CountGoals returns how many goals the user currently has.
func (s *Store) CountGoals(userID int64) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM user_goals WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count goals for user %d: %w", userID, err)
	}
	return count, nil
}

// CreateGoal inserts a new goal for the user. The user's first goal becomes
// the active one; later goals start inactive. Plan limits are enforced by the
// caller; the store does not know about entitlement tiers.
func (s *Store) CreateGoal(userID int64, title, description string, targetAmount int64, image string, isPreset bool) (*Goal, error) {
	if title == "" {
		return nil, fmt.Errorf("goal title is required")
	}
	if targetAmount <= 0 {
		return nil, fmt.Errorf("goal target amount must be positive")
	}
	now := time.Now().UTC().Unix()

	res, err := s.db.Exec(`
		INSERT INTO user_goals (user_id, title, description, target_amount, image, is_active, is_preset, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, NOT EXISTS (SELECT 1 FROM user_goals WHERE user_id = ?), ?, ?, ?)`,
		userID, title, description, targetAmount, image, userID, boolToInt(isPreset), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create goal for user %d: %w", userID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create goal id: %w", err)
	}
	return s.getGoal(userID, id)
}

// SetActiveGoal makes the given goal the user's single active goal.
func (s *Store) SetActiveGoal(userID, goalID int64) (*Goal, error) {
	now := time.Now().UTC().Unix()

	res, err := s.db.Exec(`
		UPDATE user_goals SET is_active = 1, updated_at = ?
		WHERE id = ? AND user_id = ?`, now, goalID, userID)
	if err != nil {
		return nil, fmt.Errorf("activate goal %d: %w", goalID, err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return nil, nil
	}

	_, err = s.db.Exec(`
		UPDATE user_goals SET is_active = 0, updated_at = ?
		WHERE user_id = ? AND id != ? AND is_active = 1`, now, userID, goalID)
	if err != nil {
		return nil, fmt.Errorf("deactivate other goals for user %d: %w", userID, err)
	}
	return s.getGoal(userID, goalID)
}

// DeleteGoal removes a goal owned by the user. Returns false when the goal
// does not exist or belongs to someone else.
func (s *Store) DeleteGoal(userID, goalID int64) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM user_goals WHERE id = ? AND user_id = ?`, goalID, userID)
	if err != nil {
		return false, fmt.Errorf("delete goal %d: %w", goalID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete goal rows affected: %w", err)
	}
	return affected > 0, nil
}

func (s *Store) getGoal(userID, goalID int64) (*Goal, error) {
	row := s.db.QueryRow(`
		SELECT id, user_id, title, description, target_amount, image, is_active, is_preset, created_at, updated_at
		FROM user_goals WHERE id = ? AND user_id = ?`, goalID, userID)
	g, err := scanGoal(row)
	if err != nil {
		return nil, err
	}
	return g, nil
}

func scanGoal(row rowScanner) (*Goal, error) {
	var g Goal
	var isActive, isPreset int
	var createdAt, updatedAt int64
	err := row.Scan(&g.ID, &g.UserID, &g.Title, &g.Description, &g.TargetAmount, &g.Image, &isActive, &isPreset, &createdAt, &updatedAt)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan goal: %w", err)
	}
	g.IsActive = isActive != 0
	g.IsPreset = isPreset != 0
	g.CreatedAt = time.Unix(createdAt, 0).UTC()
	g.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &g, nil
}
