package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// SaveAttempt appends one generate/review round to a task's history.
func (s *SQLiteStore) SaveAttempt(ctx context.Context, a Attempt) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	issues, err := json.Marshal(nonNil(a.Issues))
	if err != nil {
		return fmt.Errorf("failed to encode issues: %w", err)
	}

	created := a.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	approved := 0
	if a.Approved {
		approved = 1
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO task_attempts (plan_id, task_id, attempt, code, approved, score, issues, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.PlanID, a.TaskID, a.Number, a.Code, approved, a.Score, string(issues), a.Error, created.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to save attempt %d of task %s: %w", a.Number, a.TaskID, err)
	}

	return nil
}

// ListAttempts returns a task's attempts in the order they were made.
// An unknown task yields an empty slice.
func (s *SQLiteStore) ListAttempts(ctx context.Context, planID, taskID string) ([]Attempt, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT attempt, code, approved, score, issues, error, created_at
		FROM task_attempts
		WHERE plan_id = ? AND task_id = ?
		ORDER BY attempt, id
	`, planID, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	defer rows.Close()

	attempts := []Attempt{}
	for rows.Next() {
		a := Attempt{PlanID: planID, TaskID: taskID}
		var approved int
		var issues, created string
		if err := rows.Scan(&a.Number, &a.Code, &approved, &a.Score, &issues, &a.Error, &created); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		a.Approved = approved != 0
		if err := json.Unmarshal([]byte(issues), &a.Issues); err != nil {
			return nil, fmt.Errorf("attempt %d has malformed issues: %w", a.Number, err)
		}
		if a.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("attempt %d has a malformed created_at: %w", a.Number, err)
		}
		attempts = append(attempts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attempts: %w", err)
	}
	return attempts, nil
}
