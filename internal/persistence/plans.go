package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/planner/internal/plan"
)

const timeLayout = time.RFC3339Nano

// SavePlan writes the whole plan in one transaction. Tasks and their
// dependency rows are replaced, so removed tasks disappear from storage.
func (s *SQLiteStore) SavePlan(ctx context.Context, p *plan.Plan) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO plans (id, title, description, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			status = excluded.status,
			updated_at = excluded.updated_at
	`, p.ID, p.Title, p.Description, string(p.Status), p.Created.UTC().Format(timeLayout), p.Updated.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to upsert plan %s: %w", p.ID, err)
	}

	// Dependency rows cascade with their tasks.
	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE plan_id = ?`, p.ID); err != nil {
		return fmt.Errorf("failed to delete old tasks: %w", err)
	}

	for pos, t := range p.Tasks {
		files, err := json.Marshal(nonNil(t.Files))
		if err != nil {
			return fmt.Errorf("failed to encode files of task %s: %w", t.ID, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO tasks (plan_id, id, position, title, description, files, status, estimated_time, priority, code)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, p.ID, t.ID, pos, t.Title, t.Description, string(files), string(t.Status), t.EstimatedTime, string(t.Priority), t.Code)
		if err != nil {
			return fmt.Errorf("failed to insert task %s: %w", t.ID, err)
		}

		for depPos, depID := range t.Dependencies {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO task_dependencies (plan_id, task_id, position, depends_on_id)
				VALUES (?, ?, ?, ?)
			`, p.ID, t.ID, depPos, depID)
			if err != nil {
				return fmt.Errorf("failed to insert dependency %s -> %s: %w", t.ID, depID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetPlan loads a plan with its tasks in their stored order.
func (s *SQLiteStore) GetPlan(ctx context.Context, planID string) (*plan.Plan, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	p := &plan.Plan{}
	var status, created, updated string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, status, created_at, updated_at
		FROM plans
		WHERE id = ?
	`, planID).Scan(&p.ID, &p.Title, &p.Description, &status, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("plan %s: %w", planID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query plan: %w", err)
	}

	p.Status = plan.PlanStatus(status)
	if p.Created, err = time.Parse(timeLayout, created); err != nil {
		return nil, fmt.Errorf("plan %s has a malformed created_at: %w", planID, err)
	}
	if p.Updated, err = time.Parse(timeLayout, updated); err != nil {
		return nil, fmt.Errorf("plan %s has a malformed updated_at: %w", planID, err)
	}

	if p.Tasks, err = s.loadTasks(ctx, planID); err != nil {
		return nil, err
	}
	if err := s.loadDependencies(ctx, p); err != nil {
		return nil, err
	}

	return p, nil
}

func (s *SQLiteStore) loadTasks(ctx context.Context, planID string) ([]*plan.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, files, status, estimated_time, priority, code
		FROM tasks
		WHERE plan_id = ?
		ORDER BY position
	`, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*plan.Task{}
	for rows.Next() {
		t := &plan.Task{}
		var files, status, priority string
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &files, &status, &t.EstimatedTime, &priority, &t.Code); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		if err := json.Unmarshal([]byte(files), &t.Files); err != nil {
			return nil, fmt.Errorf("task %s has malformed files: %w", t.ID, err)
		}
		t.Status = plan.TaskStatus(status)
		t.Priority = plan.Priority(priority)
		t.Dependencies = []string{}
		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

// loadDependencies runs after loadTasks has released its rows: the pool has
// a single connection.
func (s *SQLiteStore) loadDependencies(ctx context.Context, p *plan.Plan) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, depends_on_id
		FROM task_dependencies
		WHERE plan_id = ?
		ORDER BY task_id, position
	`, p.ID)
	if err != nil {
		return fmt.Errorf("failed to query dependencies: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var taskID, depID string
		if err := rows.Scan(&taskID, &depID); err != nil {
			return fmt.Errorf("failed to scan dependency: %w", err)
		}
		if t, ok := p.TaskByID(taskID); ok {
			t.Dependencies = append(t.Dependencies, depID)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating dependencies: %w", err)
	}
	return nil
}

// ListPlans returns every stored plan, most recently updated first.
func (s *SQLiteStore) ListPlans(ctx context.Context) ([]PlanSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.title, p.status, p.updated_at,
			COUNT(t.id),
			COALESCE(SUM(CASE WHEN t.status IN (?, ?) THEN 1 ELSE 0 END), 0)
		FROM plans p
		LEFT JOIN tasks t ON t.plan_id = p.id
		GROUP BY p.id
		ORDER BY p.updated_at DESC, p.id
	`, string(plan.TaskCompleted), string(plan.TaskAccepted))
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	var plans []PlanSummary
	for rows.Next() {
		var sum PlanSummary
		var status, updated string
		if err := rows.Scan(&sum.ID, &sum.Title, &status, &updated, &sum.Tasks, &sum.Done); err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		sum.Status = plan.PlanStatus(status)
		if sum.Updated, err = time.Parse(timeLayout, updated); err != nil {
			return nil, fmt.Errorf("plan %s has a malformed updated_at: %w", sum.ID, err)
		}
		plans = append(plans, sum)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating plans: %w", err)
	}
	return plans, nil
}

// DeletePlan removes a plan with its tasks and attempt history.
func (s *SQLiteStore) DeletePlan(ctx context.Context, planID string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM plans WHERE id = ?`, planID)
	if err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("plan %s: %w", planID, ErrNotFound)
	}
	return nil
}

// UpdateTaskStatus records a task transition without rewriting the plan.
// The plan's updated_at is bumped alongside.
func (s *SQLiteStore) UpdateTaskStatus(ctx context.Context, planID, taskID string, status plan.TaskStatus, code string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE tasks
		SET status = ?, code = ?
		WHERE plan_id = ? AND id = ?
	`, string(status), code, planID, taskID)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task %s in plan %s: %w", taskID, planID, ErrNotFound)
	}

	_, err = tx.ExecContext(ctx, `UPDATE plans SET updated_at = ? WHERE id = ?`, plan.Now().UTC().Format(timeLayout), planID)
	if err != nil {
		return fmt.Errorf("failed to touch plan: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
