package persistence

import (
	"context"
)

// initSchema creates all required tables if they don't exist.
// Dependency rows reference their owning task but not their target, so a
// dangling edge survives a save/load round trip.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tasks (
		plan_id TEXT NOT NULL,
		id TEXT NOT NULL,
		position INTEGER NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		files TEXT NOT NULL,
		status TEXT NOT NULL,
		estimated_time TEXT NOT NULL,
		priority TEXT NOT NULL,
		code TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (plan_id, id),
		FOREIGN KEY (plan_id) REFERENCES plans(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_plan_position ON tasks(plan_id, position);

	CREATE TABLE IF NOT EXISTS task_dependencies (
		plan_id TEXT NOT NULL,
		task_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		depends_on_id TEXT NOT NULL,
		PRIMARY KEY (plan_id, task_id, position),
		FOREIGN KEY (plan_id, task_id) REFERENCES tasks(plan_id, id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS task_attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		plan_id TEXT NOT NULL,
		task_id TEXT NOT NULL,
		attempt INTEGER NOT NULL,
		code TEXT NOT NULL,
		approved INTEGER NOT NULL,
		score INTEGER NOT NULL,
		issues TEXT NOT NULL,
		error TEXT NOT NULL,
		created_at TEXT NOT NULL,
		FOREIGN KEY (plan_id) REFERENCES plans(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_task_attempts_task
		ON task_attempts(plan_id, task_id, attempt);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}
