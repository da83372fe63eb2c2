package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/aristath/planner/internal/plan"
)

// ErrNotFound is returned when a plan or task does not exist.
var ErrNotFound = errors.New("not found")

// opTimeout bounds every single store operation.
const opTimeout = 5 * time.Second

// PlanSummary is the listing view of a stored plan.
type PlanSummary struct {
	ID      string
	Title   string
	Status  plan.PlanStatus
	Tasks   int
	Done    int
	Updated time.Time
}

// Attempt is one generate/review round of a task.
type Attempt struct {
	PlanID    string
	TaskID    string
	Number    int
	Code      string
	Approved  bool
	Score     int
	Issues    []string
	Error     string
	CreatedAt time.Time
}

// Store defines the persistence interface for plans and execution history.
type Store interface {
	// Plans
	SavePlan(ctx context.Context, p *plan.Plan) error
	GetPlan(ctx context.Context, planID string) (*plan.Plan, error)
	ListPlans(ctx context.Context) ([]PlanSummary, error)
	DeletePlan(ctx context.Context, planID string) error
	UpdateTaskStatus(ctx context.Context, planID, taskID string, status plan.TaskStatus, code string) error

	// Attempt history
	SaveAttempt(ctx context.Context, a Attempt) error
	ListAttempts(ctx context.Context, planID, taskID string) ([]Attempt, error)

	// Lifecycle
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed store at the given path.
// Creates parent directories if needed. Enables WAL mode, foreign keys, and busy timeout.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	// modernc.org/sqlite ignores _foreign_keys in the DSN; see open.
	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	return open(ctx, connStr)
}

// NewMemoryStore creates a private in-memory store for tests. Each call gets
// its own database; the shared cache only lets the pool's connections see it.
func NewMemoryStore(ctx context.Context) (*SQLiteStore, error) {
	connStr := fmt.Sprintf("file:mem-%s?mode=memory&cache=shared", strings.ReplaceAll(uuid.NewString(), "-", ""))
	return open(ctx, connStr)
}

func open(ctx context.Context, connStr string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection keeps PRAGMA foreign_keys in effect for every statement.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
