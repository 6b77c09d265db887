// Package storage provides the credential and task stores.
//
// Two backends implement Store: MongoDB for production deployments and
// SQLite through GORM for local runs and tests. Every call is bounded by the
// store timeout on top of whatever deadline the caller's context carries.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/taskboard/domain/task"
	"github.com/example/taskboard/domain/user"
)

var (
	// ErrNotFound is returned when no record matches the lookup (including owner scope).
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail is returned when a user with the same email already exists.
	ErrDuplicateEmail = errors.New("email already registered")
)

const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"

	// DefaultTimeout bounds a single store call when no timeout is configured.
	DefaultTimeout = 5 * time.Second
)

// Config selects and configures a backend.
type Config struct {
	Driver     string
	MongoURI   string
	MongoDB    string
	SQLitePath string
	Timeout    time.Duration
}

// UserStore persists user records.
type UserStore interface {
	CreateUser(ctx context.Context, u *user.User) error
	FindUserByEmail(ctx context.Context, email string) (*user.User, error)
	FindUserByID(ctx context.Context, id string) (*user.User, error)
}

// TaskStore persists tasks. Every method is scoped to ownerID.
type TaskStore interface {
	InsertTask(ctx context.Context, t *task.Task) error
	ListTasks(ctx context.Context, ownerID string, limit int) ([]task.Task, error)
	// UpdateTask returns the updated task together with the status it had
	// before the update.
	UpdateTask(ctx context.Context, ownerID, taskID string, changes task.Changes) (*task.Task, task.Status, error)
	DeleteTask(ctx context.Context, ownerID, taskID string) error

	CountTasks(ctx context.Context, ownerID string, q TaskQuery) (int64, error)
	FindTasks(ctx context.Context, ownerID string, q TaskQuery) ([]task.Task, error)
	DailyCounts(ctx context.Context, ownerID string, from time.Time) (map[string]DayCount, error)
}

// Store is a complete backend.
type Store interface {
	UserStore
	TaskStore

	// EnsureIndexes creates the email uniqueness and owner/created indexes.
	// It is idempotent and runs its work at most once per process.
	EnsureIndexes(ctx context.Context) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
	Driver() string
}

// Sort orders FindTasks results.
type Sort int

const (
	SortCreatedDesc Sort = iota
	SortDueAsc
	SortTouchedDesc
)

// TaskQuery filters tasks for aggregation. Zero values mean "no constraint".
// Date bounds compare the literal YYYY-MM-DD strings; time bounds are
// half-open [From, To).
type TaskQuery struct {
	Done     *bool
	Status   task.Status
	Priority task.Priority

	DueFrom   string
	DueTo     string
	DueBefore string

	CreatedFrom time.Time
	CreatedTo   time.Time

	// Touched is updatedAt, falling back to createdAt.
	TouchedFrom time.Time
	TouchedTo   time.Time

	Sort  Sort
	Limit int
}

func (q TaskQuery) hasDueBounds() bool {
	return q.DueFrom != "" || q.DueTo != "" || q.DueBefore != ""
}

// DayCount is one bucket of the daily activity series.
type DayCount struct {
	Created   int `json:"created"`
	Completed int `json:"completed"`
}

// Bool returns a pointer to b, for TaskQuery.Done.
func Bool(b bool) *bool {
	return &b
}

// Open connects to the backend named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	switch cfg.Driver {
	case DriverMongo, "":
		return OpenMongo(ctx, cfg)
	case DriverSQLite:
		return OpenGorm(cfg)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultTimeout
	}
	return context.WithTimeout(ctx, d)
}

// dayKey formats t as its UTC calendar date.
func dayKey(t time.Time) string {
	return t.UTC().Format(task.DateLayout)
}
