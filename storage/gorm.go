package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/taskboard/domain/task"
	"github.com/example/taskboard/domain/user"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormStore is the SQLite backend.
type GormStore struct {
	db      *gorm.DB
	timeout time.Duration

	migrateOnce sync.Once
	migrateErr  error
}

var _ Store = (*GormStore)(nil)

// OpenGorm opens the SQLite database at cfg.SQLitePath.
func OpenGorm(cfg Config) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(cfg.SQLitePath), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if cfg.SQLitePath == ":memory:" {
		// Each connection to :memory: is a separate database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database connection: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return NewGormStore(db, cfg.Timeout), nil
}

// NewGormStore wraps an open GORM handle.
func NewGormStore(db *gorm.DB, timeout time.Duration) *GormStore {
	return &GormStore{db: db, timeout: timeout}
}

// Driver returns "sqlite".
func (s *GormStore) Driver() string {
	return DriverSQLite
}

// EnsureIndexes migrates the schema once. Indexes come from the entity tags.
func (s *GormStore) EnsureIndexes(ctx context.Context) error {
	s.migrateOnce.Do(func() {
		ctx, cancel := withTimeout(ctx, s.timeout)
		defer cancel()
		if err := s.db.WithContext(ctx).AutoMigrate(&user.User{}, &task.Task{}); err != nil {
			s.migrateErr = fmt.Errorf("failed to migrate database: %w", err)
		}
	})
	return s.migrateErr
}

// Ping checks the underlying connection.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// Close closes the connection pool.
func (s *GormStore) Close(_ context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateUser inserts u, assigning an id when it has none.
func (s *GormStore) CreateUser(ctx context.Context, u *user.User) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var count int64
	if err := s.db.WithContext(ctx).Model(&user.User{}).Where("email = ?", u.Email).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check email existence: %w", err)
	}
	if count > 0 {
		return ErrDuplicateEmail
	}

	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindUserByEmail finds a user by normalized email.
func (s *GormStore) FindUserByEmail(ctx context.Context, email string) (*user.User, error) {
	return s.findUser(ctx, "email = ?", email)
}

// FindUserByID finds a user by id.
func (s *GormStore) FindUserByID(ctx context.Context, id string) (*user.User, error) {
	return s.findUser(ctx, "id = ?", id)
}

func (s *GormStore) findUser(ctx context.Context, query string, arg string) (*user.User, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var u user.User
	if err := s.db.WithContext(ctx).First(&u, query, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &u, nil
}

// InsertTask saves a new task, assigning an id when it has none.
func (s *GormStore) InsertTask(ctx context.Context, t *task.Task) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// ListTasks returns the owner's newest tasks.
func (s *GormStore) ListTasks(ctx context.Context, ownerID string, limit int) ([]task.Task, error) {
	return s.FindTasks(ctx, ownerID, TaskQuery{Sort: SortCreatedDesc, Limit: limit})
}

// UpdateTask applies changes to the owner's task and returns the stored
// result with the previous status. The read and the write share one
// transaction.
func (s *GormStore) UpdateTask(ctx context.Context, ownerID, taskID string, changes task.Changes) (*task.Task, task.Status, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	values := map[string]any{"updated_at": changes.UpdatedAt}
	if changes.Title != nil {
		values["title"] = *changes.Title
	}
	if changes.Status != nil {
		values["status"] = *changes.Status
		values["completed"] = *changes.Status == task.StatusDone
	}
	if changes.Priority != nil {
		values["priority"] = *changes.Priority
	}
	if changes.DueDate.Set {
		values["due_date"] = changes.DueDate.Value
	}
	if changes.ReminderAt.Set {
		values["reminder_at"] = changes.ReminderAt.Value
	}

	var before, after task.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&before, "id = ? AND owner_id = ?", taskID, ownerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load task: %w", err)
		}
		before.Normalize()

		if err := tx.Model(&task.Task{}).
			Where("id = ? AND owner_id = ?", taskID, ownerID).
			Updates(values).Error; err != nil {
			return fmt.Errorf("failed to update task: %w", err)
		}

		if err := tx.First(&after, "id = ? AND owner_id = ?", taskID, ownerID).Error; err != nil {
			return fmt.Errorf("failed to reload task: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	after.Normalize()
	return &after, before.Status, nil
}

// DeleteTask removes the owner's task.
func (s *GormStore) DeleteTask(ctx context.Context, ownerID, taskID string) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	result := s.db.WithContext(ctx).Where("id = ? AND owner_id = ?", taskID, ownerID).Delete(&task.Task{})
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountTasks counts the owner's tasks matching q.
func (s *GormStore) CountTasks(ctx context.Context, ownerID string, q TaskQuery) (int64, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var count int64
	if err := s.scoped(ctx, ownerID, q).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return count, nil
}

// FindTasks returns the owner's tasks matching q.
func (s *GormStore) FindTasks(ctx context.Context, ownerID string, q TaskQuery) ([]task.Task, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	tx := s.scoped(ctx, ownerID, q)
	switch q.Sort {
	case SortDueAsc:
		tx = tx.Order("due_date ASC").Order("created_at ASC")
	case SortTouchedDesc:
		tx = tx.Order("updated_at DESC").Order("created_at DESC")
	default:
		tx = tx.Order("created_at DESC")
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var tasks []task.Task
	if err := tx.Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("failed to find tasks: %w", err)
	}
	for i := range tasks {
		tasks[i].Normalize()
	}
	return tasks, nil
}

// DailyCounts buckets the owner's created and completed tasks per UTC day since from.
func (s *GormStore) DailyCounts(ctx context.Context, ownerID string, from time.Time) (map[string]DayCount, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var created []time.Time
	if err := s.scoped(ctx, ownerID, TaskQuery{CreatedFrom: from}).Pluck("created_at", &created).Error; err != nil {
		return nil, fmt.Errorf("failed to load created timestamps: %w", err)
	}
	var completed []time.Time
	if err := s.scoped(ctx, ownerID, TaskQuery{Done: Bool(true), TouchedFrom: from}).Pluck("updated_at", &completed).Error; err != nil {
		return nil, fmt.Errorf("failed to load completion timestamps: %w", err)
	}

	counts := make(map[string]DayCount)
	for _, t := range created {
		c := counts[dayKey(t)]
		c.Created++
		counts[dayKey(t)] = c
	}
	for _, t := range completed {
		c := counts[dayKey(t)]
		c.Completed++
		counts[dayKey(t)] = c
	}
	return counts, nil
}

// scoped builds the owner-scoped query for q. Rows always carry updated_at,
// so the touched bounds compare that column directly.
func (s *GormStore) scoped(ctx context.Context, ownerID string, q TaskQuery) *gorm.DB {
	tx := s.db.WithContext(ctx).Model(&task.Task{}).Where("owner_id = ?", ownerID)

	if q.Done != nil {
		if *q.Done {
			tx = tx.Where("(status = ? OR completed = ?)", task.StatusDone, true)
		} else {
			tx = tx.Where("COALESCE(status, '') <> ? AND completed = ?", task.StatusDone, false)
		}
	}
	if q.Status != "" {
		tx = tx.Where("status = ?", q.Status)
	}
	if q.Priority != "" {
		tx = tx.Where("priority = ?", q.Priority)
	}
	if q.hasDueBounds() {
		tx = tx.Where("due_date IS NOT NULL AND due_date <> ''")
	}
	if q.DueFrom != "" {
		tx = tx.Where("due_date >= ?", q.DueFrom)
	}
	if q.DueTo != "" {
		tx = tx.Where("due_date <= ?", q.DueTo)
	}
	if q.DueBefore != "" {
		tx = tx.Where("due_date < ?", q.DueBefore)
	}
	if !q.CreatedFrom.IsZero() {
		tx = tx.Where("created_at >= ?", q.CreatedFrom.UTC())
	}
	if !q.CreatedTo.IsZero() {
		tx = tx.Where("created_at < ?", q.CreatedTo.UTC())
	}
	if !q.TouchedFrom.IsZero() {
		tx = tx.Where("updated_at >= ?", q.TouchedFrom.UTC())
	}
	if !q.TouchedTo.IsZero() {
		tx = tx.Where("updated_at < ?", q.TouchedTo.UTC())
	}
	return tx
}
