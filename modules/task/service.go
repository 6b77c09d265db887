package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/taskboard/domain/apperr"
	domain "github.com/example/taskboard/domain/task"
	"github.com/example/taskboard/storage"
)

// ListLimit caps the list operation. It is not a page size: there is no cursor.
const ListLimit = 50

var (
	// ErrTaskNotFound covers unknown ids, malformed ids and tasks of other owners.
	ErrTaskNotFound = apperr.NotFound("Task not found")
	// ErrNoOwner is returned when a call reaches the service without an identity.
	ErrNoOwner = apperr.Authentication("Unauthorized")
)

// TaskService validates and applies task operations against the task store.
type TaskService struct {
	store storage.TaskStore
	now   func() time.Time
}

// NewTaskService creates a new TaskService.
func NewTaskService(store storage.TaskStore) *TaskService {
	return &TaskService{
		store: store,
		now:   time.Now,
	}
}

// List returns the owner's newest tasks.
func (s *TaskService) List(ctx context.Context, ownerID string) ([]domain.Task, error) {
	if ownerID == "" {
		return nil, ErrNoOwner
	}
	tasks, err := s.store.ListTasks(ctx, ownerID, ListLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return tasks, nil
}

// Create validates req and stores a new task.
func (s *TaskService) Create(ctx context.Context, req CreateTaskRequest) (*domain.Task, error) {
	if req.OwnerID == "" {
		return nil, ErrNoOwner
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}

	status := domain.StatusTodo
	if raw := strings.TrimSpace(req.Status); raw != "" {
		parsed, ok := domain.ParseStatus(raw)
		if !ok {
			return nil, ErrInvalidStatus
		}
		status = parsed
	}

	priority := domain.PriorityMedium
	if raw := strings.TrimSpace(req.Priority); raw != "" {
		parsed, ok := domain.ParsePriority(raw)
		if !ok {
			return nil, ErrInvalidPriority
		}
		priority = parsed
	}

	dueDate, err := optionalDate(req.DueDate, domain.ValidDate, ErrInvalidDueDate)
	if err != nil {
		return nil, err
	}
	reminderAt, err := optionalDate(req.ReminderAt, domain.ValidReminder, ErrInvalidReminder)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	t := &domain.Task{
		OwnerID:    req.OwnerID,
		Title:      title,
		Priority:   priority,
		DueDate:    dueDate,
		ReminderAt: reminderAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	t.SetStatus(status)

	if err := s.store.InsertTask(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return t, nil
}

// UpdateResult is the outcome of a successful Update.
type UpdateResult struct {
	Task *domain.Task
	// Fields names the fields the patch changed.
	Fields []string
	// Completed is set only when the update moved the task into Done.
	Completed bool
}

// Update applies a raw JSON patch to the owner's task.
func (s *TaskService) Update(ctx context.Context, ownerID, taskID string, patch json.RawMessage) (*UpdateResult, error) {
	if ownerID == "" {
		return nil, ErrNoOwner
	}

	changes, fields, err := parsePatch(patch)
	if err != nil {
		return nil, err
	}
	if taskID == "" {
		return nil, ErrTaskNotFound
	}
	changes.UpdatedAt = s.now().UTC()

	t, previous, err := s.store.UpdateTask(ctx, ownerID, taskID, changes)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return &UpdateResult{
		Task:      t,
		Fields:    fields,
		Completed: t.Status == domain.StatusDone && previous != domain.StatusDone,
	}, nil
}

// Delete removes the owner's task. Deleting a missing task is an error.
func (s *TaskService) Delete(ctx context.Context, ownerID, taskID string) error {
	if ownerID == "" {
		return ErrNoOwner
	}
	if taskID == "" {
		return ErrTaskNotFound
	}
	if err := s.store.DeleteTask(ctx, ownerID, taskID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrTaskNotFound
		}
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}
