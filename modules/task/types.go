package task

import (
	"context"
	"encoding/json"

	domain "github.com/example/taskboard/domain/task"
)

// ListTasksRequest is the request for listing tasks.
type ListTasksRequest struct {
	OwnerID string `json:"owner_id"`
}

// ListTasksResponse carries the owner's newest tasks.
type ListTasksResponse struct {
	Tasks []domain.Task `json:"tasks"`
}

// CreateTaskRequest is the request for creating a task.
// Empty optional fields mean "not provided".
type CreateTaskRequest struct {
	OwnerID    string `json:"owner_id"`
	Title      string `json:"title"`
	Status     string `json:"status,omitempty"`
	Priority   string `json:"priority,omitempty"`
	DueDate    string `json:"dueDate,omitempty"`
	ReminderAt string `json:"reminderAt,omitempty"`
}

// UpdateTaskRequest is the request for a partial update.
// Patch is the client's JSON object as received, so key presence survives.
type UpdateTaskRequest struct {
	OwnerID string          `json:"owner_id"`
	TaskID  string          `json:"task_id"`
	Patch   json.RawMessage `json:"patch"`
}

// TaskResponse is the response for a single task.
type TaskResponse struct {
	Task domain.Task `json:"task"`
}

// DeleteTaskRequest is the request for deleting a task.
type DeleteTaskRequest struct {
	OwnerID string `json:"owner_id"`
	TaskID  string `json:"task_id"`
}

// DeleteTaskResponse is the response for deleting a task.
type DeleteTaskResponse struct {
	Deleted bool `json:"deleted"`
}

// TaskPort defines the interface for task operations.
// This is the contract the HTTP API uses to reach the task module.
type TaskPort interface {
	ListTasks(ctx context.Context, ownerID string) ([]domain.Task, error)
	CreateTask(ctx context.Context, req *CreateTaskRequest) (*domain.Task, error)
	UpdateTask(ctx context.Context, req *UpdateTaskRequest) (*domain.Task, error)
	DeleteTask(ctx context.Context, ownerID, taskID string) error
}
