package api

import (
	"time"

	taskdomain "github.com/example/taskboard/domain/task"
	userdomain "github.com/example/taskboard/domain/user"
	"github.com/example/taskboard/modules/metrics"
)

// CredentialsRequest is the body of the register and login endpoints.
// Name is ignored on login.
type CredentialsRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateTaskBody is the body of POST /tasks.
type CreateTaskBody struct {
	Title      string `json:"title"`
	Status     string `json:"status"`
	Priority   string `json:"priority"`
	DueDate    string `json:"dueDate"`
	ReminderAt string `json:"reminderAt"`
}

// OKResponse acknowledges a request that has no other payload.
type OKResponse struct {
	OK bool `json:"ok"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// TaskResponse wraps a single task.
type TaskResponse struct {
	Task taskdomain.Task `json:"task"`
}

// TaskListResponse wraps the owner's task list.
type TaskListResponse struct {
	Tasks []taskdomain.Task `json:"tasks"`
}

// AccountView is the signed-in user as page headers render it.
type AccountView struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName"`
	Initials    string    `json:"initials"`
	CreatedAt   time.Time `json:"createdAt"`
}

func newAccountView(u *userdomain.User) AccountView {
	return AccountView{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		DisplayName: u.DisplayName(),
		Initials:    u.Initials(),
		CreatedAt:   u.CreatedAt,
	}
}

// DashboardPage is the view model of GET /dashboard.
type DashboardPage struct {
	User    AccountView        `json:"user"`
	Metrics *metrics.Dashboard `json:"metrics"`
}

// ProgressPage is the view model of GET /dashboard/progress.
type ProgressPage struct {
	User     AccountView       `json:"user"`
	Progress *metrics.Progress `json:"progress"`
}

// AnalyticsPage is the view model of GET /dashboard/analytics.
type AnalyticsPage struct {
	User      AccountView        `json:"user"`
	Analytics *metrics.Analytics `json:"analytics"`
}

// AccountPage is the view model of GET /dashboard/account.
type AccountPage struct {
	User AccountView `json:"user"`
}

// TasksPage is the view model of GET /dashboard/tasks.
type TasksPage struct {
	User  AccountView       `json:"user"`
	Tasks []taskdomain.Task `json:"tasks"`
}

// HealthResponse reports the result of every registered check.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
