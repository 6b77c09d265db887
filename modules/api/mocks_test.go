package api

import (
	"context"
	"errors"

	taskdomain "github.com/example/taskboard/domain/task"
	userdomain "github.com/example/taskboard/domain/user"
	"github.com/example/taskboard/modules/auth"
	"github.com/example/taskboard/modules/metrics"
	"github.com/example/taskboard/modules/task"
)

var errNotImplemented = errors.New("not implemented")

// mockAuthPort implements auth.AuthPort for testing
type mockAuthPort struct {
	registerFunc      func(ctx context.Context, req auth.RegisterRequest) (*auth.RegisterResponse, error)
	loginFunc         func(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error)
	validateTokenFunc func(ctx context.Context, token string) (*userdomain.Claims, error)
	getUserFunc       func(ctx context.Context, userID string) (*userdomain.User, error)
}

func (m *mockAuthPort) Register(ctx context.Context, req auth.RegisterRequest) (*auth.RegisterResponse, error) {
	if m.registerFunc != nil {
		return m.registerFunc(ctx, req)
	}
	return nil, errNotImplemented
}

func (m *mockAuthPort) Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	if m.loginFunc != nil {
		return m.loginFunc(ctx, req)
	}
	return nil, errNotImplemented
}

func (m *mockAuthPort) ValidateToken(ctx context.Context, token string) (*userdomain.Claims, error) {
	if m.validateTokenFunc != nil {
		return m.validateTokenFunc(ctx, token)
	}
	return nil, auth.ErrInvalidToken
}

func (m *mockAuthPort) GetUser(ctx context.Context, userID string) (*userdomain.User, error) {
	if m.getUserFunc != nil {
		return m.getUserFunc(ctx, userID)
	}
	return nil, errNotImplemented
}

// signedIn accepts the token "valid-token" for user-123.
func signedIn() *mockAuthPort {
	return &mockAuthPort{
		validateTokenFunc: func(_ context.Context, token string) (*userdomain.Claims, error) {
			if token != "valid-token" {
				return nil, auth.ErrInvalidToken
			}
			return &userdomain.Claims{UserID: "user-123", Email: "ana@example.com"}, nil
		},
		getUserFunc: func(_ context.Context, userID string) (*userdomain.User, error) {
			if userID != "user-123" {
				return nil, auth.ErrUserNotFound
			}
			return &userdomain.User{ID: "user-123", Email: "ana@example.com", Name: "Ana Maria Silva"}, nil
		},
	}
}

// mockTaskPort implements task.TaskPort for testing
type mockTaskPort struct {
	listFunc   func(ctx context.Context, ownerID string) ([]taskdomain.Task, error)
	createFunc func(ctx context.Context, req *task.CreateTaskRequest) (*taskdomain.Task, error)
	updateFunc func(ctx context.Context, req *task.UpdateTaskRequest) (*taskdomain.Task, error)
	deleteFunc func(ctx context.Context, ownerID, taskID string) error
}

func (m *mockTaskPort) ListTasks(ctx context.Context, ownerID string) ([]taskdomain.Task, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, ownerID)
	}
	return nil, errNotImplemented
}

func (m *mockTaskPort) CreateTask(ctx context.Context, req *task.CreateTaskRequest) (*taskdomain.Task, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, req)
	}
	return nil, errNotImplemented
}

func (m *mockTaskPort) UpdateTask(ctx context.Context, req *task.UpdateTaskRequest) (*taskdomain.Task, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, req)
	}
	return nil, errNotImplemented
}

func (m *mockTaskPort) DeleteTask(ctx context.Context, ownerID, taskID string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, ownerID, taskID)
	}
	return errNotImplemented
}

// mockMetricsPort implements metrics.MetricsPort for testing
type mockMetricsPort struct {
	dashboardFunc func(ctx context.Context, ownerID string) (*metrics.Dashboard, error)
	progressFunc  func(ctx context.Context, ownerID string) (*metrics.Progress, error)
	analyticsFunc func(ctx context.Context, ownerID string) (*metrics.Analytics, error)
}

func (m *mockMetricsPort) Dashboard(ctx context.Context, ownerID string) (*metrics.Dashboard, error) {
	if m.dashboardFunc != nil {
		return m.dashboardFunc(ctx, ownerID)
	}
	return nil, errNotImplemented
}

func (m *mockMetricsPort) Progress(ctx context.Context, ownerID string) (*metrics.Progress, error) {
	if m.progressFunc != nil {
		return m.progressFunc(ctx, ownerID)
	}
	return nil, errNotImplemented
}

func (m *mockMetricsPort) Analytics(ctx context.Context, ownerID string) (*metrics.Analytics, error) {
	if m.analyticsFunc != nil {
		return m.analyticsFunc(ctx, ownerID)
	}
	return nil, errNotImplemented
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}
