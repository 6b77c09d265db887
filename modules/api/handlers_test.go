package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/taskboard/domain/apperr"
	taskdomain "github.com/example/taskboard/domain/task"
	"github.com/example/taskboard/modules/auth"
	"github.com/example/taskboard/modules/metrics"
	"github.com/example/taskboard/modules/task"
	"github.com/gofiber/fiber/v2"
)

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func sampleTask() *taskdomain.Task {
	return &taskdomain.Task{
		ID:        "task-1",
		OwnerID:   "user-123",
		Title:     "Pay rent",
		Status:    taskdomain.StatusTodo,
		Priority:  taskdomain.PriorityHigh,
		CreatedAt: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		registerErr    error
		expectedStatus int
		expectedBody   string
		expectCookie   bool
	}{
		{
			name:           "success sets session",
			body:           `{"name":"Ana","email":"ana@example.com","password":"secret-pass"}`,
			expectedStatus: http.StatusOK,
			expectedBody:   `{"ok":true}`,
			expectCookie:   true,
		},
		{
			name:           "validation error",
			body:           `{"name":"Ana","email":"bad","password":"secret-pass"}`,
			registerErr:    auth.ErrInvalidEmail,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"Invalid email format"}`,
		},
		{
			name:           "duplicate email",
			body:           `{"name":"Ana","email":"ana@example.com","password":"secret-pass"}`,
			registerErr:    auth.ErrUserExists,
			expectedStatus: http.StatusConflict,
			expectedBody:   `{"error":"Email already registered"}`,
		},
		{
			name:           "unexpected failure is hidden",
			body:           `{"name":"Ana","email":"ana@example.com","password":"secret-pass"}`,
			registerErr:    errors.New("register request failed: mongo: no reachable servers"),
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"error":"Internal server error"}`,
		},
		{
			name:           "malformed body",
			body:           `{"name":`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"Invalid request body"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authPort := &mockAuthPort{
				registerFunc: func(_ context.Context, req auth.RegisterRequest) (*auth.RegisterResponse, error) {
					if tt.registerErr != nil {
						return nil, tt.registerErr
					}
					if req.Name != "Ana" || req.Email != "ana@example.com" || req.Password != "secret-pass" {
						t.Errorf("Register() got %+v", req)
					}
					return &auth.RegisterResponse{UserID: "user-123", Email: req.Email, Token: "new-token"}, nil
				},
			}
			app := newTestApp(authPort, nil, nil)

			resp, body := doRequest(t, app, jsonRequest("POST", "/auth/register", tt.body))

			if resp.StatusCode != tt.expectedStatus {
				t.Errorf("status = %v, want %v", resp.StatusCode, tt.expectedStatus)
			}
			if body != tt.expectedBody {
				t.Errorf("body = %s, want %s", body, tt.expectedBody)
			}
			hasCookie := strings.Contains(resp.Header.Get("Set-Cookie"), "auth_token=new-token")
			if hasCookie != tt.expectCookie {
				t.Errorf("session cookie set = %v, want %v", hasCookie, tt.expectCookie)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	authPort := &mockAuthPort{
		loginFunc: func(_ context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
			if req.Password != "right-password" {
				return nil, auth.ErrInvalidCredentials
			}
			return &auth.LoginResponse{UserID: "user-123", Email: req.Email, Token: "login-token"}, nil
		},
	}
	app := newTestApp(authPort, nil, nil)

	t.Run("wrong password", func(t *testing.T) {
		resp, body := doRequest(t, app, jsonRequest("POST", "/auth/login", `{"email":"ana@example.com","password":"nope"}`))
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %v, want 401", resp.StatusCode)
		}
		if body != `{"error":"Invalid email or password"}` {
			t.Errorf("body = %s", body)
		}
		if resp.Header.Get("Set-Cookie") != "" {
			t.Error("failed login must not set a cookie")
		}
	})

	t.Run("success", func(t *testing.T) {
		resp, body := doRequest(t, app, jsonRequest("POST", "/auth/login", `{"email":"ana@example.com","password":"right-password"}`))
		if resp.StatusCode != http.StatusOK || body != `{"ok":true}` {
			t.Errorf("got %d %s, want 200 {\"ok\":true}", resp.StatusCode, body)
		}
		if !strings.Contains(resp.Header.Get("Set-Cookie"), "auth_token=login-token") {
			t.Errorf("Set-Cookie = %q", resp.Header.Get("Set-Cookie"))
		}
	})
}

func TestLogout(t *testing.T) {
	app := newTestApp(&mockAuthPort{}, nil, nil)

	resp, body := doRequest(t, app, httptest.NewRequest("POST", "/auth/logout", nil))
	if resp.StatusCode != http.StatusOK || body != `{"ok":true}` {
		t.Errorf("got %d %s, want 200 {\"ok\":true}", resp.StatusCode, body)
	}
	cookie := resp.Header.Get("Set-Cookie")
	if !strings.HasPrefix(cookie, "auth_token=;") || !strings.Contains(cookie, "Max-Age=0") {
		t.Errorf("Set-Cookie = %q, want cleared auth_token with Max-Age=0", cookie)
	}
}

func TestCreateTask(t *testing.T) {
	var got *task.CreateTaskRequest
	taskPort := &mockTaskPort{
		createFunc: func(_ context.Context, req *task.CreateTaskRequest) (*taskdomain.Task, error) {
			got = req
			if req.Title == "" {
				return nil, task.ErrTitleRequired
			}
			return sampleTask(), nil
		},
	}
	app := newTestApp(signedIn(), taskPort, nil)

	req := withSession(jsonRequest("POST", "/tasks", `{"title":"Pay rent","priority":"High","dueDate":"2026-03-20"}`), "valid-token")
	resp, body := doRequest(t, app, req)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %v, want 200 (body %s)", resp.StatusCode, body)
	}
	if got.OwnerID != "user-123" || got.Title != "Pay rent" || got.Priority != "High" || got.DueDate != "2026-03-20" {
		t.Errorf("CreateTask() got %+v", got)
	}
	if !strings.HasPrefix(body, `{"task":{"id":"task-1","title":"Pay rent"`) {
		t.Errorf("body = %s, want task envelope", body)
	}
	if strings.Contains(body, "user-123") {
		t.Errorf("body = %s, must not expose the owner", body)
	}

	req = withSession(jsonRequest("POST", "/tasks", `{"title":""}`), "valid-token")
	resp, body = doRequest(t, app, req)
	if resp.StatusCode != http.StatusBadRequest || body != `{"error":"Title is required"}` {
		t.Errorf("got %d %s, want 400 title error", resp.StatusCode, body)
	}
}

func TestUpdateTask(t *testing.T) {
	tests := []struct {
		name           string
		target         string
		body           string
		updateErr      error
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "raw patch forwarded",
			target:         "/tasks/task-1",
			body:           `{"dueDate":null,"status":"Done"}`,
			expectedStatus: http.StatusOK,
			expectedBody:   `{"task":{"id":"task-1"`,
		},
		{
			name:           "unknown task",
			target:         "/tasks/missing",
			body:           `{"title":"x"}`,
			updateErr:      apperr.NotFound("Task not found"),
			expectedStatus: http.StatusNotFound,
			expectedBody:   `{"error":"Task not found"}`,
		},
		{
			name:           "remote validation error",
			target:         "/tasks/task-1",
			body:           `{"priority":"Urgent"}`,
			updateErr:      apperr.Remote("update-task", errors.New("apperr[validation]: Priority must be one of Low, Medium, High")),
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"Priority must be one of Low, Medium, High"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *task.UpdateTaskRequest
			taskPort := &mockTaskPort{
				updateFunc: func(_ context.Context, req *task.UpdateTaskRequest) (*taskdomain.Task, error) {
					got = req
					if tt.updateErr != nil {
						return nil, tt.updateErr
					}
					return sampleTask(), nil
				},
			}
			app := newTestApp(signedIn(), taskPort, nil)

			resp, body := doRequest(t, app, withSession(jsonRequest("PATCH", tt.target, tt.body), "valid-token"))

			if resp.StatusCode != tt.expectedStatus {
				t.Errorf("status = %v, want %v", resp.StatusCode, tt.expectedStatus)
			}
			if !strings.HasPrefix(body, tt.expectedBody) {
				t.Errorf("body = %s, want prefix %s", body, tt.expectedBody)
			}
			if got == nil {
				t.Fatal("UpdateTask() not called")
			}
			if string(got.Patch) != tt.body {
				t.Errorf("Patch = %s, want %s", got.Patch, tt.body)
			}
			if got.OwnerID != "user-123" || got.TaskID != strings.TrimPrefix(tt.target, "/tasks/") {
				t.Errorf("UpdateTask() owner/task = %s/%s", got.OwnerID, got.TaskID)
			}
		})
	}
}

func TestUpdateTask_MalformedBody(t *testing.T) {
	called := false
	taskPort := &mockTaskPort{
		updateFunc: func(context.Context, *task.UpdateTaskRequest) (*taskdomain.Task, error) {
			called = true
			return sampleTask(), nil
		},
	}
	app := newTestApp(signedIn(), taskPort, nil)

	resp, body := doRequest(t, app, withSession(jsonRequest("PATCH", "/tasks/task-1", `{"title":`), "valid-token"))
	if resp.StatusCode != http.StatusBadRequest || body != `{"error":"Request body must be a JSON object"}` {
		t.Errorf("got %d %s, want 400 invalid patch", resp.StatusCode, body)
	}
	if called {
		t.Error("UpdateTask() called with a malformed body")
	}
}

func TestDeleteTask(t *testing.T) {
	var deleted string
	taskPort := &mockTaskPort{
		deleteFunc: func(_ context.Context, ownerID, taskID string) error {
			if ownerID != "user-123" {
				t.Errorf("DeleteTask() owner = %s", ownerID)
			}
			if taskID != "task-1" {
				return task.ErrTaskNotFound
			}
			deleted = taskID
			return nil
		},
	}
	app := newTestApp(signedIn(), taskPort, nil)

	resp, body := doRequest(t, app, withSession(httptest.NewRequest("DELETE", "/tasks/task-1", nil), "valid-token"))
	if resp.StatusCode != http.StatusOK || body != `{"ok":true}` || deleted != "task-1" {
		t.Errorf("got %d %s deleted=%q", resp.StatusCode, body, deleted)
	}

	resp, body = doRequest(t, app, withSession(httptest.NewRequest("DELETE", "/tasks/task-2", nil), "valid-token"))
	if resp.StatusCode != http.StatusNotFound || body != `{"error":"Task not found"}` {
		t.Errorf("got %d %s, want 404", resp.StatusCode, body)
	}
}

func TestDashboardPages(t *testing.T) {
	metricsPort := &mockMetricsPort{
		dashboardFunc: func(_ context.Context, ownerID string) (*metrics.Dashboard, error) {
			return &metrics.Dashboard{CompletedTotal: 4, ProductivityScore: 80}, nil
		},
		progressFunc: func(_ context.Context, ownerID string) (*metrics.Progress, error) {
			if ownerID != "user-123" {
				t.Errorf("Progress() owner = %s", ownerID)
			}
			return &metrics.Progress{Total: 3, Completed: 1, Pending: 2, CompletionRate: 33}, nil
		},
		analyticsFunc: func(context.Context, string) (*metrics.Analytics, error) {
			return &metrics.Analytics{CurrentStreak: 2, BestStreak: 5}, nil
		},
	}
	taskPort := &mockTaskPort{
		listFunc: func(context.Context, string) ([]taskdomain.Task, error) {
			return []taskdomain.Task{*sampleTask()}, nil
		},
	}
	app := newTestApp(signedIn(), taskPort, metricsPort)

	tests := []struct {
		path         string
		expectedBody string
	}{
		{"/dashboard", `"completedTotal":4`},
		{"/dashboard/progress", `"progress":{"total":3,"completed":1,"pending":2,"completionRate":33}`},
		{"/dashboard/analytics", `"currentStreak":2`},
		{"/dashboard/account", `"user":{"id":"user-123","email":"ana@example.com","name":"Ana Maria Silva"`},
		{"/dashboard/tasks", `"tasks":[{"id":"task-1"`},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, body := doRequest(t, app, withSession(httptest.NewRequest("GET", tt.path, nil), "valid-token"))
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %v, want 200 (body %s)", resp.StatusCode, body)
			}
			if !strings.Contains(body, tt.expectedBody) {
				t.Errorf("body = %s, want to contain %s", body, tt.expectedBody)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	up := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name           string
		checks         []HealthCheck
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "all up",
			checks:         []HealthCheck{{Name: "storage", Pinger: up}, {Name: "redis", Pinger: up}},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"healthy","checks":{"redis":"up","storage":"up"}}`,
		},
		{
			name:           "storage down",
			checks:         []HealthCheck{{Name: "storage", Pinger: down}, {Name: "redis", Pinger: up}},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   `{"status":"unhealthy","checks":{"redis":"up","storage":"down"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(&mockAuthPort{}, nil, nil, tt.checks...)
			resp, body := doRequest(t, app, httptest.NewRequest("GET", "/health", nil))
			if resp.StatusCode != tt.expectedStatus {
				t.Errorf("status = %v, want %v", resp.StatusCode, tt.expectedStatus)
			}
			if body != tt.expectedBody {
				t.Errorf("body = %s, want %s", body, tt.expectedBody)
			}
		})
	}
}

func TestUnknownRoute(t *testing.T) {
	app := newTestApp(&mockAuthPort{}, nil, nil)
	resp, body := doRequest(t, app, httptest.NewRequest("GET", "/nope", nil))
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %v, want 404", resp.StatusCode)
	}
	if !strings.HasPrefix(body, `{"error":`) {
		t.Errorf("body = %s, want error envelope", body)
	}
}

func TestAuthRateLimiterScope(t *testing.T) {
	limited := func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{Error: "Too many requests"})
	}
	taskPort := &mockTaskPort{
		listFunc: func(context.Context, string) ([]taskdomain.Task, error) { return nil, nil },
	}
	handlers := NewHandlers(signedIn(), taskPort, &mockMetricsPort{}, SessionCookies{})
	app := NewApp(handlers, signedIn(), limited)

	resp, _ := doRequest(t, app, jsonRequest("POST", "/auth/login", `{}`))
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("/auth/login status = %v, want 429", resp.StatusCode)
	}

	resp, body := doRequest(t, app, withSession(httptest.NewRequest("GET", "/tasks", nil), "valid-token"))
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/tasks status = %v, want 200 (body %s)", resp.StatusCode, body)
	}
}
