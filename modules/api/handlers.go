package api

import (
	"context"
	"encoding/json"
	"log"

	"github.com/example/taskboard/domain/apperr"
	"github.com/example/taskboard/modules/auth"
	"github.com/example/taskboard/modules/metrics"
	"github.com/example/taskboard/modules/task"
	"github.com/gofiber/fiber/v2"
)

var errInvalidBody = apperr.Validation("Invalid request body")

// Pinger is a dependency the health endpoint probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck names a Pinger in the health report.
type HealthCheck struct {
	Name   string
	Pinger Pinger
}

// Handlers contains HTTP handlers for the API.
type Handlers struct {
	auth    auth.AuthPort
	tasks   task.TaskPort
	metrics metrics.MetricsPort
	cookies SessionCookies
	checks  []HealthCheck
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(authPort auth.AuthPort, taskPort task.TaskPort, metricsPort metrics.MetricsPort, cookies SessionCookies, checks ...HealthCheck) *Handlers {
	return &Handlers{
		auth:    authPort,
		tasks:   taskPort,
		metrics: metricsPort,
		cookies: cookies,
		checks:  checks,
	}
}

// Register creates an account and signs it in.
func (h *Handlers) Register(c *fiber.Ctx) error {
	var req CredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, errInvalidBody)
	}

	resp, err := h.auth.Register(c.UserContext(), auth.RegisterRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return errorResponse(c, err)
	}

	h.cookies.Set(c, resp.Token)
	return c.JSON(OKResponse{OK: true})
}

// Login signs an existing account in.
func (h *Handlers) Login(c *fiber.Ctx) error {
	var req CredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, errInvalidBody)
	}

	resp, err := h.auth.Login(c.UserContext(), auth.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return errorResponse(c, err)
	}

	h.cookies.Set(c, resp.Token)
	return c.JSON(OKResponse{OK: true})
}

// Logout clears the session cookie. It succeeds without a session.
func (h *Handlers) Logout(c *fiber.Ctx) error {
	h.cookies.Clear(c)
	return c.JSON(OKResponse{OK: true})
}

// ListTasks returns the caller's newest tasks.
func (h *Handlers) ListTasks(c *fiber.Ctx) error {
	tasks, err := h.tasks.ListTasks(c.UserContext(), currentUserID(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(TaskListResponse{Tasks: tasks})
}

// CreateTask adds a task for the caller.
func (h *Handlers) CreateTask(c *fiber.Ctx) error {
	var body CreateTaskBody
	if err := c.BodyParser(&body); err != nil {
		return errorResponse(c, errInvalidBody)
	}

	created, err := h.tasks.CreateTask(c.UserContext(), &task.CreateTaskRequest{
		OwnerID:    currentUserID(c),
		Title:      body.Title,
		Status:     body.Status,
		Priority:   body.Priority,
		DueDate:    body.DueDate,
		ReminderAt: body.ReminderAt,
	})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(TaskResponse{Task: *created})
}

// UpdateTask applies a partial update. The raw body is forwarded so that an
// explicit null can be told apart from an absent key.
func (h *Handlers) UpdateTask(c *fiber.Ctx) error {
	patch := append([]byte(nil), c.Body()...)
	if len(patch) > 0 && !json.Valid(patch) {
		return errorResponse(c, task.ErrInvalidPatch)
	}

	updated, err := h.tasks.UpdateTask(c.UserContext(), &task.UpdateTaskRequest{
		OwnerID: currentUserID(c),
		TaskID:  c.Params("id"),
		Patch:   patch,
	})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(TaskResponse{Task: *updated})
}

// DeleteTask removes one of the caller's tasks.
func (h *Handlers) DeleteTask(c *fiber.Ctx) error {
	if err := h.tasks.DeleteTask(c.UserContext(), currentUserID(c), c.Params("id")); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(OKResponse{OK: true})
}

// DashboardPage renders the dashboard metrics.
func (h *Handlers) DashboardPage(c *fiber.Ctx) error {
	user := currentUser(c)
	dashboard, err := h.metrics.Dashboard(c.UserContext(), user.ID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(DashboardPage{User: newAccountView(user), Metrics: dashboard})
}

// ProgressPage renders the completion figures.
func (h *Handlers) ProgressPage(c *fiber.Ctx) error {
	user := currentUser(c)
	progress, err := h.metrics.Progress(c.UserContext(), user.ID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(ProgressPage{User: newAccountView(user), Progress: progress})
}

// AnalyticsPage renders the weekly summary and breakdowns.
func (h *Handlers) AnalyticsPage(c *fiber.Ctx) error {
	user := currentUser(c)
	analytics, err := h.metrics.Analytics(c.UserContext(), user.ID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(AnalyticsPage{User: newAccountView(user), Analytics: analytics})
}

// AccountPage renders the signed-in user's account.
func (h *Handlers) AccountPage(c *fiber.Ctx) error {
	return c.JSON(AccountPage{User: newAccountView(currentUser(c))})
}

// TasksPage renders the task board.
func (h *Handlers) TasksPage(c *fiber.Ctx) error {
	user := currentUser(c)
	tasks, err := h.tasks.ListTasks(c.UserContext(), user.ID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(TasksPage{User: newAccountView(user), Tasks: tasks})
}

// Health probes every registered check.
func (h *Handlers) Health(c *fiber.Ctx) error {
	resp := HealthResponse{Status: "healthy", Checks: make(map[string]string, len(h.checks))}
	for _, check := range h.checks {
		if err := check.Pinger.Ping(c.UserContext()); err != nil {
			log.Printf("[api] health check %s failed: %v", check.Name, err)
			resp.Status = "unhealthy"
			resp.Checks[check.Name] = "down"
			continue
		}
		resp.Checks[check.Name] = "up"
	}

	status := fiber.StatusOK
	if resp.Status != "healthy" {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(resp)
}

// errorResponse writes err as {"error": message} with the status of its kind.
// Unclassified errors are logged and reported as a generic 500.
func errorResponse(c *fiber.Ctx, err error) error {
	var status int
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		status = fiber.StatusBadRequest
	case apperr.KindAuthentication:
		status = fiber.StatusUnauthorized
	case apperr.KindNotFound:
		status = fiber.StatusNotFound
	case apperr.KindConflict:
		status = fiber.StatusConflict
	default:
		log.Printf("[api] %s %s failed: %v", c.Method(), c.Path(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "Internal server error"})
	}
	return c.Status(status).JSON(ErrorResponse{Error: messageOf(err)})
}

func messageOf(err error) string {
	if e, ok := apperr.FromRemote(err).(*apperr.Error); ok {
		return e.Message
	}
	return err.Error()
}
