package api

import (
	"context"
	"fmt"
	"log"

	"github.com/example/taskboard/modules/auth"
	"github.com/example/taskboard/modules/metrics"
	"github.com/example/taskboard/modules/task"
	"github.com/go-monolith/mono"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

// APIModule is the HTTP API module.
type APIModule struct {
	app     *fiber.App
	port    int
	cookies SessionCookies
	limiter fiber.Handler
	checks  []HealthCheck

	authAdapter    auth.AuthPort
	taskAdapter    task.TaskPort
	metricsAdapter metrics.MetricsPort
}

// Compile-time interface checks.
var _ mono.Module = (*APIModule)(nil)
var _ mono.DependentModule = (*APIModule)(nil)
var _ mono.HealthCheckableModule = (*APIModule)(nil)

// NewModule creates a new APIModule listening on port.
func NewModule(port int) *APIModule {
	return &APIModule{port: port}
}

// Name returns the module name.
func (m *APIModule) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies.
func (m *APIModule) Dependencies() []string {
	return []string{"auth", "task", "metrics"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *APIModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "auth":
		m.authAdapter = auth.NewAuthAdapter(container)
	case "task":
		m.taskAdapter = task.NewTaskAdapter(container)
	case "metrics":
		m.metricsAdapter = metrics.NewMetricsAdapter(container)
	}
}

// SetSecureCookies marks the session cookie Secure.
func (m *APIModule) SetSecureCookies(secure bool) {
	m.cookies.Secure = secure
}

// SetAuthRateLimiter installs the handler guarding /auth routes.
func (m *APIModule) SetAuthRateLimiter(limiter fiber.Handler) {
	m.limiter = limiter
}

// AddHealthCheck adds a dependency to GET /health.
func (m *APIModule) AddHealthCheck(name string, pinger Pinger) {
	m.checks = append(m.checks, HealthCheck{Name: name, Pinger: pinger})
}

// Start initializes the Fiber HTTP server.
func (m *APIModule) Start(_ context.Context) error {
	if m.authAdapter == nil {
		return fmt.Errorf("auth dependency not set")
	}
	if m.taskAdapter == nil {
		return fmt.Errorf("task dependency not set")
	}
	if m.metricsAdapter == nil {
		return fmt.Errorf("metrics dependency not set")
	}

	handlers := NewHandlers(m.authAdapter, m.taskAdapter, m.metricsAdapter, m.cookies, m.checks...)
	m.app = NewApp(handlers, m.authAdapter, m.limiter)

	addr := fmt.Sprintf(":%d", m.port)
	go func() {
		if err := m.app.Listen(addr); err != nil {
			log.Printf("[api] HTTP server error: %v", err)
		}
	}()

	log.Printf("[api] HTTP server started on %s", addr)
	return nil
}

// Stop shuts down the Fiber HTTP server.
func (m *APIModule) Stop(_ context.Context) error {
	if m.app == nil {
		return nil
	}
	log.Println("[api] Shutting down HTTP server...")
	return m.app.Shutdown()
}

// Health returns the health status of the module.
func (m *APIModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: map[string]any{
			"port":           m.port,
			"secure_cookies": m.cookies.Secure,
		},
	}
}

// NewApp builds the Fiber application with every route mounted. A nil
// limiter leaves the auth routes unlimited.
func NewApp(handlers *Handlers, authPort auth.AuthPort, limiter fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New())

	app.Get("/health", handlers.Health)

	authRoutes := app.Group("/auth")
	if limiter != nil {
		authRoutes.Use(limiter)
	}
	authRoutes.Post("/register", handlers.Register)
	authRoutes.Post("/login", handlers.Login)
	authRoutes.Post("/logout", handlers.Logout)

	tasks := app.Group("/tasks", RequireSession(authPort))
	tasks.Get("", handlers.ListTasks)
	tasks.Post("", handlers.CreateTask)
	tasks.Patch("/:id", handlers.UpdateTask)
	tasks.Delete("/:id", handlers.DeleteTask)

	pages := app.Group("/dashboard", RequirePageSession(authPort))
	pages.Get("", handlers.DashboardPage)
	pages.Get("/progress", handlers.ProgressPage)
	pages.Get("/analytics", handlers.AnalyticsPage)
	pages.Get("/account", handlers.AccountPage)
	pages.Get("/tasks", handlers.TasksPage)

	return app
}

// customErrorHandler handles errors that escape the handlers, such as
// unknown routes.
func customErrorHandler(c *fiber.Ctx, err error) error {
	if e, ok := err.(*fiber.Error); ok {
		return c.Status(e.Code).JSON(ErrorResponse{Error: e.Message})
	}
	return errorResponse(c, err)
}
