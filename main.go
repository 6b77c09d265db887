package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/example/taskboard/modules/api"
	"github.com/example/taskboard/modules/audit"
	"github.com/example/taskboard/modules/auth"
	"github.com/example/taskboard/modules/metrics"
	"github.com/example/taskboard/modules/ratelimit"
	"github.com/example/taskboard/modules/task"
	"github.com/example/taskboard/storage"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Println("=== Taskboard ===")

	cfg, err := LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx := context.Background()

	store, err := storage.Open(ctx, cfg.Store)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.Store.Driver, err)
	}
	if err := store.EnsureIndexes(ctx); err != nil {
		log.Fatalf("Failed to ensure indexes: %v", err)
	}
	log.Printf("Connected to %s store", store.Driver())

	jwtManager, err := auth.NewJWTManager(auth.JWTConfig{SecretKey: cfg.JWTSecret})
	if err != nil {
		log.Fatalf("Failed to create JWT manager: %v", err)
	}

	auditLog, err := openAuditLog(cfg.AuditLog)
	if err != nil {
		log.Fatalf("Failed to set up audit log: %v", err)
	}

	logLevel := mono.LogLevelInfo
	if cfg.ErrorsOnly() {
		logLevel = mono.LogLevelError
	}

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(logLevel),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	limiter := ratelimit.NewModule(cfg.RedisAddr, cfg.AuthRateLimit)

	apiModule := api.NewModule(cfg.Port)
	apiModule.SetSecureCookies(cfg.Production())
	apiModule.SetAuthRateLimiter(limiter.Middleware().IPRateLimit())
	apiModule.AddHealthCheck("storage", store)
	apiModule.AddHealthCheck("redis", limiter)

	// Order: independent modules first, then dependent modules
	app.Register(auth.NewModule(store, jwtManager))
	app.Register(task.NewModule(store))
	app.Register(metrics.NewModule(store))
	app.Register(audit.NewModule(auditLog))
	app.Register(limiter)
	app.Register(apiModule) // Depends on auth, task and metrics

	if err := app.Start(ctx); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				stopErr := app.Stop(ctx)
				// The store outlives every module that reads from it.
				if err := store.Close(ctx); err != nil {
					log.Printf("Failed to close store: %v", err)
				}
				return stopErr
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(cfg *Config) {
	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Printf("Store: %s, environment: %s", cfg.Store.Driver, cfg.Env)
	if cfg.RedisAddr == "" {
		log.Println("Rate limiting: disabled (REDIS_ADDR not set)")
	} else {
		log.Printf("Rate limiting: %d requests/min per IP on /auth", cfg.AuthRateLimit.RequestsPerWindow)
	}
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%d):", cfg.Port)
	log.Println("")
	log.Println("  Public Endpoints:")
	log.Println("  POST   /auth/register         - Create an account and sign in")
	log.Println("  POST   /auth/login            - Sign in")
	log.Println("  POST   /auth/logout           - Sign out")
	log.Println("  GET    /health                - Health check")
	log.Println("")
	log.Println("  Session Endpoints (auth_token cookie):")
	log.Println("  GET    /tasks                 - List tasks")
	log.Println("  POST   /tasks                 - Create a task")
	log.Println("  PATCH  /tasks/:id             - Update a task")
	log.Println("  DELETE /tasks/:id             - Delete a task")
	log.Println("")
	log.Println("  Pages (redirect to /login without a session):")
	log.Println("  GET    /dashboard             - Dashboard metrics")
	log.Println("  GET    /dashboard/progress    - Completion progress")
	log.Println("  GET    /dashboard/analytics   - Weekly analytics")
	log.Println("  GET    /dashboard/account     - Account details")
	log.Println("  GET    /dashboard/tasks       - Task board")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
