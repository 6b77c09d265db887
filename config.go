package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/example/taskboard/domain/ratelimit"
	"github.com/example/taskboard/storage"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

const (
	defaultPort       = 3000
	defaultAuthLimit  = 20
	defaultAuditLog   = "stdout"
	defaultSQLitePath = "taskboard.db"
	defaultMongoDB    = "test"
	defaultEnvFile    = ".env"
)

// Config is the process configuration, read once at startup.
type Config struct {
	Port          int
	Env           string
	JWTSecret     string
	Store         storage.Config
	RedisAddr     string
	AuthRateLimit ratelimit.Config
	LogLevel      string
	AuditLog      string
}

// Production reports whether the process runs with APP_ENV=production.
func (c *Config) Production() bool {
	return c.Env == "production"
}

// ErrorsOnly reports whether framework logging is limited to errors.
func (c *Config) ErrorsOnly() bool {
	return c.LogLevel == "error"
}

// LoadConfig loads the .env file, then parses args, then reads the environment.
// Flags override their environment variables.
func LoadConfig(args []string) (*Config, error) {
	flagSet := pflag.NewFlagSet("taskboard", pflag.ContinueOnError)
	envFile := flagSet.String("env-file", defaultEnvFile, "path to a .env file loaded before reading the environment")
	port := flagSet.Int("port", 0, "HTTP port (overrides HTTP_PORT)")
	driver := flagSet.String("store", "", "store driver: mongo or sqlite (overrides STORE_DRIVER)")
	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}

	if err := godotenv.Load(*envFile); err != nil {
		if !errors.Is(err, os.ErrNotExist) || flagSet.Changed("env-file") {
			return nil, fmt.Errorf("failed to load %s: %w", *envFile, err)
		}
	}

	cfg := &Config{
		Port:      getEnvInt("HTTP_PORT", defaultPort),
		Env:       getEnv("APP_ENV", "development"),
		JWTSecret: getEnv("JWT_SECRET", ""),
		Store: storage.Config{
			Driver:     getEnv("STORE_DRIVER", storage.DriverMongo),
			MongoURI:   getEnv("MONGODB_URI", ""),
			MongoDB:    getEnv("MONGODB_DB", defaultMongoDB),
			SQLitePath: getEnv("SQLITE_PATH", defaultSQLitePath),
			Timeout:    getEnvDuration("STORE_TIMEOUT", storage.DefaultTimeout),
		},
		RedisAddr: getEnv("REDIS_ADDR", ""),
		AuthRateLimit: ratelimit.Config{
			RequestsPerWindow: getEnvInt("AUTH_RATE_LIMIT", defaultAuthLimit),
			WindowSize:        time.Minute,
		},
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),
		AuditLog: getEnv("AUDIT_LOG", defaultAuditLog),
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *driver != "" {
		cfg.Store.Driver = *driver
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.Store.Driver {
	case storage.DriverMongo:
		if c.Store.MongoURI == "" {
			return errors.New("MONGODB_URI is required when STORE_DRIVER is mongo")
		}
	case storage.DriverSQLite:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid HTTP port %d", c.Port)
	}
	return nil
}

// openAuditLog resolves AUDIT_LOG to a writer.
func openAuditLog(target string) (io.Writer, error) {
	switch target {
	case "", "stdout":
		return os.Stdout, nil
	case "off":
		return io.Discard, nil
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	return f, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid %s=%q, using default %d", key, value, fallback)
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Invalid %s=%q, using default %s", key, value, fallback)
		return fallback
	}
	return d
}
