// Package config provides configuration management for the Sakura host
// process: engine sizing, logging, the optional HTTP facade, the optional
// cron scheduler, and where the garden loads trees and data files from.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	Engine   EngineConfig
	Logging  LoggingConfig
	HTTP     HTTPConfig
	Schedule ScheduleConfig
	Garden   GardenConfig
}

// EngineConfig sizes the interpreter's worker pool and the queue backing
// Parallel fan-out. DefaultTimeout, NodeTimeout and MaxOutputSize are
// loaded from the environment; cmd/sakurad does not pass them to the
// facade, so they do not bound a run.
type EngineConfig struct {
	WorkerCount    int
	QueueCapacity  int
	DefaultTimeout time.Duration
	NodeTimeout    time.Duration
	MaxOutputSize  int64
}

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level  string
	Format string // "json" or "text"
}

// HTTPConfig holds the optional gin-based facade server configuration.
type HTTPConfig struct {
	Enabled            bool
	Port               int
	Host               string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	ShutdownTimeout    time.Duration
	CORS               bool
	CORSAllowedOrigins []string
	APIKeys            []string
}

// ScheduleConfig holds the optional robfig/cron-backed trigger
// configuration.
type ScheduleConfig struct {
	Enabled  bool
	Timezone string
}

// GardenConfig holds where trees and data files are loaded from on
// startup. Templates are not loaded from disk.
type GardenConfig struct {
	TreesDir string
	FilesDir string
}

// Load loads the configuration from environment variables, applying a
// .env file via godotenv if one is present.
func Load() (*Config, error) {
	godotenv.Load()
	cfg := &Config{
		Engine: EngineConfig{
			WorkerCount:    getEnvAsInt("SAKURA_WORKER_COUNT", 8),
			QueueCapacity:  getEnvAsInt("SAKURA_QUEUE_CAPACITY", 256),
			DefaultTimeout: getEnvAsDuration("SAKURA_DEFAULT_TIMEOUT", 5*time.Minute),
			NodeTimeout:    getEnvAsDuration("SAKURA_NODE_TIMEOUT", time.Minute),
			MaxOutputSize:  getEnvAsInt64("SAKURA_MAX_OUTPUT_SIZE", 10*1024*1024),
		},
		Logging: LoggingConfig{
			Level:  getEnv("SAKURA_LOG_LEVEL", "info"),
			Format: getEnv("SAKURA_LOG_FORMAT", "json"),
		},
		HTTP: HTTPConfig{
			Enabled:            getEnvAsBool("SAKURA_HTTP_ENABLED", false),
			Port:               getEnvAsInt("SAKURA_HTTP_PORT", 8686),
			Host:               getEnv("SAKURA_HTTP_HOST", "0.0.0.0"),
			ReadTimeout:        getEnvAsDuration("SAKURA_HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:       getEnvAsDuration("SAKURA_HTTP_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout:    getEnvAsDuration("SAKURA_HTTP_SHUTDOWN_TIMEOUT", 30*time.Second),
			CORS:               getEnvAsBool("SAKURA_HTTP_CORS_ENABLED", true),
			CORSAllowedOrigins: getEnvAsSlice("SAKURA_HTTP_CORS_ALLOWED_ORIGINS", []string{}),
			APIKeys:            getEnvAsSlice("SAKURA_HTTP_API_KEYS", []string{}),
		},
		Schedule: ScheduleConfig{
			Enabled:  getEnvAsBool("SAKURA_SCHEDULE_ENABLED", false),
			Timezone: getEnv("SAKURA_SCHEDULE_TIMEZONE", "UTC"),
		},
		Garden: GardenConfig{
			TreesDir: getEnv("SAKURA_TREES_DIR", "./trees"),
			FilesDir: getEnv("SAKURA_FILES_DIR", "./files"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Engine.WorkerCount < 1 {
		return fmt.Errorf("engine worker count must be at least 1")
	}

	if c.HTTP.Enabled && (c.HTTP.Port < 1 || c.HTTP.Port > 65535) {
		return fmt.Errorf("invalid http port: %d", c.HTTP.Port)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	return nil
}

// Helper functions for environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var result []string
	current := ""
	for _, ch := range valueStr {
		if ch == ',' {
			if current != "" {
				result = append(result, current)
				current = ""
			}
		} else {
			current += string(ch)
		}
	}

	if current != "" {
		result = append(result, current)
	}

	return result
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}
