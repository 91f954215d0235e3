package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Load_DefaultValues(t *testing.T) {
	clearEnv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, 8, cfg.Engine.WorkerCount)
	assert.Equal(t, 256, cfg.Engine.QueueCapacity)
	assert.Equal(t, 5*time.Minute, cfg.Engine.DefaultTimeout)
	assert.Equal(t, time.Minute, cfg.Engine.NodeTimeout)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	assert.False(t, cfg.HTTP.Enabled)
	assert.Equal(t, 8686, cfg.HTTP.Port)
	assert.True(t, cfg.HTTP.CORS)

	assert.False(t, cfg.Schedule.Enabled)
	assert.Equal(t, "UTC", cfg.Schedule.Timezone)

	assert.Equal(t, "./trees", cfg.Garden.TreesDir)
	assert.Equal(t, "./files", cfg.Garden.FilesDir)
}

func TestConfig_Load_CustomValues(t *testing.T) {
	clearEnv()

	os.Setenv("SAKURA_WORKER_COUNT", "16")
	os.Setenv("SAKURA_QUEUE_CAPACITY", "1024")
	os.Setenv("SAKURA_LOG_LEVEL", "debug")
	os.Setenv("SAKURA_LOG_FORMAT", "text")
	os.Setenv("SAKURA_HTTP_ENABLED", "true")
	os.Setenv("SAKURA_HTTP_PORT", "9090")
	os.Setenv("SAKURA_HTTP_CORS_ALLOWED_ORIGINS", "a.example.com,b.example.com")
	os.Setenv("SAKURA_SCHEDULE_ENABLED", "true")
	os.Setenv("SAKURA_SCHEDULE_TIMEZONE", "America/New_York")
	defer clearEnv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.Engine.WorkerCount)
	assert.Equal(t, 1024, cfg.Engine.QueueCapacity)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.True(t, cfg.HTTP.Enabled)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, []string{"a.example.com", "b.example.com"}, cfg.HTTP.CORSAllowedOrigins)
	assert.True(t, cfg.Schedule.Enabled)
	assert.Equal(t, "America/New_York", cfg.Schedule.Timezone)
}

func TestConfig_Load_InvalidValuesUseDefaults(t *testing.T) {
	clearEnv()

	os.Setenv("SAKURA_WORKER_COUNT", "not_a_number")
	os.Setenv("SAKURA_HTTP_ENABLED", "not_a_bool")
	defer clearEnv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Engine.WorkerCount)
	assert.False(t, cfg.HTTP.Enabled)
}

func TestConfig_Validate_Success(t *testing.T) {
	cfg := &Config{
		Engine:  EngineConfig{WorkerCount: 4},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate_InvalidWorkerCount(t *testing.T) {
	cfg := &Config{
		Engine:  EngineConfig{WorkerCount: 0},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "worker count")
}

func TestConfig_Validate_InvalidHTTPPort(t *testing.T) {
	cfg := &Config{
		Engine:  EngineConfig{WorkerCount: 4},
		HTTP:    HTTPConfig{Enabled: true, Port: 70000},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid http port")
}

func TestConfig_Validate_DisabledHTTPIgnoresPort(t *testing.T) {
	cfg := &Config{
		Engine:  EngineConfig{WorkerCount: 4},
		HTTP:    HTTPConfig{Enabled: false, Port: 0},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate_InvalidLogLevel(t *testing.T) {
	tests := []string{"trace", "verbose", "critical", "invalid", ""}

	for _, level := range tests {
		t.Run("Level "+level, func(t *testing.T) {
			cfg := &Config{
				Engine:  EngineConfig{WorkerCount: 4},
				Logging: LoggingConfig{Level: level, Format: "json"},
			}
			err := cfg.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "invalid log level")
		})
	}
}

func TestConfig_Validate_ValidLogLevels(t *testing.T) {
	tests := []string{"debug", "info", "warn", "error"}

	for _, level := range tests {
		t.Run("Level "+level, func(t *testing.T) {
			cfg := &Config{
				Engine:  EngineConfig{WorkerCount: 4},
				Logging: LoggingConfig{Level: level, Format: "json"},
			}
			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestConfig_Validate_InvalidLogFormat(t *testing.T) {
	tests := []string{"xml", "yaml", "csv", "invalid", ""}

	for _, format := range tests {
		t.Run("Format "+format, func(t *testing.T) {
			cfg := &Config{
				Engine:  EngineConfig{WorkerCount: 4},
				Logging: LoggingConfig{Level: "info", Format: format},
			}
			err := cfg.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "invalid log format")
		})
	}
}

func TestGetEnv_WithValue(t *testing.T) {
	os.Setenv("TEST_KEY", "test_value")
	defer os.Unsetenv("TEST_KEY")

	assert.Equal(t, "test_value", getEnv("TEST_KEY", "default"))
}

func TestGetEnv_WithoutValue(t *testing.T) {
	os.Unsetenv("TEST_KEY")
	assert.Equal(t, "default", getEnv("TEST_KEY", "default"))
}

func TestGetEnvAsInt_ValidAndInvalid(t *testing.T) {
	os.Setenv("TEST_INT", "42")
	assert.Equal(t, 42, getEnvAsInt("TEST_INT", 10))

	os.Setenv("TEST_INT", "not_a_number")
	assert.Equal(t, 10, getEnvAsInt("TEST_INT", 10))

	os.Unsetenv("TEST_INT")
	assert.Equal(t, 10, getEnvAsInt("TEST_INT", 10))
}

func TestGetEnvAsInt64_ValidAndInvalid(t *testing.T) {
	os.Setenv("TEST_INT64", "4294967296")
	defer os.Unsetenv("TEST_INT64")
	assert.Equal(t, int64(4294967296), getEnvAsInt64("TEST_INT64", 1))

	os.Setenv("TEST_INT64", "nope")
	assert.Equal(t, int64(1), getEnvAsInt64("TEST_INT64", 1))
}

func TestGetEnvAsBool_Variants(t *testing.T) {
	for _, v := range []string{"true", "1", "t", "T"} {
		os.Setenv("TEST_BOOL", v)
		assert.True(t, getEnvAsBool("TEST_BOOL", false), v)
	}
	for _, v := range []string{"false", "0", "f", "F"} {
		os.Setenv("TEST_BOOL", v)
		assert.False(t, getEnvAsBool("TEST_BOOL", true), v)
	}
	os.Setenv("TEST_BOOL", "invalid")
	assert.True(t, getEnvAsBool("TEST_BOOL", true))
	os.Unsetenv("TEST_BOOL")
}

func TestGetEnvAsDuration_ValidAndInvalid(t *testing.T) {
	os.Setenv("TEST_DURATION", "1h30m")
	assert.Equal(t, 90*time.Minute, getEnvAsDuration("TEST_DURATION", 10*time.Second))

	os.Setenv("TEST_DURATION", "invalid")
	assert.Equal(t, 10*time.Second, getEnvAsDuration("TEST_DURATION", 10*time.Second))

	os.Unsetenv("TEST_DURATION")
	assert.Equal(t, 10*time.Second, getEnvAsDuration("TEST_DURATION", 10*time.Second))
}

func TestGetEnvAsSlice_Variants(t *testing.T) {
	os.Setenv("TEST_SLICE", "value1,value2,value3")
	assert.Equal(t, []string{"value1", "value2", "value3"}, getEnvAsSlice("TEST_SLICE", nil))

	os.Setenv("TEST_SLICE", "")
	assert.Equal(t, []string{"default1"}, getEnvAsSlice("TEST_SLICE", []string{"default1"}))

	os.Unsetenv("TEST_SLICE")
	assert.Equal(t, []string{"default1"}, getEnvAsSlice("TEST_SLICE", []string{"default1"}))
}

func clearEnv() {
	envVars := []string{
		"SAKURA_WORKER_COUNT", "SAKURA_QUEUE_CAPACITY", "SAKURA_DEFAULT_TIMEOUT", "SAKURA_NODE_TIMEOUT",
		"SAKURA_MAX_OUTPUT_SIZE", "SAKURA_LOG_LEVEL", "SAKURA_LOG_FORMAT",
		"SAKURA_HTTP_ENABLED", "SAKURA_HTTP_PORT", "SAKURA_HTTP_HOST", "SAKURA_HTTP_READ_TIMEOUT",
		"SAKURA_HTTP_WRITE_TIMEOUT", "SAKURA_HTTP_SHUTDOWN_TIMEOUT", "SAKURA_HTTP_CORS_ENABLED",
		"SAKURA_HTTP_CORS_ALLOWED_ORIGINS", "SAKURA_HTTP_API_KEYS",
		"SAKURA_SCHEDULE_ENABLED", "SAKURA_SCHEDULE_TIMEZONE",
		"SAKURA_TREES_DIR", "SAKURA_FILES_DIR",
	}

	for _, key := range envVars {
		os.Unsetenv(key)
	}
}
