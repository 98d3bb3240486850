package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileEnv names the optional configuration file. Environment variables
// take precedence over its values.
const FileEnv = "IVR_CONFIG_FILE"

type Config struct {
	// HTTP Server
	Port               string
	LogLevel           string
	RateLimitPerMinute int
	ShutdownTimeout    time.Duration

	// Bank API
	UpstreamTimeout  time.Duration
	UpstreamRetryMax int

	// Formatting scripts
	ScriptDir            string
	ScriptTimeout        time.Duration
	ScriptListingTimeout time.Duration

	// Environment profiles served by /ivr/env
	EnvConfigFile string
	EnvConfigTTL  time.Duration

	// AMQP (optional on the service, required by the worker)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Call audit store
	SQLiteDBPath   string
	AuditRetention time.Duration
	PruneInterval  time.Duration

	// Error tracking
	SentryDSN         string
	SentryEnvironment string

	// ConfigFile is the file the values were layered from, if any.
	ConfigFile string
	fileErr    error
}

func Load() *Config {
	src := newSource(os.Getenv(FileEnv))

	cfg := &Config{
		Port:               src.str("PORT", "3435"),
		LogLevel:           src.str("LOG_LEVEL", "info"),
		RateLimitPerMinute: src.integer("RATE_LIMIT_PER_MINUTE", 600),
		ShutdownTimeout:    src.duration("SHUTDOWN_TIMEOUT", 15*time.Second),

		UpstreamTimeout:  src.duration("UPSTREAM_TIMEOUT", 15*time.Second),
		UpstreamRetryMax: src.integer("UPSTREAM_RETRY_MAX", 0),

		ScriptDir:            src.str("SCRIPT_DIR", "/usr/src/scripts/ivr"),
		ScriptTimeout:        src.duration("SCRIPT_TIMEOUT", 20*time.Second),
		ScriptListingTimeout: src.duration("SCRIPT_LISTING_TIMEOUT", 15*time.Second),

		EnvConfigFile: src.str("ENV_CONFIG_FILE", "/usr/src/scripts/ivr/env.config.json"),
		EnvConfigTTL:  src.duration("ENV_CONFIG_TTL", 30*time.Second),

		AMQPURL:      src.str("AMQP_URL", ""),
		AMQPExchange: src.str("AMQP_EXCHANGE", "ivr"),
		AMQPQueue:    src.str("AMQP_QUEUE", "ivr_call_audit"),

		SQLiteDBPath:   src.str("SQLITE_DB_PATH", "./data/ivr.db"),
		AuditRetention: src.duration("AUDIT_RETENTION", 90*24*time.Hour),
		PruneInterval:  src.duration("AUDIT_PRUNE_INTERVAL", time.Hour),

		SentryDSN:         src.str("SENTRY_DSN", ""),
		SentryEnvironment: src.str("SENTRY_ENVIRONMENT", "production"),

		ConfigFile: src.path,
		fileErr:    src.err,
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if c.fileErr != nil {
		errors = append(errors, fmt.Sprintf("cannot read config file '%s': %v", c.ConfigFile, c.fileErr))
	}

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if c.UpstreamTimeout < 100*time.Millisecond || c.UpstreamTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid upstream timeout %v: must be between 100ms and 5m", c.UpstreamTimeout))
	}
	if c.UpstreamRetryMax < 0 || c.UpstreamRetryMax > 5 {
		errors = append(errors, fmt.Sprintf("invalid upstream retry max %d: must be between 0 and 5", c.UpstreamRetryMax))
	}

	if c.ScriptDir == "" {
		errors = append(errors, "script directory cannot be empty")
	}
	if c.ScriptTimeout < time.Second || c.ScriptListingTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid script timeouts %v/%v: must be at least 1 second", c.ScriptTimeout, c.ScriptListingTimeout))
	}

	if c.EnvConfigFile == "" {
		errors = append(errors, "environment config file path cannot be empty")
	}
	if c.EnvConfigTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid environment config TTL %v: must not be negative", c.EnvConfigTTL))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.AuditRetention < time.Hour {
		errors = append(errors, fmt.Sprintf("invalid audit retention %v: must be at least 1 hour", c.AuditRetention))
	}
	if c.PruneInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid prune interval %v: must be at least 1 minute", c.PruneInterval))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateWorker adds the checks of the audit worker, which needs the
// broker and the database.
func (c *Config) ValidateWorker() error {
	if err := c.Validate(); err != nil {
		return err
	}

	var errors []string
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP URL is required by the audit worker")
	}
	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// source layers the environment over an optional config file.
type source struct {
	path string
	file *viper.Viper
	err  error
}

func newSource(path string) *source {
	s := &source{path: path}
	if path == "" {
		return s
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		s.err = err
		return s
	}
	s.file = v
	return s
}

func (s *source) str(key, defaultValue string) string {
	if value := getEnv(key, ""); value != "" {
		return value
	}
	if s.file != nil && s.file.IsSet(key) {
		if value := s.file.GetString(key); value != "" {
			return value
		}
	}
	return defaultValue
}

func (s *source) integer(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		return getEnvInt(key, defaultValue)
	}
	if s.file != nil && s.file.IsSet(key) {
		if i, err := strconv.Atoi(s.file.GetString(key)); err == nil {
			return i
		}
	}
	return defaultValue
}

func (s *source) duration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		return getEnvDuration(key, defaultValue)
	}
	if s.file != nil && s.file.IsSet(key) {
		if d, err := time.ParseDuration(s.file.GetString(key)); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
