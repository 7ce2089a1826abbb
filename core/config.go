package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for a kindreg process.
// It supports three-layer configuration priority:
//  1. Default values (lowest priority)
//  2. Environment variables (medium priority)
//  3. Functional options (highest priority)
//
// Example usage:
//
//	cfg, err := NewConfig(
//	    WithName("inventory-service"),
//	    WithPort(8080),
//	    WithMonitorTag("repository"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
type Config struct {
	// Core configuration
	Name    string `json:"name" yaml:"name" env:"KINDREG_NAME"`
	Port    int    `json:"port" yaml:"port" env:"KINDREG_PORT" default:"8080"`
	Address string `json:"address" yaml:"address" env:"KINDREG_ADDRESS"`

	// HTTP Server configuration
	HTTP HTTPConfig `json:"http" yaml:"http"`

	// Monitor configuration
	Monitor MonitorConfig `json:"monitor" yaml:"monitor"`

	// Redis mirror of the populated registry
	Mirror MirrorConfig `json:"mirror" yaml:"mirror"`

	// Telemetry configuration
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Development configuration
	Development DevelopmentConfig `json:"development" yaml:"development"`
}

// HTTPConfig contains HTTP server configuration including timeouts, limits, and CORS settings.
type HTTPConfig struct {
	ReadTimeout       time.Duration `json:"read_timeout" yaml:"read_timeout" env:"KINDREG_HTTP_READ_TIMEOUT" default:"30s"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" yaml:"read_header_timeout" env:"KINDREG_HTTP_READ_HEADER_TIMEOUT" default:"10s"`
	WriteTimeout      time.Duration `json:"write_timeout" yaml:"write_timeout" env:"KINDREG_HTTP_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout       time.Duration `json:"idle_timeout" yaml:"idle_timeout" env:"KINDREG_HTTP_IDLE_TIMEOUT" default:"120s"`
	MaxHeaderBytes    int           `json:"max_header_bytes" yaml:"max_header_bytes" default:"1048576"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" env:"KINDREG_HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
	HealthCheckPath   string        `json:"health_check_path" yaml:"health_check_path" env:"KINDREG_HTTP_HEALTH_PATH" default:"/health"`
	CORS              CORSConfig    `json:"cors" yaml:"cors"`
}

// CORSConfig contains Cross-Origin Resource Sharing (CORS) configuration.
// Supports wildcard domains (e.g., *.example.com) and wildcard ports (e.g., http://localhost:*).
type CORSConfig struct {
	Enabled          bool     `json:"enabled" yaml:"enabled" env:"KINDREG_CORS_ENABLED" default:"false"`
	AllowedOrigins   []string `json:"allowed_origins" yaml:"allowed_origins" env:"KINDREG_CORS_ORIGINS"`
	AllowedMethods   []string `json:"allowed_methods" yaml:"allowed_methods" env:"KINDREG_CORS_METHODS" default:"GET,OPTIONS"`
	AllowedHeaders   []string `json:"allowed_headers" yaml:"allowed_headers" env:"KINDREG_CORS_HEADERS" default:"Content-Type,Authorization"`
	ExposedHeaders   []string `json:"exposed_headers" yaml:"exposed_headers"`
	AllowCredentials bool     `json:"allow_credentials" yaml:"allow_credentials" env:"KINDREG_CORS_CREDENTIALS" default:"false"`
	MaxAge           int      `json:"max_age" yaml:"max_age" default:"86400"`
}

// MonitorConfig selects the tag whose components the health monitor
// aggregates.
type MonitorConfig struct {
	Tag string `json:"tag" yaml:"tag" env:"KINDREG_MONITOR_TAG" default:"repository"`
}

// MirrorConfig controls the optional Redis mirror of the populated
// registry index. The mirror is write-only from the registry's point of
// view: failures are logged and never affect lookups.
type MirrorConfig struct {
	Enabled   bool          `json:"enabled" yaml:"enabled" env:"KINDREG_MIRROR_ENABLED" default:"false"`
	RedisURL  string        `json:"redis_url" yaml:"redis_url" env:"KINDREG_REDIS_URL,REDIS_URL"`
	Namespace string        `json:"namespace" yaml:"namespace" env:"KINDREG_MIRROR_NAMESPACE" default:"kindreg"`
	Timeout   time.Duration `json:"timeout" yaml:"timeout" env:"KINDREG_MIRROR_TIMEOUT" default:"5s"`
}

// TelemetryConfig contains OpenTelemetry configuration.
// Exporter "otlp" sends spans to Endpoint over gRPC, "otlphttp" sends spans
// and metrics over OTLP/HTTP, and "stdout" pretty-prints spans for local
// development.
type TelemetryConfig struct {
	Enabled      bool    `json:"enabled" yaml:"enabled" env:"KINDREG_TELEMETRY_ENABLED" default:"false"`
	Exporter     string  `json:"exporter" yaml:"exporter" env:"KINDREG_TELEMETRY_EXPORTER" default:"otlp"`
	Endpoint     string  `json:"endpoint" yaml:"endpoint" env:"KINDREG_TELEMETRY_ENDPOINT,OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string  `json:"service_name" yaml:"service_name" env:"KINDREG_TELEMETRY_SERVICE_NAME,OTEL_SERVICE_NAME"`
	SamplingRate float64 `json:"sampling_rate" yaml:"sampling_rate" env:"KINDREG_TELEMETRY_SAMPLING_RATE" default:"1.0"`
	Insecure     bool    `json:"insecure" yaml:"insecure" env:"KINDREG_TELEMETRY_INSECURE" default:"true"`
}

// LoggingConfig contains logging configuration.
// Supports structured (JSON) and human-readable (text) formats.
type LoggingConfig struct {
	Level      string `json:"level" yaml:"level" env:"KINDREG_LOG_LEVEL" default:"info"`
	Format     string `json:"format" yaml:"format" env:"KINDREG_LOG_FORMAT" default:"json"`
	Output     string `json:"output" yaml:"output" env:"KINDREG_LOG_OUTPUT" default:"stdout"`
	TimeFormat string `json:"time_format" yaml:"time_format" default:"2006-01-02T15:04:05.000Z07:00"`
}

// DevelopmentConfig contains settings for local development.
//
// WARNING: Never enable development mode in production!
type DevelopmentConfig struct {
	Enabled      bool `json:"enabled" yaml:"enabled" env:"KINDREG_DEV_MODE" default:"false"`
	DebugLogging bool `json:"debug_logging" yaml:"debug_logging" env:"KINDREG_DEBUG" default:"false"`
	PrettyLogs   bool `json:"pretty_logs" yaml:"pretty_logs" env:"KINDREG_PRETTY_LOGS" default:"false"`
}

// Option is a functional option for configuring the process.
// Options are applied in order and can return an error if the configuration is invalid.
type Option func(*Config) error

// DefaultConfig returns a configuration with sensible defaults.
// The defaults are adjusted based on the detected environment:
//   - Kubernetes: 0.0.0.0 binding, JSON logging
//   - Local: localhost binding, text logging, development mode
func DefaultConfig() *Config {
	cfg := &Config{
		Name:    "kindreg",
		Port:    8080,
		Address: "", // Will be set based on environment detection
		HTTP: HTTPConfig{
			ReadTimeout:       30 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
			MaxHeaderBytes:    1 << 20, // 1MB
			ShutdownTimeout:   10 * time.Second,
			HealthCheckPath:   "/health",
			CORS: CORSConfig{
				Enabled:          false,
				AllowedMethods:   []string{"GET", "OPTIONS"},
				AllowedHeaders:   []string{"Content-Type", "Authorization"},
				AllowCredentials: false,
				MaxAge:           86400,
			},
		},
		Monitor: MonitorConfig{
			Tag: "repository",
		},
		Mirror: MirrorConfig{
			Enabled:   false,
			Namespace: "kindreg",
			Timeout:   5 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			Exporter:     "otlp",
			SamplingRate: 1.0,
			Insecure:     true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Output:     "stdout",
			TimeFormat: time.RFC3339Nano,
		},
	}

	// Detect environment and adjust defaults
	cfg.DetectEnvironment()

	return cfg
}

// DetectEnvironment adjusts configuration based on the detected environment.
// Called by DefaultConfig().
//
// Detection criteria:
//   - Kubernetes: KUBERNETES_SERVICE_HOST environment variable is set
//   - Local: No Kubernetes environment variables detected
func (c *Config) DetectEnvironment() {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		c.Address = "0.0.0.0" // Bind to all interfaces in K8s
		c.Mirror.RedisURL = "redis://redis.default.svc.cluster.local:6379"
		c.Logging.Format = "json"
		return
	}

	c.Address = "localhost"
	c.Mirror.RedisURL = "redis://localhost:6379"

	if os.Getenv("KINDREG_DEV_MODE") == "" {
		c.Development.Enabled = true
		c.Development.PrettyLogs = true
		c.Logging.Format = "text"
	}
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables take precedence over defaults but are overridden by functional options.
//
// Variable naming convention:
//   - Process-specific: KINDREG_<SETTING>
//   - Standard variables: REDIS_URL, OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_SERVICE_NAME
func (c *Config) LoadFromEnv() error {
	// Core settings
	if v := os.Getenv("KINDREG_NAME"); v != "" {
		c.Name = v
	}
	if v := os.Getenv("KINDREG_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return &FrameworkError{
				Op:      "Config.LoadFromEnv",
				Kind:    "config",
				Message: fmt.Sprintf("invalid KINDREG_PORT: %q", v),
				Err:     ErrInvalidConfiguration,
			}
		}
		c.Port = port
	}
	if v := os.Getenv("KINDREG_ADDRESS"); v != "" {
		c.Address = v
	}

	// HTTP settings
	if d, ok := envDuration("KINDREG_HTTP_READ_TIMEOUT"); ok {
		c.HTTP.ReadTimeout = d
	}
	if d, ok := envDuration("KINDREG_HTTP_READ_HEADER_TIMEOUT"); ok {
		c.HTTP.ReadHeaderTimeout = d
	}
	if d, ok := envDuration("KINDREG_HTTP_WRITE_TIMEOUT"); ok {
		c.HTTP.WriteTimeout = d
	}
	if d, ok := envDuration("KINDREG_HTTP_IDLE_TIMEOUT"); ok {
		c.HTTP.IdleTimeout = d
	}
	if d, ok := envDuration("KINDREG_HTTP_SHUTDOWN_TIMEOUT"); ok {
		c.HTTP.ShutdownTimeout = d
	}
	if v := os.Getenv("KINDREG_HTTP_HEALTH_PATH"); v != "" {
		c.HTTP.HealthCheckPath = v
	}

	// CORS settings
	if v := os.Getenv("KINDREG_CORS_ENABLED"); v != "" {
		c.HTTP.CORS.Enabled = parseBool(v)
	}
	if v := os.Getenv("KINDREG_CORS_ORIGINS"); v != "" {
		c.HTTP.CORS.AllowedOrigins = parseStringList(v)
	}
	if v := os.Getenv("KINDREG_CORS_METHODS"); v != "" {
		c.HTTP.CORS.AllowedMethods = parseStringList(v)
	}
	if v := os.Getenv("KINDREG_CORS_HEADERS"); v != "" {
		c.HTTP.CORS.AllowedHeaders = parseStringList(v)
	}
	if v := os.Getenv("KINDREG_CORS_CREDENTIALS"); v != "" {
		c.HTTP.CORS.AllowCredentials = parseBool(v)
	}

	// Monitor settings
	if v := os.Getenv("KINDREG_MONITOR_TAG"); v != "" {
		c.Monitor.Tag = v
	}

	// Mirror settings
	if v := os.Getenv("KINDREG_MIRROR_ENABLED"); v != "" {
		c.Mirror.Enabled = parseBool(v)
	}
	if v := os.Getenv("KINDREG_REDIS_URL"); v != "" {
		c.Mirror.RedisURL = v
	} else if v := os.Getenv("REDIS_URL"); v != "" {
		c.Mirror.RedisURL = v
	}
	if v := os.Getenv("KINDREG_MIRROR_NAMESPACE"); v != "" {
		c.Mirror.Namespace = v
	}
	if d, ok := envDuration("KINDREG_MIRROR_TIMEOUT"); ok {
		c.Mirror.Timeout = d
	}

	// Telemetry settings
	if v := os.Getenv("KINDREG_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = parseBool(v)
	}
	if v := os.Getenv("KINDREG_TELEMETRY_EXPORTER"); v != "" {
		c.Telemetry.Exporter = v
	}
	if v := os.Getenv("KINDREG_TELEMETRY_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
		c.Telemetry.Enabled = true // Auto-enable if endpoint is provided
	} else if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
		c.Telemetry.Enabled = true
	}
	if v := os.Getenv("KINDREG_TELEMETRY_SERVICE_NAME"); v != "" {
		c.Telemetry.ServiceName = v
	} else if v := os.Getenv("OTEL_SERVICE_NAME"); v != "" {
		c.Telemetry.ServiceName = v
	}
	if v := os.Getenv("KINDREG_TELEMETRY_SAMPLING_RATE"); v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err == nil {
			c.Telemetry.SamplingRate = rate
		}
	}
	if v := os.Getenv("KINDREG_TELEMETRY_INSECURE"); v != "" {
		c.Telemetry.Insecure = parseBool(v)
	}

	// Logging settings
	if v := os.Getenv("KINDREG_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("KINDREG_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("KINDREG_LOG_OUTPUT"); v != "" {
		c.Logging.Output = v
	}

	// Development settings
	if v := os.Getenv("KINDREG_DEV_MODE"); v != "" {
		c.Development.Enabled = parseBool(v)
		if c.Development.Enabled {
			c.Development.PrettyLogs = true
			c.Logging.Level = "debug"
			c.Logging.Format = "text"
		}
	}
	if v := os.Getenv("KINDREG_DEBUG"); v != "" {
		c.Development.DebugLogging = parseBool(v)
		if c.Development.DebugLogging {
			c.Logging.Level = "debug"
		}
	}
	if v := os.Getenv("KINDREG_PRETTY_LOGS"); v != "" {
		c.Development.PrettyLogs = parseBool(v)
	}

	return nil
}

// LoadFromFile loads configuration from a JSON or YAML file.
// File settings override environment variables but are overridden by functional options.
//
// Example YAML:
//
//	name: inventory-service
//	port: 9090
//	monitor:
//	  tag: repository
//	mirror:
//	  enabled: true
//	  redis_url: redis://localhost:6379
func (c *Config) LoadFromFile(path string) error {
	cleanPath := filepath.Clean(path)

	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config file extension %s: %w", ext, ErrInvalidConfiguration)
	}

	if !filepath.IsAbs(cleanPath) {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		cleanPath = filepath.Join(wd, cleanPath)
	}

	data, err := os.ReadFile(cleanPath) // #nosec G304 -- path is cleaned and extension-checked
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	switch ext {
	case ".json":
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse JSON config file: %v: %w", err, ErrInvalidConfiguration)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse YAML config file: %v: %w", err, ErrInvalidConfiguration)
		}
	}

	return nil
}

// Validate checks if the configuration is valid and returns an error if not.
// Called by NewConfig().
//
// Validation rules:
//   - Port must be between 0 and 65535 (0 picks a free port)
//   - Name is required
//   - Monitor tag is required
//   - Redis URL is required when the mirror is enabled
//   - Endpoint is required when an OTLP exporter is enabled
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return &FrameworkError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("invalid port: %d", c.Port),
			Err:     ErrInvalidConfiguration,
		}
	}

	if c.Name == "" {
		return &FrameworkError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: "name is required",
			Err:     ErrMissingConfiguration,
		}
	}

	if strings.TrimSpace(c.Monitor.Tag) == "" {
		return &FrameworkError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: "monitor tag is required",
			Err:     ErrMissingConfiguration,
		}
	}

	if c.Mirror.Enabled && c.Mirror.RedisURL == "" {
		return &FrameworkError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: "redis URL is required when the registry mirror is enabled",
			Err:     ErrMissingConfiguration,
		}
	}

	if c.Telemetry.Enabled {
		switch c.Telemetry.Exporter {
		case "otlp", "otlphttp":
			if c.Telemetry.Endpoint == "" {
				return &FrameworkError{
					Op:      "Config.Validate",
					Kind:    "config",
					Message: fmt.Sprintf("telemetry endpoint is required for the %s exporter", c.Telemetry.Exporter),
					Err:     ErrMissingConfiguration,
				}
			}
		case "stdout":
		default:
			return &FrameworkError{
				Op:      "Config.Validate",
				Kind:    "config",
				Message: fmt.Sprintf("unknown telemetry exporter: %q", c.Telemetry.Exporter),
				Err:     ErrInvalidConfiguration,
			}
		}
	}

	return nil
}

// Helper functions

// parseStringList splits a comma-separated string into a slice of strings.
// Whitespace is trimmed from each element, and empty strings are filtered out.
// Example: "a, b, c" -> ["a", "b", "c"]
func parseStringList(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// parseBool converts a string to a boolean value.
// Accepts: "true", "1", "yes", "on" (case-insensitive) as true.
// Everything else is false.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

func envDuration(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}

// Functional Options

// WithName sets the process name used in logs, telemetry and the mirror.
func WithName(name string) Option {
	return func(c *Config) error {
		c.Name = name
		return nil
	}
}

// WithPort sets the HTTP server port.
// Must be between 0 and 65535; 0 asks the OS for a free port.
func WithPort(port int) Option {
	return func(c *Config) error {
		if port < 0 || port > 65535 {
			return &FrameworkError{
				Op:      "WithPort",
				Kind:    "config",
				Message: fmt.Sprintf("invalid port: %d", port),
				Err:     ErrInvalidConfiguration,
			}
		}
		c.Port = port
		return nil
	}
}

// WithAddress sets the bind address for the HTTP server.
func WithAddress(address string) Option {
	return func(c *Config) error {
		c.Address = address
		return nil
	}
}

// WithMonitorTag sets the tag aggregated by the health monitor.
func WithMonitorTag(tag string) Option {
	return func(c *Config) error {
		if strings.TrimSpace(tag) == "" {
			return &FrameworkError{
				Op:      "WithMonitorTag",
				Kind:    "config",
				Message: "monitor tag must not be empty",
				Err:     ErrInvalidConfiguration,
			}
		}
		c.Monitor.Tag = tag
		return nil
	}
}

// WithCORS enables CORS with specific allowed origins.
// Supports wildcard patterns:
//   - "*" allows all origins (not recommended for production)
//   - "*.example.com" allows all subdomains
//   - "http://localhost:*" allows any localhost port
func WithCORS(origins []string, credentials bool) Option {
	return func(c *Config) error {
		c.HTTP.CORS.Enabled = true
		c.HTTP.CORS.AllowedOrigins = origins
		c.HTTP.CORS.AllowCredentials = credentials
		return nil
	}
}

// WithRedisMirror enables the Redis mirror of the populated registry.
// Format: redis://[user:password@]host:port/db
func WithRedisMirror(url string) Option {
	return func(c *Config) error {
		c.Mirror.Enabled = true
		c.Mirror.RedisURL = url
		return nil
	}
}

// WithMirrorNamespace sets the Redis key prefix used by the mirror.
func WithMirrorNamespace(namespace string) Option {
	return func(c *Config) error {
		c.Mirror.Namespace = namespace
		return nil
	}
}

// WithTelemetry enables telemetry with the given exporter ("otlp",
// "otlphttp" or "stdout"). endpoint is ignored by the stdout exporter.
func WithTelemetry(exporter, endpoint string) Option {
	return func(c *Config) error {
		c.Telemetry.Enabled = true
		c.Telemetry.Exporter = exporter
		c.Telemetry.Endpoint = endpoint
		if c.Telemetry.ServiceName == "" {
			c.Telemetry.ServiceName = c.Name
		}
		return nil
	}
}

// WithLogLevel sets the minimum logging level ("debug", "info", "warn", "error").
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		c.Logging.Level = level
		return nil
	}
}

// WithLogFormat sets the logging output format ("json" or "text").
func WithLogFormat(format string) Option {
	return func(c *Config) error {
		c.Logging.Format = format
		return nil
	}
}

// WithConfigFile loads configuration from a JSON or YAML file.
// Options after this one still override file settings.
func WithConfigFile(path string) Option {
	return func(c *Config) error {
		return c.LoadFromFile(path)
	}
}

// WithDevelopmentMode enables development mode with developer-friendly defaults:
// pretty text logs at debug level.
//
// WARNING: Never enable in production!
func WithDevelopmentMode(enabled bool) Option {
	return func(c *Config) error {
		c.Development.Enabled = enabled
		if enabled {
			c.Development.PrettyLogs = true
			c.Logging.Format = "text"
			c.Logging.Level = "debug"
		}
		return nil
	}
}

// NewConfig creates a new configuration with the provided options.
// Configuration is applied in the following order:
//  1. Default values from DefaultConfig()
//  2. Environment variables via LoadFromEnv()
//  3. Functional options (highest priority)
//  4. Validation via Validate()
func NewConfig(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env config: %w", err)
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.Name
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
