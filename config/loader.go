// Copyright 2026 Lifelog Core Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Top-level configuration
// =============================================================================

// Config is the complete configuration for the lifelog core process.
type Config struct {
	Server    ServerConfig    `yaml:"server" env:"SERVER"`
	Database  DatabaseConfig  `yaml:"database" env:"DATABASE"`
	Redis     RedisConfig     `yaml:"redis" env:"REDIS"`
	Archive   ArchiveConfig   `yaml:"archive" env:"ARCHIVE"`
	Ingestion IngestionConfig `yaml:"ingestion" env:"INGESTION"`
	Scheduler SchedulerConfig `yaml:"scheduler" env:"SCHEDULER"`
	Location  LocationConfig  `yaml:"location" env:"LOCATION"`
	Atlas     AtlasConfig     `yaml:"atlas" env:"ATLAS"`
	OAuthProxy OAuthProxyConfig `yaml:"oauth_proxy" env:"OAUTH_PROXY"`
	Tollbooth TollboothConfig `yaml:"tollbooth" env:"TOLLBOOTH"`
	Proxy     ProxyConfig     `yaml:"proxy" env:"PROXY"`
	Log       LogConfig       `yaml:"log" env:"LOG"`
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`

	// DefaultBudgetUSD seeds new users' in-RAM budget entries.
	DefaultBudgetUSD float64 `yaml:"default_budget_usd" env:"DEFAULT_BUDGET_USD"`
	// Tier sets default service quotas ("starter" or "pro").
	Tier string `yaml:"tier" env:"TIER"`
	// MinIOSVersion is advertised in health responses.
	MinIOSVersion string `yaml:"min_ios_version" env:"MIN_IOS_VERSION"`
	// Timezone is the default per-user IANA timezone for day-window math.
	Timezone string `yaml:"timezone" env:"TIMEZONE"`
	// EncryptionKey is a base64-encoded 256-bit AES key for at-rest
	// credential encryption.
	EncryptionKey string `yaml:"encryption_key" env:"ENCRYPTION_KEY"`
}

// ServerConfig configures the HTTP/metrics listeners.
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" env:"HTTP_PORT"`
	MetricsPort     int           `yaml:"metrics_port" env:"METRICS_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// DatabaseConfig configures the relational store backing the registry,
// ontology tables, jobs, and checkpoints.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver" env:"DRIVER"` // postgres, mysql, sqlite
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	User            string        `yaml:"user" env:"USER"`
	Password        string        `yaml:"password" env:"PASSWORD"`
	Name            string        `yaml:"name" env:"NAME"`
	SSLMode         string        `yaml:"ssl_mode" env:"SSL_MODE"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// RedisConfig configures the cache used by the OSM POI resolver and the
// usage-ledger version cache.
type RedisConfig struct {
	Addr         string `yaml:"addr" env:"ADDR"`
	Password     string `yaml:"password" env:"PASSWORD"`
	DB           int    `yaml:"db" env:"DB"`
	PoolSize     int    `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int    `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

// ArchiveConfig configures the cold-path object store backing raw batches.
type ArchiveConfig struct {
	Driver   string `yaml:"driver" env:"DRIVER"` // filesystem
	BasePath string `yaml:"base_path" env:"BASE_PATH"`
}

// IngestionConfig configures default ingestion behaviour.
type IngestionConfig struct {
	// OAuthRefreshSafetyWindow is how far ahead of expiry a token is refreshed.
	OAuthRefreshSafetyWindow time.Duration `yaml:"oauth_refresh_safety_window" env:"OAUTH_REFRESH_SAFETY_WINDOW"`
	// RequestTimeout bounds every outbound provider HTTP call.
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
	// MaxConcurrentJobsPerSource is not read by the scheduler, which always
	// allows one in-flight job per source.
	MaxConcurrentJobsPerSource int `yaml:"max_concurrent_jobs_per_source" env:"MAX_CONCURRENT_JOBS_PER_SOURCE"`
	// MaxConcurrentJobsGlobal caps total in-flight jobs across all sources.
	MaxConcurrentJobsGlobal int `yaml:"max_concurrent_jobs_global" env:"MAX_CONCURRENT_JOBS_GLOBAL"`
	// GitHubUsername scopes the github events stream; GitHub's events API
	// is keyed by username rather than an account id in the OAuth token.
	GitHubUsername string `yaml:"github_username" env:"GITHUB_USERNAME"`
}

// SchedulerConfig configures the cron table and job runner.
type SchedulerConfig struct {
	// TickInterval is how often the cron table is polled for due entries.
	TickInterval time.Duration `yaml:"tick_interval" env:"TICK_INTERVAL"`
	// DefaultSyncSchedule is the cron expression assigned to stream
	// connections with no explicit schedule override.
	DefaultSyncSchedule string `yaml:"default_sync_schedule" env:"DEFAULT_SYNC_SCHEDULE"`
	// WaitPollInterval is wait_for_job_completion's default poll interval.
	WaitPollInterval time.Duration `yaml:"wait_poll_interval" env:"WAIT_POLL_INTERVAL"`
	// WaitTimeout is wait_for_job_completion's default timeout.
	WaitTimeout time.Duration `yaml:"wait_timeout" env:"WAIT_TIMEOUT"`
}

// LocationConfig configures the visit clustering and place resolver.
type LocationConfig struct {
	OverpassURL        string        `yaml:"overpass_url" env:"OVERPASS_URL"`
	POIRequestInterval time.Duration `yaml:"poi_request_interval" env:"POI_REQUEST_INTERVAL"`
	POICacheTTL        time.Duration `yaml:"poi_cache_ttl" env:"POI_CACHE_TTL"`
	DefaultLookback    time.Duration `yaml:"default_lookback" env:"DEFAULT_LOOKBACK"`
}

// AtlasConfig binds the remote budget/tier/subscription ledger service.
type AtlasConfig struct {
	URL       string `yaml:"url" env:"URL"`
	Secret    string `yaml:"secret" env:"SECRET"`
	Subdomain string `yaml:"subdomain" env:"SUBDOMAIN"`
	// RehydrateInterval is how often budgets/tiers/subscriptions are
	// re-pulled from Atlas to catch trial expirations, top-ups, etc.
	RehydrateInterval time.Duration `yaml:"rehydrate_interval" env:"REHYDRATE_INTERVAL"`
	// ReportInterval is how often accumulated usage deltas are pushed to
	// Atlas.
	ReportInterval time.Duration `yaml:"report_interval" env:"REPORT_INTERVAL"`
}

// HasAtlas reports whether Atlas is configured; absence collapses the
// budget core to standalone mode rather than failing outright.
func (a AtlasConfig) HasAtlas() bool {
	return a.URL != "" && a.Secret != ""
}

// OAuthProxyConfig binds the collaborator OAuth token/refresh/auth service.
type OAuthProxyConfig struct {
	URL string `yaml:"url" env:"URL"`
}

// TollboothConfig binds the metered LLM proxy reached by the core's
// derivation orchestrators.
type TollboothConfig struct {
	URL            string `yaml:"url" env:"URL"`
	InternalSecret string `yaml:"internal_secret" env:"INTERNAL_SECRET"`
}

// ProxyConfig binds the metered LLM proxy's own upstream provider
// credentials and routing table. Tollbooth's callers (derivation,
// dayscore) only ever see TollboothConfig; this section is consulted by
// the proxy process itself.
type ProxyConfig struct {
	OpenAIAPIKey      string `yaml:"openai_api_key" env:"OPENAI_API_KEY"`
	OpenAIOrg         string `yaml:"openai_org" env:"OPENAI_ORG"`
	AnthropicAPIKey   string `yaml:"anthropic_api_key" env:"ANTHROPIC_API_KEY"`
	CerebrasAPIKey    string `yaml:"cerebras_api_key" env:"CEREBRAS_API_KEY"`
	XAIAPIKey         string `yaml:"xai_api_key" env:"XAI_API_KEY"`
	VertexProjectID   string `yaml:"vertex_project_id" env:"VERTEX_PROJECT_ID"`
	VertexLocation    string `yaml:"vertex_location" env:"VERTEX_LOCATION"`
	VertexCredentials string `yaml:"vertex_credentials_json" env:"VERTEX_CREDENTIALS_JSON"`
	RequestTimeout    time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level            string   `yaml:"level" env:"LEVEL"`
	Format           string   `yaml:"format" env:"FORMAT"`
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// Loader
// =============================================================================

// Loader loads a Config using the builder pattern.
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "LIFELOG",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath sets the YAML config file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator adds a configuration validator run after loading.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load loads configuration with priority: defaults -> YAML file -> env vars.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// Helpers
// =============================================================================

// MustLoad loads configuration, panicking on failure.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate checks the configuration for startup-fatal problems: an
// out-of-range HTTP port, a negative default budget, an unknown tier, a
// missing encryption key or a missing timezone. Registry validation is
// not part of it.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.DefaultBudgetUSD < 0 {
		errs = append(errs, "default_budget_usd must be non-negative")
	}
	if c.Tier != "starter" && c.Tier != "pro" {
		errs = append(errs, "tier must be starter or pro")
	}
	if c.EncryptionKey == "" {
		errs = append(errs, "encryption_key is required")
	}
	if c.Timezone == "" {
		errs = append(errs, "timezone is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// DSN returns the GORM-compatible connection string for the configured driver.
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}
