// =============================================================================
// Lifelog core default configuration
// =============================================================================
// Provides sane defaults for every configuration section.
// =============================================================================
package config

import "time"

// DefaultConfig returns a Config populated with development-ready defaults.
func DefaultConfig() *Config {
	return &Config{
		Server:     DefaultServerConfig(),
		Database:   DefaultDatabaseConfig(),
		Redis:      DefaultRedisConfig(),
		Archive:    DefaultArchiveConfig(),
		Ingestion:  DefaultIngestionConfig(),
		Scheduler:  DefaultSchedulerConfig(),
		Location:   DefaultLocationConfig(),
		Atlas:      DefaultAtlasConfig(),
		OAuthProxy: DefaultOAuthProxyConfig(),
		Tollbooth:  DefaultTollboothConfig(),
		Proxy:      DefaultProxyConfig(),
		Log:        DefaultLogConfig(),
		Telemetry:  DefaultTelemetryConfig(),

		DefaultBudgetUSD: 5.0,
		Tier:             "starter",
		MinIOSVersion:    "1.0.0",
		Timezone:         "UTC",
		EncryptionKey:    "",
	}
}

// DefaultServerConfig returns default HTTP/metrics listener settings.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

// DefaultDatabaseConfig returns default relational store settings.
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "postgres",
		Host:            "localhost",
		Port:            5432,
		User:            "lifelog",
		Password:        "",
		Name:            "lifelog",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultRedisConfig returns default cache settings.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultArchiveConfig returns default cold-path object store settings.
func DefaultArchiveConfig() ArchiveConfig {
	return ArchiveConfig{
		Driver:   "filesystem",
		BasePath: "./data/archive",
	}
}

// DefaultIngestionConfig returns default ingestion executor settings.
func DefaultIngestionConfig() IngestionConfig {
	return IngestionConfig{
		OAuthRefreshSafetyWindow:   5 * time.Minute,
		RequestTimeout:             30 * time.Second,
		MaxConcurrentJobsPerSource: 1,
		MaxConcurrentJobsGlobal:    16,
	}
}

// DefaultSchedulerConfig returns default cron table / job runner settings.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		TickInterval:        10 * time.Second,
		DefaultSyncSchedule: "@every 15m",
		WaitPollInterval:    500 * time.Millisecond,
		WaitTimeout:         2 * time.Minute,
	}
}

// DefaultLocationConfig returns default clustering/POI resolver settings.
func DefaultLocationConfig() LocationConfig {
	return LocationConfig{
		OverpassURL:        "https://overpass-api.de/api/interpreter",
		POIRequestInterval: time.Second,
		POICacheTTL:        7 * 24 * time.Hour,
		DefaultLookback:    12 * time.Hour,
	}
}

// DefaultAtlasConfig returns default (empty, standalone-mode) Atlas settings.
func DefaultAtlasConfig() AtlasConfig {
	return AtlasConfig{
		URL:               "",
		Secret:            "",
		Subdomain:         "",
		RehydrateInterval: 5 * time.Minute,
		ReportInterval:    30 * time.Second,
	}
}

// DefaultOAuthProxyConfig returns default OAuth proxy settings.
func DefaultOAuthProxyConfig() OAuthProxyConfig {
	return OAuthProxyConfig{
		URL: "",
	}
}

// DefaultTollboothConfig returns default LLM proxy settings.
func DefaultTollboothConfig() TollboothConfig {
	return TollboothConfig{
		URL:            "",
		InternalSecret: "",
	}
}

// DefaultProxyConfig returns default upstream provider settings for the
// proxy process; every credential defaults empty and is filled in from
// the environment in deployed instances.
func DefaultProxyConfig() ProxyConfig {
	return ProxyConfig{
		VertexLocation: "us-central1",
		RequestTimeout: 60 * time.Second,
	}
}

// DefaultLogConfig returns default logger settings.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig returns default tracing settings.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "lifelog-core",
		SampleRate:   0.1,
	}
}
