package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- DefaultConfig aggregate ---

func TestDefaultConfig_ContainsAllSubConfigs(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	assert.NotEqual(t, ServerConfig{}, cfg.Server)
	assert.NotEqual(t, DatabaseConfig{}, cfg.Database)
	assert.NotEqual(t, RedisConfig{}, cfg.Redis)
	assert.NotEqual(t, ArchiveConfig{}, cfg.Archive)
	assert.NotEqual(t, IngestionConfig{}, cfg.Ingestion)
	assert.NotEqual(t, LocationConfig{}, cfg.Location)
	assert.NotEqual(t, LogConfig{}, cfg.Log)
	assert.NotEqual(t, TelemetryConfig{}, cfg.Telemetry)
}

// --- Individual Default*Config functions ---

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 9091, cfg.MetricsPort)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
}

func TestDefaultDatabaseConfig(t *testing.T) {
	cfg := DefaultDatabaseConfig()
	assert.Equal(t, "postgres", cfg.Driver)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, "lifelog", cfg.User)
	assert.Empty(t, cfg.Password)
	assert.Equal(t, "lifelog", cfg.Name)
	assert.Equal(t, "disable", cfg.SSLMode)
	assert.Equal(t, 25, cfg.MaxOpenConns)
	assert.Equal(t, 5, cfg.MaxIdleConns)
	assert.Equal(t, 5*time.Minute, cfg.ConnMaxLifetime)
}

func TestDefaultRedisConfig(t *testing.T) {
	cfg := DefaultRedisConfig()
	assert.Equal(t, "localhost:6379", cfg.Addr)
	assert.Empty(t, cfg.Password)
	assert.Equal(t, 0, cfg.DB)
	assert.Equal(t, 10, cfg.PoolSize)
	assert.Equal(t, 2, cfg.MinIdleConns)
}

func TestDefaultArchiveConfig(t *testing.T) {
	cfg := DefaultArchiveConfig()
	assert.Equal(t, "filesystem", cfg.Driver)
	assert.NotEmpty(t, cfg.BasePath)
}

func TestDefaultIngestionConfig(t *testing.T) {
	cfg := DefaultIngestionConfig()
	assert.Equal(t, 5*time.Minute, cfg.OAuthRefreshSafetyWindow)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 1, cfg.MaxConcurrentJobsPerSource)
	assert.Equal(t, 16, cfg.MaxConcurrentJobsGlobal)
}

func TestDefaultSchedulerConfig(t *testing.T) {
	cfg := DefaultSchedulerConfig()
	assert.Equal(t, 10*time.Second, cfg.TickInterval)
	assert.Equal(t, "@every 15m", cfg.DefaultSyncSchedule)
	assert.Equal(t, 500*time.Millisecond, cfg.WaitPollInterval)
	assert.Equal(t, 2*time.Minute, cfg.WaitTimeout)
}

func TestDefaultLocationConfig(t *testing.T) {
	cfg := DefaultLocationConfig()
	assert.NotEmpty(t, cfg.OverpassURL)
	assert.Equal(t, time.Second, cfg.POIRequestInterval)
	assert.Equal(t, 7*24*time.Hour, cfg.POICacheTTL)
	assert.Equal(t, 12*time.Hour, cfg.DefaultLookback)
}

func TestDefaultAtlasConfig(t *testing.T) {
	cfg := DefaultAtlasConfig()
	assert.Empty(t, cfg.URL)
	assert.Empty(t, cfg.Secret)
	assert.False(t, cfg.HasAtlas())
	assert.Equal(t, 5*time.Minute, cfg.RehydrateInterval)
	assert.Equal(t, 30*time.Second, cfg.ReportInterval)
}

func TestDefaultProxyConfig(t *testing.T) {
	cfg := DefaultProxyConfig()
	assert.Empty(t, cfg.OpenAIAPIKey)
	assert.Empty(t, cfg.AnthropicAPIKey)
	assert.Equal(t, "us-central1", cfg.VertexLocation)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
}

func TestDefaultLogConfig(t *testing.T) {
	cfg := DefaultLogConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, []string{"stdout"}, cfg.OutputPaths)
	assert.True(t, cfg.EnableCaller)
	assert.False(t, cfg.EnableStacktrace)
}

func TestDefaultTelemetryConfig(t *testing.T) {
	cfg := DefaultTelemetryConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "localhost:4317", cfg.OTLPEndpoint)
	assert.Equal(t, "lifelog-core", cfg.ServiceName)
	assert.InDelta(t, 0.1, cfg.SampleRate, 0.001)
}
