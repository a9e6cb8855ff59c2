// Package main wires every component (C1-C10) into one running process.
package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lifelog/core/config"
	"github.com/lifelog/core/datasource"
	"github.com/lifelog/core/derivation"
	"github.com/lifelog/core/dayscore/embedding"
	internaldatabase "github.com/lifelog/core/internal/database"
	internalcache "github.com/lifelog/core/internal/cache"
	"github.com/lifelog/core/internal/metrics"
	internalserver "github.com/lifelog/core/internal/server"
	"github.com/lifelog/core/ingestion"
	"github.com/lifelog/core/ingestion/oauthproxy"
	"github.com/lifelog/core/ingestion/providers"
	"github.com/lifelog/core/ingestion/providers/github"
	"github.com/lifelog/core/ingestion/providers/google"
	"github.com/lifelog/core/ingestion/providers/strava"
	"github.com/lifelog/core/location"
	"github.com/lifelog/core/registry"
	"github.com/lifelog/core/scheduler"
	"github.com/lifelog/core/tollbooth/budget"
	"github.com/lifelog/core/tollbooth/proxy"
	"github.com/lifelog/core/transform"
	"github.com/lifelog/core/transform/mappers"
)

// Server owns every long-lived collaborator in the process and the two HTTP
// listeners (API + metrics).
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	pool    *internaldatabase.PoolManager
	db      *gorm.DB
	reg     *registry.Registry
	metrics *metrics.Collector

	scheduler   *scheduler.Scheduler
	budgetMgr   *budget.Manager
	proxyHandler *proxy.Handler
	engine      *transform.Engine
	store       datasource.Store
	placeResolver *location.Resolver
	summaryGen  *derivation.SummaryGenerator
	snapshotGen *derivation.SnapshotGenerator

	httpManager    *internalserver.Manager
	metricsManager *internalserver.Manager

	cancelBackground context.CancelFunc
	wg               sync.WaitGroup
}

// NewServer wires every collaborator but starts nothing yet.
func NewServer(cfg *config.Config, db *gorm.DB, logger *zap.Logger) (*Server, error) {
	s := &Server{cfg: cfg, db: db, logger: logger}

	poolCfg := internaldatabase.DefaultPoolConfig()
	poolCfg.MaxOpenConns = cfg.Database.MaxOpenConns
	poolCfg.MaxIdleConns = cfg.Database.MaxIdleConns
	poolCfg.ConnMaxLifetime = cfg.Database.ConnMaxLifetime
	pool, err := internaldatabase.NewPoolManager(db, poolCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init connection pool: %w", err)
	}
	s.pool = pool

	s.reg = registry.New()
	if err := s.reg.Validate(); err != nil {
		return nil, fmt.Errorf("registry validation: %w", err)
	}

	s.metrics = metrics.NewCollector("lifelogd", logger)

	s.scheduler = scheduler.New(scheduler.NewGormJobStore(db), logger, s.metrics, cfg.Ingestion.MaxConcurrentJobsGlobal)

	atlasClient := budget.NewAtlasClient(cfg.Atlas)
	s.budgetMgr = budget.New(cfg.DefaultBudgetUSD, atlasClient, logger, s.metrics)

	vertex, err := proxy.NewVertexTokenSource(cfg.Proxy)
	if err != nil {
		logger.Warn("vertex token source unavailable, vertex models disabled", zap.Error(err))
	}
	s.proxyHandler = proxy.NewHandler(s.budgetMgr, cfg.Proxy, vertex, logger, s.metrics)

	s.store = datasource.NewObject(datasource.NewFilesystemClient(cfg.Archive.BasePath), db)

	s.engine = transform.NewEngine(db, s.store, logger, s.metrics)

	embedder := embedding.NewHashProvider(256)
	s.summaryGen = derivation.NewSummaryGenerator(db, s.reg, derivation.NewGormDayStore(db), s.proxyHandler, embedder, "default", logger)

	var poiCache location.POICache
	cacheMgr, err := internalcache.NewManager(internalcache.Config{
		Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize, MinIdleConns: cfg.Redis.MinIdleConns,
	}, logger)
	if err != nil {
		logger.Warn("redis cache unavailable, POI lookups uncached", zap.Error(err))
	} else {
		poiCache = redisPOICache{mgr: cacheMgr}
	}
	poiClient := location.NewPOIClient(cfg.Location.OverpassURL, poiCache, cfg.Location.POICacheTTL)
	s.placeResolver = location.NewResolver(db, poiClient, logger)

	var axiology derivation.AxiologyProvider // nil: no axiology store is wired yet (see DESIGN.md)
	s.snapshotGen = derivation.NewSnapshotGenerator(db, s.reg, derivation.NewGormSnapshotStore(db), axiology, s.proxyHandler, "default", logger)

	if err := s.registerIngestionJobs(); err != nil {
		return nil, fmt.Errorf("register ingestion jobs: %w", err)
	}
	if err := s.registerDerivationJobs(); err != nil {
		return nil, fmt.Errorf("register derivation jobs: %w", err)
	}

	return s, nil
}

// redisPOICache adapts internal/cache.Manager's string-keyed GetJSON/SetJSON
// to location.POICache's found/not-found signature.
type redisPOICache struct{ mgr *internalcache.Manager }

func (c redisPOICache) Get(ctx context.Context, key string, dest any) (bool, error) {
	err := c.mgr.GetJSON(ctx, key, dest)
	if errors.Is(err, internalcache.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c redisPOICache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return c.mgr.SetJSON(ctx, key, value, ttl)
}

// registerIngestionJobs wires one Schedule per stream whose provider is
// has a provider and a Mapper (ingestion/providers/{google,github,strava}).
// The iOS/macOS device-push streams have no HTTP provider here — they are
// pushed by the device, not pulled. Plaid has a provider package but is not
// registered here, since no Mapper exists for the financial ontologies.
func (s *Server) registerIngestionJobs() error {
	cipherKey, err := base64.StdEncoding.DecodeString(s.cfg.EncryptionKey)
	if err != nil {
		return fmt.Errorf("decode encryption key: %w", err)
	}
	cipher, err := ingestion.NewCredentialCipher(cipherKey)
	if err != nil {
		return fmt.Errorf("init credential cipher: %w", err)
	}
	creds := ingestion.NewGormCredentialStore(s.db, cipher)
	cursors := ingestion.NewGormCursorStore(s.db)
	oauthClient := oauthproxy.New(s.cfg.OAuthProxy.URL, cipherKey, nil)
	executor := ingestion.NewExecutor(s.store, oauthClient, creds, cursors, s.logger, 500)

	type wiredStream struct {
		source, stream string
		provider       ingestion.Provider
		mapper         transform.Mapper
		targetTable    string
		targetOntology string
	}

	wired := []wiredStream{
		{
			source: "google", stream: "calendar",
			provider:       google.NewCalendarProvider(providers.GoogleConfig{}),
			mapper:         mappers.CalendarEventMapper{SourceID: "google"},
			targetTable:    "calendar_event",
			targetOntology: "calendar_event",
		},
		{
			source: "strava", stream: "activities",
			provider:       strava.New(providers.StravaConfig{}),
			mapper:         mappers.HealthWorkoutMapper{SourceID: "strava"},
			targetTable:    "health_workout",
			targetOntology: "health_workout",
		},
		{
			source: "github", stream: "events",
			provider:       github.New(providers.GitHubConfig{}, s.cfg.Ingestion.GitHubUsername),
			mapper:         mappers.GitHubEventMapper{SourceID: "github"},
			targetTable:    "activity_app_usage",
			targetOntology: "activity_app_usage",
		},
	}

	for _, w := range wired {
		strm, ok := s.reg.Stream(w.source, w.stream)
		if !ok {
			s.logger.Warn("wired provider has no matching registry stream", zap.String("source", w.source), zap.String("stream", w.stream))
			continue
		}

		transformSpec := &transform.OntologyTransform{
			Name:           w.source + "_" + w.stream,
			SourceID:       w.source,
			Stream:         w.stream,
			TargetOntology: w.targetOntology,
			SourceTable:    strm.TableName,
			TargetTable:    w.targetTable,
			Domain:         w.targetOntology,
			Mapper:         w.mapper,
			IDColumn:       "id",
		}

		sched := scheduler.Schedule{
			SourceID: w.source,
			Stream:   w.stream,
			CronExpr: toSixFieldCron(strm.DefaultCron),
			Run: func(ctx context.Context, job *scheduler.Job) (int, error) {
				result := executor.Sync(ctx, w.source, w.stream, w.source, w.provider, false)
				if result.Err != nil {
					return result.RecordsWritten, result.Err
				}
				if _, err := s.engine.Run(ctx, transformSpec); err != nil {
					return result.RecordsWritten, err
				}
				return result.RecordsWritten, nil
			},
		}
		if err := s.scheduler.Register(sched); err != nil {
			return fmt.Errorf("register schedule for %s/%s: %w", w.source, w.stream, err)
		}
	}
	return nil
}

// toSixFieldCron passes through a registry cron expression unchanged; the
// registry already stores 6-field (seconds-included) expressions as
// required by robfig/cron/v3's default parser configuration.
func toSixFieldCron(expr string) string { return expr }

// registerDerivationJobs schedules the end-of-day summary run and the
// four-times-daily prudent-context snapshot. The day-summary should run
// once the day's data is in; it fires at midnight in the process's local
// time zone, since the scheduler's cron table uses time.Local.
func (s *Server) registerDerivationJobs() error {
	userIDs := func(_ context.Context) ([]string, error) {
		// No multi-tenant user directory exists yet (single-process,
		// single-operator deployment); "default" is the one user.
		return []string{"default"}, nil
	}

	if err := s.scheduler.Register(scheduler.Schedule{
		SourceID: "derivation", Stream: "day_summary",
		CronExpr: "0 0 0 * * *",
		Run: func(ctx context.Context, job *scheduler.Job) (int, error) {
			ids, err := userIDs(ctx)
			if err != nil {
				return 0, err
			}
			for _, id := range ids {
				yesterday := time.Now().AddDate(0, 0, -1)
				if _, err := s.summaryGen.Generate(ctx, id, yesterday, s.cfg.Timezone); err != nil {
					s.logger.Error("day summary generation failed", zap.String("user_id", id), zap.Error(err))
				}
			}
			return len(ids), nil
		},
	}); err != nil {
		return err
	}

	if err := s.scheduler.Register(scheduler.Schedule{
		SourceID: "location", Stream: "place_resolution",
		CronExpr: "0 */30 * * * *",
		Run: func(ctx context.Context, job *scheduler.Job) (int, error) {
			resolved, _, err := s.placeResolver.ResolvePlaces(ctx, 200)
			return resolved, err
		},
	}); err != nil {
		return err
	}

	return derivation.RegisterSnapshotSchedules(s.scheduler, s.snapshotGen, userIDs)
}

// Start brings up the scheduler, the budget hydrator/reporter loops, and
// both HTTP listeners. Non-blocking; call WaitForShutdown to block.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelBackground = cancel

	s.scheduler.Start()

	if s.cfg.Atlas.HasAtlas() {
		if _, err := s.budgetMgr.Hydrate(ctx); err != nil {
			s.logger.Warn("initial budget hydration failed", zap.Error(err))
		}
		s.wg.Add(2)
		go func() { defer s.wg.Done(); s.budgetMgr.RunRehydrator(ctx, s.cfg.Atlas.RehydrateInterval) }()
		go func() { defer s.wg.Done(); s.budgetMgr.RunReporter(ctx, s.cfg.Atlas.ReportInterval) }()
	}

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("start HTTP server: %w", err)
	}
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("start metrics server: %w", err)
	}

	s.logger.Info("lifelogd started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)
	return nil
}

func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/llm/", http.StripPrefix("/llm", s.proxyHandler.Router(s.cfg.Tollbooth.InternalSecret)))

	serverConfig := internalserver.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}
	s.httpManager = internalserver.NewManager(mux, serverConfig, s.logger)
	return s.httpManager.Start()
}

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := internalserver.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}
	s.metricsManager = internalserver.NewManager(mux, serverConfig, s.logger)
	return s.metricsManager.Start()
}

// WaitForShutdown blocks until the HTTP manager observes a shutdown signal,
// then tears everything else down.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

func (s *Server) Shutdown() {
	s.logger.Info("starting graceful shutdown")
	ctx := context.Background()

	if s.cancelBackground != nil {
		s.cancelBackground()
	}
	s.scheduler.Stop(ctx)

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("http server shutdown error", zap.Error(err))
		}
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("metrics server shutdown error", zap.Error(err))
		}
	}
	if s.pool != nil {
		if err := s.pool.Close(); err != nil {
			s.logger.Error("database pool shutdown error", zap.Error(err))
		}
	}

	s.wg.Wait()
	s.logger.Info("graceful shutdown completed")
}
