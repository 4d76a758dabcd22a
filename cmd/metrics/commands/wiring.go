package commands

import (
	"fmt"
	"time"

	"github.com/wonny/pipeline-metrics/backend/internal/dashboard"
	"github.com/wonny/pipeline-metrics/backend/internal/engineconfig"
	"github.com/wonny/pipeline-metrics/backend/internal/freshness"
	"github.com/wonny/pipeline-metrics/backend/internal/metrics"
	"github.com/wonny/pipeline-metrics/backend/internal/store"
	"github.com/wonny/pipeline-metrics/backend/internal/telemetry"
	"github.com/wonny/pipeline-metrics/backend/pkg/config"
	"github.com/wonny/pipeline-metrics/backend/pkg/database"
	"github.com/wonny/pipeline-metrics/backend/pkg/logger"
	"github.com/wonny/pipeline-metrics/backend/pkg/redis"
)

// redisPrefix namespaces every key this service writes
const redisPrefix = "pipeline-metrics"

// app holds the wired dependencies shared by the commands
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *database.DB
	redis    *redis.Client
	settings engineconfig.Settings
	recorder *telemetry.Recorder
	guarded  *store.Guarded
	engine   *metrics.Engine
	service  *dashboard.Service
}

// newApp loads configuration and wires store, engine and dashboard service.
// Call close when done.
func newApp() (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if engineConfig != "" {
		cfg.Engine.ConfigPath = engineConfig
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Engine settings
	settings, err := engineconfig.Load(cfg.Engine.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load engine settings: %w", err)
	}
	log.WithFields(map[string]interface{}{
		"path": cfg.Engine.ConfigPath,
		"hash": engineconfig.Hash(settings),
	}).Info("Engine settings loaded")

	// 4. Connect to database (read-only session)
	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// 5. Redis is optional
	rdb, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, continuing without mirror")
		rdb = redis.Wrap(nil)
	}

	// 6. Store, engine, dashboard
	recorder := telemetry.NewRecorder()
	guarded := store.NewGuarded(
		store.NewPostgres(db.Pool, log),
		store.DefaultBreakerConfig(),
		recorder,
		log,
	)
	engine := metrics.NewEngine(settings, cfg.Location(), log, metrics.WithRecorder(recorder))

	opts := []dashboard.ServiceOption{
		dashboard.WithRecorder(recorder),
		dashboard.WithFreshness(freshness.NewReader(cfg.Engine.SyncLogPath)),
	}
	if rdb.Enabled() {
		opts = append(opts, dashboard.WithMirror(dashboard.NewRedisMirror(rdb, redisPrefix)))
	}
	service := dashboard.NewService(guarded, engine, dashboard.NewBoard(recorder), log, opts...)

	return &app{
		cfg:      cfg,
		log:      log,
		db:       db,
		redis:    rdb,
		settings: settings,
		recorder: recorder,
		guarded:  guarded,
		engine:   engine,
		service:  service,
	}, nil
}

// health reports dependency state for /health
func (a *app) health() map[string]interface{} {
	stats := a.db.Stats()
	return map[string]interface{}{
		"store_breaker":  a.guarded.State(),
		"db_total_conns": stats.TotalConns,
		"db_idle_conns":  stats.IdleConns,
		"redis_enabled":  a.redis.Enabled(),
		"store_timezone": a.cfg.Engine.StoreTimezone,
		"settings_hash":  engineconfig.Hash(a.settings),
		"checked_at":     time.Now().UTC(),
	}
}

func (a *app) close() {
	if err := a.redis.Close(); err != nil {
		a.log.WithError(err).Warn("Failed to close redis")
	}
	a.db.Close()
}
