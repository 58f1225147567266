package app

import (
	"context"
	"fmt"

	"github.com/halcyonsec/camrelay/config"
	"github.com/halcyonsec/camrelay/internal/observability"
	"github.com/halcyonsec/camrelay/middleware"
	"github.com/halcyonsec/camrelay/repositories"
	"github.com/halcyonsec/camrelay/repositories/postgres"
	"github.com/halcyonsec/camrelay/services/admission"
	"github.com/halcyonsec/camrelay/services/buffer"
	"github.com/halcyonsec/camrelay/services/credentials"
	"github.com/halcyonsec/camrelay/services/extract"
	"github.com/halcyonsec/camrelay/services/ingest"
	"github.com/halcyonsec/camrelay/services/ratelimit"
	"github.com/halcyonsec/camrelay/services/sink"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config   *config.Config
	DB       *postgres.DB
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	Registry *prometheus.Registry

	// Repositories
	Tenants repositories.TenantRepository

	// Services
	Credentials *credentials.Service
	Admission   *admission.Service
	RateLimit   *ratelimit.Service
	Buffer      *buffer.Store
	Dispatcher  *sink.Dispatcher
	Ingest      *ingest.Service
	Extract     *extract.Service

	// Middleware
	AuthMiddleware *middleware.AuthMiddleware

	// cancelWorkers stops the retention worker and the sink dispatcher
	cancelWorkers context.CancelFunc
}

// NewDependencies creates and wires up all application dependencies,
// hydrates the credential index, and starts the background workers.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	deps.Registry = prometheus.NewRegistry()
	deps.Registry.MustRegister(collectors.NewGoCollector())
	deps.Metrics = observability.NewMetrics(deps.Registry)

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := deps.initServices(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	deps.AuthMiddleware = middleware.NewAuthMiddleware(deps.Admission, logger)

	deps.startWorkers()

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the PostgreSQL connection and schema
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	db, err := postgres.NewDB(cfg.Database, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	d.DB = db

	if err := db.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	d.Tenants = postgres.NewTenantRepository(db, d.Logger)

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))
	return nil
}

// initServices wires the frame pipeline back to front: sink, buffer,
// rate limiter, then the ingest and extract services over them.
func (d *Dependencies) initServices(ctx context.Context, cfg *config.Config) error {
	d.Credentials = credentials.NewService(d.Tenants, cfg.Tenants.AllowDuplicateEmails, d.Logger)
	if err := d.Credentials.Load(ctx); err != nil {
		return fmt.Errorf("failed to hydrate credential index: %w", err)
	}

	d.Admission = admission.NewService(d.Credentials, cfg.Admin.APIKey, d.Logger)
	d.RateLimit = ratelimit.NewService(cfg.Limits.MaxFramesPerSecond, d.Logger)
	d.Buffer = buffer.NewStore(cfg.Buffer, d.Metrics, d.Logger)
	d.Buffer.OnReclaim(d.RateLimit.Forget)

	var target sink.Sink = sink.NopSink{}
	if cfg.Sink.URL != "" {
		target = sink.NewHTTPSink(cfg.Sink)
	} else {
		d.Logger.Warn("no sink URL configured, frames will be buffered but not forwarded")
	}
	d.Dispatcher = sink.NewDispatcher(target, cfg.Sink.QueueSize, d.Metrics, d.Logger)

	d.Ingest = ingest.NewService(d.Buffer, d.RateLimit, d.Dispatcher, cfg.Limits, d.Metrics, d.Logger)
	d.Extract = extract.NewService(d.Buffer, d.Metrics, d.Logger)
	return nil
}

// startWorkers launches the sink dispatcher and the idle-buffer
// retention sweep.
func (d *Dependencies) startWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancelWorkers = cancel

	go d.Dispatcher.Run(ctx)
	go d.Buffer.StartRetentionWorker(ctx)
}

// Close stops background workers and releases infrastructure. The
// dispatcher drains its queue before the database closes.
func (d *Dependencies) Close() error {
	if d.cancelWorkers != nil {
		d.cancelWorkers()
		d.Dispatcher.Wait()
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}

	d.Logger.Info("dependencies shut down")
	return nil
}
