package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/internal/config"
	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/internal/event"
	handler "github.com/scottrconsulting/DoorPro-CRM-v2-sub000/internal/handler/http"
	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/internal/repository/postgres"
	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/internal/service"
	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/internal/session"
	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/migrations"
	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/pkg/database"
	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/pkg/health"
	pkgkafka "github.com/scottrconsulting/DoorPro-CRM-v2-sub000/pkg/kafka"
	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/pkg/middleware"
	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/pkg/tracing"
)

// App wires together all dependencies and runs the access service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	producer       *pkgkafka.Producer
	dlq            *pkgkafka.DLQProducer
	consumers      []*pkgkafka.Consumer
	tokenService   *service.TokenService
	auditRecorder  *service.AuditRecorder
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "access",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	pgCfg := database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
	}

	pool, err := database.NewPostgresPoolWithLogger(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(pool, "access")

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Configure slow query logging.
	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	// Initialize Kafka producer.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Build the dependency graph.
	identityRepo := postgres.NewIdentityRepository(pool)
	tokenRepo := postgres.NewTokenRepository(pool)
	auditRepo := postgres.NewAuditRepository(pool)
	usageRepo := postgres.NewUsageRepository(pool)

	eventProducer := event.NewProducer(producer, logger)
	tokenService := service.NewTokenService(tokenRepo, logger)
	credentialService := service.NewCredentialService(identityRepo, tokenService, eventProducer, logger)
	usageService := service.NewUsageService(usageRepo, logger)
	auditRecorder := service.NewAuditRecorder(auditRepo, eventProducer, logger, cfg.AuditBufferSize)

	// Identity domain events: deactivations and deletions revoke every live
	// token for the identity.
	dlq := pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)
	identityConsumer := event.NewConsumer(tokenService, auditRecorder, dlq, logger)
	consumers := event.NewConsumers(cfg.KafkaBrokers, identityConsumer, logger)
	logger.Info("kafka consumers initialized",
		slog.Any("brokers", cfg.KafkaBrokers),
		slog.Int("topic_count", len(consumers)),
	)

	sessionCodec := session.NewCodec(cfg.SessionSecret, cfg.SessionTTL, cfg.SessionSecure)
	gate := handler.NewGate(tokenService, identityRepo, sessionCodec, usageService, auditRecorder, logger, cfg.GateTimeout)

	authHandler := handler.NewAuthHandler(credentialService, tokenService, sessionCodec, auditRecorder)
	usageHandler := handler.NewUsageHandler(usageService)
	auditHandler := handler.NewAuditHandler(auditRecorder)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.Register("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins

	router := handler.NewRouter(authHandler, usageHandler, auditHandler, gate, healthHandler, logger, handler.RouterConfig{
		CORS:            corsCfg,
		PprofCIDRs:      cfg.PprofAllowedCIDRs,
		LoginRatePerSec: cfg.LoginRatePerSec,
		LoginRateBurst:  cfg.LoginRateBurst,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		producer:       producer,
		dlq:            dlq,
		consumers:      consumers,
		tokenService:   tokenService,
		auditRecorder:  auditRecorder,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server and the token sweeper, then blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1+len(a.consumers))

	// Start Kafka consumers in background goroutines.
	for _, c := range a.consumers {
		go func() {
			if err := c.Start(ctx); err != nil {
				errCh <- fmt.Errorf("kafka consumer: %w", err)
			}
		}()
	}

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	go a.runSweeper(ctx)

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// runSweeper periodically deletes expired, never-revoked tokens.
func (a *App) runSweeper(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if _, err := a.tokenService.Sweep(sweepCtx); err != nil {
				a.logger.Error("token sweep failed", slog.String("error", err.Error()))
			}
			cancel()
		}
	}
}

// Shutdown gracefully stops all components in order:
// 1. HTTP server (drain in-flight requests)
// 2. Audit recorder (flush buffered entries from drained requests)
// 3. Tracer (flush pending spans)
// 4. Kafka consumers and producers
// 5. PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests (5s budget).
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Flush audit entries queued by drained requests before the database
	// goes away.
	auditCtx, auditCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer auditCancel()
	if err := a.auditRecorder.Close(auditCtx); err != nil {
		a.logger.Error("audit recorder shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 3. Flush pending spans.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 4. Close Kafka consumers and producers.
	for _, c := range a.consumers {
		if err := c.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	if err := a.dlq.Close(); err != nil {
		a.logger.Error("dlq producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 5. Close PostgreSQL pool.
	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
