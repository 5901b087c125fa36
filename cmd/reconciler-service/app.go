package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	_ "github.com/lib/pq" // PostgreSQL driver

	"stagehand/internal/booking"
	"stagehand/internal/broker"
	"stagehand/internal/config"
	"stagehand/internal/constants"
	"stagehand/internal/extraction"
	"stagehand/internal/ingest"
	"stagehand/internal/logger"
	"stagehand/internal/mail"
	"stagehand/internal/reconcile"
	"stagehand/pkg/bootstrap"
	"stagehand/pkg/cel"
	"stagehand/pkg/circuitbreaker"
	"stagehand/pkg/health"
	"stagehand/pkg/metrics"
	"stagehand/pkg/middleware"
	"stagehand/pkg/migrations"
	"stagehand/pkg/ratelimit"
	"stagehand/pkg/tracing"
)

const serviceName = "reconciler-service"

type App struct {
	config         *config.Config
	logger         logger.Logger
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	redisClient    *redis.Client
	producer       broker.Producer
	server         *http.Server
	router         *gin.Engine
	tracerProvider *tracing.TracerProvider
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		config:      cfg,
		logger:      log,
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	if a.config.Broker.Enabled {
		a.producer = broker.NewKafkaProducer(a.config.Broker.Kafka, a.logger)
		a.logger.InfowCtx(ctx, "Event producer initialized",
			"topic", a.config.Broker.Kafka.EventTopic,
		)
	}

	if err := a.initRouter(); err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  a.config.Server.ReadTimeoutSeconds * time.Second,
		WriteTimeout: a.config.Server.WriteTimeoutSeconds * time.Second,
	}

	tp, err := tracing.Init(a.config.Tracing, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.db = db

	if a.config.Database.RunMigrations {
		if err := migrations.Run(a.db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		a.logger.InfowCtx(ctx, "Database migrations applied")
	}

	redisClient, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return err
	}
	a.redisClient = redisClient
	if redisClient == nil {
		a.logger.WarnwCtx(ctx, "Redis not configured, run lock degrades to per-process")
	}

	return nil
}

func (a *App) initRouter() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(serviceName))
	}

	router.Use(middleware.RecoveryMiddleware(a.logger))
	router.Use(middleware.LoggerMiddleware(a.logger))
	router.Use(middleware.RequestIDMiddleware())

	if a.config.Server.RateLimit.Enabled {
		rateLimitConfig := ratelimit.RateLimitConfig{
			RPS:             a.config.Server.RateLimit.RPS,
			Burst:           a.config.Server.RateLimit.Burst,
			CleanupInterval: time.Duration(a.config.Server.RateLimit.CleanupInterval) * time.Second,
			MaxAge:          time.Duration(a.config.Server.RateLimit.MaxAge) * time.Second,
		}
		router.Use(ratelimit.RateLimitMiddleware(rateLimitConfig))
		a.logger.Infow("Rate limiting enabled", "rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
	}

	messageRepo := ingest.NewRepository(a.db)
	bookingRepo := booking.NewRepository(a.db)

	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return fmt.Errorf("failed to create filter evaluator: %w", err)
	}
	for _, expr := range a.config.Ingest.Filters {
		if err := evaluator.ValidateExpression(expr); err != nil {
			return fmt.Errorf("invalid ingest filter %q: %w", expr, err)
		}
	}

	adapter := a.buildExtractionAdapter()

	notifier := reconcile.NewNotifier(a.producer, a.config.Broker.Kafka.EventTopic, a.logger)
	lock := reconcile.NewRunLock(a.redisClient, time.Duration(a.config.Reconcile.RunLockTTLSeconds)*time.Second)

	reconcileService := reconcile.NewService(
		messageRepo, bookingRepo, adapter, evaluator, notifier, lock, *a.config, a.logger,
	)
	reconcile.NewHandler(reconcileService, a.logger).RegisterRoutes(router)

	bookingService := booking.NewService(bookingRepo, a.logger)
	booking.NewHandler(bookingService, a.logger).RegisterRoutes(router)

	if a.config.Mailbox.Maildir != "" {
		source := mail.NewDirSource(a.config.Mailbox.Maildir)
		ingestService := ingest.NewService(source, messageRepo, a.config.Mailbox, a.logger)
		ingest.NewHandler(ingestService, a.logger).RegisterRoutes(router)
	} else {
		a.logger.Warnw("No maildir configured, mail sync endpoint disabled")
	}

	metrics.Register()

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
	if a.redisClient != nil {
		healthRegistry.Register(health.NewRedisChecker(a.redisClient))
	}

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.router = router
	return nil
}

func (a *App) buildExtractionAdapter() extraction.Adapter {
	var adapter extraction.Adapter = extraction.NewHTTPAdapter(a.config.Extraction, a.logger)

	if a.config.CircuitBreaker.Enabled {
		cbConfig := circuitbreaker.DefaultConfig("extraction")
		if a.config.CircuitBreaker.MaxRequests > 0 {
			cbConfig.MaxRequests = a.config.CircuitBreaker.MaxRequests
		}
		if a.config.CircuitBreaker.Interval > 0 {
			cbConfig.Interval = a.config.CircuitBreaker.Interval * time.Second
		}
		if a.config.CircuitBreaker.Timeout > 0 {
			cbConfig.Timeout = a.config.CircuitBreaker.Timeout * time.Second
		}
		if a.config.CircuitBreaker.MinRequests > 0 && a.config.CircuitBreaker.FailureRatio > 0 {
			minRequests := a.config.CircuitBreaker.MinRequests
			failureRatio := a.config.CircuitBreaker.FailureRatio
			cbConfig.ReadyToTrip = func(counts gobreaker.Counts) bool {
				ratio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= minRequests && ratio >= failureRatio
			}
		}
		adapter = extraction.NewCircuitBreakerAdapter(adapter, "extraction", cbConfig)
	}

	return adapter
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.InfowCtx(ctx, "Server listening", "port", a.config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		return a.Shutdown(ctx)
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.InfowCtx(ctx, "Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer shutdown error: %w", err))
		}
	}

	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
		}
	}

	dbErrs := a.dbConnector.ShutdownDatabases(a.redisClient, a.db)
	errs = append(errs, dbErrs...)

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	a.logger.InfowCtx(ctx, "Server exited successfully")
	return nil
}
