package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	sessionapp "github.com/tuitionhub/backend/internal/application/cashsession"
	enrollmentapp "github.com/tuitionhub/backend/internal/application/enrollment"
	feeapp "github.com/tuitionhub/backend/internal/application/fee"
	paymentapp "github.com/tuitionhub/backend/internal/application/payment"
	"github.com/tuitionhub/backend/internal/domain/catalog"
	"github.com/tuitionhub/backend/internal/domain/fee"
	"github.com/tuitionhub/backend/internal/domain/payment"
	"github.com/tuitionhub/backend/internal/domain/shared"
	"github.com/tuitionhub/backend/internal/infrastructure/cache"
	"github.com/tuitionhub/backend/internal/infrastructure/config"
	"github.com/tuitionhub/backend/internal/infrastructure/event"
	"github.com/tuitionhub/backend/internal/infrastructure/logger"
	gatewayinfra "github.com/tuitionhub/backend/internal/infrastructure/payment"
	"github.com/tuitionhub/backend/internal/infrastructure/persistence"
	"github.com/tuitionhub/backend/internal/infrastructure/scheduler"
	"github.com/tuitionhub/backend/internal/infrastructure/storage"
	"github.com/tuitionhub/backend/internal/infrastructure/telemetry"
	"github.com/tuitionhub/backend/internal/interfaces/http/handler"
	"github.com/tuitionhub/backend/internal/interfaces/http/middleware"
	"github.com/tuitionhub/backend/internal/interfaces/http/router"
)

//	@title			TuitionHub Settlement API
//	@version		1.0
//	@description	Fee quotes, payment lifecycle, enrollments and cash session reconciliation

//	@host		localhost:8080
//	@BasePath	/api/v1

const (
	version          = "1.0.0"
	archiveLinkTTL   = 15 * time.Minute
	shutdownTimeout  = 30 * time.Second
	meterName        = "tuitionhub/settlement"
	metricsNamespace = "settlement"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	log.Info("Starting settlement service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	if err := run(cfg, log); err != nil {
		log.Fatal("Service stopped with error", zap.Error(err))
	}
	log.Info("Server exited gracefully")
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry
	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return err
	}
	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mp.Shutdown(shutdownCtx); err != nil {
			log.Error("Meter provider shutdown failed", zap.Error(err))
		}
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error("Tracer provider shutdown failed", zap.Error(err))
		}
	}()
	settlementMetrics, err := telemetry.NewSettlementMetrics(mp.Meter(meterName), log)
	if err != nil {
		return err
	}

	// Database
	db, err := persistence.NewDatabase(&cfg.Database, persistence.Options{
		Logger:     log,
		LogLevel:   cfg.Log.Level,
		Tracing:    cfg.Telemetry.DBTraceEnabled,
		LogFullSQL: cfg.Telemetry.DBLogFullSQL,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	classes := persistence.NewGormClassDirectory(db.DB)
	students := persistence.NewGormStudentDirectory(db.DB)
	cards := persistence.NewGormCardRegistry(db.DB)
	promos := persistence.NewGormPromoCodeRepository(db.DB)
	enrollmentRepo := persistence.NewGormEnrollmentRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	sessionRepo := persistence.NewGormSessionRepository(db.DB)
	reportRepo := persistence.NewGormReportRepository(db.DB)

	// Idempotency and events
	idempotencyStore, err := cache.NewIdempotencyStoreFactory(
		cfg.Settlement.IdempotencyBackend,
		cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(!cfg.IsProduction()),
	).CreateStore(ctx)
	if err != nil {
		return err
	}

	eventBus := event.NewInMemoryEventBus(log, event.WithFailureRecorder(settlementMetrics))

	var archiveStore sessionapp.ObjectStore
	var archiveLinker sessionapp.ArchiveLinker
	if cfg.Storage.Enabled {
		s3Store, err := storage.NewS3ReportStore(&cfg.Storage,
			storage.WithLogger(log),
			storage.WithPresignExpiration(archiveLinkTTL),
		)
		if err != nil {
			return err
		}
		if err := s3Store.EnsureBucket(ctx); err != nil {
			return err
		}
		archiveStore, archiveLinker = s3Store, s3Store
	} else {
		log.Info("Object storage disabled, final reports are archived in memory")
		archiveStore = storage.NewMemoryReportStore()
	}

	for _, h := range event.WrapHandlersWithIdempotency(
		[]shared.EventHandler{
			sessionapp.NewAttributionHandler(sessionRepo, log),
			sessionapp.NewReportArchiveHandler(archiveStore, cfg.Storage.ReportPrefix, log),
		},
		idempotencyStore, log,
		event.WithDedupeTTL(cfg.Settlement.IdempotencyTTL),
	) {
		eventBus.Subscribe(h)
	}

	// Application services
	calculator, err := fee.NewCalculator(fee.Config{
		SpeedPostFee: decimal.NewFromFloat(cfg.Settlement.SpeedPostFee),
		CardMultipliers: catalog.CardMultipliers{
			catalog.CardTypeFull: decimal.NewFromInt(1),
			catalog.CardTypeHalf: decimal.NewFromFloat(cfg.Settlement.HalfCardMultiplier),
			catalog.CardTypeFree: decimal.NewFromFloat(cfg.Settlement.FreeCardMultiplier),
		},
	})
	if err != nil {
		return err
	}
	quoteService := feeapp.NewQuoteService(feeapp.QuoteServiceConfig{
		Classes:     classes,
		Students:    students,
		Cards:       cards,
		Promos:      promos,
		Enrollments: enrollmentRepo,
		Calculator:  calculator,
		Logger:      log,
	})

	materializer := enrollmentapp.NewMaterializer(enrollmentapp.MaterializerConfig{
		Repo:           enrollmentRepo,
		EventPublisher: eventBus,
		Metrics:        settlementMetrics,
		Logger:         log,
	})

	gateway, err := gatewayinfra.NewHTTPGateway(cfg.Gateway, gatewayinfra.WithLogger(log))
	if err != nil {
		return err
	}

	paymentService := paymentapp.NewPaymentService(paymentapp.PaymentServiceConfig{
		Repo:           paymentRepo,
		Classes:        classes,
		Students:       students,
		Quoter:         quoteService,
		Materializer:   materializer,
		Gateway:        gateway,
		IDGenerator:    payment.RandomTransactionIDGenerator{},
		EventPublisher: eventBus,
		Metrics:        settlementMetrics,
		Logger:         log,
		GatewayTimeout: cfg.Gateway.Timeout,
		MaxAttempts:    cfg.Gateway.MaxAttempts,
		RetryDelay:     cfg.Gateway.RetryDelay,
	})

	callbackService := paymentapp.NewCallbackService(paymentapp.CallbackServiceConfig{
		Gateway:        gateway,
		Processor:      paymentService,
		Store:          idempotencyStore,
		IdempotencyTTL: cfg.Settlement.IdempotencyTTL,
		Metrics:        settlementMetrics,
		Logger:         log,
	})

	sessionService := sessionapp.NewSessionService(sessionapp.SessionServiceConfig{
		Sessions:       sessionRepo,
		Reports:        reportRepo,
		Payments:       paymentRepo,
		Classes:        classes,
		EventPublisher: eventBus,
		Metrics:        settlementMetrics,
		Logger:         log,

		AttributionGrace: cfg.Settlement.AttributionGrace,
	})
	archiveLinks := sessionapp.NewArchiveLinkService(reportRepo, archiveLinker, cfg.Storage.ReportPrefix, archiveLinkTTL)

	if err := eventBus.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = eventBus.Stop(context.Background()) }()

	// Background redrive of unsettled payments
	if cfg.Scheduler.Enabled {
		sched := scheduler.NewScheduler(scheduler.Config{
			MaxConcurrentJobs: cfg.Scheduler.MaxConcurrentJobs,
			JobTimeout:        cfg.Scheduler.JobTimeout,
			MaxRetries:        cfg.Scheduler.MaxRetries,
			RetryDelay:        cfg.Scheduler.RetryDelay,
		}, scheduler.NewRedriveExecutor(paymentService, log), log)
		trigger := scheduler.NewRedriveTrigger(scheduler.RedriveTriggerConfig{
			Interval:   cfg.Scheduler.RedriveInterval,
			BatchSize:  cfg.Scheduler.RedriveBatchSize,
			MaxRetries: cfg.Scheduler.MaxRetries,
		}, sched, log)

		if err := sched.Start(ctx); err != nil {
			return err
		}
		if err := trigger.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = trigger.Stop(stopCtx)
			if err := sched.Stop(stopCtx); err != nil {
				log.Error("Scheduler shutdown failed", zap.Error(err))
			}
		}()
	}

	// HTTP
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	httpMetrics, err := middleware.NewHTTPMetrics(prometheus.DefaultRegisterer, metricsNamespace)
	if err != nil {
		return err
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return err
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsCfg.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsCfg.AllowHeaders = cfg.HTTP.CORSAllowHeaders

	tracingCfg := middleware.DefaultTracingConfig()
	tracingCfg.ServiceName = cfg.Telemetry.ServiceName
	tracingCfg.Enabled = tp.IsEnabled()

	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.TracingWithConfig(tracingCfg),
		middleware.SpanAttributes(),
		middleware.SpanErrorMarker(),
		httpMetrics.Middleware(),
		middleware.CORSWithConfig(corsCfg),
		middleware.Secure(),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)

	router.Mount(engine, router.Handlers{
		Fee:            handler.NewFeeHandler(quoteService),
		Payment:        handler.NewPaymentHandler(paymentService),
		Callback:       handler.NewPaymentCallbackHandler(callbackService),
		Enrollment:     handler.NewEnrollmentHandler(materializer),
		CashSession:    handler.NewCashSessionHandler(sessionService),
		SessionReport:  handler.NewSessionReportHandler(sessionService, archiveLinks),
		System:         handler.NewSystemHandler(cfg.App.Name, version, db),
		MetricsHandler: promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
