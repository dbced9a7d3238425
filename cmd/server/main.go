package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kevin07696/paypal-billing/internal/adapters/locking"
	"github.com/kevin07696/paypal-billing/internal/adapters/paypal"
	"github.com/kevin07696/paypal-billing/internal/adapters/postgres"
	"github.com/kevin07696/paypal-billing/internal/adapters/render"
	"github.com/kevin07696/paypal-billing/internal/adapters/storage"
	"github.com/kevin07696/paypal-billing/internal/config"
	"github.com/kevin07696/paypal-billing/internal/domain/ports"
	agreementHandler "github.com/kevin07696/paypal-billing/internal/handlers/agreement"
	cronHandler "github.com/kevin07696/paypal-billing/internal/handlers/cron"
	invoiceHandler "github.com/kevin07696/paypal-billing/internal/handlers/invoice"
	paymentHandler "github.com/kevin07696/paypal-billing/internal/handlers/payment"
	agreementService "github.com/kevin07696/paypal-billing/internal/services/agreement"
	invoiceService "github.com/kevin07696/paypal-billing/internal/services/invoice"
	paymentService "github.com/kevin07696/paypal-billing/internal/services/payment"
	"github.com/kevin07696/paypal-billing/internal/services/reconciliation"
	pkghttp "github.com/kevin07696/paypal-billing/pkg/http"
	"github.com/kevin07696/paypal-billing/pkg/middleware"
	"github.com/kevin07696/paypal-billing/pkg/observability"
	"github.com/kevin07696/paypal-billing/pkg/resilience"
	"github.com/kevin07696/paypal-billing/pkg/security"
	"github.com/kevin07696/paypal-billing/pkg/shutdown"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logger)
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting paypal billing service",
		zap.String("paypal_mode", cfg.PayPal.Mode),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("secrets", cfg.Secrets.Backend),
	)

	ctx := context.Background()
	shutdowns := shutdown.NewManager(logger, shutdownTimeout)

	dbPool, err := initDatabase(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	shutdowns.RegisterNoErr("database", dbPool.Close)
	logger.Info("Database connection established", zap.String("database", cfg.Database.Database))

	deps, err := initDependencies(ctx, cfg, dbPool, logger, shutdowns)
	if err != nil {
		logger.Fatal("Failed to initialize dependencies", zap.Error(err))
	}

	healthChecker := observability.NewHealthChecker(dbPool)
	if deps.redis != nil {
		healthChecker.AddCheck("redis", func(ctx context.Context) error {
			return deps.redis.Ping(ctx).Err()
		})
	}
	metricsServer := observability.StartMetricsServer(cfg.Server.MetricsPort, healthChecker, logger)
	shutdowns.Register("metrics_server", metricsServer.Shutdown)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, logger)
	shutdowns.RegisterNoErr("rate_limiter", rateLimiter.Shutdown)

	mux := http.NewServeMux()
	deps.payments.RegisterRoutes(mux, rateLimiter.Middleware)
	deps.agreements.RegisterRoutes(mux, rateLimiter.Middleware)
	deps.invoices.RegisterRoutes(mux)
	deps.cron.RegisterRoutes(mux)

	inFlight := shutdown.NewInFlightTracker("http", logger)
	handler := middleware.Chain(mux,
		middleware.Recovery(logger),
		middleware.SecurityHeaders(cfg.Logger.Development),
		inFlight.Middleware,
		observability.HTTPMiddleware,
		middleware.Logging(logger),
		middleware.Timeout(deps.timeouts, logger),
	)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      deps.timeouts.CronJob + 10*time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	shutdowns.Register("http_server", httpServer.Shutdown)
	shutdowns.Register("in_flight", inFlight.Shutdown)

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to serve HTTP", zap.Error(err))
		}
	}()

	shutdowns.WaitForSignal(ctx)
}

type dependencies struct {
	timeouts   *resilience.TimeoutConfig
	redis      *redis.Client
	payments   *paymentHandler.Handler
	agreements *agreementHandler.Handler
	invoices   *invoiceHandler.Handler
	cron       *cronHandler.ReconciliationHandler
}

func initLogger(cfg config.LoggerConfig) *zap.Logger {
	zapCfg := zap.NewProductionConfig()
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func initDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return postgres.Connect(ctx, postgres.PoolConfig{
		DSN:             cfg.ConnectionString(),
		MaxConns:        cfg.MaxConns,
		MinConns:        cfg.MinConns,
		MaxConnLifetime: time.Hour,
	})
}

func initDependencies(
	ctx context.Context,
	cfg *config.Config,
	dbPool *pgxpool.Pool,
	logger *zap.Logger,
	shutdowns *shutdown.Manager,
) (*dependencies, error) {
	portsLogger := security.NewZapLogger(logger)
	timeouts := resilience.DefaultTimeoutConfig()
	deps := &dependencies{timeouts: timeouts}

	db := postgres.NewDBExecutor(dbPool)
	payments := postgres.NewPaymentRepository(db)
	agreements := postgres.NewAgreementRepository(db)
	invoices := postgres.NewInvoiceRepository(db)

	processor, err := initPayPal(ctx, cfg, timeouts, logger, portsLogger.Named("paypal"))
	if err != nil {
		return nil, err
	}

	var locker ports.Locker = locking.NewLocalLocker()
	if cfg.Redis.Addr != "" {
		deps.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		shutdowns.RegisterCloser("redis", deps.redis)
		locker = locking.NewRedisLocker(deps.redis, cfg.Redis.LockPrefix, portsLogger.Named("locking"))
		logger.Info("Using Redis entity locks", zap.String("addr", cfg.Redis.Addr))
	}

	documents, err := initDocumentStore(ctx, cfg.Storage, portsLogger.Named("storage"))
	if err != nil {
		return nil, err
	}

	paymentSvc := paymentService.NewService(payments, processor, locker, timeouts, portsLogger.Named("payment"))
	agreementSvc := agreementService.NewService(agreements, processor, locker, timeouts, portsLogger.Named("agreement"))
	invoiceSvc := invoiceService.NewService(invoiceService.Dependencies{
		Invoices:  invoices,
		Processor: processor,
		Renderer:  render.NewPDFRenderer(cfg.Invoice.BaseDir),
		Documents: documents,
		Locker:    locker,
		Timeouts:  timeouts,
		Logger:    portsLogger.Named("invoice"),
	}, ports.InvoiceIssuer{
		Name:     cfg.Invoice.IssuerName,
		Address:  cfg.Invoice.IssuerAddress,
		Email:    cfg.Invoice.IssuerEmail,
		LogoPath: cfg.Invoice.LogoPath,
		Currency: cfg.Invoice.Currency,
	})
	reconciliationSvc := reconciliation.NewService(reconciliation.Dependencies{
		Payments:         payments,
		Agreements:       agreements,
		Invoices:         invoices,
		Catalog:          postgres.NewResourceCatalog(db),
		Accounts:         postgres.NewCustomerAccounts(db),
		AgreementService: agreementSvc,
		InvoiceService:   invoiceSvc,
		Logger:           portsLogger.Named("reconciliation"),
	}, reconciliation.Config{
		StalePaymentLifetime: cfg.Reconciliation.StalePaymentLifetime,
		BatchSize:            cfg.Reconciliation.BatchSize,
		SyncLookback:         cfg.Reconciliation.SyncLookback,
	})

	deps.payments = paymentHandler.NewHandler(paymentSvc,
		cfg.Server.CallbackURL(paymentHandler.ReturnPath),
		cfg.Server.CallbackURL(paymentHandler.CancelPath),
		logger.Named("payment_handler"),
	)
	deps.agreements = agreementHandler.NewHandler(agreementSvc,
		cfg.Server.CallbackURL(agreementHandler.ReturnPath),
		cfg.Server.CallbackURL(agreementHandler.CancelPath),
		logger.Named("agreement_handler"),
	)
	deps.invoices = invoiceHandler.NewHandler(invoiceSvc, logger.Named("invoice_handler"))
	deps.cron = cronHandler.NewReconciliationHandler(reconciliationSvc, timeouts, logger.Named("cron"), cfg.Reconciliation.CronSecret)

	return deps, nil
}

func initPayPal(
	ctx context.Context,
	cfg *config.Config,
	timeouts *resilience.TimeoutConfig,
	logger *zap.Logger,
	portsLogger ports.Logger,
) (*paypal.Client, error) {
	clientSecret, err := resolveClientSecret(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	breaker := paypal.NewCircuitBreaker(paypal.CircuitBreakerConfig{
		MaxFailures:         cfg.PayPal.BreakerMaxFailures,
		Timeout:             cfg.PayPal.BreakerTimeout,
		MaxRequestsHalfOpen: 1,
	})
	breaker.OnStateChange(func(s paypal.CircuitState) {
		observability.SetProcessorCircuitState(int(s))
		logger.Warn("PayPal circuit breaker changed state", zap.String("state", s.String()))
	})

	httpClient := pkghttp.NewHTTPClient(pkghttp.PayPalClientConfig(), timeouts.ExternalAPI)
	return paypal.NewClient(paypal.Config{
		Mode:         cfg.PayPal.Mode,
		BaseURL:      cfg.PayPal.BaseURL,
		ClientID:     cfg.PayPal.ClientID,
		ClientSecret: clientSecret,
		Currency:     cfg.PayPal.Currency,
	}, httpClient, portsLogger, paypal.WithCircuitBreaker(breaker)), nil
}

func initDocumentStore(ctx context.Context, cfg config.StorageConfig, logger ports.Logger) (ports.DocumentStore, error) {
	if cfg.Backend != "s3" {
		store, err := storage.NewLocalStore(cfg.LocalDir)
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	s3Cfg := storage.S3Config{
		Bucket:          cfg.S3Bucket,
		Prefix:          cfg.S3Prefix,
		Region:          cfg.S3Region,
		EndpointURL:     cfg.S3Endpoint,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
	}
	client, err := storage.NewS3Client(ctx, s3Cfg)
	if err != nil {
		return nil, err
	}
	return storage.NewS3Store(client, s3Cfg, logger), nil
}
