// Command server runs the sitekit billing and usage metering API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appbilling "github.com/sitekit/backend/internal/application/billing"
	"github.com/sitekit/backend/internal/domain/billing"
	"github.com/sitekit/backend/internal/domain/shared"
	infrabilling "github.com/sitekit/backend/internal/infrastructure/billing"
	"github.com/sitekit/backend/internal/infrastructure/cache"
	"github.com/sitekit/backend/internal/infrastructure/config"
	"github.com/sitekit/backend/internal/infrastructure/event"
	"github.com/sitekit/backend/internal/infrastructure/logger"
	"github.com/sitekit/backend/internal/infrastructure/persistence"
	"github.com/sitekit/backend/internal/infrastructure/telemetry"
	"github.com/sitekit/backend/internal/interfaces/http/handler"
	"github.com/sitekit/backend/internal/interfaces/http/middleware"
	"github.com/sitekit/backend/internal/interfaces/http/router"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting sitekit backend",
		zap.String("version", version),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port))

	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, logger.MapGormLogLevel(cfg.Log.Level))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database", zap.Error(err))
		}
	}()
	db.DB.Logger = logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))

	// Production schema changes go through versioned migrations (cmd/migrate).
	if cfg.App.Env != "production" {
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Failed to auto-migrate schema", zap.Error(err))
		}
	}

	ctx := context.Background()

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() { _ = tracerProvider.Shutdown(context.Background()) }()

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() { _ = meterProvider.Shutdown(context.Background()) }()

	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        "postgresql",
	}, log)
	if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
		log.Warn("Failed to register database tracing", zap.Error(err))
	}

	idempotencyStore, err := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log)).CreateStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() { _ = idempotencyStore.Close() }()

	profileRepo := persistence.NewGormBillingProfileRepository(db.DB)
	counterRepo := persistence.NewGormUsageCounterRepository(db.DB)

	billingMetrics, err := telemetry.NewBillingMetrics(meterProvider.Meter(telemetry.TracerName))
	if err != nil {
		log.Warn("Billing metrics unavailable", zap.Error(err))
		billingMetrics = nil
	}

	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(event.NewBillingAuditHandler(log))
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() { _ = eventBus.Stop(context.Background()) }()

	stripeCfg := &infrabilling.StripeConfig{
		SecretKey:              cfg.Stripe.SecretKey,
		PublishableKey:         cfg.Stripe.PublishableKey,
		WebhookSecret:          cfg.Stripe.WebhookSecret,
		IsTestMode:             cfg.Stripe.IsTestMode,
		DefaultCurrency:        cfg.Stripe.DefaultCurrency,
		PriceToPlan:            cfg.Stripe.PriceToPlan,
		SuccessURL:             cfg.Stripe.SuccessURL,
		CancelURL:              cfg.Stripe.CancelURL,
		BillingPortalReturnURL: cfg.Stripe.BillingPortalReturnURL,
	}

	// Without API credentials checkout events fall back to the plan hint and
	// price table instead of fetching the subscription, and the checkout and
	// portal endpoints stay unregistered. Webhook verification only needs the
	// webhook secret, so the reconciler still runs.
	var subscriptionFetcher appbilling.SubscriptionFetcher
	var accountService *appbilling.BillingAccountService
	if adapter, err := infrabilling.NewStripeAdapter(stripeCfg, log); err != nil {
		log.Warn("Stripe API client unavailable, checkout and billing management disabled", zap.Error(err))
	} else {
		subscriptionFetcher = adapter
		accountService = appbilling.NewBillingAccountService(adapter, profileRepo, stripeCfg, log)
	}

	reconciler := appbilling.NewSubscriptionReconciler(appbilling.SubscriptionReconcilerConfig{
		Config:      stripeCfg,
		ProfileRepo: profileRepo,
		Resolver:    stripeCfg.BuildPlanResolver(),
		Idempotency: idempotencyStore,
		IdempotencyConfig: shared.IdempotencyConfig{
			Enabled: cfg.Idempotency.Enabled,
			TTL:     cfg.Idempotency.TTL,
		},
		Subscriptions: subscriptionFetcher,
		EventBus:      eventBus,
		Logger:        log,
	})

	var usageMetrics appbilling.UsageMetrics
	if billingMetrics != nil {
		usageMetrics = billingMetrics
	}
	quotaService := appbilling.NewQuotaService(
		profileRepo,
		counterRepo,
		billing.QuotaLimitsWithOverrides(cfg.Quota.Limits),
		usageMetrics,
		eventBus,
		log,
	)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	var rateLimiter *middleware.RateLimiter
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter = middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow))
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsCfg.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsCfg.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	r := router.New(router.Config{
		Logger:      log,
		CORS:        corsCfg,
		MaxBodySize: cfg.HTTP.MaxBodySize,
		RateLimiter: rateLimiter,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     tracerProvider.IsEnabled(),
		},
		Metrics: middleware.HTTPMetricsConfig{
			MeterProvider: meterProvider,
			Enabled:       meterProvider.IsEnabled(),
		},
	}, router.WithAPIVersion("v1"))

	if err := r.Engine().SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Failed to set trusted proxies", zap.Error(err))
	}

	r.Register(handler.NewUsageHandler(quotaService)).
		Register(handler.NewGenerateHandler(quotaService, log))
	if accountService != nil {
		r.Register(handler.NewBillingHandler(accountService))
	}
	r.Setup()

	// Webhooks live outside the versioned API group; the path is registered
	// with the payment provider and must stay stable across API versions.
	handler.NewStripeWebhookHandler(reconciler, billingMetrics).RegisterRoutes(r.Engine().Group(""))

	systemHandler := handler.NewSystemHandler(db.DB, version)
	r.GET("/health", systemHandler.Health)
	r.GET("/ready", systemHandler.Ready)

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        r.Engine(),
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
