package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appcart "github.com/storefront/backend/internal/application/cart"
	"github.com/storefront/backend/internal/infrastructure/auth"
	"github.com/storefront/backend/internal/infrastructure/cache"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/cookie"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/infrastructure/persistence"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"github.com/storefront/backend/internal/interfaces/http/handler"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
	"github.com/storefront/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

// providers holds the telemetry providers that need an orderly shutdown
type providers struct {
	tracer   *telemetry.TracerProvider
	meter    *telemetry.MeterProvider
	logs     *telemetry.LoggerProvider
	profiler *telemetry.Profiler
}

func (p *providers) shutdown(ctx context.Context, log *zap.Logger) {
	if err := p.profiler.Stop(); err != nil {
		log.Error("Error stopping profiler", zap.Error(err))
	}
	if err := p.tracer.Shutdown(ctx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}
	if err := p.meter.Shutdown(ctx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := p.logs.Shutdown(ctx); err != nil {
		log.Error("Error shutting down logger provider", zap.Error(err))
	}
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Bootstrap logger, replaced once the OTLP log bridge is up
	baseCfg := logger.FromAppConfig(cfg.Log)
	bootLog, err := logger.New(baseCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	otel, err := initTelemetry(cfg, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}

	log, err := logger.New(baseCfg, telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		LoggerProvider: otel.logs,
		Level:          logger.ParseLevel(cfg.Log.Level),
	}))
	if err != nil {
		bootLog.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting storefront cart service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.Bool("telemetry", cfg.Telemetry.Enabled),
		zap.Bool("profiling", cfg.Telemetry.Profiling.Enabled),
	)

	// Catalog database
	gormLog := logger.NewCatalogQueryLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
	)
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithGormLogger(gormLog))
	if err != nil {
		log.Fatal("Failed to connect to catalog database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
	}, log); err != nil {
		log.Warn("Catalog query tracing unavailable", zap.Error(err))
	}
	log.Info("Catalog database connected")

	// Cart metrics are nil-safe; a failed registration only disables them
	var cartMetrics *telemetry.CartMetrics
	if otel.meter.IsEnabled() {
		cartMetrics, err = telemetry.NewCartMetrics(otel.meter.Meter("storefront-cart"))
		if err != nil {
			log.Warn("Cart metrics disabled", zap.Error(err))
		}
	}

	// Authenticated cart store
	store, closeStore, err := cache.NewCartStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithMetrics(cartMetrics),
		cache.WithInMemoryFallback(cfg.Redis.AllowInMemoryFallback),
	).CreateStore()
	if err != nil {
		log.Fatal("Failed to create cart store", zap.Error(err))
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Error("Error closing cart store", zap.Error(err))
		}
	}()

	catalog := persistence.NewGormCatalogGateway(db.DB)
	cartService := appcart.NewService(store, catalog, log)
	cartService.SetMetrics(cartMetrics)

	cookieCfg := cfg.Cookie
	if cookieCfg.Secret == "" {
		cookieCfg.Secret = strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
		log.Warn("cookie.secret is empty, using a per-process secret; anonymous carts will not survive restarts")
	}
	codec := cookie.NewCodec(cookieCfg)
	validator := auth.NewTokenValidator(cfg.JWT)

	// HTTP
	middleware.SetupValidator()
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Invalid trusted proxies", zap.Error(err))
		}
	}

	engine.Use(logger.Recovery(log))
	engine.Use(middleware.RequestID())
	engine.Use(logger.GinMiddleware(log))
	if otel.tracer.IsEnabled() {
		tracingCfg := middleware.DefaultTracingConfig()
		tracingCfg.ServiceName = cfg.Telemetry.ServiceName
		engine.Use(middleware.TracingWithConfig(tracingCfg))
	}
	engine.Use(middleware.Identity(middleware.IdentityConfig{
		Validator: validator,
		Logger:    log,
	}))
	if otel.tracer.IsEnabled() {
		engine.Use(middleware.TracingAttributeInjector())
		engine.Use(middleware.SpanErrorMarker())
	}
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: otel.meter,
		Enabled:       cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfigFromHTTP(cfg.HTTP)))
	securityCfg := middleware.DefaultSecurityConfig()
	securityCfg.HSTSEnabled = cfg.Cookie.Secure
	engine.Use(middleware.SecureWithConfig(securityCfg))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	healthChecks := map[string]handler.Pinger{
		"redis":    store,
		"database": db,
	}
	router.NewRouter(engine, router.WithAPIVersion("v1"), router.WithLogger(log)).
		RegisterRoot(handler.NewHealthHandler(healthChecks)).
		Register(handler.NewCartHandler(cartService, codec, cookieCfg)).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	otel.shutdown(ctx, log)

	log.Info("Server exited gracefully")
}

// initTelemetry builds the tracer, meter and logger providers and starts the
// profiler. Each one is a no-op when disabled.
func initTelemetry(cfg *config.Config, log *zap.Logger) (*providers, error) {
	ctx := context.Background()
	t := cfg.Telemetry

	tracer, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           t.Enabled,
		CollectorEndpoint: t.CollectorEndpoint,
		SamplingRatio:     t.SamplingRatio,
		ServiceName:       t.ServiceName,
		Insecure:          t.Insecure,
	}, log)
	if err != nil {
		return nil, err
	}

	meter, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           t.Enabled,
		CollectorEndpoint: t.CollectorEndpoint,
		ExportInterval:    t.MetricsInterval,
		ServiceName:       t.ServiceName,
		Insecure:          t.Insecure,
	}, log)
	if err != nil {
		return nil, err
	}

	logs, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           t.Enabled,
		CollectorEndpoint: t.CollectorEndpoint,
		ServiceName:       t.ServiceName,
		Insecure:          t.Insecure,
	}, log)
	if err != nil {
		return nil, err
	}

	prof := t.Profiling
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           prof.Enabled,
		ServerAddress:     prof.ServerAddress,
		ApplicationName:   t.ServiceName,
		BasicAuthUser:     prof.BasicAuthUser,
		BasicAuthPassword: prof.BasicAuthPassword,
		ProfileTypes:      prof.ProfileTypes,
	}, log)
	if err != nil {
		return nil, err
	}
	if profiler.IsEnabled() && prof.SpanProfiles {
		tracer.EnableSpanProfiles()
	}

	return &providers{tracer: tracer, meter: meter, logs: logs, profiler: profiler}, nil
}
