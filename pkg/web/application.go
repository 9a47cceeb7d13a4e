package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fsandov/ingestion-sdk/pkg/config"
	"github.com/fsandov/ingestion-sdk/pkg/env"
	"github.com/fsandov/ingestion-sdk/pkg/logs"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

type GinApp struct {
	engine     *gin.Engine
	httpServer *http.Server
	logger     *logs.Logger
	tracer     *sdktrace.TracerProvider
	meter      *sdkmetric.MeterProvider
	registry   *prometheus.Registry
	onShutdown []func(context.Context) error
	ginConfig  GinConfig
}

type GinConfig struct {
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MaxHeaderBytes    int
	EnablePprof       bool
	EnableMetrics     bool
	EnableRequestID   bool
	EnableRecovery    bool
	EnableCompression bool
	EnableCORS        bool
	EnableTracing     bool
	EnableRequestLog  bool
	OTELEndpoint      string
}

func DefaultGinConfig() *GinConfig {
	port := config.Get().Port
	if env.IsRemote() {
		return &GinConfig{
			Port:              port,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			MaxHeaderBytes:    1 << 20,
			EnablePprof:       false,
			EnableMetrics:     true,
			EnableRequestID:   true,
			EnableRecovery:    true,
			EnableCompression: true,
			EnableCORS:        true,
			EnableTracing:     true,
			EnableRequestLog:  true,
			OTELEndpoint:      env.String("OTEL_EXPORTER_OTLP_ENDPOINT", "otel-collector:4317"),
		}
	}

	return &GinConfig{
		Port:              port,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		MaxHeaderBytes:    1 << 20,
		EnablePprof:       true,
		EnableMetrics:     true,
		EnableRequestID:   true,
		EnableRecovery:    true,
		EnableCompression: true,
		EnableCORS:        true,
		EnableTracing:     false,
		EnableRequestLog:  true,
		OTELEndpoint:      env.String("OTEL_EXPORTER_OTLP_ENDPOINT", "otel-collector:4317"),
	}
}

func New(config *GinConfig) *GinApp {
	engine := gin.New()
	engine.ContextWithFallback = true

	if config == nil {
		config = DefaultGinConfig()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	app := &GinApp{
		engine:    engine,
		logger:    logs.GetLogger(),
		registry:  registry,
		ginConfig: *config,
	}

	if app.ginConfig.EnableTracing || app.ginConfig.EnableMetrics {
		if err := app.setupTelemetry(); err != nil {
			app.logger.Error(context.Background(), "Failed to setup telemetry", zap.Error(err))
		}
	}

	app.setupMiddleware()
	app.setupRoutes()
	app.startupLog()

	return app
}

func (app *GinApp) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return app.RunContext(ctx)
}

// RunContext serves until ctx is done, then shuts down gracefully.
func (app *GinApp) RunContext(ctx context.Context) error {
	addr := fmt.Sprintf(":%s", app.ginConfig.Port)
	app.httpServer = &http.Server{
		Addr:           addr,
		Handler:        app.engine,
		ReadTimeout:    app.ginConfig.ReadTimeout,
		WriteTimeout:   app.ginConfig.WriteTimeout,
		IdleTimeout:    app.ginConfig.IdleTimeout,
		MaxHeaderBytes: app.ginConfig.MaxHeaderBytes,
	}

	serverErr := make(chan error, 1)
	go func() {
		app.logger.Info(context.Background(), "Starting server", zap.String("address", addr))
		if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	cfg := config.Get()
	select {
	case err := <-serverErr:
		app.logger.Error(context.Background(), "Server failed", zap.Error(err))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.ginConfig.ShutdownTimeout)
		defer cancel()

		return errors.Join(err, app.Shutdown(shutdownCtx))
	case <-ctx.Done():
		app.logger.Warn(
			context.Background(),
			"Shutting down server...",
			zap.String("app", cfg.AppName),
			zap.String("env", cfg.Environment),
		)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.ginConfig.ShutdownTimeout)
		defer cancel()

		if err := app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		app.logger.Info(context.Background(), "Server exited properly")
		return nil
	}
}

// OnShutdown registers fn to run after the HTTP server stops accepting requests.
func (app *GinApp) OnShutdown(fn func(context.Context) error) {
	app.onShutdown = append(app.onShutdown, fn)
}

func (app *GinApp) Shutdown(ctx context.Context) error {
	var errs []error
	if app.httpServer != nil {
		if err := app.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for _, fn := range app.onShutdown {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := app.ShutdownTelemetry(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (app *GinApp) GetEngine() *gin.Engine {
	return app.engine
}

// Registry is the Prometheus registry served on /metrics.
func (app *GinApp) Registry() *prometheus.Registry {
	return app.registry
}

func (app *GinApp) Use(middleware gin.HandlerFunc) {
	app.engine.Use(middleware)
}

func (app *GinApp) startupLog() {
	cfg := config.Get()
	logs.Warn(context.Background(), "API started",
		zap.String("app", cfg.AppName),
		zap.String("env", cfg.Environment),
		zap.String("port", app.ginConfig.Port),
		zap.String("timezone", cfg.Timezone.String()),
		zap.String("os", cfg.OS),
		zap.String("arch", cfg.Architecture),
		zap.String("go_version", runtime.Version()),
	)
}
