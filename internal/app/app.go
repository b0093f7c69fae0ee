package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"robokin/internal/config"
	apierrors "robokin/internal/errors"
	"robokin/internal/infrastructure"
	custommw "robokin/internal/middleware"
	"robokin/internal/operations"
	"robokin/internal/services"
	handlers "robokin/internal/transport/http"
	ws "robokin/internal/websocket"
	"robokin/pkg/contracts"
)

const queueStopTimeout = 10 * time.Second

// Application represents the main application container
type Application struct {
	Config           *config.Config
	Logger           *slog.Logger
	OTelProviders    *infrastructure.OTelProviders
	Runtime          *Runtime
	WebSocketHub     *ws.Hub
	JobQueue         *operations.JobQueue
	OperationService *services.OperationService
	HealthService    *services.HealthService
	ErrorHandler     *apierrors.ErrorHandler
	Router           *chi.Mux
	Server           *http.Server

	metrics     *infrastructure.PipelineMetrics
	queueCancel context.CancelFunc
}

// NewApplication loads the configuration at configPath and wires every
// component. The job queue and the hub are started; the HTTP server is not.
func NewApplication(configPath string) (*Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("application starting",
		slog.String("version", contracts.Version),
		slog.String("sink", cfg.Storage.Sink),
		slog.Int("port", cfg.Server.Port))

	providers, err := infrastructure.InitializeOTel(cfg.Telemetry, contracts.Version, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	return newApplication(cfg, logger, providers)
}

func newApplication(cfg *config.Config, logger *slog.Logger, providers *infrastructure.OTelProviders) (*Application, error) {
	a := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: providers,
		ErrorHandler:  apierrors.NewErrorHandler(logger, false),
	}

	if err := a.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	a.setupRouter()
	a.createServer()
	return a, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	metrics, err := infrastructure.NewPipelineMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create pipeline metrics: %w", err)
	}
	a.metrics = metrics

	hubMetrics, err := ws.NewMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create websocket metrics: %w", err)
	}
	a.WebSocketHub = ws.NewHub(a.Logger, ws.WithMetrics(hubMetrics))
	a.WebSocketHub.Start()

	rt, err := Build(a.Config, a.Logger, a.WebSocketHub, metrics)
	if err != nil {
		a.WebSocketHub.Stop()
		return err
	}
	a.Runtime = rt

	a.JobQueue = operations.NewJobQueue(a.Config.Server.QueueWorkers, operations.NewMemoryJobStore(), rt.Manager, a.Logger)
	ctx, cancel := context.WithCancel(context.Background())
	a.queueCancel = cancel
	a.JobQueue.Start(ctx)

	var runs services.RunStatsReader
	var store services.Pinger
	if rt.Sinks.SQLite != nil {
		runs, store = rt.Sinks.SQLite, rt.Sinks.SQLite
	}
	a.OperationService = services.NewOperationService(a.JobQueue, rt.Manager, runs, a.Logger)
	a.HealthService = services.NewHealthService(contracts.Version, contracts.BuildTime, store, a.WebSocketHub, a.OperationService, a.Logger)
	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// RequestID → RealIP → OTel, shared by every route
	r.Use(custommw.RequestID)
	r.Use(custommw.RealIP)
	r.Use(custommw.NewOTelMiddleware(a.OTelProviders.Tracer, a.metrics, a.Logger).Handler)

	// The upgrade handshake hijacks the connection, so /ws gets the plain
	// request logger instead of the error and security chain
	upgrader := ws.NewUpgrader(a.Config.WebSocket.ReadBufferSize, a.Config.WebSocket.WriteBufferSize, a.Config.Server.AllowedOrigins)
	r.With(custommw.StructuredLogger(a.Logger)).Get("/ws", ws.ServeWS(a.WebSocketHub, upgrader))

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(apierrors.NewErrorMiddleware(a.ErrorHandler, a.Logger).Handler)
		r.Use(custommw.SecurityHeaders)
		r.Use(custommw.CORS(custommw.CORSConfig{AllowedOrigins: a.Config.Server.AllowedOrigins}))

		health := handlers.NewHealthHandler(a.HealthService)
		r.Get("/healthz", health.LivenessCheck)
		r.Get("/readyz", health.ReadinessCheck)
		r.Get("/version", health.Version)

		r.Route("/api/v1", func(r chi.Router) {
			r.Use(render.SetContentType(render.ContentTypeJSON))
			if rl := a.Config.Server.RateLimit; rl.Enabled {
				r.Use(custommw.NewRateLimiter(rl.RPS, rl.Burst, a.ErrorHandler, a.Logger).Handler)
			}

			validator := custommw.NewValidationMiddleware(a.Logger, a.ErrorHandler)
			r.Mount("/operations", handlers.NewOperationsHandler(a.OperationService, validator, a.ErrorHandler, a.Logger).Routes())
			r.Get("/runs", handlers.NewRunsHandler(a.OperationService, a.ErrorHandler).ListRuns)
		})
	})

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	a.Router = r
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Run serves HTTP until ctx is done or SIGINT/SIGTERM arrives, then shuts
// down gracefully
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("server starting", slog.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return errors.Join(fmt.Errorf("server failed: %w", err), a.shutdownComponents(context.Background()))
		}
	case <-ctx.Done():
		a.Logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()
	return a.Shutdown(shutdownCtx)
}

// Shutdown stops accepting requests, drains the job queue and releases every
// component
func (a *Application) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.Server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}
	errs = append(errs, a.shutdownComponents(ctx))

	err := errors.Join(errs...)
	if err != nil {
		a.Logger.Error("shutdown completed with errors", slog.String("error", err.Error()))
	} else {
		a.Logger.Info("shutdown complete")
	}
	return err
}

func (a *Application) shutdownComponents(ctx context.Context) error {
	var errs []error
	if a.JobQueue != nil {
		if err := a.JobQueue.Stop(queueStopTimeout); err != nil {
			errs = append(errs, fmt.Errorf("job queue: %w", err))
		}
	}
	if a.queueCancel != nil {
		a.queueCancel()
	}
	if a.Runtime != nil {
		if err := a.Runtime.Close(); err != nil {
			errs = append(errs, fmt.Errorf("runtime: %w", err))
		}
	}
	if a.WebSocketHub != nil {
		a.WebSocketHub.Stop()
	}
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry: %w", err))
		}
	}
	return errors.Join(errs...)
}
