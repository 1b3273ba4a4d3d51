package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hilthontt/actionlog/internal/infrastructure/configs"
	"github.com/hilthontt/actionlog/internal/infrastructure/logging"
	"github.com/hilthontt/actionlog/internal/infrastructure/metrics"
	"github.com/hilthontt/actionlog/internal/infrastructure/ratelimiter"
	actionsHandler "github.com/hilthontt/actionlog/internal/presentation/handler/actions"
	healthHandler "github.com/hilthontt/actionlog/internal/presentation/handler/health"
	realtimeHandler "github.com/hilthontt/actionlog/internal/presentation/handler/realtime"
)

const (
	serverName      = "actionlog"
	shutdownTimeout = 10 * time.Second
)

// ShutdownFunc releases a resource once the server stopped accepting
// requests. Hooks run in registration order.
type ShutdownFunc func(ctx context.Context) error

type Application struct {
	config          configs.Config
	actionsHandler  *actionsHandler.Handler
	healthHandler   *healthHandler.Handler
	realtimeHandler *realtimeHandler.Handler
	logger          logging.Logger
	metrics         *metrics.Metrics
	ratelimiter     ratelimiter.Limiter
	bulkLimiter     *ratelimiter.FixedWindowRateLimiter
	shutdownHooks   []ShutdownFunc
}

func NewApplication(
	config configs.Config,
	actionsHandler *actionsHandler.Handler,
	healthHandler *healthHandler.Handler,
	realtimeHandler *realtimeHandler.Handler,
	logger logging.Logger,
	m *metrics.Metrics,
	ratelimiter ratelimiter.Limiter,
	bulkLimiter *ratelimiter.FixedWindowRateLimiter,
) *Application {
	return &Application{
		config:          config,
		actionsHandler:  actionsHandler,
		healthHandler:   healthHandler,
		realtimeHandler: realtimeHandler,
		logger:          logger,
		metrics:         m,
		ratelimiter:     ratelimiter,
		bulkLimiter:     bulkLimiter,
	}
}

func (app *Application) OnShutdown(fn ShutdownFunc) {
	app.shutdownHooks = append(app.shutdownHooks, fn)
}

func (app *Application) Mount() http.Handler {
	r := chi.NewRouter()
	r.Use(app.requestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(app.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(app.prometheusMiddleware)
	if app.ratelimiter != nil {
		r.Use(app.rateLimiterMiddleware)
	}
	r.Use(app.enableCors)

	r.Handle("/metrics", app.metrics.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	r.Get("/healthz", app.healthHandler.GetHealth)
	r.Get("/live", app.healthHandler.GetHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/actions", func(r chi.Router) {
			// long lived, kept out of the request timeout
			r.Get("/ws", app.realtimeHandler.SubscribeHandler)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(app.requestTimeout()))

				r.Post("/", app.actionsHandler.SubmitActionHandler)
				r.With(app.bulkLimiterMiddleware).Post("/bulk", app.actionsHandler.SubmitBulkHandler)
				r.Get("/recent/{userId}", app.actionsHandler.ListRecentHandler)
			})
		})

		r.Get("/health", app.healthHandler.GetHealth)
		r.Get("/healthz", app.healthHandler.GetHealth)
		r.Get("/live", app.healthHandler.GetHealth)
		r.Get("/ready", app.healthHandler.GetReady)
	})

	return otelhttp.NewHandler(r, serverName)
}

func (app *Application) requestTimeout() time.Duration {
	if app.config.HTTP.RequestTimeout > 0 {
		return app.config.HTTP.RequestTimeout
	}
	return 15 * time.Second
}

func (app *Application) Run(mux http.Handler) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", app.config.HTTP.Host, app.config.HTTP.Port),
		Handler:      mux,
		WriteTimeout: app.config.HTTP.WriteTimeout,
		ReadTimeout:  app.config.HTTP.ReadTimeout,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		app.logger.Info(logging.General, logging.Shutdown, "signal caught", map[logging.ExtraKey]any{
			"signal": s.String(),
		})

		app.healthHandler.Drain()
		err := srv.Shutdown(ctx)
		for _, hook := range app.shutdownHooks {
			err = errors.Join(err, hook(ctx))
		}

		shutdown <- err
	}()

	app.logger.Info(logging.General, logging.Startup, "server has started", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Info(logging.General, logging.Shutdown, "server has stopped", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	return nil
}
