package main

import (
	"context"
	"expvar"
	"log"
	"runtime"
	"time"

	"github.com/redis/go-redis/v9"

	actionsUseCase "github.com/hilthontt/actionlog/internal/application/actions"
	"github.com/hilthontt/actionlog/internal/domain"
	"github.com/hilthontt/actionlog/internal/infrastructure/configs"
	"github.com/hilthontt/actionlog/internal/infrastructure/contracts"
	"github.com/hilthontt/actionlog/internal/infrastructure/events"
	"github.com/hilthontt/actionlog/internal/infrastructure/logging"
	"github.com/hilthontt/actionlog/internal/infrastructure/messaging"
	"github.com/hilthontt/actionlog/internal/infrastructure/metrics"
	"github.com/hilthontt/actionlog/internal/infrastructure/pii"
	"github.com/hilthontt/actionlog/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/actionlog/internal/infrastructure/tracing"
	"github.com/hilthontt/actionlog/internal/infrastructure/ws"
	"github.com/hilthontt/actionlog/internal/persistence/db"
	"github.com/hilthontt/actionlog/internal/persistence/repository"
	"github.com/hilthontt/actionlog/internal/presentation/api"
	"github.com/hilthontt/actionlog/internal/presentation/handler/actions"
	"github.com/hilthontt/actionlog/internal/presentation/handler/health"
	"github.com/hilthontt/actionlog/internal/presentation/handler/realtime"

	_ "github.com/hilthontt/actionlog/docs"
)

// @title        Actionlog API
// @version      1.0
// @description  Ingests user action events, fans them out to an event topic and live subscribers, and serves a cursor paginated history.
// @BasePath     /api
func main() {
	configPath := configs.DetermineConfigPath()
	cfg, err := configs.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.NewLogger(&logging.LoggerConfig{
		FilePath: cfg.Logger.FilePath,
		Encoding: cfg.Logger.Encoding,
		Level:    cfg.Logger.Level,
		Logger:   cfg.Logger.Logger,
	})
	if err != nil {
		log.Fatal(err)
	}

	shutdownTracer, err := tracing.InitTracer(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.Tracing.Environment,
		Endpoint:    cfg.Tracing.Endpoint,
	})
	if err != nil {
		logger.Fatal(logging.General, logging.Startup, "failed to initialize the tracer", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()

	store, closeStore, err := newActionStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal(logging.General, logging.Startup, "failed to open the action store", map[logging.ExtraKey]any{
			logging.Driver:       cfg.Store.Driver,
			logging.ErrorMessage: err.Error(),
		})
	}

	var redisClient *redis.Client
	if needsRedis(cfg) {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	publisher := newPublisher(cfg, redisClient)
	logger.Info(logging.Fanout, logging.Startup, "action topic configured", map[logging.ExtraKey]any{
		logging.Driver: streamDriver(cfg),
		logging.Topic:  cfg.Stream.Topic,
	})

	hub := ws.NewHub(logger, m, cfg.Fanout.HubBuffer)
	hubCtx, stopHub := context.WithCancel(ctx)
	go hub.Run(hubCtx)

	fanout := events.NewFanout(publisher, hub, logger, m, events.Config{
		Topic:      cfg.Stream.Topic,
		Workers:    cfg.Fanout.Workers,
		BufferSize: cfg.Fanout.BufferSize,
		Timeout:    cfg.Fanout.Timeout,
	})
	if err := fanout.Start(); err != nil {
		logger.Fatal(logging.Fanout, logging.Startup, "failed to start fanout", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}

	service := actionsUseCase.NewService(store, pii.NewScrubber(cfg.PII.ExtraKeys...), fanout, logger, m)

	actionsHandler := actions.NewHandler(service, logger, cfg.HTTP.MaxBodyBytes)
	healthHandler := health.NewHandler(store, logger)
	realtimeHandler := realtime.NewHandler(hub, logger)

	var rl ratelimiter.Limiter
	var bulkLimiter *ratelimiter.FixedWindowRateLimiter
	if cfg.RateLimiter.Enabled {
		cache := ratelimiter.NewInMemory()
		if cfg.RateLimiter.Backend == configs.RateLimiterBackendRedis {
			cache = ratelimiter.NewRedis(redisClient, "actionlog:")
		}
		defer cache.Close()

		rl = ratelimiter.New(ratelimiter.Options{
			MaxRatePerSecond: cfg.RateLimiter.MaxRatePerSecond,
			MaxBurst:         cfg.RateLimiter.MaxBurst,
			Cache:            cache,
			CacheTTL:         cfg.RateLimiter.CacheTTL,
			SourceHeaderKey:  cfg.RateLimiter.SourceHeaderKey,
		})

		if cfg.RateLimiter.BulkPerMinute > 0 {
			bulkLimiter = ratelimiter.NewFixedWindowRateLimiter(cfg.RateLimiter.BulkPerMinute, time.Minute)
			defer bulkLimiter.Close()
		}
	}

	app := api.NewApplication(*cfg, actionsHandler, healthHandler, realtimeHandler, logger, m, rl, bulkLimiter)

	app.OnShutdown(func(ctx context.Context) error {
		timeout := 5 * time.Second
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		return fanout.Stop(timeout)
	})
	app.OnShutdown(func(context.Context) error {
		stopHub()
		return publisher.Close()
	})
	app.OnShutdown(closeStore)
	app.OnShutdown(func(context.Context) error {
		if redisClient == nil {
			return nil
		}
		return redisClient.Close()
	})
	app.OnShutdown(shutdownTracer)

	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	mux := app.Mount()
	if err := app.Run(mux); err != nil {
		logger.Fatal(logging.General, logging.Shutdown, "server stopped with error", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
}

func newActionStore(ctx context.Context, cfg *configs.Config, logger logging.Logger) (domain.ActionRepository, func(context.Context) error, error) {
	switch cfg.Store.Driver {
	case configs.StoreDriverMongo:
		mongoCfg := &db.MongoConfig{
			URI:               cfg.Mongo.URI,
			Database:          cfg.Mongo.Database,
			ConnectionTimeout: cfg.Mongo.Timeout,
		}
		client, err := db.NewMongoClient(ctx, mongoCfg, logger)
		if err != nil {
			return nil, nil, err
		}

		database := db.GetDatabase(client, mongoCfg)
		if err := repository.EnsureActionIndexes(ctx, database); err != nil {
			_ = db.DisconnectMongo(ctx, client)
			return nil, nil, err
		}

		closeFn := func(ctx context.Context) error { return db.DisconnectMongo(ctx, client) }
		return repository.NewActionMongoRepository(client, database), closeFn, nil

	case configs.StoreDriverMemory:
		logger.Warn(logging.General, logging.Startup, "using the in-memory action store, records are lost on restart", nil)
		return repository.NewActionMemoryRepository(cfg.Store.MemoryCapacity), func(context.Context) error { return nil }, nil

	default:
		database, err := db.NewPostgres(ctx, &db.PostgresConfig{
			DSN:             cfg.Postgres.DSN,
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		}, logger)
		if err != nil {
			return nil, nil, err
		}

		if cfg.Store.AutoMigrate {
			if err := repository.MigrateActions(ctx, database); err != nil {
				_ = db.ClosePostgres(database)
				return nil, nil, err
			}
			logger.Info(logging.Postgres, logging.Migration, "user_actions schema is up to date", nil)
		}

		closeFn := func(context.Context) error { return db.ClosePostgres(database) }
		return repository.NewActionPostgresRepository(database), closeFn, nil
	}
}

func needsRedis(cfg *configs.Config) bool {
	if cfg.RateLimiter.Enabled && cfg.RateLimiter.Backend == configs.RateLimiterBackendRedis {
		return true
	}
	return cfg.Stream.Enabled && cfg.Stream.Driver == configs.StreamDriverRedis
}

func newPublisher(cfg *configs.Config, redisClient *redis.Client) messaging.Publisher {
	if !cfg.Stream.Enabled {
		return messaging.NewNoop()
	}

	if cfg.Stream.Driver == configs.StreamDriverRedis {
		return messaging.NewRedis(redisClient)
	}

	exchange := cfg.Stream.Exchange
	if exchange == "" {
		exchange = contracts.DefaultExchange
	}
	return messaging.NewRabbitMQ(cfg.Stream.RabbitMQURI, exchange)
}

func streamDriver(cfg *configs.Config) string {
	if !cfg.Stream.Enabled {
		return "disabled"
	}
	return cfg.Stream.Driver
}
