package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/hilthontt/actionlog/internal/domain"
	"github.com/hilthontt/actionlog/internal/infrastructure/configs"
	"github.com/hilthontt/actionlog/internal/infrastructure/contracts"
	"github.com/hilthontt/actionlog/internal/infrastructure/events"
	"github.com/hilthontt/actionlog/internal/infrastructure/logging"
	"github.com/hilthontt/actionlog/internal/infrastructure/messaging"
)

// tail follows the action topic and logs every event, optionally for a
// single user.
func main() {
	userFilter := flag.Int64("user", 0, "only print actions of this user id")

	configPath := configs.DetermineConfigPath()
	cfg, err := configs.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.NewLogger(&logging.LoggerConfig{
		Encoding: cfg.Logger.Encoding,
		Level:    cfg.Logger.Level,
		Logger:   cfg.Logger.Logger,
	})
	if err != nil {
		log.Fatal(err)
	}

	if !cfg.Stream.Enabled {
		logger.Fatal(logging.Config, logging.Startup, "stream is disabled, nothing to tail", nil)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var consumer messaging.Consumer
	switch cfg.Stream.Driver {
	case configs.StreamDriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		consumer = messaging.NewRedis(client)
	default:
		exchange := cfg.Stream.Exchange
		if exchange == "" {
			exchange = contracts.DefaultExchange
		}
		rabbitmq := messaging.NewRabbitMQ(cfg.Stream.RabbitMQURI, exchange, messaging.WithQueue(contracts.TailQueue))
		defer rabbitmq.Close()
		consumer = rabbitmq
	}

	logger.Info(logging.Fanout, logging.Consume, "tailing action topic", map[logging.ExtraKey]any{
		logging.Driver: cfg.Stream.Driver,
		logging.Topic:  cfg.Stream.Topic,
	})

	actionConsumer := events.NewActionConsumer(consumer, logger, cfg.Stream.Topic)
	err = actionConsumer.Listen(ctx, func(_ context.Context, payload domain.ActionPayload) error {
		if *userFilter > 0 && payload.UserID != *userFilter {
			return nil
		}

		logger.Info(logging.Ingestion, logging.Consume, payload.ActionType, map[logging.ExtraKey]any{
			logging.UserID:     payload.UserID,
			logging.ActionType: payload.ActionType,
			"ServerTs":         payload.ServerTS,
			"Context":          payload.Context,
		})
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(logging.Fanout, logging.Consume, "tail stopped", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
		os.Exit(1)
	}
}
