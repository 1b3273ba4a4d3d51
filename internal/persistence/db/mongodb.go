package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hilthontt/actionlog/internal/infrastructure/logging"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

const (
	UserActionsCollection = "user_actions"
	CountersCollection    = "counters"

	DefaultDatabase          = "actionlog"
	DefaultConnectionTimeout = 20 * time.Second

	mongoAppName         = "actionlog"
	mongoMaxPoolSize     = 50
	mongoDisconnectGrace = 10 * time.Second
)

var ErrMongoURIRequired = errors.New("mongodb URI is required")

type MongoConfig struct {
	URI               string
	Database          string
	ConnectionTimeout time.Duration
}

func (c MongoConfig) withDefaults() MongoConfig {
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	if c.ConnectionTimeout <= 0 {
		c.ConnectionTimeout = DefaultConnectionTimeout
	}
	return c
}

func (c MongoConfig) clientOptions() *options.ClientOptions {
	return options.Client().
		ApplyURI(c.URI).
		SetAppName(mongoAppName).
		SetMaxPoolSize(mongoMaxPoolSize).
		SetWriteConcern(writeconcern.Majority()).
		SetServerSelectionTimeout(c.ConnectionTimeout).
		SetConnectTimeout(c.ConnectionTimeout)
}

// NewMongoClient connects and verifies the primary is reachable within
// cfg.ConnectionTimeout. Missing database and timeout fall back to defaults.
func NewMongoClient(ctx context.Context, cfg *MongoConfig, logger logging.Logger) (*mongo.Client, error) {
	if cfg == nil || cfg.URI == "" {
		return nil, ErrMongoURIRequired
	}
	*cfg = cfg.withDefaults()

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectionTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, cfg.clientOptions())
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	logger.Info(logging.MongoDB, logging.Connect, "connected to mongodb", map[logging.ExtraKey]any{
		logging.Database: cfg.Database,
	})
	return client, nil
}

func GetDatabase(client *mongo.Client, cfg *MongoConfig) *mongo.Database {
	if client == nil || cfg == nil {
		return nil
	}
	return client.Database(cfg.withDefaults().Database)
}

func DisconnectMongo(ctx context.Context, client *mongo.Client) error {
	if client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, mongoDisconnectGrace)
	defer cancel()

	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongodb: %w", err)
	}
	return nil
}
