package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/plgd-dev/device-bridge/pkg/log"
	"github.com/plgd-dev/device-bridge/pkg/net/http/client"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	"go.opentelemetry.io/otel/trace"
)

// Store is a base for mongodb backed stores.
type Store struct {
	client   *mongo.Client
	database string
	logger   log.Logger
}

// NewStore connects to the database and pings the primary.
func NewStore(ctx context.Context, cfg Config, logger log.Logger, tracerProvider trace.TracerProvider) (*Store, error) {
	opts := options.Client().ApplyURI(cfg.URI).
		SetMonitor(otelmongo.NewMonitor(otelmongo.WithTracerProvider(tracerProvider)))
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	if cfg.MaxConnIdleTime > 0 {
		opts.SetMaxConnIdleTime(cfg.MaxConnIdleTime)
	}
	if cfg.TLS != nil {
		tlsCfg, err := client.NewTLSConfig(*cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("could not dial database: %w", err)
		}
		opts.SetTLSConfig(tlsCfg)
	}
	c, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("could not dial database: %w", err)
	}
	err = c.Ping(ctx, readpref.Primary())
	if err != nil {
		if errD := c.Disconnect(ctx); errD != nil {
			logger.Errorf("cannot disconnect from database: %v", errD)
		}
		return nil, fmt.Errorf("could not dial database: %w", err)
	}
	return NewStoreWithClient(c, cfg.Database, logger)
}

// NewStoreWithClient creates a store over an established connection.
func NewStoreWithClient(c *mongo.Client, database string, logger log.Logger) (*Store, error) {
	if c == nil {
		return nil, errors.New("no database session")
	}
	if database == "" {
		database = "default"
	}
	return &Store{
		client:   c,
		database: database,
		logger:   logger,
	}, nil
}

// EnsureIndex creates the indexes of the collection unless they exist.
func (s *Store) EnsureIndex(ctx context.Context, col *mongo.Collection, indexes ...bson.D) error {
	for _, keys := range indexes {
		opts := &options.IndexOptions{}
		opts.SetBackground(false)
		index := mongo.IndexModel{
			Keys:    keys,
			Options: opts,
		}
		_, err := col.Indexes().CreateOne(ctx, index)
		if err != nil {
			if strings.HasPrefix(err.Error(), "(IndexKeySpecsConflict)") {
				// index already exist, just skip error and continue
				continue
			}
			return fmt.Errorf("cannot ensure indexes for %v: %w", col.Name(), err)
		}
	}
	return nil
}

func (s *Store) Collection(name string) *mongo.Collection {
	return s.client.Database(s.database).Collection(name)
}

// Close disconnects from the database.
func (s *Store) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		s.logger.Errorf("cannot disconnect from database %v: %v", s.database, err)
		return err
	}
	return nil
}
