package mongodb

import (
	"context"
	"fmt"

	"github.com/plgd-dev/device-bridge/pkg/log"
	pkgMongo "github.com/plgd-dev/device-bridge/pkg/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.opentelemetry.io/otel/trace"
)

const subscriptionsCName = "subscriptions"

// Store implements a durable store.Store for MongoDB.
type Store struct {
	*pkgMongo.Store
}

func NewStore(ctx context.Context, cfg pkgMongo.Config, logger log.Logger, tracerProvider trace.TracerProvider) (*Store, error) {
	m, err := pkgMongo.NewStore(ctx, cfg, logger, tracerProvider)
	if err != nil {
		return nil, err
	}
	s := &Store{Store: m}
	err = s.EnsureIndex(ctx, s.Collection(subscriptionsCName), deviceIDTypeQueryIndex, typeQueryIndex)
	if err != nil {
		if errC := m.Close(ctx); errC != nil {
			logger.Errorf("cannot close mongodb store: %v", errC)
		}
		return nil, fmt.Errorf("cannot ensure index for subscriptions: %w", err)
	}
	return s, nil
}

func (s *Store) Durable() bool {
	return true
}

var deviceIDTypeQueryIndex = bson.D{
	{Key: deviceIDKey, Value: 1},
	{Key: typeKey, Value: 1},
}

var typeQueryIndex = bson.D{
	{Key: typeKey, Value: 1},
}
