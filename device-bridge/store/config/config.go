package config

import (
	"context"
	"fmt"

	"github.com/plgd-dev/device-bridge/device-bridge/store"
	"github.com/plgd-dev/device-bridge/device-bridge/store/cqldb"
	"github.com/plgd-dev/device-bridge/device-bridge/store/memory"
	storeMongo "github.com/plgd-dev/device-bridge/device-bridge/store/mongodb"
	"github.com/plgd-dev/device-bridge/pkg/config/database"
	"github.com/plgd-dev/device-bridge/pkg/log"
	pkgMongo "github.com/plgd-dev/device-bridge/pkg/mongodb"
	"go.opentelemetry.io/otel/trace"
)

type Config = database.Config[*pkgMongo.Config, *cqldb.Config]

// NewStore creates the store selected by cfg.Use.
func NewStore(ctx context.Context, cfg Config, logger log.Logger, tracerProvider trace.TracerProvider) (store.Store, error) {
	switch cfg.Use {
	case database.Memory:
		logger.Warn("subscriptions are kept in memory and they will be lost on restart")
		return memory.NewStore(), nil
	case database.MongoDB:
		s, err := storeMongo.NewStore(ctx, *cfg.MongoDB, logger, tracerProvider)
		if err != nil {
			return nil, fmt.Errorf("mongoDB: %w", err)
		}
		return s, nil
	case database.CqlDB:
		s, err := cqldb.New(ctx, *cfg.CqlDB, logger)
		if err != nil {
			return nil, fmt.Errorf("cqlDB: %w", err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("invalid store use('%v')", cfg.Use)
}
