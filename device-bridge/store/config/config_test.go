package config_test

import (
	"context"
	"testing"

	"github.com/plgd-dev/device-bridge/device-bridge/store/config"
	"github.com/plgd-dev/device-bridge/pkg/config/database"
	"github.com/plgd-dev/device-bridge/pkg/log"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestNewStoreMemory(t *testing.T) {
	cfg := config.Config{Use: "Memory"}
	require.NoError(t, cfg.Validate())
	require.Equal(t, database.Memory, cfg.Use)
	s, err := config.NewStore(context.Background(), cfg, log.Get(), trace.NewNoopTracerProvider())
	require.NoError(t, err)
	require.False(t, s.Durable())
	require.NoError(t, s.Close(context.Background()))
}

func TestNewStoreInvalid(t *testing.T) {
	cfg := config.Config{Use: "redis"}
	require.Error(t, cfg.Validate())
	_, err := config.NewStore(context.Background(), cfg, log.Get(), trace.NewNoopTracerProvider())
	require.Error(t, err)

	cfg = config.Config{Use: database.MongoDB}
	require.Error(t, cfg.Validate())
}
