package client_test

import (
	"context"
	"testing"

	"github.com/plgd-dev/device-bridge/pkg/log"
	"github.com/plgd-dev/device-bridge/pkg/opentelemetry/collector/client"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewDisabled(t *testing.T) {
	c, err := client.New(context.Background(), client.Config{}, "device-bridge", log.Get())
	require.NoError(t, err)
	defer c.Close()
	_, span := c.GetTracerProvider().Tracer("test").Start(context.Background(), "span")
	require.False(t, span.SpanContext().IsValid())
	span.End()
}

func TestNewEnabled(t *testing.T) {
	cfg := client.Config{GRPC: client.GRPCConfig{Enabled: true, Address: "localhost:4317"}}
	require.NoError(t, cfg.Validate())
	c, err := client.New(context.Background(), cfg, "device-bridge", log.Get())
	require.NoError(t, err)
	_, ok := c.GetTracerProvider().(*sdktrace.TracerProvider)
	require.True(t, ok)
	c.Close()
}

func TestConfigValidate(t *testing.T) {
	cfg := client.Config{GRPC: client.GRPCConfig{Enabled: true}}
	require.Error(t, cfg.Validate())
	cfg = client.Config{}
	require.NoError(t, cfg.Validate())
}
