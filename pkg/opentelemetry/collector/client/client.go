package client

import (
	"context"
	"fmt"

	"github.com/plgd-dev/device-bridge/pkg/log"
	httpClient "github.com/plgd-dev/device-bridge/pkg/net/http/client"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/credentials"
)

type Client struct {
	ctx            context.Context
	logger         log.Logger
	tracerProvider *sdktrace.TracerProvider
}

func (c *Client) GetTracerProvider() trace.TracerProvider {
	if c.tracerProvider == nil {
		return trace.NewNoopTracerProvider()
	}
	return c.tracerProvider
}

func (c *Client) close(ctx context.Context) error {
	if c.tracerProvider == nil {
		return nil
	}
	if err := c.tracerProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("cannot shutdown tracer provider: %w", err)
	}
	return nil
}

func (c *Client) Close() {
	if err := c.close(c.ctx); err != nil {
		c.logger.Errorf("cannot close open telemetry collector client: %v", err)
	}
}

func exporterOptions(cfg GRPCConfig) ([]otlptracegrpc.Option, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Address)}
	if cfg.TLS == nil {
		return append(opts, otlptracegrpc.WithInsecure()), nil
	}
	tlsCfg, err := httpClient.NewTLSConfig(*cfg.TLS)
	if err != nil {
		return nil, err
	}
	return append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(tlsCfg))), nil
}

// New creates a new tracer provider with grpc exporter when it is enabled.
func New(ctx context.Context, cfg Config, serviceName string, logger log.Logger) (*Client, error) {
	if !cfg.GRPC.Enabled {
		return &Client{
			ctx:    ctx,
			logger: logger,
		}, nil
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	opts, err := exporterOptions(cfg.GRPC)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter options: %w", err)
	}
	traceExporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(traceExporter),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return &Client{
		ctx:            ctx,
		logger:         logger,
		tracerProvider: tracerProvider,
	}, nil
}
