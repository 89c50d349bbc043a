package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/plgd-dev/device-bridge/device-bridge/eventbus/nats/client"
	"github.com/plgd-dev/device-bridge/device-bridge/eventbus/nats/subscriber"
	"github.com/plgd-dev/device-bridge/device-bridge/events"
	"github.com/plgd-dev/device-bridge/device-bridge/registry"
	"github.com/plgd-dev/device-bridge/device-bridge/store"
	storeConfig "github.com/plgd-dev/device-bridge/device-bridge/store/config"
	"github.com/plgd-dev/device-bridge/pkg/fn"
	"github.com/plgd-dev/device-bridge/pkg/log"
	pkgHttp "github.com/plgd-dev/device-bridge/pkg/net/http"
	"github.com/plgd-dev/device-bridge/pkg/net/listener"
	otelClient "github.com/plgd-dev/device-bridge/pkg/opentelemetry/collector/client"
	"github.com/plgd-dev/device-bridge/pkg/service"
	"github.com/plgd-dev/device-bridge/pkg/sync/task/queue"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "device-bridge"

// Server handles HTTP requests
type Server struct {
	server   *http.Server
	listener net.Listener
	health   *HealthChecker
}

// Serve starts the HTTP server and blocks until it is closed.
func (s *Server) Serve() error {
	if err := s.server.Serve(s.listener); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close reports the service as degraded and ends serving.
func (s *Server) Close() error {
	s.health.Close()
	return s.server.Shutdown(context.Background())
}

func newStore(ctx context.Context, config storeConfig.Config, logger log.Logger, tracerProvider trace.TracerProvider) (store.Store, func(), error) {
	s, err := storeConfig.NewStore(ctx, config, logger, tracerProvider)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot create subscription store: %w", err)
	}
	return s, func() {
		if err := s.Close(context.Background()); err != nil {
			logger.Errorf("failed to close subscription store: %v", err)
		}
	}, nil
}

func newDeliverer(config DeliveryConfig, logger log.Logger, tracerProvider trace.TracerProvider) (Deliverer, func(), error) {
	d, err := NewHTTPDeliverer(config, logger, tracerProvider)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot create deliverer: %w", err)
	}
	if config.MaxRetries == 0 {
		return d, d.Close, nil
	}
	return NewRetryDeliverer(d, config.MaxRetries, config.Backoff, logger), d.Close, nil
}

func newEventSubscriber(config NATSConfig, dispatcher *Dispatcher, logger log.Logger) (*subscriber.Subscriber, func(), error) {
	var fl fn.FuncList
	nats, err := client.New(config.Config, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot create nats client: %w", err)
	}
	fl.AddFunc(nats.Close)

	handler := subscriber.HandlerFunc(func(ctx context.Context, ev events.Event) error {
		dispatcher.Dispatch(ctx, ev)
		return nil
	})
	s := subscriber.New(nats.GetConn(), config.SubjectPrefix, config.QueueGroup, config.Config.PendingLimits, handler, logger)
	if err = s.Subscribe(); err != nil {
		fl.Execute()
		return nil, nil, fmt.Errorf("cannot subscribe to device events: %w", err)
	}
	fl.AddFunc(func() {
		if err := s.Close(); err != nil {
			logger.Errorf("failed to close device events subscriber: %v", err)
		}
	})
	return s, fl.ToFunction(), nil
}

func newHTTPServer(config HTTPConfig, handler http.Handler, tracerProvider trace.TracerProvider, logger log.Logger) (*http.Server, net.Listener, error) {
	l, err := listener.New(config.Connection, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot create http listener: %w", err)
	}
	return &http.Server{
		Handler:      pkgHttp.OpenTelemetryNewHandler(handler, serviceName, tracerProvider),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}, l, nil
}

// New creates the device bridge service.
func New(ctx context.Context, config Config, logger log.Logger) (*service.Service, error) {
	var fl fn.FuncList
	otelClient, err := otelClient.New(ctx, config.Clients.OpenTelemetryCollector, serviceName, logger)
	if err != nil {
		return nil, fmt.Errorf("cannot create open telemetry collector client: %w", err)
	}
	fl.AddFunc(otelClient.Close)
	tracerProvider := otelClient.GetTracerProvider()

	s, closeStore, err := newStore(ctx, config.Clients.Storage, logger, tracerProvider)
	if err != nil {
		fl.Execute()
		return nil, err
	}
	fl.AddFunc(closeStore)

	registryClient, err := registry.New(config.Clients.Registry.Config, logger, tracerProvider)
	if err != nil {
		fl.Execute()
		return nil, fmt.Errorf("cannot create registry client: %w", err)
	}
	fl.AddFunc(registryClient.Close)

	q, err := queue.New(config.TaskQueue)
	if err != nil {
		fl.Execute()
		return nil, fmt.Errorf("cannot create job queue: %w", err)
	}
	fl.AddFunc(q.Release)

	deliverer, closeDeliverer, err := newDeliverer(config.Clients.Delivery, logger, tracerProvider)
	if err != nil {
		fl.Execute()
		return nil, err
	}
	fl.AddFunc(closeDeliverer)

	metrics := NewMetrics()
	dispatchCtx, cancelDispatch := context.WithCancel(context.Background())
	fl.AddFunc(cancelDispatch)
	dispatcher := NewDispatcher(dispatchCtx, s, q, deliverer, registryClient, metrics, logger)

	subMgr := NewSubscriptionManager(s, dispatcher, metrics, logger)
	if _, err = subMgr.LoadSubscriptions(ctx); err != nil {
		fl.Execute()
		return nil, err
	}

	health := NewHealthChecker(registryClient, logger)
	if config.Clients.Registry.HealthCheckInterval > 0 {
		if err = health.StartProbe(config.Clients.Registry.HealthCheckInterval); err != nil {
			fl.Execute()
			return nil, err
		}
	}
	fl.AddFunc(health.Close)

	if config.Clients.EventBus.NATS.Enabled {
		eventSubscriber, closeSubscriber, err := newEventSubscriber(config.Clients.EventBus.NATS, dispatcher, logger)
		if err != nil {
			fl.Execute()
			return nil, err
		}
		fl.AddFunc(closeSubscriber)
		health.SetEventBus(eventSubscriber.Connected)
	}

	requestHandler := NewRequestHandler(subMgr, registryClient, health, metrics, logger)
	httpServer, l, err := newHTTPServer(config.APIs.HTTP, NewHTTP(requestHandler, config.APIs.HTTP.APIKey, logger), tracerProvider, logger)
	if err != nil {
		fl.Execute()
		return nil, err
	}

	srv := service.New(&Server{
		server:   httpServer,
		listener: l,
		health:   health,
	})
	srv.AddCloseFunc(fl.ToFunction())
	return srv, nil
}
