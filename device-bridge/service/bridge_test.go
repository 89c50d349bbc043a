package service_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/plgd-dev/device-bridge/device-bridge/service"
	"github.com/plgd-dev/device-bridge/device-bridge/store"
	"github.com/plgd-dev/device-bridge/device-bridge/store/memory"
	"github.com/plgd-dev/device-bridge/device-bridge/test"
	"github.com/plgd-dev/device-bridge/pkg/log"
	pkgHttp "github.com/plgd-dev/device-bridge/pkg/net/http"
	"github.com/plgd-dev/device-bridge/pkg/sync/task/queue"
	"github.com/plgd-dev/kit/v2/codec/json"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

type bridgeConfig struct {
	store    store.Store
	delivery service.DeliveryConfig
	queue    queue.Config
}

type bridgeOption func(*bridgeConfig)

func withStore(s store.Store) bridgeOption {
	return func(c *bridgeConfig) {
		c.store = s
	}
}

func withMaxRetries(n uint64) bridgeOption {
	return func(c *bridgeConfig) {
		c.delivery.MaxRetries = n
	}
}

func withQueue(cfg queue.Config) bridgeOption {
	return func(c *bridgeConfig) {
		c.queue = cfg
	}
}

type bridge struct {
	store      store.Store
	registry   *test.Registry
	dispatcher *service.Dispatcher
	subMgr     *service.SubscriptionManager
	health     *service.HealthChecker
	handler    http.Handler
}

func newBridge(t *testing.T, opts ...bridgeOption) *bridge {
	cfg := bridgeConfig{
		store:    memory.NewStore(),
		delivery: test.MakeDeliveryConfig(),
		queue:    test.MakeTaskQueueConfig(),
	}
	for _, o := range opts {
		o(&cfg)
	}
	logger := log.NewLogger(log.Config{Level: "debug"})

	q, err := queue.New(cfg.queue)
	require.NoError(t, err)
	t.Cleanup(q.Release)

	d, err := service.NewHTTPDeliverer(cfg.delivery, logger, trace.NewNoopTracerProvider())
	require.NoError(t, err)
	t.Cleanup(d.Close)
	var deliverer service.Deliverer = d
	if cfg.delivery.MaxRetries > 0 {
		deliverer = service.NewRetryDeliverer(d, cfg.delivery.MaxRetries, cfg.delivery.Backoff, logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	reg := test.NewRegistry()
	metrics := service.NewMetrics()
	dispatcher := service.NewDispatcher(ctx, cfg.store, q, deliverer, reg, metrics, logger)
	subMgr := service.NewSubscriptionManager(cfg.store, dispatcher, metrics, logger)
	health := service.NewHealthChecker(reg, logger)
	t.Cleanup(health.Close)
	rh := service.NewRequestHandler(subMgr, reg, health, metrics, logger)

	return &bridge{
		store:      cfg.store,
		registry:   reg,
		dispatcher: dispatcher,
		subMgr:     subMgr,
		health:     health,
		handler:    service.NewHTTP(rh, test.API_KEY, logger),
	}
}

func (b *bridge) subscribe(t *testing.T, deviceID string, typ store.SubscriptionType, callbackURL string) store.Subscription {
	sub, err := b.subMgr.CreateSubscription(context.Background(), deviceID, typ, callbackURL)
	require.NoError(t, err)
	return sub
}

func (b *bridge) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	return b.doWithKey(t, method, path, body, test.API_KEY)
}

func (b *bridge) doWithKey(t *testing.T, method, path string, body interface{}, apiKey string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.WriteTo(&buf, body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(pkgHttp.ContentTypeHeaderKey, pkgHttp.ApplicationJsonContentType)
	if apiKey != "" {
		req.Header.Set(pkgHttp.APIKeyHeaderKey, apiKey)
	}
	rec := httptest.NewRecorder()
	b.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	require.NoError(t, json.ReadFrom(rec.Body, v))
}

func waitReport(t *testing.T, p *service.PendingReport) service.Report {
	ctx, cancel := context.WithTimeout(context.Background(), test.TEST_TIMEOUT)
	defer cancel()
	r, err := p.Get(ctx)
	require.NoError(t, err)
	return r
}
