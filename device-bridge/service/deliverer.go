package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/plgd-dev/device-bridge/device-bridge/events"
	"github.com/plgd-dev/device-bridge/pkg/log"
	"github.com/plgd-dev/device-bridge/pkg/net/http/client"
	"github.com/plgd-dev/kit/v2/codec/json"
	"go.opentelemetry.io/otel/trace"
)

const maxErrorBodySize = 1024

// Deliverer posts the envelope to the callback url. A nil error means the
// callback responded with 2xx, otherwise the error is *events.DeliveryError.
type Deliverer interface {
	Deliver(ctx context.Context, url string, env events.Envelope) error
}

// HTTPDeliverer makes a single delivery attempt bounded by the timeout.
type HTTPDeliverer struct {
	client  *client.Client
	timeout time.Duration
	logger  log.Logger
}

func NewHTTPDeliverer(cfg DeliveryConfig, logger log.Logger, tracerProvider trace.TracerProvider) (*HTTPDeliverer, error) {
	c, err := client.New(cfg.HTTP, tracerProvider)
	if err != nil {
		return nil, fmt.Errorf("cannot create http client: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultDeliveryTimeout
	}
	return &HTTPDeliverer{
		client:  c,
		timeout: timeout,
		logger:  logger,
	}, nil
}

func (d *HTTPDeliverer) Deliver(ctx context.Context, url string, env events.Envelope) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	body, err := json.Encode(env)
	if err != nil {
		return &events.DeliveryError{URL: url, Err: fmt.Errorf("cannot encode envelope: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &events.DeliveryError{URL: url, Err: fmt.Errorf("cannot create post request: %w", err)}
	}
	events.SetEventHeader(req.Header, env)
	resp, err := d.client.HTTP().Do(req)
	if err != nil {
		return &events.DeliveryError{URL: url, Err: err}
	}
	defer func() {
		if errC := resp.Body.Close(); errC != nil {
			d.logger.Errorf("failed to close response body stream: %v", errC)
		}
	}()
	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodySize))
		return nil
	}
	errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	return &events.DeliveryError{
		URL:        url,
		StatusCode: resp.StatusCode,
		Err:        fmt.Errorf("body: '%v'", string(errBody)),
	}
}

func (d *HTTPDeliverer) Close() {
	d.client.Close()
}

// RetryDeliverer repeats failed deliveries with an exponential backoff.
type RetryDeliverer struct {
	deliverer  Deliverer
	maxRetries uint64
	backoff    BackoffConfig
	logger     log.Logger
}

func NewRetryDeliverer(deliverer Deliverer, maxRetries uint64, cfg BackoffConfig, logger log.Logger) *RetryDeliverer {
	return &RetryDeliverer{
		deliverer:  deliverer,
		maxRetries: maxRetries,
		backoff:    cfg,
		logger:     logger,
	}
}

// IsRetryable reports whether another delivery attempt can succeed.
func IsRetryable(err error) bool {
	var dErr *events.DeliveryError
	if !errors.As(err, &dErr) || dErr.StatusCode == 0 {
		return true
	}
	switch dErr.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return dErr.StatusCode >= http.StatusInternalServerError
}

func (d *RetryDeliverer) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if d.backoff.InitialInterval > 0 {
		b.InitialInterval = d.backoff.InitialInterval
	}
	if d.backoff.MaxInterval > 0 {
		b.MaxInterval = d.backoff.MaxInterval
	}
	// attempts are bounded by maxRetries
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, d.maxRetries), ctx)
}

func (d *RetryDeliverer) Deliver(ctx context.Context, url string, env events.Envelope) error {
	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		err := d.deliverer.Deliver(ctx, url, env)
		if err != nil && !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, d.newBackOff(ctx), func(err error, next time.Duration) {
		d.logger.Debugf("delivery attempt %v of event %v to %v failed, next attempt in %v: %v", attempt, env.EventID, url, next, err)
	})
}
