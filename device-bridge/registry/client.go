// Package registry is a client of the device registry backend which owns device
// twins, telemetry ingestion and provisioning.
package registry

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jtacoma/uritemplates"
	"github.com/plgd-dev/device-bridge/pkg/log"
	pkgHttp "github.com/plgd-dev/device-bridge/pkg/net/http"
	"github.com/plgd-dev/device-bridge/pkg/net/http/client"
	"github.com/plgd-dev/kit/v2/codec/json"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	TwinPath         = "/twins/{deviceId}"
	ReportedPath     = "/twins/{deviceId}/properties/reported"
	MessagesPath     = "/devices/{deviceId}/messages"
	RegistrationPath = "/registrations/{deviceId}"
	HealthPath       = "/health"
)

// Client calls the registry backend over http.
type Client struct {
	address string
	apiKey  string
	client  *client.Client
	logger  log.Logger
}

func New(cfg Config, logger log.Logger, tracerProvider trace.TracerProvider) (*Client, error) {
	c, err := client.New(cfg.HTTP, tracerProvider)
	if err != nil {
		return nil, fmt.Errorf("cannot create http client: %w", err)
	}
	return &Client{
		address: strings.TrimRight(cfg.Address, "/"),
		apiKey:  cfg.APIKey,
		client:  c,
		logger:  logger,
	}, nil
}

const deviceIDKey = "deviceId"

func (c *Client) url(path, deviceID string) (string, error) {
	tmp, err := uritemplates.Parse(path)
	if err != nil {
		return "", status.Errorf(codes.Internal, "cannot parse path template %v: %v", path, err)
	}
	p, err := tmp.Expand(map[string]interface{}{
		deviceIDKey: deviceID,
	})
	if err != nil {
		return "", status.Errorf(codes.InvalidArgument, "cannot expand path template %v: %v", path, err)
	}
	return c.address + p, nil
}

func statusToCode(statusCode int) codes.Code {
	switch statusCode {
	case http.StatusBadRequest:
		return codes.InvalidArgument
	case http.StatusNotFound:
		return codes.NotFound
	case http.StatusUnauthorized:
		return codes.Unauthenticated
	case http.StatusForbidden:
		return codes.PermissionDenied
	}
	return codes.Unavailable
}

func (c *Client) doDevice(ctx context.Context, method, path, deviceID string, req, resp interface{}) error {
	u, err := c.url(path, deviceID)
	if err != nil {
		return err
	}
	return c.do(ctx, method, u, req, resp)
}

func (c *Client) do(ctx context.Context, method, url string, req, resp interface{}) error {
	var body io.Reader
	if req != nil {
		data, err := json.Encode(req)
		if err != nil {
			return status.Errorf(codes.Internal, "cannot encode request: %v", err)
		}
		body = bytes.NewReader(data)
	}
	r, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return status.Errorf(codes.Internal, "cannot create request: %v", err)
	}
	if req != nil {
		r.Header.Set(pkgHttp.ContentTypeHeaderKey, pkgHttp.ApplicationJsonContentType)
	}
	if c.apiKey != "" {
		r.Header.Set(pkgHttp.APIKeyHeaderKey, c.apiKey)
	}
	res, err := c.client.HTTP().Do(r)
	if err != nil {
		return status.Errorf(codes.Unavailable, "registry is unavailable: %v", err)
	}
	defer func() {
		if errC := res.Body.Close(); errC != nil {
			c.logger.Errorf("failed to close response body stream: %v", errC)
		}
	}()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		errBody := pkgHttp.ReadErrorResponse(res)
		return status.Errorf(statusToCode(res.StatusCode), "registry %v %v: unexpected statusCode %v: %v", method, url, res.StatusCode, errBody)
	}
	if resp == nil || res.StatusCode == http.StatusNoContent {
		return nil
	}
	if err = json.ReadFrom(res.Body, resp); err != nil {
		return status.Errorf(codes.Unavailable, "cannot decode registry response: %v", err)
	}
	return nil
}

func (c *Client) GetTwin(ctx context.Context, deviceID string) (Twin, error) {
	var twin Twin
	err := c.doDevice(ctx, http.MethodGet, TwinPath, deviceID, nil, &twin)
	return twin, err
}

func (c *Client) UpdateReportedProperties(ctx context.Context, deviceID string, patch map[string]interface{}) error {
	return c.doDevice(ctx, http.MethodPatch, ReportedPath, deviceID, map[string]interface{}{"patch": patch}, nil)
}

func (c *Client) SendMessage(ctx context.Context, deviceID string, msg Message) error {
	return c.doDevice(ctx, http.MethodPost, MessagesPath, deviceID, msg, nil)
}

func (c *Client) Register(ctx context.Context, deviceID, modelID string) (Registration, error) {
	var reg Registration
	err := c.doDevice(ctx, http.MethodPut, RegistrationPath, deviceID, map[string]string{"modelId": modelID}, &reg)
	return reg, err
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, c.address+HealthPath, nil, nil)
}

func (c *Client) Close() {
	c.client.Close()
}
