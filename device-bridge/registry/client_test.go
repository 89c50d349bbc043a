package registry_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/plgd-dev/device-bridge/device-bridge/registry"
	"github.com/plgd-dev/device-bridge/pkg/log"
	pkgHttp "github.com/plgd-dev/device-bridge/pkg/net/http"
	"github.com/plgd-dev/device-bridge/pkg/net/http/client"
	"github.com/plgd-dev/kit/v2/codec/json"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const testAPIKey = "registry-key"

func newBackend(t *testing.T) *httptest.Server {
	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Header.Get(pkgHttp.APIKeyHeaderKey) != testAPIKey {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, req)
		})
	})
	r.HandleFunc("/twins/{deviceId}", func(w http.ResponseWriter, req *http.Request) {
		if mux.Vars(req)["deviceId"] != "dev 1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set(pkgHttp.ContentTypeHeaderKey, pkgHttp.ApplicationJsonContentType)
		_ = json.WriteTo(w, registry.Twin{Properties: registry.TwinProperties{
			Desired:  map[string]interface{}{"temp": 21},
			Reported: map[string]interface{}{"temp": 20},
		}})
	}).Methods(http.MethodGet)
	r.HandleFunc("/twins/{deviceId}/properties/reported", func(w http.ResponseWriter, req *http.Request) {
		var body map[string]interface{}
		if err := json.ReadFrom(req.Body, &body); err != nil || body["patch"] == nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodPatch)
	r.HandleFunc("/devices/{deviceId}/messages", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}).Methods(http.MethodPost)
	r.HandleFunc("/registrations/{deviceId}", func(w http.ResponseWriter, req *http.Request) {
		var body map[string]string
		_ = json.ReadFrom(req.Body, &body)
		_ = json.WriteTo(w, registry.Registration{
			DeviceID: mux.Vars(req)["deviceId"],
			ModelID:  body["modelId"],
			Status:   "assigned",
		})
	}).Methods(http.MethodPut)
	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte("Healthy"))
	}).Methods(http.MethodGet)
	s := httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

func newClient(t *testing.T, address, apiKey string) *registry.Client {
	cfg := registry.Config{
		Address: address,
		APIKey:  apiKey,
		HTTP:    client.MakeDefaultConfig(),
	}
	require.NoError(t, cfg.Validate())
	c, err := registry.New(cfg, log.Get(), trace.NewNoopTracerProvider())
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestClient(t *testing.T) {
	s := newBackend(t)
	c := newClient(t, s.URL+"/", testAPIKey)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	twin, err := c.GetTwin(ctx, "dev 1")
	require.NoError(t, err)
	require.EqualValues(t, 21, twin.Properties.Desired["temp"])
	require.EqualValues(t, 20, twin.Properties.Reported["temp"])

	_, err = c.GetTwin(ctx, "unknown")
	require.Equal(t, codes.NotFound, status.Code(err))

	err = c.UpdateReportedProperties(ctx, "dev 1", map[string]interface{}{"temp": 22})
	require.NoError(t, err)

	err = c.SendMessage(ctx, "dev 1", registry.Message{Data: map[string]interface{}{"a": 1}})
	require.Equal(t, codes.Unavailable, status.Code(err))

	reg, err := c.Register(ctx, "dev 2", "model")
	require.NoError(t, err)
	require.Equal(t, registry.Registration{DeviceID: "dev 2", ModelID: "model", Status: "assigned"}, reg)

	require.NoError(t, c.Health(ctx))
}

func TestClientUnauthenticated(t *testing.T) {
	s := newBackend(t)
	c := newClient(t, s.URL, "bad")
	_, err := c.GetTwin(context.Background(), "dev 1")
	require.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestClientUnavailable(t *testing.T) {
	s := newBackend(t)
	address := s.URL
	s.Close()
	c := newClient(t, address, testAPIKey)
	err := c.Health(context.Background())
	require.Equal(t, codes.Unavailable, status.Code(err))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		address string
		wantErr bool
	}{
		{name: "valid", address: "http://registry:8080"},
		{name: "empty", address: "", wantErr: true},
		{name: "relative", address: "registry", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := registry.Config{Address: tt.address, HTTP: client.MakeDefaultConfig()}
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}
