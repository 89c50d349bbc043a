package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrToStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: http.StatusOK},
		{name: "invalidArgument", err: status.Errorf(codes.InvalidArgument, "bad"), want: http.StatusBadRequest},
		{name: "notFound", err: status.Errorf(codes.NotFound, "missing"), want: http.StatusNotFound},
		{name: "unauthenticated", err: status.Errorf(codes.Unauthenticated, "key"), want: http.StatusUnauthorized},
		{name: "unavailable", err: status.Errorf(codes.Unavailable, "registry"), want: http.StatusServiceUnavailable},
		{name: "wrapped", err: fmt.Errorf("cannot load: %w", status.Errorf(codes.NotFound, "missing")), want: http.StatusNotFound},
		{name: "unknown", err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrToStatus(tt.err))
		})
	}
}

func TestErrToStatusWithDef(t *testing.T) {
	assert.Equal(t, http.StatusBadGateway, ErrToStatusWithDef(errors.New("boom"), http.StatusBadGateway))
}

func TestReadErrorResponse(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{
			name:    "empty",
			err:     nil,
			wantErr: ErrInternalServerError,
		},
		{
			name:    "error",
			err:     fmt.Errorf("a"),
			wantErr: fmt.Errorf("a"),
		},
		{
			name:    "status",
			err:     status.Errorf(codes.NotFound, "subscription not found"),
			wantErr: fmt.Errorf("subscription not found"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteErrorResponse(rec, ErrToStatus(tt.err), tt.err)
			resp := rec.Result()
			defer func() {
				_ = resp.Body.Close()
			}()
			require.Equal(t, TextPlainContentType, resp.Header.Get(ContentTypeHeaderKey))
			err := ReadErrorResponse(resp)
			assert.Equal(t, tt.wantErr, err)
		})
	}
}
