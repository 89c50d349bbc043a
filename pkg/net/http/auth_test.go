package http

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateAPIKeyMiddleware(t *testing.T) {
	const apiKey = "secret"
	handler := CreateAPIKeyMiddleware(apiKey, func(w http.ResponseWriter, r *http.Request, err error) {
		WriteErrorResponse(w, ErrToStatus(err), err)
	}, RequestMatcher{
		Method: http.MethodGet,
		URI:    regexp.MustCompile(`^/health$`),
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		method string
		path   string
		key    string
		want   int
	}{
		{name: "missing key", method: http.MethodGet, path: "/subscriptions/d/Command", want: http.StatusUnauthorized},
		{name: "invalid key", method: http.MethodGet, path: "/subscriptions/d/Command", key: "other", want: http.StatusUnauthorized},
		{name: "valid key", method: http.MethodGet, path: "/subscriptions/d/Command", key: apiKey, want: http.StatusNoContent},
		{name: "whitelisted", method: http.MethodGet, path: "/health", want: http.StatusNoContent},
		{name: "whitelisted path other method", method: http.MethodPost, path: "/health", want: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.key != "" {
				req.Header.Set(APIKeyHeaderKey, tt.key)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			require.Equal(t, tt.want, rec.Code)
		})
	}
}
