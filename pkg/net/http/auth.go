package http

import (
	"crypto/subtle"
	"net/http"
	"regexp"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type OnUnauthorizedAccessFunc = func(w http.ResponseWriter, r *http.Request, err error)

// RequestMatcher allows request without api key validation.
type RequestMatcher struct {
	Method string
	URI    *regexp.Regexp
}

func (m RequestMatcher) match(r *http.Request) bool {
	return strings.EqualFold(r.Method, m.Method) && m.URI.MatchString(r.URL.Path)
}

// ValidateAPIKey checks the pre-shared key of the request.
func ValidateAPIKey(r *http.Request, apiKey string) error {
	key := r.Header.Get(APIKeyHeaderKey)
	if key == "" {
		return status.Errorf(codes.Unauthenticated, "api key not found")
	}
	if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
		return status.Errorf(codes.Unauthenticated, "invalid api key")
	}
	return nil
}

// CreateAPIKeyMiddleware creates middleware for authorization by pre-shared api key.
func CreateAPIKeyMiddleware(apiKey string, onUnauthorizedAccessFunc OnUnauthorizedAccessFunc, whiteList ...RequestMatcher) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, wa := range whiteList {
				if wa.match(r) {
					next.ServeHTTP(w, r)
					return
				}
			}
			if err := ValidateAPIKey(r, apiKey); err != nil {
				onUnauthorizedAccessFunc(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
