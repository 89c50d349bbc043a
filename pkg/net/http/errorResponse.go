package http

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// TextPlainContentType content type strings for text plain that is user for error.
var TextPlainContentType = "text/plain; charset=utf-8"

// ErrInternalServerError internal server error
var ErrInternalServerError = errors.New("internal server error")

type grpcErr interface {
	GRPCStatus() *status.Status
}

// ErrToStatusWithDef converts the error kind carried by err to http status code.
func ErrToStatusWithDef(err error, def int) int {
	if err == nil {
		return http.StatusOK
	}
	var gErr grpcErr
	if !errors.As(err, &gErr) {
		return def
	}
	switch gErr.GRPCStatus().Code() {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists:
		return http.StatusConflict
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.FailedPrecondition:
		return http.StatusPreconditionFailed
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unimplemented:
		return http.StatusNotImplemented
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.Canceled:
		return http.StatusRequestTimeout
	}
	return def
}

// ErrToStatus converts err to http status code, unknown errors are internal server errors.
func ErrToStatus(err error) int {
	return ErrToStatusWithDef(err, http.StatusInternalServerError)
}

// WriteErrorResponse sets the content type, status code and writes the error message to the body.
func WriteErrorResponse(w http.ResponseWriter, code int, err error) {
	if err == nil {
		err = ErrInternalServerError
	}
	msg := err.Error()
	if s, ok := status.FromError(err); ok {
		msg = s.Message()
	}
	w.Header().Set(ContentTypeHeaderKey, TextPlainContentType)
	w.Header().Set(ContentTypeOptionsHeaderKey, "nosniff")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(msg))
}

// ReadErrorResponse validates the content type and decodes the body to the error.
func ReadErrorResponse(resp *http.Response) error {
	if !strings.HasPrefix(resp.Header.Get(ContentTypeHeaderKey), "text/plain") {
		return ErrInternalServerError
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil || len(body) == 0 {
		return ErrInternalServerError
	}
	return errors.New(string(body))
}
