package http

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
)

// OpenTelemetryNewHandler wraps handler by a server span per request.
func OpenTelemetryNewHandler(handler http.Handler, serviceName string, tracerProvider trace.TracerProvider) http.Handler {
	return otelhttp.NewHandler(handler, serviceName, otelhttp.WithTracerProvider(tracerProvider))
}
