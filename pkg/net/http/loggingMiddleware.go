package http

import (
	"net/http"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/plgd-dev/device-bridge/pkg/log"
)

// DefaultCodeToLevel selects the log function for the http status code.
func DefaultCodeToLevel(code int, logger log.Logger) func(args ...interface{}) {
	switch code {
	case http.StatusForbidden, http.StatusPreconditionFailed, http.StatusUnavailableForLegalReasons,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return logger.Warn
	case http.StatusInternalServerError, http.StatusNotImplemented, http.StatusLoopDetected:
		return logger.Error
	}
	if code >= http.StatusContinue && code < 600 {
		return logger.Debug
	}
	return logger.Error
}

type cfg struct {
	logger log.Logger
}

type LogOpt = func(cfg) cfg

func WithLogger(logger log.Logger) LogOpt {
	return func(c cfg) cfg {
		c.logger = logger
		return c
	}
}

const (
	logDurationKey  = "http.duration"
	logStartTimeKey = "http.startTime"
	logHrefKey      = "http.href"
	logMethodKey    = "http.method"
	logCodeKey      = "http.code"
)

func CreateLoggingMiddleware(opts ...LogOpt) func(next http.Handler) http.Handler {
	cfg := cfg{
		logger: log.Get(),
	}
	for _, o := range opts {
		cfg = o(cfg)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := httpsnoop.CaptureMetrics(next, w, r)
			start := time.Now().Add(-m.Duration)

			logger := cfg.logger.With(logDurationKey, log.DurationToMilliseconds(m.Duration), logMethodKey, r.Method, logCodeKey, m.Code, logStartTimeKey, start, logHrefKey, r.RequestURI)
			doLog := DefaultCodeToLevel(m.Code, logger)
			doLog("finished call with status code ", m.Code)
		})
	}
}
