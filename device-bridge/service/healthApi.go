package service

import (
	"net/http"

	pkgHttp "github.com/plgd-dev/device-bridge/pkg/net/http"
)

const (
	healthyBody  = "Healthy"
	degradedBody = "Degraded: "
)

func (rh *RequestHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(pkgHttp.ContentTypeHeaderKey, pkgHttp.TextPlainContentType)
	if err := rh.health.Check(r.Context()); err != nil {
		rh.logger.Warnf("health check failed: %v", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(degradedBody + err.Error()))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(healthyBody))
}
