package service

import (
	"fmt"
	"net/http"
	"regexp"

	router "github.com/gorilla/mux"
	"github.com/plgd-dev/device-bridge/device-bridge/uri"
	"github.com/plgd-dev/device-bridge/pkg/log"
	pkgHttp "github.com/plgd-dev/device-bridge/pkg/net/http"
	"github.com/plgd-dev/kit/v2/codec/json"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RequestHandler for handling incoming request
type RequestHandler struct {
	subMgr   *SubscriptionManager
	registry Registry
	health   *HealthChecker
	metrics  *Metrics
	logger   log.Logger
}

// NewRequestHandler factory for new RequestHandler
func NewRequestHandler(subMgr *SubscriptionManager, registry Registry, health *HealthChecker, metrics *Metrics, logger log.Logger) *RequestHandler {
	return &RequestHandler{
		subMgr:   subMgr,
		registry: registry,
		health:   health,
		metrics:  metrics,
		logger:   logger,
	}
}

func (rh *RequestHandler) logAndWriteErrorResponse(err error, statusCode int, w http.ResponseWriter) {
	code := pkgHttp.ErrToStatusWithDef(err, statusCode)
	if code >= http.StatusInternalServerError {
		rh.logger.Errorf("%v", err)
	} else {
		rh.logger.Debugf("%v", err)
	}
	pkgHttp.WriteErrorResponse(w, code, err)
}

func (rh *RequestHandler) writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set(pkgHttp.ContentTypeHeaderKey, pkgHttp.ApplicationJsonContentType)
	w.WriteHeader(statusCode)
	if err := json.WriteTo(w, v); err != nil {
		rh.logger.Errorf("cannot write response: %v", err)
	}
}

func readJSON(r *http.Request, v interface{}) error {
	if err := json.ReadFrom(r.Body, v); err != nil {
		return status.Errorf(codes.InvalidArgument, "cannot decode body: %v", err)
	}
	return nil
}

func parseDeviceID(r *http.Request) (string, error) {
	deviceID := router.Vars(r)[uri.DeviceIDKey]
	if deviceID == "" {
		return "", status.Errorf(codes.InvalidArgument, "deviceId is required")
	}
	return deviceID, nil
}

// registryError keeps the credential errors of the bridge from leaking to the caller.
func registryError(err error) error {
	switch status.Code(err) {
	case codes.Unauthenticated, codes.PermissionDenied:
		return status.Errorf(codes.Unavailable, "registry rejected the request: %v", err)
	}
	return err
}

var authWhiteList = []pkgHttp.RequestMatcher{
	{
		Method: http.MethodGet,
		URI:    regexp.MustCompile(`^` + regexp.QuoteMeta(uri.Health) + `/?$`),
	},
	{
		Method: http.MethodGet,
		URI:    regexp.MustCompile(`^` + regexp.QuoteMeta(uri.Metrics) + `/?$`),
	},
}

// NewHTTP returns HTTP handler
func NewHTTP(requestHandler *RequestHandler, apiKey string, logger log.Logger) http.Handler {
	r := router.NewRouter()
	r.Use(pkgHttp.CreateAPIKeyMiddleware(apiKey, func(w http.ResponseWriter, r *http.Request, err error) {
		requestHandler.logAndWriteErrorResponse(fmt.Errorf("cannot process request on %v: %w", r.RequestURI, err), http.StatusUnauthorized, w)
	}, authWhiteList...))
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pkgHttp.WriteErrorResponse(w, http.StatusMethodNotAllowed, fmt.Errorf("method %v is not allowed on %v", r.Method, r.URL.Path))
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pkgHttp.WriteErrorResponse(w, http.StatusNotFound, fmt.Errorf("%v not found", r.URL.Path))
	})

	r.HandleFunc(uri.Health, requestHandler.Health).Methods(http.MethodGet)
	r.Handle(uri.Metrics, requestHandler.metrics.Handler()).Methods(http.MethodGet)

	// subscriptions
	r.HandleFunc(uri.Subscription, requestHandler.CreateSubscription).Methods(http.MethodPut)
	r.HandleFunc(uri.Subscription, requestHandler.RetrieveSubscription).Methods(http.MethodGet)
	r.HandleFunc(uri.Subscription, requestHandler.DeleteSubscription).Methods(http.MethodDelete)

	r.HandleFunc(uri.ConnectionStatus, requestHandler.RetrieveConnectionStatus).Methods(http.MethodGet)

	// registry
	r.HandleFunc(uri.Twin, requestHandler.RetrieveTwin).Methods(http.MethodGet)
	r.HandleFunc(uri.TwinReported, requestHandler.UpdateReportedProperties).Methods(http.MethodPatch)
	r.HandleFunc(uri.Messages, requestHandler.SendMessage).Methods(http.MethodPost)
	r.HandleFunc(uri.Provision, requestHandler.Provision).Methods(http.MethodPost)

	return pkgHttp.CreateLoggingMiddleware(pkgHttp.WithLogger(logger))(r)
}
