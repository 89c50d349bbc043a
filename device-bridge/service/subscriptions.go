package service

import (
	"fmt"
	"net/http"
	"time"

	router "github.com/gorilla/mux"
	"github.com/plgd-dev/device-bridge/device-bridge/store"
	"github.com/plgd-dev/device-bridge/device-bridge/uri"
)

type SubscriptionRequest struct {
	CallbackURL string `json:"callbackUrl"`
}

type SubscriptionResponse struct {
	DeviceID         string                 `json:"deviceId"`
	SubscriptionType store.SubscriptionType `json:"subscriptionType"`
	CallbackURL      string                 `json:"callbackUrl"`
	CreatedAt        string                 `json:"createdAt"`
	Status           store.Status           `json:"status"`
}

func makeSubscriptionResponse(s store.Subscription) SubscriptionResponse {
	return SubscriptionResponse{
		DeviceID:         s.DeviceID,
		SubscriptionType: s.Type,
		CallbackURL:      s.CallbackURL,
		CreatedAt:        s.CreatedAt.UTC().Format(time.RFC3339Nano),
		Status:           s.Status(),
	}
}

func parseSubscriptionKey(r *http.Request) (string, store.SubscriptionType, error) {
	deviceID, err := parseDeviceID(r)
	if err != nil {
		return "", "", err
	}
	typ, err := store.ParseSubscriptionType(router.Vars(r)[uri.SubscriptionTypeKey])
	if err != nil {
		return "", "", err
	}
	return deviceID, typ, nil
}

func (rh *RequestHandler) createSubscription(w http.ResponseWriter, r *http.Request) (int, error) {
	deviceID, typ, err := parseSubscriptionKey(r)
	if err != nil {
		return http.StatusBadRequest, err
	}
	var req SubscriptionRequest
	if err = readJSON(r, &req); err != nil {
		return http.StatusBadRequest, err
	}
	sub, err := rh.subMgr.CreateSubscription(r.Context(), deviceID, typ, req.CallbackURL)
	if err != nil {
		return http.StatusInternalServerError, fmt.Errorf("cannot store subscription: %w", err)
	}
	rh.writeJSON(w, http.StatusOK, makeSubscriptionResponse(sub))
	return http.StatusOK, nil
}

func (rh *RequestHandler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	statusCode, err := rh.createSubscription(w, r)
	if err != nil {
		rh.logAndWriteErrorResponse(fmt.Errorf("cannot create subscription: %w", err), statusCode, w)
	}
}

func (rh *RequestHandler) retrieveSubscription(w http.ResponseWriter, r *http.Request) (int, error) {
	deviceID, typ, err := parseSubscriptionKey(r)
	if err != nil {
		return http.StatusBadRequest, err
	}
	sub, err := rh.subMgr.LoadSubscription(r.Context(), deviceID, typ)
	if err != nil {
		return http.StatusInternalServerError, err
	}
	rh.writeJSON(w, http.StatusOK, makeSubscriptionResponse(sub))
	return http.StatusOK, nil
}

func (rh *RequestHandler) RetrieveSubscription(w http.ResponseWriter, r *http.Request) {
	statusCode, err := rh.retrieveSubscription(w, r)
	if err != nil {
		rh.logAndWriteErrorResponse(fmt.Errorf("cannot retrieve subscription: %w", err), statusCode, w)
	}
}

func (rh *RequestHandler) deleteSubscription(w http.ResponseWriter, r *http.Request) (int, error) {
	deviceID, typ, err := parseSubscriptionKey(r)
	if err != nil {
		return http.StatusBadRequest, err
	}
	if _, err = rh.subMgr.DeleteSubscription(r.Context(), deviceID, typ); err != nil {
		return http.StatusInternalServerError, err
	}
	w.WriteHeader(http.StatusNoContent)
	return http.StatusNoContent, nil
}

func (rh *RequestHandler) DeleteSubscription(w http.ResponseWriter, r *http.Request) {
	statusCode, err := rh.deleteSubscription(w, r)
	if err != nil {
		rh.logAndWriteErrorResponse(fmt.Errorf("cannot delete subscription: %w", err), statusCode, w)
	}
}
