package service

import (
	"fmt"
	"net/http"

	"github.com/plgd-dev/device-bridge/device-bridge/events"
)

type ConnectionStatusResponse struct {
	Status events.ConnectionStatus `json:"status"`
	Reason string                  `json:"reason,omitempty"`
}

func (rh *RequestHandler) retrieveConnectionStatus(w http.ResponseWriter, r *http.Request) (int, error) {
	deviceID, err := parseDeviceID(r)
	if err != nil {
		return http.StatusBadRequest, err
	}
	s, reason, err := rh.subMgr.ConnectionStatusWithReason(r.Context(), deviceID)
	if err != nil {
		return http.StatusInternalServerError, err
	}
	rh.writeJSON(w, http.StatusOK, ConnectionStatusResponse{Status: s, Reason: reason})
	return http.StatusOK, nil
}

func (rh *RequestHandler) RetrieveConnectionStatus(w http.ResponseWriter, r *http.Request) {
	statusCode, err := rh.retrieveConnectionStatus(w, r)
	if err != nil {
		rh.logAndWriteErrorResponse(fmt.Errorf("cannot retrieve connection status: %w", err), statusCode, w)
	}
}
