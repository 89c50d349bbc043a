package service

import (
	"fmt"
	"net/http"

	"github.com/plgd-dev/device-bridge/device-bridge/registry"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type TwinResponse struct {
	Twin registry.Twin `json:"twin"`
}

type ReportedPropertiesRequest struct {
	Patch map[string]interface{} `json:"patch"`
}

type ProvisionRequest struct {
	DeviceID string `json:"deviceId"`
	ModelID  string `json:"modelId"`
}

func (rh *RequestHandler) retrieveTwin(w http.ResponseWriter, r *http.Request) (int, error) {
	deviceID, err := parseDeviceID(r)
	if err != nil {
		return http.StatusBadRequest, err
	}
	twin, err := rh.registry.GetTwin(r.Context(), deviceID)
	if err != nil {
		return http.StatusServiceUnavailable, registryError(err)
	}
	rh.writeJSON(w, http.StatusOK, TwinResponse{Twin: twin})
	return http.StatusOK, nil
}

func (rh *RequestHandler) RetrieveTwin(w http.ResponseWriter, r *http.Request) {
	statusCode, err := rh.retrieveTwin(w, r)
	if err != nil {
		rh.logAndWriteErrorResponse(fmt.Errorf("cannot retrieve twin: %w", err), statusCode, w)
	}
}

func (rh *RequestHandler) updateReportedProperties(w http.ResponseWriter, r *http.Request) (int, error) {
	deviceID, err := parseDeviceID(r)
	if err != nil {
		return http.StatusBadRequest, err
	}
	var req ReportedPropertiesRequest
	if err = readJSON(r, &req); err != nil {
		return http.StatusBadRequest, err
	}
	if len(req.Patch) == 0 {
		return http.StatusBadRequest, status.Errorf(codes.InvalidArgument, "patch is required")
	}
	if err = rh.registry.UpdateReportedProperties(r.Context(), deviceID, req.Patch); err != nil {
		return http.StatusServiceUnavailable, registryError(err)
	}
	w.WriteHeader(http.StatusNoContent)
	return http.StatusNoContent, nil
}

func (rh *RequestHandler) UpdateReportedProperties(w http.ResponseWriter, r *http.Request) {
	statusCode, err := rh.updateReportedProperties(w, r)
	if err != nil {
		rh.logAndWriteErrorResponse(fmt.Errorf("cannot update reported properties: %w", err), statusCode, w)
	}
}

func (rh *RequestHandler) sendMessage(w http.ResponseWriter, r *http.Request) (int, error) {
	deviceID, err := parseDeviceID(r)
	if err != nil {
		return http.StatusBadRequest, err
	}
	var msg registry.Message
	if err = readJSON(r, &msg); err != nil {
		return http.StatusBadRequest, err
	}
	if len(msg.Data) == 0 {
		return http.StatusBadRequest, status.Errorf(codes.InvalidArgument, "data is required")
	}
	if err = rh.registry.SendMessage(r.Context(), deviceID, msg); err != nil {
		return http.StatusServiceUnavailable, registryError(err)
	}
	w.WriteHeader(http.StatusNoContent)
	return http.StatusNoContent, nil
}

func (rh *RequestHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	statusCode, err := rh.sendMessage(w, r)
	if err != nil {
		rh.logAndWriteErrorResponse(fmt.Errorf("cannot send message: %w", err), statusCode, w)
	}
}

func (rh *RequestHandler) provision(w http.ResponseWriter, r *http.Request) (int, error) {
	var req ProvisionRequest
	if err := readJSON(r, &req); err != nil {
		return http.StatusBadRequest, err
	}
	if req.DeviceID == "" {
		return http.StatusBadRequest, status.Errorf(codes.InvalidArgument, "deviceId is required")
	}
	reg, err := rh.registry.Register(r.Context(), req.DeviceID, req.ModelID)
	if err != nil {
		return http.StatusServiceUnavailable, registryError(err)
	}
	rh.writeJSON(w, http.StatusOK, reg)
	return http.StatusOK, nil
}

func (rh *RequestHandler) Provision(w http.ResponseWriter, r *http.Request) {
	statusCode, err := rh.provision(w, r)
	if err != nil {
		rh.logAndWriteErrorResponse(fmt.Errorf("cannot provision device: %w", err), statusCode, w)
	}
}
