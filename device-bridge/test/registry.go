package test

import (
	"context"
	"sync"

	"github.com/plgd-dev/device-bridge/device-bridge/registry"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Registry is an in-memory device registry.
type Registry struct {
	mutex     sync.Mutex
	twins     map[string]registry.Twin
	messages  map[string][]registry.Message
	healthErr error
}

func NewRegistry() *Registry {
	return &Registry{
		twins:    make(map[string]registry.Twin),
		messages: make(map[string][]registry.Message),
	}
}

func (r *Registry) SetTwin(deviceID string, twin registry.Twin) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.twins[deviceID] = twin
}

func (r *Registry) SetHealthError(err error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.healthErr = err
}

func (r *Registry) Messages(deviceID string) []registry.Message {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]registry.Message(nil), r.messages[deviceID]...)
}

func (r *Registry) GetTwin(_ context.Context, deviceID string) (registry.Twin, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	twin, ok := r.twins[deviceID]
	if !ok {
		return registry.Twin{}, status.Errorf(codes.NotFound, "twin of device %v not found", deviceID)
	}
	return twin, nil
}

func (r *Registry) UpdateReportedProperties(_ context.Context, deviceID string, patch map[string]interface{}) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	twin := r.twins[deviceID]
	if twin.Properties.Reported == nil {
		twin.Properties.Reported = make(map[string]interface{})
	}
	for k, v := range patch {
		twin.Properties.Reported[k] = v
	}
	r.twins[deviceID] = twin
	return nil
}

func (r *Registry) SendMessage(_ context.Context, deviceID string, msg registry.Message) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.messages[deviceID] = append(r.messages[deviceID], msg)
	return nil
}

func (r *Registry) Register(_ context.Context, deviceID, modelID string) (registry.Registration, error) {
	return registry.Registration{
		DeviceID: deviceID,
		ModelID:  modelID,
		Status:   "assigned",
	}, nil
}

func (r *Registry) Health(context.Context) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.healthErr
}
