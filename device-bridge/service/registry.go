package service

import (
	"context"

	"github.com/plgd-dev/device-bridge/device-bridge/registry"
)

// Registry is the device registry backend, owning twins, telemetry and provisioning.
type Registry interface {
	TwinReader
	UpdateReportedProperties(ctx context.Context, deviceID string, patch map[string]interface{}) error
	SendMessage(ctx context.Context, deviceID string, msg registry.Message) error
	Register(ctx context.Context, deviceID, modelID string) (registry.Registration, error)
	Health(ctx context.Context) error
}
