package registry

import "time"

type TwinProperties struct {
	Desired  map[string]interface{} `json:"desired"`
	Reported map[string]interface{} `json:"reported"`
}

// Twin is the desired and reported property document of a device.
type Twin struct {
	Properties TwinProperties `json:"properties"`
}

// Message is a device to cloud telemetry message.
type Message struct {
	Data            map[string]interface{} `json:"data"`
	Properties      map[string]string      `json:"properties,omitempty"`
	ComponentName   string                 `json:"componentName,omitempty"`
	CreationTimeUTC time.Time              `json:"creationTimeUtc,omitempty"`
}

type Registration struct {
	DeviceID string `json:"deviceId"`
	ModelID  string `json:"modelId,omitempty"`
	Status   string `json:"status"`
}
