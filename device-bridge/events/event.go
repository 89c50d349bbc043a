package events

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/plgd-dev/device-bridge/device-bridge/store"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type EventType string

const (
	EventType_DirectMethodInvocation EventType = "DirectMethodInvocation"
	EventType_C2DMessage             EventType = "C2DMessage"
	EventType_DesiredPropertyUpdate  EventType = "DesiredPropertyUpdate"
	EventType_ConnectionStatusChange EventType = "ConnectionStatusChange"
)

var eventTypes = map[EventType]store.SubscriptionType{
	EventType_DirectMethodInvocation: store.SubscriptionType_Command,
	EventType_C2DMessage:             store.SubscriptionType_C2DMessage,
	EventType_DesiredPropertyUpdate:  store.SubscriptionType_DesiredPropertyUpdate,
	EventType_ConnectionStatusChange: store.SubscriptionType_ConnectionStatus,
}

// SubscriptionType returns the type of subscription which receives the event.
func (t EventType) SubscriptionType() store.SubscriptionType {
	return eventTypes[t]
}

// ParseEventType accepts event type names and the names of the matching subscription types.
func ParseEventType(v string) (EventType, error) {
	for et, st := range eventTypes {
		if strings.EqualFold(string(et), v) || strings.EqualFold(string(st), v) {
			return et, nil
		}
	}
	return "", status.Errorf(codes.InvalidArgument, "invalid event type('%v')", v)
}

type ConnectionStatus string

const (
	ConnectionStatus_Connected ConnectionStatus = "Connected"
	ConnectionStatus_Disabled  ConnectionStatus = "Disabled"
)

// Payload carries the event specific fields, only the fields of the event type are set.
type Payload struct {
	// DirectMethodInvocation
	MethodName  string                 `json:"methodName,omitempty"`
	RequestData map[string]interface{} `json:"requestData,omitempty"`
	// C2DMessage
	MessageBody map[string]interface{} `json:"messageBody,omitempty"`
	Properties  map[string]string      `json:"properties,omitempty"`
	// DesiredPropertyUpdate, nil is completed from the twin on dispatch
	DesiredProperties *Properties `json:"desiredProperties,omitempty"`
	// ConnectionStatusChange
	Status ConnectionStatus `json:"status,omitempty"`
	Reason string           `json:"reason,omitempty"`
}

// Properties is a free-form property document.
type Properties map[string]interface{}

// DesiredPatch wraps the desired properties of an update, an empty patch is still delivered.
func DesiredPatch(patch map[string]interface{}) *Properties {
	p := Properties(patch)
	if p == nil {
		p = Properties{}
	}
	return &p
}

// Desired returns the desired properties of the payload.
func (p Payload) Desired() Properties {
	if p.DesiredProperties == nil {
		return nil
	}
	return *p.DesiredProperties
}

// Event is a device or backend event dispatched to the subscriber of the device.
type Event struct {
	DeviceID  string    `json:"deviceId"`
	EventType EventType `json:"eventType"`
	Timestamp time.Time `json:"timestamp,omitempty"`
	Payload
}

func (e Event) Validate() error {
	if e.DeviceID == "" {
		return status.Errorf(codes.InvalidArgument, "deviceId is required")
	}
	if _, ok := eventTypes[e.EventType]; !ok {
		return status.Errorf(codes.InvalidArgument, "invalid eventType('%v')", e.EventType)
	}
	if e.EventType == EventType_ConnectionStatusChange && e.Status != ConnectionStatus_Connected && e.Status != ConnectionStatus_Disabled {
		return status.Errorf(codes.InvalidArgument, "invalid status('%v')", e.Status)
	}
	return nil
}

func (e Event) String() string {
	return fmt.Sprintf("%v(%v)", e.EventType, e.DeviceID)
}

// NewConnectionStatusChange creates the event emitted on a connection status transition.
func NewConnectionStatusChange(deviceID string, s ConnectionStatus, reason string) Event {
	return Event{
		DeviceID:  deviceID,
		EventType: EventType_ConnectionStatusChange,
		Timestamp: time.Now().UTC(),
		Payload: Payload{
			Status: s,
			Reason: reason,
		},
	}
}

// Envelope is the body posted to the callback url of a subscription.
type Envelope struct {
	EventType EventType `json:"eventType"`
	DeviceID  string    `json:"deviceId"`
	EventID   string    `json:"eventId"`
	Timestamp string    `json:"timestamp"`
	Payload
}

// NewEnvelope wraps the event with a new event id.
func NewEnvelope(e Event) Envelope {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return Envelope{
		EventType: e.EventType,
		DeviceID:  e.DeviceID,
		EventID:   uuid.NewString(),
		Timestamp: ts.UTC().Format(time.RFC3339Nano),
		Payload:   e.Payload,
	}
}
