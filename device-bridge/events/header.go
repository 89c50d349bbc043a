package events

import (
	"fmt"
	"net/http"
	"time"

	"github.com/plgd-dev/kit/v2/codec/json"
)

const (
	ContentTypeKey    = "Content-Type"
	EventTypeKey      = "Event-Type"
	EventIDKey        = "Event-Id"
	EventTimestampKey = "Event-Timestamp"
	DeviceIDKey       = "Device-Id"

	ContentType_JSON = "application/json"
)

type EventHeader struct {
	ContentType    string
	EventType      EventType
	EventID        string
	EventTimestamp time.Time
	DeviceID       string
}

// SetEventHeader sets the headers describing the envelope to the request.
func SetEventHeader(h http.Header, env Envelope) {
	h.Set(ContentTypeKey, ContentType_JSON)
	h.Set(EventTypeKey, string(env.EventType))
	h.Set(EventIDKey, env.EventID)
	h.Set(EventTimestampKey, env.Timestamp)
	h.Set(DeviceIDKey, env.DeviceID)
}

func ParseEventHeader(r *http.Request) (h EventHeader, _ error) {
	contentType := r.Header.Get(ContentTypeKey)
	if contentType != ContentType_JSON {
		return h, fmt.Errorf("invalid "+ContentTypeKey+"(%v)", contentType)
	}
	eventType := EventType(r.Header.Get(EventTypeKey))
	if _, ok := eventTypes[eventType]; !ok {
		return h, fmt.Errorf("invalid "+EventTypeKey+"(%v)", eventType)
	}
	eventID := r.Header.Get(EventIDKey)
	if eventID == "" {
		return h, fmt.Errorf("invalid " + EventIDKey)
	}
	deviceID := r.Header.Get(DeviceIDKey)
	if deviceID == "" {
		return h, fmt.Errorf("invalid " + DeviceIDKey)
	}
	evTimestamp := r.Header.Get(EventTimestampKey)
	eventTimestamp, err := time.Parse(time.RFC3339Nano, evTimestamp)
	if err != nil {
		return h, fmt.Errorf("invalid "+EventTimestampKey+"(%v): %w", evTimestamp, err)
	}
	return EventHeader{
		ContentType:    contentType,
		EventType:      eventType,
		EventID:        eventID,
		EventTimestamp: eventTimestamp,
		DeviceID:       deviceID,
	}, nil
}

// DecodeEnvelope reads the envelope from the body of a callback request.
func DecodeEnvelope(r *http.Request) (EventHeader, Envelope, error) {
	h, err := ParseEventHeader(r)
	if err != nil {
		return h, Envelope{}, err
	}
	var env Envelope
	if err = json.ReadFrom(r.Body, &env); err != nil {
		return h, Envelope{}, fmt.Errorf("cannot decode envelope: %w", err)
	}
	return h, env, nil
}
