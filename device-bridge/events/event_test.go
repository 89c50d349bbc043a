package events_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/plgd-dev/device-bridge/device-bridge/events"
	"github.com/plgd-dev/device-bridge/device-bridge/store"
	"github.com/plgd-dev/kit/v2/codec/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventType(t *testing.T) {
	tests := []struct {
		name    string
		arg     string
		want    events.EventType
		wantSub store.SubscriptionType
		wantErr bool
	}{
		{name: "command", arg: "DirectMethodInvocation", want: events.EventType_DirectMethodInvocation, wantSub: store.SubscriptionType_Command},
		{name: "command by subscription", arg: "command", want: events.EventType_DirectMethodInvocation, wantSub: store.SubscriptionType_Command},
		{name: "c2d", arg: "C2DMessage", want: events.EventType_C2DMessage, wantSub: store.SubscriptionType_C2DMessage},
		{name: "desired", arg: "DesiredPropertyUpdate", want: events.EventType_DesiredPropertyUpdate, wantSub: store.SubscriptionType_DesiredPropertyUpdate},
		{name: "connection", arg: "ConnectionStatus", want: events.EventType_ConnectionStatusChange, wantSub: store.SubscriptionType_ConnectionStatus},
		{name: "unknown", arg: "Telemetry", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := events.ParseEventType(tt.arg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantSub, got.SubscriptionType())
		})
	}
}

func TestEventValidate(t *testing.T) {
	tests := []struct {
		name    string
		ev      events.Event
		wantErr bool
	}{
		{name: "command", ev: events.Event{DeviceID: "d1", EventType: events.EventType_DirectMethodInvocation}},
		{name: "connection", ev: events.NewConnectionStatusChange("d1", events.ConnectionStatus_Connected, "")},
		{name: "missing device", ev: events.Event{EventType: events.EventType_C2DMessage}, wantErr: true},
		{name: "unknown type", ev: events.Event{DeviceID: "d1", EventType: "x"}, wantErr: true},
		{name: "missing status", ev: events.Event{DeviceID: "d1", EventType: events.EventType_ConnectionStatusChange}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ev.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestEnvelopeJSON(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	env := events.NewEnvelope(events.Event{
		DeviceID:  "d1",
		EventType: events.EventType_DirectMethodInvocation,
		Timestamp: ts,
		Payload: events.Payload{
			MethodName: "cmd",
		},
	})
	require.NotEmpty(t, env.EventID)
	require.Equal(t, "2024-05-01T10:00:00Z", env.Timestamp)

	data, err := json.Encode(env)
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, json.Decode(data, &m))
	assert.Equal(t, "DirectMethodInvocation", m["eventType"])
	assert.Equal(t, "cmd", m["methodName"])
	assert.Equal(t, "d1", m["deviceId"])
	assert.NotContains(t, m, "status")
	assert.NotContains(t, m, "desiredProperties")
}

func TestEnvelopeJSONEmptyDesiredPatch(t *testing.T) {
	env := events.NewEnvelope(events.Event{
		DeviceID:  "d1",
		EventType: events.EventType_DesiredPropertyUpdate,
		Payload: events.Payload{
			DesiredProperties: events.DesiredPatch(nil),
		},
	})
	data, err := json.Encode(env)
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, json.Decode(data, &m))
	require.Contains(t, m, "desiredProperties")
	assert.Empty(t, m["desiredProperties"])
}

func TestDecodeEnvelope(t *testing.T) {
	env := events.NewEnvelope(events.NewConnectionStatusChange("d1", events.ConnectionStatus_Disabled, "removed"))
	data, err := json.Encode(env)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/cb", bytes.NewReader(data))
	events.SetEventHeader(req.Header, env)
	h, got, err := events.DecodeEnvelope(req)
	require.NoError(t, err)
	assert.Equal(t, events.EventType_ConnectionStatusChange, h.EventType)
	assert.Equal(t, env.EventID, h.EventID)
	assert.Equal(t, "d1", h.DeviceID)
	assert.Equal(t, env, got)

	req = httptest.NewRequest(http.MethodPost, "/cb", bytes.NewReader(data))
	_, _, err = events.DecodeEnvelope(req)
	require.Error(t, err)
}

func TestDeliveryError(t *testing.T) {
	err := &events.DeliveryError{URL: "http://cb/x", StatusCode: http.StatusInternalServerError, Err: assert.AnError}
	assert.Contains(t, err.Error(), "500")
	assert.ErrorIs(t, err, assert.AnError)
}
