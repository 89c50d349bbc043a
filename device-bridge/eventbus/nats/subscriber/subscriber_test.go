package subscriber_test

import (
	"testing"

	"github.com/plgd-dev/device-bridge/device-bridge/eventbus/nats/subscriber"
	"github.com/plgd-dev/device-bridge/device-bridge/events"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestSubject(t *testing.T) {
	require.Equal(t, "bridge.devices.*.events.*", subscriber.Subject("bridge"))
	require.Equal(t, "bridge.devices.d1.events.C2DMessage", subscriber.DeviceEventSubject("bridge", "d1", events.EventType_C2DMessage))
}

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name     string
		subject  string
		data     string
		want     events.Event
		wantCode codes.Code
	}{
		{
			name:    "full payload",
			subject: "bridge.devices.d1.events.DirectMethodInvocation",
			data:    `{"deviceId":"d1","eventType":"DirectMethodInvocation","methodName":"reboot"}`,
			want: events.Event{
				DeviceID:  "d1",
				EventType: events.EventType_DirectMethodInvocation,
				Payload:   events.Payload{MethodName: "reboot"},
			},
		},
		{
			name:    "device and type from subject",
			subject: "bridge.devices.d2.events.Command",
			data:    `{"methodName":"cmd"}`,
			want: events.Event{
				DeviceID:  "d2",
				EventType: events.EventType_DirectMethodInvocation,
				Payload:   events.Payload{MethodName: "cmd"},
			},
		},
		{
			name:    "connection status",
			subject: "a.b.devices.d3.events.ConnectionStatusChange",
			data:    `{"status":"Disabled","reason":"expired"}`,
			want: events.Event{
				DeviceID:  "d3",
				EventType: events.EventType_ConnectionStatusChange,
				Payload:   events.Payload{Status: events.ConnectionStatus_Disabled, Reason: "expired"},
			},
		},
		{
			name:     "invalid json",
			subject:  "bridge.devices.d1.events.C2DMessage",
			data:     `{"deviceId":`,
			wantCode: codes.InvalidArgument,
		},
		{
			name:     "invalid subject",
			subject:  "bridge.d1.C2DMessage",
			data:     `{}`,
			wantCode: codes.InvalidArgument,
		},
		{
			name:     "unknown event type",
			subject:  "bridge.devices.d1.events.Unknown",
			data:     `{}`,
			wantCode: codes.InvalidArgument,
		},
		{
			name:     "invalid connection status",
			subject:  "bridge.devices.d1.events.ConnectionStatusChange",
			data:     `{"status":"Sleeping"}`,
			wantCode: codes.InvalidArgument,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := subscriber.DecodeEvent(tt.subject, []byte(tt.data))
			if tt.wantCode != codes.OK {
				require.Error(t, err)
				require.Equal(t, tt.wantCode, status.Code(err))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
