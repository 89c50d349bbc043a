package cqldb

import (
	"context"
	"testing"
	"time"

	"github.com/plgd-dev/device-bridge/device-bridge/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestToSelect(t *testing.T) {
	const table = "bridge.subscriptions"
	tests := []struct {
		name       string
		query      store.SubscriptionQuery
		want       string
		wantValues []interface{}
	}{
		{
			name: "all",
			want: "select deviceid,type,callbackurl,createdat from bridge.subscriptions;",
		},
		{
			name:       "device",
			query:      store.SubscriptionQuery{DeviceID: "d1"},
			want:       "select deviceid,type,callbackurl,createdat from bridge.subscriptions where deviceid=?;",
			wantValues: []interface{}{"d1"},
		},
		{
			name:       "type",
			query:      store.SubscriptionQuery{Type: store.SubscriptionType_ConnectionStatus},
			want:       "select deviceid,type,callbackurl,createdat from bridge.subscriptions where type=? allow filtering;",
			wantValues: []interface{}{"ConnectionStatus"},
		},
		{
			name:       "key",
			query:      store.SubscriptionQuery{DeviceID: "d1", Type: store.SubscriptionType_Command},
			want:       "select deviceid,type,callbackurl,createdat from bridge.subscriptions where deviceid=? and type=?;",
			wantValues: []interface{}{"d1", "Command"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, values := toSelect(table, tt.query)
			assert.Equal(t, tt.want, q)
			assert.Equal(t, tt.wantValues, values)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	c := Config{}
	assert.Error(t, c.Validate())
	assert.Equal(t, []string{"Command", "ConnectionStatus"}, triggeringTypes())
}

// scriptedWriter keeps one row and runs the hooks before every conditional write.
type scriptedWriter struct {
	row         *store.Subscription
	beforeWrite []func(w *scriptedWriter)
	inserts     int
	updates     int
}

func (w *scriptedWriter) hook() {
	if len(w.beforeWrite) == 0 {
		return
	}
	h := w.beforeWrite[0]
	w.beforeWrite = w.beforeWrite[1:]
	h(w)
}

func (w *scriptedWriter) LoadSubscription(_ context.Context, deviceID string, typ store.SubscriptionType) (store.Subscription, error) {
	if w.row == nil {
		return store.Subscription{}, store.NewNotFoundError(deviceID, typ)
	}
	return *w.row, nil
}

func (w *scriptedWriter) insertSubscription(_ context.Context, sub store.Subscription) (bool, error) {
	w.hook()
	w.inserts++
	if w.row != nil {
		return false, nil
	}
	w.row = &sub
	return true, nil
}

func (w *scriptedWriter) updateCallbackURL(_ context.Context, sub store.Subscription) (bool, error) {
	w.hook()
	w.updates++
	if w.row == nil || !w.row.CreatedAt.Equal(sub.CreatedAt) {
		return false, nil
	}
	w.row.CallbackURL = sub.CallbackURL
	return true, nil
}

func TestSaveSubscription(t *testing.T) {
	createdAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	createRow := func(w *scriptedWriter) {
		w.row = &store.Subscription{DeviceID: "d1", Type: store.SubscriptionType_Command, CallbackURL: "http://old", CreatedAt: createdAt}
	}
	deleteRow := func(w *scriptedWriter) {
		w.row = nil
	}
	newWriter := func(exists bool, beforeWrite ...func(w *scriptedWriter)) *scriptedWriter {
		w := &scriptedWriter{beforeWrite: beforeWrite}
		if exists {
			createRow(w)
		}
		return w
	}
	churn := []func(w *scriptedWriter){createRow, deleteRow, createRow, deleteRow, createRow}

	tests := []struct {
		name          string
		w             *scriptedWriter
		wantCreatedAt bool
		wantInserts   int
		wantUpdates   int
		wantCode      codes.Code
	}{
		{
			name:        "insert",
			w:           newWriter(false),
			wantInserts: 1,
		},
		{
			name:          "overwrite keeps createdAt",
			w:             newWriter(true),
			wantCreatedAt: true,
			wantUpdates:   1,
		},
		{
			name:        "deleted before update",
			w:           newWriter(true, deleteRow),
			wantUpdates: 1,
			wantInserts: 1,
		},
		{
			name:          "created before insert",
			w:             newWriter(false, createRow),
			wantCreatedAt: true,
			wantInserts:   1,
			wantUpdates:   1,
		},
		{
			name:        "modified on every attempt",
			w:           newWriter(false, churn...),
			wantInserts: 3,
			wantUpdates: 2,
			wantCode:    codes.Aborted,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, err := saveSubscription(context.Background(), tt.w, "d1", store.SubscriptionType_Command, "http://new")
			assert.Equal(t, tt.wantInserts, tt.w.inserts)
			assert.Equal(t, tt.wantUpdates, tt.w.updates)
			if tt.wantCode != codes.OK {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, status.Code(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "http://new", sub.CallbackURL)
			require.NotNil(t, tt.w.row)
			assert.Equal(t, *tt.w.row, sub)
			assert.False(t, sub.CreatedAt.IsZero())
			if tt.wantCreatedAt {
				assert.Equal(t, createdAt, sub.CreatedAt)
			} else {
				assert.NotEqual(t, createdAt, sub.CreatedAt)
			}
		})
	}
}
