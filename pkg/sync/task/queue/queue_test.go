package queue_test

import (
	"testing"
	"time"

	"github.com/plgd-dev/device-bridge/pkg/sync/task/queue"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     queue.Config
		wantErr bool
	}{
		{name: "valid", cfg: queue.Config{GoPoolSize: 1, Size: 1, MaxIdleTime: time.Minute}},
		{name: "invalidGoPoolSize", cfg: queue.Config{Size: 1}, wantErr: true},
		{name: "invalidSize", cfg: queue.Config{GoPoolSize: 1}, wantErr: true},
		{name: "invalidMaxIdleTime", cfg: queue.Config{GoPoolSize: 1, Size: 1, MaxIdleTime: -time.Second}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestNew(t *testing.T) {
	_, err := queue.New(queue.Config{GoPoolSize: 1})
	require.Error(t, err)
	q, err := queue.New(queue.Config{GoPoolSize: 1, Size: 1})
	require.NoError(t, err)
	q.Release()
	err = q.SubmitForOneWorker("a", func() {})
	require.Error(t, err)
}
