package listener_test

import (
	"testing"

	"github.com/plgd-dev/device-bridge/pkg/log"
	"github.com/plgd-dev/device-bridge/pkg/net/listener"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     listener.Config
		wantErr bool
	}{
		{name: "valid", cfg: listener.Config{Addr: "localhost:0"}},
		{name: "missing address", cfg: listener.Config{}, wantErr: true},
		{name: "missing key", cfg: listener.Config{Addr: "localhost:0", TLS: listener.TLSConfig{CertFile: "cert.pem"}}, wantErr: true},
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
	l, err := listener.New(listener.Config{Addr: "localhost:0"}, log.Get())
	require.NoError(t, err)
	require.NoError(t, l.Close())

	_, err = listener.New(listener.Config{Addr: "localhost:0", TLS: listener.TLSConfig{CertFile: "none.pem", KeyFile: "none.key"}}, log.Get())
	require.Error(t, err)
}
