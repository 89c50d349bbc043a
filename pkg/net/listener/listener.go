package listener

import (
	"crypto/tls"
	"fmt"
	"net"

	"github.com/plgd-dev/device-bridge/pkg/log"
)

// New creates a tcp listener, wrapped by TLS when certificates are configured.
func New(config Config, logger log.Logger) (net.Listener, error) {
	l, err := net.Listen("tcp", config.Addr)
	if err != nil {
		return nil, fmt.Errorf("cannot listen on %v: %w", config.Addr, err)
	}
	if !config.TLS.Enabled() {
		logger.Infof("listening on %v", l.Addr())
		return l, nil
	}
	cert, err := tls.LoadX509KeyPair(config.TLS.CertFile, config.TLS.KeyFile)
	if err != nil {
		if errC := l.Close(); errC != nil {
			logger.Errorf("cannot close listener: %v", errC)
		}
		return nil, fmt.Errorf("cannot load certificate: %w", err)
	}
	logger.Infof("listening with tls on %v", l.Addr())
	return tls.NewListener(l, &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}), nil
}
