package client

import (
	"fmt"

	nats "github.com/nats-io/nats.go"
	"github.com/plgd-dev/device-bridge/pkg/log"
	httpClient "github.com/plgd-dev/device-bridge/pkg/net/http/client"
)

type Client struct {
	conn *nats.Conn
}

func New(config Config, logger log.Logger) (*Client, error) {
	opts := make([]nats.Option, 0, len(config.Options)+5)
	opts = append(opts, config.Options...)
	if config.TLS != nil {
		tlsCfg, err := httpClient.NewTLSConfig(*config.TLS)
		if err != nil {
			return nil, fmt.Errorf("cannot create tls config: %w", err)
		}
		opts = append(opts, nats.Secure(tlsCfg))
	}
	if config.FlusherTimeout > 0 {
		opts = append(opts, nats.FlusherTimeout(config.FlusherTimeout))
	}
	opts = append(opts,
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warnf("nats connection lost: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Infof("nats connection reestablished to %v", c.ConnectedUrl())
		}),
	)

	conn, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("cannot create nats client connection: %w", err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) GetConn() *nats.Conn {
	return c.conn
}

// Close drains the subscriptions before closing the connection.
func (c *Client) Close() {
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
	}
}
