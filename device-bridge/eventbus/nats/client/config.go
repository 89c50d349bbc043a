package client

import (
	"fmt"
	"time"

	nats "github.com/nats-io/nats.go"
	httpClient "github.com/plgd-dev/device-bridge/pkg/net/http/client"
)

type PendingLimitsConfig struct {
	MsgLimit   int `yaml:"msgLimit" json:"msgLimit"`
	BytesLimit int `yaml:"bytesLimit" json:"bytesLimit"`
}

func (c *PendingLimitsConfig) Validate() error {
	if c.MsgLimit == 0 {
		return fmt.Errorf("msgLimit('%v')", c.MsgLimit)
	}
	if c.BytesLimit == 0 {
		return fmt.Errorf("bytesLimit('%v')", c.BytesLimit)
	}
	return nil
}

type Config struct {
	URL            string              `yaml:"url" json:"url"`
	FlusherTimeout time.Duration       `yaml:"flusherTimeout" json:"flusherTimeout"`
	PendingLimits  PendingLimitsConfig `yaml:"pendingLimits" json:"pendingLimits"`
	// TLS is used when the url scheme is tls.
	TLS     *httpClient.TLSConfig `yaml:"tls,omitempty" json:"tls,omitempty"`
	Options []nats.Option         `yaml:"-" json:"-"`
}

func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("url('%v')", c.URL)
	}
	if c.FlusherTimeout < 0 {
		return fmt.Errorf("flusherTimeout('%v')", c.FlusherTimeout)
	}
	if err := c.PendingLimits.Validate(); err != nil {
		return fmt.Errorf("pendingLimits.%w", err)
	}
	return nil
}

// MakeDefaultConfig returns the limits used by nats.go for subscriptions.
func MakeDefaultConfig() Config {
	return Config{
		URL:            nats.DefaultURL,
		FlusherTimeout: time.Second * 2,
		PendingLimits: PendingLimitsConfig{
			MsgLimit:   nats.DefaultSubPendingMsgsLimit,
			BytesLimit: nats.DefaultSubPendingBytesLimit,
		},
	}
}
