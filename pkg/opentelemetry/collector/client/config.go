package client

import (
	"fmt"

	httpClient "github.com/plgd-dev/device-bridge/pkg/net/http/client"
)

type GRPCConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Address of the otlp grpc receiver of the collector.
	Address string `yaml:"address" json:"address"`
	// TLS is nil for a plaintext connection.
	TLS *httpClient.TLSConfig `yaml:"tls,omitempty" json:"tls,omitempty"`
}

func (c *GRPCConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Address == "" {
		return fmt.Errorf("address('%v')", c.Address)
	}
	return nil
}

type Config struct {
	GRPC GRPCConfig `yaml:"grpc" json:"grpc"`
}

func (c *Config) Validate() error {
	if err := c.GRPC.Validate(); err != nil {
		return fmt.Errorf("grpc.%w", err)
	}
	return nil
}
