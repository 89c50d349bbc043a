package mongodb

import (
	"fmt"
	"time"

	"github.com/plgd-dev/device-bridge/pkg/net/http/client"
)

type Config struct {
	URI             string        `yaml:"uri" json:"uri"`
	Database        string        `yaml:"database" json:"database"`
	MaxPoolSize     uint64        `yaml:"maxPoolSize" json:"maxPoolSize"`
	MaxConnIdleTime time.Duration `yaml:"maxConnIdleTime" json:"maxConnIdleTime"`
	// TLS is used when set, otherwise the connection follows the uri options.
	TLS *client.TLSConfig `yaml:"tls,omitempty" json:"tls,omitempty"`
}

func (c *Config) Validate() error {
	if c.URI == "" {
		return fmt.Errorf("uri('%v')", c.URI)
	}
	if c.Database == "" {
		return fmt.Errorf("database('%v')", c.Database)
	}
	if c.MaxConnIdleTime < 0 {
		return fmt.Errorf("maxConnIdleTime('%v')", c.MaxConnIdleTime)
	}
	return nil
}
