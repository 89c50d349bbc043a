package cqldb

import (
	"fmt"
	"time"

	"github.com/plgd-dev/device-bridge/pkg/net/http/client"
)

type KeyspaceConfig struct {
	Name        string                 `yaml:"name" json:"name"`
	Create      bool                   `yaml:"create" json:"create"`
	Replication map[string]interface{} `yaml:"replication" json:"replication"`
}

func (c *KeyspaceConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name('%v')", c.Name)
	}
	if c.Create && len(c.Replication) == 0 {
		return fmt.Errorf("replication('%v')", c.Replication)
	}
	return nil
}

type Config struct {
	Hosts          []string          `yaml:"hosts" json:"hosts"`
	Port           int               `yaml:"port" json:"port"`
	NumConns       int               `yaml:"numConnections" json:"numConnections"`
	ConnectTimeout time.Duration     `yaml:"connectTimeout" json:"connectTimeout"`
	Keyspace       KeyspaceConfig    `yaml:"keyspace" json:"keyspace"`
	TLS            *client.TLSConfig `yaml:"tls,omitempty" json:"tls,omitempty"`
}

func (c *Config) Validate() error {
	if len(c.Hosts) == 0 {
		return fmt.Errorf("hosts('%v')", c.Hosts)
	}
	if c.Port < 0 {
		return fmt.Errorf("port('%v')", c.Port)
	}
	if c.NumConns <= 0 {
		return fmt.Errorf("numConnections('%v')", c.NumConns)
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connectTimeout('%v')", c.ConnectTimeout)
	}
	if err := c.Keyspace.Validate(); err != nil {
		return fmt.Errorf("keyspace.%w", err)
	}
	return nil
}
