package client

import (
	"fmt"
	"time"
)

// TLSConfig configures verification of the server certificate.
type TLSConfig struct {
	// CAPool is a path to PEM file with certificate authorities, empty means system pool.
	CAPool string `yaml:"caPool" json:"caPool"`
	// InsecureSkipVerify disables verification of the server certificate.
	InsecureSkipVerify bool `yaml:"insecureSkipVerify" json:"insecureSkipVerify"`
}

// Config of the outgoing HTTP connections, zero values mean no limit.
type Config struct {
	MaxIdleConns        int           `yaml:"maxIdleConns" json:"maxIdleConns"`
	MaxConnsPerHost     int           `yaml:"maxConnsPerHost" json:"maxConnsPerHost"`
	MaxIdleConnsPerHost int           `yaml:"maxIdleConnsPerHost" json:"maxIdleConnsPerHost"`
	IdleConnTimeout     time.Duration `yaml:"idleConnTimeout" json:"idleConnTimeout"`
	// Timeout covers the whole request including reading the response body.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	TLS     TLSConfig     `yaml:"tls" json:"tls"`
}

func (c *Config) Validate() error {
	if c.MaxIdleConns < 0 {
		return fmt.Errorf("maxIdleConns('%v')", c.MaxIdleConns)
	}
	if c.MaxConnsPerHost < 0 {
		return fmt.Errorf("maxConnsPerHost('%v')", c.MaxConnsPerHost)
	}
	if c.MaxIdleConnsPerHost < 0 {
		return fmt.Errorf("maxIdleConnsPerHost('%v')", c.MaxIdleConnsPerHost)
	}
	if c.IdleConnTimeout < 0 {
		return fmt.Errorf("idleConnTimeout('%v')", c.IdleConnTimeout)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout('%v')", c.Timeout)
	}
	return nil
}

// MakeDefaultConfig returns the client configuration used when the file omits it.
func MakeDefaultConfig() Config {
	return Config{
		MaxIdleConns:        16,
		MaxConnsPerHost:     32,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     time.Second * 30,
		Timeout:             time.Second * 10,
	}
}
