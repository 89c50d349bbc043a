package registry

import (
	"fmt"
	"net/url"

	"github.com/plgd-dev/device-bridge/pkg/net/http/client"
)

type Config struct {
	// Address is the base url of the registry backend.
	Address string        `yaml:"address" json:"address"`
	APIKey  string        `yaml:"apiKey" json:"-"`
	HTTP    client.Config `yaml:"http" json:"http"`
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.Address)
	if c.Address == "" || err != nil || !u.IsAbs() {
		return fmt.Errorf("address('%v')", c.Address)
	}
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http.%w", err)
	}
	return nil
}
