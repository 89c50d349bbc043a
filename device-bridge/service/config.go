package service

import (
	"fmt"
	"time"

	natsClient "github.com/plgd-dev/device-bridge/device-bridge/eventbus/nats/client"
	"github.com/plgd-dev/device-bridge/device-bridge/registry"
	storeConfig "github.com/plgd-dev/device-bridge/device-bridge/store/config"
	"github.com/plgd-dev/device-bridge/pkg/config"
	"github.com/plgd-dev/device-bridge/pkg/log"
	"github.com/plgd-dev/device-bridge/pkg/net/http/client"
	"github.com/plgd-dev/device-bridge/pkg/net/listener"
	otelClient "github.com/plgd-dev/device-bridge/pkg/opentelemetry/collector/client"
	"github.com/plgd-dev/device-bridge/pkg/sync/task/queue"
)

const DefaultDeliveryTimeout = time.Second * 30

type HTTPConfig struct {
	Connection   listener.Config `yaml:",inline" json:",inline"`
	ReadTimeout  time.Duration   `yaml:"readTimeout" json:"readTimeout"`
	WriteTimeout time.Duration   `yaml:"writeTimeout" json:"writeTimeout"`
	IdleTimeout  time.Duration   `yaml:"idleTimeout" json:"idleTimeout"`
	// APIKey is the pre-shared key required in the x-api-key header.
	APIKey string `yaml:"apiKey" json:"-"`
}

func (c *HTTPConfig) Validate() error {
	if err := c.Connection.Validate(); err != nil {
		return err
	}
	if c.ReadTimeout < 0 {
		return fmt.Errorf("readTimeout('%v')", c.ReadTimeout)
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("writeTimeout('%v')", c.WriteTimeout)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("idleTimeout('%v')", c.IdleTimeout)
	}
	if c.APIKey == "" {
		return fmt.Errorf("apiKey('') - is required")
	}
	return nil
}

type APIsConfig struct {
	HTTP HTTPConfig `yaml:"http" json:"http"`
}

func (c *APIsConfig) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http.%w", err)
	}
	return nil
}

type NATSConfig struct {
	Enabled       bool              `yaml:"enabled" json:"enabled"`
	SubjectPrefix string            `yaml:"subjectPrefix" json:"subjectPrefix"`
	QueueGroup    string            `yaml:"queueGroup" json:"queueGroup"`
	Config        natsClient.Config `yaml:",inline" json:",inline"`
}

func (c *NATSConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.SubjectPrefix == "" {
		return fmt.Errorf("subjectPrefix('%v')", c.SubjectPrefix)
	}
	return c.Config.Validate()
}

type EventBusConfig struct {
	NATS NATSConfig `yaml:"nats" json:"nats"`
}

func (c *EventBusConfig) Validate() error {
	if err := c.NATS.Validate(); err != nil {
		return fmt.Errorf("nats.%w", err)
	}
	return nil
}

type BackoffConfig struct {
	InitialInterval time.Duration `yaml:"initialInterval" json:"initialInterval"`
	MaxInterval     time.Duration `yaml:"maxInterval" json:"maxInterval"`
}

func (c *BackoffConfig) Validate() error {
	if c.InitialInterval < 0 {
		return fmt.Errorf("initialInterval('%v')", c.InitialInterval)
	}
	if c.MaxInterval < 0 || (c.MaxInterval > 0 && c.MaxInterval < c.InitialInterval) {
		return fmt.Errorf("maxInterval('%v')", c.MaxInterval)
	}
	return nil
}

// DeliveryConfig configures posting of events to the callback urls.
type DeliveryConfig struct {
	// Timeout bounds one delivery attempt, zero means DefaultDeliveryTimeout.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// MaxRetries is the number of additional attempts after a failed delivery.
	MaxRetries uint64        `yaml:"maxRetries" json:"maxRetries"`
	Backoff    BackoffConfig `yaml:"backoff" json:"backoff"`
	HTTP       client.Config `yaml:"http" json:"http"`
}

func (c *DeliveryConfig) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("timeout('%v')", c.Timeout)
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultDeliveryTimeout
	}
	if err := c.Backoff.Validate(); err != nil {
		return fmt.Errorf("backoff.%w", err)
	}
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http.%w", err)
	}
	return nil
}

type RegistryConfig struct {
	registry.Config `yaml:",inline" json:",inline"`
	// HealthCheckInterval of the periodic registry probe, zero disables the probe
	// and /health calls the registry on every request.
	HealthCheckInterval time.Duration `yaml:"healthCheckInterval" json:"healthCheckInterval"`
}

func (c *RegistryConfig) Validate() error {
	if c.HealthCheckInterval < 0 {
		return fmt.Errorf("healthCheckInterval('%v')", c.HealthCheckInterval)
	}
	return c.Config.Validate()
}

type ClientsConfig struct {
	Storage                storeConfig.Config `yaml:"storage" json:"storage"`
	EventBus               EventBusConfig     `yaml:"eventBus" json:"eventBus"`
	Registry               RegistryConfig     `yaml:"registry" json:"registry"`
	Delivery               DeliveryConfig     `yaml:"delivery" json:"delivery"`
	OpenTelemetryCollector otelClient.Config  `yaml:"openTelemetryCollector" json:"openTelemetryCollector"`
}

func (c *ClientsConfig) Validate() error {
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage.%w", err)
	}
	if err := c.EventBus.Validate(); err != nil {
		return fmt.Errorf("eventBus.%w", err)
	}
	if err := c.Registry.Validate(); err != nil {
		return fmt.Errorf("registry.%w", err)
	}
	if err := c.Delivery.Validate(); err != nil {
		return fmt.Errorf("delivery.%w", err)
	}
	if err := c.OpenTelemetryCollector.Validate(); err != nil {
		return fmt.Errorf("openTelemetryCollector.%w", err)
	}
	return nil
}

// Config represent application configuration
type Config struct {
	Log       log.Config    `yaml:"log" json:"log"`
	APIs      APIsConfig    `yaml:"apis" json:"apis"`
	Clients   ClientsConfig `yaml:"clients" json:"clients"`
	TaskQueue queue.Config  `yaml:"taskQueue" json:"taskQueue"`
}

func (c *Config) Validate() error {
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log.%w", err)
	}
	if err := c.APIs.Validate(); err != nil {
		return fmt.Errorf("apis.%w", err)
	}
	if err := c.Clients.Validate(); err != nil {
		return fmt.Errorf("clients.%w", err)
	}
	if err := c.TaskQueue.Validate(); err != nil {
		return fmt.Errorf("taskQueue.%w", err)
	}
	return nil
}

// String return string representation of Config
func (c Config) String() string {
	return config.ToString(c)
}
