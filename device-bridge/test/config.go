package test

import (
	"time"

	"github.com/plgd-dev/device-bridge/device-bridge/registry"
	"github.com/plgd-dev/device-bridge/device-bridge/service"
	"github.com/plgd-dev/device-bridge/pkg/config/database"
	"github.com/plgd-dev/device-bridge/pkg/log"
	"github.com/plgd-dev/device-bridge/pkg/net/http/client"
	"github.com/plgd-dev/device-bridge/pkg/net/listener"
	"github.com/plgd-dev/device-bridge/pkg/sync/task/queue"
)

const (
	API_KEY      = "test-api-key"
	TEST_TIMEOUT = time.Second * 10
)

func MakeDeliveryConfig() service.DeliveryConfig {
	return service.DeliveryConfig{
		Timeout: time.Second * 2,
		Backoff: service.BackoffConfig{
			InitialInterval: time.Millisecond * 10,
			MaxInterval:     time.Millisecond * 50,
		},
		HTTP: client.MakeDefaultConfig(),
	}
}

func MakeTaskQueueConfig() queue.Config {
	return queue.Config{
		GoPoolSize:  16,
		Size:        1024,
		MaxIdleTime: time.Minute,
	}
}

// MakeConfig returns a configuration with the in-memory store and the event bus disabled.
func MakeConfig(registryAddress string) service.Config {
	var cfg service.Config
	cfg.Log = log.MakeDefaultConfig()
	cfg.APIs.HTTP = service.HTTPConfig{
		Connection: listener.Config{
			Addr: "localhost:0",
		},
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 30,
		APIKey:       API_KEY,
	}
	cfg.Clients.Storage.Use = database.Memory
	cfg.Clients.Registry.Config = registry.Config{
		Address: registryAddress,
		APIKey:  "registry-key",
		HTTP:    client.MakeDefaultConfig(),
	}
	cfg.Clients.Delivery = MakeDeliveryConfig()
	cfg.TaskQueue = MakeTaskQueueConfig()
	return cfg
}
