package main

import (
	"context"

	"github.com/plgd-dev/device-bridge/device-bridge/service"
	"github.com/plgd-dev/device-bridge/pkg/config"
	"github.com/plgd-dev/device-bridge/pkg/log"
)

func main() {
	var cfg service.Config
	if err := config.LoadAndValidateConfig(&cfg); err != nil {
		log.Fatalf("cannot load config: %v", err)
	}
	log.Setup(cfg.Log)
	logger := log.NewLogger(cfg.Log)
	logger.Infof("config: %v", cfg.String())

	s, err := service.New(context.Background(), cfg, logger)
	if err != nil {
		log.Fatalf("cannot create service: %v", err)
	}
	if err = s.Serve(); err != nil {
		log.Fatalf("serve failed: %v", err)
	}
}
