package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/plgd-dev/device-bridge/pkg/log"
	"go.uber.org/atomic"
)

const healthCheckTimeout = time.Second * 5

var errShuttingDown = errors.New("shutting down")

// HealthChecker reports whether the bridge and its dependencies are usable.
type HealthChecker struct {
	registry    Registry
	ready       atomic.Bool
	registryErr atomic.Error
	probing     atomic.Bool
	eventBus    func() bool
	scheduler   gocron.Scheduler
	logger      log.Logger
}

func NewHealthChecker(registry Registry, logger log.Logger) *HealthChecker {
	h := &HealthChecker{
		registry: registry,
		logger:   logger,
	}
	h.ready.Store(true)
	return h
}

// SetEventBus adds the check of the event bus connection.
func (h *HealthChecker) SetEventBus(connected func() bool) {
	h.eventBus = connected
}

func (h *HealthChecker) probe() {
	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()
	err := h.registry.Health(ctx)
	prev := h.registryErr.Swap(err)
	if err != nil && prev == nil {
		h.logger.Warnf("registry is unhealthy: %v", err)
	} else if err == nil && prev != nil {
		h.logger.Infof("registry is healthy again")
	}
}

// StartProbe checks the registry periodically. Without the probe Check calls the registry.
func (h *HealthChecker) StartProbe(interval time.Duration) error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("cannot create scheduler: %w", err)
	}
	_, err = s.NewJob(gocron.DurationJob(interval),
		gocron.NewTask(h.probe),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("cannot create registry health job: %w", err)
	}
	s.Start()
	h.scheduler = s
	h.probing.Store(true)
	return nil
}

// Check returns nil when healthy, otherwise the reason of the degradation.
func (h *HealthChecker) Check(ctx context.Context) error {
	if !h.ready.Load() {
		return errShuttingDown
	}
	if h.eventBus != nil && !h.eventBus() {
		return errors.New("event bus is disconnected")
	}
	var err error
	if h.probing.Load() {
		err = h.registryErr.Load()
	} else {
		ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		defer cancel()
		err = h.registry.Health(ctx)
	}
	if err != nil {
		return fmt.Errorf("registry is unavailable: %w", err)
	}
	return nil
}

// Close stops the probe, Check reports the shutdown afterwards.
func (h *HealthChecker) Close() {
	if !h.ready.CompareAndSwap(true, false) || h.scheduler == nil {
		return
	}
	if err := h.scheduler.Shutdown(); err != nil {
		h.logger.Errorf("failed to shutdown registry health job: %v", err)
	}
}
