package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/plgd-dev/device-bridge/device-bridge/events"
	"github.com/plgd-dev/device-bridge/device-bridge/registry"
	"github.com/plgd-dev/device-bridge/device-bridge/store"
	"github.com/plgd-dev/device-bridge/pkg/log"
	"github.com/plgd-dev/device-bridge/pkg/sync/task/future"
	"github.com/plgd-dev/device-bridge/pkg/sync/task/queue"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Result string

const (
	Result_Delivered      Result = "Delivered"
	Result_NoSubscriber   Result = "NoSubscriber"
	Result_DeliveryFailed Result = "DeliveryFailed"
)

// Report is the outcome of a dispatch.
type Report struct {
	DeviceID    string
	EventType   events.EventType
	Result      Result
	CallbackURL string
	// StatusCode of the callback response, zero when no response was received.
	StatusCode int
	Err        error
}

// PendingReport resolves when the dispatch is finished.
type PendingReport struct {
	f *future.Future
}

// Get waits for the report or for the context to expire.
func (p *PendingReport) Get(ctx context.Context) (Report, error) {
	v, err := p.f.Get(ctx)
	if err != nil {
		return Report{}, err
	}
	return v.(Report), nil
}

func (p *PendingReport) Done() <-chan struct{} {
	return p.f.Done()
}

// TwinReader reads the desired properties for DesiredPropertyUpdate events without a patch.
type TwinReader interface {
	GetTwin(ctx context.Context, deviceID string) (registry.Twin, error)
}

// Dispatcher delivers events to the subscription of the device. Deliveries of one
// device are processed in the order of dispatch, deliveries of different devices
// run concurrently.
type Dispatcher struct {
	ctx       context.Context
	store     store.Store
	queue     *queue.Queue
	deliverer Deliverer
	twin      TwinReader
	metrics   *Metrics
	logger    log.Logger
}

// NewDispatcher creates a dispatcher. The ctx bounds the lifetime of the deliveries.
func NewDispatcher(ctx context.Context, s store.Store, q *queue.Queue, deliverer Deliverer, twin TwinReader, metrics *Metrics, logger log.Logger) *Dispatcher {
	return &Dispatcher{
		ctx:       ctx,
		store:     s,
		queue:     q,
		deliverer: deliverer,
		twin:      twin,
		metrics:   metrics,
		logger:    logger,
	}
}

// Dispatch hands the event over to the delivery queue without waiting for the delivery.
func (d *Dispatcher) Dispatch(ctx context.Context, ev events.Event) *PendingReport {
	if err := ev.Validate(); err != nil {
		return d.finish(Report{DeviceID: ev.DeviceID, EventType: ev.EventType, Result: Result_DeliveryFailed, Err: err})
	}
	_, err := d.store.LoadSubscription(ctx, ev.DeviceID, ev.EventType.SubscriptionType())
	if err != nil {
		return d.finish(d.lookupFailed(ev, err))
	}
	return d.submit(ev, func() (store.Subscription, error) {
		// resolved again so that nothing is delivered after the subscription was deleted
		return d.store.LoadSubscription(d.ctx, ev.DeviceID, ev.EventType.SubscriptionType())
	})
}

// dispatchTo delivers the event to the given subscription, nil target means no subscriber.
func (d *Dispatcher) dispatchTo(ev events.Event, target *store.Subscription) *PendingReport {
	if target == nil {
		return d.finish(Report{DeviceID: ev.DeviceID, EventType: ev.EventType, Result: Result_NoSubscriber})
	}
	sub := *target
	return d.submit(ev, func() (store.Subscription, error) {
		return sub, nil
	})
}

func (d *Dispatcher) lookupFailed(ev events.Event, err error) Report {
	r := Report{DeviceID: ev.DeviceID, EventType: ev.EventType, Result: Result_NoSubscriber}
	if !store.IsNotFound(err) {
		r.Result = Result_DeliveryFailed
		r.Err = fmt.Errorf("cannot load subscription: %w", err)
	}
	return r
}

func (d *Dispatcher) submit(ev events.Event, resolve func() (store.Subscription, error)) *PendingReport {
	f, set := future.New()
	err := d.queue.SubmitForOneWorker(ev.DeviceID, func() {
		r := d.deliver(ev, resolve)
		d.observe(r)
		set(r, nil)
	})
	if err != nil {
		if errors.Is(err, queue.ErrLimitExceeded) {
			err = status.Errorf(codes.ResourceExhausted, "cannot submit delivery: %v", err)
		} else {
			err = status.Errorf(codes.Unavailable, "cannot submit delivery: %v", err)
		}
		return d.finish(Report{DeviceID: ev.DeviceID, EventType: ev.EventType, Result: Result_DeliveryFailed, Err: err})
	}
	return &PendingReport{f: f}
}

func (d *Dispatcher) deliver(ev events.Event, resolve func() (store.Subscription, error)) Report {
	sub, err := resolve()
	if err != nil {
		return d.lookupFailed(ev, err)
	}
	r := Report{DeviceID: ev.DeviceID, EventType: ev.EventType, CallbackURL: sub.CallbackURL}
	if ev.EventType == events.EventType_DesiredPropertyUpdate && ev.DesiredProperties == nil {
		twin, err := d.twin.GetTwin(d.ctx, ev.DeviceID)
		if err != nil {
			r.Result = Result_DeliveryFailed
			r.Err = fmt.Errorf("cannot get desired properties: %w", err)
			return r
		}
		ev.DesiredProperties = events.DesiredPatch(twin.Properties.Desired)
	}
	err = d.deliverer.Deliver(d.ctx, sub.CallbackURL, events.NewEnvelope(ev))
	if err != nil {
		r.Result = Result_DeliveryFailed
		r.Err = err
		var dErr *events.DeliveryError
		if errors.As(err, &dErr) {
			r.StatusCode = dErr.StatusCode
		}
		return r
	}
	r.Result = Result_Delivered
	return r
}

func (d *Dispatcher) finish(r Report) *PendingReport {
	d.observe(r)
	return &PendingReport{f: future.NewReady(r, nil)}
}

func (d *Dispatcher) observe(r Report) {
	d.metrics.observeDispatch(r.EventType, r.Result)
	logger := d.logger.With(log.DeviceIDKey, r.DeviceID, log.EventTypeKey, r.EventType)
	switch r.Result {
	case Result_NoSubscriber:
		logger.Debugf("event dropped: no subscriber")
	case Result_DeliveryFailed:
		logger.With(log.CallbackURLKey, r.CallbackURL, log.StatusCodeKey, r.StatusCode).Warnf("event delivery failed: %v", r.Err)
	default:
		logger.With(log.CallbackURLKey, r.CallbackURL).Debugf("event delivered")
	}
}
