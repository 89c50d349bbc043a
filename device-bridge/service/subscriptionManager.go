package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/plgd-dev/device-bridge/device-bridge/events"
	"github.com/plgd-dev/device-bridge/device-bridge/store"
	"github.com/plgd-dev/device-bridge/pkg/log"
	kitSync "github.com/plgd-dev/kit/v2/sync"
	"golang.org/x/sync/singleflight"
)

const (
	ReasonSubscriptionCreated = "subscription created"
	ReasonSubscriptionDeleted = "subscription deleted"
	ReasonRestored            = "restored"
)

type deviceState struct {
	mutex  sync.Mutex
	cached bool
	// status is the last status announced to the subscribers
	status events.ConnectionStatus
	// reason of the last transition
	reason string
	// pending holds the reason of a mutation whose transition was not evaluated yet
	pending string
}

// SubscriptionManager mutates subscriptions and tracks the connection status of
// devices. A device is Connected while it has a connection triggering subscription.
// Mutations of one device are serialized and the transition events are handed to
// the dispatcher in the order of the mutations.
type SubscriptionManager struct {
	store      store.Store
	dispatcher *Dispatcher
	devices    *kitSync.Map
	recounts   singleflight.Group
	metrics    *Metrics
	logger     log.Logger
}

func NewSubscriptionManager(s store.Store, dispatcher *Dispatcher, metrics *Metrics, logger log.Logger) *SubscriptionManager {
	return &SubscriptionManager{
		store:      s,
		dispatcher: dispatcher,
		devices:    kitSync.NewMap(),
		metrics:    metrics,
		logger:     logger,
	}
}

func statusFromCount(count int) events.ConnectionStatus {
	if count > 0 {
		return events.ConnectionStatus_Connected
	}
	return events.ConnectionStatus_Disabled
}

func (m *SubscriptionManager) device(deviceID string) *deviceState {
	v, _ := m.devices.LoadOrStore(deviceID, &deviceState{})
	return v.(*deviceState)
}

// recount derives the status from the store, concurrent recounts of a device are merged.
func (m *SubscriptionManager) recount(ctx context.Context, deviceID string) (events.ConnectionStatus, error) {
	v, err, _ := m.recounts.Do(deviceID, func() (interface{}, error) {
		count, err := m.store.CountTriggeringSubscriptions(ctx, deviceID)
		if err != nil {
			return nil, fmt.Errorf("cannot count subscriptions of device %v: %w", deviceID, err)
		}
		return statusFromCount(count), nil
	})
	if err != nil {
		return "", err
	}
	return v.(events.ConnectionStatus), nil
}

// statusLocked returns the status of the device and emits the transition of a mutation
// which could not be evaluated before.
func (m *SubscriptionManager) statusLocked(ctx context.Context, deviceID string, st *deviceState) (events.ConnectionStatus, error) {
	if st.cached && st.pending == "" {
		return st.status, nil
	}
	count, err := m.store.CountTriggeringSubscriptions(ctx, deviceID)
	if err != nil {
		return "", fmt.Errorf("cannot count subscriptions of device %v: %w", deviceID, err)
	}
	next := statusFromCount(count)
	if st.pending != "" {
		reason := st.pending
		st.pending = ""
		m.transitionLocked(deviceID, st, next, m.loadConnectionStatusSubscription(ctx, deviceID), reason)
	}
	st.status, st.cached = next, true
	return st.status, nil
}

// ConnectionStatus returns the derived connection status of the device.
func (m *SubscriptionManager) ConnectionStatus(ctx context.Context, deviceID string) (events.ConnectionStatus, error) {
	s, _, err := m.ConnectionStatusWithReason(ctx, deviceID)
	return s, err
}

// ConnectionStatusWithReason returns the derived connection status of the device and
// the reason of its last transition, the reason is empty when no transition happened.
func (m *SubscriptionManager) ConnectionStatusWithReason(ctx context.Context, deviceID string) (events.ConnectionStatus, string, error) {
	if v, ok := m.devices.Load(deviceID); ok {
		st := v.(*deviceState)
		st.mutex.Lock()
		defer st.mutex.Unlock()
		s, err := m.statusLocked(ctx, deviceID, st)
		if err != nil {
			return "", "", err
		}
		return s, st.reason, nil
	}
	s, err := m.recount(ctx, deviceID)
	return s, "", err
}

// LoadSubscription returns the subscription of the device.
func (m *SubscriptionManager) LoadSubscription(ctx context.Context, deviceID string, typ store.SubscriptionType) (store.Subscription, error) {
	return m.store.LoadSubscription(ctx, deviceID, typ)
}

// applyLocked updates the cached status after a mutation and emits the transition.
// The target of the transition event is the ConnectionStatus subscription as of the mutation.
// When the recount fails the announced status is kept and the transition is evaluated by
// the next access to the device.
func (m *SubscriptionManager) applyLocked(ctx context.Context, deviceID string, st *deviceState, target *store.Subscription, reason string) {
	count, err := m.store.CountTriggeringSubscriptions(ctx, deviceID)
	if err != nil {
		st.pending = reason
		m.logger.With(log.DeviceIDKey, deviceID).Errorf("cannot recount connection triggering subscriptions after %v, connection status %v is pending: %v", reason, st.status, err)
		return
	}
	m.transitionLocked(deviceID, st, statusFromCount(count), target, reason)
}

func (m *SubscriptionManager) transitionLocked(deviceID string, st *deviceState, next events.ConnectionStatus, target *store.Subscription, reason string) {
	prev := st.status
	st.status, st.cached = next, true
	if next == prev {
		return
	}
	st.reason = reason
	m.logger.With(log.DeviceIDKey, deviceID).Infof("connection status changed from %v to %v: %v", prev, next, reason)
	m.dispatcher.dispatchTo(events.NewConnectionStatusChange(deviceID, next, reason), target)
}

func (m *SubscriptionManager) loadConnectionStatusSubscription(ctx context.Context, deviceID string) *store.Subscription {
	sub, err := m.store.LoadSubscription(ctx, deviceID, store.SubscriptionType_ConnectionStatus)
	if err != nil {
		if !store.IsNotFound(err) {
			m.logger.With(log.DeviceIDKey, deviceID).Errorf("cannot load connection status subscription: %v", err)
		}
		return nil
	}
	return &sub
}

// CreateSubscription creates or overwrites the subscription.
func (m *SubscriptionManager) CreateSubscription(ctx context.Context, deviceID string, typ store.SubscriptionType, callbackURL string) (store.Subscription, error) {
	if err := store.ValidateSubscription(deviceID, typ, callbackURL); err != nil {
		return store.Subscription{}, err
	}
	st := m.device(deviceID)
	st.mutex.Lock()
	defer st.mutex.Unlock()
	if _, err := m.statusLocked(ctx, deviceID, st); err != nil {
		return store.Subscription{}, err
	}
	sub, err := m.store.SaveSubscription(ctx, deviceID, typ, callbackURL)
	if err != nil {
		return store.Subscription{}, err
	}
	m.metrics.observeMutation(typ, mutationCreate)
	m.logger.With(log.DeviceIDKey, deviceID, log.SubscriptionTypeKey, typ, log.CallbackURLKey, callbackURL).Debugf("subscription saved")
	if !typ.IsConnectionTriggering() {
		return sub, nil
	}
	var target *store.Subscription
	if typ == store.SubscriptionType_ConnectionStatus {
		target = &sub
	} else {
		target = m.loadConnectionStatusSubscription(ctx, deviceID)
	}
	m.applyLocked(ctx, deviceID, st, target, ReasonSubscriptionCreated)
	return sub, nil
}

// DeleteSubscription removes the subscription, a missing subscription is reported as NotFound.
func (m *SubscriptionManager) DeleteSubscription(ctx context.Context, deviceID string, typ store.SubscriptionType) (store.Subscription, error) {
	if err := store.ValidateKey(deviceID, typ); err != nil {
		return store.Subscription{}, err
	}
	st := m.device(deviceID)
	st.mutex.Lock()
	defer st.mutex.Unlock()
	if _, err := m.statusLocked(ctx, deviceID, st); err != nil {
		return store.Subscription{}, err
	}
	sub, err := m.store.PopSubscription(ctx, deviceID, typ)
	if err != nil {
		return store.Subscription{}, err
	}
	m.metrics.observeMutation(typ, mutationDelete)
	m.logger.With(log.DeviceIDKey, deviceID, log.SubscriptionTypeKey, typ).Debugf("subscription removed")
	if !typ.IsConnectionTriggering() {
		return sub, nil
	}
	var target *store.Subscription
	if typ == store.SubscriptionType_ConnectionStatus {
		target = &sub
	} else {
		target = m.loadConnectionStatusSubscription(ctx, deviceID)
	}
	m.applyLocked(ctx, deviceID, st, target, ReasonSubscriptionDeleted)
	return sub, nil
}

type subscriptionLoader struct {
	devices map[string][]store.Subscription
}

func (l *subscriptionLoader) Handle(ctx context.Context, iter store.SubscriptionIter) error {
	for {
		var s store.Subscription
		if !iter.Next(ctx, &s) {
			break
		}
		l.devices[s.DeviceID] = append(l.devices[s.DeviceID], s)
	}
	return iter.Err()
}

// LoadSubscriptions recomputes the connection status of the devices stored in a durable
// store and notifies the ConnectionStatus subscribers of the connected devices.
func (m *SubscriptionManager) LoadSubscriptions(ctx context.Context) ([]*PendingReport, error) {
	if !m.store.Durable() {
		return nil, nil
	}
	h := subscriptionLoader{
		devices: make(map[string][]store.Subscription),
	}
	if err := m.store.LoadSubscriptions(ctx, store.SubscriptionQuery{}, &h); err != nil {
		return nil, fmt.Errorf("cannot load subscriptions: %w", err)
	}
	reports := make([]*PendingReport, 0, len(h.devices))
	for deviceID, subs := range h.devices {
		var target *store.Subscription
		count := 0
		for i := range subs {
			if subs[i].Type.IsConnectionTriggering() {
				count++
			}
			if subs[i].Type == store.SubscriptionType_ConnectionStatus {
				target = &subs[i]
			}
		}
		st := m.device(deviceID)
		st.mutex.Lock()
		st.status, st.cached, st.pending = statusFromCount(count), true, ""
		if st.status == events.ConnectionStatus_Connected {
			st.reason = ReasonRestored
		}
		if st.status == events.ConnectionStatus_Connected && target != nil {
			reports = append(reports, m.dispatcher.dispatchTo(events.NewConnectionStatusChange(deviceID, st.status, ReasonRestored), target))
		}
		st.mutex.Unlock()
	}
	m.logger.Infof("restored %v devices with subscriptions", len(h.devices))
	return reports, nil
}
