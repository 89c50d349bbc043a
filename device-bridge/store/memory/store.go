// Package memory provides a non-durable subscription store. All subscriptions
// are lost when the process exits.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/plgd-dev/device-bridge/device-bridge/store"
	kitSync "github.com/plgd-dev/kit/v2/sync"
)

type deviceBucket struct {
	mutex sync.Mutex
	subs  map[store.SubscriptionType]store.Subscription
}

// Store keeps subscriptions grouped per device, every device has own lock.
type Store struct {
	devices *kitSync.Map // [deviceID]*deviceBucket
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{
		devices: kitSync.NewMap(),
		now:     time.Now,
	}
}

func (s *Store) bucket(deviceID string) *deviceBucket {
	v, _ := s.devices.LoadOrStore(deviceID, &deviceBucket{
		subs: make(map[store.SubscriptionType]store.Subscription),
	})
	return v.(*deviceBucket)
}

func (s *Store) loadBucket(deviceID string) (*deviceBucket, bool) {
	v, ok := s.devices.Load(deviceID)
	if !ok {
		return nil, false
	}
	return v.(*deviceBucket), true
}

func (s *Store) SaveSubscription(_ context.Context, deviceID string, typ store.SubscriptionType, callbackURL string) (store.Subscription, error) {
	if err := store.ValidateSubscription(deviceID, typ, callbackURL); err != nil {
		return store.Subscription{}, err
	}
	b := s.bucket(deviceID)
	b.mutex.Lock()
	defer b.mutex.Unlock()
	sub, ok := b.subs[typ]
	if !ok {
		sub = store.Subscription{
			DeviceID:  deviceID,
			Type:      typ,
			CreatedAt: s.now().UTC(),
		}
	}
	sub.CallbackURL = callbackURL
	b.subs[typ] = sub
	return sub, nil
}

func (s *Store) LoadSubscription(_ context.Context, deviceID string, typ store.SubscriptionType) (store.Subscription, error) {
	if err := store.ValidateKey(deviceID, typ); err != nil {
		return store.Subscription{}, err
	}
	b, ok := s.loadBucket(deviceID)
	if !ok {
		return store.Subscription{}, store.NewNotFoundError(deviceID, typ)
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()
	sub, ok := b.subs[typ]
	if !ok {
		return store.Subscription{}, store.NewNotFoundError(deviceID, typ)
	}
	return sub, nil
}

func (s *Store) PopSubscription(_ context.Context, deviceID string, typ store.SubscriptionType) (store.Subscription, error) {
	if err := store.ValidateKey(deviceID, typ); err != nil {
		return store.Subscription{}, err
	}
	b, ok := s.loadBucket(deviceID)
	if !ok {
		return store.Subscription{}, store.NewNotFoundError(deviceID, typ)
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()
	sub, ok := b.subs[typ]
	if !ok {
		return store.Subscription{}, store.NewNotFoundError(deviceID, typ)
	}
	delete(b.subs, typ)
	return sub, nil
}

func (s *Store) CountTriggeringSubscriptions(_ context.Context, deviceID string) (int, error) {
	b, ok := s.loadBucket(deviceID)
	if !ok {
		return 0, nil
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()
	var n int
	for typ := range b.subs {
		if typ.IsConnectionTriggering() {
			n++
		}
	}
	return n, nil
}

func (b *deviceBucket) collect(typ store.SubscriptionType) []store.Subscription {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	out := make([]store.Subscription, 0, len(b.subs))
	for t, sub := range b.subs {
		if typ == "" || typ == t {
			out = append(out, sub)
		}
	}
	return out
}

func (s *Store) LoadSubscriptions(ctx context.Context, query store.SubscriptionQuery, h store.SubscriptionHandler) error {
	var subs []store.Subscription
	if query.DeviceID != "" {
		if b, ok := s.loadBucket(query.DeviceID); ok {
			subs = b.collect(query.Type)
		}
	} else {
		s.devices.Range(func(_, value interface{}) bool {
			subs = append(subs, value.(*deviceBucket).collect(query.Type)...)
			return true
		})
	}
	return h.Handle(ctx, store.NewSliceIter(subs))
}

func (s *Store) Durable() bool {
	return false
}

func (s *Store) Close(_ context.Context) error {
	return nil
}
