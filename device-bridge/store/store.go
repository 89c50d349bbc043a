package store

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// NewNotFoundError reports a missing subscription.
func NewNotFoundError(deviceID string, typ SubscriptionType) error {
	return status.Errorf(codes.NotFound, "subscription %v not found", MakeKey(deviceID, typ))
}

func hasCode(err error, code codes.Code) bool {
	var gErr interface{ GRPCStatus() *status.Status }
	if !errors.As(err, &gErr) {
		return false
	}
	return gErr.GRPCStatus().Code() == code
}

func IsNotFound(err error) bool {
	return hasCode(err, codes.NotFound)
}

func IsInvalidArgument(err error) bool {
	return hasCode(err, codes.InvalidArgument)
}

type SubscriptionQuery struct {
	DeviceID string
	Type     SubscriptionType
}

type SubscriptionIter interface {
	Next(ctx context.Context, sub *Subscription) bool
	Err() error
}

type SubscriptionHandler interface {
	Handle(ctx context.Context, iter SubscriptionIter) (err error)
}

type SubscriptionHandlerFunc func(ctx context.Context, iter SubscriptionIter) error

func (f SubscriptionHandlerFunc) Handle(ctx context.Context, iter SubscriptionIter) error {
	return f(ctx, iter)
}

// Store is a registry of subscriptions keyed by device id and subscription type.
// Operations on the same key are atomic.
type Store interface {
	// SaveSubscription creates or overwrites the callback url of the subscription.
	// CreatedAt of an existing subscription is preserved.
	SaveSubscription(ctx context.Context, deviceID string, typ SubscriptionType, callbackURL string) (Subscription, error)
	LoadSubscription(ctx context.Context, deviceID string, typ SubscriptionType) (Subscription, error)
	// PopSubscription removes the subscription and returns the removed record.
	PopSubscription(ctx context.Context, deviceID string, typ SubscriptionType) (Subscription, error)
	CountTriggeringSubscriptions(ctx context.Context, deviceID string) (int, error)
	LoadSubscriptions(ctx context.Context, query SubscriptionQuery, h SubscriptionHandler) error
	// Durable reports whether the subscriptions outlive the process.
	Durable() bool
	Close(ctx context.Context) error
}

// SliceIter iterates over subscriptions held in memory.
type SliceIter struct {
	subs []Subscription
	idx  int
}

func NewSliceIter(subs []Subscription) *SliceIter {
	return &SliceIter{subs: subs}
}

func (i *SliceIter) Next(_ context.Context, sub *Subscription) bool {
	if i.idx >= len(i.subs) {
		return false
	}
	*sub = i.subs[i.idx]
	i.idx++
	return true
}

func (i *SliceIter) Err() error {
	return nil
}

// CollectSubscriptions reads all subscriptions matching the query.
func CollectSubscriptions(ctx context.Context, s Store, query SubscriptionQuery) ([]Subscription, error) {
	var out []Subscription
	err := s.LoadSubscriptions(ctx, query, SubscriptionHandlerFunc(func(ctx context.Context, iter SubscriptionIter) error {
		for {
			var sub Subscription
			if !iter.Next(ctx, &sub) {
				break
			}
			out = append(out, sub)
		}
		return iter.Err()
	}))
	return out, err
}
