package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/plgd-dev/device-bridge/device-bridge/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	idKey          = "_id"
	deviceIDKey    = "deviceid"
	typeKey        = "type"
	callbackURLKey = "callbackurl"
	createdAtKey   = "createdat"
)

type dbSub struct {
	ID          string    `bson:"_id"`
	DeviceID    string    `bson:"deviceid"`
	Type        string    `bson:"type"`
	CallbackURL string    `bson:"callbackurl"`
	CreatedAt   time.Time `bson:"createdat"`
}

func convertToSubscription(sub dbSub) store.Subscription {
	return store.Subscription{
		DeviceID:    sub.DeviceID,
		Type:        store.SubscriptionType(sub.Type),
		CallbackURL: sub.CallbackURL,
		CreatedAt:   sub.CreatedAt.UTC(),
	}
}

func (s *Store) SaveSubscription(ctx context.Context, deviceID string, typ store.SubscriptionType, callbackURL string) (store.Subscription, error) {
	if err := store.ValidateSubscription(deviceID, typ, callbackURL); err != nil {
		return store.Subscription{}, err
	}
	col := s.Collection(subscriptionsCName)
	update := bson.M{
		"$set": bson.M{
			callbackURLKey: callbackURL,
		},
		"$setOnInsert": bson.M{
			deviceIDKey:  deviceID,
			typeKey:      string(typ),
			createdAtKey: time.Now().UTC().Truncate(time.Millisecond),
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	res := col.FindOneAndUpdate(ctx, bson.M{idKey: store.MakeKey(deviceID, typ)}, update, opts)
	var sub dbSub
	if err := res.Decode(&sub); err != nil {
		return store.Subscription{}, fmt.Errorf("cannot save subscription %v: %w", store.MakeKey(deviceID, typ), err)
	}
	return convertToSubscription(sub), nil
}

func (s *Store) LoadSubscription(ctx context.Context, deviceID string, typ store.SubscriptionType) (store.Subscription, error) {
	if err := store.ValidateKey(deviceID, typ); err != nil {
		return store.Subscription{}, err
	}
	res := s.Collection(subscriptionsCName).FindOne(ctx, bson.M{idKey: store.MakeKey(deviceID, typ)})
	var sub dbSub
	if err := res.Decode(&sub); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return store.Subscription{}, store.NewNotFoundError(deviceID, typ)
		}
		return store.Subscription{}, fmt.Errorf("cannot load subscription %v: %w", store.MakeKey(deviceID, typ), err)
	}
	return convertToSubscription(sub), nil
}

func (s *Store) PopSubscription(ctx context.Context, deviceID string, typ store.SubscriptionType) (store.Subscription, error) {
	if err := store.ValidateKey(deviceID, typ); err != nil {
		return store.Subscription{}, err
	}
	res := s.Collection(subscriptionsCName).FindOneAndDelete(ctx, bson.M{idKey: store.MakeKey(deviceID, typ)})
	var sub dbSub
	if err := res.Decode(&sub); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return store.Subscription{}, store.NewNotFoundError(deviceID, typ)
		}
		return store.Subscription{}, fmt.Errorf("cannot remove subscription %v: %w", store.MakeKey(deviceID, typ), err)
	}
	return convertToSubscription(sub), nil
}

func triggeringTypes() bson.A {
	types := store.ConnectionTriggeringTypes()
	out := make(bson.A, 0, len(types))
	for _, t := range types {
		out = append(out, string(t))
	}
	return out
}

func (s *Store) CountTriggeringSubscriptions(ctx context.Context, deviceID string) (int, error) {
	filter := bson.M{
		deviceIDKey: deviceID,
		typeKey:     bson.M{"$in": triggeringTypes()},
	}
	n, err := s.Collection(subscriptionsCName).CountDocuments(ctx, filter, options.Count().SetHint(deviceIDTypeQueryIndex))
	if err != nil {
		return 0, fmt.Errorf("cannot count subscriptions of device %v: %w", deviceID, err)
	}
	return int(n), nil
}

func toFilter(query store.SubscriptionQuery) (bson.M, *options.FindOptions) {
	filter := bson.M{}
	opts := options.Find()
	switch {
	case query.DeviceID != "" && query.Type != "":
		filter[idKey] = store.MakeKey(query.DeviceID, query.Type)
	case query.DeviceID != "":
		filter[deviceIDKey] = query.DeviceID
		opts.SetHint(deviceIDTypeQueryIndex)
	case query.Type != "":
		filter[typeKey] = string(query.Type)
		opts.SetHint(typeQueryIndex)
	}
	return filter, opts
}

func (s *Store) LoadSubscriptions(ctx context.Context, query store.SubscriptionQuery, h store.SubscriptionHandler) error {
	filter, opts := toFilter(query)
	iter, err := s.Collection(subscriptionsCName).Find(ctx, filter, opts)
	if errors.Is(err, mongo.ErrNilDocument) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot load subscriptions: %w", err)
	}
	i := subscriptionIterator{
		iter: iter,
	}
	err = h.Handle(ctx, &i)

	errClose := iter.Close(ctx)
	if err == nil {
		return errClose
	}
	return err
}

type subscriptionIterator struct {
	iter *mongo.Cursor
	err  error
}

func (i *subscriptionIterator) Next(ctx context.Context, s *store.Subscription) bool {
	var sub dbSub
	if !i.iter.Next(ctx) {
		return false
	}
	if err := i.iter.Decode(&sub); err != nil {
		i.err = err
		return false
	}
	*s = convertToSubscription(sub)
	return true
}

func (i *subscriptionIterator) Err() error {
	if i.err != nil {
		return i.err
	}
	return i.iter.Err()
}
