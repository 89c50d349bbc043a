package cqldb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"github.com/plgd-dev/device-bridge/device-bridge/store"
	pkgCqldb "github.com/plgd-dev/device-bridge/pkg/cqldb"
	"github.com/plgd-dev/device-bridge/pkg/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	deviceIDColumn    = "deviceid"
	typeColumn        = "type"
	callbackURLColumn = "callbackurl"
	createdAtColumn   = "createdat"

	selectColumns = deviceIDColumn + "," + typeColumn + "," + callbackURLColumn + "," + createdAtColumn
)

// Store implements a durable store.Store for Cassandra compatible databases.
type Store struct {
	*pkgCqldb.Store
}

// Config of the table within the keyspace of the client.
type Config struct {
	pkgCqldb.Config `yaml:",inline"`
	Table           string `yaml:"table" json:"table"`
}

func (c *Config) Validate() error {
	if c.Table == "" {
		return fmt.Errorf("table('%v')", c.Table)
	}
	return c.Config.Validate()
}

func New(ctx context.Context, cfg Config, logger log.Logger) (*Store, error) {
	client, err := pkgCqldb.New(ctx, cfg.Config, logger)
	if err != nil {
		return nil, err
	}
	s := &Store{Store: pkgCqldb.NewStore(cfg.Table, client, logger)}
	err = s.CreateTable(ctx, deviceIDColumn+" text,"+typeColumn+" text,"+callbackURLColumn+" text,"+createdAtColumn+" timestamp,primary key (("+deviceIDColumn+"),"+typeColumn+")")
	if err != nil {
		client.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Durable() bool {
	return true
}

// saveAttempts bounds the retries of a save racing with concurrent writers of the key.
const saveAttempts = 5

// subscriptionWriter holds the conditional writes of a subscription row.
type subscriptionWriter interface {
	LoadSubscription(ctx context.Context, deviceID string, typ store.SubscriptionType) (store.Subscription, error)
	// insertSubscription inserts the row when it doesn't exist.
	insertSubscription(ctx context.Context, sub store.Subscription) (bool, error)
	// updateCallbackURL updates the row when it still has the createdAt of sub.
	updateCallbackURL(ctx context.Context, sub store.Subscription) (bool, error)
}

// saveSubscription upserts the subscription with lightweight transactions only, so that
// a concurrent delete cannot leave a row without createdAt.
func saveSubscription(ctx context.Context, w subscriptionWriter, deviceID string, typ store.SubscriptionType, callbackURL string) (store.Subscription, error) {
	for i := 0; i < saveAttempts; i++ {
		existing, err := w.LoadSubscription(ctx, deviceID, typ)
		if err != nil && !store.IsNotFound(err) {
			return store.Subscription{}, err
		}
		var applied bool
		if err == nil {
			existing.CallbackURL = callbackURL
			applied, err = w.updateCallbackURL(ctx, existing)
			if applied {
				return existing, nil
			}
		} else {
			sub := store.Subscription{
				DeviceID:    deviceID,
				Type:        typ,
				CallbackURL: callbackURL,
				CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
			}
			applied, err = w.insertSubscription(ctx, sub)
			if applied {
				return sub, nil
			}
		}
		if err != nil {
			return store.Subscription{}, fmt.Errorf("cannot save subscription %v: %w", store.MakeKey(deviceID, typ), err)
		}
	}
	return store.Subscription{}, status.Errorf(codes.Aborted, "cannot save subscription %v: concurrently modified", store.MakeKey(deviceID, typ))
}

func (s *Store) insertSubscription(ctx context.Context, sub store.Subscription) (bool, error) {
	q := "insert into " + s.Table() + " (" + selectColumns + ") values (?,?,?,?) if not exists;"
	return s.Session().Query(q, sub.DeviceID, string(sub.Type), sub.CallbackURL, sub.CreatedAt).WithContext(ctx).MapScanCAS(make(map[string]interface{}))
}

func (s *Store) updateCallbackURL(ctx context.Context, sub store.Subscription) (bool, error) {
	q := "update " + s.Table() + " set " + callbackURLColumn + "=? where " + deviceIDColumn + "=? and " + typeColumn + "=? if " + createdAtColumn + "=?;"
	return s.Session().Query(q, sub.CallbackURL, sub.DeviceID, string(sub.Type), sub.CreatedAt).WithContext(ctx).MapScanCAS(make(map[string]interface{}))
}

func (s *Store) SaveSubscription(ctx context.Context, deviceID string, typ store.SubscriptionType, callbackURL string) (store.Subscription, error) {
	if err := store.ValidateSubscription(deviceID, typ, callbackURL); err != nil {
		return store.Subscription{}, err
	}
	return saveSubscription(ctx, s, deviceID, typ, callbackURL)
}

func (s *Store) LoadSubscription(ctx context.Context, deviceID string, typ store.SubscriptionType) (store.Subscription, error) {
	if err := store.ValidateKey(deviceID, typ); err != nil {
		return store.Subscription{}, err
	}
	q := "select " + selectColumns + " from " + s.Table() + " where " + deviceIDColumn + "=? and " + typeColumn + "=?;"
	var sub store.Subscription
	var t string
	err := s.Session().Query(q, deviceID, string(typ)).WithContext(ctx).Scan(&sub.DeviceID, &t, &sub.CallbackURL, &sub.CreatedAt)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return store.Subscription{}, store.NewNotFoundError(deviceID, typ)
		}
		return store.Subscription{}, fmt.Errorf("cannot load subscription %v: %w", store.MakeKey(deviceID, typ), err)
	}
	sub.Type = store.SubscriptionType(t)
	sub.CreatedAt = sub.CreatedAt.UTC()
	return sub, nil
}

func (s *Store) PopSubscription(ctx context.Context, deviceID string, typ store.SubscriptionType) (store.Subscription, error) {
	sub, err := s.LoadSubscription(ctx, deviceID, typ)
	if err != nil {
		return store.Subscription{}, err
	}
	q := "delete from " + s.Table() + " where " + deviceIDColumn + "=? and " + typeColumn + "=? if exists;"
	applied, err := s.Session().Query(q, deviceID, string(typ)).WithContext(ctx).MapScanCAS(make(map[string]interface{}))
	if err != nil {
		return store.Subscription{}, fmt.Errorf("cannot remove subscription %v: %w", sub.Key(), err)
	}
	if !applied {
		return store.Subscription{}, store.NewNotFoundError(deviceID, typ)
	}
	return sub, nil
}

func triggeringTypes() []string {
	types := store.ConnectionTriggeringTypes()
	out := make([]string, 0, len(types))
	for _, t := range types {
		out = append(out, string(t))
	}
	return out
}

func (s *Store) CountTriggeringSubscriptions(ctx context.Context, deviceID string) (int, error) {
	q := "select count(*) from " + s.Table() + " where " + deviceIDColumn + "=? and " + typeColumn + " in ?;"
	var n int64
	if err := s.Session().Query(q, deviceID, triggeringTypes()).WithContext(ctx).Scan(&n); err != nil {
		return 0, fmt.Errorf("cannot count subscriptions of device %v: %w", deviceID, err)
	}
	return int(n), nil
}

func toSelect(table string, query store.SubscriptionQuery) (string, []interface{}) {
	var where []string
	var values []interface{}
	if query.DeviceID != "" {
		where = append(where, deviceIDColumn+"=?")
		values = append(values, query.DeviceID)
	}
	if query.Type != "" {
		where = append(where, typeColumn+"=?")
		values = append(values, string(query.Type))
	}
	q := "select " + selectColumns + " from " + table
	if len(where) > 0 {
		q += " where " + strings.Join(where, " and ")
	}
	if query.DeviceID == "" && query.Type != "" {
		q += " allow filtering"
	}
	return q + ";", values
}

func (s *Store) LoadSubscriptions(ctx context.Context, query store.SubscriptionQuery, h store.SubscriptionHandler) error {
	q, values := toSelect(s.Table(), query)
	iter := s.Session().Query(q, values...).WithContext(ctx).Iter()
	err := h.Handle(ctx, &subscriptionIterator{scanner: iter.Scanner()})
	errClose := iter.Close()
	if err == nil {
		return errClose
	}
	return err
}

type subscriptionIterator struct {
	scanner gocql.Scanner
	err     error
}

func (i *subscriptionIterator) Next(_ context.Context, s *store.Subscription) bool {
	if !i.scanner.Next() {
		return false
	}
	var t string
	var sub store.Subscription
	if err := i.scanner.Scan(&sub.DeviceID, &t, &sub.CallbackURL, &sub.CreatedAt); err != nil {
		i.err = err
		return false
	}
	sub.Type = store.SubscriptionType(t)
	sub.CreatedAt = sub.CreatedAt.UTC()
	*s = sub
	return true
}

func (i *subscriptionIterator) Err() error {
	if i.err != nil {
		return i.err
	}
	return i.scanner.Err()
}
