// Package test contains the behavior every subscription store has to fulfill.
package test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/plgd-dev/device-bridge/device-bridge/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewStoreFunc creates an empty store.
type NewStoreFunc = func(t *testing.T) store.Store

func RunStoreTests(t *testing.T, newStore NewStoreFunc) {
	t.Run("save and load", func(t *testing.T) { testSaveAndLoad(t, newStore(t)) })
	t.Run("upsert", func(t *testing.T) { testUpsert(t, newStore(t)) })
	t.Run("invalid arguments", func(t *testing.T) { testInvalidArguments(t, newStore(t)) })
	t.Run("pop", func(t *testing.T) { testPop(t, newStore(t)) })
	t.Run("count triggering", func(t *testing.T) { testCountTriggering(t, newStore(t)) })
	t.Run("load subscriptions", func(t *testing.T) { testLoadSubscriptions(t, newStore(t)) })
	t.Run("concurrent", func(t *testing.T) { testConcurrent(t, newStore(t)) })
}

func testSaveAndLoad(t *testing.T, s store.Store) {
	ctx := context.Background()
	for _, typ := range store.SubscriptionTypes {
		url := "http://cb/" + string(typ)
		sub, err := s.SaveSubscription(ctx, "d1", typ, url)
		require.NoError(t, err)
		assert.Equal(t, "d1", sub.DeviceID)
		assert.Equal(t, typ, sub.Type)
		assert.Equal(t, url, sub.CallbackURL)
		assert.False(t, sub.CreatedAt.IsZero())

		got, err := s.LoadSubscription(ctx, "d1", typ)
		require.NoError(t, err)
		assert.Equal(t, url, got.CallbackURL)
		assert.Equal(t, store.Status_Running, got.Status())
	}
	_, err := s.LoadSubscription(ctx, "d2", store.SubscriptionType_Command)
	require.True(t, store.IsNotFound(err))
}

func testUpsert(t *testing.T, s store.Store) {
	ctx := context.Background()
	first, err := s.SaveSubscription(ctx, "d1", store.SubscriptionType_Command, "http://cb/a")
	require.NoError(t, err)
	time.Sleep(time.Millisecond * 5)
	second, err := s.SaveSubscription(ctx, "d1", store.SubscriptionType_Command, "http://cb/b")
	require.NoError(t, err)
	assert.Equal(t, "http://cb/b", second.CallbackURL)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))

	subs, err := store.CollectSubscriptions(ctx, s, store.SubscriptionQuery{DeviceID: "d1"})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "http://cb/b", subs[0].CallbackURL)
}

func testInvalidArguments(t *testing.T, s store.Store) {
	ctx := context.Background()
	_, err := s.SaveSubscription(ctx, "d1", store.SubscriptionType_Command, "")
	require.True(t, store.IsInvalidArgument(err))
	_, err = s.SaveSubscription(ctx, "d1", store.SubscriptionType_Command, "not a url")
	require.True(t, store.IsInvalidArgument(err))
	_, err = s.SaveSubscription(ctx, "", store.SubscriptionType_Command, "http://cb/x")
	require.True(t, store.IsInvalidArgument(err))
	_, err = s.SaveSubscription(ctx, "d1", store.SubscriptionType("Telemetry"), "http://cb/x")
	require.True(t, store.IsInvalidArgument(err))

	n, err := s.CountTriggeringSubscriptions(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func testPop(t *testing.T, s store.Store) {
	ctx := context.Background()
	_, err := s.PopSubscription(ctx, "d1", store.SubscriptionType_Command)
	require.True(t, store.IsNotFound(err))

	_, err = s.SaveSubscription(ctx, "d1", store.SubscriptionType_Command, "http://cb/x")
	require.NoError(t, err)
	_, err = s.SaveSubscription(ctx, "d1", store.SubscriptionType_C2DMessage, "http://cb/y")
	require.NoError(t, err)

	sub, err := s.PopSubscription(ctx, "d1", store.SubscriptionType_Command)
	require.NoError(t, err)
	assert.Equal(t, "http://cb/x", sub.CallbackURL)

	_, err = s.PopSubscription(ctx, "d1", store.SubscriptionType_Command)
	require.True(t, store.IsNotFound(err))
	_, err = s.LoadSubscription(ctx, "d1", store.SubscriptionType_Command)
	require.True(t, store.IsNotFound(err))

	// failed pop never mutates the store
	_, err = s.LoadSubscription(ctx, "d1", store.SubscriptionType_C2DMessage)
	require.NoError(t, err)
}

func testCountTriggering(t *testing.T, s store.Store) {
	ctx := context.Background()
	count := func() int {
		n, err := s.CountTriggeringSubscriptions(ctx, "d1")
		require.NoError(t, err)
		return n
	}
	require.Equal(t, 0, count())
	_, err := s.SaveSubscription(ctx, "d1", store.SubscriptionType_DesiredPropertyUpdate, "http://cb/x")
	require.NoError(t, err)
	_, err = s.SaveSubscription(ctx, "d1", store.SubscriptionType_C2DMessage, "http://cb/x")
	require.NoError(t, err)
	require.Equal(t, 0, count())
	_, err = s.SaveSubscription(ctx, "d1", store.SubscriptionType_Command, "http://cb/x")
	require.NoError(t, err)
	require.Equal(t, 1, count())
	_, err = s.SaveSubscription(ctx, "d1", store.SubscriptionType_ConnectionStatus, "http://cb/x")
	require.NoError(t, err)
	require.Equal(t, 2, count())
	_, err = s.SaveSubscription(ctx, "d1", store.SubscriptionType_ConnectionStatus, "http://cb/y")
	require.NoError(t, err)
	require.Equal(t, 2, count())
	_, err = s.PopSubscription(ctx, "d1", store.SubscriptionType_Command)
	require.NoError(t, err)
	require.Equal(t, 1, count())
}

func testLoadSubscriptions(t *testing.T, s store.Store) {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		deviceID := fmt.Sprintf("d%v", i)
		for _, typ := range store.SubscriptionTypes {
			_, err := s.SaveSubscription(ctx, deviceID, typ, "http://cb/"+deviceID)
			require.NoError(t, err)
		}
	}
	tests := []struct {
		name  string
		query store.SubscriptionQuery
		want  int
	}{
		{name: "all", query: store.SubscriptionQuery{}, want: 3 * len(store.SubscriptionTypes)},
		{name: "device", query: store.SubscriptionQuery{DeviceID: "d1"}, want: len(store.SubscriptionTypes)},
		{name: "type", query: store.SubscriptionQuery{Type: store.SubscriptionType_ConnectionStatus}, want: 3},
		{name: "device and type", query: store.SubscriptionQuery{DeviceID: "d2", Type: store.SubscriptionType_Command}, want: 1},
		{name: "unknown device", query: store.SubscriptionQuery{DeviceID: "unknown"}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subs, err := store.CollectSubscriptions(ctx, s, tt.query)
			require.NoError(t, err)
			require.Len(t, subs, tt.want)
			for _, sub := range subs {
				if tt.query.DeviceID != "" {
					assert.Equal(t, tt.query.DeviceID, sub.DeviceID)
				}
				if tt.query.Type != "" {
					assert.Equal(t, tt.query.Type, sub.Type)
				}
			}
		})
	}
}

func testConcurrent(t *testing.T, s store.Store) {
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_, err := s.SaveSubscription(ctx, "d1", store.SubscriptionType_Command, fmt.Sprintf("http://cb/%v/%v", i, j))
				assert.NoError(t, err)
				_, err = s.SaveSubscription(ctx, fmt.Sprintf("dev-%v", i), store.SubscriptionType_ConnectionStatus, "http://cb/x")
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()
	subs, err := store.CollectSubscriptions(ctx, s, store.SubscriptionQuery{DeviceID: "d1"})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	subs, err = store.CollectSubscriptions(ctx, s, store.SubscriptionQuery{Type: store.SubscriptionType_ConnectionStatus})
	require.NoError(t, err)
	require.Len(t, subs, 10)
}
