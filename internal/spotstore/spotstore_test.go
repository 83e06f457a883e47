/*
Copyright 2024 Taqo Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package spotstore

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ffraaz/taqo/model"
)

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = payload
	return nil
}

func (c *memoryCache) Get(_ context.Context, key string, data interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	payload, ok := c.entries[key]
	if !ok {
		return nil
	}
	return json.Unmarshal(payload, data)
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func newTestStore(t *testing.T) (*Store, redis.UniversalClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(client, newMemoryCache()), client
}

func testSpot() *model.Spot {
	return &model.Spot{
		QueueName:   gofakeit.Company(),
		SellerID:    gofakeit.UUID(),
		SellerPrice: int64(gofakeit.Number(4, 40)),
		Progress:    gofakeit.Number(0, 90),
		Location: model.Location{
			Latitude:  gofakeit.Latitude(),
			Longitude: gofakeit.Longitude(),
		},
	}
}

func mustCreate(t *testing.T, store *Store) *model.Spot {
	t.Helper()
	spot := testSpot()
	require.NoError(t, store.CreateSpot(context.Background(), spot, 0.25))
	return spot
}

func TestCreateSpotDerivesBuyerPrice(t *testing.T) {
	store, _ := newTestStore(t)
	spot := testSpot()
	spot.SellerPrice = 20

	require.NoError(t, store.CreateSpot(context.Background(), spot, 0.25))

	loaded, err := store.GetSpot(context.Background(), spot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAvailable, loaded.Status)
	assert.InDelta(t, 25.0, loaded.BuyerPrice, 0.001)
	assert.NotZero(t, loaded.CreatedAt)
}

func TestReserveOnlyWhileAvailable(t *testing.T) {
	store, _ := newTestStore(t)
	spot := mustCreate(t, store)
	ctx := context.Background()

	require.NoError(t, store.Reserve(ctx, spot.ID))

	err := store.Reserve(ctx, spot.ID)
	assert.ErrorIs(t, err, ErrUpdate)

	loaded, err := store.GetSpot(ctx, spot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReserved, loaded.Status)
	assert.NotZero(t, loaded.ReservedAt)
}

func TestFreeRequiresReservation(t *testing.T) {
	store, _ := newTestStore(t)
	spot := mustCreate(t, store)
	ctx := context.Background()

	assert.ErrorIs(t, store.Free(ctx, spot.ID), ErrUpdate)

	require.NoError(t, store.Reserve(ctx, spot.ID))
	require.NoError(t, store.Free(ctx, spot.ID))

	loaded, err := store.GetSpot(ctx, spot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAvailable, loaded.Status)
	assert.Zero(t, loaded.ReservedAt)
}

func TestMarkSold(t *testing.T) {
	store, _ := newTestStore(t)
	spot := mustCreate(t, store)
	ctx := context.Background()

	require.NoError(t, store.Reserve(ctx, spot.ID))
	require.NoError(t, store.MarkSold(ctx, spot.ID))

	assert.ErrorIs(t, store.MarkSold(ctx, spot.ID), ErrUpdate)
}

func TestGetSpotNotFound(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.GetSpot(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMutationsPublishSnapshots(t *testing.T) {
	store, client := newTestStore(t)
	ctx := context.Background()

	spot := testSpot()
	docEvents := make(chan *redis.Message, 8)
	availableEvents := make(chan *redis.Message, 8)

	availableSub := client.Subscribe(ctx, model.AvailableChannel)
	_, err := availableSub.Receive(ctx)
	require.NoError(t, err)
	go func() {
		for msg := range availableSub.Channel() {
			availableEvents <- msg
		}
	}()

	require.NoError(t, store.CreateSpot(ctx, spot, 0.25))

	docSub := client.Subscribe(ctx, model.SpotChannel(spot.ID))
	_, err = docSub.Receive(ctx)
	require.NoError(t, err)
	go func() {
		for msg := range docSub.Channel() {
			docEvents <- msg
		}
	}()

	select {
	case msg := <-availableEvents:
		var spots []model.Spot
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &spots))
		require.Len(t, spots, 1)
		assert.Equal(t, spot.ID, spots[0].ID)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for available-set snapshot")
	}

	require.NoError(t, store.Reserve(ctx, spot.ID))

	select {
	case msg := <-docEvents:
		var reserved model.Spot
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &reserved))
		assert.Equal(t, model.StatusReserved, reserved.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for document snapshot")
	}

	select {
	case msg := <-availableEvents:
		var spots []model.Spot
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &spots))
		assert.Empty(t, spots)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for available-set snapshot after reservation")
	}
}

func TestDeleteSpotPublishesGone(t *testing.T) {
	store, client := newTestStore(t)
	ctx := context.Background()
	spot := mustCreate(t, store)

	sub := client.Subscribe(ctx, model.SpotChannel(spot.ID))
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, store.DeleteSpot(ctx, spot.ID))

	select {
	case msg := <-sub.Channel():
		assert.Equal(t, model.GoneMessage, msg.Payload)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for gone message")
	}

	_, err = store.GetSpot(ctx, spot.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFreeStaleReservations(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	stale := mustCreate(t, store)
	fresh := mustCreate(t, store)
	require.NoError(t, store.Reserve(ctx, stale.ID))
	require.NoError(t, store.Reserve(ctx, fresh.ID))

	_, err := store.UpdateSpotIf(ctx, stale.ID, isReserved, func(spot *model.Spot) {
		spot.ReservedAt = model.Timestamp(10 * time.Minute)
	})
	require.NoError(t, err)

	freed, err := store.FreeStaleReservations(ctx, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, freed)

	loaded, err := store.GetSpot(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAvailable, loaded.Status)

	loaded, err = store.GetSpot(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReserved, loaded.Status)
}

func TestDisableUserRejectedWithOpenSpot(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	spot := mustCreate(t, store)

	assert.ErrorIs(t, store.DisableUser(ctx, spot.SellerID), ErrUpdate)

	require.NoError(t, store.Reserve(ctx, spot.ID))
	require.NoError(t, store.MarkSold(ctx, spot.ID))

	require.NoError(t, store.DisableUser(ctx, spot.SellerID))
	disabled, err := store.IsUserDisabled(ctx, spot.SellerID)
	require.NoError(t, err)
	assert.True(t, disabled)
}

func TestTransactionLifecycle(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	spot := mustCreate(t, store)

	transaction, err := store.CreateTransaction(ctx, spot.ID, "buyer_1", model.ProviderStripe)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionPending, transaction.Status)
	assert.Equal(t, spot.BuyerPrice, transaction.BuyerPrice)
	assert.Equal(t, spot.SellerID, transaction.SellerID)

	_, err = store.UpdateTransaction(ctx, transaction.ID, func(txn *model.Transaction) {
		txn.Status = model.TransactionToRefund
		txn.BookedAt = model.Timestamp(5 * time.Minute)
	})
	require.NoError(t, err)

	due, err := store.TransactionsToRefund(ctx, 2*time.Minute)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, transaction.ID, due[0].ID)

	payouts, err := store.TransactionsToPayout(ctx, 12*time.Hour)
	require.NoError(t, err)
	assert.Empty(t, payouts)
}
