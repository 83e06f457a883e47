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
package jobs

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ffraaz/taqo/config"
	"github.com/ffraaz/taqo/internal/providers"
	"github.com/ffraaz/taqo/internal/spotstore"
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

type harness struct {
	worker *Worker
	store  *spotstore.Store
	stripe *providers.FakeStripe
	paypal *providers.FakePayPal
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	config.MockConfig(&config.Configuration{})

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := spotstore.New(client, newMemoryCache())
	stripe := providers.NewFakeStripe()
	paypal := providers.NewFakePayPal()

	return &harness{
		worker: NewWorker(store, stripe, paypal, 5*time.Minute),
		store:  store,
		stripe: stripe,
		paypal: paypal,
	}
}

func (h *harness) seedSpot(t *testing.T) *model.Spot {
	t.Helper()
	spot := &model.Spot{
		QueueName:   "Berghain",
		SellerID:    "seller_1",
		SellerPrice: 20,
		DownloadURL: "https://example.com/spot.jpg",
	}
	require.NoError(t, h.store.CreateSpot(context.Background(), spot, 0.25))
	return spot
}

// seedTransaction creates a transaction and applies the mutation directly, the
// way the booking handlers would have left it.
func (h *harness) seedTransaction(t *testing.T, spotID string, mutate func(*model.Transaction)) *model.Transaction {
	t.Helper()
	ctx := context.Background()
	transaction, err := h.store.CreateTransaction(ctx, spotID, "buyer_1", model.ProviderStripe)
	require.NoError(t, err)
	transaction, err = h.store.UpdateTransaction(ctx, transaction.ID, mutate)
	require.NoError(t, err)
	return transaction
}

func TestHandleFreeSpotsFreesStaleReservations(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	spot := h.seedSpot(t)
	require.NoError(t, h.store.Reserve(ctx, spot.ID))

	_, err := h.store.UpdateSpotIf(ctx, spot.ID,
		func(s *model.Spot) bool { return true },
		func(s *model.Spot) { s.ReservedAt = model.Timestamp(10 * time.Minute) })
	require.NoError(t, err)

	require.NoError(t, h.worker.HandleFreeSpots(ctx, nil))

	stored, err := h.store.GetSpot(ctx, spot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAvailable, stored.Status)
}

func TestHandleFreeSpotsKeepsFreshReservations(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	spot := h.seedSpot(t)
	require.NoError(t, h.store.Reserve(ctx, spot.ID))

	require.NoError(t, h.worker.HandleFreeSpots(ctx, nil))

	stored, err := h.store.GetSpot(ctx, spot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReserved, stored.Status)
}

func TestHandleRefundBuyersRefundsStripe(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	spot := h.seedSpot(t)
	transaction := h.seedTransaction(t, spot.ID, func(txn *model.Transaction) {
		txn.Status = model.TransactionToRefund
		txn.PaymentIntentID = "pi_1"
		txn.BookedAt = model.Timestamp(5 * time.Minute)
	})

	require.NoError(t, h.worker.HandleRefundBuyers(ctx, nil))

	stored, err := h.store.GetTransaction(ctx, transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentRefunded, stored.Status)
	assert.True(t, h.stripe.Refunded("pi_1"))
}

func TestHandleRefundBuyersSkipsRecentBookings(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	spot := h.seedSpot(t)
	transaction := h.seedTransaction(t, spot.ID, func(txn *model.Transaction) {
		txn.Status = model.TransactionToRefund
		txn.PaymentIntentID = "pi_1"
		txn.BookedAt = time.Now().Unix()
	})

	require.NoError(t, h.worker.HandleRefundBuyers(ctx, nil))

	stored, err := h.store.GetTransaction(ctx, transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionToRefund, stored.Status)
	assert.False(t, h.stripe.Refunded("pi_1"))
}

func TestHandleRefundBuyersMarksFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	spot := h.seedSpot(t)
	h.stripe.FailRefunds = true
	transaction := h.seedTransaction(t, spot.ID, func(txn *model.Transaction) {
		txn.Status = model.TransactionToRefund
		txn.PaymentIntentID = "pi_1"
		txn.BookedAt = model.Timestamp(5 * time.Minute)
	})

	require.NoError(t, h.worker.HandleRefundBuyers(ctx, nil))

	stored, err := h.store.GetTransaction(ctx, transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RefundFailed, stored.Status)
}

func TestHandlePaySellers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	spot := h.seedSpot(t)
	transaction := h.seedTransaction(t, spot.ID, func(txn *model.Transaction) {
		txn.Status = model.TransactionCharged
		txn.PayoutStatus = model.PayoutPending
		txn.BookedAt = model.Timestamp(13 * time.Hour)
	})

	require.NoError(t, h.worker.HandlePaySellers(ctx, nil))

	stored, err := h.store.GetTransaction(ctx, transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PayoutSucceeded, stored.PayoutStatus)
	assert.NotEmpty(t, h.paypal.PayoutBatch(transaction.ID))
}

func TestHandlePaySellersHonorsPayoutHold(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	spot := h.seedSpot(t)
	transaction := h.seedTransaction(t, spot.ID, func(txn *model.Transaction) {
		txn.Status = model.TransactionCharged
		txn.PayoutStatus = model.PayoutPending
		txn.BookedAt = model.Timestamp(time.Hour)
	})

	require.NoError(t, h.worker.HandlePaySellers(ctx, nil))

	stored, err := h.store.GetTransaction(ctx, transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PayoutPending, stored.PayoutStatus)
}

func TestHandlePaySellersMarksFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	spot := h.seedSpot(t)
	h.paypal.FailPayouts = true
	transaction := h.seedTransaction(t, spot.ID, func(txn *model.Transaction) {
		txn.Status = model.TransactionCharged
		txn.PayoutStatus = model.PayoutPending
		txn.BookedAt = model.Timestamp(13 * time.Hour)
	})

	require.NoError(t, h.worker.HandlePaySellers(ctx, nil))

	stored, err := h.store.GetTransaction(ctx, transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PayoutFailed, stored.PayoutStatus)
}
