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

// Package spotstore is the storage layer of the development backend. Spot
// mutations run under a per-spot lock so a status check and its write act as
// one atomic step, mirroring the single-document transactions of the hosted
// backend. Every committed mutation is pushed to the realtime channels.
package spotstore

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ffraaz/taqo/cache"
	redlock "github.com/ffraaz/taqo/internal/lock"
	"github.com/ffraaz/taqo/model"
)

const (
	spotsKey        = "spots"
	transactionsKey = "transactions"
	disabledSetKey  = "users:disabled"

	lockTimeout = 2 * time.Second
	waitTimeout = 5 * time.Second
	snapshotTTL = 24 * time.Hour
)

// ErrUpdate is returned when a conditional update finds the spot in a state
// that no longer satisfies the condition. Losing a booking race surfaces as
// this error.
var ErrUpdate = errors.New("spot no longer satisfies the update condition")

var ErrNotFound = errors.New("not found")

type Store struct {
	client redis.UniversalClient
	cache  cache.Cache
}

func New(client redis.UniversalClient, snapshotCache cache.Cache) *Store {
	return &Store{client: client, cache: snapshotCache}
}

// CreateSpot registers a new offer and announces it to watchers. The buyer
// price is always derived server-side from the seller price.
func (s *Store) CreateSpot(ctx context.Context, spot *model.Spot, serviceFee float64) error {
	if spot.ID == "" {
		spot.ID = uuid.New().String()
	}
	if spot.CreatedAt == 0 {
		spot.CreatedAt = time.Now().Unix()
	}
	spot.Status = model.StatusAvailable
	spot.BuyerPrice = model.AddServiceFee(spot.SellerPrice, serviceFee)
	if err := spot.Validate(); err != nil {
		return err
	}
	return s.writeSpot(ctx, spot)
}

func (s *Store) GetSpot(ctx context.Context, spotID string) (*model.Spot, error) {
	payload, err := s.client.HGet(ctx, spotsKey, spotID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "loading spot")
	}
	var spot model.Spot
	if err := json.Unmarshal([]byte(payload), &spot); err != nil {
		return nil, errors.Wrap(err, "decoding spot")
	}
	return &spot, nil
}

// UpdateSpotIf applies mutate to the spot only while cond holds, under the
// spot's lock. A failed condition returns ErrUpdate with the spot untouched.
func (s *Store) UpdateSpotIf(ctx context.Context, spotID string, cond func(*model.Spot) bool, mutate func(*model.Spot)) (*model.Spot, error) {
	locker := redlock.ForSpot(s.client, spotID)
	if err := locker.WaitLock(ctx, lockTimeout, waitTimeout); err != nil {
		return nil, errors.Wrap(err, "locking spot")
	}
	defer func() {
		if err := locker.Unlock(ctx); err != nil {
			logrus.WithError(err).WithField("spot_id", spotID).Error("failed to release spot lock")
		}
	}()

	spot, err := s.GetSpot(ctx, spotID)
	if err != nil {
		return nil, err
	}
	if !cond(spot) {
		return nil, ErrUpdate
	}
	mutate(spot)
	if err := s.writeSpot(ctx, spot); err != nil {
		return nil, err
	}
	return spot, nil
}

// Reserve holds an available spot for a buyer.
func (s *Store) Reserve(ctx context.Context, spotID string) error {
	_, err := s.UpdateSpotIf(ctx, spotID, model.IsAvailable, func(spot *model.Spot) {
		spot.Status = model.StatusReserved
		spot.ReservedAt = time.Now().Unix()
	})
	return err
}

// Free releases a reservation back to the market.
func (s *Store) Free(ctx context.Context, spotID string) error {
	_, err := s.UpdateSpotIf(ctx, spotID, isReserved, func(spot *model.Spot) {
		spot.Status = model.StatusAvailable
		spot.ReservedAt = 0
	})
	return err
}

// MarkSold finalizes a reserved spot after settlement.
func (s *Store) MarkSold(ctx context.Context, spotID string) error {
	_, err := s.UpdateSpotIf(ctx, spotID, isReserved, func(spot *model.Spot) {
		spot.Status = model.StatusSold
	})
	return err
}

// DeleteSpot removes the document entirely and tells watchers it is gone.
func (s *Store) DeleteSpot(ctx context.Context, spotID string) error {
	if err := s.client.HDel(ctx, spotsKey, spotID).Err(); err != nil {
		return errors.Wrap(err, "deleting spot")
	}
	channel := model.SpotChannel(spotID)
	if err := s.cache.Delete(ctx, channel); err != nil {
		logrus.WithError(err).WithField("spot_id", spotID).Error("failed to drop spot snapshot")
	}
	if err := s.client.Publish(ctx, channel, model.GoneMessage).Err(); err != nil {
		return errors.Wrap(err, "publishing spot deletion")
	}
	return s.publishAvailable(ctx)
}

// AvailableSpots lists the open offers, oldest first.
func (s *Store) AvailableSpots(ctx context.Context) ([]model.Spot, error) {
	spots, err := s.allSpots(ctx)
	if err != nil {
		return nil, err
	}
	available := make([]model.Spot, 0, len(spots))
	for _, spot := range spots {
		if spot.Status == model.StatusAvailable {
			available = append(available, spot)
		}
	}
	sort.Slice(available, func(i, j int) bool {
		return available[i].CreatedAt < available[j].CreatedAt
	})
	return available, nil
}

// HasOpenSpots reports whether the seller still has an offer on the market.
func (s *Store) HasOpenSpots(ctx context.Context, sellerID string) (bool, error) {
	spots, err := s.allSpots(ctx)
	if err != nil {
		return false, err
	}
	for _, spot := range spots {
		if spot.SellerID == sellerID && (spot.Status == model.StatusAvailable || spot.Status == model.StatusReserved) {
			return true, nil
		}
	}
	return false, nil
}

// FreeStaleReservations frees reservations older than ttl and returns how
// many were freed. Reservations abandoned without a rollback call expire
// through this sweep.
func (s *Store) FreeStaleReservations(ctx context.Context, ttl time.Duration) (int, error) {
	spots, err := s.allSpots(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-ttl).Unix()
	freed := 0
	for _, spot := range spots {
		if spot.Status != model.StatusReserved || spot.ReservedAt > cutoff {
			continue
		}
		if err := s.Free(ctx, spot.ID); err != nil {
			logrus.WithError(err).WithField("spot_id", spot.ID).Error("failed to free stale reservation")
			continue
		}
		logrus.WithField("spot_id", spot.ID).Info("freed stale reservation")
		freed++
	}
	return freed, nil
}

// DisableUser marks an account as disabled. Rejected while the user still
// has an open offer.
func (s *Store) DisableUser(ctx context.Context, userID string) error {
	open, err := s.HasOpenSpots(ctx, userID)
	if err != nil {
		return err
	}
	if open {
		return ErrUpdate
	}
	return errors.Wrap(s.client.SAdd(ctx, disabledSetKey, userID).Err(), "disabling user")
}

func (s *Store) IsUserDisabled(ctx context.Context, userID string) (bool, error) {
	disabled, err := s.client.SIsMember(ctx, disabledSetKey, userID).Result()
	return disabled, errors.Wrap(err, "checking user state")
}

// CreateTransaction opens a pending transaction snapshotting the spot's
// current prices. The snapshot is what the price consistency check compares
// against at confirmation time.
func (s *Store) CreateTransaction(ctx context.Context, spotID, buyerID, provider string) (*model.Transaction, error) {
	spot, err := s.GetSpot(ctx, spotID)
	if err != nil {
		return nil, err
	}
	transaction := &model.Transaction{
		ID:              uuid.New().String(),
		SpotID:          spot.ID,
		QueueName:       spot.QueueName,
		BuyerID:         buyerID,
		SellerID:        spot.SellerID,
		SellerPrice:     spot.SellerPrice,
		BuyerPrice:      spot.BuyerPrice,
		Status:          model.TransactionPending,
		PaymentProvider: provider,
		CreatedAt:       time.Now().Unix(),
	}
	if err := s.writeTransaction(ctx, transaction); err != nil {
		return nil, err
	}
	return transaction, nil
}

func (s *Store) GetTransaction(ctx context.Context, transactionID string) (*model.Transaction, error) {
	payload, err := s.client.HGet(ctx, transactionsKey, transactionID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "loading transaction")
	}
	var transaction model.Transaction
	if err := json.Unmarshal([]byte(payload), &transaction); err != nil {
		return nil, errors.Wrap(err, "decoding transaction")
	}
	return &transaction, nil
}

// UpdateTransaction applies mutate to the transaction and persists it.
func (s *Store) UpdateTransaction(ctx context.Context, transactionID string, mutate func(*model.Transaction)) (*model.Transaction, error) {
	transaction, err := s.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	mutate(transaction)
	if err := s.writeTransaction(ctx, transaction); err != nil {
		return nil, err
	}
	return transaction, nil
}

// TransactionsToRefund lists settled-but-unconfirmed transactions whose
// booking happened at least minAge ago.
func (s *Store) TransactionsToRefund(ctx context.Context, minAge time.Duration) ([]model.Transaction, error) {
	return s.filterTransactions(ctx, func(t *model.Transaction) bool {
		return t.Status == model.TransactionToRefund && t.BookedAt <= time.Now().Add(-minAge).Unix()
	})
}

// TransactionsToPayout lists charged transactions whose seller payout is due.
func (s *Store) TransactionsToPayout(ctx context.Context, minAge time.Duration) ([]model.Transaction, error) {
	return s.filterTransactions(ctx, func(t *model.Transaction) bool {
		return t.PayoutStatus == model.PayoutPending && t.BookedAt <= time.Now().Add(-minAge).Unix()
	})
}

func (s *Store) filterTransactions(ctx context.Context, keep func(*model.Transaction) bool) ([]model.Transaction, error) {
	payloads, err := s.client.HVals(ctx, transactionsKey).Result()
	if err != nil {
		return nil, errors.Wrap(err, "listing transactions")
	}
	var matches []model.Transaction
	for _, payload := range payloads {
		var transaction model.Transaction
		if err := json.Unmarshal([]byte(payload), &transaction); err != nil {
			logrus.WithError(err).Error("skipping malformed transaction")
			continue
		}
		if keep(&transaction) {
			matches = append(matches, transaction)
		}
	}
	return matches, nil
}

func (s *Store) allSpots(ctx context.Context) ([]model.Spot, error) {
	payloads, err := s.client.HVals(ctx, spotsKey).Result()
	if err != nil {
		return nil, errors.Wrap(err, "listing spots")
	}
	spots := make([]model.Spot, 0, len(payloads))
	for _, payload := range payloads {
		var spot model.Spot
		if err := json.Unmarshal([]byte(payload), &spot); err != nil {
			logrus.WithError(err).Error("skipping malformed spot")
			continue
		}
		spots = append(spots, spot)
	}
	return spots, nil
}

func (s *Store) writeSpot(ctx context.Context, spot *model.Spot) error {
	payload, err := json.Marshal(spot)
	if err != nil {
		return errors.Wrap(err, "encoding spot")
	}
	if err := s.client.HSet(ctx, spotsKey, spot.ID, payload).Err(); err != nil {
		return errors.Wrap(err, "storing spot")
	}
	return s.publishSpot(ctx, spot, payload)
}

func (s *Store) writeTransaction(ctx context.Context, transaction *model.Transaction) error {
	payload, err := json.Marshal(transaction)
	if err != nil {
		return errors.Wrap(err, "encoding transaction")
	}
	return errors.Wrap(s.client.HSet(ctx, transactionsKey, transaction.ID, payload).Err(), "storing transaction")
}

func (s *Store) publishSpot(ctx context.Context, spot *model.Spot, payload []byte) error {
	channel := model.SpotChannel(spot.ID)
	if err := s.cache.Set(ctx, channel, spot, snapshotTTL); err != nil {
		logrus.WithError(err).WithField("spot_id", spot.ID).Error("failed to cache spot snapshot")
	}
	if err := s.client.Publish(ctx, channel, payload).Err(); err != nil {
		return errors.Wrap(err, "publishing spot snapshot")
	}
	return s.publishAvailable(ctx)
}

func (s *Store) publishAvailable(ctx context.Context) error {
	available, err := s.AvailableSpots(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(available)
	if err != nil {
		return errors.Wrap(err, "encoding available spots")
	}
	if err := s.cache.Set(ctx, model.AvailableChannel, available, snapshotTTL); err != nil {
		logrus.WithError(err).Error("failed to cache available-spots snapshot")
	}
	return errors.Wrap(s.client.Publish(ctx, model.AvailableChannel, payload).Err(), "publishing available spots")
}

func isReserved(spot *model.Spot) bool {
	return spot != nil && spot.Status == model.StatusReserved
}
