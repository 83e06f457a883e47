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

package taqo

import (
	"context"
	"encoding/json"
	"net"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ffraaz/taqo/cache"
	"github.com/ffraaz/taqo/config"
	redis_db "github.com/ffraaz/taqo/internal/redis-db"
	"github.com/ffraaz/taqo/model"
)

const (
	// receiveTimeout bounds a single blocking receive so a silent connection
	// is noticed even when no snapshots are flowing.
	receiveTimeout time.Duration = 30 * time.Second

	defaultRetryWindow = 2 * time.Minute
)

// SpotEvent is one delivery on a single-spot watch. Exactly one of Spot,
// Gone, or Err is meaningful. Gone is terminal: the spot was deleted or is
// no longer observable and the stream ends after it. Err is also terminal:
// the subscription was lost and could not be recovered, and starting a new
// watch is up to the consumer.
type SpotEvent struct {
	Spot *model.Spot
	Gone bool
	Err  error
}

// AvailableEvent is one delivery on the available-set watch. Spots is the
// full current matching set, not a diff; consumers recompute derived state
// from scratch on each emission.
type AvailableEvent struct {
	Spots []model.Spot
	Err   error
}

// Watcher delivers realtime spot snapshots. Snapshots for a given watch
// arrive in commit order; nothing is guaranteed across different spots'
// watches.
type Watcher struct {
	client redis.UniversalClient
	cache  cache.Cache

	// retryWindow bounds how long a subscription handshake is retried. A
	// watch whose transport stays down for longer fails over to the consumer.
	retryWindow time.Duration
}

func NewWatcher() (*Watcher, error) {
	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewRedisClient(conf.Redis.Dns)
	if err != nil {
		return nil, err
	}
	snapshotCache, err := cache.NewCache()
	if err != nil {
		return nil, err
	}
	return NewWatcherWithClient(redisClient.Client(), snapshotCache), nil
}

func NewWatcherWithClient(client redis.UniversalClient, snapshotCache cache.Cache) *Watcher {
	return &Watcher{client: client, cache: snapshotCache, retryWindow: defaultRetryWindow}
}

// WatchSpot streams snapshots of one spot until the spot goes away, the
// transport fails for good, or ctx is done. The current snapshot, when
// cached, is replayed first so consumers start from known state; a lost
// connection is re-subscribed with exponential backoff and the cached
// snapshot replayed again so nothing published during the outage leaves the
// consumer stale.
func (w *Watcher) WatchSpot(ctx context.Context, spotID string) <-chan SpotEvent {
	events := make(chan SpotEvent, 16)
	channel := model.SpotChannel(spotID)

	sub, err := w.subscribe(ctx, channel)
	if err != nil {
		events <- SpotEvent{Err: err}
		close(events)
		return events
	}

	go func() {
		defer close(events)

		replay := func() {
			var snapshot model.Spot
			if err := w.cache.Get(ctx, channel, &snapshot); err == nil && snapshot.ID != "" {
				events <- SpotEvent{Spot: &snapshot}
			}
		}
		replay()

		err := w.stream(ctx, sub, channel, replay, func(payload string) bool {
			if payload == model.GoneMessage {
				events <- SpotEvent{Gone: true}
				return false
			}
			var spot model.Spot
			if err := json.Unmarshal([]byte(payload), &spot); err != nil {
				logrus.WithError(err).WithField("channel", channel).Error("malformed spot snapshot")
				return true
			}
			events <- SpotEvent{Spot: &spot}
			return true
		})
		if err != nil {
			events <- SpotEvent{Err: err}
		}
	}()

	return events
}

// WatchAvailable streams the full set of available spots on every change.
func (w *Watcher) WatchAvailable(ctx context.Context) <-chan AvailableEvent {
	events := make(chan AvailableEvent, 16)

	sub, err := w.subscribe(ctx, model.AvailableChannel)
	if err != nil {
		events <- AvailableEvent{Err: err}
		close(events)
		return events
	}

	go func() {
		defer close(events)

		replay := func() {
			var snapshot []model.Spot
			if err := w.cache.Get(ctx, model.AvailableChannel, &snapshot); err == nil && snapshot != nil {
				events <- AvailableEvent{Spots: snapshot}
			}
		}
		replay()

		err := w.stream(ctx, sub, model.AvailableChannel, replay, func(payload string) bool {
			var spots []model.Spot
			if err := json.Unmarshal([]byte(payload), &spots); err != nil {
				logrus.WithError(err).Error("malformed available-spots snapshot")
				return true
			}
			events <- AvailableEvent{Spots: spots}
			return true
		})
		if err != nil {
			events <- AvailableEvent{Err: err}
		}
	}()

	return events
}

// stream pumps payloads from the subscription into deliver until deliver
// reports the stream is done or ctx ends. When the connection drops, the
// channel is re-subscribed with exponential backoff and replay is invoked so
// the consumer sees the current snapshot again; an unrecoverable loss is
// returned as an error. A nil return means the stream ended cleanly.
func (w *Watcher) stream(ctx context.Context, sub *redis.PubSub, channel string, replay func(), deliver func(payload string) bool) error {
	unhook := context.AfterFunc(ctx, func() { _ = sub.Close() })
	defer func() {
		unhook()
		_ = sub.Close()
	}()

	for {
		msg, err := sub.ReceiveTimeout(ctx, receiveTimeout)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			if isTimeout(err) {
				continue
			}
			unhook()
			_ = sub.Close()
			logrus.WithError(err).WithField("channel", channel).Warn("subscription lost, re-subscribing")
			next, subErr := w.subscribe(ctx, channel)
			if subErr != nil {
				if ctx.Err() != nil {
					return nil
				}
				return errors.Wrapf(subErr, "recovering subscription to %s", channel)
			}
			sub = next
			unhook = context.AfterFunc(ctx, func() { _ = next.Close() })
			replay()
			continue
		}
		if message, ok := msg.(*redis.Message); ok {
			if !deliver(message.Payload) {
				return nil
			}
		}
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// subscribe establishes a subscription, retrying the handshake with
// exponential backoff until it succeeds, the retry window elapses, or ctx is
// done.
func (w *Watcher) subscribe(ctx context.Context, channel string) (*redis.PubSub, error) {
	var sub *redis.PubSub
	operation := func() error {
		sub = w.client.Subscribe(ctx, channel)
		if _, err := sub.Receive(ctx); err != nil {
			_ = sub.Close()
			return err
		}
		return nil
	}
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = w.retryWindow
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return nil, err
	}
	return sub, nil
}

// VisibleSpots derives the buyer-facing view of the available set: spots the
// viewer may book (or owns), annotated with distance from the device and
// sorted nearest first.
func VisibleSpots(spots []model.Spot, device model.Location, viewerID string) []model.Spot {
	visible := make([]model.Spot, 0, len(spots))
	for _, spot := range spots {
		if spot.BuyerPrice > 0 || spot.SellerID == viewerID {
			visible = append(visible, spot.WithDistance(device))
		}
	}
	sort.Slice(visible, func(i, j int) bool {
		return visible[i].Distance < visible[j].Distance
	})
	return visible
}
