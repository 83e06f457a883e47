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

// Package jobs holds the backend's scheduled and queued work: the stale
// reservation sweep, buyer refunds, seller payouts, and outbound
// notifications.
package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ffraaz/taqo/internal/notification"
	"github.com/ffraaz/taqo/internal/providers"
	"github.com/ffraaz/taqo/internal/spotstore"
	"github.com/ffraaz/taqo/model"
)

const (
	TypeFreeSpots    = "spots:free_stale"
	TypeRefundBuyers = "transactions:refund_buyers"
	TypePaySellers   = "transactions:pay_sellers"
	TypeNotify       = "notify:push"
	TypeEmail        = "notify:email"

	// refundMinAge delays refunds briefly so a booking still in flight is
	// not refunded out from under its confirmation call.
	refundMinAge = 2 * time.Minute

	// payoutMinAge holds seller payouts until the exchange window has
	// safely passed.
	payoutMinAge = 12 * time.Hour
)

// NotifyPayload is a push notification to one or more users.
type NotifyPayload struct {
	UserIDs []string          `json:"userIds"`
	Title   string            `json:"title"`
	Body    string            `json:"body"`
	Data    map[string]string `json:"data,omitempty"`
}

// EmailPayload is an outbound email.
type EmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func NewNotifyTask(payload NotifyPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "encoding notification task")
	}
	return asynq.NewTask(TypeNotify, data), nil
}

func NewEmailTask(payload EmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "encoding email task")
	}
	return asynq.NewTask(TypeEmail, data), nil
}

// Worker executes the backend's background work against the spot store and
// the payment providers.
type Worker struct {
	store          *spotstore.Store
	stripe         providers.Stripe
	paypal         providers.PayPal
	reservationTTL time.Duration
}

func NewWorker(store *spotstore.Store, stripe providers.Stripe, paypal providers.PayPal, reservationTTL time.Duration) *Worker {
	return &Worker{store: store, stripe: stripe, paypal: paypal, reservationTTL: reservationTTL}
}

// Mux registers all task handlers.
func (w *Worker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeFreeSpots, w.HandleFreeSpots)
	mux.HandleFunc(TypeRefundBuyers, w.HandleRefundBuyers)
	mux.HandleFunc(TypePaySellers, w.HandlePaySellers)
	mux.HandleFunc(TypeNotify, w.HandleNotify)
	mux.HandleFunc(TypeEmail, w.HandleEmail)
	return mux
}

// Schedules maps cron expressions to the periodic sweeps.
func Schedules() map[string]string {
	return map[string]string{
		"@every 1m": TypeFreeSpots,
		"@every 5m": TypeRefundBuyers,
		"@every 1h": TypePaySellers,
	}
}

// HandleFreeSpots frees reservations that outlived the reservation TTL.
// This is the consistency backstop behind best-effort client rollbacks.
func (w *Worker) HandleFreeSpots(ctx context.Context, _ *asynq.Task) error {
	freed, err := w.store.FreeStaleReservations(ctx, w.reservationTTL)
	if err != nil {
		return err
	}
	if freed > 0 {
		logrus.WithField("count", freed).Info("freed stale reservations")
	}
	return nil
}

// HandleRefundBuyers refunds transactions that were charged but never
// confirmed a booking.
func (w *Worker) HandleRefundBuyers(ctx context.Context, _ *asynq.Task) error {
	due, err := w.store.TransactionsToRefund(ctx, refundMinAge)
	if err != nil {
		return err
	}
	for i := range due {
		w.tryRefund(ctx, &due[i])
	}
	return nil
}

func (w *Worker) tryRefund(ctx context.Context, transaction *model.Transaction) {
	err := w.refund(ctx, transaction)
	if err == nil {
		logrus.WithField("transaction_id", transaction.ID).Info("initiated refund")
		return
	}
	if _, updateErr := w.store.UpdateTransaction(ctx, transaction.ID, func(t *model.Transaction) {
		t.Status = model.RefundFailed
	}); updateErr != nil {
		logrus.WithError(updateErr).WithField("transaction_id", transaction.ID).Error("failed to mark refund failure")
	}
	notification.NotifyError(err, notification.OpsEvent{
		Event:         "refund_failed",
		TransactionID: transaction.ID,
	})
}

func (w *Worker) refund(ctx context.Context, transaction *model.Transaction) error {
	switch transaction.PaymentProvider {
	case model.ProviderStripe:
		if err := w.stripe.Refund(ctx, transaction.PaymentIntentID); err != nil {
			return errors.Wrap(err, "refunding stripe payment")
		}
	case model.ProviderPayPal:
		if err := w.paypal.Refund(ctx, transaction.CaptureID); err != nil {
			return errors.Wrap(err, "refunding paypal capture")
		}
	default:
		return errors.Errorf("unknown payment provider %s", transaction.PaymentProvider)
	}
	_, err := w.store.UpdateTransaction(ctx, transaction.ID, func(t *model.Transaction) {
		t.Status = model.PaymentRefunded
	})
	return err
}

// HandlePaySellers pays out sellers of bookings past the payout hold.
func (w *Worker) HandlePaySellers(ctx context.Context, _ *asynq.Task) error {
	due, err := w.store.TransactionsToPayout(ctx, payoutMinAge)
	if err != nil {
		return err
	}
	for i := range due {
		w.tryPayout(ctx, &due[i])
	}
	return nil
}

func (w *Worker) tryPayout(ctx context.Context, transaction *model.Transaction) {
	batchID, err := w.paypal.Payout(ctx, transaction.SellerID, transaction.SellerPrice, transaction.ID)
	if err == nil {
		logrus.WithFields(logrus.Fields{
			"transaction_id": transaction.ID,
			"batch_id":       batchID,
		}).Info("initiated payout")
		if _, err := w.store.UpdateTransaction(ctx, transaction.ID, func(t *model.Transaction) {
			t.PayoutStatus = model.PayoutSucceeded
		}); err != nil {
			logrus.WithError(err).WithField("transaction_id", transaction.ID).Error("failed to mark payout success")
		}
		return
	}
	if _, updateErr := w.store.UpdateTransaction(ctx, transaction.ID, func(t *model.Transaction) {
		t.PayoutStatus = model.PayoutFailed
	}); updateErr != nil {
		logrus.WithError(updateErr).WithField("transaction_id", transaction.ID).Error("failed to mark payout failure")
	}
	notification.NotifyError(err, notification.OpsEvent{
		Event:         "payout_failed",
		TransactionID: transaction.ID,
	})
}

// HandleNotify delivers a push notification. The development backend logs it
// and mirrors it to the ops webhook.
func (w *Worker) HandleNotify(_ context.Context, task *asynq.Task) error {
	var payload NotifyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return errors.Wrap(err, "decoding notification task")
	}
	logrus.WithFields(logrus.Fields{
		"user_ids": payload.UserIDs,
		"title":    payload.Title,
	}).Info(payload.Body)
	notification.WebhookNotification(notification.OpsEvent{
		Event:  "push_notification",
		Detail: payload.Title + ": " + payload.Body,
	})
	return nil
}

// HandleEmail delivers an email. The development backend only logs it.
func (w *Worker) HandleEmail(_ context.Context, task *asynq.Task) error {
	var payload EmailPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return errors.Wrap(err, "decoding email task")
	}
	logrus.WithFields(logrus.Fields{
		"to":      payload.To,
		"subject": payload.Subject,
	}).Info("sending email")
	return nil
}
