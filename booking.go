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
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ffraaz/taqo/internal/fferror"
	"github.com/ffraaz/taqo/internal/notification"
	"github.com/ffraaz/taqo/model"
	"github.com/ffraaz/taqo/payment"
)

// Phase is the position of a booking attempt in its pipeline. The pipeline
// runs strictly sequentially: no two RPCs for the same attempt are ever in
// flight at once.
type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhaseReserving       Phase = "reserving"
	PhaseAwaitingPayment Phase = "awaiting_payment"
	PhaseConfirming      Phase = "confirming"
	PhaseRollingBack     Phase = "rolling_back"
	PhaseSucceeded       Phase = "succeeded"
	PhaseFailed          Phase = "failed"
)

const (
	msgPaymentError = "There was an error processing your payment. Please try again later."
	msgCharged      = "Failed to book spot. Your payment method has already been charged. We will refund you shortly."
	msgGeneric      = "Failed to book spot. Please try again later."
)

// BookingError is the terminal failure of a booking attempt.
type BookingError struct {
	Stage string
	Code  fferror.Code

	// Canceled marks a user-initiated abort. It unwinds like a failure but
	// is never shown as an error.
	Canceled bool

	// Charged marks the one failure class where money has already moved:
	// the confirmation RPC failed after the provider settled the payment.
	// Attempts that end here must never be retried automatically.
	Charged bool

	// PaymentError marks a failure of the money rail itself, as opposed to
	// a failure while reserving or setting the payment up.
	PaymentError bool

	Err error
}

func (e *BookingError) Error() string {
	if e.Err != nil {
		return e.Stage + ": " + e.Err.Error()
	}
	return e.Stage
}

func (e *BookingError) Unwrap() error {
	return e.Err
}

// UserMessage is the dialog text for this failure, or "" when no dialog
// should be shown.
func (e *BookingError) UserMessage() string {
	switch {
	case e.Canceled:
		return ""
	case e.PaymentError:
		return msgPaymentError
	case e.Charged || e.Code == fferror.SpotUnavailableCharged:
		return msgCharged
	default:
		return msgGeneric
	}
}

// BookingGateway is the slice of the RPC channel a booking attempt needs.
type BookingGateway interface {
	payment.Gateway
	ReserveSpot(ctx context.Context, spotID, token string) error
	FreeSpot(ctx context.Context, spotID, token string) error
	StripeBookSpot(ctx context.Context, spotID, transactionID, token string) error
}

// BookingResult resolves one attempt. Err is nil exactly when the attempt
// succeeded.
type BookingResult struct {
	TransactionID string
	Err           *BookingError
}

// Booker drives booking attempts through reserve, pay, confirm. It holds one
// adapter per payment rail, selected once per attempt and never switched
// mid-flight.
type Booker struct {
	gateway         BookingGateway
	adapters        map[payment.Method]payment.Adapter
	onPhase         func(Phase)
	rollbackTimeout time.Duration
}

func NewBooker(gateway BookingGateway, adapters ...payment.Adapter) *Booker {
	byMethod := make(map[payment.Method]payment.Adapter, len(adapters))
	for _, adapter := range adapters {
		byMethod[adapter.Method()] = adapter
	}
	return &Booker{
		gateway:         gateway,
		adapters:        byMethod,
		onPhase:         func(Phase) {},
		rollbackTimeout: 10 * time.Second,
	}
}

// OnPhase registers an observer for phase transitions. The observer is
// called synchronously from the booking goroutine.
func (b *Booker) OnPhase(fn func(Phase)) {
	if fn != nil {
		b.onPhase = fn
	}
}

// Book runs one attempt for the given spot. Reservation failure is routine,
// not exceptional: losing the race for a spot resolves to a failed result,
// never a panic or a stuck reservation.
func (b *Booker) Book(ctx context.Context, spot *model.Spot, method payment.Method, token string) BookingResult {
	logger := logrus.WithFields(logrus.Fields{
		"attempt_id": uuid.New().String(),
		"spot_id":    spot.ID,
		"method":     method,
	})

	adapter, ok := b.adapters[method]
	if !ok {
		return b.fail(logger, &BookingError{Stage: "select_adapter", Err: errors.Errorf("no payment adapter registered for method %s", method)})
	}

	b.onPhase(PhaseReserving)
	if err := b.gateway.ReserveSpot(ctx, spot.ID, token); err != nil {
		// Nothing was reserved by this attempt, so there is nothing to
		// roll back.
		logger.WithError(err).Info("reservation lost")
		return b.fail(logger, &BookingError{Stage: "reserve_spot", Code: fferror.CodeOf(err), Err: err})
	}

	b.onPhase(PhaseAwaitingPayment)
	reservation := payment.Reservation{SpotID: spot.ID, BuyerPrice: spot.BuyerPrice, Token: token}
	outcome := adapter.Attempt(ctx, reservation)

	switch outcome.Status {
	case payment.StatusCancelled:
		b.rollback(logger, spot.ID, token)
		return b.fail(logger, &BookingError{Stage: "payment", Canceled: true})
	case payment.StatusFailed:
		if code := fferror.CodeOf(outcome.Err); code == fferror.SpotUnavailableCharged {
			// The surface settled the payment before the booking fell
			// through. The spot already transitioned server-side, so a
			// rollback would free someone else's reservation.
			return b.fail(logger, &BookingError{Stage: "payment", Code: code, Charged: true, Err: outcome.Err})
		}
		b.rollback(logger, spot.ID, token)
		return b.fail(logger, &BookingError{
			Stage:        "payment",
			Code:         fferror.CodeOf(outcome.Err),
			PaymentError: outcome.ProviderFault,
			Err:          outcome.Err,
		})
	}

	if outcome.Confirmed {
		// The embedded surface already performed the confirmation RPC.
		b.onPhase(PhaseSucceeded)
		logger.Info("spot booked")
		return BookingResult{TransactionID: outcome.TransactionID}
	}

	b.onPhase(PhaseConfirming)
	if err := b.gateway.StripeBookSpot(ctx, spot.ID, outcome.TransactionID, token); err != nil {
		// The provider has already charged the buyer. The backend marks the
		// transaction for refund; no rollback here.
		return b.fail(logger, &BookingError{
			Stage:   "stripe_book_spot",
			Code:    fferror.CodeOf(err),
			Charged: true,
			Err:     err,
		})
	}

	b.onPhase(PhaseSucceeded)
	logger.Info("spot booked")
	return BookingResult{TransactionID: outcome.TransactionID}
}

// rollback frees the reservation. Best effort: the backend's stale
// reservation sweep is the backstop, so a failure here is reported to ops
// and otherwise swallowed.
func (b *Booker) rollback(logger *logrus.Entry, spotID, token string) {
	b.onPhase(PhaseRollingBack)

	// The attempt's own context may already be canceled (navigation
	// dismiss); the rollback still has to go out.
	ctx, cancel := context.WithTimeout(context.Background(), b.rollbackTimeout)
	defer cancel()

	if err := b.gateway.FreeSpot(ctx, spotID, token); err != nil {
		logger.WithError(err).Error("failed to free spot")
		notification.NotifyError(err, notification.OpsEvent{Event: "free_spot_failed", SpotID: spotID})
	}
}

func (b *Booker) fail(logger *logrus.Entry, bookingErr *BookingError) BookingResult {
	b.onPhase(PhaseFailed)
	if !bookingErr.Canceled {
		logger.WithError(bookingErr).Error("booking attempt failed")
	}
	return BookingResult{Err: bookingErr}
}
