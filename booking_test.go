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
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ffraaz/taqo/config"
	"github.com/ffraaz/taqo/internal/fferror"
	"github.com/ffraaz/taqo/payment"
)

type fakeGateway struct {
	reserveErr error
	freeErr    error
	bookErr    error

	reserves int
	frees    int
	books    int
}

func (g *fakeGateway) ReserveSpot(_ context.Context, _, _ string) error {
	g.reserves++
	return g.reserveErr
}

func (g *fakeGateway) FreeSpot(_ context.Context, _, _ string) error {
	g.frees++
	return g.freeErr
}

func (g *fakeGateway) StripeBookSpot(_ context.Context, _, _, _ string) error {
	g.books++
	return g.bookErr
}

func (g *fakeGateway) StripePaymentSheet(_ context.Context, _, _ string) (payment.SheetParams, error) {
	return payment.SheetParams{}, nil
}

func (g *fakeGateway) PayPalCreateTransaction(_ context.Context, _, _ string) (string, error) {
	return "", nil
}

type stubAdapter struct {
	method  payment.Method
	outcome payment.Outcome
}

func (s stubAdapter) Method() payment.Method {
	return s.method
}

func (s stubAdapter) Attempt(_ context.Context, _ payment.Reservation) payment.Outcome {
	return s.outcome
}

func newTestBooker(t *testing.T, gateway *fakeGateway, outcome payment.Outcome) (*Booker, *[]Phase) {
	t.Helper()
	config.MockConfig(&config.Configuration{})
	booker := NewBooker(gateway, stubAdapter{method: payment.MethodPlatformPay, outcome: outcome})
	var phases []Phase
	booker.OnPhase(func(phase Phase) {
		phases = append(phases, phase)
	})
	return booker, &phases
}

func TestBookSuccess(t *testing.T) {
	gateway := &fakeGateway{}
	booker, phases := newTestBooker(t, gateway, payment.Success("tx1"))

	result := booker.Book(context.Background(), MockSpot(), payment.MethodPlatformPay, "token")

	require.Nil(t, result.Err)
	assert.Equal(t, "tx1", result.TransactionID)
	assert.Equal(t, 1, gateway.reserves)
	assert.Equal(t, 1, gateway.books)
	assert.Equal(t, 0, gateway.frees)
	assert.Equal(t, []Phase{PhaseReserving, PhaseAwaitingPayment, PhaseConfirming, PhaseSucceeded}, *phases)
}

func TestBookCancelledFreesSpotWithoutDialog(t *testing.T) {
	gateway := &fakeGateway{}
	booker, phases := newTestBooker(t, gateway, payment.Cancelled())

	result := booker.Book(context.Background(), MockSpot(), payment.MethodPlatformPay, "token")

	require.NotNil(t, result.Err)
	assert.True(t, result.Err.Canceled)
	assert.Empty(t, result.Err.UserMessage())
	assert.Equal(t, 1, gateway.frees)
	assert.Equal(t, 0, gateway.books)
	assert.Equal(t, []Phase{PhaseReserving, PhaseAwaitingPayment, PhaseRollingBack, PhaseFailed}, *phases)
}

func TestBookReservationLostNeverFreesSpot(t *testing.T) {
	gateway := &fakeGateway{reserveErr: &fferror.RemoteError{Code: fferror.SpotUnavailable, Status: 400}}
	booker, phases := newTestBooker(t, gateway, payment.Success("tx1"))

	result := booker.Book(context.Background(), MockSpot(), payment.MethodPlatformPay, "token")

	require.NotNil(t, result.Err)
	assert.Equal(t, fferror.SpotUnavailable, result.Err.Code)
	assert.Equal(t, msgGeneric, result.Err.UserMessage())
	assert.Equal(t, 0, gateway.frees)
	assert.Equal(t, 0, gateway.books)
	assert.Equal(t, []Phase{PhaseReserving, PhaseFailed}, *phases)
}

func TestBookChargedButUnconfirmed(t *testing.T) {
	gateway := &fakeGateway{bookErr: &fferror.RemoteError{Code: fferror.SpotUnavailableCharged, Status: 400}}
	booker, _ := newTestBooker(t, gateway, payment.Success("tx1"))

	result := booker.Book(context.Background(), MockSpot(), payment.MethodPlatformPay, "token")

	require.NotNil(t, result.Err)
	assert.True(t, result.Err.Charged)
	assert.Equal(t, msgCharged, result.Err.UserMessage())
	// The spot already transitioned server-side; freeing it would release
	// someone else's reservation.
	assert.Equal(t, 0, gateway.frees)
}

func TestBookConfirmedOutcomeSkipsConfirmationCall(t *testing.T) {
	gateway := &fakeGateway{}
	booker, phases := newTestBooker(t, gateway, payment.SuccessConfirmed("tx1"))

	result := booker.Book(context.Background(), MockSpot(), payment.MethodPlatformPay, "token")

	require.Nil(t, result.Err)
	assert.Equal(t, "tx1", result.TransactionID)
	assert.Equal(t, 0, gateway.books)
	assert.Equal(t, []Phase{PhaseReserving, PhaseAwaitingPayment, PhaseSucceeded}, *phases)
}

func TestBookProviderFailureFreesSpot(t *testing.T) {
	gateway := &fakeGateway{}
	booker, _ := newTestBooker(t, gateway, payment.Failed(errors.New("card declined")))

	result := booker.Book(context.Background(), MockSpot(), payment.MethodPlatformPay, "token")

	require.NotNil(t, result.Err)
	assert.True(t, result.Err.PaymentError)
	assert.Equal(t, msgPaymentError, result.Err.UserMessage())
	assert.Equal(t, 1, gateway.frees)
}

func TestBookSetupFailureShowsGenericMessage(t *testing.T) {
	gateway := &fakeGateway{}
	booker, _ := newTestBooker(t, gateway, payment.SetupFailed(errors.New("backend unreachable")))

	result := booker.Book(context.Background(), MockSpot(), payment.MethodPlatformPay, "token")

	require.NotNil(t, result.Err)
	assert.False(t, result.Err.PaymentError)
	assert.Equal(t, msgGeneric, result.Err.UserMessage())
	assert.Equal(t, 1, gateway.frees)
}

func TestBookSurfaceChargedFailureSkipsRollback(t *testing.T) {
	outcome := payment.SetupFailed(&fferror.RemoteError{Code: fferror.SpotUnavailableCharged, Status: 400})
	gateway := &fakeGateway{}
	booker, _ := newTestBooker(t, gateway, outcome)

	result := booker.Book(context.Background(), MockSpot(), payment.MethodPlatformPay, "token")

	require.NotNil(t, result.Err)
	assert.True(t, result.Err.Charged)
	assert.Equal(t, msgCharged, result.Err.UserMessage())
	assert.Equal(t, 0, gateway.frees)
}

func TestBookRollbackFailureIsSwallowed(t *testing.T) {
	gateway := &fakeGateway{freeErr: errors.New("backend unreachable")}
	booker, _ := newTestBooker(t, gateway, payment.Cancelled())

	result := booker.Book(context.Background(), MockSpot(), payment.MethodPlatformPay, "token")

	require.NotNil(t, result.Err)
	assert.True(t, result.Err.Canceled)
	assert.Equal(t, 1, gateway.frees)
}

func TestBookUnknownMethod(t *testing.T) {
	gateway := &fakeGateway{}
	booker, _ := newTestBooker(t, gateway, payment.Success("tx1"))

	result := booker.Book(context.Background(), MockSpot(), payment.MethodPayPal, "token")

	require.NotNil(t, result.Err)
	assert.Equal(t, 0, gateway.reserves)
}
