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

// Package payment wraps the three payment rails behind one contract: attempt
// a payment for a reservation and resolve to success, user cancellation, or
// provider error. The orchestrator selects an adapter once per booking
// attempt and never switches mid-flight.
package payment

import (
	"context"

	"github.com/pkg/errors"
)

// Method identifies a payment rail.
type Method string

const (
	MethodPlatformPay Method = "platform_pay"
	MethodCreditCard  Method = "credit_card"
	MethodPayPal      Method = "paypal"
)

// ErrCanceled is returned by provider primitives when the user dismissed the
// payment surface without completing.
var ErrCanceled = errors.New("payment canceled by user")

// Reservation is the context an adapter needs to collect a payment: the held
// spot, the price shown to the buyer, and the caller's identity token.
type Reservation struct {
	SpotID     string
	BuyerPrice float64
	Token      string
}

// Status tags the three possible resolutions of an attempt.
type Status int

const (
	StatusSuccess Status = iota
	StatusCancelled
	StatusFailed
)

// Outcome is the resolution of one payment attempt.
type Outcome struct {
	Status        Status
	TransactionID string

	// Confirmed is set when settlement AND booking confirmation already
	// happened inside the provider flow, so the orchestrator must not call
	// the confirmation RPC.
	Confirmed bool

	// Err carries the failure for StatusFailed outcomes.
	Err error

	// ProviderFault distinguishes a failure of the money rail itself from a
	// failure while setting the payment up. The user messaging differs: a
	// provider fault reads as a payment problem, a setup failure as a
	// booking problem.
	ProviderFault bool
}

func Success(transactionID string) Outcome {
	return Outcome{Status: StatusSuccess, TransactionID: transactionID}
}

func SuccessConfirmed(transactionID string) Outcome {
	return Outcome{Status: StatusSuccess, TransactionID: transactionID, Confirmed: true}
}

func Cancelled() Outcome {
	return Outcome{Status: StatusCancelled}
}

func Failed(err error) Outcome {
	return Outcome{Status: StatusFailed, Err: err, ProviderFault: true}
}

func SetupFailed(err error) Outcome {
	return Outcome{Status: StatusFailed, Err: err}
}

// Adapter is the uniform payment contract. Attempt blocks until the provider
// flow resolves or ctx is done; abandonment must resolve as Cancelled, never
// as a provider error.
type Adapter interface {
	Method() Method
	Attempt(ctx context.Context, res Reservation) Outcome
}

// Gateway is the slice of the RPC channel the adapters need. The orchestrator
// passes its backend client.
type Gateway interface {
	StripePaymentSheet(ctx context.Context, spotID, token string) (SheetParams, error)
	PayPalCreateTransaction(ctx context.Context, spotID, token string) (string, error)
}

// SheetParams is the provider context for the Stripe-backed variants.
type SheetParams struct {
	PaymentIntentClientSecret string `json:"paymentIntentClientSecret"`
	TransactionID             string `json:"transactionId"`
	EphemeralKey              string `json:"ephemeralKey"`
	Customer                  string `json:"customer"`
}

// LineItem is the single cart entry shown by the platform wallet.
type LineItem struct {
	Label    string
	Amount   float64
	Currency string
}
