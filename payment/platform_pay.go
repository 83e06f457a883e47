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

package payment

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// WalletConfirmer is the platform wallet confirmation primitive (Apple Pay /
// Google Pay). Implementations return ErrCanceled when the wallet sheet is
// dismissed.
type WalletConfirmer interface {
	ConfirmPayment(ctx context.Context, clientSecret string, item LineItem) error
}

// PlatformPayAdapter collects a payment through the platform wallet.
type PlatformPayAdapter struct {
	gateway  Gateway
	wallet   WalletConfirmer
	merchant string
	currency string
}

func NewPlatformPay(gateway Gateway, wallet WalletConfirmer, merchant, currency string) *PlatformPayAdapter {
	return &PlatformPayAdapter{gateway: gateway, wallet: wallet, merchant: merchant, currency: currency}
}

func (a *PlatformPayAdapter) Method() Method {
	return MethodPlatformPay
}

// Attempt fetches the payment sheet params, then drives the wallet
// confirmation with a single line item at the buyer price.
func (a *PlatformPayAdapter) Attempt(ctx context.Context, res Reservation) Outcome {
	params, err := a.gateway.StripePaymentSheet(ctx, res.SpotID, res.Token)
	if err != nil {
		// No money has moved: a failure here is a booking failure, not a
		// payment failure.
		return SetupFailed(errors.Wrap(err, "fetching payment sheet params"))
	}

	item := LineItem{Label: a.merchant, Amount: res.BuyerPrice, Currency: a.currency}
	err = a.wallet.ConfirmPayment(ctx, params.PaymentIntentClientSecret, item)
	switch {
	case err == nil:
		return Success(params.TransactionID)
	case errors.Is(err, ErrCanceled) || ctx.Err() != nil:
		logrus.WithField("spot_id", res.SpotID).Info("platform pay canceled")
		return Cancelled()
	default:
		return Failed(errors.Wrap(err, "confirming platform pay payment"))
	}
}
