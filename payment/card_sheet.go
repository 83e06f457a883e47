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

// SheetConfig initializes the provider-hosted card sheet.
type SheetConfig struct {
	MerchantDisplayName       string
	CustomerID                string
	CustomerEphemeralKey      string
	PaymentIntentClientSecret string
}

// SheetPresenter is the hosted card sheet primitive. Present blocks until
// the sheet completes or is dismissed; dismissal without completion returns
// ErrCanceled.
type SheetPresenter interface {
	InitPaymentSheet(ctx context.Context, cfg SheetConfig) error
	PresentPaymentSheet(ctx context.Context) error
}

// CardSheetAdapter collects a card payment through the provider-hosted
// payment sheet.
type CardSheetAdapter struct {
	gateway  Gateway
	sheet    SheetPresenter
	merchant string
}

func NewCardSheet(gateway Gateway, sheet SheetPresenter, merchant string) *CardSheetAdapter {
	return &CardSheetAdapter{gateway: gateway, sheet: sheet, merchant: merchant}
}

func (a *CardSheetAdapter) Method() Method {
	return MethodCreditCard
}

func (a *CardSheetAdapter) Attempt(ctx context.Context, res Reservation) Outcome {
	params, err := a.gateway.StripePaymentSheet(ctx, res.SpotID, res.Token)
	if err != nil {
		return SetupFailed(errors.Wrap(err, "fetching payment sheet params"))
	}

	err = a.sheet.InitPaymentSheet(ctx, SheetConfig{
		MerchantDisplayName:       a.merchant,
		CustomerID:                params.Customer,
		CustomerEphemeralKey:      params.EphemeralKey,
		PaymentIntentClientSecret: params.PaymentIntentClientSecret,
	})
	if err != nil {
		// Initialization happens before the sheet is shown, so nothing has
		// been charged yet.
		return SetupFailed(errors.Wrap(err, "initializing payment sheet"))
	}

	err = a.sheet.PresentPaymentSheet(ctx)
	switch {
	case err == nil:
		return Success(params.TransactionID)
	case errors.Is(err, ErrCanceled) || ctx.Err() != nil:
		logrus.WithField("spot_id", res.SpotID).Info("payment sheet dismissed")
		return Cancelled()
	default:
		return Failed(errors.Wrap(err, "presenting payment sheet"))
	}
}
