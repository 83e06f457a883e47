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

	"github.com/ffraaz/taqo/internal/fferror"
)

// Messages exchanged with the embedded checkout surface. The channel is
// string-typed and one-way in each direction: the surface reports protocol
// progress, the host answers `ready` with a single handoff.
const (
	MsgReady    = "ready"
	MsgApproved = "approved"
	MsgSuccess  = "success"
)

// Handoff is the one-time secure transfer of booking context into the
// surface, sent when the surface reports `ready`.
type Handoff struct {
	SpotID        string `json:"spotId"`
	TransactionID string `json:"transactionId"`
	IDToken       string `json:"idToken"`
}

// Surface is the embedded checkout surface from the host's side. Messages
// yields surface messages in order; the channel closes when the surface is
// torn down. Send injects the handoff into the surface.
type Surface interface {
	Messages() <-chan string
	Send(ctx context.Context, handoff Handoff) error
}

// DismissGuard locks the surface against user dismissal during settlement,
// between `approved` and the terminal message.
type DismissGuard interface {
	SetDismissable(dismissable bool)
}

// PayPalAdapter runs the embedded checkout protocol. Settlement and booking
// confirmation happen inside the surface (it calls paypal_book_spot itself),
// so a successful outcome is already confirmed and the orchestrator skips
// its confirmation RPC.
type PayPalAdapter struct {
	gateway Gateway
	surface Surface
	guard   DismissGuard
}

func NewPayPal(gateway Gateway, surface Surface, guard DismissGuard) *PayPalAdapter {
	return &PayPalAdapter{gateway: gateway, surface: surface, guard: guard}
}

func (a *PayPalAdapter) Method() Method {
	return MethodPayPal
}

func (a *PayPalAdapter) Attempt(ctx context.Context, res Reservation) Outcome {
	transactionID, err := a.gateway.PayPalCreateTransaction(ctx, res.SpotID, res.Token)
	if err != nil {
		return SetupFailed(errors.Wrap(err, "creating paypal transaction"))
	}

	defer a.guard.SetDismissable(true)

	for {
		select {
		case <-ctx.Done():
			return Cancelled()
		case msg, ok := <-a.surface.Messages():
			if !ok {
				// Surface torn down without a terminal message: the user
				// navigated away.
				return Cancelled()
			}
			switch {
			case msg == MsgReady:
				handoff := Handoff{SpotID: res.SpotID, TransactionID: transactionID, IDToken: res.Token}
				if err := a.surface.Send(ctx, handoff); err != nil {
					return SetupFailed(errors.Wrap(err, "sending handoff to checkout surface"))
				}
			case msg == MsgApproved:
				// Money is authorized but not settled. Locking dismissal
				// keeps the user from abandoning a charge in flight.
				a.guard.SetDismissable(false)
			case msg == MsgSuccess:
				return SuccessConfirmed(transactionID)
			case fferror.IsCode(msg):
				code := fferror.Parse(msg)
				err := &fferror.RemoteError{Code: code, Status: 400}
				if code == fferror.PaymentFailed {
					return Failed(err)
				}
				return SetupFailed(err)
			default:
				logrus.WithField("message", msg).Debug("unrecognized message from checkout surface")
			}
		}
	}
}
