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
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ffraaz/taqo/internal/fferror"
)

// SurfaceBackend is the slice of the RPC channel the checkout surface calls
// with the handed-off token.
type SurfaceBackend interface {
	PayPalCreateOrder(ctx context.Context, transactionID, token string) (string, error)
	PayPalBookSpot(ctx context.Context, spotID, transactionID, orderID, token string) error
}

// Checkout is the buyer-facing approval step for an order. Approve blocks
// until the buyer approves the order, and returns an error when the buyer
// declines or the provider rejects the payment.
type Checkout interface {
	Approve(ctx context.Context, orderID string) error
}

// LocalSurface is an in-process checkout surface. It carries the two
// directions of the surface protocol over channels: surface messages toward
// the host, and the handoff back. Close tears the surface down, which the
// host observes as a closed message channel.
type LocalSurface struct {
	msgs      chan string
	handoffs  chan Handoff
	closeOnce sync.Once
}

func NewLocalSurface() *LocalSurface {
	return &LocalSurface{
		msgs:     make(chan string),
		handoffs: make(chan Handoff, 1),
	}
}

func (s *LocalSurface) Messages() <-chan string {
	return s.msgs
}

func (s *LocalSurface) Send(ctx context.Context, handoff Handoff) error {
	select {
	case s.handoffs <- handoff:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *LocalSurface) Close() {
	s.closeOnce.Do(func() {
		close(s.msgs)
	})
}

func (s *LocalSurface) emit(ctx context.Context, msg string) bool {
	select {
	case s.msgs <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

// SurfaceAgent runs the surface side of the checkout protocol: announce
// readiness, receive the handoff, create and let the buyer approve the
// provider order, settle by booking the spot, and report the terminal
// message. Settlement happens here, so `success` implies the booking is
// already confirmed.
type SurfaceAgent struct {
	surface  *LocalSurface
	backend  SurfaceBackend
	checkout Checkout
}

func NewSurfaceAgent(surface *LocalSurface, backend SurfaceBackend, checkout Checkout) *SurfaceAgent {
	return &SurfaceAgent{surface: surface, backend: backend, checkout: checkout}
}

func (a *SurfaceAgent) Run(ctx context.Context) {
	defer a.surface.Close()

	if !a.surface.emit(ctx, MsgReady) {
		return
	}

	var handoff Handoff
	select {
	case handoff = <-a.surface.handoffs:
	case <-ctx.Done():
		return
	}

	orderID, err := a.backend.PayPalCreateOrder(ctx, handoff.TransactionID, handoff.IDToken)
	if err != nil {
		a.fail(ctx, err, fferror.PayPalCreateOrder)
		return
	}

	if err := a.checkout.Approve(ctx, orderID); err != nil {
		if ctx.Err() != nil {
			return
		}
		logrus.WithError(err).Info("buyer did not approve order")
		a.surface.emit(ctx, string(fferror.PaymentFailed))
		return
	}

	if !a.surface.emit(ctx, MsgApproved) {
		return
	}

	if err := a.backend.PayPalBookSpot(ctx, handoff.SpotID, handoff.TransactionID, orderID, handoff.IDToken); err != nil {
		a.fail(ctx, err, fferror.PayPalBookSpot)
		return
	}

	a.surface.emit(ctx, MsgSuccess)
}

// fail relays a business code to the host when the error carries one, and the
// given fallback otherwise.
func (a *SurfaceAgent) fail(ctx context.Context, err error, fallback fferror.Code) {
	logrus.WithError(err).Error("checkout surface call failed")
	code := fferror.CodeOf(err)
	if code == "" {
		code = fallback
	}
	a.surface.emit(ctx, string(code))
}
