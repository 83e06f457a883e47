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

// Package providers abstracts the payment rails the development backend
// talks to. The fakes emulate provider behavior in memory so the full
// booking pipeline runs without external accounts.
package providers

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// PaymentIntent is the provider context backing a card or wallet payment.
type PaymentIntent struct {
	ID           string
	ClientSecret string
}

// Stripe is the slice of the Stripe API the backend uses.
type Stripe interface {
	EnsureCustomer(ctx context.Context, userID string) (string, error)
	EphemeralKey(ctx context.Context, customerID string) (string, error)
	CreatePaymentIntent(ctx context.Context, customerID string, amountCents int64, transactionID string) (PaymentIntent, error)
	Refund(ctx context.Context, paymentIntentID string) error
}

// PayPal is the slice of the PayPal API the backend uses.
type PayPal interface {
	CreateOrder(ctx context.Context, value float64) (string, error)
	CaptureOrder(ctx context.Context, orderID string) (string, error)
	Refund(ctx context.Context, captureID string) error
	Payout(ctx context.Context, sellerID string, amount int64, transactionID string) (string, error)
}

// FakeStripe emulates Stripe in memory. Failure switches let tests exercise
// the unhappy paths.
type FakeStripe struct {
	mu        sync.Mutex
	customers map[string]string
	refunded  map[string]bool

	FailRefunds bool
}

func NewFakeStripe() *FakeStripe {
	return &FakeStripe{
		customers: make(map[string]string),
		refunded:  make(map[string]bool),
	}
}

func (s *FakeStripe) EnsureCustomer(_ context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if customerID, ok := s.customers[userID]; ok {
		return customerID, nil
	}
	customerID := "cus_" + uuid.New().String()
	s.customers[userID] = customerID
	return customerID, nil
}

func (s *FakeStripe) EphemeralKey(_ context.Context, customerID string) (string, error) {
	return fmt.Sprintf("ek_%s_%s", customerID, uuid.New().String()), nil
}

func (s *FakeStripe) CreatePaymentIntent(_ context.Context, _ string, amountCents int64, _ string) (PaymentIntent, error) {
	if amountCents <= 0 {
		return PaymentIntent{}, errors.Errorf("invalid amount %d", amountCents)
	}
	id := "pi_" + uuid.New().String()
	return PaymentIntent{ID: id, ClientSecret: id + "_secret_" + uuid.New().String()}, nil
}

func (s *FakeStripe) Refund(_ context.Context, paymentIntentID string) error {
	if s.FailRefunds {
		return errors.New("stripe refund rejected")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refunded[paymentIntentID] {
		return errors.Errorf("payment intent %s already refunded", paymentIntentID)
	}
	s.refunded[paymentIntentID] = true
	return nil
}

func (s *FakeStripe) Refunded(paymentIntentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refunded[paymentIntentID]
}

type fakeOrder struct {
	value    float64
	captured bool
}

// FakePayPal emulates the PayPal order lifecycle in memory.
type FakePayPal struct {
	mu       sync.Mutex
	orders   map[string]*fakeOrder
	refunded map[string]bool
	payouts  map[string]string

	FailCaptures bool
	FailRefunds  bool
	FailPayouts  bool
}

func NewFakePayPal() *FakePayPal {
	return &FakePayPal{
		orders:   make(map[string]*fakeOrder),
		refunded: make(map[string]bool),
		payouts:  make(map[string]string),
	}
}

func (p *FakePayPal) CreateOrder(_ context.Context, value float64) (string, error) {
	if value <= 0 {
		return "", errors.Errorf("invalid order value %f", value)
	}
	orderID := "order_" + uuid.New().String()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orders[orderID] = &fakeOrder{value: value}
	return orderID, nil
}

func (p *FakePayPal) CaptureOrder(_ context.Context, orderID string) (string, error) {
	if p.FailCaptures {
		return "", errors.New("paypal capture declined")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	order, ok := p.orders[orderID]
	if !ok {
		return "", errors.Errorf("unknown order %s", orderID)
	}
	if order.captured {
		return "", errors.Errorf("order %s already captured", orderID)
	}
	order.captured = true
	return "capture_" + uuid.New().String(), nil
}

func (p *FakePayPal) Refund(_ context.Context, captureID string) error {
	if p.FailRefunds {
		return errors.New("paypal refund rejected")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refunded[captureID] {
		return errors.Errorf("capture %s already refunded", captureID)
	}
	p.refunded[captureID] = true
	return nil
}

func (p *FakePayPal) Payout(_ context.Context, _ string, amount int64, transactionID string) (string, error) {
	if p.FailPayouts {
		return "", errors.New("paypal payout rejected")
	}
	if amount <= 0 {
		return "", errors.Errorf("invalid payout amount %d", amount)
	}
	batchID := "batch_" + uuid.New().String()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payouts[transactionID] = batchID
	return batchID, nil
}

func (p *FakePayPal) Refunded(captureID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refunded[captureID]
}

func (p *FakePayPal) PayoutBatch(transactionID string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.payouts[transactionID]
}
