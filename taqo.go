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

// Package taqo is the client core of the peer-to-peer queue-spot
// marketplace: the RPC channel to the backend of record, the realtime spot
// watcher, and the booking pipeline that takes a spot from reserved to paid
// to sold.
package taqo

import (
	"github.com/ffraaz/taqo/config"
	"github.com/ffraaz/taqo/payment"
)

// Taqo bundles the client components behind one entry point. Provider
// primitives (wallet, card sheet, checkout surface) are injected by the
// hosting app.
type Taqo struct {
	backend *Backend
	watcher *Watcher
	booker  *Booker
	state   *SharedState
}

// ProviderPrimitives are the platform-side payment surfaces the hosting app
// supplies.
type ProviderPrimitives struct {
	Wallet  payment.WalletConfirmer
	Sheet   payment.SheetPresenter
	Surface payment.Surface
}

func NewTaqo(primitives ProviderPrimitives) (*Taqo, error) {
	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	backend, err := NewBackend()
	if err != nil {
		return nil, err
	}
	watcher, err := NewWatcher()
	if err != nil {
		return nil, err
	}

	state := NewSharedState()
	merchant := conf.Booking.MerchantName
	adapters := []payment.Adapter{
		payment.NewPlatformPay(backend, primitives.Wallet, merchant, conf.Booking.Currency),
		payment.NewCardSheet(backend, primitives.Sheet, merchant),
		payment.NewPayPal(backend, primitives.Surface, state),
	}

	return &Taqo{
		backend: backend,
		watcher: watcher,
		booker:  NewBooker(backend, adapters...),
		state:   state,
	}, nil
}

func (t *Taqo) Backend() *Backend {
	return t.backend
}

func (t *Taqo) Watcher() *Watcher {
	return t.watcher
}

func (t *Taqo) Booker() *Booker {
	return t.booker
}

func (t *Taqo) State() *SharedState {
	return t.state
}
