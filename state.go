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

import "sync"

// SharedState holds the cross-screen observable flags. Each flag has one
// writer at a time; readers poll on render. The zero value is not ready,
// use NewSharedState.
type SharedState struct {
	mu sync.Mutex

	payPalSheetDismissable bool
	editable               bool

	priceReductionBannerVisible bool
	priceReductionBannerText    string

	priceReductionAcceptedBannerVisible bool
}

func NewSharedState() *SharedState {
	return &SharedState{payPalSheetDismissable: true}
}

// SetDismissable guards the embedded checkout surface against dismissal
// while a settlement is in flight.
func (s *SharedState) SetDismissable(dismissable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payPalSheetDismissable = dismissable
}

func (s *SharedState) Dismissable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payPalSheetDismissable
}

func (s *SharedState) SetEditable(editable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editable = editable
}

func (s *SharedState) Editable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editable
}

// ShowPriceReductionBanner surfaces a buyer's price suggestion to the seller.
func (s *SharedState) ShowPriceReductionBanner(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.priceReductionBannerVisible = true
	s.priceReductionBannerText = text
}

func (s *SharedState) HidePriceReductionBanner() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.priceReductionBannerVisible = false
	s.priceReductionBannerText = ""
}

func (s *SharedState) PriceReductionBanner() (visible bool, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.priceReductionBannerVisible, s.priceReductionBannerText
}

// ShowPriceReductionAcceptedBanner tells the buyer their suggestion went
// through.
func (s *SharedState) ShowPriceReductionAcceptedBanner() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.priceReductionAcceptedBannerVisible = true
}

func (s *SharedState) HidePriceReductionAcceptedBanner() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.priceReductionAcceptedBannerVisible = false
}

func (s *SharedState) PriceReductionAcceptedBannerVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.priceReductionAcceptedBannerVisible
}
