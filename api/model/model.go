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
package model

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ReserveSpot holds an offer for the buyer for a limited time.
type ReserveSpot struct {
	SpotID string `json:"spotId"`
}

func (r *ReserveSpot) ValidateReserveSpot() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.SpotID, validation.Required),
	)
}

type FreeSpot struct {
	SpotID string `json:"spotId"`
}

func (f *FreeSpot) ValidateFreeSpot() error {
	return validation.ValidateStruct(f,
		validation.Field(&f.SpotID, validation.Required),
	)
}

type CreateSpot struct {
	QueueName   string  `json:"queueName"`
	SellerPrice int64   `json:"sellerPrice"`
	Progress    int     `json:"progress"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	DownloadURL string  `json:"downloadUrl"`
}

func (s *CreateSpot) ValidateCreateSpot() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.QueueName, validation.Required),
		validation.Field(&s.SellerPrice, validation.Required, validation.Min(1)),
		validation.Field(&s.Progress, validation.Min(0), validation.Max(99)),
	)
}

type UpdateSpot struct {
	SpotID      string `json:"spotId"`
	SellerPrice int64  `json:"sellerPrice"`
	Progress    int    `json:"progress"`
}

func (u *UpdateSpot) ValidateUpdateSpot() error {
	return validation.ValidateStruct(u,
		validation.Field(&u.SpotID, validation.Required),
		validation.Field(&u.SellerPrice, validation.Required, validation.Min(1)),
		validation.Field(&u.Progress, validation.Min(0), validation.Max(99)),
	)
}

type AcceptSuggestedPrice struct {
	SpotID      string `json:"spotId"`
	SellerPrice int64  `json:"sellerPrice"`
}

func (a *AcceptSuggestedPrice) ValidateAcceptSuggestedPrice() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.SpotID, validation.Required),
		validation.Field(&a.SellerPrice, validation.Required, validation.Min(1)),
	)
}

type SuggestPrice struct {
	SpotID     string  `json:"spotId"`
	BuyerPrice float64 `json:"buyerPrice"`
}

func (s *SuggestPrice) ValidateSuggestPrice() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.SpotID, validation.Required),
		validation.Field(&s.BuyerPrice, validation.Required, validation.Min(0.01)),
	)
}

type ReportIssue struct {
	SpotID string `json:"spotId"`
}

func (r *ReportIssue) ValidateReportIssue() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.SpotID, validation.Required),
	)
}

type StripePaymentSheet struct {
	SpotID string `json:"spotId"`
}

func (s *StripePaymentSheet) ValidateStripePaymentSheet() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.SpotID, validation.Required),
	)
}

type StripeBookSpot struct {
	SpotID        string `json:"spotId"`
	TransactionID string `json:"transactionId"`
}

func (s *StripeBookSpot) ValidateStripeBookSpot() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.SpotID, validation.Required),
		validation.Field(&s.TransactionID, validation.Required),
	)
}

type PayPalCreateTransaction struct {
	SpotID string `json:"spotId"`
}

func (p *PayPalCreateTransaction) ValidatePayPalCreateTransaction() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.SpotID, validation.Required),
	)
}

type PayPalCreateOrder struct {
	TransactionID string `json:"transactionId"`
}

func (p *PayPalCreateOrder) ValidatePayPalCreateOrder() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.TransactionID, validation.Required),
	)
}

type PayPalBookSpot struct {
	SpotID        string `json:"spotId"`
	TransactionID string `json:"transactionId"`
	OrderID       string `json:"orderId"`
}

func (p *PayPalBookSpot) ValidatePayPalBookSpot() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.SpotID, validation.Required),
		validation.Field(&p.TransactionID, validation.Required),
		validation.Field(&p.OrderID, validation.Required),
	)
}
