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

// Transaction settlement statuses. Created as TransactionPending when a
// payment flow starts; only the backend transitions it afterwards.
const (
	TransactionPending  = "pending"
	TransactionCharged  = "charged_buyer"
	TransactionToRefund = "to_refund"
	PaymentFailed       = "payment_failed"
	PaymentRefunded     = "payment_refunded"
	RefundFailed        = "refund_failed"

	PayoutPending   = "payout_pending"
	PayoutFailed    = "payout_failed"
	PayoutSucceeded = "payout_succeeded"
)

// Payment providers recorded on a transaction.
const (
	ProviderStripe = "stripe"
	ProviderPayPal = "paypal"
)

// Transaction records one sale. It is immutable from the client's point of
// view except for settlement-status transitions made by the backend.
type Transaction struct {
	ID              string  `json:"id"`
	SpotID          string  `json:"spotId"`
	QueueName       string  `json:"queueName"`
	BuyerID         string  `json:"buyerId"`
	SellerID        string  `json:"sellerId"`
	SellerPrice     int64   `json:"sellerPrice"`
	BuyerPrice      float64 `json:"buyerPrice"`
	Status          string  `json:"status"`
	PayoutStatus    string  `json:"payout_status,omitempty"`
	PaymentProvider string  `json:"paymentProvider"`
	PaymentIntentID string  `json:"paymentIntentId,omitempty"`
	CaptureID       string  `json:"captureId,omitempty"`
	CreatedAt       int64   `json:"createdAt"`
	BookedAt        int64   `json:"bookedAt,omitempty"`
}
