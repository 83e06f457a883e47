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

import (
	"context"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ffraaz/taqo/config"
	"github.com/ffraaz/taqo/internal/fferror"
	"github.com/ffraaz/taqo/internal/request"
	"github.com/ffraaz/taqo/model"
	"github.com/ffraaz/taqo/payment"
)

// Backend is the remote procedure channel to the backend of record. Each
// call carries a bearer token and a method-specific payload and performs
// exactly one delivery attempt; retries are the caller's responsibility.
type Backend struct {
	baseURL string
}

// NewBackend builds the RPC channel from the loaded configuration.
func NewBackend() (*Backend, error) {
	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	return &Backend{baseURL: conf.Backend.BaseUrl}, nil
}

// methodURL resolves the endpoint for a method. Hosted deployments address
// functions by dashed name through a `method_name` placeholder in the base
// URL; local deployments append the method as a path segment.
func (b *Backend) methodURL(method string) string {
	if strings.Contains(b.baseURL, "method_name") {
		return strings.Replace(b.baseURL, "method_name", strings.ReplaceAll(method, "_", "-"), 1)
	}
	return b.baseURL + "/" + method
}

// Call POSTs a payload to the named method. A non-2xx reply whose body is a
// structured ff_error code surfaces as *fferror.RemoteError; any other
// failure is a transport error. On success the response body is decoded
// into out when out is non-nil.
func (b *Backend) Call(ctx context.Context, method string, payload interface{}, token string, out interface{}) error {
	body, err := request.ToJsonReq(payload)
	if err != nil {
		return errors.Wrapf(err, "encoding %s payload", method)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", b.methodURL(method), body)
	if err != nil {
		return errors.Wrapf(err, "building %s request", method)
	}
	req.Header.Set("Authorization", request.BearerAuth(token))

	resp, respBody, err := request.Call(req, out)
	if err != nil {
		return errors.Wrapf(err, "calling %s", method)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	if code := fferror.Parse(string(respBody)); code != "" {
		return &fferror.RemoteError{Code: code, Status: resp.StatusCode}
	}

	logrus.WithFields(logrus.Fields{
		"method": method,
		"status": resp.StatusCode,
	}).Error("rpc call failed without structured error")
	return errors.Errorf("%s failed with status %d", method, resp.StatusCode)
}

type spotIDPayload struct {
	SpotID string `json:"spotId"`
}

// CreateSpot lists a new spot for the calling seller and returns the stored
// document with its derived buyer price.
func (b *Backend) CreateSpot(ctx context.Context, spot *model.Spot, token string) (*model.Spot, error) {
	payload := struct {
		QueueName   string  `json:"queueName"`
		SellerPrice int64   `json:"sellerPrice"`
		Progress    int     `json:"progress"`
		Latitude    float64 `json:"latitude"`
		Longitude   float64 `json:"longitude"`
		DownloadURL string  `json:"downloadUrl"`
	}{spot.QueueName, spot.SellerPrice, spot.Progress, spot.Location.Latitude, spot.Location.Longitude, spot.DownloadURL}
	var out model.Spot
	if err := b.Call(ctx, "create_spot", payload, token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReserveSpot asks the backend to hold the spot for this buyer. Failure is
// routine: another buyer may have won the race, and the backend's atomic
// transition is the sole arbiter.
func (b *Backend) ReserveSpot(ctx context.Context, spotID, token string) error {
	return b.Call(ctx, "reserve_spot", spotIDPayload{SpotID: spotID}, token, nil)
}

// FreeSpot releases a held reservation. Best-effort: the backend frees stale
// reservations on its own after a timeout.
func (b *Backend) FreeSpot(ctx context.Context, spotID, token string) error {
	return b.Call(ctx, "free_spot", spotIDPayload{SpotID: spotID}, token, nil)
}

// StripePaymentSheet creates a pending transaction and returns the provider
// context for the wallet and card-sheet payment variants.
func (b *Backend) StripePaymentSheet(ctx context.Context, spotID, token string) (payment.SheetParams, error) {
	var params payment.SheetParams
	err := b.Call(ctx, "stripe_payment_sheet", spotIDPayload{SpotID: spotID}, token, &params)
	return params, err
}

// StripeBookSpot confirms the booking after a successful Stripe payment.
func (b *Backend) StripeBookSpot(ctx context.Context, spotID, transactionID, token string) error {
	payload := struct {
		SpotID        string `json:"spotId"`
		TransactionID string `json:"transactionId"`
	}{spotID, transactionID}
	return b.Call(ctx, "stripe_book_spot", payload, token, nil)
}

// PayPalCreateTransaction creates a pending transaction for the embedded
// checkout variant and returns its identifier.
func (b *Backend) PayPalCreateTransaction(ctx context.Context, spotID, token string) (string, error) {
	var out struct {
		TransactionID string `json:"transactionId"`
	}
	err := b.Call(ctx, "paypal_create_transaction", spotIDPayload{SpotID: spotID}, token, &out)
	return out.TransactionID, err
}

// PayPalCreateOrder creates a provider order for a pending transaction. In
// production this is invoked by the embedded checkout surface, not the host.
func (b *Backend) PayPalCreateOrder(ctx context.Context, transactionID, token string) (string, error) {
	payload := struct {
		TransactionID string `json:"transactionId"`
	}{transactionID}
	var out struct {
		ID string `json:"id"`
	}
	err := b.Call(ctx, "paypal_create_order", payload, token, &out)
	return out.ID, err
}

// PayPalBookSpot captures the approved order and confirms the booking. Also
// surface-invoked: by the time the host learns about it, settlement and
// confirmation are already done.
func (b *Backend) PayPalBookSpot(ctx context.Context, spotID, transactionID, orderID, token string) error {
	payload := struct {
		SpotID        string `json:"spotId"`
		TransactionID string `json:"transactionId"`
		OrderID       string `json:"orderId"`
	}{spotID, transactionID, orderID}
	return b.Call(ctx, "paypal_book_spot", payload, token, nil)
}

// UpdateSpot edits the seller's progress and asking price.
func (b *Backend) UpdateSpot(ctx context.Context, spotID string, progress int, sellerPrice int64, token string) error {
	payload := struct {
		SpotID      string `json:"spotId"`
		Progress    int    `json:"progress"`
		SellerPrice int64  `json:"sellerPrice"`
	}{spotID, progress, sellerPrice}
	return b.Call(ctx, "update_spot", payload, token, nil)
}

// SuggestPrice records the buyer's interest at a lower price and notifies
// the seller.
func (b *Backend) SuggestPrice(ctx context.Context, spotID string, buyerPrice float64, token string) error {
	payload := struct {
		SpotID     string  `json:"spotId"`
		BuyerPrice float64 `json:"buyerPrice"`
	}{spotID, buyerPrice}
	return b.Call(ctx, "suggest_price", payload, token, nil)
}

// AcceptSuggestedPrice lowers the asking price to a buyer's suggestion.
func (b *Backend) AcceptSuggestedPrice(ctx context.Context, spotID string, sellerPrice int64, token string) error {
	payload := struct {
		SpotID      string `json:"spotId"`
		SellerPrice int64  `json:"sellerPrice"`
	}{spotID, sellerPrice}
	return b.Call(ctx, "accept_suggested_price", payload, token, nil)
}

// ReportIssue flags a spot whose seller cannot be found. The backend deletes
// the spot after a second distinct report.
func (b *Backend) ReportIssue(ctx context.Context, spotID, token string) error {
	return b.Call(ctx, "report_issue", spotIDPayload{SpotID: spotID}, token, nil)
}

// DeleteUser disables the calling account. Rejected while the user still has
// an open offer.
func (b *Backend) DeleteUser(ctx context.Context, token string) error {
	return b.Call(ctx, "delete_user", struct{}{}, token, nil)
}
