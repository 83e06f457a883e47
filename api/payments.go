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
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ffraaz/taqo/api/middleware"
	apimodel "github.com/ffraaz/taqo/api/model"
	"github.com/ffraaz/taqo/internal/fferror"
	"github.com/ffraaz/taqo/internal/jobs"
	"github.com/ffraaz/taqo/internal/spotstore"
	"github.com/ffraaz/taqo/model"
	"github.com/ffraaz/taqo/payment"
)

func (a Api) StripePaymentSheet(c *gin.Context) {
	var req apimodel.StripePaymentSheet
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "invalid request")
		return
	}
	if err := req.ValidateStripePaymentSheet(); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	ctx := c.Request.Context()
	uid := c.GetString(middleware.UserIDKey)

	customerID, err := a.stripe.EnsureCustomer(ctx, uid)
	if err != nil {
		fail(c, err)
		return
	}
	transaction, err := a.store.CreateTransaction(ctx, req.SpotID, uid, model.ProviderStripe)
	if err != nil {
		fail(c, err)
		return
	}
	ephemeralKey, err := a.stripe.EphemeralKey(ctx, customerID)
	if err != nil {
		fail(c, err)
		return
	}
	intent, err := a.stripe.CreatePaymentIntent(ctx, customerID, int64(transaction.BuyerPrice*100), transaction.ID)
	if err != nil {
		fail(c, err)
		return
	}
	if _, err := a.store.UpdateTransaction(ctx, transaction.ID, func(txn *model.Transaction) {
		txn.PaymentIntentID = intent.ID
	}); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, payment.SheetParams{
		PaymentIntentClientSecret: intent.ClientSecret,
		TransactionID:             transaction.ID,
		EphemeralKey:              ephemeralKey,
		Customer:                  customerID,
	})
}

func (a Api) StripeBookSpot(c *gin.Context) {
	var req apimodel.StripeBookSpot
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "invalid request")
		return
	}
	if err := req.ValidateStripeBookSpot(); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	ctx := c.Request.Context()

	// The buyer has already been charged, so every failure from here on
	// must queue a refund.
	if err := a.ensureSpotIsReserved(ctx, req.SpotID, req.TransactionID, true); err != nil {
		fail(c, err)
		return
	}
	if err := a.assertConsistentPrice(ctx, req.SpotID, req.TransactionID, true); err != nil {
		fail(c, err)
		return
	}
	if err := a.updateAsSuccess(ctx, req.SpotID, req.TransactionID); err != nil {
		fail(c, err)
		return
	}
	ok(c)
}

func (a Api) PayPalCreateTransaction(c *gin.Context) {
	var req apimodel.PayPalCreateTransaction
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "invalid request")
		return
	}
	if err := req.ValidatePayPalCreateTransaction(); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	uid := c.GetString(middleware.UserIDKey)

	transaction, err := a.store.CreateTransaction(c.Request.Context(), req.SpotID, uid, model.ProviderPayPal)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactionId": transaction.ID})
}

func (a Api) PayPalCreateOrder(c *gin.Context) {
	var req apimodel.PayPalCreateOrder
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "invalid request")
		return
	}
	if err := req.ValidatePayPalCreateOrder(); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	ctx := c.Request.Context()

	transaction, err := a.store.GetTransaction(ctx, req.TransactionID)
	if err != nil {
		fail(c, err)
		return
	}
	orderID, err := a.paypal.CreateOrder(ctx, transaction.BuyerPrice)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": orderID})
}

func (a Api) PayPalBookSpot(c *gin.Context) {
	var req apimodel.PayPalBookSpot
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "invalid request")
		return
	}
	if err := req.ValidatePayPalBookSpot(); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	ctx := c.Request.Context()

	// The order is only captured after the spot checks pass, so failures
	// before the capture leave the buyer uncharged.
	if err := a.ensureSpotIsReserved(ctx, req.SpotID, req.TransactionID, false); err != nil {
		fail(c, err)
		return
	}
	if err := a.assertConsistentPrice(ctx, req.SpotID, req.TransactionID, false); err != nil {
		fail(c, err)
		return
	}

	captureID, err := a.paypal.CaptureOrder(ctx, req.OrderID)
	if err != nil {
		logrus.WithError(err).WithField("order_id", req.OrderID).Error("failed to capture order")
		if _, err := a.store.UpdateTransaction(ctx, req.TransactionID, func(txn *model.Transaction) {
			txn.Status = model.PaymentFailed
		}); err != nil {
			logrus.Error(err)
		}
		if err := a.store.Free(ctx, req.SpotID); err != nil {
			logrus.Error(err)
		}
		c.String(http.StatusBadRequest, string(fferror.PaymentFailed))
		return
	}
	if _, err := a.store.UpdateTransaction(ctx, req.TransactionID, func(txn *model.Transaction) {
		txn.CaptureID = captureID
	}); err != nil {
		fail(c, err)
		return
	}

	if err := a.updateAsSuccess(ctx, req.SpotID, req.TransactionID); err != nil {
		fail(c, err)
		return
	}
	ok(c)
}

// ensureSpotIsReserved re-reserves the spot in case the reservation was
// swept while the buyer was in the payment sheet. A spot that is already
// reserved is fine; anything else means the spot went to someone else.
func (a Api) ensureSpotIsReserved(ctx context.Context, spotID, transactionID string, initiateRefund bool) error {
	err := a.store.Reserve(ctx, spotID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, spotstore.ErrUpdate) && !errors.Is(err, spotstore.ErrNotFound) {
		return err
	}

	spot, err := a.store.GetSpot(ctx, spotID)
	if err == nil && spot.Status == model.StatusReserved {
		return nil
	}
	if initiateRefund {
		a.markToRefund(ctx, transactionID)
		return &fferror.RemoteError{Code: fferror.SpotUnavailableCharged, Status: http.StatusBadRequest}
	}
	return &fferror.RemoteError{Code: fferror.SpotUnavailable, Status: http.StatusBadRequest}
}

// assertConsistentPrice guards against the seller changing the price
// between sheet creation and confirmation.
func (a Api) assertConsistentPrice(ctx context.Context, spotID, transactionID string, initiateRefund bool) error {
	spot, err := a.store.GetSpot(ctx, spotID)
	if err != nil {
		return err
	}
	transaction, err := a.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return err
	}
	if spot.BuyerPrice == transaction.BuyerPrice {
		return nil
	}

	if initiateRefund {
		a.markToRefund(ctx, transactionID)
	}
	if err := a.store.Free(ctx, spotID); err != nil {
		logrus.Error(err)
	}
	return &fferror.RemoteError{Code: fferror.InvalidSpotPrice, Status: http.StatusBadRequest}
}

func (a Api) updateAsSuccess(ctx context.Context, spotID, transactionID string) error {
	if err := a.store.MarkSold(ctx, spotID); err != nil {
		if errors.Is(err, spotstore.ErrUpdate) || errors.Is(err, spotstore.ErrNotFound) {
			a.markToRefund(ctx, transactionID)
			return &fferror.RemoteError{Code: fferror.SpotUnavailableCharged, Status: http.StatusBadRequest}
		}
		return err
	}

	transaction, err := a.store.UpdateTransaction(ctx, transactionID, func(txn *model.Transaction) {
		txn.Status = model.TransactionCharged
		txn.PayoutStatus = model.PayoutPending
		txn.BookedAt = time.Now().Unix()
	})
	if err != nil {
		return err
	}

	a.notify(jobs.NotifyPayload{
		UserIDs: []string{transaction.SellerID},
		Title:   transaction.QueueName,
		Body:    fmt.Sprintf("Your spot was sold. You will receive %s shortly.", model.FormatPrice(float64(transaction.SellerPrice))),
		Data:    map[string]string{"spotId": transaction.SpotID},
	})
	return nil
}

func (a Api) markToRefund(ctx context.Context, transactionID string) {
	if _, err := a.store.UpdateTransaction(ctx, transactionID, func(txn *model.Transaction) {
		txn.Status = model.TransactionToRefund
		txn.BookedAt = time.Now().Unix()
	}); err != nil {
		logrus.WithError(err).WithField("transaction_id", transactionID).Error("failed to mark transaction for refund")
	}
}
