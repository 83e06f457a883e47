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
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ffraaz/taqo/config"
	"github.com/ffraaz/taqo/internal/fferror"
	"github.com/ffraaz/taqo/internal/notification"
	"github.com/ffraaz/taqo/model"
)

type stripeEvent struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			Metadata struct {
				TransactionID string `json:"transactionId"`
			} `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

type paypalEvent struct {
	EventType string `json:"event_type"`
	Resource  struct {
		PayoutItem struct {
			SenderItemID string `json:"sender_item_id"`
		} `json:"payout_item"`
	} `json:"resource"`
}

// StripeWebhook ingests payment lifecycle events. The signature is an
// HMAC-SHA256 of the raw body keyed with the server secret.
func (a Api) StripeWebhook(c *gin.Context) {
	body, err := verifiedBody(c, "Stripe-Signature")
	if err != nil {
		c.String(http.StatusBadRequest, string(fferror.InvalidSignature))
		return
	}

	var event stripeEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.String(http.StatusBadRequest, "invalid payload")
		return
	}
	transactionID := event.Data.Object.Metadata.TransactionID

	switch event.Type {
	case "payment_intent.payment_failed":
		a.setTransactionStatus(c, transactionID, model.PaymentFailed)
	case "charge.refunded":
		a.setTransactionStatus(c, transactionID, model.PaymentRefunded)
	default:
		logrus.WithField("type", event.Type).Debug("ignoring stripe event")
	}
	ok(c)
}

func (a Api) PayPalWebhook(c *gin.Context) {
	body, err := verifiedBody(c, "Paypal-Transmission-Sig")
	if err != nil {
		c.String(http.StatusBadRequest, string(fferror.InvalidSignature))
		return
	}

	var event paypalEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.String(http.StatusBadRequest, "invalid payload")
		return
	}
	transactionID := event.Resource.PayoutItem.SenderItemID

	switch event.EventType {
	case "PAYMENT.PAYOUTSBATCH.SUCCESS":
		a.setPayoutStatus(c, transactionID, model.PayoutSucceeded)
	case "PAYMENT.PAYOUTSBATCH.DENIED":
		a.setPayoutStatus(c, transactionID, model.PayoutFailed)
		notification.NotifyError(errors.Errorf("payout denied for transaction %s", transactionID), notification.OpsEvent{
			Event:         "payout_failed",
			TransactionID: transactionID,
		})
	default:
		logrus.WithField("event_type", event.EventType).Debug("ignoring paypal event")
	}
	ok(c)
}

func (a Api) setTransactionStatus(c *gin.Context, transactionID, status string) {
	if transactionID == "" {
		return
	}
	if _, err := a.store.UpdateTransaction(c.Request.Context(), transactionID, func(txn *model.Transaction) {
		txn.Status = status
	}); err != nil {
		logrus.WithError(err).WithField("transaction_id", transactionID).Error("failed to update transaction from webhook")
	}
}

func (a Api) setPayoutStatus(c *gin.Context, transactionID, status string) {
	if transactionID == "" {
		return
	}
	if _, err := a.store.UpdateTransaction(c.Request.Context(), transactionID, func(txn *model.Transaction) {
		txn.PayoutStatus = status
	}); err != nil {
		logrus.WithError(err).WithField("transaction_id", transactionID).Error("failed to update payout status from webhook")
	}
}

func verifiedBody(c *gin.Context, header string) ([]byte, error) {
	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, err
	}
	signature := c.GetHeader(header)
	if !hmac.Equal([]byte(signature), []byte(Sign(body, conf.Server.SecretKey))) {
		return nil, errors.New("invalid webhook signature")
	}
	return body, nil
}

// Sign computes the hex HMAC-SHA256 the webhook endpoints expect.
func Sign(body []byte, secretKey string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
