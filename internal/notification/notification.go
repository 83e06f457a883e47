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

package notification

import (
	"log"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ffraaz/taqo/config"
	"github.com/ffraaz/taqo/internal/request"
)

// OpsEvent is the payload sent to the operations webhook. Money-adjacent
// cleanup failures (stuck rollbacks, failed refunds, failed payouts) end up
// here so an operator can follow up manually.
type OpsEvent struct {
	Event         string `json:"event"`
	SpotID        string `json:"spotId,omitempty"`
	TransactionID string `json:"transactionId,omitempty"`
	Detail        string `json:"detail,omitempty"`
	Time          string `json:"time"`
}

// WebhookNotification posts an event to the configured ops webhook.
func WebhookNotification(event OpsEvent) {
	conf, err := config.Fetch()
	if err != nil {
		log.Println(err)
		return
	}
	if conf.Notification.Webhook.Url == "" {
		return
	}

	event.Time = time.Now().UTC().Format(time.RFC3339)
	payload, err := request.ToJsonReq(&event)
	if err != nil {
		log.Println(err)
		return
	}

	req, err := http.NewRequest("POST", conf.Notification.Webhook.Url, payload)
	if err != nil {
		log.Println(err)
		return
	}
	for key, value := range conf.Notification.Webhook.Headers {
		req.Header.Set(key, value)
	}

	var response map[string]interface{}
	if _, _, err := request.Call(req, &response); err != nil {
		log.Println(err)
	}
}

// NotifyError logs an error locally and reports it to the ops webhook
// without blocking the caller. Failures here are swallowed: the user-visible
// failure is always the original cause, never the reporting failure.
func NotifyError(systemError error, event OpsEvent) {
	go func() {
		logrus.Error(systemError)
		if event.Detail == "" && systemError != nil {
			event.Detail = systemError.Error()
		}
		WebhookNotification(event)
	}()
}
