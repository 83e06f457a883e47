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
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/ffraaz/taqo/api/middleware"
	"github.com/ffraaz/taqo/config"
	"github.com/ffraaz/taqo/internal/fferror"
	"github.com/ffraaz/taqo/internal/jobs"
	"github.com/ffraaz/taqo/internal/providers"
	"github.com/ffraaz/taqo/internal/spotstore"
)

// Enqueuer is the slice of the asynq client the handlers need to hand
// off notifications and emails to the worker pool.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type Api struct {
	store    *spotstore.Store
	stripe   providers.Stripe
	paypal   providers.PayPal
	enqueuer Enqueuer
	router   *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	authorized := router.Group("/", middleware.AuthMiddleware())

	authorized.POST("/create_spot", a.CreateSpot)
	authorized.POST("/reserve_spot", a.ReserveSpot)
	authorized.POST("/free_spot", a.FreeSpot)
	authorized.POST("/update_spot", a.UpdateSpot)
	authorized.POST("/suggest_price", a.SuggestPrice)
	authorized.POST("/accept_suggested_price", a.AcceptSuggestedPrice)
	authorized.POST("/report_issue", a.ReportIssue)
	authorized.POST("/delete_user", a.DeleteUser)

	authorized.POST("/stripe_payment_sheet", a.StripePaymentSheet)
	authorized.POST("/stripe_book_spot", a.StripeBookSpot)
	authorized.POST("/paypal_create_transaction", a.PayPalCreateTransaction)
	authorized.POST("/paypal_create_order", a.PayPalCreateOrder)
	authorized.POST("/paypal_book_spot", a.PayPalBookSpot)

	router.POST("/stripe_webhook", a.StripeWebhook)
	router.POST("/paypal_webhook", a.PayPalWebhook)
	return a.router
}

func NewAPI(store *spotstore.Store, stripe providers.Stripe, paypal providers.PayPal, enqueuer Enqueuer) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(middleware.RateLimitMiddleware(conf))

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	return &Api{store: store, stripe: stripe, paypal: paypal, enqueuer: enqueuer, router: r}
}

// ok terminates a handler the way the mobile client expects: a bare
// "OK" body on success.
func ok(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// fail maps an error onto the wire contract. Business failures carry a
// bare ff_error code with status 400 so the client can match on it;
// everything else is an opaque 500.
func fail(c *gin.Context, err error) {
	if code := fferror.CodeOf(err); code != "" {
		c.String(http.StatusBadRequest, string(code))
		return
	}
	logrus.Error(err)
	c.String(http.StatusInternalServerError, "internal error")
}

func (a Api) notify(payload jobs.NotifyPayload) {
	task, err := jobs.NewNotifyTask(payload)
	if err != nil {
		logrus.Error(err)
		return
	}
	if _, err := a.enqueuer.Enqueue(task); err != nil {
		logrus.Error(err)
	}
}

func (a Api) email(payload jobs.EmailPayload) {
	task, err := jobs.NewEmailTask(payload)
	if err != nil {
		logrus.Error(err)
		return
	}
	if _, err := a.enqueuer.Enqueue(task); err != nil {
		logrus.Error(err)
	}
}
