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
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/ffraaz/taqo/api/middleware"
	apimodel "github.com/ffraaz/taqo/api/model"
	"github.com/ffraaz/taqo/config"
	"github.com/ffraaz/taqo/internal/fferror"
	"github.com/ffraaz/taqo/internal/jobs"
	"github.com/ffraaz/taqo/internal/spotstore"
	"github.com/ffraaz/taqo/model"
)

func (a Api) CreateSpot(c *gin.Context) {
	var req apimodel.CreateSpot
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "invalid request")
		return
	}
	if err := req.ValidateCreateSpot(); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	conf, err := config.Fetch()
	if err != nil {
		fail(c, err)
		return
	}
	uid := c.GetString(middleware.UserIDKey)

	// Deleted accounts keep a valid token until it expires; reject them here.
	disabled, err := a.store.IsUserDisabled(c.Request.Context(), uid)
	if err != nil {
		fail(c, err)
		return
	}
	if disabled {
		c.String(http.StatusUnauthorized, "Log in to perform this action.")
		return
	}

	spot := &model.Spot{
		QueueName:   req.QueueName,
		SellerID:    uid,
		SellerPrice: req.SellerPrice,
		Progress:    req.Progress,
		Location:    model.Location{Latitude: req.Latitude, Longitude: req.Longitude},
		DownloadURL: req.DownloadURL,
	}
	if err := a.store.CreateSpot(c.Request.Context(), spot, conf.Booking.ServiceFee); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, spot)
}

func (a Api) ReserveSpot(c *gin.Context) {
	var req apimodel.ReserveSpot
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "invalid request")
		return
	}
	if err := req.ValidateReserveSpot(); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	err := a.store.Reserve(c.Request.Context(), req.SpotID)
	if errors.Is(err, spotstore.ErrUpdate) || errors.Is(err, spotstore.ErrNotFound) {
		c.String(http.StatusBadRequest, string(fferror.SpotUnavailable))
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	ok(c)
}

func (a Api) FreeSpot(c *gin.Context) {
	var req apimodel.FreeSpot
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "invalid request")
		return
	}
	if err := req.ValidateFreeSpot(); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	err := a.store.Free(c.Request.Context(), req.SpotID)
	if errors.Is(err, spotstore.ErrUpdate) || errors.Is(err, spotstore.ErrNotFound) {
		c.String(http.StatusBadRequest, string(fferror.FailedToFreeSpot))
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	ok(c)
}

func (a Api) UpdateSpot(c *gin.Context) {
	var req apimodel.UpdateSpot
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "invalid request")
		return
	}
	if err := req.ValidateUpdateSpot(); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	conf, err := config.Fetch()
	if err != nil {
		fail(c, err)
		return
	}
	uid := c.GetString(middleware.UserIDKey)

	reduced := false
	spot, err := a.store.UpdateSpotIf(c.Request.Context(), req.SpotID,
		func(s *model.Spot) bool {
			return s.Status == model.StatusAvailable && s.SellerID == uid
		},
		func(s *model.Spot) {
			buyerPrice := model.AddServiceFee(req.SellerPrice, conf.Booking.ServiceFee)
			reduced = buyerPrice < s.BuyerPrice
			s.SellerPrice = req.SellerPrice
			s.BuyerPrice = buyerPrice
			s.Progress = req.Progress
		})
	if errors.Is(err, spotstore.ErrUpdate) || errors.Is(err, spotstore.ErrNotFound) {
		c.String(http.StatusBadRequest, string(fferror.SpotUnavailable))
		return
	}
	if err != nil {
		fail(c, err)
		return
	}

	if reduced {
		a.notifyPriceReduction(spot)
	}
	ok(c)
}

func (a Api) AcceptSuggestedPrice(c *gin.Context) {
	var req apimodel.AcceptSuggestedPrice
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "invalid request")
		return
	}
	if err := req.ValidateAcceptSuggestedPrice(); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	conf, err := config.Fetch()
	if err != nil {
		fail(c, err)
		return
	}
	uid := c.GetString(middleware.UserIDKey)

	spot, err := a.store.UpdateSpotIf(c.Request.Context(), req.SpotID,
		func(s *model.Spot) bool {
			return s.Status == model.StatusAvailable && s.SellerID == uid
		},
		func(s *model.Spot) {
			s.SellerPrice = req.SellerPrice
			s.BuyerPrice = model.AddServiceFee(req.SellerPrice, conf.Booking.ServiceFee)
		})
	if errors.Is(err, spotstore.ErrUpdate) || errors.Is(err, spotstore.ErrNotFound) {
		c.String(http.StatusBadRequest, string(fferror.SpotUnavailable))
		return
	}
	if err != nil {
		fail(c, err)
		return
	}

	a.notifyPriceReduction(spot)
	ok(c)
}

func (a Api) SuggestPrice(c *gin.Context) {
	var req apimodel.SuggestPrice
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "invalid request")
		return
	}
	if err := req.ValidateSuggestPrice(); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	conf, err := config.Fetch()
	if err != nil {
		fail(c, err)
		return
	}
	uid := c.GetString(middleware.UserIDKey)

	spot, err := a.store.UpdateSpotIf(c.Request.Context(), req.SpotID,
		func(s *model.Spot) bool {
			return s.Status == model.StatusAvailable
		},
		func(s *model.Spot) {
			for _, id := range s.InterestedBuyerIDs {
				if id == uid {
					return
				}
			}
			s.InterestedBuyerIDs = append(s.InterestedBuyerIDs, uid)
		})
	if errors.Is(err, spotstore.ErrUpdate) || errors.Is(err, spotstore.ErrNotFound) {
		c.String(http.StatusBadRequest, string(fferror.SpotUnavailable))
		return
	}
	if err != nil {
		fail(c, err)
		return
	}

	sellerPrice := model.ToSellerPrice(req.BuyerPrice, conf.Booking.ServiceFee)
	a.notify(jobs.NotifyPayload{
		UserIDs: []string{spot.SellerID},
		Title:   spot.QueueName,
		Body:    fmt.Sprintf("Someone would buy your spot for %s.", model.FormatPrice(float64(sellerPrice))),
		Data:    map[string]string{"spotId": spot.ID},
	})
	ok(c)
}

func (a Api) ReportIssue(c *gin.Context) {
	var req apimodel.ReportIssue
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "invalid request")
		return
	}
	if err := req.ValidateReportIssue(); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	uid := c.GetString(middleware.UserIDKey)

	removed := false
	spot, err := a.store.UpdateSpotIf(c.Request.Context(), req.SpotID,
		func(s *model.Spot) bool {
			return s.Status != model.StatusDeleted
		},
		func(s *model.Spot) {
			for _, id := range s.IssueReporterIDs {
				if id == uid {
					removed = len(s.IssueReporterIDs) >= 2
					return
				}
			}
			s.IssueReporterIDs = append(s.IssueReporterIDs, uid)
			if len(s.IssueReporterIDs) >= 2 {
				s.Status = model.StatusDeleted
				removed = true
			}
		})
	if errors.Is(err, spotstore.ErrUpdate) || errors.Is(err, spotstore.ErrNotFound) {
		c.String(http.StatusBadRequest, string(fferror.SpotUnavailable))
		return
	}
	if err != nil {
		fail(c, err)
		return
	}

	if removed {
		a.notify(jobs.NotifyPayload{
			UserIDs: []string{spot.SellerID},
			Title:   spot.QueueName,
			Body:    "Your spot was removed because several buyers reported an issue with it.",
			Data:    map[string]string{"spotId": spot.ID},
		})
	}
	ok(c)
}

func (a Api) DeleteUser(c *gin.Context) {
	uid := c.GetString(middleware.UserIDKey)

	err := a.store.DisableUser(c.Request.Context(), uid)
	if errors.Is(err, spotstore.ErrUpdate) {
		c.String(http.StatusBadRequest, string(fferror.UserHasActiveOffer))
		return
	}
	if err != nil {
		fail(c, err)
		return
	}

	a.email(jobs.EmailPayload{
		To:      uid,
		Subject: "Account deleted",
		Body:    fmt.Sprintf("User %s requested account deletion.", uid),
	})
	ok(c)
}

func (a Api) notifyPriceReduction(spot *model.Spot) {
	if len(spot.InterestedBuyerIDs) == 0 {
		return
	}
	a.notify(jobs.NotifyPayload{
		UserIDs: spot.InterestedBuyerIDs,
		Title:   spot.QueueName,
		Body:    fmt.Sprintf("The price was reduced to %s.", model.FormatPrice(spot.BuyerPrice)),
		Data:    map[string]string{"spotId": spot.ID},
	})
}
