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
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/ffraaz/taqo/model"
)

// MockSpot builds a plausible available spot for tests and demos.
func MockSpot() *model.Spot {
	sellerPrice := int64(gofakeit.Number(1, 40))
	return &model.Spot{
		ID:          gofakeit.UUID(),
		QueueName:   gofakeit.Company(),
		SellerID:    gofakeit.UUID(),
		SellerPrice: sellerPrice,
		BuyerPrice:  model.AddServiceFee(sellerPrice, 0.25),
		Progress:    gofakeit.Number(0, 90),
		Location: model.Location{
			Latitude:  gofakeit.Latitude(),
			Longitude: gofakeit.Longitude(),
		},
		DownloadURL: gofakeit.URL(),
		Status:      model.StatusAvailable,
		CreatedAt:   time.Now().Unix(),
	}
}
