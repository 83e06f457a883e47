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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBookable(t *testing.T) {
	spot := &Spot{Status: StatusAvailable}
	assert.True(t, spot.Bookable())

	for _, status := range []string{StatusReserved, StatusSold, StatusDeleted} {
		spot.Status = status
		assert.False(t, spot.Bookable(), status)
	}

	var missing *Spot
	assert.False(t, missing.Bookable())
	assert.True(t, IsAvailable(missing))
}

func TestDistance_Deterministic(t *testing.T) {
	device := Location{Latitude: 52.5200, Longitude: 13.4050}  // Berlin
	venue := Location{Latitude: 52.5163, Longitude: 13.3777}   // Brandenburg Gate

	first := Distance(device, venue)
	second := Distance(device, venue)
	assert.Equal(t, first, second)
	assert.InDelta(t, 1.9, first, 0.2)
}

func TestDistance_ZeroForSamePoint(t *testing.T) {
	p := Location{Latitude: 48.8566, Longitude: 2.3522}
	assert.Equal(t, 0.0, Distance(p, p))
}

func TestWithDistance(t *testing.T) {
	spot := Spot{
		ID:       "spot_1",
		Location: Location{Latitude: 52.5163, Longitude: 13.3777},
	}
	device := Location{Latitude: 52.5200, Longitude: 13.4050}

	withDistance := spot.WithDistance(device)
	assert.Equal(t, Distance(device, spot.Location), withDistance.Distance)
	// the receiver is untouched
	assert.Zero(t, spot.Distance)
}

func TestSpotValidate(t *testing.T) {
	spot := Spot{
		ID:          "spot_1",
		QueueName:   "Berghain",
		SellerID:    "user_1",
		SellerPrice: 20,
		Progress:    80,
		Status:      StatusAvailable,
	}
	assert.NoError(t, spot.Validate())

	spot.Progress = 120
	assert.Error(t, spot.Validate())

	spot.Progress = 80
	spot.Status = "unknown"
	assert.Error(t, spot.Validate())
}
