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
	"math"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Spot statuses as enforced by the backend of record. A spot is bookable only
// while it is StatusAvailable; the reservation pipeline moves it through
// StatusReserved to StatusSold.
const (
	StatusAvailable = "available"
	StatusReserved  = "reserved"
	StatusSold      = "sold"
	StatusDeleted   = "deleted"
)

// Location is a geographic point in degrees.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Spot is a sellable place in a physical queue. The document is owned by the
// backend of record; clients observe it through the subscription channel and
// mutate it only through RPC calls.
type Spot struct {
	ID                 string   `json:"id"`
	QueueName          string   `json:"queueName"`
	SellerID           string   `json:"sellerId"`
	SellerPrice        int64    `json:"sellerPrice"`
	BuyerPrice         float64  `json:"buyerPrice"`
	Progress           int      `json:"progress"`
	Location           Location `json:"location"`
	DownloadURL        string   `json:"downloadUrl"`
	Status             string   `json:"status"`
	CreatedAt          int64    `json:"createdAt"`
	ReservedAt         int64    `json:"reservedAt,omitempty"`
	InterestedBuyerIDs []string `json:"interestedBuyerIds,omitempty"`
	IssueReporterIDs   []string `json:"issueReporterIds,omitempty"`

	// Distance is derived client-side from the device location. Never
	// persisted.
	Distance float64 `json:"distance,omitempty"`
}

// Bookable reports whether a booking attempt may start for the spot.
func (s *Spot) Bookable() bool {
	return s != nil && s.Status == StatusAvailable
}

// IsAvailable mirrors the search screen's notion of availability: a missing
// snapshot is treated as still available so the consumer does not bail out
// before the first delivery.
func IsAvailable(s *Spot) bool {
	return s == nil || s.Status == StatusAvailable
}

// Validate checks the invariants a well-formed spot document satisfies.
func (s Spot) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.ID, validation.Required),
		validation.Field(&s.QueueName, validation.Required),
		validation.Field(&s.SellerID, validation.Required),
		validation.Field(&s.SellerPrice, validation.Min(int64(1))),
		validation.Field(&s.Progress, validation.Min(0), validation.Max(99)),
		validation.Field(&s.Status, validation.Required, validation.In(
			StatusAvailable, StatusReserved, StatusSold, StatusDeleted,
		)),
	)
}

// WithDistance returns a copy of the spot with the great-circle distance from
// the given device location attached.
func (s Spot) WithDistance(device Location) Spot {
	s.Distance = Distance(device, s.Location)
	return s
}

const earthRadiusKm = 6371

// Distance computes the great-circle distance between two points in
// kilometers using the haversine formula. It is a deterministic function of
// its four coordinates.
func Distance(a, b Location) float64 {
	dLat := deg2rad(b.Latitude - a.Latitude)
	dLon := deg2rad(b.Longitude - a.Longitude)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(deg2rad(a.Latitude))*math.Cos(deg2rad(b.Latitude))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

func deg2rad(deg float64) float64 {
	return deg * (math.Pi / 180)
}

// Timestamp returns the number of seconds since the epoch, shifted into the
// past by the given offset.
func Timestamp(ago time.Duration) int64 {
	return time.Now().UTC().Add(-ago).Unix()
}
