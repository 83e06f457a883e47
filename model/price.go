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
	"strings"

	"github.com/shopspring/decimal"
)

// AddServiceFee derives the buyer price from the seller price. Spots below
// 4 get a flat markup of 1 so very cheap spots stay worth listing.
func AddServiceFee(sellerPrice int64, fee float64) float64 {
	if sellerPrice < 4 {
		return float64(sellerPrice + 1)
	}
	price := decimal.NewFromInt(sellerPrice).
		Mul(decimal.NewFromFloat(1).Add(decimal.NewFromFloat(fee)))
	out, _ := price.Float64()
	return out
}

// ToSellerPrice inverts AddServiceFee for a suggested buyer price, rounding
// down to whole units.
func ToSellerPrice(buyerPrice float64, fee float64) int64 {
	price := decimal.NewFromFloat(buyerPrice).
		Div(decimal.NewFromFloat(1).Add(decimal.NewFromFloat(fee)))
	return price.Floor().IntPart()
}

// FormatPrice renders a price the way the app shows it, for example
// "12,50 €".
func FormatPrice(price float64) string {
	s := decimal.NewFromFloat(price).StringFixed(2)
	return strings.Replace(s, ".", ",", 1) + " €"
}
