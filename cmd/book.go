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

package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/ffraaz/taqo"
	"github.com/ffraaz/taqo/api/middleware"
	"github.com/ffraaz/taqo/config"
	"github.com/ffraaz/taqo/model"
	"github.com/ffraaz/taqo/payment"
)

// The demo primitives approve every payment without user interaction.
type autoWallet struct{}

func (autoWallet) ConfirmPayment(context.Context, string, payment.LineItem) error { return nil }

type autoSheet struct{}

func (autoSheet) InitPaymentSheet(context.Context, payment.SheetConfig) error { return nil }
func (autoSheet) PresentPaymentSheet(context.Context) error                   { return nil }

type autoCheckout struct{}

func (autoCheckout) Approve(context.Context, string) error { return nil }

func demoToken(userID string) (string, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return "", err
	}
	return middleware.SignIDToken(userID, cfg.Server.SecretKey, time.Hour)
}

// bookCommands defines the "book" command: an end-to-end booking demo
// against a running dev server. It lists a spot as the seller, then books it
// as the buyer with the chosen payment method.
func bookCommands() *cobra.Command {
	var method string
	var spotID string

	cmd := &cobra.Command{
		Use:   "book",
		Short: "book a spot against the dev server",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			surface := payment.NewLocalSurface()
			client, err := taqo.NewTaqo(taqo.ProviderPrimitives{
				Wallet:  autoWallet{},
				Sheet:   autoSheet{},
				Surface: surface,
			})
			if err != nil {
				log.Fatal(err)
			}

			sellerToken, err := demoToken("demo_seller")
			if err != nil {
				log.Fatal(err)
			}
			buyerToken, err := demoToken("demo_buyer")
			if err != nil {
				log.Fatal(err)
			}

			if spotID == "" {
				spot, err := client.Backend().CreateSpot(ctx, &model.Spot{
					QueueName:   "Demo Queue",
					SellerPrice: 20,
					Progress:    50,
				}, sellerToken)
				if err != nil {
					log.Fatal(err)
				}
				spotID = spot.ID
				log.Printf("Listed spot %s at %s", spot.ID, model.FormatPrice(spot.BuyerPrice))
			}

			if payment.Method(method) == payment.MethodPayPal {
				agent := payment.NewSurfaceAgent(surface, client.Backend(), autoCheckout{})
				go agent.Run(ctx)
			}

			client.Booker().OnPhase(func(phase taqo.Phase) {
				log.Printf("phase: %s", phase)
			})

			spot := &model.Spot{ID: spotID}
			result := client.Booker().Book(ctx, spot, payment.Method(method), buyerToken)
			if result.Err != nil {
				if msg := result.Err.UserMessage(); msg != "" {
					fmt.Println(msg)
				}
				log.Fatal(result.Err)
			}
			log.Printf("Booked spot %s (transaction %s)", spotID, result.TransactionID)
		},
	}

	cmd.Flags().StringVar(&method, "method", string(payment.MethodPlatformPay), "payment method: platform_pay, credit_card, or paypal")
	cmd.Flags().StringVar(&spotID, "spot", "", "spot to book (a demo spot is listed when empty)")

	return cmd
}
