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
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ffraaz/taqo"
	"github.com/ffraaz/taqo/model"
)

// watchCommands defines the "watch" command: it tails the realtime spot
// feed the way the search screen does.
func watchCommands() *cobra.Command {
	var spotID string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "tail the realtime spot feed",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			watcher, err := taqo.NewWatcher()
			if err != nil {
				log.Fatal(err)
			}

			if spotID != "" {
				watchSpot(ctx, watcher, spotID)
				return
			}
			watchAvailable(ctx, watcher)
		},
	}

	cmd.Flags().StringVar(&spotID, "spot", "", "watch a single spot instead of the available feed")

	return cmd
}

func watchSpot(ctx context.Context, watcher *taqo.Watcher, spotID string) {
	for event := range watcher.WatchSpot(ctx, spotID) {
		switch {
		case event.Err != nil:
			log.Fatal(event.Err)
		case event.Gone:
			log.Printf("spot %s is gone", spotID)
			return
		default:
			log.Printf("spot %s: %s at %s (progress %d%%)",
				event.Spot.ID, event.Spot.Status, model.FormatPrice(event.Spot.BuyerPrice), event.Spot.Progress)
		}
	}
}

func watchAvailable(ctx context.Context, watcher *taqo.Watcher) {
	for event := range watcher.WatchAvailable(ctx) {
		if event.Err != nil {
			log.Fatal(event.Err)
		}
		log.Printf("%d spots available", len(event.Spots))
		for _, spot := range event.Spots {
			log.Printf("  %s: %s at %s", spot.ID, spot.QueueName, model.FormatPrice(spot.BuyerPrice))
		}
	}
}
