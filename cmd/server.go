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
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/ffraaz/taqo/api"
	"github.com/ffraaz/taqo/config"
	redis_db "github.com/ffraaz/taqo/internal/redis-db"
)

func initializeRouter(b *taqoInstance, enqueuer *asynq.Client) *gin.Engine {
	return api.NewAPI(b.store, b.stripe, b.paypal, enqueuer).Router()
}

func newAsynqClient(cfg *config.Configuration) (*asynq.Client, error) {
	redisOption, err := redis_db.ParseRedisURL(cfg.Redis.Dns)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}
	return asynq.NewClient(asynq.RedisClientOpt{
		Addr:      redisOption.Addr,
		Password:  redisOption.Password,
		DB:        redisOption.DB,
		TLSConfig: redisOption.TLSConfig,
	}), nil
}

// serverCommands returns the Cobra command that starts the backend-of-record
// dev server.
func serverCommands(b *taqoInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "start taqo server",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Fetch()
			if err != nil {
				log.Fatal(err)
			}

			enqueuer, err := newAsynqClient(cfg)
			if err != nil {
				log.Fatal(err)
			}
			defer func() {
				if err := enqueuer.Close(); err != nil {
					log.Printf("Error closing queue client: %v", err)
				}
			}()

			router := initializeRouter(b, enqueuer)

			log.Printf("Starting server on http://localhost:%s", cfg.Server.Port)
			if err := router.Run(":" + cfg.Server.Port); err != nil {
				log.Fatal(err)
			}
		},
	}

	return cmd
}
