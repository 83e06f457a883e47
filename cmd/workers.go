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
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
	"github.com/spf13/cobra"

	"github.com/ffraaz/taqo/config"
	"github.com/ffraaz/taqo/internal/jobs"
	redis_db "github.com/ffraaz/taqo/internal/redis-db"
)

func redisClientOpt(conf *config.Configuration) (asynq.RedisClientOpt, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		return asynq.RedisClientOpt{}, fmt.Errorf("error parsing Redis URL: %v", err)
	}
	return asynq.RedisClientOpt{
		Addr:      redisOption.Addr,
		Password:  redisOption.Password,
		DB:        redisOption.DB,
		TLSConfig: redisOption.TLSConfig,
	}, nil
}

// startScheduler enqueues the periodic sweeps: freeing stale reservations,
// refunding buyers, and paying out sellers.
func startScheduler(opt asynq.RedisClientOpt) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(opt, nil)
	for spec, taskType := range jobs.Schedules() {
		if _, err := scheduler.Register(spec, asynq.NewTask(taskType, nil)); err != nil {
			return nil, fmt.Errorf("error registering %s: %v", taskType, err)
		}
	}
	if err := scheduler.Start(); err != nil {
		return nil, err
	}
	return scheduler, nil
}

// workerCommands defines the "workers" command. The workers run the
// settlement sweeps and deliver notifications and emails.
func workerCommands(b *taqoInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start taqo workers",
		Run: func(cmd *cobra.Command, args []string) {
			conf, err := config.Fetch()
			if err != nil {
				log.Fatal("Error fetching config:", err)
			}

			opt, err := redisClientOpt(conf)
			if err != nil {
				log.Fatal(err)
			}

			scheduler, err := startScheduler(opt)
			if err != nil {
				log.Fatal(err)
			}
			defer scheduler.Shutdown()

			srv := asynq.NewServer(opt, asynq.Config{Concurrency: 1})
			worker := jobs.NewWorker(b.store, b.stripe, b.paypal, conf.Booking.ReservationTTL)

			// Serve asynqmon for health checks and queue monitoring.
			h := asynqmon.New(asynqmon.Options{
				RootPath:     "/monitoring",
				RedisConnOpt: opt,
			})
			go func() {
				monitoringAddr := fmt.Sprintf(":%s", conf.Queue.MonitoringPort)
				log.Printf("Asynqmon server listening on %s/monitoring", monitoringAddr)
				if err := http.ListenAndServe(monitoringAddr, h); err != nil {
					log.Fatalf("could not start asynqmon server: %v", err)
				}
			}()

			if err := srv.Run(worker.Mux()); err != nil {
				log.Fatalf("could not run server: %v", err)
			}
		},
	}

	return cmd
}
