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
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ffraaz/taqo/cache"
	"github.com/ffraaz/taqo/config"
	"github.com/ffraaz/taqo/internal/providers"
	redis_db "github.com/ffraaz/taqo/internal/redis-db"
	"github.com/ffraaz/taqo/internal/spotstore"
)

// Taqo represents the CLI application, encapsulating the root Cobra command.
type Taqo struct {
	cmd *cobra.Command
}

// taqoInstance holds the shared runtime wiring for the subcommands: the
// spot store plus the payment providers backing the dev server.
type taqoInstance struct {
	store  *spotstore.Store
	stripe providers.Stripe
	paypal providers.PayPal
	cnf    *config.Configuration
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

func preRun(app *taqoInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("taqo.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		store, err := setupStore(cnf)
		if err != nil {
			log.Fatal(err)
		}

		app.store = store
		app.stripe = providers.NewFakeStripe()
		app.paypal = providers.NewFakePayPal()
		app.cnf = cnf

		return nil
	}
}

// setupStore connects the spot store to Redis and the snapshot cache.
func setupStore(cfg *config.Configuration) (*spotstore.Store, error) {
	client, err := redis_db.NewRedisClient(cfg.Redis.Dns)
	if err != nil {
		return nil, fmt.Errorf("error connecting to redis: %v", err)
	}
	snapshotCache, err := cache.NewCache()
	if err != nil {
		return nil, fmt.Errorf("error creating cache: %v", err)
	}
	return spotstore.New(client.Client(), snapshotCache), nil
}

// NewCLI creates the command-line interface for the Taqo dev stack.
func NewCLI() *Taqo {
	var configFile string
	b := &taqoInstance{}

	var rootCmd = &cobra.Command{
		Use:   "taqo",
		Short: "Skip-the-line marketplace dev stack",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./taqo.json", "Configuration file for the dev stack")

	rootCmd.PersistentPreRunE = preRun(b)

	rootCmd.AddCommand(serverCommands(b))
	rootCmd.AddCommand(workerCommands(b))
	rootCmd.AddCommand(bookCommands())
	rootCmd.AddCommand(watchCommands())

	return &Taqo{cmd: rootCmd}
}

func (w Taqo) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
