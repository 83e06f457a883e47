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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5001"

	// DefaultServiceFee is the markup applied to the seller price to form the
	// buyer price.
	DefaultServiceFee = 0.25

	// DefaultReservationTTL is how long the backend holds a reservation
	// before the sweeper frees it.
	DefaultReservationTTL = 5 * time.Minute
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SecretKey string `json:"secret_key" envconfig:"TAQO_SERVER_SECRET_KEY"`
	Port      string `json:"port" envconfig:"TAQO_SERVER_PORT"`
}

type BackendConfig struct {
	// BaseUrl is the root of the backend of record. RPC methods are POSTed
	// to BaseUrl/<method>.
	BaseUrl string `json:"base_url" envconfig:"TAQO_BACKEND_BASE_URL"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"TAQO_REDIS_DNS"`
}

type PayPalConfig struct {
	// SurfaceUrl addresses the embedded checkout surface loaded by the host.
	SurfaceUrl string `json:"surface_url" envconfig:"TAQO_PAYPAL_SURFACE_URL"`
	ClientId   string `json:"client_id" envconfig:"TAQO_PAYPAL_CLIENT_ID"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"TAQO_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"TAQO_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"TAQO_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type Notification struct {
	Webhook struct {
		Url     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

type QueueConfig struct {
	MonitoringPort string `json:"monitoring_port" envconfig:"TAQO_QUEUE_MONITORING_PORT"`
}

type BookingConfig struct {
	ServiceFee       float64       `json:"service_fee" envconfig:"TAQO_SERVICE_FEE"`
	ReservationTTL   time.Duration `json:"reservation_ttl" envconfig:"TAQO_RESERVATION_TTL"`
	MerchantName     string        `json:"merchant_name" envconfig:"TAQO_MERCHANT_NAME"`
	Currency         string        `json:"currency" envconfig:"TAQO_CURRENCY"`
	MerchantCountry  string        `json:"merchant_country" envconfig:"TAQO_MERCHANT_COUNTRY"`
	GooglePayTestEnv bool          `json:"google_pay_test_env" envconfig:"TAQO_GOOGLE_PAY_TEST_ENV"`
}

type Configuration struct {
	ProjectName  string          `json:"project_name" envconfig:"TAQO_PROJECT_NAME"`
	Server       ServerConfig    `json:"server"`
	Backend      BackendConfig   `json:"backend"`
	Redis        RedisConfig     `json:"redis"`
	PayPal       PayPalConfig    `json:"paypal"`
	Booking      BookingConfig   `json:"booking"`
	Queue        QueueConfig     `json:"queue"`
	Notification Notification    `json:"notification"`
	RateLimit    RateLimitConfig `json:"rate_limit"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}
	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("taqo", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called taqo.json with your config")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		cnf.ProjectName = "Taqo"
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.Backend.BaseUrl = strings.TrimSpace(strings.TrimSuffix(cnf.Backend.BaseUrl, "/"))
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Backend.BaseUrl == "" {
		cnf.Backend.BaseUrl = "http://localhost:" + cnf.Server.Port
	}

	if cnf.Booking.ServiceFee == 0 {
		cnf.Booking.ServiceFee = DefaultServiceFee
	}
	if cnf.Booking.ReservationTTL == 0 {
		cnf.Booking.ReservationTTL = DefaultReservationTTL
	}
	if cnf.Booking.MerchantName == "" {
		cnf.Booking.MerchantName = "Taqo"
	}
	if cnf.Booking.Currency == "" {
		cnf.Booking.Currency = "EUR"
	}
	if cnf.Booking.MerchantCountry == "" {
		cnf.Booking.MerchantCountry = "US"
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = "5555"
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	if mockConfig.Booking.ServiceFee == 0 {
		mockConfig.Booking.ServiceFee = DefaultServiceFee
	}
	if mockConfig.Booking.Currency == "" {
		mockConfig.Booking.Currency = "EUR"
	}
	if mockConfig.Booking.MerchantName == "" {
		mockConfig.Booking.MerchantName = "Taqo"
	}
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
