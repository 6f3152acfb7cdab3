package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	NewRelic  NewRelicConfig
	Twilio    TwilioConfig
	Firebase  FirebaseConfig
	Maps      MapsConfig
	Predictor PredictorConfig
	RabbitMQ  RabbitMQConfig
	Dispatch  DispatchConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string        `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout  time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host        string `envconfig:"DB_HOST" default:"localhost"`
	Port        string `envconfig:"DB_PORT" default:"5432"`
	User        string `envconfig:"DB_USER" default:"postgres"`
	Password    string `envconfig:"DB_PASSWORD" default:"postgres"`
	DBName      string `envconfig:"DB_NAME" default:"ambulance_dispatch"`
	SSLMode     string `envconfig:"DB_SSLMODE" default:"disable"`
	AutoMigrate bool   `envconfig:"DB_AUTO_MIGRATE" default:"true"`
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string `envconfig:"NEW_RELIC_APP_NAME" default:"ambulance-dispatch-service"`
	LicenseKey string `envconfig:"NEW_RELIC_LICENSE_KEY"`
	Enabled    bool   `envconfig:"NEW_RELIC_ENABLED" default:"false"`
}

// TwilioConfig holds the SMS provider configuration.
type TwilioConfig struct {
	AccountSID        string `envconfig:"TWILIO_ACCOUNT_SID"`
	AuthToken         string `envconfig:"TWILIO_AUTH_TOKEN"`
	PhoneNumber       string `envconfig:"TWILIO_PHONE_NUMBER"`
	ValidateSignature bool   `envconfig:"TWILIO_VALIDATE_SIGNATURE" default:"true"`
	PublicBaseURL     string `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:8080"` // externally visible URL used for callbacks and signatures
}

// Enabled reports whether SMS credentials are configured.
func (c TwilioConfig) Enabled() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.PhoneNumber != ""
}

// FirebaseConfig holds push notification configuration.
type FirebaseConfig struct {
	CredentialsFile string `envconfig:"FIREBASE_CREDENTIALS_FILE"`
	ProjectID       string `envconfig:"FIREBASE_PROJECT_ID"`
}

// MapsConfig holds Google Maps configuration.
type MapsConfig struct {
	APIKey string `envconfig:"GOOGLE_MAPS_API_KEY"`
}

// PredictorConfig holds the ambulance predictor client configuration.
type PredictorConfig struct {
	URL     string        `envconfig:"PREDICTOR_URL" default:"http://localhost:5000"`
	Timeout time.Duration `envconfig:"PREDICTOR_TIMEOUT" default:"5s"`
}

// RabbitMQConfig holds event publishing configuration.
type RabbitMQConfig struct {
	URL      string `envconfig:"RABBITMQ_URL"`
	Exchange string `envconfig:"RABBITMQ_EXCHANGE" default:"dispatch.events"`
}

// DispatchConfig holds dispatch behaviour settings.
type DispatchConfig struct {
	Store          string        `envconfig:"DISPATCH_STORE" default:"postgres"` // postgres or memory
	Selector       string        `envconfig:"DISPATCH_SELECTOR" default:"fleet"` // fleet, predictor or chain
	NotifyChannel  string        `envconfig:"NOTIFY_CHANNEL" default:"sms"`      // sms, push, all or log
	MaxAttempts    int           `envconfig:"NOTIFY_MAX_ATTEMPTS" default:"3"`
	BaseDelay      time.Duration `envconfig:"NOTIFY_BASE_DELAY" default:"1s"`
	MaxDelay       time.Duration `envconfig:"NOTIFY_MAX_DELAY" default:"30s"`
	PendingTimeout time.Duration `envconfig:"DISPATCH_PENDING_TIMEOUT" default:"0s"`
	SearchRadiusKm float64       `envconfig:"DISPATCH_SEARCH_RADIUS_KM" default:"10"`
	CountryCode    string        `envconfig:"DISPATCH_COUNTRY_CODE" default:"91"`
}

// Load loads configuration from environment variables, reading a .env file
// first when one is present. Malformed values are reported, not defaulted.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("failed to read .env: %v", err)
	}

	var cfg Config
	sections := []any{
		&cfg.Server, &cfg.Database, &cfg.Redis, &cfg.NewRelic, &cfg.Twilio,
		&cfg.Firebase, &cfg.Maps, &cfg.Predictor, &cfg.RabbitMQ, &cfg.Dispatch,
	}
	for _, section := range sections {
		if err := envconfig.Process("", section); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	return &cfg, nil
}
