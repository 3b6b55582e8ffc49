package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML scalars like
// "5s" or "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts back to time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the full service configuration loaded from config.yaml.
type Config struct {
	Database struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port" validate:"min=1,max=65535"`
		User     string `yaml:"user" validate:"required"`
		Password string `yaml:"password" validate:"required"`
		Name     string `yaml:"database" validate:"required"`
	} `yaml:"database"`

	RabbitMQ struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port" validate:"min=1,max=65535"`
		User     string `yaml:"user" validate:"required"`
		Password string `yaml:"password" validate:"required"`
	} `yaml:"rabbitmq"`

	Services struct {
		TrackerServicePort    int `yaml:"tracker_service" validate:"min=1,max=65535"`
		FleetboardServicePort int `yaml:"fleetboard_service" validate:"min=1,max=65535"`
	} `yaml:"services"`

	JWT struct {
		SecretKey string `yaml:"secret_key"`
	} `yaml:"jwt"`

	Tracking struct {
		PublishIntervalHint              Duration `yaml:"publish_interval_hint"`
		SessionIdleTimeout               Duration `yaml:"session_idle_timeout"`
		SubscriptionRevalidationInterval Duration `yaml:"subscription_revalidation_interval"`
	} `yaml:"tracking"`
}

// LoadFromFile loads config from a YAML file, applies defaults, and
// validates required fields.
func LoadFromFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets safe defaults for some fields.
func applyDefaults(cfg *Config) {
	// Database
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}

	// RabbitMQ
	if cfg.RabbitMQ.Host == "" {
		cfg.RabbitMQ.Host = "localhost"
	}
	if cfg.RabbitMQ.Port == 0 {
		cfg.RabbitMQ.Port = 5672
	}

	// Services
	if cfg.Services.TrackerServicePort == 0 {
		cfg.Services.TrackerServicePort = 3001
	}
	if cfg.Services.FleetboardServicePort == 0 {
		cfg.Services.FleetboardServicePort = 3004
	}

	// Tracking cadence
	if cfg.Tracking.PublishIntervalHint == 0 {
		cfg.Tracking.PublishIntervalHint = Duration(5 * time.Second)
	}
	if cfg.Tracking.SessionIdleTimeout == 0 {
		// three missed intervals at the publish cadence
		cfg.Tracking.SessionIdleTimeout = Duration(3 * cfg.Tracking.PublishIntervalHint.Std())
	}
	if cfg.Tracking.SubscriptionRevalidationInterval == 0 {
		cfg.Tracking.SubscriptionRevalidationInterval = Duration(30 * time.Second)
	}

	if cfg.JWT.SecretKey == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			// fallback: time-based bytes
			key = []byte(fmt.Sprintf("%d", time.Now().UnixNano()))
		}
		cfg.JWT.SecretKey = base64.StdEncoding.EncodeToString(key)
	}
}
