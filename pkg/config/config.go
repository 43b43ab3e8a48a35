package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Redis    RedisConfig    `mapstructure:"redis" validate:"required"`
	Service  ServiceConfig  `mapstructure:"service" validate:"required"`
	Transfer TransferConfig `mapstructure:"transfer" validate:"required"`
	Daemon   DaemonConfig   `mapstructure:"daemon" validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue" validate:"required"`
	HTTP     HTTPConfig     `mapstructure:"http" validate:"required"`
	Results  ResultsConfig  `mapstructure:"results" validate:"required"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Notify   NotifyConfig   `mapstructure:"notify"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr" validate:"required,hostname_port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"min=0,max=15"`
}

type ServiceConfig struct {
	BaseURL               string `mapstructure:"base_url" validate:"required,url"`
	Token                 string `mapstructure:"token"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds" validate:"min=1,max=600"`
}

type TransferConfig struct {
	IntervalSeconds          int  `mapstructure:"interval_seconds" validate:"min=1"`
	InactivityTimeoutSeconds int  `mapstructure:"inactivity_timeout_seconds" validate:"min=1"`
	Retries                  int  `mapstructure:"retries" validate:"min=-1"`
	VerifyChecksum           bool `mapstructure:"verify_checksum"`
}

type DaemonConfig struct {
	LogLevel    string `mapstructure:"log_level" validate:"required,oneof=debug info warn error fatal"`
	Concurrency int    `mapstructure:"concurrency" validate:"min=1,max=100"`
}

type QueueConfig struct {
	MaxRetry       int `mapstructure:"max_retry" validate:"min=0,max=10"`
	TimeoutMinutes int `mapstructure:"timeout_minutes" validate:"required,min=1,max=10080"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr" validate:"required,hostname_port"`
}

type ResultsConfig struct {
	TTLHours int `mapstructure:"ttl_hours" validate:"min=1,max=8760"`
}

type ArchiveConfig struct {
	Enabled bool      `mapstructure:"enabled"`
	Prefix  string    `mapstructure:"prefix"`
	S3      *S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Endpoint             string `mapstructure:"endpoint" validate:"required,url"`
	Region               string `mapstructure:"region" validate:"required,min=1"`
	Bucket               string `mapstructure:"bucket" validate:"required,min=1"`
	AccessKey            string `mapstructure:"access_key" validate:"required,min=1"`
	SecretKey            string `mapstructure:"secret_key" validate:"required,min=1"`
	MaxRetries           int    `mapstructure:"max_retries" validate:"min=0,max=10"`
	RetryDelaySeconds    int    `mapstructure:"retry_delay_seconds" validate:"min=1,max=30"`
	MaxRetryDelaySeconds int    `mapstructure:"max_retry_delay_seconds" validate:"min=1,max=300"`
	ReadTimeoutSeconds   int    `mapstructure:"read_timeout_seconds" validate:"min=1,max=3600"`
	MaxConcurrentUploads int    `mapstructure:"max_concurrent_uploads" validate:"min=1,max=100"`
}

type NotifyConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	WebhookURL      string `mapstructure:"webhook_url" validate:"omitempty,url"`
	DebounceMinutes int    `mapstructure:"debounce_minutes" validate:"min=1"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds" validate:"min=1,max=300"`
}

func LoadFromFile(filename string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(filename)
	v.SetConfigType("toml")

	v.SetEnvPrefix("GRIDSYNC")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("service.request_timeout_seconds", 60)

	v.SetDefault("transfer.interval_seconds", 60)
	v.SetDefault("transfer.inactivity_timeout_seconds", 24*60*60) // 1 day
	v.SetDefault("transfer.retries", 10)
	v.SetDefault("transfer.verify_checksum", true)

	v.SetDefault("daemon.log_level", "info")
	v.SetDefault("daemon.concurrency", 4)

	v.SetDefault("queue.max_retry", 3)
	v.SetDefault("queue.timeout_minutes", 60*24) // 1 day

	v.SetDefault("http.addr", ":8080")

	v.SetDefault("results.ttl_hours", 7*24)

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.prefix", "transfers/")
	v.SetDefault("archive.s3.region", "us-east-1")
	v.SetDefault("archive.s3.max_retries", 3)
	v.SetDefault("archive.s3.retry_delay_seconds", 2)
	v.SetDefault("archive.s3.max_retry_delay_seconds", 30)
	v.SetDefault("archive.s3.read_timeout_seconds", 60)
	v.SetDefault("archive.s3.max_concurrent_uploads", 10)

	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.debounce_minutes", 5)
	v.SetDefault("notify.timeout_seconds", 30)
}

func validateConfig(config *Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())

	// Archive S3 settings are only meaningful when archiving is enabled.
	if err := validate.StructExcept(config, "Archive.S3"); err != nil {
		return err
	}

	// The s3 defaults always materialize the struct, so the required tags
	// report whatever the user left out.
	if config.Archive.Enabled {
		if err := validate.Struct(config.Archive.S3); err != nil {
			return err
		}
	}

	if config.Notify.Enabled && config.Notify.WebhookURL == "" {
		return fmt.Errorf("webhook_url is required when notify is enabled")
	}

	return nil
}
