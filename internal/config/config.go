package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	ID       string `mapstructure:"id" validate:"required"`
	LogLevel string `mapstructure:"log_level"`

	Postgres Postgres     `mapstructure:"postgres"`
	ERP      RemoteSystem `mapstructure:"erp"`
	MES      RemoteSystem `mapstructure:"mes"`
	Sync     SyncSettings `mapstructure:"sync"`
}

type Postgres struct {
	Address        string `mapstructure:"address" validate:"required,hostname|ip"`
	Port           int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	Username       string `mapstructure:"username" validate:"required"`
	Password       string `mapstructure:"password" validate:"required"`
	DBName         string `mapstructure:"db_name" validate:"required"`
	SSLMode        string `mapstructure:"ssl_mode"`
	MaxConnections int    `mapstructure:"max_connection"`
}

// RemoteSystem holds the transport settings for one external system (ERP or
// MES). The wire protocol itself lives behind internal/remote.
type RemoteSystem struct {
	BaseURL        string `mapstructure:"base_url" validate:"required,url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"gte=0"`
}

type SyncSettings struct {
	RunTimeoutMinutes int `mapstructure:"run_timeout_minutes" validate:"gte=0"`
	DefaultMaxRetries int `mapstructure:"default_max_retries" validate:"gte=0"`
}

const (
	defaultRunTimeoutMinutes = 30
	defaultMaxRetries        = 3
)

func NewConfig() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Sync.RunTimeoutMinutes == 0 {
		c.Sync.RunTimeoutMinutes = defaultRunTimeoutMinutes
	}
	if c.Sync.DefaultMaxRetries == 0 {
		c.Sync.DefaultMaxRetries = defaultMaxRetries
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())

	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		messages = append(messages, formatFieldError(fieldErr))
	}
	return errors.New(strings.Join(messages, ", "))
}

func formatFieldError(fieldErr validator.FieldError) string {
	field := fieldErr.Namespace()
	switch fieldErr.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "hostname|ip":
		return fmt.Sprintf("%s must be a valid hostname or IP address", field)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fieldErr.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fieldErr.Param())
	case "lt":
		return fmt.Sprintf("%s must be less than %s", field, fieldErr.Param())
	default:
		return fmt.Sprintf("%s failed validation on '%s'", field, fieldErr.Tag())
	}
}
