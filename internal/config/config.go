package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
)

const defaultHostname = "localhost"

// Transport names accepted in Config.Transport.
const (
	TransportRelay  = "relay"
	TransportDirect = "direct"
	TransportLog    = "log"
)

// ErrMissingRelayHost is returned when the relay transport is selected without SMTP_HOST.
var ErrMissingRelayHost = errors.New("config: smtp.host is required for the relay transport")

// Config is the fully resolved mailer configuration.
type Config struct {
	Transport string       `yaml:"transport" validate:"oneof=relay direct log"`
	Hostname  string       `yaml:"hostname"`
	SMTP      SMTPConfig   `yaml:"smtp"`
	Sender    SenderConfig `yaml:"sender"`
	Retry     RetryConfig  `yaml:"retry"`
	Queue     QueueConfig  `yaml:"queue"`
	DKIM      DKIMConfig   `yaml:"dkim"`
	SpoolDir  string       `yaml:"spoolDir"`
	Debug     bool         `yaml:"debug"`
}

// SMTPConfig describes the relay the mailer submits to.
type SMTPConfig struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port" validate:"gte=1,lte=65535"`
	Username           string `yaml:"username"`
	Password           string `yaml:"password"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
	CAFile             string `yaml:"caFile"`
}

// SenderConfig holds the identity used on every outgoing notification.
type SenderConfig struct {
	Address          string        `yaml:"address" validate:"required,email"`
	Name             string        `yaml:"name"`
	SupportAddress   string        `yaml:"supportAddress" validate:"required,email"`
	AdminAddress     string        `yaml:"adminAddress" validate:"omitempty,email"`
	Brand            string        `yaml:"brand" validate:"required"`
	ResetURL         string        `yaml:"resetURL" validate:"omitempty,url"`
	OTPValidity      time.Duration `yaml:"otpValidity" validate:"gte=0"`
	RecipientDomains []string      `yaml:"recipientDomains"`
}

// RetryConfig bounds the number of delivery attempts per message.
type RetryConfig struct {
	MaxAttempts int           `yaml:"maxAttempts" validate:"gte=1"`
	Backoff     time.Duration `yaml:"backoff" validate:"gte=0"`
}

// QueueConfig sizes the asynchronous dispatch queue.
type QueueConfig struct {
	Workers int `yaml:"workers" validate:"gte=1"`
	Size    int `yaml:"size" validate:"gte=1"`
}

// DKIMConfig enables DKIM signing when Selector is set.
type DKIMConfig struct {
	Selector   string `yaml:"selector"`
	KeyPath    string `yaml:"keyPath"`
	PrivateKey string `yaml:"privateKey"`
	Domain     string `yaml:"domain"`
}

// Default returns the built-in configuration layer.
func Default() Config {
	return Config{
		Transport: TransportRelay,
		SMTP: SMTPConfig{
			Port: 587,
		},
		Sender: SenderConfig{
			Name:        "Difitrades",
			Brand:       "Difitrades",
			ResetURL:    "https://www.difitrades.com/reset-password/newPassword",
			OTPValidity: 5 * time.Minute,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
		},
		Queue: QueueConfig{
			Workers: runtime.NumCPU(),
			Size:    1000,
		},
	}
}

var validate = validator.New()

// Validate checks required fields and fails fast on an unusable configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Transport == TransportRelay && c.SMTP.Host == "" {
		return ErrMissingRelayHost
	}
	return nil
}

// finalize fills values derived from other fields.
func (c *Config) finalize() {
	if c.Retry.MaxAttempts < 1 {
		c.Retry.MaxAttempts = 1
	}
	if c.Hostname == "" {
		c.Hostname = Hostname()
	}
	if c.Sender.SupportAddress == "" {
		c.Sender.SupportAddress = c.Sender.Address
	}
	if c.Sender.AdminAddress == "" {
		c.Sender.AdminAddress = c.Sender.Address
	}
}

// Hostname returns the hostname the mailer should identify as in HELO/EHLO.
// Preference order: SMTP_HOSTNAME env var, system hostname, fallback.
func Hostname() string {
	if env := os.Getenv("SMTP_HOSTNAME"); env != "" {
		return env
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return defaultHostname
}
