package notify

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"mailnotify/internal/config"
)

// ErrInvalidSettings is returned by NewComposer for unusable settings.
var ErrInvalidSettings = errors.New("notify: invalid settings")

const defaultOTPValidity = 5 * time.Minute

// Settings is the sender identity shared by every notice.
type Settings struct {
	SenderAddress  string `validate:"required,email"`
	SenderName     string
	SupportAddress string `validate:"required,email"`
	// AdminAddress receives admin alerts; defaults to SenderAddress.
	AdminAddress string `validate:"omitempty,email"`
	BrandName    string `validate:"required"`
	ResetURL     string `validate:"omitempty,url"`
	OTPValidity  time.Duration
	// RecipientDomains restricts recipients when non-empty.
	RecipientDomains []string
}

// SettingsFromConfig maps the loaded sender configuration.
func SettingsFromConfig(cfg config.SenderConfig) Settings {
	return Settings{
		SenderAddress:    cfg.Address,
		SenderName:       cfg.Name,
		SupportAddress:   cfg.SupportAddress,
		AdminAddress:     cfg.AdminAddress,
		BrandName:        cfg.Brand,
		ResetURL:         cfg.ResetURL,
		OTPValidity:      cfg.OTPValidity,
		RecipientDomains: cfg.RecipientDomains,
	}
}

var validate = validator.New()

func (s Settings) validate() (Settings, error) {
	if err := validate.Struct(s); err != nil {
		return s, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if s.AdminAddress == "" {
		s.AdminAddress = s.SenderAddress
	}
	if s.OTPValidity <= 0 {
		s.OTPValidity = defaultOTPValidity
	}
	return s, nil
}
