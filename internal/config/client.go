package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Veraticus/escrow-client/internal/common"
	"github.com/Veraticus/escrow-client/internal/notify"
	"github.com/Veraticus/escrow-client/internal/payment"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Viper keys.
const (
	KeyBaseURL      = "api.base_url"
	KeyCSRFToken    = "api.csrf_token"
	KeyTimeout      = "api.timeout"
	KeyTokenFile    = "auth.token_file"
	KeyDatabasePath = "database.path"
	KeyLogLevel     = "logging.level"
	KeyLogFormat    = "logging.format"

	KeyPollInterval   = "payment.poll_interval"
	KeyPollAttempts   = "payment.max_attempts"
	KeyPaymentGrace   = "payment.grace"
	KeyNotifyInterval = "notifications.interval"
	KeyTheme          = "browse.theme"
)

// DefaultBaseURL is used when no API root is configured.
const DefaultBaseURL = "http://localhost:8000"

// ClientConfig is everything needed to build an escrow.Client and its
// local state.
type ClientConfig struct {
	BaseURL      string
	CSRFToken    string
	TokenFile    string
	DatabasePath string
	LogLevel     string
	LogFormat    string
	Theme        string
	Timeout      time.Duration

	PollInterval   time.Duration
	PollAttempts   int
	PaymentGrace   time.Duration
	NotifyInterval time.Duration
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	dir := Dir()
	v.SetDefault(KeyBaseURL, DefaultBaseURL)
	v.SetDefault(KeyTimeout, 30*time.Second)
	v.SetDefault(KeyTokenFile, filepath.Join(dir, "token.json"))
	v.SetDefault(KeyDatabasePath, filepath.Join(dir, "escrow.db"))
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeyPollInterval, payment.DefaultInterval)
	v.SetDefault(KeyPollAttempts, payment.DefaultMaxAttempts)
	v.SetDefault(KeyPaymentGrace, payment.DefaultGrace)
	v.SetDefault(KeyNotifyInterval, notify.DefaultInterval)
	v.SetDefault(KeyTheme, "default")
}

// LoadDotEnv loads variables from path into the process environment
// without overriding variables already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// LoadClientConfig reads the client settings from v.
func LoadClientConfig(v *viper.Viper) (*ClientConfig, error) {
	cfg := &ClientConfig{
		BaseURL:      strings.TrimRight(strings.TrimSpace(v.GetString(KeyBaseURL)), "/"),
		CSRFToken:    v.GetString(KeyCSRFToken),
		TokenFile:    ExpandPath(v.GetString(KeyTokenFile)),
		DatabasePath: ExpandPath(v.GetString(KeyDatabasePath)),
		LogLevel:     v.GetString(KeyLogLevel),
		LogFormat:    v.GetString(KeyLogFormat),
		Theme:        v.GetString(KeyTheme),
		Timeout:      v.GetDuration(KeyTimeout),

		PollInterval:   v.GetDuration(KeyPollInterval),
		PollAttempts:   v.GetInt(KeyPollAttempts),
		PaymentGrace:   v.GetDuration(KeyPaymentGrace),
		NotifyInterval: v.GetDuration(KeyNotifyInterval),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that have no usable fallback.
func (c *ClientConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: %s", common.ErrMissingConfig, KeyBaseURL)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %s must be an http(s) URL, got %q", common.ErrInvalidConfig, KeyBaseURL, c.BaseURL)
	}
	if c.TokenFile == "" {
		return fmt.Errorf("%w: %s", common.ErrMissingConfig, KeyTokenFile)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: %s cannot be negative", common.ErrInvalidConfig, KeyTimeout)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: %s must be positive", common.ErrInvalidConfig, KeyPollInterval)
	}
	if c.PollAttempts <= 0 {
		return fmt.Errorf("%w: %s must be positive", common.ErrInvalidConfig, KeyPollAttempts)
	}
	if c.PaymentGrace < 0 || c.NotifyInterval < 0 {
		return fmt.Errorf("%w: payment grace and notification interval cannot be negative", common.ErrInvalidConfig)
	}
	switch c.LogFormat {
	case "", "console", "json":
	default:
		return fmt.Errorf("%w: %s must be console or json", common.ErrInvalidConfig, KeyLogFormat)
	}
	return nil
}
