// Package sheets exports escrow activity to Google Sheets.
package sheets

import (
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/escrow-client/internal/common"
)

// DefaultSpreadsheetName names spreadsheets created by the export.
const DefaultSpreadsheetName = "Escrow Report"

// Config holds the configuration for the Google Sheets writer.
type Config struct {
	ClientID           string
	ClientSecret       string
	RefreshToken       string
	ServiceAccountPath string
	SpreadsheetID      string
	SpreadsheetName    string
	TimeZone           string
	BatchSize          int
	RetryAttempts      int
	RetryDelay         time.Duration
	EnableFormatting   bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SpreadsheetName:  DefaultSpreadsheetName,
		EnableFormatting: true,
		TimeZone:         "Africa/Douala",
		BatchSize:        1000,
		RetryAttempts:    3,
		RetryDelay:       time.Second,
	}
}

// Validate reports every problem with the configuration at once. The
// returned error wraps common.ErrInvalidConfig.
func (c *Config) Validate() error {
	oauth := c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
	serviceAccount := c.ServiceAccountPath != ""

	var problems []error
	switch {
	case !oauth && !serviceAccount:
		problems = append(problems, errors.New("no authentication method: set a service account key or OAuth2 client credentials"))
	case oauth && serviceAccount:
		problems = append(problems, errors.New("multiple authentication methods: use either OAuth2 or a service account"))
	}
	if c.BatchSize <= 0 {
		problems = append(problems, fmt.Errorf("batch size must be positive, got %d", c.BatchSize))
	}
	if c.RetryAttempts < 0 || c.RetryDelay < 0 {
		problems = append(problems, fmt.Errorf("retry attempts and delay cannot be negative (%d, %s)", c.RetryAttempts, c.RetryDelay))
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: sheets: %w", common.ErrInvalidConfig, errors.Join(problems...))
}
