package config

import (
	"os"

	"github.com/Veraticus/escrow-client/internal/sheets"
	"github.com/spf13/viper"
)

// LoadSheetsConfig loads the export settings. Viper keys (config file or
// ESCROW_SHEETS_* variables) win over the GOOGLE_SHEETS_* variables.
func LoadSheetsConfig(v *viper.Viper) (*sheets.Config, error) {
	config := sheets.DefaultConfig()

	pick := func(key, env string) string {
		if val := v.GetString(key); val != "" {
			return val
		}
		return os.Getenv(env)
	}

	config.ServiceAccountPath = ExpandPath(pick("sheets.service_account_path", "GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH"))
	config.ClientID = pick("sheets.client_id", "GOOGLE_SHEETS_CLIENT_ID")
	config.ClientSecret = pick("sheets.client_secret", "GOOGLE_SHEETS_CLIENT_SECRET")
	config.RefreshToken = pick("sheets.refresh_token", "GOOGLE_SHEETS_REFRESH_TOKEN")
	config.SpreadsheetID = pick("sheets.spreadsheet_id", "GOOGLE_SHEETS_SPREADSHEET_ID")
	if name := pick("sheets.spreadsheet_name", "GOOGLE_SHEETS_SPREADSHEET_NAME"); name != "" {
		config.SpreadsheetName = name
	}
	if tz := v.GetString("sheets.time_zone"); tz != "" {
		config.TimeZone = tz
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}
