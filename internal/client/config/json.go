package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/reviewdesk/internal/flagx"
	"github.com/dmitrijs2005/reviewdesk/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. After
// parsing, set values are copied into the runtime Config.
type JsonConfig struct {
	ServerURL      string         `json:"server_url"`
	DataDir        string         `json:"data_dir"`
	RequestTimeout timex.Duration `json:"request_timeout"`
	LogLevel       string         `json:"log_level"`

	RefreshLeadTime       timex.Duration `json:"refresh_lead_time"`
	SafetyRefreshInterval timex.Duration `json:"safety_refresh_interval"`
	MinRefreshDelay       timex.Duration `json:"min_refresh_delay"`
	ActivityCheckInterval timex.Duration `json:"activity_check_interval"`
	MaxInactivity         timex.Duration `json:"max_inactivity"`
}

// parseJson overlays cfg with the fields present in the JSON config file.
// No file configured means no changes.
func parseJson(cfg *Config) error {
	path := flagx.ConfigFilePath()
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&cfg.ServerURL, jc.ServerURL)
	setString(&cfg.DataDir, jc.DataDir)
	setString(&cfg.LogLevel, jc.LogLevel)
	setDuration(&cfg.RequestTimeout, jc.RequestTimeout)
	setDuration(&cfg.RefreshLeadTime, jc.RefreshLeadTime)
	setDuration(&cfg.SafetyRefreshInterval, jc.SafetyRefreshInterval)
	setDuration(&cfg.MinRefreshDelay, jc.MinRefreshDelay)
	setDuration(&cfg.ActivityCheckInterval, jc.ActivityCheckInterval)
	setDuration(&cfg.MaxInactivity, jc.MaxInactivity)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
