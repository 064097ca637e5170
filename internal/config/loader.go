package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if PALLETWATCH_CONFIG is set
//  3. env (prefix PALLETWATCH_)
func Load() (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("PALLETWATCH_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// Env keys map flat: PALLETWATCH_TOLERANCE_PCT -> tolerance_pct.
	envProvider := env.Provider("PALLETWATCH_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "palletwatch_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load env config: %w", err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Addr == "" {
		return errors.New("addr must not be empty")
	}
	if c.DBPath == "" {
		return errors.New("db_path must not be empty")
	}
	if c.ZonesPath == "" {
		return errors.New("zones_path must not be empty")
	}
	if c.TolerancePct <= 0 || c.TolerancePct >= 1 {
		return fmt.Errorf("tolerance_pct must be in (0, 1), got %v", c.TolerancePct)
	}
	if c.AlertThresholdMinutes <= 0 {
		return fmt.Errorf("alert_threshold_minutes must be positive, got %d", c.AlertThresholdMinutes)
	}
	if c.GraceWindowMinutes < 0 {
		return fmt.Errorf("grace_window_minutes must not be negative, got %d", c.GraceWindowMinutes)
	}
	if c.AlertResendMinutes < 0 {
		return fmt.Errorf("alert_resend_minutes must not be negative, got %d", c.AlertResendMinutes)
	}
	if c.CaptureIntervalSeconds <= 0 {
		return fmt.Errorf("capture_interval_seconds must be positive, got %d", c.CaptureIntervalSeconds)
	}
	if c.FrameWidth <= 0 || c.FrameHeight <= 0 {
		return fmt.Errorf("frame dimensions must be positive, got %dx%d", c.FrameWidth, c.FrameHeight)
	}
	if c.OperatingStartHour < 0 || c.OperatingStartHour > 23 ||
		c.OperatingEndHour < 0 || c.OperatingEndHour > 24 {
		return fmt.Errorf("operating hours out of range: start %d, end %d", c.OperatingStartHour, c.OperatingEndHour)
	}
	return nil
}
