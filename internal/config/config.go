// Package config defines service configuration and its loading rules.
package config

import "time"

// Config contains process configuration for the tracking service.
type Config struct {
	// Addr configures the HTTP listen address, e.g. ":8081".
	Addr string `koanf:"addr"`

	// DBPath is the sqlite database file.
	DBPath string `koanf:"db_path"`

	// ZonesPath is the zone snapshot JSON file.
	ZonesPath string `koanf:"zones_path"`

	// TolerancePct is the frame-relative positional tolerance used for
	// cross-cycle matching and grace-window lookups.
	TolerancePct float64 `koanf:"tolerance_pct"`

	// GraceWindowMinutes bounds re-attachment to recently deactivated
	// objects after detection flicker.
	GraceWindowMinutes int `koanf:"grace_window_minutes"`

	// AlertThresholdMinutes is the dwell duration past which an object is
	// flagged overtime.
	AlertThresholdMinutes int `koanf:"alert_threshold_minutes"`

	// AlertResendMinutes is the per-object minimum spacing between
	// delivered overtime alerts.
	AlertResendMinutes int `koanf:"alert_resend_minutes"`

	// CaptureIntervalSeconds is the cycle cadence.
	CaptureIntervalSeconds int `koanf:"capture_interval_seconds"`

	// FrameWidth and FrameHeight are the detector image dimensions in
	// pixels.
	FrameWidth  int `koanf:"frame_width"`
	FrameHeight int `koanf:"frame_height"`

	// OperatingStartHour and OperatingEndHour bound the daily window
	// (local time, [start, end)) in which cycles run. Equal values mean
	// always on.
	OperatingStartHour int `koanf:"operating_start_hour"`
	OperatingEndHour   int `koanf:"operating_end_hour"`

	// Site and Location identify this camera's placement in snapshot
	// records.
	Site     int `koanf:"site"`
	Location int `koanf:"location"`

	// WebhookURL receives overtime alert POSTs. Empty disables webhook
	// delivery; alerts are logged instead.
	WebhookURL string `koanf:"webhook_url"`

	// DetectorURL is polled for detections each cycle. Empty means the
	// service only accepts pushed detections on the ingest endpoint.
	DetectorURL string `koanf:"detector_url"`

	// RetentionDays controls purging of old deactivated records. Zero
	// disables purging.
	RetentionDays int `koanf:"retention_days"`
}

// New returns the default configuration.
func New() *Config {
	return &Config{
		Addr:                   ":8081",
		DBPath:                 "palletwatch.db",
		ZonesPath:              "zones.json",
		TolerancePct:           0.15,
		GraceWindowMinutes:     5,
		AlertThresholdMinutes:  30,
		AlertResendMinutes:     15,
		CaptureIntervalSeconds: 60,
		FrameWidth:             1280,
		FrameHeight:            720,
		OperatingStartHour:     0,
		OperatingEndHour:       0,
		Site:                   0,
		Location:               0,
		RetentionDays:          30,
	}
}

// GraceWindow returns the grace window as a duration.
func (c *Config) GraceWindow() time.Duration {
	return time.Duration(c.GraceWindowMinutes) * time.Minute
}

// AlertThreshold returns the overtime threshold as a duration.
func (c *Config) AlertThreshold() time.Duration {
	return time.Duration(c.AlertThresholdMinutes) * time.Minute
}

// AlertResendWindow returns the alert resend window as a duration.
func (c *Config) AlertResendWindow() time.Duration {
	return time.Duration(c.AlertResendMinutes) * time.Minute
}

// CaptureInterval returns the cycle cadence as a duration.
func (c *Config) CaptureInterval() time.Duration {
	return time.Duration(c.CaptureIntervalSeconds) * time.Second
}
