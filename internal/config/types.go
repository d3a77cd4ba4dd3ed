package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Config is the on-disk configuration. Files ending in .yaml/.yml are
// accepted too; unknown keys are rejected for both formats.
//
// All durations are Go duration strings (e.g. "300ms", "60s").
type Config struct {
	WebhookURLs URLList          `json:"webhook_urls"`
	Account     AccountConfig    `json:"account"`
	Screenshot  ScreenshotConfig `json:"screenshot"`
	Embed       EmbedConfig      `json:"embed"`
	Trading     TradingConfig    `json:"trading"`
	Health      HealthConfig     `json:"health"`
	Delivery    DeliveryConfig   `json:"delivery"`
	Logging     LoggingConfig    `json:"logging"`
	Storage     *StorageConfig   `json:"storage,omitempty"`
	HTTP        HTTPConfig       `json:"http"`
}

// URLList accepts either a JSON array or a single comma-separated string.
// Entries are trimmed; empty entries are dropped. Order and duplicates are kept.
type URLList []string

func (l *URLList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*l = nil
		return nil
	}
	var raw []string
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		raw = strings.Split(s, ",")
	} else if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("webhook_urls: want list or comma-separated string: %w", err)
	}
	*l = SplitURLs(raw...)
	return nil
}

// SplitURLs flattens comma-separated entries.
func SplitURLs(in ...string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

type AccountConfig struct {
	Name string `json:"name"`
	// SnapshotPath is the YAML/JSON file the host writes account state to.
	SnapshotPath string `json:"snapshot_path"`
}

type ScreenshotConfig struct {
	Dir          string   `json:"dir"`
	SettleDelay  Duration `json:"settle_delay,omitempty"`
	PollAttempts int      `json:"poll_attempts,omitempty"`
	PollInterval Duration `json:"poll_interval,omitempty"`
}

type EmbedConfig struct {
	Color ColorSpec `json:"color"`
}

// ColorSpec is a color name, "#RRGGBB", "0xRRGGBB" or a decimal integer.
// A bare JSON number is accepted as well.
type ColorSpec string

func (c *ColorSpec) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = ColorSpec(s)
		return nil
	}
	if bytes.Equal(b, []byte("null")) {
		*c = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("embed.color: %w", err)
	}
	*c = ColorSpec(n.String())
	return nil
}

type TradingConfig struct {
	Debounce Duration `json:"debounce,omitempty"`
	// AutoSend is the initial auto mode; omitted means enabled.
	AutoSend *bool `json:"auto_send,omitempty"`
}

type HealthConfig struct {
	Interval Duration `json:"interval,omitempty"`
	Timeout  Duration `json:"timeout,omitempty"`
}

type DeliveryConfig struct {
	RatePerSec int      `json:"rate_per_sec,omitempty"`
	Timeout    Duration `json:"timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the optional audit trail of recent events.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./data/audit" }
type StorageConfig struct {
	Driver      string   `json:"driver"`
	Path        string   `json:"path"`
	BusyTimeout Duration `json:"busy_timeout,omitempty"` // sqlite only
}

// HTTPConfig controls the operator API. "off" disables it; empty means
// 127.0.0.1:8765. Pprof mounts /debug/pprof/ and is read at startup only.
type HTTPConfig struct {
	Addr  string `json:"addr"`
	Pprof bool   `json:"pprof,omitempty"`
}
