// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package config loads the agent's TOML device configuration (SPEC_FULL.md
// §3.1), adapted from the teacher's pkg/config/config.go: mandatory keys are
// validated at load time, optional keys get a default and a range check
// with a logged warning when out of range.
package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"time"

	"log/slog"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

const (
	ServerBaseURLKey     = "tls.server"
	HardwareIDKey        = "provision.primary_ecu_hardware_id"
	DeviceTagKey         = "pacman.tags"
	StorageDirKey        = "storage.path"
	StorageWatermarkKey  = "pacman.storage_watermark"
	SecondaryBankPathKey = "ota.secondary_bank_path"
	PrimaryBankPathKey   = "ota.primary_bank_path"
	BootStatePathKey     = "ota.boot_state_path"
	PollingSecondsKey    = "uptane.polling_seconds"

	StorageDefaultDir            = "/var/sota"
	SettingsDBDefaultFilename    = "settings.db"
	EventsDBDefaultFilename      = "events.db"
	StorageWatermarkDefault      = 95
	MinStorageWatermark          = 20
	MaxStorageWatermark          = 99
	PollingSecondsDefault        = 300
	SecondaryBankDefaultFilename = "slot1.img"
	PrimaryBankDefaultFilename   = "slot0.img"
	BootStateDefaultFilename     = "boot_state.json"
)

// Config is the agent's ambient configuration, loaded once at process
// start and read by every component (SPEC_FULL.md §3.1).
type Config struct {
	tree             *toml.Tree
	gatewayBaseURL   *url.URL
	storageWatermark uint
}

// Load parses the TOML file at path and validates it.
func Load(path string) (*Config, error) {
	tree, err := toml.LoadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: failed to load %q", path)
	}
	return fromTree(tree)
}

func fromTree(tree *toml.Tree) (*Config, error) {
	cfg := &Config{tree: tree}

	rawURL, ok := tree.Get(ServerBaseURLKey).(string)
	if !ok || rawURL == "" {
		return nil, errors.Errorf("config: missing required key %q (device gateway base URL)", ServerBaseURLKey)
	}
	gwURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrapf(err, "config: invalid %q", ServerBaseURLKey)
	}
	cfg.gatewayBaseURL = gwURL

	cfg.storageWatermark = StorageWatermarkDefault
	if raw := tree.Get(StorageWatermarkKey); raw != nil {
		if watermark, err := toInt(raw); err == nil {
			if watermark < MinStorageWatermark || watermark > MaxStorageWatermark {
				slog.Warn("storage usage watermark out of range; using default", "value", watermark, "default", StorageWatermarkDefault)
			} else {
				cfg.storageWatermark = uint(watermark)
			}
		} else {
			slog.Warn("invalid storage usage watermark value; using default", "value", raw, "default", StorageWatermarkDefault)
		}
	}

	return cfg, nil
}

func toInt(v any) (int, error) {
	switch t := v.(type) {
	case int64:
		return int(t), nil
	case string:
		return strconv.Atoi(t)
	default:
		return 0, fmt.Errorf("config: unexpected type %T", v)
	}
}

func (c *Config) getString(key, def string) string {
	if v, ok := c.tree.Get(key).(string); ok && v != "" {
		return v
	}
	return def
}

// GatewayBaseURL returns the device gateway's base URL.
func (c *Config) GatewayBaseURL() *url.URL {
	return c.gatewayBaseURL
}

// HardwareID returns the device's hardware id, if configured.
func (c *Config) HardwareID() string {
	return c.getString(HardwareIDKey, "")
}

// DeviceTag returns the device's pacman tag, used as a device gateway
// request header.
func (c *Config) DeviceTag() string {
	return c.getString(DeviceTagKey, "")
}

// StorageDir returns the directory the agent persists state under.
func (c *Config) StorageDir() string {
	return c.getString(StorageDirKey, StorageDefaultDir)
}

// SettingsDBPath returns the path to the settings SQLite database.
func (c *Config) SettingsDBPath() string {
	return filepath.Join(c.StorageDir(), SettingsDBDefaultFilename)
}

// EventsDBPath returns the path to the event outbox SQLite database.
func (c *Config) EventsDBPath() string {
	return filepath.Join(c.StorageDir(), EventsDBDefaultFilename)
}

// SecondaryBankPath returns the inactive flash bank's path (or, on a
// hosted build, the file standing in for it).
func (c *Config) SecondaryBankPath() string {
	return c.getString(SecondaryBankPathKey, filepath.Join(c.StorageDir(), SecondaryBankDefaultFilename))
}

// PrimaryBankPath returns the active flash bank's path.
func (c *Config) PrimaryBankPath() string {
	return c.getString(PrimaryBankPathKey, filepath.Join(c.StorageDir(), PrimaryBankDefaultFilename))
}

// BootStatePath returns the bootloader adapter's simulated state file path.
func (c *Config) BootStatePath() string {
	return c.getString(BootStatePathKey, filepath.Join(c.StorageDir(), BootStateDefaultFilename))
}

// StorageUsageWatermark returns the validated, defaulted storage watermark
// percentage.
func (c *Config) StorageUsageWatermark() uint {
	return c.storageWatermark
}

// PollingInterval returns the daemon's telemetry polling cadence,
// following cmd/fioup/daemon.go's pollingInterval default/validation.
func (c *Config) PollingInterval() time.Duration {
	raw := c.tree.Get(PollingSecondsKey)
	if raw == nil {
		return PollingSecondsDefault * time.Second
	}
	seconds, err := toInt(raw)
	if err != nil || seconds <= 0 {
		slog.Warn("invalid polling interval; using default", "value", raw, "default", PollingSecondsDefault)
		return PollingSecondsDefault * time.Second
	}
	return time.Duration(seconds) * time.Second
}
