package bridge

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LOG_LEVEL", "MQTT_BROKER", "MQTT_PORT", "MQTT_CLIENT_ID",
		"POLL_INTERVAL", "HISTORY_WINDOW", "TIME_ZONE", "DEVICES_FILE", "DB_PATH",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("want log level info, have %s", cfg.LogLevel)
	}
	if cfg.MQTTBroker != "localhost" || cfg.MQTTPort != 1883 || cfg.MQTTClientID != "senso4s-bridge" {
		t.Fatalf("unexpected MQTT defaults: %s:%d / %s", cfg.MQTTBroker, cfg.MQTTPort, cfg.MQTTClientID)
	}
	if cfg.PollInterval != 15*time.Minute {
		t.Fatalf("want poll interval 15m, have %s", cfg.PollInterval)
	}
	if cfg.HistoryWindow != time.Second {
		t.Fatalf("want history window 1s, have %s", cfg.HistoryWindow)
	}
	if cfg.TimeZone != time.Local {
		t.Fatalf("want local time zone, have %s", cfg.TimeZone)
	}
	if len(cfg.Devices) != 0 {
		t.Fatalf("want empty device list, have %d entries", len(cfg.Devices))
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("MQTT_BROKER", "broker.example.org")
	t.Setenv("MQTT_PORT", "8883")
	t.Setenv("POLL_INTERVAL", "5m")
	t.Setenv("HISTORY_WINDOW", "2s")
	t.Setenv("TIME_ZONE", "UTC")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("want log level debug, have %s", cfg.LogLevel)
	}
	if cfg.MQTTBroker != "broker.example.org" || cfg.MQTTPort != 8883 {
		t.Fatalf("unexpected MQTT settings: %s:%d", cfg.MQTTBroker, cfg.MQTTPort)
	}
	if cfg.PollInterval != 5*time.Minute || cfg.HistoryWindow != 2*time.Second {
		t.Fatalf("unexpected intervals: %s / %s", cfg.PollInterval, cfg.HistoryWindow)
	}
	if cfg.TimeZone != time.UTC {
		t.Fatalf("want UTC time zone, have %s", cfg.TimeZone)
	}
}

func TestLoadFromEnvInvalid(t *testing.T) {
	for _, testCase := range []struct {
		key   string
		value string
	}{
		{"LOG_LEVEL", "verbose"},
		{"MQTT_PORT", "not-a-port"},
		{"POLL_INTERVAL", "often"},
		{"POLL_INTERVAL", "-1m"},
		{"HISTORY_WINDOW", "0s"},
		{"TIME_ZONE", "Not/AZone"},
	} {
		t.Run(testCase.key+"="+testCase.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(testCase.key, testCase.value)

			if _, err := LoadFromEnv(); err == nil {
				t.Fatalf("expected error for %s=%s", testCase.key, testCase.value)
			}
		})
	}
}

func TestDeviceListFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "devices.yaml")
	if err := os.WriteFile(path, []byte(`devices:
  - address: "C4:DD:57:65:43:21"
    alias: "Terrace"
  - address: "C4:DD:57:00:00:01"
`), 0644); err != nil {
		t.Fatalf("failed to write devices file: %s", err)
	}
	t.Setenv("DEVICES_FILE", path)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if len(cfg.Devices) != 2 {
		t.Fatalf("want 2 devices, have %d", len(cfg.Devices))
	}

	// Address matching is case-insensitive
	if !cfg.WantsDevice("c4:dd:57:65:43:21") {
		t.Fatalf("configured device not wanted")
	}
	if cfg.WantsDevice("AA:BB:CC:DD:EE:FF") {
		t.Fatalf("unlisted device wanted despite non-empty list")
	}
	if alias := cfg.Alias("C4:DD:57:65:43:21"); alias != "Terrace" {
		t.Fatalf("want alias Terrace, have %q", alias)
	}
	if alias := cfg.Alias("C4:DD:57:00:00:01"); alias != "" {
		t.Fatalf("want empty alias, have %q", alias)
	}
}

func TestDeviceListFileInvalid(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "devices.yaml")
	if err := os.WriteFile(path, []byte("devices:\n  - alias: \"no address\"\n"), 0644); err != nil {
		t.Fatalf("failed to write devices file: %s", err)
	}
	t.Setenv("DEVICES_FILE", path)

	if _, err := LoadFromEnv(); err == nil {
		t.Fatalf("expected error for device entry without address")
	}
}

func TestWantsDeviceEmptyList(t *testing.T) {
	var cfg Config

	if !cfg.WantsDevice("C4:DD:57:65:43:21") {
		t.Fatalf("empty device list must accept any device")
	}
}
