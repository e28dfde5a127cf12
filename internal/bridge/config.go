// Package bridge holds the supporting pieces of the senso4s-bridge binary:
// environment configuration, the MQTT publisher and the sqlite snapshot
// store.
package bridge

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Device denotes one configured scale in the device list file
type Device struct {
	Address string `yaml:"address"`
	Alias   string `yaml:"alias"`
}

type deviceList struct {
	Devices []Device `yaml:"devices"`
}

// Config holds the bridge configuration, sourced from environment variables
// plus an optional YAML device list
type Config struct {
	LogLevel slog.Level

	MQTTBroker   string
	MQTTPort     int
	MQTTClientID string

	PollInterval  time.Duration
	HistoryWindow time.Duration
	TimeZone      *time.Location

	DevicesFile string
	Devices     []Device

	DBPath string
}

// LoadFromEnv assembles the configuration from environment variables,
// applying defaults and validation
func LoadFromEnv() (Config, error) {
	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	mqttBroker := strings.TrimSpace(os.Getenv("MQTT_BROKER"))
	if mqttBroker == "" {
		mqttBroker = "localhost"
	}

	mqttPortStr := strings.TrimSpace(os.Getenv("MQTT_PORT"))
	if mqttPortStr == "" {
		mqttPortStr = "1883"
	}
	mqttPort, err := strconv.Atoi(mqttPortStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %q: %w", mqttPortStr, err)
	}

	mqttClientID := strings.TrimSpace(os.Getenv("MQTT_CLIENT_ID"))
	if mqttClientID == "" {
		mqttClientID = "senso4s-bridge"
	}

	pollIntervalStr := strings.TrimSpace(os.Getenv("POLL_INTERVAL"))
	if pollIntervalStr == "" {
		pollIntervalStr = "15m"
	}
	pollInterval, err := time.ParseDuration(pollIntervalStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid POLL_INTERVAL %q: %w", pollIntervalStr, err)
	}
	if pollInterval <= 0 {
		return Config{}, fmt.Errorf("POLL_INTERVAL must be positive, got %v", pollInterval)
	}

	historyWindowStr := strings.TrimSpace(os.Getenv("HISTORY_WINDOW"))
	if historyWindowStr == "" {
		historyWindowStr = "1s"
	}
	historyWindow, err := time.ParseDuration(historyWindowStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid HISTORY_WINDOW %q: %w", historyWindowStr, err)
	}
	if historyWindow <= 0 {
		return Config{}, fmt.Errorf("HISTORY_WINDOW must be positive, got %v", historyWindow)
	}

	timeZone := time.Local
	if timeZoneStr := strings.TrimSpace(os.Getenv("TIME_ZONE")); timeZoneStr != "" {
		timeZone, err = time.LoadLocation(timeZoneStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TIME_ZONE %q: %w", timeZoneStr, err)
		}
	}

	cfg := Config{
		LogLevel:      level,
		MQTTBroker:    mqttBroker,
		MQTTPort:      mqttPort,
		MQTTClientID:  mqttClientID,
		PollInterval:  pollInterval,
		HistoryWindow: historyWindow,
		TimeZone:      timeZone,
		DevicesFile:   strings.TrimSpace(os.Getenv("DEVICES_FILE")),
		DBPath:        strings.TrimSpace(os.Getenv("DB_PATH")),
	}

	if cfg.DevicesFile != "" {
		cfg.Devices, err = loadDevices(cfg.DevicesFile)
		if err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

// WantsDevice reports whether snapshots for an address should be processed.
// An empty device list means all discovered Senso4s devices are bridged
func (c Config) WantsDevice(address string) bool {
	if len(c.Devices) == 0 {
		return true
	}
	for _, device := range c.Devices {
		if strings.EqualFold(device.Address, address) {
			return true
		}
	}
	return false
}

// Alias returns the configured alias for an address, or the empty string
func (c Config) Alias(address string) string {
	for _, device := range c.Devices {
		if strings.EqualFold(device.Address, address) {
			return device.Alias
		}
	}
	return ""
}

func loadDevices(path string) ([]Device, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read devices file %q: %w", path, err)
	}

	var list deviceList
	if err := yaml.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("failed to parse devices file %q: %w", path, err)
	}

	for i, device := range list.Devices {
		if strings.TrimSpace(device.Address) == "" {
			return nil, fmt.Errorf("devices file %q: entry %d has no address", path, i)
		}
	}
	return list.Devices, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
