package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/blesensor/senso4s"
	"github.com/blesensor/senso4s/internal/bridge"
	"github.com/blesensor/senso4s/tinyble"
)

func main() {
	cfg, err := bridge.LoadFromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      cfg.LogLevel,
		TimeFormat: time.Kitchen,
	})).With("app", "senso4s-bridge")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store *bridge.Store
	if cfg.DBPath != "" {
		store, err = bridge.OpenStore(cfg.DBPath)
		if err != nil {
			logger.Error("failed to open snapshot store", "path", cfg.DBPath, "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Warn("failed to close snapshot store", "error", err)
			}
		}()
	}

	pub := bridge.NewPublisher(cfg, logger)
	if err := pub.Connect(ctx); err != nil {
		logger.Error("failed to connect MQTT broker", "error", err)
		os.Exit(1)
	}
	defer pub.Disconnect()

	libLogger := bridge.Logger{Logger: logger}
	central := tinyble.New(nil, libLogger)

	scale := senso4s.New(
		senso4s.WithConnector(central),
		senso4s.WithLogger(libLogger),
		senso4s.WithTimeZone(cfg.TimeZone),
		senso4s.WithHistoryWindow(cfg.HistoryWindow),
	)

	handler := bridge.NewHandler(cfg, scale, pub, store, logger)

	logger.Info("bridge started",
		"poll_interval", cfg.PollInterval,
		"devices", len(cfg.Devices),
		"recording", cfg.DBPath != "",
	)

	if err := central.Watch(ctx, func(adv senso4s.Advertisement) {
		handler.HandleAdvertisement(ctx, adv)
	}); err != nil {
		logger.Error("BLE watcher failed", "error", err)
		os.Exit(1)
	}

	logger.Info("bridge stopped")
}
