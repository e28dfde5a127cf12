package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/blesensor/senso4s"
)

type config struct {
	addr     string
	full     bool
	interval time.Duration
	window   time.Duration
	timeZone string
	debug    bool
}

func main() {

	// Parse command line options
	var cfg config
	flag.StringVar(&cfg.addr, "addr", "", "address of remote scale (empty: any Senso4s device)")
	flag.BoolVar(&cfg.full, "full", false, "connect and read all characteristics instead of decoding advertisements only")
	flag.DurationVar(&cfg.interval, "interval", time.Minute, "minimum interval between readings per device")
	flag.DurationVar(&cfg.window, "window", time.Second, "history notification collection window")
	flag.StringVar(&cfg.timeZone, "tz", "", "time zone the scale was set up in (default: local)")
	flag.BoolVar(&cfg.debug, "debug", false, "enable debug logging")
	flag.Parse()

	logger := senso4s.NewDefaultLogger(cfg.debug)

	central, err := senso4s.NewGATTCentral(logger)
	if err != nil {
		logger.Fatalf("failed to initialize GATT central: %s", err)
	}

	options := []func(*senso4s.Scale){
		senso4s.WithLogger(logger),
		senso4s.WithConnector(central),
		senso4s.WithHistoryWindow(cfg.window),
	}
	if cfg.timeZone != "" {
		loc, err := time.LoadLocation(cfg.timeZone)
		if err != nil {
			logger.Fatalf("failed to load time zone %q: %s", cfg.timeZone, err)
		}
		options = append(options, senso4s.WithTimeZone(loc))
	}
	scale := senso4s.New(options...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lastSeen := make(map[string]time.Time)
	if err := central.Scan(ctx, func(adv senso4s.Advertisement) {
		if cfg.addr != "" && !strings.EqualFold(adv.Address, cfg.addr) {
			return
		}
		if !senso4s.Matches(adv) {
			return
		}
		if time.Since(lastSeen[adv.Address]) < cfg.interval {
			return
		}
		lastSeen[adv.Address] = time.Now()

		snap := scale.DecodeAdvertisement(adv)
		if cfg.full {
			snap = scale.Acquire(ctx, adv)
		}
		printSnapshot(logger, snap)
	}); err != nil {
		logger.Fatalf("scan failed: %s", err)
	}
}

func printSnapshot(logger senso4s.Logger, snap *senso4s.Snapshot) {
	logger.Infof("%s", snap.FriendlyName())
	if snap.Failed() {
		logger.Warnf("  acquisition error: %s", snap.Error)
	}
	for _, field := range snap.Fields() {
		value, _ := snap.Value(field)
		logger.Infof("  %s: %s", field, value)
	}
}
