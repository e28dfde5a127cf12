package bridge

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/blesensor/senso4s"
)

// advThrottle limits how often advertisement-only snapshots are republished
// per device (the scale broadcasts far more often than state changes)
const advThrottle = 30 * time.Second

// Handler turns advertisement events into published (and optionally
// recorded) snapshots, triggering a full acquisition per device once every
// poll interval
type Handler struct {
	cfg    Config
	scale  *senso4s.Scale
	pub    *Publisher
	store  *Store // may be nil
	logger *slog.Logger

	mu       sync.Mutex
	lastAdv  map[string]time.Time
	lastFull map[string]time.Time
	inFlight map[string]bool
}

// NewHandler creates a new advertisement handler
func NewHandler(cfg Config, scale *senso4s.Scale, pub *Publisher, store *Store, logger *slog.Logger) *Handler {
	return &Handler{
		cfg:      cfg,
		scale:    scale,
		pub:      pub,
		store:    store,
		logger:   logger,
		lastAdv:  make(map[string]time.Time),
		lastFull: make(map[string]time.Time),
		inFlight: make(map[string]bool),
	}
}

// HandleAdvertisement processes one advertisement event
func (h *Handler) HandleAdvertisement(ctx context.Context, adv senso4s.Advertisement) {
	if !h.cfg.WantsDevice(adv.Address) {
		return
	}
	if !senso4s.Matches(adv) {
		h.logger.Debug("ignoring non-Senso4s advertisement", "addr", adv.Address)
		return
	}

	now := time.Now()
	h.mu.Lock()
	doAdv := now.Sub(h.lastAdv[adv.Address]) >= advThrottle
	if doAdv {
		h.lastAdv[adv.Address] = now
	}
	doFull := now.Sub(h.lastFull[adv.Address]) >= h.cfg.PollInterval && !h.inFlight[adv.Address]
	if doFull {
		h.lastFull[adv.Address] = now
		h.inFlight[adv.Address] = true
	}
	h.mu.Unlock()

	if doAdv {
		snap := h.scale.DecodeAdvertisement(adv)
		h.applyAlias(snap)
		if err := h.pub.PublishSnapshot(snap); err != nil {
			h.logger.Warn("failed to publish advertisement snapshot", "addr", adv.Address, "error", err)
		}
	}

	if doFull {
		go h.acquire(ctx, adv)
	}
}

func (h *Handler) acquire(ctx context.Context, adv senso4s.Advertisement) {
	defer func() {
		h.mu.Lock()
		h.inFlight[adv.Address] = false
		h.mu.Unlock()
	}()

	h.logger.Info("starting full acquisition", "addr", adv.Address)
	snap := h.scale.Acquire(ctx, adv)
	h.applyAlias(snap)

	if snap.Failed() {
		h.logger.Warn("full acquisition degraded", "addr", adv.Address, "error", snap.Error, "fields", len(snap.Fields()))
	} else {
		h.logger.Info("full acquisition complete", "addr", adv.Address, "fields", len(snap.Fields()))
	}

	if err := h.pub.PublishSnapshot(snap); err != nil {
		h.logger.Warn("failed to publish snapshot", "addr", adv.Address, "error", err)
	}
	if h.store != nil {
		if err := h.store.SaveSnapshot(ctx, snap, time.Now()); err != nil {
			h.logger.Warn("failed to record snapshot", "addr", adv.Address, "error", err)
		}
	}
}

func (h *Handler) applyAlias(snap *senso4s.Snapshot) {
	if alias := h.cfg.Alias(snap.Address); alias != "" {
		snap.Name = alias
	}
}
