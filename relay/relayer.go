// Package relay drives auctions past their bidding window to finalization.
// The original deployment ran this duty as an off-chain relayer; here it is
// an in-process loop that sweeps the registry on an interval and finalizes
// every auction whose window has closed.
package relay

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/3l500nfy/Ghostbid/core"
)

const defaultInterval = 5 * time.Second

// Relayer periodically finalizes closed auctions through the engine.
type Relayer struct {
	engine   *core.AuctionEngine
	registry *core.AuctionRegistry
	clock    core.Clock
	interval time.Duration
	timeout  time.Duration
	logger   *log.Logger
}

// Config carries relayer dependencies. Engine and Registry are required;
// zero durations fall back to defaults and a nil Clock means wall-clock time.
type Config struct {
	Engine   *core.AuctionEngine
	Registry *core.AuctionRegistry
	Clock    core.Clock
	Interval time.Duration
	Timeout  time.Duration
	Logger   *log.Logger
}

// NewRelayer builds a relayer from the given configuration.
func NewRelayer(cfg Config) *Relayer {
	r := &Relayer{
		engine:   cfg.Engine,
		registry: cfg.Registry,
		clock:    cfg.Clock,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger,
	}
	if r.clock == nil {
		r.clock = core.SystemClock
	}
	if r.interval <= 0 {
		r.interval = defaultInterval
	}
	if r.timeout <= 0 {
		r.timeout = 30 * time.Second
	}
	if r.logger == nil {
		r.logger = log.Default()
	}
	return r
}

// Run sweeps on the configured interval until the context is cancelled.
func (r *Relayer) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("relayer started", "interval", r.interval)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("relayer stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep finalizes every auction whose bidding window has closed and that has
// not been finalized yet. Auctions without bids are left alone. It reports
// how many auctions were finalized during this pass.
func (r *Relayer) Sweep(ctx context.Context) int {
	now := r.clock.Now()
	finalized := 0

	for _, a := range r.registry.ListAuctions() {
		if a.Finalized || now.Before(a.EndTime) {
			continue
		}
		if err := r.finalizeOne(ctx, a.ID); err != nil {
			continue
		}
		finalized++
	}
	return finalized
}

func (r *Relayer) finalizeOne(ctx context.Context, auctionID uint64) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	winner, err := r.engine.Finalize(ctx, auctionID)
	switch {
	case err == nil:
		r.logger.Info("auction finalized", "auction", auctionID, "winner", winner.Hex())
		return nil
	case errors.Is(err, core.ErrAlreadyFinalized):
		// Someone beat us to it between the snapshot and the call.
		return err
	case errors.Is(err, core.ErrNoBids):
		r.logger.Debug("skipping auction without bids", "auction", auctionID)
		return err
	case errors.Is(err, core.ErrComparatorUnavailable):
		r.logger.Warn("comparator unavailable, will retry", "auction", auctionID, "err", err)
		return err
	default:
		r.logger.Error("finalize failed", "auction", auctionID, "err", err)
		return err
	}
}
