// Package scanner holds the periodic workers: market discovery against the
// Gamma API and opportunity reporting from registry snapshots.
package scanner

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/dgaray/polyarb/internal/domain"
	"github.com/dgaray/polyarb/internal/feed"
	"github.com/dgaray/polyarb/internal/platform/polymarket"
	"github.com/dgaray/polyarb/internal/registry"
)

// CommandSink receives subscription commands for newly discovered markets.
// Satisfied by *feed.Stream.
type CommandSink interface {
	Enqueue(cmd feed.Command)
}

// RefresherConfig bounds what the refresher tracks.
type RefresherConfig struct {
	Interval     time.Duration
	PageSize     int
	MinVolume    float64
	MinLiquidity float64
	MaxMarkets   int
}

// Refresher periodically discovers active markets, filters and ranks them,
// inserts the new ones into the registry, and tells the stream loop to
// subscribe to their outcome tokens.
type Refresher struct {
	gamma  *polymarket.GammaClient
	reg    *registry.Registry
	sink   CommandSink
	cfg    RefresherConfig
	logger *slog.Logger
}

// NewRefresher creates a Refresher.
func NewRefresher(gamma *polymarket.GammaClient, reg *registry.Registry, sink CommandSink, cfg RefresherConfig, logger *slog.Logger) *Refresher {
	return &Refresher{
		gamma:  gamma,
		reg:    reg,
		sink:   sink,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "refresher")),
	}
}

// Run refreshes once immediately, then on every tick until ctx is cancelled.
// A failed refresh is logged and skipped; the next tick tries again.
func (r *Refresher) Run(ctx context.Context) error {
	if err := r.refresh(ctx); err != nil {
		r.logger.Error("refresh failed", slog.Any("error", err))
	}

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.refresh(ctx); err != nil {
				r.logger.Error("refresh failed", slog.Any("error", err))
			}
		}
	}
}

// refresh runs one discovery pass.
func (r *Refresher) refresh(ctx context.Context) error {
	apiMarkets, err := r.gamma.GetAllActiveMarkets(ctx, r.cfg.PageSize)
	if err != nil {
		return err
	}

	candidates := r.rank(apiMarkets)

	var newTokens []string
	inserted := 0
	for _, m := range candidates {
		if !r.reg.Insert(m.market) {
			continue
		}
		inserted++
		newTokens = append(newTokens, m.market.YesTokenID, m.market.NoTokenID)
	}

	if len(newTokens) > 0 {
		r.sink.Enqueue(feed.SubscribeCommand{TokenIDs: newTokens})
	}

	r.logger.Info("refresh complete",
		slog.Int("fetched", len(apiMarkets)),
		slog.Int("eligible", len(candidates)),
		slog.Int("inserted", inserted),
		slog.Int("tracked", r.reg.Len()))
	return nil
}

type candidate struct {
	market domain.Market
}

// rank filters to binary markets meeting the volume and liquidity floors,
// orders them by volume descending, and caps the result at MaxMarkets.
func (r *Refresher) rank(apiMarkets []polymarket.APIMarket) []candidate {
	var out []candidate
	for i := range apiMarkets {
		m, err := apiMarkets[i].ToDomainMarket()
		if err != nil {
			// Multi-outcome or malformed entries are expected in the
			// feed; skip quietly.
			continue
		}
		if m.Volume < r.cfg.MinVolume || m.Liquidity < r.cfg.MinLiquidity {
			continue
		}
		out = append(out, candidate{market: m})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].market.Volume > out[j].market.Volume
	})

	if r.cfg.MaxMarkets > 0 && len(out) > r.cfg.MaxMarkets {
		out = out[:r.cfg.MaxMarkets]
	}
	return out
}
