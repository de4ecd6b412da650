package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/dgaray/polyarb/internal/arbitrage"
	"github.com/dgaray/polyarb/internal/domain"
	"github.com/dgaray/polyarb/internal/feed"
	"github.com/dgaray/polyarb/internal/registry"
)

const (
	// recentCap bounds the in-memory history of detections.
	recentCap = 100

	// tableTop is how many rows the console table shows per pass.
	tableTop = 5
)

// snapshotFile is the on-disk report format.
type snapshotFile struct {
	Opportunities []domain.Opportunity `json:"opportunities"`
	LastUpdated   time.Time            `json:"last_updated"`
	Count         int                  `json:"count"`
}

// ReporterConfig controls the reporting cadence and output path.
type ReporterConfig struct {
	Interval     time.Duration
	SnapshotPath string
}

// Reporter periodically sweeps the registry through the detector, keeps a
// bounded history of everything detected (live ticks included, via Record),
// writes a JSON snapshot, and prints a summary table.
type Reporter struct {
	reg      *registry.Registry
	detector *arbitrage.Detector
	stats    *feed.Stats
	cfg      ReporterConfig
	out      io.Writer
	logger   *slog.Logger

	mu     sync.Mutex
	recent []domain.Opportunity // newest first
}

// NewReporter creates a Reporter writing its console table to out. stats may
// be nil; when set, the stream counters are included in each pass's log line.
func NewReporter(reg *registry.Registry, det *arbitrage.Detector, stats *feed.Stats, cfg ReporterConfig, out io.Writer, logger *slog.Logger) *Reporter {
	return &Reporter{
		reg:      reg,
		detector: det,
		stats:    stats,
		cfg:      cfg,
		out:      out,
		logger:   logger.With(slog.String("component", "reporter")),
	}
}

// Record adds an externally detected opportunity to the bounded history. The
// stream loop calls this for every live hit.
func (r *Reporter) Record(opp domain.Opportunity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recent = append([]domain.Opportunity{opp}, r.recent...)
	if len(r.recent) > recentCap {
		r.recent = r.recent[:recentCap]
	}
}

// Recent returns a copy of the bounded detection history, newest first.
func (r *Reporter) Recent() []domain.Opportunity {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Opportunity, len(r.recent))
	copy(out, r.recent)
	return out
}

// Run reports once per interval until ctx is cancelled.
func (r *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.report(); err != nil {
				r.logger.Error("report failed", slog.Any("error", err))
			}
		}
	}
}

// report runs one batch sweep and publishes the results.
func (r *Reporter) report() error {
	hits := r.detector.Scan(r.reg.Snapshot())
	for _, opp := range hits {
		r.Record(opp)
	}

	if err := r.writeSnapshot(hits); err != nil {
		return err
	}

	r.printTable(hits)

	attrs := []any{
		slog.Int("markets", r.reg.Len()),
		slog.Int("hits", len(hits)),
	}
	if r.stats != nil {
		attrs = append(attrs,
			slog.Uint64("ticks_applied", r.stats.TicksApplied.Load()),
			slog.Uint64("ticks_dropped", r.stats.TicksDropped.Load()),
			slog.Uint64("reconnects", r.stats.Reconnects.Load()),
			slog.Uint64("stream_opportunities", r.stats.Opportunities.Load()))
	}
	r.logger.Info("scan complete", attrs...)
	return nil
}

// writeSnapshot persists the current batch results atomically: write to a
// temp file in the same directory, then rename over the target so readers
// never observe a torn file.
func (r *Reporter) writeSnapshot(hits []domain.Opportunity) error {
	if r.cfg.SnapshotPath == "" {
		return nil
	}

	snap := snapshotFile{
		Opportunities: hits,
		LastUpdated:   time.Now().UTC(),
		Count:         len(hits),
	}
	if snap.Opportunities == nil {
		snap.Opportunities = []domain.Opportunity{}
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("scanner: marshal snapshot: %w", err)
	}

	dir := filepath.Dir(r.cfg.SnapshotPath)
	tmp, err := os.CreateTemp(dir, ".opportunities-*.json")
	if err != nil {
		return fmt.Errorf("scanner: create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("scanner: write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("scanner: close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, r.cfg.SnapshotPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("scanner: rename snapshot: %w", err)
	}
	return nil
}

// printTable renders the top hits of this pass to the console.
func (r *Reporter) printTable(hits []domain.Opportunity) {
	if r.out == nil || len(hits) == 0 {
		return
	}

	top := hits
	if len(top) > tableTop {
		top = top[:tableTop]
	}

	fmt.Fprintf(r.out, "\n[%s] %d arbitrage opportunities\n",
		time.Now().Format("15:04:05"), len(hits))

	table := tablewriter.NewWriter(r.out)
	table.Header("#", "Market", "Yes", "No", "Cost", "Profit %")
	for i, opp := range top {
		q := opp.Question
		if len(q) > 48 {
			q = q[:45] + "..."
		}
		table.Append(
			fmt.Sprintf("%d", i+1),
			q,
			fmt.Sprintf("%.3f", opp.YesPrice),
			fmt.Sprintf("%.3f", opp.NoPrice),
			fmt.Sprintf("%.3f", opp.CombinedCost),
			fmt.Sprintf("%.2f%%", opp.ProfitPct),
		)
	}
	table.Render()
}
