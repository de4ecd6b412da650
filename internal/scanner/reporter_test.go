package scanner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgaray/polyarb/internal/arbitrage"
	"github.com/dgaray/polyarb/internal/domain"
	"github.com/dgaray/polyarb/internal/feed"
	"github.com/dgaray/polyarb/internal/registry"
)

func ptr(f float64) *float64 { return &f }

func seededRegistry() *registry.Registry {
	reg := registry.New()
	reg.Insert(domain.Market{
		ID: "hit", Question: "cheap?", Volume: 900,
		YesTokenID: "h-y", NoTokenID: "h-n",
		YesAsk: ptr(0.45), NoAsk: ptr(0.50),
	})
	reg.Insert(domain.Market{
		ID: "miss", Question: "fair?", Volume: 100,
		YesTokenID: "m-y", NoTokenID: "m-n",
		YesAsk: ptr(0.50), NoAsk: ptr(0.52),
	})
	return reg
}

func TestReportWritesSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opportunities.json")
	var console bytes.Buffer

	r := NewReporter(seededRegistry(), arbitrage.NewDetector(0.01), nil, ReporterConfig{
		SnapshotPath: path,
	}, &console, discardLogger())

	require.NoError(t, r.report())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var snap snapshotFile
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, 1, snap.Count)
	require.Len(t, snap.Opportunities, 1)
	assert.Equal(t, "hit", snap.Opportunities[0].MarketID)
	assert.Equal(t, domain.SourceBatch, snap.Opportunities[0].Source)
	assert.False(t, snap.LastUpdated.IsZero())

	// The console table shows the hit.
	assert.Contains(t, console.String(), "cheap?")
	assert.NotContains(t, console.String(), "fair?")
}

func TestReportEmptySnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opportunities.json")

	r := NewReporter(registry.New(), arbitrage.NewDetector(0.01), nil, ReporterConfig{
		SnapshotPath: path,
	}, nil, discardLogger())

	require.NoError(t, r.report())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// Empty results serialize as [], not null.
	assert.Contains(t, string(data), `"opportunities": []`)
	assert.Contains(t, string(data), `"count": 0`)
}

func TestReportOverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "opportunities.json")

	r := NewReporter(seededRegistry(), arbitrage.NewDetector(0.01), nil, ReporterConfig{
		SnapshotPath: path,
	}, nil, discardLogger())

	require.NoError(t, r.report())
	require.NoError(t, r.report())

	// No leftover temp files after repeated writes.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "opportunities.json", entries[0].Name())
}

func TestReportLogsStreamCounters(t *testing.T) {
	stats := &feed.Stats{}
	stats.TicksApplied.Add(7)
	stats.TicksDropped.Add(3)
	stats.Reconnects.Add(1)
	stats.Opportunities.Add(2)

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	r := NewReporter(seededRegistry(), arbitrage.NewDetector(0.01), stats, ReporterConfig{}, nil, logger)
	require.NoError(t, r.report())

	out := logs.String()
	assert.Contains(t, out, `"ticks_applied":7`)
	assert.Contains(t, out, `"ticks_dropped":3`)
	assert.Contains(t, out, `"reconnects":1`)
	assert.Contains(t, out, `"stream_opportunities":2`)
}

func TestRecordCapsHistory(t *testing.T) {
	r := NewReporter(registry.New(), arbitrage.NewDetector(0.01), nil, ReporterConfig{}, nil, discardLogger())

	for i := 0; i < recentCap+20; i++ {
		r.Record(domain.Opportunity{ID: fmt.Sprintf("opp-%d", i)})
	}

	recent := r.Recent()
	require.Len(t, recent, recentCap)
	// Newest first.
	assert.Equal(t, fmt.Sprintf("opp-%d", recentCap+19), recent[0].ID)
}
