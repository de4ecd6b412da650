package domain

import "time"

// Source tags where an opportunity was detected.
type Source string

const (
	// SourceStream marks opportunities triggered by a live price tick.
	SourceStream Source = "stream"
	// SourceBatch marks opportunities found by the periodic registry scan.
	SourceBatch Source = "batch"
)

// Opportunity is a detected pricing inefficiency: the two best asks of a
// binary market sum to less than one dollar. It is produced on demand by the
// detector and never stored as authoritative state.
type Opportunity struct {
	ID           string    `json:"id"`
	MarketID     string    `json:"market_id"`
	Question     string    `json:"question"`
	YesPrice     float64   `json:"yes_price"`
	NoPrice      float64   `json:"no_price"`
	CombinedCost float64   `json:"combined_cost"`
	Profit       float64   `json:"profit"`
	ProfitPct    float64   `json:"profit_pct"`
	Source       Source    `json:"source"`
	DetectedAt   time.Time `json:"detected_at"`
}
