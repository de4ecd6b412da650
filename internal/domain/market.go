// Package domain holds the core data types shared by every component of the
// arbitrage engine: markets, quotes, opportunities, and order payloads.
package domain

import "time"

// Market represents a binary Polymarket prediction market tracked by the
// engine. YesAsk and NoAsk are nil until the first matching price tick has
// been observed on the stream.
type Market struct {
	ID         string
	Question   string
	Volume     float64
	Liquidity  float64
	YesTokenID string // ERC-1155 token ID of the Yes outcome (76-digit string)
	NoTokenID  string // ERC-1155 token ID of the No outcome
	YesAsk     *float64
	NoAsk      *float64
	UpdatedAt  time.Time
}

// TokenIDs returns both outcome token IDs in [yes, no] order.
func (m *Market) TokenIDs() [2]string {
	return [2]string{m.YesTokenID, m.NoTokenID}
}

// Quote is an immutable snapshot of a market's pricing state, copied out of
// the registry under its lock so that detection and execution never touch
// shared memory.
type Quote struct {
	MarketID   string
	Question   string
	Volume     float64
	Liquidity  float64
	YesTokenID string
	NoTokenID  string
	YesAsk     *float64
	NoAsk      *float64
}

// Complete reports whether both legs have an observed best ask.
func (q Quote) Complete() bool {
	return q.YesAsk != nil && q.NoAsk != nil
}
