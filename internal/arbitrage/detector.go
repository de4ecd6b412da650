// Package arbitrage implements the opportunity-detection rule shared by the
// live stream path and the periodic registry scan, so the two paths can never
// disagree on what counts as an opportunity.
package arbitrage

import (
	"time"

	"github.com/google/uuid"

	"github.com/dgaray/polyarb/internal/domain"
)

// Detector evaluates market quotes against a minimum profit threshold. It is
// pure: it holds no mutable state beyond its configuration and may be shared
// freely across goroutines.
type Detector struct {
	minProfit float64
}

// NewDetector creates a Detector with the given minimum per-share profit
// threshold (e.g. 0.01 for one cent).
func NewDetector(minProfit float64) *Detector {
	return &Detector{minProfit: minProfit}
}

// Evaluate checks a single quote. A positive detection requires both best
// asks to be observed, prices in (0, 1), combined cost below one dollar, and
// profit at or above the threshold. Buying both legs then locks in
// profit = 1 - (yes + no) per share, since exactly one leg pays out $1.
func (d *Detector) Evaluate(q domain.Quote, src domain.Source) (domain.Opportunity, bool) {
	if !q.Complete() {
		return domain.Opportunity{}, false
	}

	yes, no := *q.YesAsk, *q.NoAsk
	if yes <= 0 || no <= 0 || yes >= 1 || no >= 1 {
		return domain.Opportunity{}, false
	}

	cost := yes + no
	profit := 1 - cost
	if cost >= 1 || profit < d.minProfit {
		return domain.Opportunity{}, false
	}

	return domain.Opportunity{
		ID:           uuid.New().String(),
		MarketID:     q.MarketID,
		Question:     q.Question,
		YesPrice:     yes,
		NoPrice:      no,
		CombinedCost: cost,
		Profit:       profit,
		ProfitPct:    profit / cost * 100,
		Source:       src,
		DetectedAt:   time.Now().UTC(),
	}, true
}

// Scan applies the detection rule to every market in the slice and returns
// the hits sorted by profit percentage descending. Used by the periodic
// reporting pass; results carry batch provenance.
func (d *Detector) Scan(markets []domain.Market) []domain.Opportunity {
	var out []domain.Opportunity
	for i := range markets {
		m := &markets[i]
		q := domain.Quote{
			MarketID:  m.ID,
			Question:  m.Question,
			Volume:    m.Volume,
			Liquidity: m.Liquidity,
			YesAsk:    m.YesAsk,
			NoAsk:     m.NoAsk,
		}
		if opp, ok := d.Evaluate(q, domain.SourceBatch); ok {
			out = append(out, opp)
		}
	}

	// Insertion sort keeps the hot empty/single-hit cases allocation-free.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].ProfitPct > out[j-1].ProfitPct; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// MinProfit returns the configured threshold.
func (d *Detector) MinProfit() float64 {
	return d.minProfit
}
