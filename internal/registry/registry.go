// Package registry maintains the shared in-memory view of every tracked
// market together with a reverse index from outcome token ID to owning
// market. It is the single mutable resource shared by the stream loop, the
// refresher, and the reporter; all access goes through a reader/writer lock
// held only for the duration of the mutation, never across network I/O.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/dgaray/polyarb/internal/domain"
)

// Registry is a concurrency-safe market store. A market and its two index
// entries are inserted as one atomic unit, so a token ID never resolves to a
// market that is absent and every stored market is reachable through both of
// its token IDs. Markets are never deleted during a run.
type Registry struct {
	mu      sync.RWMutex
	markets map[string]*domain.Market // market ID -> market
	byToken map[string]string         // outcome token ID -> market ID
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		markets: make(map[string]*domain.Market),
		byToken: make(map[string]string),
	}
}

// Insert adds a market and both of its token-index entries atomically. It
// returns false without mutating anything when the market ID is already
// present; the refresher uses this to compute its discovery diff.
func (r *Registry) Insert(m domain.Market) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.markets[m.ID]; ok {
		return false
	}

	stored := m
	r.markets[m.ID] = &stored
	r.byToken[m.YesTokenID] = m.ID
	r.byToken[m.NoTokenID] = m.ID
	return true
}

// Resolve maps an outcome token ID to its owning market ID.
func (r *Registry) Resolve(tokenID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byToken[tokenID]
	return id, ok
}

// ApplyTick records a new best ask for the market owning tokenID and returns
// a copied quote of the updated market for detection. A tick referencing an
// unknown token ID is a no-op and returns ok=false. The write happens under
// the exclusive lock; the returned Quote is detached from shared state.
func (r *Registry) ApplyTick(tokenID string, price float64) (domain.Quote, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byToken[tokenID]
	if !ok {
		return domain.Quote{}, false
	}
	m, ok := r.markets[id]
	if !ok {
		return domain.Quote{}, false
	}

	p := price
	switch tokenID {
	case m.YesTokenID:
		m.YesAsk = &p
	case m.NoTokenID:
		m.NoAsk = &p
	default:
		// Index said this token belongs here but the market disagrees;
		// treat as unknown rather than corrupt a leg.
		return domain.Quote{}, false
	}
	m.UpdatedAt = time.Now().UTC()

	return quoteOf(m), true
}

// Quote returns a detached pricing snapshot of a single market by ID.
func (r *Registry) Quote(marketID string) (domain.Quote, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.markets[marketID]
	if !ok {
		return domain.Quote{}, false
	}
	return quoteOf(m), true
}

// Snapshot returns copies of every tracked market ordered by volume
// descending, market ID ascending as tie-break.
func (r *Registry) Snapshot() []domain.Market {
	r.mu.RLock()
	out := make([]domain.Market, 0, len(r.markets))
	for _, m := range r.markets {
		out = append(out, *m)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Volume != out[j].Volume {
			return out[i].Volume > out[j].Volume
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// TokenIDs returns every indexed outcome token ID. The stream loop uses this
// to re-subscribe after a reconnect.
func (r *Registry) TokenIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.byToken))
	for id := range r.byToken {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of tracked markets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.markets)
}

func quoteOf(m *domain.Market) domain.Quote {
	q := domain.Quote{
		MarketID:   m.ID,
		Question:   m.Question,
		Volume:     m.Volume,
		Liquidity:  m.Liquidity,
		YesTokenID: m.YesTokenID,
		NoTokenID:  m.NoTokenID,
	}
	if m.YesAsk != nil {
		v := *m.YesAsk
		q.YesAsk = &v
	}
	if m.NoAsk != nil {
		v := *m.NoAsk
		q.NoAsk = &v
	}
	return q
}
