package polymarket

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/dgaray/polyarb/internal/domain"
)

// flexFloat unmarshals from a JSON number or a numeric string, since Gamma
// sends volume and liquidity in both shapes depending on endpoint version.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("polymarket: parse numeric string %q: %w", s, err)
	}
	*f = flexFloat(n)
	return nil
}

// flexBool unmarshals from JSON bool or string ("true"/"false").
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APIMarket represents a market as returned by the Gamma API. ClobTokenIDs is
// a JSON-array-valued string, e.g. "[\"123\",\"456\"]".
type APIMarket struct {
	ID           string    `json:"id"`
	Question     string    `json:"question"`
	Slug         string    `json:"slug"`
	Active       flexBool  `json:"active"`
	Closed       flexBool  `json:"closed"`
	Volume       flexFloat `json:"volumeNum"`
	Liquidity    flexFloat `json:"liquidity"`
	ClobTokenIDs string    `json:"clobTokenIds"`
}

// ParseTokenIDs decodes the embedded clobTokenIds array. Binary markets carry
// exactly two entries, Yes first.
func (m *APIMarket) ParseTokenIDs() ([]string, error) {
	if m.ClobTokenIDs == "" {
		return nil, fmt.Errorf("polymarket: market %s has no clobTokenIds", m.ID)
	}
	var ids []string
	if err := json.Unmarshal([]byte(m.ClobTokenIDs), &ids); err != nil {
		return nil, fmt.Errorf("polymarket: market %s clobTokenIds: %w", m.ID, err)
	}
	return ids, nil
}

// ToDomainMarket converts an APIMarket into a domain market. Markets without
// exactly two outcome tokens are not binary and return an error. Best asks
// are left unset: prices come only from the live stream.
func (m *APIMarket) ToDomainMarket() (domain.Market, error) {
	ids, err := m.ParseTokenIDs()
	if err != nil {
		return domain.Market{}, err
	}
	if len(ids) != 2 {
		return domain.Market{}, fmt.Errorf("polymarket: market %s has %d outcome tokens, want 2", m.ID, len(ids))
	}

	return domain.Market{
		ID:         m.ID,
		Question:   m.Question,
		Volume:     float64(m.Volume),
		Liquidity:  float64(m.Liquidity),
		YesTokenID: ids[0],
		NoTokenID:  ids[1],
	}, nil
}

// --------------------------------------------------------------------------
// WebSocket DTOs
// --------------------------------------------------------------------------

// WSSubscribe is the outbound subscription frame, one per outcome token.
type WSSubscribe struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
	TokenID string `json:"token_id"`
}

// NewWSSubscribe builds a price-channel subscription for one token.
func NewWSSubscribe(tokenID string) WSSubscribe {
	return WSSubscribe{Type: "subscribe", Channel: "price", TokenID: tokenID}
}

// WSPrice is an inbound price frame. Price is a decimal string; Side tells
// which side of the book the quote belongs to ("buy" or "sell").
type WSPrice struct {
	Type    string `json:"type"`
	TokenID string `json:"token_id"`
	Price   string `json:"price"`
	Side    string `json:"side"`
}
