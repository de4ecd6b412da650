// Package executor turns detected opportunities into signed fill-or-kill
// orders on the CLOB. Both legs of an opportunity are submitted concurrently
// and independently: FOK semantics mean each leg either fills completely or
// not at all, and a one-leg fill is an accepted risk of the strategy rather
// than something to unwind.
package executor

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"strconv"
	"sync"

	"github.com/dgaray/polyarb/internal/crypto"
	"github.com/dgaray/polyarb/internal/domain"
	"github.com/dgaray/polyarb/internal/notify"
	"github.com/dgaray/polyarb/internal/platform/polymarket"
	"github.com/dgaray/polyarb/internal/registry"
)

// collateralDecimals scales share and dollar amounts to micro-USDC.
const collateralDecimals = 1e6

// maxSalt bounds the random order salt to 63 bits so it survives every
// JSON-number parser on the way to the chain.
var maxSalt = new(big.Int).Lsh(big.NewInt(1), 63)

// Config carries the executor's trading identity.
type Config struct {
	// FunderAddress is the address holding the collateral; it becomes the
	// order's maker.
	FunderAddress string

	// SignatureType selects how the exchange verifies the signature
	// (EOA, proxy wallet, or Safe).
	SignatureType int

	// TradeSize is the number of shares bought per leg.
	TradeSize float64
}

// Executor signs and submits orders. A nil *Executor is valid and means
// trading is disabled; every method then reports that and does nothing.
type Executor struct {
	clob     *polymarket.ClobClient
	signer   *crypto.Signer
	reg      *registry.Registry
	notifier *notify.Notifier
	cfg      Config
	logger   *slog.Logger
}

// New creates an Executor. notifier may be nil when no alert channels are
// configured; leg outcomes are then only logged.
func New(clob *polymarket.ClobClient, signer *crypto.Signer, reg *registry.Registry, notifier *notify.Notifier, cfg Config, logger *slog.Logger) *Executor {
	return &Executor{
		clob:     clob,
		signer:   signer,
		reg:      reg,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "executor")),
	}
}

// BuildOrder constructs an unsigned buy order for size shares of tokenID at
// the given limit price. Amounts are truncated, never rounded up: the maker
// amount is what we pay, and truncation can only make the price we offer
// marginally better than quoted.
func (e *Executor) BuildOrder(tokenID string, price, size float64) (domain.Order, error) {
	if price <= 0 || price >= 1 || size <= 0 {
		return domain.Order{}, fmt.Errorf("executor: %w: price=%v size=%v", domain.ErrInvalidOrder, price, size)
	}

	salt, err := rand.Int(rand.Reader, maxSalt)
	if err != nil {
		return domain.Order{}, fmt.Errorf("executor: generating salt: %w", err)
	}

	makerAmount := uint64(math.Trunc(size * price * collateralDecimals))
	takerAmount := uint64(math.Trunc(size * collateralDecimals))

	return domain.Order{
		Salt:          salt.String(),
		Maker:         e.cfg.FunderAddress,
		Signer:        e.signer.Address().Hex(),
		Taker:         domain.ZeroAddress,
		TokenID:       tokenID,
		MakerAmount:   strconv.FormatUint(makerAmount, 10),
		TakerAmount:   strconv.FormatUint(takerAmount, 10),
		Expiration:    "0",
		Nonce:         "0",
		FeeRateBps:    "0",
		Side:          domain.SideBuy,
		SignatureType: e.cfg.SignatureType,
	}, nil
}

// ExecuteBuy builds, signs, and submits one FOK buy order, returning the raw
// exchange response. The response body is returned even when the exchange
// rejects the order; callers log it either way.
func (e *Executor) ExecuteBuy(ctx context.Context, tokenID string, price, size float64) ([]byte, error) {
	order, err := e.BuildOrder(tokenID, price, size)
	if err != nil {
		return nil, err
	}

	sig, err := e.signer.SignOrder(order)
	if err != nil {
		return nil, fmt.Errorf("executor: sign order: %w", err)
	}

	signed := domain.SignedOrder{
		Order:     order,
		Owner:     e.cfg.FunderAddress,
		Signature: sig,
		OrderType: "FOK",
	}

	return e.clob.PostOrder(ctx, signed)
}

// ExecuteOpportunity submits both legs of a detected opportunity
// concurrently at the detected prices. Legs are independent; each logs its
// own outcome and neither waits on nor reacts to the other.
func (e *Executor) ExecuteOpportunity(ctx context.Context, opp domain.Opportunity) {
	if e == nil {
		return
	}

	quote, ok := e.reg.Quote(opp.MarketID)
	if !ok {
		e.logger.Warn("market vanished before execution", slog.String("market_id", opp.MarketID))
		return
	}

	legs := []struct {
		name    string
		tokenID string
		price   float64
	}{
		{"yes", quote.YesTokenID, opp.YesPrice},
		{"no", quote.NoTokenID, opp.NoPrice},
	}

	var wg sync.WaitGroup
	for _, leg := range legs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body, err := e.ExecuteBuy(ctx, leg.tokenID, leg.price, e.cfg.TradeSize)
			if err != nil {
				e.logger.Error("order submission failed",
					slog.String("market_id", opp.MarketID),
					slog.String("leg", leg.name),
					slog.Any("error", err))
				e.alert(ctx, notify.EventError, "Order failed",
					fmt.Sprintf("%s\n%s leg @ %.3f: %v", opp.Question, leg.name, leg.price, err))
				return
			}
			e.logger.Info("order submitted",
				slog.String("market_id", opp.MarketID),
				slog.String("leg", leg.name),
				slog.Float64("price", leg.price),
				slog.Float64("size", e.cfg.TradeSize),
				slog.String("response", string(body)))
			e.alert(ctx, notify.EventOrderSubmitted, "Order submitted",
				fmt.Sprintf("%s\n%s leg @ %.3f x %.0f\n%s", opp.Question, leg.name, leg.price, e.cfg.TradeSize, body))
		}()
	}
	wg.Wait()
}

// alert forwards one leg outcome to the notifier, if one is wired.
func (e *Executor) alert(ctx context.Context, event, title, message string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, event, title, message); err != nil {
		e.logger.Warn("leg notification failed", slog.Any("error", err))
	}
}
