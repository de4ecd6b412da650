package executor

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgaray/polyarb/internal/crypto"
	"github.com/dgaray/polyarb/internal/domain"
	"github.com/dgaray/polyarb/internal/notify"
	"github.com/dgaray/polyarb/internal/platform/polymarket"
	"github.com/dgaray/polyarb/internal/registry"
)

const (
	testKey      = "0x0000000000000000000000000000000000000000000000000000000000000001"
	testFunder   = "0x1111111111111111111111111111111111111111"
	testExchange = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newExecutor(t *testing.T, clobURL string, reg *registry.Registry) *Executor {
	return newNotifyingExecutor(t, clobURL, reg, nil)
}

func newNotifyingExecutor(t *testing.T, clobURL string, reg *registry.Registry, notifier *notify.Notifier) *Executor {
	signer, err := crypto.NewSigner(testKey, 137, testExchange)
	require.NoError(t, err)

	return New(polymarket.NewClobClient(clobURL), signer, reg, notifier, Config{
		FunderAddress: testFunder,
		SignatureType: domain.SignatureTypeEOA,
		TradeSize:     100,
	}, discardLogger())
}

// recordingSender captures every delivery made through the notifier.
type recordingSender struct {
	mu     sync.Mutex
	titles []string
	bodies []string
}

func (r *recordingSender) Send(_ context.Context, title, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.titles = append(r.titles, title)
	r.bodies = append(r.bodies, message)
	return nil
}

func (r *recordingSender) Name() string { return "recording" }

func TestBuildOrderAmounts(t *testing.T) {
	e := newExecutor(t, "http://unused", registry.New())

	order, err := e.BuildOrder("tok-1", 0.45, 100)
	require.NoError(t, err)

	assert.Equal(t, "45000000", order.MakerAmount)
	assert.Equal(t, "100000000", order.TakerAmount)
	assert.Equal(t, testFunder, order.Maker)
	assert.Equal(t, "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf", order.Signer)
	assert.Equal(t, domain.ZeroAddress, order.Taker)
	assert.Equal(t, "0", order.Expiration)
	assert.Equal(t, "0", order.Nonce)
	assert.Equal(t, "0", order.FeeRateBps)
	assert.Equal(t, domain.SideBuy, order.Side)
	assert.Equal(t, domain.SignatureTypeEOA, order.SignatureType)
}

func TestBuildOrderTruncatesDown(t *testing.T) {
	e := newExecutor(t, "http://unused", registry.New())

	// 3 * 0.333 = 0.999 dollars -> 999000 micro-USDC, no rounding up.
	order, err := e.BuildOrder("tok-1", 0.333, 3)
	require.NoError(t, err)
	assert.Equal(t, "999000", order.MakerAmount)
	assert.Equal(t, "3000000", order.TakerAmount)
}

func TestBuildOrderSaltFitsInt64(t *testing.T) {
	e := newExecutor(t, "http://unused", registry.New())

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		order, err := e.BuildOrder("tok-1", 0.5, 10)
		require.NoError(t, err)

		salt, ok := new(big.Int).SetString(order.Salt, 10)
		require.True(t, ok)
		assert.True(t, salt.IsInt64(), "salt must fit a signed 64-bit integer")
		assert.True(t, salt.Sign() >= 0)
		seen[order.Salt] = true
	}
	assert.Greater(t, len(seen), 1, "salts must vary between orders")
}

func TestBuildOrderRejectsBadInputs(t *testing.T) {
	e := newExecutor(t, "http://unused", registry.New())

	for _, tc := range []struct{ price, size float64 }{
		{0, 100}, {1, 100}, {-0.5, 100}, {0.5, 0}, {0.5, -1},
	} {
		_, err := e.BuildOrder("tok-1", tc.price, tc.size)
		assert.ErrorIs(t, err, domain.ErrInvalidOrder, "price=%v size=%v", tc.price, tc.size)
	}
}

func TestExecuteBuyPostsSignedOrder(t *testing.T) {
	var got domain.SignedOrder
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	e := newExecutor(t, srv.URL, registry.New())
	resp, err := e.ExecuteBuy(context.Background(), "999", 0.45, 100)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true}`, string(resp))

	assert.Equal(t, "FOK", got.OrderType)
	assert.Equal(t, testFunder, got.Owner)
	assert.NotEmpty(t, got.Signature)
	assert.Equal(t, "999", got.Order.TokenID)
}

func TestExecuteBuyReturnsRejectionBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success":false,"errorMsg":"fok order not filled"}`))
	}))
	defer srv.Close()

	e := newExecutor(t, srv.URL, registry.New())
	resp, err := e.ExecuteBuy(context.Background(), "999", 0.45, 100)
	require.NoError(t, err)
	assert.Contains(t, string(resp), "fok order not filled")
}

func TestExecuteOpportunitySubmitsBothLegsIndependently(t *testing.T) {
	var mu sync.Mutex
	var tokens []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var signed domain.SignedOrder
		require.NoError(t, json.Unmarshal(body, &signed))

		mu.Lock()
		tokens = append(tokens, signed.Order.TokenID)
		mu.Unlock()

		// Reject the yes leg; the no leg must still be submitted.
		if signed.Order.TokenID == "tok-yes" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"success":false,"errorMsg":"rejected"}`))
			return
		}
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	reg := registry.New()
	reg.Insert(domain.Market{
		ID: "m1", Question: "q", YesTokenID: "tok-yes", NoTokenID: "tok-no",
	})

	e := newExecutor(t, srv.URL, reg)
	e.ExecuteOpportunity(context.Background(), domain.Opportunity{
		MarketID: "m1", YesPrice: 0.45, NoPrice: 0.50,
	})

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"tok-yes", "tok-no"}, tokens)
}

func TestExecuteOpportunityNotifiesPerLeg(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	reg := registry.New()
	reg.Insert(domain.Market{
		ID: "m1", Question: "q", YesTokenID: "tok-yes", NoTokenID: "tok-no",
	})

	sender := &recordingSender{}
	notifier := notify.New([]notify.Sender{sender}, []string{notify.EventOrderSubmitted}, discardLogger())

	e := newNotifyingExecutor(t, srv.URL, reg, notifier)
	e.ExecuteOpportunity(context.Background(), domain.Opportunity{
		MarketID: "m1", Question: "q", YesPrice: 0.45, NoPrice: 0.50,
	})

	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.Len(t, sender.titles, 2, "one notification per leg")
	assert.Equal(t, []string{"Order submitted", "Order submitted"}, sender.titles)
}

func TestExecuteOpportunityNotifiesLegFailure(t *testing.T) {
	// A transport-dead endpoint fails both legs; each must raise an error
	// event on its own.
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	reg := registry.New()
	reg.Insert(domain.Market{
		ID: "m1", Question: "q", YesTokenID: "tok-yes", NoTokenID: "tok-no",
	})

	sender := &recordingSender{}
	notifier := notify.New([]notify.Sender{sender}, []string{notify.EventError}, discardLogger())

	e := newNotifyingExecutor(t, srv.URL, reg, notifier)
	e.ExecuteOpportunity(context.Background(), domain.Opportunity{
		MarketID: "m1", Question: "q", YesPrice: 0.45, NoPrice: 0.50,
	})

	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.Len(t, sender.titles, 2)
	assert.Equal(t, []string{"Order failed", "Order failed"}, sender.titles)
	assert.Contains(t, sender.bodies[0], "leg")
}

func TestExecuteOpportunityUnknownMarket(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	e := newExecutor(t, srv.URL, registry.New())
	e.ExecuteOpportunity(context.Background(), domain.Opportunity{MarketID: "ghost"})
	assert.Zero(t, calls)
}
