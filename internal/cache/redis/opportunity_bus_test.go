package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgaray/polyarb/internal/domain"
)

func busFixture(t *testing.T) (*OpportunityBus, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	client, err := New(context.Background(), ClientConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return NewOpportunityBus(client, "polyarb.opportunities"), mr
}

func TestNewFailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := New(context.Background(), ClientConfig{Addr: addr})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping")
}

func TestBusPublishSubscribeRoundTrip(t *testing.T) {
	bus, _ := busFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	want := domain.Opportunity{
		ID:           "opp-1",
		MarketID:     "m1",
		Question:     "Will it rain?",
		YesPrice:     0.45,
		NoPrice:      0.50,
		CombinedCost: 0.95,
		Profit:       0.05,
		ProfitPct:    5.26,
		Source:       domain.SourceStream,
	}
	require.NoError(t, bus.Publish(ctx, want))

	select {
	case got := <-ch:
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.MarketID, got.MarketID)
		assert.InDelta(t, want.CombinedCost, got.CombinedCost, 1e-9)
		assert.Equal(t, want.Source, got.Source)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published opportunity")
	}
}

func TestBusSubscribeSkipsMalformedPayloads(t *testing.T) {
	bus, _ := busFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	// Raw garbage on the channel must be dropped, not close or poison the
	// consumer side.
	require.NoError(t, bus.client.publish(ctx, "polyarb.opportunities", []byte("not json")))
	require.NoError(t, bus.Publish(ctx, domain.Opportunity{ID: "opp-2", MarketID: "m2"}))

	select {
	case got := <-ch:
		assert.Equal(t, "opp-2", got.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the well-formed opportunity")
	}
}

func TestBusSubscribeClosesOnCancel(t *testing.T) {
	bus, _ := busFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel must be closed after cancel")
	case <-time.After(2 * time.Second):
		t.Fatal("subscription channel did not close after cancel")
	}
}
