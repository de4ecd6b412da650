package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgaray/polyarb/internal/domain"
)

func newMarket(id, yes, no string, volume float64) domain.Market {
	return domain.Market{
		ID:         id,
		Question:   "Will it happen?",
		Volume:     volume,
		Liquidity:  5000,
		YesTokenID: yes,
		NoTokenID:  no,
	}
}

func TestInsertAndResolve(t *testing.T) {
	r := New()

	ok := r.Insert(newMarket("m1", "tok-yes", "tok-no", 100))
	require.True(t, ok)

	id, found := r.Resolve("tok-yes")
	require.True(t, found)
	assert.Equal(t, "m1", id)

	id, found = r.Resolve("tok-no")
	require.True(t, found)
	assert.Equal(t, "m1", id)

	_, found = r.Resolve("tok-unknown")
	assert.False(t, found)
}

func TestInsertDuplicateIsNoOp(t *testing.T) {
	r := New()

	require.True(t, r.Insert(newMarket("m1", "a", "b", 100)))
	assert.False(t, r.Insert(newMarket("m1", "c", "d", 200)))

	// The second insert must not have touched the index.
	_, found := r.Resolve("c")
	assert.False(t, found)
	assert.Equal(t, 1, r.Len())
}

func TestApplyTickUpdatesCorrectSide(t *testing.T) {
	r := New()
	require.True(t, r.Insert(newMarket("m1", "tok-yes", "tok-no", 100)))

	q, ok := r.ApplyTick("tok-yes", 0.45)
	require.True(t, ok)
	require.NotNil(t, q.YesAsk)
	assert.Equal(t, 0.45, *q.YesAsk)
	assert.Nil(t, q.NoAsk)
	assert.False(t, q.Complete())

	q, ok = r.ApplyTick("tok-no", 0.50)
	require.True(t, ok)
	require.True(t, q.Complete())
	assert.Equal(t, 0.45, *q.YesAsk)
	assert.Equal(t, 0.50, *q.NoAsk)
}

func TestApplyTickUnknownToken(t *testing.T) {
	r := New()
	require.True(t, r.Insert(newMarket("m1", "tok-yes", "tok-no", 100)))

	_, ok := r.ApplyTick("nope", 0.5)
	assert.False(t, ok)

	// Nothing changed.
	q, found := r.Quote("m1")
	require.True(t, found)
	assert.Nil(t, q.YesAsk)
	assert.Nil(t, q.NoAsk)
}

func TestQuoteIsDetached(t *testing.T) {
	r := New()
	require.True(t, r.Insert(newMarket("m1", "tok-yes", "tok-no", 100)))

	q1, ok := r.ApplyTick("tok-yes", 0.40)
	require.True(t, ok)

	// A later tick must not mutate the earlier copy.
	_, ok = r.ApplyTick("tok-yes", 0.60)
	require.True(t, ok)
	assert.Equal(t, 0.40, *q1.YesAsk)
}

func TestSnapshotOrdering(t *testing.T) {
	r := New()
	require.True(t, r.Insert(newMarket("m-b", "b1", "b2", 500)))
	require.True(t, r.Insert(newMarket("m-c", "c1", "c2", 900)))
	require.True(t, r.Insert(newMarket("m-a", "a1", "a2", 500)))

	snap := r.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "m-c", snap[0].ID)
	// Equal volume breaks ties by ID ascending.
	assert.Equal(t, "m-a", snap[1].ID)
	assert.Equal(t, "m-b", snap[2].ID)
}

func TestTokenIDs(t *testing.T) {
	r := New()
	require.True(t, r.Insert(newMarket("m1", "t1", "t2", 100)))
	require.True(t, r.Insert(newMarket("m2", "t3", "t4", 100)))

	assert.ElementsMatch(t, []string{"t1", "t2", "t3", "t4"}, r.TokenIDs())
}

func TestConcurrentAccess(t *testing.T) {
	r := New()
	for i := 0; i < 10; i++ {
		m := newMarket(
			fmt.Sprintf("m%d", i),
			fmt.Sprintf("yes%d", i),
			fmt.Sprintf("no%d", i),
			float64(i),
		)
		require.True(t, r.Insert(m))
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.ApplyTick(fmt.Sprintf("yes%d", i), 0.5)
				r.Snapshot()
				r.Resolve(fmt.Sprintf("no%d", i))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, r.Len())
}
