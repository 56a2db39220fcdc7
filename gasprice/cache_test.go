package gasprice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/gas-station/chain"
)

// stateClient serves a mutable system state and counts fetches. Only
// LatestSystemState is exercised by the cache.
type stateClient struct {
	state   chain.SystemState
	err     error
	fetches int
}

func (c *stateClient) LatestSystemState(context.Context) (*chain.SystemState, error) {
	c.fetches++
	if c.err != nil {
		return nil, c.err
	}
	state := c.state
	return &state, nil
}

func (c *stateClient) GetCoins(context.Context, chain.Address, *string) (*chain.CoinPage, error) {
	return &chain.CoinPage{}, nil
}

func (c *stateClient) MultiGetObjects(context.Context, []chain.ObjectID) ([]*chain.Object, error) {
	return nil, nil
}

func (c *stateClient) ExecuteTransaction(context.Context, []byte, []string) (*chain.ExecuteResult, error) {
	return nil, errors.New("not used")
}

func newTestCache(config Config) (*Cache, *stateClient, *time.Time) {
	start := time.Unix(1_700_000_000, 0)
	client := &stateClient{state: chain.SystemState{
		Epoch:             5,
		ReferenceGasPrice: 700,
		EpochStartMs:      start.UnixMilli(),
		EpochDurationMs:   (time.Hour).Milliseconds(),
	}}
	c := NewCache(client, config)
	now := start
	c.now = func() time.Time { return now }
	return c, client, &now
}

func TestGetFetchesOnce(t *testing.T) {
	c, client, _ := newTestCache(Config{})

	price, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(700), price)
	assert.Equal(t, 1, client.fetches)

	// Well inside the epoch the cached price is served without a fetch.
	price, err = c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(700), price)
	assert.Equal(t, 1, client.fetches)
}

func TestGetRefreshesAfterEpoch(t *testing.T) {
	c, client, now := newTestCache(Config{})
	_, err := c.Get(context.Background())
	require.NoError(t, err)

	// Jump past the boundary window; the node has rolled into epoch 6.
	*now = now.Add(time.Hour + 2*time.Second)
	client.state.Epoch = 6
	client.state.ReferenceGasPrice = 900
	client.state.EpochStartMs = now.UnixMilli()

	price, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(900), price)
	assert.Equal(t, 2, client.fetches)
}

func TestGetWaitsAtBoundary(t *testing.T) {
	c, _, now := newTestCache(Config{})
	_, err := c.Get(context.Background())
	require.NoError(t, err)

	// Land inside the boundary window. The wait must honor the context, so
	// a cancelled one returns immediately instead of sleeping.
	*now = now.Add(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Get(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetSurfacesFetchFailure(t *testing.T) {
	c, client, _ := newTestCache(Config{})
	client.err = errors.New("node down")

	_, err := c.Get(context.Background())
	assert.ErrorContains(t, err, "failed to fetch system state")
}

func TestRefreshClampsStaleExpiry(t *testing.T) {
	c, client, now := newTestCache(Config{})

	// The node reports epoch bounds that already lie in the past.
	client.state.EpochStartMs = now.Add(-2 * time.Hour).UnixMilli()
	client.state.EpochDurationMs = time.Hour.Milliseconds()

	_, err := c.Refresh(context.Background())
	require.NoError(t, err)

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.True(t, c.entry.expiresAt.After(c.entry.fetchedAt))
}

func TestEpochChangeRunsHook(t *testing.T) {
	var calls int
	c, client, now := newTestCache(Config{
		OnEpochChange: func(context.Context) error { calls++; return nil },
	})
	_, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, calls) // first observation is not a transition

	*now = now.Add(time.Hour + 2*time.Second)
	client.state.Epoch = 6
	client.state.EpochStartMs = now.UnixMilli()

	_, err = c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestFailedHookIsRetried(t *testing.T) {
	var calls int
	hookErr := errors.New("revalidation failed")
	c, client, now := newTestCache(Config{
		OnEpochChange: func(context.Context) error {
			calls++
			return hookErr
		},
	})
	_, err := c.Get(context.Background())
	require.NoError(t, err)

	*now = now.Add(time.Hour + 2*time.Second)
	client.state.Epoch = 6
	client.state.EpochStartMs = now.UnixMilli()
	_, err = c.Get(context.Background())
	require.NoError(t, err) // hook failures never surface
	require.Equal(t, 1, calls)

	// The next Get retries the hook; once it succeeds the flag clears and
	// later Gets leave it alone.
	hookErr = nil
	_, err = c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	_, err = c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
