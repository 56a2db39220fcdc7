// Package gasprice caches the network's reference gas price for the duration
// of an epoch and detects epoch transitions.
package gasprice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/mantlenetworkio/gas-station/chain"
)

const (
	// DefaultBoundaryWindow is the quiet window around an epoch boundary in
	// which Get waits for the new epoch's price instead of serving the old.
	DefaultBoundaryWindow = time.Second

	// MaxBoundaryWait caps the boundary wait so clock skew between the
	// service and the chain cannot stall requests indefinitely.
	MaxBoundaryWait = 30 * time.Second
)

var (
	refreshTimer = metrics.NewRegisteredTimer("gasstation/gasprice/refresh", nil)
	epochMeter   = metrics.NewRegisteredMeter("gasstation/gasprice/epoch", nil)
)

// entry is one cached observation. Entries are replaced, never mutated.
type entry struct {
	price     uint64
	epoch     uint64
	expiresAt time.Time // epoch start + epoch duration
	fetchedAt time.Time
}

// Config are the cache parameters.
type Config struct {
	BoundaryWindow time.Duration

	// OnEpochChange runs after a refresh lands in a new epoch; the coin
	// pool hooks its revalidation here. A failure flags the cache so Get
	// retries it opportunistically instead of surfacing the error.
	OnEpochChange func(ctx context.Context) error
}

// Cache stores the reference gas price with an epoch-aware expiry.
type Cache struct {
	client chain.Client
	config Config

	mu                sync.Mutex
	entry             *entry
	needsRevalidation bool

	group        singleflight.Group
	retryLimiter *rate.Limiter

	now func() time.Time
}

// NewCache creates an empty cache; the first Get fetches.
func NewCache(client chain.Client, config Config) *Cache {
	if config.BoundaryWindow <= 0 {
		config.BoundaryWindow = DefaultBoundaryWindow
	}
	return &Cache{
		client: client,
		config: config,
		// Retrying a failed revalidation on every Get would hammer the
		// node when it is already struggling; one retry per few seconds.
		retryLimiter: rate.NewLimiter(rate.Every(5*time.Second), 1),
		now:          time.Now,
	}
}

// Get returns the current reference gas price, refreshing the cache when the
// epoch has (nearly) rolled over. Within the boundary window it suspends
// until the window has passed, bounded by MaxBoundaryWait.
func (c *Cache) Get(ctx context.Context) (uint64, error) {
	c.retryRevalidation(ctx)

	c.mu.Lock()
	current := c.entry
	c.mu.Unlock()

	if current != nil {
		now := c.now()
		windowStart := current.expiresAt.Add(-c.config.BoundaryWindow)
		windowEnd := current.expiresAt.Add(c.config.BoundaryWindow)
		if now.Before(windowStart) {
			return current.price, nil
		}
		if now.Before(windowEnd) {
			wait := windowEnd.Sub(now)
			if wait < time.Second {
				wait = time.Second
			}
			if wait > MaxBoundaryWait {
				wait = MaxBoundaryWait
			}
			log.Debug("Waiting out epoch boundary", "epoch", current.epoch, "wait", wait)
			timer := time.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		}
	}
	return c.Refresh(ctx)
}

// Refresh fetches the system state and replaces the cached entry. Concurrent
// refreshes collapse into a single fetch. An epoch transition triggers the
// configured hook.
func (c *Cache) Refresh(ctx context.Context) (uint64, error) {
	price, err, _ := c.group.Do("refresh", func() (interface{}, error) {
		return c.refresh(ctx)
	})
	if err != nil {
		return 0, err
	}
	return price.(uint64), nil
}

func (c *Cache) refresh(ctx context.Context) (uint64, error) {
	defer refreshTimer.UpdateSince(time.Now())

	state, err := c.client.LatestSystemState(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch system state: %w", err)
	}

	fetched := c.now()
	next := &entry{
		price:     state.ReferenceGasPrice,
		epoch:     state.Epoch,
		expiresAt: time.UnixMilli(state.EpochStartMs + state.EpochDurationMs),
		fetchedAt: fetched,
	}
	if !next.expiresAt.After(next.fetchedAt) {
		// The node's epoch bounds lag our clock; keep the entry usable
		// for one boundary window instead of expiring it in the past.
		next.expiresAt = fetched.Add(c.config.BoundaryWindow)
	}

	c.mu.Lock()
	previous := c.entry
	c.entry = next
	c.mu.Unlock()

	log.Debug("Refreshed reference gas price", "epoch", next.epoch, "price", next.price, "expires", next.expiresAt)

	if previous != nil && previous.epoch != next.epoch {
		epochMeter.Mark(1)
		log.Info("Epoch transition detected", "from", previous.epoch, "to", next.epoch)
		c.runEpochHook(ctx)
	}
	return next.price, nil
}

func (c *Cache) runEpochHook(ctx context.Context) {
	if c.config.OnEpochChange == nil {
		return
	}
	if err := c.config.OnEpochChange(ctx); err != nil {
		log.Error("Epoch revalidation failed, will retry", "err", err)
		c.mu.Lock()
		c.needsRevalidation = true
		c.mu.Unlock()
		return
	}
	c.mu.Lock()
	c.needsRevalidation = false
	c.mu.Unlock()
}

// retryRevalidation opportunistically reruns a previously failed epoch hook.
// Best-effort: errors keep the flag set for a later Get.
func (c *Cache) retryRevalidation(ctx context.Context) {
	c.mu.Lock()
	pending := c.needsRevalidation
	c.mu.Unlock()

	if !pending || c.config.OnEpochChange == nil || !c.retryLimiter.Allow() {
		return
	}
	c.runEpochHook(ctx)
}
