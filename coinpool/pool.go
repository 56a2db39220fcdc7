package coinpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/gas-station/chain"
)

// Errors
var (
	ErrInsufficientFunds = errors.New("sponsor owns no usable or splittable coins")
)

// Pool owns the sponsor's fee coins and hands out short-lived reservations
// against them. Every coin is used by at most one transaction at a time;
// reusing a coin whose on-chain state is unknown would equivocate it, so the
// pool deletes rather than recycles whenever it loses track of a coin.
//
// All exported methods are safe for concurrent use. Network calls are made
// outside the pool mutex; only the map mutations are critical sections.
type Pool struct {
	mu     sync.Mutex
	config Config

	coins map[chain.ObjectID]*Entry // Mapping from id to entry
	order []chain.ObjectID          // Insertion-ordered ids, scanned by Reserve

	now func() time.Time
}

// New creates an empty pool with the given (sanitized) configuration.
func New(config Config) *Pool {
	return &Pool{
		config: config.sanitize(),
		coins:  make(map[chain.ObjectID]*Entry),
		now:    time.Now,
	}
}

// Config returns the pool parameters.
func (p *Pool) Config() Config {
	return p.config
}

// Initialize discards all entries, reserved ones included, and repopulates
// the pool from the sponsor's on-chain coin set, splitting large coins if the
// target size cannot be met otherwise. It must not run concurrently with
// sponsorship; live top-up goes through Replenish instead.
func (p *Pool) Initialize(ctx context.Context, client chain.Client, codec chain.Codec, signer chain.Signer) error {
	defer MetricsPoolRefillCost(time.Now())

	p.mu.Lock()
	p.coins = make(map[chain.ObjectID]*Entry)
	p.order = p.order[:0]
	p.mu.Unlock()

	return p.refill(ctx, client, codec, signer)
}

// Replenish tops the pool up to its target size without touching existing
// entries. Coins already tracked are skipped. Safe to call while sponsorship
// traffic is live; this is what the depletion callback should trigger.
func (p *Pool) Replenish(ctx context.Context, client chain.Client, codec chain.Codec, signer chain.Signer) error {
	defer MetricsPoolRefillCost(time.Now())
	return p.refill(ctx, client, codec, signer)
}

func (p *Pool) refill(ctx context.Context, client chain.Client, codec chain.Codec, signer chain.Signer) error {
	usable, sources, err := p.listPartitioned(ctx, client, signer.Address())
	if err != nil {
		return err
	}
	if len(usable) == 0 && len(sources) == 0 {
		return ErrInsufficientFunds
	}

	// Admit usable coins up to the target, skipping tracked ids.
	p.mu.Lock()
	for _, coin := range usable {
		if len(p.coins) >= p.config.TargetPoolSize {
			break
		}
		if _, tracked := p.coins[coin.ObjectID]; tracked {
			continue
		}
		p.insertLocked(&Entry{
			ObjectID: coin.ObjectID,
			Version:  coin.Version,
			Digest:   coin.Digest,
			Balance:  coin.Balance,
			Status:   StatusAvailable,
		})
	}
	shortfall := p.config.TargetPoolSize - len(p.coins)
	p.mu.Unlock()

	if shortfall <= 0 || len(sources) == 0 {
		log.Debug("Coin pool refilled", "admitted", len(usable), "shortfall", shortfall)
		return nil
	}
	return p.splitShortfall(ctx, client, codec, signer, sources, shortfall)
}

// listPartitioned pages through the sponsor's coins and partitions them by
// balance: usable coins go straight into the pool, oversized ones become
// split sources, dust is ignored.
func (p *Pool) listPartitioned(ctx context.Context, client chain.Client, owner chain.Address) (usable, sources []*chain.Coin, err error) {
	var cursor *string
	for {
		page, err := client.GetCoins(ctx, owner, cursor)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list sponsor coins: %w", err)
		}
		for _, coin := range page.Data {
			switch {
			case coin.Balance < p.config.MinCoinBalance:
				// dust
			case coin.Balance <= 2*p.config.TargetCoinBalance:
				usable = append(usable, coin)
			default:
				sources = append(sources, coin)
			}
		}
		if !page.HasNextPage || page.NextCursor == nil {
			return usable, sources, nil
		}
		cursor = page.NextCursor
	}
}

// splitShortfall issues one transaction that uses the source coins as gas
// payment and splits n target-sized coins off the merged gas coin, back to
// the sponsor's own address.
func (p *Pool) splitShortfall(ctx context.Context, client chain.Client, codec chain.Codec, signer chain.Signer, sources []*chain.Coin, n int) error {
	state, err := client.LatestSystemState(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch gas price for coin split: %w", err)
	}

	amounts := make([]uint64, n)
	payment := make([]chain.ObjectRef, len(sources))
	for i := range amounts {
		amounts[i] = p.config.TargetCoinBalance
	}
	for i, coin := range sources {
		payment[i] = coin.Ref()
	}

	tx := codec.NewGasSplit(amounts, signer.Address())
	tx.SetSender(signer.Address())
	tx.SetGasOwner(signer.Address())
	tx.SetGasPayment(payment)
	tx.SetGasPrice(state.ReferenceGasPrice)
	tx.SetGasBudget(p.config.TargetCoinBalance)

	txBytes, err := codec.Build(ctx, tx, client)
	if err != nil {
		return fmt.Errorf("failed to build coin split: %w", err)
	}
	sig, err := signer.Sign(ctx, txBytes)
	if err != nil {
		return fmt.Errorf("failed to sign coin split: %w", err)
	}
	result, err := client.ExecuteTransaction(ctx, txBytes, []string{sig})
	if err != nil {
		return fmt.Errorf("failed to execute coin split: %w", err)
	}
	if result.Effects == nil || len(result.Effects.Created) == 0 {
		return fmt.Errorf("%w: coin split %s created no coins", ErrInsufficientFunds, result.Digest)
	}

	p.mu.Lock()
	for _, created := range result.Effects.Created {
		p.insertLocked(&Entry{
			ObjectID: created.Reference.ObjectID,
			Version:  created.Reference.Version,
			Digest:   created.Reference.Digest,
			Balance:  p.config.TargetCoinBalance,
			Status:   StatusAvailable,
		})
	}
	p.mu.Unlock()

	log.Info("Split sponsor coins", "tx", result.Digest, "created", len(result.Effects.Created), "sources", len(sources))
	return nil
}

// Reserve sweeps expired reservations, then claims the first available entry
// holding at least minBalance (the configured minimum when zero). The
// returned entry is a snapshot copy; nil means the pool is exhausted.
func (p *Pool) Reserve(minBalance uint64) *Entry {
	if minBalance == 0 {
		minBalance = p.config.MinCoinBalance
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.sweepExpiredLocked(p.now())

	for _, id := range p.order {
		entry := p.coins[id]
		if entry.Status != StatusAvailable || entry.Balance < minBalance {
			continue
		}
		entry.Status = StatusReserved
		entry.ReservedAt = p.now()

		PoolReserveMeter.Mark(1)
		MetricsPoolStats(p.statsLocked())
		log.Trace("Coin reserved", "coin", entry.ObjectID, "balance", entry.Balance)

		snapshot := *entry
		return &snapshot
	}

	PoolReserveMissMeter.Mark(1)
	log.Debug("Coin reservation missed", "minBalance", minBalance, "total", len(p.coins))
	return nil
}

// Release returns a reserved coin to the available set. Idempotent: unknown
// or already-available ids are no-ops.
func (p *Pool) Release(id chain.ObjectID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.coins[id]
	if !ok || entry.Status != StatusReserved {
		return
	}
	entry.Status = StatusAvailable
	entry.ReservedAt = time.Time{}

	MetricsPoolStats(p.statsLocked())
	log.Trace("Coin released", "coin", id)
}

// UpdateFromEffects applies a transaction's execution effects to the coin it
// paid with. Effects naming a different gas object than id mean the report
// was misrouted and the coin's true on-chain state is unknown; it is dropped
// rather than risked. Coins worn below the minimum balance are dropped too.
func (p *Pool) UpdateFromEffects(effects *chain.Effects, id chain.ObjectID) {
	if effects == nil || effects.GasObject == nil || effects.GasUsed == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.coins[id]
	if !ok {
		return
	}

	ref := effects.GasObject.Reference
	if ref.ObjectID != id {
		p.removeLocked(id)
		PoolEvictedMeter.Mark(1)
		MetricsPoolStats(p.statsLocked())
		log.Warn("Dropping coin after misrouted effects report", "coin", id, "effectsCoin", ref.ObjectID)
		return
	}

	if ref.Version <= entry.Version {
		// Object versions only move forward; a report at or below the
		// tracked version is a duplicate or stale.
		log.Trace("Ignoring stale effects report", "coin", id, "tracked", entry.Version, "reported", ref.Version)
		return
	}

	// Consumed can be negative when storage rebates exceed the costs.
	balance := int64(entry.Balance) - effects.GasUsed.Consumed()
	if balance < 0 {
		// Tracked balance drifted from the chain; clamp rather than wrap.
		log.Warn("Coin balance underflow on effects report", "coin", id, "tracked", entry.Balance, "consumed", effects.GasUsed.Consumed())
		balance = 0
	}

	if uint64(balance) < p.config.MinCoinBalance {
		p.removeLocked(id)
		PoolEvictedMeter.Mark(1)
		MetricsPoolStats(p.statsLocked())
		log.Debug("Coin worn out", "coin", id, "balance", balance, "min", p.config.MinCoinBalance)
		return
	}

	entry.Version = ref.Version
	entry.Digest = ref.Digest
	entry.Balance = uint64(balance)
	entry.Status = StatusAvailable
	entry.ReservedAt = time.Time{}

	MetricsPoolStats(p.statsLocked())
	log.Trace("Coin updated from effects", "coin", id, "version", ref.Version, "balance", balance)
}

// SweepExpired deletes every reservation older than the timeout as of now and
// returns the deleted ids. Expired coins are deleted, not recycled: the pool
// cannot tell whether the silent client submitted, and a stale reference
// risks equivocation. Safety beats availability here.
func (p *Pool) SweepExpired(now time.Time) []chain.ObjectID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sweepExpiredLocked(now)
}

func (p *Pool) sweepExpiredLocked(now time.Time) []chain.ObjectID {
	var swept []chain.ObjectID
	for _, id := range p.order {
		entry := p.coins[id]
		if entry.Status == StatusReserved && now.Sub(entry.ReservedAt) > p.config.ReservationTimeout {
			swept = append(swept, id)
		}
	}
	for _, id := range swept {
		p.removeLocked(id)
		log.Warn("Deleted expired coin reservation", "coin", id, "timeout", p.config.ReservationTimeout)
	}
	if len(swept) > 0 {
		PoolExpiredMeter.Mark(int64(len(swept)))
		MetricsPoolStats(p.statsLocked())
	}
	return swept
}

// Revalidate refreshes every tracked coin's reference from the chain, after
// an epoch boundary or suspected drift. Reserved entries are skipped: their
// execution report is still pending and overwriting the reference mid-flight
// would trip the report's identity check. Deleted coins are dropped.
func (p *Pool) Revalidate(ctx context.Context, client chain.Client) error {
	p.mu.Lock()
	ids := make([]chain.ObjectID, 0, len(p.order))
	for _, id := range p.order {
		if p.coins[id].Status != StatusReserved {
			ids = append(ids, id)
		}
	}
	p.mu.Unlock()

	if len(ids) == 0 {
		return nil
	}
	objects, err := client.MultiGetObjects(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to revalidate coins: %w", err)
	}
	if len(objects) != len(ids) {
		return fmt.Errorf("revalidation returned %d objects for %d ids", len(objects), len(ids))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var refreshed, dropped int
	for i, id := range ids {
		entry, ok := p.coins[id]
		if !ok || entry.Status == StatusReserved {
			// Reserved (or reported away) while we were fetching.
			continue
		}
		obj := objects[i]
		if obj == nil {
			p.removeLocked(id)
			dropped++
			continue
		}
		entry.Version = obj.Ref.Version
		entry.Digest = obj.Ref.Digest
		entry.Balance = obj.Balance
		refreshed++
	}
	MetricsPoolStats(p.statsLocked())
	log.Debug("Coin pool revalidated", "refreshed", refreshed, "dropped", dropped)
	return nil
}

// Close sweeps expired reservations, folds the remaining available coins back
// into a single coin so the next start finds a clean slate, and clears the
// pool. Reserved entries are abandoned. The merge is best-effort; its errors
// are logged, not surfaced.
func (p *Pool) Close(ctx context.Context, client chain.Client, codec chain.Codec, signer chain.Signer) {
	p.mu.Lock()
	p.sweepExpiredLocked(p.now())
	available := make([]*Entry, 0, len(p.order))
	for _, id := range p.order {
		if entry := p.coins[id]; entry.Status == StatusAvailable {
			available = append(available, entry)
		}
	}
	p.mu.Unlock()

	if len(available) >= 2 {
		if err := p.mergeCoins(ctx, client, codec, signer, available); err != nil {
			log.Error("Failed to merge coins on close", "err", err)
		}
	}

	p.mu.Lock()
	p.coins = make(map[chain.ObjectID]*Entry)
	p.order = p.order[:0]
	MetricsPoolStats(p.statsLocked())
	p.mu.Unlock()
	log.Info("Coin pool closed", "merged", len(available))
}

func (p *Pool) mergeCoins(ctx context.Context, client chain.Client, codec chain.Codec, signer chain.Signer, available []*Entry) error {
	// The first coin is the gas payment; the rest merge into it.
	sources := make([]chain.ObjectRef, 0, len(available)-1)
	for _, entry := range available[1:] {
		sources = append(sources, entry.Ref())
	}
	state, err := client.LatestSystemState(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch gas price for coin merge: %w", err)
	}

	tx := codec.NewGasMerge(sources)
	tx.SetSender(signer.Address())
	tx.SetGasOwner(signer.Address())
	tx.SetGasPayment([]chain.ObjectRef{available[0].Ref()})
	tx.SetGasPrice(state.ReferenceGasPrice)
	tx.SetGasBudget(p.config.TargetCoinBalance)

	txBytes, err := codec.Build(ctx, tx, client)
	if err != nil {
		return fmt.Errorf("failed to build coin merge: %w", err)
	}
	sig, err := signer.Sign(ctx, txBytes)
	if err != nil {
		return fmt.Errorf("failed to sign coin merge: %w", err)
	}
	result, err := client.ExecuteTransaction(ctx, txBytes, []string{sig})
	if err != nil {
		return fmt.Errorf("failed to execute coin merge: %w", err)
	}
	log.Info("Merged sponsor coins", "tx", result.Digest, "sources", len(sources))
	return nil
}

// Stats returns a point-in-time summary of the pool.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statsLocked()
}

func (p *Pool) statsLocked() Stats {
	stats := Stats{Total: len(p.coins)}
	for _, entry := range p.coins {
		if entry.Status == StatusReserved {
			stats.Reserved++
		}
		stats.TotalBalance += entry.Balance
	}
	stats.Available = stats.Total - stats.Reserved
	return stats
}

func (p *Pool) insertLocked(entry *Entry) {
	if _, tracked := p.coins[entry.ObjectID]; tracked {
		return
	}
	p.coins[entry.ObjectID] = entry
	p.order = append(p.order, entry.ObjectID)
	MetricsPoolStats(p.statsLocked())
}

func (p *Pool) removeLocked(id chain.ObjectID) {
	if _, ok := p.coins[id]; !ok {
		return
	}
	delete(p.coins, id)
	for i, ordered := range p.order {
		if ordered == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}
