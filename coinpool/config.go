package coinpool

import (
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// DefaultConfig targets twenty coins of 0.5 native units each, evicting any
// coin that falls below a tenth of the target.
var DefaultConfig = Config{
	TargetPoolSize:     20,
	TargetCoinBalance:  500_000_000,
	MinCoinBalance:     50_000_000,
	ReservationTimeout: 30 * time.Second,
}

// Config are the pool parameters, fixed at construction.
type Config struct {
	TargetPoolSize     int           // Number of fee coins the pool tries to hold
	TargetCoinBalance  uint64        // Per-coin balance created by splitting
	MinCoinBalance     uint64        // Coins below this balance are evicted
	ReservationTimeout time.Duration // Reservations older than this are swept
}

// sanitize fills zero values from defaults so a partially populated config
// cannot produce a pool that reserves nothing or sweeps instantly.
func (c Config) sanitize() Config {
	if c.TargetPoolSize < 1 {
		log.Warn("Sanitizing invalid coinpool target size", "provided", c.TargetPoolSize, "updated", DefaultConfig.TargetPoolSize)
		c.TargetPoolSize = DefaultConfig.TargetPoolSize
	}
	if c.TargetCoinBalance == 0 {
		log.Warn("Sanitizing invalid coinpool target balance", "updated", DefaultConfig.TargetCoinBalance)
		c.TargetCoinBalance = DefaultConfig.TargetCoinBalance
	}
	if c.MinCoinBalance == 0 {
		log.Warn("Sanitizing invalid coinpool min balance", "updated", DefaultConfig.MinCoinBalance)
		c.MinCoinBalance = DefaultConfig.MinCoinBalance
	}
	if c.ReservationTimeout <= 0 {
		log.Warn("Sanitizing invalid coinpool reservation timeout", "updated", DefaultConfig.ReservationTimeout)
		c.ReservationTimeout = DefaultConfig.ReservationTimeout
	}
	return c
}
