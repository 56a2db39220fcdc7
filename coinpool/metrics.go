package coinpool

import (
	"time"

	"github.com/ethereum/go-ethereum/metrics"
)

// metrics
var (
	// Pool composition gauges
	PoolTotalGauge     = metrics.NewRegisteredGauge("gasstation/pool/total", nil)
	PoolAvailableGauge = metrics.NewRegisteredGauge("gasstation/pool/available", nil)
	PoolReservedGauge  = metrics.NewRegisteredGauge("gasstation/pool/reserved", nil)
	PoolBalanceGauge   = metrics.NewRegisteredGauge("gasstation/pool/balance", nil)

	// Reservation flow meters
	PoolReserveMeter     = metrics.NewRegisteredMeter("gasstation/pool/reserve", nil)
	PoolReserveMissMeter = metrics.NewRegisteredMeter("gasstation/pool/reserve/miss", nil)
	PoolExpiredMeter     = metrics.NewRegisteredMeter("gasstation/pool/expired", nil)
	PoolEvictedMeter     = metrics.NewRegisteredMeter("gasstation/pool/evicted", nil)

	// Refill timing
	PoolRefillTimer = metrics.NewRegisteredTimer("gasstation/pool/refill", nil)
)

// Pool composition update
func MetricsPoolStats(s Stats) {
	PoolTotalGauge.Update(int64(s.Total))
	PoolAvailableGauge.Update(int64(s.Available))
	PoolReservedGauge.Update(int64(s.Reserved))
	PoolBalanceGauge.Update(int64(s.TotalBalance))
}

// Refill timing
func MetricsPoolRefillCost(start time.Time) {
	PoolRefillTimer.Update(time.Since(start))
}
