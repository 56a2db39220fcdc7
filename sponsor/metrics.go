package sponsor

import (
	"time"

	"github.com/ethereum/go-ethereum/metrics"
)

// metrics
var (
	// Sponsorship outcome counters
	SponsorSuccessMeter = metrics.NewRegisteredMeter("gasstation/sponsor/success", nil)
	SponsorFailureMeter = metrics.NewRegisteredMeter("gasstation/sponsor/failure", nil)

	// Sponsorship processing time
	SponsorHandleTimer = metrics.NewRegisteredTimer("gasstation/sponsor/handle", nil)

	// Depletion callback invocations
	PoolDepletedMeter = metrics.NewRegisteredMeter("gasstation/sponsor/depleted", nil)
)

// Sponsorship processing timing
func MetricsSponsorHandleCost(start time.Time) {
	SponsorHandleTimer.Update(time.Since(start))
}
