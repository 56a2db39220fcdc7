package sponsor

import (
	"time"

	"github.com/mantlenetworkio/gas-station/coinpool"
	"github.com/mantlenetworkio/gas-station/policy"
)

// DefaultConfig carries the pool defaults and a one second epoch boundary
// window.
var DefaultConfig = Config{
	Pool:                coinpool.DefaultConfig,
	EpochBoundaryWindow: time.Second,
}

// Config configures a Sponsor.
type Config struct {
	// Pool parameters for the fee coin pool.
	Pool coinpool.Config

	// Policy applied to every request unless the request carries its own.
	// Nil means no policy beyond the always-on gas coin check.
	Policy *policy.Policy

	// EpochBoundaryWindow is the quiet window around epoch boundaries in
	// which price reads wait for the new epoch.
	EpochBoundaryWindow time.Duration

	// OnPoolDepleted fires when a reservation finds or leaves the pool
	// empty. Diagnostic only: it runs outside the pool lock, its panics
	// are swallowed, and it must not block for long.
	OnPoolDepleted func(coinpool.Stats)
}
