// Package policy validates sender intents against sponsor-side constraints
// before any coin is committed to them.
package policy

import (
	"github.com/mantlenetworkio/gas-station/chain"
)

// Policy is an immutable set of sponsor-side constraints. The zero value
// permits everything except gas coin usage, which stays rejected until the
// operator opts in explicitly.
type Policy struct {
	// MaxBudgetPerTx caps the gas budget of a single sponsorship. Zero
	// means uncapped.
	MaxBudgetPerTx uint64

	// AllowedTargets restricts MoveCall commands to the listed
	// package::module::function names. Empty means no restriction.
	// Publish and Upgrade commands are rejected whenever the list is
	// non-empty, since they carry no per-function target.
	AllowedTargets []string

	// BlockedSenders rejects requests from the listed addresses.
	BlockedSenders []string

	// AllowGasCoinUsage disables the gas coin drain check. A body that
	// references the gas coin can move the sponsor's funds beyond the fee,
	// so this stays off unless the operator knows what the senders do.
	AllowGasCoinUsage bool

	// CustomValidator runs last; returning false rejects the request.
	CustomValidator func(sender chain.Address, body []byte, budget uint64) bool
}

// GetAllowGasCoinUsage reports the opt-in, treating a nil policy as off.
func (p *Policy) GetAllowGasCoinUsage() bool {
	return p != nil && p.AllowGasCoinUsage
}
