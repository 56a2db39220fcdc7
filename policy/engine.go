package policy

import (
	"errors"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/gas-station/chain"
)

// Errors
var (
	ErrBudgetExceeded    = errors.New("requested budget exceeds policy cap")
	ErrSenderBlocked     = errors.New("sender is blocked by policy")
	ErrTargetNotAllowed  = errors.New("call target not in policy allowlist")
	ErrPublishNotAllowed = errors.New("code deployment bypasses the target allowlist")
	ErrCustomRejected    = errors.New("rejected by custom validator")
	ErrGasCoinUsage      = errors.New("transaction references the GasCoin")
)

// Engine validates (sender, body, budget) tuples against a policy. It needs
// the codec only to decode bodies when a target allowlist is in force.
type Engine struct {
	codec chain.Codec
}

// NewEngine creates a policy engine over the given codec.
func NewEngine(codec chain.Codec) *Engine {
	return &Engine{codec: codec}
}

// Validate applies the policy rules cheapest first: budget cap, sender
// blocklist, target allowlist, then the custom validator. The gas coin drain
// check is separate (CheckGasCoinUsage) because it runs on the reconstructed
// transaction, not the raw body.
func (e *Engine) Validate(p *Policy, sender chain.Address, body []byte, budget uint64) error {
	if p == nil {
		return nil
	}

	if p.MaxBudgetPerTx > 0 && budget > p.MaxBudgetPerTx {
		return fmt.Errorf("%w: %d > %d", ErrBudgetExceeded, budget, p.MaxBudgetPerTx)
	}

	if len(p.BlockedSenders) > 0 {
		normalized, err := chain.NormalizeAddress(string(sender))
		if err != nil {
			return fmt.Errorf("invalid sender address: %w", err)
		}
		blocked := mapset.NewThreadUnsafeSet[chain.Address]()
		for _, raw := range p.BlockedSenders {
			addr, err := chain.NormalizeAddress(raw)
			if err != nil {
				// An unparseable blocklist entry cannot match anyone;
				// warn the operator instead of failing the request.
				log.Warn("Skipping malformed blocklist entry", "entry", raw, "err", err)
				continue
			}
			blocked.Add(addr)
		}
		if blocked.Contains(normalized) {
			return fmt.Errorf("%w: %s", ErrSenderBlocked, normalized)
		}
	}

	if len(p.AllowedTargets) > 0 {
		if err := e.checkTargets(p, body); err != nil {
			return err
		}
	}

	if p.CustomValidator != nil && !p.CustomValidator(sender, body, budget) {
		return ErrCustomRejected
	}
	return nil
}

func (e *Engine) checkTargets(p *Policy, body []byte) error {
	tx, err := e.codec.ParseKind(body)
	if err != nil {
		return fmt.Errorf("failed to decode transaction body: %w", err)
	}

	allowed := mapset.NewThreadUnsafeSet[string]()
	for _, raw := range p.AllowedTargets {
		target, err := chain.NormalizeTarget(raw)
		if err != nil {
			return fmt.Errorf("malformed allowlist target: %w", err)
		}
		allowed.Add(target)
	}

	for _, cmd := range tx.Commands() {
		switch cmd.Kind {
		case chain.Publish, chain.Upgrade:
			return fmt.Errorf("%w: %s", ErrPublishNotAllowed, cmd.Kind)
		case chain.MoveCall:
			target, err := cmd.Target()
			if err != nil {
				return err
			}
			if !allowed.Contains(target) {
				return fmt.Errorf("%w: %s", ErrTargetNotAllowed, target)
			}
		}
	}
	return nil
}

// CheckGasCoinUsage rejects any command argument referencing the implicit gas
// coin. SplitCoins(GasCoin, [n]) + TransferObjects drains the sponsor's coin
// past the fee, which is exactly what sponsorship must not allow.
func CheckGasCoinUsage(commands []*chain.Command) error {
	for i, cmd := range commands {
		for _, arg := range cmd.InputArguments() {
			if arg.Kind == chain.GasCoin {
				return fmt.Errorf("%w: command %d (%s)", ErrGasCoinUsage, i, cmd.Kind)
			}
		}
	}
	return nil
}
