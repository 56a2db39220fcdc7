// Package sponsor composes the coin pool, price cache and policy engine into
// the public gas sponsorship surface: hand in a sender intent, get back
// wire-ready transaction bytes and the sponsor's signature.
package sponsor

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"github.com/mantlenetworkio/gas-station/chain"
	"github.com/mantlenetworkio/gas-station/coinpool"
	"github.com/mantlenetworkio/gas-station/gasprice"
	"github.com/mantlenetworkio/gas-station/policy"
)

// SponsorRequest is one sender intent to sponsor.
type SponsorRequest struct {
	// Sender is the address authorizing the operation.
	Sender string

	// Body is the serialized transaction body (operations without gas
	// data). BodyBase64 may be used instead when the body travelled as an
	// opaque string.
	Body       []byte
	BodyBase64 string

	// GasBudget caps the fee; zero lets the build step estimate it under
	// the policy or pool ceiling.
	GasBudget uint64

	// Policy overrides the configured policy for this request when set.
	Policy *policy.Policy
}

// SponsoredTransaction is the wire-ready result of one sponsorship. The
// caller submits it together with the sender's signature, then reports the
// execution effects back so the fee coin can be reused.
type SponsoredTransaction struct {
	TransactionBytes string               `json:"transactionBytes"` // base64 full transaction
	SponsorSignature string               `json:"sponsorSignature"` // base64
	GasBudget        uint64               `json:"gasBudget"`
	GasPrice         uint64               `json:"gasPrice"`
	Reservation      coinpool.Reservation `json:"reservation"`
}

// Sponsor is the public façade. All methods are safe for concurrent use.
type Sponsor struct {
	client chain.Client
	signer chain.Signer
	codec  chain.Codec
	config Config

	pool   *coinpool.Pool
	prices *gasprice.Cache
	engine *policy.Engine

	initialized atomic.Bool
}

// New wires a sponsor from its collaborators. Initialize must be called
// before any sponsorship.
func New(client chain.Client, signer chain.Signer, codec chain.Codec, config Config) *Sponsor {
	s := &Sponsor{
		client: client,
		signer: signer,
		codec:  codec,
		config: config,
		pool:   coinpool.New(config.Pool),
		engine: policy.NewEngine(codec),
	}
	s.prices = gasprice.NewCache(client, gasprice.Config{
		BoundaryWindow: config.EpochBoundaryWindow,
		OnEpochChange: func(ctx context.Context) error {
			return s.pool.Revalidate(ctx, client)
		},
	})
	return s
}

// Initialize populates the coin pool from the sponsor's on-chain holdings and
// primes the price cache. Destructive on the pool: not for use while traffic
// is live.
func (s *Sponsor) Initialize(ctx context.Context) error {
	if err := s.pool.Initialize(ctx, s.client, s.codec, s.signer); err != nil {
		if errors.Is(err, coinpool.ErrInsufficientFunds) {
			return newError(ErrCodeInsufficientFunds, err, err.Error(), "sponsor", s.signer.Address())
		}
		return fmt.Errorf("failed to initialize coin pool: %w", err)
	}
	if _, err := s.prices.Refresh(ctx); err != nil {
		return fmt.Errorf("failed to prime gas price cache: %w", err)
	}
	s.initialized.Store(true)

	stats := s.pool.Stats()
	log.Info("Sponsor initialized", "sponsor", s.signer.Address(), "coins", stats.Total, "balance", stats.TotalBalance)
	return nil
}

// SponsorTransaction attaches a fee coin, gas parameters and the sponsor
// signature to a sender intent. On any failure after the coin is reserved,
// the reservation is released before the error propagates, so a failed call
// leaves no side effect.
func (s *Sponsor) SponsorTransaction(ctx context.Context, req *SponsorRequest) (result *SponsoredTransaction, err error) {
	defer MetricsSponsorHandleCost(time.Now())
	defer func() {
		if err != nil {
			SponsorFailureMeter.Mark(1)
		} else {
			SponsorSuccessMeter.Mark(1)
		}
	}()
	reqID := uuid.NewString()[:8]

	if !s.initialized.Load() {
		return nil, newError(ErrCodeNotInitialized, nil, "sponsor not initialized")
	}
	if !chain.IsValidAddress(req.Sender) {
		return nil, newError(ErrCodePolicyViolation, nil, "invalid sender address", "sender", req.Sender)
	}
	sender, _ := chain.NormalizeAddress(req.Sender)

	price, err := s.prices.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch gas price: %w", err)
	}

	body := req.Body
	if len(body) == 0 && req.BodyBase64 != "" {
		body, err = base64.StdEncoding.DecodeString(req.BodyBase64)
		if err != nil {
			return nil, newError(ErrCodeBuildFailed, err, "transaction body is not valid base64", "sender", sender)
		}
	}
	if len(body) == 0 {
		return nil, newError(ErrCodeBuildFailed, nil, "empty transaction body", "sender", sender)
	}

	pol := req.Policy
	if pol == nil {
		pol = s.config.Policy
	}
	if pol != nil {
		if perr := s.engine.Validate(pol, sender, body, req.GasBudget); perr != nil {
			log.Debug("Sponsorship rejected by policy", "req", reqID, "sender", sender, "err", perr)
			return nil, newError(ErrCodePolicyViolation, perr, perr.Error(), "sender", sender)
		}
	}

	coin := s.pool.Reserve(req.GasBudget)
	if coin == nil {
		s.fireDepleted()
		return nil, newError(ErrCodePoolExhausted, nil, "no fee coin available", "sender", sender)
	}
	if s.pool.Stats().Available == 0 {
		// That was the last coin; give the operator a head start on refilling.
		s.fireDepleted()
	}

	// Everything below holds a live reservation. Release it on every
	// failure path, including cancellation surfacing through the codec.
	released := false
	defer func() {
		if err != nil && !released {
			s.pool.Release(coin.ObjectID)
		}
	}()

	tx, err := s.codec.ParseKind(body)
	if err != nil {
		return nil, newError(ErrCodeBuildFailed, err, "failed to parse transaction body", "sender", sender)
	}

	if !pol.GetAllowGasCoinUsage() {
		if derr := policy.CheckGasCoinUsage(tx.Commands()); derr != nil {
			log.Warn("Sponsorship rejected by gas coin check", "req", reqID, "sender", sender, "err", derr)
			return nil, newError(ErrCodePolicyViolation, derr, derr.Error(), "sender", sender)
		}
	}

	tx.SetSender(sender)
	tx.SetGasOwner(s.signer.Address())
	tx.SetGasPayment([]chain.ObjectRef{coin.Ref()})
	tx.SetGasPrice(price)

	// The ceiling bounds the dry-run in the codec's build step, and with it
	// the worst case spend of this sponsorship.
	ceiling := req.GasBudget
	if ceiling == 0 && pol != nil && pol.MaxBudgetPerTx > 0 {
		ceiling = pol.MaxBudgetPerTx
	}
	if ceiling == 0 {
		ceiling = s.config.Pool.TargetCoinBalance
	}
	tx.SetGasBudget(ceiling)

	txBytes, err := s.codec.Build(ctx, tx, s.client)
	if err != nil {
		return nil, newError(ErrCodeBuildFailed, err, "failed to build transaction", "sender", sender, "coin", coin.ObjectID)
	}
	signature, err := s.signer.Sign(ctx, txBytes)
	if err != nil {
		return nil, newError(ErrCodeSignFailed, err, "sponsor signing failed", "sender", sender)
	}

	// The build step may have estimated a budget below the ceiling; read
	// the final value back from the built bytes.
	built, err := s.codec.ParseFull(txBytes)
	if err != nil {
		return nil, newError(ErrCodeBuildFailed, err, "failed to re-parse built transaction", "sender", sender)
	}
	finalBudget := built.GasBudget()
	if pol != nil && pol.MaxBudgetPerTx > 0 && finalBudget > pol.MaxBudgetPerTx {
		return nil, newError(ErrCodePolicyViolation, nil, "final budget exceeds policy cap",
			"sender", sender, "budget", finalBudget, "cap", pol.MaxBudgetPerTx)
	}

	log.Debug("Sponsored transaction", "req", reqID, "sender", sender, "coin", coin.ObjectID, "budget", finalBudget, "price", price)
	return &SponsoredTransaction{
		TransactionBytes: base64.StdEncoding.EncodeToString(txBytes),
		SponsorSignature: signature,
		GasBudget:        finalBudget,
		GasPrice:         price,
		Reservation: coinpool.Reservation{
			ObjectID:   coin.ObjectID,
			ReservedAt: coin.ReservedAt.UnixMilli(),
		},
	}, nil
}

// ReportExecution feeds a transaction's execution effects back to the pool so
// the fee coin can be reused. Idempotent: repeating a report is a no-op.
func (s *Sponsor) ReportExecution(reservation *coinpool.Reservation, effects *chain.Effects) error {
	if !s.initialized.Load() {
		return newError(ErrCodeNotInitialized, nil, "sponsor not initialized")
	}
	if reservation == nil || reservation.ObjectID == "" {
		return newError(ErrCodeInvalidEffects, nil, "missing reservation")
	}
	if effects == nil || effects.GasObject == nil || effects.GasObject.Reference.ObjectID == "" || effects.GasUsed == nil {
		return newError(ErrCodeInvalidEffects, nil, "effects lack gas object reference or gas usage", "coin", reservation.ObjectID)
	}
	s.pool.UpdateFromEffects(effects, reservation.ObjectID)
	return nil
}

// Replenish tops the coin pool back up to its target size. Safe while
// traffic is live; wire it to the depletion callback or a refill ticker.
func (s *Sponsor) Replenish(ctx context.Context) error {
	if !s.initialized.Load() {
		return newError(ErrCodeNotInitialized, nil, "sponsor not initialized")
	}
	if err := s.pool.Replenish(ctx, s.client, s.codec, s.signer); err != nil {
		if errors.Is(err, coinpool.ErrInsufficientFunds) {
			return newError(ErrCodeInsufficientFunds, err, err.Error(), "sponsor", s.signer.Address())
		}
		return fmt.Errorf("failed to replenish coin pool: %w", err)
	}
	return nil
}

// Close merges the available coins back together and clears the pool.
// In-flight reservations are abandoned.
func (s *Sponsor) Close(ctx context.Context) error {
	if !s.initialized.Load() {
		return newError(ErrCodeNotInitialized, nil, "sponsor not initialized")
	}
	s.pool.Close(ctx, s.client, s.codec, s.signer)
	s.initialized.Store(false)
	return nil
}

// Stats returns a point-in-time summary of the coin pool.
func (s *Sponsor) Stats() coinpool.Stats {
	return s.pool.Stats()
}

// fireDepleted invokes the depletion callback, swallowing anything it throws.
// Diagnostic only, never control flow.
func (s *Sponsor) fireDepleted() {
	cb := s.config.OnPoolDepleted
	if cb == nil {
		return
	}
	PoolDepletedMeter.Mark(1)
	defer func() {
		if r := recover(); r != nil {
			log.Error("Pool depletion callback panicked", "panic", r)
		}
	}()
	cb(s.pool.Stats())
}
