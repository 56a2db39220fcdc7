// Package signer provides an in-memory sponsor key for tests and the CLI.
// Production deployments should implement chain.Signer over an HSM or remote
// signing service instead.
package signer

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/mantlenetworkio/gas-station/chain"
)

// ed25519Flag is the signature scheme flag prepended to both the signature
// envelope and the address preimage.
const ed25519Flag = 0x00

// InMemory holds an ed25519 key in process memory.
type InMemory struct {
	key     ed25519.PrivateKey
	address chain.Address
}

var _ chain.Signer = (*InMemory)(nil)

// NewInMemory derives a signer from a 32-byte seed.
func NewInMemory(seed []byte) (*InMemory, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	key := ed25519.NewKeyFromSeed(seed)

	// address = blake2b-256(flag || pubkey)
	preimage := append([]byte{ed25519Flag}, key.Public().(ed25519.PublicKey)...)
	digest := blake2b.Sum256(preimage)
	return &InMemory{
		key:     key,
		address: chain.Address("0x" + hex.EncodeToString(digest[:])),
	}, nil
}

// Address returns the sponsor address derived from the key.
func (s *InMemory) Address() chain.Address {
	return s.address
}

// Sign produces the chain's serialized signature: base64(flag || sig || pubkey).
func (s *InMemory) Sign(_ context.Context, data []byte) (string, error) {
	sig := ed25519.Sign(s.key, data)
	serialized := make([]byte, 0, 1+len(sig)+ed25519.PublicKeySize)
	serialized = append(serialized, ed25519Flag)
	serialized = append(serialized, sig...)
	serialized = append(serialized, s.key.Public().(ed25519.PublicKey)...)
	return base64.StdEncoding.EncodeToString(serialized), nil
}
