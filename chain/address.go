package chain

import (
	"fmt"
	"regexp"
	"strings"
)

// AddressLength is the byte length of an on-chain address.
const AddressLength = 32

// Address is a 0x-prefixed hex account address. Addresses received from the
// outside may be short-form; Normalize pads them to the canonical width.
type Address string

var addressPattern = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{1,64}$`)

// IsValidAddress reports whether s looks like a chain address. Short-form
// (unpadded) addresses are accepted, normalization pads them.
func IsValidAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// NormalizeAddress converts an address to its canonical form: lower-case hex,
// 0x-prefixed, zero-padded to the full address width. Blocklist and allowlist
// membership tests must only ever compare normalized values.
func NormalizeAddress(s string) (Address, error) {
	if !IsValidAddress(s) {
		return "", fmt.Errorf("invalid address %q", s)
	}
	hex := strings.ToLower(strings.TrimPrefix(s, "0x"))
	if pad := AddressLength*2 - len(hex); pad > 0 {
		hex = strings.Repeat("0", pad) + hex
	}
	return Address("0x" + hex), nil
}

// NormalizeTarget canonicalizes a package::module::function move target by
// normalizing the package address component.
func NormalizeTarget(target string) (string, error) {
	parts := strings.Split(target, "::")
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return "", fmt.Errorf("invalid move target %q", target)
	}
	pkg, err := NormalizeAddress(parts[0])
	if err != nil {
		return "", fmt.Errorf("invalid move target %q: %w", target, err)
	}
	return string(pkg) + "::" + parts[1] + "::" + parts[2], nil
}
