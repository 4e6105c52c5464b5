package chains

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// AccountKind classifies a Solana address.
type AccountKind string

const (
	// AccountKeypair is a point on the ed25519 curve, i.e. an address that
	// can have a private key.
	AccountKeypair AccountKind = "keypair"
	// AccountProgramDerived is off the curve and can only be signed for by
	// the program that derived it.
	AccountProgramDerived AccountKind = "program_derived"
)

// SolanaAccountKind decodes a base58 Solana address and reports whether it
// lies on the ed25519 curve.
func SolanaAccountKind(address string) (AccountKind, error) {
	raw, err := base58.Decode(address)
	if err != nil {
		return "", fmt.Errorf("decode solana address: %w", err)
	}
	if len(raw) != solanaKeyLen {
		return "", fmt.Errorf("solana address decodes to %d bytes, want %d", len(raw), solanaKeyLen)
	}
	if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
		return AccountProgramDerived, nil
	}
	return AccountKeypair, nil
}
