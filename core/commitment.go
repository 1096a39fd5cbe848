package core

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// Commitment is a Keccak-256 digest binding a ciphertext handle to a
// bidder-chosen salt, enabling tamper-evident reveal later. The salt is the
// bidder's private material: only the digest is ever transmitted or stored.
type Commitment [32]byte

// BindCommitment computes Keccak-256(handle || salt). Deterministic, no side
// effects. A later reveal re-supplies the original handle and salt and
// recomputes the digest; verification itself happens outside the engine.
func BindCommitment(handle CiphertextHandle, salt []byte) Commitment {
	d := sha3.NewLegacyKeccak256()
	d.Write(handle[:])
	d.Write(salt)

	var c Commitment
	d.Sum(c[:0])
	return c
}

// Hex returns the 0x-prefixed hex encoding of the commitment.
func (c Commitment) Hex() string {
	return "0x" + hex.EncodeToString(c[:])
}

func (c Commitment) String() string {
	return c.Hex()
}
