package core

import (
	"encoding/hex"
	"fmt"
)

// HandleSize is the fixed size in bytes of a ciphertext handle. Handles are
// opaque references into the external encryption layer; the engine stores and
// indexes them but never interprets their content.
const HandleSize = 32

// CiphertextHandle is an opaque fixed-size reference to a homomorphically
// encrypted bid value.
type CiphertextHandle [HandleSize]byte

// ParseHandle validates the fixed-size check and copies raw bytes into a
// handle. Returns ErrInvalidCiphertext for any other length.
func ParseHandle(raw []byte) (CiphertextHandle, error) {
	var h CiphertextHandle
	if len(raw) != HandleSize {
		return h, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidCiphertext, HandleSize, len(raw))
	}
	copy(h[:], raw)
	return h, nil
}

// Bytes returns the handle as a fresh byte slice.
func (h CiphertextHandle) Bytes() []byte {
	out := make([]byte, HandleSize)
	copy(out, h[:])
	return out
}

// Hex returns the 0x-prefixed hex encoding of the handle.
func (h CiphertextHandle) Hex() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h CiphertextHandle) String() string {
	return h.Hex()
}

// Proof is the opaque validity proof accompanying a ciphertext handle. It is
// forwarded to the encryption layer's verifier upstream of the engine and
// never interpreted here.
type Proof []byte
