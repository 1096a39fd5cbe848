package comparatorapi

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"
)

// SignWinner wraps a winner claim in a COSE_Sign1 envelope signed with ES256.
func SignWinner(key *ecdsa.PrivateKey, claim WinnerClaim) ([]byte, error) {
	payload, err := cbor.Marshal(claim)
	if err != nil {
		return nil, fmt.Errorf("encode winner claim: %w", err)
	}

	signer, err := cose.NewSigner(cose.AlgorithmES256, key)
	if err != nil {
		return nil, fmt.Errorf("create signer: %w", err)
	}

	msg := cose.NewSign1Message()
	msg.Headers.Protected.SetAlgorithm(cose.AlgorithmES256)
	msg.Payload = payload
	if err := msg.Sign(rand.Reader, nil, signer); err != nil {
		return nil, fmt.Errorf("sign winner claim: %w", err)
	}

	envelope, err := msg.MarshalCBOR()
	if err != nil {
		return nil, fmt.Errorf("marshal COSE envelope: %w", err)
	}
	return envelope, nil
}

// VerifyWinner checks a COSE_Sign1 envelope against the comparator's public
// key and returns the embedded claim.
func VerifyWinner(pub *ecdsa.PublicKey, envelope []byte) (WinnerClaim, error) {
	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(envelope); err != nil {
		return WinnerClaim{}, fmt.Errorf("parse COSE envelope: %w", err)
	}

	verifier, err := cose.NewVerifier(cose.AlgorithmES256, pub)
	if err != nil {
		return WinnerClaim{}, fmt.Errorf("create verifier: %w", err)
	}
	if err := msg.Verify(nil, verifier); err != nil {
		return WinnerClaim{}, fmt.Errorf("COSE signature verification failed: %w", err)
	}

	var claim WinnerClaim
	if err := cbor.Unmarshal(msg.Payload, &claim); err != nil {
		return WinnerClaim{}, fmt.Errorf("decode winner claim: %w", err)
	}
	return claim, nil
}
