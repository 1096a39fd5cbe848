// Package comparatorapi defines the wire protocol between the auction engine
// and an external comparator service, plus the client used by the engine and
// the relayer. Messages are CBOR-encoded and length-prefix framed; responses
// may carry a COSE_Sign1 envelope proving which service produced the winner.
package comparatorapi

// Message type discriminators on the comparator wire protocol.
const (
	TypeCompareRequest  = "compare_request"
	TypeCompareResponse = "compare_response"
)

// CompareRequest asks the comparator for the encrypted maximum over an
// ordered sequence of ciphertext handles. Handles are opaque 32-byte blobs;
// the service never learns the underlying bid values.
type CompareRequest struct {
	Type      string   `cbor:"type"`
	RequestID string   `cbor:"request_id"`
	Handles   [][]byte `cbor:"handles"`
}

// CompareResponse carries the winning handle, or a service-side rejection.
type CompareResponse struct {
	Type      string `cbor:"type"`
	RequestID string `cbor:"request_id"`
	Winner    []byte `cbor:"winner,omitempty"`

	// Signature is an optional COSE_Sign1 envelope over a WinnerClaim,
	// letting relayers prove winner provenance to third parties.
	Signature []byte `cbor:"signature,omitempty"`

	// Error is non-empty when the service rejected the request.
	Error string `cbor:"error,omitempty"`
}

// WinnerClaim is the signed payload inside a response signature. Binding the
// request id prevents replaying a signature across compare requests.
type WinnerClaim struct {
	RequestID string `cbor:"request_id"`
	Winner    []byte `cbor:"winner"`
}
