package core

import (
	"math/big"
	"time"
)

// Identity names an auction participant: a seller, a bidder, the manager or
// the relayer. Opaque to the engine; the original system used chain addresses.
type Identity string

// AssetRef is an opaque reference to the asset being auctioned: a contract
// plus token id pair, or the zero value for "no asset".
type AssetRef struct {
	Contract string `json:"contract"`
	TokenID  uint64 `json:"token_id"`
}

// NoAsset is the sentinel reference for auctions without an attached asset.
var NoAsset = AssetRef{}

// IsZero reports whether the reference is the no-asset sentinel.
func (a AssetRef) IsZero() bool {
	return a == NoAsset
}

// Auction is the registry-owned record for one auction. The lifecycle states
// Pending/Open/Closed are derived from wall-clock time against the stored
// window; Finalized is the only persisted transition flag.
type Auction struct {
	ID            uint64
	Seller        Identity
	Asset         AssetRef
	StartTime     time.Time
	EndTime       time.Time
	MaxBidders    int
	MinDepositWei *big.Int

	// AdapterID references the comparator registered for this auction.
	// Empty means the engine's default comparator, if any.
	AdapterID string

	Finalized bool

	// WinnerCiphertext is set exactly once, at finalization, and is
	// immutable afterwards. Valid only when Finalized is true.
	WinnerCiphertext CiphertextHandle
}

// snapshot returns a copy safe to hand out: pointer-typed fields are
// duplicated so a caller mutating the copy cannot reach the stored record.
func (a Auction) snapshot() Auction {
	out := a
	if a.MinDepositWei != nil {
		out.MinDepositWei = new(big.Int).Set(a.MinDepositWei)
	}
	return out
}

// State is the derived lifecycle state of an auction at a given instant.
type State string

const (
	StatePending   State = "pending"
	StateOpen      State = "open"
	StateClosed    State = "closed"
	StateFinalized State = "finalized"
)

// StateAt derives the lifecycle state at the given instant.
func (a *Auction) StateAt(now time.Time) State {
	switch {
	case a.Finalized:
		return StateFinalized
	case now.Before(a.StartTime):
		return StatePending
	case now.Before(a.EndTime):
		return StateOpen
	default:
		return StateClosed
	}
}

// Bid is one admitted bid, scoped to a single auction. Insertion order is the
// index; both are immutable after append.
type Bid struct {
	Index      int
	Bidder     Identity
	Ciphertext CiphertextHandle
	Proof      Proof
	Commitment Commitment
	DepositWei *big.Int
}
