package core

import (
	"fmt"
	"math/big"
	"sync"
)

// BidLedger is the append-only, ordered collection of admitted bids for one
// auction. Index assignment is serialized so indices are gapless and unique
// even under concurrent submission.
type BidLedger struct {
	mu         sync.Mutex
	auctionID  uint64
	maxBidders int
	bids       []Bid
	bus        *Bus
}

// NewBidLedger returns an empty ledger for the given auction.
func NewBidLedger(auctionID uint64, maxBidders int, bus *Bus) *BidLedger {
	return &BidLedger{
		auctionID:  auctionID,
		maxBidders: maxBidders,
		bids:       make([]Bid, 0, maxBidders),
		bus:        bus,
	}
}

// Append admits a bid and returns its zero-based index. Fails with
// ErrBidLimitReached at capacity; on failure the ledger is unchanged.
// Emits a BidSubmitted observation carrying (auctionID, index, bidder).
func (l *BidLedger) Append(bidder Identity, handle CiphertextHandle, proof Proof, commitment Commitment, depositWei *big.Int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.bids) >= l.maxBidders {
		return 0, fmt.Errorf("auction %d at capacity %d: %w", l.auctionID, l.maxBidders, ErrBidLimitReached)
	}

	index := len(l.bids)
	l.bids = append(l.bids, Bid{
		Index:      index,
		Bidder:     bidder,
		Ciphertext: handle,
		Proof:      append(Proof(nil), proof...),
		Commitment: commitment,
		DepositWei: new(big.Int).Set(depositWei),
	})

	if l.bus != nil {
		l.bus.bidSubmitted(l.auctionID, index, bidder)
	}
	return index, nil
}

// Get returns the bid at the given index, or ErrBidNotFound when the index
// is negative or past the current count.
func (l *BidLedger) Get(index int) (Bid, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if index < 0 || index >= len(l.bids) {
		return Bid{}, fmt.Errorf("auction %d bid index %d: %w", l.auctionID, index, ErrBidNotFound)
	}

	// Copy out the pointer-typed fields so callers cannot reach the
	// stored record.
	b := l.bids[index]
	b.Proof = append(Proof(nil), b.Proof...)
	b.DepositWei = new(big.Int).Set(b.DepositWei)
	return b, nil
}

// Count returns the number of admitted bids.
func (l *BidLedger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.bids)
}

// CiphertextsInOrder returns the admitted ciphertext handles ordered by index
// ascending. The slice is computed fresh on each call and safe to retain.
func (l *BidLedger) CiphertextsInOrder() []CiphertextHandle {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]CiphertextHandle, len(l.bids))
	for i, b := range l.bids {
		out[i] = b.Ciphertext
	}
	return out
}
