package core

import (
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"
)

// auctionState bundles an auction record with its ledger and the per-auction
// mutex that serializes finalization and metadata mutation.
type auctionState struct {
	mu      sync.Mutex
	auction Auction
	ledger  *BidLedger
}

// AuctionRegistry owns auction records keyed by sequential id. Records are
// never deleted; closed auctions remain queryable indefinitely. Identifiers
// start at 1 and are never reused: the next-id counter advances atomically
// with the record write under the registry lock.
type AuctionRegistry struct {
	mu       sync.Mutex
	nextID   uint64
	auctions map[uint64]*auctionState
	bus      *Bus
}

// NewAuctionRegistry returns an empty registry publishing on the given bus.
func NewAuctionRegistry(bus *Bus) *AuctionRegistry {
	return &AuctionRegistry{
		nextID:   1,
		auctions: make(map[uint64]*auctionState),
		bus:      bus,
	}
}

// CreateAuction validates the parameters, assigns the next sequential id and
// stores the record unfinalized. Emits an AuctionCreated observation.
// Fails with ErrInvalidWindow when startTime >= endTime and ErrInvalidCapacity
// when maxBidders is non-positive; no id is consumed on failure.
func (r *AuctionRegistry) CreateAuction(seller Identity, asset AssetRef, startTime, endTime time.Time, maxBidders int, minDepositWei *big.Int) (uint64, error) {
	if !startTime.Before(endTime) {
		return 0, fmt.Errorf("start %s >= end %s: %w", startTime.Format(time.RFC3339), endTime.Format(time.RFC3339), ErrInvalidWindow)
	}
	if maxBidders <= 0 {
		return 0, fmt.Errorf("max bidders %d: %w", maxBidders, ErrInvalidCapacity)
	}
	if minDepositWei == nil {
		minDepositWei = new(big.Int)
	}

	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.auctions[id] = &auctionState{
		auction: Auction{
			ID:            id,
			Seller:        seller,
			Asset:         asset,
			StartTime:     startTime,
			EndTime:       endTime,
			MaxBidders:    maxBidders,
			MinDepositWei: new(big.Int).Set(minDepositWei),
		},
		ledger: NewBidLedger(id, maxBidders, r.bus),
	}
	// Published under the lock so the event stream observes creations in
	// id order.
	if r.bus != nil {
		r.bus.auctionCreated(id, seller)
	}
	r.mu.Unlock()

	return id, nil
}

// GetAuction returns a snapshot of the auction record. Read-only; fails with
// ErrAuctionNotFound when the id was never assigned.
func (r *AuctionRegistry) GetAuction(id uint64) (Auction, error) {
	st, err := r.state(id)
	if err != nil {
		return Auction{}, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	return st.auction.snapshot(), nil
}

// ListAuctions returns snapshots of all auctions ordered by id ascending.
func (r *AuctionRegistry) ListAuctions() []Auction {
	r.mu.Lock()
	states := make([]*auctionState, 0, len(r.auctions))
	for _, st := range r.auctions {
		states = append(states, st)
	}
	r.mu.Unlock()

	out := make([]Auction, 0, len(states))
	for _, st := range states {
		st.mu.Lock()
		out = append(out, st.auction.snapshot())
		st.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *AuctionRegistry) state(id uint64) (*auctionState, error) {
	r.mu.Lock()
	st, ok := r.auctions[id]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("auction %d: %w", id, ErrAuctionNotFound)
	}
	return st, nil
}
