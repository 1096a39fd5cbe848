package core

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
)

// AuctionEngine is the auction state machine. It validates bid admission
// against timing, deposit and capacity rules, and drives the finalize-once
// transition by invoking the configured comparator and recording the winner
// ciphertext exactly once per auction.
//
// All state-mutating paths on one auction serialize on that auction's mutex,
// so two concurrent finalize calls cannot both succeed: one observes the
// unfinalized record and commits; the other observes ErrAlreadyFinalized.
// Operations on different auctions proceed fully in parallel.
type AuctionEngine struct {
	registry    *AuctionRegistry
	comparators *ComparatorRegistry
	defaultCmp  Comparator
	clock       Clock
	bus         *Bus

	// idmu guards the rebindable role identities.
	idmu    sync.Mutex
	manager Identity
	relayer Identity
}

// EngineConfig carries the engine's collaborators and authorized identities.
type EngineConfig struct {
	Registry    *AuctionRegistry
	Comparators *ComparatorRegistry

	// Default is the fallback comparator for auctions without an adapter id.
	// Nil means finalize fails with ErrAdapterNotSet for such auctions.
	Default Comparator

	// Manager may rebind adapters; Relayer may post precomputed winners.
	Manager Identity
	Relayer Identity

	// Clock defaults to SystemClock.
	Clock Clock

	// Bus receives finalization events; may be nil.
	Bus *Bus
}

// NewAuctionEngine wires an engine from its configuration.
func NewAuctionEngine(cfg EngineConfig) *AuctionEngine {
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock
	}
	comparators := cfg.Comparators
	if comparators == nil {
		comparators = NewComparatorRegistry()
	}
	return &AuctionEngine{
		registry:    cfg.Registry,
		comparators: comparators,
		defaultCmp:  cfg.Default,
		manager:     cfg.Manager,
		relayer:     cfg.Relayer,
		clock:       clock,
		bus:         cfg.Bus,
	}
}

// SubmitBid admits an encrypted bid into the auction's ledger.
//
// Admission order: existence, not-yet-open (ErrAuctionActive), already-ended
// (ErrAuctionClosed), deposit floor (ErrDepositTooLow), then capacity via the
// ledger (ErrBidLimitReached). Neither the ciphertext nor the proof is
// interpreted; proof verification happens upstream in the encryption layer.
// Returns the assigned zero-based bid index.
func (e *AuctionEngine) SubmitBid(auctionID uint64, bidder Identity, handle CiphertextHandle, proof Proof, commitment Commitment, attachedValueWei *big.Int) (int, error) {
	st, err := e.registry.state(auctionID)
	if err != nil {
		return 0, err
	}

	now := e.clock.Now()
	st.mu.Lock()
	start, end, minDeposit := st.auction.StartTime, st.auction.EndTime, st.auction.MinDepositWei
	st.mu.Unlock()

	if now.Before(start) {
		return 0, fmt.Errorf("auction %d not yet open: %w", auctionID, ErrAuctionActive)
	}
	if !now.Before(end) {
		return 0, fmt.Errorf("auction %d ended: %w", auctionID, ErrAuctionClosed)
	}
	if attachedValueWei == nil || attachedValueWei.Cmp(minDeposit) < 0 {
		return 0, fmt.Errorf("auction %d requires at least %s wei: %w", auctionID, minDeposit, ErrDepositTooLow)
	}

	return st.ledger.Append(bidder, handle, proof, commitment, attachedValueWei)
}

// SetManager hands the manager role to a new identity. Only the current
// manager may rebind it.
func (e *AuctionEngine) SetManager(caller, next Identity) error {
	e.idmu.Lock()
	defer e.idmu.Unlock()

	if caller != e.manager {
		return fmt.Errorf("caller %s: %w", caller, ErrNotManager)
	}
	e.manager = next
	return nil
}

func (e *AuctionEngine) isManager(caller Identity) bool {
	e.idmu.Lock()
	defer e.idmu.Unlock()
	return caller == e.manager
}

// mayPostWinner reports whether the caller is allowed to submit a
// precomputed winner: the relayer, or the manager as operational fallback.
func (e *AuctionEngine) mayPostWinner(caller Identity) bool {
	e.idmu.Lock()
	defer e.idmu.Unlock()
	return caller == e.relayer || caller == e.manager
}

// SetAdapter rebinds the auction's comparator adapter id. Restricted to the
// engine's manager identity; no timing constraint.
func (e *AuctionEngine) SetAdapter(caller Identity, auctionID uint64, adapterID string) error {
	if !e.isManager(caller) {
		return fmt.Errorf("caller %s: %w", caller, ErrNotManager)
	}
	st, err := e.registry.state(auctionID)
	if err != nil {
		return err
	}

	st.mu.Lock()
	st.auction.AdapterID = adapterID
	st.mu.Unlock()
	return nil
}

// Finalize resolves the winner of a closed auction exactly once.
//
// The comparator call and the finalized/winner write happen inside the
// auction's critical section: either the whole sequence commits, or none of
// it does, and a concurrent Finalize blocks until the first call settles. A
// failed comparator call leaves the auction unfinalized and retriable.
func (e *AuctionEngine) Finalize(ctx context.Context, auctionID uint64) (CiphertextHandle, error) {
	st, err := e.registry.state(auctionID)
	if err != nil {
		return CiphertextHandle{}, err
	}

	if e.clock.Now().Before(st.auction.EndTime) {
		return CiphertextHandle{}, fmt.Errorf("auction %d still running: %w", auctionID, ErrAuctionActive)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.auction.Finalized {
		return CiphertextHandle{}, fmt.Errorf("auction %d: %w", auctionID, ErrAlreadyFinalized)
	}

	cmp, err := e.resolveComparator(st.auction.AdapterID)
	if err != nil {
		return CiphertextHandle{}, fmt.Errorf("auction %d: %w", auctionID, err)
	}

	handles := st.ledger.CiphertextsInOrder()
	if len(handles) == 0 {
		return CiphertextHandle{}, fmt.Errorf("auction %d: %w", auctionID, ErrNoBids)
	}

	raw, err := cmp.ComputeMaximum(ctx, handles)
	if err != nil {
		if errors.Is(err, ErrComparatorRejected) || errors.Is(err, ErrComparatorUnavailable) {
			return CiphertextHandle{}, fmt.Errorf("auction %d: %w", auctionID, err)
		}
		return CiphertextHandle{}, fmt.Errorf("auction %d: %w: %v", auctionID, ErrComparatorUnavailable, err)
	}

	winner, err := ParseHandle(raw)
	if err != nil {
		return CiphertextHandle{}, fmt.Errorf("auction %d comparator result: %w", auctionID, err)
	}

	e.commitWinner(st, winner)
	return winner, nil
}

// SubmitFinalizedWinner records a winner ciphertext precomputed off the
// critical path by the authorized relayer, bypassing the comparator call.
// Subject to the same timing, idempotence and fixed-size guards as Finalize.
func (e *AuctionEngine) SubmitFinalizedWinner(caller Identity, auctionID uint64, rawWinner []byte) (CiphertextHandle, error) {
	if !e.mayPostWinner(caller) {
		return CiphertextHandle{}, fmt.Errorf("caller %s: %w", caller, ErrNotManager)
	}

	st, err := e.registry.state(auctionID)
	if err != nil {
		return CiphertextHandle{}, err
	}

	if e.clock.Now().Before(st.auction.EndTime) {
		return CiphertextHandle{}, fmt.Errorf("auction %d still running: %w", auctionID, ErrAuctionActive)
	}

	winner, err := ParseHandle(rawWinner)
	if err != nil {
		return CiphertextHandle{}, fmt.Errorf("auction %d relayed winner: %w", auctionID, err)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.auction.Finalized {
		return CiphertextHandle{}, fmt.Errorf("auction %d: %w", auctionID, ErrAlreadyFinalized)
	}

	e.commitWinner(st, winner)
	return winner, nil
}

// GetWinnerCiphertext returns the stored winner handle once finalized.
func (e *AuctionEngine) GetWinnerCiphertext(auctionID uint64) (CiphertextHandle, error) {
	st, err := e.registry.state(auctionID)
	if err != nil {
		return CiphertextHandle{}, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if !st.auction.Finalized {
		return CiphertextHandle{}, fmt.Errorf("auction %d: %w", auctionID, ErrNotFinalized)
	}
	return st.auction.WinnerCiphertext, nil
}

// GetBidCount returns the auction's admitted bid count.
func (e *AuctionEngine) GetBidCount(auctionID uint64) (int, error) {
	st, err := e.registry.state(auctionID)
	if err != nil {
		return 0, err
	}
	return st.ledger.Count(), nil
}

// GetBidCiphertext returns the ciphertext handle of the bid at the index.
func (e *AuctionEngine) GetBidCiphertext(auctionID uint64, index int) (CiphertextHandle, error) {
	st, err := e.registry.state(auctionID)
	if err != nil {
		return CiphertextHandle{}, err
	}
	bid, err := st.ledger.Get(index)
	if err != nil {
		return CiphertextHandle{}, err
	}
	return bid.Ciphertext, nil
}

// GetBid returns the full bid record at the index.
func (e *AuctionEngine) GetBid(auctionID uint64, index int) (Bid, error) {
	st, err := e.registry.state(auctionID)
	if err != nil {
		return Bid{}, err
	}
	return st.ledger.Get(index)
}

// resolveComparator maps an adapter id to a comparator, falling back to the
// engine default for the empty id.
func (e *AuctionEngine) resolveComparator(adapterID string) (Comparator, error) {
	if adapterID == "" {
		if e.defaultCmp == nil {
			return nil, ErrAdapterNotSet
		}
		return e.defaultCmp, nil
	}
	return e.comparators.Resolve(adapterID)
}

// commitWinner flips the finalized flag and stores the winner atomically with
// respect to the auction's mutex, then emits the finalization event.
// Callers hold st.mu.
func (e *AuctionEngine) commitWinner(st *auctionState, winner CiphertextHandle) {
	st.auction.Finalized = true
	st.auction.WinnerCiphertext = winner
	if e.bus != nil {
		e.bus.auctionFinalized(st.auction.ID, winner)
	}
}
