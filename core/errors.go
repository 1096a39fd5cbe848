package core

import "errors"

// Error taxonomy for the auction engine. Every failure surfaces as one of
// these matchable values (possibly wrapped with context); callers dispatch
// with errors.Is. Nothing is retried by the engine itself — retry policy
// belongs to the caller, e.g. a relayer retrying after ErrComparatorUnavailable.
var (
	// ErrAuctionNotFound is returned when the referenced auction id was never assigned.
	ErrAuctionNotFound = errors.New("auction not found")

	// ErrInvalidWindow is returned when an auction is created with startTime >= endTime.
	ErrInvalidWindow = errors.New("invalid auction window")

	// ErrInvalidCapacity is returned when an auction is created with a non-positive bidder cap.
	ErrInvalidCapacity = errors.New("invalid bidder capacity")

	// ErrNotManager is returned for manager- or relayer-restricted mutations by
	// an unauthorized caller.
	ErrNotManager = errors.New("caller is not the manager")

	// ErrAuctionActive guards two distinct call sites, mirroring the original
	// error taxonomy: bid submission before startTime (auction not yet open)
	// and finalization before endTime (auction still running).
	ErrAuctionActive = errors.New("auction active")

	// ErrAuctionClosed is returned for bids submitted at or after endTime.
	ErrAuctionClosed = errors.New("auction closed")

	// ErrAlreadyFinalized is returned when finalization is attempted twice.
	ErrAlreadyFinalized = errors.New("auction already finalized")

	// ErrBidLimitReached is returned when the ledger is at maxBidders capacity.
	ErrBidLimitReached = errors.New("bid limit reached")

	// ErrDepositTooLow is returned when the attached value is below the
	// auction's configured minimum deposit.
	ErrDepositTooLow = errors.New("deposit too low")

	// ErrAdapterNotSet is returned by finalize when the auction has no
	// comparator configured and no default fallback exists.
	ErrAdapterNotSet = errors.New("comparator adapter not set")

	// ErrInvalidCiphertext is returned when a ciphertext handle fails the
	// fixed-size check, either on parse or when returned by a comparator.
	ErrInvalidCiphertext = errors.New("invalid ciphertext handle")

	// ErrBidNotFound is returned when a bid index is out of range.
	ErrBidNotFound = errors.New("bid not found")

	// ErrNoBids is returned when finalize is attempted on a closed auction
	// with an empty ledger. The auction stays unfinalized.
	ErrNoBids = errors.New("no bids submitted")

	// ErrNotFinalized is returned when the winner ciphertext is requested
	// before the auction has been finalized.
	ErrNotFinalized = errors.New("auction not finalized")

	// ErrComparatorUnavailable signals that the external comparator call
	// failed or timed out. No state was committed; finalize is retriable.
	ErrComparatorUnavailable = errors.New("comparator unavailable")

	// ErrComparatorRejected signals that the comparator refused the request
	// or returned an unusable result.
	ErrComparatorRejected = errors.New("comparator rejected request")
)
