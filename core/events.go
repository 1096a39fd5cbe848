package core

import (
	"sync"
	"time"
)

// Event is an engine observation consumed by external indexers and UIs.
// Events are emitted in commit order; the ciphertext is deliberately omitted
// from the bid-submitted payload to keep the visible surface narrow.
type Event interface {
	AuctionID() uint64
	EmittedAt() time.Time
}

type eventMeta struct {
	auctionID uint64
	emittedAt time.Time
}

func (m eventMeta) AuctionID() uint64    { return m.auctionID }
func (m eventMeta) EmittedAt() time.Time { return m.emittedAt }

// AuctionCreated is emitted when the registry accepts a creation request.
type AuctionCreated struct {
	eventMeta
	Seller Identity
}

// BidSubmitted is emitted when the ledger admits a bid.
type BidSubmitted struct {
	eventMeta
	BidIndex int
	Bidder   Identity
}

// AuctionFinalized is emitted when the winner ciphertext is recorded.
type AuctionFinalized struct {
	eventMeta
	Winner CiphertextHandle
}

// Bus fans engine events out to subscribers. Publishing never blocks the
// engine: a subscriber whose channel is full misses the event, so consumers
// that need a complete stream must size their buffers accordingly.
type Bus struct {
	mu      sync.Mutex
	subs    []chan Event
	clock   Clock
	dropped uint64
}

// NewBus returns a bus stamping events with the given clock.
func NewBus(clock Clock) *Bus {
	if clock == nil {
		clock = SystemClock
	}
	return &Bus{clock: clock}
}

// Subscribe registers a new subscriber channel with the given buffer size.
func (b *Bus) Subscribe(buffer int) <-chan Event {
	ch := make(chan Event, buffer)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

// Dropped returns the number of events discarded due to slow subscribers.
func (b *Bus) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

func (b *Bus) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped++
		}
	}
}

func (b *Bus) auctionCreated(auctionID uint64, seller Identity) {
	b.publish(AuctionCreated{
		eventMeta: eventMeta{auctionID: auctionID, emittedAt: b.clock.Now()},
		Seller:    seller,
	})
}

func (b *Bus) bidSubmitted(auctionID uint64, index int, bidder Identity) {
	b.publish(BidSubmitted{
		eventMeta: eventMeta{auctionID: auctionID, emittedAt: b.clock.Now()},
		BidIndex:  index,
		Bidder:    bidder,
	})
}

func (b *Bus) auctionFinalized(auctionID uint64, winner CiphertextHandle) {
	b.publish(AuctionFinalized{
		eventMeta: eventMeta{auctionID: auctionID, emittedAt: b.clock.Now()},
		Winner:    winner,
	})
}
