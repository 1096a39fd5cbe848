package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Comparator computes the encrypted maximum over an ordered sequence of
// ciphertext handles. Implementations are external to the engine: the result
// is treated opaquely and only size-validated. Failures surface as
// ErrComparatorUnavailable (transport, timeout) or ErrComparatorRejected
// (service refused or produced an unusable result).
type Comparator interface {
	ComputeMaximum(ctx context.Context, handles []CiphertextHandle) ([]byte, error)
}

// ComparatorRegistry maps adapter ids to comparator implementations. Auctions
// store an adapter id rather than a live object so the binding survives
// restarts as long as ids are stable across runs.
type ComparatorRegistry struct {
	mu sync.Mutex
	m  map[string]Comparator
}

// NewComparatorRegistry returns an empty registry.
func NewComparatorRegistry() *ComparatorRegistry {
	return &ComparatorRegistry{m: make(map[string]Comparator)}
}

// Register stores the comparator under a freshly generated adapter id and
// returns the id.
func (cr *ComparatorRegistry) Register(c Comparator) string {
	id := uuid.NewString()
	cr.RegisterID(id, c)
	return id
}

// RegisterID stores the comparator under a caller-chosen id, replacing any
// previous registration for that id.
func (cr *ComparatorRegistry) RegisterID(id string, c Comparator) {
	cr.mu.Lock()
	cr.m[id] = c
	cr.mu.Unlock()
}

// Resolve returns the comparator registered under the id. Fails with
// ErrAdapterNotSet when the id is unknown.
func (cr *ComparatorRegistry) Resolve(id string) (Comparator, error) {
	cr.mu.Lock()
	c, ok := cr.m[id]
	cr.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("adapter %q not registered: %w", id, ErrAdapterNotSet)
	}
	return c, nil
}
