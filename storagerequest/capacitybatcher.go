package storagerequest

import (
	"sync"

	"github.com/google/uuid"

	"github.com/storagehub-network/sh-core/sherrors"
)

// CapacityRequest is one caller's pending capacity-change need; Result
// receives the outcome once a change_capacity transaction covering it
// lands in a block (or the request failed fast). ID correlates this
// request across logs even though several get merged into one
// change_capacity call.
type CapacityRequest struct {
	ID     uuid.UUID
	Amount uint64
	Result chan error
}

// CapacityBatcher aggregates concurrent capacity-change needs into a
// single change_capacity transaction per on-chain-permitted window,
// rounding up to a multiple of jumpCapacity and capping at maxCapacity.
type CapacityBatcher struct {
	mu              sync.Mutex
	jumpCapacity    uint64
	maxCapacity     uint64
	currentCapacity uint64
	pending         []CapacityRequest
	totalRequired   uint64
}

// NewCapacityBatcher builds a batcher starting at currentCapacity.
func NewCapacityBatcher(jumpCapacity, maxCapacity, currentCapacity uint64) *CapacityBatcher {
	return &CapacityBatcher{
		jumpCapacity:    jumpCapacity,
		maxCapacity:     maxCapacity,
		currentCapacity: currentCapacity,
	}
}

// Request enqueues a need for amount more capacity and returns a channel
// that receives the outcome. If the batcher is already at max capacity,
// or amount would overflow the pending total, it fails fast with
// CapacityExceeded instead of enqueuing.
func (b *CapacityBatcher) Request(amount uint64) <-chan error {
	ch := make(chan error, 1)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.currentCapacity >= b.maxCapacity {
		ch <- sherrors.New(sherrors.CapacityExceeded, "provider is already at max capacity")
		return ch
	}
	if b.totalRequired+amount < b.totalRequired {
		ch <- sherrors.New(sherrors.CapacityExceeded, "requested capacity overflows the pending total")
		return ch
	}
	b.pending = append(b.pending, CapacityRequest{ID: uuid.New(), Amount: amount, Result: ch})
	b.totalRequired += amount
	return ch
}

// NextWindow drains every pending request and returns the new capacity
// a single change_capacity transaction should request, rounded up to a
// multiple of jumpCapacity and capped at maxCapacity. ok is false if
// nothing is pending.
func (b *CapacityBatcher) NextWindow() (newCapacity uint64, drained []CapacityRequest, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) == 0 {
		return 0, nil, false
	}
	jumps := (b.totalRequired + b.jumpCapacity - 1) / b.jumpCapacity
	newCap := b.currentCapacity + jumps*b.jumpCapacity
	if newCap > b.maxCapacity {
		newCap = b.maxCapacity
	}
	drained = b.pending
	b.pending = nil
	b.totalRequired = 0
	return newCap, drained, true
}

// Complete resolves every caller drained by the NextWindow call that
// produced newCapacity/drained, once the change_capacity transaction's
// outcome (txErr, nil on success) is known. On success the batcher's
// tracked currentCapacity is updated.
func (b *CapacityBatcher) Complete(newCapacity uint64, drained []CapacityRequest, txErr error) {
	if txErr == nil {
		b.mu.Lock()
		b.currentCapacity = newCapacity
		b.mu.Unlock()
	}
	for _, req := range drained {
		req.Result <- txErr
	}
}

// CurrentCapacity returns the batcher's last-known on-chain capacity.
func (b *CapacityBatcher) CurrentCapacity() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentCapacity
}
