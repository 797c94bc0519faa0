package storagerequest

import (
	"sync"

	"github.com/storagehub-network/sh-core/crypto"
	"github.com/storagehub-network/sh-core/sherrors"
)

// MoveState is the lifecycle of one bucket move from an old MSP to a
// new one, driven by the MoveBucketRequested/Accepted/Rejected/Expired
// events a chain.EventSource delivers.
type MoveState int

const (
	MoveRequested MoveState = iota
	MoveAccepted
	MoveRejected
	MoveExpired
)

func (s MoveState) String() string {
	switch s {
	case MoveRequested:
		return "requested"
	case MoveAccepted:
		return "accepted"
	case MoveRejected:
		return "rejected"
	case MoveExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// BucketMove tracks one in-flight move of a bucket to a new MSP.
type BucketMove struct {
	BucketID crypto.Hash
	OldMsp   string
	NewMsp   string
	State    MoveState
	ExpiresAt uint64
}

// MoveBucketState tracks every in-flight bucket move a node is a party
// to, either as the old MSP or the prospective new one.
type MoveBucketState struct {
	mu    sync.Mutex
	moves map[crypto.Hash]*BucketMove
}

// NewMoveBucketState returns a tracker with no moves in flight.
func NewMoveBucketState() *MoveBucketState {
	return &MoveBucketState{moves: make(map[crypto.Hash]*BucketMove)}
}

// RequestMove begins tracking a move, rejecting a bucket already mid-move.
func (m *MoveBucketState) RequestMove(bucketID crypto.Hash, oldMsp, newMsp string, expiresAt uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.moves[bucketID]; ok && existing.State == MoveRequested {
		return sherrors.New(sherrors.Conflict, "bucket already has a move request pending")
	}
	m.moves[bucketID] = &BucketMove{
		BucketID:  bucketID,
		OldMsp:    oldMsp,
		NewMsp:    newMsp,
		State:     MoveRequested,
		ExpiresAt: expiresAt,
	}
	return nil
}

// Accept transitions a pending move to accepted. The new MSP now owns
// the bucket's storage requests going forward.
func (m *MoveBucketState) Accept(bucketID crypto.Hash) error {
	return m.transition(bucketID, MoveAccepted)
}

// Reject transitions a pending move to rejected; the bucket stays with
// its old MSP.
func (m *MoveBucketState) Reject(bucketID crypto.Hash) error {
	return m.transition(bucketID, MoveRejected)
}

// Expire transitions a pending move that nobody answered in time.
func (m *MoveBucketState) Expire(bucketID crypto.Hash, currentTick uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mv, ok := m.moves[bucketID]
	if !ok {
		return sherrors.New(sherrors.NotFound, "no move tracked for bucket")
	}
	if mv.State != MoveRequested {
		return sherrors.New(sherrors.Conflict, "move is not pending")
	}
	if currentTick < mv.ExpiresAt {
		return sherrors.New(sherrors.Conflict, "move has not reached its expiry tick")
	}
	mv.State = MoveExpired
	return nil
}

func (m *MoveBucketState) transition(bucketID crypto.Hash, to MoveState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mv, ok := m.moves[bucketID]
	if !ok {
		return sherrors.New(sherrors.NotFound, "no move tracked for bucket")
	}
	if mv.State != MoveRequested {
		return sherrors.New(sherrors.Conflict, "move is not pending")
	}
	mv.State = to
	return nil
}

// Get returns the tracked move for bucketID, if any.
func (m *MoveBucketState) Get(bucketID crypto.Hash) (BucketMove, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mv, ok := m.moves[bucketID]
	if !ok {
		return BucketMove{}, false
	}
	return *mv, true
}
