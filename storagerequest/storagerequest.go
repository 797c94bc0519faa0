// Package storagerequest implements the storage-request lifecycle shared
// by the user, MSP, and BSP roles: the state machine a file's storage
// request moves through, the chunk-ingest pipeline that feeds a file
// trie from a transfer batch, the BSP volunteer threshold, and the
// capacity batcher, payment-stream charging loop, peer reputation
// tracker, and move-bucket state machine that ride alongside it.
package storagerequest

import (
	"context"
	"sync"

	"github.com/storagehub-network/sh-core/config"
	"github.com/storagehub-network/sh-core/crypto"
	"github.com/storagehub-network/sh-core/forest"
	"github.com/storagehub-network/sh-core/forestlock"
	"github.com/storagehub-network/sh-core/sherrors"
)

// State is where a storage request sits in its lifecycle.
type State int

const (
	Active State = iota
	MspAcceptedNewFile
	Fulfilled
	Expired
	Revoked
)

func (s State) String() string {
	switch s {
	case Active:
		return "Active"
	case MspAcceptedNewFile:
		return "MspAcceptedNewFile"
	case Fulfilled:
		return "Fulfilled"
	case Expired:
		return "Expired"
	case Revoked:
		return "Revoked"
	default:
		return "Unknown"
	}
}

// Request is one file's storage request.
type Request struct {
	FileKey           crypto.Hash
	Owner             string
	BucketID          crypto.Hash
	Location          string
	FileSize          uint64
	Fingerprint       crypto.Hash
	ReplicationTarget config.ReplicationTarget
	MspID             string
	AcceptAt          uint64
	ExpiresAt         uint64

	State           State
	ConfirmedBsps   []string
	confirmedBspSet map[string]bool
}

// Manager tracks every in-flight storage request and drives its state
// machine. Fulfilled requests are removed entirely, matching the
// original's "the record is removed" transition.
//
// A Manager also doubles as the bookkeeping point for one node's own
// provider role: when f and locks are non-nil, MspAccept/ConfirmBsp
// insert the file's metadata into f (holding locks' write lock for the
// duration) whenever the accepting/confirming id matches selfID, i.e.
// whenever the transition being recorded is this node's own forest
// gaining the file. Bookkeeping for every other id is recorded as usual
// but never touches f, since this node has no access to another
// provider's forest.
type Manager struct {
	mu       sync.Mutex
	requests map[crypto.Hash]*Request

	forest *forest.Forest
	locks  *forestlock.Manager
	selfID string
}

// New returns an empty Manager. f and locks may be nil for a Manager
// that only tracks request state without ever touching a forest; selfID
// is this node's own provider id and is ignored when f is nil.
func New(f *forest.Forest, locks *forestlock.Manager, selfID string) *Manager {
	return &Manager{
		requests: make(map[crypto.Hash]*Request),
		forest:   f,
		locks:    locks,
		selfID:   selfID,
	}
}

// Create registers a new request in the Active state.
func (m *Manager) Create(req Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.requests[req.FileKey]; exists {
		return sherrors.New(sherrors.Conflict, "storage request already exists for this file key")
	}
	req.State = Active
	req.confirmedBspSet = make(map[string]bool)
	m.requests[req.FileKey] = &req
	return nil
}

// Get returns the tracked request for fileKey.
func (m *Manager) Get(fileKey crypto.Hash) (Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[fileKey]
	if !ok {
		return Request{}, sherrors.New(sherrors.NotFound, "no storage request for this file key")
	}
	return *req, nil
}

// Forest write priorities for the transitions in this package. MSP
// acceptance runs ahead of BSP confirmation so a freshly-accepted file is
// visible to provers before any BSP tries to confirm it.
const (
	mspAcceptPriority  forestlock.PriorityValue = 10
	bspConfirmPriority forestlock.PriorityValue = 20
)

// MspAccept transitions a request to MspAcceptedNewFile. When mspID is
// this node's own provider id and the Manager was built with a forest,
// it also inserts the file's metadata there, holding the forest write
// lock for the duration.
func (m *Manager) MspAccept(ctx context.Context, fileKey crypto.Hash, mspID string) error {
	m.mu.Lock()
	req, ok := m.requests[fileKey]
	if !ok {
		m.mu.Unlock()
		return sherrors.New(sherrors.NotFound, "no storage request for this file key")
	}
	if req.State != Active {
		m.mu.Unlock()
		return sherrors.New(sherrors.Conflict, "request is not in Active state")
	}
	req.MspID = mspID
	req.State = MspAcceptedNewFile
	md := fileMetadataOf(req)
	m.mu.Unlock()

	if m.forest == nil || mspID != m.selfID {
		return nil
	}
	guard, err := m.locks.Acquire(ctx, mspAcceptPriority)
	if err != nil {
		return err
	}
	defer guard.Release()
	return m.forest.InsertMetadata(fileKey, md)
}

// ConfirmBsp records one more confirmed BSP and transitions to Fulfilled
// (removing the record) once the replication target and MSP acceptance
// are both satisfied. The first time bspID is this node's own provider
// id, it also inserts the file's metadata into this node's own forest,
// holding the forest write lock for the duration.
func (m *Manager) ConfirmBsp(ctx context.Context, fileKey crypto.Hash, bspID string) (fulfilled bool, err error) {
	m.mu.Lock()
	req, ok := m.requests[fileKey]
	if !ok {
		m.mu.Unlock()
		return false, sherrors.New(sherrors.NotFound, "no storage request for this file key")
	}
	firstConfirmation := !req.confirmedBspSet[bspID]
	if firstConfirmation {
		req.confirmedBspSet[bspID] = true
		req.ConfirmedBsps = append(req.ConfirmedBsps, bspID)
	}
	md := fileMetadataOf(req)
	satisfied := uint32(len(req.ConfirmedBsps)) >= req.ReplicationTarget.Count() && req.State == MspAcceptedNewFile
	if satisfied {
		delete(m.requests, fileKey)
	}
	m.mu.Unlock()

	if m.forest != nil && firstConfirmation && bspID == m.selfID {
		guard, lockErr := m.locks.Acquire(ctx, bspConfirmPriority)
		if lockErr != nil {
			return false, lockErr
		}
		err = m.forest.InsertMetadata(fileKey, md)
		guard.Release()
		if err != nil {
			return false, err
		}
	}
	return satisfied, nil
}

// fileMetadataOf builds the forest.FileMetadata a request's fields
// describe. Callers hold m.mu.
func fileMetadataOf(req *Request) forest.FileMetadata {
	return forest.FileMetadata{
		Owner:             req.Owner,
		BucketID:          req.BucketID,
		Location:          req.Location,
		FileSize:          req.FileSize,
		Fingerprint:       req.Fingerprint,
		ReplicationTarget: req.ReplicationTarget,
		MspID:             req.MspID,
		BspIDs:            append([]string(nil), req.ConfirmedBsps...),
	}
}

// Expire transitions a non-fulfilled request to Expired if
// currentTick >= ExpiresAt. Returns whether it expired.
func (m *Manager) Expire(fileKey crypto.Hash, currentTick uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[fileKey]
	if !ok {
		return false, sherrors.New(sherrors.NotFound, "no storage request for this file key")
	}
	if currentTick < req.ExpiresAt {
		return false, nil
	}
	req.State = Expired
	return true, nil
}

// Revoke transitions a request to Revoked regardless of its current
// state (the user may revoke at any time before fulfillment).
func (m *Manager) Revoke(fileKey crypto.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[fileKey]
	if !ok {
		return sherrors.New(sherrors.NotFound, "no storage request for this file key")
	}
	req.State = Revoked
	return nil
}

// Len returns how many requests are currently tracked.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
