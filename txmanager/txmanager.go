// Package txmanager tracks a node's own in-flight on-chain transactions by
// nonce: which ones are pending, whether the nonce sequence has a gap, and
// what status each last reported. It is not a mempool; the chain side
// remains the source of truth for transaction lifecycle, txmanager only
// remembers what this node has submitted and relays status changes to
// whoever is waiting on a given nonce.
package txmanager

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/storagehub-network/sh-core/config"
	"github.com/storagehub-network/sh-core/sherrors"
)

// Status is the lifecycle state of a tracked transaction, mirroring the
// terminal and non-terminal states a transaction pool watcher reports.
type Status int

const (
	StatusFuture Status = iota
	StatusReady
	StatusInBlock
	StatusFinalized
	StatusInvalid
	StatusDropped
	StatusUsurped
	StatusFinalityTimeout
)

func (s Status) Terminal() bool {
	switch s {
	case StatusInvalid, StatusDropped, StatusUsurped, StatusFinalityTimeout, StatusFinalized:
		return true
	default:
		return false
	}
}

func (s Status) Failed() bool {
	switch s {
	case StatusInvalid, StatusDropped, StatusUsurped, StatusFinalityTimeout:
		return true
	default:
		return false
	}
}

// StatusToWait is the target a caller blocks for in WaitForStatus.
type StatusToWait int

const (
	WaitInBlock StatusToWait = iota
	WaitFinalized
)

// PendingTransaction is one nonce's tracked submission.
type PendingTransaction struct {
	Nonce       uint32
	Hash        [32]byte
	Tip         uint64
	SubmittedAt uint32
	Status      Status
}

// NonceGap is a nonce the manager expected to see filled but hasn't,
// along with how long it has gone unfilled.
type NonceGap struct {
	Nonce       uint32
	AgeInBlocks uint32
}

type subscription struct {
	mu     sync.Mutex
	status Status
	ch     chan Status
}

func newSubscription() *subscription {
	return &subscription{ch: make(chan Status, 1), status: StatusFuture}
}

func (s *subscription) set(status Status) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
	select {
	case s.ch <- status:
	default:
		// Drain the stale value and push the fresh one; readers only
		// ever care about the latest status, not every intermediate one.
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- status:
		default:
		}
	}
}

func (s *subscription) current() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Manager tracks pending transactions keyed by nonce, detects gaps in the
// nonce sequence, and lets callers subscribe to status changes for a
// nonce they submitted.
type Manager struct {
	mu                   sync.Mutex
	maxPending           int
	gapFillThresholdBlocks uint32

	order         []uint32 // nonces in insertion order, oldest first, for capacity eviction
	pending       map[uint32]*PendingTransaction
	detectedGaps  map[uint32]uint32 // nonce -> block first detected
	subscriptions map[uint32]*subscription
}

// New builds a Manager. maxPending <= 0 uses config.TransactionManagerCapacity;
// gapFillThresholdBlocks == 0 uses config.DefaultGapFillThresholdBlocks.
func New(maxPending int, gapFillThresholdBlocks uint32) *Manager {
	if maxPending <= 0 {
		maxPending = config.TransactionManagerCapacity
	}
	if gapFillThresholdBlocks == 0 {
		gapFillThresholdBlocks = config.DefaultGapFillThresholdBlocks
	}
	return &Manager{
		maxPending:             maxPending,
		gapFillThresholdBlocks: gapFillThresholdBlocks,
		pending:                make(map[uint32]*PendingTransaction),
		detectedGaps:           make(map[uint32]uint32),
		subscriptions:          make(map[uint32]*subscription),
	}
}

// TrackTransaction records a newly submitted transaction. If the manager
// is at capacity, the oldest tracked nonce is evicted first.
func (m *Manager) TrackTransaction(nonce uint32, hash [32]byte, tip uint64, submittedAt uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.pending) >= m.maxPending {
		if len(m.order) > 0 {
			oldest := m.order[0]
			m.order = m.order[1:]
			delete(m.pending, oldest)
			delete(m.subscriptions, oldest)
			log.Warn().Uint32("nonce", oldest).Int("capacity", m.maxPending).
				Msg("transaction manager at capacity, dropping oldest pending transaction")
		}
	}

	if _, exists := m.pending[nonce]; !exists {
		m.order = append(m.order, nonce)
	}
	m.pending[nonce] = &PendingTransaction{
		Nonce:       nonce,
		Hash:        hash,
		Tip:         tip,
		SubmittedAt: submittedAt,
		Status:      StatusFuture,
	}
	m.subscriptions[nonce] = newSubscription()
	delete(m.detectedGaps, nonce)
}

// DetectGaps returns every nonce in [onChainNonce, max(highestTracked,
// localNonceCounter)) that the manager has no pending transaction for.
// localNonceCounter lets a caller detect gaps even with an empty
// manager, e.g. right after a dropped transaction was cleaned up.
func (m *Manager) DetectGaps(onChainNonce, localNonceCounter, currentBlock uint32) []NonceGap {
	m.mu.Lock()
	defer m.mu.Unlock()

	highest := onChainNonce
	for n := range m.pending {
		if n > highest {
			highest = n
		}
	}
	maxNonce := highest
	if localNonceCounter > maxNonce {
		maxNonce = localNonceCounter
	}
	if maxNonce <= onChainNonce {
		return nil
	}

	var gaps []NonceGap
	for n := onChainNonce; n < maxNonce; n++ {
		if _, ok := m.pending[n]; ok {
			continue
		}
		firstSeen, ok := m.detectedGaps[n]
		if !ok {
			firstSeen = currentBlock
			m.detectedGaps[n] = firstSeen
		}
		age := currentBlock - firstSeen
		gaps = append(gaps, NonceGap{Nonce: n, AgeInBlocks: age})
	}
	return gaps
}

// Remove drops a nonce and its gap-tracking history entirely. Use this
// when a transaction is permanently superseded (e.g. Usurped).
func (m *Manager) Remove(nonce uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(nonce, true)
}

// RemovePendingButKeepGap stops tracking the transaction itself but
// leaves its gap-detection history in place, for retriable terminal
// states (Invalid, Dropped) where a gap-filling pass may still run later.
func (m *Manager) RemovePendingButKeepGap(nonce uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(nonce, false)
}

func (m *Manager) removeLocked(nonce uint32, dropGap bool) {
	delete(m.pending, nonce)
	delete(m.subscriptions, nonce)
	for i, n := range m.order {
		if n == nonce {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if dropGap {
		delete(m.detectedGaps, nonce)
	}
}

// CleanupStaleNonceGaps drops gap-tracking entries for any nonce below
// onChainNonce: the gap was filled, by this node or externally.
func (m *Manager) CleanupStaleNonceGaps(onChainNonce uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for n := range m.detectedGaps {
		if n < onChainNonce {
			delete(m.detectedGaps, n)
		}
	}
}

// NotifyStatusChange updates the tracked status for nonce and wakes any
// WaitForStatus callers blocked on it. It is a no-op if nonce isn't
// tracked (e.g. already evicted).
func (m *Manager) NotifyStatusChange(nonce uint32, status Status) {
	m.mu.Lock()
	tx, trackedOK := m.pending[nonce]
	sub := m.subscriptions[nonce]
	m.mu.Unlock()
	if trackedOK {
		tx.Status = status
	}
	if sub != nil {
		sub.set(status)
	}
}

// WaitForStatus blocks until nonce's transaction reaches target (InBlock
// or Finalized counts as having reached InBlock), a terminal failure
// status arrives, or ctx is cancelled. Returns the failure status if one
// was reached.
func (m *Manager) WaitForStatus(ctx context.Context, nonce uint32, target StatusToWait) (Status, error) {
	m.mu.Lock()
	sub, ok := m.subscriptions[nonce]
	m.mu.Unlock()
	if !ok {
		return 0, sherrors.New(sherrors.NotFound, "nonce is not tracked")
	}

	check := func(s Status) (done bool, err error) {
		switch {
		case s == StatusInBlock && target == WaitInBlock:
			return true, nil
		case s == StatusFinalized:
			return true, nil
		case s.Failed():
			return true, sherrors.New(statusKind(s), "transaction reached a failure terminal state")
		default:
			return false, nil
		}
	}

	if done, err := check(sub.current()); done {
		return sub.current(), err
	}

	for {
		select {
		case <-ctx.Done():
			return 0, sherrors.Wrap(sherrors.TransactionTimeout, ctx.Err(), "timed out waiting for transaction status")
		case s := <-sub.ch:
			if done, err := check(s); done {
				return s, err
			}
		}
	}
}

func statusKind(s Status) sherrors.Kind {
	switch s {
	case StatusDropped:
		return sherrors.TransactionDropped
	case StatusUsurped:
		return sherrors.TransactionUsurped
	case StatusFinalityTimeout:
		return sherrors.FinalityTimeout
	default:
		return sherrors.TransactionTimeout
	}
}

// WaitForStatusTimeout is WaitForStatus with a plain duration instead of
// a context, matching the timeout-based API a caller outside an existing
// context tree would want.
func (m *Manager) WaitForStatusTimeout(nonce uint32, target StatusToWait, timeout time.Duration) (Status, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return m.WaitForStatus(ctx, nonce, target)
}

// Pending returns a snapshot of every currently tracked transaction.
func (m *Manager) Pending() []PendingTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PendingTransaction, 0, len(m.pending))
	for _, tx := range m.pending {
		out = append(out, *tx)
	}
	return out
}

// Len returns how many transactions are currently tracked.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
