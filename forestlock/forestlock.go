// Package forestlock serializes writes to a provider's forest root behind
// a single-slot, priority-ordered lock: callers request a ticket with a
// priority, wait for it to activate, do their write, then release it so
// the next-highest-priority waiting ticket can run.
package forestlock

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// PriorityValue orders tickets; lower values run first.
type PriorityValue uint64

// Ticket represents one request for the forest root write lock. Callers
// obtain one from Manager.CreateTicket, then block in Lock until it is
// activated.
type Ticket struct {
	priority   PriorityValue
	id         uint64
	manager    *Manager
	activation chan struct{}

	mu     sync.Mutex
	active bool
}

// Priority returns the ticket's priority value.
func (t *Ticket) Priority() PriorityValue { return t.priority }

// Lock blocks until the ticket becomes active (is granted the lock), or
// ctx is cancelled first. On success it returns a Guard whose Release
// hands the lock to the next queued ticket.
func (t *Ticket) Lock(ctx context.Context) (*Guard, error) {
	t.mu.Lock()
	if t.active {
		t.mu.Unlock()
		return &Guard{ticket: t}, nil
	}
	t.mu.Unlock()

	select {
	case <-t.activation:
		t.mu.Lock()
		t.active = true
		t.mu.Unlock()
		log.Debug().Uint64("nonce_id", t.id).Uint64("priority", uint64(t.priority)).
			Msg("forestlock: ticket acquired lock")
		return &Guard{ticket: t}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Guard holds the lock for one ticket; Release gives it up.
type Guard struct {
	ticket     *Ticket
	released   bool
	releasedMu sync.Mutex
}

// Release marks the ticket inactive and lets the manager assign the lock
// to the next queued ticket. Safe to call more than once; only the first
// call has an effect.
func (g *Guard) Release() {
	g.releasedMu.Lock()
	if g.released {
		g.releasedMu.Unlock()
		return
	}
	g.released = true
	g.releasedMu.Unlock()

	t := g.ticket
	t.mu.Lock()
	wasActive := t.active
	t.active = false
	t.mu.Unlock()
	if wasActive {
		t.manager.releaseHeld()
	}
}

type ticketQueue []*Ticket

func (q ticketQueue) Len() int { return len(q) }
func (q ticketQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority < q[j].priority
	}
	return q[i].id < q[j].id
}
func (q ticketQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *ticketQueue) Push(x any)   { *q = append(*q, x.(*Ticket)) }
func (q *ticketQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// Manager coordinates a single forest root write lock across any number
// of competing tickets.
type Manager struct {
	mu     sync.Mutex
	held   bool
	queue  ticketQueue
	nextID atomic.Uint64
}

// New returns an unlocked Manager.
func New() *Manager {
	return &Manager{}
}

// CreateTicket enqueues a new ticket at the given priority and returns
// it. The caller still needs to call Lock to wait for activation, and
// the manager still needs a call to ProcessNextTicket to consider
// activating it (typically driven by the release of the previous
// holder, or once right after enqueueing a batch of tickets).
func (m *Manager) CreateTicket(priority PriorityValue) *Ticket {
	t := &Ticket{
		priority:   priority,
		id:         m.nextID.Add(1),
		manager:    m,
		activation: make(chan struct{}),
	}
	m.mu.Lock()
	heap.Push(&m.queue, t)
	m.mu.Unlock()
	return t
}

// ProcessNextTicket attempts to hand the lock to the highest-priority
// queued ticket, if the lock is currently free.
func (m *Manager) ProcessNextTicket() {
	m.mu.Lock()
	if m.held || m.queue.Len() == 0 {
		m.mu.Unlock()
		return
	}
	next := heap.Pop(&m.queue).(*Ticket)
	m.held = true
	m.mu.Unlock()

	close(next.activation)
	log.Debug().Uint64("nonce_id", next.id).Uint64("priority", uint64(next.priority)).
		Msg("forestlock: activated ticket")
}

func (m *Manager) releaseHeld() {
	m.mu.Lock()
	m.held = false
	m.mu.Unlock()
	m.ProcessNextTicket()
}

// Acquire enqueues a ticket at priority, kicks the queue, and blocks until
// it activates or ctx is cancelled. It bundles the CreateTicket /
// ProcessNextTicket / Lock sequence for call sites that just want to hold
// the forest write lock for one mutation.
func (m *Manager) Acquire(ctx context.Context, priority PriorityValue) (*Guard, error) {
	t := m.CreateTicket(priority)
	m.ProcessNextTicket()
	return t.Lock(ctx)
}

// IsLockAvailable reports whether the lock is currently free, without
// acquiring it.
func (m *Manager) IsLockAvailable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.held
}

// QueueLen returns how many tickets are currently waiting (not counting
// the one that currently holds the lock, if any).
func (m *Manager) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Len()
}
