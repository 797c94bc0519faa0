package storagerequest

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

type streamKey struct {
	provider string
	user     string
}

// Stream is one provider's ongoing charge against a user's deposit.
type Stream struct {
	Provider        string
	User            string
	RatePerTick     uint64
	Deposit         uint64
	LastChargedTick uint64
}

// ChargeResult is the outcome of charging one stream in a pass.
type ChargeResult struct {
	Provider        string
	User            string
	Charged         uint64
	WentInsolvent   bool
	RemainingDeposit uint64
}

// PaymentStreams runs the periodic charge pass over every (provider,
// user) stream: each tick-aligned pass charges rate × elapsed ticks
// against the user's deposit, flipping the user insolvent the moment a
// charge can't be fully covered.
type PaymentStreams struct {
	mu         sync.Mutex
	streams    map[streamKey]*Stream
	insolvent  map[string]bool
}

// NewPaymentStreams returns an empty tracker.
func NewPaymentStreams() *PaymentStreams {
	return &PaymentStreams{
		streams:   make(map[streamKey]*Stream),
		insolvent: make(map[string]bool),
	}
}

// OpenStream starts (or replaces) a stream from provider to user.
func (p *PaymentStreams) OpenStream(provider, user string, ratePerTick, deposit, openedAtTick uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.streams[streamKey{provider, user}] = &Stream{
		Provider:        provider,
		User:            user,
		RatePerTick:     ratePerTick,
		Deposit:         deposit,
		LastChargedTick: openedAtTick,
	}
	delete(p.insolvent, user)
}

// Charge charges a single (provider, user) stream up to currentTick and
// returns the result. Returns false if no such stream is tracked.
func (p *PaymentStreams) Charge(provider, user string, currentTick uint64) (ChargeResult, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.streams[streamKey{provider, user}]
	if !ok {
		return ChargeResult{}, false
	}
	return p.chargeLocked(s, currentTick), true
}

func (p *PaymentStreams) chargeLocked(s *Stream, currentTick uint64) ChargeResult {
	if currentTick <= s.LastChargedTick {
		return ChargeResult{Provider: s.Provider, User: s.User, RemainingDeposit: s.Deposit}
	}
	elapsed := currentTick - s.LastChargedTick
	due := s.RatePerTick * elapsed
	s.LastChargedTick = currentTick

	result := ChargeResult{Provider: s.Provider, User: s.User}
	if due > s.Deposit {
		result.Charged = s.Deposit
		result.WentInsolvent = true
		s.Deposit = 0
		p.insolvent[s.User] = true
	} else {
		result.Charged = due
		s.Deposit -= due
	}
	result.RemainingDeposit = s.Deposit
	return result
}

// ChargeAll charges every tracked stream up to currentTick in one pass,
// as a periodic background loop would. charge_multiple_users_payment_streams
// batches the resulting on-chain calls by user. Streams are charged
// concurrently, each under its own brief hold of the tracker's lock, the
// same fan-out shape the chain submission side uses per block.
func (p *PaymentStreams) ChargeAll(currentTick uint64) []ChargeResult {
	p.mu.Lock()
	keys := make([]*Stream, 0, len(p.streams))
	for _, s := range p.streams {
		keys = append(keys, s)
	}
	p.mu.Unlock()

	results := make([]ChargeResult, len(keys))
	g, _ := errgroup.WithContext(context.Background())
	for i, s := range keys {
		i, s := i, s
		g.Go(func() error {
			p.mu.Lock()
			results[i] = p.chargeLocked(s, currentTick)
			p.mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// IsInsolvent reports whether user has ever failed to cover a charge
// since their stream was last (re)opened.
func (p *PaymentStreams) IsInsolvent(user string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.insolvent[user]
}
