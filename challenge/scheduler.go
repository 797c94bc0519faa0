package challenge

import (
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/storagehub-network/sh-core/config"
	"github.com/storagehub-network/sh-core/crypto"
	"github.com/storagehub-network/sh-core/sherrors"
)

// Mutation is a trie mutation a checkpoint challenge carries alongside a
// file-key: proving inclusion of that key obligates the provider to
// apply the mutation locally before its next forest root is recorded.
type Mutation struct {
	RemoveFile bool
}

// QueuedChallenge is one file-key waiting to be drawn into a checkpoint
// round, optionally carrying a forced mutation.
type QueuedChallenge struct {
	FileKey  crypto.Hash
	Mutation *Mutation
}

type providerState struct {
	stake         uint64
	forestRoot    crypto.Hash
	lastProofTick uint64
}

// Scheduler tracks, for every registered provider, when it is next due
// to prove, and runs the checkpoint-challenge drawing and randomness
// bookkeeping a host chain's proofs-dealer pallet performs every tick.
// Deriving the randomness itself is the host chain's job (chain.Client/
// chain.EventSource's concern); Scheduler.Tick is handed each tick's
// already-derived seed.
type Scheduler struct {
	mu sync.Mutex

	providers map[string]*providerState

	seeds map[uint64]crypto.Hash

	priorityQueue []QueuedChallenge
	regularQueue  []QueuedChallenge

	checkpointChallenges map[uint64][]QueuedChallenge
	challengedProviders  map[uint64][]string
	slashable            map[string]bool
}

// NewScheduler returns an empty Scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{
		providers:            make(map[string]*providerState),
		seeds:                make(map[uint64]crypto.Hash),
		checkpointChallenges: make(map[uint64][]QueuedChallenge),
		challengedProviders:  make(map[uint64][]string),
		slashable:            make(map[string]bool),
	}
}

// RegisterProvider starts (or updates) tracking for providerID, given
// its current stake and forest root.
func (s *Scheduler) RegisterProvider(providerID string, stake uint64, forestRoot crypto.Hash, atTick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers[providerID] = &providerState{stake: stake, forestRoot: forestRoot, lastProofTick: atTick}
}

// UpdateStake adjusts a tracked provider's stake, changing its proving
// period going forward.
func (s *Scheduler) UpdateStake(providerID string, stake uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.providers[providerID]
	if !ok {
		return sherrors.New(sherrors.NotFound, "provider not registered")
	}
	p.stake = stake
	return nil
}

// UpdateForestRoot records a provider's new forest root, e.g. after it
// applies a file-deletion mutation or accepts a new file.
func (s *Scheduler) UpdateForestRoot(providerID string, root crypto.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.providers[providerID]
	if !ok {
		return sherrors.New(sherrors.NotFound, "provider not registered")
	}
	p.forestRoot = root
	return nil
}

// QueueChallenge enqueues fileKey to be drawn into a future checkpoint
// round. Priority challenges are drawn before regular ones.
func (s *Scheduler) QueueChallenge(fileKey crypto.Hash, mutation *Mutation, priority bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := QueuedChallenge{FileKey: fileKey, Mutation: mutation}
	if priority {
		s.priorityQueue = append(s.priorityQueue, q)
	} else {
		s.regularQueue = append(s.regularQueue, q)
	}
}

// Tick runs one tick's scheduling pass: stores the tick's seed, evicts
// the seed that just fell outside the history window, drains a
// checkpoint round if due, and appends every provider due to prove at
// this tick to its challenged-providers bucket.
func (s *Scheduler) Tick(tick uint64, seed crypto.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seeds[tick] = seed
	if tick > config.ChallengeHistoryLength {
		delete(s.seeds, tick-config.ChallengeHistoryLength)
	}

	if tick%config.CheckpointChallengePeriod == 0 {
		s.checkpointChallenges[tick] = s.drainCheckpointRoundLocked()
	}

	ids := make([]string, 0, len(s.providers))
	for id := range s.providers {
		ids = append(ids, id)
	}
	due := make([]bool, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		i, p := i, s.providers[id]
		g.Go(func() error {
			due[i] = p.stake != 0 && p.lastProofTick+ProvingPeriod(p.stake) == tick
			return nil
		})
	}
	_ = g.Wait()
	for i, id := range ids {
		if due[i] {
			s.challengedProviders[tick] = append(s.challengedProviders[tick], id)
		}
	}
}

func (s *Scheduler) drainCheckpointRoundLocked() []QueuedChallenge {
	var drawn []QueuedChallenge
	for len(drawn) < config.MaxCustomChallengesPerBlock && len(s.priorityQueue) > 0 {
		drawn = append(drawn, s.priorityQueue[0])
		s.priorityQueue = s.priorityQueue[1:]
	}
	for len(drawn) < config.MaxCustomChallengesPerBlock && len(s.regularQueue) > 0 {
		drawn = append(drawn, s.regularQueue[0])
		s.regularQueue = s.regularQueue[1:]
	}
	return drawn
}

// SeedForTick returns the seed stored for tick, if still within the
// history window.
func (s *Scheduler) SeedForTick(tick uint64) (crypto.Hash, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seed, ok := s.seeds[tick]
	return seed, ok
}

// CheckpointChallengesBetween returns every checkpoint challenge drawn
// strictly after sinceTick, up to and including uptoTick.
func (s *Scheduler) CheckpointChallengesBetween(sinceTick, uptoTick uint64) []QueuedChallenge {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []QueuedChallenge
	for tick, challenges := range s.checkpointChallenges {
		if tick > sinceTick && tick <= uptoTick {
			out = append(out, challenges...)
		}
	}
	return out
}

// DueProviders returns the providers marked as challenged at tick.
func (s *Scheduler) DueProviders(tick uint64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.challengedProviders[tick]))
	copy(out, s.challengedProviders[tick])
	return out
}

// MarkSlashable scans every provider still listed as due at
// tick-deadlineOffset (i.e. that never submitted) and marks it
// slashable, returning the newly-marked providers.
func (s *Scheduler) MarkSlashable(tick, deadlineOffset uint64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tick < deadlineOffset {
		return nil
	}
	due := s.challengedProviders[tick-deadlineOffset]
	var newlySlashable []string
	for _, id := range due {
		if !s.slashable[id] {
			s.slashable[id] = true
			newlySlashable = append(newlySlashable, id)
		}
	}
	return newlySlashable
}

// IsSlashable reports whether providerID has been marked slashable.
func (s *Scheduler) IsSlashable(providerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slashable[providerID]
}

// acceptSubmission removes providerID from tick's challenged-providers
// bucket and records its new last-proof tick. Called only after a
// proof verifies.
func (s *Scheduler) acceptSubmission(providerID string, tick uint64) {
	bucket := s.challengedProviders[tick]
	for i, id := range bucket {
		if id == providerID {
			s.challengedProviders[tick] = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if p, ok := s.providers[providerID]; ok {
		p.lastProofTick = tick
	}
	delete(s.slashable, providerID)
}
