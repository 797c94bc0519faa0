package challenge

import (
	"bytes"
	"context"
	"math/big"

	"github.com/storagehub-network/sh-core/chunkcodec"
	"github.com/storagehub-network/sh-core/config"
	"github.com/storagehub-network/sh-core/crypto"
	"github.com/storagehub-network/sh-core/filetrie"
	"github.com/storagehub-network/sh-core/forest"
	"github.com/storagehub-network/sh-core/forestlock"
	"github.com/storagehub-network/sh-core/sherrors"
	"github.com/storagehub-network/sh-core/trie"
)

// mutationApplyPriority is the forest write priority ApplyMutations
// acquires under. It runs ahead of a fresh MspAccept/ConfirmBsp insert
// so a file a checkpoint challenge is removing doesn't race a pending
// write naming the same key.
const mutationApplyPriority forestlock.PriorityValue = 5

// KeyProof answers a forest inclusion with the file-trie proof over the
// chunk indices that inclusion's challenge derives.
type KeyProof struct {
	Fingerprint crypto.Hash
	ChunksCount uint64
	ChunkIDs    []chunkcodec.ChunkID
	Proof       trie.CompactProof
}

// Proof is what a provider submits for one tick.
type Proof struct {
	ProviderID       string
	Tick             uint64
	Seed             crypto.Hash
	ForestChallenges []crypto.Hash
	ForestProof      trie.CompactProof
	KeyProofs        map[crypto.Hash]KeyProof
}

// VerifyResult is the outcome of a proof that passed every accept-iff
// condition: which file-keys it proved inclusion of (relevant to
// checkpoint mutations) and which queued mutations now apply.
type VerifyResult struct {
	IncludedFileKeys []crypto.Hash
	AppliedMutations []MutationApplication
}

// MutationApplication pairs a queued checkpoint mutation with the
// file-key it applies to, once a proof has confirmed that key's
// inclusion.
type MutationApplication struct {
	FileKey  crypto.Hash
	Mutation Mutation
}

// DeriveForestChallenges derives the n forest-trie target keys a
// provider's regular round must answer for (seed, providerID), the
// deterministic challenge generation 4.H.3 names.
func DeriveForestChallenges(seed crypto.Hash, providerID string, n int) []crypto.Hash {
	out := make([]crypto.Hash, n)
	for i := 0; i < n; i++ {
		out[i] = crypto.HashAll(seed, providerID, i)
	}
	return out
}

// DeriveChunkChallenges derives the chunk indices a key-proof for
// fileKey must cover, given a chunk count and the same seed.
func DeriveChunkChallenges(seed crypto.Hash, fileKey crypto.Hash, chunksCount uint64, n int) []chunkcodec.ChunkID {
	if chunksCount == 0 {
		return nil
	}
	out := make([]chunkcodec.ChunkID, n)
	mod := new(big.Int).SetUint64(chunksCount)
	for i := 0; i < n; i++ {
		h := crypto.HashAll(seed, fileKey, i)
		idx := new(big.Int).Mod(new(big.Int).SetBytes(h[:]), mod)
		out[i] = chunkcodec.ChunkID(idx.Uint64())
	}
	return out
}

// PendingForestChallenges returns the full set of forest-trie keys
// providerID's next proof must cover at tick: the random challenges
// derived from (seed, providerID), plus every checkpoint challenge
// drawn since the provider's last accepted proof.
func (s *Scheduler) PendingForestChallenges(providerID string, tick uint64, seed crypto.Hash) ([]crypto.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	provider, ok := s.providers[providerID]
	if !ok {
		return nil, sherrors.New(sherrors.NotFound, "provider not registered")
	}
	challenges := DeriveForestChallenges(seed, providerID, config.RandomChallengesPerBlock)
	for _, cp := range s.checkpointChallengesSinceLocked(provider.lastProofTick, tick) {
		if !containsHash(challenges, cp.FileKey) {
			challenges = append(challenges, cp.FileKey)
		}
	}
	return challenges, nil
}

// VerifyProof checks every accept-iff condition from 4.H.3 against the
// scheduler's tracked state and, on success, advances the provider's
// last-proof tick and returns which file-keys it proved inclusion of.
func (s *Scheduler) VerifyProof(p Proof, currentTick uint64) (VerifyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	provider, ok := s.providers[p.ProviderID]
	if !ok || provider.stake == 0 || provider.forestRoot.IsZero() {
		return VerifyResult{}, sherrors.New(sherrors.AuthFailed, "provider is not registered with non-zero stake and forest root")
	}

	if p.Tick < provider.lastProofTick || p.Tick > currentTick {
		return VerifyResult{}, sherrors.New(sherrors.InputRejected, "tick is outside [last_proof_tick, current_tick]")
	}
	if currentTick-p.Tick > config.ChallengeHistoryLength {
		return VerifyResult{}, sherrors.New(sherrors.InputRejected, "tick has fallen outside the challenge history window")
	}

	storedSeed, ok := s.seeds[p.Tick]
	if !ok || storedSeed != p.Seed {
		return VerifyResult{}, sherrors.New(sherrors.ProofVerificationFailed, "seed does not match the stored seed for this tick")
	}

	var included []crypto.Hash
	for _, key := range p.ForestChallenges {
		verified, isIncluded := verifyForestChallenge(provider.forestRoot, key[:], p.ForestProof)
		if !verified {
			return VerifyResult{}, sherrors.New(sherrors.ProofVerificationFailed, "forest proof does not verify against the provider's forest root")
		}
		if isIncluded {
			included = append(included, key)
		}
	}

	for _, fileKey := range included {
		kp, ok := p.KeyProofs[fileKey]
		if !ok {
			return VerifyResult{}, sherrors.New(sherrors.ProofVerificationFailed, "missing key-proof for an included file-key")
		}
		ids := DeriveChunkChallenges(p.Seed, fileKey, kp.ChunksCount, config.RandomChallengesPerBlock)
		if len(ids) != len(kp.ChunkIDs) {
			return VerifyResult{}, sherrors.New(sherrors.ProofVerificationFailed, "key-proof covers the wrong chunk indices")
		}
		for i, id := range ids {
			if id != kp.ChunkIDs[i] {
				return VerifyResult{}, sherrors.New(sherrors.ProofVerificationFailed, "key-proof covers the wrong chunk indices")
			}
		}
		if !filetrie.VerifyProof(kp.Fingerprint, kp.ChunkIDs, kp.Proof) {
			return VerifyResult{}, sherrors.New(sherrors.ProofVerificationFailed, "key-proof does not verify against the file's fingerprint")
		}
	}

	required := s.checkpointChallengesSinceLocked(provider.lastProofTick, p.Tick)
	for _, req := range required {
		if !containsHash(p.ForestChallenges, req.FileKey) {
			return VerifyResult{}, sherrors.New(sherrors.ProofVerificationFailed, "checkpoint challenges since the last proof are not all covered")
		}
	}

	var mutations []MutationApplication
	for _, req := range required {
		if req.Mutation != nil && containsHash(included, req.FileKey) {
			mutations = append(mutations, MutationApplication{FileKey: req.FileKey, Mutation: *req.Mutation})
		}
	}

	s.acceptSubmission(p.ProviderID, p.Tick)

	return VerifyResult{IncludedFileKeys: included, AppliedMutations: mutations}, nil
}

// ApplyMutations applies a successful VerifyProof's queued mutations to
// providerID's own forest, holding the forest write lock for the
// duration, then records the resulting root with the scheduler. Callers
// only have a forest to pass here when providerID is this node itself;
// verifying another provider's proof still returns a VerifyResult, but
// there is no local forest to apply it to.
func (s *Scheduler) ApplyMutations(ctx context.Context, providerID string, f *forest.Forest, locks *forestlock.Manager, result VerifyResult) error {
	if len(result.AppliedMutations) == 0 {
		return nil
	}
	guard, err := locks.Acquire(ctx, mutationApplyPriority)
	if err != nil {
		return err
	}
	defer guard.Release()

	for _, m := range result.AppliedMutations {
		if !m.Mutation.RemoveFile {
			continue
		}
		if err := f.Delete(m.FileKey); err != nil {
			return err
		}
	}
	return s.UpdateForestRoot(providerID, f.Root())
}

func (s *Scheduler) checkpointChallengesSinceLocked(sinceTick, uptoTick uint64) []QueuedChallenge {
	var out []QueuedChallenge
	for tick, challenges := range s.checkpointChallenges {
		if tick > sinceTick && tick <= uptoTick {
			out = append(out, challenges...)
		}
	}
	return out
}

func containsHash(haystack []crypto.Hash, needle crypto.Hash) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}

// verifyForestChallenge checks that key's status (included or not)
// against root verifies via proof, returning (verified, included).
func verifyForestChallenge(root crypto.Hash, key []byte, proof trie.CompactProof) (verified, included bool) {
	var pred, succ *trie.LeafProof
	for k := range proof.Leaves {
		lp := proof.Leaves[k]
		if bytes.Equal(lp.Key, key) {
			return lp.Verify(root), true
		}
		if bytes.Compare(lp.Key, key) < 0 {
			if pred == nil || bytes.Compare(lp.Key, pred.Key) > 0 {
				cp := lp
				pred = &cp
			}
		} else {
			if succ == nil || bytes.Compare(lp.Key, succ.Key) < 0 {
				cp := lp
				succ = &cp
			}
		}
	}
	if pred != nil && !pred.Verify(root) {
		return false, false
	}
	if succ != nil && !succ.Verify(root) {
		return false, false
	}
	return trie.VerifyNonInclusion(root, key, pred, succ), false
}
