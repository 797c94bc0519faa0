package challenge

import (
	"context"
	"testing"

	"github.com/storagehub-network/sh-core/chunkcodec"
	"github.com/storagehub-network/sh-core/config"
	"github.com/storagehub-network/sh-core/crypto"
	"github.com/storagehub-network/sh-core/filetrie"
	"github.com/storagehub-network/sh-core/forest"
	"github.com/storagehub-network/sh-core/forestlock"
)

func buildSingleFileFixture(t *testing.T, chunkSize uint64, chunks [][]byte) (fingerprint crypto.Hash, ft *filetrie.FileTrie) {
	t.Helper()
	fileSize := uint64(len(chunks)) * chunkSize
	ref := filetrie.NewWithChunkSize(crypto.Hash{}, fileSize, chunkSize)
	for i, c := range chunks {
		if err := ref.WriteChunk(chunkcodec.ChunkID(i), c); err != nil {
			t.Fatalf("building reference trie: %v", err)
		}
	}
	fingerprint = ref.GetRoot()
	ft = filetrie.NewWithChunkSize(fingerprint, fileSize, chunkSize)
	for i, c := range chunks {
		if err := ft.WriteChunk(chunkcodec.ChunkID(i), c); err != nil {
			t.Fatalf("building fixture trie: %v", err)
		}
	}
	return fingerprint, ft
}

func TestVerifyProofAcceptsValidSubmission(t *testing.T) {
	s := NewScheduler()
	chunkSize := uint64(8)
	chunks := [][]byte{
		{1, 1, 1, 1, 1, 1, 1, 1},
		{2, 2, 2, 2, 2, 2, 2, 2},
	}
	fingerprint, ft := buildSingleFileFixture(t, chunkSize, chunks)

	f := forest.New(nil)
	fileKey := crypto.HashBytes([]byte("file-1"))
	if err := f.InsertMetadata(fileKey, forest.FileMetadata{
		Owner:             "alice",
		FileSize:          ft.ChunksCount() * chunkSize,
		Fingerprint:       fingerprint,
		ReplicationTarget: config.Basic,
	}); err != nil {
		t.Fatalf("insert metadata: %v", err)
	}

	s.RegisterProvider("provider-1", 1000, f.Root(), 0)

	seed := crypto.HashBytes([]byte("seed-for-tick-10"))
	s.Tick(10, seed)

	forestProof := f.GenerateProof([]crypto.Hash{fileKey})

	chunkIDs := DeriveChunkChallenges(seed, fileKey, ft.ChunksCount(), config.RandomChallengesPerBlock)
	keyProof, err := ft.GenerateProof(chunkIDs)
	if err != nil {
		t.Fatalf("generate key proof: %v", err)
	}

	proof := Proof{
		ProviderID:       "provider-1",
		Tick:             10,
		Seed:             seed,
		ForestChallenges: []crypto.Hash{fileKey},
		ForestProof:      forestProof,
		KeyProofs: map[crypto.Hash]KeyProof{
			fileKey: {
				Fingerprint: fingerprint,
				ChunksCount: ft.ChunksCount(),
				ChunkIDs:    chunkIDs,
				Proof:       keyProof,
			},
		},
	}

	result, err := s.VerifyProof(proof, 10)
	if err != nil {
		t.Fatalf("expected proof to verify, got: %v", err)
	}
	if len(result.IncludedFileKeys) != 1 || result.IncludedFileKeys[0] != fileKey {
		t.Fatalf("included = %v, want [fileKey]", result.IncludedFileKeys)
	}

	due := s.DueProviders(10)
	if len(due) != 0 {
		t.Fatalf("expected provider removed from the due bucket after accepting, got %v", due)
	}
}

// TestApplyMutationsRemovesFileAndUpdatesRoot runs a checkpoint-mutation
// proof to acceptance and confirms ApplyMutations carries out the
// queued removal against the provider's own forest.
func TestApplyMutationsRemovesFileAndUpdatesRoot(t *testing.T) {
	s := NewScheduler()
	chunkSize := uint64(8)
	chunks := [][]byte{{1, 1, 1, 1, 1, 1, 1, 1}}
	fingerprint, ft := buildSingleFileFixture(t, chunkSize, chunks)

	f := forest.New(nil)
	fileKey := crypto.HashBytes([]byte("file-to-remove"))
	if err := f.InsertMetadata(fileKey, forest.FileMetadata{
		Owner:             "alice",
		FileSize:          ft.ChunksCount() * chunkSize,
		Fingerprint:       fingerprint,
		ReplicationTarget: config.Basic,
	}); err != nil {
		t.Fatalf("insert metadata: %v", err)
	}

	s.RegisterProvider("provider-1", 1000, f.Root(), 0)
	s.QueueChallenge(fileKey, &Mutation{RemoveFile: true}, true)

	tick := config.CheckpointChallengePeriod
	seed := crypto.HashBytes([]byte("checkpoint-seed"))
	s.Tick(tick, seed)

	forestProof := f.GenerateProof([]crypto.Hash{fileKey})
	chunkIDs := DeriveChunkChallenges(seed, fileKey, ft.ChunksCount(), config.RandomChallengesPerBlock)
	keyProof, err := ft.GenerateProof(chunkIDs)
	if err != nil {
		t.Fatalf("generate key proof: %v", err)
	}

	proof := Proof{
		ProviderID:       "provider-1",
		Tick:             tick,
		Seed:             seed,
		ForestChallenges: []crypto.Hash{fileKey},
		ForestProof:      forestProof,
		KeyProofs: map[crypto.Hash]KeyProof{
			fileKey: {Fingerprint: fingerprint, ChunksCount: ft.ChunksCount(), ChunkIDs: chunkIDs, Proof: keyProof},
		},
	}

	result, err := s.VerifyProof(proof, tick)
	if err != nil {
		t.Fatalf("expected proof to verify, got: %v", err)
	}
	if len(result.AppliedMutations) != 1 || result.AppliedMutations[0].FileKey != fileKey {
		t.Fatalf("applied mutations = %v, want one entry for fileKey", result.AppliedMutations)
	}

	locks := forestlock.New()
	if err := s.ApplyMutations(context.Background(), "provider-1", f, locks, result); err != nil {
		t.Fatalf("apply mutations: %v", err)
	}
	if _, err := f.GetFileMetadata(fileKey); err == nil {
		t.Fatal("expected file to be removed from the forest")
	}
}

func TestVerifyProofRejectsWrongSeed(t *testing.T) {
	s := NewScheduler()
	s.RegisterProvider("provider-1", 1000, crypto.HashBytes([]byte("root")), 0)
	s.Tick(5, crypto.HashBytes([]byte("real-seed")))

	proof := Proof{
		ProviderID:       "provider-1",
		Tick:             5,
		Seed:             crypto.HashBytes([]byte("wrong-seed")),
		ForestChallenges: nil,
		KeyProofs:        map[crypto.Hash]KeyProof{},
	}
	if _, err := s.VerifyProof(proof, 5); err == nil {
		t.Fatal("expected mismatched seed to be rejected")
	}
}

func TestVerifyProofRejectsUnregisteredProvider(t *testing.T) {
	s := NewScheduler()
	proof := Proof{ProviderID: "ghost", Tick: 1}
	if _, err := s.VerifyProof(proof, 1); err == nil {
		t.Fatal("expected unregistered provider to be rejected")
	}
}

func TestVerifyProofRequiresUncoveredCheckpointChallenges(t *testing.T) {
	s := NewScheduler()
	fileKey := crypto.HashBytes([]byte("checkpointed-file"))
	s.RegisterProvider("provider-1", 1000, crypto.HashBytes([]byte("root")), 0)
	s.QueueChallenge(fileKey, nil, true)
	s.Tick(config.CheckpointChallengePeriod, crypto.HashBytes([]byte("seed")))

	proof := Proof{
		ProviderID:       "provider-1",
		Tick:             config.CheckpointChallengePeriod,
		Seed:             crypto.HashBytes([]byte("seed")),
		ForestChallenges: nil, // doesn't cover the checkpointed file-key
		KeyProofs:        map[crypto.Hash]KeyProof{},
	}
	if _, err := s.VerifyProof(proof, config.CheckpointChallengePeriod); err == nil {
		t.Fatal("expected proof missing a required checkpoint challenge to be rejected")
	}
}
