// Package filetrie implements a per-file Merkle-Patricia trie keyed by
// chunk index, whose root equals the file's fingerprint once every chunk
// has been written.
package filetrie

import (
	"fmt"

	"github.com/storagehub-network/sh-core/chunkcodec"
	"github.com/storagehub-network/sh-core/config"
	"github.com/storagehub-network/sh-core/crypto"
	"github.com/storagehub-network/sh-core/sherrors"
	"github.com/storagehub-network/sh-core/trie"
)

// FileTrie is the per-file trie for one file_key. It is owned by whichever
// node holds the file bytes, created on upload and destroyed on
// DeleteFile.
type FileTrie struct {
	fingerprint crypto.Hash
	fileSize    uint64
	chunkSize   uint64
	chunksCount uint64
	t           *trie.Trie
	complete    bool
}

// New allocates an empty file trie for a file of the given size and
// declared fingerprint, chunked at the network-wide FileChunkSize.
// Nothing is written yet.
func New(fingerprint crypto.Hash, fileSize uint64) *FileTrie {
	return NewWithChunkSize(fingerprint, fileSize, config.FileChunkSize)
}

// NewWithChunkSize is New with an explicit chunk size, for callers (and
// tests) that need something other than the production FileChunkSize.
func NewWithChunkSize(fingerprint crypto.Hash, fileSize, chunkSize uint64) *FileTrie {
	return &FileTrie{
		fingerprint: fingerprint,
		fileSize:    fileSize,
		chunkSize:   chunkSize,
		chunksCount: config.ChunksCount(fileSize, chunkSize),
		t:           trie.New(),
	}
}

// Load reconstructs a FileTrie from a content-addressed store, given the
// file's declared fingerprint and size; the trie itself is loaded from
// whatever root the store already has committed for this file_key.
func Load(store trie.NodeStore, fingerprint crypto.Hash, fileSize uint64, committedRoot crypto.Hash) (*FileTrie, error) {
	return LoadWithChunkSize(store, fingerprint, fileSize, config.FileChunkSize, committedRoot)
}

// LoadWithChunkSize is Load with an explicit chunk size.
func LoadWithChunkSize(store trie.NodeStore, fingerprint crypto.Hash, fileSize, chunkSize uint64, committedRoot crypto.Hash) (*FileTrie, error) {
	t, err := trie.Load(store, committedRoot)
	if err != nil {
		return nil, err
	}
	ft := &FileTrie{
		fingerprint: fingerprint,
		fileSize:    fileSize,
		chunkSize:   chunkSize,
		chunksCount: config.ChunksCount(fileSize, chunkSize),
		t:           t,
	}
	ft.complete = ft.t.Root() == fingerprint && uint64(ft.t.Len()) == ft.chunksCount
	return ft, nil
}

// ChunksCount returns ceil(file_size / FILE_CHUNK_SIZE).
func (f *FileTrie) ChunksCount() uint64 { return f.chunksCount }

// GetRoot returns the trie's current root hash.
func (f *FileTrie) GetRoot() crypto.Hash { return f.t.Root() }

// Fingerprint returns the file's declared fingerprint, the root every
// chunk proof is checked against regardless of how much of the file has
// been written locally so far.
func (f *FileTrie) Fingerprint() crypto.Hash { return f.fingerprint }

// IsComplete reports whether every chunk has been written and the root
// equals the declared fingerprint.
func (f *FileTrie) IsComplete() bool { return f.complete }

// WriteChunk writes one chunk. Returns sherrors with Kind Conflict if the
// chunk id was already written (the chunk-ingest pipeline treats this as
// log-and-ignore, making repeated writes of the same chunk idempotent),
// StorageCorruption if writing would change an already-complete trie's
// root away from the fingerprint.
func (f *FileTrie) WriteChunk(id chunkcodec.ChunkID, data []byte) error {
	keyBytes := id.Bytes()
	key := keyBytes[:]
	if f.t.Has(key) {
		return sherrors.New(sherrors.Conflict, "chunk already exists")
	}
	if f.complete {
		return sherrors.New(sherrors.StorageCorruption, "fingerprint and stored file mismatch: file already complete")
	}
	f.t.Put(key, data)
	if uint64(f.t.Len()) == f.chunksCount {
		if f.t.Root() != f.fingerprint {
			return sherrors.New(sherrors.StorageCorruption, "fingerprint and stored file mismatch")
		}
		f.complete = true
	}
	return nil
}

// GetChunk returns the bytes written for id, or NotFound.
func (f *FileTrie) GetChunk(id chunkcodec.ChunkID) ([]byte, error) {
	keyBytes := id.Bytes()
	v, ok := f.t.Get(keyBytes[:])
	if !ok {
		return nil, sherrors.New(sherrors.NotFound, "chunk not found")
	}
	return v, nil
}

// GenerateProof builds one CompactProof covering exactly the requested
// chunk ids.
func (f *FileTrie) GenerateProof(ids []chunkcodec.ChunkID) (trie.CompactProof, error) {
	keys := make([][]byte, len(ids))
	for i, id := range ids {
		b := id.Bytes()
		keys[i] = b[:]
	}
	for _, k := range keys {
		if !f.t.Has(k) {
			return trie.CompactProof{}, sherrors.New(sherrors.NotFound, "cannot prove an unwritten chunk")
		}
	}
	return f.t.GenerateProof(keys), nil
}

// VerifyProof verifies that proof holds a leaf proof for every id in ids
// and that each of those leaf proofs verifies against root. It takes no
// chunk bytes, so the leaves' values are not compared with any data.
func VerifyProof(root crypto.Hash, ids []chunkcodec.ChunkID, proof trie.CompactProof) bool {
	for _, id := range ids {
		b := id.Bytes()
		lp, ok := proof.Leaves[leafKey(b[:])]
		if !ok || !lp.Verify(root) {
			return false
		}
	}
	return true
}

func leafKey(b []byte) string {
	return fmt.Sprintf("%x", b)
}

// DeleteFile clears local state. The trie's nodes already committed to
// the backing store are left for the store's own garbage collection: a
// file trie's lifetime is tied to whoever holds the bytes, not to the KV
// engine's retention policy.
func (f *FileTrie) DeleteFile() {
	f.t = trie.New()
	f.complete = false
}

// Commit persists every node of the current trie to store.
func (f *FileTrie) Commit(store trie.NodeStore) error {
	return f.t.Commit(store)
}
