package filetrie

import (
	"bytes"
	"testing"

	"github.com/storagehub-network/sh-core/chunkcodec"
	"github.com/storagehub-network/sh-core/crypto"
)

const testChunkSize = 4

type memStore struct{ m map[string][]byte }

func newMemStore() *memStore { return &memStore{m: map[string][]byte{}} }

func (s *memStore) Get(key []byte) ([]byte, bool, error) {
	v, ok := s.m[string(key)]
	return v, ok, nil
}

func (s *memStore) Put(key, value []byte) error {
	s.m[string(key)] = append([]byte(nil), value...)
	return nil
}

// buildCompleteFile writes every chunk (each exactly testChunkSize bytes)
// into a scratch trie to derive the fingerprint, then replays the writes
// through a fresh FileTrie the way a real upload would.
func buildCompleteFile(t *testing.T, chunks [][]byte) (*FileTrie, crypto.Hash) {
	t.Helper()
	fileSize := uint64(len(chunks) * testChunkSize)
	tmp := NewWithChunkSize(crypto.Hash{}, fileSize, testChunkSize)
	for i, data := range chunks {
		tmp.t.Put(chunkKey(chunkcodec.ChunkID(i)), data)
	}
	root := tmp.t.Root()
	ft := NewWithChunkSize(root, fileSize, testChunkSize)
	for i, data := range chunks {
		if err := ft.WriteChunk(chunkcodec.ChunkID(i), data); err != nil {
			t.Fatalf("chunk %d: %v", i, err)
		}
	}
	return ft, root
}

func chunkKey(id chunkcodec.ChunkID) []byte {
	b := id.Bytes()
	return b[:]
}

func TestWriteChunkCompletesAtFingerprint(t *testing.T) {
	chunks := [][]byte{[]byte("aaaa"), []byte("bbbb"), []byte("cccc")}
	ft, root := buildCompleteFile(t, chunks)
	if !ft.IsComplete() {
		t.Fatal("expected file to be complete")
	}
	if ft.GetRoot() != root {
		t.Fatal("root mismatch after completion")
	}
}

func TestDuplicateChunkIsConflict(t *testing.T) {
	ft := NewWithChunkSize(crypto.Hash{}, 2*testChunkSize, testChunkSize)
	if err := ft.WriteChunk(0, []byte("aaaa")); err != nil {
		t.Fatal(err)
	}
	if err := ft.WriteChunk(0, []byte("aaaa")); err == nil {
		t.Fatal("expected duplicate write to be rejected")
	}
}

func TestGetChunkNotFound(t *testing.T) {
	ft := NewWithChunkSize(crypto.Hash{}, 2*testChunkSize, testChunkSize)
	if _, err := ft.GetChunk(0); err == nil {
		t.Fatal("expected NotFound for unwritten chunk")
	}
}

func TestGenerateProofAndVerify(t *testing.T) {
	chunks := [][]byte{[]byte("aaaa"), []byte("bbbb"), []byte("cccc"), []byte("dddd")}
	ft, root := buildCompleteFile(t, chunks)
	ids := []chunkcodec.ChunkID{1, 3}
	proof, err := ft.GenerateProof(ids)
	if err != nil {
		t.Fatal(err)
	}
	if !VerifyProof(root, ids, proof) {
		t.Fatal("proof did not verify")
	}
}

func TestCommitAndLoad(t *testing.T) {
	chunks := [][]byte{[]byte("aaaa"), []byte("bbbb"), []byte("cccc")}
	ft, root := buildCompleteFile(t, chunks)
	store := newMemStore()
	if err := ft.Commit(store); err != nil {
		t.Fatal(err)
	}
	fileSize := uint64(len(chunks) * testChunkSize)
	loaded, err := LoadWithChunkSize(store, root, fileSize, testChunkSize, root)
	if err != nil {
		t.Fatal(err)
	}
	if !loaded.IsComplete() {
		t.Fatal("expected loaded file trie to be complete")
	}
	got, err := loaded.GetChunk(1)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, chunks[1]) {
		t.Fatalf("chunk mismatch: got %q", got)
	}
}

func TestDeleteFileResetsState(t *testing.T) {
	ft := NewWithChunkSize(crypto.Hash{}, 2*testChunkSize, testChunkSize)
	if err := ft.WriteChunk(0, []byte("aaaa")); err != nil {
		t.Fatal(err)
	}
	ft.DeleteFile()
	if ft.IsComplete() {
		t.Fatal("expected complete flag cleared")
	}
	if _, err := ft.GetChunk(0); err == nil {
		t.Fatal("expected chunk to be gone after DeleteFile")
	}
}
