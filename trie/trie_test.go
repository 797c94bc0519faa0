package trie

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func key(i uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, i)
	return b
}

func TestPutGet(t *testing.T) {
	tr := New()
	for i := uint64(0); i < 50; i++ {
		tr.Put(key(i), []byte{byte(i)})
	}
	for i := uint64(0); i < 50; i++ {
		v, ok := tr.Get(key(i))
		if !ok {
			t.Fatalf("key %d missing", i)
		}
		if len(v) != 1 || v[0] != byte(i) {
			t.Fatalf("key %d: wrong value %v", i, v)
		}
	}
	if _, ok := tr.Get(key(999)); ok {
		t.Fatal("unexpected hit for absent key")
	}
}

func TestRootChangesOnWrite(t *testing.T) {
	tr := New()
	r0 := tr.Root()
	tr.Put(key(1), []byte("a"))
	r1 := tr.Root()
	if r0 == r1 {
		t.Fatal("root did not change after insert")
	}
	tr.Put(key(1), []byte("a"))
	r2 := tr.Root()
	if r1 != r2 {
		t.Fatal("re-inserting identical value changed the root")
	}
}

func TestDeleteRestoresRoot(t *testing.T) {
	tr := New()
	r0 := tr.Root()
	tr.Put(key(1), []byte("a"))
	if ok := tr.Delete(key(1)); !ok {
		t.Fatal("delete reported key missing")
	}
	if tr.Root() != r0 {
		t.Fatal("root not restored after delete")
	}
}

func TestInclusionProof(t *testing.T) {
	tr := New()
	for i := uint64(0); i < 20; i++ {
		tr.Put(key(i), []byte{byte(i)})
	}
	root := tr.Root()
	proof := tr.GenerateProof([][]byte{key(5), key(17)})
	for _, k := range [][]byte{key(5), key(17)} {
		lp, ok := proof.Leaves[keyStr(k)]
		if !ok {
			t.Fatalf("missing leaf proof for key %v", k)
		}
		if !bytes.Equal(lp.Key, k) {
			t.Fatalf("leaf proof key mismatch")
		}
		if !lp.Verify(root) {
			t.Fatalf("leaf proof for key %v did not verify", k)
		}
	}
}

func TestNonInclusionProofBothSides(t *testing.T) {
	tr := New()
	tr.Put(key(10), []byte("a"))
	tr.Put(key(20), []byte("b"))
	tr.Put(key(30), []byte("c"))
	root := tr.Root()

	leaves := tr.Leaves()
	pred, succ, found := neighbors(leaves, key(15))
	if found {
		t.Fatal("key(15) unexpectedly found")
	}
	if pred == nil || succ == nil {
		t.Fatal("expected both neighbors for an interior absent key")
	}
	predProof := tr.proveLeaf(pred.Key)
	succProof := tr.proveLeaf(succ.Key)
	if !VerifyNonInclusion(root, key(15), &predProof, &succProof) {
		t.Fatal("non-inclusion proof failed to verify")
	}

	// Key below the smallest leaf: only the successor is exposed.
	predLow, succLow, _ := neighbors(leaves, key(1))
	if predLow != nil {
		t.Fatal("expected no predecessor below the smallest leaf")
	}
	succLowProof := tr.proveLeaf(succLow.Key)
	if !VerifyNonInclusion(root, key(1), nil, &succLowProof) {
		t.Fatal("one-sided (low) non-inclusion proof failed to verify")
	}

	// Key above the largest leaf: only the predecessor is exposed.
	predHigh, succHigh, _ := neighbors(leaves, key(100))
	if succHigh != nil {
		t.Fatal("expected no successor above the largest leaf")
	}
	predHighProof := tr.proveLeaf(predHigh.Key)
	if !VerifyNonInclusion(root, key(100), &predHighProof, nil) {
		t.Fatal("one-sided (high) non-inclusion proof failed to verify")
	}
}

func TestCommitAndLoadRoundTrip(t *testing.T) {
	store := newMemStore()
	tr := New()
	for i := uint64(0); i < 30; i++ {
		tr.Put(key(i), []byte{byte(i), byte(i + 1)})
	}
	if err := tr.Commit(store); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(store, tr.Root())
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Root() != tr.Root() {
		t.Fatal("loaded root mismatch")
	}
	for i := uint64(0); i < 30; i++ {
		v, ok := loaded.Get(key(i))
		if !ok || len(v) != 2 || v[0] != byte(i) {
			t.Fatalf("loaded trie missing/garbled key %d", i)
		}
	}
}

// memStore is a minimal in-memory NodeStore for tests.
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
