package forest

import (
	"testing"

	"github.com/storagehub-network/sh-core/config"
	"github.com/storagehub-network/sh-core/crypto"
	"github.com/storagehub-network/sh-core/sherrors"
)

func testFileKey(i byte) crypto.Hash {
	var h crypto.Hash
	h[0] = i
	return h
}

func TestInsertGetDelete(t *testing.T) {
	f := New(nil)
	fk := testFileKey(1)
	md := FileMetadata{Owner: "alice", Location: "/a.txt", FileSize: 10, ReplicationTarget: config.Basic}

	if err := f.InsertMetadata(fk, md); err != nil {
		t.Fatal(err)
	}
	got, err := f.GetFileMetadata(fk)
	if err != nil {
		t.Fatal(err)
	}
	if got.Owner != "alice" || got.FileSize != 10 {
		t.Fatalf("unexpected metadata: %+v", got)
	}

	if err := f.Delete(fk); err != nil {
		t.Fatal(err)
	}
	if _, err := f.GetFileMetadata(fk); err == nil {
		t.Fatal("expected NotFound after delete")
	}
	if err := f.Delete(fk); err == nil {
		t.Fatal("expected deleting an absent key to fail")
	}
}

func TestInsertMetadataRejectsDuplicateFileKey(t *testing.T) {
	f := New(nil)
	fk := testFileKey(1)
	md := FileMetadata{Owner: "alice", Location: "/a.txt", FileSize: 10, ReplicationTarget: config.Basic}

	if err := f.InsertMetadata(fk, md); err != nil {
		t.Fatal(err)
	}
	err := f.InsertMetadata(fk, md)
	if err == nil {
		t.Fatal("expected inserting the same file_key twice to fail")
	}
	if sherrors.KindOf(err) != sherrors.Conflict {
		t.Fatalf("expected a Conflict error, got %v", sherrors.KindOf(err))
	}
}

func TestGetFilesByUserFallbackScan(t *testing.T) {
	f := New(nil)
	for i := byte(1); i <= 3; i++ {
		owner := "alice"
		if i == 3 {
			owner = "bob"
		}
		if err := f.InsertMetadata(testFileKey(i), FileMetadata{Owner: owner}); err != nil {
			t.Fatal(err)
		}
	}
	keys, err := f.GetFilesByUser("alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 files for alice, got %d", len(keys))
	}
}

func TestForestProofCoversNonInclusion(t *testing.T) {
	f := New(nil)
	present := testFileKey(5)
	if err := f.InsertMetadata(present, FileMetadata{Owner: "alice"}); err != nil {
		t.Fatal(err)
	}
	absent := testFileKey(9)
	proof := f.GenerateProof([]crypto.Hash{present, absent})
	if len(proof.Leaves) == 0 {
		t.Fatal("expected at least one leaf proof")
	}
}
