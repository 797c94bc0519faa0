package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/storagehub-network/sh-core/build"
	"github.com/storagehub-network/sh-core/challenge"
	"github.com/storagehub-network/sh-core/forest"
	"github.com/storagehub-network/sh-core/persist"
)

func TestLocalTickSeedIsUnpredictableBetweenCalls(t *testing.T) {
	a := localTickSeed()
	b := localTickSeed()
	if a == b {
		t.Fatal("expected two consecutive tick seeds to differ")
	}
}

// TestNodeWiringSeedsAnEmptyForest exercises the same store-open,
// owner-index, and forest-commit sequence run() performs, without
// starting the QUIC listener, confirming a freshly opened node has a
// valid (empty) forest root ready to register with a scheduler.
func TestNodeWiringSeedsAnEmptyForest(t *testing.T) {
	dir := build.TempDir("shnode", t.Name())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	store, err := persist.Open(filepath.Join(dir, "test.db"), []string{nodeCF, ownerIndexCF, chunkStoreCF}, nil)
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ownerIndex := forest.NewPersistOwnerIndex(store, ownerIndexCF)
	nodeStore := persist.NewNodeCF(store, nodeCF)

	f := forest.New(ownerIndex)
	if err := f.Commit(nodeStore); err != nil {
		t.Fatalf("seeding forest root: %v", err)
	}

	scheduler := challenge.NewScheduler()
	scheduler.RegisterProvider("provider-1", 1000, f.Root(), 0)

	scheduler.Tick(1, localTickSeed())
	if _, ok := scheduler.SeedForTick(1); !ok {
		t.Fatal("expected tick 1's seed to be stored")
	}
}
