package storagerequest

import (
	"github.com/storagehub-network/sh-core/chunkcodec"
	"github.com/storagehub-network/sh-core/config"
	"github.com/storagehub-network/sh-core/fec"
	"github.com/storagehub-network/sh-core/filetrie"
	"github.com/storagehub-network/sh-core/sherrors"
	"github.com/storagehub-network/sh-core/trie"
)

// Batch is one chunk-transfer batch: the chunks themselves plus a single
// file-trie proof covering exactly those chunk ids. A chunk dropped or
// corrupted in transit arrives with a nil Bytes; ParityShards, when
// present, lets ApplyBatch reconstruct it before proving and writing.
type Batch struct {
	Chunks       []chunkcodec.Chunk
	ParityShards [][]byte
	Proof        trie.CompactProof
}

// Reporter receives failure signals the chunk-ingest pipeline can't act
// on itself, for a caller to feed into peer reputation tracking.
type Reporter interface {
	ReportFailure(peer string)
}

// ChunkIngest drives chunks from transfer batches into a file trie,
// enforcing the batch-proof and completion invariants the storage
// request protocol requires before a volunteer can confirm storing.
type ChunkIngest struct {
	ft       *filetrie.FileTrie
	reporter Reporter
}

// NewChunkIngest wraps ft. reporter may be nil.
func NewChunkIngest(ft *filetrie.FileTrie, reporter Reporter) *ChunkIngest {
	return &ChunkIngest{ft: ft, reporter: reporter}
}

// ApplyBatch reconstructs any dropped/corrupted chunks from
// batch.ParityShards, verifies proof against the batch's chunk ids and
// the trie's fingerprint, then writes every chunk. Duplicate chunks are
// logged and skipped (the ingest pipeline's own idempotence); any other
// write error is fatal and the caller should unvolunteer. len(batch.Chunks)
// over BatchChunkFileTransferMaxSize is rejected outright.
func (c *ChunkIngest) ApplyBatch(peer string, batch Batch) error {
	if len(batch.Chunks) > config.BatchChunkFileTransferMaxSize {
		return sherrors.New(sherrors.InputRejected, "batch exceeds maximum transfer size")
	}

	if len(batch.ParityShards) > 0 {
		if err := reconstructBatch(batch); err != nil {
			if c.reporter != nil {
				c.reporter.ReportFailure(peer)
			}
			return err
		}
	}

	ids := make([]chunkcodec.ChunkID, len(batch.Chunks))
	for i, ch := range batch.Chunks {
		ids[i] = ch.ID
	}
	if !filetrie.VerifyProof(c.ft.Fingerprint(), ids, batch.Proof) {
		if c.reporter != nil {
			c.reporter.ReportFailure(peer)
		}
		return sherrors.New(sherrors.ProofVerificationFailed, "batch proof does not verify against the file trie root")
	}

	for _, ch := range batch.Chunks {
		if err := c.ft.WriteChunk(ch.ID, ch.Bytes); err != nil {
			if sherrors.Is(err, sherrors.Conflict) {
				continue
			}
			return err
		}
	}
	return nil
}

// reconstructBatch fills in any nil Chunk.Bytes from batch.ParityShards
// via Reed-Solomon reconstruction. It mutates batch.Chunks in place
// (the caller's backing array, since Batch is passed by value but its
// slices are not copied). Reconstruction only applies when every
// present chunk shares a common byte length, since Reed-Solomon shards
// must be uniformly sized; a batch mixing sizes (e.g. one carrying a
// file's final, short chunk) that is also missing a chunk is rejected
// with InputRejected.
func reconstructBatch(batch Batch) error {
	missing := 0
	shardSize := -1
	mixedSizes := false
	for _, ch := range batch.Chunks {
		if ch.Bytes == nil {
			missing++
			continue
		}
		if shardSize == -1 {
			shardSize = len(ch.Bytes)
		} else if len(ch.Bytes) != shardSize {
			mixedSizes = true
		}
	}
	if missing == 0 {
		return nil
	}
	if mixedSizes {
		return sherrors.New(sherrors.InputRejected, "cannot reconstruct dropped chunks in a batch whose chunks differ in size")
	}
	if missing > len(batch.ParityShards) {
		return sherrors.New(sherrors.CapacityExceeded, "too many dropped chunks to reconstruct from the supplied parity shards")
	}

	k := len(batch.Chunks)
	r := len(batch.ParityShards)
	decoder, err := fec.NewDecoder(k, r)
	if err != nil {
		return err
	}
	shards := make([][]byte, k+r)
	copy(shards[:k], chunkBytes(batch.Chunks))
	copy(shards[k:], batch.ParityShards)
	if err := decoder.Reconstruct(shards); err != nil {
		return err
	}
	for i := range batch.Chunks {
		if batch.Chunks[i].Bytes == nil {
			batch.Chunks[i].Bytes = shards[i]
		}
	}
	return nil
}

func chunkBytes(chunks []chunkcodec.Chunk) [][]byte {
	out := make([][]byte, len(chunks))
	for i, ch := range chunks {
		out[i] = ch.Bytes
	}
	return out
}

// IsComplete reports whether the underlying file trie has every chunk
// and its root matches the declared fingerprint.
func (c *ChunkIngest) IsComplete() bool { return c.ft.IsComplete() }
