// Package chunkcodec implements fixed-size chunking, per-chunk hashing, and
// file-root derivation. It is a pure function layer with no failure modes
// beyond I/O of the underlying stream.
package chunkcodec

import (
	"io"

	"github.com/storagehub-network/sh-core/config"
	"github.com/storagehub-network/sh-core/crypto"
)

// ChunkID is the 64-bit, totally-ordered index of a chunk within a file.
type ChunkID uint64

// Chunk is one (possibly short, if last) fixed-width slice of a file.
type Chunk struct {
	ID    ChunkID
	Bytes []byte
}

// ChunksCount returns ceil(fileSize / chunkSize): the number of chunk ids
// 0..chunks_count that must be present exactly once for a file to be
// considered complete.
func ChunksCount(fileSize, chunkSize uint64) uint64 {
	return config.ChunksCount(fileSize, chunkSize)
}

// Split reads r to completion and emits one Chunk per ChunkID in order,
// each exactly chunkSize bytes except possibly the last. It stops at EOF.
func Split(r io.Reader, chunkSize uint64) ([]Chunk, error) {
	var chunks []Chunk
	buf := make([]byte, chunkSize)
	var id ChunkID
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			b := make([]byte, n)
			copy(b, buf[:n])
			chunks = append(chunks, Chunk{ID: id, Bytes: b})
			id++
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return chunks, nil
}

// HashChunk returns the per-chunk content hash (blake3, for throughput;
// see crypto.HashChunk). This hash is used for transfer-integrity checks;
// it is not the same as the file trie's node hashes, which hash the raw
// chunk bytes as trie leaf values under blake2b via the trie engine.
func HashChunk(c Chunk) crypto.ChunkHash {
	return crypto.HashChunk(c.Bytes)
}

// Bytes returns the 8-byte big-endian encoding of id, the key shape
// the file trie uses.
func (id ChunkID) Bytes() [8]byte {
	var b [8]byte
	for i := 7; i >= 0; i-- {
		b[i] = byte(id)
		id >>= 8
	}
	return b
}

// ChunkIDFromBytes decodes the 8-byte big-endian encoding back into a
// ChunkID.
func ChunkIDFromBytes(b []byte) ChunkID {
	var id ChunkID
	for _, x := range b {
		id = id<<8 | ChunkID(x)
	}
	return id
}
