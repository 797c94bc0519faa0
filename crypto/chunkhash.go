package crypto

import "github.com/zeebo/blake3"

// ChunkHashSize is the width, in bytes, of a per-chunk content hash.
const ChunkHashSize = 32

// ChunkHash is the content hash of a single file chunk. It is distinct
// from Hash (blake2b-256): chunk hashing runs once per chunk of every
// uploaded file, so the chunk codec uses blake3 for throughput, while
// identity hashes (file_key, trie roots) stay on blake2b-256 to match the
// host chain's hashing convention.
type ChunkHash [ChunkHashSize]byte

// HashChunk returns the blake3-256 digest of a chunk's bytes.
func HashChunk(data []byte) ChunkHash {
	return ChunkHash(blake3.Sum256(data))
}
