// Package transport is the narrow P2P collaborator the storage core
// calls out to for moving chunk bytes between nodes. It defines the two
// verbs the core needs (UploadChunk, DownloadChunk) and ships one
// concrete implementation over QUIC streams; everything about peer
// discovery, handshake, and wire framing beyond those two verbs belongs
// to a P2P layer this module does not own.
package transport

import (
	"context"
	"crypto/tls"

	"github.com/storagehub-network/sh-core/chunkcodec"
	"github.com/storagehub-network/sh-core/crypto"
)

// ChunkTransport moves one chunk's bytes to or from a remote peer,
// addressed by fileKey and chunk id.
type ChunkTransport interface {
	UploadChunk(ctx context.Context, peerAddr string, fileKey crypto.Hash, chunk chunkcodec.Chunk) error
	DownloadChunk(ctx context.Context, peerAddr string, fileKey crypto.Hash, id chunkcodec.ChunkID) (chunkcodec.Chunk, error)
}

// TLSConfig is shared across Dial calls; callers set it up once (ALPN,
// certificates) and pass the same value to NewQUICTransport and
// NewServer, which each keep their own clone.
type TLSConfig = tls.Config
