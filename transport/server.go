package transport

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"io"

	"github.com/quic-go/quic-go"

	"github.com/rs/zerolog/log"

	"github.com/storagehub-network/sh-core/chunkcodec"
	"github.com/storagehub-network/sh-core/crypto"
)

// ChunkStore is the local store a Server answers UploadChunk/
// DownloadChunk requests against.
type ChunkStore interface {
	Get(fileKey crypto.Hash, id chunkcodec.ChunkID) (chunkcodec.Chunk, bool, error)
	Put(fileKey crypto.Hash, chunk chunkcodec.Chunk) error
}

// Server accepts QUIC connections and serves ChunkTransport requests
// against a ChunkStore.
type Server struct {
	store     ChunkStore
	tlsConfig *tls.Config
}

// NewServer builds a Server backed by store.
func NewServer(store ChunkStore, tlsConfig *tls.Config) *Server {
	cfg := tlsConfig.Clone()
	if cfg == nil {
		cfg = &tls.Config{}
	}
	if len(cfg.NextProtos) == 0 {
		cfg.NextProtos = []string{"storagehub/1"}
	}
	return &Server{store: store, tlsConfig: cfg}
}

// Serve listens on addr and handles requests until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	listener, err := quic.ListenAddr(addr, s.tlsConfig, quicConfig)
	if err != nil {
		return err
	}
	defer listener.Close()

	for {
		conn, err := listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn().Err(err).Msg("transport: accept failed")
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn *quic.Conn) {
	defer conn.CloseWithError(0, "normal close")
	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			return
		}
		go s.handleStream(stream)
	}
}

func (s *Server) handleStream(stream *quic.Stream) {
	defer stream.Close()

	var op [1]byte
	if _, err := io.ReadFull(stream, op[:]); err != nil {
		return
	}

	switch op[0] {
	case opUpload:
		s.handleUpload(stream)
	case opDownload:
		s.handleDownload(stream)
	}
}

func (s *Server) handleUpload(stream *quic.Stream) {
	var fileKey crypto.Hash
	if _, err := io.ReadFull(stream, fileKey[:]); err != nil {
		return
	}
	var idBytes [8]byte
	if _, err := io.ReadFull(stream, idBytes[:]); err != nil {
		return
	}
	id := chunkcodec.ChunkIDFromBytes(idBytes[:])

	var lenBuf [4]byte
	if _, err := io.ReadFull(stream, lenBuf[:]); err != nil {
		return
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	data := make([]byte, n)
	if _, err := io.ReadFull(stream, data); err != nil {
		return
	}

	status := byte(respOK)
	if err := s.store.Put(fileKey, chunkcodec.Chunk{ID: id, Bytes: data}); err != nil {
		status = respErr
	}
	_, _ = stream.Write([]byte{status})
}

func (s *Server) handleDownload(stream *quic.Stream) {
	var fileKey crypto.Hash
	if _, err := io.ReadFull(stream, fileKey[:]); err != nil {
		return
	}
	var idBytes [8]byte
	if _, err := io.ReadFull(stream, idBytes[:]); err != nil {
		return
	}
	id := chunkcodec.ChunkIDFromBytes(idBytes[:])

	chunk, ok, err := s.store.Get(fileKey, id)
	if err != nil || !ok {
		_, _ = stream.Write([]byte{respErr})
		return
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(chunk.Bytes)))
	out := append([]byte{respOK}, lenBuf[:]...)
	out = append(out, chunk.Bytes...)
	_, _ = stream.Write(out)
}
