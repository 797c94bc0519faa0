package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/binary"
	"io"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/storagehub-network/sh-core/chunkcodec"
	"github.com/storagehub-network/sh-core/config"
	"github.com/storagehub-network/sh-core/crypto"
	"github.com/storagehub-network/sh-core/sherrors"
)

const (
	opUpload   byte = 1
	opDownload byte = 2

	respOK  byte = 0
	respErr byte = 1
)

var quicConfig = &quic.Config{
	MaxIdleTimeout:  5 * time.Minute,
	KeepAlivePeriod: 30 * time.Second,
}

// QUICTransport implements ChunkTransport by opening a fresh QUIC stream
// per call. A fresh connection per call costs a round trip but keeps the
// transport stateless, which matters more here than raw throughput: the
// storage core already batches chunk transfers above this layer.
type QUICTransport struct {
	tlsConfig *tls.Config
}

// NewQUICTransport builds a transport dialing peers with tlsConfig. If
// tlsConfig has no ALPN protocols set, "storagehub/1" is used.
func NewQUICTransport(tlsConfig *tls.Config) *QUICTransport {
	cfg := tlsConfig.Clone()
	if cfg == nil {
		cfg = &tls.Config{}
	}
	if len(cfg.NextProtos) == 0 {
		cfg.NextProtos = []string{"storagehub/1"}
	}
	return &QUICTransport{tlsConfig: cfg}
}

func (t *QUICTransport) dialStream(ctx context.Context, peerAddr string) (*quic.Conn, *quic.Stream, error) {
	conn, err := quic.DialAddr(ctx, peerAddr, t.tlsConfig, quicConfig)
	if err != nil {
		return nil, nil, sherrors.Wrap(sherrors.TransportFailed, err, "dialing peer")
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		conn.CloseWithError(0, "failed to open stream")
		return nil, nil, sherrors.Wrap(sherrors.TransportFailed, err, "opening stream")
	}
	return conn, stream, nil
}

// UploadChunk sends one chunk's bytes to peerAddr and waits for an ack.
func (t *QUICTransport) UploadChunk(ctx context.Context, peerAddr string, fileKey crypto.Hash, chunk chunkcodec.Chunk) error {
	conn, stream, err := t.dialStream(ctx, peerAddr)
	if err != nil {
		return err
	}
	defer conn.CloseWithError(0, "normal close")
	defer stream.Close()

	if err := writeUploadRequest(stream, fileKey, chunk); err != nil {
		return sherrors.Wrap(sherrors.TransportFailed, err, "writing upload request")
	}
	return readAck(stream)
}

// DownloadChunk requests chunk id of fileKey from peerAddr and returns
// its bytes.
func (t *QUICTransport) DownloadChunk(ctx context.Context, peerAddr string, fileKey crypto.Hash, id chunkcodec.ChunkID) (chunkcodec.Chunk, error) {
	conn, stream, err := t.dialStream(ctx, peerAddr)
	if err != nil {
		return chunkcodec.Chunk{}, err
	}
	defer conn.CloseWithError(0, "normal close")
	defer stream.Close()

	if err := writeDownloadRequest(stream, fileKey, id); err != nil {
		return chunkcodec.Chunk{}, sherrors.Wrap(sherrors.TransportFailed, err, "writing download request")
	}
	return readChunkResponse(stream, id)
}

func writeUploadRequest(w io.Writer, fileKey crypto.Hash, chunk chunkcodec.Chunk) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write([]byte{opUpload}); err != nil {
		return err
	}
	if _, err := bw.Write(fileKey[:]); err != nil {
		return err
	}
	idBytes := chunk.ID.Bytes()
	if _, err := bw.Write(idBytes[:]); err != nil {
		return err
	}
	if len(chunk.Bytes) > int(config.BatchChunkFileTransferMaxSize)*int(config.FileChunkSize) {
		return sherrors.New(sherrors.CapacityExceeded, "chunk exceeds maximum transfer size")
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(chunk.Bytes)))
	if _, err := bw.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := bw.Write(chunk.Bytes); err != nil {
		return err
	}
	return bw.Flush()
}

func writeDownloadRequest(w io.Writer, fileKey crypto.Hash, id chunkcodec.ChunkID) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write([]byte{opDownload}); err != nil {
		return err
	}
	if _, err := bw.Write(fileKey[:]); err != nil {
		return err
	}
	idBytes := id.Bytes()
	if _, err := bw.Write(idBytes[:]); err != nil {
		return err
	}
	return bw.Flush()
}

func readAck(r io.Reader) error {
	var status [1]byte
	if _, err := io.ReadFull(r, status[:]); err != nil {
		return sherrors.Wrap(sherrors.TransportFailed, err, "reading ack")
	}
	if status[0] != respOK {
		return sherrors.New(sherrors.TransportFailed, "peer rejected upload")
	}
	return nil
}

func readChunkResponse(r io.Reader, id chunkcodec.ChunkID) (chunkcodec.Chunk, error) {
	var status [1]byte
	if _, err := io.ReadFull(r, status[:]); err != nil {
		return chunkcodec.Chunk{}, sherrors.Wrap(sherrors.TransportFailed, err, "reading response status")
	}
	if status[0] != respOK {
		return chunkcodec.Chunk{}, sherrors.New(sherrors.NotFound, "peer does not have the requested chunk")
	}
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return chunkcodec.Chunk{}, sherrors.Wrap(sherrors.TransportFailed, err, "reading chunk length")
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return chunkcodec.Chunk{}, sherrors.Wrap(sherrors.TransportFailed, err, "reading chunk bytes")
	}
	return chunkcodec.Chunk{ID: id, Bytes: data}, nil
}
