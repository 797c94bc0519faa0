package transport

import (
	"bytes"
	"testing"

	"github.com/storagehub-network/sh-core/chunkcodec"
	"github.com/storagehub-network/sh-core/crypto"
)

func TestUploadRequestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	fileKey := crypto.Hash{1, 2, 3}
	chunk := chunkcodec.Chunk{ID: 7, Bytes: []byte("hello")}

	if err := writeUploadRequest(&buf, fileKey, chunk); err != nil {
		t.Fatal(err)
	}

	var op [1]byte
	buf.Read(op[:])
	if op[0] != opUpload {
		t.Fatalf("expected opUpload, got %d", op[0])
	}

	var gotKey crypto.Hash
	buf.Read(gotKey[:])
	if gotKey != fileKey {
		t.Fatalf("file key mismatch: %v", gotKey)
	}

	var idBytes [8]byte
	buf.Read(idBytes[:])
	if chunkcodec.ChunkIDFromBytes(idBytes[:]) != chunk.ID {
		t.Fatal("chunk id mismatch")
	}
}

func TestChunkResponseRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(respOK)
	var lenBuf [4]byte
	data := []byte("world")
	lenBuf[3] = byte(len(data))
	buf.Write(lenBuf[:])
	buf.Write(data)

	got, err := readChunkResponse(&buf, 3)
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Bytes) != "world" || got.ID != 3 {
		t.Fatalf("unexpected chunk: %+v", got)
	}
}

func TestChunkResponseErrStatus(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(respErr)
	if _, err := readChunkResponse(&buf, 0); err == nil {
		t.Fatal("expected error for respErr status")
	}
}
