package persist

import (
	"encoding/binary"
	"fmt"

	"github.com/storagehub-network/sh-core/encoding"
)

// Codec converts a typed value to and from the bytes a column family
// actually stores, the Go-generic analogue of the host runtime's
// DbCodec<T> trait.
type Codec[T any] interface {
	Encode(v T) []byte
	Decode(b []byte) (T, error)
}

// CBORCodec encodes any value through the module's canonical CBOR
// encoding, for column families whose values are structs.
type CBORCodec[T any] struct{}

func (CBORCodec[T]) Encode(v T) []byte {
	return encoding.MustMarshal(v)
}

func (CBORCodec[T]) Decode(b []byte) (T, error) {
	var v T
	if err := encoding.Unmarshal(b, &v); err != nil {
		return v, err
	}
	return v, nil
}

// BytesCodec is the identity codec, for column families keyed or valued
// by raw bytes (content-addressed trie nodes, opaque blobs).
type BytesCodec struct{}

func (BytesCodec) Encode(v []byte) []byte { return v }

func (BytesCodec) Decode(b []byte) ([]byte, error) {
	return append([]byte(nil), b...), nil
}

// StringCodec stores a string as its UTF-8 bytes.
type StringCodec struct{}

func (StringCodec) Encode(v string) []byte { return []byte(v) }

func (StringCodec) Decode(b []byte) (string, error) { return string(b), nil }

// Uint64Codec encodes a uint64 as 8 big-endian bytes, so that a bucket's
// natural byte-lexicographic key order doubles as numeric order — used
// for chunk ids, deque sequence numbers, and nonces.
type Uint64Codec struct{}

func (Uint64Codec) Encode(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func (Uint64Codec) Decode(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("persist: uint64 key has wrong length %d", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}
