// Package crypto supplies the hashing primitives shared by every package:
// blake2b-256 for 256-bit identity hashes (file_key, trie node hashes,
// forest/file roots) and blake3 for high-throughput per-chunk content
// hashing. Hashing is the one algorithm choice StorageHub fixes
// network-wide; a node that hashed differently would compute different
// roots and could never agree with the rest of the network, so unlike
// most of this codebase, these functions are not meant to be swapped out.
package crypto

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"hash"

	"golang.org/x/crypto/blake2b"

	"github.com/storagehub-network/sh-core/encoding"
)

const (
	// HashSize is the width, in bytes, of every identity hash in the
	// system: file_key, trie roots, trie node hashes.
	HashSize = 32
)

type (
	// Hash is a 256-bit blake2b digest.
	Hash [HashSize]byte

	// HashSlice lets a set of hashes be sorted lexicographically, the
	// ordering the forest trie's non-inclusion proofs rely on.
	HashSlice []Hash
)

var ErrHashWrongLen = errors.New("crypto: encoded value has the wrong length to be a hash")

// NewHash returns a fresh blake2b-256 hasher.
func NewHash() hash.Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 only errors on a bad key, and we never pass one.
		panic("crypto: blake2b.New256: " + err.Error())
	}
	return h
}

// HashBytes returns the blake2b-256 digest of data.
func HashBytes(data []byte) Hash {
	return Hash(blake2b.Sum256(data))
}

// HashAll concatenates the CBOR encoding of every object and hashes the
// result — used to derive composite identity hashes such as
// file_key = H(owner ‖ bucket_id ‖ location ‖ file_size ‖ fingerprint).
func HashAll(objs ...interface{}) Hash {
	var b []byte
	for _, obj := range objs {
		b = append(b, encoding.MustMarshal(obj)...)
	}
	return HashBytes(b)
}

// HashObject encodes obj canonically and hashes the result.
func HashObject(obj interface{}) Hash {
	return HashBytes(encoding.MustMarshal(obj))
}

// Less reports whether h sorts before other, the lexicographic order used
// throughout the forest trie.
func (h Hash) Less(other Hash) bool {
	return bytes.Compare(h[:], other[:]) < 0
}

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

func (hs HashSlice) Len() int           { return len(hs) }
func (hs HashSlice) Less(i, j int) bool { return hs[i].Less(hs[j]) }
func (hs HashSlice) Swap(i, j int)      { hs[i], hs[j] = hs[j], hs[i] }

// MarshalJSON marshals a hash as a hex string.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// String prints the hash in hex.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// LoadString decodes a hex string into h, overwriting its contents.
func (h *Hash) LoadString(s string) error {
	if len(s) != HashSize*2 {
		return ErrHashWrongLen
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	copy(h[:], b)
	return nil
}

// UnmarshalJSON decodes the hex-string JSON representation of a hash.
func (h *Hash) UnmarshalJSON(b []byte) error {
	if len(b) != HashSize*2+2 {
		return ErrHashWrongLen
	}
	hBytes, err := hex.DecodeString(string(b[1 : len(b)-1]))
	if err != nil {
		return errors.New("crypto: could not unmarshal Hash: " + err.Error())
	}
	copy(h[:], hBytes)
	return nil
}
