// Package encoding converts Go values to and from the canonical byte
// representation used throughout StorageHub: file metadata, storage-request
// records, trie nodes, and transaction-manager state. It plays the role the
// original Rust codebase gives to SCALE (`parity-scale-codec`); this repo
// uses CBOR instead, which gives the same "deterministic, self-describing,
// cross-language" properties without depending on a Substrate-specific
// wire format.
package encoding

import (
	"github.com/fxamacker/cbor/v2"
)

var encMode cbor.EncMode

func init() {
	// Canonical encoding mode: deterministic map key ordering, so that two
	// encoders never produce different bytes for the same value. This
	// matters because encoded bytes feed directly into hashing (trie node
	// hashes, file_key) where non-determinism would break proof
	// reproducibility.
	opts := cbor.CanonicalEncOptions()
	m, err := opts.EncMode()
	if err != nil {
		panic("encoding: invalid cbor encoding options: " + err.Error())
	}
	encMode = m
}

// Marshal encodes v into its canonical byte representation.
func Marshal(v interface{}) ([]byte, error) {
	return encMode.Marshal(v)
}

// MustMarshal is Marshal but panics on error; useful for hashing values
// whose type is known to be encodable (no channels, funcs, etc.).
func MustMarshal(v interface{}) []byte {
	b, err := Marshal(v)
	if err != nil {
		panic("encoding: MustMarshal: " + err.Error())
	}
	return b
}

// Unmarshal decodes b into v, which must be a pointer.
func Unmarshal(b []byte, v interface{}) error {
	return cbor.Unmarshal(b, v)
}
