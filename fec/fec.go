// Package fec adds forward error correction to a batch of chunks in
// transit: parity shards let a downloader reconstruct a batch even if a
// bounded number of its chunks were dropped or corrupted, independent of
// whether the trie underneath considers the file complete.
package fec

import (
	"github.com/klauspost/reedsolomon"

	"github.com/storagehub-network/sh-core/sherrors"
)

// Encoder produces parity shards for a fixed (dataShards, parityShards)
// split.
type Encoder struct {
	k, r int
	rs   reedsolomon.Encoder
}

// NewEncoder builds an Encoder for k data shards and r parity shards,
// each in [1, 256].
func NewEncoder(k, r int) (*Encoder, error) {
	if k < 1 || k > 256 {
		return nil, sherrors.New(sherrors.InputRejected, "data shard count must be between 1 and 256")
	}
	if r < 1 || r > 256 {
		return nil, sherrors.New(sherrors.InputRejected, "parity shard count must be between 1 and 256")
	}
	rs, err := reedsolomon.New(k, r)
	if err != nil {
		return nil, sherrors.Wrap(sherrors.InputRejected, err, "constructing reed-solomon encoder")
	}
	return &Encoder{k: k, r: r, rs: rs}, nil
}

// Encode returns r parity shards derived from exactly k equally-sized
// data shards.
func (e *Encoder) Encode(dataShards [][]byte) ([][]byte, error) {
	if len(dataShards) != e.k {
		return nil, sherrors.New(sherrors.InputRejected, "unexpected data shard count")
	}
	var shardSize int
	if len(dataShards) > 0 {
		shardSize = len(dataShards[0])
		for _, s := range dataShards {
			if len(s) != shardSize {
				return nil, sherrors.New(sherrors.InputRejected, "data shards must all be the same size")
			}
		}
	}

	all := make([][]byte, e.k+e.r)
	copy(all, dataShards)
	for i := e.k; i < len(all); i++ {
		all[i] = make([]byte, shardSize)
	}

	if err := e.rs.Encode(all); err != nil {
		return nil, sherrors.Wrap(sherrors.InputRejected, err, "reed-solomon encode failed")
	}
	return all[e.k:], nil
}

// Parameters returns the (k, r) split the encoder was built with.
func (e *Encoder) Parameters() (k, r int) { return e.k, e.r }

// Decoder reconstructs missing shards of a (k, r)-encoded batch.
type Decoder struct {
	k, r int
	rs   reedsolomon.Encoder
}

// NewDecoder builds a Decoder matching the (k, r) an Encoder produced.
func NewDecoder(k, r int) (*Decoder, error) {
	if k < 1 || k > 256 {
		return nil, sherrors.New(sherrors.InputRejected, "data shard count must be between 1 and 256")
	}
	if r < 1 || r > 256 {
		return nil, sherrors.New(sherrors.InputRejected, "parity shard count must be between 1 and 256")
	}
	rs, err := reedsolomon.New(k, r)
	if err != nil {
		return nil, sherrors.Wrap(sherrors.InputRejected, err, "constructing reed-solomon decoder")
	}
	return &Decoder{k: k, r: r, rs: rs}, nil
}

// Reconstruct fills in missing (nil) shards in place. shards must have
// exactly k+r entries; up to r of them may be nil.
func (d *Decoder) Reconstruct(shards [][]byte) error {
	if len(shards) != d.k+d.r {
		return sherrors.New(sherrors.InputRejected, "unexpected shard count")
	}
	missing := 0
	for _, s := range shards {
		if s == nil {
			missing++
		}
	}
	if missing > d.r {
		return sherrors.New(sherrors.CapacityExceeded, "too many missing shards to reconstruct")
	}
	if missing == 0 {
		return nil
	}
	if err := d.rs.Reconstruct(shards); err != nil {
		return sherrors.Wrap(sherrors.StorageCorruption, err, "reed-solomon reconstruction failed")
	}
	return nil
}

// Parameters returns the (k, r) split the decoder was built with.
func (d *Decoder) Parameters() (k, r int) { return d.k, d.r }
