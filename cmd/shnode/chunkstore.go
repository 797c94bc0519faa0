package main

import (
	"fmt"

	"github.com/storagehub-network/sh-core/chunkcodec"
	"github.com/storagehub-network/sh-core/crypto"
	"github.com/storagehub-network/sh-core/persist"
)

// persistChunkStore is the node's durable chunk-bytes store: one flat
// column family keyed by file_key:chunk_id, backing transport.ChunkStore
// for the QUIC server's upload/download handlers.
type persistChunkStore struct {
	store *persist.Store
	cf    *persist.ColumnFamily[string, []byte]
}

func newPersistChunkStore(store *persist.Store, name string) *persistChunkStore {
	return &persistChunkStore{
		store: store,
		cf:    persist.NewColumnFamily[string, []byte](name, persist.StringCodec{}, persist.BytesCodec{}),
	}
}

func (c *persistChunkStore) Name() string { return c.cf.Name }

func chunkStoreKey(fileKey crypto.Hash, id chunkcodec.ChunkID) string {
	return fmt.Sprintf("%s:%d", fileKey, id)
}

// Get implements transport.ChunkStore.
func (c *persistChunkStore) Get(fileKey crypto.Hash, id chunkcodec.ChunkID) (chunkcodec.Chunk, bool, error) {
	var chunk chunkcodec.Chunk
	var ok bool
	err := c.store.View(func(b *persist.Batch) error {
		data, found, err := persist.Get(b, c.cf, chunkStoreKey(fileKey, id))
		if err != nil || !found {
			ok = found
			return err
		}
		chunk = chunkcodec.Chunk{ID: id, Bytes: data}
		ok = true
		return nil
	})
	return chunk, ok, err
}

// Put implements transport.ChunkStore.
func (c *persistChunkStore) Put(fileKey crypto.Hash, chunk chunkcodec.Chunk) error {
	return c.store.Update(func(b *persist.Batch) error {
		return persist.Put(b, c.cf, chunkStoreKey(fileKey, chunk.ID), chunk.Bytes)
	})
}
