package forest

import (
	"strings"

	"github.com/storagehub-network/sh-core/crypto"
	"github.com/storagehub-network/sh-core/persist"
)

// PersistOwnerIndex is the persist-backed OwnerIndex: one column family
// keyed by "owner:hex(file_key)", scanned by owner prefix to answer
// GetFilesByUser without touching the forest trie itself.
type PersistOwnerIndex struct {
	store *persist.Store
	cf    *persist.ColumnFamily[string, struct{}]
}

// NewPersistOwnerIndex declares the owner-index column family. name must
// also be passed to persist.Open.
func NewPersistOwnerIndex(store *persist.Store, name string) *PersistOwnerIndex {
	return &PersistOwnerIndex{
		store: store,
		cf:    persist.NewColumnFamily[string, struct{}](name, persist.StringCodec{}, unitCodec{}),
	}
}

func (p *PersistOwnerIndex) Name() string { return p.cf.Name }

func compositeKey(owner string, fileKey crypto.Hash) string {
	return owner + ":" + fileKey.String()
}

func (p *PersistOwnerIndex) Add(owner string, fileKey crypto.Hash) error {
	return p.store.Update(func(b *persist.Batch) error {
		return persist.Put(b, p.cf, compositeKey(owner, fileKey), struct{}{})
	})
}

func (p *PersistOwnerIndex) Remove(owner string, fileKey crypto.Hash) error {
	return p.store.Update(func(b *persist.Batch) error {
		return persist.Delete(b, p.cf, compositeKey(owner, fileKey))
	})
}

func (p *PersistOwnerIndex) List(owner string) ([]crypto.Hash, error) {
	prefix := owner + ":"
	var out []crypto.Hash
	err := p.store.View(func(b *persist.Batch) error {
		return persist.ForEachPrefix(b, p.cf, []byte(prefix), func(k string, _ struct{}) error {
			var h crypto.Hash
			if err := h.LoadString(strings.TrimPrefix(k, prefix)); err != nil {
				return err
			}
			out = append(out, h)
			return nil
		})
	})
	return out, err
}

type unitCodec struct{}

func (unitCodec) Encode(struct{}) []byte { return nil }

func (unitCodec) Decode([]byte) (struct{}, error) { return struct{}{}, nil }
