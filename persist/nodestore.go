package persist

// NodeCF adapts a raw-bytes column family into the trie package's
// NodeStore contract, letting a file trie or forest trie commit and load
// directly against a Store-backed bucket keyed by node hash.
type NodeCF struct {
	store *Store
	cf    *ColumnFamily[[]byte, []byte]
}

// NewNodeCF declares a column family dedicated to content-addressed trie
// nodes. name must also be passed to Open.
func NewNodeCF(store *Store, name string) *NodeCF {
	return &NodeCF{store: store, cf: NewColumnFamily[[]byte, []byte](name, BytesCodec{}, BytesCodec{})}
}

func (n *NodeCF) Name() string { return n.cf.Name }

// Get implements trie.NodeStore.
func (n *NodeCF) Get(key []byte) ([]byte, bool, error) {
	var value []byte
	var ok bool
	err := n.store.View(func(b *Batch) error {
		v, found, err := Get(b, n.cf, key)
		value, ok = v, found
		return err
	})
	return value, ok, err
}

// Put implements trie.NodeStore.
func (n *NodeCF) Put(key []byte, value []byte) error {
	return n.store.Update(func(b *Batch) error {
		return Put(b, n.cf, key, value)
	})
}
