package trie

import (
	"fmt"

	"github.com/storagehub-network/sh-core/crypto"
	"github.com/storagehub-network/sh-core/encoding"
)

// NodeStore is the narrow contract the trie engine needs from the backing
// KV store: nodes keyed by their own hash. persist.NodeCF implements
// this directly.
type NodeStore interface {
	Get(key []byte) ([]byte, bool, error)
	Put(key []byte, value []byte) error
}

// Commit walks every node reachable from the trie's current root and
// writes any not already present in store, keyed by the node's own hash.
// Because nodes are immutable and content-addressed, a node already in
// store never needs to be rewritten — this is the same property that lets
// a root hash serve as a stable snapshot identifier while other writers
// keep working against older snapshots.
func (t *Trie) Commit(store NodeStore) error {
	seen := map[crypto.Hash]bool{}
	var walk func(n *Node) error
	walk = func(n *Node) error {
		if n == nil {
			return nil
		}
		h := n.Hash()
		if seen[h] {
			return nil
		}
		seen[h] = true
		if !n.IsLeaf {
			if err := walk(n.Left); err != nil {
				return err
			}
			if err := walk(n.Right); err != nil {
				return err
			}
		}
		if _, ok, err := store.Get(h[:]); err != nil {
			return err
		} else if ok {
			return nil
		}
		b, err := encodeNode(n)
		if err != nil {
			return err
		}
		return store.Put(h[:], b)
	}
	return walk(t.root)
}

// Load reconstructs a Trie in full from store, starting at rootHash. A
// zero rootHash yields an empty trie.
func Load(store NodeStore, rootHash crypto.Hash) (*Trie, error) {
	if rootHash.IsZero() {
		return New(), nil
	}
	root, err := loadNode(store, rootHash)
	if err != nil {
		return nil, err
	}
	return &Trie{root: root}, nil
}

func loadNode(store NodeStore, h crypto.Hash) (*Node, error) {
	if h.IsZero() {
		return nil, nil
	}
	raw, ok, err := store.Get(h[:])
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("trie: node %s not found in store", h)
	}
	var pn persistNode
	if err := encoding.Unmarshal(raw, &pn); err != nil {
		return nil, err
	}
	if pn.IsLeaf {
		return &Node{IsLeaf: true, Key: pn.Key, Value: pn.Value}, nil
	}
	left, err := loadNode(store, pn.Left)
	if err != nil {
		return nil, err
	}
	right, err := loadNode(store, pn.Right)
	if err != nil {
		return nil, err
	}
	return &Node{CritBit: pn.CritBit, Left: left, Right: right}, nil
}
