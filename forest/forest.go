// Package forest implements a provider's forest trie: the Merkle-Patricia
// trie, keyed by file_key, that a storage provider maintains over every
// file it has accepted to store. A proof against the forest root answers
// "is this file_key (still) stored here", which is what a challenge
// verifies; a proof against the corresponding file trie answers "is this
// chunk (still) part of that file", which is what a checkpoint challenge
// verifies after the forest proof locates the file.
package forest

import (
	"github.com/storagehub-network/sh-core/config"
	"github.com/storagehub-network/sh-core/crypto"
	"github.com/storagehub-network/sh-core/encoding"
	"github.com/storagehub-network/sh-core/sherrors"
	"github.com/storagehub-network/sh-core/trie"
)

// FileMetadata is the value stored under a file_key leaf in the forest.
type FileMetadata struct {
	Owner              string
	BucketID           crypto.Hash
	Location           string
	FileSize           uint64
	Fingerprint        crypto.Hash
	ReplicationTarget  config.ReplicationTarget
	MspID              string
	BspIDs             []string
}

// FileKey derives the content-addressed identifier of a file from the
// fields that must match between the owner's declaration and every
// provider's forest entry.
func FileKey(owner string, bucketID crypto.Hash, location string, fileSize uint64, fingerprint crypto.Hash) crypto.Hash {
	return crypto.HashAll(owner, bucketID, location, fileSize, fingerprint)
}

// OwnerIndex is the narrow persistence contract a Forest needs for its
// secondary owner -> file_key index, kept separate from trie.NodeStore
// because it indexes by owner, not by content hash.
type OwnerIndex interface {
	Add(owner string, fileKey crypto.Hash) error
	Remove(owner string, fileKey crypto.Hash) error
	List(owner string) ([]crypto.Hash, error)
}

// Forest is one provider's forest trie.
type Forest struct {
	t     *trie.Trie
	owner OwnerIndex
}

// New returns an empty forest. ownerIndex may be nil, in which case
// GetFilesByUser falls back to a full leaf scan.
func New(ownerIndex OwnerIndex) *Forest {
	return &Forest{t: trie.New(), owner: ownerIndex}
}

// Load reconstructs a Forest from a content-addressed store at the given
// root.
func Load(store trie.NodeStore, root crypto.Hash, ownerIndex OwnerIndex) (*Forest, error) {
	t, err := trie.Load(store, root)
	if err != nil {
		return nil, err
	}
	return &Forest{t: t, owner: ownerIndex}, nil
}

// Root returns the forest's current root hash.
func (f *Forest) Root() crypto.Hash { return f.t.Root() }

// InsertMetadata adds the metadata for fileKey. It is an error (Conflict)
// to insert a file_key already present in the forest; callers that mean
// to update an existing entry must Delete it first.
func (f *Forest) InsertMetadata(fileKey crypto.Hash, md FileMetadata) error {
	if _, ok := f.t.Get(fileKey[:]); ok {
		return sherrors.New(sherrors.Conflict, "file_key already present in forest")
	}
	b, err := encoding.Marshal(md)
	if err != nil {
		return sherrors.Wrap(sherrors.InputRejected, err, "forest: encoding file metadata")
	}
	f.t.Put(fileKey[:], b)
	if f.owner != nil {
		if err := f.owner.Add(md.Owner, fileKey); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes fileKey from the forest. It is an error (NotFound) to
// delete a key that was never inserted, which mirrors the on-chain
// "must have an existing inclusion proof to be removed" invariant at the
// trie level.
func (f *Forest) Delete(fileKey crypto.Hash) error {
	md, err := f.GetFileMetadata(fileKey)
	if err != nil {
		return err
	}
	if !f.t.Delete(fileKey[:]) {
		return sherrors.New(sherrors.NotFound, "file_key not present in forest")
	}
	if f.owner != nil {
		return f.owner.Remove(md.Owner, fileKey)
	}
	return nil
}

// GetFileMetadata returns the metadata stored at fileKey.
func (f *Forest) GetFileMetadata(fileKey crypto.Hash) (FileMetadata, error) {
	var md FileMetadata
	raw, ok := f.t.Get(fileKey[:])
	if !ok {
		return md, sherrors.New(sherrors.NotFound, "file_key not present in forest")
	}
	if err := encoding.Unmarshal(raw, &md); err != nil {
		return md, sherrors.Wrap(sherrors.StorageCorruption, err, "forest: decoding file metadata")
	}
	return md, nil
}

// GetFilesByUser returns every file_key this forest currently holds for
// owner. It uses the secondary owner index when one was supplied, else
// falls back to a full scan of the trie's leaves.
func (f *Forest) GetFilesByUser(owner string) ([]crypto.Hash, error) {
	if f.owner != nil {
		return f.owner.List(owner)
	}
	var out []crypto.Hash
	for _, kv := range f.t.Leaves() {
		var md FileMetadata
		if err := encoding.Unmarshal(kv.Value, &md); err != nil {
			return nil, sherrors.Wrap(sherrors.StorageCorruption, err, "forest: decoding file metadata during scan")
		}
		if md.Owner == owner {
			var h crypto.Hash
			copy(h[:], kv.Key)
			out = append(out, h)
		}
	}
	return out, nil
}

// GenerateProof builds a CompactProof answering, for every requested
// file_key, either inclusion (the file is stored) or non-inclusion (it
// is not, exposed via its two lexicographic neighbors).
func (f *Forest) GenerateProof(fileKeys []crypto.Hash) trie.CompactProof {
	keys := make([][]byte, len(fileKeys))
	for i, k := range fileKeys {
		keys[i] = k[:]
	}
	return f.t.GenerateProof(keys)
}

// Commit persists every node of the current trie to store.
func (f *Forest) Commit(store trie.NodeStore) error {
	return f.t.Commit(store)
}

// Len returns the number of files currently tracked.
func (f *Forest) Len() int { return f.t.Len() }
