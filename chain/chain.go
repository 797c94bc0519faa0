// Package chain is the narrow contract between the storage core and the
// host chain: the extrinsic calls the core submits and the events it
// observes. It has no implementation of its own — consensus, RPC
// transport, and block production are an existing chain client's job;
// this package only names the shape the core depends on.
package chain

import (
	"context"

	"github.com/storagehub-network/sh-core/crypto"
	"github.com/storagehub-network/sh-core/trie"
)

// BucketID identifies a user's bucket.
type BucketID = crypto.Hash

// MspRespondStorageRequest is one entry of a
// msp_respond_storage_requests_multiple_buckets batch.
type MspRespondStorageRequest struct {
	FileKey  crypto.Hash
	BucketID BucketID
	Accept   bool
}

// Client is every on-chain call the core invokes. Each call returns the
// submitted transaction's nonce, which the caller tracks via txmanager.
type Client interface {
	BspVolunteer(ctx context.Context, fileKey crypto.Hash) (nonce uint32, err error)

	BspConfirmStoring(ctx context.Context, fileKey crypto.Hash, newRoot crypto.Hash,
		nonInclusionForestProof trie.CompactProof, addedFileKeyProof trie.CompactProof) (nonce uint32, err error)

	BspRequestStopStoring(ctx context.Context, fileKey crypto.Hash, bucketID BucketID, location string,
		owner string, fingerprint crypto.Hash, size uint64, canServe bool,
		inclusionForestProof trie.CompactProof) (nonce uint32, err error)

	BspConfirmStopStoring(ctx context.Context, fileKey crypto.Hash,
		inclusionForestProof trie.CompactProof) (nonce uint32, err error)

	// MspRespondStorageRequestsMultipleBuckets sends at most
	// config.MaxMspRespondFileKeys responses per bucket; callers batch
	// accordingly before calling.
	MspRespondStorageRequestsMultipleBuckets(ctx context.Context, responses []MspRespondStorageRequest) (nonce uint32, err error)

	MspStopStoringBucketForInsolventUser(ctx context.Context, bucketID BucketID) (nonce uint32, err error)

	StopStoringForInsolventUser(ctx context.Context, fileKey crypto.Hash, bucketID BucketID, location string,
		owner string, fingerprint crypto.Hash, size uint64,
		inclusionForestProof trie.CompactProof) (nonce uint32, err error)

	ChargePaymentStreams(ctx context.Context, user string) (nonce uint32, err error)
	ChargeMultipleUsersPaymentStreams(ctx context.Context, users []string) (nonce uint32, err error)

	ChangeCapacity(ctx context.Context, newCapacity uint64) (nonce uint32, err error)

	SubmitProof(ctx context.Context, proof trie.CompactProof, provider *string) (nonce uint32, err error)

	Challenge(ctx context.Context, fileKey crypto.Hash) (nonce uint32, err error)
}
