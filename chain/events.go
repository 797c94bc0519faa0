package chain

import (
	"context"

	"github.com/storagehub-network/sh-core/crypto"
)

// EventKind tags which on-chain event an Event carries; callers type-switch
// or check Kind before reading the rest of the struct.
type EventKind int

const (
	NewStorageRequest EventKind = iota
	AcceptedBspVolunteer
	NewChallengeSeed
	MultipleNewChallengeSeeds
	ProcessSubmitProofRequest
	ProcessConfirmStoringRequest
	ProcessMspRespondStoringRequest
	ProcessStopStoringForInsolventUserRequest
	ProcessFileDeletionRequest
	SlashableProvider
	ProofAccepted
	LastChargeableInfoUpdated
	UserWithoutFunds
	SpStopStoringInsolventUser
	FinalisedBspConfirmStoppedStoring
	FinalisedMspStoppedStoringBucket
	FinalisedMspStopStoringBucketInsolventUser
	MoveBucketRequested
	MoveBucketAccepted
	MoveBucketRejected
	MoveBucketExpired
	FileDeletionRequest
	FinalisedProofSubmittedForPendingFileDeletionRequest
	StartMovedBucketDownload
	FinalisedBucketMovedAway
	NotifyPeriod
)

// Event is one observed chain event. Only the fields relevant to Kind
// are populated; the rest are zero.
type Event struct {
	Kind        EventKind
	BlockNumber uint32
	FileKey     crypto.Hash
	BucketID    BucketID
	Provider    string
	User        string
	Seed        crypto.Hash
	Seeds       []crypto.Hash
}

// EventSource streams chain events to the core's task graph. Events
// is expected to be read until ctx is cancelled or the channel closes.
type EventSource interface {
	Events(ctx context.Context) (<-chan Event, error)
}
