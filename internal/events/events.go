// Package events implements the engine's append-only event log.
//
// Every state-changing call records its events through a Recorder; the
// engine flushes the recorder to the Store inside the same storage
// transaction as the state change, so a reverted call leaves no events.
package events

import (
	"github.com/imprintworks/imprintd/pkg/types"
)

// Kind identifies an event type in the log.
type Kind string

// Event kinds, one per externally observable state change.
const (
	KindTypeRegistered     Kind = "type_registered"
	KindTypeRegisteredSig  Kind = "type_registered_with_signature"
	KindTreasuryUpdated    Kind = "treasury_updated"
	KindFeeUpdated         Kind = "fee_updated"
	KindAdminMinted        Kind = "admin_minted"
	KindAdminMintLocked    Kind = "admin_mint_locked"
	KindPurchased          Kind = "purchased"
	KindBurned             Kind = "burned"
	KindPriceUpdated       Kind = "price_updated"
	KindContentHashUpdated Kind = "content_hash_updated"
	KindMetadataURIUpdated Kind = "metadata_uri_updated"
	KindActiveChanged      Kind = "active_changed"
	KindListed             Kind = "listed"
	KindListingCancelled   Kind = "listing_cancelled"
	KindBought             Kind = "bought"
	KindCollectionCreated  Kind = "collection_created"
	KindCollectionMinted   Kind = "collection_minted"
	KindCollectionStatus   Kind = "collection_status_changed"
	KindAllowlistUpdated   Kind = "allowlist_updated"
	KindClaimLimitChanged  Kind = "claim_limit_changed"
	KindCreatorAuthorized  Kind = "collection_creator_authorization"
	KindPaused             Kind = "paused"
	KindUnpaused           Kind = "unpaused"
	KindForeignRescued     Kind = "foreign_asset_rescued"
	KindBalanceChanged     Kind = "balance_changed"
)

// ChangeKind classifies a balance change for external indexers.
type ChangeKind string

const (
	ChangeMint        ChangeKind = "mint"
	ChangeTransferIn  ChangeKind = "transferIn"
	ChangeTransferOut ChangeKind = "transferOut"
	ChangeBurn        ChangeKind = "burn"
)

// Event is one entry in the append-only log. Payload holds the
// kind-specific fields, JSON-encoded at append time.
type Event struct {
	Seq     uint64 `json:"seq"`
	Kind    Kind   `json:"kind"`
	Time    uint64 `json:"time"` // Unix seconds at call time.
	Payload any    `json:"payload"`
}

// BalanceChange is the payload of KindBalanceChanged, the generic hook
// carried for external indexers. Changes on the market's own escrow
// account are suppressed before emission.
type BalanceChange struct {
	Account      types.Address `json:"account"`
	TokenID      types.TokenID `json:"tokenId"`
	NewBalance   uint64        `json:"newBalance"`
	Change       ChangeKind    `json:"change"`
	Counterparty types.Address `json:"counterparty"`
	Operator     types.Address `json:"operator"`
}

// Recorder buffers events for one engine call.
type Recorder struct {
	now     uint64
	pending []Event
}

// NewRecorder creates a recorder stamping events with the given call time.
func NewRecorder(now uint64) *Recorder {
	return &Recorder{now: now}
}

// Emit appends an event to the call's buffer. Sequence numbers are
// assigned when the buffer is flushed to the store.
func (r *Recorder) Emit(kind Kind, payload any) {
	r.pending = append(r.pending, Event{Kind: kind, Time: r.now, Payload: payload})
}

// Pending returns the buffered events.
func (r *Recorder) Pending() []Event {
	return r.pending
}
