package engine

import (
	"github.com/imprintworks/imprintd/pkg/types"
)

// Event payloads for engine-level operations. Component-level payloads
// (listings, balance changes) live next to their emitters.

// TypeRegisteredEvent records a new token type, admin- or signature-registered.
type TypeRegisteredEvent struct {
	TokenID      types.TokenID `json:"tokenId"`
	Creator      types.Address `json:"creator"`
	MaxSupply    uint64        `json:"maxSupply"`
	PromoReserve uint64        `json:"promoReserve"`
	PrimaryPrice uint64        `json:"primaryPrice"`
	RoyaltyBps   uint32        `json:"royaltyBps"`
	ContentHash  types.Hash    `json:"contentHash"`
	MetadataURI  string        `json:"metadataURI"`
}

// TreasuryUpdatedEvent records a treasury rotation.
type TreasuryUpdatedEvent struct {
	Old types.Address `json:"old"`
	New types.Address `json:"new"`
}

// FeeUpdatedEvent records a fee-schedule change. Scope is "primary" or
// "secondary".
type FeeUpdatedEvent struct {
	Scope  string `json:"scope"`
	OldBps uint32 `json:"oldBps"`
	NewBps uint32 `json:"newBps"`
}

// PurchasedEvent records a primary-market purchase.
type PurchasedEvent struct {
	TokenID        types.TokenID `json:"tokenId"`
	Buyer          types.Address `json:"buyer"`
	Amount         uint64        `json:"amount"`
	TotalPrice     uint64        `json:"totalPrice"`
	PlatformFee    uint64        `json:"platformFee"`
	CreatorRevenue uint64        `json:"creatorRevenue"`
}

// AdminMintedEvent records a promo-reserve mint.
type AdminMintedEvent struct {
	TokenID   types.TokenID `json:"tokenId"`
	Recipient types.Address `json:"recipient"`
	Amount    uint64        `json:"amount"`
}

// AdminMintLockedEvent records the one-way promo lock on a type.
type AdminMintLockedEvent struct {
	TokenID types.TokenID `json:"tokenId"`
}

// BurnedEvent records a holder burn.
type BurnedEvent struct {
	TokenID types.TokenID `json:"tokenId"`
	Holder  types.Address `json:"holder"`
	Amount  uint64        `json:"amount"`
}

// PriceUpdatedEvent records a primary-price change on a type.
type PriceUpdatedEvent struct {
	TokenID  types.TokenID `json:"tokenId"`
	OldPrice uint64        `json:"oldPrice"`
	NewPrice uint64        `json:"newPrice"`
}

// ContentHashUpdatedEvent records a content-hash change on a type.
type ContentHashUpdatedEvent struct {
	TokenID types.TokenID `json:"tokenId"`
	OldHash types.Hash    `json:"oldHash"`
	NewHash types.Hash    `json:"newHash"`
}

// MetadataURIUpdatedEvent records a metadata-URI change on a type.
type MetadataURIUpdatedEvent struct {
	TokenID types.TokenID `json:"tokenId"`
	OldURI  string        `json:"oldURI"`
	NewURI  string        `json:"newURI"`
}

// ActiveChangedEvent records a type lifecycle flip.
type ActiveChangedEvent struct {
	TokenID types.TokenID `json:"tokenId"`
	Active  bool          `json:"active"`
}

// CollectionCreatedEvent records a new blind-mint collection.
type CollectionCreatedEvent struct {
	CollectionID types.CollectionID `json:"collectionId"`
	Name         string             `json:"name"`
	Creator      types.Address      `json:"creator"`
	MintPrice    uint64             `json:"mintPrice"`
	TokenIDs     []types.TokenID    `json:"tokenIds"`
	Weights      []uint64           `json:"rarityWeights"`
}

// MintCount is one (token, units) pair in a blind-mint result.
type MintCount struct {
	TokenID types.TokenID `json:"tokenId"`
	Amount  uint64        `json:"amount"`
}

// CollectionMintedEvent records one blind-mint call, its draws aggregated
// per token id.
type CollectionMintedEvent struct {
	CollectionID types.CollectionID `json:"collectionId"`
	Minter       types.Address      `json:"minter"`
	Amount       uint64             `json:"amount"`
	TotalPaid    uint64             `json:"totalPaid"`
	Mints        []MintCount        `json:"mints"`
}

// CollectionStatusEvent records a collection lifecycle or policy change.
// Field holds "active", "allowlistRequired" or "claimLimit".
type CollectionStatusEvent struct {
	CollectionID types.CollectionID `json:"collectionId"`
	Field        string             `json:"field"`
	Value        uint64             `json:"value"`
}

// AllowlistUpdatedEvent records an allowlist batch change.
type AllowlistUpdatedEvent struct {
	CollectionID types.CollectionID `json:"collectionId"`
	Wallets      []types.Address    `json:"wallets"`
	Allowed      bool               `json:"allowed"`
}

// CreatorAuthorizedEvent records a collection-creator grant or revocation.
type CreatorAuthorizedEvent struct {
	Creator    types.Address `json:"creator"`
	Authorized bool          `json:"authorized"`
}

// ForeignRescuedEvent records a sweep of a stray asset balance.
type ForeignRescuedEvent struct {
	Recipient types.Address `json:"recipient"`
	Amount    uint64        `json:"amount"`
}
