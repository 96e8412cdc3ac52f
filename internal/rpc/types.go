package rpc

import (
	"github.com/imprintworks/imprintd/pkg/types"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeNotFound       = -32000
	CodeRejected       = -32001 // State conflict: the call was valid but refused.
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      interface{} `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ── Param types ─────────────────────────────────────────────────────────

// CallerParam carries the acting address, shared by every mutating method.
type CallerParam struct {
	Caller string `json:"caller"`
}

// AddressParam sets a single address-valued field.
type AddressParam struct {
	CallerParam
	Address string `json:"address"`
}

// FeeParam sets a basis-point fee.
type FeeParam struct {
	CallerParam
	Bps uint32 `json:"bps"`
}

// AuthorizationParam grants or revokes collection-creator rights.
type AuthorizationParam struct {
	CallerParam
	Creator    string `json:"creator"`
	Authorized bool   `json:"authorized"`
}

// RegisterParam creates a token type through the admin path.
type RegisterParam struct {
	CallerParam
	Creator      string `json:"creator"`
	MetadataURI  string `json:"metadataUri"`
	MaxSupply    uint64 `json:"maxSupply"`
	PromoReserve uint64 `json:"promoReserve"`
	PrimaryPrice uint64 `json:"primaryPrice"`
	RoyaltyBps   uint32 `json:"royaltyBps"`
	ContentHash  string `json:"contentHash"`
}

// RegisterSignedParam creates a token type from a creator signature.
type RegisterSignedParam struct {
	Creator      string `json:"creator"`
	MetadataURI  string `json:"metadataUri"`
	MaxSupply    uint64 `json:"maxSupply"`
	PrimaryPrice uint64 `json:"primaryPrice"`
	RoyaltyBps   uint32 `json:"royaltyBps"`
	ContentHash  string `json:"contentHash"`
	Deadline     uint64 `json:"deadline"`
	Signature    string `json:"signature"` // 65-byte compact signature, hex.
}

// TokenParam addresses a single token type.
type TokenParam struct {
	CallerParam
	TokenID uint64 `json:"tokenId"`
}

// TokenActiveParam flips a type's lifecycle flag.
type TokenActiveParam struct {
	TokenParam
	Active bool `json:"active"`
}

// TokenAmountParam is a (token, amount) pair for purchases and burns.
type TokenAmountParam struct {
	TokenParam
	Amount uint64 `json:"amount"`
}

// AdminMintParam mints promo units to a recipient.
type AdminMintParam struct {
	TokenAmountParam
	Recipient string `json:"recipient"`
}

// TransferParam moves units between holders.
type TransferParam struct {
	TokenAmountParam
	To string `json:"to"`
}

// PriceParam updates a type's primary price.
type PriceParam struct {
	TokenParam
	NewPrice uint64 `json:"newPrice"`
}

// HashUpdateParam updates a type's content hash.
type HashUpdateParam struct {
	TokenParam
	NewHash string `json:"newHash"`
}

// URIUpdateParam updates a type's metadata URI.
type URIUpdateParam struct {
	TokenParam
	NewURI string `json:"newUri"`
}

// BalanceParam queries a holder's balance.
type BalanceParam struct {
	TokenID uint64 `json:"tokenId"`
	Owner   string `json:"owner"`
}

// VerifyHashParam checks a hash against a type's commitment.
type VerifyHashParam struct {
	TokenID uint64 `json:"tokenId"`
	Hash    string `json:"hash"`
}

// CollectionCreateParam creates a blind-mint collection.
type CollectionCreateParam struct {
	CallerParam
	Name      string   `json:"name"`
	MintPrice uint64   `json:"mintPrice"`
	TokenIDs  []uint64 `json:"tokenIds"`
	Weights   []uint64 `json:"rarityWeights"`
}

// CollectionParam addresses a single collection.
type CollectionParam struct {
	CallerParam
	CollectionID uint64 `json:"collectionId"`
}

// CollectionActiveParam flips a collection's lifecycle flag.
type CollectionActiveParam struct {
	CollectionParam
	Active bool `json:"active"`
}

// CollectionMintParam draws from a collection.
type CollectionMintParam struct {
	CollectionParam
	Amount uint64 `json:"amount"`
}

// AllowlistParam batch-updates a collection allowlist.
type AllowlistParam struct {
	CollectionParam
	Wallets []string `json:"wallets"`
	Allowed bool     `json:"allowed"`
}

// AllowlistRequiredParam toggles allowlist enforcement.
type AllowlistRequiredParam struct {
	CollectionParam
	Required bool `json:"required"`
}

// ClaimLimitParam sets a collection's per-wallet claim ceiling.
type ClaimLimitParam struct {
	CollectionParam
	Limit uint64 `json:"limit"`
}

// WalletQueryParam queries per-wallet collection state.
type WalletQueryParam struct {
	CollectionID uint64 `json:"collectionId"`
	Wallet       string `json:"wallet"`
}

// ListParam creates or extends a listing.
type ListParam struct {
	TokenParam
	Amount    uint64 `json:"amount"`
	UnitPrice uint64 `json:"unitPrice"`
	Expiry    uint64 `json:"expiry"` // Unix seconds; 0 never expires.
}

// BuyParam fills a listing.
type BuyParam struct {
	TokenParam
	Seller        string `json:"seller"`
	Amount        uint64 `json:"amount"`
	MaxTotalPrice uint64 `json:"maxTotalPrice"`
}

// ListingQueryParam queries a seller's listing.
type ListingQueryParam struct {
	TokenID uint64 `json:"tokenId"`
	Seller  string `json:"seller"`
}

// NonceParam queries a creator's registration nonce or digest.
type NonceParam struct {
	Creator      string `json:"creator"`
	MetadataURI  string `json:"metadataUri,omitempty"`
	MaxSupply    uint64 `json:"maxSupply,omitempty"`
	PrimaryPrice uint64 `json:"primaryPrice,omitempty"`
	RoyaltyBps   uint32 `json:"royaltyBps,omitempty"`
	ContentHash  string `json:"contentHash,omitempty"`
	Deadline     uint64 `json:"deadline,omitempty"`
}

// CurrencyCreditParam credits settlement balance to an account.
type CurrencyCreditParam struct {
	Caller string `json:"caller"`
	Owner  string `json:"owner"`
	Amount uint64 `json:"amount"`
}

// CurrencyApproveParam sets the caller's spend allowance. Spender defaults
// to the engine's market account.
type CurrencyApproveParam struct {
	Caller  string `json:"caller"`
	Spender string `json:"spender,omitempty"`
	Amount  uint64 `json:"amount"`
}

// CurrencyQueryParam queries a settlement balance or allowance.
type CurrencyQueryParam struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender,omitempty"`
}

// EventsParam pages through the event log.
type EventsParam struct {
	From  uint64 `json:"from"`
	Limit int    `json:"limit"`
}

// ── Result types ────────────────────────────────────────────────────────

// IDResult returns a freshly allocated identifier.
type IDResult struct {
	ID uint64 `json:"id"`
}

// OKResult acknowledges a mutating call with no other output.
type OKResult struct {
	OK bool `json:"ok"`
}

// BalanceResult returns a holder balance.
type BalanceResult struct {
	Balance uint64 `json:"balance"`
}

// SupplyResult returns a type's remaining supply.
type SupplyResult struct {
	Remaining uint64 `json:"remaining"`
}

// BoolResult returns a single predicate.
type BoolResult struct {
	Value bool `json:"value"`
}

// CountResult returns a single counter.
type CountResult struct {
	Count uint64 `json:"count"`
}

// DigestResult returns a registration digest and the nonce it embeds.
type DigestResult struct {
	Digest types.Hash `json:"digest"`
	Nonce  uint64     `json:"nonce"`
}

// AvailabilityEntry is one mintable pool entry.
type AvailabilityEntry struct {
	TokenID uint64 `json:"tokenId"`
	Weight  uint64 `json:"weight"`
}

// AvailabilityResult is a collection's current draw pool.
type AvailabilityResult struct {
	Entries     []AvailabilityEntry `json:"entries"`
	TotalWeight uint64              `json:"totalWeight"`
}
