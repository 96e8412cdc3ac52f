// Package registry owns ImprintType records: identity, supply and promo
// counters, pricing, content hashes and lifecycle flags. No other
// component mutates these fields.
package registry

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/imprintworks/imprintd/internal/storage"
	"github.com/imprintworks/imprintd/pkg/fees"
	"github.com/imprintworks/imprintd/pkg/types"
)

// Registry errors.
var (
	ErrUnknownToken         = errors.New("registry: unknown token type")
	ErrInvalidParameter     = errors.New("registry: invalid parameter")
	ErrTokenInactive        = errors.New("registry: token type inactive")
	ErrCollectionOnly       = errors.New("registry: token type is collection-gated")
	ErrSupplyExceeded       = errors.New("registry: max supply exceeded")
	ErrPromoReserveExceeded = errors.New("registry: promo reserve exceeded")
	ErrAdminMintLocked      = errors.New("registry: admin mint locked")
)

var (
	prefixType   = []byte("it/")            // it/<tokenID(8,BE)> -> ImprintType JSON
	keyNextToken = []byte("meta/next_tok") // next TokenID (8 bytes BE)
)

// ImprintType describes one mintable asset kind.
type ImprintType struct {
	ID              types.TokenID `json:"id"`
	Creator         types.Address `json:"creator"`
	RoyaltyBps      uint32        `json:"royaltyBps"`
	MaxSupply       uint64        `json:"maxSupply"`
	Minted          uint64        `json:"minted"`
	PromoReserve    uint64        `json:"promoReserve"`
	PromoMinted     uint64        `json:"promoMinted"`
	PrimaryPrice    uint64        `json:"primaryPrice"`
	ContentHash     types.Hash    `json:"contentHash"`
	MetadataURI     string        `json:"metadataURI"`
	Active          bool          `json:"active"`
	AdminMintLocked bool          `json:"adminMintLocked"`
	CollectionOnly  bool          `json:"collectionOnly"`
}

// Remaining returns the unminted supply.
func (t *ImprintType) Remaining() uint64 {
	return t.MaxSupply - t.Minted
}

// RegisterParams are the creator-supplied fields of a new type.
type RegisterParams struct {
	Creator      types.Address
	MetadataURI  string
	MaxSupply    uint64
	PrimaryPrice uint64
	RoyaltyBps   uint32
	ContentHash  types.Hash
	PromoReserve uint64
}

// Validate checks every registration precondition. secondaryFeeBps is the
// market's current secondary fee: royalty plus fee may never exceed 100%
// at creation time.
func (p *RegisterParams) Validate(secondaryFeeBps uint32) error {
	switch {
	case p.Creator.IsZero():
		return fmt.Errorf("%w: zero creator address", ErrInvalidParameter)
	case p.MetadataURI == "":
		return fmt.Errorf("%w: empty metadata URI", ErrInvalidParameter)
	case p.MaxSupply == 0:
		return fmt.Errorf("%w: zero max supply", ErrInvalidParameter)
	case !fees.ValidBps(p.RoyaltyBps):
		return fmt.Errorf("%w: royalty %d bps exceeds 10000", ErrInvalidParameter, p.RoyaltyBps)
	case p.RoyaltyBps+secondaryFeeBps > fees.MaxBps:
		return fmt.Errorf("%w: royalty %d + secondary fee %d bps exceeds 10000", ErrInvalidParameter, p.RoyaltyBps, secondaryFeeBps)
	case p.ContentHash.IsZero():
		return fmt.Errorf("%w: zero content hash", ErrInvalidParameter)
	case p.PromoReserve > p.MaxSupply:
		return fmt.Errorf("%w: promo reserve %d exceeds max supply %d", ErrInvalidParameter, p.PromoReserve, p.MaxSupply)
	}
	return nil
}

// Registry is the token-type store and supply accountant.
type Registry struct{}

// New creates a registry.
func New() *Registry {
	return &Registry{}
}

// Register validates params and allocates a fresh token id. New types are
// active and collection-gated until the first mint reveals them.
func (r *Registry) Register(tx storage.Tx, p RegisterParams, secondaryFeeBps uint32) (*ImprintType, error) {
	if err := p.Validate(secondaryFeeBps); err != nil {
		return nil, err
	}

	id, err := r.nextID(tx)
	if err != nil {
		return nil, err
	}

	t := &ImprintType{
		ID:             id,
		Creator:        p.Creator,
		RoyaltyBps:     p.RoyaltyBps,
		MaxSupply:      p.MaxSupply,
		PromoReserve:   p.PromoReserve,
		PrimaryPrice:   p.PrimaryPrice,
		ContentHash:    p.ContentHash,
		MetadataURI:    p.MetadataURI,
		Active:         true,
		CollectionOnly: true,
	}
	if err := r.Put(tx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Get retrieves a token type.
func (r *Registry) Get(tx storage.Tx, id types.TokenID) (*ImprintType, error) {
	data, err := tx.Get(typeKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, id)
	}
	if err != nil {
		return nil, err
	}
	var t ImprintType
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("token type unmarshal: %w", err)
	}
	return &t, nil
}

// Put stores a token type record.
func (r *Registry) Put(tx storage.Tx, t *ImprintType) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("token type marshal: %w", err)
	}
	return tx.Put(typeKey(t.ID), data)
}

// ReserveSupply checks and records a primary mint of amount units.
// The caller must already hold the type record; the record is persisted.
// The first mint clears CollectionOnly (the metadata reveal).
func (r *Registry) ReserveSupply(tx storage.Tx, t *ImprintType, amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("%w: zero amount", ErrInvalidParameter)
	}
	if amount > t.MaxSupply-t.Minted {
		return fmt.Errorf("%w: %d remaining, requested %d", ErrSupplyExceeded, t.MaxSupply-t.Minted, amount)
	}
	t.Minted += amount
	t.CollectionOnly = false
	return r.Put(tx, t)
}

// ReservePromoSupply checks and records an admin mint of amount units.
// The promo-reserve ceiling is checked before the overall supply ceiling,
// so exhausting both reports the promo error.
func (r *Registry) ReservePromoSupply(tx storage.Tx, t *ImprintType, amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("%w: zero amount", ErrInvalidParameter)
	}
	if t.AdminMintLocked {
		return fmt.Errorf("%w: token %s", ErrAdminMintLocked, t.ID)
	}
	if amount > t.PromoReserve-t.PromoMinted {
		return fmt.Errorf("%w: %d remaining, requested %d", ErrPromoReserveExceeded, t.PromoReserve-t.PromoMinted, amount)
	}
	if amount > t.MaxSupply-t.Minted {
		return fmt.Errorf("%w: %d remaining, requested %d", ErrSupplyExceeded, t.MaxSupply-t.Minted, amount)
	}
	t.PromoMinted += amount
	t.Minted += amount
	t.CollectionOnly = false
	return r.Put(tx, t)
}

// ForEach iterates over all token types in id order.
func (r *Registry) ForEach(tx storage.Tx, fn func(*ImprintType) error) error {
	return tx.ForEach(prefixType, func(key, value []byte) error {
		if len(key) < len(prefixType)+types.IDSize {
			return nil // Malformed key, skip.
		}
		var t ImprintType
		if err := json.Unmarshal(value, &t); err != nil {
			return nil // Skip corrupt entries.
		}
		return fn(&t)
	})
}

// nextID allocates a fresh monotonically increasing token id, starting at 1.
func (r *Registry) nextID(tx storage.Tx) (types.TokenID, error) {
	var next uint64 = 1
	data, err := tx.Get(keyNextToken)
	if err == nil && len(data) == 8 {
		next = binary.BigEndian.Uint64(data)
	} else if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return 0, err
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], next+1)
	if err := tx.Put(keyNextToken, buf[:]); err != nil {
		return 0, err
	}
	return types.TokenID(next), nil
}

func typeKey(id types.TokenID) []byte {
	key := make([]byte, len(prefixType)+types.IDSize)
	copy(key, prefixType)
	copy(key[len(prefixType):], id.Bytes())
	return key
}
