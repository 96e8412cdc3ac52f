// Package collection implements weighted blind-mint pools: named groups of
// token types with per-type rarity weights, allowlists and per-wallet
// claim limits, plus the weighted random selector that draws from them.
package collection

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/imprintworks/imprintd/internal/storage"
	"github.com/imprintworks/imprintd/pkg/types"
)

// Collection errors.
var (
	ErrUnknownCollection  = errors.New("collection: unknown collection")
	ErrInvalidParameter   = errors.New("collection: invalid parameter")
	ErrInactive           = errors.New("collection: inactive")
	ErrSoldOut            = errors.New("collection: sold out")
	ErrNotAllowlisted     = errors.New("collection: wallet not allowlisted")
	ErrClaimLimitExceeded = errors.New("collection: claim limit exceeded")
)

var (
	prefixCollection = []byte("c/")           // c/<collectionID(8,BE)> -> Collection JSON
	prefixAllowlist  = []byte("ca/")          // ca/<collectionID(8,BE)><addr(20)> -> 0x01
	prefixClaims     = []byte("cc/")          // cc/<collectionID(8,BE)><addr(20)> -> uint64 BE
	keyNextID        = []byte("meta/next_col") // next CollectionID (8 bytes BE)
)

// Collection is a named weighted pool. The token/weight set is immutable
// after creation; only the lifecycle and allowlist state change.
type Collection struct {
	ID                types.CollectionID `json:"id"`
	Name              string             `json:"name"`
	Creator           types.Address      `json:"creator"`
	MintPrice         uint64             `json:"mintPrice"`
	TokenIDs          []types.TokenID    `json:"tokenIds"`
	Weights           []uint64           `json:"rarityWeights"`
	Active            bool               `json:"active"`
	AllowlistRequired bool               `json:"allowlistRequired"`
	ClaimLimit        uint64             `json:"claimLimit"` // 0 = unlimited.
}

// CreateParams are the curator-supplied fields of a new collection.
type CreateParams struct {
	Name      string
	Creator   types.Address
	MintPrice uint64
	TokenIDs  []types.TokenID
	Weights   []uint64
}

// Validate checks creation preconditions. exists reports whether a token
// id is registered. The duplicate scan is O(n^2), acceptable at creation
// time for curator-sized pools.
func (p *CreateParams) Validate(exists func(types.TokenID) (bool, error)) error {
	switch {
	case p.Name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidParameter)
	case p.Creator.IsZero():
		return fmt.Errorf("%w: zero creator", ErrInvalidParameter)
	case len(p.TokenIDs) == 0:
		return fmt.Errorf("%w: empty token list", ErrInvalidParameter)
	case len(p.TokenIDs) != len(p.Weights):
		return fmt.Errorf("%w: %d token ids, %d weights", ErrInvalidParameter, len(p.TokenIDs), len(p.Weights))
	}

	for i, id := range p.TokenIDs {
		if p.Weights[i] == 0 {
			return fmt.Errorf("%w: zero weight for token %s", ErrInvalidParameter, id)
		}
		ok, err := exists(id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: token %s not registered", ErrInvalidParameter, id)
		}
		for j := 0; j < i; j++ {
			if p.TokenIDs[j] == id {
				return fmt.Errorf("%w: duplicate token %s", ErrInvalidParameter, id)
			}
		}
	}
	return nil
}

// Store persists collections and their allowlist/claim state.
type Store struct{}

// NewStore creates a collection store.
func NewStore() *Store {
	return &Store{}
}

// Create validates params and allocates a fresh collection id.
func (s *Store) Create(tx storage.Tx, p CreateParams, exists func(types.TokenID) (bool, error)) (*Collection, error) {
	if err := p.Validate(exists); err != nil {
		return nil, err
	}

	id, err := s.nextID(tx)
	if err != nil {
		return nil, err
	}

	c := &Collection{
		ID:        id,
		Name:      p.Name,
		Creator:   p.Creator,
		MintPrice: p.MintPrice,
		TokenIDs:  append([]types.TokenID(nil), p.TokenIDs...),
		Weights:   append([]uint64(nil), p.Weights...),
		Active:    true,
	}
	if err := s.Put(tx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Get retrieves a collection.
func (s *Store) Get(tx storage.Tx, id types.CollectionID) (*Collection, error) {
	data, err := tx.Get(collectionKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, id)
	}
	if err != nil {
		return nil, err
	}
	var c Collection
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("collection unmarshal: %w", err)
	}
	return &c, nil
}

// Put stores a collection record.
func (s *Store) Put(tx storage.Tx, c *Collection) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("collection marshal: %w", err)
	}
	return tx.Put(collectionKey(c.ID), data)
}

// SetAllowed adds or removes a wallet on a collection's allowlist.
func (s *Store) SetAllowed(tx storage.Tx, id types.CollectionID, wallet types.Address, allowed bool) error {
	key := allowlistKey(id, wallet)
	if allowed {
		return tx.Put(key, []byte{0x01})
	}
	return tx.Delete(key)
}

// Allowed reports whether a wallet is on a collection's allowlist.
func (s *Store) Allowed(tx storage.Tx, id types.CollectionID, wallet types.Address) (bool, error) {
	return tx.Has(allowlistKey(id, wallet))
}

// Claimed returns the wallet's claimed counter for a collection.
func (s *Store) Claimed(tx storage.Tx, id types.CollectionID, wallet types.Address) (uint64, error) {
	data, err := tx.Get(claimsKey(id, wallet))
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("corrupt claim record for %s/%s", id, wallet)
	}
	return binary.BigEndian.Uint64(data), nil
}

// AuthorizeClaim enforces the allowlist and claim-limit rules for a mint
// of amount units and advances the wallet's claimed counter. Counters
// only ever increase; there is no reset path.
func (s *Store) AuthorizeClaim(tx storage.Tx, c *Collection, wallet types.Address, amount uint64) error {
	if c.AllowlistRequired {
		ok, err := s.Allowed(tx, c.ID, wallet)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s on collection %s", ErrNotAllowlisted, wallet, c.ID)
		}
	}

	claimed, err := s.Claimed(tx, c.ID, wallet)
	if err != nil {
		return err
	}
	if claimed > ^uint64(0)-amount {
		return fmt.Errorf("%w: claim counter overflow", ErrInvalidParameter)
	}
	if c.ClaimLimit > 0 && claimed+amount > c.ClaimLimit {
		return fmt.Errorf("%w: claimed %d + %d exceeds limit %d", ErrClaimLimitExceeded, claimed, amount, c.ClaimLimit)
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], claimed+amount)
	return tx.Put(claimsKey(c.ID, wallet), buf[:])
}

// nextID allocates a fresh monotonically increasing collection id, starting at 1.
func (s *Store) nextID(tx storage.Tx) (types.CollectionID, error) {
	var next uint64 = 1
	data, err := tx.Get(keyNextID)
	if err == nil && len(data) == 8 {
		next = binary.BigEndian.Uint64(data)
	} else if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return 0, err
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], next+1)
	if err := tx.Put(keyNextID, buf[:]); err != nil {
		return 0, err
	}
	return types.CollectionID(next), nil
}

func collectionKey(id types.CollectionID) []byte {
	key := make([]byte, len(prefixCollection)+types.IDSize)
	copy(key, prefixCollection)
	copy(key[len(prefixCollection):], id.Bytes())
	return key
}

func allowlistKey(id types.CollectionID, wallet types.Address) []byte {
	key := make([]byte, len(prefixAllowlist)+types.IDSize+types.AddressSize)
	copy(key, prefixAllowlist)
	copy(key[len(prefixAllowlist):], id.Bytes())
	copy(key[len(prefixAllowlist)+types.IDSize:], wallet[:])
	return key
}

func claimsKey(id types.CollectionID, wallet types.Address) []byte {
	key := make([]byte, len(prefixClaims)+types.IDSize+types.AddressSize)
	copy(key, prefixClaims)
	copy(key[len(prefixClaims):], id.Bytes())
	copy(key[len(prefixClaims)+types.IDSize:], wallet[:])
	return key
}
