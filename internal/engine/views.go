package engine

import (
	"github.com/imprintworks/imprintd/internal/collection"
	"github.com/imprintworks/imprintd/internal/events"
	"github.com/imprintworks/imprintd/internal/market"
	"github.com/imprintworks/imprintd/internal/registrar"
	"github.com/imprintworks/imprintd/internal/registry"
	"github.com/imprintworks/imprintd/internal/storage"
	"github.com/imprintworks/imprintd/pkg/types"
)

// Config is the engine's current operating parameters.
type Config struct {
	Owner           types.Address `json:"owner"`
	Treasury        types.Address `json:"treasury"`
	PlatformFeeBps  uint32        `json:"platformFeeBps"`
	SecondaryFeeBps uint32        `json:"secondaryFeeBps"`
	Paused          bool          `json:"paused"`
}

// GetConfig returns the current operating parameters.
func (e *Engine) GetConfig() (Config, error) {
	cfg := Config{Owner: e.owner}
	err := e.view(func(tx storage.Tx) error {
		var err error
		if cfg.Treasury, err = e.treasury(tx); err != nil {
			return err
		}
		if cfg.PlatformFeeBps, err = e.platformBps(tx); err != nil {
			return err
		}
		if cfg.SecondaryFeeBps, err = e.secondaryBps(tx); err != nil {
			return err
		}
		cfg.Paused, err = e.ledger.Paused(tx)
		return err
	})
	return cfg, err
}

// GetTokenType returns a token type record.
func (e *Engine) GetTokenType(id types.TokenID) (*registry.ImprintType, error) {
	var t *registry.ImprintType
	err := e.view(func(tx storage.Tx) error {
		var err error
		t, err = e.registry.Get(tx, id)
		return err
	})
	return t, err
}

// ListTokenTypes returns all token types in id order.
func (e *Engine) ListTokenTypes() ([]*registry.ImprintType, error) {
	var out []*registry.ImprintType
	err := e.view(func(tx storage.Tx) error {
		return e.registry.ForEach(tx, func(t *registry.ImprintType) error {
			out = append(out, t)
			return nil
		})
	})
	return out, err
}

// RemainingSupply returns a type's unminted supply.
func (e *Engine) RemainingSupply(id types.TokenID) (uint64, error) {
	t, err := e.GetTokenType(id)
	if err != nil {
		return 0, err
	}
	return t.Remaining(), nil
}

// VerifyContentHash reports whether a hash matches the type's current
// content commitment.
func (e *Engine) VerifyContentHash(id types.TokenID, h types.Hash) (bool, error) {
	t, err := e.GetTokenType(id)
	if err != nil {
		return false, err
	}
	return t.ContentHash == h, nil
}

// BalanceOf returns a holder's balance in a type.
func (e *Engine) BalanceOf(owner types.Address, id types.TokenID) (uint64, error) {
	var bal uint64
	err := e.view(func(tx storage.Tx) error {
		var err error
		bal, err = e.ledger.Balance(tx, owner, id)
		return err
	})
	return bal, err
}

// OwnsAsset reports whether a holder owns at least one unit of a type.
func (e *Engine) OwnsAsset(owner types.Address, id types.TokenID) (bool, error) {
	bal, err := e.BalanceOf(owner, id)
	return bal > 0, err
}

// GetListing returns a seller's live listing for a type, or
// market.ErrNotListed.
func (e *Engine) GetListing(id types.TokenID, seller types.Address) (*market.Listing, error) {
	var l *market.Listing
	err := e.view(func(tx storage.Tx) error {
		var err error
		l, err = e.market.Listing(tx, id, seller)
		return err
	})
	return l, err
}

// GetCollection returns a collection record.
func (e *Engine) GetCollection(id types.CollectionID) (*collection.Collection, error) {
	var c *collection.Collection
	err := e.view(func(tx storage.Tx) error {
		var err error
		c, err = e.collections.Get(tx, id)
		return err
	})
	return c, err
}

// GetCollectionAvailability returns the currently mintable entries of a
// collection and their total weight. This is the same eligibility
// predicate a blind-mint draw uses, so an entry listed here can be drawn
// right now.
func (e *Engine) GetCollectionAvailability(id types.CollectionID) ([]collection.PoolEntry, uint64, error) {
	var (
		pool  []collection.PoolEntry
		total uint64
	)
	err := e.view(func(tx storage.Tx) error {
		c, err := e.collections.Get(tx, id)
		if err != nil {
			return err
		}
		pool, total, err = collection.EligiblePool(tx, e.registry, c)
		return err
	})
	return pool, total, err
}

// Allowlisted reports whether a wallet is on a collection's allowlist.
func (e *Engine) Allowlisted(id types.CollectionID, wallet types.Address) (bool, error) {
	var ok bool
	err := e.view(func(tx storage.Tx) error {
		var err error
		ok, err = e.collections.Allowed(tx, id, wallet)
		return err
	})
	return ok, err
}

// ClaimedCount returns a wallet's lifetime claim counter on a collection.
func (e *Engine) ClaimedCount(id types.CollectionID, wallet types.Address) (uint64, error) {
	var n uint64
	err := e.view(func(tx storage.Tx) error {
		var err error
		n, err = e.collections.Claimed(tx, id, wallet)
		return err
	})
	return n, err
}

// CreatorNonce returns a creator's current signed-registration nonce, the
// value to embed in the next registration digest.
func (e *Engine) CreatorNonce(creator types.Address) (uint64, error) {
	var n uint64
	err := e.view(func(tx storage.Tx) error {
		var err error
		n, err = e.registrar.Nonce(tx, creator)
		return err
	})
	return n, err
}

// RegistrationDigest computes the digest a creator must sign for the
// given params at their current nonce.
func (e *Engine) RegistrationDigest(p *registrar.SignedParams) (types.Hash, uint64, error) {
	var (
		digest types.Hash
		nonce  uint64
	)
	err := e.view(func(tx storage.Tx) error {
		var err error
		nonce, err = e.registrar.Nonce(tx, p.Creator)
		if err != nil {
			return err
		}
		digest = e.registrar.Digest(p, nonce)
		return nil
	})
	return digest, nonce, err
}

// Events returns up to limit stored events starting at sequence from.
func (e *Engine) Events(from uint64, limit int) ([]events.StoredEvent, error) {
	var out []events.StoredEvent
	err := e.view(func(tx storage.Tx) error {
		var err error
		out, err = e.events.List(tx, from, limit)
		return err
	})
	return out, err
}

// NextEventSeq returns the sequence the next event will receive.
func (e *Engine) NextEventSeq() (uint64, error) {
	var seq uint64
	err := e.view(func(tx storage.Tx) error {
		var err error
		seq, err = e.events.NextSeq(tx)
		return err
	})
	return seq, err
}
