package engine

import (
	"fmt"

	"github.com/imprintworks/imprintd/internal/collection"
	"github.com/imprintworks/imprintd/internal/currency"
	"github.com/imprintworks/imprintd/internal/events"
	"github.com/imprintworks/imprintd/internal/registrar"
	"github.com/imprintworks/imprintd/internal/registry"
	"github.com/imprintworks/imprintd/internal/storage"
	"github.com/imprintworks/imprintd/pkg/fees"
	"github.com/imprintworks/imprintd/pkg/types"
)

// SetTreasury rotates the fee-collection address. Owner only.
func (e *Engine) SetTreasury(caller, treasury types.Address) error {
	return e.call("set_treasury", func(tx storage.Tx, rec *events.Recorder, _ uint64) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		if treasury.IsZero() {
			return fmt.Errorf("%w: zero treasury address", ErrInvalidParameter)
		}
		old, err := e.treasury(tx)
		if err != nil {
			return err
		}
		if err := putAddress(tx, keyTreasury, treasury); err != nil {
			return err
		}
		rec.Emit(events.KindTreasuryUpdated, TreasuryUpdatedEvent{Old: old, New: treasury})
		return nil
	})
}

// SetPlatformFeeBps sets the primary-sale platform fee. Owner only.
func (e *Engine) SetPlatformFeeBps(caller types.Address, bps uint32) error {
	return e.call("set_platform_fee", func(tx storage.Tx, rec *events.Recorder, _ uint64) error {
		return e.setFee(tx, rec, caller, keyPlatformBps, "primary", bps)
	})
}

// SetSecondaryFeeBps sets the secondary-sale platform fee. Owner only.
// Existing types keep their royalty; the royalty-plus-fee ceiling is only
// enforced at registration time.
func (e *Engine) SetSecondaryFeeBps(caller types.Address, bps uint32) error {
	return e.call("set_secondary_fee", func(tx storage.Tx, rec *events.Recorder, _ uint64) error {
		return e.setFee(tx, rec, caller, keySecondaryBps, "secondary", bps)
	})
}

func (e *Engine) setFee(tx storage.Tx, rec *events.Recorder, caller types.Address, key []byte, scope string, bps uint32) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if !fees.ValidBps(bps) {
		return fmt.Errorf("%w: %d bps exceeds 10000", ErrInvalidParameter, bps)
	}
	old, err := getBps(tx, key)
	if err != nil {
		return err
	}
	if err := putBps(tx, key, bps); err != nil {
		return err
	}
	rec.Emit(events.KindFeeUpdated, FeeUpdatedEvent{Scope: scope, OldBps: old, NewBps: bps})
	return nil
}

// SetCollectionCreatorAuthorization grants or revokes the right to create
// collections. Owner only; the owner is always implicitly authorized.
func (e *Engine) SetCollectionCreatorAuthorization(caller, creator types.Address, authorized bool) error {
	return e.call("set_creator_authorization", func(tx storage.Tx, rec *events.Recorder, _ uint64) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		if creator.IsZero() {
			return fmt.Errorf("%w: zero creator address", ErrInvalidParameter)
		}
		key := authKey(creator)
		if authorized {
			if err := tx.Put(key, []byte{0x01}); err != nil {
				return err
			}
		} else if err := tx.Delete(key); err != nil {
			return err
		}
		rec.Emit(events.KindCreatorAuthorized, CreatorAuthorizedEvent{Creator: creator, Authorized: authorized})
		return nil
	})
}

// RegisterTokenType creates a token type on behalf of a creator. Owner only;
// permissionless registration goes through RegisterTokenTypeWithSignature.
func (e *Engine) RegisterTokenType(caller types.Address, p registry.RegisterParams) (types.TokenID, error) {
	var id types.TokenID
	err := e.call("register_token_type", func(tx storage.Tx, rec *events.Recorder, _ uint64) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		secondaryBps, err := e.secondaryBps(tx)
		if err != nil {
			return err
		}
		t, err := e.registry.Register(tx, p, secondaryBps)
		if err != nil {
			return err
		}
		id = t.ID
		rec.Emit(events.KindTypeRegistered, typeRegisteredPayload(t))
		return nil
	})
	return id, err
}

// RegisterTokenTypeWithSignature creates a token type from a creator-signed
// request. Callable by anyone carrying a valid signature.
func (e *Engine) RegisterTokenTypeWithSignature(p registrar.SignedParams, signature []byte) (types.TokenID, error) {
	var id types.TokenID
	err := e.call("register_token_type_signed", func(tx storage.Tx, rec *events.Recorder, now uint64) error {
		secondaryBps, err := e.secondaryBps(tx)
		if err != nil {
			return err
		}
		t, err := e.registrar.Register(tx, now, &p, signature, secondaryBps)
		if err != nil {
			return err
		}
		id = t.ID
		rec.Emit(events.KindTypeRegisteredSig, typeRegisteredPayload(t))
		return nil
	})
	return id, err
}

func typeRegisteredPayload(t *registry.ImprintType) TypeRegisteredEvent {
	return TypeRegisteredEvent{
		TokenID:      t.ID,
		Creator:      t.Creator,
		MaxSupply:    t.MaxSupply,
		PromoReserve: t.PromoReserve,
		PrimaryPrice: t.PrimaryPrice,
		RoyaltyBps:   t.RoyaltyBps,
		ContentHash:  t.ContentHash,
		MetadataURI:  t.MetadataURI,
	}
}

// SetTokenActive flips a type's lifecycle flag. Owner only. Deactivation
// blocks primary purchases and blind-mint draws, not holder transfers.
func (e *Engine) SetTokenActive(caller types.Address, id types.TokenID, active bool) error {
	return e.call("set_token_active", func(tx storage.Tx, rec *events.Recorder, _ uint64) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		t, err := e.registry.Get(tx, id)
		if err != nil {
			return err
		}
		if t.Active == active {
			return nil
		}
		t.Active = active
		if err := e.registry.Put(tx, t); err != nil {
			return err
		}
		rec.Emit(events.KindActiveChanged, ActiveChangedEvent{TokenID: id, Active: active})
		return nil
	})
}

// LockAdminMint permanently disables promo minting for a type. Owner only;
// there is no unlock.
func (e *Engine) LockAdminMint(caller types.Address, id types.TokenID) error {
	return e.call("lock_admin_mint", func(tx storage.Tx, rec *events.Recorder, _ uint64) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		t, err := e.registry.Get(tx, id)
		if err != nil {
			return err
		}
		if t.AdminMintLocked {
			return nil
		}
		t.AdminMintLocked = true
		if err := e.registry.Put(tx, t); err != nil {
			return err
		}
		rec.Emit(events.KindAdminMintLocked, AdminMintLockedEvent{TokenID: id})
		return nil
	})
}

// Pause halts holder-to-holder transfers. Owner only. Mints, burns and
// market escrow movements stay live.
func (e *Engine) Pause(caller types.Address) error {
	return e.setPaused(caller, true)
}

// Unpause resumes holder-to-holder transfers. Owner only.
func (e *Engine) Unpause(caller types.Address) error {
	return e.setPaused(caller, false)
}

func (e *Engine) setPaused(caller types.Address, paused bool) error {
	op, kind := "pause", events.KindPaused
	if !paused {
		op, kind = "unpause", events.KindUnpaused
	}
	return e.call(op, func(tx storage.Tx, rec *events.Recorder, _ uint64) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		cur, err := e.ledger.Paused(tx)
		if err != nil {
			return err
		}
		if cur == paused {
			return nil
		}
		if err := e.ledger.SetPaused(tx, paused); err != nil {
			return err
		}
		rec.Emit(kind, struct{}{})
		return nil
	})
}

// RescueForeignAsset sweeps the engine account's full balance in a stray
// asset to a recipient. Owner only. The settlement asset itself is never
// held by the engine account outside a call, so any balance is foreign.
func (e *Engine) RescueForeignAsset(caller types.Address, asset currency.Asset, to types.Address) error {
	return e.call("rescue_foreign_asset", func(tx storage.Tx, rec *events.Recorder, _ uint64) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		if to.IsZero() {
			return fmt.Errorf("%w: zero recipient", ErrInvalidParameter)
		}
		bal, err := asset.BalanceOf(MarketAddress())
		if err != nil {
			return err
		}
		if bal == 0 {
			return nil
		}
		if err := asset.Transfer(to, bal); err != nil {
			return err
		}
		rec.Emit(events.KindForeignRescued, ForeignRescuedEvent{Recipient: to, Amount: bal})
		return nil
	})
}

// CreateCollection creates a weighted blind-mint pool. The caller must be
// the owner or an authorized collection creator, and becomes the
// collection's creator.
func (e *Engine) CreateCollection(caller types.Address, p collection.CreateParams) (types.CollectionID, error) {
	var id types.CollectionID
	err := e.call("create_collection", func(tx storage.Tx, rec *events.Recorder, _ uint64) error {
		if caller != e.owner {
			ok, err := tx.Has(authKey(caller))
			if err != nil {
				return err
			}
			if !ok {
				return ErrNotAuthorized
			}
		}
		p.Creator = caller
		c, err := e.collections.Create(tx, p, func(tid types.TokenID) (bool, error) {
			_, err := e.registry.Get(tx, tid)
			if err == nil {
				return true, nil
			}
			if isUnknownToken(err) {
				return false, nil
			}
			return false, err
		})
		if err != nil {
			return err
		}
		id = c.ID
		rec.Emit(events.KindCollectionCreated, CollectionCreatedEvent{
			CollectionID: c.ID,
			Name:         c.Name,
			Creator:      c.Creator,
			MintPrice:    c.MintPrice,
			TokenIDs:     c.TokenIDs,
			Weights:      c.Weights,
		})
		return nil
	})
	return id, err
}

// SetCollectionActive flips a collection's lifecycle flag. Owner or the
// collection's creator.
func (e *Engine) SetCollectionActive(caller types.Address, id types.CollectionID, active bool) error {
	return e.call("set_collection_active", func(tx storage.Tx, rec *events.Recorder, _ uint64) error {
		c, err := e.requireCollectionAdmin(tx, caller, id)
		if err != nil {
			return err
		}
		if c.Active == active {
			return nil
		}
		c.Active = active
		if err := e.collections.Put(tx, c); err != nil {
			return err
		}
		rec.Emit(events.KindCollectionStatus, CollectionStatusEvent{
			CollectionID: id, Field: "active", Value: boolValue(active),
		})
		return nil
	})
}

// SetAllowlistRequired toggles allowlist enforcement on a collection.
// Owner or the collection's creator.
func (e *Engine) SetAllowlistRequired(caller types.Address, id types.CollectionID, required bool) error {
	return e.call("set_allowlist_required", func(tx storage.Tx, rec *events.Recorder, _ uint64) error {
		c, err := e.requireCollectionAdmin(tx, caller, id)
		if err != nil {
			return err
		}
		if c.AllowlistRequired == required {
			return nil
		}
		c.AllowlistRequired = required
		if err := e.collections.Put(tx, c); err != nil {
			return err
		}
		rec.Emit(events.KindCollectionStatus, CollectionStatusEvent{
			CollectionID: id, Field: "allowlistRequired", Value: boolValue(required),
		})
		return nil
	})
}

// SetClaimLimit sets a collection's per-wallet claim ceiling; zero removes
// it. Owner or the collection's creator. Wallets already past a new lower
// limit keep what they claimed but cannot claim more.
func (e *Engine) SetClaimLimit(caller types.Address, id types.CollectionID, limit uint64) error {
	return e.call("set_claim_limit", func(tx storage.Tx, rec *events.Recorder, _ uint64) error {
		c, err := e.requireCollectionAdmin(tx, caller, id)
		if err != nil {
			return err
		}
		if c.ClaimLimit == limit {
			return nil
		}
		c.ClaimLimit = limit
		if err := e.collections.Put(tx, c); err != nil {
			return err
		}
		rec.Emit(events.KindClaimLimitChanged, CollectionStatusEvent{
			CollectionID: id, Field: "claimLimit", Value: limit,
		})
		return nil
	})
}

// SetAllowlist adds or removes a batch of wallets on a collection's
// allowlist. Owner or the collection's creator.
func (e *Engine) SetAllowlist(caller types.Address, id types.CollectionID, wallets []types.Address, allowed bool) error {
	return e.call("set_allowlist", func(tx storage.Tx, rec *events.Recorder, _ uint64) error {
		if _, err := e.requireCollectionAdmin(tx, caller, id); err != nil {
			return err
		}
		if len(wallets) == 0 {
			return fmt.Errorf("%w: empty wallet list", ErrInvalidParameter)
		}
		for _, w := range wallets {
			if w.IsZero() {
				return fmt.Errorf("%w: zero wallet address", ErrInvalidParameter)
			}
			if err := e.collections.SetAllowed(tx, id, w, allowed); err != nil {
				return err
			}
		}
		rec.Emit(events.KindAllowlistUpdated, AllowlistUpdatedEvent{
			CollectionID: id, Wallets: wallets, Allowed: allowed,
		})
		return nil
	})
}

func (e *Engine) requireCollectionAdmin(tx storage.Tx, caller types.Address, id types.CollectionID) (*collection.Collection, error) {
	c, err := e.collections.Get(tx, id)
	if err != nil {
		return nil, err
	}
	if caller != c.Creator && caller != e.owner {
		return nil, ErrNotCreatorOrOwner
	}
	return c, nil
}

func boolValue(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
