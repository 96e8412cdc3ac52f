package engine

import (
	"fmt"

	"github.com/imprintworks/imprintd/internal/events"
	"github.com/imprintworks/imprintd/internal/storage"
	"github.com/imprintworks/imprintd/pkg/types"
)

// Transfer moves units between holders. Blocked while the ledger is
// paused; escrow movements through the market are not affected by pause.
func (e *Engine) Transfer(from, to types.Address, id types.TokenID, amount uint64) error {
	return e.call("transfer", func(tx storage.Tx, rec *events.Recorder, _ uint64) error {
		if _, err := e.registry.Get(tx, id); err != nil {
			return err
		}
		return e.ledger.Transfer(tx, rec, from, to, id, amount, from)
	})
}

// Burn destroys amount units held by the caller. Burned supply is gone:
// the type's minted counter does not decrease, so burning never reopens
// primary supply.
func (e *Engine) Burn(caller types.Address, id types.TokenID, amount uint64) error {
	return e.call("burn", func(tx storage.Tx, rec *events.Recorder, _ uint64) error {
		if _, err := e.registry.Get(tx, id); err != nil {
			return err
		}
		if err := e.ledger.Burn(tx, rec, caller, id, amount, caller); err != nil {
			return err
		}
		rec.Emit(events.KindBurned, BurnedEvent{TokenID: id, Holder: caller, Amount: amount})
		return nil
	})
}

// UpdatePrice changes a type's primary price. Creator or owner.
func (e *Engine) UpdatePrice(caller types.Address, id types.TokenID, newPrice uint64) error {
	return e.call("update_price", func(tx storage.Tx, rec *events.Recorder, _ uint64) error {
		t, err := e.registry.Get(tx, id)
		if err != nil {
			return err
		}
		if err := e.requireCreatorOrOwner(caller, t); err != nil {
			return err
		}
		old := t.PrimaryPrice
		if old == newPrice {
			return nil
		}
		t.PrimaryPrice = newPrice
		if err := e.registry.Put(tx, t); err != nil {
			return err
		}
		rec.Emit(events.KindPriceUpdated, PriceUpdatedEvent{TokenID: id, OldPrice: old, NewPrice: newPrice})
		return nil
	})
}

// UpdateContentHash repoints a type's content commitment. Creator or
// owner. Both old and new hashes go in the event so holders can audit the
// change.
func (e *Engine) UpdateContentHash(caller types.Address, id types.TokenID, newHash types.Hash) error {
	return e.call("update_content_hash", func(tx storage.Tx, rec *events.Recorder, _ uint64) error {
		if newHash.IsZero() {
			return fmt.Errorf("%w: zero content hash", ErrInvalidParameter)
		}
		t, err := e.registry.Get(tx, id)
		if err != nil {
			return err
		}
		if err := e.requireCreatorOrOwner(caller, t); err != nil {
			return err
		}
		old := t.ContentHash
		if old == newHash {
			return nil
		}
		t.ContentHash = newHash
		if err := e.registry.Put(tx, t); err != nil {
			return err
		}
		rec.Emit(events.KindContentHashUpdated, ContentHashUpdatedEvent{TokenID: id, OldHash: old, NewHash: newHash})
		return nil
	})
}

// UpdateMetadataURI repoints a type's metadata location. Creator or owner.
func (e *Engine) UpdateMetadataURI(caller types.Address, id types.TokenID, newURI string) error {
	return e.call("update_metadata_uri", func(tx storage.Tx, rec *events.Recorder, _ uint64) error {
		if newURI == "" {
			return fmt.Errorf("%w: empty metadata URI", ErrInvalidParameter)
		}
		t, err := e.registry.Get(tx, id)
		if err != nil {
			return err
		}
		if err := e.requireCreatorOrOwner(caller, t); err != nil {
			return err
		}
		old := t.MetadataURI
		if old == newURI {
			return nil
		}
		t.MetadataURI = newURI
		if err := e.registry.Put(tx, t); err != nil {
			return err
		}
		rec.Emit(events.KindMetadataURIUpdated, MetadataURIUpdatedEvent{TokenID: id, OldURI: old, NewURI: newURI})
		return nil
	})
}
