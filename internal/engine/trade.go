package engine

import (
	"fmt"

	"github.com/imprintworks/imprintd/internal/events"
	"github.com/imprintworks/imprintd/internal/storage"
	"github.com/imprintworks/imprintd/pkg/types"
)

// ListForSale escrows amount units of a type into the market at a unit
// price. A live listing at the same price merges into this one and adopts
// the new expiry; a differently priced live listing must be cancelled
// first. expiry of zero never expires.
func (e *Engine) ListForSale(seller types.Address, id types.TokenID, amount, unitPrice, expiry uint64) error {
	return e.call("list_for_sale", func(tx storage.Tx, rec *events.Recorder, now uint64) error {
		if seller.IsZero() {
			return fmt.Errorf("%w: zero seller", ErrInvalidParameter)
		}
		if _, err := e.registry.Get(tx, id); err != nil {
			return err
		}
		return e.market.List(tx, rec, seller, id, amount, unitPrice, expiry, now)
	})
}

// CancelListing removes the seller's listing for a type and returns the
// escrowed units. Expired listings are cancelled the same way.
func (e *Engine) CancelListing(seller types.Address, id types.TokenID) error {
	return e.call("cancel_listing", func(tx storage.Tx, rec *events.Recorder, _ uint64) error {
		return e.market.Cancel(tx, rec, seller, id)
	})
}

// BuyFromHolder fills amount units from a seller's listing.
// maxTotalPrice caps what the buyer pays; the settlement splits into
// creator royalty, platform fee and seller proceeds per the type's terms.
func (e *Engine) BuyFromHolder(buyer types.Address, id types.TokenID, seller types.Address, amount, maxTotalPrice uint64) error {
	var volume uint64
	err := e.call("buy_from_holder", func(tx storage.Tx, rec *events.Recorder, now uint64) error {
		if buyer.IsZero() {
			return fmt.Errorf("%w: zero buyer", ErrInvalidParameter)
		}
		t, err := e.registry.Get(tx, id)
		if err != nil {
			return err
		}
		secondaryBps, err := e.secondaryBps(tx)
		if err != nil {
			return err
		}
		treasury, err := e.treasury(tx)
		if err != nil {
			return err
		}
		l, err := e.market.Listing(tx, id, seller)
		if err != nil {
			return err
		}
		if err := e.market.Buy(tx, rec, buyer, seller, t, amount, maxTotalPrice, secondaryBps, treasury, e.asset, now); err != nil {
			return err
		}
		// A successful fill settled at the listed unit price.
		volume = l.UnitPrice * amount
		return nil
	})
	if err == nil {
		e.metrics.AddVolume(float64(volume))
	}
	return err
}
