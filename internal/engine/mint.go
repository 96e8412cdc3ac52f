package engine

import (
	"fmt"
	"sort"

	"github.com/imprintworks/imprintd/internal/collection"
	"github.com/imprintworks/imprintd/internal/events"
	"github.com/imprintworks/imprintd/internal/registry"
	"github.com/imprintworks/imprintd/internal/storage"
	"github.com/imprintworks/imprintd/pkg/fees"
	"github.com/imprintworks/imprintd/pkg/types"
)

// Purchase mints amount units of a type directly to the buyer at the
// type's primary price. The type must be active and already revealed
// (not collection-gated). Supply is reserved before payment moves, so a
// failed payment unwinds the whole call.
func (e *Engine) Purchase(buyer types.Address, id types.TokenID, amount uint64) error {
	return e.call("purchase", func(tx storage.Tx, rec *events.Recorder, _ uint64) error {
		if buyer.IsZero() {
			return fmt.Errorf("%w: zero buyer", ErrInvalidParameter)
		}
		t, err := e.registry.Get(tx, id)
		if err != nil {
			return err
		}
		if !t.Active {
			return fmt.Errorf("%w: token %s", registry.ErrTokenInactive, id)
		}
		if t.CollectionOnly {
			return fmt.Errorf("%w: token %s", registry.ErrCollectionOnly, id)
		}

		total, err := fees.Mul(t.PrimaryPrice, amount)
		if err != nil {
			return fmt.Errorf("%w: price overflow", ErrInvalidParameter)
		}
		if err := e.registry.ReserveSupply(tx, t, amount); err != nil {
			return err
		}

		platformBps, err := e.platformBps(tx)
		if err != nil {
			return err
		}
		platformFee, creatorRevenue, err := fees.SplitPrimary(total, platformBps)
		if err != nil {
			return err
		}
		if err := e.payPrimary(buyer, t.Creator, platformFee, creatorRevenue, tx); err != nil {
			return err
		}

		if err := e.ledger.Mint(tx, rec, buyer, id, amount, buyer); err != nil {
			return err
		}
		e.metrics.AddMinted(float64(amount))
		rec.Emit(events.KindPurchased, PurchasedEvent{
			TokenID:        id,
			Buyer:          buyer,
			Amount:         amount,
			TotalPrice:     total,
			PlatformFee:    platformFee,
			CreatorRevenue: creatorRevenue,
		})
		return nil
	})
}

// payPrimary disburses a primary-sale total straight from the payer: fee
// share to the treasury, the rest to the revenue recipient. Free mints
// move nothing.
func (e *Engine) payPrimary(payer, recipient types.Address, platformFee, revenue uint64, tx storage.Tx) error {
	if platformFee > 0 {
		treasury, err := e.treasury(tx)
		if err != nil {
			return err
		}
		if err := e.asset.TransferFrom(payer, treasury, platformFee); err != nil {
			return fmt.Errorf("platform fee: %w", err)
		}
	}
	if revenue > 0 {
		if err := e.asset.TransferFrom(payer, recipient, revenue); err != nil {
			return fmt.Errorf("creator revenue: %w", err)
		}
	}
	return nil
}

// AdminMint mints promo-reserve units of a type to a recipient for free.
// Owner only; bounded by the type's promo reserve and its supply, and
// blocked once the type's admin mint is locked.
func (e *Engine) AdminMint(caller, to types.Address, id types.TokenID, amount uint64) error {
	return e.call("admin_mint", func(tx storage.Tx, rec *events.Recorder, _ uint64) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		if to.IsZero() {
			return fmt.Errorf("%w: zero recipient", ErrInvalidParameter)
		}
		t, err := e.registry.Get(tx, id)
		if err != nil {
			return err
		}
		if err := e.registry.ReservePromoSupply(tx, t, amount); err != nil {
			return err
		}
		if err := e.ledger.Mint(tx, rec, to, id, amount, caller); err != nil {
			return err
		}
		e.metrics.AddMinted(float64(amount))
		rec.Emit(events.KindAdminMinted, AdminMintedEvent{TokenID: id, Recipient: to, Amount: amount})
		return nil
	})
}

// MintFromCollection performs amount weighted blind draws from a
// collection and mints the results to the minter. Payment is the
// collection's mint price per unit; a zero price skips settlement
// entirely. Each draw re-evaluates eligibility, so a type selling out
// mid-call drops from later draws, and a fully exhausted pool aborts the
// whole call. Supply for every draw is reserved before payment moves,
// so an aborted call never touches the minter's currency.
func (e *Engine) MintFromCollection(minter types.Address, id types.CollectionID, amount uint64) error {
	return e.call("mint_from_collection", func(tx storage.Tx, rec *events.Recorder, now uint64) error {
		if minter.IsZero() {
			return fmt.Errorf("%w: zero minter", ErrInvalidParameter)
		}
		if amount == 0 {
			return fmt.Errorf("%w: zero amount", ErrInvalidParameter)
		}
		c, err := e.collections.Get(tx, id)
		if err != nil {
			return err
		}
		if !c.Active {
			return fmt.Errorf("%w: collection %s", collection.ErrInactive, id)
		}
		if err := e.collections.AuthorizeClaim(tx, c, minter, amount); err != nil {
			return err
		}

		total, err := fees.Mul(c.MintPrice, amount)
		if err != nil {
			return fmt.Errorf("%w: price overflow", ErrInvalidParameter)
		}

		counts := make(map[types.TokenID]uint64)
		for i := uint64(0); i < amount; i++ {
			pool, totalWeight, err := collection.EligiblePool(tx, e.registry, c)
			if err != nil {
				return err
			}
			if totalWeight == 0 {
				return fmt.Errorf("%w: collection %s", collection.ErrSoldOut, id)
			}
			roll := e.selector.Roll(minter, now, totalWeight)
			picked := collection.Pick(pool, roll)

			t, err := e.registry.Get(tx, picked)
			if err != nil {
				return err
			}
			if err := e.registry.ReserveSupply(tx, t, 1); err != nil {
				return err
			}
			counts[picked]++
		}
		if err := e.selector.Save(tx); err != nil {
			return err
		}

		// Every draw has reserved its unit, so the pool cannot abort the
		// call past this point. External transfers are irrevocable and
		// must not run before it.
		if total > 0 {
			platformBps, err := e.platformBps(tx)
			if err != nil {
				return err
			}
			platformFee, creatorRevenue, err := fees.SplitPrimary(total, platformBps)
			if err != nil {
				return err
			}
			if err := e.payPrimary(minter, c.Creator, platformFee, creatorRevenue, tx); err != nil {
				return err
			}
		}

		mints := make([]MintCount, 0, len(counts))
		for tid, n := range counts {
			mints = append(mints, MintCount{TokenID: tid, Amount: n})
		}
		sort.Slice(mints, func(i, j int) bool { return mints[i].TokenID < mints[j].TokenID })
		for _, m := range mints {
			if err := e.ledger.Mint(tx, rec, minter, m.TokenID, m.Amount, minter); err != nil {
				return err
			}
		}

		e.metrics.AddMinted(float64(amount))
		rec.Emit(events.KindCollectionMinted, CollectionMintedEvent{
			CollectionID: id,
			Minter:       minter,
			Amount:       amount,
			TotalPaid:    total,
			Mints:        mints,
		})
		return nil
	})
}
