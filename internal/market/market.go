// Package market implements the escrow-based secondary market. Sellers
// move units into the market's own custody when listing; purchases settle
// currency first and release escrowed units last, with listing and escrow
// accounting decremented before any external payment call so re-entry can
// never double-spend the same escrowed units.
package market

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/imprintworks/imprintd/internal/currency"
	"github.com/imprintworks/imprintd/internal/events"
	"github.com/imprintworks/imprintd/internal/ledger"
	"github.com/imprintworks/imprintd/internal/registry"
	"github.com/imprintworks/imprintd/internal/storage"
	"github.com/imprintworks/imprintd/pkg/fees"
	"github.com/imprintworks/imprintd/pkg/types"
)

// Market errors.
var (
	ErrInvalidParameter   = errors.New("market: invalid parameter")
	ErrNotListed          = errors.New("market: no active listing")
	ErrListingExpired     = errors.New("market: listing expired")
	ErrPriceMismatch      = errors.New("market: merge requires identical unit price")
	ErrInsufficientListed = errors.New("market: insufficient listed amount")
	ErrSelfPurchase       = errors.New("market: cannot buy own listing")
	ErrSlippageExceeded   = errors.New("market: total price exceeds buyer bound")
	ErrInvalidFeeSplit    = errors.New("market: royalty plus fee exceeds sale total")
)

var prefixListing = []byte("l/") // l/<tokenID(8,BE)><seller(20)> -> Listing JSON

// Listing is one seller's active offer for a token type. While it exists,
// the market's custody balance covers Amount units on the seller's behalf.
type Listing struct {
	TokenID   types.TokenID `json:"tokenId"`
	Seller    types.Address `json:"seller"`
	Amount    uint64        `json:"amount"`
	UnitPrice uint64        `json:"unitPrice"`
	Expiry    uint64        `json:"expiry"` // Unix seconds, 0 = none.
}

// Expired reports whether the listing has lapsed at the given call time.
func (l *Listing) Expired(now uint64) bool {
	return l.Expiry != 0 && now > l.Expiry
}

// ListedEvent is the payload of events.KindListed.
type ListedEvent struct {
	TokenID   types.TokenID `json:"tokenId"`
	Seller    types.Address `json:"seller"`
	Added     uint64        `json:"added"`
	Total     uint64        `json:"total"`
	UnitPrice uint64        `json:"unitPrice"`
	Expiry    uint64        `json:"expiry"`
}

// CancelledEvent is the payload of events.KindListingCancelled.
type CancelledEvent struct {
	TokenID  types.TokenID `json:"tokenId"`
	Seller   types.Address `json:"seller"`
	Returned uint64        `json:"returned"`
}

// BoughtEvent is the payload of events.KindBought.
type BoughtEvent struct {
	TokenID     types.TokenID `json:"tokenId"`
	Seller      types.Address `json:"seller"`
	Buyer       types.Address `json:"buyer"`
	Amount      uint64        `json:"amount"`
	TotalPaid   uint64        `json:"totalPaid"`
	Royalty     uint64        `json:"royalty"`
	PlatformFee uint64        `json:"platformFee"`
	Proceeds    uint64        `json:"sellerProceeds"`
}

// Market owns the listing lifecycle. Balances stay with the ledger; the
// market only moves them into and out of its custody address.
type Market struct {
	ledger *ledger.Ledger
}

// New creates a market over the given ledger.
func New(l *ledger.Ledger) *Market {
	return &Market{ledger: l}
}

// Listing returns a seller's listing for a token, or ErrNotListed.
func (m *Market) Listing(tx storage.Tx, id types.TokenID, seller types.Address) (*Listing, error) {
	data, err := tx.Get(listingKey(id, seller))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: token %s seller %s", ErrNotListed, id, seller)
	}
	if err != nil {
		return nil, err
	}
	var l Listing
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("listing unmarshal: %w", err)
	}
	return &l, nil
}

// List escrows amount units from the seller and creates or grows the
// seller's listing. Merging into an existing listing requires the same
// unit price (listings cannot silently reprice) and adopts the new expiry.
func (m *Market) List(tx storage.Tx, rec *events.Recorder, seller types.Address, id types.TokenID, amount, unitPrice, expiry, now uint64) error {
	switch {
	case amount == 0:
		return fmt.Errorf("%w: zero amount", ErrInvalidParameter)
	case unitPrice == 0:
		return fmt.Errorf("%w: zero unit price", ErrInvalidParameter)
	case expiry != 0 && expiry <= now:
		return fmt.Errorf("%w: expiry %d already past", ErrInvalidParameter, expiry)
	}

	l, err := m.Listing(tx, id, seller)
	if errors.Is(err, ErrNotListed) {
		l = &Listing{TokenID: id, Seller: seller, UnitPrice: unitPrice}
	} else if err != nil {
		return err
	} else if l.UnitPrice != unitPrice {
		return fmt.Errorf("%w: listed at %d, got %d", ErrPriceMismatch, l.UnitPrice, unitPrice)
	}

	if l.Amount > ^uint64(0)-amount {
		return fmt.Errorf("%w: listing amount overflow", ErrInvalidParameter)
	}

	// Escrow the units first; an insufficient balance aborts here.
	if err := m.ledger.Transfer(tx, rec, seller, m.ledger.Market(), id, amount, seller); err != nil {
		return err
	}

	l.Amount += amount
	l.Expiry = expiry
	if err := m.put(tx, l); err != nil {
		return err
	}

	rec.Emit(events.KindListed, ListedEvent{
		TokenID:   id,
		Seller:    seller,
		Added:     amount,
		Total:     l.Amount,
		UnitPrice: l.UnitPrice,
		Expiry:    l.Expiry,
	})
	return nil
}

// Cancel returns the full escrowed amount to the seller and deletes the
// listing. Fails with ErrNotListed if none is active.
func (m *Market) Cancel(tx storage.Tx, rec *events.Recorder, seller types.Address, id types.TokenID) error {
	l, err := m.Listing(tx, id, seller)
	if err != nil {
		return err
	}

	if err := tx.Delete(listingKey(id, seller)); err != nil {
		return err
	}
	if err := m.ledger.Transfer(tx, rec, m.ledger.Market(), seller, id, l.Amount, seller); err != nil {
		return err
	}

	rec.Emit(events.KindListingCancelled, CancelledEvent{
		TokenID:  id,
		Seller:   seller,
		Returned: l.Amount,
	})
	return nil
}

// Buy executes an escrow purchase: currency settles from the buyer to
// creator (royalty), treasury (platform fee) and seller (remainder), and
// the escrowed units transfer to the buyer last.
//
// maxTotalPrice bounds slippage: the listing's unit price is read at call
// time and may differ from what the buyer observed off-chain.
func (m *Market) Buy(tx storage.Tx, rec *events.Recorder, buyer, seller types.Address, typ *registry.ImprintType, amount, maxTotalPrice uint64, secondaryFeeBps uint32, treasury types.Address, asset currency.Asset, now uint64) error {
	switch {
	case seller.IsZero():
		return fmt.Errorf("%w: zero seller", ErrInvalidParameter)
	case buyer == seller:
		return ErrSelfPurchase
	case amount == 0:
		return fmt.Errorf("%w: zero amount", ErrInvalidParameter)
	}

	l, err := m.Listing(tx, typ.ID, seller)
	if err != nil {
		return err
	}
	if l.Expired(now) {
		return fmt.Errorf("%w: expired at %d, now %d", ErrListingExpired, l.Expiry, now)
	}
	if amount > l.Amount {
		return fmt.Errorf("%w: listed %d, requested %d", ErrInsufficientListed, l.Amount, amount)
	}

	totalPaid, err := fees.Mul(l.UnitPrice, amount)
	if err != nil {
		return fmt.Errorf("%w: price overflow", ErrInvalidParameter)
	}
	if totalPaid > maxTotalPrice {
		return fmt.Errorf("%w: total %d, bound %d", ErrSlippageExceeded, totalPaid, maxTotalPrice)
	}

	royalty, platformFee, proceeds, err := fees.SplitSecondary(totalPaid, typ.RoyaltyBps, secondaryFeeBps)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFeeSplit, err)
	}

	// Settlement runs as separate external legs that cannot be unwound,
	// so the buyer must cover the whole total before the first leg moves.
	if totalPaid > 0 {
		allowed, err := asset.Allowance(buyer, m.ledger.Market())
		if err != nil {
			return fmt.Errorf("allowance check: %w", err)
		}
		if allowed < totalPaid {
			return fmt.Errorf("%w: approved %d, total %d", currency.ErrInsufficientAllowance, allowed, totalPaid)
		}
		bal, err := asset.BalanceOf(buyer)
		if err != nil {
			return fmt.Errorf("balance check: %w", err)
		}
		if bal < totalPaid {
			return fmt.Errorf("%w: balance %d, total %d", currency.ErrInsufficientFunds, bal, totalPaid)
		}
	}

	// Decrement listing state before any external payment call.
	l.Amount -= amount
	if l.Amount == 0 {
		if err := tx.Delete(listingKey(typ.ID, seller)); err != nil {
			return err
		}
	} else {
		if err := m.put(tx, l); err != nil {
			return err
		}
	}

	if royalty > 0 {
		if err := asset.TransferFrom(buyer, typ.Creator, royalty); err != nil {
			return fmt.Errorf("royalty payment: %w", err)
		}
	}
	if platformFee > 0 {
		if err := asset.TransferFrom(buyer, treasury, platformFee); err != nil {
			return fmt.Errorf("platform fee payment: %w", err)
		}
	}
	if proceeds > 0 {
		if err := asset.TransferFrom(buyer, seller, proceeds); err != nil {
			return fmt.Errorf("seller payment: %w", err)
		}
	}

	// Escrowed tokens transfer to the buyer last.
	if err := m.ledger.Transfer(tx, rec, m.ledger.Market(), buyer, typ.ID, amount, buyer); err != nil {
		return err
	}

	rec.Emit(events.KindBought, BoughtEvent{
		TokenID:     typ.ID,
		Seller:      seller,
		Buyer:       buyer,
		Amount:      amount,
		TotalPaid:   totalPaid,
		Royalty:     royalty,
		PlatformFee: platformFee,
		Proceeds:    proceeds,
	})
	return nil
}

func (m *Market) put(tx storage.Tx, l *Listing) error {
	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("listing marshal: %w", err)
	}
	return tx.Put(listingKey(l.TokenID, l.Seller), data)
}

func listingKey(id types.TokenID, seller types.Address) []byte {
	key := make([]byte, len(prefixListing)+types.IDSize+types.AddressSize)
	copy(key, prefixListing)
	copy(key[len(prefixListing):], id.Bytes())
	copy(key[len(prefixListing)+types.IDSize:], seller[:])
	return key
}
