// Package ledger owns the balance table underlying the imprint engine:
// owner x token-type -> quantity. All balance mutations in the system go
// through Mint, Burn and Transfer here, which is also where the pause
// gate and the balance-changed event hook live.
package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/imprintworks/imprintd/internal/events"
	"github.com/imprintworks/imprintd/internal/storage"
	"github.com/imprintworks/imprintd/pkg/types"
)

// Balance mutation errors.
var (
	ErrTransfersPaused     = errors.New("ledger: peer-to-peer transfers paused")
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	ErrBalanceOverflow     = errors.New("ledger: balance overflow")
	ErrZeroAmount          = errors.New("ledger: zero amount")
	ErrZeroAddress         = errors.New("ledger: zero address")
)

var (
	prefixBalance = []byte("b/")          // b/<addr(20)><tokenID(8,BE)> -> uint64 BE
	keyPaused     = []byte("meta/paused") // present = paused
)

// Ledger is the balance accounting component. The market address is the
// engine's own escrow custody account; transfers touching it bypass the
// pause gate and are suppressed from the balance-changed event stream.
type Ledger struct {
	market types.Address
}

// New creates a ledger with the given market custody address.
func New(market types.Address) *Ledger {
	return &Ledger{market: market}
}

// Market returns the escrow custody address.
func (l *Ledger) Market() types.Address {
	return l.market
}

// Balance returns the owner's balance for a token type (0 if none).
func (l *Ledger) Balance(tx storage.Tx, owner types.Address, id types.TokenID) (uint64, error) {
	data, err := tx.Get(balanceKey(owner, id))
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("corrupt balance record for %s/%s", owner, id)
	}
	return binary.BigEndian.Uint64(data), nil
}

// Owns returns true if owner holds at least one unit of the token type.
func (l *Ledger) Owns(tx storage.Tx, owner types.Address, id types.TokenID) (bool, error) {
	bal, err := l.Balance(tx, owner, id)
	return bal > 0, err
}

// Paused reports whether peer-to-peer transfers are blocked.
func (l *Ledger) Paused(tx storage.Tx) (bool, error) {
	return tx.Has(keyPaused)
}

// SetPaused sets or clears the transfer pause flag.
func (l *Ledger) SetPaused(tx storage.Tx, paused bool) error {
	if paused {
		return tx.Put(keyPaused, []byte{0x01})
	}
	return tx.Delete(keyPaused)
}

// Mint credits newly created units to an account.
// Minting is a from-zero movement and is permitted while paused.
func (l *Ledger) Mint(tx storage.Tx, rec *events.Recorder, to types.Address, id types.TokenID, amount uint64, operator types.Address) error {
	if to.IsZero() {
		return ErrZeroAddress
	}
	if amount == 0 {
		return ErrZeroAmount
	}
	newBal, err := l.credit(tx, to, id, amount)
	if err != nil {
		return err
	}
	l.emit(rec, to, id, newBal, events.ChangeMint, types.Address{}, operator)
	return nil
}

// Burn destroys units held by an account.
// Burning is a to-zero movement and is permitted while paused.
func (l *Ledger) Burn(tx storage.Tx, rec *events.Recorder, from types.Address, id types.TokenID, amount uint64, operator types.Address) error {
	if from.IsZero() {
		return ErrZeroAddress
	}
	if amount == 0 {
		return ErrZeroAmount
	}
	newBal, err := l.debit(tx, from, id, amount)
	if err != nil {
		return err
	}
	l.emit(rec, from, id, newBal, events.ChangeBurn, types.Address{}, operator)
	return nil
}

// Transfer moves units between accounts. This is the lowest-level balance
// mutation hook, so the pause gate lives here rather than being duplicated
// per entry point: while paused, movements between two non-market accounts
// fail, but escrow transfers (either side the market) still pass.
func (l *Ledger) Transfer(tx storage.Tx, rec *events.Recorder, from, to types.Address, id types.TokenID, amount uint64, operator types.Address) error {
	if from.IsZero() || to.IsZero() {
		return ErrZeroAddress
	}
	if amount == 0 {
		return ErrZeroAmount
	}

	if from != l.market && to != l.market {
		paused, err := l.Paused(tx)
		if err != nil {
			return err
		}
		if paused {
			return ErrTransfersPaused
		}
	}

	fromBal, err := l.debit(tx, from, id, amount)
	if err != nil {
		return err
	}
	toBal, err := l.credit(tx, to, id, amount)
	if err != nil {
		return err
	}

	l.emit(rec, from, id, fromBal, events.ChangeTransferOut, to, operator)
	l.emit(rec, to, id, toBal, events.ChangeTransferIn, from, operator)
	return nil
}

// emit records a balance-changed event unless the affected account is the
// market's own escrow custody, which indexers must never see.
func (l *Ledger) emit(rec *events.Recorder, account types.Address, id types.TokenID, newBal uint64, change events.ChangeKind, counterparty, operator types.Address) {
	if rec == nil || account == l.market {
		return
	}
	rec.Emit(events.KindBalanceChanged, events.BalanceChange{
		Account:      account,
		TokenID:      id,
		NewBalance:   newBal,
		Change:       change,
		Counterparty: counterparty,
		Operator:     operator,
	})
}

func (l *Ledger) credit(tx storage.Tx, owner types.Address, id types.TokenID, amount uint64) (uint64, error) {
	bal, err := l.Balance(tx, owner, id)
	if err != nil {
		return 0, err
	}
	if bal > ^uint64(0)-amount {
		return 0, ErrBalanceOverflow
	}
	newBal := bal + amount
	if err := l.putBalance(tx, owner, id, newBal); err != nil {
		return 0, err
	}
	return newBal, nil
}

func (l *Ledger) debit(tx storage.Tx, owner types.Address, id types.TokenID, amount uint64) (uint64, error) {
	bal, err := l.Balance(tx, owner, id)
	if err != nil {
		return 0, err
	}
	if bal < amount {
		return 0, fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, bal, amount)
	}
	newBal := bal - amount
	if err := l.putBalance(tx, owner, id, newBal); err != nil {
		return 0, err
	}
	return newBal, nil
}

func (l *Ledger) putBalance(tx storage.Tx, owner types.Address, id types.TokenID, bal uint64) error {
	key := balanceKey(owner, id)
	if bal == 0 {
		return tx.Delete(key)
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], bal)
	return tx.Put(key, buf[:])
}

func balanceKey(owner types.Address, id types.TokenID) []byte {
	key := make([]byte, len(prefixBalance)+types.AddressSize+types.IDSize)
	copy(key, prefixBalance)
	copy(key[len(prefixBalance):], owner[:])
	copy(key[len(prefixBalance)+types.AddressSize:], id.Bytes())
	return key
}
