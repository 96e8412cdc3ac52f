package currency

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/imprintworks/imprintd/internal/storage"
	"github.com/imprintworks/imprintd/pkg/types"
)

// ErrBalanceOverflow is returned when a credit or transfer would overflow
// the recipient's uint64 balance.
var ErrBalanceOverflow = errors.New("currency: balance overflow")

// StoreAsset implements Asset on a storage.DB. It is the settlement asset
// used by standalone daemon runs, where no external currency host exists.
//
// Each call runs in its own storage transaction, separate from any engine
// transaction that triggered it. That matches the boundary semantics the
// engine assumes: a completed external transfer does not roll back when
// the engine's own transaction aborts, so the engine orders asset calls
// after its point of no return.
//
// The asset needs its own DB handle. Sharing the engine's storage.MemoryDB
// deadlocks, since MemoryDB serializes transactions with a mutex and the
// engine invokes the asset mid-transaction.
type StoreAsset struct {
	db     storage.DB
	engine types.Address
}

// NewStoreAsset creates a persistent asset whose Transfer calls debit the
// engine address's own account.
func NewStoreAsset(db storage.DB, engine types.Address) *StoreAsset {
	return &StoreAsset{db: db, engine: engine}
}

func balanceKey(owner types.Address) []byte {
	return append([]byte("cur/bal/"), owner[:]...)
}

func allowanceKey(owner, spender types.Address) []byte {
	k := append([]byte("cur/alw/"), owner[:]...)
	return append(k, spender[:]...)
}

func getAmount(tx storage.Tx, key []byte) (uint64, error) {
	v, err := tx.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(v) != 8 {
		return 0, fmt.Errorf("currency: corrupt amount at %q", key)
	}
	return binary.BigEndian.Uint64(v), nil
}

func putAmount(tx storage.Tx, key []byte, amount uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], amount)
	return tx.Put(key, buf[:])
}

// Credit adds amount to an account.
func (a *StoreAsset) Credit(owner types.Address, amount uint64) error {
	return a.db.Update(func(tx storage.Tx) error {
		bal, err := getAmount(tx, balanceKey(owner))
		if err != nil {
			return err
		}
		if bal+amount < bal {
			return ErrBalanceOverflow
		}
		return putAmount(tx, balanceKey(owner), bal+amount)
	})
}

// Approve sets the allowance (owner -> spender).
func (a *StoreAsset) Approve(owner, spender types.Address, amount uint64) error {
	return a.db.Update(func(tx storage.Tx) error {
		return putAmount(tx, allowanceKey(owner, spender), amount)
	})
}

// TransferFrom moves amount from from to to, consuming the engine's allowance.
func (a *StoreAsset) TransferFrom(from, to types.Address, amount uint64) error {
	return a.db.Update(func(tx storage.Tx) error {
		allowed, err := getAmount(tx, allowanceKey(from, a.engine))
		if err != nil {
			return err
		}
		if allowed < amount {
			return ErrInsufficientAllowance
		}
		if err := move(tx, from, to, amount); err != nil {
			return err
		}
		return putAmount(tx, allowanceKey(from, a.engine), allowed-amount)
	})
}

// Transfer moves amount from the engine's own account to to.
func (a *StoreAsset) Transfer(to types.Address, amount uint64) error {
	return a.db.Update(func(tx storage.Tx) error {
		return move(tx, a.engine, to, amount)
	})
}

func move(tx storage.Tx, from, to types.Address, amount uint64) error {
	fromBal, err := getAmount(tx, balanceKey(from))
	if err != nil {
		return err
	}
	if fromBal < amount {
		return ErrInsufficientFunds
	}
	toBal, err := getAmount(tx, balanceKey(to))
	if err != nil {
		return err
	}
	if from == to {
		return nil
	}
	if toBal+amount < toBal {
		return ErrBalanceOverflow
	}
	if err := putAmount(tx, balanceKey(from), fromBal-amount); err != nil {
		return err
	}
	return putAmount(tx, balanceKey(to), toBal+amount)
}

// Allowance returns the (owner, spender) allowance.
func (a *StoreAsset) Allowance(owner, spender types.Address) (uint64, error) {
	var amount uint64
	err := a.db.View(func(tx storage.Tx) error {
		var err error
		amount, err = getAmount(tx, allowanceKey(owner, spender))
		return err
	})
	return amount, err
}

// BalanceOf returns owner's balance.
func (a *StoreAsset) BalanceOf(owner types.Address) (uint64, error) {
	var amount uint64
	err := a.db.View(func(tx storage.Tx) error {
		var err error
		amount, err = getAmount(tx, balanceKey(owner))
		return err
	})
	return amount, err
}
