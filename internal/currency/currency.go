// Package currency defines the settlement-asset boundary.
//
// The engine consumes this interface; it never implements the currency
// itself. Payment failures surface as errors that abort the calling
// operation, and any implementation may re-enter the engine, which is why
// engine entry points carry a re-entrancy latch.
package currency

import (
	"errors"

	"github.com/imprintworks/imprintd/pkg/types"
)

// Settlement errors an Asset implementation is expected to return.
var (
	ErrInsufficientFunds     = errors.New("currency: insufficient funds")
	ErrInsufficientAllowance = errors.New("currency: insufficient allowance")
)

// Asset is the currency-transfer interface for the settlement asset.
type Asset interface {
	// TransferFrom moves amount from from's account to to's account,
	// consuming the engine's allowance granted by from.
	TransferFrom(from, to types.Address, amount uint64) error
	// Transfer moves amount out of the engine's own account.
	Transfer(to types.Address, amount uint64) error
	// Allowance returns the amount owner has approved spender to move.
	Allowance(owner, spender types.Address) (uint64, error)
	// BalanceOf returns owner's spendable balance.
	BalanceOf(owner types.Address) (uint64, error)
}
