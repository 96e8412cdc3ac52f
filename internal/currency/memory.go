package currency

import (
	"github.com/imprintworks/imprintd/pkg/types"
)

// MemoryAsset implements Asset with in-memory accounts. Intended for tests
// and local single-node runs.
type MemoryAsset struct {
	engine     types.Address
	balances   map[types.Address]uint64
	allowances map[[2]types.Address]uint64 // (owner, spender) -> amount
}

// NewMemoryAsset creates an asset whose Transfer calls debit the engine
// address's own account.
func NewMemoryAsset(engine types.Address) *MemoryAsset {
	return &MemoryAsset{
		engine:     engine,
		balances:   make(map[types.Address]uint64),
		allowances: make(map[[2]types.Address]uint64),
	}
}

// Credit adds amount to an account. Test setup helper.
func (a *MemoryAsset) Credit(owner types.Address, amount uint64) {
	a.balances[owner] += amount
}

// Approve sets the allowance (owner -> spender).
func (a *MemoryAsset) Approve(owner, spender types.Address, amount uint64) {
	a.allowances[[2]types.Address{owner, spender}] = amount
}

// TransferFrom moves amount from from to to, consuming the engine's allowance.
func (a *MemoryAsset) TransferFrom(from, to types.Address, amount uint64) error {
	key := [2]types.Address{from, a.engine}
	if a.allowances[key] < amount {
		return ErrInsufficientAllowance
	}
	if a.balances[from] < amount {
		return ErrInsufficientFunds
	}
	a.allowances[key] -= amount
	a.balances[from] -= amount
	a.balances[to] += amount
	return nil
}

// Transfer moves amount from the engine's own account to to.
func (a *MemoryAsset) Transfer(to types.Address, amount uint64) error {
	if a.balances[a.engine] < amount {
		return ErrInsufficientFunds
	}
	a.balances[a.engine] -= amount
	a.balances[to] += amount
	return nil
}

// Allowance returns the (owner, spender) allowance.
func (a *MemoryAsset) Allowance(owner, spender types.Address) (uint64, error) {
	return a.allowances[[2]types.Address{owner, spender}], nil
}

// BalanceOf returns owner's balance.
func (a *MemoryAsset) BalanceOf(owner types.Address) (uint64, error) {
	return a.balances[owner], nil
}
