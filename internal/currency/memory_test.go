package currency

import (
	"errors"
	"testing"

	"github.com/imprintworks/imprintd/pkg/types"
)

var (
	engineAddr = types.Address{0xEE}
	alice      = types.Address{0x0A}
	bob        = types.Address{0x0B}
)

func TestMemoryAsset_TransferFrom(t *testing.T) {
	asset := NewMemoryAsset(engineAddr)
	asset.Credit(alice, 100)
	asset.Approve(alice, engineAddr, 60)

	if err := asset.TransferFrom(alice, bob, 40); err != nil {
		t.Fatalf("TransferFrom: %v", err)
	}

	if bal, _ := asset.BalanceOf(alice); bal != 60 {
		t.Errorf("alice balance = %d, want 60", bal)
	}
	if bal, _ := asset.BalanceOf(bob); bal != 40 {
		t.Errorf("bob balance = %d, want 40", bal)
	}
	if allow, _ := asset.Allowance(alice, engineAddr); allow != 20 {
		t.Errorf("allowance = %d, want 20", allow)
	}
}

func TestMemoryAsset_TransferFrom_Insufficient(t *testing.T) {
	asset := NewMemoryAsset(engineAddr)
	asset.Credit(alice, 10)
	asset.Approve(alice, engineAddr, 5)

	if err := asset.TransferFrom(alice, bob, 6); !errors.Is(err, ErrInsufficientAllowance) {
		t.Errorf("expected ErrInsufficientAllowance, got %v", err)
	}

	asset.Approve(alice, engineAddr, 100)
	if err := asset.TransferFrom(alice, bob, 11); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestMemoryAsset_Transfer(t *testing.T) {
	asset := NewMemoryAsset(engineAddr)
	asset.Credit(engineAddr, 30)

	if err := asset.Transfer(bob, 30); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if bal, _ := asset.BalanceOf(bob); bal != 30 {
		t.Errorf("bob balance = %d, want 30", bal)
	}

	if err := asset.Transfer(bob, 1); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds, got %v", err)
	}
}
