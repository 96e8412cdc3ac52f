package ledger

import (
	"errors"
	"math"
	"testing"

	"github.com/imprintworks/imprintd/internal/events"
	"github.com/imprintworks/imprintd/internal/storage"
	"github.com/imprintworks/imprintd/pkg/types"
)

var (
	marketAddr = types.Address{0xFF, 0xEE}
	alice      = types.Address{0x0A}
	bob        = types.Address{0x0B}
	operator   = types.Address{0x0F}
)

const tok = types.TokenID(7)

func TestLedger_MintBurnBalance(t *testing.T) {
	db := storage.NewMemory()
	l := New(marketAddr)

	err := db.Update(func(tx storage.Tx) error {
		rec := events.NewRecorder(1)
		if err := l.Mint(tx, rec, alice, tok, 10, operator); err != nil {
			return err
		}
		if err := l.Burn(tx, rec, alice, tok, 3, alice); err != nil {
			return err
		}
		bal, err := l.Balance(tx, alice, tok)
		if err != nil {
			return err
		}
		if bal != 7 {
			t.Errorf("balance = %d, want 7", bal)
		}
		owns, _ := l.Owns(tx, alice, tok)
		if !owns {
			t.Error("alice should own the token")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
}

func TestLedger_BurnInsufficient(t *testing.T) {
	db := storage.NewMemory()
	l := New(marketAddr)

	err := db.Update(func(tx storage.Tx) error {
		rec := events.NewRecorder(1)
		if err := l.Mint(tx, rec, alice, tok, 2, operator); err != nil {
			return err
		}
		return l.Burn(tx, rec, alice, tok, 3, alice)
	})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestLedger_Transfer(t *testing.T) {
	db := storage.NewMemory()
	l := New(marketAddr)

	db.Update(func(tx storage.Tx) error {
		rec := events.NewRecorder(1)
		l.Mint(tx, rec, alice, tok, 10, operator)
		if err := l.Transfer(tx, rec, alice, bob, tok, 4, alice); err != nil {
			t.Fatalf("Transfer: %v", err)
		}

		aBal, _ := l.Balance(tx, alice, tok)
		bBal, _ := l.Balance(tx, bob, tok)
		if aBal != 6 || bBal != 4 {
			t.Errorf("balances = %d, %d; want 6, 4", aBal, bBal)
		}

		// Mint event + transferOut + transferIn.
		if got := len(rec.Pending()); got != 3 {
			t.Errorf("got %d events, want 3", got)
		}
		return nil
	})
}

func TestLedger_PauseGate(t *testing.T) {
	db := storage.NewMemory()
	l := New(marketAddr)

	db.Update(func(tx storage.Tx) error {
		rec := events.NewRecorder(1)
		l.Mint(tx, rec, alice, tok, 10, operator)
		if err := l.SetPaused(tx, true); err != nil {
			t.Fatalf("SetPaused: %v", err)
		}

		// Peer-to-peer transfer blocked.
		if err := l.Transfer(tx, rec, alice, bob, tok, 1, alice); !errors.Is(err, ErrTransfersPaused) {
			t.Errorf("expected ErrTransfersPaused, got %v", err)
		}

		// Escrow transfers (either side the market) still pass.
		if err := l.Transfer(tx, rec, alice, marketAddr, tok, 2, alice); err != nil {
			t.Errorf("escrow in while paused: %v", err)
		}
		if err := l.Transfer(tx, rec, marketAddr, alice, tok, 2, alice); err != nil {
			t.Errorf("escrow out while paused: %v", err)
		}

		// Mint and burn are from-zero/to-zero and stay allowed.
		if err := l.Mint(tx, rec, bob, tok, 1, operator); err != nil {
			t.Errorf("mint while paused: %v", err)
		}
		if err := l.Burn(tx, rec, bob, tok, 1, bob); err != nil {
			t.Errorf("burn while paused: %v", err)
		}

		// Unpause restores transfers.
		l.SetPaused(tx, false)
		if err := l.Transfer(tx, rec, alice, bob, tok, 1, alice); err != nil {
			t.Errorf("transfer after unpause: %v", err)
		}
		return nil
	})
}

func TestLedger_MarketEventsSuppressed(t *testing.T) {
	db := storage.NewMemory()
	l := New(marketAddr)

	db.Update(func(tx storage.Tx) error {
		mintRec := events.NewRecorder(1)
		l.Mint(tx, mintRec, alice, tok, 10, operator)

		rec := events.NewRecorder(1)
		if err := l.Transfer(tx, rec, alice, marketAddr, tok, 5, alice); err != nil {
			t.Fatalf("Transfer: %v", err)
		}

		// Only alice's transferOut leg; the market's transferIn is suppressed.
		pending := rec.Pending()
		if len(pending) != 1 {
			t.Fatalf("got %d events, want 1", len(pending))
		}
		bc := pending[0].Payload.(events.BalanceChange)
		if bc.Account != alice || bc.Change != events.ChangeTransferOut {
			t.Errorf("unexpected event: %+v", bc)
		}
		if bc.Counterparty != marketAddr {
			t.Errorf("counterparty = %s, want market", bc.Counterparty)
		}
		return nil
	})
}

func TestLedger_ZeroArguments(t *testing.T) {
	db := storage.NewMemory()
	l := New(marketAddr)

	db.Update(func(tx storage.Tx) error {
		rec := events.NewRecorder(1)
		if err := l.Mint(tx, rec, types.Address{}, tok, 1, operator); !errors.Is(err, ErrZeroAddress) {
			t.Errorf("mint to zero: %v", err)
		}
		if err := l.Mint(tx, rec, alice, tok, 0, operator); !errors.Is(err, ErrZeroAmount) {
			t.Errorf("mint zero amount: %v", err)
		}
		l.Mint(tx, rec, alice, tok, 1, operator)
		if err := l.Transfer(tx, rec, alice, types.Address{}, tok, 1, alice); !errors.Is(err, ErrZeroAddress) {
			t.Errorf("transfer to zero: %v", err)
		}
		return nil
	})
}

func TestLedger_CreditOverflow(t *testing.T) {
	db := storage.NewMemory()
	l := New(marketAddr)

	err := db.Update(func(tx storage.Tx) error {
		rec := events.NewRecorder(1)
		if err := l.Mint(tx, rec, alice, tok, math.MaxUint64, operator); err != nil {
			return err
		}
		return l.Mint(tx, rec, alice, tok, 1, operator)
	})
	if !errors.Is(err, ErrBalanceOverflow) {
		t.Fatalf("expected ErrBalanceOverflow, got %v", err)
	}
}
