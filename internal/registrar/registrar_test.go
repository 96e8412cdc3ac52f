package registrar

import (
	"errors"
	"testing"

	"github.com/imprintworks/imprintd/internal/registry"
	"github.com/imprintworks/imprintd/internal/storage"
	"github.com/imprintworks/imprintd/pkg/crypto"
	"github.com/imprintworks/imprintd/pkg/types"
)

func newTestRegistrar(t *testing.T) (*Registrar, *crypto.PrivateKey, *storage.MemoryDB) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	reg := New(DomainSeparator("testnet"), registry.New())
	return reg, key, storage.NewMemory()
}

func signedParams(creator types.Address) *SignedParams {
	return &SignedParams{
		Creator:      creator,
		MetadataURI:  "ipfs://bafy.../meta.json",
		MaxSupply:    100,
		PrimaryPrice: 10,
		RoyaltyBps:   500,
		ContentHash:  types.Hash{0x01},
		Deadline:     1000,
	}
}

func sign(t *testing.T, r *Registrar, tx storage.Tx, key *crypto.PrivateKey, p *SignedParams) []byte {
	t.Helper()
	nonce, err := r.Nonce(tx, p.Creator)
	if err != nil {
		t.Fatalf("Nonce: %v", err)
	}
	digest := r.Digest(p, nonce)
	sig, err := key.Sign(digest[:])
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return sig
}

func TestRegister_Valid(t *testing.T) {
	r, key, db := newTestRegistrar(t)
	p := signedParams(key.Address())

	db.Update(func(tx storage.Tx) error {
		sig := sign(t, r, tx, key, p)
		typ, err := r.Register(tx, 500, p, sig, 250)
		if err != nil {
			t.Fatalf("Register: %v", err)
		}
		if typ.Creator != key.Address() {
			t.Errorf("creator = %s, want signer", typ.Creator)
		}
		if typ.PromoReserve != 0 {
			t.Errorf("promo reserve = %d, want 0", typ.PromoReserve)
		}

		nonce, _ := r.Nonce(tx, p.Creator)
		if nonce != 1 {
			t.Errorf("nonce = %d, want 1", nonce)
		}
		return nil
	})
}

func TestRegister_ReplayRejected(t *testing.T) {
	r, key, db := newTestRegistrar(t)
	p := signedParams(key.Address())

	var sig []byte
	db.Update(func(tx storage.Tx) error {
		sig = sign(t, r, tx, key, p)
		if _, err := r.Register(tx, 500, p, sig, 0); err != nil {
			t.Fatalf("first Register: %v", err)
		}
		return nil
	})

	// Resubmitting the identical payload+signature must fail: the nonce
	// advanced, so the recomputed digest no longer matches the signature.
	err := db.Update(func(tx storage.Tx) error {
		_, err := r.Register(tx, 500, p, sig, 0)
		return err
	})
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature on replay, got %v", err)
	}
}

func TestRegister_UsedDigestRejected(t *testing.T) {
	r, key, db := newTestRegistrar(t)
	p := signedParams(key.Address())

	err := db.Update(func(tx storage.Tx) error {
		nonce, _ := r.Nonce(tx, p.Creator)
		digest := r.Digest(p, nonce)
		// Simulate a consumed digest with an unchanged nonce.
		if err := tx.Put(digestKey(digest), []byte{0x01}); err != nil {
			return err
		}
		sig, err := key.Sign(digest[:])
		if err != nil {
			return err
		}
		_, err = r.Register(tx, 500, p, sig, 0)
		return err
	})
	if !errors.Is(err, ErrSignatureReplayed) {
		t.Fatalf("expected ErrSignatureReplayed, got %v", err)
	}
}

func TestRegister_DeadlineExpired(t *testing.T) {
	r, key, db := newTestRegistrar(t)
	p := signedParams(key.Address())

	err := db.Update(func(tx storage.Tx) error {
		sig := sign(t, r, tx, key, p)
		_, err := r.Register(tx, p.Deadline+1, p, sig, 0)
		return err
	})
	if !errors.Is(err, ErrDeadlineExpired) {
		t.Fatalf("expected ErrDeadlineExpired, got %v", err)
	}
}

func TestRegister_WrongSigner(t *testing.T) {
	r, key, db := newTestRegistrar(t)
	other, _ := crypto.GenerateKey()
	p := signedParams(key.Address())

	err := db.Update(func(tx storage.Tx) error {
		sig := sign(t, r, tx, other, p) // Signed by the wrong key.
		_, err := r.Register(tx, 500, p, sig, 0)
		return err
	})
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestRegister_TamperedPayload(t *testing.T) {
	r, key, db := newTestRegistrar(t)
	p := signedParams(key.Address())

	err := db.Update(func(tx storage.Tx) error {
		sig := sign(t, r, tx, key, p)
		p.PrimaryPrice = 1 // Tampered after signing.
		_, err := r.Register(tx, 500, p, sig, 0)
		return err
	})
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestDigest_DomainSeparation(t *testing.T) {
	key, _ := crypto.GenerateKey()
	p := signedParams(key.Address())

	mainnet := New(DomainSeparator("mainnet"), registry.New())
	testnet := New(DomainSeparator("testnet"), registry.New())

	if mainnet.Digest(p, 0) == testnet.Digest(p, 0) {
		t.Error("digests should differ across networks")
	}
	if mainnet.Digest(p, 0) == mainnet.Digest(p, 1) {
		t.Error("digests should differ across nonces")
	}
}
