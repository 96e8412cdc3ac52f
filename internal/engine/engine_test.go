package engine

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/imprintworks/imprintd/internal/collection"
	"github.com/imprintworks/imprintd/internal/currency"
	"github.com/imprintworks/imprintd/internal/events"
	"github.com/imprintworks/imprintd/internal/ledger"
	"github.com/imprintworks/imprintd/internal/market"
	"github.com/imprintworks/imprintd/internal/registrar"
	"github.com/imprintworks/imprintd/internal/registry"
	"github.com/imprintworks/imprintd/internal/storage"
	"github.com/imprintworks/imprintd/pkg/crypto"
	"github.com/imprintworks/imprintd/pkg/types"
)

var (
	owner    = addr(0x01)
	treasury = addr(0x02)
	creator  = addr(0x03)
	alice    = addr(0x0a)
	bob      = addr(0x0b)
)

func addr(b byte) types.Address {
	var a types.Address
	a[0] = b
	return a
}

func contentHash(b byte) types.Hash {
	var h types.Hash
	h[0] = b
	return h
}

const testTime = uint64(1_700_000_000)

func newTestEngine(t *testing.T) (*Engine, *currency.MemoryAsset) {
	t.Helper()
	db := storage.NewMemory()
	asset := currency.NewMemoryAsset(MarketAddress())
	eng, err := New(db, asset, Params{
		Owner:           owner,
		Treasury:        treasury,
		PlatformFeeBps:  250, // 2.5%
		SecondaryFeeBps: 500, // 5%
		Network:         "testnet",
		Seed:            contentHash(0xee),
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	eng.SetClock(func() time.Time { return time.Unix(int64(testTime), 0) })
	return eng, asset
}

func registerType(t *testing.T, eng *Engine, p registry.RegisterParams) types.TokenID {
	t.Helper()
	if p.Creator.IsZero() {
		p.Creator = creator
	}
	if p.MetadataURI == "" {
		p.MetadataURI = "ipfs://meta"
	}
	if p.ContentHash.IsZero() {
		p.ContentHash = contentHash(0x11)
	}
	id, err := eng.RegisterTokenType(owner, p)
	if err != nil {
		t.Fatalf("RegisterTokenType: %v", err)
	}
	return id
}

// reveal clears the collection-only gate with a single promo mint so
// direct purchases work. Callers must register the type with a promo
// reserve of at least 1.
func reveal(t *testing.T, eng *Engine, id types.TokenID) {
	t.Helper()
	if err := eng.AdminMint(owner, alice, id, 1); err != nil {
		t.Fatalf("reveal admin mint: %v", err)
	}
}

func fund(asset *currency.MemoryAsset, who types.Address, amount uint64) {
	asset.Credit(who, amount)
	asset.Approve(who, MarketAddress(), amount)
}

func TestRegisterTokenType_OwnerOnly(t *testing.T) {
	eng, _ := newTestEngine(t)
	_, err := eng.RegisterTokenType(alice, registry.RegisterParams{
		Creator: creator, MetadataURI: "ipfs://m", MaxSupply: 10,
		ContentHash: contentHash(1),
	})
	if !errors.Is(err, ErrNotOwner) {
		t.Fatalf("err = %v, want ErrNotOwner", err)
	}
}

func TestPurchase_SplitsPaymentAndMints(t *testing.T) {
	eng, asset := newTestEngine(t)
	id := registerType(t, eng, registry.RegisterParams{
		MaxSupply: 100, PrimaryPrice: 1000, PromoReserve: 1,
	})
	reveal(t, eng, id)
	fund(asset, bob, 10_000)

	if err := eng.Purchase(bob, id, 4); err != nil {
		t.Fatalf("Purchase: %v", err)
	}

	// 4 * 1000 = 4000; platform 2.5% = 100, creator 3900.
	if bal, _ := asset.BalanceOf(treasury); bal != 100 {
		t.Errorf("treasury = %d, want 100", bal)
	}
	if bal, _ := asset.BalanceOf(creator); bal != 3900 {
		t.Errorf("creator = %d, want 3900", bal)
	}
	if bal, err := eng.BalanceOf(bob, id); err != nil || bal != 4 {
		t.Errorf("balance = %d (%v), want 4", bal, err)
	}
	if rem, _ := eng.RemainingSupply(id); rem != 95 { // 100 - 1 promo - 4
		t.Errorf("remaining = %d, want 95", rem)
	}
}

func TestPurchase_CollectionOnlyRejected(t *testing.T) {
	eng, asset := newTestEngine(t)
	id := registerType(t, eng, registry.RegisterParams{MaxSupply: 10, PrimaryPrice: 1})
	fund(asset, bob, 100)

	err := eng.Purchase(bob, id, 1)
	if !errors.Is(err, registry.ErrCollectionOnly) {
		t.Fatalf("err = %v, want ErrCollectionOnly", err)
	}
}

func TestPurchase_InactiveRejected(t *testing.T) {
	eng, asset := newTestEngine(t)
	id := registerType(t, eng, registry.RegisterParams{MaxSupply: 10, PromoReserve: 1})
	reveal(t, eng, id)
	if err := eng.SetTokenActive(owner, id, false); err != nil {
		t.Fatalf("SetTokenActive: %v", err)
	}
	fund(asset, bob, 100)

	if err := eng.Purchase(bob, id, 1); !errors.Is(err, registry.ErrTokenInactive) {
		t.Fatalf("err = %v, want ErrTokenInactive", err)
	}
}

func TestPurchase_PaymentFailureUnwindsEverything(t *testing.T) {
	eng, asset := newTestEngine(t)
	id := registerType(t, eng, registry.RegisterParams{
		MaxSupply: 10, PrimaryPrice: 1000, PromoReserve: 1,
	})
	reveal(t, eng, id)
	asset.Credit(bob, 10_000) // No allowance granted.

	before, _ := eng.NextEventSeq()
	err := eng.Purchase(bob, id, 2)
	if !errors.Is(err, currency.ErrInsufficientAllowance) {
		t.Fatalf("err = %v, want ErrInsufficientAllowance", err)
	}

	// Supply reservation, balances and events all rolled back.
	if rem, _ := eng.RemainingSupply(id); rem != 9 {
		t.Errorf("remaining = %d, want 9", rem)
	}
	if bal, _ := eng.BalanceOf(bob, id); bal != 0 {
		t.Errorf("balance = %d, want 0", bal)
	}
	if after, _ := eng.NextEventSeq(); after != before {
		t.Errorf("event seq moved %d -> %d on failed call", before, after)
	}
}

func TestAdminMint_PromoBoundsAndLock(t *testing.T) {
	eng, _ := newTestEngine(t)
	id := registerType(t, eng, registry.RegisterParams{MaxSupply: 10, PromoReserve: 3})

	if err := eng.AdminMint(owner, alice, id, 3); err != nil {
		t.Fatalf("AdminMint: %v", err)
	}
	if err := eng.AdminMint(owner, alice, id, 1); !errors.Is(err, registry.ErrPromoReserveExceeded) {
		t.Fatalf("err = %v, want ErrPromoReserveExceeded", err)
	}

	id2 := registerType(t, eng, registry.RegisterParams{MaxSupply: 10, PromoReserve: 5})
	if err := eng.LockAdminMint(owner, id2); err != nil {
		t.Fatalf("LockAdminMint: %v", err)
	}
	if err := eng.AdminMint(owner, alice, id2, 1); !errors.Is(err, registry.ErrAdminMintLocked) {
		t.Fatalf("err = %v, want ErrAdminMintLocked", err)
	}
}

func TestAdminMint_NotOwnerRejected(t *testing.T) {
	eng, _ := newTestEngine(t)
	id := registerType(t, eng, registry.RegisterParams{MaxSupply: 10, PromoReserve: 5})
	if err := eng.AdminMint(alice, alice, id, 1); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("err = %v, want ErrNotOwner", err)
	}
}

func TestRegisterTokenTypeWithSignature_EndToEnd(t *testing.T) {
	eng, _ := newTestEngine(t)
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	p := registrar.SignedParams{
		Creator:      key.Address(),
		MetadataURI:  "ipfs://signed",
		MaxSupply:    50,
		PrimaryPrice: 10,
		RoyaltyBps:   300,
		ContentHash:  contentHash(0x22),
		Deadline:     testTime + 3600,
	}
	digest, nonce, err := eng.RegistrationDigest(&p)
	if err != nil {
		t.Fatalf("RegistrationDigest: %v", err)
	}
	if nonce != 0 {
		t.Fatalf("nonce = %d, want 0", nonce)
	}
	sig, err := key.Sign(digest[:])
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	id, err := eng.RegisterTokenTypeWithSignature(p, sig)
	if err != nil {
		t.Fatalf("RegisterTokenTypeWithSignature: %v", err)
	}
	typ, err := eng.GetTokenType(id)
	if err != nil {
		t.Fatalf("GetTokenType: %v", err)
	}
	if typ.Creator != key.Address() || typ.RoyaltyBps != 300 || typ.PromoReserve != 0 {
		t.Errorf("unexpected type record: %+v", typ)
	}

	// Same signature again: nonce advanced, so the digest no longer verifies.
	if _, err := eng.RegisterTokenTypeWithSignature(p, sig); !errors.Is(err, registrar.ErrInvalidSignature) {
		t.Fatalf("replay err = %v, want ErrInvalidSignature", err)
	}
	if n, _ := eng.CreatorNonce(key.Address()); n != 1 {
		t.Errorf("nonce = %d, want 1", n)
	}
}

func createCollection(t *testing.T, eng *Engine, price uint64, ids []types.TokenID, weights []uint64) types.CollectionID {
	t.Helper()
	cid, err := eng.CreateCollection(owner, collection.CreateParams{
		Name: "series-one", MintPrice: price, TokenIDs: ids, Weights: weights,
	})
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	return cid
}

func TestMintFromCollection_PaidDrawsAndReveal(t *testing.T) {
	eng, asset := newTestEngine(t)
	a := registerType(t, eng, registry.RegisterParams{MaxSupply: 30, ContentHash: contentHash(1)})
	b := registerType(t, eng, registry.RegisterParams{MaxSupply: 30, ContentHash: contentHash(2)})
	cid := createCollection(t, eng, 100, []types.TokenID{a, b}, []uint64{9, 1})
	fund(asset, alice, 1000)

	if err := eng.MintFromCollection(alice, cid, 10); err != nil {
		t.Fatalf("MintFromCollection: %v", err)
	}

	balA, _ := eng.BalanceOf(alice, a)
	balB, _ := eng.BalanceOf(alice, b)
	if balA+balB != 10 {
		t.Fatalf("minted %d+%d units, want 10", balA, balB)
	}
	// 10*100 paid: platform 2.5% = 25 to treasury, 975 to the collection
	// creator (the owner here).
	if bal, _ := asset.BalanceOf(treasury); bal != 25 {
		t.Errorf("treasury = %d, want 25", bal)
	}
	if bal, _ := asset.BalanceOf(owner); bal != 975 {
		t.Errorf("collection creator = %d, want 975", bal)
	}

	// A blind mint is a first mint: both drawn types must be purchasable
	// directly afterwards if they were drawn at least once.
	if balA > 0 {
		typ, _ := eng.GetTokenType(a)
		if typ.CollectionOnly {
			t.Error("type a still collection-gated after blind mint")
		}
	}
}

func TestMintFromCollection_FreeMintSkipsSettlement(t *testing.T) {
	eng, asset := newTestEngine(t)
	a := registerType(t, eng, registry.RegisterParams{MaxSupply: 5})
	cid := createCollection(t, eng, 0, []types.TokenID{a}, []uint64{1})

	// No funds, no allowance: a free mint must still succeed.
	if err := eng.MintFromCollection(alice, cid, 2); err != nil {
		t.Fatalf("free mint: %v", err)
	}
	if bal, _ := eng.BalanceOf(alice, a); bal != 2 {
		t.Errorf("balance = %d, want 2", bal)
	}
	if bal, _ := asset.BalanceOf(treasury); bal != 0 {
		t.Errorf("treasury = %d, want 0", bal)
	}
}

func TestMintFromCollection_SoldOutAbortsWholeCall(t *testing.T) {
	eng, _ := newTestEngine(t)
	a := registerType(t, eng, registry.RegisterParams{MaxSupply: 3})
	cid := createCollection(t, eng, 0, []types.TokenID{a}, []uint64{1})

	// 4 draws against 3 remaining units: the 4th draw finds an empty
	// pool, and the first 3 must unwind with it.
	err := eng.MintFromCollection(alice, cid, 4)
	if !errors.Is(err, collection.ErrSoldOut) {
		t.Fatalf("err = %v, want ErrSoldOut", err)
	}
	if bal, _ := eng.BalanceOf(alice, a); bal != 0 {
		t.Errorf("balance = %d after reverted mint, want 0", bal)
	}
	if rem, _ := eng.RemainingSupply(a); rem != 3 {
		t.Errorf("remaining = %d, want 3", rem)
	}
	if n, _ := eng.ClaimedCount(cid, alice); n != 0 {
		t.Errorf("claimed = %d after reverted mint, want 0", n)
	}
}

func TestMintFromCollection_FailedPaidMintKeepsMinterFunds(t *testing.T) {
	eng, asset := newTestEngine(t)
	a := registerType(t, eng, registry.RegisterParams{MaxSupply: 1, ContentHash: contentHash(1)})
	cid := createCollection(t, eng, 50, []types.TokenID{a}, []uint64{1})
	fund(asset, alice, 1000)

	if err := eng.MintFromCollection(alice, cid, 1); err != nil {
		t.Fatalf("first mint: %v", err)
	}
	if bal, _ := asset.BalanceOf(alice); bal != 950 {
		t.Fatalf("balance after paid mint = %d, want 950", bal)
	}

	// The pool is exhausted: the rejected mint must not touch the
	// minter's currency.
	if err := eng.MintFromCollection(alice, cid, 1); !errors.Is(err, collection.ErrSoldOut) {
		t.Fatalf("err = %v, want ErrSoldOut", err)
	}
	if bal, _ := asset.BalanceOf(alice); bal != 950 {
		t.Errorf("balance after failed mint = %d, want 950", bal)
	}

	// Same when a batch exhausts the pool mid-call.
	b := registerType(t, eng, registry.RegisterParams{MaxSupply: 2, ContentHash: contentHash(2)})
	cid2 := createCollection(t, eng, 50, []types.TokenID{b}, []uint64{1})
	if err := eng.MintFromCollection(alice, cid2, 3); !errors.Is(err, collection.ErrSoldOut) {
		t.Fatalf("batch err = %v, want ErrSoldOut", err)
	}
	if bal, _ := asset.BalanceOf(alice); bal != 950 {
		t.Errorf("balance after failed batch mint = %d, want 950", bal)
	}
}

func TestMintFromCollection_ExhaustedTypeDropsFromLaterDraws(t *testing.T) {
	eng, _ := newTestEngine(t)
	// Type a has 2 units against overwhelming weight; type b absorbs the
	// draws once a is exhausted.
	a := registerType(t, eng, registry.RegisterParams{MaxSupply: 2, ContentHash: contentHash(1)})
	b := registerType(t, eng, registry.RegisterParams{MaxSupply: 100, ContentHash: contentHash(2)})
	cid := createCollection(t, eng, 0, []types.TokenID{a, b}, []uint64{1_000_000, 1})

	if err := eng.MintFromCollection(alice, cid, 10); err != nil {
		t.Fatalf("MintFromCollection: %v", err)
	}
	balA, _ := eng.BalanceOf(alice, a)
	balB, _ := eng.BalanceOf(alice, b)
	if balA != 2 || balB != 8 {
		t.Errorf("draws = %d/%d, want 2/8", balA, balB)
	}
}

func TestMintFromCollection_AllowlistAndClaimLimit(t *testing.T) {
	eng, _ := newTestEngine(t)
	a := registerType(t, eng, registry.RegisterParams{MaxSupply: 100})
	cid := createCollection(t, eng, 0, []types.TokenID{a}, []uint64{1})

	if err := eng.SetAllowlistRequired(owner, cid, true); err != nil {
		t.Fatalf("SetAllowlistRequired: %v", err)
	}
	if err := eng.MintFromCollection(alice, cid, 1); !errors.Is(err, collection.ErrNotAllowlisted) {
		t.Fatalf("err = %v, want ErrNotAllowlisted", err)
	}

	if err := eng.SetAllowlist(owner, cid, []types.Address{alice}, true); err != nil {
		t.Fatalf("SetAllowlist: %v", err)
	}
	if err := eng.SetClaimLimit(owner, cid, 3); err != nil {
		t.Fatalf("SetClaimLimit: %v", err)
	}
	if err := eng.MintFromCollection(alice, cid, 2); err != nil {
		t.Fatalf("allowlisted mint: %v", err)
	}
	if err := eng.MintFromCollection(alice, cid, 2); !errors.Is(err, collection.ErrClaimLimitExceeded) {
		t.Fatalf("err = %v, want ErrClaimLimitExceeded", err)
	}
	if n, _ := eng.ClaimedCount(cid, alice); n != 2 {
		t.Errorf("claimed = %d, want 2", n)
	}
}

func TestMintFromCollection_InactiveCollectionRejected(t *testing.T) {
	eng, _ := newTestEngine(t)
	a := registerType(t, eng, registry.RegisterParams{MaxSupply: 10})
	cid := createCollection(t, eng, 0, []types.TokenID{a}, []uint64{1})
	if err := eng.SetCollectionActive(owner, cid, false); err != nil {
		t.Fatalf("SetCollectionActive: %v", err)
	}
	if err := eng.MintFromCollection(alice, cid, 1); !errors.Is(err, collection.ErrInactive) {
		t.Fatalf("err = %v, want ErrInactive", err)
	}
}

func TestCreateCollection_RequiresAuthorization(t *testing.T) {
	eng, _ := newTestEngine(t)
	a := registerType(t, eng, registry.RegisterParams{MaxSupply: 10})

	p := collection.CreateParams{Name: "fan-series", TokenIDs: []types.TokenID{a}, Weights: []uint64{1}}
	if _, err := eng.CreateCollection(alice, p); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("err = %v, want ErrNotAuthorized", err)
	}

	if err := eng.SetCollectionCreatorAuthorization(owner, alice, true); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	cid, err := eng.CreateCollection(alice, p)
	if err != nil {
		t.Fatalf("CreateCollection after grant: %v", err)
	}
	c, err := eng.GetCollection(cid)
	if err != nil {
		t.Fatalf("GetCollection: %v", err)
	}
	if c.Creator != alice {
		t.Errorf("creator = %s, want caller", c.Creator)
	}

	if err := eng.SetCollectionCreatorAuthorization(owner, alice, false); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := eng.CreateCollection(alice, p); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("err after revoke = %v, want ErrNotAuthorized", err)
	}
}

func TestSecondaryMarket_EndToEnd(t *testing.T) {
	eng, asset := newTestEngine(t)
	id := registerType(t, eng, registry.RegisterParams{
		MaxSupply: 100, PrimaryPrice: 10, RoyaltyBps: 1000, PromoReserve: 10,
	})
	if err := eng.AdminMint(owner, alice, id, 10); err != nil {
		t.Fatalf("AdminMint: %v", err)
	}

	if err := eng.ListForSale(alice, id, 6, 200, 0); err != nil {
		t.Fatalf("ListForSale: %v", err)
	}
	// Escrow moved out of the seller's spendable balance.
	if bal, _ := eng.BalanceOf(alice, id); bal != 4 {
		t.Fatalf("seller balance = %d, want 4", bal)
	}

	fund(asset, bob, 10_000)
	if err := eng.BuyFromHolder(bob, id, alice, 4, 800); err != nil {
		t.Fatalf("BuyFromHolder: %v", err)
	}

	// 4*200 = 800: royalty 10% = 80 to the creator, fee 5% = 40 to the
	// treasury, 680 to the seller.
	if bal, _ := asset.BalanceOf(creator); bal != 80 {
		t.Errorf("royalty = %d, want 80", bal)
	}
	if bal, _ := asset.BalanceOf(treasury); bal != 40 {
		t.Errorf("fee = %d, want 40", bal)
	}
	if bal, _ := asset.BalanceOf(alice); bal != 680 {
		t.Errorf("proceeds = %d, want 680", bal)
	}
	if bal, _ := eng.BalanceOf(bob, id); bal != 4 {
		t.Errorf("buyer units = %d, want 4", bal)
	}

	l, err := eng.GetListing(id, alice)
	if err != nil {
		t.Fatalf("GetListing: %v", err)
	}
	if l.Amount != 2 {
		t.Errorf("listing amount = %d, want 2", l.Amount)
	}

	if err := eng.CancelListing(alice, id); err != nil {
		t.Fatalf("CancelListing: %v", err)
	}
	if bal, _ := eng.BalanceOf(alice, id); bal != 6 {
		t.Errorf("seller balance after cancel = %d, want 6", bal)
	}
	if _, err := eng.GetListing(id, alice); !errors.Is(err, market.ErrNotListed) {
		t.Fatalf("err = %v, want ErrNotListed", err)
	}
}

func TestBuyFromHolder_SlippageCap(t *testing.T) {
	eng, asset := newTestEngine(t)
	id := registerType(t, eng, registry.RegisterParams{MaxSupply: 10, PromoReserve: 5})
	if err := eng.AdminMint(owner, alice, id, 5); err != nil {
		t.Fatalf("AdminMint: %v", err)
	}
	if err := eng.ListForSale(alice, id, 5, 100, 0); err != nil {
		t.Fatalf("ListForSale: %v", err)
	}
	fund(asset, bob, 10_000)

	if err := eng.BuyFromHolder(bob, id, alice, 3, 299); !errors.Is(err, market.ErrSlippageExceeded) {
		t.Fatalf("err = %v, want ErrPriceSlippage", err)
	}
	if err := eng.BuyFromHolder(bob, id, alice, 3, 300); err != nil {
		t.Fatalf("exact cap: %v", err)
	}
}

func TestPause_BlocksTransfersNotMarket(t *testing.T) {
	eng, asset := newTestEngine(t)
	id := registerType(t, eng, registry.RegisterParams{MaxSupply: 100, PromoReserve: 10})
	if err := eng.AdminMint(owner, alice, id, 10); err != nil {
		t.Fatalf("AdminMint: %v", err)
	}

	if err := eng.Pause(owner); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := eng.Transfer(alice, bob, id, 1); !errors.Is(err, ledger.ErrTransfersPaused) {
		t.Fatalf("transfer err = %v, want ErrPaused", err)
	}

	// Escrow in and out stays live while paused.
	if err := eng.ListForSale(alice, id, 3, 50, 0); err != nil {
		t.Fatalf("ListForSale while paused: %v", err)
	}
	fund(asset, bob, 1000)
	if err := eng.BuyFromHolder(bob, id, alice, 1, 50); err != nil {
		t.Fatalf("BuyFromHolder while paused: %v", err)
	}

	if err := eng.Unpause(owner); err != nil {
		t.Fatalf("Unpause: %v", err)
	}
	if err := eng.Transfer(alice, bob, id, 1); err != nil {
		t.Fatalf("transfer after unpause: %v", err)
	}
}

func TestConfig_AdminUpdatesPersist(t *testing.T) {
	eng, _ := newTestEngine(t)

	if err := eng.SetTreasury(owner, addr(0x42)); err != nil {
		t.Fatalf("SetTreasury: %v", err)
	}
	if err := eng.SetPlatformFeeBps(owner, 100); err != nil {
		t.Fatalf("SetPlatformFeeBps: %v", err)
	}
	if err := eng.SetSecondaryFeeBps(owner, 700); err != nil {
		t.Fatalf("SetSecondaryFeeBps: %v", err)
	}

	cfg, err := eng.GetConfig()
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if cfg.Treasury != addr(0x42) || cfg.PlatformFeeBps != 100 || cfg.SecondaryFeeBps != 700 {
		t.Errorf("config = %+v", cfg)
	}

	if err := eng.SetPlatformFeeBps(owner, 10_001); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("err = %v, want ErrInvalidParameter", err)
	}
	if err := eng.SetTreasury(alice, addr(0x43)); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("err = %v, want ErrNotOwner", err)
	}
}

func TestNew_DoesNotReseedExistingState(t *testing.T) {
	db := storage.NewMemory()
	asset := currency.NewMemoryAsset(MarketAddress())
	p := Params{Owner: owner, Treasury: treasury, PlatformFeeBps: 250, SecondaryFeeBps: 500, Network: "testnet"}

	eng, err := New(db, asset, p, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := eng.SetPlatformFeeBps(owner, 900); err != nil {
		t.Fatalf("SetPlatformFeeBps: %v", err)
	}

	// A restart over the same database keeps the updated fee.
	eng2, err := New(db, asset, p, nil)
	if err != nil {
		t.Fatalf("New (restart): %v", err)
	}
	cfg, err := eng2.GetConfig()
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if cfg.PlatformFeeBps != 900 {
		t.Errorf("fee after restart = %d, want 900", cfg.PlatformFeeBps)
	}
}

func TestHolderUpdates_CreatorOrOwnerOnly(t *testing.T) {
	eng, _ := newTestEngine(t)
	id := registerType(t, eng, registry.RegisterParams{MaxSupply: 10, PrimaryPrice: 100})

	if err := eng.UpdatePrice(bob, id, 50); !errors.Is(err, ErrNotCreatorOrOwner) {
		t.Fatalf("err = %v, want ErrNotCreatorOrOwner", err)
	}
	if err := eng.UpdatePrice(creator, id, 50); err != nil {
		t.Fatalf("UpdatePrice by creator: %v", err)
	}
	if err := eng.UpdateMetadataURI(owner, id, "ipfs://v2"); err != nil {
		t.Fatalf("UpdateMetadataURI by owner: %v", err)
	}
	if err := eng.UpdateContentHash(creator, id, types.Hash{}); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("zero hash err = %v, want ErrInvalidParameter", err)
	}
	if err := eng.UpdateContentHash(creator, id, contentHash(0x99)); err != nil {
		t.Fatalf("UpdateContentHash: %v", err)
	}

	typ, err := eng.GetTokenType(id)
	if err != nil {
		t.Fatalf("GetTokenType: %v", err)
	}
	if typ.PrimaryPrice != 50 || typ.MetadataURI != "ipfs://v2" || typ.ContentHash != contentHash(0x99) {
		t.Errorf("updates not applied: %+v", typ)
	}
	ok, err := eng.VerifyContentHash(id, contentHash(0x99))
	if err != nil || !ok {
		t.Errorf("VerifyContentHash = %v, %v", ok, err)
	}
}

func TestBurn_PermanentlyRemovesSupply(t *testing.T) {
	eng, _ := newTestEngine(t)
	id := registerType(t, eng, registry.RegisterParams{MaxSupply: 10, PromoReserve: 5})
	if err := eng.AdminMint(owner, alice, id, 5); err != nil {
		t.Fatalf("AdminMint: %v", err)
	}

	if err := eng.Burn(alice, id, 3); err != nil {
		t.Fatalf("Burn: %v", err)
	}
	if bal, _ := eng.BalanceOf(alice, id); bal != 2 {
		t.Errorf("balance = %d, want 2", bal)
	}
	// Remaining primary supply is unchanged: burns do not reopen it.
	if rem, _ := eng.RemainingSupply(id); rem != 5 {
		t.Errorf("remaining = %d, want 5", rem)
	}
	if err := eng.Burn(alice, id, 3); !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
}

func TestEvents_AppendInCallOrder(t *testing.T) {
	eng, _ := newTestEngine(t)
	id := registerType(t, eng, registry.RegisterParams{MaxSupply: 10, PromoReserve: 2})
	if err := eng.AdminMint(owner, alice, id, 2); err != nil {
		t.Fatalf("AdminMint: %v", err)
	}

	evs, err := eng.Events(0, 10)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(evs) != 3 {
		t.Fatalf("got %d events, want 3", len(evs))
	}
	wantKinds := []events.Kind{events.KindTypeRegistered, events.KindBalanceChanged, events.KindAdminMinted}
	for i, ev := range evs {
		if ev.Seq != uint64(i) {
			t.Errorf("event %d seq = %d, want %d", i, ev.Seq, i)
		}
		if ev.Kind != wantKinds[i] {
			t.Errorf("event %d kind = %s, want %s", i, ev.Kind, wantKinds[i])
		}
		if ev.Time != testTime {
			t.Errorf("event %d time = %d, want %d", i, ev.Time, testTime)
		}
	}
}

// reentrantAsset attacks the engine from inside a settlement callback.
type reentrantAsset struct {
	*currency.MemoryAsset
	eng     *Engine
	attack  func(*Engine) error
	lastErr error
}

func (a *reentrantAsset) TransferFrom(from, to types.Address, amount uint64) error {
	if a.attack != nil {
		a.lastErr = a.attack(a.eng)
		if a.lastErr != nil {
			return a.lastErr
		}
	}
	return a.MemoryAsset.TransferFrom(from, to, amount)
}

func TestReentrancy_CallbackRejected(t *testing.T) {
	db := storage.NewMemory()
	inner := currency.NewMemoryAsset(MarketAddress())
	asset := &reentrantAsset{MemoryAsset: inner}
	eng, err := New(db, asset, Params{
		Owner: owner, Treasury: treasury, PlatformFeeBps: 250, SecondaryFeeBps: 500, Network: "testnet",
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	asset.eng = eng

	id, err := eng.RegisterTokenType(owner, registry.RegisterParams{
		Creator: creator, MetadataURI: "ipfs://m", MaxSupply: 10,
		PrimaryPrice: 100, PromoReserve: 1, ContentHash: contentHash(1),
	})
	if err != nil {
		t.Fatalf("RegisterTokenType: %v", err)
	}
	if err := eng.AdminMint(owner, alice, id, 1); err != nil {
		t.Fatalf("AdminMint: %v", err)
	}
	inner.Credit(bob, 1000)
	inner.Approve(bob, MarketAddress(), 1000)

	asset.attack = func(e *Engine) error {
		return e.Purchase(bob, id, 1)
	}
	err = eng.Purchase(bob, id, 1)
	if err == nil {
		t.Fatal("re-entrant purchase succeeded")
	}
	if !errors.Is(asset.lastErr, ErrReentrantCall) {
		t.Fatalf("inner err = %v, want ErrReentrantCall", asset.lastErr)
	}

	// The rejected outer call left nothing behind.
	if bal, _ := eng.BalanceOf(bob, id); bal != 0 {
		t.Errorf("balance = %d after reverted call, want 0", bal)
	}
	if rem, _ := eng.RemainingSupply(id); rem != 9 {
		t.Errorf("remaining = %d, want 9", rem)
	}
}

// Concurrent callers (RPC handlers run on separate goroutines) must
// queue on the engine, not trip the re-entrancy latch.
func TestCall_ConcurrentCallersSerialize(t *testing.T) {
	eng, _ := newTestEngine(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	eng.SetClock(func() time.Time {
		once.Do(func() {
			close(entered)
			<-release
		})
		return time.Unix(int64(testTime), 0)
	})

	first := make(chan error, 1)
	go func() { first <- eng.SetTreasury(owner, addr(0x42)) }()
	<-entered

	second := make(chan error, 1)
	go func() { second <- eng.SetPlatformFeeBps(owner, 300) }()

	select {
	case err := <-second:
		t.Fatalf("second call returned %v while the first was in flight", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	if err := <-first; err != nil {
		t.Fatalf("first call: %v", err)
	}
	if err := <-second; err != nil {
		t.Fatalf("second call: %v", err)
	}

	cfg, err := eng.GetConfig()
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if cfg.Treasury != addr(0x42) || cfg.PlatformFeeBps != 300 {
		t.Errorf("config = %+v after serialized calls", cfg)
	}
}
