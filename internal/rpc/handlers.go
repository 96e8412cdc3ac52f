package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/imprintworks/imprintd/internal/collection"
	"github.com/imprintworks/imprintd/internal/engine"
	"github.com/imprintworks/imprintd/internal/ledger"
	"github.com/imprintworks/imprintd/internal/market"
	"github.com/imprintworks/imprintd/internal/registrar"
	"github.com/imprintworks/imprintd/internal/registry"
	"github.com/imprintworks/imprintd/pkg/crypto"
	"github.com/imprintworks/imprintd/pkg/types"
)

// dispatch routes a request to the appropriate handler.
func (s *Server) dispatch(req *Request) (interface{}, *Error) {
	switch req.Method {
	// Admin.
	case "admin_setTreasury":
		return s.handleSetTreasury(req)
	case "admin_setPlatformFee":
		return s.handleSetPlatformFee(req)
	case "admin_setSecondaryFee":
		return s.handleSetSecondaryFee(req)
	case "admin_setCreatorAuthorization":
		return s.handleSetCreatorAuthorization(req)
	case "admin_pause":
		return s.handlePause(req, true)
	case "admin_unpause":
		return s.handlePause(req, false)
	case "admin_rescue":
		return s.handleRescue(req)

	// Token types.
	case "token_register":
		return s.handleTokenRegister(req)
	case "token_registerSigned":
		return s.handleTokenRegisterSigned(req)
	case "token_setActive":
		return s.handleTokenSetActive(req)
	case "token_lockAdminMint":
		return s.handleTokenLockAdminMint(req)
	case "token_adminMint":
		return s.handleTokenAdminMint(req)
	case "token_purchase":
		return s.handleTokenPurchase(req)
	case "token_transfer":
		return s.handleTokenTransfer(req)
	case "token_burn":
		return s.handleTokenBurn(req)
	case "token_updatePrice":
		return s.handleTokenUpdatePrice(req)
	case "token_updateContentHash":
		return s.handleTokenUpdateContentHash(req)
	case "token_updateMetadataUri":
		return s.handleTokenUpdateMetadataURI(req)
	case "token_get":
		return s.handleTokenGet(req)
	case "token_list":
		return s.handleTokenList(req)
	case "token_remainingSupply":
		return s.handleTokenRemainingSupply(req)
	case "token_verifyContentHash":
		return s.handleTokenVerifyContentHash(req)
	case "token_balanceOf":
		return s.handleTokenBalanceOf(req)
	case "token_owns":
		return s.handleTokenOwns(req)

	// Collections.
	case "collection_create":
		return s.handleCollectionCreate(req)
	case "collection_setActive":
		return s.handleCollectionSetActive(req)
	case "collection_setAllowlist":
		return s.handleCollectionSetAllowlist(req)
	case "collection_setAllowlistRequired":
		return s.handleCollectionSetAllowlistRequired(req)
	case "collection_setClaimLimit":
		return s.handleCollectionSetClaimLimit(req)
	case "collection_mint":
		return s.handleCollectionMint(req)
	case "collection_get":
		return s.handleCollectionGet(req)
	case "collection_availability":
		return s.handleCollectionAvailability(req)
	case "collection_allowlisted":
		return s.handleCollectionAllowlisted(req)
	case "collection_claimLimit":
		return s.handleCollectionClaimLimit(req)
	case "collection_claimed":
		return s.handleCollectionClaimed(req)

	// Secondary market.
	case "market_list":
		return s.handleMarketList(req)
	case "market_cancel":
		return s.handleMarketCancel(req)
	case "market_buy":
		return s.handleMarketBuy(req)
	case "market_getListing":
		return s.handleMarketGetListing(req)

	// Signed-registration support.
	case "registrar_nonce":
		return s.handleRegistrarNonce(req)
	case "registrar_digest":
		return s.handleRegistrarDigest(req)

	// Settlement asset (standalone runs only).
	case "currency_credit":
		return s.handleCurrencyCredit(req)
	case "currency_approve":
		return s.handleCurrencyApprove(req)
	case "currency_balanceOf":
		return s.handleCurrencyBalanceOf(req)
	case "currency_allowance":
		return s.handleCurrencyAllowance(req)

	// State.
	case "state_getConfig":
		return s.handleStateGetConfig(req)
	case "events_list":
		return s.handleEventsList(req)

	default:
		return nil, &Error{Code: CodeMethodNotFound, Message: fmt.Sprintf("method not found: %s", req.Method)}
	}
}

// parseParams re-marshals the request params into a typed struct.
func parseParams(req *Request, out interface{}) *Error {
	if req.Params == nil {
		return nil
	}
	data, err := json.Marshal(req.Params)
	if err != nil {
		return &Error{Code: CodeInvalidParams, Message: "invalid params"}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
	}
	return nil
}

func parseAddr(field, value string) (types.Address, *Error) {
	if value == "" {
		return types.Address{}, &Error{Code: CodeInvalidParams, Message: field + " is required"}
	}
	addr, err := types.ParseAddress(value)
	if err != nil {
		return types.Address{}, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid %s: %v", field, err)}
	}
	return addr, nil
}

func parseHash(field, value string) (types.Hash, *Error) {
	h, err := types.HexToHash(value)
	if err != nil {
		return types.Hash{}, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid %s: %v", field, err)}
	}
	return h, nil
}

// engineError maps engine and component errors onto JSON-RPC codes:
// unknown entities are CodeNotFound, everything else the engine refused
// is CodeRejected.
func engineError(err error) *Error {
	switch {
	case errors.Is(err, registry.ErrUnknownToken),
		errors.Is(err, collection.ErrUnknownCollection),
		errors.Is(err, market.ErrNotListed):
		return &Error{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, engine.ErrInvalidParameter),
		errors.Is(err, registry.ErrInvalidParameter),
		errors.Is(err, collection.ErrInvalidParameter),
		errors.Is(err, market.ErrInvalidParameter),
		errors.Is(err, ledger.ErrZeroAmount),
		errors.Is(err, ledger.ErrZeroAddress):
		return &Error{Code: CodeInvalidParams, Message: err.Error()}
	default:
		return &Error{Code: CodeRejected, Message: err.Error()}
	}
}

// ── Admin handlers ──────────────────────────────────────────────────────

func (s *Server) handleSetTreasury(req *Request) (interface{}, *Error) {
	var p AddressParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	caller, rpcErr := parseAddr("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseAddr("address", p.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.SetTreasury(caller, addr); err != nil {
		return nil, engineError(err)
	}
	return OKResult{OK: true}, nil
}

func (s *Server) handleSetPlatformFee(req *Request) (interface{}, *Error) {
	return s.handleSetFee(req, s.engine.SetPlatformFeeBps)
}

func (s *Server) handleSetSecondaryFee(req *Request) (interface{}, *Error) {
	return s.handleSetFee(req, s.engine.SetSecondaryFeeBps)
}

func (s *Server) handleSetFee(req *Request, set func(types.Address, uint32) error) (interface{}, *Error) {
	var p FeeParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	caller, rpcErr := parseAddr("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := set(caller, p.Bps); err != nil {
		return nil, engineError(err)
	}
	return OKResult{OK: true}, nil
}

func (s *Server) handleSetCreatorAuthorization(req *Request) (interface{}, *Error) {
	var p AuthorizationParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	caller, rpcErr := parseAddr("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	creator, rpcErr := parseAddr("creator", p.Creator)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.SetCollectionCreatorAuthorization(caller, creator, p.Authorized); err != nil {
		return nil, engineError(err)
	}
	return OKResult{OK: true}, nil
}

func (s *Server) handlePause(req *Request, pause bool) (interface{}, *Error) {
	var p CallerParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	caller, rpcErr := parseAddr("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	var err error
	if pause {
		err = s.engine.Pause(caller)
	} else {
		err = s.engine.Unpause(caller)
	}
	if err != nil {
		return nil, engineError(err)
	}
	return OKResult{OK: true}, nil
}

func (s *Server) handleRescue(req *Request) (interface{}, *Error) {
	if s.asset == nil {
		return nil, &Error{Code: CodeRejected, Message: "no hosted settlement asset"}
	}
	var p AddressParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	caller, rpcErr := parseAddr("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	to, rpcErr := parseAddr("address", p.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.RescueForeignAsset(caller, s.asset, to); err != nil {
		return nil, engineError(err)
	}
	return OKResult{OK: true}, nil
}

// ── Settlement asset handlers ───────────────────────────────────────────

// requireAsset guards the currency_* methods for runs without a hosted
// settlement asset.
func (s *Server) requireAsset() *Error {
	if s.asset == nil {
		return &Error{Code: CodeRejected, Message: "no hosted settlement asset"}
	}
	return nil
}

func (s *Server) handleCurrencyCredit(req *Request) (interface{}, *Error) {
	if rpcErr := s.requireAsset(); rpcErr != nil {
		return nil, rpcErr
	}
	var p CurrencyCreditParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	caller, rpcErr := parseAddr("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	owner, rpcErr := parseAddr("owner", p.Owner)
	if rpcErr != nil {
		return nil, rpcErr
	}
	// Crediting is the deposit point; only the deployment owner mints
	// settlement balance.
	cfg, err := s.engine.GetConfig()
	if err != nil {
		return nil, engineError(err)
	}
	if caller != cfg.Owner {
		return nil, &Error{Code: CodeRejected, Message: "credit requires the deployment owner"}
	}
	if err := s.asset.Credit(owner, p.Amount); err != nil {
		return nil, engineError(err)
	}
	return OKResult{OK: true}, nil
}

func (s *Server) handleCurrencyApprove(req *Request) (interface{}, *Error) {
	if rpcErr := s.requireAsset(); rpcErr != nil {
		return nil, rpcErr
	}
	var p CurrencyApproveParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	caller, rpcErr := parseAddr("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	spender := engine.MarketAddress()
	if p.Spender != "" {
		spender, rpcErr = parseAddr("spender", p.Spender)
		if rpcErr != nil {
			return nil, rpcErr
		}
	}
	if err := s.asset.Approve(caller, spender, p.Amount); err != nil {
		return nil, engineError(err)
	}
	return OKResult{OK: true}, nil
}

func (s *Server) handleCurrencyBalanceOf(req *Request) (interface{}, *Error) {
	if rpcErr := s.requireAsset(); rpcErr != nil {
		return nil, rpcErr
	}
	var p CurrencyQueryParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	owner, rpcErr := parseAddr("owner", p.Owner)
	if rpcErr != nil {
		return nil, rpcErr
	}
	bal, err := s.asset.BalanceOf(owner)
	if err != nil {
		return nil, engineError(err)
	}
	return BalanceResult{Balance: bal}, nil
}

func (s *Server) handleCurrencyAllowance(req *Request) (interface{}, *Error) {
	if rpcErr := s.requireAsset(); rpcErr != nil {
		return nil, rpcErr
	}
	var p CurrencyQueryParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	owner, rpcErr := parseAddr("owner", p.Owner)
	if rpcErr != nil {
		return nil, rpcErr
	}
	spender := engine.MarketAddress()
	if p.Spender != "" {
		spender, rpcErr = parseAddr("spender", p.Spender)
		if rpcErr != nil {
			return nil, rpcErr
		}
	}
	amount, err := s.asset.Allowance(owner, spender)
	if err != nil {
		return nil, engineError(err)
	}
	return BalanceResult{Balance: amount}, nil
}

// ── Token type handlers ─────────────────────────────────────────────────

func (s *Server) handleTokenRegister(req *Request) (interface{}, *Error) {
	var p RegisterParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	caller, rpcErr := parseAddr("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	creator, rpcErr := parseAddr("creator", p.Creator)
	if rpcErr != nil {
		return nil, rpcErr
	}
	hash, rpcErr := parseHash("contentHash", p.ContentHash)
	if rpcErr != nil {
		return nil, rpcErr
	}
	id, err := s.engine.RegisterTokenType(caller, registry.RegisterParams{
		Creator:      creator,
		MetadataURI:  p.MetadataURI,
		MaxSupply:    p.MaxSupply,
		PromoReserve: p.PromoReserve,
		PrimaryPrice: p.PrimaryPrice,
		RoyaltyBps:   p.RoyaltyBps,
		ContentHash:  hash,
	})
	if err != nil {
		return nil, engineError(err)
	}
	return IDResult{ID: uint64(id)}, nil
}

func (s *Server) handleTokenRegisterSigned(req *Request) (interface{}, *Error) {
	var p RegisterSignedParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	creator, rpcErr := parseAddr("creator", p.Creator)
	if rpcErr != nil {
		return nil, rpcErr
	}
	hash, rpcErr := parseHash("contentHash", p.ContentHash)
	if rpcErr != nil {
		return nil, rpcErr
	}
	sig, err := hex.DecodeString(p.Signature)
	if err != nil || len(sig) != crypto.SignatureSize {
		return nil, &Error{Code: CodeInvalidParams, Message: "signature must be 65-byte hex"}
	}
	id, err := s.engine.RegisterTokenTypeWithSignature(registrar.SignedParams{
		Creator:      creator,
		MetadataURI:  p.MetadataURI,
		MaxSupply:    p.MaxSupply,
		PrimaryPrice: p.PrimaryPrice,
		RoyaltyBps:   p.RoyaltyBps,
		ContentHash:  hash,
		Deadline:     p.Deadline,
	}, sig)
	if err != nil {
		return nil, engineError(err)
	}
	return IDResult{ID: uint64(id)}, nil
}

func (s *Server) handleTokenSetActive(req *Request) (interface{}, *Error) {
	var p TokenActiveParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	caller, rpcErr := parseAddr("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.SetTokenActive(caller, types.TokenID(p.TokenID), p.Active); err != nil {
		return nil, engineError(err)
	}
	return OKResult{OK: true}, nil
}

func (s *Server) handleTokenLockAdminMint(req *Request) (interface{}, *Error) {
	var p TokenParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	caller, rpcErr := parseAddr("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.LockAdminMint(caller, types.TokenID(p.TokenID)); err != nil {
		return nil, engineError(err)
	}
	return OKResult{OK: true}, nil
}

func (s *Server) handleTokenAdminMint(req *Request) (interface{}, *Error) {
	var p AdminMintParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	caller, rpcErr := parseAddr("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	to, rpcErr := parseAddr("recipient", p.Recipient)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.AdminMint(caller, to, types.TokenID(p.TokenID), p.Amount); err != nil {
		return nil, engineError(err)
	}
	return OKResult{OK: true}, nil
}

func (s *Server) handleTokenPurchase(req *Request) (interface{}, *Error) {
	var p TokenAmountParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	caller, rpcErr := parseAddr("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.Purchase(caller, types.TokenID(p.TokenID), p.Amount); err != nil {
		return nil, engineError(err)
	}
	return OKResult{OK: true}, nil
}

func (s *Server) handleTokenTransfer(req *Request) (interface{}, *Error) {
	var p TransferParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	caller, rpcErr := parseAddr("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	to, rpcErr := parseAddr("to", p.To)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.Transfer(caller, to, types.TokenID(p.TokenID), p.Amount); err != nil {
		return nil, engineError(err)
	}
	return OKResult{OK: true}, nil
}

func (s *Server) handleTokenBurn(req *Request) (interface{}, *Error) {
	var p TokenAmountParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	caller, rpcErr := parseAddr("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.Burn(caller, types.TokenID(p.TokenID), p.Amount); err != nil {
		return nil, engineError(err)
	}
	return OKResult{OK: true}, nil
}

func (s *Server) handleTokenUpdatePrice(req *Request) (interface{}, *Error) {
	var p PriceParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	caller, rpcErr := parseAddr("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.UpdatePrice(caller, types.TokenID(p.TokenID), p.NewPrice); err != nil {
		return nil, engineError(err)
	}
	return OKResult{OK: true}, nil
}

func (s *Server) handleTokenUpdateContentHash(req *Request) (interface{}, *Error) {
	var p HashUpdateParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	caller, rpcErr := parseAddr("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	hash, rpcErr := parseHash("newHash", p.NewHash)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.UpdateContentHash(caller, types.TokenID(p.TokenID), hash); err != nil {
		return nil, engineError(err)
	}
	return OKResult{OK: true}, nil
}

func (s *Server) handleTokenUpdateMetadataURI(req *Request) (interface{}, *Error) {
	var p URIUpdateParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	caller, rpcErr := parseAddr("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.UpdateMetadataURI(caller, types.TokenID(p.TokenID), p.NewURI); err != nil {
		return nil, engineError(err)
	}
	return OKResult{OK: true}, nil
}

func (s *Server) handleTokenGet(req *Request) (interface{}, *Error) {
	var p TokenParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	t, err := s.engine.GetTokenType(types.TokenID(p.TokenID))
	if err != nil {
		return nil, engineError(err)
	}
	return t, nil
}

func (s *Server) handleTokenList(req *Request) (interface{}, *Error) {
	ts, err := s.engine.ListTokenTypes()
	if err != nil {
		return nil, engineError(err)
	}
	return ts, nil
}

func (s *Server) handleTokenRemainingSupply(req *Request) (interface{}, *Error) {
	var p TokenParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	rem, err := s.engine.RemainingSupply(types.TokenID(p.TokenID))
	if err != nil {
		return nil, engineError(err)
	}
	return SupplyResult{Remaining: rem}, nil
}

func (s *Server) handleTokenVerifyContentHash(req *Request) (interface{}, *Error) {
	var p VerifyHashParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	hash, rpcErr := parseHash("hash", p.Hash)
	if rpcErr != nil {
		return nil, rpcErr
	}
	ok, err := s.engine.VerifyContentHash(types.TokenID(p.TokenID), hash)
	if err != nil {
		return nil, engineError(err)
	}
	return BoolResult{Value: ok}, nil
}

func (s *Server) handleTokenBalanceOf(req *Request) (interface{}, *Error) {
	var p BalanceParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	owner, rpcErr := parseAddr("owner", p.Owner)
	if rpcErr != nil {
		return nil, rpcErr
	}
	bal, err := s.engine.BalanceOf(owner, types.TokenID(p.TokenID))
	if err != nil {
		return nil, engineError(err)
	}
	return BalanceResult{Balance: bal}, nil
}

func (s *Server) handleTokenOwns(req *Request) (interface{}, *Error) {
	var p BalanceParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	owner, rpcErr := parseAddr("owner", p.Owner)
	if rpcErr != nil {
		return nil, rpcErr
	}
	ok, err := s.engine.OwnsAsset(owner, types.TokenID(p.TokenID))
	if err != nil {
		return nil, engineError(err)
	}
	return BoolResult{Value: ok}, nil
}

// ── Collection handlers ─────────────────────────────────────────────────

func (s *Server) handleCollectionCreate(req *Request) (interface{}, *Error) {
	var p CollectionCreateParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	caller, rpcErr := parseAddr("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	ids := make([]types.TokenID, len(p.TokenIDs))
	for i, id := range p.TokenIDs {
		ids[i] = types.TokenID(id)
	}
	cid, err := s.engine.CreateCollection(caller, collection.CreateParams{
		Name:      p.Name,
		MintPrice: p.MintPrice,
		TokenIDs:  ids,
		Weights:   p.Weights,
	})
	if err != nil {
		return nil, engineError(err)
	}
	return IDResult{ID: uint64(cid)}, nil
}

func (s *Server) handleCollectionSetActive(req *Request) (interface{}, *Error) {
	var p CollectionActiveParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	caller, rpcErr := parseAddr("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.SetCollectionActive(caller, types.CollectionID(p.CollectionID), p.Active); err != nil {
		return nil, engineError(err)
	}
	return OKResult{OK: true}, nil
}

func (s *Server) handleCollectionSetAllowlist(req *Request) (interface{}, *Error) {
	var p AllowlistParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	caller, rpcErr := parseAddr("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	wallets := make([]types.Address, len(p.Wallets))
	for i, w := range p.Wallets {
		addr, rpcErr := parseAddr("wallet", w)
		if rpcErr != nil {
			return nil, rpcErr
		}
		wallets[i] = addr
	}
	if err := s.engine.SetAllowlist(caller, types.CollectionID(p.CollectionID), wallets, p.Allowed); err != nil {
		return nil, engineError(err)
	}
	return OKResult{OK: true}, nil
}

func (s *Server) handleCollectionSetAllowlistRequired(req *Request) (interface{}, *Error) {
	var p AllowlistRequiredParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	caller, rpcErr := parseAddr("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.SetAllowlistRequired(caller, types.CollectionID(p.CollectionID), p.Required); err != nil {
		return nil, engineError(err)
	}
	return OKResult{OK: true}, nil
}

func (s *Server) handleCollectionSetClaimLimit(req *Request) (interface{}, *Error) {
	var p ClaimLimitParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	caller, rpcErr := parseAddr("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.SetClaimLimit(caller, types.CollectionID(p.CollectionID), p.Limit); err != nil {
		return nil, engineError(err)
	}
	return OKResult{OK: true}, nil
}

func (s *Server) handleCollectionMint(req *Request) (interface{}, *Error) {
	var p CollectionMintParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	caller, rpcErr := parseAddr("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.MintFromCollection(caller, types.CollectionID(p.CollectionID), p.Amount); err != nil {
		return nil, engineError(err)
	}
	return OKResult{OK: true}, nil
}

func (s *Server) handleCollectionGet(req *Request) (interface{}, *Error) {
	var p CollectionParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	c, err := s.engine.GetCollection(types.CollectionID(p.CollectionID))
	if err != nil {
		return nil, engineError(err)
	}
	return c, nil
}

func (s *Server) handleCollectionAvailability(req *Request) (interface{}, *Error) {
	var p CollectionParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	pool, total, err := s.engine.GetCollectionAvailability(types.CollectionID(p.CollectionID))
	if err != nil {
		return nil, engineError(err)
	}
	entries := make([]AvailabilityEntry, len(pool))
	for i, e := range pool {
		entries[i] = AvailabilityEntry{TokenID: uint64(e.TokenID), Weight: e.Weight}
	}
	return AvailabilityResult{Entries: entries, TotalWeight: total}, nil
}

func (s *Server) handleCollectionAllowlisted(req *Request) (interface{}, *Error) {
	var p WalletQueryParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	wallet, rpcErr := parseAddr("wallet", p.Wallet)
	if rpcErr != nil {
		return nil, rpcErr
	}
	ok, err := s.engine.Allowlisted(types.CollectionID(p.CollectionID), wallet)
	if err != nil {
		return nil, engineError(err)
	}
	return BoolResult{Value: ok}, nil
}

func (s *Server) handleCollectionClaimLimit(req *Request) (interface{}, *Error) {
	var p CollectionParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	c, err := s.engine.GetCollection(types.CollectionID(p.CollectionID))
	if err != nil {
		return nil, engineError(err)
	}
	return CountResult{Count: c.ClaimLimit}, nil
}

func (s *Server) handleCollectionClaimed(req *Request) (interface{}, *Error) {
	var p WalletQueryParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	wallet, rpcErr := parseAddr("wallet", p.Wallet)
	if rpcErr != nil {
		return nil, rpcErr
	}
	n, err := s.engine.ClaimedCount(types.CollectionID(p.CollectionID), wallet)
	if err != nil {
		return nil, engineError(err)
	}
	return CountResult{Count: n}, nil
}

// ── Market handlers ─────────────────────────────────────────────────────

func (s *Server) handleMarketList(req *Request) (interface{}, *Error) {
	var p ListParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	caller, rpcErr := parseAddr("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.ListForSale(caller, types.TokenID(p.TokenID), p.Amount, p.UnitPrice, p.Expiry); err != nil {
		return nil, engineError(err)
	}
	return OKResult{OK: true}, nil
}

func (s *Server) handleMarketCancel(req *Request) (interface{}, *Error) {
	var p TokenParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	caller, rpcErr := parseAddr("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.CancelListing(caller, types.TokenID(p.TokenID)); err != nil {
		return nil, engineError(err)
	}
	return OKResult{OK: true}, nil
}

func (s *Server) handleMarketBuy(req *Request) (interface{}, *Error) {
	var p BuyParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	caller, rpcErr := parseAddr("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	seller, rpcErr := parseAddr("seller", p.Seller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.BuyFromHolder(caller, types.TokenID(p.TokenID), seller, p.Amount, p.MaxTotalPrice); err != nil {
		return nil, engineError(err)
	}
	return OKResult{OK: true}, nil
}

func (s *Server) handleMarketGetListing(req *Request) (interface{}, *Error) {
	var p ListingQueryParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	seller, rpcErr := parseAddr("seller", p.Seller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	l, err := s.engine.GetListing(types.TokenID(p.TokenID), seller)
	if err != nil {
		return nil, engineError(err)
	}
	return l, nil
}

// ── Registrar handlers ──────────────────────────────────────────────────

func (s *Server) handleRegistrarNonce(req *Request) (interface{}, *Error) {
	var p NonceParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	creator, rpcErr := parseAddr("creator", p.Creator)
	if rpcErr != nil {
		return nil, rpcErr
	}
	n, err := s.engine.CreatorNonce(creator)
	if err != nil {
		return nil, engineError(err)
	}
	return CountResult{Count: n}, nil
}

func (s *Server) handleRegistrarDigest(req *Request) (interface{}, *Error) {
	var p NonceParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	creator, rpcErr := parseAddr("creator", p.Creator)
	if rpcErr != nil {
		return nil, rpcErr
	}
	hash, rpcErr := parseHash("contentHash", p.ContentHash)
	if rpcErr != nil {
		return nil, rpcErr
	}
	digest, nonce, err := s.engine.RegistrationDigest(&registrar.SignedParams{
		Creator:      creator,
		MetadataURI:  p.MetadataURI,
		MaxSupply:    p.MaxSupply,
		PrimaryPrice: p.PrimaryPrice,
		RoyaltyBps:   p.RoyaltyBps,
		ContentHash:  hash,
		Deadline:     p.Deadline,
	})
	if err != nil {
		return nil, engineError(err)
	}
	return DigestResult{Digest: digest, Nonce: nonce}, nil
}

// ── State handlers ──────────────────────────────────────────────────────

func (s *Server) handleStateGetConfig(req *Request) (interface{}, *Error) {
	cfg, err := s.engine.GetConfig()
	if err != nil {
		return nil, engineError(err)
	}
	return cfg, nil
}

func (s *Server) handleEventsList(req *Request) (interface{}, *Error) {
	p := EventsParam{Limit: 100}
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	if p.Limit <= 0 || p.Limit > 1000 {
		p.Limit = 100
	}
	evs, err := s.engine.Events(p.From, p.Limit)
	if err != nil {
		return nil, engineError(err)
	}
	return evs, nil
}
