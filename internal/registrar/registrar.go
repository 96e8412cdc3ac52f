// Package registrar implements creator-signed token type registration.
//
// A registration request is a structured payload signed by the creator's
// key, bound to a deployment-unique domain separator, a per-creator nonce
// and a deadline. Replay is blocked twice over: the nonce advances on
// success, and the exact digest is remembered as consumed.
package registrar

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/imprintworks/imprintd/internal/registry"
	"github.com/imprintworks/imprintd/internal/storage"
	"github.com/imprintworks/imprintd/pkg/crypto"
	"github.com/imprintworks/imprintd/pkg/types"
)

// Registrar errors.
var (
	ErrInvalidSignature  = errors.New("registrar: invalid signature")
	ErrDeadlineExpired   = errors.New("registrar: deadline expired")
	ErrSignatureReplayed = errors.New("registrar: signature already used")
)

var (
	prefixNonce  = []byte("n/")  // n/<addr(20)> -> uint64 BE
	prefixDigest = []byte("sd/") // sd/<digest(32)> -> 0x01
)

// SignedParams is the payload covered by a registration signature.
// Signature-registered types carry no promo reserve.
type SignedParams struct {
	Creator      types.Address
	MetadataURI  string
	MaxSupply    uint64
	PrimaryPrice uint64
	RoyaltyBps   uint32
	ContentHash  types.Hash
	Deadline     uint64 // Unix seconds.
}

// Registrar verifies signed registrations and delegates to the registry.
type Registrar struct {
	domain   types.Hash
	registry *registry.Registry
}

// New creates a registrar bound to a domain separator.
func New(domain types.Hash, reg *registry.Registry) *Registrar {
	return &Registrar{domain: domain, registry: reg}
}

// DomainSeparator derives the deployment-unique domain separator from the
// network name. Signatures for one network never verify on another.
func DomainSeparator(network string) types.Hash {
	return crypto.HashParts([]byte("imprintd/registrar/v1/"), []byte(network))
}

// Nonce returns the creator's current registration nonce.
func (r *Registrar) Nonce(tx storage.Tx, creator types.Address) (uint64, error) {
	data, err := tx.Get(nonceKey(creator))
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("corrupt nonce record for %s", creator)
	}
	return binary.BigEndian.Uint64(data), nil
}

// Digest computes the structured-data digest a creator signs:
// BLAKE3(domain || creator || contentHash || BLAKE3(metadataURI) ||
// maxSupply || primaryPrice || royaltyBps || nonce || deadline),
// all integers big-endian fixed width.
func (r *Registrar) Digest(p *SignedParams, nonce uint64) types.Hash {
	uriHash := crypto.Hash([]byte(p.MetadataURI))

	var nums [8 * 4]byte
	binary.BigEndian.PutUint64(nums[0:8], p.MaxSupply)
	binary.BigEndian.PutUint64(nums[8:16], p.PrimaryPrice)
	binary.BigEndian.PutUint64(nums[16:24], uint64(p.RoyaltyBps))
	binary.BigEndian.PutUint64(nums[24:32], nonce)

	var deadline [8]byte
	binary.BigEndian.PutUint64(deadline[:], p.Deadline)

	return crypto.HashParts(
		r.domain[:],
		p.Creator[:],
		p.ContentHash[:],
		uriHash[:],
		nums[:],
		deadline[:],
	)
}

// Register verifies a signed registration and creates the token type.
// The deadline is checked before signature recovery to fail cheaply.
// secondaryFeeBps is the market's current secondary fee, forwarded to the
// registry's royalty-plus-fee precondition.
func (r *Registrar) Register(tx storage.Tx, now uint64, p *SignedParams, signature []byte, secondaryFeeBps uint32) (*registry.ImprintType, error) {
	if now > p.Deadline {
		return nil, fmt.Errorf("%w: deadline %d, now %d", ErrDeadlineExpired, p.Deadline, now)
	}

	nonce, err := r.Nonce(tx, p.Creator)
	if err != nil {
		return nil, err
	}
	digest := r.Digest(p, nonce)

	used, err := tx.Has(digestKey(digest))
	if err != nil {
		return nil, err
	}
	if used {
		return nil, fmt.Errorf("%w: digest %s", ErrSignatureReplayed, digest)
	}

	signer, err := crypto.RecoverAddress(digest[:], signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if signer != p.Creator {
		return nil, fmt.Errorf("%w: signer %s is not creator %s", ErrInvalidSignature, signer, p.Creator)
	}

	if err := tx.Put(digestKey(digest), []byte{0x01}); err != nil {
		return nil, err
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], nonce+1)
	if err := tx.Put(nonceKey(p.Creator), buf[:]); err != nil {
		return nil, err
	}

	// Signature-registered types carry no admin promo allocation.
	return r.registry.Register(tx, registry.RegisterParams{
		Creator:      p.Creator,
		MetadataURI:  p.MetadataURI,
		MaxSupply:    p.MaxSupply,
		PrimaryPrice: p.PrimaryPrice,
		RoyaltyBps:   p.RoyaltyBps,
		ContentHash:  p.ContentHash,
		PromoReserve: 0,
	}, secondaryFeeBps)
}

func nonceKey(creator types.Address) []byte {
	key := make([]byte, len(prefixNonce)+types.AddressSize)
	copy(key, prefixNonce)
	copy(key[len(prefixNonce):], creator[:])
	return key
}

func digestKey(digest types.Hash) []byte {
	key := make([]byte, len(prefixDigest)+types.HashSize)
	copy(key, prefixDigest)
	copy(key[len(prefixDigest):], digest[:])
	return key
}
