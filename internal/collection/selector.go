package collection

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/imprintworks/imprintd/internal/registry"
	"github.com/imprintworks/imprintd/internal/storage"
	"github.com/imprintworks/imprintd/pkg/crypto"
	"github.com/imprintworks/imprintd/pkg/types"
)

// PoolEntry is one eligible token type with its rarity weight.
type PoolEntry struct {
	TokenID types.TokenID `json:"tokenId"`
	Weight  uint64        `json:"weight"`
}

// EligiblePool builds the currently eligible subset of a collection's
// static pool: entries whose weight is non-zero, whose type is active,
// and whose supply is not exhausted. It is the single eligibility
// predicate shared by the selector and the availability view, so callers
// can reproduce the draw odds exactly.
func EligiblePool(tx storage.Tx, reg *registry.Registry, c *Collection) ([]PoolEntry, uint64, error) {
	var pool []PoolEntry
	var total uint64
	for i, id := range c.TokenIDs {
		w := c.Weights[i]
		if w == 0 {
			continue
		}
		t, err := reg.Get(tx, id)
		if err != nil {
			return nil, 0, err
		}
		if !t.Active || t.Minted >= t.MaxSupply {
			continue
		}
		pool = append(pool, PoolEntry{TokenID: id, Weight: w})
		if total > ^uint64(0)-w {
			return nil, 0, fmt.Errorf("%w: weight sum overflow", ErrInvalidParameter)
		}
		total += w
	}
	return pool, total, nil
}

// Pick walks the eligible pool accumulating weight and returns the first
// entry whose cumulative weight exceeds roll. Ties break by array order.
// roll must be < the pool's total weight.
func Pick(pool []PoolEntry, roll uint64) types.TokenID {
	var cum uint64
	for _, e := range pool {
		cum += e.Weight
		if roll < cum {
			return e.TokenID
		}
	}
	// Unreachable for roll < total; guard for a malformed roll.
	return pool[len(pool)-1].TokenID
}

// Source produces the pseudo-random rolls for blind minting. Each roll
// folds the caller's address, the call-time clock and a strictly
// increasing draw counter into a rolling BLAKE3 state.
//
// This reproduces the host-entropy draw the engine is specified with; it
// is not cryptographically robust against an adversary who can observe
// the seed state, which is an accepted property of blind minting here.
type Source struct {
	state   types.Hash
	counter uint64
}

// NewSource creates a selector source from initial entropy.
func NewSource(seed types.Hash) *Source {
	return &Source{state: seed}
}

var keySelectorState = []byte("sel/state") // state(32) || counter(8, BE)

// Load replaces the source's rolling state with the persisted snapshot,
// if one exists. Called on startup so the draw stream resumes where the
// last successful mint left it instead of rewinding to the seed.
func (s *Source) Load(tx storage.Tx) error {
	data, err := tx.Get(keySelectorState)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) != types.HashSize+8 {
		return fmt.Errorf("corrupt selector state record")
	}
	copy(s.state[:], data[:types.HashSize])
	s.counter = binary.BigEndian.Uint64(data[types.HashSize:])
	return nil
}

// Save snapshots the post-draw state into the same transaction as the
// mint it served.
func (s *Source) Save(tx storage.Tx) error {
	buf := make([]byte, types.HashSize+8)
	copy(buf, s.state[:])
	binary.BigEndian.PutUint64(buf[types.HashSize:], s.counter)
	return tx.Put(keySelectorState, buf)
}

// Roll draws a uniform value in [0, totalWeight). The internal state
// advances on every draw, so repeated draws in one call differ even for
// the same caller and clock value.
func (s *Source) Roll(caller types.Address, now uint64, totalWeight uint64) uint64 {
	s.counter++

	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], now)
	binary.BigEndian.PutUint64(buf[8:], s.counter)
	s.state = crypto.HashParts(s.state[:], caller[:], buf[:])

	return binary.BigEndian.Uint64(s.state[:8]) % totalWeight
}
