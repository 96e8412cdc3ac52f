// Package engine composes the imprint ledger components into the single
// authoritative state machine behind the public operation surface. Every
// operation executes atomically: one storage transaction, one event
// flush, all-or-nothing.
package engine

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/imprintworks/imprintd/internal/collection"
	"github.com/imprintworks/imprintd/internal/currency"
	"github.com/imprintworks/imprintd/internal/events"
	"github.com/imprintworks/imprintd/internal/ledger"
	"github.com/imprintworks/imprintd/internal/log"
	"github.com/imprintworks/imprintd/internal/market"
	"github.com/imprintworks/imprintd/internal/metrics"
	"github.com/imprintworks/imprintd/internal/registrar"
	"github.com/imprintworks/imprintd/internal/registry"
	"github.com/imprintworks/imprintd/internal/storage"
	"github.com/imprintworks/imprintd/pkg/crypto"
	"github.com/imprintworks/imprintd/pkg/fees"
	"github.com/imprintworks/imprintd/pkg/types"
)

// Authorization and entry-point errors.
var (
	ErrNotOwner          = errors.New("engine: caller is not the owner")
	ErrNotCreatorOrOwner = errors.New("engine: caller is not creator or owner")
	ErrNotAuthorized     = errors.New("engine: caller not authorized for collections")
	ErrReentrantCall     = errors.New("engine: re-entrant call rejected")
	ErrInvalidParameter  = errors.New("engine: invalid parameter")
)

var (
	keyTreasury     = []byte("meta/treasury")      // 20-byte address
	keyPlatformBps  = []byte("meta/platform_bps")  // 4 bytes BE
	keySecondaryBps = []byte("meta/secondary_bps") // 4 bytes BE
	prefixAuth      = []byte("auth/")              // auth/<addr(20)> -> 0x01
)

// MarketAddress is the engine's own escrow custody account, derived from a
// fixed tag so it can never collide with a key-derived address.
func MarketAddress() types.Address {
	h := crypto.Hash([]byte("imprintd/market/v1"))
	var addr types.Address
	copy(addr[:], h[:types.AddressSize])
	return addr
}

// Params configure a new engine. Treasury and fee values seed the
// persisted state on first start only; admin operations change them later.
type Params struct {
	Owner           types.Address
	Treasury        types.Address
	PlatformFeeBps  uint32
	SecondaryFeeBps uint32
	Network         string     // Binds the signed-registration domain separator.
	Seed            types.Hash // Initial selector entropy.
}

// Engine is the ledger/escrow state machine. All public methods serialize
// through one mutex; a latch holding the running call's goroutine id
// rejects re-entry from external payment callbacks instead of
// deadlocking, while calls from other goroutines queue on the mutex.
type Engine struct {
	mu      sync.Mutex
	callGID atomic.Int64 // goroutine id holding mu, 0 when free

	db          storage.DB
	ledger      *ledger.Ledger
	registry    *registry.Registry
	registrar   *registrar.Registrar
	collections *collection.Store
	market      *market.Market
	events      *events.Store
	asset       currency.Asset
	metrics     *metrics.Metrics
	selector    *collection.Source

	owner  types.Address
	logger zerolog.Logger
	clock  func() time.Time
}

// New creates an engine over the given store and settlement asset, seeding
// treasury and fee state if this is a fresh database.
func New(db storage.DB, asset currency.Asset, p Params, m *metrics.Metrics) (*Engine, error) {
	if p.Owner.IsZero() {
		return nil, fmt.Errorf("%w: zero owner", ErrInvalidParameter)
	}
	if !fees.ValidBps(p.PlatformFeeBps) || !fees.ValidBps(p.SecondaryFeeBps) {
		return nil, fmt.Errorf("%w: fee bps exceed 10000", ErrInvalidParameter)
	}

	reg := registry.New()
	led := ledger.New(MarketAddress())
	e := &Engine{
		db:          db,
		ledger:      led,
		registry:    reg,
		registrar:   registrar.New(registrar.DomainSeparator(p.Network), reg),
		collections: collection.NewStore(),
		market:      market.New(led),
		events:      events.NewStore(),
		asset:       asset,
		metrics:     m,
		selector:    collection.NewSource(p.Seed),
		owner:       p.Owner,
		logger:      log.Engine,
		clock:       time.Now,
	}

	err := db.Update(func(tx storage.Tx) error {
		if err := e.selector.Load(tx); err != nil {
			return err
		}
		if has, err := tx.Has(keyTreasury); err != nil || has {
			return err
		}
		if err := putAddress(tx, keyTreasury, p.Treasury); err != nil {
			return err
		}
		if err := putBps(tx, keyPlatformBps, p.PlatformFeeBps); err != nil {
			return err
		}
		return putBps(tx, keySecondaryBps, p.SecondaryFeeBps)
	})
	if err != nil {
		return nil, fmt.Errorf("seed engine state: %w", err)
	}
	return e, nil
}

// SetClock overrides the call-time clock. Test hook.
func (e *Engine) SetClock(clock func() time.Time) {
	e.clock = clock
}

// Owner returns the engine owner address.
func (e *Engine) Owner() types.Address {
	return e.owner
}

// call runs one public operation: re-entrancy latch, serialized execution,
// a single transaction covering state and events, and a metrics sample.
func (e *Engine) call(op string, fn func(tx storage.Tx, rec *events.Recorder, now uint64) error) error {
	gid := goroutineID()
	if e.callGID.Load() == gid {
		// A callback from an external transfer is re-entering while the
		// outer call still holds the lock on this goroutine. Calls from
		// other goroutines queue on the mutex instead.
		e.metrics.Observe(op, ErrReentrantCall)
		return ErrReentrantCall
	}
	e.mu.Lock()
	e.callGID.Store(gid)
	defer func() {
		e.callGID.Store(0)
		e.mu.Unlock()
	}()

	now := uint64(e.clock().Unix())
	rec := events.NewRecorder(now)
	err := e.db.Update(func(tx storage.Tx) error {
		if err := fn(tx, rec, now); err != nil {
			return err
		}
		return e.events.Append(tx, rec)
	})

	e.metrics.Observe(op, err)
	if err != nil {
		e.logger.Debug().Str("op", op).Err(err).Msg("call rejected")
	} else {
		e.logger.Debug().Str("op", op).Int("events", len(rec.Pending())).Msg("call applied")
	}
	return err
}

// goroutineID extracts the current goroutine's id from the runtime stack
// header ("goroutine N [running]:"); there is no public API for it.
// Goroutine ids start at 1, so 0 stays free as the unlocked sentinel.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return -1
	}
	id, err := strconv.ParseInt(string(fields[1]), 10, 64)
	if err != nil {
		return -1
	}
	return id
}

// view runs a read-only query outside the call latch.
func (e *Engine) view(fn func(tx storage.Tx) error) error {
	return e.db.View(fn)
}

func (e *Engine) requireOwner(caller types.Address) error {
	if caller != e.owner {
		return ErrNotOwner
	}
	return nil
}

func (e *Engine) requireCreatorOrOwner(caller types.Address, t *registry.ImprintType) error {
	if caller != t.Creator && caller != e.owner {
		return ErrNotCreatorOrOwner
	}
	return nil
}

// treasury reads the current treasury address.
func (e *Engine) treasury(tx storage.Tx) (types.Address, error) {
	return getAddress(tx, keyTreasury)
}

// platformBps reads the current primary-sale platform fee.
func (e *Engine) platformBps(tx storage.Tx) (uint32, error) {
	return getBps(tx, keyPlatformBps)
}

// secondaryBps reads the current secondary-sale platform fee.
func (e *Engine) secondaryBps(tx storage.Tx) (uint32, error) {
	return getBps(tx, keySecondaryBps)
}

func putAddress(tx storage.Tx, key []byte, addr types.Address) error {
	return tx.Put(key, addr.Bytes())
}

func getAddress(tx storage.Tx, key []byte) (types.Address, error) {
	data, err := tx.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return types.Address{}, nil
	}
	if err != nil {
		return types.Address{}, err
	}
	var addr types.Address
	if len(data) != types.AddressSize {
		return addr, fmt.Errorf("corrupt address record %q", key)
	}
	copy(addr[:], data)
	return addr, nil
}

func putBps(tx storage.Tx, key []byte, bps uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], bps)
	return tx.Put(key, buf[:])
}

func getBps(tx storage.Tx, key []byte) (uint32, error) {
	data, err := tx.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(data) != 4 {
		return 0, fmt.Errorf("corrupt bps record %q", key)
	}
	return binary.BigEndian.Uint32(data), nil
}

func isUnknownToken(err error) bool {
	return errors.Is(err, registry.ErrUnknownToken)
}

func authKey(addr types.Address) []byte {
	key := make([]byte, len(prefixAuth)+types.AddressSize)
	copy(key, prefixAuth)
	copy(key[len(prefixAuth):], addr[:])
	return key
}
