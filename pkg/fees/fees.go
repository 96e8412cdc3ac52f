// Package fees implements basis-point fee and royalty arithmetic.
//
// All computations round down and are overflow-checked: products are
// evaluated in 128 bits and rejected if they exceed the 64-bit storage
// width, so no externally supplied quantity can wrap a counter.
package fees

import (
	"errors"
	"math/bits"
)

// MaxBps is 100% expressed in basis points.
const MaxBps = 10000

// Arithmetic errors.
var (
	ErrOverflow   = errors.New("fees: arithmetic overflow")
	ErrInvalidBps = errors.New("fees: basis points exceed 10000")
)

// ValidBps reports whether bps is at most 100%.
func ValidBps(bps uint32) bool {
	return bps <= MaxBps
}

// Mul returns price*amount, or ErrOverflow if the product exceeds uint64.
func Mul(price, amount uint64) (uint64, error) {
	hi, lo := bits.Mul64(price, amount)
	if hi != 0 {
		return 0, ErrOverflow
	}
	return lo, nil
}

// FromBps returns total*bps/10000, rounded down.
// The intermediate product is computed in 128 bits, so the result never
// overflows for any valid total and bps (result <= total).
func FromBps(total uint64, bps uint32) (uint64, error) {
	if !ValidBps(bps) {
		return 0, ErrInvalidBps
	}
	hi, lo := bits.Mul64(total, uint64(bps))
	quo, _ := bits.Div64(hi, lo, MaxBps)
	return quo, nil
}

// SplitPrimary divides a primary-sale total into platform fee and creator
// revenue. platformFee = total*platformBps/10000 (round down), creator
// revenue takes the remainder.
func SplitPrimary(total uint64, platformBps uint32) (platformFee, creatorRevenue uint64, err error) {
	platformFee, err = FromBps(total, platformBps)
	if err != nil {
		return 0, 0, err
	}
	return platformFee, total - platformFee, nil
}

// SplitSecondary divides a secondary-sale total into royalty, platform fee
// and seller proceeds. Both shares round down; the seller takes the
// remainder, so royalty+platformFee+sellerProceeds == total exactly.
// Returns ErrOverflow if royalty+platformFee would exceed the total, which
// can only happen through a registry misconfiguration.
func SplitSecondary(total uint64, royaltyBps, platformBps uint32) (royalty, platformFee, sellerProceeds uint64, err error) {
	royalty, err = FromBps(total, royaltyBps)
	if err != nil {
		return 0, 0, 0, err
	}
	platformFee, err = FromBps(total, platformBps)
	if err != nil {
		return 0, 0, 0, err
	}
	if royalty > total-platformFee {
		return 0, 0, 0, ErrOverflow
	}
	return royalty, platformFee, total - royalty - platformFee, nil
}
