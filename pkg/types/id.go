package types

import (
	"encoding/binary"
	"strconv"
)

// TokenID identifies one imprint type. Ids are allocated from a
// monotonically increasing counter starting at 1; 0 is never a valid id.
type TokenID uint64

// CollectionID identifies one blind-mint collection. Allocated like TokenID.
type CollectionID uint64

// IDSize is the encoded length of a TokenID or CollectionID in bytes.
const IDSize = 8

// String returns the decimal representation.
func (id TokenID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Bytes returns the big-endian encoding, suitable for ordered KV keys.
func (id TokenID) Bytes() []byte {
	b := make([]byte, IDSize)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

// TokenIDFromBytes decodes a big-endian TokenID. Returns 0 for short input.
func TokenIDFromBytes(b []byte) TokenID {
	if len(b) < IDSize {
		return 0
	}
	return TokenID(binary.BigEndian.Uint64(b))
}

// String returns the decimal representation.
func (id CollectionID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Bytes returns the big-endian encoding, suitable for ordered KV keys.
func (id CollectionID) Bytes() []byte {
	b := make([]byte, IDSize)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

// CollectionIDFromBytes decodes a big-endian CollectionID. Returns 0 for short input.
func CollectionIDFromBytes(b []byte) CollectionID {
	if len(b) < IDSize {
		return 0
	}
	return CollectionID(binary.BigEndian.Uint64(b))
}
