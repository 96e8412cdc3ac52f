package types

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestHash_HexRoundTrip(t *testing.T) {
	h := Hash{0x01, 0x02, 0xFF}

	s := h.String()
	if len(s) != HashSize*2 {
		t.Fatalf("hex length = %d, want %d", len(s), HashSize*2)
	}

	back, err := HexToHash(s)
	if err != nil {
		t.Fatalf("HexToHash: %v", err)
	}
	if back != h {
		t.Errorf("round trip mismatch")
	}
}

func TestHexToHash_Invalid(t *testing.T) {
	if _, err := HexToHash("abcd"); err == nil {
		t.Error("expected error for short hex")
	}
	if _, err := HexToHash(strings.Repeat("zz", HashSize)); err == nil {
		t.Error("expected error for non-hex input")
	}
}

func TestHash_JSON(t *testing.T) {
	h := Hash{0xAB, 0xCD}

	data, err := json.Marshal(h)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back Hash
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back != h {
		t.Errorf("JSON round trip mismatch")
	}
}

func TestTokenID_Bytes(t *testing.T) {
	id := TokenID(0x0102030405060708)
	b := id.Bytes()
	if len(b) != IDSize {
		t.Fatalf("len = %d, want %d", len(b), IDSize)
	}
	if b[0] != 0x01 || b[7] != 0x08 {
		t.Errorf("expected big-endian encoding, got %x", b)
	}
	if TokenIDFromBytes(b) != id {
		t.Errorf("round trip mismatch")
	}
}

func TestCollectionID_Bytes(t *testing.T) {
	id := CollectionID(42)
	if CollectionIDFromBytes(id.Bytes()) != id {
		t.Errorf("round trip mismatch")
	}
	if CollectionIDFromBytes([]byte{0x01}) != 0 {
		t.Errorf("short input should decode to 0")
	}
}
