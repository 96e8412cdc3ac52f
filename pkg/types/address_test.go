package types

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestAddress_StringRoundTrip(t *testing.T) {
	addr := Address{0x01, 0x02, 0x03, 0xAA, 0xBB}

	s := addr.String()
	if !strings.HasPrefix(s, "imp1") {
		t.Errorf("expected imp1 prefix, got %q", s)
	}

	parsed, err := ParseAddress(s)
	if err != nil {
		t.Fatalf("ParseAddress: %v", err)
	}
	if parsed != addr {
		t.Errorf("round trip mismatch: %x != %x", parsed, addr)
	}
}

func TestAddress_ParseHex(t *testing.T) {
	addr := Address{0xDE, 0xAD, 0xBE, 0xEF}

	parsed, err := ParseAddress(addr.Hex())
	if err != nil {
		t.Fatalf("ParseAddress hex: %v", err)
	}
	if parsed != addr {
		t.Errorf("hex round trip mismatch: %x != %x", parsed, addr)
	}
}

func TestAddress_ParseInvalid(t *testing.T) {
	cases := []string{
		"",
		"imp1qqqqq", // Too short for checksum.
		"zzzz",
		"deadbeef", // Wrong hex length.
	}
	for _, s := range cases {
		if _, err := ParseAddress(s); err == nil {
			t.Errorf("ParseAddress(%q): expected error", s)
		}
	}
}

func TestAddress_IsZero(t *testing.T) {
	var zero Address
	if !zero.IsZero() {
		t.Error("zero address should be zero")
	}
	if (Address{0x01}).IsZero() {
		t.Error("non-zero address should not be zero")
	}
}

func TestAddress_JSON(t *testing.T) {
	addr := Address{0x11, 0x22}

	data, err := json.Marshal(addr)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var back Address
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back != addr {
		t.Errorf("JSON round trip mismatch: %x != %x", back, addr)
	}
}

func TestAddress_TestnetHRP(t *testing.T) {
	SetAddressHRP(TestnetHRP)
	defer SetAddressHRP(MainnetHRP)

	addr := Address{0x42}
	s := addr.String()
	if !strings.HasPrefix(s, "timp1") {
		t.Errorf("expected timp1 prefix, got %q", s)
	}

	parsed, err := ParseAddress(s)
	if err != nil {
		t.Fatalf("ParseAddress: %v", err)
	}
	if parsed != addr {
		t.Errorf("round trip mismatch")
	}
}
