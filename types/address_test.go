package types

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"prefixed", "0x00000000000000000000000000000000000000aa", false},
		{"bare", "00000000000000000000000000000000000000aa", false},
		{"upper", "0X00000000000000000000000000000000000000AA", false},
		{"short", "0xaa", true},
		{"not hex", "0xzz000000000000000000000000000000000000aa", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := ParseAddress(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAddress) {
					t.Fatalf("expected ErrInvalidAddress, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if a[AddressLen-1] != 0xaa {
				t.Errorf("last byte = %x, want aa", a[AddressLen-1])
			}
			if a.String() != "0x00000000000000000000000000000000000000aa" {
				t.Errorf("String() = %s", a.String())
			}
		})
	}
}

func TestAddressFromPublicKey(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}

	a1 := AddressFromPublicKey(pub)
	a2 := AddressFromPublicKey(pub)
	if a1 != a2 {
		t.Error("derivation should be deterministic")
	}
	if a1.IsZero() {
		t.Error("derived address should not be zero")
	}

	other, _, _ := ed25519.GenerateKey(nil)
	if AddressFromPublicKey(other) == a1 {
		t.Error("different keys should derive different addresses")
	}
}

func TestAddressJSON(t *testing.T) {
	a := MustParseAddress("0x1111111111111111111111111111111111111111")

	data, err := json.Marshal(struct {
		Customer Address `json:"customer"`
	}{a})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"0x1111111111111111111111111111111111111111"`) {
		t.Errorf("unexpected JSON: %s", data)
	}

	var decoded struct {
		Customer Address `json:"customer"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Customer != a {
		t.Errorf("round trip mismatch: %s", decoded.Customer)
	}
}
