package catalog

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// ErrInvalidExternalID is returned when an external ID string cannot be decoded.
var ErrInvalidExternalID = errors.New("catalog: invalid external id")

// ExternalID is the opaque 32-byte identifier a caller attaches to an entry,
// usually a content hash. The ledger never checks it for uniqueness.
type ExternalID [32]byte

// HashExternalID returns the Keccak-256 digest of label's UTF-8 bytes.
func HashExternalID(label string) ExternalID {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(label))

	var x ExternalID
	copy(x[:], h.Sum(nil))
	return x
}

// ParseExternalID decodes a 64-digit hex string, with or without 0x.
func ParseExternalID(s string) (ExternalID, error) {
	var x ExternalID
	raw := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if len(raw) != len(x)*2 {
		return x, fmt.Errorf("%w: %q", ErrInvalidExternalID, s)
	}
	if _, err := hex.Decode(x[:], []byte(raw)); err != nil {
		return x, fmt.Errorf("%w: %q", ErrInvalidExternalID, s)
	}
	return x, nil
}

// ExternalIDFromBytes copies b into an ExternalID. b must be 32 bytes long.
func ExternalIDFromBytes(b []byte) (ExternalID, error) {
	var x ExternalID
	if len(b) != len(x) {
		return x, fmt.Errorf("%w: %d bytes", ErrInvalidExternalID, len(b))
	}
	copy(x[:], b)
	return x, nil
}

// String returns the 0x-prefixed hex form.
func (x ExternalID) String() string { return "0x" + hex.EncodeToString(x[:]) }

// IsZero reports whether every byte is zero.
func (x ExternalID) IsZero() bool { return x == ExternalID{} }

// MarshalText implements encoding.TextMarshaler.
func (x ExternalID) MarshalText() ([]byte, error) { return []byte(x.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (x *ExternalID) UnmarshalText(data []byte) error {
	parsed, err := ParseExternalID(string(data))
	if err != nil {
		return err
	}
	*x = parsed
	return nil
}
