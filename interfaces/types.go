// Package interfaces defines the core types and contracts for the versioned
// plugin-module registry. It provides the shared vocabulary between the
// registry core, its collaborators, and the HTTP surface without pulling in
// implementation details.
package interfaces

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Address is a 20-byte identifier used for client identities, instance IDs,
// and logic code references.
type Address [20]byte

// NewAddressFromBytes creates an address from a raw 20-byte slice.
func NewAddressFromBytes(addr []byte) (Address, error) {
	if len(addr) != 20 {
		return Address{}, errors.New("invalid address length: must be 20 bytes")
	}

	var res Address
	copy(res[:], addr)
	return res, nil
}

// NewAddressFromHex creates an address from a 40-character hex string,
// with or without a 0x prefix.
func NewAddressFromHex(addr string) (Address, error) {
	clean := strings.TrimPrefix(addr, "0x")
	if len(clean) != 40 {
		return Address{}, errors.New("invalid address length: hex string must be 40 characters")
	}

	addrBytes, err := hex.DecodeString(clean)
	if err != nil {
		return Address{}, fmt.Errorf("invalid hex format: %w", err)
	}

	return NewAddressFromBytes(addrBytes)
}

// String returns the hex string representation of the address.
func (addr Address) String() string {
	return hex.EncodeToString(addr[:])
}

// Bytes returns the raw 20-byte address.
func (addr Address) Bytes() []byte {
	return addr[:]
}

// Equal compares two addresses for equality.
func (addr Address) Equal(other Address) bool {
	return addr == other
}

// IsZero reports whether the address is the all-zero value. A zero logic
// reference is never a valid publish target.
func (addr Address) IsZero() bool {
	return addr == Address{}
}

// Identity is the caller identity used for access-control decisions.
// Identities and logic references share the same address space.
type Identity = Address

// SelectorLength is the length of the encoded-operation prefix an upgrade
// payload must exceed to be considered callable. Edited entries with payloads
// at or below this length are rejected: an upgrade carrying no encoded
// operation would swap code without running any migration.
const SelectorLength = 4

// UpgradePayload is the migration call data delivered to an instance at the
// moment its code is swapped.
type UpgradePayload []byte

// HasCallData reports whether the payload encodes an operation, meaning it is
// longer than a bare selector prefix.
func (p UpgradePayload) HasCallData() bool {
	return len(p) > SelectorLength
}

// VersionEntry is a single published logic version in the ledger.
type VersionEntry struct {
	// Ordinal is the dense, monotonically assigned index of this entry.
	Ordinal uint64 `json:"ordinal"`

	// Label is the human-readable version label, e.g. "1.1".
	Label string `json:"label"`

	// LogicRef identifies the code this version runs.
	LogicRef Address `json:"logic_ref"`

	// Payload is the migration call data applied when an instance steps
	// onto this version.
	Payload UpgradePayload `json:"payload"`
}

// InstanceRecord tracks a deployed module instance: who owns it and which
// ledger ordinal it currently runs.
type InstanceRecord struct {
	// InstanceID identifies the deployed instance.
	InstanceID Address `json:"instance_id"`

	// Owner is the client identity allowed to request upgrades. Immutable
	// for the record's lifetime.
	Owner Identity `json:"owner"`

	// CurrentOrdinal is the ledger ordinal the instance currently runs.
	// Only the upgrade coordinator advances it, one step at a time.
	CurrentOrdinal uint64 `json:"current_ordinal"`
}

// VersionTuple is a 3-component platform version used by the compatibility
// window bounds.
type VersionTuple struct {
	Major uint8 `json:"major"`
	Minor uint8 `json:"minor"`
	Patch uint8 `json:"patch"`
}

// ParseVersionTuple parses a dotted "major.minor.patch" string. All three
// components must be present and fit in 8 bits.
func ParseVersionTuple(s string) (VersionTuple, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return VersionTuple{}, fmt.Errorf("%w: expected 3 components, got %d", ErrInvalidBoundLength, len(parts))
	}

	var components [3]uint8
	for i, part := range parts {
		v, err := strconv.ParseUint(part, 10, 8)
		if err != nil {
			return VersionTuple{}, fmt.Errorf("%w: component %q", ErrInvalidBoundLength, part)
		}
		components[i] = uint8(v)
	}

	return VersionTuple{Major: components[0], Minor: components[1], Patch: components[2]}, nil
}

// String returns the dotted representation, e.g. "1.0.3".
func (v VersionTuple) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare orders two tuples lexicographically. It returns -1 if v < other,
// 0 if equal, and 1 if v > other.
func (v VersionTuple) Compare(other VersionTuple) int {
	pairs := [3][2]uint8{
		{v.Major, other.Major},
		{v.Minor, other.Minor},
		{v.Patch, other.Patch},
	}
	for _, p := range pairs {
		if p[0] < p[1] {
			return -1
		}
		if p[0] > p[1] {
			return 1
		}
	}
	return 0
}

// BoundKind selects one of the two compatibility window bounds.
type BoundKind int

const (
	// BoundLower is the inclusive floor of the compatibility window.
	BoundLower BoundKind = iota
	// BoundUpper is the inclusive ceiling of the compatibility window.
	BoundUpper
)

// ParseBoundKind maps the two recognized bound names onto BoundKind.
func ParseBoundKind(name string) (BoundKind, error) {
	switch name {
	case "lower":
		return BoundLower, nil
	case "upper":
		return BoundUpper, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidBoundKind, name)
	}
}

// String returns the bound name.
func (k BoundKind) String() string {
	switch k {
	case BoundLower:
		return "lower"
	case BoundUpper:
		return "upper"
	default:
		return "unknown"
	}
}
