package proxy

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidSelector is returned when a selector string cannot be parsed
	ErrInvalidSelector = errors.New("invalid selector")
	// ErrInvalidAddress is returned when an address string cannot be parsed
	ErrInvalidAddress = errors.New("invalid address")
	// ErrInvalidIdentity is returned when an identity string cannot be parsed
	ErrInvalidIdentity = errors.New("invalid identity")
)

// Selector identifies a function signature. It is the routing key of a proxy.
type Selector uint64

// String returns the selector as a 0x-prefixed, zero-padded hex string.
func (s Selector) String() string {
	return fmt.Sprintf("0x%016x", uint64(s))
}

// ParseSelector parses a hex selector with or without the 0x prefix.
func ParseSelector(s string) (Selector, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if raw == "" || len(raw) > 16 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSelector, s)
	}
	v, err := strconv.ParseUint(raw, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSelector, s)
	}
	return Selector(v), nil
}

// MarshalText implements encoding.TextMarshaler.
func (s Selector) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Selector) UnmarshalText(text []byte) error {
	parsed, err := ParseSelector(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// AddressLength is the size of a contract address in bytes.
const AddressLength = 32

// Address is the identifier of a deployed contract.
type Address [AddressLength]byte

// ZeroAddress is the all-zero address.
var ZeroAddress Address

// BytesToAddress converts b to an Address. If b is longer than AddressLength
// the leading bytes are dropped; if shorter it is left-padded with zeros.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

// ParseAddress parses a 64-character hex address with or without the 0x prefix.
func ParseAddress(s string) (Address, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(raw) != AddressLength*2 {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return BytesToAddress(b), nil
}

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// String returns the 0x-prefixed hex form of the address.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// IdentityKind distinguishes account identities from contract identities.
type IdentityKind uint8

const (
	// IdentityAddress is an externally owned account
	IdentityAddress IdentityKind = iota

	// IdentityContract is a deployed contract
	IdentityContract
)

func (k IdentityKind) String() string {
	switch k {
	case IdentityAddress:
		return "address"
	case IdentityContract:
		return "contract"
	default:
		return "unknown"
	}
}

// Identity is a principal that can call a contract or own a proxy.
// The zero Identity is the "none" owner written by revocation.
type Identity struct {
	Kind  IdentityKind
	Value Address
}

// AccountIdentity returns the account identity for a.
func AccountIdentity(a Address) Identity {
	return Identity{Kind: IdentityAddress, Value: a}
}

// ContractIdentity returns the contract identity for a.
func ContractIdentity(a Address) Identity {
	return Identity{Kind: IdentityContract, Value: a}
}

// IsZero reports whether id carries the zero address, regardless of kind.
func (id Identity) IsZero() bool {
	return id.Value.IsZero()
}

// String formats the identity as "<kind>:<hex address>".
func (id Identity) String() string {
	return id.Kind.String() + ":" + id.Value.String()
}

// ParseIdentity parses "address:0x..", "contract:0x.." or a bare hex address,
// which is read as an account identity.
func ParseIdentity(s string) (Identity, error) {
	s = strings.TrimSpace(s)
	kind := IdentityAddress
	raw := s
	if prefix, rest, ok := strings.Cut(s, ":"); ok {
		switch prefix {
		case "address":
			kind = IdentityAddress
		case "contract":
			kind = IdentityContract
		default:
			return Identity{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidIdentity, prefix)
		}
		raw = rest
	}
	addr, err := ParseAddress(raw)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	return Identity{Kind: kind, Value: addr}, nil
}

// MarshalText implements encoding.TextMarshaler.
func (id Identity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *Identity) UnmarshalText(text []byte) error {
	parsed, err := ParseIdentity(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
