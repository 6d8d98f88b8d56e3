package abi

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/rmacdonaldsmith/facetproxy-go/pkg/proxy"
)

const wordSize = 8

var (
	// ErrShortBuffer is returned when the payload ends before a value is complete
	ErrShortBuffer = errors.New("abi: short buffer")
	// ErrTrailingBytes is returned when bytes remain after all values are decoded
	ErrTrailingBytes = errors.New("abi: trailing bytes")
	// ErrInvalidDiscriminant is returned for an unknown enum variant
	ErrInvalidDiscriminant = errors.New("abi: invalid enum discriminant")
)

// Encoder appends values to a payload.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an empty encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// U64 appends a u64.
func (e *Encoder) U64(v uint64) *Encoder {
	e.buf = binary.BigEndian.AppendUint64(e.buf, v)
	return e
}

// Bool appends a bool as a u64 word.
func (e *Encoder) Bool(v bool) *Encoder {
	if v {
		return e.U64(1)
	}
	return e.U64(0)
}

// B256 appends a 32-byte value.
func (e *Encoder) B256(a proxy.Address) *Encoder {
	e.buf = append(e.buf, a[:]...)
	return e
}

// Identity appends an Identity enum: discriminant then address.
func (e *Encoder) Identity(id proxy.Identity) *Encoder {
	return e.U64(uint64(id.Kind)).B256(id.Value)
}

// OptionIdentity appends an Option<Identity>.
func (e *Encoder) OptionIdentity(id proxy.Identity, ok bool) *Encoder {
	if !ok {
		return e.U64(0)
	}
	return e.U64(1).Identity(id)
}

// OptionB256 appends an Option<b256>.
func (e *Encoder) OptionB256(a proxy.Address, ok bool) *Encoder {
	if !ok {
		return e.U64(0)
	}
	return e.U64(1).B256(a)
}

// Raw appends b unchanged. It is only meaningful as the last value.
func (e *Encoder) Raw(b []byte) *Encoder {
	e.buf = append(e.buf, b...)
	return e
}

// Bytes returns the encoded payload.
func (e *Encoder) Bytes() []byte {
	out := make([]byte, len(e.buf))
	copy(out, e.buf)
	return out
}

// Decoder reads values from a payload in order.
type Decoder struct {
	buf []byte
	off int
}

// NewDecoder returns a decoder over b.
func NewDecoder(b []byte) *Decoder {
	return &Decoder{buf: b}
}

func (d *Decoder) take(n int) ([]byte, error) {
	if len(d.buf)-d.off < n {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrShortBuffer, n, d.off, len(d.buf)-d.off)
	}
	out := d.buf[d.off : d.off+n]
	d.off += n
	return out, nil
}

// U64 reads a u64.
func (d *Decoder) U64() (uint64, error) {
	b, err := d.take(wordSize)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// Bool reads a bool word.
func (d *Decoder) Bool() (bool, error) {
	v, err := d.U64()
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: bool %d", ErrInvalidDiscriminant, v)
	}
}

// B256 reads a 32-byte value.
func (d *Decoder) B256() (proxy.Address, error) {
	b, err := d.take(proxy.AddressLength)
	if err != nil {
		return proxy.Address{}, err
	}
	return proxy.BytesToAddress(b), nil
}

// Identity reads an Identity enum.
func (d *Decoder) Identity() (proxy.Identity, error) {
	kind, err := d.U64()
	if err != nil {
		return proxy.Identity{}, err
	}
	if kind > uint64(proxy.IdentityContract) {
		return proxy.Identity{}, fmt.Errorf("%w: identity %d", ErrInvalidDiscriminant, kind)
	}
	addr, err := d.B256()
	if err != nil {
		return proxy.Identity{}, err
	}
	return proxy.Identity{Kind: proxy.IdentityKind(kind), Value: addr}, nil
}

// OptionIdentity reads an Option<Identity>.
func (d *Decoder) OptionIdentity() (proxy.Identity, bool, error) {
	some, err := d.Bool()
	if err != nil {
		return proxy.Identity{}, false, err
	}
	if !some {
		return proxy.Identity{}, false, nil
	}
	id, err := d.Identity()
	if err != nil {
		return proxy.Identity{}, false, err
	}
	return id, true, nil
}

// OptionB256 reads an Option<b256>.
func (d *Decoder) OptionB256() (proxy.Address, bool, error) {
	some, err := d.Bool()
	if err != nil {
		return proxy.Address{}, false, err
	}
	if !some {
		return proxy.Address{}, false, nil
	}
	a, err := d.B256()
	if err != nil {
		return proxy.Address{}, false, err
	}
	return a, true, nil
}

// Rest returns every unread byte and consumes them.
func (d *Decoder) Rest() []byte {
	out := make([]byte, len(d.buf)-d.off)
	copy(out, d.buf[d.off:])
	d.off = len(d.buf)
	return out
}

// Done returns ErrTrailingBytes if any bytes remain unread.
func (d *Decoder) Done() error {
	if d.off != len(d.buf) {
		return fmt.Errorf("%w: %d unread", ErrTrailingBytes, len(d.buf)-d.off)
	}
	return nil
}

// EncodeU64 encodes a single u64 argument.
func EncodeU64(v uint64) []byte {
	return NewEncoder().U64(v).Bytes()
}

// DecodeU64 decodes a payload holding exactly one u64.
func DecodeU64(b []byte) (uint64, error) {
	d := NewDecoder(b)
	v, err := d.U64()
	if err != nil {
		return 0, err
	}
	if err := d.Done(); err != nil {
		return 0, err
	}
	return v, nil
}
