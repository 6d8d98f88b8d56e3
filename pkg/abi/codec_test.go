package abi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmacdonaldsmith/facetproxy-go/pkg/proxy"
)

func TestSelectorOf(t *testing.T) {
	a := SelectorOf("double(u64)")
	b := SelectorOf(Signature("double", "u64"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, SelectorOf("triple(u64)"))
	assert.LessOrEqual(t, uint64(a), uint64(^uint32(0)), "selector is widened from four bytes")
}

func TestSignature(t *testing.T) {
	assert.Equal(t, "_proxy_revoke_ownership()", Signature("_proxy_revoke_ownership"))
	assert.Equal(t, "set(u64,ContractId)", Signature("set", "u64", "ContractId"))
}

func TestCodec_Args(t *testing.T) {
	impl := proxy.BytesToAddress([]byte{0xaa})
	owner := proxy.AccountIdentity(proxy.BytesToAddress([]byte{0xbb}))

	payload := NewEncoder().
		U64(42).
		B256(impl).
		Identity(owner).
		OptionIdentity(proxy.Identity{}, false).
		Bytes()
	assert.Len(t, payload, 8+32+(8+32)+8)

	d := NewDecoder(payload)
	v, err := d.U64()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), v)

	gotImpl, err := d.B256()
	require.NoError(t, err)
	assert.Equal(t, impl, gotImpl)

	gotOwner, err := d.Identity()
	require.NoError(t, err)
	assert.Equal(t, owner, gotOwner)

	_, some, err := d.OptionIdentity()
	require.NoError(t, err)
	assert.False(t, some)

	require.NoError(t, d.Done())
}

func TestDecoder_Errors(t *testing.T) {
	t.Run("short buffer", func(t *testing.T) {
		_, err := NewDecoder([]byte{1, 2, 3}).U64()
		assert.ErrorIs(t, err, ErrShortBuffer)
	})

	t.Run("trailing bytes", func(t *testing.T) {
		_, err := DecodeU64(append(EncodeU64(1), 0))
		assert.ErrorIs(t, err, ErrTrailingBytes)
	})

	t.Run("bad identity discriminant", func(t *testing.T) {
		payload := NewEncoder().U64(7).B256(proxy.ZeroAddress).Bytes()
		_, err := NewDecoder(payload).Identity()
		assert.ErrorIs(t, err, ErrInvalidDiscriminant)
	})

	t.Run("bad option discriminant", func(t *testing.T) {
		_, _, err := NewDecoder(EncodeU64(2)).OptionB256()
		assert.ErrorIs(t, err, ErrInvalidDiscriminant)
	})
}

func TestOptionB256(t *testing.T) {
	addr := proxy.BytesToAddress([]byte{0x01})
	got, ok, err := NewDecoder(NewEncoder().OptionB256(addr, true).Bytes()).OptionB256()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, addr, got)
}

func TestAdminArgs(t *testing.T) {
	impl := proxy.BytesToAddress([]byte{0xee})

	sel, addr, err := DecodeSetFacet(EncodeSetFacet(42, impl))
	require.NoError(t, err)
	assert.Equal(t, proxy.Selector(42), sel)
	assert.Equal(t, impl, addr)

	_, _, err = DecodeSetFacet(EncodeSelector(42))
	assert.ErrorIs(t, err, ErrShortBuffer)

	id := proxy.ContractIdentity(impl)
	got, err := DecodeIdentity(EncodeIdentity(id))
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = DecodeIdentity(append(EncodeIdentity(id), 0))
	assert.ErrorIs(t, err, ErrTrailingBytes)
}

func TestAdminSelectorsAreDistinct(t *testing.T) {
	seen := map[proxy.Selector]bool{}
	for _, sel := range []proxy.Selector{
		ProxyOwner, ProxyTarget, ProxySetFacet,
		ProxyRemoveSelector, ProxyTransferOwnership, ProxyRevokeOwnership,
	} {
		assert.False(t, seen[sel], "duplicate selector %s", sel)
		seen[sel] = true
	}
	assert.NotEqual(t, SelectorOf("double(u64)"), ProxyOwner)
}

func TestParseSelector(t *testing.T) {
	sel, err := ParseSelector("double(u64)")
	require.NoError(t, err)
	assert.Equal(t, SelectorOf("double(u64)"), sel)

	sel, err = ParseSelector(SelectorOf("double(u64)").String())
	require.NoError(t, err)
	assert.Equal(t, SelectorOf("double(u64)"), sel)

	_, err = ParseSelector("nope")
	assert.ErrorIs(t, err, proxy.ErrInvalidSelector)
}
