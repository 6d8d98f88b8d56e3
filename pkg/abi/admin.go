package abi

import "github.com/rmacdonaldsmith/facetproxy-go/pkg/proxy"

// Signatures of the entry points every proxy implements natively. Calls to
// these selectors never reach the routing table.
const (
	SigProxyOwner             = "_proxy_owner()"
	SigProxyTarget            = "_proxy_target(u64)"
	SigProxySetFacet          = "_proxy_set_facet_for_selector(u64,ContractId)"
	SigProxyRemoveSelector    = "_proxy_remove_selector(u64)"
	SigProxyTransferOwnership = "_proxy_transfer_ownership(Identity)"
	SigProxyRevokeOwnership   = "_proxy_revoke_ownership()"
)

// Selectors of the native proxy entry points.
var (
	ProxyOwner             = SelectorOf(SigProxyOwner)
	ProxyTarget            = SelectorOf(SigProxyTarget)
	ProxySetFacet          = SelectorOf(SigProxySetFacet)
	ProxyRemoveSelector    = SelectorOf(SigProxyRemoveSelector)
	ProxyTransferOwnership = SelectorOf(SigProxyTransferOwnership)
	ProxyRevokeOwnership   = SelectorOf(SigProxyRevokeOwnership)
)

// EncodeSetFacet encodes the arguments of _proxy_set_facet_for_selector.
func EncodeSetFacet(selector proxy.Selector, implementation proxy.Address) []byte {
	return NewEncoder().U64(uint64(selector)).B256(implementation).Bytes()
}

// DecodeSetFacet decodes the arguments of _proxy_set_facet_for_selector.
func DecodeSetFacet(b []byte) (proxy.Selector, proxy.Address, error) {
	d := NewDecoder(b)
	sel, err := d.U64()
	if err != nil {
		return 0, proxy.Address{}, err
	}
	impl, err := d.B256()
	if err != nil {
		return 0, proxy.Address{}, err
	}
	return proxy.Selector(sel), impl, d.Done()
}

// EncodeSelector encodes a lone selector argument, as taken by
// _proxy_remove_selector and _proxy_target.
func EncodeSelector(selector proxy.Selector) []byte {
	return EncodeU64(uint64(selector))
}

// DecodeSelector decodes a lone selector argument.
func DecodeSelector(b []byte) (proxy.Selector, error) {
	v, err := DecodeU64(b)
	return proxy.Selector(v), err
}

// EncodeIdentity encodes a lone Identity argument.
func EncodeIdentity(id proxy.Identity) []byte {
	return NewEncoder().Identity(id).Bytes()
}

// DecodeIdentity decodes a lone Identity argument.
func DecodeIdentity(b []byte) (proxy.Identity, error) {
	d := NewDecoder(b)
	id, err := d.Identity()
	if err != nil {
		return proxy.Identity{}, err
	}
	return id, d.Done()
}

// DecodeOptionIdentity decodes a lone Option<Identity> return value.
func DecodeOptionIdentity(b []byte) (proxy.Identity, bool, error) {
	d := NewDecoder(b)
	id, ok, err := d.OptionIdentity()
	if err != nil {
		return proxy.Identity{}, false, err
	}
	return id, ok, d.Done()
}

// DecodeOptionB256 decodes a lone Option<b256> return value.
func DecodeOptionB256(b []byte) (proxy.Address, bool, error) {
	d := NewDecoder(b)
	a, ok, err := d.OptionB256()
	if err != nil {
		return proxy.Address{}, false, err
	}
	return a, ok, d.Done()
}
