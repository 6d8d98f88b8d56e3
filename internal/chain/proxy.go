package chain

import (
	"context"
	"fmt"

	"github.com/rmacdonaldsmith/facetproxy-go/pkg/abi"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/proxy"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/storage"
)

// ProxyContract is a deployed facet-dispatch proxy. Its native entry points
// administer the routing table and ownership; every other selector is
// dispatched through the routing table.
type ProxyContract struct {
	addr proxy.Address
	rt   *Runtime
}

// Address returns the address the proxy is deployed at.
func (p *ProxyContract) Address() proxy.Address {
	return p.addr
}

// Selectors lists the native entry points.
func (p *ProxyContract) Selectors() []proxy.Selector {
	return []proxy.Selector{
		abi.ProxyOwner,
		abi.ProxyTarget,
		abi.ProxySetFacet,
		abi.ProxyRemoveSelector,
		abi.ProxyTransferOwnership,
		abi.ProxyRevokeOwnership,
	}
}

type adminHandler func(ctx context.Context, st storage.Tx, call proxy.Call) ([]byte, error)

func (p *ProxyContract) admin(sel proxy.Selector) (adminHandler, bool) {
	switch sel {
	case abi.ProxyOwner:
		return p.owner, true
	case abi.ProxyTarget:
		return p.target, true
	case abi.ProxySetFacet:
		return p.setFacet, true
	case abi.ProxyRemoveSelector:
		return p.removeSelector, true
	case abi.ProxyTransferOwnership:
		return p.transferOwnership, true
	case abi.ProxyRevokeOwnership:
		return p.revokeOwnership, true
	}
	return nil, false
}

// Call runs a native entry point or dispatches the call.
func (p *ProxyContract) Call(ctx context.Context, call proxy.Call) ([]byte, error) {
	if h, ok := p.admin(call.Selector); ok {
		return p.execAdmin(ctx, h, call)
	}
	return p.dispatch(ctx, call)
}

// execAdmin runs h in a storage transaction that commits only on success.
func (p *ProxyContract) execAdmin(ctx context.Context, h adminHandler, call proxy.Call) ([]byte, error) {
	st, err := p.rt.store.Begin(ctx, p.addr)
	if err != nil {
		return nil, fmt.Errorf("failed to open proxy storage: %w", err)
	}
	defer st.Rollback()

	out, err := h(ctx, st, call)
	if err != nil {
		return nil, err
	}
	if err := st.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit proxy storage: %w", err)
	}
	return out, nil
}

// dispatch resolves the route in a read-only transaction and releases it
// before forwarding, so the implementation may itself be a proxy.
func (p *ProxyContract) dispatch(ctx context.Context, call proxy.Call) ([]byte, error) {
	st, err := p.rt.store.Begin(ctx, p.addr)
	if err != nil {
		return nil, fmt.Errorf("failed to open proxy storage: %w", err)
	}
	impl, err := p.rt.registry.Resolve(ctx, st, call.Selector)
	if rbErr := st.Rollback(); rbErr != nil && err == nil {
		err = fmt.Errorf("failed to release proxy storage: %w", rbErr)
	}
	if err != nil {
		return nil, err
	}
	return p.rt.registry.Forward(ctx, impl, call)
}

func invalidArgs() error {
	return proxy.NewRevert(proxy.ReasonInvalidArgs)
}

func (p *ProxyContract) owner(ctx context.Context, st storage.Tx, call proxy.Call) ([]byte, error) {
	if len(call.Args) != 0 {
		return nil, invalidArgs()
	}
	owner, ok, err := p.rt.registry.Owner(ctx, st)
	if err != nil {
		return nil, err
	}
	return abi.NewEncoder().OptionIdentity(owner, ok).Bytes(), nil
}

func (p *ProxyContract) target(ctx context.Context, st storage.Tx, call proxy.Call) ([]byte, error) {
	sel, err := abi.DecodeSelector(call.Args)
	if err != nil {
		return nil, invalidArgs()
	}
	addr, ok, err := p.rt.registry.Route(ctx, st, sel)
	if err != nil {
		return nil, err
	}
	return abi.NewEncoder().OptionB256(addr, ok).Bytes(), nil
}

func (p *ProxyContract) setFacet(ctx context.Context, st storage.Tx, call proxy.Call) ([]byte, error) {
	sel, impl, err := abi.DecodeSetFacet(call.Args)
	if err != nil {
		return nil, invalidArgs()
	}
	return nil, p.rt.registry.SetFacetForSelector(ctx, st, call.Caller, sel, impl)
}

func (p *ProxyContract) removeSelector(ctx context.Context, st storage.Tx, call proxy.Call) ([]byte, error) {
	sel, err := abi.DecodeSelector(call.Args)
	if err != nil {
		return nil, invalidArgs()
	}
	return nil, p.rt.registry.RemoveSelector(ctx, st, call.Caller, sel)
}

func (p *ProxyContract) transferOwnership(ctx context.Context, st storage.Tx, call proxy.Call) ([]byte, error) {
	newOwner, err := abi.DecodeIdentity(call.Args)
	if err != nil {
		return nil, invalidArgs()
	}
	return nil, p.rt.registry.TransferOwnership(ctx, st, call.Caller, newOwner)
}

func (p *ProxyContract) revokeOwnership(ctx context.Context, st storage.Tx, call proxy.Call) ([]byte, error) {
	if len(call.Args) != 0 {
		return nil, invalidArgs()
	}
	return nil, p.rt.registry.RevokeOwnership(ctx, st, call.Caller)
}

// Verify that ProxyContract implements the Implementation interface at compile time
var (
	_ proxy.Implementation = (*ProxyContract)(nil)
	_ proxy.SelectorLister = (*ProxyContract)(nil)
)
