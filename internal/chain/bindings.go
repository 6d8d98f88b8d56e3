package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/rmacdonaldsmith/facetproxy-go/pkg/abi"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/chain"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/proxy"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/txlog"
)

// ErrTxFailed is returned by bindings when a transaction failed for a reason
// other than a revert.
var ErrTxFailed = errors.New("transaction failed")

// ReceiptError turns a receipt into the error a binding returns: the
// *proxy.Revert of a reverted transaction, ErrTxFailed for a failed one, or
// nil on success.
func ReceiptError(r *txlog.Receipt) error {
	switch r.Status {
	case txlog.StatusSuccess:
		return nil
	case txlog.StatusRevert:
		rev, _ := r.Revert()
		return rev
	default:
		return fmt.Errorf("%w: %s", ErrTxFailed, r.Error)
	}
}

// Contract is a typed handle on a deployed contract that sends transactions
// as one account.
type Contract struct {
	node    chain.Node
	addr    proxy.Address
	account proxy.Identity
}

// NewContract binds the contract at addr, sending as account.
func NewContract(node chain.Node, addr proxy.Address, account proxy.Identity) *Contract {
	return &Contract{node: node, addr: addr, account: account}
}

// Address returns the bound address.
func (c *Contract) Address() proxy.Address {
	return c.addr
}

// Account returns the identity transactions are sent as.
func (c *Contract) Account() proxy.Identity {
	return c.account
}

// WithAccount returns a copy of the binding that sends as account.
func (c *Contract) WithAccount(account proxy.Identity) *Contract {
	cp := *c
	cp.account = account
	return &cp
}

// Invoke sends one transaction calling signature with args. The receipt is
// returned even when the transaction reverted.
func (c *Contract) Invoke(ctx context.Context, signature string, args []byte, value uint64) (*txlog.Receipt, error) {
	return c.invoke(ctx, abi.SelectorOf(signature), args, value)
}

func (c *Contract) invoke(ctx context.Context, sel proxy.Selector, args []byte, value uint64) (*txlog.Receipt, error) {
	r, err := c.node.Call(ctx, c.account, c.addr, sel, args, value)
	if err != nil {
		return nil, err
	}
	return r, ReceiptError(r)
}

// CallU64 calls a function taking one u64 and returning one u64.
func (c *Contract) CallU64(ctx context.Context, signature string, v uint64) (uint64, error) {
	r, err := c.Invoke(ctx, signature, abi.EncodeU64(v), 0)
	if err != nil {
		return 0, err
	}
	return abi.DecodeU64(r.Return)
}

// ProxyAdmin is a typed handle on a proxy's native entry points.
type ProxyAdmin struct {
	*Contract
}

// NewProxyAdmin binds the proxy at addr, sending as account.
func NewProxyAdmin(node chain.Node, addr proxy.Address, account proxy.Identity) *ProxyAdmin {
	return &ProxyAdmin{Contract: NewContract(node, addr, account)}
}

// WithAccount returns a copy of the binding that sends as account.
func (p *ProxyAdmin) WithAccount(account proxy.Identity) *ProxyAdmin {
	return &ProxyAdmin{Contract: p.Contract.WithAccount(account)}
}

// Owner returns the proxy's owner; ok is false once ownership is revoked.
func (p *ProxyAdmin) Owner(ctx context.Context) (owner proxy.Identity, ok bool, err error) {
	r, err := p.invoke(ctx, abi.ProxyOwner, nil, 0)
	if err != nil {
		return proxy.Identity{}, false, err
	}
	return abi.DecodeOptionIdentity(r.Return)
}

// Target returns the implementation routed for selector, if any.
func (p *ProxyAdmin) Target(ctx context.Context, selector proxy.Selector) (proxy.Address, bool, error) {
	r, err := p.invoke(ctx, abi.ProxyTarget, abi.EncodeSelector(selector), 0)
	if err != nil {
		return proxy.Address{}, false, err
	}
	return abi.DecodeOptionB256(r.Return)
}

// SetFacetForSelector routes selector to implementation.
func (p *ProxyAdmin) SetFacetForSelector(ctx context.Context, selector proxy.Selector, implementation proxy.Address) (*txlog.Receipt, error) {
	return p.invoke(ctx, abi.ProxySetFacet, abi.EncodeSetFacet(selector, implementation), 0)
}

// RemoveSelector deletes the route for selector.
func (p *ProxyAdmin) RemoveSelector(ctx context.Context, selector proxy.Selector) (*txlog.Receipt, error) {
	return p.invoke(ctx, abi.ProxyRemoveSelector, abi.EncodeSelector(selector), 0)
}

// TransferOwnership hands the proxy to newOwner.
func (p *ProxyAdmin) TransferOwnership(ctx context.Context, newOwner proxy.Identity) (*txlog.Receipt, error) {
	return p.invoke(ctx, abi.ProxyTransferOwnership, abi.EncodeIdentity(newOwner), 0)
}

// RevokeOwnership clears the owner for good.
func (p *ProxyAdmin) RevokeOwnership(ctx context.Context) (*txlog.Receipt, error) {
	return p.invoke(ctx, abi.ProxyRevokeOwnership, nil, 0)
}
