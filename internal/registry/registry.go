package registry

import (
	"context"
	"fmt"

	"github.com/rmacdonaldsmith/facetproxy-go/pkg/proxy"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/storage"
)

// Directory resolves contract addresses to callable implementations.
type Directory interface {
	Lookup(addr proxy.Address) (proxy.Implementation, bool)
}

// DirectoryFunc adapts a function to the Directory interface.
type DirectoryFunc func(addr proxy.Address) (proxy.Implementation, bool)

// Lookup calls f(addr).
func (f DirectoryFunc) Lookup(addr proxy.Address) (proxy.Implementation, bool) {
	return f(addr)
}

// Deployment holds the configurables a proxy is deployed with.
type Deployment struct {
	// Target is the implementation whose selectors are routed at deploy time.
	// The zero address means no target.
	Target proxy.Address

	// InitialOwner is the first owner. The zero identity deploys the proxy
	// already revoked.
	InitialOwner proxy.Identity
}

// Registry implements the facet registry and the ownership controller of a
// proxy. It keeps no state of its own: every handler reads and writes the
// storage.Tx it is given, and the caller decides whether to commit.
type Registry struct {
	dir Directory
}

// New creates a registry that forwards calls to implementations found in dir.
func New(dir Directory) *Registry {
	return &Registry{dir: dir}
}

// Initialize writes the deployment configurables into fresh proxy storage.
// An unknown target is not an error; it simply seeds no routes.
func (r *Registry) Initialize(ctx context.Context, st storage.Tx, dep Deployment) error {
	if err := st.SetOwner(ctx, dep.InitialOwner); err != nil {
		return fmt.Errorf("failed to store initial owner: %w", err)
	}
	if dep.Target.IsZero() {
		return nil
	}

	impl, ok := r.dir.Lookup(dep.Target)
	if !ok {
		return nil
	}
	lister, ok := impl.(proxy.SelectorLister)
	if !ok {
		return nil
	}
	for _, sel := range lister.Selectors() {
		if err := st.SetRoute(ctx, sel, dep.Target); err != nil {
			return fmt.Errorf("failed to seed route %s: %w", sel, err)
		}
	}
	return nil
}

// Owner returns the current owner. ok is false once ownership is revoked.
func (r *Registry) Owner(ctx context.Context, st storage.Tx) (owner proxy.Identity, ok bool, err error) {
	owner, err = st.Owner(ctx)
	if err != nil {
		return proxy.Identity{}, false, fmt.Errorf("failed to read owner: %w", err)
	}
	if owner.IsZero() {
		return proxy.Identity{}, false, nil
	}
	return owner, true, nil
}

// authorize fails with proxy.ErrAuth unless caller is the current owner.
// A revoked proxy has no owner, so nobody passes.
func (r *Registry) authorize(ctx context.Context, st storage.Tx, caller proxy.Identity) error {
	owner, ok, err := r.Owner(ctx, st)
	if err != nil {
		return err
	}
	if !ok || owner != caller {
		return proxy.ErrAuth
	}
	return nil
}

// SetFacetForSelector routes selector to implementation, replacing any
// previous route. The implementation address is not validated.
func (r *Registry) SetFacetForSelector(ctx context.Context, st storage.Tx, caller proxy.Identity, selector proxy.Selector, implementation proxy.Address) error {
	if err := r.authorize(ctx, st, caller); err != nil {
		return err
	}
	if err := st.SetRoute(ctx, selector, implementation); err != nil {
		return fmt.Errorf("failed to set route %s: %w", selector, err)
	}
	return nil
}

// RemoveSelector deletes the route for selector. Removing a selector that
// has no route succeeds.
func (r *Registry) RemoveSelector(ctx context.Context, st storage.Tx, caller proxy.Identity, selector proxy.Selector) error {
	if err := r.authorize(ctx, st, caller); err != nil {
		return err
	}
	if err := st.DeleteRoute(ctx, selector); err != nil {
		return fmt.Errorf("failed to remove route %s: %w", selector, err)
	}
	return nil
}

// TransferOwnership replaces the owner with newOwner. Transferring to the
// zero identity has the same effect as RevokeOwnership.
func (r *Registry) TransferOwnership(ctx context.Context, st storage.Tx, caller, newOwner proxy.Identity) error {
	if err := r.authorize(ctx, st, caller); err != nil {
		return err
	}
	if err := st.SetOwner(ctx, newOwner); err != nil {
		return fmt.Errorf("failed to transfer ownership: %w", err)
	}
	return nil
}

// RevokeOwnership clears the owner for good. Afterwards every administrative
// call reverts and the routing table can no longer change.
func (r *Registry) RevokeOwnership(ctx context.Context, st storage.Tx, caller proxy.Identity) error {
	if err := r.authorize(ctx, st, caller); err != nil {
		return err
	}
	if err := st.SetOwner(ctx, proxy.Identity{}); err != nil {
		return fmt.Errorf("failed to revoke ownership: %w", err)
	}
	return nil
}

// Route returns the implementation routed for selector, if any.
func (r *Registry) Route(ctx context.Context, st storage.Tx, selector proxy.Selector) (proxy.Address, bool, error) {
	addr, ok, err := st.Route(ctx, selector)
	if err != nil {
		return proxy.Address{}, false, fmt.Errorf("failed to read route %s: %w", selector, err)
	}
	return addr, ok, nil
}

// Routes returns the whole routing table ordered by selector.
func (r *Registry) Routes(ctx context.Context, st storage.Tx) ([]storage.Route, error) {
	routes, err := st.Routes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read routes: %w", err)
	}
	return routes, nil
}

// Resolve returns the implementation for selector or proxy.ErrUnresolvedSelector.
func (r *Registry) Resolve(ctx context.Context, st storage.Tx, selector proxy.Selector) (proxy.Address, error) {
	addr, ok, err := r.Route(ctx, st, selector)
	if err != nil {
		return proxy.Address{}, err
	}
	if !ok {
		return proxy.Address{}, proxy.ErrUnresolvedSelector
	}
	return addr, nil
}

// Forward runs call against the implementation at addr. The result and any
// revert come back exactly as the implementation produced them.
func (r *Registry) Forward(ctx context.Context, addr proxy.Address, call proxy.Call) ([]byte, error) {
	impl, ok := r.dir.Lookup(addr)
	if !ok {
		return nil, proxy.NewRevert(proxy.ReasonContractNotFound)
	}
	return impl.Call(ctx, call)
}

// Dispatch resolves call.Selector and forwards the call to its implementation.
// Dispatch never writes to st.
func (r *Registry) Dispatch(ctx context.Context, st storage.Tx, call proxy.Call) ([]byte, error) {
	addr, err := r.Resolve(ctx, st, call.Selector)
	if err != nil {
		return nil, err
	}
	return r.Forward(ctx, addr, call)
}
