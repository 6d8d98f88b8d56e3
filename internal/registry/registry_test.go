package registry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memstore "github.com/rmacdonaldsmith/facetproxy-go/internal/storage"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/abi"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/proxy"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/storage"
)

var (
	proxyAddr = proxy.BytesToAddress([]byte{0xff})
	implAddrA = proxy.BytesToAddress([]byte{0x0a})
	implAddrB = proxy.BytesToAddress([]byte{0x0b})

	alice = proxy.AccountIdentity(proxy.BytesToAddress([]byte{0xa1}))
	bob   = proxy.AccountIdentity(proxy.BytesToAddress([]byte{0xb0}))
	carol = proxy.ContractIdentity(proxy.BytesToAddress([]byte{0xc0}))

	doubleSel = abi.SelectorOf("double(u64)")
)

// recordingImpl is a test double that records the calls it receives.
type recordingImpl struct {
	mu        sync.Mutex
	calls     []proxy.Call
	result    []byte
	err       error
	selectors []proxy.Selector
}

func (m *recordingImpl) Call(ctx context.Context, call proxy.Call) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	return m.result, m.err
}

func (m *recordingImpl) Selectors() []proxy.Selector {
	return m.selectors
}

func (m *recordingImpl) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type directory map[proxy.Address]proxy.Implementation

func (d directory) Lookup(addr proxy.Address) (proxy.Implementation, bool) {
	impl, ok := d[addr]
	return impl, ok
}

// fixture is a registry over a memory store with one proxy owned by owner.
type fixture struct {
	t     *testing.T
	ctx   context.Context
	reg   *Registry
	store storage.Store
	dir   directory
}

func newFixture(t *testing.T, owner proxy.Identity) *fixture {
	t.Helper()
	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		store: memstore.NewMemoryStore(),
		dir:   directory{},
	}
	f.reg = New(f.dir)
	t.Cleanup(func() { f.store.Close() })

	require.NoError(t, f.exec(func(st storage.Tx) error {
		return f.reg.Initialize(f.ctx, st, Deployment{InitialOwner: owner})
	}))
	return f
}

// exec runs fn in a storage transaction, committing only on success.
func (f *fixture) exec(fn func(st storage.Tx) error) error {
	f.t.Helper()
	st, err := f.store.Begin(f.ctx, proxyAddr)
	require.NoError(f.t, err)
	defer st.Rollback()

	if err := fn(st); err != nil {
		return err
	}
	require.NoError(f.t, st.Commit())
	return nil
}

func (f *fixture) owner() (proxy.Identity, bool) {
	f.t.Helper()
	var (
		owner proxy.Identity
		ok    bool
	)
	require.NoError(f.t, f.exec(func(st storage.Tx) error {
		var err error
		owner, ok, err = f.reg.Owner(f.ctx, st)
		return err
	}))
	return owner, ok
}

func (f *fixture) routes() []storage.Route {
	f.t.Helper()
	var routes []storage.Route
	require.NoError(f.t, f.exec(func(st storage.Tx) error {
		var err error
		routes, err = f.reg.Routes(f.ctx, st)
		return err
	}))
	return routes
}

func (f *fixture) setFacet(caller proxy.Identity, sel proxy.Selector, impl proxy.Address) error {
	return f.exec(func(st storage.Tx) error {
		return f.reg.SetFacetForSelector(f.ctx, st, caller, sel, impl)
	})
}

func (f *fixture) removeSelector(caller proxy.Identity, sel proxy.Selector) error {
	return f.exec(func(st storage.Tx) error {
		return f.reg.RemoveSelector(f.ctx, st, caller, sel)
	})
}

func (f *fixture) transfer(caller, newOwner proxy.Identity) error {
	return f.exec(func(st storage.Tx) error {
		return f.reg.TransferOwnership(f.ctx, st, caller, newOwner)
	})
}

func (f *fixture) revoke(caller proxy.Identity) error {
	return f.exec(func(st storage.Tx) error {
		return f.reg.RevokeOwnership(f.ctx, st, caller)
	})
}

func (f *fixture) dispatch(caller proxy.Identity, sel proxy.Selector, args []byte) ([]byte, error) {
	var out []byte
	err := f.exec(func(st storage.Tx) error {
		var err error
		out, err = f.reg.Dispatch(f.ctx, st, proxy.Call{
			Caller:   caller,
			Contract: proxyAddr,
			Selector: sel,
			Args:     args,
		})
		return err
	})
	return out, err
}

func TestRegistry_InitialOwner(t *testing.T) {
	f := newFixture(t, alice)

	owner, ok := f.owner()
	assert.True(t, ok)
	assert.Equal(t, alice, owner)
	assert.Empty(t, f.routes())
}

func TestRegistry_DeployedWithoutOwnerIsRevoked(t *testing.T) {
	f := newFixture(t, proxy.Identity{})

	_, ok := f.owner()
	assert.False(t, ok)

	err := f.setFacet(proxy.Identity{}, doubleSel, implAddrA)
	assert.ErrorIs(t, err, proxy.ErrAuth, "the zero identity never authorizes")
}

func TestRegistry_InitializeSeedsTargetSelectors(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewMemoryStore()
	defer store.Close()

	target := &recordingImpl{selectors: []proxy.Selector{doubleSel, 7}}
	reg := New(directory{implAddrA: target})

	st, err := store.Begin(ctx, proxyAddr)
	require.NoError(t, err)
	require.NoError(t, reg.Initialize(ctx, st, Deployment{Target: implAddrA, InitialOwner: alice}))

	routes, err := reg.Routes(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, []storage.Route{
		{Selector: 7, Implementation: implAddrA},
		{Selector: doubleSel, Implementation: implAddrA},
	}, routes)
	require.NoError(t, st.Commit())
}

func TestRegistry_InitializeWithUnknownTargetSeedsNothing(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewMemoryStore()
	defer store.Close()

	reg := New(directory{})
	st, err := store.Begin(ctx, proxyAddr)
	require.NoError(t, err)
	defer st.Rollback()

	require.NoError(t, reg.Initialize(ctx, st, Deployment{Target: implAddrA, InitialOwner: alice}))
	routes, err := reg.Routes(ctx, st)
	require.NoError(t, err)
	assert.Empty(t, routes)
}

func TestRegistry_DispatchUnresolvedSelector(t *testing.T) {
	f := newFixture(t, alice)
	impl := &recordingImpl{}
	f.dir[implAddrA] = impl

	// Fill the table with unrelated selectors; the unrouted one still reverts.
	for sel := proxy.Selector(1); sel <= 50; sel++ {
		require.NoError(t, f.setFacet(alice, sel, implAddrA))
	}

	_, err := f.dispatch(bob, doubleSel, abi.EncodeU64(5))
	require.ErrorIs(t, err, proxy.ErrUnresolvedSelector)

	reason, ok := proxy.ReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, "Revert(0)", reason)
	assert.Zero(t, impl.callCount(), "no implementation may be invoked")
}

func TestRegistry_DispatchForwardsCallVerbatim(t *testing.T) {
	f := newFixture(t, alice)
	impl := &recordingImpl{result: abi.EncodeU64(10)}
	f.dir[implAddrA] = impl
	require.NoError(t, f.setFacet(alice, doubleSel, implAddrA))

	out, err := f.dispatch(bob, doubleSel, abi.EncodeU64(5))
	require.NoError(t, err)
	assert.Equal(t, abi.EncodeU64(10), out)

	require.Equal(t, 1, impl.callCount())
	got := impl.calls[0]
	assert.Equal(t, bob, got.Caller)
	assert.Equal(t, proxyAddr, got.Contract)
	assert.Equal(t, doubleSel, got.Selector)
	assert.Equal(t, abi.EncodeU64(5), got.Args)
}

func TestRegistry_DispatchPropagatesRevertUnchanged(t *testing.T) {
	f := newFixture(t, alice)
	revert := proxy.NewRevert("Overflow")
	f.dir[implAddrA] = &recordingImpl{err: revert}
	require.NoError(t, f.setFacet(alice, doubleSel, implAddrA))

	_, err := f.dispatch(bob, doubleSel, nil)
	assert.Same(t, revert, err, "the implementation's error must not be wrapped")
}

func TestRegistry_DispatchPropagatesNonRevertErrors(t *testing.T) {
	f := newFixture(t, alice)
	boom := errors.New("link down")
	f.dir[implAddrA] = &recordingImpl{err: boom}
	require.NoError(t, f.setFacet(alice, doubleSel, implAddrA))

	_, err := f.dispatch(bob, doubleSel, nil)
	assert.Same(t, boom, err)
}

func TestRegistry_DispatchToMissingContract(t *testing.T) {
	f := newFixture(t, alice)
	require.NoError(t, f.setFacet(alice, doubleSel, implAddrB))

	_, err := f.dispatch(bob, doubleSel, nil)
	reason, ok := proxy.ReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, proxy.ReasonContractNotFound, reason)
}

func TestRegistry_NonOwnerCannotAdminister(t *testing.T) {
	f := newFixture(t, alice)
	require.NoError(t, f.setFacet(alice, doubleSel, implAddrA))

	assert.ErrorIs(t, f.setFacet(bob, doubleSel, implAddrB), proxy.ErrAuth)
	assert.ErrorIs(t, f.removeSelector(bob, doubleSel), proxy.ErrAuth)
	assert.ErrorIs(t, f.transfer(bob, bob), proxy.ErrAuth)
	assert.ErrorIs(t, f.revoke(bob), proxy.ErrAuth)

	reason, _ := proxy.ReasonOf(f.revoke(bob))
	assert.Equal(t, "Auth", reason)

	// Nothing changed.
	owner, ok := f.owner()
	assert.True(t, ok)
	assert.Equal(t, alice, owner)
	assert.Equal(t, []storage.Route{{Selector: doubleSel, Implementation: implAddrA}}, f.routes())
}

func TestRegistry_OwnerKindMatters(t *testing.T) {
	f := newFixture(t, alice)
	impostor := proxy.ContractIdentity(alice.Value)

	assert.ErrorIs(t, f.setFacet(impostor, doubleSel, implAddrA), proxy.ErrAuth)
}

func TestRegistry_OverwriteKeepsLatest(t *testing.T) {
	f := newFixture(t, alice)
	implA := &recordingImpl{result: []byte("a")}
	implB := &recordingImpl{result: []byte("b")}
	f.dir[implAddrA] = implA
	f.dir[implAddrB] = implB

	require.NoError(t, f.setFacet(alice, doubleSel, implAddrA))
	require.NoError(t, f.setFacet(alice, doubleSel, implAddrB))
	require.NoError(t, f.setFacet(alice, doubleSel, implAddrB), "setting the same route twice is idempotent")

	out, err := f.dispatch(bob, doubleSel, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), out)
	assert.Zero(t, implA.callCount())
	assert.Equal(t, []storage.Route{{Selector: doubleSel, Implementation: implAddrB}}, f.routes())
}

func TestRegistry_RemoveSelector(t *testing.T) {
	f := newFixture(t, alice)
	f.dir[implAddrA] = &recordingImpl{}
	require.NoError(t, f.setFacet(alice, doubleSel, implAddrA))

	require.NoError(t, f.removeSelector(alice, doubleSel))
	_, err := f.dispatch(bob, doubleSel, nil)
	assert.ErrorIs(t, err, proxy.ErrUnresolvedSelector)

	assert.NoError(t, f.removeSelector(alice, doubleSel), "removing an absent selector succeeds")
}

func TestRegistry_ChainedTransfers(t *testing.T) {
	f := newFixture(t, alice)

	require.NoError(t, f.transfer(alice, bob))
	owner, _ := f.owner()
	assert.Equal(t, bob, owner)

	assert.ErrorIs(t, f.transfer(alice, carol), proxy.ErrAuth, "previous owner lost authority")

	require.NoError(t, f.transfer(bob, carol))
	owner, _ = f.owner()
	assert.Equal(t, carol, owner)

	assert.ErrorIs(t, f.setFacet(bob, doubleSel, implAddrA), proxy.ErrAuth)
	assert.NoError(t, f.setFacet(carol, doubleSel, implAddrA))
}

func TestRegistry_RevokeIsTerminal(t *testing.T) {
	f := newFixture(t, alice)
	f.dir[implAddrA] = &recordingImpl{result: []byte("ok")}
	require.NoError(t, f.setFacet(alice, doubleSel, implAddrA))

	require.NoError(t, f.revoke(alice))

	_, ok := f.owner()
	assert.False(t, ok)

	for _, caller := range []proxy.Identity{alice, bob, carol, {}} {
		assert.ErrorIs(t, f.setFacet(caller, 9, implAddrA), proxy.ErrAuth)
		assert.ErrorIs(t, f.removeSelector(caller, doubleSel), proxy.ErrAuth)
		assert.ErrorIs(t, f.transfer(caller, caller), proxy.ErrAuth)
		assert.ErrorIs(t, f.revoke(caller), proxy.ErrAuth)
	}

	// The frozen table still dispatches.
	out, err := f.dispatch(bob, doubleSel, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), out)
}

func TestRegistry_TransferToZeroIdentityRevokes(t *testing.T) {
	f := newFixture(t, alice)

	require.NoError(t, f.transfer(alice, proxy.Identity{}))
	_, ok := f.owner()
	assert.False(t, ok)
	assert.ErrorIs(t, f.revoke(alice), proxy.ErrAuth)
}

func TestRegistry_DispatchDoesNotMutate(t *testing.T) {
	f := newFixture(t, alice)
	f.dir[implAddrA] = &recordingImpl{err: proxy.NewRevert("nope")}
	require.NoError(t, f.setFacet(alice, doubleSel, implAddrA))
	before := f.routes()

	_, _ = f.dispatch(bob, doubleSel, nil)
	_, _ = f.dispatch(bob, 12345, nil)

	assert.Equal(t, before, f.routes())
	owner, _ := f.owner()
	assert.Equal(t, alice, owner)
}

func TestDirectoryFunc(t *testing.T) {
	impl := &recordingImpl{}
	dir := DirectoryFunc(func(addr proxy.Address) (proxy.Implementation, bool) {
		return impl, addr == implAddrA
	})

	got, ok := dir.Lookup(implAddrA)
	assert.True(t, ok)
	assert.Same(t, impl, got)

	_, ok = dir.Lookup(implAddrB)
	assert.False(t, ok)
}
