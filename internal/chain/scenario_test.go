package chain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rmacdonaldsmith/facetproxy-go/internal/facets"
	"github.com/rmacdonaldsmith/facetproxy-go/internal/registry"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/abi"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/proxy"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/txlog"
)

var (
	deployer = proxy.AccountIdentity(proxy.BytesToAddress([]byte{0xd0}))
	wallet1  = proxy.AccountIdentity(proxy.BytesToAddress([]byte{0x01}))
	wallet2  = proxy.AccountIdentity(proxy.BytesToAddress([]byte{0x02}))
	wallet3  = proxy.AccountIdentity(proxy.BytesToAddress([]byte{0x03}))

	doubleSel = abi.SelectorOf("double(u64)")
	tripleSel = abi.SelectorOf("triple(u64)")
)

// env is a runtime with MyContract deployed and a proxy owned by deployer.
type env struct {
	ctx      context.Context
	rt       *Runtime
	implAddr proxy.Address
	admin    *ProxyAdmin
	caller   *Contract
}

func setup(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	rt, err := NewRuntime(NewConfig("test").WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	t.Cleanup(func() { rt.Close() })

	implAddr, err := rt.Deploy(ctx, "MyContract", facets.NewMyContract())
	require.NoError(t, err)

	proxyAddr, err := rt.DeployProxy(ctx, "proxy", registry.Deployment{InitialOwner: deployer})
	require.NoError(t, err)

	return &env{
		ctx:      ctx,
		rt:       rt,
		implAddr: implAddr,
		admin:    NewProxyAdmin(rt, proxyAddr, deployer),
		caller:   NewContract(rt, proxyAddr, wallet1),
	}
}

func requireReason(t *testing.T, err error, reason string) {
	t.Helper()
	got, ok := proxy.ReasonOf(err)
	require.True(t, ok, "expected a revert, got %v", err)
	assert.Equal(t, reason, got)
}

func TestScenario_DoubleThroughProxy(t *testing.T) {
	e := setup(t)

	// Not routed yet.
	_, err := e.caller.CallU64(e.ctx, "double(u64)", 5)
	requireReason(t, err, "Revert(0)")
	assert.ErrorIs(t, err, proxy.ErrUnresolvedSelector)

	r, err := e.admin.SetFacetForSelector(e.ctx, doubleSel, e.implAddr)
	require.NoError(t, err)
	assert.True(t, r.Succeeded())

	got, err := e.caller.CallU64(e.ctx, "double(u64)", 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), got)

	// Unregistered selector on a populated table.
	_, err = e.caller.CallU64(e.ctx, "triple(u64)", 5)
	requireReason(t, err, "Revert(0)")

	_, err = e.admin.RemoveSelector(e.ctx, doubleSel)
	require.NoError(t, err)
	_, err = e.caller.CallU64(e.ctx, "double(u64)", 5)
	assert.ErrorIs(t, err, proxy.ErrUnresolvedSelector)
}

func TestScenario_ImplementationRevertPropagates(t *testing.T) {
	e := setup(t)
	_, err := e.admin.SetFacetForSelector(e.ctx, doubleSel, e.implAddr)
	require.NoError(t, err)

	_, err = e.caller.CallU64(e.ctx, "double(u64)", 1<<63)
	requireReason(t, err, facets.ReasonOverflow)
	rev, _ := proxy.AsRevert(err)
	assert.Equal(t, proxy.RevertImplementation, rev.Kind)
}

func TestScenario_NonOwnerReverts(t *testing.T) {
	e := setup(t)
	attacker := e.admin.WithAccount(wallet1)

	_, err := attacker.SetFacetForSelector(e.ctx, doubleSel, e.implAddr)
	requireReason(t, err, "Auth")
	_, err = attacker.RemoveSelector(e.ctx, doubleSel)
	requireReason(t, err, "Auth")
	_, err = attacker.TransferOwnership(e.ctx, wallet1)
	requireReason(t, err, "Auth")
	_, err = attacker.RevokeOwnership(e.ctx)
	requireReason(t, err, "Auth")

	owner, ok, err := e.admin.Owner(e.ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, deployer, owner)

	_, routed, err := e.admin.Target(e.ctx, doubleSel)
	require.NoError(t, err)
	assert.False(t, routed)
}

func TestScenario_ChainedOwnershipTransfer(t *testing.T) {
	e := setup(t)

	_, err := e.admin.TransferOwnership(e.ctx, wallet1)
	require.NoError(t, err)
	owner, _, err := e.admin.Owner(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, wallet1, owner)

	_, err = e.admin.TransferOwnership(e.ctx, wallet2)
	requireReason(t, err, "Auth")

	_, err = e.admin.WithAccount(wallet1).TransferOwnership(e.ctx, wallet2)
	require.NoError(t, err)
	_, err = e.admin.WithAccount(wallet2).TransferOwnership(e.ctx, wallet3)
	require.NoError(t, err)

	owner, _, err = e.admin.Owner(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, wallet3, owner)

	_, err = e.admin.WithAccount(wallet3).SetFacetForSelector(e.ctx, doubleSel, e.implAddr)
	assert.NoError(t, err)
}

func TestScenario_RevokeIsTerminal(t *testing.T) {
	e := setup(t)
	_, err := e.admin.SetFacetForSelector(e.ctx, doubleSel, e.implAddr)
	require.NoError(t, err)

	_, err = e.admin.RevokeOwnership(e.ctx)
	require.NoError(t, err)

	_, ok, err := e.admin.Owner(e.ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	for _, account := range []proxy.Identity{deployer, wallet1, {}} {
		a := e.admin.WithAccount(account)
		_, err = a.SetFacetForSelector(e.ctx, tripleSel, e.implAddr)
		requireReason(t, err, "Auth")
		_, err = a.TransferOwnership(e.ctx, account)
		requireReason(t, err, "Auth")
		_, err = a.RevokeOwnership(e.ctx)
		requireReason(t, err, "Auth")
	}

	got, err := e.caller.CallU64(e.ctx, "double(u64)", 21)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), got)
}

func TestScenario_UpgradeKeepsAddress(t *testing.T) {
	e := setup(t)
	_, err := e.admin.SetFacetForSelector(e.ctx, doubleSel, e.implAddr)
	require.NoError(t, err)

	v2 := facets.NewMyContractV2()
	v2Addr, err := e.rt.Deploy(e.ctx, v2.Name(), v2)
	require.NoError(t, err)

	for _, sel := range v2.Selectors() {
		_, err := e.admin.SetFacetForSelector(e.ctx, sel, v2Addr)
		require.NoError(t, err)
	}

	target, ok, err := e.admin.Target(e.ctx, doubleSel)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, v2Addr, target, "overwrite leaves only the latest target")

	got, err := e.caller.CallU64(e.ctx, "triple(u64)", 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(15), got)

	r, err := e.caller.Invoke(e.ctx, "version()", nil, 0)
	require.NoError(t, err)
	v, err := abi.DecodeU64(r.Return)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v)
}

func TestScenario_TargetSeedsRoutes(t *testing.T) {
	ctx := context.Background()
	rt, err := NewRuntime(NewConfig("test"))
	require.NoError(t, err)
	defer rt.Close()

	implAddr, err := rt.Deploy(ctx, "MyContract", facets.NewMyContract())
	require.NoError(t, err)
	proxyAddr, err := rt.DeployProxy(ctx, "proxy", registry.Deployment{Target: implAddr, InitialOwner: deployer})
	require.NoError(t, err)

	got, err := NewContract(rt, proxyAddr, wallet1).CallU64(ctx, "double(u64)", 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), got)
}

func TestScenario_DeployedRevoked(t *testing.T) {
	ctx := context.Background()
	rt, err := NewRuntime(NewConfig("test"))
	require.NoError(t, err)
	defer rt.Close()

	implAddr, err := rt.Deploy(ctx, "MyContract", facets.NewMyContract())
	require.NoError(t, err)
	proxyAddr, err := rt.DeployProxy(ctx, "proxy", registry.Deployment{Target: implAddr})
	require.NoError(t, err)

	admin := NewProxyAdmin(rt, proxyAddr, deployer)
	_, ok, err := admin.Owner(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = admin.RemoveSelector(ctx, doubleSel)
	requireReason(t, err, "Auth")

	got, err := NewContract(rt, proxyAddr, wallet1).CallU64(ctx, "double(u64)", 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), got)
}

func TestScenario_ProxyChain(t *testing.T) {
	e := setup(t)
	_, err := e.admin.SetFacetForSelector(e.ctx, doubleSel, e.implAddr)
	require.NoError(t, err)

	outer, err := e.rt.DeployProxy(e.ctx, "outer", registry.Deployment{InitialOwner: deployer})
	require.NoError(t, err)
	_, err = NewProxyAdmin(e.rt, outer, deployer).SetFacetForSelector(e.ctx, doubleSel, e.admin.Address())
	require.NoError(t, err)

	got, err := NewContract(e.rt, outer, wallet1).CallU64(e.ctx, "double(u64)", 7)
	require.NoError(t, err)
	assert.Equal(t, uint64(14), got)
}

func TestScenario_TxStatus(t *testing.T) {
	e := setup(t)

	r, err := e.admin.SetFacetForSelector(e.ctx, doubleSel, e.implAddr)
	require.NoError(t, err)

	status, err := e.rt.TxStatus(e.ctx, r.TxID)
	require.NoError(t, err)
	assert.Equal(t, txlog.StatusSuccess, status.Status)
	assert.Equal(t, deployer, status.From)
	assert.Equal(t, e.admin.Address(), status.To)

	r, err = e.admin.WithAccount(wallet1).RevokeOwnership(e.ctx)
	require.Error(t, err)
	status, err = e.rt.TxStatus(e.ctx, r.TxID)
	require.NoError(t, err)
	assert.Equal(t, txlog.StatusRevert, status.Status)
	assert.Equal(t, "authorization", status.RevertKind)
	assert.Equal(t, "Auth", status.Reason)
}
