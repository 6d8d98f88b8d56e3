package chain

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rmacdonaldsmith/facetproxy-go/internal/registry"
	memstore "github.com/rmacdonaldsmith/facetproxy-go/internal/storage"
	memlog "github.com/rmacdonaldsmith/facetproxy-go/internal/txlog"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/chain"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/proxy"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/storage"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/txlog"
)

var (
	// ErrRuntimeClosed is returned when a closed runtime is used
	ErrRuntimeClosed = errors.New("runtime is closed")
	// ErrAddressInUse is returned when deploying to an occupied address
	ErrAddressInUse = errors.New("address already has a contract")
	// ErrNilImplementation is returned when deploying a nil implementation
	ErrNilImplementation = errors.New("implementation cannot be nil")
	// ErrNotProxy is returned when a proxy read targets something else
	ErrNotProxy = errors.New("address is not a proxy")
)

type deployed struct {
	name string
	kind chain.ContractKind
	impl proxy.Implementation
}

// Runtime is a minimal in-process chain. It executes one transaction at a
// time, runs proxies against transactional storage and records a receipt for
// every transaction.
type Runtime struct {
	txMu sync.Mutex // serializes transactions

	mu        sync.RWMutex // guards contracts, nonce and closed
	contracts map[proxy.Address]*deployed
	nonce     uint64
	closed    bool

	chainID   string
	store     storage.Store
	log       txlog.Log
	logger    *zap.Logger
	now       func() time.Time
	registry  *registry.Registry
	startedAt time.Time
}

// NewRuntime creates a runtime from config.
func NewRuntime(config *Config) (*Runtime, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	config.SetDefaults()

	store := config.Store
	if store == nil {
		store = memstore.NewMemoryStore()
	}
	log := config.Log
	if log == nil {
		log = memlog.NewInMemoryLog()
	}

	rt := &Runtime{
		contracts: make(map[proxy.Address]*deployed),
		chainID:   config.ChainID,
		store:     store,
		log:       log,
		logger:    config.Logger.With(zap.String("chain_id", config.ChainID)),
		now:       config.Now,
		startedAt: config.Now(),
	}
	rt.registry = registry.New(rt)
	return rt, nil
}

// Lookup returns the implementation deployed at addr. It makes the runtime
// the registry's directory.
func (rt *Runtime) Lookup(addr proxy.Address) (proxy.Implementation, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	d, ok := rt.contracts[addr]
	if !ok {
		return nil, false
	}
	return d.impl, true
}

// Facets returns a directory over the implementation and remote contracts
// only. Proxies are left out so their admin entry points are reachable only
// through Call, which serializes transactions and records receipts.
func (rt *Runtime) Facets() registry.Directory {
	return registry.DirectoryFunc(func(addr proxy.Address) (proxy.Implementation, bool) {
		rt.mu.RLock()
		defer rt.mu.RUnlock()

		d, ok := rt.contracts[addr]
		if !ok || d.kind == chain.KindProxy {
			return nil, false
		}
		return d.impl, true
	})
}

// deriveAddress hashes the chain id, the contract name and a nonce.
func (rt *Runtime) deriveAddress(name string) proxy.Address {
	rt.nonce++
	h := sha256.New()
	h.Write([]byte(rt.chainID))
	h.Write([]byte{0})
	h.Write([]byte(name))
	h.Write(binary.BigEndian.AppendUint64(nil, rt.nonce))
	return proxy.BytesToAddress(h.Sum(nil))
}

func (rt *Runtime) install(addr proxy.Address, d *deployed) error {
	if rt.closed {
		return ErrRuntimeClosed
	}
	if _, taken := rt.contracts[addr]; taken {
		return fmt.Errorf("%w: %s", ErrAddressInUse, addr)
	}
	rt.contracts[addr] = d
	return nil
}

// Deploy installs an implementation contract at a fresh address.
func (rt *Runtime) Deploy(ctx context.Context, name string, impl proxy.Implementation) (proxy.Address, error) {
	if impl == nil {
		return proxy.Address{}, ErrNilImplementation
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()

	addr := rt.deriveAddress(name)
	if err := rt.install(addr, &deployed{name: name, kind: chain.KindImplementation, impl: impl}); err != nil {
		return proxy.Address{}, err
	}
	rt.logger.Info("contract deployed", zap.String("name", name), zap.Stringer("address", addr))
	return addr, nil
}

// DeployAt installs an implementation contract at a fixed address. Remote
// facets use KindRemote so listings can tell them apart.
func (rt *Runtime) DeployAt(ctx context.Context, addr proxy.Address, name string, kind chain.ContractKind, impl proxy.Implementation) error {
	if impl == nil {
		return ErrNilImplementation
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if err := rt.install(addr, &deployed{name: name, kind: kind, impl: impl}); err != nil {
		return err
	}
	rt.logger.Info("contract deployed", zap.String("name", name), zap.Stringer("address", addr), zap.String("kind", string(kind)))
	return nil
}

// DeployProxy deploys a proxy at a fresh address.
func (rt *Runtime) DeployProxy(ctx context.Context, name string, dep registry.Deployment) (proxy.Address, error) {
	rt.mu.Lock()
	addr := rt.deriveAddress(name)
	rt.mu.Unlock()

	if err := rt.DeployProxyAt(ctx, addr, name, dep); err != nil {
		return proxy.Address{}, err
	}
	return addr, nil
}

// DeployProxyAt deploys a proxy at a fixed address. If the store already
// holds storage for addr (a restarted node over a persistent store) the
// stored owner and routes are kept and dep is ignored.
func (rt *Runtime) DeployProxyAt(ctx context.Context, addr proxy.Address, name string, dep registry.Deployment) error {
	rt.txMu.Lock()
	defer rt.txMu.Unlock()

	rt.mu.Lock()
	err := rt.install(addr, &deployed{name: name, kind: chain.KindProxy, impl: &ProxyContract{addr: addr, rt: rt}})
	rt.mu.Unlock()
	if err != nil {
		return err
	}

	restored, err := rt.initializeProxy(ctx, addr, dep)
	if err != nil {
		rt.mu.Lock()
		delete(rt.contracts, addr)
		rt.mu.Unlock()
		return err
	}

	rt.logger.Info("proxy deployed",
		zap.String("name", name),
		zap.Stringer("address", addr),
		zap.Stringer("initial_owner", dep.InitialOwner),
		zap.Stringer("target", dep.Target),
		zap.Bool("restored", restored),
	)
	return nil
}

func (rt *Runtime) initializeProxy(ctx context.Context, addr proxy.Address, dep registry.Deployment) (restored bool, err error) {
	st, err := rt.store.Begin(ctx, addr)
	if err != nil {
		return false, fmt.Errorf("failed to open proxy storage: %w", err)
	}
	defer st.Rollback()

	initialized, err := st.Initialized(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to inspect proxy storage: %w", err)
	}
	if initialized {
		return true, nil
	}
	if err := rt.registry.Initialize(ctx, st, dep); err != nil {
		return false, err
	}
	if err := st.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit proxy storage: %w", err)
	}
	return false, nil
}

// Call executes one transaction from the caller to the contract at to.
// Reverts and environment failures are recorded in the receipt; the error is
// non-nil only when the receipt itself could not be recorded.
func (rt *Runtime) Call(ctx context.Context, from proxy.Identity, to proxy.Address, selector proxy.Selector, args []byte, value uint64) (*txlog.Receipt, error) {
	rt.txMu.Lock()
	defer rt.txMu.Unlock()

	rt.mu.RLock()
	closed := rt.closed
	rt.mu.RUnlock()
	if closed {
		return nil, ErrRuntimeClosed
	}

	receipt := &txlog.Receipt{
		TxID:      uuid.NewString(),
		From:      from,
		To:        to,
		Selector:  selector,
		Value:     value,
		Timestamp: rt.now(),
	}

	var (
		out []byte
		err error
	)
	if impl, ok := rt.Lookup(to); ok {
		out, err = impl.Call(ctx, proxy.Call{
			Caller:   from,
			Contract: to,
			Selector: selector,
			Args:     args,
			Value:    value,
		})
	} else {
		err = proxy.NewRevert(proxy.ReasonContractNotFound)
	}

	if rev, ok := proxy.AsRevert(err); ok {
		receipt.Status = txlog.StatusRevert
		receipt.RevertKind = rev.Kind.String()
		receipt.Reason = rev.Reason
	} else if err != nil {
		receipt.Status = txlog.StatusFailure
		receipt.Error = err.Error()
	} else {
		receipt.Status = txlog.StatusSuccess
		receipt.Return = out
	}

	stored, appendErr := rt.log.Append(ctx, receipt)
	if appendErr != nil {
		return nil, fmt.Errorf("failed to record receipt: %w", appendErr)
	}

	fields := []zap.Field{
		zap.String("tx_id", stored.TxID),
		zap.Int64("height", stored.Height),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
		zap.Stringer("selector", selector),
		zap.String("status", string(stored.Status)),
	}
	switch stored.Status {
	case txlog.StatusSuccess:
		rt.logger.Debug("transaction executed", fields...)
	case txlog.StatusRevert:
		rt.logger.Info("transaction reverted", append(fields,
			zap.String("revert_kind", stored.RevertKind),
			zap.String("reason", stored.Reason))...)
	default:
		rt.logger.Error("transaction failed", append(fields, zap.Error(err))...)
	}

	return stored, nil
}

// TxStatus returns the receipt of a previously executed transaction.
func (rt *Runtime) TxStatus(ctx context.Context, txID string) (*txlog.Receipt, error) {
	return rt.log.Get(ctx, txID)
}

// readProxy runs fn over a read-only view of the proxy's storage.
func (rt *Runtime) readProxy(ctx context.Context, addr proxy.Address, fn func(st storage.Tx) error) error {
	rt.mu.RLock()
	d, ok := rt.contracts[addr]
	rt.mu.RUnlock()
	if !ok || d.kind != chain.KindProxy {
		return fmt.Errorf("%w: %s", ErrNotProxy, addr)
	}

	st, err := rt.store.Begin(ctx, addr)
	if err != nil {
		return fmt.Errorf("failed to open proxy storage: %w", err)
	}
	defer st.Rollback()
	return fn(st)
}

// ProxyOwner reads a proxy's owner without executing a transaction.
func (rt *Runtime) ProxyOwner(ctx context.Context, addr proxy.Address) (owner proxy.Identity, ok bool, err error) {
	err = rt.readProxy(ctx, addr, func(st storage.Tx) error {
		owner, ok, err = rt.registry.Owner(ctx, st)
		return err
	})
	return owner, ok, err
}

// ProxyRoutes reads a proxy's routing table without executing a transaction.
func (rt *Runtime) ProxyRoutes(ctx context.Context, addr proxy.Address) (routes []storage.Route, err error) {
	err = rt.readProxy(ctx, addr, func(st storage.Tx) error {
		routes, err = rt.registry.Routes(ctx, st)
		return err
	})
	return routes, err
}

// ProxyRoute reads one route of a proxy without executing a transaction.
func (rt *Runtime) ProxyRoute(ctx context.Context, addr proxy.Address, selector proxy.Selector) (impl proxy.Address, ok bool, err error) {
	err = rt.readProxy(ctx, addr, func(st storage.Tx) error {
		impl, ok, err = rt.registry.Route(ctx, st, selector)
		return err
	})
	return impl, ok, err
}

// Contracts lists every deployed contract ordered by address.
func (rt *Runtime) Contracts(ctx context.Context) ([]chain.ContractInfo, error) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	infos := make([]chain.ContractInfo, 0, len(rt.contracts))
	for addr, d := range rt.contracts {
		info := chain.ContractInfo{Address: addr, Name: d.name, Kind: d.kind}
		if lister, ok := d.impl.(proxy.SelectorLister); ok {
			info.Selectors = lister.Selectors()
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return bytes.Compare(infos[i].Address[:], infos[j].Address[:]) < 0
	})
	return infos, nil
}

// Receipts returns the receipt log.
func (rt *Runtime) Receipts() txlog.Log {
	return rt.log
}

// Health reports the status of the runtime and its storage.
func (rt *Runtime) Health(ctx context.Context) (chain.HealthStatus, error) {
	rt.mu.RLock()
	status := chain.HealthStatus{
		Healthy:   !rt.closed,
		ChainID:   rt.chainID,
		Contracts: len(rt.contracts),
		StartedAt: rt.startedAt,
	}
	for _, d := range rt.contracts {
		if d.kind == chain.KindProxy {
			status.Proxies++
		}
	}
	rt.mu.RUnlock()

	if !status.Healthy {
		status.Message = "runtime is closed"
		return status, nil
	}

	height, err := rt.log.EndHeight(ctx)
	if err != nil {
		status.Healthy = false
		status.Message = fmt.Sprintf("receipt log: %v", err)
		return status, nil
	}
	status.Height = height

	if _, err := rt.store.Contracts(ctx); err != nil {
		status.Healthy = false
		status.Message = fmt.Sprintf("storage: %v", err)
	}
	return status, nil
}

// Close closes the receipt log and the store. Closing twice is a no-op.
func (rt *Runtime) Close() error {
	rt.txMu.Lock()
	defer rt.txMu.Unlock()
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.closed {
		return nil
	}
	rt.closed = true

	if err := rt.log.Close(); err != nil {
		return fmt.Errorf("failed to close receipt log: %w", err)
	}
	if err := rt.store.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	return nil
}

// Verify that Runtime implements the Node and Directory interfaces at compile time
var (
	_ chain.Node         = (*Runtime)(nil)
	_ registry.Directory = (*Runtime)(nil)
)
