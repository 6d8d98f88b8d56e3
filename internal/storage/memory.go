package storage

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/rmacdonaldsmith/facetproxy-go/pkg/proxy"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/storage"
)

// contractState is the storage of a single proxy.
type contractState struct {
	owner  proxy.Identity
	routes map[proxy.Selector]proxy.Address
}

func (s *contractState) clone() *contractState {
	routes := make(map[proxy.Selector]proxy.Address, len(s.routes))
	for sel, addr := range s.routes {
		routes[sel] = addr
	}
	return &contractState{owner: s.owner, routes: routes}
}

// MemoryStore implements storage.Store in memory.
// Transactions work on a private copy of one proxy's state that replaces the
// shared state on Commit. It is safe for concurrent use.
type MemoryStore struct {
	mu        sync.RWMutex
	contracts map[proxy.Address]*contractState
	closed    bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		contracts: make(map[proxy.Address]*contractState),
	}
}

// Begin starts a transaction over the storage of the proxy at contract.
func (s *MemoryStore) Begin(ctx context.Context, contract proxy.Address) (storage.Tx, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.ErrStoreClosed
	}

	tx := &memoryTx{store: s, contract: contract}
	if existing, ok := s.contracts[contract]; ok {
		tx.state = existing.clone()
		tx.initialized = true
	} else {
		tx.state = &contractState{routes: make(map[proxy.Selector]proxy.Address)}
	}
	return tx, nil
}

// Contracts returns the addresses of every proxy with initialized storage.
func (s *MemoryStore) Contracts(ctx context.Context) ([]proxy.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.ErrStoreClosed
	}

	addrs := make([]proxy.Address, 0, len(s.contracts))
	for addr := range s.contracts {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i][:], addrs[j][:]) < 0
	})
	return addrs, nil
}

// Close drops all stored state. Closing twice is a no-op.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.contracts = make(map[proxy.Address]*contractState)
	s.closed = true
	return nil
}

func (s *MemoryStore) commit(contract proxy.Address, state *contractState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrStoreClosed
	}
	s.contracts[contract] = state
	return nil
}

type memoryTx struct {
	store       *MemoryStore
	contract    proxy.Address
	state       *contractState
	initialized bool
	dirty       bool
	done        bool
}

func (tx *memoryTx) Initialized(ctx context.Context) (bool, error) {
	if tx.done {
		return false, storage.ErrTxDone
	}
	return tx.initialized, nil
}

func (tx *memoryTx) Owner(ctx context.Context) (proxy.Identity, error) {
	if tx.done {
		return proxy.Identity{}, storage.ErrTxDone
	}
	return tx.state.owner, nil
}

func (tx *memoryTx) SetOwner(ctx context.Context, owner proxy.Identity) error {
	if tx.done {
		return storage.ErrTxDone
	}
	tx.state.owner = owner
	tx.initialized = true
	tx.dirty = true
	return nil
}

func (tx *memoryTx) Route(ctx context.Context, selector proxy.Selector) (proxy.Address, bool, error) {
	if tx.done {
		return proxy.Address{}, false, storage.ErrTxDone
	}
	addr, ok := tx.state.routes[selector]
	return addr, ok, nil
}

func (tx *memoryTx) SetRoute(ctx context.Context, selector proxy.Selector, implementation proxy.Address) error {
	if tx.done {
		return storage.ErrTxDone
	}
	tx.state.routes[selector] = implementation
	tx.initialized = true
	tx.dirty = true
	return nil
}

func (tx *memoryTx) DeleteRoute(ctx context.Context, selector proxy.Selector) error {
	if tx.done {
		return storage.ErrTxDone
	}
	if _, ok := tx.state.routes[selector]; ok {
		delete(tx.state.routes, selector)
		tx.dirty = true
	}
	return nil
}

func (tx *memoryTx) Routes(ctx context.Context) ([]storage.Route, error) {
	if tx.done {
		return nil, storage.ErrTxDone
	}
	routes := make([]storage.Route, 0, len(tx.state.routes))
	for sel, addr := range tx.state.routes {
		routes = append(routes, storage.Route{Selector: sel, Implementation: addr})
	}
	sort.Slice(routes, func(i, j int) bool {
		return routes[i].Selector < routes[j].Selector
	})
	return routes, nil
}

func (tx *memoryTx) Commit() error {
	if tx.done {
		return storage.ErrTxDone
	}
	tx.done = true
	if !tx.dirty {
		return nil
	}
	return tx.store.commit(tx.contract, tx.state)
}

func (tx *memoryTx) Rollback() error {
	tx.done = true
	return nil
}

// Verify that MemoryStore implements the Store interface at compile time
var _ storage.Store = (*MemoryStore)(nil)
