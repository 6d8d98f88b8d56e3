package storage

import (
	"context"
	"errors"
	"io"

	"github.com/rmacdonaldsmith/facetproxy-go/pkg/proxy"
)

var (
	// ErrTxDone is returned when a committed or rolled back Tx is used
	ErrTxDone = errors.New("storage: transaction already finished")
	// ErrStoreClosed is returned when a closed Store is used
	ErrStoreClosed = errors.New("storage: store is closed")
	// ErrCorruptState is returned when persisted state cannot be decoded
	ErrCorruptState = errors.New("storage: corrupt state")
)

// Route is a single routing table entry.
type Route struct {
	Selector       proxy.Selector `json:"selector"`
	Implementation proxy.Address  `json:"implementation"`
}

// Store holds the storage of every deployed proxy.
type Store interface {
	io.Closer

	// Begin starts a transaction over the storage of the proxy at contract.
	Begin(ctx context.Context, contract proxy.Address) (Tx, error)

	// Contracts returns the addresses of every proxy with initialized storage.
	Contracts(ctx context.Context) ([]proxy.Address, error)
}

// Tx is a transaction over one proxy's storage.
type Tx interface {
	// Initialized reports whether the proxy's storage has been written before.
	Initialized(ctx context.Context) (bool, error)

	// Owner returns the stored owner. The zero Identity means no owner.
	Owner(ctx context.Context) (proxy.Identity, error)

	// SetOwner stores the owner and marks the storage initialized.
	SetOwner(ctx context.Context, owner proxy.Identity) error

	// Route returns the implementation routed for selector, if any.
	Route(ctx context.Context, selector proxy.Selector) (proxy.Address, bool, error)

	// SetRoute inserts or overwrites the route for selector.
	SetRoute(ctx context.Context, selector proxy.Selector, implementation proxy.Address) error

	// DeleteRoute removes the route for selector. Removing an absent route is not an error.
	DeleteRoute(ctx context.Context, selector proxy.Selector) error

	// Routes returns every route ordered by selector.
	Routes(ctx context.Context) ([]Route, error)

	// Commit makes the transaction's writes visible.
	Commit() error

	// Rollback discards the transaction's writes. It is a no-op after Commit.
	Rollback() error
}
