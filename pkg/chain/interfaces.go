package chain

import (
	"context"
	"io"
	"time"

	"github.com/rmacdonaldsmith/facetproxy-go/pkg/proxy"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/storage"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/txlog"
)

// ContractKind says what lives at an address.
type ContractKind string

const (
	// KindProxy is a facet-dispatch proxy
	KindProxy ContractKind = "proxy"
	// KindImplementation is an implementation contract executed in process
	KindImplementation ContractKind = "implementation"
	// KindRemote is an implementation contract reached over a facet link
	KindRemote ContractKind = "remote"
)

// ContractInfo describes a deployed contract.
type ContractInfo struct {
	Address   proxy.Address    `json:"address"`
	Name      string           `json:"name"`
	Kind      ContractKind     `json:"kind"`
	Selectors []proxy.Selector `json:"selectors,omitempty"`
}

// Node executes transactions against deployed contracts.
type Node interface {
	io.Closer

	// Call executes one transaction and returns its receipt. Reverts are
	// reported in the receipt; an error means nothing was recorded.
	Call(ctx context.Context, from proxy.Identity, to proxy.Address, selector proxy.Selector, args []byte, value uint64) (*txlog.Receipt, error)

	// TxStatus returns the receipt of a previously executed transaction.
	TxStatus(ctx context.Context, txID string) (*txlog.Receipt, error)

	// ProxyOwner reads a proxy's owner without executing a transaction.
	ProxyOwner(ctx context.Context, addr proxy.Address) (proxy.Identity, bool, error)

	// ProxyRoute reads the implementation routed for one selector without
	// executing a transaction.
	ProxyRoute(ctx context.Context, addr proxy.Address, selector proxy.Selector) (proxy.Address, bool, error)

	// ProxyRoutes reads a proxy's routing table without executing a transaction.
	ProxyRoutes(ctx context.Context, addr proxy.Address) ([]storage.Route, error)

	// Contracts lists every deployed contract ordered by address.
	Contracts(ctx context.Context) ([]ContractInfo, error)

	// Receipts returns the receipt log.
	Receipts() txlog.Log

	// Health reports the status of the node.
	Health(ctx context.Context) (HealthStatus, error)
}

// HealthStatus represents the overall health of a node
type HealthStatus struct {
	Healthy   bool      `json:"healthy"`
	ChainID   string    `json:"chain_id"`
	Contracts int       `json:"contracts"`
	Proxies   int       `json:"proxies"`
	Height    int64     `json:"height"`
	StartedAt time.Time `json:"started_at"`
	Message   string    `json:"message,omitempty"`
}
