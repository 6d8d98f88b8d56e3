package httpapi

import (
	"time"

	"github.com/rmacdonaldsmith/facetproxy-go/pkg/chain"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/proxy"
)

// Request/Response types for the HTTP API

// AuthRequest represents a login request
type AuthRequest struct {
	Identity string `json:"identity"`
}

// AuthResponse represents a login response
type AuthResponse struct {
	Token     string    `json:"token"`
	Identity  string    `json:"identity"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ContractsResponse lists deployed contracts
type ContractsResponse struct {
	Contracts []chain.ContractInfo `json:"contracts"`
}

// OwnerResponse reports a proxy's owner. Owner is nil once ownership is revoked.
type OwnerResponse struct {
	Proxy   proxy.Address   `json:"proxy"`
	Owner   *proxy.Identity `json:"owner"`
	Revoked bool            `json:"revoked"`
}

// RouteInfo is one routing table entry
type RouteInfo struct {
	Selector       proxy.Selector `json:"selector"`
	Implementation proxy.Address  `json:"implementation"`
}

// RoutesResponse lists a proxy's routing table
type RoutesResponse struct {
	Proxy  proxy.Address `json:"proxy"`
	Routes []RouteInfo   `json:"routes"`
}

// SetRouteRequest routes the selector in the path to Implementation
type SetRouteRequest struct {
	Implementation string `json:"implementation"`
}

// TransferRequest hands a proxy to NewOwner
type TransferRequest struct {
	NewOwner string `json:"newOwner"`
}

// CallRequest sends one transaction. Either Signature or Selector names the
// function; Args is hex-encoded call data appended after any U64 arguments.
type CallRequest struct {
	To        string   `json:"to"`
	Signature string   `json:"signature,omitempty"`
	Selector  string   `json:"selector,omitempty"`
	U64       []uint64 `json:"u64,omitempty"`
	Args      string   `json:"args,omitempty"`
	Value     uint64   `json:"value,omitempty"`
}

// ErrorResponse represents an error response. Reverted transactions carry
// the revert kind and reason and the id of the recorded receipt.
type ErrorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	Code       int    `json:"code"`
	RevertKind string `json:"revertKind,omitempty"`
	Reason     string `json:"reason,omitempty"`
	TxID       string `json:"txId,omitempty"`
}
