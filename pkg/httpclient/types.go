package httpclient

import (
	"errors"
	"fmt"
	"time"

	"github.com/rmacdonaldsmith/facetproxy-go/pkg/chain"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/proxy"
)

// Config holds client configuration
type Config struct {
	// ServerURL is the base URL of the proxyd HTTP API (e.g., "http://localhost:8080")
	ServerURL string

	// Identity is the caller transactions are sent as, e.g. "address:0x01"
	Identity string

	// Token is a previously issued JWT; Authenticate replaces it
	Token string

	// Timeout for HTTP requests
	Timeout time.Duration
}

// SetDefaults sets reasonable default values for the config
func (c *Config) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
}

// AuthResponse represents the response from authentication
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

// CallRequest sends one transaction
type CallRequest struct {
	To        string   `json:"to"`
	Signature string   `json:"signature,omitempty"`
	Selector  string   `json:"selector,omitempty"`
	U64       []uint64 `json:"u64,omitempty"`
	Args      string   `json:"args,omitempty"`
	Value     uint64   `json:"value,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	Code       int    `json:"code"`
	RevertKind string `json:"revertKind,omitempty"`
	Reason     string `json:"reason,omitempty"`
	TxID       string `json:"txId,omitempty"`
}

// ErrNotAuthenticated is returned by calls that need a token before Authenticate
var ErrNotAuthenticated = errors.New("client not authenticated - call Authenticate() first")

// APIError is a non-2xx response. When the server reports a revert, the
// error unwraps to the matching *proxy.Revert so errors.Is(err, proxy.ErrAuth)
// works across the wire.
type APIError struct {
	StatusCode int
	Response   ErrorResponse
}

func (e *APIError) Error() string {
	if e.Response.Reason != "" {
		return fmt.Sprintf("API error (%d): reverted: %s", e.StatusCode, e.Response.Reason)
	}
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Response.Message)
}

// Revert returns the revert carried by the response, if any.
func (e *APIError) Revert() (*proxy.Revert, bool) {
	if e.Response.Reason == "" {
		return nil, false
	}
	return &proxy.Revert{Kind: proxy.ParseRevertKind(e.Response.RevertKind), Reason: e.Response.Reason}, true
}

func (e *APIError) Unwrap() error {
	if rev, ok := e.Revert(); ok {
		return rev
	}
	return nil
}
