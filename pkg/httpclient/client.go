package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rmacdonaldsmith/facetproxy-go/pkg/chain"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/proxy"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/txlog"
)

// identityHeader names the caller when the server runs without authentication.
const identityHeader = "X-Identity"

// Client provides HTTP client for the proxyd API
type Client struct {
	config     Config
	httpClient *http.Client
	token      string
	baseURL    *url.URL
}

// NewClient creates a new proxyd HTTP client
func NewClient(config Config) (*Client, error) {
	config.SetDefaults()

	if config.ServerURL == "" {
		return nil, fmt.Errorf("ServerURL is required")
	}
	if config.Identity != "" {
		if _, err := proxy.ParseIdentity(config.Identity); err != nil {
			return nil, fmt.Errorf("invalid Identity: %w", err)
		}
	}

	baseURL, err := url.Parse(config.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ServerURL: %w", err)
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		token:      config.Token,
		baseURL:    baseURL,
	}, nil
}

// Authenticate logs in as the configured identity and stores the token
func (c *Client) Authenticate(ctx context.Context) error {
	if c.config.Identity == "" {
		return fmt.Errorf("authentication failed: Identity is required")
	}

	var authResp AuthResponse
	err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/login", map[string]string{"identity": c.config.Identity}, &authResp)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	c.token = authResp.Token
	return nil
}

// Contracts lists every deployed contract
func (c *Client) Contracts(ctx context.Context) ([]chain.ContractInfo, error) {
	var resp ContractsResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/contracts", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list contracts: %w", err)
	}
	return resp.Contracts, nil
}

// Owner returns a proxy's owner
func (c *Client) Owner(ctx context.Context, proxyAddr proxy.Address) (*OwnerResponse, error) {
	var resp OwnerResponse
	if err := c.doRequest(ctx, http.MethodGet, proxyPath(proxyAddr, "/owner"), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to read owner: %w", err)
	}
	return &resp, nil
}

// Routes returns a proxy's routing table
func (c *Client) Routes(ctx context.Context, proxyAddr proxy.Address) ([]RouteInfo, error) {
	var resp RoutesResponse
	if err := c.doRequest(ctx, http.MethodGet, proxyPath(proxyAddr, "/routes"), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}
	return resp.Routes, nil
}

// Route returns the implementation routed for selector
func (c *Client) Route(ctx context.Context, proxyAddr proxy.Address, selector proxy.Selector) (*RouteInfo, error) {
	var resp RouteInfo
	if err := c.doRequest(ctx, http.MethodGet, routePath(proxyAddr, selector), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to read route: %w", err)
	}
	return &resp, nil
}

// SetRoute routes selector to implementation as the authenticated caller
func (c *Client) SetRoute(ctx context.Context, proxyAddr proxy.Address, selector proxy.Selector, implementation proxy.Address) (*txlog.Receipt, error) {
	body := map[string]string{"implementation": implementation.String()}
	return c.transact(ctx, http.MethodPut, routePath(proxyAddr, selector), body)
}

// RemoveRoute deletes the route for selector
func (c *Client) RemoveRoute(ctx context.Context, proxyAddr proxy.Address, selector proxy.Selector) (*txlog.Receipt, error) {
	return c.transact(ctx, http.MethodDelete, routePath(proxyAddr, selector), nil)
}

// TransferOwnership hands the proxy to newOwner
func (c *Client) TransferOwnership(ctx context.Context, proxyAddr proxy.Address, newOwner proxy.Identity) (*txlog.Receipt, error) {
	body := map[string]string{"newOwner": newOwner.String()}
	return c.transact(ctx, http.MethodPost, proxyPath(proxyAddr, "/ownership/transfer"), body)
}

// RevokeOwnership clears the proxy's owner for good
func (c *Client) RevokeOwnership(ctx context.Context, proxyAddr proxy.Address) (*txlog.Receipt, error) {
	return c.transact(ctx, http.MethodPost, proxyPath(proxyAddr, "/ownership/revoke"), nil)
}

// Call sends one transaction
func (c *Client) Call(ctx context.Context, req CallRequest) (*txlog.Receipt, error) {
	return c.transact(ctx, http.MethodPost, "/api/v1/call", req)
}

// Tx returns the receipt of a transaction
func (c *Client) Tx(ctx context.Context, txID string) (*txlog.Receipt, error) {
	var resp txlog.Receipt
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/tx/"+url.PathEscape(txID), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &resp, nil
}

// ListTx reads up to limit receipts starting at height from
func (c *Client) ListTx(ctx context.Context, from int64, limit int) ([]*txlog.Receipt, error) {
	query := url.Values{}
	query.Set("from", strconv.FormatInt(from, 10))
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var resp []*txlog.Receipt
	if err := c.doRequestWithQuery(ctx, http.MethodGet, "/api/v1/tx", query, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return resp, nil
}

// Stats returns aggregate receipt counts
func (c *Client) Stats(ctx context.Context) (*txlog.Statistics, error) {
	var resp txlog.Statistics
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/tx/stats", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get statistics: %w", err)
	}
	return &resp, nil
}

// GetHealth returns the health status of the node
func (c *Client) GetHealth(ctx context.Context) (*chain.HealthStatus, error) {
	var resp chain.HealthStatus
	err := c.doRequest(ctx, http.MethodGet, "/api/v1/health", nil, &resp)
	var apiErr *APIError
	if err != nil && !(errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable) {
		return nil, fmt.Errorf("failed to get health status: %w", err)
	}
	return &resp, nil
}

// transact sends a state-changing request. Reverts come back as *APIError.
func (c *Client) transact(ctx context.Context, method, path string, body interface{}) (*txlog.Receipt, error) {
	if c.token == "" && c.config.Identity == "" {
		return nil, ErrNotAuthenticated
	}
	var receipt txlog.Receipt
	if err := c.doRequest(ctx, method, path, body, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func proxyPath(addr proxy.Address, suffix string) string {
	return "/api/v1/proxy/" + addr.String() + suffix
}

func routePath(addr proxy.Address, selector proxy.Selector) string {
	return proxyPath(addr, "/routes/"+selector.String())
}

// doRequestWithQuery performs an HTTP request with query parameters, sending
// the token and identity when the client has them
func (c *Client) doRequestWithQuery(ctx context.Context, method, path string, queryParams url.Values, reqBody interface{}, respBody interface{}) error {
	u := &url.URL{Path: path}
	if len(queryParams) > 0 {
		u.RawQuery = queryParams.Encode()
	}
	fullURL := c.baseURL.ResolveReference(u)

	var bodyReader io.Reader
	if reqBody != nil {
		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL.String(), bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(bodyBytes, &apiErr.Response); err != nil {
			apiErr.Response.Message = string(bodyBytes)
		}
		// Health reports its body alongside 503.
		if respBody != nil && resp.StatusCode == http.StatusServiceUnavailable {
			_ = json.Unmarshal(bodyBytes, respBody)
		}
		return apiErr
	}

	if respBody != nil {
		if err := json.Unmarshal(bodyBytes, respBody); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return nil
}

// doRequest performs an HTTP request without query parameters
func (c *Client) doRequest(ctx context.Context, method, path string, reqBody interface{}, respBody interface{}) error {
	return c.doRequestWithQuery(ctx, method, path, nil, reqBody, respBody)
}

func (c *Client) setHeaders(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.config.Identity != "" {
		req.Header.Set(identityHeader, c.config.Identity)
	}
}

// IsAuthenticated returns whether the client has a token
func (c *Client) IsAuthenticated() bool {
	return c.token != ""
}

// GetToken returns the current authentication token
func (c *Client) GetToken() string {
	return c.token
}

// SetToken sets the authentication token (useful for testing or token reuse)
func (c *Client) SetToken(token string) {
	c.token = token
}
