package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	chainrt "github.com/rmacdonaldsmith/facetproxy-go/internal/chain"
	"github.com/rmacdonaldsmith/facetproxy-go/internal/facets"
	"github.com/rmacdonaldsmith/facetproxy-go/internal/registry"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/proxy"
)

var (
	deployer = proxy.AccountIdentity(proxy.BytesToAddress([]byte{0xd0}))
	wallet1  = proxy.AccountIdentity(proxy.BytesToAddress([]byte{0x01}))
)

// TestServerSetup holds common test dependencies
type TestServerSetup struct {
	Runtime  *chainrt.Runtime
	Server   *Server
	HTTP     *httptest.Server
	Impl     proxy.Address
	Proxy    proxy.Address
	Deployer string
	Wallet1  string
}

// NewTestServerSetup deploys MyContract and an unrouted proxy owned by
// deployer, and serves the API over httptest.
func NewTestServerSetup(t *testing.T, config Config) *TestServerSetup {
	t.Helper()
	ctx := context.Background()

	rt, err := chainrt.NewRuntime(chainrt.NewConfig("test").WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	impl, err := rt.Deploy(ctx, "MyContract", facets.NewMyContract())
	require.NoError(t, err)
	proxyAddr, err := rt.DeployProxy(ctx, "proxy", registry.Deployment{InitialOwner: deployer})
	require.NoError(t, err)

	if config.SecretKey == "" {
		config.SecretKey = "test-secret-key"
	}
	if config.Logger == nil {
		config.Logger = zaptest.NewLogger(t)
	}
	server := NewServer(rt, config)
	ts := httptest.NewServer(server.Handler())

	setup := &TestServerSetup{
		Runtime: rt,
		Server:  server,
		HTTP:    ts,
		Impl:    impl,
		Proxy:   proxyAddr,
	}
	setup.Deployer = setup.GenerateTestToken(t, deployer)
	setup.Wallet1 = setup.GenerateTestToken(t, wallet1)

	t.Cleanup(func() {
		ts.Close()
		rt.Close()
	})
	return setup
}

// GenerateTestToken creates a JWT token for testing
func (setup *TestServerSetup) GenerateTestToken(t *testing.T, id proxy.Identity) string {
	t.Helper()

	token, _, err := setup.Server.jwtAuth.GenerateToken(id)
	require.NoError(t, err)
	return token
}

// Do sends a request with an optional bearer token and JSON body, and
// decodes the JSON response into out when out is non-nil.
func (setup *TestServerSetup) Do(t *testing.T, method, path, token string, body, out interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, method, setup.HTTP.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := setup.HTTP.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}
