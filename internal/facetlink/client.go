package facetlink

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/rmacdonaldsmith/facetproxy-go/pkg/proxy"
)

// Client is a connection to a remote facet link server.
type Client struct {
	config   *Config
	endpoint string
	conn     *grpc.ClientConn
}

// NewClient connects lazily to the server at endpoint. Extra dial options
// are appended after the defaults.
func NewClient(endpoint string, config *Config, opts ...grpc.DialOption) (*Client, error) {
	if endpoint == "" {
		return nil, ErrEmptyEndpoint
	}
	var configCopy Config
	if config != nil {
		configCopy = *config
	}
	configCopy.SetDefaults()

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(configCopy.MaxMessageSize),
			grpc.MaxCallSendMsgSize(configCopy.MaxMessageSize),
		),
	}, opts...)

	conn, err := grpc.NewClient(endpoint, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create facet link client for %s: %w", endpoint, err)
	}
	return &Client{config: &configCopy, endpoint: endpoint, conn: conn}, nil
}

// Endpoint returns the server address.
func (c *Client) Endpoint() string {
	return c.endpoint
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.config.CallTimeout)
}

// Call runs call against the contract at target on the remote side.
func (c *Client) Call(ctx context.Context, target proxy.Address, call proxy.Call) ([]byte, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	out := new(wrapperspb.BytesValue)
	if err := c.conn.Invoke(ctx, callMethod, wrapperspb.Bytes(encodeEnvelope(target, call)), out); err != nil {
		return nil, fromStatus(err)
	}
	return out.GetValue(), nil
}

// Selectors lists the selectors the remote contract at target exports.
func (c *Client) Selectors(ctx context.Context, target proxy.Address) ([]proxy.Selector, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	out := new(structpb.ListValue)
	if err := c.conn.Invoke(ctx, selectorsMethod, wrapperspb.Bytes(target[:]), out); err != nil {
		return nil, fromStatus(err)
	}
	return decodeSelectors(out)
}

// Bind returns the remote contract at target as a proxy.Implementation. Its
// selectors are fetched once so a proxy can be seeded from it.
func (c *Client) Bind(ctx context.Context, target proxy.Address) (*RemoteImplementation, error) {
	sels, err := c.Selectors(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("failed to bind remote contract %s: %w", target, err)
	}
	return &RemoteImplementation{client: c, target: target, selectors: sels}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// RemoteImplementation is a contract on another node reached through a Client.
type RemoteImplementation struct {
	client    *Client
	target    proxy.Address
	selectors []proxy.Selector
}

// Target returns the contract's address on the remote node.
func (r *RemoteImplementation) Target() proxy.Address {
	return r.target
}

// Call forwards call over the link.
func (r *RemoteImplementation) Call(ctx context.Context, call proxy.Call) ([]byte, error) {
	return r.client.Call(ctx, r.target, call)
}

// Selectors returns the selectors fetched when the contract was bound.
func (r *RemoteImplementation) Selectors() []proxy.Selector {
	out := make([]proxy.Selector, len(r.selectors))
	copy(out, r.selectors)
	return out
}

// Verify that RemoteImplementation implements the Implementation interface at compile time
var (
	_ proxy.Implementation = (*RemoteImplementation)(nil)
	_ proxy.SelectorLister = (*RemoteImplementation)(nil)
)
