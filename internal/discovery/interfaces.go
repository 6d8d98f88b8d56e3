package discovery

import (
	"context"

	"github.com/rmacdonaldsmith/facetproxy-go/pkg/proxy"
)

// RemoteFacet is an implementation contract served by another node.
type RemoteFacet interface {
	// Name returns the label the facet is deployed under locally
	Name() string

	// Address returns the facet's address on the remote node
	Address() proxy.Address

	// Endpoint returns the remote node's facet link address
	Endpoint() string
}

// Discovery defines the interface for remote facet discovery mechanisms
type Discovery interface {
	// FindFacets discovers and returns the remote facets to attach
	FindFacets(ctx context.Context) ([]RemoteFacet, error)
}
