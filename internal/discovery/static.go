package discovery

import (
	"context"
	"fmt"

	"github.com/rmacdonaldsmith/facetproxy-go/pkg/proxy"
)

// Seed describes one statically configured remote facet.
type Seed struct {
	Name     string        `yaml:"name" toml:"name" json:"name"`
	Address  proxy.Address `yaml:"address" toml:"address" json:"address"`
	Endpoint string        `yaml:"endpoint" toml:"endpoint" json:"endpoint"`
}

// StaticDiscovery implements Discovery using a static list of seeds
type StaticDiscovery struct {
	seeds []Seed
}

// staticFacet implements RemoteFacet for a seed
type staticFacet struct {
	seed Seed
}

func (f *staticFacet) Name() string           { return f.seed.Name }
func (f *staticFacet) Address() proxy.Address { return f.seed.Address }
func (f *staticFacet) Endpoint() string       { return f.seed.Endpoint }

// NewStaticDiscovery creates a new static discovery service with the given seeds
func NewStaticDiscovery(seeds []Seed) *StaticDiscovery {
	return &StaticDiscovery{
		seeds: seeds,
	}
}

// FindFacets returns remote facets from the static seed list. A seed with
// no endpoint is an error; a seed with no name is named after its address.
func (s *StaticDiscovery) FindFacets(ctx context.Context) ([]RemoteFacet, error) {
	facets := make([]RemoteFacet, len(s.seeds))
	for i, seed := range s.seeds {
		if seed.Endpoint == "" {
			return nil, fmt.Errorf("remote facet %d (%s) has no endpoint", i, seed.Address)
		}
		if seed.Name == "" {
			seed.Name = seed.Address.String()
		}
		facets[i] = &staticFacet{seed: seed}
	}
	return facets, nil
}
