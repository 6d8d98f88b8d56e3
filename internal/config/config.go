package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/rmacdonaldsmith/facetproxy-go/internal/discovery"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/proxy"
)

var (
	// ErrUnsupportedFormat is returned for a config file that is neither YAML nor TOML
	ErrUnsupportedFormat = errors.New("unsupported config format")
	// ErrEmptyChainID is returned when chain_id is blank
	ErrEmptyChainID = errors.New("chain_id cannot be empty")
	// ErrUnknownStorageDriver is returned for a storage driver other than memory or sqlite
	ErrUnknownStorageDriver = errors.New("unknown storage driver")
	// ErrDuplicateName is returned when two contracts share a name
	ErrDuplicateName = errors.New("duplicate contract name")
)

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Node is the configuration of a proxyd node.
type Node struct {
	ChainID      string           `yaml:"chain_id" toml:"chain_id"`
	HTTP         HTTP             `yaml:"http" toml:"http"`
	FacetLink    FacetLink        `yaml:"facetlink" toml:"facetlink"`
	Storage      Storage          `yaml:"storage" toml:"storage"`
	Facets       []Facet          `yaml:"facets" toml:"facets"`
	Proxies      []Proxy          `yaml:"proxies" toml:"proxies"`
	RemoteFacets []discovery.Seed `yaml:"remote_facets" toml:"remote_facets"`
}

// HTTP configures the admin API.
type HTTP struct {
	Listen    string `yaml:"listen" toml:"listen"`
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"`
	NoAuth    bool   `yaml:"no_auth" toml:"no_auth"`
}

// FacetLink configures the gRPC facet server. An empty Listen disables it.
type FacetLink struct {
	Listen string `yaml:"listen" toml:"listen"`
}

// Storage selects the proxy storage backend.
type Storage struct {
	Driver string `yaml:"driver" toml:"driver"`
	Path   string `yaml:"path" toml:"path"`
}

// Facet deploys a built-in implementation contract.
type Facet struct {
	// Name is the label of the deployed contract; defaults to Kind
	Name string `yaml:"name" toml:"name"`
	// Kind is the built-in facet to deploy, e.g. "MyContract"
	Kind string `yaml:"kind" toml:"kind"`
	// Address pins the contract address; empty derives one
	Address string `yaml:"address" toml:"address"`
}

// Proxy deploys a proxy.
type Proxy struct {
	Name string `yaml:"name" toml:"name"`
	// Address pins the proxy address, required to find persisted storage again
	Address string `yaml:"address" toml:"address"`
	// Target is the name or address of the implementation to seed routes from
	Target string `yaml:"target" toml:"target"`
	// InitialOwner is the first owner; empty deploys the proxy revoked
	InitialOwner string `yaml:"initial_owner" toml:"initial_owner"`
}

// Default returns a single-node configuration with in-memory storage.
func Default() *Node {
	n := &Node{}
	n.SetDefaults()
	return n
}

// Load reads a YAML (.yaml, .yml) or TOML (.toml) file over the defaults.
func Load(path string) (*Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	n := &Node{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, n); err != nil {
			return nil, fmt.Errorf("parse yaml config %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), n); err != nil {
			return nil, fmt.Errorf("parse toml config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	n.SetDefaults()
	if err := n.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return n, nil
}

// SetDefaults sets sensible default values for unset configuration fields
func (n *Node) SetDefaults() {
	if strings.TrimSpace(n.ChainID) == "" {
		n.ChainID = "local"
	}
	if n.HTTP.Listen == "" {
		n.HTTP.Listen = ":8080"
	}
	if n.Storage.Driver == "" {
		n.Storage.Driver = DriverMemory
	}
	if n.Storage.Driver == DriverSQLite && n.Storage.Path == "" {
		n.Storage.Path = "facetproxy.db"
	}
	for i := range n.Facets {
		if n.Facets[i].Name == "" {
			n.Facets[i].Name = n.Facets[i].Kind
		}
	}
}

// Validate checks the configuration and returns an error if invalid
func (n *Node) Validate() error {
	if strings.TrimSpace(n.ChainID) == "" {
		return ErrEmptyChainID
	}
	switch n.Storage.Driver {
	case DriverMemory, DriverSQLite:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStorageDriver, n.Storage.Driver)
	}

	names := make(map[string]bool)
	claim := func(name string) error {
		if names[name] {
			return fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
		names[name] = true
		return nil
	}
	for i, f := range n.Facets {
		if f.Kind == "" {
			return fmt.Errorf("facet %d: kind cannot be empty", i)
		}
		if err := claim(f.Name); err != nil {
			return err
		}
		if f.Address != "" {
			if _, err := proxy.ParseAddress(f.Address); err != nil {
				return fmt.Errorf("facet %q: %w", f.Name, err)
			}
		}
	}
	for i, p := range n.Proxies {
		if p.Name == "" {
			return fmt.Errorf("proxy %d: name cannot be empty", i)
		}
		if err := claim(p.Name); err != nil {
			return err
		}
		if p.Address != "" {
			if _, err := proxy.ParseAddress(p.Address); err != nil {
				return fmt.Errorf("proxy %q: %w", p.Name, err)
			}
		}
		if p.InitialOwner != "" {
			if _, err := proxy.ParseIdentity(p.InitialOwner); err != nil {
				return fmt.Errorf("proxy %q: %w", p.Name, err)
			}
		}
	}
	for _, r := range n.RemoteFacets {
		if r.Name == "" {
			continue
		}
		if err := claim(r.Name); err != nil {
			return err
		}
	}
	return nil
}
