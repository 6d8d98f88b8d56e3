package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	chainrt "github.com/rmacdonaldsmith/facetproxy-go/internal/chain"
	"github.com/rmacdonaldsmith/facetproxy-go/internal/config"
	"github.com/rmacdonaldsmith/facetproxy-go/internal/discovery"
	"github.com/rmacdonaldsmith/facetproxy-go/internal/facetlink"
	"github.com/rmacdonaldsmith/facetproxy-go/internal/facets"
	"github.com/rmacdonaldsmith/facetproxy-go/internal/registry"
	memstore "github.com/rmacdonaldsmith/facetproxy-go/internal/storage"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/chain"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/proxy"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/storage"
)

// node is a runtime with the contracts named in the configuration deployed.
type node struct {
	runtime *chainrt.Runtime
	links   []*facetlink.Client
	names   map[string]proxy.Address
	logger  *zap.Logger
}

// buildNode opens storage, deploys local facets, binds remote facets and
// deploys proxies, in that order, so proxies can name any facet as TARGET.
func buildNode(ctx context.Context, cfg *config.Node, logger *zap.Logger) (_ *node, err error) {
	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	rt, err := chainrt.NewRuntime(chainrt.NewConfig(cfg.ChainID).WithStore(store).WithLogger(logger))
	if err != nil {
		store.Close()
		return nil, err
	}

	n := &node{
		runtime: rt,
		names:   make(map[string]proxy.Address),
		logger:  logger,
	}
	defer func() {
		if err != nil {
			n.Close()
		}
	}()

	for _, f := range cfg.Facets {
		if err := n.deployFacet(ctx, f); err != nil {
			return nil, err
		}
	}

	remotes, err := discovery.NewStaticDiscovery(cfg.RemoteFacets).FindFacets(ctx)
	if err != nil {
		return nil, err
	}
	for _, remote := range remotes {
		if err := n.bindRemote(ctx, remote); err != nil {
			return nil, err
		}
	}

	for _, p := range cfg.Proxies {
		if err := n.deployProxy(ctx, p); err != nil {
			return nil, err
		}
	}

	return n, nil
}

func openStore(ctx context.Context, cfg config.Storage) (storage.Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return memstore.OpenSQLite(ctx, cfg.Path)
	case config.DriverMemory, "":
		return memstore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownStorageDriver, cfg.Driver)
	}
}

func (n *node) deployFacet(ctx context.Context, f config.Facet) error {
	impl, err := facets.New(f.Kind)
	if err != nil {
		return err
	}

	addr, err := n.deploy(ctx, f.Name, f.Address, chain.KindImplementation, impl)
	if err != nil {
		return fmt.Errorf("deploy facet %q: %w", f.Name, err)
	}
	n.logger.Info("facet deployed", zap.String("name", f.Name), zap.String("kind", f.Kind), zap.Stringer("address", addr))
	return nil
}

// bindRemote deploys a stand-in at the remote facet's address that forwards
// every call over the facet link.
func (n *node) bindRemote(ctx context.Context, remote discovery.RemoteFacet) error {
	client, err := facetlink.NewClient(remote.Endpoint(), nil)
	if err != nil {
		return err
	}
	n.links = append(n.links, client)

	impl, err := client.Bind(ctx, remote.Address())
	if err != nil {
		return fmt.Errorf("bind remote facet %q: %w", remote.Name(), err)
	}
	if err := n.runtime.DeployAt(ctx, remote.Address(), remote.Name(), chain.KindRemote, impl); err != nil {
		return fmt.Errorf("deploy remote facet %q: %w", remote.Name(), err)
	}
	n.names[remote.Name()] = remote.Address()

	n.logger.Info("remote facet bound",
		zap.String("name", remote.Name()),
		zap.String("endpoint", remote.Endpoint()),
		zap.Stringer("address", remote.Address()),
		zap.Int("selectors", len(impl.Selectors())))
	return nil
}

func (n *node) deployProxy(ctx context.Context, p config.Proxy) error {
	dep := registry.Deployment{}
	if p.Target != "" {
		target, err := n.resolve(p.Target)
		if err != nil {
			return fmt.Errorf("proxy %q: %w", p.Name, err)
		}
		dep.Target = target
	}
	if p.InitialOwner != "" {
		owner, err := proxy.ParseIdentity(p.InitialOwner)
		if err != nil {
			return fmt.Errorf("proxy %q: %w", p.Name, err)
		}
		dep.InitialOwner = owner
	}

	var addr proxy.Address
	if p.Address != "" {
		parsed, err := proxy.ParseAddress(p.Address)
		if err != nil {
			return fmt.Errorf("proxy %q: %w", p.Name, err)
		}
		if err := n.runtime.DeployProxyAt(ctx, parsed, p.Name, dep); err != nil {
			return fmt.Errorf("deploy proxy %q: %w", p.Name, err)
		}
		addr = parsed
	} else {
		deployed, err := n.runtime.DeployProxy(ctx, p.Name, dep)
		if err != nil {
			return fmt.Errorf("deploy proxy %q: %w", p.Name, err)
		}
		addr = deployed
	}
	n.names[p.Name] = addr

	owner := "revoked"
	if !dep.InitialOwner.IsZero() {
		owner = dep.InitialOwner.String()
	}
	n.logger.Info("proxy deployed",
		zap.String("name", p.Name),
		zap.Stringer("address", addr),
		zap.String("initial_owner", owner))
	return nil
}

func (n *node) deploy(ctx context.Context, name, rawAddr string, kind chain.ContractKind, impl proxy.Implementation) (proxy.Address, error) {
	if rawAddr == "" {
		addr, err := n.runtime.Deploy(ctx, name, impl)
		if err == nil {
			n.names[name] = addr
		}
		return addr, err
	}

	addr, err := proxy.ParseAddress(rawAddr)
	if err != nil {
		return proxy.Address{}, err
	}
	if err := n.runtime.DeployAt(ctx, addr, name, kind, impl); err != nil {
		return proxy.Address{}, err
	}
	n.names[name] = addr
	return addr, nil
}

// resolve turns a contract name or a hex address into an address.
func (n *node) resolve(ref string) (proxy.Address, error) {
	if addr, ok := n.names[ref]; ok {
		return addr, nil
	}
	addr, err := proxy.ParseAddress(ref)
	if err != nil {
		return proxy.Address{}, fmt.Errorf("unknown contract %q", ref)
	}
	return addr, nil
}

// Close closes the facet links and the runtime.
func (n *node) Close() error {
	var errs []error
	for _, link := range n.links {
		errs = append(errs, link.Close())
	}
	errs = append(errs, n.runtime.Close())
	return errors.Join(errs...)
}
