package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rmacdonaldsmith/facetproxy-go/internal/config"
	"github.com/rmacdonaldsmith/facetproxy-go/internal/facetlink"
	"github.com/rmacdonaldsmith/facetproxy-go/internal/httpapi"
	"github.com/rmacdonaldsmith/facetproxy-go/internal/logging"
)

const (
	// Application info
	appName    = "proxyd"
	appVersion = "0.1.0"
)

// options are the command-line flags; set flags override the config file.
type options struct {
	configPath      string
	chainID         string
	httpListen      string
	facetLinkListen string
	storageDriver   string
	storagePath     string
	secret          string
	noAuth          bool
	verbose         bool
	showVersion     bool
	showHealth      bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Facet-dispatch proxy node",
		Long: `proxyd runs a node hosting facet-dispatch proxies and their implementation
contracts. It serves the admin HTTP API and, optionally, a gRPC facet link
that lets other nodes route selectors to contracts deployed here.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.showVersion {
				fmt.Fprintf(cmd.OutOrStdout(), "%s v%s\n", appName, appVersion)
				return nil
			}
			cfg, err := loadConfig(cmd, &opts)
			if err != nil {
				return err
			}

			logger, err := logging.New(logging.ProfileRuntime, logging.Options{Verbose: opts.verbose})
			if err != nil {
				return fmt.Errorf("failed to build logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if opts.showHealth {
				return printHealth(ctx, cmd.OutOrStdout(), cfg, logger)
			}
			return run(ctx, cfg, logger)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Node configuration file (.yaml, .yml or .toml)")
	flags.StringVar(&opts.chainID, "chain-id", "", "Chain identifier (default \"local\")")
	flags.StringVar(&opts.httpListen, "http-listen", "", "Listen address for the HTTP API (default \":8080\")")
	flags.StringVar(&opts.facetLinkListen, "facetlink-listen", "", "Listen address for the gRPC facet link (disabled when empty)")
	flags.StringVar(&opts.storageDriver, "storage", "", "Proxy storage driver: memory or sqlite")
	flags.StringVar(&opts.storagePath, "db", "", "SQLite database path")
	flags.StringVar(&opts.secret, "secret", "", "JWT signing secret")
	flags.BoolVar(&opts.noAuth, "no-auth", false, "Take the caller from the X-Identity header (development only)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logging")
	flags.BoolVar(&opts.showVersion, "version", false, "Show version and exit")
	flags.BoolVar(&opts.showHealth, "health", false, "Deploy the configured contracts, print health and exit")

	return cmd
}

// loadConfig reads the config file, if any, and applies the flags that were set.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Node, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("chain-id") {
		cfg.ChainID = opts.chainID
	}
	if flags.Changed("http-listen") {
		cfg.HTTP.Listen = opts.httpListen
	}
	if flags.Changed("facetlink-listen") {
		cfg.FacetLink.Listen = opts.facetLinkListen
	}
	if flags.Changed("storage") {
		cfg.Storage.Driver = opts.storageDriver
	}
	if flags.Changed("db") {
		cfg.Storage.Path = opts.storagePath
	}
	if flags.Changed("secret") {
		cfg.HTTP.JWTSecret = opts.secret
	}
	if flags.Changed("no-auth") {
		cfg.HTTP.NoAuth = opts.noAuth
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// run deploys the configured contracts and serves until ctx is cancelled.
func run(ctx context.Context, cfg *config.Node, logger *zap.Logger) error {
	httpLis, err := net.Listen("tcp", cfg.HTTP.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.HTTP.Listen, err)
	}
	var linkLis net.Listener
	if cfg.FacetLink.Listen != "" {
		linkLis, err = net.Listen("tcp", cfg.FacetLink.Listen)
		if err != nil {
			httpLis.Close()
			return fmt.Errorf("failed to listen on %s: %w", cfg.FacetLink.Listen, err)
		}
	}

	n, err := buildNode(ctx, cfg, logger)
	if err != nil {
		httpLis.Close()
		if linkLis != nil {
			linkLis.Close()
		}
		return err
	}
	defer func() {
		if err := n.Close(); err != nil {
			logger.Warn("error closing node", zap.Error(err))
		}
	}()

	return serve(ctx, n, cfg, logger, httpLis, linkLis)
}

// serve runs the HTTP API and, when linkLis is non-nil, the facet link
// until ctx is cancelled or either server fails.
func serve(ctx context.Context, n *node, cfg *config.Node, logger *zap.Logger, httpLis, linkLis net.Listener) error {
	api := httpapi.NewServer(n.runtime, httpapi.Config{
		ListenAddress: httpLis.Addr().String(),
		SecretKey:     cfg.HTTP.JWTSecret,
		NoAuth:        cfg.HTTP.NoAuth,
		Logger:        logger,
	})

	var link *facetlink.Server
	if linkLis != nil {
		var err error
		link, err = facetlink.NewServer(&facetlink.Config{ListenAddress: linkLis.Addr().String()}, n.runtime.Facets(), logger)
		if err != nil {
			httpLis.Close()
			linkLis.Close()
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := api.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http api: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return api.Stop(shutdownCtx)
	})

	if link != nil {
		g.Go(func() error {
			if err := link.Serve(linkLis); err != nil {
				return fmt.Errorf("facet link: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return link.Close()
		})
	}

	health, err := n.runtime.Health(ctx)
	if err == nil {
		logger.Info("node started",
			zap.String("chain_id", health.ChainID),
			zap.Int("contracts", health.Contracts),
			zap.Int("proxies", health.Proxies))
	}

	err = g.Wait()
	logger.Info("node stopped")
	return err
}

// printHealth deploys the configured contracts and reports the node's health.
func printHealth(ctx context.Context, w io.Writer, cfg *config.Node, logger *zap.Logger) error {
	n, err := buildNode(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer n.Close()

	health, err := n.runtime.Health(ctx)
	if err != nil {
		return fmt.Errorf("failed to get health status: %w", err)
	}

	fmt.Fprintf(w, "proxyd Node Health Status:\n")
	fmt.Fprintf(w, "  Overall: %s\n", healthStatus(health.Healthy))
	fmt.Fprintf(w, "  Chain: %s\n", health.ChainID)
	fmt.Fprintf(w, "  Contracts: %d\n", health.Contracts)
	fmt.Fprintf(w, "  Proxies: %d\n", health.Proxies)
	fmt.Fprintf(w, "  Height: %d\n", health.Height)
	if health.Message != "" {
		fmt.Fprintf(w, "  Message: %s\n", health.Message)
	}

	if !health.Healthy {
		return errors.New("node is unhealthy")
	}
	return nil
}

// healthStatus returns a colored health status string
func healthStatus(healthy bool) string {
	if healthy {
		return "✅ Healthy"
	}
	return "❌ Unhealthy"
}
