package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rmacdonaldsmith/facetproxy-go/pkg/httpclient"
)

var (
	// Global flags
	serverURL string
	identity  string
	token     string
	timeout   time.Duration
	noAuth    bool

	// Global client instance
	client *httpclient.Client
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "proxyctl",
		Short: "proxyd HTTP API command line interface",
		Long: `proxyctl is a command line interface for the proxyd HTTP API.
It provides commands for authentication, proxy administration (routes and
ownership), sending transactions and following the receipt stream.`,
		PersistentPreRunE: initializeClient,
		SilenceUsage:      true,
	}

	// Add global flags
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "proxyd server URL")
	rootCmd.PersistentFlags().StringVar(&identity, "identity", "", "Caller identity, e.g. address:0x... or contract:0x...")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("PROXYCTL_TOKEN"), "JWT token (if already authenticated)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")
	rootCmd.PersistentFlags().BoolVar(&noAuth, "no-auth", false, "Send the identity as a header (for development with --no-auth servers)")

	// Add subcommands
	rootCmd.AddCommand(newAuthCommand())
	rootCmd.AddCommand(newContractsCommand())
	rootCmd.AddCommand(newOwnerCommand())
	rootCmd.AddCommand(newRoutesCommand())
	rootCmd.AddCommand(newOwnershipCommand())
	rootCmd.AddCommand(newCallCommand())
	rootCmd.AddCommand(newSelectorCommand())
	rootCmd.AddCommand(newTxCommand())
	rootCmd.AddCommand(newStatsCommand())
	rootCmd.AddCommand(newHealthCommand())

	return rootCmd
}

// initializeClient sets up the HTTP client with global configuration
func initializeClient(cmd *cobra.Command, args []string) error {
	// Skip client initialization for help commands
	if cmd.Name() == "help" || cmd.Parent() == nil {
		return nil
	}

	config := httpclient.Config{
		ServerURL: serverURL,
		Identity:  identity,
		Token:     token,
		Timeout:   timeout,
	}

	var err error
	client, err = httpclient.NewClient(config)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	return nil
}

// requireAuthentication checks the client can send transactions
func requireAuthentication() error {
	if client == nil {
		return fmt.Errorf("client not initialized")
	}

	// The server takes the caller from the identity header
	if noAuth {
		if identity == "" {
			return fmt.Errorf("identity is required in no-auth mode")
		}
		return nil
	}

	if !client.IsAuthenticated() {
		return fmt.Errorf("not authenticated - run 'proxyctl auth' first or provide --token")
	}
	return nil
}
