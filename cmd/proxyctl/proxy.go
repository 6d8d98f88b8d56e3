package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rmacdonaldsmith/facetproxy-go/pkg/abi"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/proxy"
)

func newOwnerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "owner <proxy>",
		Short: "Show a proxy's owner",
		Args:  cobra.ExactArgs(1),
		RunE:  runOwner,
	}
}

func runOwner(cmd *cobra.Command, args []string) error {
	proxyAddr, err := proxy.ParseAddress(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	resp, err := client.Owner(ctx, proxyAddr)
	if err != nil {
		return fmt.Errorf("failed to read owner: %w", err)
	}

	out := cmd.OutOrStdout()
	if resp.Revoked || resp.Owner == nil {
		fmt.Fprintf(out, "🔒 Ownership of %s is revoked; the routing table is frozen\n", proxyAddr)
		return nil
	}
	fmt.Fprintf(out, "👤 Owner of %s: %s\n", proxyAddr, resp.Owner)
	return nil
}

func newRoutesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Inspect and edit a proxy's routing table",
		Long: `Inspect and edit a proxy's selector routing table.
Selectors are given as a function signature such as "double(u64)" or as hex.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list <proxy>",
		Short: "List every route",
		Args:  cobra.ExactArgs(1),
		RunE:  runRoutesList,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "get <proxy> <selector>",
		Short: "Show the implementation routed for a selector",
		Args:  cobra.ExactArgs(2),
		RunE:  runRoutesGet,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <proxy> <selector> <implementation>",
		Short: "Route a selector to an implementation (owner only)",
		Args:  cobra.ExactArgs(3),
		RunE:  runRoutesSet,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "remove <proxy> <selector>",
		Short: "Remove the route for a selector (owner only)",
		Args:  cobra.ExactArgs(2),
		RunE:  runRoutesRemove,
	})

	return cmd
}

func parseProxyAndSelector(args []string) (proxy.Address, proxy.Selector, error) {
	proxyAddr, err := proxy.ParseAddress(args[0])
	if err != nil {
		return proxy.Address{}, 0, err
	}
	sel, err := abi.ParseSelector(args[1])
	if err != nil {
		return proxy.Address{}, 0, err
	}
	return proxyAddr, sel, nil
}

func runRoutesList(cmd *cobra.Command, args []string) error {
	proxyAddr, err := proxy.ParseAddress(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	routes, err := client.Routes(ctx, proxyAddr)
	if err != nil {
		return fmt.Errorf("failed to list routes: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(routes) == 0 {
		fmt.Fprintf(out, "📭 No routes on %s\n", proxyAddr)
		return nil
	}
	fmt.Fprintf(out, "🧭 %d routes on %s:\n", len(routes), proxyAddr)
	for _, r := range routes {
		fmt.Fprintf(out, "  %s -> %s\n", r.Selector, r.Implementation)
	}
	return nil
}

func runRoutesGet(cmd *cobra.Command, args []string) error {
	proxyAddr, sel, err := parseProxyAndSelector(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	route, err := client.Route(ctx, proxyAddr, sel)
	if err != nil {
		return fmt.Errorf("failed to read route: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", route.Selector, route.Implementation)
	return nil
}

func runRoutesSet(cmd *cobra.Command, args []string) error {
	if err := requireAuthentication(); err != nil {
		return err
	}
	proxyAddr, sel, err := parseProxyAndSelector(args)
	if err != nil {
		return err
	}
	impl, err := proxy.ParseAddress(args[2])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	receipt, err := client.SetRoute(ctx, proxyAddr, sel, impl)
	if err != nil {
		return fmt.Errorf("failed to set route: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ Routed %s to %s (tx %s)\n", sel, impl, receipt.TxID)
	return nil
}

func runRoutesRemove(cmd *cobra.Command, args []string) error {
	if err := requireAuthentication(); err != nil {
		return err
	}
	proxyAddr, sel, err := parseProxyAndSelector(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	receipt, err := client.RemoveRoute(ctx, proxyAddr, sel)
	if err != nil {
		return fmt.Errorf("failed to remove route: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ Removed route for %s (tx %s)\n", sel, receipt.TxID)
	return nil
}

func newOwnershipCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ownership",
		Short: "Transfer or revoke proxy ownership (owner only)",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "transfer <proxy> <new-owner>",
		Short: "Hand the proxy to a new owner",
		Args:  cobra.ExactArgs(2),
		RunE:  runOwnershipTransfer,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "revoke <proxy>",
		Short: "Revoke ownership for good, freezing the routing table",
		Args:  cobra.ExactArgs(1),
		RunE:  runOwnershipRevoke,
	})

	return cmd
}

func runOwnershipTransfer(cmd *cobra.Command, args []string) error {
	if err := requireAuthentication(); err != nil {
		return err
	}
	proxyAddr, err := proxy.ParseAddress(args[0])
	if err != nil {
		return err
	}
	newOwner, err := proxy.ParseIdentity(args[1])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	receipt, err := client.TransferOwnership(ctx, proxyAddr, newOwner)
	if err != nil {
		return fmt.Errorf("failed to transfer ownership: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ Ownership of %s transferred to %s (tx %s)\n", proxyAddr, newOwner, receipt.TxID)
	return nil
}

func runOwnershipRevoke(cmd *cobra.Command, args []string) error {
	if err := requireAuthentication(); err != nil {
		return err
	}
	proxyAddr, err := proxy.ParseAddress(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	receipt, err := client.RevokeOwnership(ctx, proxyAddr)
	if err != nil {
		return fmt.Errorf("failed to revoke ownership: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "🔒 Ownership of %s revoked (tx %s)\n", proxyAddr, receipt.TxID)
	return nil
}
