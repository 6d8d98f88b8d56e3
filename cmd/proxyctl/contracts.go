package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newContractsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "contracts",
		Short: "List deployed contracts",
		RunE:  runContracts,
	}
}

func runContracts(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	contracts, err := client.Contracts(ctx)
	if err != nil {
		return fmt.Errorf("failed to list contracts: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(contracts) == 0 {
		fmt.Fprintf(out, "📭 No contracts deployed\n")
		return nil
	}

	fmt.Fprintf(out, "📋 %d contracts:\n", len(contracts))
	for _, c := range contracts {
		fmt.Fprintf(out, "  %s  %-14s %s\n", c.Address, c.Kind, c.Name)
	}
	return nil
}
