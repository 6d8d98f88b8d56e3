package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rmacdonaldsmith/facetproxy-go/pkg/abi"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/httpclient"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/txlog"
)

func newCallCommand() *cobra.Command {
	var (
		req  httpclient.CallRequest
		u64s []string
	)

	cmd := &cobra.Command{
		Use:   "call",
		Short: "Send a transaction to a contract",
		Long: `Send one transaction to a contract, usually a proxy.
Arguments are either a list of u64 values (--u64) or raw hex (--args).`,
		Example: `  proxyctl --identity address:0x... call --to 0x... --sig "double(u64)" --u64 21`,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, raw := range u64s {
				v, err := strconv.ParseUint(raw, 0, 64)
				if err != nil {
					return fmt.Errorf("invalid u64 argument %q: %w", raw, err)
				}
				req.U64 = append(req.U64, v)
			}
			return runCall(cmd, req)
		},
	}

	cmd.Flags().StringVar(&req.To, "to", "", "Contract address (required)")
	cmd.Flags().StringVar(&req.Signature, "sig", "", "Function signature, e.g. double(u64)")
	cmd.Flags().StringVar(&req.Selector, "selector", "", "Hex selector, instead of --sig")
	cmd.Flags().StringSliceVar(&u64s, "u64", nil, "u64 arguments, comma separated or repeated")
	cmd.Flags().StringVar(&req.Args, "args", "", "Raw hex-encoded arguments, instead of --u64")
	cmd.Flags().Uint64Var(&req.Value, "value", 0, "Value sent with the call")

	if err := cmd.MarkFlagRequired("to"); err != nil {
		panic(fmt.Sprintf("Failed to mark to flag as required: %v", err))
	}
	cmd.MarkFlagsMutuallyExclusive("sig", "selector")
	cmd.MarkFlagsOneRequired("sig", "selector")
	cmd.MarkFlagsMutuallyExclusive("u64", "args")

	return cmd
}

func runCall(cmd *cobra.Command, req httpclient.CallRequest) error {
	if err := requireAuthentication(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	receipt, err := client.Call(ctx, req)
	if err != nil {
		return fmt.Errorf("call failed: %w", err)
	}
	printReceipt(cmd.OutOrStdout(), receipt)
	return nil
}

func newSelectorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "selector <signature>...",
		Short: "Print the selector of function signatures",
		Args:  cobra.MinimumNArgs(1),
		// Computed locally; no server needed.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, sig := range args {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", abi.SelectorOf(sig), sig)
			}
			return nil
		},
	}
}

// printReceipt shows a receipt, decoding a single u64 return value.
func printReceipt(w io.Writer, r *txlog.Receipt) {
	icon := "✅"
	if !r.Succeeded() {
		icon = "❌"
	}
	fmt.Fprintf(w, "%s Tx %s #%d: %s\n", icon, r.TxID, r.Height, r.Status)
	fmt.Fprintf(w, "   From: %s\n", r.From)
	fmt.Fprintf(w, "   To: %s\n", r.To)
	fmt.Fprintf(w, "   Selector: %s\n", r.Selector)
	if r.Value != 0 {
		fmt.Fprintf(w, "   Value: %d\n", r.Value)
	}
	if r.Reason != "" {
		fmt.Fprintf(w, "   Revert: %s (%s)\n", r.Reason, r.RevertKind)
	}
	if r.Error != "" {
		fmt.Fprintf(w, "   Error: %s\n", r.Error)
	}
	if len(r.Return) > 0 {
		if v, err := abi.DecodeU64(r.Return); err == nil {
			fmt.Fprintf(w, "   Return: %d\n", v)
		} else {
			fmt.Fprintf(w, "   Return: 0x%x\n", r.Return)
		}
	}
	fmt.Fprintf(w, "   Time: %s\n", r.Timestamp.Format("2006-01-02 15:04:05.000"))
}
