package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rmacdonaldsmith/facetproxy-go/pkg/httpclient"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/proxy"
)

func newTxCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Inspect transaction receipts",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <tx-id>",
		Short: "Show one receipt",
		Args:  cobra.ExactArgs(1),
		RunE:  runTxGet,
	})
	cmd.AddCommand(newTxListCommand())
	cmd.AddCommand(newTxWatchCommand())

	return cmd
}

func runTxGet(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	receipt, err := client.Tx(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to read receipt: %w", err)
	}
	printReceipt(cmd.OutOrStdout(), receipt)
	return nil
}

func newTxListCommand() *cobra.Command {
	var (
		from  int64
		limit int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List receipts starting at a height",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			receipts, err := client.ListTx(ctx, from, limit)
			if err != nil {
				return fmt.Errorf("failed to list receipts: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "📋 Found %d receipts (from height %d)\n\n", len(receipts), from)
			for _, r := range receipts {
				printReceipt(out, r)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&from, "from", 0, "First height to list")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of receipts (max: 1000)")

	return cmd
}

func newTxWatchCommand() *cobra.Command {
	var (
		from       int64
		to         string
		bufferSize int
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow receipts in real-time",
		Long: `Follow transaction receipts in real-time using Server-Sent Events.
The stream reconnects after a dropped connection and resumes where it left off.
Press Ctrl+C to stop.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			config := httpclient.StreamConfig{From: from, BufferSize: bufferSize}
			if to != "" {
				addr, err := proxy.ParseAddress(to)
				if err != nil {
					return err
				}
				config.To = &addr
			}
			return runTxWatch(cmd, config)
		},
	}

	cmd.Flags().Int64Var(&from, "from", 0, "First height to deliver")
	cmd.Flags().StringVar(&to, "to", "", "Only receipts of transactions sent to this address")
	cmd.Flags().IntVar(&bufferSize, "buffer-size", 100, "Receipt buffer size")

	return cmd
}

func runTxWatch(cmd *cobra.Command, config httpclient.StreamConfig) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "🌊 Following receipts from %s (height %d)...\n", serverURL, config.From)
	fmt.Fprintln(out, "Press Ctrl+C to stop")

	stream, err := client.StreamReceipts(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to start streaming: %w", err)
	}
	defer func() {
		if err := stream.Close(); err != nil {
			fmt.Fprintf(out, "Warning: failed to close stream client: %v\n", err)
		}
	}()

	count := 0
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(out, "\n✅ Stream stopped. Received %d receipts.\n", count)
			return nil

		case r, ok := <-stream.Receipts():
			if !ok {
				fmt.Fprintf(out, "\n🔌 Receipt stream closed. Received %d receipts.\n", count)
				return nil
			}
			count++
			printReceipt(out, r)

		case err, ok := <-stream.Errors():
			if !ok {
				continue
			}
			// Non-fatal; the stream reconnects
			fmt.Fprintf(out, "❌ Stream error: %v\n", err)

		case <-stream.Done():
			fmt.Fprintf(out, "\n🔌 Stream finished. Received %d receipts.\n", count)
			return nil
		}
	}
}

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show receipt log statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			stats, err := client.Stats(ctx)
			if err != nil {
				return fmt.Errorf("failed to read statistics: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "📊 Receipts: %d\n", stats.Total)
			for status, n := range stats.ByStatus {
				fmt.Fprintf(out, "   %s: %d\n", status, n)
			}
			for target, n := range stats.ByTarget {
				fmt.Fprintf(out, "   -> %s: %d\n", target, n)
			}
			return nil
		},
	}
}
