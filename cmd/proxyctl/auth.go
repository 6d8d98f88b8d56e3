package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with proxyd",
		Long: `Authenticate with the proxyd server as the --identity caller.
This will generate a JWT token that can be used for subsequent requests.`,
		RunE: runAuth,
	}

	return cmd
}

func runAuth(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	if identity == "" {
		return fmt.Errorf("identity is required for authentication")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Authenticating with server %s as %s...\n", serverURL, identity)

	if err := client.Authenticate(ctx); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	token := client.GetToken()
	fmt.Fprintf(out, "✅ Authentication successful!\n")
	fmt.Fprintf(out, "Token: %s\n", token)
	fmt.Fprintf(out, "\nYou can now use other commands or save this token for future use:\n")
	fmt.Fprintf(out, "  export PROXYCTL_TOKEN=\"%s\"\n", token)
	fmt.Fprintf(out, "  proxyctl routes set <proxy> \"double(u64)\" <implementation>\n")

	return nil
}
