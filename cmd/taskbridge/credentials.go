package main

import (
	"fmt"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"taskbridge/internal/credentials"
)

func newCredentialsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage provider API tokens",
		Long: `Securely manage provider tokens using the system keyring.

Tokens are resolved in priority order:
  1. System keyring (most secure) - recommended
  2. TASKBRIDGE_<SCHEME>_TOKEN environment variable (good for CI)
  3. Config file literal (least secure)

Examples:
  # Store a token in the keyring (interactive prompt)
  taskbridge credentials set gcal --prompt

  # Check which source a token resolves from
  taskbridge credentials get gcal

  # Remove a token from the keyring
  taskbridge credentials delete gcal`,
	}

	cmd.AddCommand(newCredentialsSetCmd())
	cmd.AddCommand(newCredentialsGetCmd())
	cmd.AddCommand(newCredentialsDeleteCmd())

	return cmd
}

func envVarHint(source string) string {
	return "TASKBRIDGE_" + strings.ToUpper(strings.ReplaceAll(source, "-", "_")) + "_TOKEN"
}

func newCredentialsSetCmd() *cobra.Command {
	var promptToken bool

	cmd := &cobra.Command{
		Use:   "set <source> [token]",
		Short: "Store a token in the system keyring",
		Long: `Store a provider token securely in the system keyring.

With --prompt the token is read interactively, keeping it out of shell
history (recommended).`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := args[0]

			var token string
			if promptToken {
				fmt.Printf("Enter token for %s: ", source)
				tokenBytes, err := term.ReadPassword(int(syscall.Stdin))
				fmt.Println()
				if err != nil {
					return fmt.Errorf("failed to read token: %w", err)
				}
				token = string(tokenBytes)
				if token == "" {
					return fmt.Errorf("token cannot be empty")
				}
			} else if len(args) >= 2 {
				token = args[1]
			} else {
				return fmt.Errorf("token is required (use --prompt for interactive input)")
			}

			if err := credentials.SetToken(source, token); err != nil {
				if !credentials.KeyringAvailable() {
					return fmt.Errorf("system keyring is not available. Use the environment instead:\n  export %s=<token>", envVarHint(source))
				}
				return err
			}

			fmt.Printf("✓ Token stored for %s\n", source)
			return nil
		},
	}

	cmd.Flags().BoolVar(&promptToken, "prompt", false, "Prompt for the token interactively (recommended)")
	return cmd
}

func newCredentialsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <source>",
		Short: "Check token status for a provider",
		Long: `Show which source a provider token resolves from. The token itself is
never printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := args[0]

			token, err := credentials.Resolve(source, "")
			if err != nil {
				fmt.Printf("✗ No token found for %q\n", source)
				fmt.Println("\nAvailable options:")
				fmt.Printf("  1. Store in keyring:  taskbridge credentials set %s --prompt\n", source)
				fmt.Printf("  2. Set environment:   export %s=<token>\n", envVarHint(source))
				fmt.Println("  3. Add token to the provider section of the config (not recommended)")
				return err
			}

			fmt.Printf("✓ Token found for %q\n", source)
			fmt.Printf("  Source: %s\n", token.Source)

			switch token.Source {
			case credentials.SourceKeyring:
				fmt.Println("\n✓ Using secure keyring storage (recommended)")
			case credentials.SourceEnv:
				fmt.Println("\n⚠ Using an environment variable")
				fmt.Printf("  Consider the keyring: taskbridge credentials set %s --prompt\n", source)
			}
			return nil
		},
	}
}

func newCredentialsDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <source>",
		Short: "Remove a token from the system keyring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := args[0]

			if !force {
				fmt.Printf("Delete token for %s from keyring? [y/N]: ", source)
				var response string
				if _, err := fmt.Scanln(&response); err != nil {
					fmt.Println("Cancelled")
					return nil
				}
				response = strings.ToLower(strings.TrimSpace(response))
				if response != "y" && response != "yes" {
					fmt.Println("Cancelled")
					return nil
				}
			}

			if err := credentials.DeleteToken(source); err != nil {
				return err
			}

			fmt.Printf("✓ Token removed for %s\n", source)
			fmt.Println("  Environment and config tokens are not affected.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Skip confirmation prompt")
	return cmd
}
