package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// balanceCommand constructs the 'balance' subcommand that validates an API key
// and prints its remaining credits.
func balanceCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance <key>",
		Short: "Prints the credits left on an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			balance, err := c.client().Balance(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("could not check API key: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), balance.Credits) //nolint: forbidigo

			return nil
		},
	}

	return cmd
}
