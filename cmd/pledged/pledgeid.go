package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-pledge-backend/internal/pledgeid"
)

func pledgeIDCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pledge-id",
		Short: "Issue or validate pledge ids",
	}

	var count int
	newCmd := &cobra.Command{
		Use:   "new",
		Short: "Print fresh pledge ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for i := 0; i < count; i++ {
				id, err := pledgeid.New()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
	newCmd.Flags().IntVarP(&count, "count", "n", 1, "number of ids")

	checkCmd := &cobra.Command{
		Use:   "check ID...",
		Short: "Validate pledge ids; exits non-zero if any is malformed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var bad []string
			for _, id := range args {
				if !pledgeid.IsNewFormat(id) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\tinvalid\n", id)
					bad = append(bad, id)
					continue
				}
				year, _ := pledgeid.Year(id)
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tok\t%d\n", id, year)
			}
			if len(bad) > 0 {
				return fmt.Errorf("malformed pledge ids: %s", strings.Join(bad, ", "))
			}
			return nil
		},
	}

	cmd.AddCommand(newCmd, checkCmd)
	return cmd
}
