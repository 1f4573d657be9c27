package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newListCmd(conn *connFlags) *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   "list [source]",
		Short: "List live (source, ticker) aliases, optionally filtered by source",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var source string
			if len(args) == 1 {
				source = args[0]
			}

			asOfT, err := resolveAsOf(asOf)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			eng, disconnect, err := connect(ctx, *conn)
			if err != nil {
				return err
			}
			defer disconnect(ctx)

			tickers, err := eng.ListTickers(ctx, source, asOfT)
			if err != nil {
				return err
			}
			for _, t := range tickers {
				fmt.Printf("%s\t%s\n", t.Source, t.Ticker)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&asOf, "as-of", "", "RFC3339 instant to list as of (defaults to now)")
	return cmd
}
