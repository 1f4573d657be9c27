package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInfoCmd(conn *connFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show collection counts for the connected database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			eng, disconnect, err := connect(ctx, *conn)
			if err != nil {
				return err
			}
			defer disconnect(ctx)

			counts, err := eng.CountItems(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("refs:   %d\npaths:  %d\nsheets: %d\n", counts.Refs, counts.Paths, counts.Sheets)
			return nil
		},
	}
}
