package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"signaldb/internal/codec"
)

func newRollbackCmd(conn *connFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <rfc3339-instant>",
		Short: "Purge every revision written after the given instant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !codec.IsRFC3339(args[0]) {
				return fmt.Errorf("instant must be RFC3339 (YYYY-MM-DDTHH:MM:SSZ): %q", args[0])
			}
			t, err := codec.ParseRFC3339(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			eng, disconnect, err := connect(ctx, *conn)
			if err != nil {
				return err
			}
			defer disconnect(ctx)

			log.WithField("trace_id", traceIDFrom(ctx)).WithField("to", t).
				Warn("signaldb rollback: purging every revision after this instant")
			return eng.Rollback(ctx, t)
		},
	}
}
